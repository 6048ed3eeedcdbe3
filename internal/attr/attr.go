// Package attr defines the attribute protocol shared by every engine object:
// integer attributes addressed by Key, and pointer attributes carrying slices,
// data objects or callbacks.
package attr

// Key names an attribute.
type Key int

const (
	// Shared by track and unit.
	Volume Key = iota + 1
	Volume0
	Volume1
	Waveform
	DutyCycle
	Period
	Phase
	PhaseWrap
	NumPhases
	Mute
	SampleRepeat
	SamplePeriod
	SamplePitch
	CustomWaveform
	Sample
	SampleRange
	SampleSustainRange
	SampleCallback

	// Track.
	MasterVolume
	Panning
	Note
	Pitch
	Arpeggio
	ArpeggioDivider
	EffectDivider
	InstrumentDivider
	Instrument
	TriangleIgnoresVolume
	EffectVolumeSlide
	EffectPanningSlide
	EffectPortamento
	EffectTremolo
	EffectVibrato

	// Context.
	SampleRate
	NumChannels
	ClockPeriod
	Time

	// Clock and divider.
	Divisor

	// Data.
	NumFrames
	NumBits
)

var names = map[Key]string{
	Volume: "volume", Volume0: "volume0", Volume1: "volume1", Waveform: "waveform",
	DutyCycle: "duty_cycle", Period: "period", Phase: "phase", PhaseWrap: "phase_wrap",
	NumPhases: "num_phases", Mute: "mute", SampleRepeat: "sample_repeat",
	SamplePeriod: "sample_period", SamplePitch: "sample_pitch",
	CustomWaveform: "custom_waveform", Sample: "sample", SampleRange: "sample_range",
	SampleSustainRange: "sample_sustain_range", SampleCallback: "sample_callback",
	MasterVolume: "master_volume", Panning: "panning", Note: "note", Pitch: "pitch",
	Arpeggio: "arpeggio", ArpeggioDivider: "arpeggio_divider",
	EffectDivider: "effect_divider", InstrumentDivider: "instrument_divider",
	Instrument: "instrument", TriangleIgnoresVolume: "triangle_ignores_volume",
	EffectVolumeSlide: "effect_volume_slide", EffectPanningSlide: "effect_panning_slide",
	EffectPortamento: "effect_portamento", EffectTremolo: "effect_tremolo",
	EffectVibrato: "effect_vibrato", SampleRate: "sample_rate",
	NumChannels: "num_channels", ClockPeriod: "clock_period", Time: "time",
	Divisor: "divisor", NumFrames: "num_frames", NumBits: "num_bits",
}

func (k Key) String() string {
	if n, ok := names[k]; ok {
		return n
	}
	return "unknown"
}

// Object is implemented by every engine object (context, unit, track, clock,
// divider, data). Unknown keys yield errs.ErrInvalidAttribute, illegal values
// errs.ErrInvalidValue and illegal sequencing errs.ErrInvalidState.
type Object interface {
	SetAttr(key Key, value int) error
	Attr(key Key) (int, error)
	SetPtr(key Key, value any) error
	Ptr(key Key) (any, error)
}

// MaxVolume is full scale for volumes and panning.
const MaxVolume = 0x7FFF

// VolumeShift divides out a product with a MaxVolume-scaled factor.
const VolumeShift = 15

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bool converts a flag attribute.
func Bool(v int) bool { return v != 0 }

// Int converts a flag to its attribute value.
func Int(b bool) int {
	if b {
		return 1
	}
	return 0
}
