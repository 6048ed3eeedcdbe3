package track

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/instrument"
	"github.com/cbegin/chipkit-go/internal/synth"
)

// SetAttr implements attr.Object. Values are clamped to their ranges; enum
// values out of range are rejected.
func (t *Track) SetAttr(key attr.Key, value int) error {
	switch key {
	case attr.Volume:
		t.volume.SetValue(attr.Clamp(value, 0, attr.MaxVolume))
	case attr.MasterVolume:
		t.masterVolume = attr.Clamp(value, 0, attr.MaxVolume)
	case attr.Panning:
		t.panning.SetValue(attr.Clamp(value, -attr.MaxVolume, attr.MaxVolume))
	case attr.Note:
		if value < 0 && value != NoteRelease && value != NoteMute {
			value = 0
		}
		t.setNote(value)
	case attr.Pitch:
		t.pitch = attr.Clamp(value, -MaxPitch, MaxPitch)
	case attr.ArpeggioDivider:
		t.arpDiv.SetDivisor(value)
	case attr.EffectDivider:
		t.effectDiv.SetDivisor(value)
	case attr.InstrumentDivider:
		t.instrDiv.SetDivisor(value)
	case attr.DutyCycle:
		t.dutyCycle = attr.Clamp(value, synth.MinDutyCycle, synth.MaxDutyCycle)
	case attr.TriangleIgnoresVolume:
		t.triangleFlat = attr.Bool(value)
	case attr.Mute:
		t.muted = attr.Bool(value)
	case attr.Waveform:
		if err := t.unit.SetWaveform(synth.Waveform(value)); err != nil {
			return err
		}
	case attr.PhaseWrap, attr.SampleRepeat, attr.SamplePitch:
		if err := t.unit.SetAttr(key, value); err != nil {
			return err
		}
	case attr.SamplePeriod:
		// The note sets the magnitude; only the direction is kept.
		t.reverse = value < 0
	case attr.EffectVolumeSlide, attr.EffectPanningSlide, attr.EffectPortamento:
		return t.SetPtr(key, []int{value})
	default:
		return fmt.Errorf("track: %s: %w", key, errs.ErrInvalidAttribute)
	}
	t.update()
	return nil
}

// Attr implements attr.Object.
func (t *Track) Attr(key attr.Key) (int, error) {
	switch key {
	case attr.Volume:
		return t.volume.Target(), nil
	case attr.MasterVolume:
		return t.masterVolume, nil
	case attr.Panning:
		return t.panning.Target(), nil
	case attr.Note:
		return t.Note(), nil
	case attr.Pitch:
		return t.pitch, nil
	case attr.ArpeggioDivider:
		return t.arpDiv.Divisor(), nil
	case attr.EffectDivider:
		return t.effectDiv.Divisor(), nil
	case attr.InstrumentDivider:
		return t.instrDiv.Divisor(), nil
	case attr.DutyCycle:
		return t.dutyCycle, nil
	case attr.TriangleIgnoresVolume:
		return attr.Int(t.triangleFlat), nil
	case attr.Mute:
		return attr.Int(t.muted), nil
	case attr.Waveform, attr.PhaseWrap, attr.SampleRepeat, attr.SamplePitch, attr.SamplePeriod, attr.NumPhases:
		return t.unit.Attr(key)
	case attr.EffectVolumeSlide:
		return t.volume.Steps(), nil
	case attr.EffectPanningSlide:
		return t.panning.Steps(), nil
	case attr.EffectPortamento:
		return t.note.Steps(), nil
	}
	return 0, fmt.Errorf("track: %s: %w", key, errs.ErrInvalidAttribute)
}

// SetPtr implements attr.Object. Effects take []int parameters: slides and
// portamento [steps], tremolo and vibrato [steps, delta, slideSteps]; nil
// disables the effect.
func (t *Track) SetPtr(key attr.Key, value any) error {
	switch key {
	case attr.Arpeggio:
		offsets, err := ints(key, value)
		if err != nil {
			return err
		}
		if err := t.SetArpeggio(offsets); err != nil {
			return err
		}
	case attr.Instrument:
		var in *instrument.Instrument
		switch v := value.(type) {
		case nil:
		case *instrument.Instrument:
			in = v
		default:
			return fmt.Errorf("track: %s: %T: %w", key, value, errs.ErrInvalidValue)
		}
		if err := t.SetInstrument(in); err != nil {
			return err
		}
	case attr.CustomWaveform, attr.Sample, attr.SampleRange, attr.SampleSustainRange, attr.SampleCallback:
		if err := t.unit.SetPtr(key, value); err != nil {
			return err
		}
	case attr.EffectVolumeSlide, attr.EffectPanningSlide, attr.EffectPortamento:
		p, err := params(key, value, 1)
		if err != nil {
			return err
		}
		steps := attr.Clamp(p[0], 0, clock.MaxDivisor)
		switch key {
		case attr.EffectVolumeSlide:
			t.volume.SetSteps(steps)
		case attr.EffectPanningSlide:
			t.panning.SetSteps(steps)
		default:
			t.note.SetSteps(steps)
		}
	case attr.EffectTremolo, attr.EffectVibrato:
		p, err := params(key, value, 3)
		if err != nil {
			return err
		}
		steps := attr.Clamp(p[0], 0, clock.MaxDivisor)
		slide := attr.Clamp(p[2], 0, clock.MaxDivisor)
		if key == attr.EffectTremolo {
			t.tremolo.Set(steps, attr.Clamp(p[1], 0, attr.MaxVolume), slide)
		} else {
			t.vibrato.Set(steps, attr.Clamp(p[1], 0, MaxPitch), slide)
		}
	default:
		return fmt.Errorf("track: %s: %w", key, errs.ErrInvalidAttribute)
	}
	t.update()
	return nil
}

// Ptr implements attr.Object.
func (t *Track) Ptr(key attr.Key) (any, error) {
	switch key {
	case attr.Arpeggio:
		return t.Arpeggio(), nil
	case attr.Instrument:
		return t.instr.Instrument(), nil
	case attr.CustomWaveform, attr.Sample, attr.SampleRange, attr.SampleSustainRange, attr.SampleCallback:
		return t.unit.Ptr(key)
	case attr.EffectVolumeSlide:
		return []int{t.volume.Steps()}, nil
	case attr.EffectPanningSlide:
		return []int{t.panning.Steps()}, nil
	case attr.EffectPortamento:
		return []int{t.note.Steps()}, nil
	case attr.EffectTremolo:
		steps, delta, slide := t.tremolo.Params()
		return []int{steps, delta, slide}, nil
	case attr.EffectVibrato:
		steps, delta, slide := t.vibrato.Params()
		return []int{steps, delta, slide}, nil
	}
	return nil, fmt.Errorf("track: %s: %w", key, errs.ErrInvalidAttribute)
}

func ints(key attr.Key, value any) ([]int, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []int:
		return v, nil
	case [1]int:
		return v[:], nil
	case [3]int:
		return v[:], nil
	case []int32:
		out := make([]int, len(v))
		for i, x := range v {
			out[i] = int(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("track: %s: %T: %w", key, value, errs.ErrInvalidValue)
}

// params reads an effect parameter list; nil means all zeros.
func params(key attr.Key, value any, n int) ([]int, error) {
	p, err := ints(key, value)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return make([]int, n), nil
	}
	if len(p) != n {
		return nil, fmt.Errorf("track: %s takes %d values, got %d: %w", key, n, len(p), errs.ErrInvalidValue)
	}
	return p, nil
}

var _ attr.Object = (*Track)(nil)
