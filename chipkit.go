// Package chipkit is a sample-accurate chiptune synthesizer. Songs are sets of
// compiled voice programs (see Assembler); a Player streams them to an audio
// device and Render produces PCM offline.
package chipkit

import (
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
	"github.com/cbegin/chipkit-go/internal/instrument"
	"github.com/cbegin/chipkit-go/internal/sequence"
	"github.com/cbegin/chipkit-go/internal/sequencer"
	"github.com/cbegin/chipkit-go/internal/synth"
	"github.com/cbegin/chipkit-go/internal/vm"
)

type (
	// Song is one program per voice plus the tables they index.
	Song = sequencer.Score
	// Tables hold the instruments, custom waveforms and samples a song uses.
	Tables = vm.Tables
	// Assembler builds voice programs.
	Assembler = vm.Assembler
	// Data holds frames for custom waveforms and samples.
	Data = synth.Data
	// Instrument is a set of per-parameter sequences.
	Instrument = instrument.Instrument
	// Sequence is a stepped value list or a linear envelope.
	Sequence = sequence.Sequence
	// Segment is one envelope phase.
	Segment = sequence.Segment
)

// Error codes.
var (
	ErrAllocation         error = errs.ErrAllocation
	ErrInvalidAttribute   error = errs.ErrInvalidAttribute
	ErrInvalidValue       error = errs.ErrInvalidValue
	ErrInvalidState       error = errs.ErrInvalidState
	ErrInvalidNumChannels error = errs.ErrInvalidNumChannels
	ErrInvalidNumFrames   error = errs.ErrInvalidNumFrames
	ErrInvalidNumBits     error = errs.ErrInvalidNumBits
	ErrInvalidReturnValue error = errs.ErrInvalidReturnValue
	ErrFileNotFound       error = errs.ErrFileNotFound
	ErrFileNotReadable    error = errs.ErrFileNotReadable
	ErrFileNotWritable    error = errs.ErrFileNotWritable
	ErrFileNotSeekable    error = errs.ErrFileNotSeekable
)

// Waveforms, for OpWaveform.
const (
	Square   = int(synth.WaveformSquare)
	Triangle = int(synth.WaveformTriangle)
	Noise    = int(synth.WaveformNoise)
	Sawtooth = int(synth.WaveformSawtooth)
	Sine     = int(synth.WaveformSine)
)

// Instrument slots.
const (
	SlotVolume    = instrument.SlotVolume
	SlotPanning   = instrument.SlotPanning
	SlotArpeggio  = instrument.SlotArpeggio
	SlotDutyCycle = instrument.SlotDutyCycle
	SlotPitch     = instrument.SlotPitch
)

// MaxVolume is full scale for volume and panning operands.
const MaxVolume = 0x7FFF

// Note returns the program value for a semitone, C0 = 0 and A4 = 57.
func Note(semitone int) int { return fixed.Note(semitone) }

// NewAssembler starts an empty voice program.
func NewAssembler() *Assembler { return vm.NewAssembler() }

// NewData wraps interleaved frames.
func NewData(frames []int16, channels int) (*Data, error) {
	return synth.NewDataFrames(frames, channels)
}

// NewInstrument returns an instrument with no sequences.
func NewInstrument() *Instrument { return instrument.New() }

// NewSequence returns a stepped sequence; the sustain range loops while the
// note is held.
func NewSequence(values []int, sustainOffset, sustainLength int) (*Sequence, error) {
	return sequence.NewSimple(values, sustainOffset, sustainLength)
}

// NewEnvelope returns a sequence of linear segments.
func NewEnvelope(segments []Segment, sustainOffset, sustainLength int) (*Sequence, error) {
	return sequence.NewEnvelope(segments, sustainOffset, sustainLength)
}

// Op is a voice program opcode; Effect selects OpEffect's kind.
type (
	Op     = vm.Op
	Effect = vm.Effect
)

const (
	OpNop                = vm.OpNop
	OpAttack             = vm.OpAttack
	OpAttackTicks        = vm.OpAttackTicks
	OpArpeggio           = vm.OpArpeggio
	OpArpeggioDivider    = vm.OpArpeggioDivider
	OpRelease            = vm.OpRelease
	OpReleaseTicks       = vm.OpReleaseTicks
	OpMute               = vm.OpMute
	OpMuteTicks          = vm.OpMuteTicks
	OpVolume             = vm.OpVolume
	OpMasterVolume       = vm.OpMasterVolume
	OpPanning            = vm.OpPanning
	OpPitch              = vm.OpPitch
	OpWaveform           = vm.OpWaveform
	OpCustomWaveform     = vm.OpCustomWaveform
	OpSample             = vm.OpSample
	OpSampleRepeat       = vm.OpSampleRepeat
	OpSampleRange        = vm.OpSampleRange
	OpSampleSustainRange = vm.OpSampleSustainRange
	OpSamplePitch        = vm.OpSamplePitch
	OpSampleReverse      = vm.OpSampleReverse
	OpDutyCycle          = vm.OpDutyCycle
	OpPhaseWrap          = vm.OpPhaseWrap
	OpInstrument         = vm.OpInstrument
	OpEffect             = vm.OpEffect
	OpEffectDivider      = vm.OpEffectDivider
	OpInstrumentDivider  = vm.OpInstrumentDivider
	OpStepTicks          = vm.OpStepTicks
	OpStep               = vm.OpStep
	OpTicks              = vm.OpTicks
	OpCall               = vm.OpCall
	OpReturn             = vm.OpReturn
	OpJump               = vm.OpJump
	OpRepeat             = vm.OpRepeat
	OpEnd                = vm.OpEnd

	EffectVolumeSlide  = vm.EffectVolumeSlide
	EffectPanningSlide = vm.EffectPanningSlide
	EffectPortamento   = vm.EffectPortamento
	EffectTremolo      = vm.EffectTremolo
	EffectVibrato      = vm.EffectVibrato
)
