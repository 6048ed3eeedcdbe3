package main

import (
	"github.com/cbegin/chipkit-go"
)

const (
	sampleVoiceTable = 0
	leadInstrument   = 0
)

// demoSong builds a short three voice loop: an arpeggiated square lead, a
// triangle bass and noise drums. A non-nil sample adds a fourth voice that
// plays it on every bar.
func demoSong(sample *chipkit.Data) (*chipkit.Song, error) {
	inst, err := leadPatch()
	if err != nil {
		return nil, err
	}
	tables := &chipkit.Tables{Instruments: []*chipkit.Instrument{inst}}

	voices := make([][]int32, 0, 4)
	for _, build := range []func() ([]int32, error){lead, bass, drums} {
		code, err := build()
		if err != nil {
			return nil, err
		}
		voices = append(voices, code)
	}
	if sample != nil {
		tables.Samples = []*chipkit.Data{sample}
		code, err := sampler()
		if err != nil {
			return nil, err
		}
		voices = append(voices, code)
	}
	return &chipkit.Song{Voices: voices, Tables: tables, StepTicks: 20}, nil
}

func leadPatch() (*chipkit.Instrument, error) {
	inst := chipkit.NewInstrument()
	vol, err := chipkit.NewEnvelope([]chipkit.Segment{
		{Steps: 2, Value: chipkit.MaxVolume},
		{Steps: 12, Value: chipkit.MaxVolume * 5 / 8},
		{Steps: 24, Value: 0},
	}, 1, 1)
	if err != nil {
		return nil, err
	}
	duty, err := chipkit.NewSequence([]int{8, 8, 4, 2}, 3, 1)
	if err != nil {
		return nil, err
	}
	if err := inst.SetSequence(chipkit.SlotVolume, vol); err != nil {
		return nil, err
	}
	if err := inst.SetSequence(chipkit.SlotDutyCycle, duty); err != nil {
		return nil, err
	}
	return inst, nil
}

func lead() ([]int32, error) {
	a := chipkit.NewAssembler().
		Waveform(chipkit.Square).
		Instrument(leadInstrument).
		Volume(chipkit.MaxVolume/3).
		Emit(chipkit.OpPanning, -chipkit.MaxVolume/4).
		Effect(chipkit.EffectVibrato, 12, chipkit.Note(1)/8, 24)
	chords := [][3]int{{0, 4, 7}, {0, 3, 7}, {0, 5, 9}, {0, 4, 7}}
	roots := []int{60, 57, 53, 55}
	for i, root := range roots {
		c := chords[i]
		a.Emit(chipkit.OpArpeggio, chipkit.Note(c[0]), chipkit.Note(c[1]), chipkit.Note(c[2])).
			Attack(chipkit.Note(root)).Step(3).Release().Step(1)
	}
	a.Emit(chipkit.OpArpeggio).
		Effect(chipkit.EffectPortamento, 8).
		Attack(chipkit.Note(72)).Step(1).
		Attack(chipkit.Note(67)).Step(1).
		Effect(chipkit.EffectPortamento, 0).
		Release().Step(2)
	return a.End().Assemble()
}

func bass() ([]int32, error) {
	a := chipkit.NewAssembler().
		Waveform(chipkit.Triangle).
		Emit(chipkit.OpPanning, chipkit.MaxVolume/4)
	for _, root := range []int{36, 33, 29, 31} {
		a.Call("pulse").Attack(chipkit.Note(root)).Step(1).Release().Step(1)
	}
	a.Jump("out")
	a.Label("pulse").
		Attack(chipkit.Note(36)).Step(1).Release().Step(1).
		Return()
	a.Label("out")
	return a.End().Assemble()
}

func drums() ([]int32, error) {
	a := chipkit.NewAssembler().
		Waveform(chipkit.Noise).
		Volume(chipkit.MaxVolume/4).
		Label("beat").
		Attack(chipkit.Note(72)).Effect(chipkit.EffectVolumeSlide, 6).Volume(0).Ticks(10).
		Volume(chipkit.MaxVolume/4).Mute().Ticks(10).
		Attack(chipkit.Note(84)).Emit(chipkit.OpMuteTicks, 4).Ticks(20).
		Repeat("beat", 8)
	return a.End().Assemble()
}

func sampler() ([]int32, error) {
	a := chipkit.NewAssembler().
		Emit(chipkit.OpSample, sampleVoiceTable).
		Volume(chipkit.MaxVolume/2).
		Label("bar").
		Attack(chipkit.Note(60)).Step(4).Mute().
		Repeat("bar", 4)
	return a.End().Assemble()
}
