package vm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
	"github.com/cbegin/chipkit-go/internal/instrument"
	"github.com/cbegin/chipkit-go/internal/synth"
	"github.com/cbegin/chipkit-go/internal/track"
)

// recorder logs every attribute write.
type recorder struct {
	calls []string
	notes []int
}

func (r *recorder) SetAttr(key attr.Key, value int) error {
	r.calls = append(r.calls, fmt.Sprintf("%s=%d", key, value))
	if key == attr.Note {
		r.notes = append(r.notes, value)
	}
	return nil
}

func (r *recorder) Attr(attr.Key) (int, error) { return 0, nil }

func (r *recorder) SetPtr(key attr.Key, value any) error {
	r.calls = append(r.calls, fmt.Sprintf("%s=%v", key, value))
	return nil
}

func (r *recorder) Ptr(attr.Key) (any, error) { return nil, nil }

func assemble(t *testing.T, a *Assembler) []int32 {
	t.Helper()
	code, err := a.Assemble()
	require.NoError(t, err)
	return code
}

// nested builds a program that calls depth levels deep and unwinds.
func nested(depth int) *Assembler {
	a := NewAssembler().Call("l0").Ticks(1).End()
	for i := 0; i < depth-1; i++ {
		a.Label(fmt.Sprintf("l%d", i)).Call(fmt.Sprintf("l%d", i+1)).Return()
	}
	return a.Label(fmt.Sprintf("l%d", depth-1)).Return()
}

func TestCallReturnRestoresPC(t *testing.T) {
	for _, depth := range []int{1, 2, 17, StackSize} {
		t.Run(fmt.Sprint(depth), func(t *testing.T) {
			in := New(assemble(t, nested(depth)), nil)
			ticks, err := in.Advance(&recorder{})
			require.NoError(t, err)
			require.Equal(t, 1, ticks)
			require.Equal(t, 4, in.PC())
			require.Equal(t, 0, in.Depth())
			require.Equal(t, 0, in.Faults())
		})
	}
}

func TestStackOverflowIsSkipped(t *testing.T) {
	code := assemble(t, nested(StackSize+1))
	in := New(code, nil)
	_, err := in.Advance(&recorder{})
	require.NoError(t, err)
	require.Equal(t, 4, in.PC())
	require.Equal(t, 1, in.Faults())

	strict := New(code, nil, WithStrictStack())
	_, err = strict.Advance(&recorder{})
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestReturnWithEmptyStack(t *testing.T) {
	code := assemble(t, NewAssembler().Return().Ticks(3))
	in := New(code, nil)
	ticks, err := in.Advance(&recorder{})
	require.NoError(t, err)
	require.Equal(t, 3, ticks)
	require.Equal(t, 1, in.Faults())

	_, err = New(code, nil, WithStrictStack()).Advance(&recorder{})
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestDelayedAttackStagesNote(t *testing.T) {
	c4 := fixed.Note(fixed.C4)
	code := assemble(t, NewAssembler().
		Emit(OpAttackTicks, 3).
		Attack(c4).
		Emit(OpArpeggio, 0, fixed.Note(7)).
		Ticks(10).
		Release().
		Ticks(1))
	tr := track.New()
	in := New(code, nil)

	ticks, err := in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, 3, ticks)
	require.Equal(t, track.NoteMuted, tr.State())
	require.Empty(t, tr.Arpeggio())
	require.Equal(t, [4]int{3, -1, -1, 10}, in.Pending())

	pc := in.PC()
	ticks, err = in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, 7, ticks)
	require.Equal(t, pc, in.PC())
	require.Equal(t, track.NoteAttacking, tr.State())
	require.Equal(t, c4, tr.Note())
	require.Equal(t, []int{0, fixed.Note(7)}, tr.Arpeggio())

	ticks, err = in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, 1, ticks)
	require.Equal(t, track.NoteMuted, tr.State())
}

func TestScheduledReleaseAndMute(t *testing.T) {
	rec := &recorder{}
	code := assemble(t, NewAssembler().
		Attack(fixed.Note(60)).
		Emit(OpReleaseTicks, 2).
		Emit(OpMuteTicks, 5).
		Ticks(8))
	in := New(code, nil)

	ticks, err := in.Advance(rec)
	require.NoError(t, err)
	require.Equal(t, 2, ticks)
	ticks, err = in.Advance(rec)
	require.NoError(t, err)
	require.Equal(t, 3, ticks)
	ticks, err = in.Advance(rec)
	require.NoError(t, err)
	require.Equal(t, 3, ticks)
	require.Equal(t, []int{fixed.Note(60), NoteRelease, NoteMute}, rec.notes)
}

func TestZeroTickEventsFireImmediately(t *testing.T) {
	rec := &recorder{}
	code := assemble(t, NewAssembler().Emit(OpAttackTicks, 0).Attack(fixed.Note(50)).Ticks(4))
	ticks, err := New(code, nil).Advance(rec)
	require.NoError(t, err)
	require.Equal(t, 4, ticks)
	require.Equal(t, []int{fixed.Note(50)}, rec.notes)
}

func TestStepTicks(t *testing.T) {
	code := assemble(t, NewAssembler().Step(1).Emit(OpStepTicks, 6).Step(2).Step(0))
	in := New(code, nil)
	want := []int{DefaultStepTicks, 12, 1}
	for i, w := range want {
		ticks, err := in.Advance(&recorder{})
		require.NoError(t, err)
		require.Equal(t, w, ticks, "advance %d", i)
	}

	in = New(code, nil, WithStepTicks(10))
	ticks, err := in.Advance(&recorder{})
	require.NoError(t, err)
	require.Equal(t, 10, ticks)
}

func TestEndHalts(t *testing.T) {
	code := assemble(t, NewAssembler().Attack(fixed.Note(fixed.C4)).Ticks(2).End())
	tr := track.New()
	in := New(code, nil)

	ticks, err := in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, 2, ticks)
	require.Equal(t, track.NoteAttacking, tr.State())

	ticks, err = in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, MaxTicks, ticks)
	require.True(t, in.Ended())
	require.Equal(t, track.NoteMuted, tr.State())
	require.Equal(t, 4, in.PC())

	for i := 0; i < 3; i++ {
		_, err = in.Advance(tr)
		require.NoError(t, err)
		require.Equal(t, 4, in.PC())
	}

	in.Reset()
	require.False(t, in.Ended())
	require.Equal(t, 0, in.PC())
}

func TestRunningOffTheEndHalts(t *testing.T) {
	rec := &recorder{}
	in := New(assemble(t, NewAssembler().Volume(100)), nil)
	_, err := in.Advance(rec)
	require.NoError(t, err)
	require.True(t, in.Ended())
	require.Equal(t, []int{NoteMute}, rec.notes)
}

func TestRepeat(t *testing.T) {
	rec := &recorder{}
	code := assemble(t, NewAssembler().
		Label("loop").
		Attack(fixed.Note(48)).
		Ticks(1).
		Repeat("loop", 3).
		End())
	in := New(code, nil)
	for i := 0; i < 10 && !in.Ended(); i++ {
		_, err := in.Advance(rec)
		require.NoError(t, err)
	}
	require.True(t, in.Ended())
	require.Equal(t, []int{fixed.Note(48), fixed.Note(48), fixed.Note(48), NoteMute}, rec.notes)
}

func TestJumpLoopsForever(t *testing.T) {
	rec := &recorder{}
	code := assemble(t, NewAssembler().Label("top").Attack(fixed.Note(40)).Ticks(1).Jump("top"))
	in := New(code, nil)
	for i := 0; i < 5; i++ {
		_, err := in.Advance(rec)
		require.NoError(t, err)
	}
	require.Len(t, rec.notes, 5)
	require.False(t, in.Ended())
}

func TestRunawayProgram(t *testing.T) {
	code := assemble(t, NewAssembler().Label("spin").Emit(OpNop).Jump("spin"))
	_, err := New(code, nil).Advance(&recorder{})
	require.True(t, errors.Is(err, errs.ErrInvalidState))
}

func TestMalformedPrograms(t *testing.T) {
	cases := []struct {
		name string
		code []int32
	}{
		{"UnknownOpcode", []int32{999}},
		{"NegativeOpcode", []int32{-1}},
		{"Truncated", []int32{int32(OpSampleRange), 1}},
		{"TruncatedArpeggio", []int32{int32(OpArpeggio), 3, 0}},
		{"JumpOutOfRange", []int32{int32(OpJump), 50}},
		{"UnknownEffect", []int32{int32(OpEffect), 42, 0, 0, 0}},
		{"MissingInstrument", []int32{int32(OpInstrument), 2}},
		{"MissingSample", []int32{int32(OpSample), 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.code, nil).Advance(&recorder{})
			require.True(t, errors.Is(err, errs.ErrInvalidValue), "%v", err)
		})
	}
}

func TestTrackErrorsPropagate(t *testing.T) {
	code := assemble(t, NewAssembler().Waveform(99).Ticks(1))
	_, err := New(code, nil).Advance(track.New())
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
}

func TestTablesAndEffects(t *testing.T) {
	in1 := instrument.New()
	wave, err := synth.NewDataFrames([]int16{-1000, 1000, 2000, -2000}, 1)
	require.NoError(t, err)
	tables := &Tables{
		Instruments: []*instrument.Instrument{in1},
		Waveforms:   []*synth.Data{wave},
	}
	code := assemble(t, NewAssembler().
		Instrument(0).
		Emit(OpCustomWaveform, 0).
		Effect(EffectPortamento, 6).
		Effect(EffectVibrato, 8, fixed.Note(1), 2).
		Emit(OpDutyCycle, 8).
		Emit(OpPanning, -100).
		Ticks(1).
		Instrument(-1).
		Ticks(1))
	tr := track.New()
	in := New(code, tables)

	_, err = in.Advance(tr)
	require.NoError(t, err)
	require.Same(t, in1, tr.Instrument())
	require.Equal(t, synth.WaveformCustom, tr.Unit().Waveform())
	require.Equal(t, 4, tr.Unit().NumPhases())
	v, err := tr.Attr(attr.EffectPortamento)
	require.NoError(t, err)
	require.Equal(t, 6, v)
	p, err := tr.Ptr(attr.EffectVibrato)
	require.NoError(t, err)
	require.Equal(t, []int{8, fixed.Note(1), 2}, p)
	v, err = tr.Attr(attr.DutyCycle)
	require.NoError(t, err)
	require.Equal(t, 8, v)
	v, err = tr.Attr(attr.Panning)
	require.NoError(t, err)
	require.Equal(t, -100, v)

	_, err = in.Advance(tr)
	require.NoError(t, err)
	require.Nil(t, tr.Instrument())
}

func TestAssemblerErrors(t *testing.T) {
	_, err := NewAssembler().Jump("nowhere").Assemble()
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	_, err = NewAssembler().Emit(OpSampleRange, 1).Assemble()
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	_, err = NewAssembler().Label("a").Label("a").Assemble()
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	_, err = NewAssembler().Emit(Op(500)).Assemble()
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
	_, err = NewAssembler().Effect(EffectTremolo, 1, 2, 3, 4).Assemble()
	require.True(t, errors.Is(err, errs.ErrInvalidValue))
}

func TestAssemblerLayout(t *testing.T) {
	code := assemble(t, NewAssembler().
		Emit(OpArpeggio, 1, 2).
		Label("x").
		Repeat("x", 4).
		Call("x"))
	require.Equal(t, []int32{
		int32(OpArpeggio), 2, 1, 2,
		int32(OpRepeat), 4, 4,
		int32(OpCall), 4,
	}, code)
}

func TestSampleReversePlaysBackwards(t *testing.T) {
	smp, err := synth.NewDataFrames([]int16{0, 1000, 2000, 3000}, 1)
	require.NoError(t, err)
	code := assemble(t, NewAssembler().
		Emit(OpSample, 0).
		Emit(OpSampleReverse, 1).
		Attack(fixed.Note(fixed.C4+12)).
		Ticks(1).
		Emit(OpSampleReverse, 0).
		Ticks(1))
	tr := track.New()
	in := New(code, &Tables{Samples: []*synth.Data{smp}})

	_, err = in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, int64(-2*fixed.Unit), tr.Unit().SamplePeriod())

	_, err = in.Advance(tr)
	require.NoError(t, err)
	require.Equal(t, int64(2*fixed.Unit), tr.Unit().SamplePeriod())
}
