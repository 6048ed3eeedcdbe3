package instrument

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/sequence"
)

func mustSimple(t *testing.T, values []int, off, length int) *sequence.Sequence {
	t.Helper()
	seq, err := sequence.NewSimple(values, off, length)
	require.NoError(t, err)
	return seq
}

func TestStateFollowsInstrument(t *testing.T) {
	in := New()
	require.NoError(t, in.SetSequence(SlotVolume, mustSimple(t, []int{100, 50, 0}, 1, 1)))

	var st State
	require.NoError(t, st.SetInstrument(in))
	require.Equal(t, 1, in.NumObservers())
	require.True(t, st.Has(SlotVolume))
	require.False(t, st.Has(SlotPanning))

	st.Attack()
	require.Equal(t, 100, st.Value(SlotVolume, -1))
	st.Step(sequence.LevelInstrument)
	require.Equal(t, 50, st.Value(SlotVolume, -1))
	st.Step(sequence.LevelInstrument)
	require.Equal(t, 50, st.Value(SlotVolume, -1))
	require.False(t, st.Finished())

	st.Release()
	require.Equal(t, 0, st.Value(SlotVolume, -1))
	st.Step(sequence.LevelInstrument)
	require.True(t, st.Finished())
}

func TestReplaceSequenceRestartsHeldNote(t *testing.T) {
	in := New()
	var st State
	require.NoError(t, st.SetInstrument(in))
	st.Attack()
	require.Equal(t, 7, st.Value(SlotArpeggio, 7))

	require.NoError(t, in.SetSequence(SlotArpeggio, mustSimple(t, []int{0, 4, 7}, 0, 3)))
	require.Equal(t, 0, st.Value(SlotArpeggio, 7))
	st.Step(sequence.LevelInstrument)
	require.Equal(t, 4, st.Value(SlotArpeggio, 7))
}

func TestDisposeDetachesStates(t *testing.T) {
	in := New()
	require.NoError(t, in.SetSequence(SlotVolume, mustSimple(t, []int{1}, 1, 0)))
	var a, b State
	require.NoError(t, a.SetInstrument(in))
	require.NoError(t, b.SetInstrument(in))
	require.Equal(t, 2, in.NumObservers())

	in.Dispose()
	require.Nil(t, a.Instrument())
	require.Nil(t, b.Instrument())
	require.False(t, a.Has(SlotVolume))
	require.Equal(t, 0, in.NumObservers())

	err := in.SetSequence(SlotVolume, nil)
	require.True(t, errors.Is(err, errs.ErrInvalidState))
	require.True(t, errors.Is(a.SetInstrument(in), errs.ErrInvalidState))
}

func TestSwitchingUnsubscribes(t *testing.T) {
	x, y := New(), New()
	var st State
	require.NoError(t, st.SetInstrument(x))
	require.NoError(t, st.SetInstrument(y))
	require.Equal(t, 0, x.NumObservers())
	require.Equal(t, 1, y.NumObservers())
	require.NoError(t, st.SetInstrument(nil))
	require.Equal(t, 0, y.NumObservers())
}

func TestFinishedWithoutVolumeSequence(t *testing.T) {
	in := New()
	require.NoError(t, in.SetSequence(SlotPitch, mustSimple(t, []int{0, 1}, 1, 1)))
	var st State
	require.NoError(t, st.SetInstrument(in))
	st.Attack()
	require.False(t, st.Finished())
	st.Release()
	require.True(t, st.Finished())
}

func TestInvalidSlot(t *testing.T) {
	in := New()
	require.True(t, errors.Is(in.SetSequence(NumSlots, nil), errs.ErrInvalidValue))
	require.Nil(t, in.Sequence(-1))
}
