package sequence

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbegin/chipkit-go/internal/errs"
)

func collect(st *State, level Level, n int) []int {
	out := make([]int, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, st.Value(-1))
		st.Step(level)
	}
	return out
}

func TestNewSimpleValidation(t *testing.T) {
	cases := []struct {
		name   string
		values []int
		off    int
		length int
	}{
		{"Empty", nil, 0, 0},
		{"NegativeOffset", []int{1}, -1, 0},
		{"PastEnd", []int{1, 2}, 1, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewSimple(tc.values, tc.off, tc.length)
			require.True(t, errors.Is(err, errs.ErrInvalidValue))
		})
	}
}

func TestSimpleSustainLoop(t *testing.T) {
	seq, err := NewSimple([]int{1, 2, 3, 4, 5}, 1, 2)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	require.Equal(t, []int{1, 2, 3, 2, 3, 2}, collect(&st, LevelInstrument, 6))

	st.Release()
	require.Equal(t, PhaseRelease, st.Phase())
	require.Equal(t, []int{4, 5}, collect(&st, LevelInstrument, 2))
	require.True(t, st.Ended())
	require.Equal(t, PhaseMute, st.Phase())
	require.Equal(t, 5, st.Value(-1))
}

func TestSimpleIgnoresTickLevel(t *testing.T) {
	seq, err := NewSimple([]int{7, 8}, 2, 0)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	require.Equal(t, []int{7, 7, 7}, collect(&st, LevelTick, 3))
}

func TestSimpleHoldsWithoutSustain(t *testing.T) {
	seq, err := NewSimple([]int{9, 6, 3}, 3, 0)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	require.Equal(t, []int{9, 6, 3, 3, 3}, collect(&st, LevelInstrument, 5))
	st.Release()
	require.True(t, st.Ended())
}

func TestStateWithoutSequenceUsesDefault(t *testing.T) {
	var st State
	st.Attack()
	st.Step(LevelInstrument)
	require.Equal(t, 42, st.Value(42))
	require.Equal(t, PhaseMute, st.Phase())
}

func TestEnvelopeRampsAndLoops(t *testing.T) {
	seq, err := NewEnvelope([]Segment{
		{Steps: 4, Value: 400},
		{Steps: 2, Value: 200},
		{Steps: 2, Value: 400},
		{Steps: 4, Value: 0},
	}, 1, 2)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	got := collect(&st, LevelTick, 12)
	require.Equal(t, []int{0, 100, 200, 300, 400, 300, 200, 300, 400, 300, 200, 300}, got)

	st.Release()
	rel := collect(&st, LevelTick, 6)
	require.Equal(t, 0, rel[len(rel)-1])
	for i := 1; i < len(rel); i++ {
		require.LessOrEqual(t, rel[i], rel[i-1])
	}
	require.True(t, st.Ended())
}

func TestEnvelopeIgnoresInstrumentLevel(t *testing.T) {
	seq, err := NewEnvelope([]Segment{{Steps: 2, Value: 10}}, 1, 0)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	st.Step(LevelInstrument)
	require.Equal(t, 0, st.Value(0))
}

func TestMuteFreezes(t *testing.T) {
	seq, err := NewSimple([]int{1, 2, 3}, 3, 0)
	require.NoError(t, err)
	var st State
	st.SetSequence(seq)
	st.Attack()
	st.Step(LevelInstrument)
	st.Mute()
	st.Step(LevelInstrument)
	require.Equal(t, 2, st.Value(0))
	require.False(t, st.Ended())
}
