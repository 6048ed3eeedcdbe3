package interpolate

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSlideJumpsWithoutSteps(t *testing.T) {
	var s Slide
	s.SetValue(100)
	require.Equal(t, 100, s.Value())
	require.False(t, s.Sliding())
}

func TestSlideConvergesMonotonically(t *testing.T) {
	var s Slide
	s.Jump(57 << 20)
	s.SetSteps(10)
	s.SetValue(69 << 20)

	prev := s.Value()
	for i := 0; i < 10; i++ {
		s.Step()
		require.Greater(t, s.Value(), prev, "step %d", i)
		prev = s.Value()
	}
	require.Equal(t, 69<<20, s.Value())
	require.False(t, s.Sliding())
}

func TestSlideDownward(t *testing.T) {
	var s Slide
	s.Jump(1000)
	s.SetSteps(4)
	s.SetValue(0)
	vals := []int{}
	for s.Sliding() {
		s.Step()
		vals = append(vals, s.Value())
	}
	require.Equal(t, []int{750, 500, 250, 0}, vals)
}

func TestSlideHaltKeepsCurrent(t *testing.T) {
	var s Slide
	s.Jump(0)
	s.SetSteps(4)
	s.SetValue(400)
	s.Step()
	s.Halt()
	require.Equal(t, 100, s.Value())
	require.Equal(t, 100, s.Target())
	s.Step()
	require.Equal(t, 100, s.Value())
}

func TestSlideRetimeToZeroFinishes(t *testing.T) {
	var s Slide
	s.SetSteps(8)
	s.SetValue(800)
	s.Step()
	s.SetSteps(0)
	require.Equal(t, 800, s.Value())
}

func TestIntervalBounded(t *testing.T) {
	var iv Interval
	iv.Set(16, 1000, 0)
	lo, hi := 0, 0
	for i := 0; i < 64; i++ {
		v := iv.Value()
		require.LessOrEqual(t, v, 1000)
		require.GreaterOrEqual(t, v, -1000)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
		iv.Step()
	}
	require.Equal(t, 1000, hi)
	require.Equal(t, -1000, lo)
}

func TestIntervalPeriodic(t *testing.T) {
	var iv Interval
	iv.Set(12, 300, 0)
	first := make([]int, 12)
	for i := range first {
		first[i] = iv.Value()
		iv.Step()
	}
	for i := range first {
		require.Equal(t, first[i], iv.Value())
		iv.Step()
	}
}

func TestIntervalFadesIn(t *testing.T) {
	var iv Interval
	iv.Set(4, 400, 8)
	require.True(t, iv.Active())
	_, delta, slide := iv.Params()
	require.Equal(t, 400, delta)
	require.Equal(t, 8, slide)
	for i := 0; i < 8; i++ {
		iv.Step()
	}
	// after the fade the amplitude reaches the target at the next peak
	iv.Step()
	require.Equal(t, 400, iv.Value())
}

func TestIntervalInactiveByDefault(t *testing.T) {
	var iv Interval
	require.False(t, iv.Active())
	require.Equal(t, 0, iv.Value())
	iv.Step()
	require.Equal(t, 0, iv.Value())
}

func TestIntervalAmplitudeFadesOut(t *testing.T) {
	var iv Interval
	iv.Set(8, 800, 0)
	require.Equal(t, 800, iv.Amplitude())

	iv.Set(8, 0, 4)
	_, delta, _ := iv.Params()
	require.Equal(t, 0, delta)
	require.Equal(t, 800, iv.Amplitude())
	for i := 0; i < 4; i++ {
		iv.Step()
		require.LessOrEqual(t, iv.Value(), iv.Amplitude())
		require.GreaterOrEqual(t, iv.Value(), -iv.Amplitude())
	}
	require.Equal(t, 0, iv.Amplitude())
}
