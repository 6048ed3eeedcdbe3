package clock

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

// run drives l from time 0 through end (inclusive) the way a context does.
func run(t *testing.T, l *List, end fixed.Time) {
	t.Helper()
	for {
		now := l.NextTime()
		if now > end {
			return
		}
		for {
			reset, err := l.Tick(now)
			require.NoError(t, err)
			if !reset {
				break
			}
		}
	}
}

func TestDividerFiresEveryNthTick(t *testing.T) {
	var fired []int
	tick := 0
	var g Group
	d := NewDivider(3, func(*Tick) error {
		fired = append(fired, tick)
		return nil
	})
	require.NoError(t, g.Attach(d))
	for tick = 1; tick <= 10; tick++ {
		require.NoError(t, g.Tick())
		require.GreaterOrEqual(t, d.Counter(), 0)
		require.Less(t, d.Counter(), d.Divisor())
	}
	require.Equal(t, []int{3, 6, 9}, fired)
}

func TestDividerCallbackChangesDivisor(t *testing.T) {
	var fired []int
	tick := 0
	var g Group
	d := NewDivider(1, func(tk *Tick) error {
		fired = append(fired, tick)
		tk.Divisor = 4
		return nil
	})
	require.NoError(t, g.Attach(d))
	for tick = 1; tick <= 9; tick++ {
		require.NoError(t, g.Tick())
	}
	require.Equal(t, []int{1, 5, 9}, fired)
	require.Equal(t, 4, d.Divisor())
}

func TestDividerDoubleAttach(t *testing.T) {
	var a, b Group
	d := NewDivider(2, nil)
	require.NoError(t, a.Attach(d))
	err := b.Attach(d)
	require.True(t, errors.Is(err, errs.ErrInvalidState))
	require.Equal(t, 1, a.Len())
	require.Equal(t, 0, b.Len())

	d.Detach()
	require.False(t, d.Attached())
	require.Equal(t, 0, a.Len())
	require.NoError(t, b.Attach(d))
}

func TestDividerDetachedDuringTickIsSkipped(t *testing.T) {
	var g Group
	var hits []string
	second := NewDivider(1, func(*Tick) error {
		hits = append(hits, "second")
		return nil
	})
	first := NewDivider(1, func(*Tick) error {
		hits = append(hits, "first")
		second.Detach()
		return nil
	})
	require.NoError(t, g.Attach(first))
	require.NoError(t, g.Attach(second))
	require.NoError(t, g.Tick())
	require.Equal(t, []string{"first"}, hits)
}

func TestClockFiresAtPeriod(t *testing.T) {
	var l List
	var times []fixed.Time
	var c *Clock
	c = NewClock(100, func(*Tick) error {
		times = append(times, c.Time())
		return nil
	})
	require.NoError(t, l.Attach(c, -1))
	run(t, &l, 350)
	require.Equal(t, []fixed.Time{0, 100, 200, 300}, times)
	require.Equal(t, fixed.Time(400), l.NextTime())
}

func TestClockRequestsNextTime(t *testing.T) {
	var l List
	var times []fixed.Time
	var c *Clock
	c = NewClock(100, func(tk *Tick) error {
		times = append(times, c.Time())
		tk.Next = c.Time() + 30
		return nil
	})
	require.NoError(t, l.Attach(c, -1))
	run(t, &l, 100)
	require.Equal(t, []fixed.Time{0, 30, 60, 90}, times)
}

func TestZeroPeriodClockNeverFires(t *testing.T) {
	var l List
	fired := false
	c := NewClock(0, func(*Tick) error {
		fired = true
		return nil
	})
	require.NoError(t, l.Attach(c, -1))
	require.Equal(t, Never, l.NextTime())
	run(t, &l, 1000)
	require.False(t, fired)
}

func TestClockDividersShareTick(t *testing.T) {
	var l List
	var order []string
	c := NewClock(10, func(*Tick) error {
		order = append(order, "clock")
		return nil
	})
	beat := NewDivider(2, func(*Tick) error {
		order = append(order, "beat")
		return nil
	})
	effect := NewDivider(2, func(*Tick) error {
		order = append(order, "effect")
		return nil
	})
	require.NoError(t, c.Dividers().Attach(beat))
	require.NoError(t, c.Dividers().Attach(effect))
	require.NoError(t, l.Attach(c, -1))
	run(t, &l, 10)
	require.Equal(t, []string{"clock", "clock", "beat", "effect"}, order)
}

func TestListOrderAndReset(t *testing.T) {
	var l List
	var order []string
	slow := NewClock(100, func(*Tick) error {
		order = append(order, "slow")
		return nil
	})
	var fast *Clock
	fast = NewClock(50, func(*Tick) error {
		order = append(order, "fast")
		if fast.Time() == 50 {
			slow.SetPeriod(20)
		}
		return nil
	})
	require.NoError(t, l.Attach(slow, -1))
	require.NoError(t, l.Attach(fast, 0))

	reset, err := l.Tick(0)
	require.NoError(t, err)
	require.False(t, reset)
	require.Equal(t, []string{"fast", "slow"}, order)
	require.Equal(t, fixed.Time(50), l.NextTime())

	reset, err = l.Tick(50)
	require.NoError(t, err)
	require.True(t, reset)
	require.Equal(t, []string{"fast", "slow", "fast"}, order)
	require.Equal(t, fixed.Time(50), l.NextTime())

	reset, err = l.Tick(50)
	require.NoError(t, err)
	require.False(t, reset)
	require.Equal(t, []string{"fast", "slow", "fast", "slow"}, order)
	require.Equal(t, fixed.Time(70), l.NextTime())
}

func TestListAttachDetach(t *testing.T) {
	var a, b List
	c := NewClock(10, nil)
	d := NewDivider(3, nil)
	require.NoError(t, c.Dividers().Attach(d))
	require.NoError(t, a.Attach(c, -1))
	require.True(t, errors.Is(b.Attach(c, -1), errs.ErrInvalidState))
	require.Equal(t, 0, b.Len())

	run(t, &a, 10)
	require.Equal(t, 0, d.Counter())

	a.Detach(c)
	require.False(t, c.Attached())
	require.Equal(t, 2, d.Counter())
	require.Equal(t, Never, a.NextTime())
}

func TestShiftKeepsRelativeTimes(t *testing.T) {
	var l List
	c := NewClock(30, nil)
	require.NoError(t, l.Attach(c, -1))
	run(t, &l, 60)
	require.Equal(t, fixed.Time(90), l.NextTime())
	l.Shift(64)
	require.Equal(t, fixed.Time(26), l.NextTime())
	require.Equal(t, fixed.Time(-4), c.Time())
}

func TestCallbackErrorStopsRound(t *testing.T) {
	var l List
	boom := errors.New("boom")
	second := false
	require.NoError(t, l.Attach(NewClock(10, func(*Tick) error { return boom }), -1))
	require.NoError(t, l.Attach(NewClock(10, func(*Tick) error {
		second = true
		return nil
	}), -1))
	_, err := l.Tick(0)
	require.ErrorIs(t, err, boom)
	require.False(t, second)
	require.Equal(t, fixed.Time(0), l.NextTime())
}

func TestClockAttrs(t *testing.T) {
	c := NewClock(5, nil)
	require.NoError(t, c.SetAttr(attr.Period, -3))
	v, err := c.Attr(attr.Period)
	require.NoError(t, err)
	require.Equal(t, 0, v)
	require.True(t, errors.Is(c.SetAttr(attr.Time, 1), errs.ErrInvalidState))

	d := NewDivider(0, nil)
	require.Equal(t, 1, d.Divisor())
	require.NoError(t, d.SetAttr(attr.Divisor, 1<<20))
	require.Equal(t, MaxDivisor, d.Divisor())
}

func TestTickDoesNotAllocate(t *testing.T) {
	var l List
	fired := 0
	count := func(*Tick) error {
		fired++
		return nil
	}
	c := NewClock(10, count)
	for i := 0; i < 3; i++ {
		require.NoError(t, c.Dividers().Attach(NewDivider(1, count)))
	}
	require.NoError(t, l.Attach(c, -1))
	require.NoError(t, l.Attach(NewClock(10, nil), -1))

	now := fixed.Time(0)
	allocs := testing.AllocsPerRun(50, func() {
		_, _ = l.Tick(now)
		now += 10
	})
	require.Zero(t, allocs)
	require.Equal(t, 51*4, fired)
}

func TestNestedGroupTickKeepsOrder(t *testing.T) {
	var outer, inner Group
	var hits []string
	require.NoError(t, inner.Attach(NewDivider(1, func(*Tick) error {
		hits = append(hits, "inner a")
		return nil
	})))
	require.NoError(t, inner.Attach(NewDivider(1, func(*Tick) error {
		hits = append(hits, "inner b")
		return nil
	})))
	require.NoError(t, outer.Attach(NewDivider(1, func(*Tick) error {
		hits = append(hits, "outer a")
		return inner.Tick()
	})))
	require.NoError(t, outer.Attach(NewDivider(1, func(*Tick) error {
		hits = append(hits, "outer b")
		return nil
	})))
	for i := 0; i < 2; i++ {
		require.NoError(t, outer.Tick())
	}
	require.Equal(t, []string{
		"outer a", "inner a", "inner b", "outer b",
		"outer a", "inner a", "inner b", "outer b",
	}, hits)
}
