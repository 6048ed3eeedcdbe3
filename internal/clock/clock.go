// Package clock is the engine's scheduler: clocks fire at fixed-point
// periods, dividers attached to a clock fire every Nth clock tick, and a List
// advances a context's clocks together so simultaneous events keep their
// order.
package clock

import (
	"fmt"
	"math"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

// Never is the next-fire time of a clock without a period.
const Never = fixed.Time(math.MaxInt64)

// Tick is handed to clock and divider callbacks. A divider callback may set
// Divisor to change its next period; a clock callback may set Next to request
// a different next fire time.
type Tick struct {
	Divisor int
	Next    fixed.Time
}

// Func is a clock or divider callback. A non-nil error aborts the current
// scheduling round and is returned to the caller driving the clocks.
type Func func(t *Tick) error

// Clock fires its callback and its dividers once per period.
type Clock struct {
	period fixed.Time
	time   fixed.Time
	next   fixed.Time
	fn     Func
	group  Group
	list   *List
	tk     Tick
}

// NewClock returns a detached clock. A zero period never fires.
func NewClock(period fixed.Time, fn Func) *Clock {
	if period < 0 {
		period = 0
	}
	return &Clock{period: period, fn: fn, next: Never}
}

// Period returns the clock period.
func (c *Clock) Period() fixed.Time { return c.period }

// Time returns the time of the clock's last tick.
func (c *Clock) Time() fixed.Time { return c.time }

// NextTime returns when the clock fires next.
func (c *Clock) NextTime() fixed.Time { return c.next }

// Attached reports whether the clock belongs to a list.
func (c *Clock) Attached() bool { return c.list != nil }

// Dividers returns the clock's divider group.
func (c *Clock) Dividers() *Group { return &c.group }

// SetPeriod changes the period. On an attached clock a shorter period pulls
// the next fire time in and asks the list to restart its round.
func (c *Clock) SetPeriod(period fixed.Time) {
	if period < 0 {
		period = 0
	}
	c.period = period
	if c.list == nil {
		return
	}
	next := Never
	if period > 0 {
		next = c.time + period
		if next < c.list.time {
			next = c.list.time
		}
	}
	if next < c.next {
		c.list.reset = true
	}
	c.next = next
}

// Reset restarts the clock at the list's current time and resets its
// dividers.
func (c *Clock) Reset() {
	c.group.Reset()
	if c.list == nil {
		c.time = 0
		c.next = Never
		return
	}
	c.time = c.list.time
	c.next = c.list.time
	if c.period == 0 {
		c.next = Never
	}
}

func (c *Clock) tick() error {
	c.time = c.next
	c.tk = Tick{}
	if c.fn != nil {
		if err := c.fn(&c.tk); err != nil {
			c.advance(c.tk.Next)
			return err
		}
	}
	next := c.tk.Next
	err := c.group.Tick()
	c.advance(next)
	return err
}

func (c *Clock) advance(requested fixed.Time) {
	switch {
	case requested > c.time:
		c.next = requested
	case c.period > 0:
		c.next = c.time + c.period
	default:
		c.next = Never
	}
}

// SetAttr implements attr.Object.
func (c *Clock) SetAttr(key attr.Key, value int) error {
	switch key {
	case attr.Period:
		c.SetPeriod(fixed.Time(attr.Clamp(value, 0, math.MaxInt32)))
		return nil
	case attr.Time:
		return fmt.Errorf("clock: %s is read-only: %w", key, errs.ErrInvalidState)
	}
	return fmt.Errorf("clock: %s: %w", key, errs.ErrInvalidAttribute)
}

// Attr implements attr.Object.
func (c *Clock) Attr(key attr.Key) (int, error) {
	switch key {
	case attr.Period:
		return int(c.period), nil
	case attr.Time:
		return int(c.time), nil
	}
	return 0, fmt.Errorf("clock: %s: %w", key, errs.ErrInvalidAttribute)
}

// SetPtr implements attr.Object; clocks have no pointer attributes.
func (c *Clock) SetPtr(key attr.Key, _ any) error {
	return fmt.Errorf("clock: %s: %w", key, errs.ErrInvalidAttribute)
}

// Ptr implements attr.Object.
func (c *Clock) Ptr(key attr.Key) (any, error) {
	return nil, fmt.Errorf("clock: %s: %w", key, errs.ErrInvalidAttribute)
}

// List owns the clocks of one context in caller-chosen order.
type List struct {
	clocks  []*Clock
	scratch []*Clock
	time    fixed.Time
	reset   bool
}

// Attach inserts c at index (append when index is out of range). The clock
// fires first at the list's current time.
func (l *List) Attach(c *Clock, index int) error {
	if c.list != nil {
		return fmt.Errorf("clock: already attached: %w", errs.ErrInvalidState)
	}
	if index < 0 || index > len(l.clocks) {
		index = len(l.clocks)
	}
	l.clocks = append(l.clocks, nil)
	copy(l.clocks[index+1:], l.clocks[index:])
	l.clocks[index] = c
	c.list = l
	c.Reset()
	return nil
}

// Detach removes c and resets its dividers. Detaching a clock that is not in
// the list is a no-op.
func (l *List) Detach(c *Clock) {
	if c.list != l {
		return
	}
	for i, o := range l.clocks {
		if o == c {
			copy(l.clocks[i:], l.clocks[i+1:])
			l.clocks[len(l.clocks)-1] = nil
			l.clocks = l.clocks[:len(l.clocks)-1]
			break
		}
	}
	c.list = nil
	c.Reset()
}

// Len returns the number of attached clocks.
func (l *List) Len() int { return len(l.clocks) }

// Time returns the list's current time.
func (l *List) Time() fixed.Time { return l.time }

// NextTime returns the earliest next-fire time, or Never.
func (l *List) NextTime() fixed.Time {
	next := Never
	for _, c := range l.clocks {
		if c.next < next {
			next = c.next
		}
	}
	return next
}

// Tick fires every clock due at now, in list order. It reports reset when a
// callback pulled some clock's next fire time in; the caller must call Tick
// again at the same time before advancing.
func (l *List) Tick(now fixed.Time) (reset bool, err error) {
	l.time = now
	l.reset = false
	// A nested Tick from a callback finds scratch nil and allocates its own.
	clocks := append(l.scratch[:0], l.clocks...)
	l.scratch = nil
	reset, err = l.fire(clocks, now)
	clear(clocks)
	l.scratch = clocks[:0]
	return reset, err
}

func (l *List) fire(clocks []*Clock, now fixed.Time) (bool, error) {
	for _, c := range clocks {
		if c.list != l || c.next > now {
			continue
		}
		if err := c.tick(); err != nil {
			return l.reset, err
		}
		if l.reset {
			return true, nil
		}
	}
	return false, nil
}

// Shift moves every clock back by t, keeping times relative to the start of
// the next generation chunk.
func (l *List) Shift(t fixed.Time) {
	l.time -= t
	for _, c := range l.clocks {
		c.time -= t
		if c.next != Never {
			c.next -= t
		}
	}
}

// Rewind sets the list time to zero and restarts every clock there.
func (l *List) Rewind() {
	l.time = 0
	for _, c := range l.clocks {
		c.Reset()
	}
}
