// Package synth renders units into interleaved 16-bit frames. A Context owns
// one band-limited buffer per channel, the units that write into them and the
// clocks that drive per-tick changes between samples.
package synth

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/blip"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

const (
	MinSampleRate     = 8000
	MaxSampleRate     = 192000
	DefaultSampleRate = 44100
	MaxChannels       = 8

	// MaxGenerateSamples is the largest chunk rendered between reads.
	MaxGenerateSamples = 1000

	// DefaultTickRate is the master clock rate in ticks per second.
	DefaultTickRate = 240
)

// Group selects one of the divider groups driven by the master clock.
type Group int

const (
	// GroupBeat dividers fire before GroupEffect dividers on a shared tick.
	GroupBeat Group = iota
	GroupEffect
)

// Context is a rendering target.
type Context struct {
	sampleRate  int
	numChannels int
	buffers     []*blip.Buffer
	units       []*Unit
	clocks      clock.List
	master      *clock.Clock
	groups      [2]clock.Group
	cursor      fixed.Time
	time        fixed.Time
}

// NewContext returns a context with the master clock ticking at
// DefaultTickRate.
func NewContext(sampleRate, numChannels int) (*Context, error) {
	if numChannels < 1 || numChannels > MaxChannels {
		return nil, fmt.Errorf("synth: %d channels: %w", numChannels, errs.ErrInvalidNumChannels)
	}
	if sampleRate < MinSampleRate || sampleRate > MaxSampleRate {
		return nil, fmt.Errorf("synth: sample rate %d: %w", sampleRate, errs.ErrInvalidValue)
	}
	c := &Context{
		sampleRate:  sampleRate,
		numChannels: numChannels,
		buffers:     make([]*blip.Buffer, numChannels),
	}
	for i := range c.buffers {
		c.buffers[i] = blip.NewBuffer(MaxGenerateSamples)
	}
	period := fixed.Time(int64(sampleRate) * fixed.Unit / DefaultTickRate)
	c.master = clock.NewClock(period, nil)
	for g := range c.groups {
		grp := &c.groups[g]
		if err := c.master.Dividers().Attach(clock.NewDivider(1, func(*clock.Tick) error {
			return grp.Tick()
		})); err != nil {
			return nil, err
		}
	}
	if err := c.clocks.Attach(c.master, 0); err != nil {
		return nil, err
	}
	return c, nil
}

// SampleRate returns the output rate.
func (c *Context) SampleRate() int { return c.sampleRate }

// NumChannels returns the number of interleaved channels.
func (c *Context) NumChannels() int { return c.numChannels }

// Time returns the number of fixed-point samples generated so far.
func (c *Context) Time() fixed.Time { return c.time + c.cursor }

// ClockPeriod returns the master clock period.
func (c *Context) ClockPeriod() fixed.Time { return c.master.Period() }

// SetClockPeriod changes the master clock period. Zero stops the clock.
func (c *Context) SetClockPeriod(p fixed.Time) { c.master.SetPeriod(p) }

// Units returns the attached units in attachment order.
func (c *Context) Units() []*Unit { return c.units }

// AttachDivider adds d to one of the master clock's groups.
func (c *Context) AttachDivider(d *clock.Divider, g Group) error {
	if g != GroupBeat && g != GroupEffect {
		return fmt.Errorf("synth: divider group %d: %w", g, errs.ErrInvalidValue)
	}
	if c.master.Period() == 0 {
		return fmt.Errorf("synth: master clock stopped: %w", errs.ErrInvalidValue)
	}
	return c.groups[g].Attach(d)
}

// AttachClock adds an extra clock after the master clock.
func (c *Context) AttachClock(cl *clock.Clock) error {
	return c.clocks.Attach(cl, -1)
}

// DetachClock removes a clock added with AttachClock.
func (c *Context) DetachClock(cl *clock.Clock) {
	if cl == c.master {
		return
	}
	c.clocks.Detach(cl)
}

// Run renders every unit up to end, firing clocks on the way. end is relative
// to the current chunk and may not exceed MaxGenerateSamples.
func (c *Context) Run(end fixed.Time) error {
	if end < c.cursor || end > fixed.FromSamples(MaxGenerateSamples) {
		return fmt.Errorf("synth: run to %d: %w", end, errs.ErrInvalidValue)
	}
	for {
		next := c.clocks.NextTime()
		if next >= end {
			break
		}
		if next < c.cursor {
			next = c.cursor
		}
		if err := c.runUnits(next); err != nil {
			return err
		}
		for {
			reset, err := c.clocks.Tick(next)
			if err != nil {
				return err
			}
			if !reset {
				break
			}
		}
	}
	return c.runUnits(end)
}

func (c *Context) runUnits(t fixed.Time) error {
	for _, u := range c.units {
		if err := u.Run(t); err != nil {
			return err
		}
	}
	c.cursor = t
	return nil
}

// End closes the current chunk at end: the rendered samples become readable
// and every clock and unit moves back by end.
func (c *Context) End(end fixed.Time) error {
	if end != c.cursor {
		if err := c.Run(end); err != nil {
			return err
		}
	}
	for _, b := range c.buffers {
		b.End(end)
	}
	for _, u := range c.units {
		u.End(end)
	}
	c.clocks.Shift(end)
	c.time += end
	c.cursor = 0
	return nil
}

// Read interlaces up to frames readable samples of every channel into out and
// returns the number of frames read.
func (c *Context) Read(out []int16, frames int) int {
	n := frames
	for ch, b := range c.buffers {
		if len(out) <= ch {
			return 0
		}
		if got := b.Read(out[ch:], n, c.numChannels); got < n {
			n = got
		}
	}
	return n
}

// Generate renders frames interleaved frames into out and returns the number
// written.
func (c *Context) Generate(out []int16, frames int) (int, error) {
	if frames < 0 || len(out) < frames*c.numChannels {
		return 0, fmt.Errorf("synth: %d frames into %d values: %w", frames, len(out), errs.ErrInvalidNumFrames)
	}
	done := 0
	for done < frames {
		n := min(frames-done, MaxGenerateSamples)
		end := fixed.FromSamples(n)
		if err := c.Run(end); err != nil {
			return done, err
		}
		if err := c.End(end); err != nil {
			return done, err
		}
		done += c.Read(out[done*c.numChannels:], n)
	}
	return done, nil
}

// GenerateToTime renders until the context time reaches t, handing each chunk
// of interleaved frames to sink. A sink error stops generation and is
// returned wrapped in errs.ErrInvalidReturnValue.
func (c *Context) GenerateToTime(t fixed.Time, sink func(frames []int16) error) error {
	buf := make([]int16, MaxGenerateSamples*c.numChannels)
	for {
		left := (t - c.Time()).Ceil()
		if left <= 0 {
			return nil
		}
		n, err := c.Generate(buf, min(left, MaxGenerateSamples))
		if err != nil {
			return err
		}
		if err := sink(buf[:n*c.numChannels]); err != nil {
			return fmt.Errorf("synth: sink: %w: %w", errs.ErrInvalidReturnValue, err)
		}
	}
}

// Reset clears all buffered output, silences every unit and restarts the
// clocks at time zero.
func (c *Context) Reset() {
	for _, b := range c.buffers {
		b.Clear()
	}
	c.cursor = 0
	c.time = 0
	for _, u := range c.units {
		u.last = [MaxChannels]int{}
		u.Reset()
	}
	c.clocks.Rewind()
}

// Dispose detaches every unit.
func (c *Context) Dispose() {
	for len(c.units) > 0 {
		c.units[len(c.units)-1].Detach()
	}
}

// SetAttr implements attr.Object.
func (c *Context) SetAttr(key attr.Key, value int) error {
	switch key {
	case attr.ClockPeriod:
		if value < 0 {
			return fmt.Errorf("synth: %s %d: %w", key, value, errs.ErrInvalidValue)
		}
		c.SetClockPeriod(fixed.Time(value))
		return nil
	case attr.SampleRate, attr.NumChannels, attr.Time:
		return fmt.Errorf("synth: %s is read-only: %w", key, errs.ErrInvalidState)
	}
	return fmt.Errorf("synth: %s: %w", key, errs.ErrInvalidAttribute)
}

// Attr implements attr.Object.
func (c *Context) Attr(key attr.Key) (int, error) {
	switch key {
	case attr.SampleRate:
		return c.sampleRate, nil
	case attr.NumChannels:
		return c.numChannels, nil
	case attr.ClockPeriod:
		return int(c.master.Period()), nil
	case attr.Time:
		return int(c.Time()), nil
	}
	return 0, fmt.Errorf("synth: %s: %w", key, errs.ErrInvalidAttribute)
}

// SetPtr implements attr.Object; contexts have no pointer attributes.
func (c *Context) SetPtr(key attr.Key, _ any) error {
	return fmt.Errorf("synth: %s: %w", key, errs.ErrInvalidAttribute)
}

// Ptr implements attr.Object.
func (c *Context) Ptr(key attr.Key) (any, error) {
	return nil, fmt.Errorf("synth: %s: %w", key, errs.ErrInvalidAttribute)
}
