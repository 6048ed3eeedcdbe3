package clock

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
)

// MaxDivisor bounds divider periods.
const MaxDivisor = 1 << 16

// Divider fires its callback once every divisor ticks of its group.
type Divider struct {
	divisor int
	counter int
	fn      Func
	group   *Group
	tk      Tick
}

// NewDivider returns a detached divider. divisor is clamped to [1, MaxDivisor].
func NewDivider(divisor int, fn Func) *Divider {
	d := &Divider{fn: fn}
	d.divisor = attr.Clamp(divisor, 1, MaxDivisor)
	d.counter = d.divisor - 1
	return d
}

// Divisor returns the divider period.
func (d *Divider) Divisor() int { return d.divisor }

// Counter returns ticks left before the next fire.
func (d *Divider) Counter() int { return d.counter }

// SetDivisor changes the period and restarts counting.
func (d *Divider) SetDivisor(divisor int) {
	d.divisor = attr.Clamp(divisor, 1, MaxDivisor)
	d.counter = d.divisor - 1
}

// Reset restarts counting; the next fire is divisor ticks away.
func (d *Divider) Reset() { d.counter = d.divisor - 1 }

// Attached reports whether the divider belongs to a group.
func (d *Divider) Attached() bool { return d.group != nil }

// Detach removes the divider from its group.
func (d *Divider) Detach() {
	if d.group != nil {
		d.group.Detach(d)
	}
}

func (d *Divider) tick() error {
	if d.counter > 0 {
		d.counter--
		return nil
	}
	d.tk = Tick{Divisor: d.divisor}
	var err error
	if d.fn != nil {
		err = d.fn(&d.tk)
	}
	if d.tk.Divisor > 0 {
		d.divisor = attr.Clamp(d.tk.Divisor, 1, MaxDivisor)
	}
	d.counter = d.divisor - 1
	return err
}

// SetAttr implements attr.Object.
func (d *Divider) SetAttr(key attr.Key, value int) error {
	if key != attr.Divisor {
		return fmt.Errorf("divider: %s: %w", key, errs.ErrInvalidAttribute)
	}
	d.SetDivisor(value)
	return nil
}

// Attr implements attr.Object.
func (d *Divider) Attr(key attr.Key) (int, error) {
	if key != attr.Divisor {
		return 0, fmt.Errorf("divider: %s: %w", key, errs.ErrInvalidAttribute)
	}
	return d.divisor, nil
}

// SetPtr implements attr.Object; dividers have no pointer attributes.
func (d *Divider) SetPtr(key attr.Key, _ any) error {
	return fmt.Errorf("divider: %s: %w", key, errs.ErrInvalidAttribute)
}

// Ptr implements attr.Object.
func (d *Divider) Ptr(key attr.Key) (any, error) {
	return nil, fmt.Errorf("divider: %s: %w", key, errs.ErrInvalidAttribute)
}

// Group is an ordered set of dividers ticked together, either by a clock or
// directly by its owner.
type Group struct {
	dividers []*Divider
	scratch  []*Divider
}

// Attach appends d. A divider already in a group is rejected and left
// untouched.
func (g *Group) Attach(d *Divider) error {
	if d.group != nil {
		return fmt.Errorf("divider: already attached: %w", errs.ErrInvalidState)
	}
	g.dividers = append(g.dividers, d)
	d.group = g
	d.Reset()
	return nil
}

// Detach removes d if it belongs to g.
func (g *Group) Detach(d *Divider) {
	if d.group != g {
		return
	}
	for i, o := range g.dividers {
		if o == d {
			copy(g.dividers[i:], g.dividers[i+1:])
			g.dividers[len(g.dividers)-1] = nil
			g.dividers = g.dividers[:len(g.dividers)-1]
			break
		}
	}
	d.group = nil
	d.Reset()
}

// Len returns the number of dividers.
func (g *Group) Len() int { return len(g.dividers) }

// Tick ticks every divider once in attachment order. A divider detached by
// an earlier callback in the same tick is skipped.
func (g *Group) Tick() error {
	if len(g.dividers) == 0 {
		return nil
	}
	if len(g.dividers) == 1 {
		return g.dividers[0].tick()
	}
	dividers := append(g.scratch[:0], g.dividers...)
	g.scratch = nil
	err := g.fire(dividers)
	clear(dividers)
	g.scratch = dividers[:0]
	return err
}

func (g *Group) fire(dividers []*Divider) error {
	for _, d := range dividers {
		if d.group != g {
			continue
		}
		if err := d.tick(); err != nil {
			return err
		}
	}
	return nil
}

// Reset restarts every divider's count.
func (g *Group) Reset() {
	for _, d := range g.dividers {
		d.Reset()
	}
}
