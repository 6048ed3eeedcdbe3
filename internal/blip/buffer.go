// Package blip accumulates band-limited amplitude steps and integrates them
// into 16-bit samples.
//
// Oscillators never write samples directly. Each change of output level is a
// step at a fixed-point time; the step is smeared over StepWidth cells with a
// windowed-sinc kernel chosen by the time's sub-sample phase, so square edges
// land between samples without aliasing. Read integrates the cells and bleeds
// off DC with a one-pole high-pass.
package blip

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

const (
	// StepBits is the number of sub-sample phase bits used to pick a kernel.
	StepBits = 5
	// StepUnit is the number of kernel phases.
	StepUnit = 1 << StepBits
	// StepWidth is the number of cells a pulse touches.
	StepWidth = 16
	// KernelBits is the precision of every kernel phase; the taps of one
	// phase sum to 1<<KernelBits.
	KernelBits = 10
	// HighPassShift sets the DC leak of the integrator.
	HighPassShift = 9
)

// Buffer is one channel's accumulation ring.
type Buffer struct {
	cells []int32
	avail int
	accum int64
}

// NewBuffer returns a buffer able to hold capacity readable samples plus the
// kernel overhang.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{cells: make([]int32, capacity+2*StepWidth)}
}

// Capacity returns the number of samples that can be made readable at once.
func (b *Buffer) Capacity() int { return len(b.cells) - 2*StepWidth }

// Available returns the number of samples ready for Read.
func (b *Buffer) Available() int { return b.avail }

// AddPulse adds an amplitude step of delta at t.
func (b *Buffer) AddPulse(t fixed.Time, delta int) error {
	if delta == 0 {
		return nil
	}
	off := int(t >> fixed.Shift)
	if t < 0 || off+StepWidth > len(b.cells) {
		return fmt.Errorf("blip: pulse at sample %d outside buffer: %w", off, errs.ErrInvalidState)
	}
	phase := int(t>>(fixed.Shift-StepBits)) & (StepUnit - 1)
	k := &kernel[phase]
	cells := b.cells[off : off+StepWidth]
	d := int32(delta)
	for i := range cells {
		cells[i] += k[i] * d
	}
	return nil
}

// AddFrame adds delta at the sample holding t without band-limiting. Sample
// playback writes its frames this way.
func (b *Buffer) AddFrame(t fixed.Time, delta int) error {
	if delta == 0 {
		return nil
	}
	off := int(t >> fixed.Shift)
	if t < 0 || off >= len(b.cells) {
		return fmt.Errorf("blip: frame at sample %d outside buffer: %w", off, errs.ErrInvalidState)
	}
	b.cells[off] += int32(delta) << KernelBits
	return nil
}

// End makes every sample before t readable.
func (b *Buffer) End(t fixed.Time) {
	n := int(t >> fixed.Shift)
	if n < 0 {
		n = 0
	}
	if n > len(b.cells) {
		n = len(b.cells)
	}
	if n > b.avail {
		b.avail = n
	}
}

// Read integrates up to size readable samples into out, writing one every
// stride slots so channels can be interlaced. It returns the number of
// samples consumed.
func (b *Buffer) Read(out []int16, size, stride int) int {
	if stride < 1 {
		stride = 1
	}
	n := size
	if n > b.avail {
		n = b.avail
	}
	if room := (len(out) + stride - 1) / stride; n > room {
		n = room
	}
	if n <= 0 {
		return 0
	}
	accum := b.accum
	for i := 0; i < n; i++ {
		accum -= accum >> HighPassShift
		accum += int64(b.cells[i])
		s := accum >> KernelBits
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		out[i*stride] = int16(s)
	}
	b.accum = accum

	copy(b.cells, b.cells[n:])
	clear(b.cells[len(b.cells)-n:])
	b.avail -= n
	return n
}

// Clear drops all pending pulses and the integrator state.
func (b *Buffer) Clear() {
	clear(b.cells)
	b.avail = 0
	b.accum = 0
}
