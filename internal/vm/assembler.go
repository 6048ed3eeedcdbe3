package vm

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/errs"
)

type fixup struct {
	at    int
	label string
}

// Assembler builds a program with symbolic jump targets. Methods chain; the
// first error is kept and returned by Assemble.
type Assembler struct {
	code   []int32
	labels map[string]int
	fixups []fixup
	err    error
}

func NewAssembler() *Assembler {
	return &Assembler{labels: map[string]int{}}
}

// Pos returns the address the next opcode will have.
func (a *Assembler) Pos() int { return len(a.code) }

// Label names the current position.
func (a *Assembler) Label(name string) *Assembler {
	if _, ok := a.labels[name]; ok {
		a.fail(fmt.Errorf("vm: duplicate label %q: %w", name, errs.ErrInvalidValue))
		return a
	}
	a.labels[name] = len(a.code)
	return a
}

// Emit appends op with its operands. OpArpeggio takes the offsets only; the
// count is written for it.
func (a *Assembler) Emit(op Op, args ...int) *Assembler {
	if !op.Valid() {
		a.fail(fmt.Errorf("vm: opcode %d: %w", op, errs.ErrInvalidValue))
		return a
	}
	want := opInfo[op].args
	if want == variadic {
		a.code = append(a.code, int32(op), int32(len(args)))
	} else {
		if len(args) != want {
			a.fail(fmt.Errorf("vm: %s takes %d operands, got %d: %w", op, want, len(args), errs.ErrInvalidValue))
			return a
		}
		a.code = append(a.code, int32(op))
	}
	for _, v := range args {
		a.code = append(a.code, int32(v))
	}
	return a
}

func (a *Assembler) branch(op Op, label string, extra ...int) *Assembler {
	a.code = append(a.code, int32(op))
	a.fixups = append(a.fixups, fixup{at: len(a.code), label: label})
	a.code = append(a.code, 0)
	for _, v := range extra {
		a.code = append(a.code, int32(v))
	}
	return a
}

// Call emits a call to label.
func (a *Assembler) Call(label string) *Assembler { return a.branch(OpCall, label) }

// Jump emits a jump to label.
func (a *Assembler) Jump(label string) *Assembler { return a.branch(OpJump, label) }

// Repeat emits a loop back to label that runs the body count times in total.
func (a *Assembler) Repeat(label string, count int) *Assembler {
	return a.branch(OpRepeat, label, count)
}

func (a *Assembler) Attack(note int) *Assembler  { return a.Emit(OpAttack, note) }
func (a *Assembler) Release() *Assembler         { return a.Emit(OpRelease) }
func (a *Assembler) Mute() *Assembler            { return a.Emit(OpMute) }
func (a *Assembler) Step(n int) *Assembler       { return a.Emit(OpStep, n) }
func (a *Assembler) Ticks(n int) *Assembler      { return a.Emit(OpTicks, n) }
func (a *Assembler) Return() *Assembler          { return a.Emit(OpReturn) }
func (a *Assembler) End() *Assembler             { return a.Emit(OpEnd) }
func (a *Assembler) Volume(v int) *Assembler     { return a.Emit(OpVolume, v) }
func (a *Assembler) Waveform(w int) *Assembler   { return a.Emit(OpWaveform, w) }
func (a *Assembler) Instrument(i int) *Assembler { return a.Emit(OpInstrument, i) }

// Effect emits an effect change; unused parameters are zero.
func (a *Assembler) Effect(kind Effect, params ...int) *Assembler {
	if len(params) > 3 {
		a.fail(fmt.Errorf("vm: effect %s: %d parameters: %w", kind, len(params), errs.ErrInvalidValue))
		return a
	}
	var p [3]int
	copy(p[:], params)
	return a.Emit(OpEffect, int(kind), p[0], p[1], p[2])
}

func (a *Assembler) fail(err error) {
	if a.err == nil {
		a.err = err
	}
}

// Assemble resolves labels and returns the program.
func (a *Assembler) Assemble() ([]int32, error) {
	if a.err != nil {
		return nil, a.err
	}
	out := append([]int32(nil), a.code...)
	for _, f := range a.fixups {
		addr, ok := a.labels[f.label]
		if !ok {
			return nil, fmt.Errorf("vm: unknown label %q: %w", f.label, errs.ErrInvalidValue)
		}
		out[f.at] = int32(addr)
	}
	return out, nil
}
