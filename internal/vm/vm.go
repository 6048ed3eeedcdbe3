// Package vm runs compiled note programs against a track. An Interpreter walks
// a flat opcode stream, writes track attributes and reports how many ticks the
// caller should wait before advancing it again.
package vm

import (
	"fmt"
	"math"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/instrument"
	"github.com/cbegin/chipkit-go/internal/synth"
)

const (
	// StackSize is the call depth limit.
	StackSize = 64
	// MaxTicks caps a single Advance result so it fits a divider period.
	MaxTicks = clock.MaxDivisor
	// DefaultStepTicks is the length of one Step unit.
	DefaultStepTicks = 24
	// MaxOpsPerAdvance bounds how many opcodes one Advance may execute.
	MaxOpsPerAdvance = 1 << 16

	// NoteRelease and NoteMute mirror the track's special note values.
	NoteRelease = -1
	NoteMute    = -2

	forever = math.MaxInt32
)

type eventKind int

const (
	eventAttack eventKind = iota
	eventRelease
	eventMute
	eventStep
	numEvents
)

type event struct {
	ticks  int
	active bool
}

// Tables are the shared objects programs refer to by index.
type Tables struct {
	Instruments []*instrument.Instrument
	Waveforms   []*synth.Data
	Samples     []*synth.Data
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithStrictStack makes call stack overflow and underflow fail with
// errs.ErrInvalidState instead of being skipped.
func WithStrictStack() Option {
	return func(in *Interpreter) { in.strict = true }
}

// WithStepTicks sets the initial ticks per step.
func WithStepTicks(ticks int) Option {
	return func(in *Interpreter) { in.stepTicks = max(ticks, 1) }
}

// Interpreter executes one program for one track.
type Interpreter struct {
	code      []int32
	tables    *Tables
	pc        int
	stack     [StackSize]int
	depth     int
	repeats   map[int]int
	events    [numEvents]event
	stepTicks int
	initTicks int
	waited    int
	faults    int
	strict    bool
	ended     bool

	stagedNote int
	stagedArp  []int
	hasNote    bool
	hasArp     bool
}

// New returns an interpreter positioned at the start of code. tables may be
// nil when the program references no instruments or data.
func New(code []int32, tables *Tables, opts ...Option) *Interpreter {
	if tables == nil {
		tables = &Tables{}
	}
	in := &Interpreter{
		code:      code,
		tables:    tables,
		repeats:   map[int]int{},
		stepTicks: DefaultStepTicks,
	}
	for _, opt := range opts {
		opt(in)
	}
	in.initTicks = in.stepTicks
	return in
}

// Reset rewinds to the start of the program and drops every pending event.
func (in *Interpreter) Reset() {
	in.pc = 0
	in.depth = 0
	clear(in.repeats)
	in.events = [numEvents]event{}
	in.stepTicks = in.initTicks
	in.waited = 0
	in.faults = 0
	in.ended = false
	in.clearStage()
}

// PC returns the program counter.
func (in *Interpreter) PC() int { return in.pc }

// Depth returns the call stack depth.
func (in *Interpreter) Depth() int { return in.depth }

// Faults counts skipped calls and returns.
func (in *Interpreter) Faults() int { return in.faults }

// Ended reports whether the program reached OpEnd.
func (in *Interpreter) Ended() bool { return in.ended }

// StepTicks returns the current ticks per step.
func (in *Interpreter) StepTicks() int { return in.stepTicks }

// Pending returns the ticks left on the attack, release, mute and step events,
// or -1 for kinds with nothing scheduled.
func (in *Interpreter) Pending() [4]int {
	var p [4]int
	for i, ev := range in.events {
		p[i] = -1
		if ev.active {
			p[i] = ev.ticks
		}
	}
	return p
}

// Advance moves the program forward by the ticks returned from the previous
// call: due events fire, and when no step is outstanding opcodes run until the
// next Step, Ticks or End. It returns how many ticks to wait before calling
// again.
func (in *Interpreter) Advance(t attr.Object) (int, error) {
	for i := range in.events {
		if in.events[i].active {
			in.events[i].ticks -= in.waited
		}
	}
	in.waited = 0

	if err := in.fireDue(t); err != nil {
		return 0, err
	}
	if step := &in.events[eventStep]; step.active && step.ticks <= 0 {
		step.active = false
	}
	if !in.events[eventStep].active {
		if err := in.run(t); err != nil {
			return 0, err
		}
		// Events scheduled with zero ticks by the code just run.
		if err := in.fireDue(t); err != nil {
			return 0, err
		}
	}
	in.waited = in.nextWait()
	return in.waited, nil
}

func (in *Interpreter) fireDue(t attr.Object) error {
	for k := eventAttack; k < eventStep; k++ {
		ev := &in.events[k]
		if !ev.active || ev.ticks > 0 {
			continue
		}
		ev.active = false
		var err error
		switch k {
		case eventAttack:
			err = in.applyStaged(t)
		case eventRelease:
			err = t.SetAttr(attr.Note, NoteRelease)
		case eventMute:
			err = t.SetAttr(attr.Note, NoteMute)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (in *Interpreter) nextWait() int {
	wait := forever
	for _, ev := range in.events {
		if ev.active && ev.ticks < wait {
			wait = ev.ticks
		}
	}
	return attr.Clamp(wait, 1, MaxTicks)
}

func (in *Interpreter) schedule(k eventKind, ticks int) {
	in.events[k] = event{ticks: max(ticks, 0), active: true}
}

func (in *Interpreter) clearStage() {
	in.stagedNote, in.stagedArp = 0, nil
	in.hasNote, in.hasArp = false, false
}

func (in *Interpreter) applyStaged(t attr.Object) error {
	defer in.clearStage()
	if in.hasArp {
		if err := t.SetPtr(attr.Arpeggio, in.stagedArp); err != nil {
			return err
		}
	}
	if in.hasNote {
		return t.SetAttr(attr.Note, in.stagedNote)
	}
	return nil
}

func (in *Interpreter) fault(format string, args ...any) error {
	if in.strict {
		return fmt.Errorf("vm: pc %d: %s: %w", in.pc, fmt.Sprintf(format, args...), errs.ErrInvalidState)
	}
	in.faults++
	return nil
}

// operands returns the immediates of the opcode at pc and the pc after them.
func (in *Interpreter) operands(op Op) ([]int32, int, error) {
	start := in.pc + 1
	n := opInfo[op].args
	if n == variadic {
		if start >= len(in.code) {
			return nil, 0, fmt.Errorf("vm: pc %d: %s: truncated: %w", in.pc, op, errs.ErrInvalidValue)
		}
		n = int(in.code[start])
		if n < 0 {
			return nil, 0, fmt.Errorf("vm: pc %d: %s: count %d: %w", in.pc, op, n, errs.ErrInvalidValue)
		}
		start++
	}
	end := start + n
	if end > len(in.code) {
		return nil, 0, fmt.Errorf("vm: pc %d: %s: truncated: %w", in.pc, op, errs.ErrInvalidValue)
	}
	return in.code[start:end], end, nil
}

func (in *Interpreter) target(addr int32) (int, error) {
	if addr < 0 || int(addr) > len(in.code) {
		return 0, fmt.Errorf("vm: pc %d: address %d: %w", in.pc, addr, errs.ErrInvalidValue)
	}
	return int(addr), nil
}

func (in *Interpreter) run(t attr.Object) error {
	for n := 0; n < MaxOpsPerAdvance; n++ {
		if in.pc >= len(in.code) {
			return in.end(t)
		}
		op := Op(in.code[in.pc])
		if !op.Valid() {
			return fmt.Errorf("vm: pc %d: opcode %d: %w", in.pc, op, errs.ErrInvalidValue)
		}
		args, next, err := in.operands(op)
		if err != nil {
			return err
		}
		done, err := in.exec(t, op, args, next)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return fmt.Errorf("vm: pc %d: no step after %d opcodes: %w", in.pc, MaxOpsPerAdvance, errs.ErrInvalidState)
}

func (in *Interpreter) end(t attr.Object) error {
	in.ended = true
	in.clearStage()
	in.events[eventAttack].active = false
	in.events[eventRelease].active = false
	in.events[eventStep].active = false
	in.schedule(eventMute, forever)
	return t.SetAttr(attr.Note, NoteMute)
}

// exec runs one opcode. done reports that execution stops for this Advance.
func (in *Interpreter) exec(t attr.Object, op Op, args []int32, next int) (done bool, err error) {
	a := func(i int) int { return int(args[i]) }
	switch op {
	case OpNop:
	case OpAttack:
		if in.events[eventAttack].active {
			in.stagedNote, in.hasNote = a(0), true
		} else {
			err = t.SetAttr(attr.Note, a(0))
		}
	case OpAttackTicks:
		in.schedule(eventAttack, a(0))
	case OpArpeggio:
		offsets := make([]int, len(args))
		for i := range args {
			offsets[i] = a(i)
		}
		if in.events[eventAttack].active {
			in.stagedArp, in.hasArp = offsets, true
		} else {
			err = t.SetPtr(attr.Arpeggio, offsets)
		}
	case OpArpeggioDivider:
		err = t.SetAttr(attr.ArpeggioDivider, a(0))
	case OpRelease:
		err = t.SetAttr(attr.Note, NoteRelease)
	case OpReleaseTicks:
		in.schedule(eventRelease, a(0))
	case OpMute:
		err = t.SetAttr(attr.Note, NoteMute)
	case OpMuteTicks:
		in.schedule(eventMute, a(0))
	case OpVolume:
		err = t.SetAttr(attr.Volume, a(0))
	case OpMasterVolume:
		err = t.SetAttr(attr.MasterVolume, a(0))
	case OpPanning:
		err = t.SetAttr(attr.Panning, a(0))
	case OpPitch:
		err = t.SetAttr(attr.Pitch, a(0))
	case OpWaveform:
		err = t.SetAttr(attr.Waveform, a(0))
	case OpCustomWaveform:
		var d *synth.Data
		if d, err = in.data(in.tables.Waveforms, a(0), "waveform"); err == nil {
			err = t.SetPtr(attr.CustomWaveform, d)
		}
	case OpSample:
		var d *synth.Data
		if d, err = in.data(in.tables.Samples, a(0), "sample"); err == nil {
			err = t.SetPtr(attr.Sample, d)
		}
	case OpSampleRepeat:
		err = t.SetAttr(attr.SampleRepeat, a(0))
	case OpSampleRange:
		err = t.SetPtr(attr.SampleRange, [2]int{a(0), a(1)})
	case OpSampleSustainRange:
		err = t.SetPtr(attr.SampleSustainRange, [2]int{a(0), a(1)})
	case OpSamplePitch:
		err = t.SetAttr(attr.SamplePitch, a(0))
	case OpSampleReverse:
		dir := 1
		if a(0) != 0 {
			dir = -1
		}
		err = t.SetAttr(attr.SamplePeriod, dir)
	case OpDutyCycle:
		err = t.SetAttr(attr.DutyCycle, a(0))
	case OpPhaseWrap:
		err = t.SetAttr(attr.PhaseWrap, a(0))
	case OpInstrument:
		err = in.instrument(t, a(0))
	case OpEffect:
		err = in.effect(t, Effect(args[0]), a(1), a(2), a(3))
	case OpEffectDivider:
		err = t.SetAttr(attr.EffectDivider, a(0))
	case OpInstrumentDivider:
		err = t.SetAttr(attr.InstrumentDivider, a(0))
	case OpStepTicks:
		in.stepTicks = attr.Clamp(a(0), 1, MaxTicks)
	case OpStep:
		in.schedule(eventStep, max(a(0)*in.stepTicks, 1))
		done = true
	case OpTicks:
		in.schedule(eventStep, max(a(0), 1))
		done = true
	case OpCall:
		if in.depth >= StackSize {
			if err = in.fault("call stack overflow"); err != nil {
				return false, err
			}
			break
		}
		var to int
		if to, err = in.target(args[0]); err != nil {
			return false, err
		}
		in.stack[in.depth] = next
		in.depth++
		in.pc = to
		return false, nil
	case OpReturn:
		if in.depth == 0 {
			if err = in.fault("return with empty stack"); err != nil {
				return false, err
			}
			break
		}
		in.depth--
		in.pc = in.stack[in.depth]
		return false, nil
	case OpJump:
		var to int
		if to, err = in.target(args[0]); err != nil {
			return false, err
		}
		in.pc = to
		return false, nil
	case OpRepeat:
		var to int
		if to, err = in.target(args[0]); err != nil {
			return false, err
		}
		left, ok := in.repeats[in.pc]
		if !ok {
			left = a(1) - 1
		}
		if left > 0 {
			in.repeats[in.pc] = left - 1
			in.pc = to
			return false, nil
		}
		delete(in.repeats, in.pc)
	case OpEnd:
		return true, in.end(t)
	}
	if err != nil {
		return false, fmt.Errorf("vm: pc %d: %s: %w", in.pc, op, err)
	}
	in.pc = next
	return done, nil
}

func (in *Interpreter) data(table []*synth.Data, i int, what string) (*synth.Data, error) {
	if i < 0 {
		return nil, nil
	}
	if i >= len(table) {
		return nil, fmt.Errorf("%s %d of %d: %w", what, i, len(table), errs.ErrInvalidValue)
	}
	return table[i], nil
}

func (in *Interpreter) instrument(t attr.Object, i int) error {
	if i < 0 {
		return t.SetPtr(attr.Instrument, nil)
	}
	if i >= len(in.tables.Instruments) {
		return fmt.Errorf("instrument %d of %d: %w", i, len(in.tables.Instruments), errs.ErrInvalidValue)
	}
	return t.SetPtr(attr.Instrument, in.tables.Instruments[i])
}

func (in *Interpreter) effect(t attr.Object, kind Effect, a, b, c int) error {
	switch kind {
	case EffectVolumeSlide:
		return t.SetPtr(attr.EffectVolumeSlide, []int{a})
	case EffectPanningSlide:
		return t.SetPtr(attr.EffectPanningSlide, []int{a})
	case EffectPortamento:
		return t.SetPtr(attr.EffectPortamento, []int{a})
	case EffectTremolo:
		return t.SetPtr(attr.EffectTremolo, []int{a, b, c})
	case EffectVibrato:
		return t.SetPtr(attr.EffectVibrato, []int{a, b, c})
	}
	return fmt.Errorf("effect %d: %w", kind, errs.ErrInvalidValue)
}
