// Package sequence implements instrument sequences: shared, immutable value
// programs with an optional sustain loop, and the per-voice state that walks
// them through attack, sustain and release.
package sequence

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/interpolate"
)

// Kind selects how a sequence produces values.
type Kind int

const (
	// KindSimple steps through a list of values, one per instrument step.
	KindSimple Kind = iota
	// KindEnvelope ramps linearly between segment targets, one step per tick.
	KindEnvelope
)

// Segment is one envelope ramp: reach Value in Steps ticks.
type Segment struct {
	Steps int
	Value int
}

// Sequence is shared by any number of states and never mutated after
// construction.
type Sequence struct {
	kind          Kind
	values        []int
	segments      []Segment
	sustainOffset int
	sustainLength int
}

// NewSimple builds a stepped value list. The sustain range [offset,
// offset+length) loops while the note is held; a zero length holds at offset.
func NewSimple(values []int, sustainOffset, sustainLength int) (*Sequence, error) {
	if len(values) == 0 {
		return nil, fmt.Errorf("sequence: empty values: %w", errs.ErrInvalidValue)
	}
	if err := checkSustain(len(values), sustainOffset, sustainLength); err != nil {
		return nil, err
	}
	return &Sequence{
		kind:          KindSimple,
		values:        append([]int(nil), values...),
		sustainOffset: sustainOffset,
		sustainLength: sustainLength,
	}, nil
}

// NewEnvelope builds a linear envelope. The sustain range is in segments.
func NewEnvelope(segments []Segment, sustainOffset, sustainLength int) (*Sequence, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("sequence: empty envelope: %w", errs.ErrInvalidValue)
	}
	for _, s := range segments {
		if s.Steps < 0 {
			return nil, fmt.Errorf("sequence: negative segment steps: %w", errs.ErrInvalidValue)
		}
	}
	if err := checkSustain(len(segments), sustainOffset, sustainLength); err != nil {
		return nil, err
	}
	return &Sequence{
		kind:          KindEnvelope,
		segments:      append([]Segment(nil), segments...),
		sustainOffset: sustainOffset,
		sustainLength: sustainLength,
	}, nil
}

func checkSustain(n, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > n {
		return fmt.Errorf("sequence: sustain range %d+%d outside %d: %w", offset, length, n, errs.ErrInvalidValue)
	}
	return nil
}

// Kind returns the sequence kind.
func (s *Sequence) Kind() Kind { return s.kind }

// Len returns the number of values or segments.
func (s *Sequence) Len() int {
	if s.kind == KindEnvelope {
		return len(s.segments)
	}
	return len(s.values)
}

// Sustain returns the sustain range.
func (s *Sequence) Sustain() (offset, length int) { return s.sustainOffset, s.sustainLength }

// holdIndex is where a zero-length sustain parks.
func (s *Sequence) holdIndex() int {
	if s.sustainOffset >= s.Len() {
		return s.Len() - 1
	}
	return s.sustainOffset
}

// Phase is the state's position in the note lifecycle.
type Phase int

const (
	PhaseMute Phase = iota
	PhaseAttack
	PhaseRelease
)

// Level distinguishes the two step rates a track drives states at.
type Level int

const (
	// LevelTick is every track tick; envelopes advance.
	LevelTick Level = iota
	// LevelInstrument is every instrument divider period; simple sequences advance.
	LevelInstrument
)

// State walks one Sequence for one voice.
type State struct {
	seq   *Sequence
	phase Phase
	index int
	ramp  interpolate.Slide
	ended bool
}

// SetSequence attaches seq (nil detaches) and mutes the state.
func (st *State) SetSequence(seq *Sequence) {
	*st = State{seq: seq}
}

// Sequence returns the attached sequence.
func (st *State) Sequence() *Sequence { return st.seq }

// Phase returns the current phase.
func (st *State) Phase() Phase { return st.phase }

// Ended reports whether release ran off the end of the sequence.
func (st *State) Ended() bool { return st.ended }

// Attack restarts the sequence.
func (st *State) Attack() {
	if st.seq == nil {
		return
	}
	st.phase = PhaseAttack
	st.ended = false
	st.index = 0
	if st.seq.kind == KindEnvelope {
		st.ramp.Jump(0)
		st.enterSegment(0)
	}
}

// Release leaves the sustain range and plays the remainder.
func (st *State) Release() {
	if st.seq == nil || st.phase != PhaseAttack {
		return
	}
	st.phase = PhaseRelease
	off, length := st.seq.Sustain()
	next := off + length
	if length == 0 {
		next = st.seq.holdIndex() + 1
	}
	if next < st.index+1 {
		next = st.index + 1
	}
	if next >= st.seq.Len() {
		st.finish()
		return
	}
	st.index = next
	if st.seq.kind == KindEnvelope {
		st.enterSegment(next)
	}
}

// Mute stops the state where it is.
func (st *State) Mute() {
	st.phase = PhaseMute
}

func (st *State) finish() {
	st.phase = PhaseMute
	st.ended = true
	if st.seq.kind == KindEnvelope {
		st.ramp.Halt()
	} else {
		st.index = len(st.seq.values) - 1
	}
}

func (st *State) enterSegment(i int) {
	seg := st.seq.segments[i]
	st.ramp.SetSteps(seg.Steps)
	st.ramp.SetValue(seg.Value)
}

// Step advances the state if level matches the sequence kind.
func (st *State) Step(level Level) {
	if st.seq == nil || st.phase == PhaseMute {
		return
	}
	switch st.seq.kind {
	case KindSimple:
		if level == LevelInstrument {
			st.stepSimple()
		}
	case KindEnvelope:
		if level == LevelTick {
			st.stepEnvelope()
		}
	}
}

// next returns the index after the current one, honouring the sustain loop
// while attacking. ok is false when the state should hold or finish.
func (st *State) next() (int, bool) {
	seq := st.seq
	if st.phase == PhaseAttack {
		off, length := seq.Sustain()
		if length > 0 {
			if st.index+1 >= off+length {
				return off, true
			}
			return st.index + 1, true
		}
		if st.index >= seq.holdIndex() {
			return st.index, false
		}
		return st.index + 1, true
	}
	if st.index+1 >= seq.Len() {
		return 0, false
	}
	return st.index + 1, true
}

func (st *State) stepSimple() {
	i, ok := st.next()
	if !ok {
		if st.phase == PhaseRelease {
			st.finish()
		}
		return
	}
	st.index = i
}

func (st *State) stepEnvelope() {
	if st.ramp.Sliding() {
		st.ramp.Step()
		if st.ramp.Sliding() {
			return
		}
	}
	i, ok := st.next()
	if !ok {
		if st.phase == PhaseRelease {
			st.finish()
		}
		return
	}
	if i == st.index && st.seq.segments[i].Steps == 0 {
		return
	}
	st.index = i
	st.enterSegment(i)
}

// Value returns the current value, or def when no sequence is attached.
func (st *State) Value(def int) int {
	if st.seq == nil {
		return def
	}
	if st.seq.kind == KindEnvelope {
		return st.ramp.Value()
	}
	return st.seq.values[st.index]
}
