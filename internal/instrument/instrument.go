// Package instrument groups sequences that drive a voice's volume, panning,
// arpeggio, duty cycle and pitch, and tracks the per-voice states that play
// them so replacing or disposing an instrument never leaves a state dangling.
package instrument

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/sequence"
)

// Slot selects the parameter a sequence drives.
type Slot int

const (
	SlotVolume Slot = iota
	SlotPanning
	SlotArpeggio
	SlotDutyCycle
	SlotPitch
	NumSlots
)

func (s Slot) String() string {
	switch s {
	case SlotVolume:
		return "volume"
	case SlotPanning:
		return "panning"
	case SlotArpeggio:
		return "arpeggio"
	case SlotDutyCycle:
		return "duty_cycle"
	case SlotPitch:
		return "pitch"
	}
	return "unknown"
}

// Instrument is shared by any number of tracks.
type Instrument struct {
	seqs      [NumSlots]*sequence.Sequence
	observers []*State
	disposed  bool
}

func New() *Instrument {
	return &Instrument{}
}

// SetSequence replaces the sequence in slot (nil clears it). Subscribed
// states pick up the new sequence and restart it if their note is held.
func (in *Instrument) SetSequence(slot Slot, seq *sequence.Sequence) error {
	if slot < 0 || slot >= NumSlots {
		return fmt.Errorf("instrument: slot %d: %w", slot, errs.ErrInvalidValue)
	}
	if in.disposed {
		return fmt.Errorf("instrument: disposed: %w", errs.ErrInvalidState)
	}
	in.seqs[slot] = seq
	for _, st := range in.observers {
		st.reload(slot)
	}
	return nil
}

// Sequence returns the sequence in slot.
func (in *Instrument) Sequence(slot Slot) *sequence.Sequence {
	if slot < 0 || slot >= NumSlots {
		return nil
	}
	return in.seqs[slot]
}

// NumObservers returns the number of states playing this instrument.
func (in *Instrument) NumObservers() int { return len(in.observers) }

// Dispose detaches every state and clears all sequences.
func (in *Instrument) Dispose() {
	observers := in.observers
	in.observers = nil
	for _, st := range observers {
		st.inst = nil
		st.clear()
	}
	in.seqs = [NumSlots]*sequence.Sequence{}
	in.disposed = true
}

func (in *Instrument) subscribe(st *State) {
	in.observers = append(in.observers, st)
}

func (in *Instrument) unsubscribe(st *State) {
	for i, o := range in.observers {
		if o == st {
			copy(in.observers[i:], in.observers[i+1:])
			in.observers[len(in.observers)-1] = nil
			in.observers = in.observers[:len(in.observers)-1]
			return
		}
	}
}

// State plays an instrument for one voice.
type State struct {
	inst  *Instrument
	seqs  [NumSlots]sequence.State
	phase sequence.Phase
}

// SetInstrument switches instruments. Passing nil detaches.
func (st *State) SetInstrument(in *Instrument) error {
	if in != nil && in.disposed {
		return fmt.Errorf("instrument: disposed: %w", errs.ErrInvalidState)
	}
	if st.inst == in {
		return nil
	}
	if st.inst != nil {
		st.inst.unsubscribe(st)
	}
	st.inst = in
	st.clear()
	if in != nil {
		in.subscribe(st)
		for slot := Slot(0); slot < NumSlots; slot++ {
			st.seqs[slot].SetSequence(in.seqs[slot])
		}
	}
	return nil
}

// Instrument returns the attached instrument.
func (st *State) Instrument() *Instrument { return st.inst }

func (st *State) clear() {
	for i := range st.seqs {
		st.seqs[i].SetSequence(nil)
	}
	st.phase = sequence.PhaseMute
}

func (st *State) reload(slot Slot) {
	st.seqs[slot].SetSequence(st.inst.seqs[slot])
	if st.phase == sequence.PhaseAttack {
		st.seqs[slot].Attack()
	}
}

// Attack restarts every sequence.
func (st *State) Attack() {
	if st.inst == nil {
		return
	}
	st.phase = sequence.PhaseAttack
	for i := range st.seqs {
		st.seqs[i].Attack()
	}
}

// Release moves every sequence past its sustain range.
func (st *State) Release() {
	if st.inst == nil || st.phase != sequence.PhaseAttack {
		return
	}
	st.phase = sequence.PhaseRelease
	for i := range st.seqs {
		st.seqs[i].Release()
	}
}

// Mute stops every sequence.
func (st *State) Mute() {
	st.phase = sequence.PhaseMute
	for i := range st.seqs {
		st.seqs[i].Mute()
	}
}

// Step advances every sequence at level.
func (st *State) Step(level sequence.Level) {
	if st.inst == nil {
		return
	}
	for i := range st.seqs {
		st.seqs[i].Step(level)
	}
}

// Phase returns the note phase the instrument was last driven to.
func (st *State) Phase() sequence.Phase { return st.phase }

// Has reports whether slot is driven by a sequence.
func (st *State) Has(slot Slot) bool {
	return st.inst != nil && st.seqs[slot].Sequence() != nil
}

// Value returns slot's current value, or def when it has no sequence.
func (st *State) Value(slot Slot, def int) int {
	return st.seqs[slot].Value(def)
}

// Finished reports whether a released note has played out. With a volume
// sequence that is the volume's end; otherwise every present sequence must
// have ended.
func (st *State) Finished() bool {
	if st.inst == nil || st.phase == sequence.PhaseAttack {
		return false
	}
	if st.Has(SlotVolume) {
		return st.seqs[SlotVolume].Ended()
	}
	for i := range st.seqs {
		if st.seqs[i].Sequence() != nil && !st.seqs[i].Ended() {
			return false
		}
	}
	return true
}
