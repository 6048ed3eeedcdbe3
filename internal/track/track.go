// Package track turns note-level intent into unit attributes. A Track owns a
// unit and, once per context tick, folds its base values, instrument
// sequences and effects into the unit's period, volume and duty cycle.
package track

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
	"github.com/cbegin/chipkit-go/internal/instrument"
	"github.com/cbegin/chipkit-go/internal/interpolate"
	"github.com/cbegin/chipkit-go/internal/sequence"
	"github.com/cbegin/chipkit-go/internal/synth"
)

// Special Note values.
const (
	NoteRelease = -1
	NoteMute    = -2
)

// MaxArpeggio is the longest arpeggio ring.
const MaxArpeggio = 8

// MaxPitch bounds the pitch offset, in fixed-point semitones.
const MaxPitch = fixed.MaxPianoTone << fixed.Shift

const (
	DefaultArpeggioDivider   = 4
	DefaultEffectDivider     = 1
	DefaultInstrumentDivider = 4
)

// NoteState is where the current note is in its lifecycle.
type NoteState int

const (
	NoteMuted NoteState = iota
	NoteAttacking
	NoteReleasing
)

func (s NoteState) String() string {
	switch s {
	case NoteAttacking:
		return "attacking"
	case NoteReleasing:
		return "releasing"
	}
	return "muted"
}

type arpeggio struct {
	offsets [MaxArpeggio]int
	n       int
	index   int
}

func (a *arpeggio) value() int {
	if a.n == 0 {
		return 0
	}
	return a.offsets[a.index]
}

// Track drives one unit.
type Track struct {
	unit *synth.Unit
	ctx  *synth.Context

	volume       interpolate.Slide
	panning      interpolate.Slide
	note         interpolate.Slide
	tremolo      interpolate.Interval
	vibrato      interpolate.Interval
	masterVolume int
	pitch        int
	dutyCycle    int
	baseNote     int
	state        NoteState
	muted        bool
	triangleFlat bool
	reverse      bool

	arp   arpeggio
	instr instrument.State

	group      clock.Group
	arpDiv     *clock.Divider
	instrDiv   *clock.Divider
	updateDiv  *clock.Divider
	effectDiv  *clock.Divider
	tickDiv    *clock.Divider
	curVolume  int
	curNote    int
	curPanning int
}

// New returns a detached track at full volume with no note.
func New() *Track {
	t := &Track{
		unit:         synth.NewUnit(),
		masterVolume: attr.MaxVolume,
		dutyCycle:    synth.DefaultDutyCycle,
		triangleFlat: true,
	}
	t.volume.Jump(attr.MaxVolume)
	t.arpDiv = clock.NewDivider(DefaultArpeggioDivider, t.stepArpeggio)
	t.instrDiv = clock.NewDivider(DefaultInstrumentDivider, t.stepInstrument)
	t.updateDiv = clock.NewDivider(1, t.stepTick)
	t.effectDiv = clock.NewDivider(DefaultEffectDivider, t.stepEffects)
	for _, d := range []*clock.Divider{t.arpDiv, t.instrDiv, t.updateDiv, t.effectDiv} {
		_ = t.group.Attach(d)
	}
	t.tickDiv = clock.NewDivider(1, func(*clock.Tick) error { return t.Tick() })
	return t
}

// Unit returns the track's unit.
func (t *Track) Unit() *synth.Unit { return t.unit }

// Context returns the context the track is attached to.
func (t *Track) Context() *synth.Context { return t.ctx }

// Attach adds the track's unit to ctx and ticks the track with ctx's effect
// group. On error nothing is attached.
func (t *Track) Attach(ctx *synth.Context) error {
	if t.ctx != nil {
		return fmt.Errorf("track: already attached: %w", errs.ErrInvalidState)
	}
	if err := t.unit.Attach(ctx); err != nil {
		return err
	}
	if err := ctx.AttachDivider(t.tickDiv, synth.GroupEffect); err != nil {
		t.unit.Detach()
		return err
	}
	t.ctx = ctx
	t.update()
	return nil
}

// Detach removes the track from its context.
func (t *Track) Detach() {
	if t.ctx == nil {
		return
	}
	t.tickDiv.Detach()
	t.unit.Detach()
	t.ctx = nil
}

// Dispose detaches the track and drops its instrument and data.
func (t *Track) Dispose() {
	t.Detach()
	_ = t.instr.SetInstrument(nil)
	t.unit.Dispose()
}

// Reset mutes the note and clears every effect and the arpeggio.
func (t *Track) Reset() {
	t.mute()
	t.volume.SetSteps(0)
	t.panning.SetSteps(0)
	t.note.SetSteps(0)
	t.tremolo.Reset()
	t.vibrato.Reset()
	t.arp = arpeggio{}
	t.group.Reset()
	t.unit.Reset()
	t.update()
}

// Tick runs one track tick: arpeggio, instrument, unit update, effects.
func (t *Track) Tick() error {
	return t.group.Tick()
}

func (t *Track) stepArpeggio(*clock.Tick) error {
	if t.arp.n > 0 {
		t.arp.index = (t.arp.index + 1) % t.arp.n
	}
	return nil
}

func (t *Track) stepInstrument(*clock.Tick) error {
	t.instr.Step(sequence.LevelInstrument)
	return nil
}

func (t *Track) stepTick(*clock.Tick) error {
	t.instr.Step(sequence.LevelTick)
	t.update()
	return nil
}

func (t *Track) stepEffects(*clock.Tick) error {
	t.volume.Step()
	t.panning.Step()
	t.note.Step()
	t.tremolo.Step()
	t.vibrato.Step()
	return nil
}

// State returns the note state.
func (t *Track) State() NoteState { return t.state }

// CurrentVolume returns the composite volume last written to the unit.
func (t *Track) CurrentVolume() int { return t.curVolume }

// CurrentNote returns the composite note last used for the unit's period.
func (t *Track) CurrentNote() int { return t.curNote }

// CurrentPanning returns the composite panning last applied.
func (t *Track) CurrentPanning() int { return t.curPanning }

// update recomputes the composite values and pushes them to the unit.
func (t *Track) update() {
	// A release that lost its instrument has nothing left to play.
	if t.state == NoteReleasing && (t.instr.Instrument() == nil || t.instr.Finished()) {
		t.state = NoteMuted
	}

	vol := 0
	if t.state != NoteMuted {
		vol = t.volume.Value() * t.masterVolume >> attr.VolumeShift
		if t.instr.Has(instrument.SlotVolume) {
			iv := attr.Clamp(t.instr.Value(instrument.SlotVolume, attr.MaxVolume), 0, attr.MaxVolume)
			vol = vol * iv >> attr.VolumeShift
		}
		if t.tremolo.Active() {
			depth := max((t.tremolo.Value()+t.tremolo.Amplitude())/2, 0)
			vol = vol * (attr.MaxVolume - depth) / attr.MaxVolume
		}
	}
	waveform := t.unit.Waveform()
	if waveform == synth.WaveformTriangle && t.triangleFlat && vol > 0 {
		vol = attr.MaxVolume
	}
	vol = attr.Clamp(vol, 0, attr.MaxVolume)

	note := t.note.Value() + t.vibrato.Value() + t.arp.value() + t.pitch
	if t.instr.Has(instrument.SlotArpeggio) {
		note += fixed.Note(t.instr.Value(instrument.SlotArpeggio, 0))
	}
	if t.instr.Has(instrument.SlotPitch) {
		note += t.instr.Value(instrument.SlotPitch, 0)
	}
	note = fixed.ClampNote(note)

	pan := t.panning.Value()
	if t.instr.Has(instrument.SlotPanning) {
		pan += t.instr.Value(instrument.SlotPanning, 0)
	}
	pan = attr.Clamp(pan, -attr.MaxVolume, attr.MaxVolume)

	duty := t.dutyCycle
	if t.instr.Has(instrument.SlotDutyCycle) {
		duty = t.instr.Value(instrument.SlotDutyCycle, duty)
	}

	t.curVolume, t.curNote, t.curPanning = vol, note, pan
	t.unit.SetDutyCycle(duty)
	t.unit.SetMuted(t.muted)

	if t.ctx != nil && t.ctx.NumChannels() == 2 {
		left, right := vol, vol
		if pan > 0 {
			left = vol * (attr.MaxVolume - pan) / attr.MaxVolume
		} else if pan < 0 {
			right = vol * (attr.MaxVolume + pan) / attr.MaxVolume
		}
		t.unit.SetVolume(0, left)
		t.unit.SetVolume(1, right)
	} else {
		t.unit.SetVolume(-1, vol)
	}

	switch waveform {
	case synth.WaveformSample:
		period := fixed.PitchRatio(note - fixed.Note(fixed.C4))
		if t.reverse {
			period = -period
		}
		t.unit.SetSamplePeriod(period)
	default:
		if t.ctx == nil {
			break
		}
		phases := max(t.unit.NumPhases(), 1)
		t.unit.SetPeriod(fixed.TonePeriod(note, t.ctx.SampleRate()) / fixed.Time(phases))
	}
}

// setNote handles a Note attribute write.
func (t *Track) setNote(v int) {
	switch v {
	case NoteRelease:
		t.release()
	case NoteMute:
		t.mute()
	default:
		t.attack(fixed.ClampNote(v))
	}
}

func (t *Track) attack(note int) {
	if t.state == NoteMuted || t.note.Steps() == 0 {
		t.note.Jump(note)
	} else {
		t.note.SetValue(note)
	}
	t.baseNote = note
	t.state = NoteAttacking
	t.arp.index = 0
	t.arpDiv.Reset()
	t.instrDiv.Reset()
	t.instr.Attack()
	if t.unit.Waveform() == synth.WaveformSample {
		t.unit.RestartSample()
	}
}

func (t *Track) release() {
	if t.state != NoteAttacking {
		return
	}
	if t.instr.Instrument() == nil {
		t.mute()
		return
	}
	t.state = NoteReleasing
	t.instr.Release()
	t.unit.ReleaseSustain()
}

func (t *Track) mute() {
	t.state = NoteMuted
	t.instr.Mute()
	t.note.Halt()
}

// Note returns the held note, or NoteRelease / NoteMute when none is held.
func (t *Track) Note() int {
	switch t.state {
	case NoteAttacking:
		return t.baseNote
	case NoteReleasing:
		return NoteRelease
	}
	return NoteMute
}

// SetArpeggio sets the arpeggio ring (fixed-point semitone offsets). An empty
// ring disables it.
func (t *Track) SetArpeggio(offsets []int) error {
	if len(offsets) > MaxArpeggio {
		return fmt.Errorf("track: arpeggio of %d notes: %w", len(offsets), errs.ErrInvalidValue)
	}
	t.arp = arpeggio{n: len(offsets)}
	copy(t.arp.offsets[:], offsets)
	return nil
}

// Arpeggio returns a copy of the arpeggio ring.
func (t *Track) Arpeggio() []int {
	return append([]int(nil), t.arp.offsets[:t.arp.n]...)
}

// SetInstrument plays in (nil removes the instrument).
func (t *Track) SetInstrument(in *instrument.Instrument) error {
	if err := t.instr.SetInstrument(in); err != nil {
		return err
	}
	if t.state == NoteAttacking {
		t.instr.Attack()
	}
	return nil
}

// Instrument returns the current instrument.
func (t *Track) Instrument() *instrument.Instrument { return t.instr.Instrument() }
