// Package sequencer plays a score: one compiled program per voice, each driving
// its own track through a beat divider on a shared synthesis context.
package sequencer

import (
	"fmt"
	"sync"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/clock"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
	"github.com/cbegin/chipkit-go/internal/synth"
	"github.com/cbegin/chipkit-go/internal/track"
	"github.com/cbegin/chipkit-go/internal/vm"
)

// EventKind identifies sequencer lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
	EventPlaybackEnded
)

func (k EventKind) String() string {
	switch k {
	case EventLoopCompleted:
		return "loop_completed"
	case EventPlaybackEnded:
		return "playback_ended"
	}
	return "unknown"
}

// Score is a set of voice programs and the tables they index.
type Score struct {
	Voices    [][]int32
	Tables    *vm.Tables
	TickRate  int // context ticks per second; 0 uses synth.DefaultTickRate
	StepTicks int // ticks per Step opcode; 0 uses vm.DefaultStepTicks
}

type Options struct {
	Channels       int // output channels; 0 means stereo
	LoopWholeScore bool
	StrictStack    bool
	// OnEvent runs on the goroutine calling Process, with the sequencer
	// locked.
	OnEvent           func(EventKind)
	ReleaseTailFrames int // frames rendered after every voice ended (0 = half a second)
}

type voice struct {
	track  *track.Track
	interp *vm.Interpreter
	beat   *clock.Divider
}

func (v *voice) advance(t *clock.Tick) error {
	ticks, err := v.interp.Advance(v.track)
	if err != nil {
		return err
	}
	t.Divisor = ticks
	return nil
}

// Sequencer renders a score. Process and the control methods may be called
// from different goroutines.
type Sequencer struct {
	mu           sync.Mutex
	score        *Score
	ctx          *synth.Context
	voices       []*voice
	loop         bool
	onEvent      func(EventKind)
	tailFrames   int
	tailLeft     int
	exhausted    bool
	endedFired   bool
	masterVolume int
	err          error
}

// New builds a sequencer for score at sampleRate.
func New(score *Score, sampleRate int, opts Options) (*Sequencer, error) {
	if score == nil {
		return nil, fmt.Errorf("sequencer: nil score: %w", errs.ErrInvalidValue)
	}
	channels := opts.Channels
	if channels == 0 {
		channels = 2
	}
	ctx, err := synth.NewContext(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	if score.TickRate != 0 {
		if score.TickRate < 0 || score.TickRate > sampleRate {
			return nil, fmt.Errorf("sequencer: tick rate %d: %w", score.TickRate, errs.ErrInvalidValue)
		}
		ctx.SetClockPeriod(fixed.FromSamples(sampleRate) / fixed.Time(score.TickRate))
	}
	tail := opts.ReleaseTailFrames
	if tail <= 0 {
		tail = sampleRate / 2
	}
	s := &Sequencer{
		score:        score,
		ctx:          ctx,
		loop:         opts.LoopWholeScore,
		onEvent:      opts.OnEvent,
		tailFrames:   tail,
		tailLeft:     tail,
		masterVolume: attr.MaxVolume,
	}
	var vmOpts []vm.Option
	if score.StepTicks > 0 {
		vmOpts = append(vmOpts, vm.WithStepTicks(score.StepTicks))
	}
	if opts.StrictStack {
		vmOpts = append(vmOpts, vm.WithStrictStack())
	}
	for i, code := range score.Voices {
		v := &voice{
			track:  track.New(),
			interp: vm.New(code, score.Tables, vmOpts...),
		}
		v.beat = clock.NewDivider(1, v.advance)
		if err := v.track.Attach(ctx); err != nil {
			s.dispose()
			return nil, fmt.Errorf("sequencer: voice %d: %w", i, err)
		}
		if err := ctx.AttachDivider(v.beat, synth.GroupBeat); err != nil {
			s.dispose()
			return nil, fmt.Errorf("sequencer: voice %d: %w", i, err)
		}
		s.voices = append(s.voices, v)
	}
	return s, nil
}

// Process fills dst with interleaved frames. After an interpreter error the
// sequencer renders silence; Err reports the error.
func (s *Sequencer) Process(dst []int16) {
	s.mu.Lock()
	defer s.mu.Unlock()

	frames := len(dst) / s.ctx.NumChannels()
	if s.err != nil {
		clear(dst)
		return
	}
	if _, err := s.ctx.Generate(dst, frames); err != nil {
		s.err = err
		clear(dst)
		return
	}
	s.checkEnd(frames)
}

func (s *Sequencer) checkEnd(frames int) {
	if !s.exhausted {
		for _, v := range s.voices {
			if !v.interp.Ended() {
				return
			}
		}
		s.exhausted = true
		s.tailLeft = s.tailFrames
		return
	}
	if s.tailLeft > 0 {
		s.tailLeft -= frames
		if s.tailLeft > 0 {
			return
		}
	}
	if s.loop {
		s.restart()
		s.emit(EventLoopCompleted)
		return
	}
	if !s.endedFired {
		s.endedFired = true
		s.emit(EventPlaybackEnded)
	}
}

func (s *Sequencer) emit(kind EventKind) {
	if s.onEvent != nil {
		s.onEvent(kind)
	}
}

// restart rewinds every voice; the next context tick runs the programs from
// the top.
func (s *Sequencer) restart() {
	for _, v := range s.voices {
		v.interp.Reset()
		v.track.Reset()
		v.beat.SetDivisor(1)
	}
	s.exhausted = false
	s.endedFired = false
	s.tailLeft = s.tailFrames
}

// Reset rewinds playback to the start of the score and clears any error.
func (s *Sequencer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx.Reset()
	s.restart()
	s.err = nil
}

// Finished reports whether non-looping playback has ended, including its tail.
func (s *Sequencer) Finished() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endedFired
}

// Err returns the error that stopped rendering, if any.
func (s *Sequencer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Time returns the rendered time.
func (s *Sequencer) Time() fixed.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx.Time()
}

// NumChannels returns the output channel count.
func (s *Sequencer) NumChannels() int { return s.ctx.NumChannels() }

// SampleRate returns the output rate.
func (s *Sequencer) SampleRate() int { return s.ctx.SampleRate() }

// NumVoices returns the number of voices.
func (s *Sequencer) NumVoices() int { return len(s.voices) }

// Track returns voice i's track. Callers must not use it concurrently with
// Process.
func (s *Sequencer) Track(i int) *track.Track { return s.voices[i].track }

// SetMasterVolume scales every voice; v is in [0, attr.MaxVolume].
func (s *Sequencer) SetMasterVolume(v int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.masterVolume = attr.Clamp(v, 0, attr.MaxVolume)
	for _, vc := range s.voices {
		_ = vc.track.SetAttr(attr.MasterVolume, s.masterVolume)
	}
}

// MasterVolume returns the volume set by SetMasterVolume.
func (s *Sequencer) MasterVolume() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.masterVolume
}

// Close releases the tracks and the context.
func (s *Sequencer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispose()
}

func (s *Sequencer) dispose() {
	for _, v := range s.voices {
		v.beat.Detach()
		v.track.Dispose()
	}
	s.voices = nil
	s.ctx.Dispose()
}
