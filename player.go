package chipkit

import (
	"fmt"
	"io"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cbegin/chipkit-go/internal/attr"
	intaudio "github.com/cbegin/chipkit-go/internal/audio"
	"github.com/cbegin/chipkit-go/internal/errs"
	intseq "github.com/cbegin/chipkit-go/internal/sequencer"
	"github.com/cbegin/chipkit-go/internal/synth"
)

// PlaybackEvent carries playback events from Watch().
type PlaybackEvent struct {
	Kind int // EventLoopCompleted or EventPlaybackEnded
	Err  error
}

const (
	EventLoopCompleted int = iota
	EventPlaybackEnded
)

// Backend selects the audio output library.
type Backend = intaudio.Backend

const (
	BackendEbiten = intaudio.BackendEbiten
	BackendOto    = intaudio.BackendOto
)

type PlayerOption func(*playerConfig)

type playerConfig struct {
	channels     int
	backend      Backend
	loopPlayback bool
	sampleTap    func([]int16)
	logger       *log.Logger
}

func defaultPlayerConfig() playerConfig {
	return playerConfig{channels: 2, backend: BackendEbiten, loopPlayback: true}
}

func WithChannels(n int) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.channels = n
	}
}

func WithBackend(b Backend) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.backend = b
	}
}

func WithLoopPlayback(enabled bool) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.loopPlayback = enabled
	}
}

// WithSampleTap installs a callback invoked with each generated buffer of
// interleaved frames. The callback runs on the audio thread; keep work brief
// and non-blocking.
func WithSampleTap(tap func([]int16)) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.sampleTap = tap
	}
}

// WithLogger reports playback lifecycle messages to l.
func WithLogger(l *log.Logger) PlayerOption {
	return func(cfg *playerConfig) {
		cfg.logger = l
	}
}

type Player struct {
	mu           sync.Mutex
	sampleRate   int
	channels     int
	backend      Backend
	seq          *intseq.Sequencer
	audio        intaudio.Player
	volume       float64
	loopPlayback bool
	sampleTap    func([]int16)
	logger       *log.Logger
	done         chan struct{}
	eventCh      chan PlaybackEvent
	eventChMu    sync.Mutex
}

// eventWrapper wraps a sequencer and implements FinishingSource so the stream
// ends with non-looping playback.
type eventWrapper struct {
	seq       *intseq.Sequencer
	finished  atomic.Bool
	sampleTap func([]int16)
}

func (w *eventWrapper) Process(dst []int16) {
	w.seq.Process(dst)
	if w.sampleTap != nil {
		w.sampleTap(dst)
	}
}

func (w *eventWrapper) Finished() bool {
	return w.finished.Load()
}

func NewPlayer(sampleRate int, opts ...PlayerOption) (*Player, error) {
	if sampleRate < synth.MinSampleRate || sampleRate > synth.MaxSampleRate {
		return nil, fmt.Errorf("sample rate %d: %w", sampleRate, errs.ErrInvalidValue)
	}
	cfg := defaultPlayerConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.channels < 1 || cfg.channels > synth.MaxChannels {
		return nil, fmt.Errorf("%d channels: %w", cfg.channels, errs.ErrInvalidNumChannels)
	}
	switch cfg.backend {
	case "", BackendEbiten, BackendOto:
	default:
		return nil, fmt.Errorf("backend %q: %w", cfg.backend, errs.ErrInvalidValue)
	}
	logger := cfg.logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Player{
		sampleRate:   sampleRate,
		channels:     cfg.channels,
		backend:      cfg.backend,
		volume:       1,
		loopPlayback: cfg.loopPlayback,
		sampleTap:    cfg.sampleTap,
		logger:       logger,
	}, nil
}

// newSource builds the sequencer for song and wires its events to the player.
func (p *Player) newSource(song *Song) (*eventWrapper, error) {
	wrapper := &eventWrapper{sampleTap: p.sampleTap}
	done := p.done
	onEvent := func(kind intseq.EventKind) {
		if kind == intseq.EventPlaybackEnded {
			wrapper.finished.Store(true)
		}
		// The sequencer is locked here; Err would deadlock.
		p.sendEvent(PlaybackEvent{Kind: int(kind)})
		if kind == intseq.EventPlaybackEnded {
			p.logger.Printf("chipkit: playback ended")
			p.signalDone(done)
		}
	}
	seq, err := intseq.New(song, p.sampleRate, intseq.Options{
		Channels:       p.channels,
		LoopWholeScore: p.loopPlayback,
		OnEvent:        onEvent,
	})
	if err != nil {
		return nil, err
	}
	seq.SetMasterVolume(volumeAttr(p.volume))
	wrapper.seq = seq
	return wrapper, nil
}

// Play replaces the current song. The song's programs are not copied and must
// not change while playing.
func (p *Player) Play(song *Song) error {
	if song == nil {
		return fmt.Errorf("nil song: %w", errs.ErrInvalidValue)
	}
	p.mu.Lock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})

	wrapper, err := p.newSource(song)
	if err != nil {
		p.mu.Unlock()
		return err
	}
	backend, err := intaudio.NewPlayer(p.backend, p.sampleRate, p.channels, wrapper)
	if err != nil {
		wrapper.seq.Close()
		p.mu.Unlock()
		return err
	}
	prevAudio, prevSeq := p.audio, p.seq
	p.audio, p.seq = backend, wrapper.seq
	p.audio.Play()
	p.mu.Unlock()

	// The old stream may be blocked on p.mu inside an event callback, so it
	// is torn down unlocked.
	if prevAudio != nil {
		_ = prevAudio.Stop()
	}
	if prevSeq != nil {
		prevSeq.Close()
	}
	p.logger.Printf("chipkit: playing %d voices at %d Hz via %s", len(song.Voices), p.sampleRate, p.backend)
	return nil
}

func (p *Player) sendEvent(ev PlaybackEvent) {
	p.eventChMu.Lock()
	ch := p.eventCh
	p.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
			// Channel full or closed; drop event
		}
	}
}

// signalDone releases Wait for the playback that owns done. A replaced
// playback finds p.done changed and does nothing.
func (p *Player) signalDone(done chan struct{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if done != nil && p.done == done {
		p.done = nil
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// IsPlaying reports whether the backend is currently pulling audio.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audio != nil && p.audio.IsPlaying()
}

// Position returns how much of the current song has been heard.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return 0
	}
	return p.audio.Position()
}

// Err returns the error that silenced the current song, if any.
func (p *Player) Err() error {
	p.mu.Lock()
	seq := p.seq
	p.mu.Unlock()
	if seq == nil {
		return nil
	}
	return seq.Err()
}

func (p *Player) Stop() error {
	p.mu.Lock()
	if p.audio == nil {
		p.mu.Unlock()
		return nil
	}
	audio, seq := p.audio, p.seq
	p.audio, p.seq = nil, nil
	done := p.done
	p.done = nil
	p.mu.Unlock()

	err := audio.Stop()
	serr := seq.Err()
	seq.Close()
	p.sendEvent(PlaybackEvent{Kind: EventPlaybackEnded, Err: serr})
	if done != nil {
		close(done)
	}
	p.logger.Printf("chipkit: stopped")
	return err
}

// Wait blocks until the current playback ends. When loop playback is enabled,
// Wait blocks indefinitely (use Watch for loop-counting instead).
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Watch returns a channel that receives playback events. Events are sent when:
//   - EventLoopCompleted: a whole-song loop iteration finished (when looping)
//   - EventPlaybackEnded: playback finished (when not looping) or was stopped
//
// The channel is buffered (cap 8); receive in a goroutine to avoid blocking the sequencer.
// Only the most recent Watch() channel receives events; call Watch before Play.
func (p *Player) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	p.eventChMu.Lock()
	p.eventCh = ch
	p.eventChMu.Unlock()
	return ch
}

// SetMasterVolume sets runtime volume scalar in [0, 1]. 1.0 is default.
func (p *Player) SetMasterVolume(volume float64) {
	volume = min(max(volume, 0), 1)
	p.mu.Lock()
	p.volume = volume
	seq := p.seq
	p.mu.Unlock()
	// Process holds the sequencer lock while calling back into the player.
	if seq != nil {
		seq.SetMasterVolume(volumeAttr(volume))
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func volumeAttr(v float64) int {
	return attr.Clamp(int(v*attr.MaxVolume+0.5), 0, attr.MaxVolume)
}
