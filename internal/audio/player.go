package audio

import (
	"fmt"
	"time"
)

// Backend selects the audio device library.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

// Player is a running device stream.
type Player interface {
	Play()
	Pause()
	IsPlaying() bool
	// Position returns how much audio the listener has heard.
	Position() time.Duration
	Stop() error
}

// NewPlayer opens backend at sampleRate and streams source, which renders
// channels interleaved channels.
func NewPlayer(backend Backend, sampleRate, channels int, source SampleSource) (Player, error) {
	switch backend {
	case BackendEbiten, "":
		return newEbitenPlayer(sampleRate, channels, source)
	case BackendOto:
		return newOtoPlayer(sampleRate, channels, source)
	}
	return nil, fmt.Errorf("unknown audio backend %q", backend)
}
