package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten streams are always 16-bit stereo.
const ebitenChannels = 2

type ebitenPlayer struct {
	player *ebitaudio.Player
	reader io.ReadCloser
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

func newEbitenPlayer(sampleRate, channels int, source SampleSource) (*ebitenPlayer, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, channels, ebitenChannels)
	pl, err := ctx.NewPlayer(reader)
	if err != nil {
		return nil, err
	}
	return &ebitenPlayer{
		player: pl,
		reader: reader,
	}, nil
}

func (p *ebitenPlayer) Play()           { p.player.Play() }
func (p *ebitenPlayer) Pause()          { p.player.Pause() }
func (p *ebitenPlayer) IsPlaying() bool { return p.player.IsPlaying() }

func (p *ebitenPlayer) Position() time.Duration {
	return p.player.Position()
}

func (p *ebitenPlayer) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
