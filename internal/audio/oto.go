package audio

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

type otoPlayer struct {
	player     *oto.Player
	reader     io.ReadCloser
	sampleRate int
	frameBytes int
}

// oto allows one context per process.
var (
	otoOnce     sync.Once
	otoContext  *oto.Context
	otoErr      error
	otoRate     int
	otoChannels int
)

func sharedOtoContext(sampleRate, channels int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate, otoChannels = sampleRate, channels
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoContext = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate || otoChannels != channels {
		return nil, fmt.Errorf("oto context already initialized at %d Hz x %d (requested %d Hz x %d)", otoRate, otoChannels, sampleRate, channels)
	}
	return otoContext, nil
}

func newOtoPlayer(sampleRate, channels int, source SampleSource) (*otoPlayer, error) {
	ctx, err := sharedOtoContext(sampleRate, channels)
	if err != nil {
		return nil, err
	}
	reader := NewStreamReader(source, channels, channels)
	pl := ctx.NewPlayer(reader)
	pl.SetBufferSize(sampleRate / 10 * channels * 2)
	return &otoPlayer{
		player:     pl,
		reader:     reader,
		sampleRate: sampleRate,
		frameBytes: channels * 2,
	}, nil
}

func (p *otoPlayer) Play()           { p.player.Play() }
func (p *otoPlayer) Pause()          { p.player.Pause() }
func (p *otoPlayer) IsPlaying() bool { return p.player.IsPlaying() }

// Position is approximated by what the stream produced minus what oto still
// buffers.
func (p *otoPlayer) Position() time.Duration {
	if s, ok := p.reader.(*StreamReader); ok {
		frames := s.Frames() - int64(p.player.BufferedSize()/p.frameBytes)
		return time.Duration(max(frames, 0)) * time.Second / time.Duration(p.sampleRate)
	}
	return 0
}

func (p *otoPlayer) Stop() error {
	p.player.Pause()
	p.player.Close()
	return p.reader.Close()
}
