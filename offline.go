package chipkit

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/youpy/go-wav"

	"github.com/cbegin/chipkit-go/internal/errs"
	intseq "github.com/cbegin/chipkit-go/internal/sequencer"
	"github.com/cbegin/chipkit-go/internal/synth"
)

// wavChannels is the most channels a go-wav sample holds.
const wavChannels = 2

// Render plays song for the given number of seconds without an audio device
// and returns interleaved frames. Rendering stops early, and returns the
// error, if a voice program fails.
func Render(song *Song, sampleRate, channels int, seconds float64) ([]int16, error) {
	if seconds < 0 {
		return nil, fmt.Errorf("render %v seconds: %w", seconds, errs.ErrInvalidValue)
	}
	seq, err := intseq.New(song, sampleRate, intseq.Options{Channels: channels})
	if err != nil {
		return nil, err
	}
	defer seq.Close()
	frames := int(float64(sampleRate) * seconds)
	out := make([]int16, frames*seq.NumChannels())
	seq.Process(out)
	if err := seq.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteWAV encodes interleaved 16-bit frames as a PCM WAV file. Mono and
// stereo are supported.
func WriteWAV(w io.Writer, frames []int16, sampleRate, channels int) error {
	if channels < 1 || channels > wavChannels {
		return fmt.Errorf("wav: %d channels: %w", channels, errs.ErrInvalidNumChannels)
	}
	if len(frames)%channels != 0 {
		return fmt.Errorf("wav: %d samples for %d channels: %w", len(frames), channels, errs.ErrInvalidNumFrames)
	}
	n := len(frames) / channels
	samples := make([]wav.Sample, n)
	for i := range samples {
		for c := 0; c < channels; c++ {
			samples[i].Values[c] = int(frames[i*channels+c])
		}
	}
	ww := wav.NewWriter(w, uint32(n), uint16(channels), uint32(sampleRate), 16)
	if err := ww.WriteSamples(samples); err != nil {
		return fmt.Errorf("wav: %v: %w", err, errs.ErrFileNotWritable)
	}
	return nil
}

// ReadWAVSample decodes a PCM WAV file into sample data for OpSample. 8, 16,
// 24 and 32 bit files are converted to 16 bits.
func ReadWAVSample(r io.Reader) (*Data, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("wav: %v: %w", err, errs.ErrFileNotReadable)
	}
	if len(raw) < 12 || string(raw[0:4]) != "RIFF" || string(raw[8:12]) != "WAVE" {
		return nil, fmt.Errorf("wav: not a RIFF WAVE stream: %w", errs.ErrFileNotReadable)
	}
	wr := wav.NewReader(bytes.NewReader(raw))
	format, err := wr.Format()
	if err != nil {
		return nil, fmt.Errorf("wav: %v: %w", err, errs.ErrFileNotReadable)
	}
	channels := int(format.NumChannels)
	if channels < 1 || channels > wavChannels {
		return nil, fmt.Errorf("wav: %d channels: %w", channels, errs.ErrInvalidNumChannels)
	}
	var shift func(int) int16
	switch format.BitsPerSample {
	case 8:
		shift = func(v int) int16 { return int16((v - 128) << 8) }
	case 16:
		shift = func(v int) int16 { return int16(v) }
	case 24:
		shift = func(v int) int16 { return int16(v >> 8) }
	case 32:
		shift = func(v int) int16 { return int16(v >> 16) }
	default:
		return nil, fmt.Errorf("wav: %d bits: %w", format.BitsPerSample, errs.ErrInvalidNumBits)
	}

	var frames []int16
	for {
		samples, err := wr.ReadSamples()
		for _, s := range samples {
			for c := 0; c < channels; c++ {
				frames = append(frames, shift(wr.IntValue(s, uint(c))))
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("wav: %v: %w", err, errs.ErrFileNotReadable)
		}
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("wav: no frames: %w", errs.ErrInvalidNumFrames)
	}
	return synth.NewDataFrames(frames, channels)
}
