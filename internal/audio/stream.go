// Package audio plays interleaved int16 frames through a real audio device.
package audio

import (
	"encoding/binary"
	"io"
	"sync"
)

// SampleSource fills dst with interleaved frames.
type SampleSource interface {
	Process(dst []int16)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader turns a SampleSource into signed 16-bit little-endian PCM.
// Source channels are mapped onto the output channels round-robin, so a mono
// source plays on both sides of a stereo device.
type StreamReader struct {
	mu       sync.Mutex
	source   SampleSource
	channels int
	out      int
	buf      []int16
	frames   int64
}

func NewStreamReader(source SampleSource, channels, outChannels int) *StreamReader {
	return &StreamReader{
		source:   source,
		channels: max(channels, 1),
		out:      max(outChannels, 1),
	}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / (2 * r.out)
	if frames == 0 {
		return 0, nil
	}
	need := frames * r.channels
	if cap(r.buf) < need {
		r.buf = make([]int16, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for f := 0; f < frames; f++ {
		for c := 0; c < r.out; c++ {
			s := r.buf[f*r.channels+c%r.channels]
			binary.LittleEndian.PutUint16(p[(f*r.out+c)*2:], uint16(s))
		}
	}
	r.frames += int64(frames)
	n := frames * r.out * 2
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

// Frames returns the number of frames read so far.
func (r *StreamReader) Frames() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

func (r *StreamReader) Close() error { return nil }
