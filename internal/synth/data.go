package synth

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
)

// DataEvent tells a subscriber what happened to data it references.
type DataEvent int

const (
	DataReset DataEvent = iota
	DataDisposed
)

type dataObserver interface {
	dataChanged(d *Data, ev DataEvent)
}

// Data holds interleaved 16-bit frames used as a custom waveform or as a
// sample. Units subscribe while they play it.
type Data struct {
	frames      []int16
	numChannels int
	numBits     int
	observers   []dataObserver
	disposed    bool
}

// NewData returns empty data.
func NewData() *Data {
	return &Data{numChannels: 1, numBits: 16}
}

// NewDataFrames is NewData followed by SetFrames.
func NewDataFrames(frames []int16, numChannels int) (*Data, error) {
	d := NewData()
	if err := d.SetFrames(frames, numChannels); err != nil {
		return nil, err
	}
	return d, nil
}

// SetFrames copies frames (interleaved by channel) into d.
func (d *Data) SetFrames(frames []int16, numChannels int) error {
	if d.disposed {
		return fmt.Errorf("data: disposed: %w", errs.ErrInvalidState)
	}
	if numChannels < 1 || numChannels > MaxChannels {
		return fmt.Errorf("data: %d channels: %w", numChannels, errs.ErrInvalidNumChannels)
	}
	if len(frames) == 0 || len(frames)%numChannels != 0 {
		return fmt.Errorf("data: %d values for %d channels: %w", len(frames), numChannels, errs.ErrInvalidNumFrames)
	}
	d.frames = append(d.frames[:0], frames...)
	d.numChannels = numChannels
	d.numBits = 16
	d.notify(DataReset)
	return nil
}

// SetPackedFrames unpacks frames stored with bits per value (1, 2, 4, 8 or
// 16). Sub-byte values are unsigned, most significant bits first, and are
// spread over the full amplitude range; 16-bit values are signed little
// endian.
func (d *Data) SetPackedFrames(packed []byte, numChannels, bits int) error {
	if d.disposed {
		return fmt.Errorf("data: disposed: %w", errs.ErrInvalidState)
	}
	switch bits {
	case 1, 2, 4, 8, 16:
	default:
		return fmt.Errorf("data: %d bits: %w", bits, errs.ErrInvalidNumBits)
	}
	if numChannels < 1 || numChannels > MaxChannels {
		return fmt.Errorf("data: %d channels: %w", numChannels, errs.ErrInvalidNumChannels)
	}
	n := len(packed) * 8 / bits
	n -= n % numChannels
	if n == 0 {
		return fmt.Errorf("data: %d bytes at %d bits: %w", len(packed), bits, errs.ErrInvalidNumFrames)
	}
	frames := make([]int16, n)
	if bits == 16 {
		for i := range frames {
			frames[i] = int16(uint16(packed[2*i]) | uint16(packed[2*i+1])<<8)
		}
	} else {
		top := 1<<bits - 1
		perByte := 8 / bits
		for i := range frames {
			shift := 8 - bits*(i%perByte+1)
			v := int(packed[i/perByte]>>shift) & top
			frames[i] = int16(v*2*attr.MaxVolume/top - attr.MaxVolume)
		}
	}
	d.frames = frames
	d.numChannels = numChannels
	d.numBits = bits
	d.notify(DataReset)
	return nil
}

// Normalize scales the frames so the loudest reaches full volume.
func (d *Data) Normalize() error {
	if d.disposed {
		return fmt.Errorf("data: disposed: %w", errs.ErrInvalidState)
	}
	peak := 0
	for _, v := range d.frames {
		a := int(v)
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak == 0 {
		return nil
	}
	for i, v := range d.frames {
		d.frames[i] = int16(attr.Clamp(int(v)*attr.MaxVolume/peak, -attr.MaxVolume, attr.MaxVolume))
	}
	d.notify(DataReset)
	return nil
}

// NumFrames returns the number of frames (values per channel).
func (d *Data) NumFrames() int {
	if d.numChannels == 0 {
		return 0
	}
	return len(d.frames) / d.numChannels
}

// NumChannels returns the channel count.
func (d *Data) NumChannels() int { return d.numChannels }

// NumBits returns the bit depth the frames were loaded from.
func (d *Data) NumBits() int { return d.numBits }

// Frame returns frame i of channel ch; channels past the data's count wrap.
func (d *Data) Frame(i, ch int) int {
	return int(d.frames[i*d.numChannels+ch%d.numChannels])
}

// Frames returns the interleaved frames. Callers must not modify them.
func (d *Data) Frames() []int16 { return d.frames }

// Reset drops the frames. Subscribers are notified.
func (d *Data) Reset() {
	d.frames = nil
	d.numChannels = 1
	d.numBits = 16
	d.notify(DataReset)
}

// Dispose notifies subscribers and makes d unusable.
func (d *Data) Dispose() {
	if d.disposed {
		return
	}
	d.frames = nil
	d.disposed = true
	observers := d.observers
	d.observers = nil
	for _, o := range observers {
		o.dataChanged(d, DataDisposed)
	}
}

// Disposed reports whether Dispose was called.
func (d *Data) Disposed() bool { return d.disposed }

// NumObservers returns the number of subscribed units.
func (d *Data) NumObservers() int { return len(d.observers) }

func (d *Data) notify(ev DataEvent) {
	for _, o := range append([]dataObserver(nil), d.observers...) {
		o.dataChanged(d, ev)
	}
}

func (d *Data) subscribe(o dataObserver) {
	for _, x := range d.observers {
		if x == o {
			return
		}
	}
	d.observers = append(d.observers, o)
}

func (d *Data) unsubscribe(o dataObserver) {
	for i, x := range d.observers {
		if x == o {
			copy(d.observers[i:], d.observers[i+1:])
			d.observers[len(d.observers)-1] = nil
			d.observers = d.observers[:len(d.observers)-1]
			return
		}
	}
}

// SetAttr implements attr.Object. Data attributes are read-only.
func (d *Data) SetAttr(key attr.Key, _ int) error {
	switch key {
	case attr.NumFrames, attr.NumChannels, attr.NumBits:
		return fmt.Errorf("data: %s is read-only: %w", key, errs.ErrInvalidState)
	}
	return fmt.Errorf("data: %s: %w", key, errs.ErrInvalidAttribute)
}

// Attr implements attr.Object.
func (d *Data) Attr(key attr.Key) (int, error) {
	switch key {
	case attr.NumFrames:
		return d.NumFrames(), nil
	case attr.NumChannels:
		return d.numChannels, nil
	case attr.NumBits:
		return d.numBits, nil
	}
	return 0, fmt.Errorf("data: %s: %w", key, errs.ErrInvalidAttribute)
}

// SetPtr implements attr.Object.
func (d *Data) SetPtr(key attr.Key, _ any) error {
	return fmt.Errorf("data: %s: %w", key, errs.ErrInvalidAttribute)
}

// Ptr implements attr.Object.
func (d *Data) Ptr(key attr.Key) (any, error) {
	return nil, fmt.Errorf("data: %s: %w", key, errs.ErrInvalidAttribute)
}
