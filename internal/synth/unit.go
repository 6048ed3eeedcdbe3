package synth

import (
	"fmt"

	"github.com/cbegin/chipkit-go/internal/attr"
	"github.com/cbegin/chipkit-go/internal/errs"
	"github.com/cbegin/chipkit-go/internal/fixed"
)

// Repeat is the sample playback policy at a range boundary.
type Repeat int

const (
	RepeatNone Repeat = iota
	RepeatLoop
	RepeatPalindrome
)

// MinPeriod is the shortest non-zero phase duration.
const MinPeriod = fixed.Unit >> 6

// MaxSamplePeriod bounds the sample step, in fixed-point frames per output
// sample.
const MaxSamplePeriod = 256 << fixed.Shift

// SampleFunc is called when sample playback reaches a range boundary.
// Returning false halts playback. Returning true keeps playing: the callback
// may reposition the unit, otherwise it wraps as the repeat mode says, with
// RepeatNone treated as RepeatLoop.
type SampleFunc func(u *Unit) bool

type sampleState struct {
	data     *Data
	offset   int64
	period   int64
	pitch    int
	step     int64
	reverse  bool
	start    int
	end      int
	susStart int
	susEnd   int
	released bool
	repeat   Repeat
	callback SampleFunc
	halted   bool
}

// Unit is a single oscillator. It turns its waveform, period and per-channel
// volume into amplitude steps in the context's buffers.
type Unit struct {
	ctx        *Context
	waveform   Waveform
	phase      int
	numPhases  int
	phaseWrap  int
	phaseCount int
	duty       int
	period     fixed.Time
	time       fixed.Time
	volume     [MaxChannels]int
	last       [MaxChannels]int
	noise      uint16
	muted      bool
	custom     *Data
	smp        sampleState
}

// NewUnit returns a silent square unit.
func NewUnit() *Unit {
	u := &Unit{
		waveform:  WaveformSquare,
		numPhases: SquarePhases,
		duty:      DefaultDutyCycle,
		noise:     noiseSeed,
	}
	u.smp.period = fixed.Unit
	u.smp.step = fixed.Unit
	return u
}

// Attach adds u to ctx.
func (u *Unit) Attach(ctx *Context) error {
	if u.ctx != nil {
		return fmt.Errorf("unit: already attached: %w", errs.ErrInvalidState)
	}
	u.ctx = ctx
	u.time = ctx.cursor
	u.last = [MaxChannels]int{}
	ctx.units = append(ctx.units, u)
	return nil
}

// Detach silences u and removes it from its context.
func (u *Unit) Detach() {
	ctx := u.ctx
	if ctx == nil {
		return
	}
	_ = u.flush(false)
	for i, o := range ctx.units {
		if o == u {
			copy(ctx.units[i:], ctx.units[i+1:])
			ctx.units[len(ctx.units)-1] = nil
			ctx.units = ctx.units[:len(ctx.units)-1]
			break
		}
	}
	u.ctx = nil
}

// Dispose detaches u and drops its data references.
func (u *Unit) Dispose() {
	u.Detach()
	_ = u.SetCustomWaveform(nil)
	_ = u.SetSample(nil)
}

// Context returns the context u is attached to.
func (u *Unit) Context() *Context { return u.ctx }

// Reset silences u and restarts its waveform from phase 0.
func (u *Unit) Reset() {
	_ = u.flush(u.waveform == WaveformSample)
	u.phase = 0
	u.phaseCount = 0
	u.noise = noiseSeed
	if u.ctx != nil {
		u.time = u.ctx.cursor
	} else {
		u.time = 0
	}
	u.RestartSample()
}

// Run emits u's output up to end.
func (u *Unit) Run(end fixed.Time) error {
	if u.ctx == nil {
		return fmt.Errorf("unit: not attached: %w", errs.ErrInvalidState)
	}
	if u.waveform == WaveformSample {
		return u.runSample(end)
	}
	if u.muted || u.period <= 0 {
		if err := u.flush(false); err != nil {
			return err
		}
		if u.time < end {
			u.time = end
		}
		return nil
	}
	nch := u.ctx.numChannels
	for u.time < end {
		amp := u.amplitude()
		for c := 0; c < nch; c++ {
			out := amp * u.volume[c] >> attr.VolumeShift
			if d := out - u.last[c]; d != 0 {
				if err := u.ctx.buffers[c].AddPulse(u.time, d); err != nil {
					return err
				}
				u.last[c] = out
			}
		}
		u.time += u.period
		u.advance()
	}
	return nil
}

// End moves u's clock back by t at the end of a chunk.
func (u *Unit) End(t fixed.Time) {
	u.time -= t
}

// flush brings every channel's output back to zero.
func (u *Unit) flush(frame bool) error {
	if u.ctx == nil {
		u.last = [MaxChannels]int{}
		return nil
	}
	at := u.time
	if at > u.ctx.cursor {
		at = u.ctx.cursor
	}
	for c := 0; c < u.ctx.numChannels; c++ {
		if u.last[c] == 0 {
			continue
		}
		var err error
		if frame {
			err = u.ctx.buffers[c].AddFrame(at, -u.last[c])
		} else {
			err = u.ctx.buffers[c].AddPulse(at, -u.last[c])
		}
		if err != nil {
			return err
		}
		u.last[c] = 0
	}
	return nil
}

func (u *Unit) amplitude() int {
	switch u.waveform {
	case WaveformSquare:
		return squareAmp(u.phase, u.duty)
	case WaveformTriangle:
		return triangleAmp(u.phase)
	case WaveformNoise:
		return noiseAmp(u.noise)
	case WaveformSawtooth:
		return sawtoothAmp(u.phase)
	case WaveformSine:
		return sineTable[u.phase]
	case WaveformCustom:
		if u.custom != nil && u.phase < u.custom.NumFrames() {
			return customAmp(u.custom, u.phase)
		}
	}
	return 0
}

func (u *Unit) advance() {
	u.phase++
	if u.phase >= u.numPhases {
		u.phase = 0
	}
	if u.waveform == WaveformNoise {
		u.noise = noiseStep(u.noise)
	}
	if u.phaseWrap > 0 {
		u.phaseCount++
		if u.phaseCount >= u.phaseWrap {
			u.phaseCount = 0
			u.phase = 0
			u.noise = noiseSeed
		}
	}
}

func (u *Unit) runSample(end fixed.Time) error {
	s := &u.smp
	if u.muted || s.data == nil || s.halted || s.step == 0 || s.end <= s.start {
		if err := u.flush(true); err != nil {
			return err
		}
		if u.time < end {
			u.time = end
		}
		return nil
	}
	nch := u.ctx.numChannels
	for u.time < end {
		idx := int(s.offset >> fixed.Shift)
		for c := 0; c < nch; c++ {
			out := s.data.Frame(idx, c) * u.volume[c] >> attr.VolumeShift
			if d := out - u.last[c]; d != 0 {
				if err := u.ctx.buffers[c].AddFrame(u.time, d); err != nil {
					return err
				}
				u.last[c] = out
			}
		}
		u.time += fixed.Unit
		if !u.stepSample() {
			s.halted = true
			for c := 0; c < nch; c++ {
				if u.last[c] != 0 {
					if err := u.ctx.buffers[c].AddFrame(u.time, -u.last[c]); err != nil {
						return err
					}
					u.last[c] = 0
				}
			}
			if u.time < end {
				u.time = end
			}
			return nil
		}
	}
	return nil
}

// stepSample advances the sample position and applies the boundary policy.
// It reports whether playback continues.
func (u *Unit) stepSample() bool {
	s := &u.smp
	step := s.step
	if s.reverse {
		step = -step
	}
	s.offset += step
	lo, hi, sustained := s.bounds()
	if step > 0 && s.offset < hi || step < 0 && s.offset >= lo {
		return true
	}
	mode := s.repeat
	switch {
	case sustained:
		if mode == RepeatNone {
			mode = RepeatLoop
		}
	case s.callback != nil:
		if !s.callback(u) {
			return false
		}
		if s.data == nil {
			return false
		}
		lo, hi, _ = s.bounds()
		if s.offset >= lo && s.offset < hi {
			return true
		}
		if mode == RepeatNone {
			mode = RepeatLoop
		}
	}
	switch mode {
	case RepeatLoop:
		span := hi - lo
		for s.offset >= hi {
			s.offset -= span
		}
		for s.offset < lo {
			s.offset += span
		}
	case RepeatPalindrome:
		if s.offset >= hi {
			s.offset = 2*hi - s.offset - fixed.Unit
		} else {
			s.offset = 2*lo - s.offset - fixed.Unit
		}
		s.reverse = !s.reverse
	default:
		return false
	}
	if s.offset >= hi {
		s.offset = hi - 1
	}
	if s.offset < lo {
		s.offset = lo
	}
	return true
}

// bounds returns the active loop range in fixed-point frames.
func (s *sampleState) bounds() (lo, hi int64, sustained bool) {
	if s.susEnd > s.susStart && !s.released {
		return int64(s.susStart) << fixed.Shift, int64(s.susEnd) << fixed.Shift, true
	}
	return int64(s.start) << fixed.Shift, int64(s.end) << fixed.Shift, false
}

// RestartSample rewinds sample playback to the start of its range (the end
// when playing backwards) and re-enters the sustain range.
func (u *Unit) RestartSample() {
	s := &u.smp
	s.halted = s.data == nil || s.end <= s.start
	s.released = false
	s.reverse = false
	if s.step < 0 {
		s.offset = int64(s.end)<<fixed.Shift - 1
	} else {
		s.offset = int64(s.start) << fixed.Shift
	}
}

// ReleaseSustain lets sample playback leave its sustain range.
func (u *Unit) ReleaseSustain() { u.smp.released = true }

// SampleHalted reports whether sample playback has stopped.
func (u *Unit) SampleHalted() bool { return u.smp.halted }

// SampleOffset returns the playback position in fixed-point frames.
func (u *Unit) SampleOffset() int64 { return u.smp.offset }

// SetSampleOffset repositions sample playback; SampleFunc callbacks use it.
func (u *Unit) SetSampleOffset(offset int64) { u.smp.offset = offset }

// Waveform returns the current waveform.
func (u *Unit) Waveform() Waveform { return u.waveform }

// SetWaveform switches waveform and restarts from phase 0.
func (u *Unit) SetWaveform(w Waveform) error {
	if !w.Valid() {
		return fmt.Errorf("unit: waveform %d: %w", w, errs.ErrInvalidValue)
	}
	if w == WaveformCustom && u.custom == nil {
		return fmt.Errorf("unit: no custom waveform data: %w", errs.ErrInvalidState)
	}
	if (w == WaveformSample) != (u.waveform == WaveformSample) {
		_ = u.flush(u.waveform == WaveformSample)
	}
	u.waveform = w
	u.phase = 0
	u.phaseCount = 0
	u.noise = noiseSeed
	u.numPhases = u.phasesFor(w)
	if w == WaveformSample {
		u.RestartSample()
	}
	return nil
}

func (u *Unit) phasesFor(w Waveform) int {
	switch w {
	case WaveformSquare:
		return SquarePhases
	case WaveformTriangle:
		return TrianglePhases
	case WaveformNoise:
		return NoisePhases
	case WaveformSawtooth:
		return SawtoothPhases
	case WaveformSine:
		return SinePhases
	case WaveformCustom:
		if u.custom != nil {
			return u.custom.NumFrames()
		}
	}
	return 1
}

// NumPhases returns the number of phases in one waveform cycle.
func (u *Unit) NumPhases() int { return u.numPhases }

// Phase returns the current phase.
func (u *Unit) Phase() int { return u.phase }

// SetPhase jumps to phase, clamped to the waveform.
func (u *Unit) SetPhase(phase int) { u.phase = attr.Clamp(phase, 0, u.numPhases-1) }

// Period returns the duration of one phase.
func (u *Unit) Period() fixed.Time { return u.period }

// SetPeriod sets the duration of one phase. Zero silences the unit.
func (u *Unit) SetPeriod(p fixed.Time) {
	switch {
	case p <= 0:
		p = 0
	case p < MinPeriod:
		p = MinPeriod
	}
	u.period = p
}

// Volume returns channel ch's volume.
func (u *Unit) Volume(ch int) int {
	if ch < 0 || ch >= MaxChannels {
		return 0
	}
	return u.volume[ch]
}

// SetVolume sets channel ch's volume; ch < 0 sets every channel.
func (u *Unit) SetVolume(ch, v int) {
	v = attr.Clamp(v, 0, attr.MaxVolume)
	if ch < 0 {
		for i := range u.volume {
			u.volume[i] = v
		}
		return
	}
	if ch < MaxChannels {
		u.volume[ch] = v
	}
}

// DutyCycle returns the square duty cycle in sixteenths.
func (u *Unit) DutyCycle() int { return u.duty }

// SetDutyCycle sets the square duty cycle, clamped to [1, 15].
func (u *Unit) SetDutyCycle(d int) { u.duty = attr.Clamp(d, MinDutyCycle, MaxDutyCycle) }

// PhaseWrap returns the phase wrap length; 0 disables it.
func (u *Unit) PhaseWrap() int { return u.phaseWrap }

// SetPhaseWrap restarts the waveform and noise register every n phases.
func (u *Unit) SetPhaseWrap(n int) {
	u.phaseWrap = attr.Clamp(n, 0, 1<<16)
	u.phaseCount = 0
}

// Muted reports whether the unit is muted.
func (u *Unit) Muted() bool { return u.muted }

// SetMuted silences or resumes the unit.
func (u *Unit) SetMuted(m bool) { u.muted = m }

// CustomWaveform returns the custom waveform data.
func (u *Unit) CustomWaveform() *Data { return u.custom }

// SetCustomWaveform sets the data played by WaveformCustom; it must hold
// MinCustomPhases to MaxCustomPhases frames. Setting data switches the unit to
// WaveformCustom; nil falls back to square.
func (u *Unit) SetCustomWaveform(d *Data) error {
	if d != nil {
		if d.Disposed() {
			return fmt.Errorf("unit: custom waveform disposed: %w", errs.ErrInvalidState)
		}
		if n := d.NumFrames(); n < MinCustomPhases || n > MaxCustomPhases {
			return fmt.Errorf("unit: custom waveform of %d frames: %w", n, errs.ErrInvalidValue)
		}
	}
	old := u.custom
	u.custom = d
	if old != nil && old != d && old != u.smp.data {
		old.unsubscribe(u)
	}
	if d == nil {
		if u.waveform == WaveformCustom {
			_ = u.SetWaveform(WaveformSquare)
		}
		return nil
	}
	d.subscribe(u)
	return u.SetWaveform(WaveformCustom)
}

// Sample returns the sample data.
func (u *Unit) Sample() *Data { return u.smp.data }

// SetSample sets the data played by WaveformSample and resets the range to
// the whole sample. Setting data switches the unit to WaveformSample.
func (u *Unit) SetSample(d *Data) error {
	s := &u.smp
	if d != nil && d.Disposed() {
		return fmt.Errorf("unit: sample disposed: %w", errs.ErrInvalidState)
	}
	if d != nil && d.NumFrames() == 0 {
		return fmt.Errorf("unit: empty sample: %w", errs.ErrInvalidValue)
	}
	old := s.data
	s.data = d
	if old != nil && old != d && old != u.custom {
		old.unsubscribe(u)
	}
	s.susStart, s.susEnd = 0, 0
	if d == nil {
		s.start, s.end = 0, 0
		s.halted = true
		return nil
	}
	d.subscribe(u)
	s.start, s.end = 0, d.NumFrames()
	if u.waveform == WaveformSample {
		u.RestartSample()
		return nil
	}
	return u.SetWaveform(WaveformSample)
}

// SampleRange returns the playback range [start, end).
func (u *Unit) SampleRange() [2]int { return [2]int{u.smp.start, u.smp.end} }

// SetSampleRange limits playback to frames [r[0], r[1]).
func (u *Unit) SetSampleRange(r [2]int) error {
	s := &u.smp
	if s.data == nil {
		return fmt.Errorf("unit: no sample: %w", errs.ErrInvalidState)
	}
	n := s.data.NumFrames()
	if r[0] < 0 || r[1] > n || r[0] >= r[1] {
		return fmt.Errorf("unit: sample range %v of %d frames: %w", r, n, errs.ErrInvalidValue)
	}
	s.start, s.end = r[0], r[1]
	u.RestartSample()
	return nil
}

// SampleSustainRange returns the sustain loop; an empty range means none.
func (u *Unit) SampleSustainRange() [2]int { return [2]int{u.smp.susStart, u.smp.susEnd} }

// SetSampleSustainRange loops frames [r[0], r[1]) until ReleaseSustain. An
// empty range removes the loop.
func (u *Unit) SetSampleSustainRange(r [2]int) error {
	s := &u.smp
	if r[0] == r[1] {
		s.susStart, s.susEnd = 0, 0
		return nil
	}
	if s.data == nil {
		return fmt.Errorf("unit: no sample: %w", errs.ErrInvalidState)
	}
	if r[0] < s.start || r[1] > s.end || r[0] > r[1] {
		return fmt.Errorf("unit: sustain range %v outside [%d, %d): %w", r, s.start, s.end, errs.ErrInvalidValue)
	}
	s.susStart, s.susEnd = r[0], r[1]
	return nil
}

// SampleRepeat returns the boundary policy.
func (u *Unit) SampleRepeat() Repeat { return u.smp.repeat }

// SetSampleRepeat sets the boundary policy.
func (u *Unit) SetSampleRepeat(r Repeat) error {
	if r < RepeatNone || r > RepeatPalindrome {
		return fmt.Errorf("unit: repeat mode %d: %w", r, errs.ErrInvalidValue)
	}
	u.smp.repeat = r
	return nil
}

// SamplePeriod returns the signed playback step before pitch is applied.
func (u *Unit) SamplePeriod() int64 { return u.smp.period }

// SetSamplePeriod sets the signed playback step in fixed-point frames per
// output sample; negative plays backwards.
func (u *Unit) SetSamplePeriod(p int64) {
	if p > MaxSamplePeriod {
		p = MaxSamplePeriod
	} else if p < -MaxSamplePeriod {
		p = -MaxSamplePeriod
	}
	u.smp.period = p
	u.updateSampleStep()
}

// SamplePitch returns the pitch offset in fixed-point semitones.
func (u *Unit) SamplePitch() int { return u.smp.pitch }

// SetSamplePitch transposes sample playback by a fixed-point semitone offset.
func (u *Unit) SetSamplePitch(p int) {
	u.smp.pitch = attr.Clamp(p, -fixed.Note(fixed.MaxPianoTone), fixed.Note(fixed.MaxPianoTone))
	u.updateSampleStep()
}

func (u *Unit) updateSampleStep() {
	s := &u.smp
	s.step = s.period
	if s.pitch != 0 {
		s.step = s.period * fixed.PitchRatio(s.pitch) >> fixed.Shift
	}
}

// SampleCallback returns the boundary callback.
func (u *Unit) SampleCallback() SampleFunc { return u.smp.callback }

// SetSampleCallback sets the boundary callback; nil removes it.
func (u *Unit) SetSampleCallback(fn SampleFunc) { u.smp.callback = fn }

func (u *Unit) dataChanged(d *Data, ev DataEvent) {
	if d == u.custom {
		if ev == DataDisposed || d.NumFrames() < MinCustomPhases || d.NumFrames() > MaxCustomPhases {
			u.custom = nil
			if u.waveform == WaveformCustom {
				_ = u.SetWaveform(WaveformSquare)
			}
			if ev != DataDisposed && d != u.smp.data {
				d.unsubscribe(u)
			}
		} else {
			u.numPhases = u.phasesFor(u.waveform)
			if u.phase >= u.numPhases {
				u.phase = 0
			}
		}
	}
	if d == u.smp.data {
		s := &u.smp
		if ev == DataDisposed {
			s.data = nil
			s.halted = true
			s.start, s.end, s.susStart, s.susEnd = 0, 0, 0, 0
			return
		}
		s.start, s.end = 0, d.NumFrames()
		s.susStart, s.susEnd = 0, 0
		u.RestartSample()
	}
}

// SetAttr implements attr.Object.
func (u *Unit) SetAttr(key attr.Key, value int) error {
	switch key {
	case attr.Volume:
		u.SetVolume(-1, value)
	case attr.Volume0:
		u.SetVolume(0, value)
	case attr.Volume1:
		u.SetVolume(1, value)
	case attr.Waveform:
		return u.SetWaveform(Waveform(value))
	case attr.DutyCycle:
		u.SetDutyCycle(value)
	case attr.Period:
		u.SetPeriod(fixed.Time(value))
	case attr.Phase:
		u.SetPhase(value)
	case attr.PhaseWrap:
		u.SetPhaseWrap(value)
	case attr.Mute:
		u.SetMuted(attr.Bool(value))
	case attr.SampleRepeat:
		return u.SetSampleRepeat(Repeat(value))
	case attr.SamplePeriod:
		u.SetSamplePeriod(int64(value))
	case attr.SamplePitch:
		u.SetSamplePitch(value)
	case attr.NumPhases:
		return fmt.Errorf("unit: %s is read-only: %w", key, errs.ErrInvalidState)
	default:
		return fmt.Errorf("unit: %s: %w", key, errs.ErrInvalidAttribute)
	}
	return nil
}

// Attr implements attr.Object.
func (u *Unit) Attr(key attr.Key) (int, error) {
	switch key {
	case attr.Volume, attr.Volume0:
		return u.volume[0], nil
	case attr.Volume1:
		return u.volume[1], nil
	case attr.Waveform:
		return int(u.waveform), nil
	case attr.DutyCycle:
		return u.duty, nil
	case attr.Period:
		return int(u.period), nil
	case attr.Phase:
		return u.phase, nil
	case attr.PhaseWrap:
		return u.phaseWrap, nil
	case attr.NumPhases:
		return u.numPhases, nil
	case attr.Mute:
		return attr.Int(u.muted), nil
	case attr.SampleRepeat:
		return int(u.smp.repeat), nil
	case attr.SamplePeriod:
		return int(u.smp.period), nil
	case attr.SamplePitch:
		return u.smp.pitch, nil
	}
	return 0, fmt.Errorf("unit: %s: %w", key, errs.ErrInvalidAttribute)
}

// SetPtr implements attr.Object.
func (u *Unit) SetPtr(key attr.Key, value any) error {
	switch key {
	case attr.CustomWaveform:
		d, err := dataPtr(key, value)
		if err != nil {
			return err
		}
		return u.SetCustomWaveform(d)
	case attr.Sample:
		d, err := dataPtr(key, value)
		if err != nil {
			return err
		}
		return u.SetSample(d)
	case attr.SampleRange:
		r, err := rangePtr(key, value)
		if err != nil {
			return err
		}
		if value == nil {
			if u.smp.data == nil {
				return nil
			}
			r = [2]int{0, u.smp.data.NumFrames()}
		}
		return u.SetSampleRange(r)
	case attr.SampleSustainRange:
		r, err := rangePtr(key, value)
		if err != nil {
			return err
		}
		return u.SetSampleSustainRange(r)
	case attr.SampleCallback:
		switch fn := value.(type) {
		case nil:
			u.SetSampleCallback(nil)
		case SampleFunc:
			u.SetSampleCallback(fn)
		case func(*Unit) bool:
			u.SetSampleCallback(fn)
		default:
			return fmt.Errorf("unit: %s: %T: %w", key, value, errs.ErrInvalidValue)
		}
		return nil
	}
	return fmt.Errorf("unit: %s: %w", key, errs.ErrInvalidAttribute)
}

// Ptr implements attr.Object.
func (u *Unit) Ptr(key attr.Key) (any, error) {
	switch key {
	case attr.CustomWaveform:
		return u.custom, nil
	case attr.Sample:
		return u.smp.data, nil
	case attr.SampleRange:
		return u.SampleRange(), nil
	case attr.SampleSustainRange:
		return u.SampleSustainRange(), nil
	case attr.SampleCallback:
		return u.smp.callback, nil
	}
	return nil, fmt.Errorf("unit: %s: %w", key, errs.ErrInvalidAttribute)
}

func dataPtr(key attr.Key, value any) (*Data, error) {
	switch d := value.(type) {
	case nil:
		return nil, nil
	case *Data:
		return d, nil
	}
	return nil, fmt.Errorf("%s: %T: %w", key, value, errs.ErrInvalidValue)
}

func rangePtr(key attr.Key, value any) ([2]int, error) {
	switch r := value.(type) {
	case nil:
		return [2]int{}, nil
	case [2]int:
		return r, nil
	case []int:
		if len(r) == 2 {
			return [2]int{r[0], r[1]}, nil
		}
	}
	return [2]int{}, fmt.Errorf("%s: %T: %w", key, value, errs.ErrInvalidValue)
}
