// Package interpolate provides the two fixed-point state machines every track
// effect is built from: a linear slide toward a target and a bounded periodic
// oscillation.
package interpolate

// slideShift adds precision below the value's own fixed-point unit so slow
// slides still move every step.
const slideShift = 8

// Slide moves its value toward a target in a fixed number of steps.
type Slide struct {
	value     int64 // shifted by slideShift
	end       int64
	delta     int64
	steps     int
	remaining int
}

// SetSteps sets the number of steps used by subsequent SetValue calls. Zero
// makes SetValue jump. A slide in progress is retimed to finish in the new
// number of steps.
func (s *Slide) SetSteps(steps int) {
	if steps < 0 {
		steps = 0
	}
	s.steps = steps
	if s.remaining > 0 {
		if steps == 0 {
			s.value = s.end
			s.remaining = 0
			return
		}
		s.start(steps)
	}
}

// Steps returns the configured slide length.
func (s *Slide) Steps() int { return s.steps }

// SetValue slides to v over the configured steps, or jumps when steps is 0.
func (s *Slide) SetValue(v int) {
	s.end = int64(v) << slideShift
	if s.steps == 0 {
		s.value = s.end
		s.remaining = 0
		return
	}
	s.start(s.steps)
}

func (s *Slide) start(steps int) {
	s.remaining = steps
	s.delta = (s.end - s.value) / int64(steps)
	if s.delta == 0 {
		s.value = s.end
		s.remaining = 0
	}
}

// Jump sets the value and the target immediately.
func (s *Slide) Jump(v int) {
	s.value = int64(v) << slideShift
	s.end = s.value
	s.remaining = 0
}

// Halt stops the slide at its current value.
func (s *Slide) Halt() {
	s.end = s.value
	s.remaining = 0
}

// Step advances the slide by one step.
func (s *Slide) Step() {
	if s.remaining <= 0 {
		return
	}
	s.remaining--
	if s.remaining == 0 {
		s.value = s.end
		return
	}
	s.value += s.delta
}

// Value returns the current value.
func (s *Slide) Value() int { return int(s.value >> slideShift) }

// Target returns the value the slide is heading to.
func (s *Slide) Target() int { return int(s.end >> slideShift) }

// Sliding reports whether steps remain.
func (s *Slide) Sliding() bool { return s.remaining > 0 }

// Interval is a triangle oscillation of period steps and amplitude delta. The
// amplitude itself slides, so enabling and disabling fade in and out.
type Interval struct {
	delta Slide
	steps int
	phase int
}

// Set configures the period (steps), amplitude (delta) and the number of
// steps the amplitude takes to reach delta.
func (iv *Interval) Set(steps, delta, slideSteps int) {
	if steps < 1 {
		steps = 1
	}
	iv.steps = steps
	if iv.phase >= steps {
		iv.phase %= steps
	}
	iv.delta.SetSteps(slideSteps)
	iv.delta.SetValue(delta)
}

// Params returns the configured period, target amplitude and slide steps.
func (iv *Interval) Params() (steps, delta, slideSteps int) {
	return iv.steps, iv.delta.Target(), iv.delta.Steps()
}

// Amplitude returns the current, possibly still sliding, amplitude.
func (iv *Interval) Amplitude() int { return iv.delta.Value() }

// Step advances the oscillation one step.
func (iv *Interval) Step() {
	if iv.steps == 0 {
		return
	}
	iv.delta.Step()
	iv.phase++
	if iv.phase >= iv.steps {
		iv.phase = 0
	}
}

// Value returns the current offset in [-delta, delta].
func (iv *Interval) Value() int {
	if iv.steps == 0 {
		return 0
	}
	d := int64(iv.delta.Value())
	if d == 0 {
		return 0
	}
	steps := int64(iv.steps)
	q := int64(iv.phase) * 4
	switch {
	case q < steps:
		return int(d * q / steps)
	case q < 3*steps:
		return int(d * (2*steps - q) / steps)
	default:
		return int(d * (q - 4*steps) / steps)
	}
}

// Active reports whether the oscillation currently produces offsets.
func (iv *Interval) Active() bool {
	return iv.steps > 0 && (iv.delta.Value() != 0 || iv.delta.Sliding())
}

// Reset zeroes phase and amplitude.
func (iv *Interval) Reset() {
	*iv = Interval{}
}
