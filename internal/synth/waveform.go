package synth

import (
	"math"

	"github.com/cbegin/chipkit-go/internal/attr"
)

// Waveform selects what a unit plays.
type Waveform int

const (
	WaveformSquare Waveform = iota
	WaveformTriangle
	WaveformNoise
	WaveformSawtooth
	WaveformSine
	WaveformCustom
	WaveformSample
)

func (w Waveform) String() string {
	switch w {
	case WaveformSquare:
		return "square"
	case WaveformTriangle:
		return "triangle"
	case WaveformNoise:
		return "noise"
	case WaveformSawtooth:
		return "sawtooth"
	case WaveformSine:
		return "sine"
	case WaveformCustom:
		return "custom"
	case WaveformSample:
		return "sample"
	}
	return "unknown"
}

// Valid reports whether w names a waveform.
func (w Waveform) Valid() bool { return w >= WaveformSquare && w <= WaveformSample }

// Phase counts of the built-in waveforms.
const (
	SquarePhases   = 16
	TrianglePhases = 32
	NoisePhases    = 8
	SawtoothPhases = 7
	SinePhases     = 32
)

// Custom waveform length limits.
const (
	MinCustomPhases = 2
	MaxCustomPhases = 64
)

// Square duty cycle limits, in sixteenths.
const (
	MinDutyCycle     = 1
	MaxDutyCycle     = 15
	DefaultDutyCycle = 4
)

const noiseSeed = 1

var sineTable = func() [SinePhases]int {
	var t [SinePhases]int
	for i := range t {
		t[i] = int(math.Round(attr.MaxVolume * math.Sin(2*math.Pi*float64(i)/SinePhases)))
	}
	return t
}()

func squareAmp(phase, duty int) int {
	if phase < duty {
		return attr.MaxVolume
	}
	return -attr.MaxVolume
}

func triangleAmp(phase int) int {
	v := phase
	if v >= TrianglePhases/2 {
		v = TrianglePhases - 1 - v
	}
	return v*2*attr.MaxVolume/(TrianglePhases/2-1) - attr.MaxVolume
}

func sawtoothAmp(phase int) int {
	return phase*2*attr.MaxVolume/(SawtoothPhases-1) - attr.MaxVolume
}

func noiseAmp(s uint16) int {
	if s&1 != 0 {
		return attr.MaxVolume
	}
	return -attr.MaxVolume
}

// noiseStep advances the 15-bit noise register.
func noiseStep(s uint16) uint16 {
	bit := (s ^ s>>1) & 1
	return s>>1 | bit<<14
}

func customAmp(d *Data, phase int) int {
	return attr.Clamp(d.Frame(phase, 0), -attr.MaxVolume, attr.MaxVolume)
}
