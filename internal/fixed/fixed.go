// Package fixed holds the engine's 12.20 fixed-point time type and the piano
// tone table used to turn notes into waveform periods.
package fixed

import "math"

const (
	// Shift is the number of fractional bits in Time and in note values.
	Shift = 20
	// Unit is one sample (or one semitone for notes).
	Unit = 1 << Shift
	// FracMask selects the fractional part.
	FracMask = Unit - 1
)

// Time is a sample position with 20 fractional bits.
type Time int64

// FromSamples converts a whole number of samples to Time.
func FromSamples(n int) Time { return Time(n) << Shift }

// Samples returns the integer sample count (floor).
func (t Time) Samples() int { return int(t >> Shift) }

// Frac returns the sub-sample fraction in [0, Unit).
func (t Time) Frac() int { return int(t & FracMask) }

// Ceil returns the smallest whole sample count not less than t.
func (t Time) Ceil() int { return int((t + FracMask) >> Shift) }

// Piano tone range in semitones; C0 is 0.
const (
	MinPianoTone = 0
	MaxPianoTone = 96
	C4           = 48
	A4           = 57
)

// Note converts a semitone number to a fixed-point note value.
func Note(semitone int) int { return semitone << Shift }

// NoteFrac converts a fractional semitone to a fixed-point note value.
func NoteFrac(semitone float64) int { return int(math.Round(semitone * Unit)) }

// ReferenceRate is the sample rate the tone table is built for.
const ReferenceRate = 44100

var tonePeriods = buildTonePeriods()

func buildTonePeriods() [MaxPianoTone + 1]int64 {
	var t [MaxPianoTone + 1]int64
	for n := range t {
		freq := 440 * math.Pow(2, float64(n-A4)/12)
		t[n] = int64(math.Round(ReferenceRate / freq * Unit))
	}
	return t
}

// ClampNote limits a fixed-point note to the piano range.
func ClampNote(note int) int {
	if note < MinPianoTone<<Shift {
		return MinPianoTone << Shift
	}
	if note > MaxPianoTone<<Shift {
		return MaxPianoTone << Shift
	}
	return note
}

// TonePeriod returns the length of one waveform cycle of note (fixed-point
// semitones) at sampleRate. Fractional notes interpolate linearly between
// table entries.
func TonePeriod(note int, sampleRate int) Time {
	note = ClampNote(note)
	n := note >> Shift
	frac := int64(note & FracMask)
	p := tonePeriods[n]
	if n < MaxPianoTone && frac != 0 {
		p += ((tonePeriods[n+1] - p) * frac) >> Shift
	}
	if sampleRate != ReferenceRate {
		p = p * int64(sampleRate) / ReferenceRate
	}
	return Time(p)
}

// PitchRatio returns 2^(semitones/12) for a fixed-point semitone offset, as a
// fixed-point factor.
func PitchRatio(offset int) int64 {
	return int64(math.Round(math.Pow(2, float64(offset)/Unit/12) * Unit))
}
