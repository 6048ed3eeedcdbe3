package blip

import "math"

// kernel holds, for each sub-sample phase, the difference of a band-limited
// step sampled at StepWidth points. Every phase sums to 1<<KernelBits so a
// pulse of delta integrates to exactly delta.
var kernel = buildKernel()

// cutoff is the kernel bandwidth relative to Nyquist.
const cutoff = 0.9

func buildKernel() [StepUnit][StepWidth]int32 {
	var k [StepUnit][StepWidth]int32
	const unit = 1 << KernelBits
	for p := 0; p < StepUnit; p++ {
		frac := float64(p) / StepUnit
		var taps [StepWidth]float64
		sum := 0.0
		for i := range taps {
			// x is the distance of tap i from the step, centred between the
			// middle taps.
			x := float64(i) - (StepWidth/2 - 1) - frac
			n := x + StepWidth/2
			w := 0.0
			if n > 0 && n < StepWidth {
				w = 0.42 - 0.5*math.Cos(2*math.Pi*n/StepWidth) + 0.08*math.Cos(4*math.Pi*n/StepWidth)
			}
			taps[i] = sinc(x*cutoff) * w
			sum += taps[i]
		}
		total := int32(0)
		peak := 0
		for i, v := range taps {
			k[p][i] = int32(math.Round(v * unit / sum))
			total += k[p][i]
			if k[p][i] > k[p][peak] {
				peak = i
			}
		}
		k[p][peak] += unit - total
	}
	return k
}

func sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	return math.Sin(math.Pi*x) / (math.Pi * x)
}
