package dsp

import "math"

// Limiter is the brick-wall output stage: −0.5 dBFS threshold, 20:1
// ratio, 1 ms attack, 10 ms release, zero knee. A final hard clamp keeps
// transient overshoot inside ±1 while the envelope catches up.
type Limiter struct {
	threshold float64 // dB
	ratio     float64
	attack    float64
	release   float64
	env       float64
}

func NewLimiter(sampleRate int) *Limiter {
	sr := float64(sampleRate)
	return &Limiter{
		threshold: -0.5,
		ratio:     20.0,
		attack:    1.0 - math.Exp(-1.0/(0.001*sr)),
		release:   1.0 - math.Exp(-1.0/(0.010*sr)),
	}
}

func (lim *Limiter) Process(l, r float32) (float32, float32) {
	peak := math.Abs(float64(l))
	if ar := math.Abs(float64(r)); ar > peak {
		peak = ar
	}
	if peak > lim.env {
		lim.env += lim.attack * (peak - lim.env)
	} else {
		lim.env += lim.release * (peak - lim.env)
	}

	gain := 1.0
	if lim.env > 0 {
		inDB := 20.0 * math.Log10(lim.env)
		if inDB > lim.threshold {
			red := (inDB - lim.threshold) * (1.0 - 1.0/lim.ratio)
			gain = math.Pow(10.0, -red/20.0)
		}
	}
	return clamp32(l*float32(gain), -1, 1), clamp32(r*float32(gain), -1, 1)
}

func (lim *Limiter) Reset() {
	lim.env = 0
}
