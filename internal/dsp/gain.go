package dsp

// Gain is a smoothed gain stage. Level writes take effect over a short
// one-pole ramp so live fader moves never produce a discontinuity.
type Gain struct {
	target  float32
	current float32
	coeff   float32
}

// NewGain creates a gain stage at the given initial level. rampMs controls
// how quickly level writes settle (roughly the 63% point of the ramp).
func NewGain(sampleRate int, level float64, rampMs float64) *Gain {
	g := &Gain{
		target:  float32(level),
		current: float32(level),
	}
	if rampMs <= 0 {
		g.coeff = 1
	} else {
		samples := rampMs * float64(sampleRate) / 1000.0
		g.coeff = float32(1.0 / samples)
	}
	return g
}

// SetLevel sets the gain target. The stage ramps toward it.
func (g *Gain) SetLevel(level float64) {
	g.target = float32(level)
}

// Level returns the most recently written target level.
func (g *Gain) Level() float64 {
	return float64(g.target)
}

func (g *Gain) Process(l, r float32) (float32, float32) {
	g.current += g.coeff * (g.target - g.current)
	return l * g.current, r * g.current
}

func (g *Gain) Reset() {
	g.current = g.target
}
