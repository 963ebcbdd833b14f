package tape

import "math/rand"

// Dropout gate states.
const (
	gateIdle = iota
	gateRampDown
	gateHold
	gateRampUp
)

// dropoutGate runs the randomized dropout scheduler on the audio sample
// clock. Intervals between events are uniform in [base, base+5000) ms
// with base = 15000 − 120·intensity; each event ramps the gate down to
// 1−depth over 2 ms, holds 10–80 ms, then ramps back over 2 ms.
type dropoutGate struct {
	sampleRate float64
	intensity  float64

	state       int
	untilNext   int // samples until the next event fires; 0 = not scheduled
	rampSamples int
	holdLeft    int
	rampLeft    int
	depth       float64
	gain        float64
}

func (g *dropoutGate) setIntensity(intensity float64, rng *rand.Rand) {
	g.intensity = intensity
	if intensity <= 0 {
		// Cancel the pending schedule. An in-flight event still ramps
		// back out through its state machine.
		g.untilNext = 0
	} else {
		// Supersede whatever was pending with a fresh draw.
		g.untilNext = g.drawInterval(rng)
	}
}

// drawInterval returns the gap to the next dropout in samples.
func (g *dropoutGate) drawInterval(rng *rand.Rand) int {
	baseMs := 15000.0 - 120.0*g.intensity
	ms := baseMs + rng.Float64()*5000.0
	return int(ms * g.sampleRate / 1000.0)
}

// next advances the gate one sample and returns its gain. Scheduling is
// paused while the unit is bypassed.
func (g *dropoutGate) next(paused bool, rng *rand.Rand) float64 {
	switch g.state {
	case gateIdle:
		g.gain = 1
		if paused || g.intensity <= 0 {
			return 1
		}
		if g.untilNext <= 0 {
			g.untilNext = g.drawInterval(rng)
		}
		g.untilNext--
		if g.untilNext == 0 {
			n := g.intensity / 100
			g.depth = (0.1 + 0.6*rng.Float64()) * n
			holdMs := 10.0 + 70.0*rng.Float64()*n
			g.rampSamples = int(0.002 * g.sampleRate)
			g.rampLeft = g.rampSamples
			g.holdLeft = int(holdMs * g.sampleRate / 1000.0)
			g.state = gateRampDown
		}
		return 1

	case gateRampDown:
		g.rampLeft--
		t := 1 - float64(g.rampLeft)/float64(g.rampSamples)
		g.gain = 1 - g.depth*t
		if g.rampLeft <= 0 {
			g.state = gateHold
		}
		return g.gain

	case gateHold:
		g.holdLeft--
		if g.holdLeft <= 0 {
			g.rampLeft = g.rampSamples
			g.state = gateRampUp
		}
		return g.gain

	default: // gateRampUp
		g.rampLeft--
		t := 1 - float64(g.rampLeft)/float64(g.rampSamples)
		g.gain = (1 - g.depth) + g.depth*t
		if g.rampLeft <= 0 {
			g.state = gateIdle
			g.gain = 1
			g.untilNext = 0 // redrawn lazily on the next idle sample
		}
		return g.gain
	}
}

func (g *dropoutGate) reset() {
	g.state = gateIdle
	g.gain = 1
	g.untilNext = 0
}
