package dsp

import "math"

// Compressor is a program-dependent leveling compressor in the LA-2A
// mould: a single peak-reduction control drives threshold and ratio
// together, with a separate makeup gain. Detection is stereo-linked on
// the louder channel; the gain computer works in dB with a hard knee.
type Compressor struct {
	threshold float64 // dB
	ratio     float64
	makeup    float64 // linear

	attack  float64 // envelope coefficient
	release float64
	env     float64
}

// NewCompressor creates a compressor with peak reduction and makeup at 0.
func NewCompressor(sampleRate int) *Compressor {
	sr := float64(sampleRate)
	c := &Compressor{
		attack:  1.0 - math.Exp(-1.0/(0.003*sr)),
		release: 1.0 - math.Exp(-1.0/(0.250*sr)),
		makeup:  1.0,
	}
	c.SetPeakReduction(0)
	return c
}

// SetPeakReduction maps amount in [0,1] onto threshold and ratio:
// threshold −10 dB down to −40 dB, ratio 3:1 up to 8:1.
func (c *Compressor) SetPeakReduction(amount float64) {
	amount = clamp(amount, 0, 1)
	c.threshold = -10.0 - 30.0*amount
	c.ratio = 3.0 + 5.0*amount
}

// SetMakeupGain maps amount in [0,1] onto 0..+20 dB of makeup,
// i.e. a linear gain of 10^amount.
func (c *Compressor) SetMakeupGain(amount float64) {
	amount = clamp(amount, 0, 1)
	c.makeup = math.Pow(10.0, amount)
}

// ThresholdDB returns the current threshold in dB.
func (c *Compressor) ThresholdDB() float64 { return c.threshold }

// Ratio returns the current compression ratio.
func (c *Compressor) Ratio() float64 { return c.ratio }

// MakeupLinear returns the current makeup gain as a linear factor.
func (c *Compressor) MakeupLinear() float64 { return c.makeup }

// GainReductionDB reports the most recent gain reduction, for metering.
func (c *Compressor) GainReductionDB() float64 {
	return c.reductionFor(c.env)
}

func (c *Compressor) reductionFor(env float64) float64 {
	if env <= 0 {
		return 0
	}
	inDB := 20.0 * math.Log10(env)
	if inDB <= c.threshold {
		return 0
	}
	return (inDB - c.threshold) * (1.0 - 1.0/c.ratio)
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := math.Abs(float64(l))
	if ar := math.Abs(float64(r)); ar > peak {
		peak = ar
	}
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}

	gain := c.makeup
	if red := c.reductionFor(c.env); red > 0 {
		gain *= math.Pow(10.0, -red/20.0)
	}
	return l * float32(gain), r * float32(gain)
}

func (c *Compressor) Reset() {
	c.env = 0
}
