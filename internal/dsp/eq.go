package dsp

import (
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

// EQ3Band is a 3-band equalizer: low shelf, mid peak, high shelf.
// Gains are in dB and may be written live; every parameter write rebuilds
// the biquad sections from fresh design coefficients.
type EQ3Band struct {
	sampleRate float64

	lowFreq, midFreq, highFreq float64
	lowDB, midDB, highDB       float64
	midQ                       float64

	lowL, lowR   *biquad.Section
	midL, midR   *biquad.Section
	highL, highR *biquad.Section
}

// NewEQ3Band creates a 3-band EQ with all gains at 0 dB.
func NewEQ3Band(sampleRate int, lowFreq, midFreq, highFreq float64) *EQ3Band {
	eq := &EQ3Band{
		sampleRate: float64(sampleRate),
		lowFreq:    lowFreq,
		midFreq:    midFreq,
		highFreq:   highFreq,
		midQ:       0.9,
	}
	eq.rebuild()
	return eq
}

// SetGains writes all three band gains in dB.
func (eq *EQ3Band) SetGains(lowDB, midDB, highDB float64) {
	eq.lowDB = lowDB
	eq.midDB = midDB
	eq.highDB = highDB
	eq.rebuild()
}

// SetLowGain writes the low shelf gain in dB.
func (eq *EQ3Band) SetLowGain(dB float64) { eq.lowDB = dB; eq.rebuild() }

// SetMidGain writes the mid peak gain in dB.
func (eq *EQ3Band) SetMidGain(dB float64) { eq.midDB = dB; eq.rebuild() }

// SetHighGain writes the high shelf gain in dB.
func (eq *EQ3Band) SetHighGain(dB float64) { eq.highDB = dB; eq.rebuild() }

// SetFrequencies writes the three band corner/center frequencies in Hz.
func (eq *EQ3Band) SetFrequencies(lowFreq, midFreq, highFreq float64) {
	eq.lowFreq = lowFreq
	eq.midFreq = midFreq
	eq.highFreq = highFreq
	eq.rebuild()
}

// Gains returns the current band gains in dB.
func (eq *EQ3Band) Gains() (lowDB, midDB, highDB float64) {
	return eq.lowDB, eq.midDB, eq.highDB
}

func (eq *EQ3Band) rebuild() {
	lowCoeffs := design.LowShelf(eq.lowFreq, eq.lowDB, 0.707, eq.sampleRate)
	midCoeffs := design.Peak(eq.midFreq, eq.midDB, eq.midQ, eq.sampleRate)
	highCoeffs := design.HighShelf(eq.highFreq, eq.highDB, 0.707, eq.sampleRate)

	eq.lowL = biquad.NewSection(lowCoeffs)
	eq.lowR = biquad.NewSection(lowCoeffs)
	eq.midL = biquad.NewSection(midCoeffs)
	eq.midR = biquad.NewSection(midCoeffs)
	eq.highL = biquad.NewSection(highCoeffs)
	eq.highR = biquad.NewSection(highCoeffs)
}

func (eq *EQ3Band) Process(l, r float32) (float32, float32) {
	lf := float64(l)
	rf := float64(r)
	lf = eq.highL.ProcessSample(eq.midL.ProcessSample(eq.lowL.ProcessSample(lf)))
	rf = eq.highR.ProcessSample(eq.midR.ProcessSample(eq.lowR.ProcessSample(rf)))
	return float32(lf), float32(rf)
}

func (eq *EQ3Band) Reset() {
	eq.rebuild()
}
