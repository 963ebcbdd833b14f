// Package tape implements the tape emulation unit: head-bump resonance,
// pre/de-emphasis around a saturation waveshaper, high-frequency rolloff,
// wow and flutter pitch modulation, randomized dropouts and a hiss floor,
// with a crossfaded bypass.
package tape

import (
	"math"
	"math/rand"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

const (
	emphasisFreq = 4000 // pre/de-emphasis shelf corner, Hz
	hissLowEdge  = 3500 // hiss band, Hz
	hissHighEdge = 7000
)

// Unit is the tape chain. All controls are normalized 0..100.
type Unit struct {
	sampleRate float64

	saturation float64
	wow        float64
	flutter    float64
	dropouts   float64
	hiss       float64
	age        float64
	bypassed   bool

	headL, headR       *biquad.Section
	preL, preR         *biquad.Section
	deL, deR           *biquad.Section
	rolloffL, rolloffR *biquad.Section
	hissHPL, hissHPR   *biquad.Section
	hissLPL, hissLPR   *biquad.Section

	drive float64

	wowDelay     *modDelay
	flutterDelay *modDelay

	gate dropoutGate

	hissGain float64
	rng      *rand.Rand

	// Bypass crossfade, 20 ms linear ramps.
	wetGain, wetTarget float64
	dryGain, dryTarget float64
	fadeStep           float64
}

// New creates a tape unit with all controls at zero (transparent wet
// path) and the wet path engaged.
func New(sampleRate int) *Unit {
	sr := float64(sampleRate)
	u := &Unit{
		sampleRate:   sr,
		drive:        1,
		wowDelay:     newModDelay(sampleRate, 5.0),
		flutterDelay: newModDelay(sampleRate, 3.0),
		rng:          rand.New(rand.NewSource(rand.Int63())),
		wetGain:      1,
		wetTarget:    1,
		fadeStep:     1.0 / (0.020 * sr),
	}
	u.wowDelay.setModulation(2.0/sr, 0)
	u.flutterDelay.setModulation(4.0/sr, 0)
	u.gate.sampleRate = sr
	u.rebuildFilters()
	return u
}

func (u *Unit) rebuildFilters() {
	a := u.age / 100

	headFreq := 80.0 - 20.0*a
	headGain := 6.0 * a
	head := design.Peak(headFreq, headGain, 1.0, u.sampleRate)
	u.headL = biquad.NewSection(head)
	u.headR = biquad.NewSection(head)

	s := u.saturation / 100
	pre := design.HighShelf(emphasisFreq, 6.0*s, 0.707, u.sampleRate)
	de := design.HighShelf(emphasisFreq, -6.0*s, 0.707, u.sampleRate)
	u.preL = biquad.NewSection(pre)
	u.preR = biquad.NewSection(pre)
	u.deL = biquad.NewSection(de)
	u.deR = biquad.NewSection(de)

	cutoff := 18000.0 - 14000.0*a
	lp := design.Lowpass(cutoff, 0.707, u.sampleRate)
	u.rolloffL = biquad.NewSection(lp)
	u.rolloffR = biquad.NewSection(lp)

	hp := design.Highpass(hissLowEdge, 0.707, u.sampleRate)
	hlp := design.Lowpass(hissHighEdge, 0.707, u.sampleRate)
	u.hissHPL = biquad.NewSection(hp)
	u.hissHPR = biquad.NewSection(hp)
	u.hissLPL = biquad.NewSection(hlp)
	u.hissLPR = biquad.NewSection(hlp)
}

// SetSaturation sets drive 1..11 and ±6 dB pre/de-emphasis, v in 0..100.
// At v=0 the waveshaper is an exact identity.
func (u *Unit) SetSaturation(v float64) {
	u.saturation = clampControl(v)
	u.drive = 1 + 10*u.saturation/100
	u.rebuildFilters()
}

// SetWow sets the slow pitch modulation: rate 2.0 down to 0.5 Hz
// (slower at higher settings), depth 0 to 3 ms.
func (u *Unit) SetWow(v float64) {
	u.wow = clampControl(v)
	n := u.wow / 100
	rate := 2.0 - 1.5*n
	depthMs := 3.0 * n
	u.wowDelay.setModulation(rate/u.sampleRate, depthMs*u.sampleRate/1000)
}

// SetFlutter sets the fast pitch modulation: rate 4 to 12 Hz, depth 0 to
// 1.5 ms.
func (u *Unit) SetFlutter(v float64) {
	u.flutter = clampControl(v)
	n := u.flutter / 100
	rate := 4.0 + 8.0*n
	depthMs := 1.5 * n
	u.flutterDelay.setModulation(rate/u.sampleRate, depthMs*u.sampleRate/1000)
}

// SetDropouts sets the dropout recurrence intensity. Zero cancels any
// pending event.
func (u *Unit) SetDropouts(v float64) {
	u.dropouts = clampControl(v)
	u.gate.setIntensity(u.dropouts, u.rng)
}

// SetHiss sets the noise floor, exponentially interpolated from −70 dB
// (v=0, silent) to −40 dB.
func (u *Unit) SetHiss(v float64) {
	u.hiss = clampControl(v)
	if u.hiss == 0 {
		u.hissGain = 0
		return
	}
	dB := -70.0 + 30.0*u.hiss/100
	u.hissGain = math.Pow(10, dB/20)
}

// SetAge drives the HF rolloff cutoff 18 kHz down to 4 kHz and the head
// bump from 0 dB at 80 Hz up to +6 dB at 60 Hz.
func (u *Unit) SetAge(v float64) {
	u.age = clampControl(v)
	u.rebuildFilters()
}

// SetBypass crossfades wet and dry over 20 ms. While bypassed no new
// dropout events are scheduled.
func (u *Unit) SetBypass(bypassed bool) {
	u.bypassed = bypassed
	if bypassed {
		u.wetTarget, u.dryTarget = 0, 1
	} else {
		u.wetTarget, u.dryTarget = 1, 0
	}
}

// Bypassed reports the bypass state.
func (u *Unit) Bypassed() bool { return u.bypassed }

func (u *Unit) shape(x float64) float64 {
	if u.drive <= 1 {
		return x
	}
	// The tanh(k)/tanh(drive) normalization crosses 1 by a hair for
	// inputs past full scale; pin the output to the sample domain.
	y := math.Tanh(u.drive*x) / math.Tanh(u.drive)
	if y > 1 {
		return 1
	}
	if y < -1 {
		return -1
	}
	return y
}

func (u *Unit) Process(l, r float32) (float32, float32) {
	dryL, dryR := float64(l), float64(r)

	wetL := u.headL.ProcessSample(dryL)
	wetR := u.headR.ProcessSample(dryR)
	wetL = u.preL.ProcessSample(wetL)
	wetR = u.preR.ProcessSample(wetR)
	wetL = u.shape(wetL)
	wetR = u.shape(wetR)
	wetL = u.deL.ProcessSample(wetL)
	wetR = u.deR.ProcessSample(wetR)
	wetL = u.rolloffL.ProcessSample(wetL)
	wetR = u.rolloffR.ProcessSample(wetR)
	wetL, wetR = u.wowDelay.process(wetL, wetR)
	wetL, wetR = u.flutterDelay.process(wetL, wetR)

	gate := u.gate.next(u.bypassed, u.rng)
	wetL *= gate
	wetR *= gate

	if u.hissGain > 0 {
		nl := (u.rng.Float64()*2 - 1) * u.hissGain
		nr := (u.rng.Float64()*2 - 1) * u.hissGain
		wetL += u.hissLPL.ProcessSample(u.hissHPL.ProcessSample(nl))
		wetR += u.hissLPR.ProcessSample(u.hissHPR.ProcessSample(nr))
	}

	u.wetGain = fadeToward(u.wetGain, u.wetTarget, u.fadeStep)
	u.dryGain = fadeToward(u.dryGain, u.dryTarget, u.fadeStep)

	return float32(dryL*u.dryGain + wetL*u.wetGain),
		float32(dryR*u.dryGain + wetR*u.wetGain)
}

func (u *Unit) Reset() {
	u.rebuildFilters()
	u.wowDelay.reset()
	u.flutterDelay.reset()
	u.gate.reset()
}

func fadeToward(cur, target, step float64) float64 {
	if cur < target {
		cur += step
		if cur > target {
			cur = target
		}
	} else if cur > target {
		cur -= step
		if cur < target {
			cur = target
		}
	}
	return cur
}

func clampControl(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// modDelay is a sine-modulated fractional delay line, the wow/flutter
// transport wobble. The read head swings around a fixed base delay.
type modDelay struct {
	bufL, bufR []float64
	pos        int
	base       float64 // base delay in samples
	depth      float64 // modulation depth in samples
	phase      float64
	phaseInc   float64
}

func newModDelay(sampleRate int, maxDepthMs float64) *modDelay {
	maxDepth := maxDepthMs * float64(sampleRate) / 1000
	size := int(maxDepth*2) + 8
	return &modDelay{
		bufL: make([]float64, size),
		bufR: make([]float64, size),
		base: maxDepth + 2,
	}
}

func (d *modDelay) setModulation(phaseInc, depthSamples float64) {
	d.phaseInc = phaseInc
	d.depth = depthSamples
}

func (d *modDelay) process(l, r float64) (float64, float64) {
	d.bufL[d.pos] = l
	d.bufR[d.pos] = r

	if d.depth == 0 {
		// Transparent when unmodulated: no base delay either, so a
		// zeroed control leaves the chain untouched.
		d.pos++
		if d.pos >= len(d.bufL) {
			d.pos = 0
		}
		return l, r
	}

	mod := math.Sin(2*math.Pi*d.phase) * d.depth
	d.phase += d.phaseInc
	if d.phase >= 1 {
		d.phase -= 1
	}

	size := float64(len(d.bufL))
	readPos := float64(d.pos) - (d.base + mod)
	for readPos < 0 {
		readPos += size
	}
	idx := int(readPos)
	frac := readPos - float64(idx)
	idx2 := idx + 1
	if idx2 >= len(d.bufL) {
		idx2 = 0
	}
	outL := d.bufL[idx]*(1-frac) + d.bufL[idx2]*frac
	outR := d.bufR[idx]*(1-frac) + d.bufR[idx2]*frac

	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return outL, outR
}

func (d *modDelay) reset() {
	for i := range d.bufL {
		d.bufL[i] = 0
		d.bufR[i] = 0
	}
	d.pos = 0
	d.phase = 0
}
