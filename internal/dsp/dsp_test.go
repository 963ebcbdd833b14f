package dsp

import (
	"math"
	"testing"
)

func TestPeakReductionMapping(t *testing.T) {
	c := NewCompressor(44100)

	c.SetPeakReduction(0)
	if c.ThresholdDB() != -10 || c.Ratio() != 3 {
		t.Errorf("amount=0: got threshold %f ratio %f, want -10 and 3", c.ThresholdDB(), c.Ratio())
	}

	c.SetPeakReduction(1)
	if c.ThresholdDB() != -40 || c.Ratio() != 8 {
		t.Errorf("amount=1: got threshold %f ratio %f, want -40 and 8", c.ThresholdDB(), c.Ratio())
	}

	c.SetPeakReduction(0.5)
	if math.Abs(c.ThresholdDB()-(-25)) > 1e-9 || math.Abs(c.Ratio()-5.5) > 1e-9 {
		t.Errorf("amount=0.5: got threshold %f ratio %f", c.ThresholdDB(), c.Ratio())
	}
}

func TestMakeupGainMapping(t *testing.T) {
	c := NewCompressor(44100)

	c.SetMakeupGain(0)
	if math.Abs(c.MakeupLinear()-1.0) > 1e-6 {
		t.Errorf("amount=0: got %f, want 1.0", c.MakeupLinear())
	}

	c.SetMakeupGain(1)
	if math.Abs(c.MakeupLinear()-10.0) > 1e-6 {
		t.Errorf("amount=1: got %f, want 10.0", c.MakeupLinear())
	}
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	c := NewCompressor(44100)
	c.SetPeakReduction(0.5)
	var out float32
	for i := 0; i < 5000; i++ {
		out, _ = c.Process(0.9, 0.9)
	}
	if out >= 0.9 {
		t.Errorf("expected gain reduction on loud input, got %f", out)
	}
}

func TestCompressorTransparentBelowThreshold(t *testing.T) {
	c := NewCompressor(44100)
	var out float32
	for i := 0; i < 5000; i++ {
		out, _ = c.Process(0.01, 0.01)
	}
	if math.Abs(float64(out)-0.01) > 1e-4 {
		t.Errorf("quiet signal should pass untouched, got %f", out)
	}
}

func TestLimiterBoundsOutput(t *testing.T) {
	lim := NewLimiter(44100)
	for i := 0; i < 44100; i++ {
		l, r := lim.Process(1.5, -1.5)
		if l > 1 || l < -1 || r > 1 || r < -1 {
			t.Fatalf("sample %d escaped ±1: l=%f r=%f", i, l, r)
		}
	}
}

func TestLimiterPassesQuietSignal(t *testing.T) {
	lim := NewLimiter(44100)
	var out float32
	for i := 0; i < 5000; i++ {
		out, _ = lim.Process(0.5, 0.5)
	}
	if math.Abs(float64(out)-0.5) > 1e-3 {
		t.Errorf("signal below threshold should be untouched, got %f", out)
	}
}

func TestGainRampsToTarget(t *testing.T) {
	g := NewGain(44100, 0, 5)
	g.SetLevel(1)
	first, _ := g.Process(1, 1)
	if first >= 1 {
		t.Errorf("gain should ramp, not jump: got %f on first sample", first)
	}
	var out float32
	for i := 0; i < 44100; i++ {
		out, _ = g.Process(1, 1)
	}
	if math.Abs(float64(out)-1.0) > 1e-3 {
		t.Errorf("gain should settle at target, got %f", out)
	}
}

func TestEQUnityGainPassthrough(t *testing.T) {
	eq := NewEQ3Band(44100, 320, 1000, 3200)
	// Warm up on DC then check near-unity response.
	var out float32
	for i := 0; i < 5000; i++ {
		out, _ = eq.Process(0.5, 0.5)
	}
	if math.Abs(float64(out)-0.5) > 0.05 {
		t.Errorf("flat EQ should approximate unity, got %f", out)
	}
}

func TestEQBoostRaisesLevel(t *testing.T) {
	flat := NewEQ3Band(44100, 320, 1000, 3200)
	boosted := NewEQ3Band(44100, 320, 1000, 3200)
	boosted.SetLowGain(6)

	var flatOut, boostOut float64
	phase := 0.0
	inc := 2 * math.Pi * 100 / 44100 // 100 Hz, well inside the low shelf
	for i := 0; i < 44100; i++ {
		s := float32(math.Sin(phase))
		phase += inc
		fl, _ := flat.Process(s, s)
		bl, _ := boosted.Process(s, s)
		if i > 22050 {
			flatOut = math.Max(flatOut, math.Abs(float64(fl)))
			boostOut = math.Max(boostOut, math.Abs(float64(bl)))
		}
	}
	if boostOut <= flatOut*1.5 {
		t.Errorf("+6 dB low shelf should lift a 100 Hz tone: flat=%f boosted=%f", flatOut, boostOut)
	}
}

func TestChainAppliesStagesInOrder(t *testing.T) {
	g1 := NewGain(44100, 0.5, 0)
	g2 := NewGain(44100, 0.5, 0)
	c := NewChain(g1, g2)
	l, _ := c.Process(1, 1)
	if math.Abs(float64(l)-0.25) > 1e-6 {
		t.Errorf("two 0.5 gains should yield 0.25, got %f", l)
	}
}

func TestMeterTracksPeak(t *testing.T) {
	m := NewMeter(44100)
	m.Process(0.8, -0.6)
	l, r := m.Peaks()
	if math.Abs(float64(l)-0.8) > 1e-6 || math.Abs(float64(r)-0.6) > 1e-6 {
		t.Errorf("got peaks l=%f r=%f", l, r)
	}
	// Pass-through.
	ol, or := m.Process(0.3, 0.2)
	if ol != 0.3 || or != 0.2 {
		t.Errorf("meter must not alter audio: got %f %f", ol, or)
	}
}
