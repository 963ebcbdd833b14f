package tape

import (
	"math"
	"math/rand"
	"testing"
)

func TestNeutralUnitIsNearTransparent(t *testing.T) {
	u := New(44100)
	phase := 0.0
	inc := 2 * math.Pi * 220 / 44100
	var worst float64
	for i := 0; i < 44100; i++ {
		s := float32(0.5 * math.Sin(phase))
		phase += inc
		l, _ := u.Process(s, s)
		if i > 4410 { // let the filters settle
			if d := math.Abs(float64(l - s)); d > worst {
				worst = d
			}
		}
	}
	if worst > 0.05 {
		t.Errorf("zeroed controls should pass audio nearly untouched, worst diff %f", worst)
	}
}

func TestSaturationShaperIdentityAtZero(t *testing.T) {
	u := New(44100)
	u.SetSaturation(0)
	for _, x := range []float64{-1, -0.5, 0, 0.3, 1} {
		if u.shape(x) != x {
			t.Errorf("shape(%f) = %f, want identity", x, u.shape(x))
		}
	}
}

func TestSaturationShaperIsBoundedSoftClip(t *testing.T) {
	u := New(44100)
	u.SetSaturation(100)
	for _, x := range []float64{-2, -1, -0.5, 0.5, 1, 2} {
		y := u.shape(x)
		if math.Abs(y) > 1 {
			t.Errorf("shape(%f) = %f escaped ±1", x, y)
		}
	}
	if u.shape(1) <= u.shape(0.5) {
		t.Error("shaper should stay monotonic")
	}
	if u.shape(-1) != -u.shape(1) {
		t.Error("shaper should stay odd-symmetric")
	}
}

func TestDropoutsNeverFireAtZeroIntensity(t *testing.T) {
	var g dropoutGate
	g.sampleRate = 44100
	rng := rand.New(rand.NewSource(1))
	g.setIntensity(0, rng)
	for i := 0; i < 44100*20; i++ {
		if g.next(false, rng) != 1 {
			t.Fatalf("dropout fired at intensity 0 (sample %d)", i)
		}
	}
}

func TestDropoutIntervalRangeAtFullIntensity(t *testing.T) {
	var g dropoutGate
	g.sampleRate = 44100
	g.intensity = 100
	rng := rand.New(rand.NewSource(2))
	lo := int(3000.0 * 44100 / 1000)
	hi := int(8000.0 * 44100 / 1000)
	for i := 0; i < 1000; i++ {
		gap := g.drawInterval(rng)
		if gap < lo || gap >= hi {
			t.Fatalf("interval %d samples outside [%d,%d)", gap, lo, hi)
		}
	}
}

func TestDropoutEventDipsAndRecovers(t *testing.T) {
	var g dropoutGate
	g.sampleRate = 44100
	rng := rand.New(rand.NewSource(3))
	g.setIntensity(100, rng)

	minGain := 1.0
	fired := false
	for i := 0; i < 44100*9; i++ {
		gain := g.next(false, rng)
		if gain < 1 {
			fired = true
		}
		if gain < minGain {
			minGain = gain
		}
	}
	if !fired {
		t.Fatal("expected a dropout within 9 seconds at intensity 100")
	}
	if minGain < 0.29 {
		t.Errorf("dropout depth exceeded allowed bound, min gain %f", minGain)
	}
	// The gate must fully reopen after the event.
	g.setIntensity(0, rng)
	recovered := false
	for i := 0; i < 44100; i++ {
		if g.next(false, rng) == 1 {
			recovered = true
			break
		}
	}
	if !recovered {
		t.Error("gate did not recover to unity after the event")
	}
}

func TestSetIntensityZeroCancelsPendingEvent(t *testing.T) {
	var g dropoutGate
	g.sampleRate = 44100
	rng := rand.New(rand.NewSource(4))
	g.setIntensity(100, rng)
	g.next(false, rng) // schedule is live
	g.setIntensity(0, rng)
	for i := 0; i < 44100*10; i++ {
		if g.next(false, rng) != 1 {
			t.Fatal("cancelled schedule still fired")
		}
	}
}

func TestBypassIsFullDryAfterCrossfade(t *testing.T) {
	u := New(44100)
	u.SetSaturation(80)
	u.SetAge(70)
	u.SetBypass(true)

	// Run past the 20 ms crossfade.
	for i := 0; i < 4410; i++ {
		u.Process(0.1, 0.1)
	}
	l, r := u.Process(0.25, -0.25)
	if l != 0.25 || r != -0.25 {
		t.Errorf("bypassed unit should pass input exactly, got %f %f", l, r)
	}
}

func TestBypassPausesDropoutScheduling(t *testing.T) {
	var g dropoutGate
	g.sampleRate = 44100
	rng := rand.New(rand.NewSource(5))
	g.setIntensity(100, rng)
	for i := 0; i < 44100*20; i++ {
		if g.next(true, rng) != 1 {
			t.Fatalf("dropout fired while paused (sample %d)", i)
		}
	}
}

func TestHissSilentAtZeroAudibleAtFull(t *testing.T) {
	u := New(44100)
	u.SetHiss(0)
	var peak float64
	for i := 0; i < 44100; i++ {
		l, _ := u.Process(0, 0)
		peak = math.Max(peak, math.Abs(float64(l)))
	}
	if peak != 0 {
		t.Errorf("hiss=0 should be dead silent, peak %f", peak)
	}

	u.SetHiss(100)
	peak = 0
	for i := 0; i < 44100; i++ {
		l, _ := u.Process(0, 0)
		peak = math.Max(peak, math.Abs(float64(l)))
	}
	if peak == 0 {
		t.Error("hiss=100 should add a noise floor")
	}
	if peak > 0.05 {
		t.Errorf("hiss floor should stay near -40 dB, peak %f", peak)
	}
}

func TestWowChangesOutputTiming(t *testing.T) {
	straight := New(44100)
	wobbled := New(44100)
	wobbled.SetWow(100)

	phase := 0.0
	inc := 2 * math.Pi * 440 / 44100
	var diverged bool
	for i := 0; i < 44100; i++ {
		s := float32(0.5 * math.Sin(phase))
		phase += inc
		a, _ := straight.Process(s, s)
		b, _ := wobbled.Process(s, s)
		if i > 8820 && math.Abs(float64(a-b)) > 0.05 {
			diverged = true
		}
	}
	if !diverged {
		t.Error("full wow should audibly modulate the signal")
	}
}
