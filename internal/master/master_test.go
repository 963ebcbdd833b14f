package master

import (
	"math"
	"sync"
	"testing"
	"time"
)

func TestReverbSizeMapping(t *testing.T) {
	b := New(44100)
	defer b.Close()

	b.SetReverbSize(0)
	if math.Abs(b.ReverbDecay()-0.5) > 1e-9 {
		t.Errorf("amount=0: decay %f, want 0.5", b.ReverbDecay())
	}
	b.SetReverbSize(1)
	if math.Abs(b.ReverbDecay()-45.0) > 1e-9 {
		t.Errorf("amount=1: decay %f, want 45", b.ReverbDecay())
	}

	// Monotonic over the domain.
	prev := -1.0
	for a := 0.0; a <= 1.0; a += 0.05 {
		b.SetReverbSize(a)
		d := b.ReverbDecay()
		if d <= prev {
			t.Fatalf("mapping not monotonic at amount %f: %f after %f", a, d, prev)
		}
		prev = d
	}
}

func TestImpulseCacheEvictsOldestAtCapacity(t *testing.T) {
	c := newImpulseCache(5)
	imp := []float32{1}
	for i := 0; i < 6; i++ {
		c.put(float64(i), imp, imp)
	}
	if c.len() != 5 {
		t.Fatalf("cache holds %d entries, want 5", c.len())
	}
	if _, _, ok := c.get(0); ok {
		t.Error("oldest entry should have been evicted")
	}
	if _, _, ok := c.get(5); !ok {
		t.Error("newest entry missing")
	}
}

func TestCacheKeyQuantizesToTenths(t *testing.T) {
	if cacheKey(1.23) != 1.2 || cacheKey(1.27) != 1.3 {
		t.Errorf("got %f and %f", cacheKey(1.23), cacheKey(1.27))
	}
}

func TestCachePutSameKeyReplaces(t *testing.T) {
	c := newImpulseCache(5)
	c.put(1.0, []float32{1}, []float32{1})
	c.put(1.0, []float32{2}, []float32{2})
	if c.len() != 1 {
		t.Errorf("same key should replace, len %d", c.len())
	}
	l, _, _ := c.get(1.0)
	if l[0] != 2 {
		t.Error("replacement did not take")
	}
}

func TestNeutralBusPassesQuietSignal(t *testing.T) {
	b := New(44100)
	defer b.Close()

	block := make([]float32, 2*4410)
	for i := range block {
		block[i] = 0.1
	}
	// Warm up the fader ramp and filters.
	for n := 0; n < 10; n++ {
		for i := range block {
			block[i] = 0.1
		}
		b.ProcessBlock(block, make([]float64, 4410))
	}
	out := float64(block[len(block)-2])
	if math.Abs(out-0.1) > 0.02 {
		t.Errorf("neutral bus altered a below-threshold signal: %f", out)
	}
}

func TestDebouncedSynthesisLandsInCache(t *testing.T) {
	b := New(44100)
	defer b.Close()

	b.SetReverbSize(0) // 0.5 s decay, cache miss → debounce → synth
	deadline := time.Now().Add(15 * time.Second)
	for b.CacheLen() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("impulse never arrived")
		}
		time.Sleep(50 * time.Millisecond)
	}
	// A repeat of the same size is now a cache hit and immediate.
	b.SetReverbSize(0)
	if b.CacheLen() != 1 {
		t.Errorf("cache len %d, want 1", b.CacheLen())
	}
}

func TestRapidSizeChangesKeepNewestOnly(t *testing.T) {
	b := New(44100)
	defer b.Close()

	for a := 0.0; a < 0.01; a += 0.001 {
		b.SetReverbSize(a)
	}
	b.SetReverbSize(0.002) // final position

	deadline := time.Now().Add(15 * time.Second)
	for b.CacheLen() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("impulse never arrived")
		}
		time.Sleep(50 * time.Millisecond)
	}
	// Only the debounced, final request should have been rendered.
	if b.CacheLen() != 1 {
		t.Errorf("cache len %d, want 1", b.CacheLen())
	}
}

func TestParameterWritesDuringProcessing(t *testing.T) {
	b := New(44100)
	defer b.Close()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		block := make([]float32, 2*256)
		send := make([]float64, 256)
		for {
			select {
			case <-stop:
				return
			default:
			}
			b.ProcessBlock(block, send)
		}
	}()

	// Filter-rebuilding writes must be safe against the audio pull.
	for i := 0; i < 200; i++ {
		v := float64(i % 100)
		b.SetEQGains(v/20-2.5, 0, 2)
		b.SetPeakReduction(v / 100)
		b.SetMakeupGain(0.2)
		b.SetFader(0.9)
		b.SetTapeSaturation(v)
		b.SetTapeAge(v)
		b.SetTapeWow(v)
		b.SetTapeBypass(i%2 == 0)
		b.SetReverbMix(v / 100)
	}
	close(stop)
	wg.Wait()
}

func TestCloseTwiceDoesNotPanic(t *testing.T) {
	b := New(44100)
	b.Close()
	b.Close()
}

func TestMasterLimiterBoundsHotMix(t *testing.T) {
	b := New(44100)
	defer b.Close()

	block := make([]float32, 2*44100)
	for i := range block {
		block[i] = 2.0 // four hot tracks summed
	}
	b.ProcessBlock(block, make([]float64, 44100))
	for i, s := range block {
		if s > 1 || s < -1 {
			t.Fatalf("sample %d escaped ±1: %f", i, s)
		}
	}
}
