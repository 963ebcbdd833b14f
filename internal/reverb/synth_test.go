package reverb

import (
	"math"
	"testing"
	"time"
)

func TestRenderLengthMatchesRequest(t *testing.T) {
	l, r := Render(Request{DecaySeconds: 2, LengthSeconds: 1.5, SampleRate: 44100})
	want := int(44100 * 1.5)
	if len(l) != want || len(r) != want {
		t.Errorf("got %d/%d samples, want %d", len(l), len(r), want)
	}
}

func TestRenderChannelsAreDecorrelated(t *testing.T) {
	l, r := Render(Request{DecaySeconds: 1, LengthSeconds: 1, SampleRate: 44100})
	same := true
	for i := range l {
		if l[i] != r[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("stereo impulse channels should differ")
	}
}

func TestRenderTailDecays(t *testing.T) {
	l, _ := Render(Request{DecaySeconds: 0.5, LengthSeconds: 2, SampleRate: 44100})
	head := peakAbs(l[:4410])
	tail := peakAbs(l[len(l)-4410:])
	if tail >= head/4 {
		t.Errorf("tail should decay well below the head: head %f tail %f", head, tail)
	}
}

func TestRenderEarlyReflectionsPresent(t *testing.T) {
	l, r := Render(Request{DecaySeconds: 10, LengthSeconds: 1, SampleRate: 44100})
	// The first reflection burst sits at 20 ms.
	sr := 44100.0
	start := int(0.020 * sr)
	end := int(0.025 * sr)
	if peakAbs(l[start:end]) == 0 && peakAbs(r[start:end]) == 0 {
		t.Error("expected energy in the first reflection window")
	}
}

func TestSynthesizerDeliversResult(t *testing.T) {
	s := NewSynthesizer()
	defer s.Close()
	s.Submit(Request{DecaySeconds: 0.5, LengthSeconds: 0.5, SampleRate: 44100, Seq: 7})

	select {
	case res := <-s.Results():
		if res.Request.Seq != 7 {
			t.Errorf("got seq %d, want 7", res.Request.Seq)
		}
		if len(res.Left) != 22050 {
			t.Errorf("got %d samples, want 22050", len(res.Left))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("synthesis timed out")
	}
}

func TestSubmitReplacesQueuedRequest(t *testing.T) {
	s := NewSynthesizer()
	defer s.Close()
	// Flood with requests; the newest must eventually be honored.
	for seq := uint64(1); seq <= 20; seq++ {
		s.Submit(Request{DecaySeconds: 0.5, LengthSeconds: 0.2, SampleRate: 44100, Seq: seq})
	}
	deadline := time.After(20 * time.Second)
	for {
		select {
		case res := <-s.Results():
			if res.Request.Seq == 20 {
				return
			}
		case <-deadline:
			t.Fatal("newest request was never rendered")
		}
	}
}

func TestConvolverIdentityImpulse(t *testing.T) {
	c := NewConvolver()
	// A unit impulse IR makes convolution an identity (with engine latency).
	ir := make([]float32, 1024)
	ir[0] = 1
	if err := c.SetImpulse(ir, ir); err != nil {
		t.Fatalf("SetImpulse: %v", err)
	}

	in := make([]float64, 8192)
	in[0] = 1
	outL := make([]float64, len(in))
	outR := make([]float64, len(in))
	if err := c.Process(in, outL, outR); err != nil {
		t.Fatalf("Process: %v", err)
	}
	var sum float64
	for _, v := range outL {
		sum += math.Abs(v)
	}
	if sum < 0.5 {
		t.Errorf("identity impulse should pass the unit pulse through, energy %f", sum)
	}
}

func TestConvolverRejectsEmptyImpulse(t *testing.T) {
	c := NewConvolver()
	if err := c.SetImpulse(nil, nil); err == nil {
		t.Error("expected error for empty impulse")
	}
	if c.Ready() {
		t.Error("convolver should not be ready")
	}
}

func peakAbs(s []float32) float64 {
	var p float64
	for _, v := range s {
		if a := math.Abs(float64(v)); a > p {
			p = a
		}
	}
	return p
}
