// Package reverb provides the impulse-response synthesizer and the
// convolution processor it feeds. Synthesis runs on a background worker
// so long impulses never stall the control flow; the call site drops any
// result superseded by a newer request.
package reverb

import (
	"math"
	"math/rand"
)

// Request describes one impulse to synthesize.
type Request struct {
	DecaySeconds  float64
	LengthSeconds float64
	SampleRate    int

	// Seq orders requests; a result carrying a stale Seq is ignored.
	Seq uint64
}

// Result carries a synthesized stereo impulse back to the requester.
type Result struct {
	Left, Right []float32
	Request     Request
}

const (
	earlyReflections = 12
	reflectionGapSec = 0.04
	reflectionWidth  = 0.005
	outputTrim       = 0.4
	tailGainLeft     = 0.9
	tailGainRight    = 1.1
)

// Render synthesizes a stereo impulse response: twelve panned early
// reflection bursts over an exponentially decaying diffuse noise tail.
// Both channels have length floor(sampleRate·length).
func Render(req Request) ([]float32, []float32) {
	sr := float64(req.SampleRate)
	length := int(sr * req.LengthSeconds)
	left := make([]float32, length)
	right := make([]float32, length)
	if length == 0 || req.DecaySeconds <= 0 {
		return left, right
	}

	rng := rand.New(rand.NewSource(rand.Int63()))
	decayMult := math.Exp(-1.0 / (sr * req.DecaySeconds))

	type reflection struct {
		start, end int
		amp        float64
		panL, panR float64
	}
	refs := make([]reflection, earlyReflections)
	for i := range refs {
		start := 0.02 + float64(i)*reflectionGapSec
		r := (rng.Float64()*2 - 1) * 0.8
		refs[i] = reflection{
			start: int(start * sr),
			end:   int((start + reflectionWidth) * sr),
			amp:   0.5 * math.Exp(-0.25*float64(i)),
			panL:  (1 - r) / 2,
			panR:  (1 + r) / 2,
		}
	}

	envelope := 1.0
	for i := 0; i < length; i++ {
		var erL, erR float64
		for _, ref := range refs {
			if i >= ref.start && i < ref.end {
				n := rng.Float64()*2 - 1
				erL += n * ref.amp * ref.panL
				erR += n * ref.amp * ref.panR
			}
		}
		envelope *= decayMult
		tailL := (rng.Float64()*2 - 1) * envelope * tailGainLeft
		tailR := (rng.Float64()*2 - 1) * envelope * tailGainRight
		left[i] = float32((erL + tailL) * outputTrim)
		right[i] = float32((erR + tailR) * outputTrim)
	}
	return left, right
}

// Synthesizer is the background worker. Submitting a request while one
// is queued replaces the queued one; the in-flight render still
// completes and its result is delivered for the caller to discard by
// sequence number.
type Synthesizer struct {
	requests chan Request
	results  chan Result
	done     chan struct{}
}

// NewSynthesizer starts the worker goroutine.
func NewSynthesizer() *Synthesizer {
	s := &Synthesizer{
		requests: make(chan Request, 1),
		results:  make(chan Result, 4),
		done:     make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Synthesizer) run() {
	for {
		select {
		case req := <-s.requests:
			l, r := Render(req)
			select {
			case s.results <- Result{Left: l, Right: r, Request: req}:
			case <-s.done:
				return
			}
		case <-s.done:
			return
		}
	}
}

// Submit queues a request, displacing any not-yet-started one.
func (s *Synthesizer) Submit(req Request) {
	for {
		select {
		case s.requests <- req:
			return
		default:
			select {
			case <-s.requests:
			default:
			}
		}
	}
}

// Results delivers finished impulses. Ownership of the sample slices
// transfers to the receiver.
func (s *Synthesizer) Results() <-chan Result {
	return s.results
}

// Close stops the worker.
func (s *Synthesizer) Close() {
	close(s.done)
}
