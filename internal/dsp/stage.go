// Package dsp provides the per-track and master-bus processing stages.
// Every stage processes one stereo frame at a time and supports live
// parameter writes between frames.
package dsp

// Stage processes stereo audio one frame at a time.
type Stage interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// Chain is a fixed pipeline of stages connected once at construction.
type Chain struct {
	stages []Stage
}

func NewChain(stages ...Stage) *Chain {
	return &Chain{stages: stages}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, s := range c.stages {
		l, r = s.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
