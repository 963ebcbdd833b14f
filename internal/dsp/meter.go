package dsp

import (
	"math"
	"sync/atomic"
)

// Meter is a pass-through peak metering tap. Peaks decay slowly so UI
// polls see recent transients; reads are safe from any goroutine.
type Meter struct {
	decay float32
	curL  float32
	curR  float32
	bitsL atomic.Uint32
	bitsR atomic.Uint32
}

func NewMeter(sampleRate int) *Meter {
	// ~300 ms to fall 20 dB, close enough to a VU ballistics feel.
	return &Meter{decay: float32(1.0 - 1.0/(0.3*float64(sampleRate)))}
}

func (m *Meter) Process(l, r float32) (float32, float32) {
	al := float32(math.Abs(float64(l)))
	ar := float32(math.Abs(float64(r)))
	m.curL *= m.decay
	m.curR *= m.decay
	if al > m.curL {
		m.curL = al
	}
	if ar > m.curR {
		m.curR = ar
	}
	m.bitsL.Store(math.Float32bits(m.curL))
	m.bitsR.Store(math.Float32bits(m.curR))
	return l, r
}

// Peaks returns the current decayed peak levels for both channels.
func (m *Meter) Peaks() (l, r float32) {
	return math.Float32frombits(m.bitsL.Load()), math.Float32frombits(m.bitsR.Load())
}

func (m *Meter) Reset() {
	m.curL, m.curR = 0, 0
	m.bitsL.Store(0)
	m.bitsR.Store(0)
}
