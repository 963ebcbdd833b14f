// Package master implements the master bus: the summed-track processing
// chain, the reverb send bus with its impulse cache, and the output
// limiter and metering tap.
package master

import (
	"log/slog"
	"sync"
	"time"

	"github.com/quadtape/quadtape/internal/dsp"
	"github.com/quadtape/quadtape/internal/reverb"
	"github.com/quadtape/quadtape/internal/tape"
)

const (
	cacheCapacity    = 5
	debounceInterval = 500 * time.Millisecond

	minDecaySeconds  = 0.5
	decaySpanSeconds = 44.5
)

// Bus is the singleton master processing chain:
// sum → EQ → compressor (with makeup) → tape → (+ reverb wet/dry) →
// fader → limiter → meter.
type Bus struct {
	sampleRate int

	eq      *dsp.EQ3Band
	comp    *dsp.Compressor
	tape    *tape.Unit
	fader   *dsp.Gain
	limiter *dsp.Limiter
	meter   *dsp.Meter

	// mu guards the processing chain state and the reverb fields.
	// ProcessBlock holds it for the whole block, so every parameter
	// write below takes it too.
	mu        sync.Mutex
	convolver *reverb.Convolver
	cache     *impulseCache
	wet, dry  float64

	synth     *reverb.Synthesizer
	latestSeq uint64
	decay     float64

	debounceMu sync.Mutex
	debounce   *time.Timer

	wetL, wetR []float64

	done      chan struct{}
	closeOnce sync.Once

	params Params
}

// Params is a snapshot of the bus chain settings, used to build an
// equivalent simplified chain for offline rendering.
type Params struct {
	EQLowDB, EQMidDB, EQHighDB float64
	PeakReduction, MakeupGain  float64
	Fader                      float64
}

// New creates the master bus and starts its impulse-result collector.
func New(sampleRate int) *Bus {
	b := &Bus{
		sampleRate: sampleRate,
		eq:         dsp.NewEQ3Band(sampleRate, 200, 1000, 5000),
		comp:       dsp.NewCompressor(sampleRate),
		tape:       tape.New(sampleRate),
		fader:      dsp.NewGain(sampleRate, 1.0, 10),
		limiter:    dsp.NewLimiter(sampleRate),
		meter:      dsp.NewMeter(sampleRate),
		convolver:  reverb.NewConvolver(),
		cache:      newImpulseCache(cacheCapacity),
		dry:        1,
		synth:      reverb.NewSynthesizer(),
		decay:      minDecaySeconds,
		done:       make(chan struct{}),
		params:     Params{Fader: 1},
	}
	go b.collectImpulses()
	return b
}

// Close stops the synthesizer worker and any pending debounce. Safe to
// call more than once.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		b.debounceMu.Lock()
		if b.debounce != nil {
			b.debounce.Stop()
		}
		b.debounceMu.Unlock()
		close(b.done)
		b.synth.Close()
	})
}

// Meter exposes the output metering tap.
func (b *Bus) Meter() *dsp.Meter { return b.meter }

// SetEQGains writes the master EQ band gains in dB.
func (b *Bus) SetEQGains(lowDB, midDB, highDB float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.EQLowDB, b.params.EQMidDB, b.params.EQHighDB = lowDB, midDB, highDB
	b.eq.SetGains(lowDB, midDB, highDB)
}

// SetPeakReduction drives the bus compressor threshold/ratio pair.
func (b *Bus) SetPeakReduction(amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.PeakReduction = amount
	b.comp.SetPeakReduction(amount)
}

// SetMakeupGain drives the bus compressor makeup stage.
func (b *Bus) SetMakeupGain(amount float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.MakeupGain = amount
	b.comp.SetMakeupGain(amount)
}

// SetFader sets the master output level in [0,1].
func (b *Bus) SetFader(level float64) {
	if level < 0 {
		level = 0
	} else if level > 1 {
		level = 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.params.Fader = level
	b.fader.SetLevel(level)
}

// Params returns a snapshot of the bus chain settings.
func (b *Bus) Params() Params {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params
}

// Tape emulation controls. The unit itself runs inside the processing
// loop, so writes go through the bus lock.

func (b *Bus) SetTapeSaturation(v float64) { b.withTape(func(u *tape.Unit) { u.SetSaturation(v) }) }
func (b *Bus) SetTapeWow(v float64)        { b.withTape(func(u *tape.Unit) { u.SetWow(v) }) }
func (b *Bus) SetTapeFlutter(v float64)    { b.withTape(func(u *tape.Unit) { u.SetFlutter(v) }) }
func (b *Bus) SetTapeDropouts(v float64)   { b.withTape(func(u *tape.Unit) { u.SetDropouts(v) }) }
func (b *Bus) SetTapeHiss(v float64)       { b.withTape(func(u *tape.Unit) { u.SetHiss(v) }) }
func (b *Bus) SetTapeAge(v float64)        { b.withTape(func(u *tape.Unit) { u.SetAge(v) }) }

// SetTapeBypass crossfades the tape unit in or out over 20 ms.
func (b *Bus) SetTapeBypass(bypassed bool) { b.withTape(func(u *tape.Unit) { u.SetBypass(bypassed) }) }

// TapeBypassed reports the tape bypass state.
func (b *Bus) TapeBypassed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tape.Bypassed()
}

func (b *Bus) withTape(f func(*tape.Unit)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(b.tape)
}

// SetReverbMix sets the wet/dry balance: wet=amount, dry=1−amount.
func (b *Bus) SetReverbMix(amount float64) {
	if amount < 0 {
		amount = 0
	} else if amount > 1 {
		amount = 1
	}
	b.mu.Lock()
	b.wet = amount
	b.dry = 1 - amount
	b.mu.Unlock()
}

// ReverbDecay returns the decay length mapped from the last size write.
func (b *Bus) ReverbDecay() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.decay
}

// SetReverbSize maps amount in [0,1] onto a 0.5–45 s decay. A cached
// impulse for that decay is swapped in immediately; otherwise synthesis
// is debounced so rapid slider movement triggers one render, not many.
func (b *Bus) SetReverbSize(amount float64) {
	if amount < 0 {
		amount = 0
	} else if amount > 1 {
		amount = 1
	}
	decay := minDecaySeconds + decaySpanSeconds*amount
	key := cacheKey(decay)

	b.mu.Lock()
	b.decay = decay
	b.latestSeq++
	seq := b.latestSeq
	left, right, hit := b.cache.get(key)
	b.mu.Unlock()

	if hit {
		b.installImpulse(seq, decay, left, right)
		return
	}

	req := reverb.Request{
		DecaySeconds:  decay,
		LengthSeconds: decay,
		SampleRate:    b.sampleRate,
		Seq:           seq,
	}
	b.debounceMu.Lock()
	if b.debounce != nil {
		b.debounce.Stop()
	}
	b.debounce = time.AfterFunc(debounceInterval, func() {
		b.synth.Submit(req)
	})
	b.debounceMu.Unlock()
}

// installImpulse builds the convolution engines off the bus lock, which
// the audio pull holds every block, then swaps them in unless a newer
// size write has superseded seq. On failure the previous impulse stays
// live; the size change can simply be retried.
func (b *Bus) installImpulse(seq uint64, decay float64, left, right []float32) {
	imp, err := reverb.PrepareImpulse(left, right)
	if err != nil {
		slog.Warn("reverb impulse build failed", "decay", decay, "err", err)
		return
	}
	b.mu.Lock()
	if seq == b.latestSeq {
		b.convolver.Install(imp)
	}
	b.mu.Unlock()
}

// collectImpulses installs worker results, dropping any superseded by a
// newer request.
func (b *Bus) collectImpulses() {
	for {
		select {
		case res := <-b.synth.Results():
			b.mu.Lock()
			stale := res.Request.Seq != b.latestSeq
			if !stale {
				b.cache.put(cacheKey(res.Request.DecaySeconds), res.Left, res.Right)
			}
			b.mu.Unlock()
			if stale {
				continue
			}
			b.installImpulse(res.Request.Seq, res.Request.DecaySeconds, res.Left, res.Right)
		case <-b.done:
			return
		}
	}
}

// CacheLen reports the number of cached impulses.
func (b *Bus) CacheLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cache.len()
}

// ProcessBlock runs the master chain over the summed track signal in
// dst (stereo interleaved) with the mono pre-fader send bus in send.
func (b *Bus) ProcessBlock(dst []float32, send []float64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	frames := len(dst) / 2
	if cap(b.wetL) < frames {
		b.wetL = make([]float64, frames)
		b.wetR = make([]float64, frames)
	}
	wetL := b.wetL[:frames]
	wetR := b.wetR[:frames]

	wet, dry := b.wet, b.dry
	if err := b.convolver.Process(send, wetL, wetR); err != nil {
		slog.Warn("reverb convolution failed", "err", err)
		for i := range wetL {
			wetL[i] = 0
			wetR[i] = 0
		}
	}

	for i := 0; i < frames; i++ {
		l, r := dst[i*2], dst[i*2+1]
		l, r = b.eq.Process(l, r)
		l, r = b.comp.Process(l, r)
		l, r = b.tape.Process(l, r)
		l = float32(float64(l)*dry + wetL[i]*wet)
		r = float32(float64(r)*dry + wetR[i]*wet)
		l, r = b.fader.Process(l, r)
		l, r = b.limiter.Process(l, r)
		l, r = b.meter.Process(l, r)
		dst[i*2] = l
		dst[i*2+1] = r
	}
}
