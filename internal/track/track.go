package track

import (
	"math"

	"github.com/quadtape/quadtape/internal/dsp"
)

// Mode selects how a loaded buffer plays back.
type Mode int

const (
	// ModeNormal plays the buffer once.
	ModeNormal Mode = iota
	// ModeLoop wraps playback inside the loop region.
	ModeLoop
)

// Default chain parameters. Fader sits at 0.8 so four summed tracks
// leave headroom before the master stages.
const (
	DefaultFader    = 0.8
	defaultLowFreq  = 200
	defaultMidFreq  = 1000
	defaultHighFreq = 5000
)

// Track is one of the four looper units. Control methods are called from
// the session goroutine; Render runs on the audio pull. The session
// controller serializes the two, so Track itself carries no lock.
type Track struct {
	Number int

	engineRate int

	buffer   *Buffer
	reversed *Buffer

	mode        Mode
	loopSeconds float64
	rate        float64 // magnitude, [1,4]
	isReversed  bool

	voice     *Voice
	playing   bool
	recording bool

	userMuted      bool
	soloSuppressed bool
	preMuteFader   float64

	rec      [][]float32
	recChans int

	trim  *dsp.Gain
	boost *dsp.Gain
	eq    *dsp.EQ3Band
	comp  *dsp.Compressor
	fader *dsp.Gain
	send  *dsp.Gain
	meter *dsp.Meter

	params ChainParams
}

// ChainParams is a snapshot of the track chain settings, used to build
// an equivalent chain for offline rendering.
type ChainParams struct {
	Trim, Boost                      float64
	EQLowDB, EQMidDB, EQHighDB       float64
	EQLowFreq, EQMidFreq, EQHighFreq float64
	PeakReduction, MakeupGain        float64
	Fader, Send                      float64
}

// New creates a track with a neutral processing chain and no audio.
func New(number, engineRate int) *Track {
	return &Track{
		Number:     number,
		engineRate: engineRate,
		mode:       ModeLoop,
		rate:       1.0,
		trim:       dsp.NewGain(engineRate, 1.0, 10),
		boost:      dsp.NewGain(engineRate, 1.0, 10),
		eq:         dsp.NewEQ3Band(engineRate, defaultLowFreq, defaultMidFreq, defaultHighFreq),
		comp:       dsp.NewCompressor(engineRate),
		fader:      dsp.NewGain(engineRate, DefaultFader, 10),
		send:       dsp.NewGain(engineRate, 0, 10),
		meter:      dsp.NewMeter(engineRate),
		params: ChainParams{
			Trim:       1,
			EQLowFreq:  defaultLowFreq,
			EQMidFreq:  defaultMidFreq,
			EQHighFreq: defaultHighFreq,
			Fader:      DefaultFader,
		},
	}
}

// HasAudio reports whether a decoded buffer is installed.
func (t *Track) HasAudio() bool { return t.buffer != nil }

// Playing reports whether a voice is active.
func (t *Track) Playing() bool { return t.playing }

// Recording reports whether capture data is being accumulated.
func (t *Track) Recording() bool { return t.recording }

// Buffer returns the installed forward buffer, or nil.
func (t *Track) Buffer() *Buffer { return t.buffer }

// ReversedBuffer returns the derived reversed copy, or nil.
func (t *Track) ReversedBuffer() *Buffer { return t.reversed }

// install places a decoded buffer on the track and derives its reversed
// copy. Loop length snaps to the full buffer duration.
func (t *Track) install(buf *Buffer) {
	t.buffer = buf
	t.reversed = buf.Reversed()
	t.loopSeconds = buf.Duration()
}

// LoadBuffer installs externally decoded audio and starts playback if
// the track is idle (auto-play-on-load).
func (t *Track) LoadBuffer(buf *Buffer) {
	t.Stop()
	t.install(buf)
	t.Play()
}

// BeginRecording arms capture accumulation. No-op while already recording.
func (t *Track) BeginRecording(channels int) {
	if t.recording {
		return
	}
	if channels < 1 {
		channels = 1
	}
	t.recording = true
	t.recChans = channels
	t.rec = make([][]float32, channels)
}

// AppendRecording adds an interleaved capture block. Ignored when the
// track is not recording.
func (t *Track) AppendRecording(block []float32) {
	if !t.recording || t.recChans == 0 {
		return
	}
	frames := len(block) / t.recChans
	for ch := 0; ch < t.recChans; ch++ {
		dst := t.rec[ch]
		for i := 0; i < frames; i++ {
			dst = append(dst, block[i*t.recChans+ch])
		}
		t.rec[ch] = dst
	}
}

// FinishRecording installs the captured audio. No-op if not recording or
// nothing was captured.
func (t *Track) FinishRecording(sampleRate int) {
	if !t.recording {
		return
	}
	t.recording = false
	rec := t.rec
	t.rec = nil
	if len(rec) == 0 || len(rec[0]) == 0 {
		return
	}
	t.Stop()
	t.install(&Buffer{SampleRate: sampleRate, Data: rec})
}

// CancelRecording discards any accumulated capture data.
func (t *Track) CancelRecording() {
	t.recording = false
	t.rec = nil
}

// Play starts a voice from the beginning of the active buffer. No-op if
// no audio is loaded or a voice is already running.
func (t *Track) Play() {
	if t.buffer == nil || t.playing {
		return
	}
	t.startVoice(0)
}

func (t *Track) startVoice(startFrame float64) {
	buf := t.buffer
	if t.isReversed {
		buf = t.reversed
	}
	loopEnd := t.loopSeconds * float64(buf.SampleRate)
	t.voice = newVoice(buf, startFrame, t.rate, t.engineRate, t.mode == ModeLoop, loopEnd)
	t.playing = true
}

// Stop halts and releases the active voice. Idempotent.
func (t *Track) Stop() {
	t.voice = nil
	t.playing = false
}

// Clear stops playback and discards both buffers.
func (t *Track) Clear() {
	t.Stop()
	t.CancelRecording()
	t.buffer = nil
	t.reversed = nil
	t.loopSeconds = 0
}

// SetSpeed applies the bipolar speed control, v in [-100, 100].
// v=0 is 1.0x forward; magnitude follows 4^(|v|/100) up to 4.0x; the
// sign selects direction. A direction change while playing swaps the
// active buffer for the pre-reversed copy and restarts the voice at the
// same audio position mapped into the new buffer's coordinates (the
// playback phase is preserved across reversal).
func (t *Track) SetSpeed(v float64) {
	if v < -100 {
		v = -100
	} else if v > 100 {
		v = 100
	}
	t.rate = math.Pow(4, math.Abs(v)/100)
	newReversed := v < 0
	flipped := newReversed != t.isReversed
	t.isReversed = newReversed

	if !t.playing || t.voice == nil {
		return
	}
	if flipped {
		buf := t.buffer
		if t.isReversed {
			buf = t.reversed
		}
		// Exact mirror: sample p forward is sample frames-1-p in the
		// reversed copy. Without the -1 a flip at position 0 would map
		// to frames, which the voice wraps back to the start.
		mapped := float64(buf.Frames()-1) - t.voice.Position()
		if mapped < 0 {
			mapped = 0
		}
		t.Stop()
		t.startVoice(mapped)
		return
	}
	// Same direction: rate updates live on the running voice.
	t.voice.step = t.rate * float64(t.voice.buf.SampleRate) / float64(t.engineRate)
}

// Rate returns the playback-rate magnitude.
func (t *Track) Rate() float64 { return t.rate }

// IsReversed reports the playback direction.
func (t *Track) IsReversed() bool { return t.isReversed }

// SetMode switches between one-shot and loop playback. Applying new loop
// bounds requires a voice restart; playback resumes from the loop start.
func (t *Track) SetMode(m Mode) {
	if m == t.mode {
		return
	}
	t.mode = m
	if t.playing {
		t.Stop()
		t.startVoice(0)
	}
}

// Mode returns the playback mode.
func (t *Track) PlaybackMode() Mode { return t.mode }

// SetLoopLength sets the loop region length in seconds, clipped to the
// buffer duration at voice start.
func (t *Track) SetLoopLength(seconds float64) {
	if seconds < 0 {
		seconds = 0
	}
	t.loopSeconds = seconds
	if t.playing && t.mode == ModeLoop {
		t.Stop()
		t.startVoice(0)
	}
}

// LoopLength returns the loop region length in seconds.
func (t *Track) LoopLength() float64 { return t.loopSeconds }

// Position returns the playback position in seconds of the active
// buffer, or 0 when stopped.
func (t *Track) Position() float64 {
	if t.voice == nil {
		return 0
	}
	return t.voice.Position() / float64(t.voice.buf.SampleRate)
}

// Chain parameter writes. All apply live.

func (t *Track) SetTrim(v float64) {
	t.params.Trim = clampUnit(v)
	t.trim.SetLevel(t.params.Trim)
}

func (t *Track) SetBoost(v float64) {
	t.params.Boost = clampUnit(v)
	t.boost.SetLevel(1 + t.params.Boost)
}

func (t *Track) SetFader(v float64) {
	v = clampUnit(v)
	t.params.Fader = v
	if t.userMuted {
		// Remember the intent; applied on unmute.
		t.preMuteFader = v
		return
	}
	t.fader.SetLevel(v)
}

func (t *Track) SetSend(v float64) {
	t.params.Send = clampUnit(v)
	t.send.SetLevel(t.params.Send)
}

func (t *Track) Fader() float64 {
	if t.userMuted {
		return t.preMuteFader
	}
	return t.fader.Level()
}

func (t *Track) SetEQGains(lowDB, midDB, highDB float64) {
	t.params.EQLowDB, t.params.EQMidDB, t.params.EQHighDB = lowDB, midDB, highDB
	t.eq.SetGains(lowDB, midDB, highDB)
}

func (t *Track) SetEQFrequencies(low, mid, high float64) {
	t.params.EQLowFreq, t.params.EQMidFreq, t.params.EQHighFreq = low, mid, high
	t.eq.SetFrequencies(low, mid, high)
}

func (t *Track) SetPeakReduction(amount float64) {
	t.params.PeakReduction = amount
	t.comp.SetPeakReduction(amount)
}

func (t *Track) SetMakeupGain(amount float64) {
	t.params.MakeupGain = amount
	t.comp.SetMakeupGain(amount)
}

// Params returns a snapshot of the chain settings. The fader reflects
// user intent, not the mute override.
func (t *Track) Params() ChainParams {
	p := t.params
	p.Fader = t.Fader()
	return p
}

// Compressor exposes the track compressor for inspection.
func (t *Track) Compressor() *dsp.Compressor { return t.comp }

// Meter exposes the post-fader peak tap.
func (t *Track) Meter() *dsp.Meter { return t.meter }

// SetUserMuted mutes or unmutes the track. The prior fader level is
// snapshotted on mute and restored on unmute.
func (t *Track) SetUserMuted(muted bool) {
	if muted == t.userMuted {
		return
	}
	t.userMuted = muted
	if muted {
		t.preMuteFader = t.fader.Level()
		t.fader.SetLevel(0)
	} else {
		t.fader.SetLevel(t.preMuteFader)
	}
}

// UserMuted reports the user-intended mute flag.
func (t *Track) UserMuted() bool { return t.userMuted }

// SetSoloSuppressed marks the track muted because another track is
// soloed. Independent of the user mute; effective mute is the OR.
func (t *Track) SetSoloSuppressed(s bool) { t.soloSuppressed = s }

// EffectiveMuted reports whether the track contributes to the mix.
func (t *Track) EffectiveMuted() bool { return t.userMuted || t.soloSuppressed }

// Render advances the voice by len(dst)/2 frames, runs the track chain
// and accumulates post-fader stereo into dst and the pre-fader send tap
// (mono, post-EQ) into send. A muted track still advances its voice so
// unmuting resumes in phase, but contributes nothing.
func (t *Track) Render(dst []float32, send []float32) {
	if !t.playing || t.voice == nil {
		return
	}
	muted := t.EffectiveMuted()
	frames := len(dst) / 2
	sendLevel := t.send
	for i := 0; i < frames; i++ {
		l, r := t.voice.NextFrame()
		l, r = t.trim.Process(l, r)
		l, r = t.boost.Process(l, r)
		l, r = t.eq.Process(l, r)
		s, _ := sendLevel.Process((l+r)*0.5, 0)
		l, r = t.comp.Process(l, r)
		l, r = t.fader.Process(l, r)
		l, r = t.meter.Process(l, r)
		if !muted {
			dst[i*2] += l
			dst[i*2+1] += r
			if send != nil {
				send[i] += s
			}
		}
	}
	if t.voice.Finished() {
		t.Stop()
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
