// Package quadtape implements a four-track audio looper: per-track
// processing chains feeding a master bus with tape emulation and
// convolution reverb, live capture onto tracks, and offline mixdown.
package quadtape

import (
	"errors"
	"fmt"
	"sync"
	"time"

	intaudio "github.com/quadtape/quadtape/internal/audio"
	intcapture "github.com/quadtape/quadtape/internal/capture"
	intdecode "github.com/quadtape/quadtape/internal/decode"
	intmaster "github.com/quadtape/quadtape/internal/master"
	inttrack "github.com/quadtape/quadtape/internal/track"
)

const (
	// SampleRate is the fixed engine rate. All decoded audio is
	// resampled to it on load.
	SampleRate = 44100
	// NumTracks is the number of looper tracks.
	NumTracks = 4
)

var (
	ErrTrackIndex = errors.New("quadtape: track index out of range")
	ErrRecording  = errors.New("quadtape: a recording is already in progress")
)

type LooperOption func(*looperConfig)

type looperConfig struct {
	output       bool
	outputBuffer time.Duration
	sampleTap    func([]float32)
}

func defaultLooperConfig() looperConfig {
	return looperConfig{output: true}
}

// WithoutOutput skips opening the system audio device. The engine is
// then driven by explicit Process calls (offline use and tests).
func WithoutOutput() LooperOption {
	return func(cfg *looperConfig) { cfg.output = false }
}

// WithOutputBuffer bounds output latency. Zero keeps the backend default.
func WithOutputBuffer(d time.Duration) LooperOption {
	return func(cfg *looperConfig) { cfg.outputBuffer = d }
}

// WithSampleTap installs a callback invoked with each rendered stereo
// buffer. The callback runs on the audio thread; keep work brief and
// non-blocking.
func WithSampleTap(tap func([]float32)) LooperOption {
	return func(cfg *looperConfig) { cfg.sampleTap = tap }
}

// Looper is the session controller: four tracks summed into the master
// bus. All control methods are safe for concurrent use.
type Looper struct {
	mu         sync.Mutex
	sampleRate int
	tracks     [NumTracks]*inttrack.Track
	solos      [NumTracks]bool
	bus        *intmaster.Bus
	audio      *intaudio.Player
	sampleTap  func([]float32)

	capture     *intcapture.Stream
	captureDone chan struct{}
	recTrack    int

	sendF32 []float32
	sendF64 []float64
}

// NewLooper creates a session with four empty tracks and, unless
// WithoutOutput is given, starts pulling audio to the system output.
func NewLooper(opts ...LooperOption) (*Looper, error) {
	cfg := defaultLooperConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	l := &Looper{
		sampleRate: SampleRate,
		bus:        intmaster.New(SampleRate),
		sampleTap:  cfg.sampleTap,
		recTrack:   -1,
	}
	for i := range l.tracks {
		l.tracks[i] = inttrack.New(i+1, SampleRate)
	}
	if cfg.output {
		backend, err := intaudio.NewPlayer(SampleRate, l, cfg.outputBuffer)
		if err != nil {
			l.bus.Close()
			return nil, err
		}
		l.audio = backend
		l.audio.Play()
	}
	return l, nil
}

// Process renders the next len(dst)/2 frames of the full session mix.
// It implements audio.SampleSource; offline callers may drive it
// directly.
func (l *Looper) Process(dst []float32) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range dst {
		dst[i] = 0
	}
	frames := len(dst) / 2
	if cap(l.sendF32) < frames {
		l.sendF32 = make([]float32, frames)
		l.sendF64 = make([]float64, frames)
	}
	send := l.sendF32[:frames]
	for i := range send {
		send[i] = 0
	}
	for _, t := range l.tracks {
		t.Render(dst, send)
	}
	send64 := l.sendF64[:frames]
	for i, s := range send {
		send64[i] = float64(s)
	}
	l.bus.ProcessBlock(dst, send64)
	if l.sampleTap != nil {
		l.sampleTap(dst)
	}
}

// Pause suspends the output stream. Track and bus state is untouched.
func (l *Looper) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.audio != nil {
		l.audio.Pause()
	}
}

// Resume restarts a paused output stream.
func (l *Looper) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.audio != nil {
		l.audio.Play()
	}
}

// Close stops any recording, tears down the output stream and releases
// the master bus workers.
func (l *Looper) Close() error {
	l.StopRecording()
	l.mu.Lock()
	audio := l.audio
	l.audio = nil
	l.mu.Unlock()
	var err error
	if audio != nil {
		err = audio.Stop()
	}
	l.bus.Close()
	return err
}

func (l *Looper) track(i int) (*inttrack.Track, error) {
	if i < 0 || i >= NumTracks {
		return nil, fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	return l.tracks[i], nil
}

// LoadFile decodes an audio file onto track i and starts it playing.
func (l *Looper) LoadFile(i int, path string) error {
	if i < 0 || i >= NumTracks {
		return fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	buf, err := intdecode.LoadFile(path, l.sampleRate)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tracks[i].LoadBuffer(buf)
	return nil
}

// LoadBuffer installs already-decoded audio onto track i and starts it
// playing.
func (l *Looper) LoadBuffer(i int, buf *inttrack.Buffer) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.LoadBuffer(buf)
	return nil
}

// Play starts track i from the beginning of its buffer.
func (l *Looper) Play(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.Play()
	return nil
}

// Stop halts track i.
func (l *Looper) Stop(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.Stop()
	return nil
}

// Clear stops track i and discards its audio.
func (l *Looper) Clear(i int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.Clear()
	return nil
}

// Position returns the playback position of track i in seconds.
func (l *Looper) Position(i int) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return 0, err
	}
	return t.Position(), nil
}

// SetSpeed applies the bipolar speed control to track i, v in
// [-100, 100]: 0 is 1x forward, 100 is 4x forward, -100 is 4x reversed.
func (l *Looper) SetSpeed(i int, v float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.SetSpeed(v)
	return nil
}

// SetLoopEnabled switches track i between loop and one-shot playback.
func (l *Looper) SetLoopEnabled(i int, loop bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	if loop {
		t.SetMode(inttrack.ModeLoop)
	} else {
		t.SetMode(inttrack.ModeNormal)
	}
	return nil
}

// SetLoopLength sets the loop region of track i in seconds.
func (l *Looper) SetLoopLength(i int, seconds float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	t.SetLoopLength(seconds)
	return nil
}

// Per-track chain parameters. All values are normalized to [0, 1]
// except the EQ gains, which are in dB.

func (l *Looper) SetTrim(i int, v float64) error  { return l.withTrack(i, func(t *inttrack.Track) { t.SetTrim(v) }) }
func (l *Looper) SetBoost(i int, v float64) error { return l.withTrack(i, func(t *inttrack.Track) { t.SetBoost(v) }) }
func (l *Looper) SetFader(i int, v float64) error { return l.withTrack(i, func(t *inttrack.Track) { t.SetFader(v) }) }
func (l *Looper) SetSend(i int, v float64) error  { return l.withTrack(i, func(t *inttrack.Track) { t.SetSend(v) }) }

func (l *Looper) SetEQGains(i int, lowDB, midDB, highDB float64) error {
	return l.withTrack(i, func(t *inttrack.Track) { t.SetEQGains(lowDB, midDB, highDB) })
}

func (l *Looper) SetEQFrequencies(i int, low, mid, high float64) error {
	return l.withTrack(i, func(t *inttrack.Track) { t.SetEQFrequencies(low, mid, high) })
}

func (l *Looper) SetPeakReduction(i int, amount float64) error {
	return l.withTrack(i, func(t *inttrack.Track) { t.SetPeakReduction(amount) })
}

func (l *Looper) SetMakeupGain(i int, amount float64) error {
	return l.withTrack(i, func(t *inttrack.Track) { t.SetMakeupGain(amount) })
}

func (l *Looper) withTrack(i int, f func(*inttrack.Track)) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return err
	}
	f(t)
	return nil
}

// TrackPeaks returns the post-fader peak levels of track i.
func (l *Looper) TrackPeaks(i int) (left, right float32, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, terr := l.track(i)
	if terr != nil {
		return 0, 0, terr
	}
	left, right = t.Meter().Peaks()
	return left, right, nil
}

// SetMuted mutes or unmutes track i. The fader level is snapshotted on
// mute and restored on unmute; fader writes while muted are remembered
// and applied at unmute. A muted track keeps its playback position.
func (l *Looper) SetMuted(i int, muted bool) error {
	return l.withTrack(i, func(t *inttrack.Track) { t.SetUserMuted(muted) })
}

// Muted reports the user mute flag of track i.
func (l *Looper) Muted(i int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, err := l.track(i)
	if err != nil {
		return false, err
	}
	return t.UserMuted(), nil
}

// SetSolo marks track i soloed. While any track is soloed, every
// non-soloed track is suppressed from the mix; solo suppression is a
// separate layer from the user mute and releasing all solos restores
// each track to its user-set state.
func (l *Looper) SetSolo(i int, solo bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= NumTracks {
		return fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	l.solos[i] = solo
	anySolo := false
	for _, s := range l.solos {
		anySolo = anySolo || s
	}
	for n, t := range l.tracks {
		t.SetSoloSuppressed(anySolo && !l.solos[n])
	}
	return nil
}

// Soloed reports the solo flag of track i.
func (l *Looper) Soloed(i int) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i < 0 || i >= NumTracks {
		return false, fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	return l.solos[i], nil
}

// Master returns the master bus for direct parameter access: EQ,
// compressor, fader, tape unit and reverb controls.
func (l *Looper) Master() *intmaster.Bus { return l.bus }

// Record begins capturing the default input device onto track i.
// Only one track records at a time.
func (l *Looper) Record(i int) error {
	l.mu.Lock()
	if i < 0 || i >= NumTracks {
		l.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrTrackIndex, i)
	}
	if l.recTrack >= 0 {
		l.mu.Unlock()
		return ErrRecording
	}
	stream, err := intcapture.Open(l.sampleRate, 2)
	if err != nil {
		l.mu.Unlock()
		return err
	}
	t := l.tracks[i]
	t.BeginRecording(stream.Channels())
	l.capture = stream
	l.recTrack = i
	l.captureDone = make(chan struct{})
	done := l.captureDone
	l.mu.Unlock()

	go func() {
		defer close(done)
		for {
			block, err := stream.Read()
			if err != nil {
				return
			}
			l.mu.Lock()
			t.AppendRecording(block)
			l.mu.Unlock()
		}
	}()
	return nil
}

// StopRecording ends an active capture and installs the recorded audio
// on its track. No-op when nothing is recording.
func (l *Looper) StopRecording() {
	l.mu.Lock()
	stream := l.capture
	done := l.captureDone
	i := l.recTrack
	l.capture = nil
	l.captureDone = nil
	l.recTrack = -1
	l.mu.Unlock()
	if stream == nil {
		return
	}
	stream.Stop() // unblocks the reader goroutine
	<-done
	l.mu.Lock()
	l.tracks[i].FinishRecording(l.sampleRate)
	l.mu.Unlock()
}

// RecordingTrack returns the index of the track currently recording,
// or -1.
func (l *Looper) RecordingTrack() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recTrack
}
