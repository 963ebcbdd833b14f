// Package capture records audio from the default input device.
package capture

import (
	"errors"
	"fmt"
	"sync"

	pa "github.com/gordonklaus/portaudio"
)

var ErrNotOpen = errors.New("capture: stream not open")

const framesPerBuffer = 1024

// Stream wraps a portaudio input stream. Open it once, then call Read
// repeatedly to drain interleaved float32 blocks until Stop.
type Stream struct {
	mu       sync.Mutex
	stream   *pa.Stream
	buf      []float32
	channels int
	rate     int
}

// Open initializes portaudio and opens the default input device.
// channels is clamped to what the device offers.
func Open(sampleRate, channels int) (*Stream, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	dev, err := pa.DefaultInputDevice()
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("default input device: %w", err)
	}
	if channels < 1 {
		channels = 1
	}
	if channels > dev.MaxInputChannels {
		channels = dev.MaxInputChannels
	}
	if channels == 0 {
		pa.Terminate()
		return nil, fmt.Errorf("device %q has no input channels", dev.Name)
	}
	buf := make([]float32, framesPerBuffer*channels)
	stream, err := pa.OpenDefaultStream(channels, 0, float64(sampleRate), framesPerBuffer, buf)
	if err != nil {
		pa.Terminate()
		return nil, fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		pa.Terminate()
		return nil, fmt.Errorf("start input stream: %w", err)
	}
	return &Stream{
		stream:   stream,
		buf:      buf,
		channels: channels,
		rate:     sampleRate,
	}, nil
}

func (s *Stream) Channels() int   { return s.channels }
func (s *Stream) SampleRate() int { return s.rate }

// Read blocks for the next block of interleaved samples. The returned
// slice is reused by the next Read; copy it out before calling again.
// Read fails once Stop has been called, which is how a reader loop
// learns to exit.
func (s *Stream) Read() ([]float32, error) {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return nil, ErrNotOpen
	}
	if err := stream.Read(); err != nil {
		return nil, fmt.Errorf("read input stream: %w", err)
	}
	return s.buf, nil
}

// Stop closes the stream and tears down portaudio. Safe to call once.
func (s *Stream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return ErrNotOpen
	}
	s.stream.Stop()
	err := s.stream.Close()
	s.stream = nil
	if terr := pa.Terminate(); err == nil {
		err = terr
	}
	return err
}
