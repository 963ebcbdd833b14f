package decode

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

func writeTestWAV(t *testing.T, path string, sampleRate, channels int, samples []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadWAVSameRate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int, 2*100)
	for i := 0; i < 100; i++ {
		samples[2*i] = 16384   // left 0.5
		samples[2*i+1] = -8192 // right -0.25
	}
	writeTestWAV(t, path, 44100, 2, samples)

	buf, err := LoadFile(path, 44100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if buf.Channels() != 2 || buf.Frames() != 100 {
		t.Fatalf("shape %dx%d, want 2x100", buf.Channels(), buf.Frames())
	}
	if buf.SampleRate != 44100 {
		t.Errorf("sample rate %d, want 44100", buf.SampleRate)
	}
	if math.Abs(float64(buf.Data[0][50])-0.5) > 1e-3 {
		t.Errorf("left sample %f, want 0.5", buf.Data[0][50])
	}
	if math.Abs(float64(buf.Data[1][50])+0.25) > 1e-3 {
		t.Errorf("right sample %f, want -0.25", buf.Data[1][50])
	}
}

func TestLoadWAVResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone22k.wav")
	const srcRate = 22050
	samples := make([]int, srcRate) // one second, mono
	for i := range samples {
		samples[i] = int(16384 * math.Sin(2*math.Pi*440*float64(i)/srcRate))
	}
	writeTestWAV(t, path, srcRate, 1, samples)

	buf, err := LoadFile(path, 44100)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if buf.SampleRate != 44100 {
		t.Errorf("sample rate %d, want 44100", buf.SampleRate)
	}
	// One second of material stays one second: 22050 source frames
	// come out as ~44100, within converter slack.
	if got := buf.Frames(); got < 43900 || got > 44300 {
		t.Errorf("resampled frames %d, want about 44100", got)
	}
	if math.Abs(buf.Duration()-1.0) > 0.01 {
		t.Errorf("duration %f, want about 1 s", buf.Duration())
	}
}

func TestLoadFileUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.ogg")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := LoadFile(path, 44100)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("got %v, want ErrUnsupportedFormat", err)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.wav"), 44100); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("RIFFgarbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path, 44100); err == nil {
		t.Error("expected error for malformed wav")
	}
}
