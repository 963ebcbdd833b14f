// Package decode loads WAV and MP3 files into track buffers, resampling
// to the engine rate when the source rate differs.
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/dh1tw/gosamplerate"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"

	"github.com/quadtape/quadtape/internal/track"
)

var (
	ErrUnsupportedFormat = errors.New("decode: unsupported file format")
	ErrInvalidFile       = errors.New("decode: invalid audio file")
)

// LoadFile decodes path into a buffer at engineRate. The extension
// selects the decoder; .wav and .mp3 are understood.
func LoadFile(path string, engineRate int) (*track.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return DecodeWAV(f, engineRate)
	case ".mp3":
		return DecodeMP3(f, engineRate)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// DecodeWAV reads a RIFF/WAVE stream into a buffer at engineRate.
func DecodeWAV(r io.ReadSeeker, engineRate int) (*track.Buffer, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return nil, ErrInvalidFile
	}
	if err := decoder.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	format := decoder.Format()
	bitDepth := int(decoder.SampleBitDepth())
	if bitDepth == 0 {
		return nil, fmt.Errorf("%w: unknown bit depth", ErrInvalidFile)
	}
	bytesPerSample := (bitDepth-1)/8 + 1
	nsamples := int(decoder.PCMLen()) / bytesPerSample
	nchannels := format.NumChannels
	if nchannels < 1 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidFile)
	}

	buf := &audio.IntBuffer{
		Format:         format,
		Data:           make([]int, nsamples),
		SourceBitDepth: bitDepth,
	}
	if _, err := decoder.PCMBuffer(buf); err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	factor := float32(math.Pow(2, float64(bitDepth-1)))
	interleaved := make([]float32, nsamples)
	for i, s := range buf.Data {
		interleaved[i] = float32(s) / factor
	}
	slog.Debug("decoded wav",
		"sampleRate", format.SampleRate,
		"channels", nchannels,
		"bitDepth", bitDepth,
		"frames", nsamples/nchannels,
	)
	return toBuffer(interleaved, nchannels, format.SampleRate, engineRate)
}

// DecodeMP3 reads an MP3 stream into a buffer at engineRate. The
// decoder always yields interleaved signed 16-bit stereo.
func DecodeMP3(r io.Reader, engineRate int) (*track.Buffer, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}
	const nchannels = 2
	nbytes := decoder.Length()
	if nbytes <= 0 {
		return nil, fmt.Errorf("%w: cannot determine mp3 length", ErrInvalidFile)
	}
	nsamples := int(nbytes / 2)
	interleaved := make([]float32, 0, nsamples)
	var sample int16
	for {
		err := binary.Read(decoder, binary.LittleEndian, &sample)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode mp3: %w", err)
		}
		interleaved = append(interleaved, float32(sample)/32768)
	}
	slog.Debug("decoded mp3",
		"sampleRate", decoder.SampleRate(),
		"frames", len(interleaved)/nchannels,
	)
	return toBuffer(interleaved, nchannels, decoder.SampleRate(), engineRate)
}

// toBuffer resamples interleaved data to engineRate if needed and
// de-interleaves it into per-channel planes.
func toBuffer(interleaved []float32, nchannels, sourceRate, engineRate int) (*track.Buffer, error) {
	if sourceRate != engineRate {
		ratio := float64(engineRate) / float64(sourceRate)
		resampled, err := gosamplerate.Simple(interleaved, ratio, nchannels, gosamplerate.SRC_SINC_BEST_QUALITY)
		if err != nil {
			return nil, fmt.Errorf("resample %d -> %d Hz: %w", sourceRate, engineRate, err)
		}
		slog.Debug("resampled", "from", sourceRate, "to", engineRate)
		interleaved = resampled
	}
	nframes := len(interleaved) / nchannels
	buf := track.NewBuffer(engineRate, nchannels, nframes)
	for i := 0; i < nframes; i++ {
		for ch := 0; ch < nchannels; ch++ {
			buf.Data[ch][i] = interleaved[i*nchannels+ch]
		}
	}
	return buf, nil
}
