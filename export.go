package quadtape

import (
	"encoding/binary"
	"errors"
	"os"

	"github.com/quadtape/quadtape/internal/dsp"
	intmaster "github.com/quadtape/quadtape/internal/master"
	inttrack "github.com/quadtape/quadtape/internal/track"
)

// ErrNothingToExport reports an export attempt with no unmuted audio.
var ErrNothingToExport = errors.New("quadtape: no unmuted audio to export")

type exportTrack struct {
	buf    *inttrack.Buffer
	params inttrack.ChainParams
}

// ExportWAV renders every unmuted track buffer offline through its
// chain settings and a simplified master chain (EQ, compressor, fader,
// limiter; no tape or reverb), and encodes the mix as a 16-bit PCM
// stereo RIFF/WAVE file. The mix length follows the longest unmuted
// track. Live playback state is untouched.
func (l *Looper) ExportWAV() ([]byte, error) {
	l.mu.Lock()
	var srcs []exportTrack
	frames := 0
	for _, t := range l.tracks {
		if t.EffectiveMuted() || !t.HasAudio() {
			continue
		}
		buf := t.Buffer()
		srcs = append(srcs, exportTrack{buf: buf, params: t.Params()})
		if f := buf.Frames(); f > frames {
			frames = f
		}
	}
	busParams := l.bus.Params()
	sampleRate := l.sampleRate
	l.mu.Unlock()

	if len(srcs) == 0 || frames == 0 {
		return nil, ErrNothingToExport
	}

	mix := make([]float32, frames*2)
	for _, src := range srcs {
		renderTrack(mix, src, sampleRate)
	}
	renderMaster(mix, busParams, sampleRate)
	return encodeWAVInt16LE(mix, sampleRate, 2), nil
}

// ExportWAVFile renders the mix and writes it to path.
func (l *Looper) ExportWAVFile(path string) error {
	data, err := l.ExportWAV()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// renderTrack pushes one buffer through a fresh copy of its chain and
// accumulates the result. Gains are unsmoothed; there is no live signal
// to click against.
func renderTrack(mix []float32, src exportTrack, sampleRate int) {
	p := src.params
	trim := dsp.NewGain(sampleRate, p.Trim, 0)
	boost := dsp.NewGain(sampleRate, 1+p.Boost, 0)
	eq := dsp.NewEQ3Band(sampleRate, p.EQLowFreq, p.EQMidFreq, p.EQHighFreq)
	eq.SetGains(p.EQLowDB, p.EQMidDB, p.EQHighDB)
	comp := dsp.NewCompressor(sampleRate)
	comp.SetPeakReduction(p.PeakReduction)
	comp.SetMakeupGain(p.MakeupGain)
	fader := dsp.NewGain(sampleRate, p.Fader, 0)

	buf := src.buf
	stereo := buf.Channels() > 1
	for i := 0; i < buf.Frames(); i++ {
		l := buf.Data[0][i]
		r := l
		if stereo {
			r = buf.Data[1][i]
		}
		l, r = trim.Process(l, r)
		l, r = boost.Process(l, r)
		l, r = eq.Process(l, r)
		l, r = comp.Process(l, r)
		l, r = fader.Process(l, r)
		mix[i*2] += l
		mix[i*2+1] += r
	}
}

func renderMaster(mix []float32, p intmaster.Params, sampleRate int) {
	eq := dsp.NewEQ3Band(sampleRate, 200, 1000, 5000)
	eq.SetGains(p.EQLowDB, p.EQMidDB, p.EQHighDB)
	comp := dsp.NewCompressor(sampleRate)
	comp.SetPeakReduction(p.PeakReduction)
	comp.SetMakeupGain(p.MakeupGain)
	fader := dsp.NewGain(sampleRate, p.Fader, 0)
	limiter := dsp.NewLimiter(sampleRate)

	for i := 0; i+1 < len(mix); i += 2 {
		l, r := mix[i], mix[i+1]
		l, r = eq.Process(l, r)
		l, r = comp.Process(l, r)
		l, r = fader.Process(l, r)
		l, r = limiter.Process(l, r)
		mix[i], mix[i+1] = l, r
	}
}

// encodeWAVInt16LE encodes interleaved samples as a 16-bit signed PCM
// RIFF/WAVE file. Samples are clamped to [-1,1] and scaled by 32767.
func encodeWAVInt16LE(samples []float32, sampleRate, channels int) []byte {
	dataSize := len(samples) * 2
	byteRate := sampleRate * channels * 2
	blockAlign := channels * 2
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 1)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 16)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}
		binary.LittleEndian.PutUint16(out[44+i*2:], uint16(int16(s*32767)))
	}
	return out
}
