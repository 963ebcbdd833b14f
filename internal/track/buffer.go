// Package track implements the four independent looper tracks: decoded
// audio ownership, the record/play state machine, the bipolar
// speed/reverse engine and the per-track processing chain.
package track

// Buffer holds decoded PCM audio, one slice per channel.
type Buffer struct {
	SampleRate int
	Data       [][]float32
}

// NewBuffer allocates a silent buffer of the given shape.
func NewBuffer(sampleRate, channels, frames int) *Buffer {
	data := make([][]float32, channels)
	for ch := range data {
		data[ch] = make([]float32, frames)
	}
	return &Buffer{SampleRate: sampleRate, Data: data}
}

// Channels returns the channel count.
func (b *Buffer) Channels() int { return len(b.Data) }

// Frames returns the per-channel sample count.
func (b *Buffer) Frames() int {
	if len(b.Data) == 0 {
		return 0
	}
	return len(b.Data[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.SampleRate == 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// Reversed returns a sample-reversed copy with the same shape.
func (b *Buffer) Reversed() *Buffer {
	frames := b.Frames()
	rev := NewBuffer(b.SampleRate, b.Channels(), frames)
	for ch, src := range b.Data {
		dst := rev.Data[ch]
		for i, s := range src {
			dst[frames-1-i] = s
		}
	}
	return rev
}

// sampleAt reads channel ch at a fractional frame position with linear
// interpolation. The caller guarantees 0 <= pos < Frames().
func (b *Buffer) sampleAt(ch int, pos float64) float32 {
	src := b.Data[ch]
	idx := int(pos)
	if idx >= len(src)-1 {
		return src[len(src)-1]
	}
	frac := float32(pos - float64(idx))
	return src[idx] + (src[idx+1]-src[idx])*frac
}
