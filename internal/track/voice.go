package track

// Voice is one active playback of a buffer: position, rate and loop
// bounds. At most one voice per track exists at a time.
type Voice struct {
	buf      *Buffer
	pos      float64 // fractional frame position
	step     float64 // frames advanced per output frame
	loop     bool
	loopEnd  float64 // exclusive frame bound when looping
	finished bool
}

// newVoice starts playback of buf at startFrame. When loop is set the
// voice wraps inside [0, loopEnd); otherwise it finishes at the buffer
// end. rate is the playback-rate magnitude; engineRate the output rate.
func newVoice(buf *Buffer, startFrame, rate float64, engineRate int, loop bool, loopEndFrame float64) *Voice {
	frames := float64(buf.Frames())
	end := frames
	if loop && loopEndFrame > 0 && loopEndFrame < frames {
		end = loopEndFrame
	}
	pos := startFrame
	if pos < 0 {
		pos = 0
	}
	if pos >= end {
		pos = 0
	}
	return &Voice{
		buf:     buf,
		pos:     pos,
		step:    rate * float64(buf.SampleRate) / float64(engineRate),
		loop:    loop,
		loopEnd: end,
	}
}

// NextFrame produces one stereo frame. Mono buffers feed both channels.
func (v *Voice) NextFrame() (l, r float32) {
	if v.finished {
		return 0, 0
	}
	l = v.buf.sampleAt(0, v.pos)
	if v.buf.Channels() > 1 {
		r = v.buf.sampleAt(1, v.pos)
	} else {
		r = l
	}
	v.pos += v.step
	if v.pos >= v.loopEnd {
		if v.loop {
			for v.pos >= v.loopEnd {
				v.pos -= v.loopEnd
			}
		} else {
			v.finished = true
		}
	}
	return l, r
}

// Finished reports whether a non-looping voice has run off the buffer end.
func (v *Voice) Finished() bool { return v.finished }

// Position returns the current playback position in frames.
func (v *Voice) Position() float64 { return v.pos }
