package reverb

import (
	"errors"
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/conv"
)

// Convolver convolves the mono reverb send bus against a stereo impulse
// response using non-uniformly partitioned convolution, one engine per
// output channel. Swapping the impulse rebuilds the engines; on failure
// the previous impulse stays live.
type Convolver struct {
	left, right *conv.PartitionedConvolution
}

// Convolution partition bounds: 2^8 = 256 samples of latency, partitions
// capped at 2^13.
const (
	minBlockOrder = 8
	maxBlockOrder = 13
)

// NewConvolver creates a convolver with no impulse loaded; it is silent
// until SetImpulse succeeds.
func NewConvolver() *Convolver {
	return &Convolver{}
}

// Impulse holds the convolution engines prepared for one stereo impulse
// response, ready to swap in with Install.
type Impulse struct {
	left, right *conv.PartitionedConvolution
}

// PrepareImpulse builds convolution engines for a stereo impulse
// response. The FFT setup cost grows with the impulse length, so call
// this off the audio path and hand the result to Install.
func PrepareImpulse(left, right []float32) (*Impulse, error) {
	if len(left) == 0 || len(right) == 0 {
		return nil, errors.New("reverb: empty impulse response")
	}
	engL, err := conv.NewPartitionedConvolution(toFloat64(left), minBlockOrder, maxBlockOrder)
	if err != nil {
		return nil, fmt.Errorf("reverb: left convolution engine: %w", err)
	}
	engR, err := conv.NewPartitionedConvolution(toFloat64(right), minBlockOrder, maxBlockOrder)
	if err != nil {
		return nil, fmt.Errorf("reverb: right convolution engine: %w", err)
	}
	return &Impulse{left: engL, right: engR}, nil
}

// Install swaps in prepared engines. Cheap; a pointer assignment.
func (c *Convolver) Install(imp *Impulse) {
	c.left = imp.left
	c.right = imp.right
}

// SetImpulse prepares and installs a stereo impulse response in one
// step.
func (c *Convolver) SetImpulse(left, right []float32) error {
	imp, err := PrepareImpulse(left, right)
	if err != nil {
		return err
	}
	c.Install(imp)
	return nil
}

// Ready reports whether an impulse is loaded.
func (c *Convolver) Ready() bool {
	return c.left != nil && c.right != nil
}

// Process convolves the mono send block into stereo wet output. outL and
// outR must be the same length as send. With no impulse loaded the
// outputs are zeroed.
func (c *Convolver) Process(send []float64, outL, outR []float64) error {
	if !c.Ready() {
		for i := range outL {
			outL[i] = 0
			outR[i] = 0
		}
		return nil
	}
	if err := c.left.ProcessBlock(send, outL); err != nil {
		return fmt.Errorf("reverb: left channel: %w", err)
	}
	if err := c.right.ProcessBlock(send, outR); err != nil {
		return fmt.Errorf("reverb: right channel: %w", err)
	}
	return nil
}

// Reset clears convolution history.
func (c *Convolver) Reset() {
	if c.left != nil {
		c.left.Reset()
	}
	if c.right != nil {
		c.right.Reset()
	}
}

func toFloat64(src []float32) []float64 {
	dst := make([]float64, len(src))
	for i, s := range src {
		dst[i] = float64(s)
	}
	return dst
}
