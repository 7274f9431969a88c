package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// Input holds the external input of the network. It performs no
// computation: its outputs are whatever SetInput last stored.
type Input struct {
	base
}

// NewInput creates an input layer of width x height x depth units.
// Zero height or depth defaults to 1.
func NewInput(width, height, depth int) (*Input, error) {
	if height == 0 {
		height = 1
	}
	if depth == 0 {
		depth = 1
	}
	if err := checkPositive("input size", width, height, depth); err != nil {
		return nil, err
	}
	return &Input{base: base{width: width, height: height, depth: depth}}, nil
}

// Init allocates the output tensor.
func (l *Input) Init(_ *rand.Rand) error {
	if l.prev != nil {
		return fmt.Errorf("%w: input layer must be first", ErrShapeMismatch)
	}
	l.initOutputs()
	return nil
}

// SetInput copies in into the layer outputs. Only the element count has to
// match, so flat vectors can feed volume inputs.
func (l *Input) SetInput(in *tensor.Tensor) error {
	return l.SetInputValues(in.Values())
}

// SetInputValues copies values into the layer outputs.
func (l *Input) SetInputValues(values []float64) error {
	if len(values) != l.size() {
		return fmt.Errorf("%w: input layer has %d units, got %d values", ErrShapeMismatch, l.size(), len(values))
	}
	copy(l.outputs.Values(), values)
	return nil
}

func (l *Input) Forward()  {}
func (l *Input) Backward() {}

func (l *Input) Spec() Spec {
	return Spec{Kind: KindInput, Width: l.width, Height: l.height, Depth: l.depth}
}
