package layer

import (
	"fmt"
	"math/rand/v2"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// Output is the last layer of a network. Its deltas are not pulled from a
// next layer but derived from the error vector the loss function produces,
// set through SetOutputError before Backward.
type Output struct {
	FullyConnected

	outputError *tensor.Tensor

	// errorIsNetGradient marks an error vector that already is dL/dz, which
	// holds for sigmoid or softmax outputs paired with a cross entropy loss.
	errorIsNetGradient bool
}

// NewOutput creates an output layer with width units.
func NewOutput(width int, act activations.Activation) (*Output, error) {
	fc, err := NewFullyConnected(width, act)
	if err != nil {
		return nil, err
	}
	return &Output{FullyConnected: *fc}, nil
}

// Init allocates the layer and its output error buffer.
func (o *Output) Init(rng *rand.Rand) error {
	if o.next != nil {
		return fmt.Errorf("%w: output layer must be last", ErrShapeMismatch)
	}
	if err := o.FullyConnected.Init(rng); err != nil {
		return err
	}
	o.outputError = tensor.New(o.width)
	return nil
}

// SetErrorIsNetGradient tells the layer whether the output error already
// includes the activation derivative. Cross entropy losses set it.
func (o *Output) SetErrorIsNetGradient(v bool) { o.errorIsNetGradient = v }

// SetOutputError stores the loss error vector for the next Backward.
func (o *Output) SetOutputError(e []float64) error {
	if len(e) != o.width {
		return fmt.Errorf("%w: output layer has %d units, got error of length %d", ErrShapeMismatch, o.width, len(e))
	}
	copy(o.outputError.Values(), e)
	return nil
}

// Backward computes deltas from the output error and accumulates weight changes.
func (o *Output) Backward() {
	d := o.deltas.Values()
	e := o.outputError.Values()
	if o.errorIsNetGradient {
		copy(d, e)
	} else {
		out := o.outputs.Values()
		for j := range d {
			d[j] = e[j] * o.act.Derivative(out[j])
		}
	}
	o.accumulateGradients()
}

func (o *Output) Spec() Spec {
	return Spec{Kind: KindOutput, Width: o.width, Activation: o.activationKind()}
}

// SoftmaxOutput is an output layer whose units are normalised with softmax.
// It is always paired with cross entropy, so its deltas equal the output error.
type SoftmaxOutput struct {
	Output
}

// NewSoftmaxOutput creates a softmax output layer with width units.
func NewSoftmaxOutput(width int) (*SoftmaxOutput, error) {
	o, err := NewOutput(width, activations.Softmax{})
	if err != nil {
		return nil, err
	}
	o.errorIsNetGradient = true
	return &SoftmaxOutput{Output: *o}, nil
}

// Forward computes outputs = softmax(W·x + b).
func (s *SoftmaxOutput) Forward() {
	s.computeNetInput()
	activations.Softmax{}.ActivateVector(s.outputs.Values(), s.netInput.Values())
}

// SetErrorIsNetGradient is a no-op: softmax deltas always equal the error.
func (s *SoftmaxOutput) SetErrorIsNetGradient(bool) {}

func (s *SoftmaxOutput) Spec() Spec {
	return Spec{Kind: KindSoftmaxOutput, Width: s.width, Activation: activations.KindSoftmax}
}
