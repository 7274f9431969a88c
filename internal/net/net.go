// Package net composes layers into a network and drives the forward and
// backward passes across them.
package net

import (
	"errors"
	"fmt"

	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

var (
	// ErrInvalidArchitecture is returned by Build for a malformed layer sequence.
	ErrInvalidArchitecture = errors.New("net: invalid architecture")
	// ErrInvalidPairing is returned by Build when the loss function does not
	// match the output layer.
	ErrInvalidPairing = errors.New("net: invalid loss and output activation pairing")
)

// outputLayer is implemented by layer.Output and layer.SoftmaxOutput.
type outputLayer interface {
	layer.Layer
	SetOutputError(e []float64) error
	SetErrorIsNetGradient(v bool)
}

// Network is an ordered chain of layers with one loss function. Layer 0 is
// the input layer and holds no computation; the last layer is the output.
//
// A Network is not safe for concurrent use.
type Network struct {
	layers []layer.Layer
	input  *layer.Input
	output outputLayer

	lossKind loss.Kind
	loss     loss.Loss
	labels   []string
	seed     uint64

	cfg layer.TrainingConfig
}

// SetInput stores values in the input layer and runs the forward pass.
func (n *Network) SetInput(values []float64) error {
	if err := n.input.SetInputValues(values); err != nil {
		return err
	}
	n.Forward()
	return nil
}

// SetInputTensor is SetInput for a tensor; only the element count must match.
func (n *Network) SetInputTensor(t *tensor.Tensor) error {
	return n.SetInput(t.Values())
}

// Forward runs every layer after the input in order.
func (n *Network) Forward() {
	for _, l := range n.layers[1:] {
		l.Forward()
	}
}

// Outputs returns a copy of the output layer activations.
func (n *Network) Outputs() []float64 {
	return n.output.Outputs().CopyValues()
}

// Predict runs input through the network and returns the outputs.
func (n *Network) Predict(input []float64) ([]float64, error) {
	if err := n.SetInput(input); err != nil {
		return nil, err
	}
	return n.Outputs(), nil
}

// SetOutputError sets the error vector the output layer starts Backward from.
func (n *Network) SetOutputError(e []float64) error {
	return n.output.SetOutputError(e)
}

// Backward runs every layer after the input in reverse order. The output
// error must have been set first.
func (n *Network) Backward() {
	for i := len(n.layers) - 1; i >= 1; i-- {
		n.layers[i].Backward()
	}
}

// ApplyWeightChanges applies the accumulated weight changes of every layer.
// Layers own disjoint buffers, so they are updated concurrently when the
// training configuration enables it.
func (n *Network) ApplyWeightChanges() {
	fns := make([]func(), 0, len(n.layers)-1)
	for _, l := range n.layers[1:] {
		fns = append(fns, l.ApplyWeightChanges)
	}
	parallel.Each(fns, n.cfg.Parallel)
}

// Configure pushes training options to every layer.
func (n *Network) Configure(cfg layer.TrainingConfig) {
	if cfg.Optimizer == nil {
		cfg.Optimizer = layer.DefaultTrainingConfig().Optimizer
	}
	n.cfg = cfg
	for _, l := range n.layers {
		l.Configure(cfg)
	}
}

// TrainingConfig returns the options last set with Configure.
func (n *Network) TrainingConfig() layer.TrainingConfig { return n.cfg }

// L1Reg returns the sum of absolute weights over all layers.
func (n *Network) L1Reg() float64 {
	var sum float64
	for _, l := range n.layers {
		sum += l.L1Reg()
	}
	return sum
}

// L2Reg returns the sum of squared weights over all layers.
func (n *Network) L2Reg() float64 {
	var sum float64
	for _, l := range n.layers {
		sum += l.L2Reg()
	}
	return sum
}

// LossFunction returns the network's loss function.
func (n *Network) LossFunction() loss.Loss { return n.loss }

// NewLossFunction returns a fresh loss function of the network's kind, for
// callers that need a separate accumulator such as test set evaluation.
func (n *Network) NewLossFunction() loss.Loss {
	l, err := loss.New(n.lossKind)
	if err != nil {
		// lossKind was validated by Build.
		panic(err)
	}
	return l
}

// Layers returns the layers in order. The slice is a copy; the layers are not.
func (n *Network) Layers() []layer.Layer {
	return append([]layer.Layer(nil), n.layers...)
}

// InputSize returns the number of input values.
func (n *Network) InputSize() int { return n.input.Outputs().Len() }

// OutputSize returns the number of output values.
func (n *Network) OutputSize() int { return n.output.Outputs().Len() }

// OutputLabels returns a copy of the output labels, nil when none were set.
func (n *Network) OutputLabels() []string {
	return append([]string(nil), n.labels...)
}

// Seed returns the seed the weights were initialised from.
func (n *Network) Seed() uint64 { return n.seed }

// Weights returns a copy of every layer's weights, indexed like Layers.
func (n *Network) Weights() [][]float64 {
	w := make([][]float64, len(n.layers))
	for i, l := range n.layers {
		w[i] = l.Weights()
	}
	return w
}

// SetWeights overwrites every layer's weights from the Weights layout.
func (n *Network) SetWeights(w [][]float64) error {
	if len(w) != len(n.layers) {
		return fmt.Errorf("%w: network has %d layers, got weights for %d", layer.ErrShapeMismatch, len(n.layers), len(w))
	}
	for i, l := range n.layers {
		if err := l.SetWeights(w[i]); err != nil {
			return fmt.Errorf("net: layer %d: %w", i, err)
		}
	}
	return nil
}

// ParamCount returns the number of trainable weights and biases.
func (n *Network) ParamCount() int {
	total := 0
	for _, l := range n.layers {
		total += len(l.Weights())
	}
	return total
}
