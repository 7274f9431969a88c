package net

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
)

// DefaultSeed seeds weight initialisation when no seed is given.
const DefaultSeed uint64 = 1

// Builder assembles a Network layer by layer. Problems are reported by Build.
//
//	n, err := net.NewBuilder().
//		InputLayer(2, 1, 1).
//		FullyConnectedLayer(4, activations.KindTanh).
//		OutputLayer(1, activations.KindSigmoid).
//		LossFunction(loss.KindMeanSquaredError).
//		Build()
type Builder struct {
	specs    []layer.Spec
	lossKind loss.Kind
	labels   []string
	seed     uint64
}

// NewBuilder returns a builder with an MSE loss and DefaultSeed.
func NewBuilder() *Builder {
	return &Builder{lossKind: loss.KindMeanSquaredError, seed: DefaultSeed}
}

// InputLayer adds the input layer. Zero height or depth defaults to 1.
func (b *Builder) InputLayer(width, height, depth int) *Builder {
	return b.Layer(layer.Spec{Kind: layer.KindInput, Width: width, Height: height, Depth: depth})
}

// FullyConnectedLayer adds a hidden fully connected layer.
func (b *Builder) FullyConnectedLayer(width int, act activations.Kind) *Builder {
	return b.Layer(layer.Spec{Kind: layer.KindFullyConnected, Width: width, Activation: act})
}

// ConvolutionalLayer adds a convolutional layer.
func (b *Builder) ConvolutionalLayer(filterWidth, filterHeight, filters, stride, padding int, act activations.Kind) *Builder {
	return b.Layer(layer.Spec{
		Kind:         layer.KindConvolutional,
		FilterWidth:  filterWidth,
		FilterHeight: filterHeight,
		Filters:      filters,
		Stride:       stride,
		Padding:      padding,
		Activation:   act,
	})
}

// MaxPoolingLayer adds a max pooling layer.
func (b *Builder) MaxPoolingLayer(filterWidth, filterHeight, stride int) *Builder {
	return b.Layer(layer.Spec{
		Kind:         layer.KindMaxPooling,
		FilterWidth:  filterWidth,
		FilterHeight: filterHeight,
		Stride:       stride,
	})
}

// OutputLayer adds the output layer. A softmax activation selects the
// softmax output layer.
func (b *Builder) OutputLayer(width int, act activations.Kind) *Builder {
	return b.Layer(layer.Spec{Kind: layer.KindOutput, Width: width, Activation: act})
}

// Layer adds a layer from its spec. An output spec with a softmax activation
// builds a softmax output layer.
func (b *Builder) Layer(spec layer.Spec) *Builder {
	b.specs = append(b.specs, spec)
	return b
}

// LossFunction selects the loss function.
func (b *Builder) LossFunction(kind loss.Kind) *Builder {
	b.lossKind = kind
	return b
}

// RandomSeed sets the seed for weight initialisation.
func (b *Builder) RandomSeed(seed uint64) *Builder {
	b.seed = seed
	return b
}

// OutputLabels names the output units.
func (b *Builder) OutputLabels(labels ...string) *Builder {
	b.labels = append([]string(nil), labels...)
	return b
}

// Build validates the architecture, links the layers and initialises the
// weights. On error no network is returned.
func (b *Builder) Build() (*Network, error) {
	return build(b.specs, b.lossKind, b.labels, b.seed)
}

func build(specs []layer.Spec, lossKind loss.Kind, labels []string, seed uint64) (*Network, error) {
	specs = normalize(specs)
	if err := validateOrder(specs); err != nil {
		return nil, err
	}
	if err := validateActivations(specs); err != nil {
		return nil, err
	}
	if err := validatePairing(specs[len(specs)-1], lossKind); err != nil {
		return nil, err
	}
	if labels != nil && len(labels) != specs[len(specs)-1].Width {
		return nil, fmt.Errorf("%w: %d output labels for %d output units",
			ErrInvalidArchitecture, len(labels), specs[len(specs)-1].Width)
	}
	lf, err := loss.New(lossKind)
	if err != nil {
		return nil, err
	}

	layers := make([]layer.Layer, len(specs))
	for i, spec := range specs {
		l, err := layer.New(spec)
		if err != nil {
			return nil, fmt.Errorf("net: layer %d (%s): %w", i, spec.Kind, err)
		}
		layers[i] = l
	}
	layer.Chain(layers)

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for i, l := range layers {
		if err := l.Init(rng); err != nil {
			return nil, fmt.Errorf("net: layer %d (%s): %w", i, specs[i].Kind, err)
		}
	}

	n := &Network{
		layers:   layers,
		input:    layers[0].(*layer.Input),
		output:   layers[len(layers)-1].(outputLayer),
		lossKind: lossKind,
		loss:     lf,
		labels:   append([]string(nil), labels...),
		seed:     seed,
	}
	n.output.SetErrorIsNetGradient(lossKind != loss.KindMeanSquaredError)
	n.Configure(layer.DefaultTrainingConfig())
	return n, nil
}

func validateOrder(specs []layer.Spec) error {
	if len(specs) < 2 {
		return fmt.Errorf("%w: need an input and an output layer, got %d layers", ErrInvalidArchitecture, len(specs))
	}
	last := len(specs) - 1
	for i, s := range specs {
		isOutput := s.Kind == layer.KindOutput || s.Kind == layer.KindSoftmaxOutput
		switch {
		case i == 0 && s.Kind != layer.KindInput:
			return fmt.Errorf("%w: first layer must be an input layer, got %s", ErrInvalidArchitecture, s.Kind)
		case i > 0 && s.Kind == layer.KindInput:
			return fmt.Errorf("%w: input layer at position %d", ErrInvalidArchitecture, i)
		case i == last && !isOutput:
			return fmt.Errorf("%w: last layer must be an output layer, got %s", ErrInvalidArchitecture, s.Kind)
		case i < last && isOutput:
			return fmt.Errorf("%w: output layer at position %d", ErrInvalidArchitecture, i)
		}
	}
	return nil
}

// normalize returns a copy of specs with output+softmax specs turned into
// softmax output specs, whether they came from the builder, a run file or a
// saved model.
func normalize(specs []layer.Spec) []layer.Spec {
	out := append([]layer.Spec(nil), specs...)
	for i, s := range out {
		if s.Kind == layer.KindOutput && s.Activation == activations.KindSoftmax {
			out[i].Kind = layer.KindSoftmaxOutput
		}
	}
	return out
}

// validateActivations rejects softmax anywhere but the softmax output layer:
// it is a vector function and the other layers activate unit by unit.
func validateActivations(specs []layer.Spec) error {
	for i, s := range specs {
		if s.Activation == activations.KindSoftmax && s.Kind != layer.KindSoftmaxOutput {
			return fmt.Errorf("%w: softmax activation on %s layer %d", ErrInvalidPairing, s.Kind, i)
		}
	}
	return nil
}

var errSoftmaxNeedsCrossEntropy = errors.New("softmax output requires cross entropy loss")

func validatePairing(out layer.Spec, kind loss.Kind) error {
	softmax := out.Kind == layer.KindSoftmaxOutput
	switch kind {
	case loss.KindCrossEntropy:
		if !softmax {
			return fmt.Errorf("%w: cross entropy requires a softmax output, got %s", ErrInvalidPairing, out.Activation)
		}
		if out.Width < 2 {
			return fmt.Errorf("%w: cross entropy requires at least 2 output units, got %d", ErrInvalidPairing, out.Width)
		}
	case loss.KindBinaryCrossEntropy:
		if softmax || out.Activation != activations.KindSigmoid {
			return fmt.Errorf("%w: binary cross entropy requires a sigmoid output, got %s", ErrInvalidPairing, out.Activation)
		}
		if out.Width != 1 {
			return fmt.Errorf("%w: binary cross entropy requires 1 output unit, got %d", ErrInvalidPairing, out.Width)
		}
	case loss.KindMeanSquaredError:
		if softmax {
			return fmt.Errorf("%w: %w", ErrInvalidPairing, errSoftmaxNeedsCrossEntropy)
		}
	default:
		return fmt.Errorf("net: unknown loss kind %d", int(kind))
	}
	return nil
}
