// Package layer provides neural network layer implementations.
//
// Layers form a doubly linked chain. Each layer reads the outputs of the
// previous layer during Forward and, during Backward, asks the next layer for
// the error with respect to its own outputs (InputError). No layer ever looks
// further than its direct neighbours.
package layer

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/opt"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

var (
	// ErrInvalidDimension is returned for non-positive sizes, filters or strides.
	ErrInvalidDimension = errors.New("layer: invalid dimension")
	// ErrShapeMismatch is returned when a layer cannot consume its predecessor's output.
	ErrShapeMismatch = errors.New("layer: shape mismatch")
	// ErrNotLinked is returned when a layer that needs a predecessor has none.
	ErrNotLinked = errors.New("layer: not linked to a previous layer")
)

// Layer is a neural network layer.
//
// The interface is closed: only the layers of this package implement it.
type Layer interface {
	// Init allocates the layer tensors from the previous layer's geometry
	// and seeds the weights from rng.
	Init(rng *rand.Rand) error

	// Forward computes Outputs from the previous layer's outputs.
	Forward()

	// Backward computes Deltas and accumulates weight changes.
	Backward()

	// ApplyWeightChanges adds the accumulated deltas to the weights and
	// clears the accumulators.
	ApplyWeightChanges()

	// InputError writes the error with respect to this layer's input, that
	// is the previous layer's outputs, into dst.
	InputError(dst *tensor.Tensor)

	// Configure sets the training options.
	Configure(cfg TrainingConfig)

	Outputs() *tensor.Tensor
	Deltas() *tensor.Tensor

	Width() int
	Height() int
	Depth() int

	Prev() Layer
	Next() Layer

	// Weights returns a copy of the weights followed by the biases.
	Weights() []float64
	// SetWeights overwrites the weights and biases from the Weights layout.
	SetWeights(w []float64) error

	// L1Reg returns the sum of absolute weights.
	L1Reg() float64
	// L2Reg returns the sum of squared weights.
	L2Reg() float64

	// Spec describes the layer so it can be rebuilt with New.
	Spec() Spec

	core() *base
}

// TrainingConfig holds the options the trainer pushes into every layer.
type TrainingConfig struct {
	Optimizer opt.Optimizer
	BatchMode bool
	L1        float64
	L2        float64
	Parallel  parallel.Config
}

// DefaultTrainingConfig returns online SGD with a 0.01 learning rate.
func DefaultTrainingConfig() TrainingConfig {
	return TrainingConfig{
		Optimizer: opt.SGD{Rate: 0.01},
		Parallel:  parallel.Sequential(),
	}
}

// Kind enumerates the layer types.
type Kind int

const (
	KindInput Kind = iota
	KindFullyConnected
	KindOutput
	KindSoftmaxOutput
	KindConvolutional
	KindMaxPooling
)

var kindNames = map[Kind]string{
	KindInput:          "input",
	KindFullyConnected: "fully_connected",
	KindOutput:         "output",
	KindSoftmaxOutput:  "softmax_output",
	KindConvolutional:  "convolutional",
	KindMaxPooling:     "max_pooling",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a name such as "convolutional" into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, v := range kindNames {
		if v == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("layer: unknown layer type %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("layer: unknown kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	v, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// Spec is the construction recipe of a layer.
type Spec struct {
	Kind         Kind             `yaml:"type"`
	Width        int              `yaml:"width,omitempty"`
	Height       int              `yaml:"height,omitempty"`
	Depth        int              `yaml:"depth,omitempty"`
	FilterWidth  int              `yaml:"filter_width,omitempty"`
	FilterHeight int              `yaml:"filter_height,omitempty"`
	Filters      int              `yaml:"filters,omitempty"`
	Stride       int              `yaml:"stride,omitempty"`
	Padding      int              `yaml:"padding,omitempty"`
	Activation   activations.Kind `yaml:"activation,omitempty"`
}

// New creates an unlinked layer from spec.
func New(spec Spec) (Layer, error) {
	act, err := activations.New(spec.Activation)
	if err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindInput:
		return NewInput(spec.Width, spec.Height, spec.Depth)
	case KindFullyConnected:
		return NewFullyConnected(spec.Width, act)
	case KindOutput:
		return NewOutput(spec.Width, act)
	case KindSoftmaxOutput:
		return NewSoftmaxOutput(spec.Width)
	case KindConvolutional:
		return NewConvolutional(spec.FilterWidth, spec.FilterHeight, spec.Filters, spec.Stride, spec.Padding, act)
	case KindMaxPooling:
		return NewMaxPooling(spec.FilterWidth, spec.FilterHeight, spec.Stride)
	}
	return nil, fmt.Errorf("layer: unknown kind %d", int(spec.Kind))
}

// Chain links layers in order. It must be called once, before Init.
func Chain(layers []Layer) {
	for i, l := range layers {
		b := l.core()
		b.prev, b.next = nil, nil
		if i > 0 {
			b.prev = layers[i-1]
		}
		if i < len(layers)-1 {
			b.next = layers[i+1]
		}
	}
}

// base holds the state shared by every layer type.
type base struct {
	prev, next Layer

	width, height, depth int

	act activations.Activation
	cfg TrainingConfig

	// inputs aliases prev.Outputs(); it is never written.
	inputs  *tensor.Tensor
	outputs *tensor.Tensor
	deltas  *tensor.Tensor
	// nextError receives next.InputError during Backward.
	nextError *tensor.Tensor

	weights          *tensor.Tensor
	biases           *tensor.Tensor
	gradients        *tensor.Tensor
	biasGradients    *tensor.Tensor
	deltaWeights     *tensor.Tensor
	deltaBiases      *tensor.Tensor
	prevDeltaWeights *tensor.Tensor
	prevDeltaBiases  *tensor.Tensor

	// pending counts the patterns accumulated since the last apply.
	pending int
}

func (b *base) core() *base { return b }

func (b *base) Outputs() *tensor.Tensor { return b.outputs }
func (b *base) Deltas() *tensor.Tensor  { return b.deltas }
func (b *base) Width() int              { return b.width }
func (b *base) Height() int             { return b.height }
func (b *base) Depth() int              { return b.depth }
func (b *base) Prev() Layer             { return b.prev }
func (b *base) Next() Layer             { return b.next }

// Configure sets the training options.
func (b *base) Configure(cfg TrainingConfig) {
	if cfg.Optimizer == nil {
		cfg.Optimizer = DefaultTrainingConfig().Optimizer
	}
	b.cfg = cfg
}

// Activation returns the layer's activation function, nil for layers without one.
func (b *base) Activation() activations.Activation { return b.act }

// size returns the number of output units.
func (b *base) size() int { return b.width * b.height * b.depth }

// outputShape returns the tensor shape for the layer outputs: a vector for
// flat layers, a [height, width, depth] volume otherwise.
func (b *base) outputShape() []int {
	if b.height == 1 && b.depth == 1 {
		return []int{b.width}
	}
	return []int{b.height, b.width, b.depth}
}

// initOutputs allocates outputs, deltas and the next-error buffer.
func (b *base) initOutputs() {
	shape := b.outputShape()
	b.outputs = tensor.New(shape...)
	b.deltas = tensor.New(shape...)
	b.nextError = tensor.New(shape...)
	if b.cfg.Optimizer == nil {
		b.cfg = DefaultTrainingConfig()
	}
}

// linkInputs binds the previous layer's outputs.
func (b *base) linkInputs() error {
	if b.prev == nil {
		return ErrNotLinked
	}
	b.inputs = b.prev.Outputs()
	if b.inputs == nil {
		return fmt.Errorf("%w: previous layer has no outputs", ErrNotLinked)
	}
	return nil
}

// initWeights allocates the weight and bias tensors together with their
// gradient and delta buffers, and fills the weights uniformly in [-scale, scale].
func (b *base) initWeights(rng *rand.Rand, scale float64, biases int, shape ...int) {
	b.weights = tensor.New(shape...)
	b.gradients = tensor.New(shape...)
	b.deltaWeights = tensor.New(shape...)
	b.prevDeltaWeights = tensor.New(shape...)

	b.biases = tensor.New(biases)
	b.biasGradients = tensor.New(biases)
	b.deltaBiases = tensor.New(biases)
	b.prevDeltaBiases = tensor.New(biases)

	w := b.weights.Values()
	for i := range w {
		w[i] = rng.Float64()*2*scale - scale
	}
}

// backpropagateFromNext fills deltas with next.InputError, multiplied by
// the activation derivative when the layer has one.
func (b *base) backpropagateFromNext() {
	b.next.InputError(b.nextError)
	d := b.deltas.Values()
	e := b.nextError.Values()
	if b.act == nil {
		copy(d, e)
		return
	}
	out := b.outputs.Values()
	for i := range d {
		d[i] = e[i] * b.act.Derivative(out[i])
	}
}

// regularize adds the L1 and L2 penalty gradients to grads.
func (b *base) regularize(grads, weights []float64) {
	l1, l2 := b.cfg.L1, b.cfg.L2
	if l1 == 0 && l2 == 0 {
		return
	}
	for i, w := range weights {
		g := l2 * w
		switch {
		case w > 0:
			g += l1
		case w < 0:
			g -= l1
		}
		grads[i] += g
	}
}

// accumulateDeltas turns the current gradients into weight changes. Online
// mode overwrites the pending changes; batch mode adds to them.
func (b *base) accumulateDeltas() {
	b.regularize(b.gradients.Values(), b.weights.Values())
	o := b.cfg.Optimizer
	opt.Accumulate(o, b.deltaWeights.Values(), b.gradients.Values(), b.prevDeltaWeights.Values(), b.cfg.BatchMode)
	opt.Accumulate(o, b.deltaBiases.Values(), b.biasGradients.Values(), b.prevDeltaBiases.Values(), b.cfg.BatchMode)
	if b.cfg.BatchMode {
		b.pending++
	} else {
		b.pending = 1
	}
}

// ApplyWeightChanges adds the accumulated changes to weights and biases. In
// batch mode the changes are averaged over the accumulated patterns first.
// The applied changes become the momentum history and the accumulators are
// zeroed.
func (b *base) ApplyWeightChanges() {
	if b.weights == nil || b.pending == 0 {
		return
	}
	if b.cfg.BatchMode && b.pending > 1 {
		scale := 1 / float64(b.pending)
		b.deltaWeights.Scale(scale)
		b.deltaBiases.Scale(scale)
	}
	b.weights.Add(b.deltaWeights)
	b.biases.Add(b.deltaBiases)

	b.prevDeltaWeights.CopyFrom(b.deltaWeights)
	b.prevDeltaBiases.CopyFrom(b.deltaBiases)

	b.deltaWeights.Fill(0)
	b.deltaBiases.Fill(0)
	b.pending = 0
}

// Weights returns a copy of the weights followed by the biases.
func (b *base) Weights() []float64 {
	if b.weights == nil {
		return nil
	}
	w := make([]float64, 0, b.weights.Len()+b.biases.Len())
	w = append(w, b.weights.Values()...)
	return append(w, b.biases.Values()...)
}

// SetWeights overwrites weights and biases.
func (b *base) SetWeights(w []float64) error {
	if b.weights == nil {
		if len(w) == 0 {
			return nil
		}
		return fmt.Errorf("%w: layer has no weights, got %d values", ErrShapeMismatch, len(w))
	}
	nw := b.weights.Len()
	if len(w) != nw+b.biases.Len() {
		return fmt.Errorf("%w: want %d weights, got %d", ErrShapeMismatch, nw+b.biases.Len(), len(w))
	}
	copy(b.weights.Values(), w[:nw])
	copy(b.biases.Values(), w[nw:])
	return nil
}

// L1Reg returns the sum of absolute weights.
func (b *base) L1Reg() float64 {
	if b.weights == nil {
		return 0
	}
	var sum float64
	for _, w := range b.weights.Values() {
		sum += math.Abs(w)
	}
	return sum
}

// L2Reg returns the sum of squared weights.
func (b *base) L2Reg() float64 {
	if b.weights == nil {
		return 0
	}
	var sum float64
	for _, w := range b.weights.Values() {
		sum += w * w
	}
	return sum
}

// InputError is the default for layers that never sit in front of another
// layer's backward pass.
func (b *base) InputError(dst *tensor.Tensor) {
	dst.Fill(0)
}

// activationKind returns the activation kind, linear for layers without one.
func (b *base) activationKind() activations.Kind {
	if b.act == nil {
		return activations.KindLinear
	}
	return b.act.Kind()
}

func checkPositive(what string, vals ...int) error {
	for _, v := range vals {
		if v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidDimension, what, v)
		}
	}
	return nil
}
