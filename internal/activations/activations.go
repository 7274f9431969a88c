// Package activations provides the scalar activation functions used by layers.
//
// Derivatives are expressed in terms of the activated output y = f(x), which
// is what layers keep around after the forward pass.
package activations

import (
	"fmt"
	"math"
	"strings"
)

// Activation is an activation function with derivative.
type Activation interface {
	// Activate computes f(x)
	Activate(x float64) float64

	// Derivative computes f'(x) given y = f(x)
	Derivative(y float64) float64

	// Kind identifies the function for persistence and configuration.
	Kind() Kind
}

// Kind enumerates the supported activation functions.
type Kind int

const (
	KindLinear Kind = iota
	KindSigmoid
	KindTanh
	KindReLU
	KindLeakyReLU
	KindSoftmax
)

var kindNames = map[Kind]string{
	KindLinear:    "linear",
	KindSigmoid:   "sigmoid",
	KindTanh:      "tanh",
	KindReLU:      "relu",
	KindLeakyReLU: "leaky_relu",
	KindSoftmax:   "softmax",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a name such as "sigmoid" into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, v := range kindNames {
		if v == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("activations: unknown activation %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("activations: unknown kind %d", int(k))
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

// New returns the activation function for kind.
func New(kind Kind) (Activation, error) {
	switch kind {
	case KindLinear:
		return Linear{}, nil
	case KindSigmoid:
		return Sigmoid{}, nil
	case KindTanh:
		return Tanh{}, nil
	case KindReLU:
		return ReLU{}, nil
	case KindLeakyReLU:
		return NewLeakyReLU(0.01), nil
	case KindSoftmax:
		return Softmax{}, nil
	}
	return nil, fmt.Errorf("activations: unknown kind %d", int(kind))
}

// Linear is the identity function.
type Linear struct{}

func (Linear) Activate(x float64) float64   { return x }
func (Linear) Derivative(y float64) float64 { return 1 }
func (Linear) Kind() Kind                   { return KindLinear }

// ReLU activation function.
type ReLU struct{}

// Activate computes max(0, x)
func (ReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Derivative returns 1 if y > 0, else 0
func (ReLU) Derivative(y float64) float64 {
	if y > 0 {
		return 1
	}
	return 0
}

func (ReLU) Kind() Kind { return KindReLU }

// Sigmoid activation function.
type Sigmoid struct{}

// Activate computes 1 / (1 + e^-x)
func (Sigmoid) Activate(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

// Derivative computes y * (1 - y)
func (Sigmoid) Derivative(y float64) float64 {
	return y * (1 - y)
}

func (Sigmoid) Kind() Kind { return KindSigmoid }

// LeakyReLU activation function to prevent dying neurons.
type LeakyReLU struct {
	Alpha float64 // Slope for x <= 0
}

// NewLeakyReLU creates a LeakyReLU with the given alpha value.
func NewLeakyReLU(alpha float64) LeakyReLU {
	return LeakyReLU{Alpha: alpha}
}

// Activate computes x if x > 0, else alpha*x
func (l LeakyReLU) Activate(x float64) float64 {
	if x > 0 {
		return x
	}
	return l.Alpha * x
}

// Derivative returns 1 if y > 0, else alpha. The sign of y matches the sign
// of x for any positive alpha.
func (l LeakyReLU) Derivative(y float64) float64 {
	if y > 0 {
		return 1
	}
	return l.Alpha
}

func (LeakyReLU) Kind() Kind { return KindLeakyReLU }

// Tanh activation function.
type Tanh struct{}

// Activate computes tanh(x)
func (Tanh) Activate(x float64) float64 {
	return math.Tanh(x)
}

// Derivative computes 1 - y^2
func (Tanh) Derivative(y float64) float64 {
	return 1 - y*y
}

func (Tanh) Kind() Kind { return KindTanh }

// Softmax activation function for output layer.
// It is only defined over a whole vector, see ActivateVector.
type Softmax struct{}

// Activate panics: softmax has no scalar form.
func (Softmax) Activate(x float64) float64 {
	panic("Softmax.Activate: use ActivateVector for Softmax")
}

// Derivative panics: the softmax Jacobian is folded into the cross entropy error.
func (Softmax) Derivative(y float64) float64 {
	panic("Softmax.Derivative: softmax must be paired with cross entropy")
}

func (Softmax) Kind() Kind { return KindSoftmax }

// ActivateVector writes softmax(x) into dst. dst and x may alias.
func (Softmax) ActivateVector(dst, x []float64) {
	// Find max for numerical stability
	maxVal := x[0]
	for i := 1; i < len(x); i++ {
		if x[i] > maxVal {
			maxVal = x[i]
		}
	}

	sum := 0.0
	for i := range x {
		dst[i] = math.Exp(x[i] - maxVal)
		sum += dst[i]
	}

	for i := range dst {
		dst[i] /= sum
	}
}
