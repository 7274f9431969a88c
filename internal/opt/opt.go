// Package opt provides the weight-update rules used by layers.
//
// An optimizer turns the gradient of one weight into the change to apply to
// it. Any per-weight history, such as the previous delta used by momentum,
// belongs to the layer that owns the weight and is passed in on every call.
package opt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedOptimizer is returned for optimizer kinds that have no update rule.
var ErrUnsupportedOptimizer = errors.New("opt: unsupported optimizer")

// Optimizer computes weight deltas from gradients.
type Optimizer interface {
	// Delta returns the change for one weight given its gradient and the
	// delta applied to it in the previous update cycle.
	Delta(gradient, previousDelta float64) float64

	// LearningRate returns the step size.
	LearningRate() float64

	// Kind identifies the update rule.
	Kind() Kind
}

// Kind enumerates optimizer update rules.
type Kind int

const (
	KindSGD Kind = iota
	KindMomentum
	// KindAdam and the kinds after it are recognised by name but have no
	// update rule; New rejects them.
	KindAdam
	KindRMSProp
	KindAdaGrad
)

var kindNames = map[Kind]string{
	KindSGD:      "sgd",
	KindMomentum: "momentum",
	KindAdam:     "adam",
	KindRMSProp:  "rmsprop",
	KindAdaGrad:  "adagrad",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a name such as "momentum" into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, v := range kindNames {
		if v == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("opt: unknown optimizer %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("opt: unknown kind %d", int(k))
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

// Supported reports whether New can build an optimizer of this kind.
func (k Kind) Supported() bool {
	return k == KindSGD || k == KindMomentum
}

// New returns the optimizer for kind. momentum is ignored by SGD.
func New(kind Kind, learningRate, momentum float64) (Optimizer, error) {
	switch kind {
	case KindSGD:
		return SGD{Rate: learningRate}, nil
	case KindMomentum:
		return Momentum{Rate: learningRate, Momentum: momentum}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedOptimizer, kind)
}

// SGD (Stochastic Gradient Descent): delta = -lr * gradient.
type SGD struct {
	Rate float64
}

func (s SGD) Delta(gradient, _ float64) float64 {
	return -s.Rate * gradient
}

func (s SGD) LearningRate() float64 { return s.Rate }
func (s SGD) Kind() Kind            { return KindSGD }

// Momentum: delta = -lr * gradient + momentum * previousDelta.
type Momentum struct {
	Rate     float64
	Momentum float64
}

func (m Momentum) Delta(gradient, previousDelta float64) float64 {
	return -m.Rate*gradient + m.Momentum*previousDelta
}

func (m Momentum) LearningRate() float64 { return m.Rate }
func (m Momentum) Kind() Kind            { return KindMomentum }

// Accumulate computes one delta per gradient. With accumulate false the
// deltas overwrite dst (online update); otherwise they are added to it
// (mini-batch accumulation). previous holds each weight's last applied delta.
func Accumulate(o Optimizer, dst, gradients, previous []float64, accumulate bool) {
	if len(dst) != len(gradients) || len(dst) != len(previous) {
		panic("opt: slices must have same length")
	}
	if accumulate {
		for i, g := range gradients {
			dst[i] += o.Delta(g, previous[i])
		}
		return
	}
	for i, g := range gradients {
		dst[i] = o.Delta(g, previous[i])
	}
}
