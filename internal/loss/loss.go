// Package loss provides the loss functions used by the trainer.
//
// A loss function is an accumulator: every call to AddPatternError adds one
// pattern's contribution to a running total and returns the output error
// signal for that pattern. Total reports the normalised value over all
// patterns seen since the last Reset. Before any pattern has been added the
// total is 0/0 = NaN.
package loss

import (
	"fmt"
	"math"
	"strings"
)

// logEpsilon keeps logarithm arguments away from zero.
const logEpsilon = 1e-15

// Loss is a loss function that accumulates error over patterns.
type Loss interface {
	// AddPatternError adds the error of one pattern to the running total and
	// returns actual - target, the error signal for the output layer.
	AddPatternError(actual, target []float64) []float64

	// ValueFor returns the loss of a single pattern without accumulating it.
	ValueFor(actual, target []float64) float64

	// AddRegularizationSum adds a weight penalty. It raises Total by
	// reg/PatternCount whatever the sign convention of the running total.
	AddRegularizationSum(reg float64)

	// TotalValue returns the raw accumulated sum of pattern contributions.
	TotalValue() float64

	// Total returns the accumulated loss normalised by the pattern count,
	// penalties included.
	Total() float64

	// PatternCount returns the number of patterns added since Reset.
	PatternCount() int

	// Reset zeroes the running total and the pattern counter.
	Reset()

	// Kind identifies the loss function.
	Kind() Kind
}

// Kind enumerates the supported loss functions.
type Kind int

const (
	KindMeanSquaredError Kind = iota
	KindCrossEntropy
	KindBinaryCrossEntropy
)

var kindNames = map[Kind]string{
	KindMeanSquaredError:   "mean_squared_error",
	KindCrossEntropy:       "cross_entropy",
	KindBinaryCrossEntropy: "binary_cross_entropy",
}

var kindAliases = map[string]Kind{
	"mse": KindMeanSquaredError,
	"ce":  KindCrossEntropy,
	"bce": KindBinaryCrossEntropy,
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind converts a name such as "cross_entropy" or "mse" into a Kind.
func ParseKind(s string) (Kind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if k, ok := kindAliases[name]; ok {
		return k, nil
	}
	for k, v := range kindNames {
		if v == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("loss: unknown loss function %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if _, ok := kindNames[k]; !ok {
		return nil, fmt.Errorf("loss: unknown kind %d", int(k))
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

// New returns a fresh loss function of the given kind.
func New(kind Kind) (Loss, error) {
	switch kind {
	case KindMeanSquaredError:
		return &MeanSquaredError{}, nil
	case KindCrossEntropy:
		return &CrossEntropy{}, nil
	case KindBinaryCrossEntropy:
		return &BinaryCrossEntropy{}, nil
	}
	return nil, fmt.Errorf("loss: unknown kind %d", int(kind))
}

// accumulator holds the running state shared by all loss functions.
type accumulator struct {
	total   float64
	penalty float64
	count   int
}

func (a *accumulator) AddRegularizationSum(reg float64) { a.penalty += reg }
func (a *accumulator) TotalValue() float64              { return a.total }
func (a *accumulator) PatternCount() int                { return a.count }

func (a *accumulator) Reset() {
	a.total = 0
	a.penalty = 0
	a.count = 0
}

// errorVector returns actual - target.
func errorVector(name string, actual, target []float64) []float64 {
	if len(actual) != len(target) {
		panic(name + ": prediction and target must have same length")
	}
	e := make([]float64, len(actual))
	for i := range actual {
		e[i] = actual[i] - target[i]
	}
	return e
}

func clippedLog(x float64) float64 {
	if x < logEpsilon {
		x = logEpsilon
	}
	return math.Log(x)
}

// MeanSquaredError accumulates sum(e^2) and reports total / (2 * patterns).
type MeanSquaredError struct {
	accumulator
}

// AddPatternError adds sum((actual - target)^2) to the total.
func (m *MeanSquaredError) AddPatternError(actual, target []float64) []float64 {
	e := errorVector("MeanSquaredError", actual, target)
	for _, v := range e {
		m.total += v * v
	}
	m.count++
	return e
}

// ValueFor returns sum((actual - target)^2) / 2.
func (m *MeanSquaredError) ValueFor(actual, target []float64) float64 {
	e := errorVector("MeanSquaredError", actual, target)
	var sum float64
	for _, v := range e {
		sum += v * v
	}
	return sum / 2
}

// Total returns total / (2 * patterns) plus penalty / patterns.
func (m *MeanSquaredError) Total() float64 {
	n := float64(m.count)
	return m.total/(2*n) + m.penalty/n
}

func (m *MeanSquaredError) Kind() Kind { return KindMeanSquaredError }

// CrossEntropy is the multi-class loss paired with a softmax output.
// With a one-hot target it accumulates ln(actual[k]) for the target class k.
type CrossEntropy struct {
	accumulator
}

func crossEntropy(actual, target []float64) float64 {
	var sum float64
	for i := range actual {
		if target[i] != 0 {
			sum += target[i] * clippedLog(actual[i])
		}
	}
	return sum
}

// AddPatternError adds sum(target * ln(actual)) to the total.
func (c *CrossEntropy) AddPatternError(actual, target []float64) []float64 {
	e := errorVector("CrossEntropy", actual, target)
	c.total += crossEntropy(actual, target)
	c.count++
	return e
}

// ValueFor returns -sum(target * ln(actual)).
func (c *CrossEntropy) ValueFor(actual, target []float64) float64 {
	if len(actual) != len(target) {
		panic("CrossEntropy: prediction and target must have same length")
	}
	return -crossEntropy(actual, target)
}

// Total returns (penalty - total) / patterns.
func (c *CrossEntropy) Total() float64 {
	return (c.penalty - c.total) / float64(c.count)
}

func (c *CrossEntropy) Kind() Kind { return KindCrossEntropy }

// BinaryCrossEntropy is the two-class loss paired with a single sigmoid output.
type BinaryCrossEntropy struct {
	accumulator
}

func binaryCrossEntropy(actual, target []float64) float64 {
	var sum float64
	for i := range actual {
		sum += target[i]*clippedLog(actual[i]) + (1-target[i])*clippedLog(1-actual[i])
	}
	return sum
}

// AddPatternError adds t*ln(a) + (1-t)*ln(1-a) to the total.
func (b *BinaryCrossEntropy) AddPatternError(actual, target []float64) []float64 {
	e := errorVector("BinaryCrossEntropy", actual, target)
	b.total += binaryCrossEntropy(actual, target)
	b.count++
	return e
}

// ValueFor returns -(t*ln(a) + (1-t)*ln(1-a)).
func (b *BinaryCrossEntropy) ValueFor(actual, target []float64) float64 {
	if len(actual) != len(target) {
		panic("BinaryCrossEntropy: prediction and target must have same length")
	}
	return -binaryCrossEntropy(actual, target)
}

// Total returns (penalty - total) / patterns.
func (b *BinaryCrossEntropy) Total() float64 {
	return (b.penalty - b.total) / float64(b.count)
}

func (b *BinaryCrossEntropy) Kind() Kind { return KindBinaryCrossEntropy }
