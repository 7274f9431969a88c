package data

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// ScalerKind enumerates the input scaling strategies.
type ScalerKind string

const (
	ScalerNone     ScalerKind = "none"
	ScalerMinMax   ScalerKind = "minmax"
	ScalerStandard ScalerKind = "standard"
)

// ParseScalerKind converts a name into a ScalerKind. The empty string is none.
func ParseScalerKind(s string) (ScalerKind, error) {
	switch k := ScalerKind(strings.ToLower(strings.TrimSpace(s))); k {
	case "", ScalerNone:
		return ScalerNone, nil
	case ScalerMinMax, ScalerStandard:
		return k, nil
	}
	return "", fmt.Errorf("data: unknown scaler %q", s)
}

// Scaler maps input vectors to a normalised range. Targets are never scaled.
//
// Both scalers compute (x - Offset[i]) / Scale[i] per input column: min-max
// scaling uses the column minimum and range, standard scaling the mean and
// standard deviation.
type Scaler struct {
	Kind   ScalerKind `yaml:"kind"`
	Offset []float64  `yaml:"offset"`
	Scale  []float64  `yaml:"scale"`
}

// FitScaler computes a scaler of the given kind from the inputs of d. A
// column whose range or deviation is zero cannot be scaled and yields a
// *tensor.NumericInstabilityError naming the column.
func FitScaler(kind ScalerKind, d *DataSet) (*Scaler, error) {
	if d.Len() == 0 {
		return nil, fmt.Errorf("data: cannot fit scaler on an empty data set")
	}
	s := &Scaler{
		Kind:   kind,
		Offset: make([]float64, d.inputSize),
		Scale:  make([]float64, d.inputSize),
	}
	col := make([]float64, d.Len())
	for j := 0; j < d.inputSize; j++ {
		for i, it := range d.items {
			col[i] = it.Input[j]
		}
		switch kind {
		case ScalerNone:
			s.Scale[j] = 1
		case ScalerMinMax:
			lo, hi := floats.Min(col), floats.Max(col)
			s.Offset[j], s.Scale[j] = lo, hi-lo
		case ScalerStandard:
			mean, std := stat.MeanStdDev(col, nil)
			if d.Len() == 1 {
				std = 0
			}
			s.Offset[j], s.Scale[j] = mean, std
		default:
			return nil, fmt.Errorf("data: unknown scaler %q", kind)
		}
		if s.Scale[j] == 0 || math.IsNaN(s.Scale[j]) {
			return nil, &tensor.NumericInstabilityError{Op: string(kind) + " scaler", Index: j, Value: s.Scale[j]}
		}
	}
	return s, nil
}

// Transform returns the scaled copy of input.
func (s *Scaler) Transform(input []float64) ([]float64, error) {
	if len(input) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler has %d columns, got %d", ErrDimensionMismatch, len(s.Scale), len(input))
	}
	out := make([]float64, len(input))
	floats.SubTo(out, input, s.Offset)
	floats.Div(out, s.Scale)
	return out, nil
}

// Apply returns a new data set with every input scaled.
func (s *Scaler) Apply(d *DataSet) (*DataSet, error) {
	out := New(d.inputSize, d.targetSize)
	out.columnNames = d.ColumnNames()
	for i, it := range d.items {
		in, err := s.Transform(it.Input)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out.items = append(out.items, Item{Input: in, Target: it.Target})
	}
	return out, nil
}

// WriteScaler writes s as YAML.
func WriteScaler(w io.Writer, s *Scaler) error {
	enc := yaml.NewEncoder(w)
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("failed to encode scaler: %w", err)
	}
	return enc.Close()
}

// ReadScaler reads a scaler written by WriteScaler.
func ReadScaler(r io.Reader) (*Scaler, error) {
	var s Scaler
	if err := yaml.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scaler: %w", err)
	}
	if _, err := ParseScalerKind(string(s.Kind)); err != nil {
		return nil, err
	}
	if len(s.Offset) != len(s.Scale) {
		return nil, fmt.Errorf("%w: scaler offset and scale lengths differ", ErrDimensionMismatch)
	}
	for j, v := range s.Scale {
		if v == 0 {
			return nil, &tensor.NumericInstabilityError{Op: string(s.Kind) + " scaler", Index: j, Value: v}
		}
	}
	return &s, nil
}
