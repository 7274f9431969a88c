// Package tensor provides the dense N-dimensional buffer used by every layer,
// loss function and optimizer.
//
// A Tensor has between one and four dimensions. The dimension order is
//
//	1D: [cols]
//	2D: [rows, cols]
//	3D: [rows, cols, depth]
//	4D: [rows, cols, depth, fourth]
//
// and values are stored row-major in a single flat slice, so the element at
// (r, c, d, f) lives at ((f*depth+d)*rows+r)*cols+c.
//
// In-place operations mutate the receiver and return it so elementwise passes
// can be chained without extra allocation. Nothing else is ever mutated: a
// caller that needs a snapshot takes one with Copy.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// MaxDims is the highest rank a Tensor supports.
const MaxDims = 4

var (
	// ErrShapeMismatch is returned when two shapes that must agree do not.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")
	// ErrInvalidShape is returned for non-positive dimensions or an unsupported rank.
	ErrInvalidShape = errors.New("tensor: invalid shape")
	// ErrIndexOutOfRange is used when an index falls outside the tensor.
	ErrIndexOutOfRange = errors.New("tensor: index out of range")
)

// Tensor is a dense float64 buffer with 1 to 4 dimensions.
type Tensor struct {
	shape  []int
	values []float64

	rows, cols, depth, fourth int
}

// New creates a zero-filled tensor with the given shape.
// It panics if the shape is invalid, the same way make panics on a negative length.
func New(shape ...int) *Tensor {
	if err := checkShape(shape); err != nil {
		panic(err.Error())
	}
	t := &Tensor{shape: append([]int(nil), shape...)}
	t.setDims()
	t.values = make([]float64, t.rows*t.cols*t.depth*t.fourth)
	return t
}

// FromSlice creates a tensor holding a copy of values.
// The number of values must equal the product of the dimensions.
func FromSlice(values []float64, shape ...int) (*Tensor, error) {
	if err := checkShape(shape); err != nil {
		return nil, err
	}
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(values) {
		return nil, fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(values), shape)
	}
	t := &Tensor{shape: append([]int(nil), shape...)}
	t.setDims()
	t.values = append(make([]float64, 0, n), values...)
	return t, nil
}

// Vector is shorthand for a 1D tensor holding a copy of values.
func Vector(values ...float64) *Tensor {
	if len(values) == 0 {
		panic("tensor: empty vector")
	}
	t, _ := FromSlice(values, len(values))
	return t
}

func checkShape(shape []int) error {
	if len(shape) == 0 || len(shape) > MaxDims {
		return fmt.Errorf("%w: rank %d", ErrInvalidShape, len(shape))
	}
	for i, d := range shape {
		if d <= 0 {
			return fmt.Errorf("%w: dimension %d is %d", ErrInvalidShape, i, d)
		}
	}
	return nil
}

func (t *Tensor) setDims() {
	t.rows, t.cols, t.depth, t.fourth = 1, 1, 1, 1
	switch len(t.shape) {
	case 1:
		t.cols = t.shape[0]
	case 2:
		t.rows, t.cols = t.shape[0], t.shape[1]
	case 3:
		t.rows, t.cols, t.depth = t.shape[0], t.shape[1], t.shape[2]
	case 4:
		t.rows, t.cols, t.depth, t.fourth = t.shape[0], t.shape[1], t.shape[2], t.shape[3]
	}
}

// Shape returns a copy of the tensor dimensions.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.shape) }

// Len returns the number of elements.
func (t *Tensor) Len() int { return len(t.values) }

// Rows returns the row count (1 for vectors).
func (t *Tensor) Rows() int { return t.rows }

// Cols returns the column count.
func (t *Tensor) Cols() int { return t.cols }

// Depth returns the depth (1 below rank 3).
func (t *Tensor) Depth() int { return t.depth }

// Fourth returns the size of the fourth dimension (1 below rank 4).
func (t *Tensor) Fourth() int { return t.fourth }

// Values returns the backing slice. Only the owner of the tensor should
// write through it; everyone else should call Copy or CopyValues.
func (t *Tensor) Values() []float64 { return t.values }

// CopyValues returns a copy of the backing slice.
func (t *Tensor) CopyValues() []float64 {
	return append([]float64(nil), t.values...)
}

// SameShape reports whether t and o have identical dimensions.
func (t *Tensor) SameShape(o *Tensor) bool {
	if len(t.shape) != len(o.shape) {
		return false
	}
	for i := range t.shape {
		if t.shape[i] != o.shape[i] {
			return false
		}
	}
	return true
}

// Index converts a multi-dimensional index into a flat offset.
// The number of indices must equal the rank.
func (t *Tensor) Index(idx ...int) int {
	if len(idx) != len(t.shape) {
		panic(fmt.Sprintf("%v: %d indices for rank %d", ErrIndexOutOfRange, len(idx), len(t.shape)))
	}
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			panic(fmt.Sprintf("%v: index %v for shape %v", ErrIndexOutOfRange, idx, t.shape))
		}
	}
	switch len(idx) {
	case 1:
		return idx[0]
	case 2:
		return idx[0]*t.cols + idx[1]
	case 3:
		return (idx[2]*t.rows+idx[0])*t.cols + idx[1]
	default:
		return ((idx[3]*t.depth+idx[2])*t.rows+idx[0])*t.cols + idx[1]
	}
}

// Get returns the element at the given index.
func (t *Tensor) Get(idx ...int) float64 {
	return t.values[t.Index(idx...)]
}

// Set stores v at the given index.
func (t *Tensor) Set(v float64, idx ...int) {
	t.values[t.Index(idx...)] = v
}

func (t *Tensor) mustMatch(op string, o *Tensor) {
	if !t.SameShape(o) {
		panic(fmt.Sprintf("%v: %s %v and %v", ErrShapeMismatch, op, t.shape, o.shape))
	}
}

// Add adds o elementwise into t.
func (t *Tensor) Add(o *Tensor) *Tensor {
	t.mustMatch("add", o)
	floats.Add(t.values, o.values)
	return t
}

// Sub subtracts o elementwise from t.
func (t *Tensor) Sub(o *Tensor) *Tensor {
	t.mustMatch("sub", o)
	floats.Sub(t.values, o.values)
	return t
}

// MultiplyElementWise multiplies t by o elementwise.
func (t *Tensor) MultiplyElementWise(o *Tensor) *Tensor {
	t.mustMatch("multiply", o)
	floats.Mul(t.values, o.values)
	return t
}

// AddScalar adds s to every element.
func (t *Tensor) AddScalar(s float64) *Tensor {
	floats.AddConst(s, t.values)
	return t
}

// SubScalar subtracts s from every element.
func (t *Tensor) SubScalar(s float64) *Tensor {
	floats.AddConst(-s, t.values)
	return t
}

// Scale multiplies every element by s.
func (t *Tensor) Scale(s float64) *Tensor {
	floats.Scale(s, t.values)
	return t
}

// Div divides t elementwise by o. A zero divisor leaves t untouched and
// returns a *NumericInstabilityError.
func (t *Tensor) Div(o *Tensor) error {
	t.mustMatch("div", o)
	for i, v := range o.values {
		if v == 0 {
			return &NumericInstabilityError{Op: "div", Index: i, Value: v}
		}
	}
	floats.Div(t.values, o.values)
	return nil
}

// DivScalar divides every element by s.
func (t *Tensor) DivScalar(s float64) error {
	if s == 0 {
		return &NumericInstabilityError{Op: "div scalar", Index: -1, Value: s}
	}
	floats.Scale(1/s, t.values)
	return nil
}

// DivColumns divides each row r of a 2D tensor by vec[r]. vec must be a
// vector with one element per row.
func (t *Tensor) DivColumns(vec *Tensor) error {
	if t.Rank() != 2 || vec.Len() != t.rows {
		panic(fmt.Sprintf("%v: div columns %v by %v", ErrShapeMismatch, t.shape, vec.shape))
	}
	for r, v := range vec.values {
		if v == 0 {
			return &NumericInstabilityError{Op: "div columns", Index: r, Value: v}
		}
	}
	for r, v := range vec.values {
		floats.Scale(1/v, t.values[r*t.cols:(r+1)*t.cols])
	}
	return nil
}

// Sqrt replaces every element by its square root.
func (t *Tensor) Sqrt() error {
	for i, v := range t.values {
		if v < 0 {
			return &NumericInstabilityError{Op: "sqrt", Index: i, Value: v}
		}
	}
	for i, v := range t.values {
		t.values[i] = math.Sqrt(v)
	}
	return nil
}

// Fill sets every element to v.
func (t *Tensor) Fill(v float64) *Tensor {
	for i := range t.values {
		t.values[i] = v
	}
	return t
}

// Copy returns a deep clone of t.
func (t *Tensor) Copy() *Tensor {
	return &Tensor{
		shape:  append([]int(nil), t.shape...),
		values: append([]float64(nil), t.values...),
		rows:   t.rows,
		cols:   t.cols,
		depth:  t.depth,
		fourth: t.fourth,
	}
}

// CopyFrom overwrites t with the values of o. Only the element counts have
// to agree, so a 3D feature map can be copied into a flat vector.
func (t *Tensor) CopyFrom(o *Tensor) *Tensor {
	if len(t.values) != len(o.values) {
		panic(fmt.Sprintf("%v: copy %v into %v", ErrShapeMismatch, o.shape, t.shape))
	}
	copy(t.values, o.values)
	return t
}

// SetValues overwrites t with a copy of values.
func (t *Tensor) SetValues(values []float64) error {
	if len(values) != len(t.values) {
		return fmt.Errorf("%w: %d values for shape %v", ErrShapeMismatch, len(values), t.shape)
	}
	copy(t.values, values)
	return nil
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 { return floats.Sum(t.values) }

// Max returns the largest element.
func (t *Tensor) Max() float64 { return floats.Max(t.values) }

// ArgMax returns the flat index of the largest element.
func (t *Tensor) ArgMax() int { return floats.MaxIdx(t.values) }

// Equal reports whether t and o have the same shape and all elements agree
// within tol.
func (t *Tensor) Equal(o *Tensor, tol float64) bool {
	return t.SameShape(o) && floats.EqualApprox(t.values, o.values, tol)
}

// IsFinite reports whether no element is NaN or infinite.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (t *Tensor) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Tensor%v[", t.shape)
	for i, v := range t.values {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%g", v)
	}
	sb.WriteString("]")
	return sb.String()
}
