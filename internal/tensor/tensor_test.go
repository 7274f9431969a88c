package tensor

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShapes(t *testing.T) {
	tests := []struct {
		name                      string
		shape                     []int
		rows, cols, depth, fourth int
	}{
		{"vector", []int{5}, 1, 5, 1, 1},
		{"matrix", []int{2, 3}, 2, 3, 1, 1},
		{"volume", []int{2, 3, 4}, 2, 3, 4, 1},
		{"filters", []int{3, 3, 2, 5}, 3, 3, 2, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := New(tt.shape...)
			assert.Equal(t, tt.rows, x.Rows())
			assert.Equal(t, tt.cols, x.Cols())
			assert.Equal(t, tt.depth, x.Depth())
			assert.Equal(t, tt.fourth, x.Fourth())
			assert.Equal(t, tt.rows*tt.cols*tt.depth*tt.fourth, x.Len())
			assert.Equal(t, tt.shape, x.Shape())
		})
	}
}

func TestNewInvalidShapePanics(t *testing.T) {
	assert.Panics(t, func() { New() })
	assert.Panics(t, func() { New(0, 3) })
	assert.Panics(t, func() { New(1, 2, 3, 4, 5) })
}

func TestFromSliceLengthMismatch(t *testing.T) {
	_, err := FromSlice([]float64{1, 2, 3}, 2, 2)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShapeMismatch))

	_, err = FromSlice([]float64{1}, -1)
	assert.True(t, errors.Is(err, ErrInvalidShape))
}

func TestFromSliceCopiesValues(t *testing.T) {
	src := []float64{1, 2, 3, 4}
	x, err := FromSlice(src, 2, 2)
	require.NoError(t, err)
	src[0] = 100
	assert.Equal(t, 1.0, x.Get(0, 0))
}

func TestGetSetLayout(t *testing.T) {
	x := New(2, 3, 2)
	x.Set(7, 1, 2, 1)
	// ((d*rows)+r)*cols + c = (1*2+1)*3+2 = 11
	assert.Equal(t, 7.0, x.Values()[11])
	assert.Equal(t, 7.0, x.Get(1, 2, 1))

	f := New(2, 2, 2, 3)
	f.Set(3, 1, 0, 1, 2)
	// ((f*depth+d)*rows+r)*cols+c = ((2*2+1)*2+1)*2+0 = 22
	assert.Equal(t, 3.0, f.Values()[22])
}

func TestGetOutOfRangePanics(t *testing.T) {
	x := New(2, 2)
	assert.Panics(t, func() { x.Get(2, 0) })
	assert.Panics(t, func() { x.Get(0) })
	assert.Panics(t, func() { x.Set(1, 0, -1) })
}

func TestAddSubRoundTrip(t *testing.T) {
	a, _ := FromSlice([]float64{0.1, -2.5, 3.75, 1e-3, 42, -0.3}, 2, 3)
	b, _ := FromSlice([]float64{9.9, 0.5, -1.25, 7, -40, 0.3}, 2, 3)
	orig := a.Copy()

	a.Add(b).Sub(b)
	assert.True(t, a.Equal(orig, 1e-12), "got %v want %v", a, orig)
}

func TestBinaryOpShapeMismatchPanics(t *testing.T) {
	a := New(2, 3)
	b := New(3, 2)
	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { a.Sub(b) })
	assert.Panics(t, func() { a.MultiplyElementWise(b) })
}

func TestMultiplyElementWise(t *testing.T) {
	a := Vector(1, 2, 3)
	a.MultiplyElementWise(Vector(2, 0.5, -1))
	assert.Equal(t, []float64{2, 1, -3}, a.Values())
}

func TestDiv(t *testing.T) {
	a := Vector(2, 4, 9)
	require.NoError(t, a.Div(Vector(2, 2, 3)))
	assert.Equal(t, []float64{1, 2, 3}, a.Values())
}

func TestDivByZeroIsNumericInstability(t *testing.T) {
	a := Vector(2, 4, 9)
	err := a.Div(Vector(1, 0, 3))

	var nie *NumericInstabilityError
	require.True(t, errors.As(err, &nie))
	assert.Equal(t, 1, nie.Index)
	assert.Equal(t, []float64{2, 4, 9}, a.Values(), "receiver must be untouched")

	assert.Error(t, a.DivScalar(0))
}

func TestDivColumns(t *testing.T) {
	m, _ := FromSlice([]float64{2, 4, 9, 12}, 2, 2)
	require.NoError(t, m.DivColumns(Vector(2, 3)))
	assert.Equal(t, []float64{1, 2, 3, 4}, m.Values())

	err := m.DivColumns(Vector(1, 0))
	var nie *NumericInstabilityError
	assert.True(t, errors.As(err, &nie))
}

func TestSqrt(t *testing.T) {
	a := Vector(4, 9, 0)
	require.NoError(t, a.Sqrt())
	assert.Equal(t, []float64{2, 3, 0}, a.Values())
	assert.Error(t, Vector(-1).Sqrt())
}

func TestCopyIsDeep(t *testing.T) {
	a := Vector(1, 2)
	b := a.Copy()
	b.Fill(5)
	assert.Equal(t, []float64{1, 2}, a.Values())
	assert.Equal(t, []float64{5, 5}, b.Values())
}

func TestScalarOps(t *testing.T) {
	a := Vector(1, 2)
	a.AddScalar(1).Scale(2).SubScalar(1)
	assert.Equal(t, []float64{3, 5}, a.Values())
	assert.Equal(t, 8.0, a.Sum())
	assert.Equal(t, 5.0, a.Max())
	assert.Equal(t, 1, a.ArgMax())
}

func TestIsFinite(t *testing.T) {
	assert.True(t, Vector(1, 2).IsFinite())
	assert.False(t, Vector(1, math.NaN()).IsFinite())
	assert.False(t, Vector(math.Inf(-1)).IsFinite())
	assert.Error(t, CheckFinite("loss", math.NaN()))
	assert.NoError(t, CheckFinite("loss", 0.5))
}
