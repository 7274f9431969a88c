package data

import (
	"bytes"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

func twoColumns(t *testing.T) *DataSet {
	t.Helper()
	d, err := FromItems([]Item{
		{Input: []float64{0, 10}, Target: []float64{1}},
		{Input: []float64{5, 20}, Target: []float64{0}},
		{Input: []float64{10, 30}, Target: []float64{1}},
	})
	require.NoError(t, err)
	return d
}

func TestMinMaxScaler(t *testing.T) {
	d := twoColumns(t)
	s, err := FitScaler(ScalerMinMax, d)
	require.NoError(t, err)

	scaled, err := s.Apply(d)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, scaled.At(0).Input, 1e-12)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, scaled.At(1).Input, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1}, scaled.At(2).Input, 1e-12)
	assert.Equal(t, []float64{0}, scaled.At(1).Target)

	// the source set is left untouched
	assert.Equal(t, []float64{5, 20}, d.At(1).Input)
}

func TestStandardScaler(t *testing.T) {
	d := twoColumns(t)
	s, err := FitScaler(ScalerStandard, d)
	require.NoError(t, err)

	// sample standard deviation of {0, 5, 10} is 5
	assert.InDeltaSlice(t, []float64{5, 20}, s.Offset, 1e-12)
	assert.InDeltaSlice(t, []float64{5, 10}, s.Scale, 1e-12)

	out, err := s.Transform([]float64{10, 10})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, -1}, out, 1e-12)

	_, err = s.Transform([]float64{1})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestScalerZeroRangeIsNumericInstability(t *testing.T) {
	d, err := FromItems([]Item{
		{Input: []float64{1, 3}, Target: []float64{0}},
		{Input: []float64{2, 3}, Target: []float64{1}},
	})
	require.NoError(t, err)

	for _, kind := range []ScalerKind{ScalerMinMax, ScalerStandard} {
		_, err := FitScaler(kind, d)
		var nie *tensor.NumericInstabilityError
		require.True(t, errors.As(err, &nie), "%s: %v", kind, err)
		assert.Equal(t, 1, nie.Index)
	}
}

func TestScalerSinglePattern(t *testing.T) {
	d, err := FromItems([]Item{{Input: []float64{1}, Target: []float64{0}}})
	require.NoError(t, err)
	_, err = FitScaler(ScalerStandard, d)
	var nie *tensor.NumericInstabilityError
	assert.ErrorAs(t, err, &nie)
}

func TestNoneScalerIsIdentity(t *testing.T) {
	d := twoColumns(t)
	s, err := FitScaler(ScalerNone, d)
	require.NoError(t, err)
	out, err := s.Transform([]float64{3, -4})
	require.NoError(t, err)
	assert.Equal(t, []float64{3, -4}, out)
}

func TestScalerYAMLRoundTrip(t *testing.T) {
	s, err := FitScaler(ScalerMinMax, twoColumns(t))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteScaler(&buf, s))
	assert.Contains(t, buf.String(), "kind: minmax")

	got, err := ReadScaler(&buf)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestReadScalerRejectsZeroScale(t *testing.T) {
	_, err := ReadScaler(bytes.NewBufferString("kind: minmax\noffset: [0]\nscale: [0]\n"))
	var nie *tensor.NumericInstabilityError
	assert.ErrorAs(t, err, &nie)
	assert.False(t, math.IsNaN(nie.Value))
}

func TestParseScalerKind(t *testing.T) {
	k, err := ParseScalerKind(" MinMax ")
	require.NoError(t, err)
	assert.Equal(t, ScalerMinMax, k)

	k, err = ParseScalerKind("")
	require.NoError(t, err)
	assert.Equal(t, ScalerNone, k)

	_, err = ParseScalerKind("robust")
	assert.Error(t, err)
}
