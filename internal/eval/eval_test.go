package eval

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// table predicts the output stored for the first input value.
type table map[float64][]float64

func (tb table) Predict(input []float64) ([]float64, error) {
	out, ok := tb[input[0]]
	if !ok {
		return nil, errors.New("no prediction")
	}
	return out, nil
}

func set(t *testing.T, items ...data.Item) *data.DataSet {
	t.Helper()
	d, err := data.FromItems(items)
	require.NoError(t, err)
	return d
}

func TestClass(t *testing.T) {
	assert.Equal(t, 1, Class([]float64{0.5}))
	assert.Equal(t, 0, Class([]float64{0.49}))
	assert.Equal(t, 2, Class([]float64{0.1, 0.2, 0.7}))
	assert.True(t, Correct([]float64{0.2, 0.8}, []float64{0, 1}))
	assert.False(t, Correct([]float64{0.9}, []float64{0}))
}

func TestClassification(t *testing.T) {
	p := table{
		0: {0.8, 0.1, 0.1},
		1: {0.1, 0.8, 0.1},
		2: {0.1, 0.8, 0.1},
		3: {0.1, 0.1, 0.8},
	}
	d := set(t,
		data.Item{Input: []float64{0}, Target: []float64{1, 0, 0}},
		data.Item{Input: []float64{1}, Target: []float64{0, 1, 0}},
		data.Item{Input: []float64{2}, Target: []float64{0, 0, 1}},
		data.Item{Input: []float64{3}, Target: []float64{0, 0, 1}},
	)
	r, err := Classification(p, d)
	require.NoError(t, err)

	assert.Equal(t, 0.75, r.Accuracy)
	assert.Equal(t, [][]int{{1, 0, 0}, {0, 1, 0}, {0, 1, 1}}, r.Confusion)
	assert.InDeltaSlice(t, []float64{1, 0.5, 1}, r.Precision, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 1, 0.5}, r.Recall, 1e-12)
	assert.InDeltaSlice(t, []float64{1, 2.0 / 3, 2.0 / 3}, r.F1, 1e-12)
	assert.InDelta(t, 7.0/9, r.MacroF1(), 1e-12)
}

func TestClassificationBinary(t *testing.T) {
	p := table{0: {0.2}, 1: {0.7}, 2: {0.6}}
	d := set(t,
		data.Item{Input: []float64{0}, Target: []float64{0}},
		data.Item{Input: []float64{1}, Target: []float64{1}},
		data.Item{Input: []float64{2}, Target: []float64{0}},
	)
	r, err := Classification(p, d)
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1, 1}, {0, 1}}, r.Confusion)
	assert.InDelta(t, 2.0/3, r.Accuracy, 1e-12)
}

func TestClassificationNeverPredictedClass(t *testing.T) {
	p := table{0: {0.9, 0.1}, 1: {0.9, 0.1}}
	d := set(t,
		data.Item{Input: []float64{0}, Target: []float64{1, 0}},
		data.Item{Input: []float64{1}, Target: []float64{0, 1}},
	)
	r, err := Classification(p, d)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Precision[1])
	assert.Equal(t, 0.0, r.F1[1])
	assert.False(t, math.IsNaN(r.MacroF1()))
}

func TestRegression(t *testing.T) {
	p := table{0: {1}, 1: {2}, 2: {5}}
	d := set(t,
		data.Item{Input: []float64{0}, Target: []float64{1}},
		data.Item{Input: []float64{1}, Target: []float64{3}},
		data.Item{Input: []float64{2}, Target: []float64{5}},
	)
	r, err := Regression(p, d)
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3, r.MSE, 1e-12)
	assert.InDelta(t, math.Sqrt(1.0/3), r.RMSE, 1e-12)
	assert.InDelta(t, 1.0/3, r.MAE, 1e-12)
	// residual sum of squares 1, total sum of squares 8
	assert.InDelta(t, 1-1.0/8, r.R2, 1e-12)
}

func TestRegressionConstantTargets(t *testing.T) {
	p := table{0: {1}, 1: {3}}
	d := set(t,
		data.Item{Input: []float64{0}, Target: []float64{2}},
		data.Item{Input: []float64{1}, Target: []float64{2}},
	)
	r, err := Regression(p, d)
	var nie *tensor.NumericInstabilityError
	require.ErrorAs(t, err, &nie)
	assert.InDelta(t, 1.0, r.MSE, 1e-12)
}

func TestEvalErrors(t *testing.T) {
	_, err := Classification(table{}, nil)
	assert.ErrorIs(t, err, ErrEmptyDataSet)
	_, err = Regression(table{}, data.New(1, 1))
	assert.ErrorIs(t, err, ErrEmptyDataSet)

	d := set(t, data.Item{Input: []float64{9}, Target: []float64{1}})
	_, err = Classification(table{}, d)
	assert.Error(t, err)
	_, err = Regression(table{}, d)
	assert.Error(t, err)
}
