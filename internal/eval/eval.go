// Package eval measures a trained network on a data set using forward
// passes only.
package eval

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// ErrEmptyDataSet is returned when there is nothing to evaluate.
var ErrEmptyDataSet = errors.New("eval: empty data set")

// Predictor runs a forward pass.
type Predictor interface {
	Predict(input []float64) ([]float64, error)
}

// Class returns the class index an output vector stands for. A single output
// is a binary decision thresholded at 0.5; wider outputs pick the maximum.
func Class(v []float64) int {
	if len(v) == 1 {
		if v[0] >= 0.5 {
			return 1
		}
		return 0
	}
	return floats.MaxIdx(v)
}

// Correct reports whether output selects the same class as target.
func Correct(output, target []float64) bool {
	return Class(output) == Class(target)
}

// ClassificationReport holds the classification metrics of one data set.
// Confusion[actual][predicted] counts patterns.
type ClassificationReport struct {
	Accuracy  float64
	Precision []float64
	Recall    []float64
	F1        []float64
	Confusion [][]int
}

// MacroF1 returns the unweighted mean of the per-class F1 scores.
func (r *ClassificationReport) MacroF1() float64 {
	return stat.Mean(r.F1, nil)
}

// Classification predicts every pattern of d and compares the predicted class
// with the target class. A class that is never predicted has precision 0, and
// a class that never occurs has recall 0.
func Classification(p Predictor, d *data.DataSet) (*ClassificationReport, error) {
	if d == nil || d.Len() == 0 {
		return nil, ErrEmptyDataSet
	}
	classes := d.TargetSize()
	if classes == 1 {
		classes = 2
	}
	r := &ClassificationReport{
		Precision: make([]float64, classes),
		Recall:    make([]float64, classes),
		F1:        make([]float64, classes),
		Confusion: make([][]int, classes),
	}
	for i := range r.Confusion {
		r.Confusion[i] = make([]int, classes)
	}

	correct := 0
	for i, it := range d.Items() {
		out, err := p.Predict(it.Input)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		actual, predicted := Class(it.Target), Class(out)
		r.Confusion[actual][predicted]++
		if actual == predicted {
			correct++
		}
	}
	r.Accuracy = float64(correct) / float64(d.Len())

	for c := 0; c < classes; c++ {
		tp := r.Confusion[c][c]
		var predicted, actual int
		for k := 0; k < classes; k++ {
			predicted += r.Confusion[k][c]
			actual += r.Confusion[c][k]
		}
		if predicted > 0 {
			r.Precision[c] = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			r.Recall[c] = float64(tp) / float64(actual)
		}
		if sum := r.Precision[c] + r.Recall[c]; sum > 0 {
			r.F1[c] = 2 * r.Precision[c] * r.Recall[c] / sum
		}
	}
	return r, nil
}

// RegressionReport holds error measures over all output values.
type RegressionReport struct {
	MSE  float64
	RMSE float64
	MAE  float64
	R2   float64
}

// Regression predicts every pattern of d and compares each output value with
// its target. R2 needs targets with non-zero variance; constant targets yield
// a *tensor.NumericInstabilityError along with the other measures.
func Regression(p Predictor, d *data.DataSet) (*RegressionReport, error) {
	if d == nil || d.Len() == 0 {
		return nil, ErrEmptyDataSet
	}
	n := d.Len() * d.TargetSize()
	estimates := make([]float64, 0, n)
	values := make([]float64, 0, n)
	for i, it := range d.Items() {
		out, err := p.Predict(it.Input)
		if err != nil {
			return nil, fmt.Errorf("pattern %d: %w", i, err)
		}
		estimates = append(estimates, out...)
		values = append(values, it.Target...)
	}

	residuals := make([]float64, n)
	floats.SubTo(residuals, estimates, values)
	r := &RegressionReport{
		MSE: floats.Dot(residuals, residuals) / float64(n),
		MAE: floats.Norm(residuals, 1) / float64(n),
	}
	r.RMSE = math.Sqrt(r.MSE)

	if stat.Variance(values, nil) == 0 || n < 2 {
		return r, &tensor.NumericInstabilityError{Op: "r squared", Index: -1, Value: 0}
	}
	r.R2 = stat.RSquaredFrom(estimates, values, nil)
	return r, nil
}
