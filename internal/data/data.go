// Package data holds training patterns and the utilities that prepare them:
// loading, shuffling, splitting and scaling.
package data

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
)

var (
	// ErrDimensionMismatch is returned when a pattern does not match the
	// data set's input or target size.
	ErrDimensionMismatch = errors.New("data: dimension mismatch")
	// ErrInvalidProportion is returned by Split for proportions that are not
	// positive or that sum to more than one.
	ErrInvalidProportion = errors.New("data: invalid split proportion")
)

// splitEpsilon absorbs rounding in total*proportion before flooring, so
// that 100*0.29 yields 29 rather than 28.
const splitEpsilon = 1e-9

// Item is one pattern: an input vector and its target vector.
type Item struct {
	Input  []float64
	Target []float64
}

// DataSet is an ordered collection of patterns of fixed dimensions.
//
// Items are stored as added and shared between a data set and the sets
// produced by Split; callers must treat Item slices as read only.
type DataSet struct {
	inputSize  int
	targetSize int
	items      []Item

	columnNames []string
}

// New returns an empty data set for patterns of the given sizes.
func New(inputSize, targetSize int) *DataSet {
	return &DataSet{inputSize: inputSize, targetSize: targetSize}
}

// FromItems builds a data set from items, taking the sizes from the first.
func FromItems(items []Item) (*DataSet, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrDimensionMismatch)
	}
	d := New(len(items[0].Input), len(items[0].Target))
	for i, it := range items {
		if err := d.Add(it.Input, it.Target); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
	}
	return d, nil
}

// Add appends a copy of the pattern.
func (d *DataSet) Add(input, target []float64) error {
	if len(input) != d.inputSize || len(target) != d.targetSize {
		return fmt.Errorf("%w: want %d inputs and %d targets, got %d and %d",
			ErrDimensionMismatch, d.inputSize, d.targetSize, len(input), len(target))
	}
	d.items = append(d.items, Item{
		Input:  append([]float64(nil), input...),
		Target: append([]float64(nil), target...),
	})
	return nil
}

// Len returns the number of patterns.
func (d *DataSet) Len() int { return len(d.items) }

// At returns pattern i.
func (d *DataSet) At(i int) Item { return d.items[i] }

// Items returns the patterns in order. The slice is a copy.
func (d *DataSet) Items() []Item { return append([]Item(nil), d.items...) }

// InputSize returns the length of every input vector.
func (d *DataSet) InputSize() int { return d.inputSize }

// TargetSize returns the length of every target vector.
func (d *DataSet) TargetSize() int { return d.targetSize }

// ColumnNames returns the input column names, if known.
func (d *DataSet) ColumnNames() []string { return append([]string(nil), d.columnNames...) }

// SetColumnNames records the input column names.
func (d *DataSet) SetColumnNames(names []string) {
	d.columnNames = append([]string(nil), names...)
}

// Shuffle reorders the patterns in place with a Fisher-Yates shuffle
// driven by rng.
func (d *DataSet) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(d.items), func(i, j int) {
		d.items[i], d.items[j] = d.items[j], d.items[i]
	})
}

// Split partitions the patterns, in their current order, into disjoint data
// sets of floor(Len*p) patterns each. Proportions must be positive and sum
// to at most 1; patterns left over by truncation belong to no part.
func (d *DataSet) Split(parts ...float64) ([]*DataSet, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no proportions", ErrInvalidProportion)
	}
	var sum float64
	for _, p := range parts {
		if p <= 0 || math.IsNaN(p) {
			return nil, fmt.Errorf("%w: %v", ErrInvalidProportion, p)
		}
		sum += p
	}
	if sum > 1+splitEpsilon {
		return nil, fmt.Errorf("%w: proportions sum to %v", ErrInvalidProportion, sum)
	}

	out := make([]*DataSet, len(parts))
	start := 0
	for i, p := range parts {
		n := int(math.Floor(float64(len(d.items))*p + splitEpsilon))
		end := min(start+n, len(d.items))
		out[i] = &DataSet{
			inputSize:   d.inputSize,
			targetSize:  d.targetSize,
			items:       append([]Item(nil), d.items[start:end]...),
			columnNames: d.ColumnNames(),
		}
		start = end
	}
	return out, nil
}
