package data

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// CSVOptions controls how LoadCSV maps columns to inputs and targets.
type CSVOptions struct {
	// TargetColumns are the indices of the target columns, in target order.
	// All other columns are inputs, in file order.
	TargetColumns []int
	// HasHeader skips the first row and uses it for column names.
	HasHeader bool
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// Classes, when positive, one-hot encodes the single target column,
	// which must hold a class index in [0, Classes).
	Classes int
}

// LoadCSV loads a data set from a CSV file.
func LoadCSV(filename string, opts CSVOptions) (*DataSet, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return ReadCSV(file, opts)
}

// ReadCSV reads a data set from CSV records in r.
func ReadCSV(r io.Reader, opts CSVOptions) (*DataSet, error) {
	reader := csv.NewReader(r)
	if opts.Comma != 0 {
		reader.Comma = opts.Comma
	}
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csv file is empty")
	}

	startRow := 0
	if opts.HasHeader {
		startRow = 1
	}
	if len(records) <= startRow {
		return nil, fmt.Errorf("csv file has no data rows")
	}

	numCols := len(records[0])
	isTarget := make(map[int]bool, len(opts.TargetColumns))
	for _, col := range opts.TargetColumns {
		if col < 0 || col >= numCols {
			return nil, fmt.Errorf("target column %d out of range for %d columns", col, numCols)
		}
		if isTarget[col] {
			return nil, fmt.Errorf("target column %d listed twice", col)
		}
		isTarget[col] = true
	}
	if opts.Classes > 0 && len(opts.TargetColumns) != 1 {
		return nil, fmt.Errorf("one-hot targets need exactly one target column, got %d", len(opts.TargetColumns))
	}

	targetSize := len(opts.TargetColumns)
	if opts.Classes > 0 {
		targetSize = opts.Classes
	}
	d := New(numCols-len(opts.TargetColumns), targetSize)

	if opts.HasHeader {
		names := make([]string, 0, d.inputSize)
		for j, name := range records[0] {
			if !isTarget[j] {
				names = append(names, strings.TrimSpace(name))
			}
		}
		d.SetColumnNames(names)
	}

	targetValues := make(map[int]float64, len(opts.TargetColumns))
	for i := startRow; i < len(records); i++ {
		record := records[i]
		if len(record) != numCols {
			return nil, fmt.Errorf("inconsistent number of columns at row %d", i)
		}

		input := make([]float64, 0, d.inputSize)
		for j, valStr := range record {
			val, err := strconv.ParseFloat(strings.TrimSpace(valStr), 64)
			if err != nil {
				return nil, fmt.Errorf("failed to parse value at row %d, col %d: %w", i, j, err)
			}
			if isTarget[j] {
				targetValues[j] = val
			} else {
				input = append(input, val)
			}
		}

		var target []float64
		if opts.Classes > 0 {
			class := targetValues[opts.TargetColumns[0]]
			k := int(class)
			if float64(k) != class || k < 0 || k >= opts.Classes {
				return nil, fmt.Errorf("row %d: class %v not in [0, %d)", i, class, opts.Classes)
			}
			target = make([]float64, opts.Classes)
			target[k] = 1
		} else {
			target = make([]float64, 0, targetSize)
			for _, col := range opts.TargetColumns {
				target = append(target, targetValues[col])
			}
		}

		if err := d.Add(input, target); err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
	}
	return d, nil
}
