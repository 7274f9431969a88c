package main

import (
	"encoding/csv"
	"errors"
	"flag"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/eval"
	"github.com/FlavioCFOliveira/deepgo/internal/net"
)

func predictCmd(args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	flags := flag.NewFlagSet("predict", flag.ContinueOnError)
	flags.SetOutput(stderr)
	modelPath := flags.String("model", "", "saved network")
	scalerPath := flags.String("scaler", "", "input scaler (default: <model>.scaler.yaml when present)")
	input := flags.String("input", "", "comma separated input vector; rows are read from stdin when empty")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *modelPath == "" {
		flags.Usage()
		return errors.New("predict: -model is required")
	}

	n, err := net.Load(*modelPath)
	if err != nil {
		return err
	}
	scaler, err := loadScaler(*scalerPath, *modelPath)
	if err != nil {
		return err
	}

	var rows [][]string
	if *input != "" {
		rows = [][]string{strings.Split(*input, ",")}
	} else {
		r := csv.NewReader(stdin)
		r.FieldsPerRecord = -1
		if rows, err = r.ReadAll(); err != nil {
			return fmt.Errorf("failed to read input rows: %w", err)
		}
	}

	labels := n.OutputLabels()
	for i, row := range rows {
		in, err := parseRow(row)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if scaler != nil {
			if in, err = scaler.Transform(in); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
		}
		out, err := n.Predict(in)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		fmt.Fprint(stdout, formatRow(out))
		if len(labels) > 0 {
			fmt.Fprintf(stdout, " %s", labels[eval.Class(out)])
		}
		fmt.Fprintln(stdout)
	}
	return nil
}

// loadScaler reads the scaler at path, or the sidecar of model when path is
// empty. A missing sidecar means the inputs are not scaled.
func loadScaler(path, model string) (*data.Scaler, error) {
	explicit := path != ""
	if !explicit {
		path = scalerFile(model)
	}
	f, err := os.Open(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open scaler: %w", err)
	}
	defer f.Close()
	return data.ReadScaler(f)
}

func parseRow(row []string) ([]float64, error) {
	out := make([]float64, len(row))
	for i, s := range row {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i+1, err)
		}
		out[i] = v
	}
	return out, nil
}

func formatRow(v []float64) string {
	parts := make([]string, len(v))
	for i, x := range v {
		parts[i] = strconv.FormatFloat(x, 'f', 6, 64)
	}
	return strings.Join(parts, ",")
}
