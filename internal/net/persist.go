package net

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"

	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
)

// formatVersion is bumped whenever the encoded layout changes.
const formatVersion = 1

// model is the gob representation of a network: the recipe to rebuild the
// layers plus their weights. Training state such as momentum history is not
// saved.
type model struct {
	Version int
	Layers  []layer.Spec
	Weights [][]float64
	Loss    loss.Kind
	Labels  []string
	Seed    uint64
}

// Save writes the network to a file using gob encoding.
func (n *Network) Save(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if err := n.Encode(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// Load reads a network written by Save.
func Load(filename string) (*Network, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	return Decode(file)
}

// Encode writes the network to w using gob encoding.
func (n *Network) Encode(w io.Writer) error {
	m := model{
		Version: formatVersion,
		Layers:  make([]layer.Spec, len(n.layers)),
		Weights: n.Weights(),
		Loss:    n.lossKind,
		Labels:  n.OutputLabels(),
		Seed:    n.seed,
	}
	for i, l := range n.layers {
		m.Layers[i] = l.Spec()
	}
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("failed to encode network: %w", err)
	}
	return nil
}

// Decode reads a network written by Encode. The layers are rebuilt through
// the same validation as Builder.Build before the weights are restored.
func Decode(r io.Reader) (*Network, error) {
	var m model
	if err := gob.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode network: %w", err)
	}
	if m.Version != formatVersion {
		return nil, fmt.Errorf("net: unsupported format version %d", m.Version)
	}

	n, err := build(m.Layers, m.Loss, m.Labels, m.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild network: %w", err)
	}
	if err := n.SetWeights(m.Weights); err != nil {
		return nil, fmt.Errorf("failed to restore weights: %w", err)
	}
	return n, nil
}
