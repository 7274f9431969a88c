package net

import (
	"fmt"
	"io"
	"strings"
)

// Summary writes a table of the layers, their output shapes and parameter
// counts to w.
func (n *Network) Summary(w io.Writer) error {
	rule := strings.Repeat("_", 65)
	double := strings.Repeat("=", 65)

	var b strings.Builder
	fmt.Fprintf(&b, "Model: Network (loss: %s)\n", n.lossKind)
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "%-25s %-20s %-10s\n", "Layer (type)", "Output Shape", "Param #")
	fmt.Fprintln(&b, double)

	total := 0
	for i, l := range n.layers {
		params := len(l.Weights())
		total += params

		name := fmt.Sprintf("%s_%d", l.Spec().Kind, i)
		shape := fmt.Sprintf("(%d, %d, %d)", l.Height(), l.Width(), l.Depth())
		if l.Height() == 1 && l.Depth() == 1 {
			shape = fmt.Sprintf("(%d)", l.Width())
		}
		fmt.Fprintf(&b, "%-25s %-20s %-10d\n", name, shape, params)
	}
	fmt.Fprintln(&b, double)
	fmt.Fprintf(&b, "Total params: %d\n", total)
	fmt.Fprintln(&b, rule)

	_, err := io.WriteString(w, b.String())
	return err
}
