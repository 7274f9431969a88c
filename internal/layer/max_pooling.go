package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// MaxPooling downsamples every channel by taking the maximum over sliding
// windows. It has no weights. The position of each maximum is remembered
// during Forward so the error flows back only to that input.
type MaxPooling struct {
	base

	filterWidth  int
	filterHeight int
	stride       int

	inWidth  int
	inHeight int

	// argmax[i] is the flat input index that produced outputs[i].
	argmax []int
}

// NewMaxPooling creates a max pooling layer with a filterWidth x filterHeight window.
func NewMaxPooling(filterWidth, filterHeight, stride int) (*MaxPooling, error) {
	if err := checkPositive("filter size", filterWidth, filterHeight); err != nil {
		return nil, err
	}
	if err := checkPositive("stride", stride); err != nil {
		return nil, err
	}
	return &MaxPooling{
		filterWidth:  filterWidth,
		filterHeight: filterHeight,
		stride:       stride,
	}, nil
}

// Init derives the output geometry; depth is kept from the previous layer.
func (m *MaxPooling) Init(_ *rand.Rand) error {
	if err := m.linkInputs(); err != nil {
		return err
	}
	m.inWidth, m.inHeight = m.prev.Width(), m.prev.Height()
	if m.filterWidth > m.inWidth || m.filterHeight > m.inHeight {
		return fmt.Errorf("%w: %dx%d pooling window does not fit %dx%d input",
			ErrShapeMismatch, m.filterWidth, m.filterHeight, m.inWidth, m.inHeight)
	}

	// Output size: (input - window) / stride + 1
	m.width = (m.inWidth-m.filterWidth)/m.stride + 1
	m.height = (m.inHeight-m.filterHeight)/m.stride + 1
	m.depth = m.prev.Depth()

	m.initOutputs()
	m.argmax = make([]int, m.size())
	return nil
}

// Forward stores the maximum of every window and its input index.
func (m *MaxPooling) Forward() {
	in := m.inputs.Values()
	out := m.outputs.Values()

	outH, outW := m.height, m.width
	inH, inW := m.inHeight, m.inWidth

	for ch := 0; ch < m.depth; ch++ {
		inBase := ch * inH * inW
		outBase := ch * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				maxVal := math.Inf(-1)
				maxIdx := -1
				for kh := 0; kh < m.filterHeight; kh++ {
					row := inBase + (oh*m.stride+kh)*inW
					for kw := 0; kw < m.filterWidth; kw++ {
						idx := row + ow*m.stride + kw
						if in[idx] > maxVal {
							maxVal = in[idx]
							maxIdx = idx
						}
					}
				}
				pos := outBase + oh*outW + ow
				out[pos] = maxVal
				m.argmax[pos] = maxIdx
			}
		}
	}
}

// Backward takes the deltas from the next layer unchanged.
func (m *MaxPooling) Backward() {
	m.backpropagateFromNext()
}

// InputError routes every delta to the input that was the maximum of its
// window; all other inputs receive zero.
func (m *MaxPooling) InputError(dst *tensor.Tensor) {
	dst.Fill(0)
	out := dst.Values()
	for pos, d := range m.deltas.Values() {
		if idx := m.argmax[pos]; idx >= 0 {
			out[idx] += d
		}
	}
}

// ApplyWeightChanges is a no-op: pooling has no weights.
func (m *MaxPooling) ApplyWeightChanges() {}

// Argmax returns a copy of the memoised maximum positions.
func (m *MaxPooling) Argmax() []int {
	return append([]int(nil), m.argmax...)
}

func (m *MaxPooling) Spec() Spec {
	return Spec{
		Kind:         KindMaxPooling,
		FilterWidth:  m.filterWidth,
		FilterHeight: m.filterHeight,
		Stride:       m.stride,
	}
}
