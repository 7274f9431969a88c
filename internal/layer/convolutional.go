package layer

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// Convolutional slides a set of filters over the previous layer's volume
// and produces one output channel per filter.
//
// Layouts (all row-major, see package tensor):
//
//	input:   [inHeight, inWidth, inDepth]
//	filters: [filterHeight, filterWidth, inDepth, filters]
//	output:  [height, width, filters]
type Convolutional struct {
	base

	filterWidth  int
	filterHeight int
	filters      int
	stride       int
	padding      int

	inWidth  int
	inHeight int
	inDepth  int
}

// NewConvolutional creates a convolutional layer.
// filterWidth, filterHeight: size of each filter
// filters: number of filters, the depth of the output
// stride: step between filter positions
// padding: zero padding on every side of the input
func NewConvolutional(filterWidth, filterHeight, filters, stride, padding int, act activations.Activation) (*Convolutional, error) {
	if err := checkPositive("filter size", filterWidth, filterHeight); err != nil {
		return nil, err
	}
	if err := checkPositive("filter count", filters); err != nil {
		return nil, err
	}
	if err := checkPositive("stride", stride); err != nil {
		return nil, err
	}
	if padding < 0 {
		return nil, fmt.Errorf("%w: padding must not be negative, got %d", ErrInvalidDimension, padding)
	}
	if act == nil {
		act = activations.ReLU{}
	}
	return &Convolutional{
		base:         base{act: act},
		filterWidth:  filterWidth,
		filterHeight: filterHeight,
		filters:      filters,
		stride:       stride,
		padding:      padding,
	}, nil
}

// Init derives the output geometry from the previous layer and seeds the
// filters uniformly in [-1/sqrt(fanIn), 1/sqrt(fanIn)]; biases start at zero.
func (c *Convolutional) Init(rng *rand.Rand) error {
	if err := c.linkInputs(); err != nil {
		return err
	}
	c.inWidth, c.inHeight, c.inDepth = c.prev.Width(), c.prev.Height(), c.prev.Depth()

	// Output size: (input + 2*padding - filter) / stride + 1
	w := c.inWidth + 2*c.padding - c.filterWidth
	h := c.inHeight + 2*c.padding - c.filterHeight
	if w < 0 || h < 0 {
		return fmt.Errorf("%w: %dx%d filter does not fit %dx%d input with padding %d",
			ErrShapeMismatch, c.filterWidth, c.filterHeight, c.inWidth, c.inHeight, c.padding)
	}
	c.width = w/c.stride + 1
	c.height = h/c.stride + 1
	c.depth = c.filters

	c.initOutputs()
	fanIn := c.filterWidth * c.filterHeight * c.inDepth
	scale := 1 / math.Sqrt(float64(fanIn))
	c.initWeights(rng, scale, c.filters, c.filterHeight, c.filterWidth, c.inDepth, c.filters)
	return nil
}

func (c *Convolutional) filterSize() int {
	return c.filterWidth * c.filterHeight * c.inDepth
}

// Forward computes the cross-correlation of every filter with the input.
// Filters write disjoint output channels, so they may run in parallel.
func (c *Convolutional) Forward() {
	in := c.inputs.Values()
	out := c.outputs.Values()
	weights := c.weights.Values()
	biases := c.biases.Values()

	outH, outW := c.height, c.width
	inH, inW := c.inHeight, c.inWidth
	fH, fW := c.filterHeight, c.filterWidth
	stride, padding := c.stride, c.padding
	filterSize := c.filterSize()

	parallel.For(c.filters, func(f int) {
		fBase := f * filterSize
		outBase := f * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				sum := biases[f]
				for ch := 0; ch < c.inDepth; ch++ {
					chWeightBase := fBase + ch*fH*fW
					chInBase := ch * inH * inW
					for kh := 0; kh < fH; kh++ {
						ih := oh*stride + kh - padding
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < fW; kw++ {
							iw := ow*stride + kw - padding
							if iw < 0 || iw >= inW {
								continue
							}
							sum += weights[chWeightBase+kh*fW+kw] * in[chInBase+ih*inW+iw]
						}
					}
				}
				out[outBase+oh*outW+ow] = c.act.Activate(sum)
			}
		}
	}, c.cfg.Parallel)
}

// Backward computes deltas from the next layer, then the filter gradients.
// Every weight is shared by all output positions of its filter, so its
// gradient sums delta * input over those positions.
func (c *Convolutional) Backward() {
	c.backpropagateFromNext()

	in := c.inputs.Values()
	deltas := c.deltas.Values()
	grads := c.gradients.Values()
	biasGrads := c.biasGradients.Values()

	outH, outW := c.height, c.width
	inH, inW := c.inHeight, c.inWidth
	fH, fW := c.filterHeight, c.filterWidth
	stride, padding := c.stride, c.padding
	filterSize := c.filterSize()

	parallel.For(c.filters, func(f int) {
		fBase := f * filterSize
		outBase := f * outH * outW
		for i := fBase; i < fBase+filterSize; i++ {
			grads[i] = 0
		}
		biasGrads[f] = 0

		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				d := deltas[outBase+oh*outW+ow]
				if d == 0 {
					continue
				}
				biasGrads[f] += d
				for ch := 0; ch < c.inDepth; ch++ {
					chWeightBase := fBase + ch*fH*fW
					chInBase := ch * inH * inW
					for kh := 0; kh < fH; kh++ {
						ih := oh*stride + kh - padding
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < fW; kw++ {
							iw := ow*stride + kw - padding
							if iw < 0 || iw >= inW {
								continue
							}
							grads[chWeightBase+kh*fW+kw] += d * in[chInBase+ih*inW+iw]
						}
					}
				}
			}
		}
	}, c.cfg.Parallel)

	c.accumulateDeltas()
}

// InputError routes every delta back through the filter positions that
// produced it, using the same stride and padding as Forward.
func (c *Convolutional) InputError(dst *tensor.Tensor) {
	dst.Fill(0)
	out := dst.Values()
	deltas := c.deltas.Values()
	weights := c.weights.Values()

	outH, outW := c.height, c.width
	inH, inW := c.inHeight, c.inWidth
	fH, fW := c.filterHeight, c.filterWidth
	stride, padding := c.stride, c.padding
	filterSize := c.filterSize()

	for f := 0; f < c.filters; f++ {
		fBase := f * filterSize
		outBase := f * outH * outW
		for oh := 0; oh < outH; oh++ {
			for ow := 0; ow < outW; ow++ {
				d := deltas[outBase+oh*outW+ow]
				if d == 0 {
					continue
				}
				for ch := 0; ch < c.inDepth; ch++ {
					chWeightBase := fBase + ch*fH*fW
					chInBase := ch * inH * inW
					for kh := 0; kh < fH; kh++ {
						ih := oh*stride + kh - padding
						if ih < 0 || ih >= inH {
							continue
						}
						for kw := 0; kw < fW; kw++ {
							iw := ow*stride + kw - padding
							if iw < 0 || iw >= inW {
								continue
							}
							out[chInBase+ih*inW+iw] += d * weights[chWeightBase+kh*fW+kw]
						}
					}
				}
			}
		}
	}
}

// FilterWidth returns the filter width.
func (c *Convolutional) FilterWidth() int { return c.filterWidth }

// FilterHeight returns the filter height.
func (c *Convolutional) FilterHeight() int { return c.filterHeight }

// Stride returns the stride.
func (c *Convolutional) Stride() int { return c.stride }

// Padding returns the padding.
func (c *Convolutional) Padding() int { return c.padding }

func (c *Convolutional) Spec() Spec {
	return Spec{
		Kind:         KindConvolutional,
		FilterWidth:  c.filterWidth,
		FilterHeight: c.filterHeight,
		Filters:      c.filters,
		Stride:       c.stride,
		Padding:      c.padding,
		Activation:   c.activationKind(),
	}
}
