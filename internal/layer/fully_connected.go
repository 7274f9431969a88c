package layer

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// FullyConnected connects every unit to every output of the previous layer.
// A previous layer with a volume output is consumed as a flat vector.
//
// Weights are stored row-major with shape [width, inputs]: the weight from
// input i to unit j is at weights[j*inputs + i].
type FullyConnected struct {
	base

	inSize int

	// netInput holds W·x + b before the activation.
	netInput *tensor.Tensor

	// gonum views over the tensors above; they share the backing slices.
	w     *mat.Dense
	grads *mat.Dense
	x     *mat.VecDense
	z     *mat.VecDense
	d     *mat.VecDense
}

// NewFullyConnected creates a fully connected layer with width units.
func NewFullyConnected(width int, act activations.Activation) (*FullyConnected, error) {
	if err := checkPositive("width", width); err != nil {
		return nil, err
	}
	if act == nil {
		act = activations.Sigmoid{}
	}
	return &FullyConnected{base: base{width: width, height: 1, depth: 1, act: act}}, nil
}

// Init allocates the layer and seeds the weights uniformly in
// [-1/sqrt(fanIn), 1/sqrt(fanIn)]; biases start at zero.
func (f *FullyConnected) Init(rng *rand.Rand) error {
	if err := f.linkInputs(); err != nil {
		return err
	}
	f.inSize = f.inputs.Len()
	f.initOutputs()
	f.netInput = tensor.New(f.width)

	scale := 1 / math.Sqrt(float64(f.inSize))
	f.initWeights(rng, scale, f.width, f.width, f.inSize)

	f.w = mat.NewDense(f.width, f.inSize, f.weights.Values())
	f.grads = mat.NewDense(f.width, f.inSize, f.gradients.Values())
	f.x = mat.NewVecDense(f.inSize, f.inputs.Values())
	f.z = mat.NewVecDense(f.width, f.netInput.Values())
	f.d = mat.NewVecDense(f.width, f.deltas.Values())
	return nil
}

// computeNetInput sets netInput = W·x + b.
func (f *FullyConnected) computeNetInput() {
	f.z.MulVec(f.w, f.x)
	f.netInput.Add(f.biases)
}

// Forward computes outputs = activation(W·x + b).
func (f *FullyConnected) Forward() {
	f.computeNetInput()
	z := f.netInput.Values()
	out := f.outputs.Values()
	for j := range out {
		out[j] = f.act.Activate(z[j])
	}
}

// Backward computes deltas from the next layer and accumulates weight changes.
func (f *FullyConnected) Backward() {
	f.backpropagateFromNext()
	f.accumulateGradients()
}

// accumulateGradients computes dL/dW = δ·xᵀ and dL/db = δ and hands them
// to the optimizer.
func (f *FullyConnected) accumulateGradients() {
	f.grads.Outer(1, f.d, f.x)
	f.biasGradients.CopyFrom(f.deltas)
	f.accumulateDeltas()
}

// InputError writes Wᵀ·δ into dst.
func (f *FullyConnected) InputError(dst *tensor.Tensor) {
	out := mat.NewVecDense(f.inSize, dst.Values())
	out.MulVec(f.w.T(), f.d)
}

// InputSize returns the number of inputs per unit.
func (f *FullyConnected) InputSize() int { return f.inSize }

// Weight returns the weight from input i to unit j.
func (f *FullyConnected) Weight(j, i int) float64 { return f.weights.Get(j, i) }

// SetWeight sets the weight from input i to unit j.
func (f *FullyConnected) SetWeight(j, i int, v float64) { f.weights.Set(v, j, i) }

// Bias returns the bias of unit j.
func (f *FullyConnected) Bias(j int) float64 { return f.biases.Get(j) }

// SetBias sets the bias of unit j.
func (f *FullyConnected) SetBias(j int, v float64) { f.biases.Set(v, j) }

func (f *FullyConnected) Spec() Spec {
	return Spec{Kind: KindFullyConnected, Width: f.width, Activation: f.activationKind()}
}
