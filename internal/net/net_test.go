package net

import (
	"bytes"
	"encoding/gob"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/opt"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
)

func xorBuilder() *Builder {
	return NewBuilder().
		InputLayer(2, 1, 1).
		FullyConnectedLayer(4, activations.KindTanh).
		OutputLayer(1, activations.KindSigmoid).
		LossFunction(loss.KindMeanSquaredError).
		RandomSeed(7)
}

func cnnBuilder() *Builder {
	return NewBuilder().
		InputLayer(6, 6, 1).
		ConvolutionalLayer(3, 3, 2, 1, 0, activations.KindReLU).
		MaxPoolingLayer(2, 2, 2).
		FullyConnectedLayer(4, activations.KindTanh).
		OutputLayer(3, activations.KindSoftmax).
		LossFunction(loss.KindCrossEntropy).
		OutputLabels("a", "b", "c")
}

func TestBuild(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)

	assert.Len(t, n.Layers(), 3)
	assert.Equal(t, 2, n.InputSize())
	assert.Equal(t, 1, n.OutputSize())
	assert.Equal(t, 2*4+4+4*1+1, n.ParamCount())
	assert.Equal(t, uint64(7), n.Seed())
	assert.Nil(t, n.OutputLabels())
	assert.Equal(t, loss.KindMeanSquaredError, n.LossFunction().Kind())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		want    error
	}{
		{
			name:    "no layers",
			builder: NewBuilder(),
			want:    ErrInvalidArchitecture,
		},
		{
			name:    "first layer not input",
			builder: NewBuilder().FullyConnectedLayer(2, activations.KindTanh).OutputLayer(1, activations.KindLinear),
			want:    ErrInvalidArchitecture,
		},
		{
			name:    "second input layer",
			builder: NewBuilder().InputLayer(2, 1, 1).InputLayer(2, 1, 1).OutputLayer(1, activations.KindLinear),
			want:    ErrInvalidArchitecture,
		},
		{
			name:    "output not last",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(1, activations.KindLinear).FullyConnectedLayer(2, activations.KindTanh),
			want:    ErrInvalidArchitecture,
		},
		{
			name:    "cross entropy with sigmoid output",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(2, activations.KindSigmoid).LossFunction(loss.KindCrossEntropy),
			want:    ErrInvalidPairing,
		},
		{
			name:    "cross entropy with one softmax unit",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(1, activations.KindSoftmax).LossFunction(loss.KindCrossEntropy),
			want:    ErrInvalidPairing,
		},
		{
			name:    "binary cross entropy with two units",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(2, activations.KindSigmoid).LossFunction(loss.KindBinaryCrossEntropy),
			want:    ErrInvalidPairing,
		},
		{
			name:    "binary cross entropy with tanh",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(1, activations.KindTanh).LossFunction(loss.KindBinaryCrossEntropy),
			want:    ErrInvalidPairing,
		},
		{
			name:    "mse with softmax",
			builder: NewBuilder().InputLayer(2, 1, 1).OutputLayer(3, activations.KindSoftmax),
			want:    ErrInvalidPairing,
		},
		{
			name: "softmax on hidden layer",
			builder: NewBuilder().InputLayer(2, 1, 1).
				FullyConnectedLayer(3, activations.KindSoftmax).
				OutputLayer(1, activations.KindSigmoid),
			want: ErrInvalidPairing,
		},
		{
			name: "softmax on convolution",
			builder: NewBuilder().InputLayer(4, 4, 1).
				ConvolutionalLayer(3, 3, 2, 1, 0, activations.KindSoftmax).
				OutputLayer(1, activations.KindLinear),
			want: ErrInvalidPairing,
		},
		{
			name: "output spec with softmax and mse",
			builder: NewBuilder().InputLayer(2, 1, 1).
				Layer(layer.Spec{Kind: layer.KindOutput, Width: 3, Activation: activations.KindSoftmax}),
			want: ErrInvalidPairing,
		},
		{
			name:    "label count",
			builder: xorBuilder().OutputLabels("a", "b"),
			want:    ErrInvalidArchitecture,
		},
		{
			name:    "zero width",
			builder: NewBuilder().InputLayer(2, 1, 1).FullyConnectedLayer(0, activations.KindTanh).OutputLayer(1, activations.KindLinear),
			want:    layer.ErrInvalidDimension,
		},
		{
			name: "filter larger than input",
			builder: NewBuilder().InputLayer(3, 3, 1).
				ConvolutionalLayer(5, 5, 1, 1, 0, activations.KindReLU).
				OutputLayer(1, activations.KindLinear),
			want: layer.ErrShapeMismatch,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := tt.builder.Build()
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, n)
		})
	}
}

func TestSetInputSizeMismatch(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)
	assert.ErrorIs(t, n.SetInput([]float64{1, 2, 3}), layer.ErrShapeMismatch)
	_, err = n.Predict([]float64{1})
	assert.ErrorIs(t, err, layer.ErrShapeMismatch)
}

func TestSeedDeterminesWeights(t *testing.T) {
	a, err := xorBuilder().Build()
	require.NoError(t, err)
	b, err := xorBuilder().Build()
	require.NoError(t, err)
	c, err := xorBuilder().RandomSeed(8).Build()
	require.NoError(t, err)

	assert.Equal(t, a.Weights(), b.Weights())
	assert.NotEqual(t, a.Weights(), c.Weights())
}

func TestOutputsAreCopies(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)

	out, err := n.Predict([]float64{1, 0})
	require.NoError(t, err)
	out[0] = 99
	assert.NotEqual(t, 99.0, n.Outputs()[0])
}

func TestTrainingStepReducesLoss(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)
	n.Configure(layer.TrainingConfig{Optimizer: opt.SGD{Rate: 0.5}})

	input, target := []float64{1, 0}, []float64{1}
	lf := n.NewLossFunction()
	before, err := n.Predict(input)
	require.NoError(t, err)
	initial := lf.ValueFor(before, target)

	for i := 0; i < 20; i++ {
		require.NoError(t, n.SetInput(input))
		e := n.LossFunction().AddPatternError(n.Outputs(), target)
		require.NoError(t, n.SetOutputError(e))
		n.Backward()
		n.ApplyWeightChanges()
	}
	after, err := n.Predict(input)
	require.NoError(t, err)
	assert.Less(t, lf.ValueFor(after, target), initial)
	assert.Equal(t, 20, n.LossFunction().PatternCount())
}

func TestNewLossFunctionIsFresh(t *testing.T) {
	n, err := cnnBuilder().Build()
	require.NoError(t, err)

	lf := n.NewLossFunction()
	assert.Equal(t, loss.KindCrossEntropy, lf.Kind())
	assert.NotSame(t, n.LossFunction(), lf)
}

func TestConvolutionalNetwork(t *testing.T) {
	n, err := cnnBuilder().Build()
	require.NoError(t, err)
	n.Configure(layer.TrainingConfig{Optimizer: opt.Momentum{Rate: 0.05, Momentum: 0.5}})

	layers := n.Layers()
	require.Len(t, layers, 5)
	assert.Equal(t, []int{4, 4, 2}, []int{layers[1].Width(), layers[1].Height(), layers[1].Depth()})
	assert.Equal(t, []int{2, 2, 2}, []int{layers[2].Width(), layers[2].Height(), layers[2].Depth()})
	assert.Equal(t, []string{"a", "b", "c"}, n.OutputLabels())

	input := make([]float64, 36)
	for i := range input {
		input[i] = float64(i%5) / 5
	}
	target := []float64{0, 1, 0}

	lf := n.NewLossFunction()
	out, err := n.Predict(input)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-12)
	initial := lf.ValueFor(out, target)

	for i := 0; i < 10; i++ {
		require.NoError(t, n.SetInput(input))
		require.NoError(t, n.SetOutputError(n.LossFunction().AddPatternError(n.Outputs(), target)))
		n.Backward()
		n.ApplyWeightChanges()
	}
	out, err = n.Predict(input)
	require.NoError(t, err)
	assert.Less(t, lf.ValueFor(out, target), initial)
}

func TestParallelApplyMatchesSequential(t *testing.T) {
	run := func(p parallel.Config) [][]float64 {
		n, err := cnnBuilder().Build()
		require.NoError(t, err)
		n.Configure(layer.TrainingConfig{Optimizer: opt.SGD{Rate: 0.1}, BatchMode: true, Parallel: p})
		for i := 0; i < 3; i++ {
			input := make([]float64, 36)
			input[i*7] = 1
			require.NoError(t, n.SetInput(input))
			require.NoError(t, n.SetOutputError(n.LossFunction().AddPatternError(n.Outputs(), []float64{1, 0, 0})))
			n.Backward()
		}
		n.ApplyWeightChanges()
		return n.Weights()
	}
	assert.Equal(t, run(parallel.Sequential()), run(parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}))
}

func TestRegularizationSums(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)

	var l1, l2 float64
	for _, l := range n.Layers() {
		l1 += l.L1Reg()
		l2 += l.L2Reg()
	}
	assert.InDelta(t, l1, n.L1Reg(), 1e-12)
	assert.InDelta(t, l2, n.L2Reg(), 1e-12)
	assert.Greater(t, n.L2Reg(), 0.0)
}

func TestSetWeightsLayerCount(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)
	assert.ErrorIs(t, n.SetWeights(n.Weights()[:2]), layer.ErrShapeMismatch)

	w := n.Weights()
	w[1] = w[1][:3]
	assert.ErrorIs(t, n.SetWeights(w), layer.ErrShapeMismatch)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	n, err := cnnBuilder().RandomSeed(3).Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, n.Encode(&buf))
	m, err := Decode(&buf)
	require.NoError(t, err)

	assert.Equal(t, n.Weights(), m.Weights())
	assert.Equal(t, n.OutputLabels(), m.OutputLabels())
	assert.Equal(t, n.Seed(), m.Seed())
	assert.Equal(t, loss.KindCrossEntropy, m.LossFunction().Kind())
	for i, l := range n.Layers() {
		assert.Equal(t, l.Spec(), m.Layers()[i].Spec())
	}

	input := make([]float64, 36)
	input[10] = 1
	want, err := n.Predict(input)
	require.NoError(t, err)
	got, err := m.Predict(input)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveLoad(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "xor.gob")
	require.NoError(t, n.Save(path))
	m, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, n.Weights(), m.Weights())

	_, err = Load(filepath.Join(t.TempDir(), "missing.gob"))
	assert.Error(t, err)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode(strings.NewReader("not a network"))
	assert.Error(t, err)
}

func TestSummary(t *testing.T) {
	n, err := xorBuilder().Build()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, n.Summary(&buf))
	s := buf.String()
	assert.Contains(t, s, "fully_connected_1")
	assert.Contains(t, s, "output_2")
	assert.Contains(t, s, "Total params: 17")
}

func TestOutputSpecWithSoftmax(t *testing.T) {
	n, err := NewBuilder().
		InputLayer(2, 1, 1).
		Layer(layer.Spec{Kind: layer.KindOutput, Width: 3, Activation: activations.KindSoftmax}).
		LossFunction(loss.KindCrossEntropy).
		Build()
	require.NoError(t, err)

	layers := n.Layers()
	assert.Equal(t, layer.KindSoftmaxOutput, layers[len(layers)-1].Spec().Kind)
	out, err := n.Predict([]float64{1, 2})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, out[0]+out[1]+out[2], 1e-9)
}

func TestDecodeRejectsSoftmaxHiddenLayer(t *testing.T) {
	m := model{
		Version: formatVersion,
		Layers: []layer.Spec{
			{Kind: layer.KindInput, Width: 2, Height: 1, Depth: 1},
			{Kind: layer.KindFullyConnected, Width: 3, Activation: activations.KindSoftmax},
			{Kind: layer.KindOutput, Width: 1, Activation: activations.KindLinear},
		},
		Loss: loss.KindMeanSquaredError,
	}
	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(m))

	_, err := Decode(&buf)
	assert.ErrorIs(t, err, ErrInvalidPairing)
}
