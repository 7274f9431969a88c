package deepgo_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FlavioCFOliveira/deepgo/deepgo"
)

func TestBuildTrainSaveLoad(t *testing.T) {
	n, err := deepgo.NewBuilder().
		InputLayer(2, 1, 1).
		FullyConnectedLayer(3, deepgo.Tanh).
		OutputLayer(2, deepgo.Softmax).
		LossFunction(deepgo.CrossEntropy).
		OutputLabels("no", "yes").
		Build()
	require.NoError(t, err)

	d := deepgo.NewDataSet(2, 2)
	require.NoError(t, d.Add([]float64{0, 0}, []float64{1, 0}))
	require.NoError(t, d.Add([]float64{1, 1}, []float64{0, 1}))

	cfg := deepgo.DefaultConfig()
	cfg.LearningRate = 0.1
	cfg.Optimizer = deepgo.Momentum
	cfg.Momentum = 0.5
	cfg.MaxEpochs = 5
	tr, err := deepgo.NewTrainer(n, cfg)
	require.NoError(t, err)

	epochs := 0
	tr.AddListener(deepgo.ListenerFunc(func(e deepgo.Event) {
		if e.Kind == deepgo.EpochFinished {
			epochs++
		}
	}))
	res, err := tr.Train(context.Background(), d, nil)
	require.NoError(t, err)
	assert.Equal(t, res.Epochs, epochs)

	report, err := deepgo.Classification(n, d)
	require.NoError(t, err)
	assert.Len(t, report.Confusion, 2)

	filename := filepath.Join(t.TempDir(), "model.gob")
	require.NoError(t, n.Save(filename))
	loaded, err := deepgo.Load(filename)
	require.NoError(t, err)

	want, err := n.Predict([]float64{1, 0})
	require.NoError(t, err)
	got, err := loaded.Predict([]float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, []string{"no", "yes"}, loaded.OutputLabels())
}
