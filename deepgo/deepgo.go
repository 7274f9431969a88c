// Package deepgo is the public entry point to the network engine. It
// re-exports the types needed to build, train, evaluate and persist a
// feed-forward or convolutional network.
package deepgo

import (
	"github.com/FlavioCFOliveira/deepgo/internal/activations"
	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/eval"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/net"
	"github.com/FlavioCFOliveira/deepgo/internal/opt"
	"github.com/FlavioCFOliveira/deepgo/internal/train"
)

// Re-export common types for easier access.
type (
	Network  = net.Network
	Builder  = net.Builder
	Trainer  = train.Trainer
	Config   = train.Config
	Result   = train.Result
	Event    = train.Event
	Listener = train.Listener

	ListenerFunc = train.ListenerFunc

	DataSet    = data.DataSet
	Item       = data.Item
	CSVOptions = data.CSVOptions
	Scaler     = data.Scaler

	ClassificationReport = eval.ClassificationReport
	RegressionReport     = eval.RegressionReport

	Activation = activations.Kind
	Loss       = loss.Kind
	Optimizer  = opt.Kind
)

// Activations
const (
	Linear    = activations.KindLinear
	Sigmoid   = activations.KindSigmoid
	Tanh      = activations.KindTanh
	ReLU      = activations.KindReLU
	LeakyReLU = activations.KindLeakyReLU
	Softmax   = activations.KindSoftmax
)

// Loss functions
const (
	MeanSquaredError   = loss.KindMeanSquaredError
	CrossEntropy       = loss.KindCrossEntropy
	BinaryCrossEntropy = loss.KindBinaryCrossEntropy
)

// Optimizers
const (
	SGD      = opt.KindSGD
	Momentum = opt.KindMomentum
)

// Trainer events
const (
	TrainingStarted   = train.TrainingStarted
	IterationFinished = train.IterationFinished
	EpochFinished     = train.EpochFinished
	TrainingStopped   = train.TrainingStopped
)

// NewBuilder starts a network description.
func NewBuilder() *Builder {
	return net.NewBuilder()
}

// Load reads a network written by Network.Save.
func Load(filename string) (*Network, error) {
	return net.Load(filename)
}

// DefaultConfig returns the default training hyperparameters.
func DefaultConfig() Config {
	return train.DefaultConfig()
}

// NewTrainer returns a trainer for n.
func NewTrainer(n *Network, cfg Config) (*Trainer, error) {
	return train.New(n, cfg)
}

// NewDataSet returns an empty data set.
func NewDataSet(inputSize, targetSize int) *DataSet {
	return data.New(inputSize, targetSize)
}

// LoadCSV loads a data set from a CSV file.
func LoadCSV(filename string, opts CSVOptions) (*DataSet, error) {
	return data.LoadCSV(filename, opts)
}

// Classification evaluates a classifier on d.
func Classification(n *Network, d *DataSet) (*ClassificationReport, error) {
	return eval.Classification(n, d)
}

// Regression evaluates a regressor on d.
func Regression(n *Network, d *DataSet) (*RegressionReport, error) {
	return eval.Regression(n, d)
}
