// Package train runs the backpropagation training loop over a network.
package train

import (
	"errors"
	"fmt"
	"math"

	"github.com/FlavioCFOliveira/deepgo/internal/opt"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
)

var (
	// ErrNilNetwork is returned when no network is given.
	ErrNilNetwork = errors.New("train: nil network")
	// ErrNilDataSet is returned when no training set is given.
	ErrNilDataSet = errors.New("train: nil data set")
	// ErrEmptyDataSet is returned for a training set without patterns.
	ErrEmptyDataSet = errors.New("train: empty data set")
	// ErrInvalidConfig is returned for out of range hyperparameters.
	ErrInvalidConfig = errors.New("train: invalid configuration")
	// ErrRunning is returned when Train is called on a running trainer.
	ErrRunning = errors.New("train: trainer is already running")
)

// Config holds the training hyperparameters.
type Config struct {
	LearningRate float64  `yaml:"learning_rate"`
	Momentum     float64  `yaml:"momentum"`
	Optimizer    opt.Kind `yaml:"optimizer"`

	MaxEpochs int     `yaml:"max_epochs"`
	MaxError  float64 `yaml:"max_error"`

	// BatchMode applies weight changes every BatchSize patterns and at the
	// end of each epoch instead of after every pattern.
	BatchMode bool `yaml:"batch_mode"`
	BatchSize int  `yaml:"batch_size"`

	Shuffle bool `yaml:"shuffle"`
	// EarlyStopping stops when the test loss rises from one epoch to the
	// next. It needs a test set.
	EarlyStopping bool `yaml:"early_stopping"`

	L1 float64 `yaml:"l1"`
	L2 float64 `yaml:"l2"`

	// Seed drives the shuffle order.
	Seed uint64 `yaml:"seed"`

	Parallel parallel.Config `yaml:"-"`
}

// DefaultConfig returns online SGD with shuffling.
func DefaultConfig() Config {
	return Config{
		LearningRate: 0.01,
		Optimizer:    opt.KindSGD,
		MaxEpochs:    1000,
		MaxError:     0.01,
		BatchSize:    1,
		Shuffle:      true,
		Seed:         1,
		Parallel:     parallel.DefaultConfig(),
	}
}

// Validate reports the first hyperparameter out of range.
func (c Config) Validate() error {
	switch {
	case !(c.LearningRate > 0 && c.LearningRate <= 1):
		return fmt.Errorf("%w: learning rate must be in (0, 1], got %v", ErrInvalidConfig, c.LearningRate)
	case !(c.Momentum >= 0 && c.Momentum < 1):
		return fmt.Errorf("%w: momentum must be in [0, 1), got %v", ErrInvalidConfig, c.Momentum)
	case !c.Optimizer.Supported():
		return fmt.Errorf("%w: %w: %s", ErrInvalidConfig, opt.ErrUnsupportedOptimizer, c.Optimizer)
	case c.MaxEpochs <= 0:
		return fmt.Errorf("%w: max epochs must be positive, got %d", ErrInvalidConfig, c.MaxEpochs)
	case !(c.MaxError >= 0):
		return fmt.Errorf("%w: max error must not be negative, got %v", ErrInvalidConfig, c.MaxError)
	case c.BatchMode && c.BatchSize <= 0:
		return fmt.Errorf("%w: batch size must be positive, got %d", ErrInvalidConfig, c.BatchSize)
	case !(c.L1 >= 0) || math.IsInf(c.L1, 0):
		return fmt.Errorf("%w: l1 must be a non-negative number, got %v", ErrInvalidConfig, c.L1)
	case !(c.L2 >= 0) || math.IsInf(c.L2, 0):
		return fmt.Errorf("%w: l2 must be a non-negative number, got %v", ErrInvalidConfig, c.L2)
	}
	return nil
}

func (c Config) optimizer() (opt.Optimizer, error) {
	return opt.New(c.Optimizer, c.LearningRate, c.Momentum)
}
