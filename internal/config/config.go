// Package config loads the YAML description of a training run: the network
// architecture, the trainer hyperparameters, where the data comes from and
// where the model goes.
//
// A minimal file:
//
//	model:
//	  loss: mse
//	  layers:
//	    - {type: input, width: 2}
//	    - {type: fully_connected, width: 4, activation: tanh}
//	    - {type: output, width: 1, activation: sigmoid}
//	training:
//	  learning_rate: 0.5
//	  max_epochs: 5000
//	data:
//	  train: xor.csv
//	  target_columns: [2]
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"unicode/utf8"

	"gopkg.in/yaml.v3"

	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/net"
	"github.com/FlavioCFOliveira/deepgo/internal/opt"
	"github.com/FlavioCFOliveira/deepgo/internal/parallel"
	"github.com/FlavioCFOliveira/deepgo/internal/train"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("config: invalid")

// Config is a complete run description.
type Config struct {
	Model    Model        `yaml:"model"`
	Training train.Config `yaml:"training"`
	Schedule Schedule     `yaml:"schedule,omitempty"`
	// Workers bounds the goroutines used for weight updates. Zero picks
	// the logical core count, one disables parallelism.
	Workers int    `yaml:"workers"`
	Data    Data   `yaml:"data"`
	Output  Output `yaml:"output"`
	Log     Log    `yaml:"log"`
}

// Model describes the network architecture.
type Model struct {
	Layers []layer.Spec `yaml:"layers"`
	Loss   loss.Kind    `yaml:"loss"`
	Seed   uint64       `yaml:"seed"`
	Labels []string     `yaml:"labels,omitempty"`
}

// Schedule selects a learning-rate schedule applied at the end of every
// epoch. An empty Type keeps the learning rate fixed.
//
//	schedule: {type: step, step_size: 100, gamma: 0.5}
//	schedule: {type: exponential, gamma: 0.99}
//	schedule: {type: plateau, gamma: 0.5, patience: 10, min_learning_rate: 0.0001}
type Schedule struct {
	Type string `yaml:"type"`
	// Gamma is the multiplier applied on every reduction.
	Gamma    float64 `yaml:"gamma,omitempty"`
	StepSize int     `yaml:"step_size,omitempty"`
	// Patience, Threshold, MinLearningRate and Cooldown configure plateau.
	Patience        int     `yaml:"patience,omitempty"`
	Threshold       float64 `yaml:"threshold,omitempty"`
	MinLearningRate float64 `yaml:"min_learning_rate,omitempty"`
	Cooldown        int     `yaml:"cooldown,omitempty"`
}

// Data describes the CSV sources of the training and test sets.
type Data struct {
	Train         string          `yaml:"train"`
	Test          string          `yaml:"test,omitempty"`
	HasHeader     bool            `yaml:"has_header"`
	Delimiter     string          `yaml:"delimiter,omitempty"`
	TargetColumns []int           `yaml:"target_columns"`
	Classes       int             `yaml:"classes,omitempty"`
	Scaler        data.ScalerKind `yaml:"scaler,omitempty"`
	// Split carves the training file into a training and a test part when
	// no test file is given, e.g. [0.8, 0.2].
	Split []float64 `yaml:"split,omitempty"`
	// ShuffleBeforeSplit shuffles with the training seed before splitting.
	ShuffleBeforeSplit bool `yaml:"shuffle_before_split"`
}

// Output names the files a run writes.
type Output struct {
	Model      string `yaml:"model"`
	Checkpoint string `yaml:"checkpoint,omitempty"`
	Metrics    string `yaml:"metrics,omitempty"`
}

// Log controls progress logging.
type Log struct {
	Level    string `yaml:"level"`
	Interval int    `yaml:"interval"`
}

// Default returns the configuration every file is decoded on top of.
func Default() Config {
	return Config{
		Model:    Model{Loss: loss.KindMeanSquaredError, Seed: net.DefaultSeed},
		Training: train.DefaultConfig(),
		Log:      Log{Level: "info", Interval: 100},
	}
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(bytes.NewReader(b))
}

// Parse decodes a YAML document on top of Default and validates it. Unknown
// keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Write encodes cfg as YAML.
func Write(w io.Writer, cfg *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}

// Validate checks the fields that can be checked without touching the data
// files. Architecture errors are left to BuildNetwork.
func (c *Config) Validate() error {
	if len(c.Model.Layers) == 0 {
		return fmt.Errorf("%w: model has no layers", ErrInvalid)
	}
	if err := c.TrainConfig().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers must not be negative, got %d", ErrInvalid, c.Workers)
	}
	if c.Data.Train == "" {
		return fmt.Errorf("%w: data.train is required", ErrInvalid)
	}
	if c.Data.Test != "" && len(c.Data.Split) > 0 {
		return fmt.Errorf("%w: data.test and data.split are exclusive", ErrInvalid)
	}
	if n := utf8.RuneCountInString(c.Data.Delimiter); n > 1 {
		return fmt.Errorf("%w: delimiter must be a single character, got %q", ErrInvalid, c.Data.Delimiter)
	}
	if _, err := data.ParseScalerKind(string(c.Data.Scaler)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if len(c.Data.Split) > 0 && len(c.Data.Split) != 2 {
		return fmt.Errorf("%w: split needs a training and a test proportion, got %v", ErrInvalid, c.Data.Split)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, err := c.LearningRateSchedule(); err != nil {
		return err
	}
	return nil
}

// LearningRateSchedule returns the configured schedule, nil when none is.
// Plateau schedules are stateful, so every call returns a fresh one.
func (c *Config) LearningRateSchedule() (opt.Schedule, error) {
	s := c.Schedule
	if s.Type != "" && (s.Gamma <= 0 || s.Gamma > 1) {
		return nil, fmt.Errorf("%w: schedule gamma must be in (0,1], got %v", ErrInvalid, s.Gamma)
	}
	switch s.Type {
	case "":
		return nil, nil
	case "step":
		if s.StepSize <= 0 {
			return nil, fmt.Errorf("%w: step schedule needs a positive step_size, got %d", ErrInvalid, s.StepSize)
		}
		return opt.StepDecay{StepSize: s.StepSize, Gamma: s.Gamma}, nil
	case "exponential":
		return opt.ExponentialDecay{Gamma: s.Gamma}, nil
	case "plateau":
		if s.Patience <= 0 {
			return nil, fmt.Errorf("%w: plateau schedule needs a positive patience, got %d", ErrInvalid, s.Patience)
		}
		if s.Threshold < 0 || s.MinLearningRate < 0 || s.Cooldown < 0 {
			return nil, fmt.Errorf("%w: plateau threshold, min_learning_rate and cooldown must not be negative", ErrInvalid)
		}
		return opt.NewPlateauDecay(s.Gamma, s.Patience, s.Threshold, s.MinLearningRate).WithCooldown(s.Cooldown), nil
	}
	return nil, fmt.Errorf("%w: unknown schedule type %q", ErrInvalid, s.Type)
}

// BuildNetwork builds the described network.
func (c *Config) BuildNetwork() (*net.Network, error) {
	b := net.NewBuilder().
		LossFunction(c.Model.Loss).
		RandomSeed(c.Model.Seed)
	for _, spec := range c.Model.Layers {
		b.Layer(spec)
	}
	if len(c.Model.Labels) > 0 {
		b.OutputLabels(c.Model.Labels...)
	}
	return b.Build()
}

// TrainConfig returns the trainer hyperparameters with the worker setting
// applied.
func (c *Config) TrainConfig() train.Config {
	tc := c.Training
	switch c.Workers {
	case 0:
		tc.Parallel = parallel.DefaultConfig()
	case 1:
		tc.Parallel = parallel.Sequential()
	default:
		tc.Parallel = parallel.DefaultConfig()
		tc.Parallel.Enabled = true
		tc.Parallel.NumWorkers = c.Workers
	}
	return tc
}

// CSVOptions returns the options used for both data files.
func (c *Config) CSVOptions() data.CSVOptions {
	opts := data.CSVOptions{
		TargetColumns: c.Data.TargetColumns,
		HasHeader:     c.Data.HasHeader,
		Classes:       c.Data.Classes,
	}
	if c.Data.Delimiter != "" {
		opts.Comma, _ = utf8.DecodeRuneInString(c.Data.Delimiter)
	}
	return opts
}

// LogLevel parses Log.Level; the empty string is info.
func (c *Config) LogLevel() (slog.Level, error) {
	var lvl slog.Level
	if c.Log.Level == "" {
		return slog.LevelInfo, nil
	}
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return lvl, nil
}

// DataSets holds the prepared data of a run.
type DataSets struct {
	Train *data.DataSet
	// Test is nil when neither a test file nor a split is configured.
	Test   *data.DataSet
	Scaler *data.Scaler
}

// LoadData reads the data files, splits the training file when asked to and
// scales both sets with a scaler fitted on the training part only.
func (c *Config) LoadData() (*DataSets, error) {
	opts := c.CSVOptions()
	trainSet, err := data.LoadCSV(c.Data.Train, opts)
	if err != nil {
		return nil, fmt.Errorf("training data %s: %w", c.Data.Train, err)
	}

	var testSet *data.DataSet
	switch {
	case c.Data.Test != "":
		testSet, err = data.LoadCSV(c.Data.Test, opts)
		if err != nil {
			return nil, fmt.Errorf("test data %s: %w", c.Data.Test, err)
		}
	case len(c.Data.Split) > 0:
		if c.Data.ShuffleBeforeSplit {
			seed := c.Training.Seed
			trainSet.Shuffle(rand.New(rand.NewPCG(seed, ^seed)))
		}
		rows := trainSet.Len()
		parts, err := trainSet.Split(c.Data.Split...)
		if err != nil {
			return nil, err
		}
		trainSet, testSet = parts[0], parts[1]
		if trainSet.Len() == 0 || testSet.Len() == 0 {
			return nil, fmt.Errorf("%w: split %v of %d rows leaves an empty part", ErrInvalid, c.Data.Split, rows)
		}
	}

	kind, _ := data.ParseScalerKind(string(c.Data.Scaler))
	if kind == data.ScalerNone {
		return &DataSets{Train: trainSet, Test: testSet}, nil
	}
	scaler, err := data.FitScaler(kind, trainSet)
	if err != nil {
		return nil, err
	}
	ds := &DataSets{Scaler: scaler}
	if ds.Train, err = scaler.Apply(trainSet); err != nil {
		return nil, err
	}
	if testSet != nil {
		if ds.Test, err = scaler.Apply(testSet); err != nil {
			return nil, err
		}
	}
	return ds, nil
}
