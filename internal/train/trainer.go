package train

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/eval"
	"github.com/FlavioCFOliveira/deepgo/internal/layer"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/tensor"
)

// Model is the part of a network the trainer drives.
type Model interface {
	SetInput(values []float64) error
	Outputs() []float64
	SetOutputError(e []float64) error
	Backward()
	ApplyWeightChanges()
	Configure(cfg layer.TrainingConfig)
	L1Reg() float64
	L2Reg() float64
	LossFunction() loss.Loss
	NewLossFunction() loss.Loss
	InputSize() int
	OutputSize() int
}

// State is the lifecycle position of a Trainer.
type State int32

const (
	Idle State = iota
	Running
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Result summarises a finished run.
type Result struct {
	RunID        uuid.UUID
	Epochs       int
	Iterations   int
	Loss         float64
	TestLoss     float64
	TestAccuracy float64
	Reason       StopReason
	Elapsed      time.Duration
}

// Trainer runs backpropagation over a model. A Trainer may run several times
// in sequence; hyperparameters can be changed between runs and, through
// SetLearningRate, from a listener during a run.
type Trainer struct {
	model Model
	cfg   Config

	listeners registry

	state   atomic.Int32
	stopReq atomic.Bool

	// published for other goroutines
	runID atomic.Pointer[uuid.UUID]
	epoch atomic.Int64

	// owned by the training goroutine
	iteration int
	start     time.Time
}

// New validates cfg and returns an idle trainer for model. The model is
// configured with cfg immediately.
func New(model Model, cfg Config) (*Trainer, error) {
	if model == nil {
		return nil, ErrNilNetwork
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &Trainer{model: model, cfg: cfg}
	if err := t.configure(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Trainer) configure() error {
	o, err := t.cfg.optimizer()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	t.model.Configure(layer.TrainingConfig{
		Optimizer: o,
		BatchMode: t.cfg.BatchMode,
		L1:        t.cfg.L1,
		L2:        t.cfg.L2,
		Parallel:  t.cfg.Parallel,
	})
	return nil
}

// Config returns a copy of the hyperparameters.
func (t *Trainer) Config() Config { return t.cfg }

// SetConfig replaces the hyperparameters. It fails while a run is in progress.
func (t *Trainer) SetConfig(cfg Config) error {
	if t.State() == Running {
		return ErrRunning
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	prev := t.cfg
	t.cfg = cfg
	if err := t.configure(); err != nil {
		t.cfg = prev
		return err
	}
	return nil
}

// LearningRate returns the current learning rate.
func (t *Trainer) LearningRate() float64 { return t.cfg.LearningRate }

// SetLearningRate changes the step size of the optimizer. It must be called
// from the training goroutine, typically from a listener, or between runs.
func (t *Trainer) SetLearningRate(lr float64) error {
	cfg := t.cfg
	cfg.LearningRate = lr
	if err := cfg.Validate(); err != nil {
		return err
	}
	t.cfg = cfg
	return t.configure()
}

// AddListener registers l and returns a function that unregisters it.
func (t *Trainer) AddListener(l Listener) (remove func()) {
	return t.listeners.add(l)
}

// State reports the lifecycle state. It is safe to call from any goroutine.
func (t *Trainer) State() State { return State(t.state.Load()) }

// Stop asks a running Train to return once the current pattern is done. It
// is safe to call from any goroutine and has no effect on an idle trainer.
func (t *Trainer) Stop() {
	if t.State() == Running {
		t.stopReq.Store(true)
	}
}

// Epoch returns the last epoch started by the current or last run. It is
// safe to call from any goroutine.
func (t *Trainer) Epoch() int { return int(t.epoch.Load()) }

// RunID returns the identifier of the current or last run, the zero UUID
// before the first run. It is safe to call from any goroutine.
func (t *Trainer) RunID() uuid.UUID {
	if id := t.runID.Load(); id != nil {
		return *id
	}
	return uuid.UUID{}
}

// Train runs epochs over trainSet until a stop condition is met. testSet may
// be nil; when given, it must not be empty and its loss and accuracy are
// measured after each epoch.
//
// All arguments are checked before the model is touched. A cancelled ctx ends
// the run like Stop does, but ctx.Err() is returned with the result.
func (t *Trainer) Train(ctx context.Context, trainSet, testSet *data.DataSet) (Result, error) {
	if err := t.check(trainSet, testSet); err != nil {
		return Result{}, err
	}
	if !t.state.CompareAndSwap(int32(Idle), int32(Running)) &&
		!t.state.CompareAndSwap(int32(Stopped), int32(Running)) {
		return Result{}, ErrRunning
	}
	t.stopReq.Store(false)
	id := uuid.New()
	t.runID.Store(&id)
	t.epoch.Store(0)
	t.iteration = 0
	t.start = time.Now()

	res, err := t.run(ctx, trainSet, testSet)
	res.RunID = id
	res.Epochs = t.Epoch()
	res.Iterations = t.iteration
	res.Elapsed = time.Since(t.start)

	t.state.Store(int32(Stopped))
	t.listeners.emit(Event{
		Kind:         TrainingStopped,
		RunID:        id,
		Epoch:        res.Epochs,
		Iteration:    t.iteration,
		Loss:         res.Loss,
		TestLoss:     res.TestLoss,
		TestAccuracy: res.TestAccuracy,
		LearningRate: t.cfg.LearningRate,
		Reason:       res.Reason,
		Elapsed:      res.Elapsed,
	})
	return res, err
}

func (t *Trainer) check(trainSet, testSet *data.DataSet) error {
	if err := t.cfg.Validate(); err != nil {
		return err
	}
	if trainSet == nil {
		return ErrNilDataSet
	}
	if trainSet.Len() == 0 {
		return ErrEmptyDataSet
	}
	sets := []*data.DataSet{trainSet}
	if testSet != nil {
		if testSet.Len() == 0 {
			return fmt.Errorf("%w: test set", ErrEmptyDataSet)
		}
		sets = append(sets, testSet)
	} else if t.cfg.EarlyStopping {
		return fmt.Errorf("%w: early stopping needs a test set", ErrInvalidConfig)
	}
	for _, d := range sets {
		if d.InputSize() != t.model.InputSize() || d.TargetSize() != t.model.OutputSize() {
			return fmt.Errorf("%w: network is %d->%d, data set is %d->%d", data.ErrDimensionMismatch,
				t.model.InputSize(), t.model.OutputSize(), d.InputSize(), d.TargetSize())
		}
	}
	return nil
}

func (t *Trainer) run(ctx context.Context, trainSet, testSet *data.DataSet) (Result, error) {
	res := Result{TestLoss: math.NaN(), TestAccuracy: math.NaN()}
	lf := t.model.LossFunction()
	var testLF loss.Loss
	if testSet != nil {
		testLF = t.model.NewLossFunction()
	}
	rng := rand.New(rand.NewPCG(t.cfg.Seed, t.cfg.Seed^0x9e3779b97f4a7c15))
	order := make([]int, trainSet.Len())
	for i := range order {
		order[i] = i
	}

	t.emit(TrainingStarted, math.NaN(), res)

	prevTestLoss := math.Inf(1)
	var ctxErr error
	for {
		t.epoch.Add(1)
		lf.Reset()
		if t.cfg.Shuffle {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		pending := 0
		for _, idx := range order {
			if err := ctx.Err(); err != nil {
				ctxErr = err
				break
			}
			if t.stopReq.Load() {
				break
			}
			if err := t.step(lf, trainSet.At(idx)); err != nil {
				if pending > 0 {
					// leave no half batch behind for the next run
					t.model.ApplyWeightChanges()
				}
				var nie *tensor.NumericInstabilityError
				if errors.As(err, &nie) {
					res.Reason = ReasonNumericInstability
				}
				return res, err
			}
			t.iteration++
			pending++
			if !t.cfg.BatchMode || pending == t.cfg.BatchSize {
				t.model.ApplyWeightChanges()
				pending = 0
			}
			t.emit(IterationFinished, lf.Total(), res)
		}
		if pending > 0 {
			t.model.ApplyWeightChanges()
		}
		if lf.PatternCount() == 0 {
			// stopped before the first pattern of this epoch
			t.epoch.Add(-1)
			res.Reason = ReasonExternal
			return res, ctxErr
		}

		if t.cfg.L1 > 0 || t.cfg.L2 > 0 {
			lf.AddRegularizationSum(t.cfg.L1*t.model.L1Reg() + 0.5*t.cfg.L2*t.model.L2Reg())
		}
		res.Loss = lf.Total()
		if err := tensor.CheckFinite("training loss", res.Loss); err != nil {
			res.Reason = ReasonNumericInstability
			return res, err
		}
		if testSet != nil {
			var err error
			res.TestLoss, res.TestAccuracy, err = t.test(testLF, testSet)
			if err != nil {
				res.Reason = ReasonNumericInstability
				return res, err
			}
		}
		t.emit(EpochFinished, res.Loss, res)

		switch {
		case ctxErr != nil || t.stopReq.Load():
			res.Reason = ReasonExternal
			return res, ctxErr
		case res.Loss <= t.cfg.MaxError:
			res.Reason = ReasonMaxError
			return res, nil
		case t.cfg.EarlyStopping && res.TestLoss > prevTestLoss:
			res.Reason = ReasonEarlyStopping
			return res, nil
		case t.Epoch() >= t.cfg.MaxEpochs:
			res.Reason = ReasonMaxEpochs
			return res, nil
		}
		prevTestLoss = res.TestLoss
	}
}

// step runs the forward and backward pass for one pattern.
func (t *Trainer) step(lf loss.Loss, it data.Item) error {
	if err := t.model.SetInput(it.Input); err != nil {
		return err
	}
	errVec := lf.AddPatternError(t.model.Outputs(), it.Target)
	for i, v := range errVec {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &tensor.NumericInstabilityError{Op: "output error", Index: i, Value: v}
		}
	}
	if err := t.model.SetOutputError(errVec); err != nil {
		return err
	}
	t.model.Backward()
	return nil
}

// test measures the loss and accuracy of the model on d without training.
func (t *Trainer) test(lf loss.Loss, d *data.DataSet) (float64, float64, error) {
	lf.Reset()
	correct := 0
	for _, it := range d.Items() {
		if err := t.model.SetInput(it.Input); err != nil {
			return 0, 0, err
		}
		out := t.model.Outputs()
		lf.AddPatternError(out, it.Target)
		if eval.Correct(out, it.Target) {
			correct++
		}
	}
	total := lf.Total()
	if err := tensor.CheckFinite("test loss", total); err != nil {
		return 0, 0, err
	}
	return total, float64(correct) / float64(d.Len()), nil
}

func (t *Trainer) emit(kind EventKind, lossValue float64, res Result) {
	t.listeners.emit(Event{
		Kind:         kind,
		RunID:        t.RunID(),
		Epoch:        t.Epoch(),
		Iteration:    t.iteration,
		Loss:         lossValue,
		TestLoss:     res.TestLoss,
		TestAccuracy: res.TestAccuracy,
		LearningRate: t.cfg.LearningRate,
		Elapsed:      time.Since(t.start),
	})
}
