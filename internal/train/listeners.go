package train

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strconv"

	"github.com/google/uuid"

	"github.com/FlavioCFOliveira/deepgo/internal/opt"
)

// LogListener logs run boundaries and every Interval-th epoch.
type LogListener struct {
	Logger   *slog.Logger
	Interval int
}

// NewLogListener returns a listener logging every interval epochs to logger,
// or to slog.Default when logger is nil.
func NewLogListener(logger *slog.Logger, interval int) *LogListener {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogListener{Logger: logger, Interval: interval}
}

func (l *LogListener) HandleEvent(e Event) {
	switch e.Kind {
	case TrainingStarted:
		l.Logger.Info("training started", "run", e.RunID, "learning_rate", e.LearningRate)
	case EpochFinished:
		if l.Interval <= 0 || e.Epoch%l.Interval != 0 {
			return
		}
		attrs := []any{"epoch", e.Epoch, "loss", e.Loss}
		if !math.IsNaN(e.TestLoss) {
			attrs = append(attrs, "test_loss", e.TestLoss, "test_accuracy", e.TestAccuracy)
		}
		l.Logger.Info("epoch finished", attrs...)
	case TrainingStopped:
		l.Logger.Info("training stopped",
			"run", e.RunID,
			"reason", e.Reason.String(),
			"epochs", e.Epoch,
			"loss", e.Loss,
			"elapsed", e.Elapsed)
	}
}

// CSVLogger writes one row per epoch: epoch, loss, test loss, test accuracy,
// learning rate and elapsed seconds. The header is written when the run
// starts, unless SkipHeader is set.
type CSVLogger struct {
	SkipHeader bool

	w   *csv.Writer
	err error
}

// NewCSVLogger returns a logger writing to w.
func NewCSVLogger(w io.Writer) *CSVLogger {
	return &CSVLogger{w: csv.NewWriter(w)}
}

// Err returns the first write error.
func (c *CSVLogger) Err() error { return c.err }

func (c *CSVLogger) HandleEvent(e Event) {
	if c.err != nil {
		return
	}
	var record []string
	switch e.Kind {
	case TrainingStarted:
		if c.SkipHeader {
			return
		}
		record = []string{"epoch", "loss", "test_loss", "test_accuracy", "learning_rate", "time_seconds"}
	case EpochFinished:
		record = []string{
			strconv.Itoa(e.Epoch),
			strconv.FormatFloat(e.Loss, 'f', 6, 64),
			strconv.FormatFloat(e.TestLoss, 'f', 6, 64),
			strconv.FormatFloat(e.TestAccuracy, 'f', 4, 64),
			strconv.FormatFloat(e.LearningRate, 'g', -1, 64),
			strconv.FormatFloat(e.Elapsed.Seconds(), 'f', 2, 64),
		}
	default:
		return
	}
	if err := c.w.Write(record); err != nil {
		c.err = err
		return
	}
	c.w.Flush()
	c.err = c.w.Error()
}

// Saver persists a model.
type Saver interface {
	Save(filename string) error
}

// Checkpoint saves the model whenever an epoch ends with the lowest loss seen
// so far in the run. The test loss is monitored when it is available.
type Checkpoint struct {
	Filename string
	Logger   *slog.Logger

	model Saver
	run   uuid.UUID
	best  float64
	saves int
	err   error
}

// NewCheckpoint returns a checkpoint writing model to filename. logger may be
// nil.
func NewCheckpoint(model Saver, filename string, logger *slog.Logger) *Checkpoint {
	return &Checkpoint{Filename: filename, Logger: logger, model: model, best: math.Inf(1)}
}

// Best returns the loss of the last saved model.
func (c *Checkpoint) Best() float64 { return c.best }

// Saves returns how many times the model was written.
func (c *Checkpoint) Saves() int { return c.saves }

// Err returns the last save error.
func (c *Checkpoint) Err() error { return c.err }

func (c *Checkpoint) HandleEvent(e Event) {
	switch e.Kind {
	case TrainingStarted:
		c.run = e.RunID
		c.best = math.Inf(1)
	case EpochFinished:
		monitored := e.Loss
		if !math.IsNaN(e.TestLoss) {
			monitored = e.TestLoss
		}
		if !(monitored < c.best) {
			return
		}
		if err := c.model.Save(c.Filename); err != nil {
			c.err = fmt.Errorf("checkpoint %s: %w", c.Filename, err)
			if c.Logger != nil {
				c.Logger.Error("checkpoint failed", "run", c.run, "err", err)
			}
			return
		}
		c.best = monitored
		c.saves++
		if c.Logger != nil {
			c.Logger.Debug("checkpoint saved", "run", c.run, "epoch", e.Epoch, "loss", monitored, "file", c.Filename)
		}
	}
}

// ScheduleListener applies a learning-rate schedule at the end of every
// epoch.
type ScheduleListener struct {
	trainer  *Trainer
	schedule opt.Schedule
	err      error
}

// NewScheduleListener returns a listener driving t's learning rate with s.
// It still has to be registered with t.AddListener.
func NewScheduleListener(t *Trainer, s opt.Schedule) *ScheduleListener {
	return &ScheduleListener{trainer: t, schedule: s}
}

// Err returns the last rejected learning rate error.
func (s *ScheduleListener) Err() error { return s.err }

func (s *ScheduleListener) HandleEvent(e Event) {
	if e.Kind != EpochFinished {
		return
	}
	monitored := e.Loss
	if !math.IsNaN(e.TestLoss) {
		monitored = e.TestLoss
	}
	lr := s.schedule.Next(e.Epoch, monitored, s.trainer.LearningRate())
	if lr == s.trainer.LearningRate() {
		return
	}
	if err := s.trainer.SetLearningRate(lr); err != nil {
		s.err = err
	}
}
