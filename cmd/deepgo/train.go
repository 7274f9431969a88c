package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/FlavioCFOliveira/deepgo/internal/config"
	"github.com/FlavioCFOliveira/deepgo/internal/data"
	"github.com/FlavioCFOliveira/deepgo/internal/eval"
	"github.com/FlavioCFOliveira/deepgo/internal/loss"
	"github.com/FlavioCFOliveira/deepgo/internal/net"
	"github.com/FlavioCFOliveira/deepgo/internal/train"
)

// scalerFile is where the scaler fitted during training is stored.
func scalerFile(model string) string { return model + ".scaler.yaml" }

func trainCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "YAML run file")
	level := fs.String("level", "", "log level, overrides the run file")
	epochs := fs.Int("epochs", 0, "max epochs, overrides the run file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *configPath == "" {
		fs.Usage()
		return errors.New("train: -config is required")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *level != "" {
		cfg.Log.Level = *level
	}
	if *epochs > 0 {
		cfg.Training.MaxEpochs = *epochs
	}
	lvl, err := cfg.LogLevel()
	if err != nil {
		return err
	}
	logger := newLogger(stderr, lvl)

	ds, err := cfg.LoadData()
	if err != nil {
		return err
	}
	logger.Info("data loaded", "train", ds.Train.Len(), "test", lenOf(ds.Test), "inputs", ds.Train.InputSize())

	n, err := cfg.BuildNetwork()
	if err != nil {
		return err
	}
	tr, err := train.New(n, cfg.TrainConfig())
	if err != nil {
		return err
	}
	tr.AddListener(train.NewLogListener(logger, cfg.Log.Interval))

	if cfg.Output.Metrics != "" {
		f, err := os.Create(cfg.Output.Metrics)
		if err != nil {
			return fmt.Errorf("failed to create metrics file: %w", err)
		}
		defer f.Close()
		csvLog := train.NewCSVLogger(f)
		tr.AddListener(csvLog)
		defer func() {
			if err := csvLog.Err(); err != nil {
				logger.Error("metrics not written", "err", err)
			}
		}()
	}
	if cfg.Output.Checkpoint != "" {
		tr.AddListener(train.NewCheckpoint(n, cfg.Output.Checkpoint, logger))
	}
	schedule, err := cfg.LearningRateSchedule()
	if err != nil {
		return err
	}
	if schedule != nil {
		sl := train.NewScheduleListener(tr, schedule)
		tr.AddListener(sl)
		defer func() {
			if err := sl.Err(); err != nil {
				logger.Warn("learning rate schedule stalled", "err", err)
			}
		}()
	}

	res, err := tr.Train(ctx, ds.Train, ds.Test)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	if cfg.Output.Model != "" {
		if err := n.Save(cfg.Output.Model); err != nil {
			return err
		}
		if ds.Scaler != nil {
			if err := saveScaler(scalerFile(cfg.Output.Model), ds.Scaler); err != nil {
				return err
			}
		}
		logger.Info("model saved", "file", cfg.Output.Model)
	}

	fmt.Fprintf(stdout, "run %s: %s after %d epochs, loss %.6f\n", res.RunID, res.Reason, res.Epochs, res.Loss)
	evalSet := ds.Test
	if evalSet == nil {
		evalSet = ds.Train
	}
	return report(stdout, n, evalSet)
}

func lenOf(d *data.DataSet) int {
	if d == nil {
		return 0
	}
	return d.Len()
}

func saveScaler(filename string, s *data.Scaler) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create scaler file: %w", err)
	}
	if err := data.WriteScaler(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// report prints classification metrics for classifiers and error measures
// for everything else.
func report(w io.Writer, n *net.Network, d *data.DataSet) error {
	if n.LossFunction().Kind() != loss.KindMeanSquaredError {
		r, err := eval.Classification(n, d)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "accuracy %.4f, macro F1 %.4f\n", r.Accuracy, r.MacroF1())
		labels := n.OutputLabels()
		for c := range r.F1 {
			name := fmt.Sprint(c)
			if c < len(labels) {
				name = labels[c]
			}
			fmt.Fprintf(w, "  %-12s precision %.4f recall %.4f f1 %.4f\n", name, r.Precision[c], r.Recall[c], r.F1[c])
		}
		return nil
	}
	r, err := eval.Regression(n, d)
	if r == nil {
		return err
	}
	fmt.Fprintf(w, "mse %.6f, rmse %.6f, mae %.6f", r.MSE, r.RMSE, r.MAE)
	// r2 is undefined for constant targets
	if err == nil {
		fmt.Fprintf(w, ", r2 %.4f", r.R2)
	}
	fmt.Fprintln(w)
	return nil
}
