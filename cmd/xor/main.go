package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/FlavioCFOliveira/deepgo/deepgo"
	"github.com/FlavioCFOliveira/deepgo/internal/train"
)

func main() {
	out := flag.String("out", "xor_network.gob", "where to save the trained network")
	epochs := flag.Int("epochs", 5000, "max epochs")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// XOR cannot be solved by a single-layer perceptron but can be solved
	// with one hidden layer.
	network, err := deepgo.NewBuilder().
		InputLayer(2, 1, 1).
		FullyConnectedLayer(3, deepgo.Tanh).
		OutputLayer(1, deepgo.Sigmoid).
		LossFunction(deepgo.MeanSquaredError).
		RandomSeed(42).
		Build()
	if err != nil {
		logger.Error("build failed", "err", err)
		os.Exit(1)
	}
	if err := network.Summary(os.Stdout); err != nil {
		logger.Error("summary failed", "err", err)
	}

	xor := deepgo.NewDataSet(2, 1)
	for _, p := range [][3]float64{{0, 0, 0}, {0, 1, 1}, {1, 0, 1}, {1, 1, 0}} {
		if err := xor.Add([]float64{p[0], p[1]}, []float64{p[2]}); err != nil {
			logger.Error("bad pattern", "err", err)
			os.Exit(1)
		}
	}

	cfg := deepgo.DefaultConfig()
	cfg.LearningRate = 0.5
	cfg.Optimizer = deepgo.Momentum
	cfg.Momentum = 0.5
	cfg.MaxEpochs = *epochs
	cfg.MaxError = 0.001
	trainer, err := deepgo.NewTrainer(network, cfg)
	if err != nil {
		logger.Error("bad configuration", "err", err)
		os.Exit(1)
	}
	trainer.AddListener(train.NewLogListener(logger, 500))

	res, err := trainer.Train(context.Background(), xor, nil)
	if err != nil {
		logger.Error("training failed", "err", err)
		os.Exit(1)
	}

	fmt.Println("\nTesting trained network:")
	for _, it := range xor.Items() {
		pred, err := network.Predict(it.Input)
		if err != nil {
			logger.Error("predict failed", "err", err)
			os.Exit(1)
		}
		fmt.Printf("Input: %v, Predicted: %.4f, Target: %v\n", it.Input, pred[0], it.Target[0])
	}
	fmt.Printf("Stopped by %s after %d epochs\n", res.Reason, res.Epochs)

	if err := network.Save(*out); err != nil {
		logger.Error("save failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("Network saved to", *out)
}
