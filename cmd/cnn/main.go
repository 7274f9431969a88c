package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/FlavioCFOliveira/deepgo/deepgo"
	"github.com/FlavioCFOliveira/deepgo/internal/train"
)

const size = 8

// Classifies 8x8 images by the quadrant holding a bright patch.
func main() {
	epochs := flag.Int("epochs", 60, "max epochs")
	samples := flag.Int("samples", 200, "number of generated images")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	rng := rand.New(rand.NewPCG(42, 42))

	network, err := deepgo.NewBuilder().
		InputLayer(size, size, 1).
		ConvolutionalLayer(3, 3, 4, 1, 1, deepgo.ReLU).
		MaxPoolingLayer(2, 2, 2).
		FullyConnectedLayer(16, deepgo.Tanh).
		OutputLayer(4, deepgo.Softmax).
		LossFunction(deepgo.CrossEntropy).
		OutputLabels("top-left", "top-right", "bottom-left", "bottom-right").
		Build()
	if err != nil {
		logger.Error("build failed", "err", err)
		os.Exit(1)
	}
	if err := network.Summary(os.Stdout); err != nil {
		logger.Error("summary failed", "err", err)
	}

	all := quadrantImages(rng, *samples)
	parts, err := all.Split(0.8, 0.2)
	if err != nil {
		logger.Error("split failed", "err", err)
		os.Exit(1)
	}
	trainSet, testSet := parts[0], parts[1]

	cfg := deepgo.DefaultConfig()
	cfg.LearningRate = 0.05
	cfg.Optimizer = deepgo.Momentum
	cfg.Momentum = 0.9
	cfg.BatchMode = true
	cfg.BatchSize = 8
	cfg.MaxEpochs = *epochs
	cfg.MaxError = 0.05
	trainer, err := deepgo.NewTrainer(network, cfg)
	if err != nil {
		logger.Error("bad configuration", "err", err)
		os.Exit(1)
	}
	trainer.AddListener(train.NewLogListener(logger, 10))

	res, err := trainer.Train(context.Background(), trainSet, testSet)
	if err != nil {
		logger.Error("training failed", "err", err)
		os.Exit(1)
	}
	fmt.Printf("Stopped by %s after %d epochs, test accuracy %.1f%%\n", res.Reason, res.Epochs, 100*res.TestAccuracy)

	report, err := deepgo.Classification(network, testSet)
	if err != nil {
		logger.Error("evaluation failed", "err", err)
		os.Exit(1)
	}
	fmt.Println("Confusion matrix (rows: actual, columns: predicted):")
	for i, row := range report.Confusion {
		fmt.Printf("  %-12s %v\n", network.OutputLabels()[i], row)
	}
}

// quadrantImages generates n noisy images, each with a bright 3x3 patch in
// one quadrant; the quadrant is the class.
func quadrantImages(rng *rand.Rand, n int) *deepgo.DataSet {
	d := deepgo.NewDataSet(size*size, 4)
	half := size / 2
	for i := 0; i < n; i++ {
		class := i % 4
		img := make([]float64, size*size)
		for j := range img {
			img[j] = rng.Float64() * 0.2
		}
		top := (class / 2) * half
		left := (class % 2) * half
		r0 := top + rng.IntN(half-2)
		c0 := left + rng.IntN(half-2)
		for r := r0; r < r0+3; r++ {
			for c := c0; c < c0+3; c++ {
				img[r*size+c] = 0.8 + rng.Float64()*0.2
			}
		}
		target := make([]float64, 4)
		target[class] = 1
		if err := d.Add(img, target); err != nil {
			panic(err)
		}
	}
	return d
}
