package activations

import (
	"math/rand/v2"
	"testing"
)

// fillRandom fills a slice with random values in [-1, 1).
func fillRandom(slice []float64) {
	rng := rand.New(rand.NewPCG(1, 2))
	for i := range slice {
		slice[i] = rng.Float64()*2 - 1
	}
}

func BenchmarkActivate(b *testing.B) {
	inputs := make([]float64, 1000)
	fillRandom(inputs)

	for _, act := range []Activation{Linear{}, Sigmoid{}, Tanh{}, ReLU{}, NewLeakyReLU(0.01)} {
		b.Run(act.Kind().String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				for _, x := range inputs {
					_ = act.Derivative(act.Activate(x))
				}
			}
		})
	}
}

func BenchmarkSoftmaxActivateVector(b *testing.B) {
	softmax := Softmax{}
	inputs := make([]float64, 100)
	dst := make([]float64, 100)
	fillRandom(inputs)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		softmax.ActivateVector(dst, inputs)
	}
}
