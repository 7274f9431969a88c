package opt

import (
	"math/rand/v2"
	"testing"
)

// fillRandom fills a slice with random values.
func fillRandom(slice []float64) {
	rng := rand.New(rand.NewPCG(3, 4))
	for i := range slice {
		slice[i] = rng.Float64()
	}
}

func BenchmarkAccumulate(b *testing.B) {
	grads := make([]float64, 10000)
	prev := make([]float64, 10000)
	dst := make([]float64, 10000)
	fillRandom(grads)
	fillRandom(prev)

	for _, o := range []Optimizer{SGD{Rate: 0.01}, Momentum{Rate: 0.01, Momentum: 0.9}} {
		b.Run(o.Kind().String(), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				Accumulate(o, dst, grads, prev, true)
			}
		})
	}
}
