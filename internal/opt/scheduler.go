package opt

import "math"

// Schedule adjusts the learning rate between epochs.
type Schedule interface {
	// Next returns the learning rate to use after the given epoch finished
	// with the given loss.
	Next(epoch int, loss, lr float64) float64
}

// StepDecay multiplies the learning rate by Gamma every StepSize epochs.
type StepDecay struct {
	StepSize int
	Gamma    float64
}

func (s StepDecay) Next(epoch int, _, lr float64) float64 {
	if s.StepSize > 0 && epoch > 0 && epoch%s.StepSize == 0 {
		return lr * s.Gamma
	}
	return lr
}

// ExponentialDecay multiplies the learning rate by Gamma every epoch.
type ExponentialDecay struct {
	Gamma float64
}

func (s ExponentialDecay) Next(_ int, _, lr float64) float64 {
	return lr * s.Gamma
}

// PlateauDecay reduces the learning rate when the loss has stopped improving.
type PlateauDecay struct {
	factor    float64
	patience  int
	threshold float64
	cooldown  int
	minLR     float64

	bestLoss        float64
	numBadEpochs    int
	cooldownCounter int
}

// NewPlateauDecay multiplies the learning rate by factor once the loss has
// failed to improve by more than threshold for patience epochs, never going
// below minLR.
func NewPlateauDecay(factor float64, patience int, threshold, minLR float64) *PlateauDecay {
	return &PlateauDecay{
		factor:    factor,
		patience:  patience,
		threshold: threshold,
		minLR:     minLR,
		bestLoss:  math.MaxFloat64,
	}
}

// WithCooldown sets the number of epochs to wait after a reduction.
func (s *PlateauDecay) WithCooldown(epochs int) *PlateauDecay {
	s.cooldown = epochs
	return s
}

func (s *PlateauDecay) Next(_ int, loss, lr float64) float64 {
	if s.cooldownCounter > 0 {
		s.cooldownCounter--
		return lr
	}

	if loss < s.bestLoss-s.threshold {
		s.bestLoss = loss
		s.numBadEpochs = 0
	} else {
		s.numBadEpochs++
	}

	if s.numBadEpochs < s.patience {
		return lr
	}
	s.numBadEpochs = 0
	s.cooldownCounter = s.cooldown
	return math.Max(lr*s.factor, s.minLR)
}
