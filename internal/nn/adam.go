package nn

import (
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"
)

const (
	DefaultBeta1   = 0.9
	DefaultBeta2   = 0.999
	DefaultEpsilon = 1e-8
)

// NewAdam returns the bias-corrected Adam optimizer. Its moment estimates
// and step counter are variables it creates in the context of the first
// graph it updates; see [OptimizerState].
func NewAdam(lr float64) optimizers.Interface {
	return optimizers.Adam().
		LearningRate(lr).
		Betas(DefaultBeta1, DefaultBeta2).
		Epsilon(DefaultEpsilon).
		Done()
}
