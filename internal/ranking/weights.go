package ranking

import (
	"fmt"
	"math"
)

// WeightSet defines the composite-score blend between completion rate and
// schedule-timeline performance. Weights must sum to 1.0 (±0.001 tolerance).
type WeightSet struct {
	Completion float64
	Timeline   float64
}

// DefaultWeights returns the 60/40 completion/timeline blend.
func DefaultWeights() WeightSet {
	return WeightSet{
		Completion: 0.60,
		Timeline:   0.40,
	}
}

// Sum returns the total of all weights.
func (w WeightSet) Sum() float64 {
	return w.Completion + w.Timeline
}

// Validate checks that weights sum to 1.0 and none are negative.
func (w WeightSet) Validate() error {
	if math.Abs(w.Sum()-1.0) > 0.001 {
		return fmt.Errorf("weights sum to %.4f, must sum to 1.0", w.Sum())
	}
	for _, v := range []float64{w.Completion, w.Timeline} {
		if v < 0 {
			return fmt.Errorf("negative weight: %f", v)
		}
	}
	return nil
}
