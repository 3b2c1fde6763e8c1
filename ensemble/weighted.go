package ensemble

import (
	"math"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// DefaultSelectionRounds is the number of greedy selection steps.
const DefaultSelectionRounds = 25

// WeightedEnsemble blends member predictions with non-negative weights that
// sum to one.
type WeightedEnsemble struct {
	Weights []float64
}

// SelectWeights runs greedy forward selection with replacement: each round
// adds the member that most lowers the MSE of the running average against y.
// preds[m][i] is member m's prediction for sample i. Members never picked get
// weight zero.
func SelectWeights(preds [][]float64, y []float64, rounds int) (*WeightedEnsemble, error) {
	if len(preds) == 0 {
		return nil, scigoErrors.NewModelError("SelectWeights", "no members", scigoErrors.ErrEmptyData)
	}
	n := len(y)
	if n == 0 {
		return nil, scigoErrors.NewModelError("SelectWeights", "empty target", scigoErrors.ErrEmptyData)
	}
	for _, p := range preds {
		if len(p) != n {
			return nil, scigoErrors.NewDimensionError("SelectWeights", n, len(p), 0)
		}
	}
	if rounds <= 0 {
		rounds = DefaultSelectionRounds
	}

	counts := make([]int, len(preds))
	sum := make([]float64, n)
	for r := 1; r <= rounds; r++ {
		best, bestLoss := -1, math.Inf(1)
		for m, p := range preds {
			var loss float64
			for i := 0; i < n; i++ {
				d := (sum[i]+p[i])/float64(r) - y[i]
				loss += d * d
			}
			if loss < bestLoss {
				best, bestLoss = m, loss
			}
		}
		counts[best]++
		for i, v := range preds[best] {
			sum[i] += v
		}
	}

	w := &WeightedEnsemble{Weights: make([]float64, len(preds))}
	for m, c := range counts {
		w.Weights[m] = float64(c) / float64(rounds)
	}
	return w, nil
}

// Blend combines one prediction per member into the ensemble prediction.
func (w *WeightedEnsemble) Blend(memberPreds []float64) float64 {
	var v float64
	for m, p := range memberPreds {
		v += w.Weights[m] * p
	}
	return v
}

// Members returns the indices of members with non-zero weight.
func (w *WeightedEnsemble) Members() []int {
	var out []int
	for m, weight := range w.Weights {
		if weight > 0 {
			out = append(out, m)
		}
	}
	return out
}
