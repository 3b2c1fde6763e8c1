package tabular

import (
	"encoding/json"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/metrics"
)

// LeaderboardRow summarizes one model. Scores are negated RMSE.
type LeaderboardRow struct {
	Model       string        `json:"model"`
	ScoreTest   float64       `json:"score_test"`
	ScoreVal    float64       `json:"score_val"`
	FitTime     time.Duration `json:"fit_time"`
	PredictTime time.Duration `json:"pred_time"`
	Failed      bool          `json:"failed,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Leaderboard ranks every model. When test is non-nil each model is scored on
// it and rows are sorted by test score, otherwise by validation score. Failed
// models are listed last with NaN scores.
func (p *Predictor) Leaderboard(test *Frame) ([]LeaderboardRow, error) {
	var X mat.Matrix
	var y *mat.VecDense
	if test != nil {
		var err error
		if X, y, err = p.design(test); err != nil {
			return nil, err
		}
	}

	rows := make([]LeaderboardRow, 0, len(p.Models))
	for _, tm := range p.Models {
		row := LeaderboardRow{
			Model:       tm.Name,
			ScoreTest:   math.NaN(),
			ScoreVal:    tm.ValScore,
			FitTime:     tm.FitTime,
			PredictTime: tm.PredictTime,
			Failed:      tm.Failed,
			Error:       tm.Error,
		}
		if tm.Failed {
			row.ScoreVal = math.NaN()
			rows = append(rows, row)
			continue
		}
		if X != nil {
			start := time.Now()
			pred, err := p.predictEncoded(tm.Name, X)
			if err != nil {
				return nil, err
			}
			row.PredictTime = time.Since(start)
			rmse, err := metrics.RMSE(y, mat.NewVecDense(len(pred), pred))
			if err != nil {
				return nil, err
			}
			row.ScoreTest = -rmse
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Failed != rows[j].Failed {
			return !rows[i].Failed
		}
		if test != nil {
			return rows[i].ScoreTest > rows[j].ScoreTest
		}
		return rows[i].ScoreVal > rows[j].ScoreVal
	})
	return rows, nil
}

// MarshalJSON writes NaN scores as null.
func (r LeaderboardRow) MarshalJSON() ([]byte, error) {
	type row LeaderboardRow
	return json.Marshal(struct {
		row
		ScoreTest *float64 `json:"score_test"`
		ScoreVal  *float64 `json:"score_val"`
	}{row(r), finite(r.ScoreTest), finite(r.ScoreVal)})
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
