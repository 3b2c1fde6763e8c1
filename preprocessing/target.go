package preprocessing

import (
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// DefaultSmoothing is the prior weight used by NewTargetEncoder.
const DefaultSmoothing = 10.0

// TargetEncoder replaces each category with the smoothed mean of the target
// over the training rows of that category:
//
//	(sum + Smoothing*GlobalMean) / (count + Smoothing)
//
// It keeps one output column per input feature, which suits high-cardinality
// columns such as model or trim. Unseen categories encode as GlobalMean.
type TargetEncoder struct {
	State *model.StateManager

	Smoothing  float64
	GlobalMean float64

	// Encodings holds the per-feature category → encoded value map.
	Encodings []map[string]float64

	NFeatures int
}

// NewTargetEncoder returns an unfitted encoder using smoothing as the prior
// weight. Non-positive smoothing selects DefaultSmoothing.
func NewTargetEncoder(smoothing float64) *TargetEncoder {
	if smoothing <= 0 {
		smoothing = DefaultSmoothing
	}
	return &TargetEncoder{State: model.NewStateManager(), Smoothing: smoothing}
}

// IsFitted reports whether Fit has completed.
func (e *TargetEncoder) IsFitted() bool { return e.State.IsFitted() }

// Fit learns per-category target means. y must have one value per row.
func (e *TargetEncoder) Fit(data [][]string, y []float64) (err error) {
	defer scigoErrors.Recover(&err, "TargetEncoder.Fit")
	if len(data) == 0 || len(data[0]) == 0 {
		return scigoErrors.NewModelError("TargetEncoder.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if len(y) != len(data) {
		return scigoErrors.NewDimensionError("TargetEncoder.Fit", len(data), len(y), 0)
	}

	nFeatures := len(data[0])
	var total float64
	for _, v := range y {
		total += v
	}
	e.GlobalMean = total / float64(len(y))
	e.NFeatures = nFeatures
	e.Encodings = make([]map[string]float64, nFeatures)

	for j := 0; j < nFeatures; j++ {
		sums := make(map[string]float64)
		counts := make(map[string]float64)
		for i, row := range data {
			if len(row) != nFeatures {
				return scigoErrors.NewDimensionError("TargetEncoder.Fit", nFeatures, len(row), i)
			}
			sums[row[j]] += y[i]
			counts[row[j]]++
		}

		enc := make(map[string]float64, len(sums))
		for c, s := range sums {
			enc[c] = (s + e.Smoothing*e.GlobalMean) / (counts[c] + e.Smoothing)
		}
		e.Encodings[j] = enc
	}

	if e.State == nil {
		e.State = model.NewStateManager()
	}
	e.State.SetFitted()
	e.State.SetDimensions(nFeatures, len(data))
	return nil
}

// Transform encodes data into an n_samples × NFeatures matrix.
func (e *TargetEncoder) Transform(data [][]string) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "TargetEncoder.Transform")
	if !e.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("TargetEncoder", "Transform")
	}
	if len(data) == 0 {
		return nil, scigoErrors.NewModelError("TargetEncoder.Transform", "empty data", scigoErrors.ErrEmptyData)
	}

	result := mat.NewDense(len(data), e.NFeatures, nil)
	for i, row := range data {
		if err := e.TransformRowInto(row, result.RawRowView(i)); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// TransformRowInto writes the encoding of one row into dst[:NFeatures].
func (e *TargetEncoder) TransformRowInto(row []string, dst []float64) error {
	if len(row) != e.NFeatures {
		return scigoErrors.NewDimensionError("TargetEncoder.Transform", e.NFeatures, len(row), 1)
	}
	for j, category := range row {
		if v, ok := e.Encodings[j][category]; ok {
			dst[j] = v
		} else {
			dst[j] = e.GlobalMean
		}
	}
	return nil
}

// FitTransformFolds fits the encoder on every row, then encodes each row of
// a fold with an encoder fitted on the rows outside that fold, so no row's
// encoding sees its own target. folds must partition [0, len(data)). With
// fewer than two folds the in-sample encoding is returned.
func (e *TargetEncoder) FitTransformFolds(data [][]string, y []float64, folds [][]int) (_ *mat.Dense, err error) {
	defer scigoErrors.Recover(&err, "TargetEncoder.FitTransformFolds")
	if err := e.Fit(data, y); err != nil {
		return nil, err
	}
	result := mat.NewDense(len(data), e.NFeatures, nil)
	if len(folds) < 2 {
		for i, row := range data {
			if err := e.TransformRowInto(row, result.RawRowView(i)); err != nil {
				return nil, err
			}
		}
		return result, nil
	}

	inFold := make([]int, len(data))
	for k, fold := range folds {
		for _, i := range fold {
			if i < 0 || i >= len(data) {
				return nil, scigoErrors.NewValueError("TargetEncoder.FitTransformFolds", "fold index out of range")
			}
			inFold[i] = k
		}
	}

	for k, fold := range folds {
		rest := make([][]string, 0, len(data)-len(fold))
		restY := make([]float64, 0, len(data)-len(fold))
		for i, row := range data {
			if inFold[i] != k {
				rest = append(rest, row)
				restY = append(restY, y[i])
			}
		}
		enc := e
		if len(rest) > 0 {
			enc = NewTargetEncoder(e.Smoothing)
			if err := enc.Fit(rest, restY); err != nil {
				return nil, err
			}
		}
		for _, i := range fold {
			if err := enc.TransformRowInto(data[i], result.RawRowView(i)); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}
