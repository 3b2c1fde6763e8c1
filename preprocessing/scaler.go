// Package preprocessing turns raw tabular columns into model-ready features.
//
//   - StandardScaler: removes the mean and scales numeric features to unit variance
//   - OneHotEncoder: encodes low-cardinality categorical features as indicator columns
//   - TargetEncoder: encodes high-cardinality categorical features as smoothed target means
//
// Every component follows the Fit / Transform / FitTransform pattern and keeps
// its learned state in exported fields so it can be gob-encoded as part of a
// saved predictor.
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	if err := scaler.Fit(XTrain); err != nil {
//		return err
//	}
//	XScaled, err := scaler.Transform(XTest)
package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// StandardScaler standardizes features to zero mean and unit variance.
type StandardScaler struct {
	State *model.StateManager

	// Mean holds the per-feature mean (zeros when WithMean is false).
	Mean []float64

	// Scale holds the per-feature population standard deviation. Constant
	// features get 1 so they pass through centered but unscaled.
	Scale []float64

	NFeatures int
	WithMean  bool
	WithStd   bool
}

// NewStandardScaler creates a scaler. withMean centers the data, withStd
// divides by the standard deviation.
//
//	// z-score normalization
//	scaler := preprocessing.NewStandardScaler(true, true)
//
//	// scale only, keep the original mean
//	scaler := preprocessing.NewStandardScaler(false, true)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		State:    model.NewStateManager(),
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// NewStandardScalerDefault returns NewStandardScaler(true, true).
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

// IsFitted reports whether Fit has completed.
func (s *StandardScaler) IsFitted() bool { return s.State.IsFitted() }

// Fit computes the per-feature mean and scale of X (n_samples × n_features).
//
// Errors:
//   - ErrEmptyData: if X is empty
func (s *StandardScaler) Fit(X mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "StandardScaler.Fit")
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return scigoErrors.NewModelError("StandardScaler.Fit", "empty data", scigoErrors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		if s.WithMean {
			var sum float64
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1
		if s.WithStd {
			// spread is measured around the true mean even when WithMean is off
			mean := s.Mean[j]
			if !s.WithMean {
				var sum float64
				for i := 0; i < r; i++ {
					sum += X.At(i, j)
				}
				mean = sum / float64(r)
			}
			var ss float64
			for i := 0; i < r; i++ {
				d := X.At(i, j) - mean
				ss += d * d
			}
			if std := math.Sqrt(ss / float64(r)); std > 1e-8 {
				s.Scale[j] = std
			}
		}
	}

	if s.State == nil {
		s.State = model.NewStateManager()
	}
	s.State.SetFitted()
	s.State.SetDimensions(c, r)
	return nil
}

// Transform applies (X - Mean) / Scale.
//
// Errors:
//   - ErrNotFitted: if the scaler hasn't been fitted yet
//   - ErrDimensionMismatch: if X has a different number of features than the training data
func (s *StandardScaler) Transform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "StandardScaler.Transform")
	if !s.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("StandardScaler", "Transform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, scigoErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// TransformRowInto standardizes row into dst[:NFeatures].
func (s *StandardScaler) TransformRowInto(row, dst []float64) error {
	if len(row) != s.NFeatures {
		return scigoErrors.NewDimensionError("StandardScaler.Transform", s.NFeatures, len(row), 1)
	}
	for j, v := range row {
		dst[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return nil
}

// FitTransform fits on X and transforms it.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// InverseTransform maps standardized values back: X*Scale + Mean.
func (s *StandardScaler) InverseTransform(X mat.Matrix) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "StandardScaler.InverseTransform")
	if !s.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("StandardScaler", "InverseTransform")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, scigoErrors.NewDimensionError("StandardScaler.InverseTransform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, X.At(i, j)*s.Scale[j]+s.Mean[j])
		}
	}
	return result, nil
}

// GetParams returns the scaler configuration.
func (s *StandardScaler) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"with_mean": s.WithMean,
		"with_std":  s.WithStd,
	}
}

func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, s.NFeatures)
}
