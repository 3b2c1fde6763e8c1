// Package linear provides the linear baseline model used by the tabular
// predictor.
//
// LinearRegression solves ordinary least squares, optionally with an L2
// (ridge) penalty, through the normal equations:
//
//	lr := linear.NewLinearRegression(linear.WithAlpha(1.0))
//	if err := lr.Fit(X, y); err != nil {
//		return err
//	}
//	predictions, err := lr.Predict(XTest)
//
// Weights are stored as plain slices so fitted models round-trip through
// encoding/gob.
package linear

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	"github.com/ezoic/intelicar/core/parallel"
	"github.com/ezoic/intelicar/metrics"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

// LinearRegression is a least-squares linear model with optional ridge penalty.
type LinearRegression struct {
	State *model.StateManager

	// Alpha is the L2 penalty applied to every weight except the intercept.
	Alpha float64

	Weights   []float64
	Intercept float64
	NFeatures int

	logger log.Logger
}

// Option configures a LinearRegression.
type Option func(*LinearRegression)

// WithAlpha sets the ridge penalty. Zero gives plain OLS.
func WithAlpha(alpha float64) Option {
	return func(lr *LinearRegression) {
		lr.Alpha = alpha
	}
}

// NewLinearRegression creates an unfitted model.
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{
		State: model.NewStateManager(),
	}
	for _, opt := range opts {
		opt(lr)
	}
	lr.initLogger()
	return lr
}

func (lr *LinearRegression) initLogger() {
	lr.logger = log.GetLoggerWithName("linear").With(
		log.ModelNameKey, "LinearRegression",
		log.ComponentKey, "linear",
	)
}

// Fit solves (XᵀX + αI)w = Xᵀy with an unpenalized intercept column.
//
// Errors:
//   - ErrEmptyData: if X is empty
//   - ErrDimensionMismatch: if X and y disagree on the number of samples
//   - ErrSingularMatrix: if the system cannot be solved
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "LinearRegression.Fit")

	startTime := time.Now()
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return scigoErrors.NewModelError("LinearRegression.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if ry != r {
		return scigoErrors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return scigoErrors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}
	if lr.Alpha < 0 {
		return scigoErrors.NewValidationError("alpha", "must be non-negative", lr.Alpha)
	}

	if lr.logger == nil {
		lr.initLogger()
	}
	lr.logger.Info("Training started",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)

	design := mat.NewDense(r, c+1, nil)
	yVec := mat.NewVecDense(r, nil)

	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			row := design.RawRowView(i)
			row[0] = 1
			for j := 0; j < c; j++ {
				row[j+1] = X.At(i, j)
			}
			yVec.SetVec(i, y.At(i, 0))
		}
	})

	var gram mat.SymDense
	gram.SymOuterK(1, design.T())
	for j := 1; j <= c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+lr.Alpha)
	}

	var xty mat.VecDense
	xty.MulVec(design.T(), yVec)

	var w mat.VecDense
	var chol mat.Cholesky
	if chol.Factorize(&gram) {
		if err := chol.SolveVecTo(&w, &xty); err != nil {
			return scigoErrors.NewModelError("LinearRegression.Fit", "cholesky solve failed", scigoErrors.ErrSingularMatrix)
		}
	} else {
		lr.logger.Debug("Gram matrix not positive definite, falling back to LU")
		if err := w.SolveVec(&gram, &xty); err != nil {
			return scigoErrors.NewModelError("LinearRegression.Fit", "singular matrix", scigoErrors.ErrSingularMatrix)
		}
	}

	lr.NFeatures = c
	lr.Intercept = w.AtVec(0)
	lr.Weights = make([]float64, c)
	for j := 0; j < c; j++ {
		lr.Weights[j] = w.AtVec(j + 1)
	}

	if lr.State == nil {
		lr.State = model.NewStateManager()
	}
	lr.State.SetFitted()
	lr.State.SetDimensions(c, r)

	lr.logger.Info("Training completed",
		log.OperationKey, log.OperationFit,
		log.PhaseKey, log.PhaseTraining,
		log.DurationMsKey, time.Since(startTime).Milliseconds(),
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return nil
}

// Predict returns an n×1 matrix of X·w + intercept.
func (lr *LinearRegression) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer scigoErrors.Recover(&err, "LinearRegression.Predict")
	if !lr.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("LinearRegression", "Predict")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, scigoErrors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j, w := range lr.Weights {
			pred += X.At(i, j) * w
		}
		predictions.Set(i, 0, pred)
	}

	if lr.logger != nil {
		lr.logger.Debug("Prediction completed",
			log.OperationKey, log.OperationPredict,
			log.PredsKey, r,
		)
	}
	return predictions, nil
}

// GetWeights returns a copy of the learned coefficients.
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return append([]float64(nil), lr.Weights...)
}

// GetIntercept returns the learned intercept, or 0 before Fit.
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.IsFitted() {
		return 0
	}
	return lr.Intercept
}

// Score returns R² of the predictions for X against y.
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue := metrics.ColumnVec(y)
	if yTrue == nil {
		return 0, scigoErrors.NewValueError("LinearRegression.Score", "empty target")
	}
	return metrics.R2Score(yTrue, metrics.ColumnVec(yPred))
}

// IsFitted reports whether Fit has completed.
func (lr *LinearRegression) IsFitted() bool {
	return lr.State.IsFitted()
}

// GetParams returns the model's hyperparameters.
func (lr *LinearRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"alpha":      lr.Alpha,
		"n_features": lr.NFeatures,
		"fitted":     lr.IsFitted(),
	}
}

// SetParams updates hyperparameters. Only "alpha" is recognized.
func (lr *LinearRegression) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		switch k {
		case "alpha":
			alpha, ok := v.(float64)
			if !ok || alpha < 0 {
				return scigoErrors.NewValidationError("alpha", "must be a non-negative float64", v)
			}
			lr.Alpha = alpha
		default:
			return scigoErrors.NewValueError("LinearRegression.SetParams", fmt.Sprintf("unknown parameter %q", k))
		}
	}
	return nil
}
