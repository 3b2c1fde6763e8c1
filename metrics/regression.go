// Package metrics provides regression evaluation metrics.
//
//   - MSE, RMSE: squared error and its root, in target units
//   - MAE, MedianAbsoluteError: absolute error, robust to outliers
//   - R2Score: coefficient of determination
//   - MAPE: mean absolute percentage error
//   - PearsonR: linear correlation between truth and prediction
//
// Inputs are *mat.VecDense; the *Matrix variants accept n×1 matrices as returned
// by every Predict method in this module.
//
//	rmse, err := metrics.RMSE(yTrue, yPred)
//	report, err := metrics.Regression(yTrue, yPred)
package metrics

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

func validate(op string, yTrue, yPred *mat.VecDense) (int, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, scigoErrors.NewValueError(op, "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, scigoErrors.NewDimensionError(op, n, yPred.Len(), 0)
	}
	return n, nil
}

// MSE calculates the mean squared error, (1/n) * Σ(yTrue - yPred)².
//
// Errors:
//   - ValueError: if the vectors are empty
//   - DimensionError: if the lengths differ
func MSE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validate("MSE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		diff := yTrue.AtVec(i) - yPred.AtVec(i)
		sum += diff * diff
	}
	return sum / float64(n), nil
}

// RMSE is the square root of MSE, in the same units as the target.
func RMSE(yTrue, yPred *mat.VecDense) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE calculates the mean absolute error, (1/n) * Σ|yTrue - yPred|.
func MAE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validate("MAE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	for i := 0; i < n; i++ {
		sum += math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	return sum / float64(n), nil
}

// MedianAbsoluteError returns the median of |yTrue - yPred|.
func MedianAbsoluteError(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validate("MedianAbsoluteError", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	abs := make([]float64, n)
	for i := 0; i < n; i++ {
		abs[i] = math.Abs(yTrue.AtVec(i) - yPred.AtVec(i))
	}
	sort.Float64s(abs)
	if n%2 == 1 {
		return abs[n/2], nil
	}
	return (abs[n/2-1] + abs[n/2]) / 2, nil
}

// R2Score calculates the coefficient of determination, 1 - RSS/TSS.
//
// 1 is a perfect fit, 0 is no better than predicting the mean and negative
// values are worse than the mean. It fails when yTrue has no variance.
func R2Score(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validate("R2Score", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	yMean := mat.Sum(yTrue) / float64(n)

	var tss, rss float64
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		p := yPred.AtVec(i)
		tss += (t - yMean) * (t - yMean)
		rss += (t - p) * (t - p)
	}

	if tss == 0 {
		return 0, scigoErrors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}
	return 1 - rss/tss, nil
}

// MAPE calculates the mean absolute percentage error in percent. Rows with a
// zero true value are skipped; it fails when every true value is zero.
func MAPE(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := validate("MAPE", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	var sum float64
	valid := 0
	for i := 0; i < n; i++ {
		t := yTrue.AtVec(i)
		if t == 0 {
			continue
		}
		sum += math.Abs(t-yPred.AtVec(i)) / math.Abs(t)
		valid++
	}

	if valid == 0 {
		return 0, scigoErrors.NewValueError("MAPE", "all yTrue values are zero")
	}
	return sum / float64(valid) * 100, nil
}

// PearsonR returns the Pearson correlation coefficient between yTrue and
// yPred. It is NaN when either side is constant.
func PearsonR(yTrue, yPred *mat.VecDense) (float64, error) {
	if _, err := validate("PearsonR", yTrue, yPred); err != nil {
		return 0, err
	}
	return stat.Correlation(yTrue.RawVector().Data, yPred.RawVector().Data, nil), nil
}

// MSEMatrix calculates MSE for n×1 matrices.
func MSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("MSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return MSE(t, p)
}

// RMSEMatrix calculates RMSE for n×1 matrices.
func RMSEMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("RMSEMatrix", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return RMSE(t, p)
}

func columnPair(op string, yTrue, yPred mat.Matrix) (*mat.VecDense, *mat.VecDense, error) {
	rTrue, cTrue := yTrue.Dims()
	rPred, cPred := yPred.Dims()

	if rTrue == 0 || cTrue == 0 {
		return nil, nil, scigoErrors.NewValueError(op, "empty matrix")
	}
	if rTrue != rPred || cTrue != cPred {
		return nil, nil, scigoErrors.NewDimensionError(op, rTrue, rPred, 0)
	}
	if cTrue != 1 {
		return nil, nil, scigoErrors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	return ColumnVec(yTrue), ColumnVec(yPred), nil
}

// ColumnVec copies the first column of m into a new vector. It returns nil
// for an empty matrix.
func ColumnVec(m mat.Matrix) *mat.VecDense {
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v
}

// Report bundles the regression metrics computed by Regression.
type Report struct {
	MSE      float64
	RMSE     float64
	MAE      float64
	MedianAE float64
	R2       float64
	PearsonR float64
}

// Regression computes every metric of Report in one pass over the inputs.
// R² and Pearson r are NaN when yTrue has no variance.
func Regression(yTrue, yPred *mat.VecDense) (Report, error) {
	var r Report
	var err error

	if r.MSE, err = MSE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	r.RMSE = math.Sqrt(r.MSE)
	if r.MAE, err = MAE(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.MedianAE, err = MedianAbsoluteError(yTrue, yPred); err != nil {
		return Report{}, err
	}
	if r.R2, err = R2Score(yTrue, yPred); err != nil {
		r.R2 = math.NaN()
	}
	if r.PearsonR, err = PearsonR(yTrue, yPred); err != nil {
		return Report{}, err
	}
	return r, nil
}
