package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/metrics"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// synthetic listings: year, odometer (thousands), condition
func listings(n int, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		year := 2000 + float64(rng.IntN(15))
		odo := rng.Float64() * 200
		cond := 1 + rng.Float64()*49
		X.SetRow(i, []float64{year, odo, cond})
		price := 1500*(year-2000) - 40*odo + 100*cond + 2000
		if year > 2010 {
			price += 3000
		}
		y.SetVec(i, price+rng.NormFloat64()*200)
	}
	return X, y
}

func r2(t *testing.T, yTrue *mat.VecDense, pred mat.Matrix) float64 {
	t.Helper()
	score, err := metrics.R2Score(yTrue, metrics.ColumnVec(pred))
	require.NoError(t, err)
	return score
}

func TestGradientBoostingFits(t *testing.T) {
	X, y := listings(600, 1)
	XTest, yTest := listings(200, 2)

	gbm := NewGradientBoostingRegressor().
		WithNumIterations(150).
		WithMaxDepth(4).
		WithMinSamplesLeaf(5).
		WithLearningRate(0.1)
	require.NoError(t, gbm.Fit(X, y))
	assert.True(t, gbm.IsFitted())
	assert.Len(t, gbm.Trees, 150)

	pred, err := gbm.Predict(XTest)
	require.NoError(t, err)
	assert.Greater(t, r2(t, yTest, pred), 0.95)

	require.Len(t, gbm.FeatureImportances, 3)
	var total float64
	for _, v := range gbm.FeatureImportances {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Greater(t, gbm.FeatureImportances[0], gbm.FeatureImportances[2], "year should outrank condition")
}

func TestGradientBoostingEarlyStopping(t *testing.T) {
	X, y := listings(400, 3)

	gbm := NewGradientBoostingRegressor().
		WithNumIterations(2000).
		WithLearningRate(0.5).
		WithMaxDepth(6).
		WithMinSamplesLeaf(2).
		WithEarlyStopping(5)
	require.NoError(t, gbm.Fit(X, y))

	assert.Less(t, len(gbm.Trees), 2000)
	assert.Equal(t, len(gbm.Trees), gbm.BestIteration)
}

func TestGradientBoostingSubsampleDeterministic(t *testing.T) {
	X, y := listings(300, 4)

	fit := func() mat.Matrix {
		gbm := NewGradientBoostingRegressor().
			WithNumIterations(20).
			WithSubsample(0.7).
			WithColsampleBytree(0.67).
			WithRandomState(9)
		require.NoError(t, gbm.Fit(X, y))
		pred, err := gbm.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.True(t, mat.Equal(fit(), fit()))
}

func TestGradientBoostingContext(t *testing.T) {
	X, y := listings(100, 5)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewGradientBoostingRegressor().FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)

	ctx, cancel = context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)
	err = NewGradientBoostingRegressor().FitContext(ctx, X, y)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGradientBoostingErrors(t *testing.T) {
	gbm := NewGradientBoostingRegressor()
	_, err := gbm.Predict(mat.NewDense(1, 3, nil))
	assert.ErrorIs(t, err, scigoErrors.ErrNotFitted)

	assert.ErrorIs(t, gbm.Fit(&mat.Dense{}, &mat.VecDense{}), scigoErrors.ErrEmptyData)
	assert.Error(t, gbm.WithLearningRate(0).Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, []float64{1, 2})))
}

func TestRandomForestFits(t *testing.T) {
	X, y := listings(500, 6)
	XTest, yTest := listings(200, 7)

	rf := NewRandomForestRegressor().
		WithNEstimators(30).
		WithMaxDepth(10).
		WithMinSamplesLeaf(2).
		WithMaxFeatures(1.0).
		WithMaxWorkers(4)
	require.NoError(t, rf.Fit(X, y))
	assert.Len(t, rf.Trees, 30)

	pred, err := rf.Predict(XTest)
	require.NoError(t, err)
	assert.Greater(t, r2(t, yTest, pred), 0.9)

	_, err = rf.Predict(mat.NewDense(1, 2, nil))
	assert.ErrorIs(t, err, scigoErrors.ErrDimensionMismatch)
}

func TestRandomForestDeterministic(t *testing.T) {
	X, y := listings(200, 8)
	fit := func(workers int) mat.Matrix {
		rf := NewRandomForestRegressor().WithNEstimators(8).WithRandomState(3).WithMaxWorkers(workers)
		require.NoError(t, rf.Fit(X, y))
		pred, err := rf.Predict(X)
		require.NoError(t, err)
		return pred
	}
	assert.True(t, mat.Equal(fit(1), fit(4)), "results must not depend on scheduling")
}

func TestRandomForestCancelled(t *testing.T) {
	X, y := listings(50, 9)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rf := NewRandomForestRegressor()
	assert.Error(t, rf.FitContext(ctx, X, y))
	assert.False(t, rf.IsFitted())
}

func TestSelectWeights(t *testing.T) {
	y := []float64{10, 20, 30, 40}
	good := []float64{11, 19, 31, 39}
	bad := []float64{40, 30, 20, 10}

	w, err := SelectWeights([][]float64{bad, good}, y, 10)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1}, w.Weights)
	assert.Equal(t, []int{1}, w.Members())
	assert.InDelta(t, 25.0, w.Blend([]float64{0, 25}), 1e-12)
}

func TestSelectWeightsBlendsComplementaryMembers(t *testing.T) {
	y := []float64{10, 20, 30, 40}
	high := []float64{12, 22, 32, 42}
	low := []float64{8, 18, 28, 38}

	w, err := SelectWeights([][]float64{high, low}, y, 0)
	require.NoError(t, err)

	var total float64
	for _, v := range w.Weights {
		total += v
	}
	assert.InDelta(t, 1.0, total, 1e-12)
	assert.InDelta(t, 0.5, w.Weights[0], 1.0/DefaultSelectionRounds+1e-12)

	blended := w.Blend([]float64{high[0], low[0]})
	assert.Less(t, math.Abs(blended-y[0]), 2.0)
}

func TestSelectWeightsErrors(t *testing.T) {
	_, err := SelectWeights(nil, []float64{1}, 5)
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)

	_, err = SelectWeights([][]float64{{1, 2}}, []float64{1}, 5)
	assert.ErrorIs(t, err, scigoErrors.ErrDimensionMismatch)
}
