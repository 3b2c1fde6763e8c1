package tree

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

func TestQuantileEdgesFewUniqueValues(t *testing.T) {
	edges := quantileEdges([]float64{3, 1, 2, 2, 1, 3}, 10)
	assert.Equal(t, []float64{1.5, 2.5}, edges)

	b := &Binner{Edges: [][]float64{edges}}
	assert.Equal(t, uint8(0), b.Bin(0, 1))
	assert.Equal(t, uint8(1), b.Bin(0, 2))
	assert.Equal(t, uint8(2), b.Bin(0, 3))
	assert.Equal(t, uint8(2), b.Bin(0, 100))
}

func TestQuantileEdgesManyValues(t *testing.T) {
	values := make([]float64, 1000)
	for i := range values {
		values[i] = float64(i)
	}
	edges := quantileEdges(values, 4)
	assert.Equal(t, []float64{250, 500, 750}, edges)
}

func TestQuantileEdgesConstant(t *testing.T) {
	assert.Empty(t, quantileEdges([]float64{7, 7, 7}, 255))
	assert.Nil(t, quantileEdges(nil, 255))
}

func TestBinnerTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 20,
		4, 20,
	})
	b := FitBinner(X, DefaultMaxBins)
	data := b.Transform(X)

	require.Equal(t, 4, data.NSamples)
	require.Equal(t, 2, data.NFeatures)
	assert.Equal(t, []int{4, 2}, data.NBins)
	assert.Equal(t, []uint8{0, 1, 2, 3}, data.Bins[0])
	assert.Equal(t, []uint8{0, 0, 1, 1}, data.Bins[1])
}

func TestPartition(t *testing.T) {
	bins := []uint8{3, 0, 2, 1, 0}
	indices := []int{0, 1, 2, 3, 4}
	left, right := partition(bins, indices, 1)
	assert.ElementsMatch(t, []int{1, 3, 4}, left)
	assert.ElementsMatch(t, []int{0, 2}, right)
}

func TestGrowStepFunction(t *testing.T) {
	// price jumps from 5000 to 15000 once the car is newer than 2010
	n := 40
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		year := 2000 + float64(i%20)
		X.Set(i, 0, year)
		if year > 2010 {
			y[i] = 15000
		} else {
			y[i] = 5000
		}
	}

	b := FitBinner(X, DefaultMaxBins)
	tr := Grow(b.Transform(X), b, y, nil, Params{MaxDepth: 3}, nil)

	root := tr.Nodes[0]
	require.False(t, root.Leaf)
	assert.Equal(t, 0, root.Feature)
	assert.InDelta(t, 2010.5, root.Threshold, 1e-9)
	assert.Equal(t, 2, tr.NLeaves(), "pure children must not split further")

	assert.Equal(t, 5000.0, tr.PredictRow([]float64{2003}))
	assert.Equal(t, 15000.0, tr.PredictRow([]float64{2015}))
	assert.Equal(t, 15000.0, tr.PredictRow([]float64{2030}))
}

func TestGrowRespectsLimits(t *testing.T) {
	n := 64
	X := mat.NewDense(n, 1, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		X.Set(i, 0, float64(i))
		y[i] = float64(i * i)
	}
	b := FitBinner(X, DefaultMaxBins)
	data := b.Transform(X)

	shallow := Grow(data, b, y, nil, Params{MaxDepth: 2}, nil)
	assert.LessOrEqual(t, shallow.Depth(), 2)
	assert.LessOrEqual(t, shallow.NLeaves(), 4)

	big := Grow(data, b, y, nil, Params{MinSamplesLeaf: 20}, nil)
	for _, node := range big.Nodes {
		if node.Leaf {
			assert.GreaterOrEqual(t, node.NSamples, 20)
		}
	}
}

func TestPredictBinnedMatchesPredictRow(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	n := 200
	X := mat.NewDense(n, 3, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		a, b, c := rng.Float64(), rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{a, b, c})
		y[i] = 3*a - 2*b + math.Sin(c)
	}

	binner := FitBinner(X, 16)
	data := binner.Transform(X)
	tr := Grow(data, binner, y, nil, Params{MaxDepth: 6, MaxFeatures: 0.67}, rng)

	row := make([]float64, 3)
	for i := 0; i < n; i++ {
		mat.Row(row, i, X)
		require.Equal(t, tr.PredictRow(row), tr.PredictBinned(data, i), "sample %d", i)
	}
}

func TestDecisionTreeRegressor(t *testing.T) {
	n := 100
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		odometer := float64(i * 1000)
		noise := float64(i % 3)
		X.SetRow(i, []float64{odometer, noise})
		y.SetVec(i, 20000-0.1*odometer)
	}

	dt := NewDecisionTreeRegressor(WithMaxDepth(8), WithMinSamplesLeaf(1), WithSeed(7))
	require.NoError(t, dt.Fit(X, y))
	assert.True(t, dt.IsFitted())
	assert.LessOrEqual(t, dt.GetDepth(), 8)
	assert.Greater(t, dt.GetNLeaves(), 10)

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		assert.InDelta(t, y.AtVec(i), pred.At(i, 0), 500)
	}

	require.Len(t, dt.FeatureImportances, 2)
	assert.InDelta(t, 1.0, dt.FeatureImportances[0]+dt.FeatureImportances[1], 1e-9)
	assert.Greater(t, dt.FeatureImportances[0], 0.95)
}

func TestDecisionTreeRegressorErrors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	_, err := dt.Predict(mat.NewDense(1, 1, []float64{1}))
	assert.ErrorIs(t, err, scigoErrors.ErrNotFitted)

	assert.ErrorIs(t, dt.Fit(&mat.Dense{}, &mat.VecDense{}), scigoErrors.ErrEmptyData)
	assert.ErrorIs(t, dt.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(1, []float64{1})), scigoErrors.ErrDimensionMismatch)

	require.NoError(t, dt.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewVecDense(2, []float64{1, 2})))
	_, err = dt.Predict(mat.NewDense(1, 2, []float64{1, 2}))
	assert.ErrorIs(t, err, scigoErrors.ErrDimensionMismatch)
}

func TestNormalize(t *testing.T) {
	v := []float64{1, 3}
	Normalize(v)
	assert.Equal(t, []float64{0.25, 0.75}, v)

	zero := []float64{0, 0}
	Normalize(zero)
	assert.Equal(t, []float64{0, 0}, zero)
}
