package tree

import (
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

// DecisionTreeRegressor is a single histogram tree behind the Fit/Predict
// interface.
type DecisionTreeRegressor struct {
	State  *model.StateManager
	Params Params
	Seed   uint64

	MaxBins   int
	Binner    *Binner
	Tree      *Tree
	NFeatures int

	FeatureImportances []float64
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits tree depth. Zero means unlimited.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeRegressor) { dt.Params.MaxDepth = depth }
}

// WithMinSamplesLeaf sets the minimum leaf size.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.Params.MinSamplesLeaf = n }
}

// WithMinSamplesSplit sets the minimum size of a splittable node.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeRegressor) { dt.Params.MinSamplesSplit = n }
}

// WithMaxFeatures sets the fraction of features considered per split.
func WithMaxFeatures(fraction float64) Option {
	return func(dt *DecisionTreeRegressor) { dt.Params.MaxFeatures = fraction }
}

// WithSeed seeds feature subsampling.
func WithSeed(seed uint64) Option {
	return func(dt *DecisionTreeRegressor) { dt.Seed = seed }
}

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{
		State:   model.NewStateManager(),
		MaxBins: DefaultMaxBins,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// Fit bins X and grows one tree on y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "DecisionTreeRegressor.Fit")
	r, c := X.Dims()
	ry, _ := y.Dims()
	if r == 0 || c == 0 {
		return scigoErrors.NewModelError("DecisionTreeRegressor.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if ry != r {
		return scigoErrors.NewDimensionError("DecisionTreeRegressor.Fit", r, ry, 0)
	}

	target := make([]float64, r)
	for i := range target {
		target[i] = y.At(i, 0)
	}

	dt.Binner = FitBinner(X, dt.MaxBins)
	data := dt.Binner.Transform(X)
	rng := rand.New(rand.NewPCG(dt.Seed, dt.Seed^0x9e3779b97f4a7c15))
	dt.Tree = Grow(data, dt.Binner, target, nil, dt.Params, rng)
	dt.NFeatures = c

	dt.FeatureImportances = make([]float64, c)
	dt.Tree.AddGains(dt.FeatureImportances)
	Normalize(dt.FeatureImportances)

	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetFitted()
	dt.State.SetDimensions(c, r)
	return nil
}

// Predict returns an n×1 matrix of leaf values.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.State.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != dt.NFeatures {
		return nil, scigoErrors.NewDimensionError("DecisionTreeRegressor.Predict", dt.NFeatures, c, 1)
	}

	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, dt.Tree.PredictRow(row))
	}
	return out, nil
}

// IsFitted reports whether Fit has completed.
func (dt *DecisionTreeRegressor) IsFitted() bool { return dt.State.IsFitted() }

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeRegressor) GetNLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

// Normalize scales v in place to sum to 1. A zero vector is left unchanged.
func Normalize(v []float64) {
	var total float64
	for _, x := range v {
		total += x
	}
	if total <= 0 {
		return
	}
	for i := range v {
		v[i] /= total
	}
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"max_depth":         dt.Params.MaxDepth,
		"min_samples_split": dt.Params.MinSamplesSplit,
		"min_samples_leaf":  dt.Params.MinSamplesLeaf,
		"max_features":      dt.Params.MaxFeatures,
		"max_bins":          dt.MaxBins,
	}
}
