package ensemble

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	"github.com/ezoic/intelicar/core/parallel"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tree"
)

// RandomForestRegressor averages trees grown on bootstrap samples.
type RandomForestRegressor struct {
	State *model.StateManager

	NEstimators    int
	MaxDepth       int
	MinSamplesLeaf int
	MaxFeatures    float64 // Feature fraction considered per split
	Bootstrap      bool
	RandomState    uint64
	MaxWorkers     int // Concurrent tree builders, 0 means GOMAXPROCS
	MaxBins        int

	Binner             *tree.Binner
	Trees              []*tree.Tree
	NFeatures          int
	FeatureImportances []float64

	logger log.Logger
}

// NewRandomForestRegressor creates a forest with default parameters.
func NewRandomForestRegressor() *RandomForestRegressor {
	return &RandomForestRegressor{
		State:          model.NewStateManager(),
		NEstimators:    50,
		MaxDepth:       12,
		MinSamplesLeaf: 5,
		MaxFeatures:    0.6,
		Bootstrap:      true,
		RandomState:    42,
		MaxBins:        tree.DefaultMaxBins,
		logger:         log.GetLoggerWithName("ensemble.forest"),
	}
}

// WithNEstimators sets the number of trees.
func (rf *RandomForestRegressor) WithNEstimators(n int) *RandomForestRegressor {
	rf.NEstimators = n
	return rf
}

// WithMaxDepth sets the depth limit of each tree.
func (rf *RandomForestRegressor) WithMaxDepth(d int) *RandomForestRegressor {
	rf.MaxDepth = d
	return rf
}

// WithMinSamplesLeaf sets the minimum leaf size.
func (rf *RandomForestRegressor) WithMinSamplesLeaf(n int) *RandomForestRegressor {
	rf.MinSamplesLeaf = n
	return rf
}

// WithMaxFeatures sets the feature fraction per split.
func (rf *RandomForestRegressor) WithMaxFeatures(f float64) *RandomForestRegressor {
	rf.MaxFeatures = f
	return rf
}

// WithRandomState sets the seed.
func (rf *RandomForestRegressor) WithRandomState(seed uint64) *RandomForestRegressor {
	rf.RandomState = seed
	return rf
}

// WithMaxWorkers bounds the number of trees built at once.
func (rf *RandomForestRegressor) WithMaxWorkers(n int) *RandomForestRegressor {
	rf.MaxWorkers = n
	return rf
}

// Fit trains with no time limit.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	return rf.FitContext(context.Background(), X, y)
}

// FitContext grows NEstimators trees concurrently. If ctx ends after at least
// one tree is complete the forest keeps the finished trees.
func (rf *RandomForestRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "RandomForestRegressor.Fit")

	rows, cols := X.Dims()
	yRows, _ := y.Dims()
	if rows == 0 || cols == 0 {
		return scigoErrors.NewModelError("RandomForestRegressor.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if rows != yRows {
		return scigoErrors.NewDimensionError("RandomForestRegressor.Fit", rows, yRows, 0)
	}
	if rf.NEstimators < 1 {
		return scigoErrors.NewValidationError("n_estimators", "must be at least 1", rf.NEstimators)
	}
	if rf.logger == nil {
		rf.logger = log.GetLoggerWithName("ensemble.forest")
	}

	start := time.Now()
	target := make([]float64, rows)
	for i := range target {
		target[i] = y.At(i, 0)
	}

	rf.Binner = tree.FitBinner(X, rf.MaxBins)
	data := rf.Binner.Transform(X)
	params := tree.Params{
		MaxDepth:       rf.MaxDepth,
		MinSamplesLeaf: rf.MinSamplesLeaf,
		MaxFeatures:    rf.MaxFeatures,
	}

	trees := make([]*tree.Tree, rf.NEstimators)
	var built atomic.Int64
	err = parallel.ForEach(ctx, rf.NEstimators, rf.MaxWorkers, func(ctx context.Context, k int) error {
		rng := rand.New(rand.NewPCG(rf.RandomState, uint64(k)))
		indices := make([]int, rows)
		if rf.Bootstrap {
			for i := range indices {
				indices[i] = rng.IntN(rows)
			}
		} else {
			for i := range indices {
				indices[i] = i
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		trees[k] = tree.Grow(data, rf.Binner, target, indices, params, rng)
		built.Add(1)
		return nil
	})
	if err != nil {
		if ctx.Err() == nil || built.Load() == 0 {
			return scigoErrors.Wrap(err, "random forest training failed")
		}
		rf.logger.Warn("Training stopped by context",
			log.ModelNameKey, "RandomForestRegressor",
			"trees", built.Load(),
			log.ErrorKey, err,
		)
	}

	rf.Trees = rf.Trees[:0]
	for _, t := range trees {
		if t != nil {
			rf.Trees = append(rf.Trees, t)
		}
	}
	rf.NFeatures = cols

	rf.FeatureImportances = make([]float64, cols)
	for _, t := range rf.Trees {
		t.AddGains(rf.FeatureImportances)
	}
	tree.Normalize(rf.FeatureImportances)

	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetFitted()
	rf.State.SetDimensions(cols, rows)

	rf.logger.Info("Training completed",
		log.ModelNameKey, "RandomForestRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"trees", len(rf.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// PredictRow averages the trees for one raw feature row.
func (rf *RandomForestRegressor) PredictRow(row []float64) float64 {
	var sum float64
	for _, t := range rf.Trees {
		sum += t.PredictRow(row)
	}
	return sum / float64(len(rf.Trees))
}

// Predict returns an n×1 matrix of predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.State.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	return predictRows(X, rf.NFeatures, "RandomForestRegressor.Predict", rf.PredictRow)
}

// IsFitted reports whether Fit has completed.
func (rf *RandomForestRegressor) IsFitted() bool { return rf.State.IsFitted() }

// GetParams returns the hyperparameters.
func (rf *RandomForestRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":     rf.NEstimators,
		"max_depth":        rf.MaxDepth,
		"min_samples_leaf": rf.MinSamplesLeaf,
		"max_features":     rf.MaxFeatures,
		"bootstrap":        rf.Bootstrap,
		"random_state":     rf.RandomState,
	}
}
