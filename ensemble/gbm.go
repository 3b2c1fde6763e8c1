// Package ensemble provides tree ensembles for regression.
//
//   - GradientBoostingRegressor: L2 gradient boosting over histogram trees
//   - RandomForestRegressor: bagged histogram trees built concurrently
//   - WeightedEnsemble: greedy forward selection of model weights
//
// Both tree ensembles accept a context through FitContext. When its deadline
// passes they stop adding trees and keep what they have, so a time budget
// yields a smaller model rather than an error.
package ensemble

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tree"
)

// GradientBoostingRegressor fits an additive model of shallow trees to the
// residuals of the previous iterations.
type GradientBoostingRegressor struct {
	State *model.StateManager

	NumIterations      int     // Maximum number of boosting rounds
	LearningRate       float64 // Shrinkage applied to every tree
	MaxDepth           int     // Maximum tree depth
	MinSamplesLeaf     int     // Minimum samples in one leaf
	Subsample          float64 // Row fraction drawn for each tree
	ColsampleBytree    float64 // Feature fraction considered per split
	EarlyStopping      int     // Rounds without validation improvement before stopping, 0 disables
	ValidationFraction float64 // Held-out fraction used by early stopping
	RandomState        uint64
	MaxBins            int

	InitScore          float64
	Binner             *tree.Binner
	Trees              []*tree.Tree
	NFeatures          int
	BestIteration      int
	FeatureImportances []float64

	logger log.Logger
}

// NewGradientBoostingRegressor creates a regressor with default parameters.
func NewGradientBoostingRegressor() *GradientBoostingRegressor {
	return &GradientBoostingRegressor{
		State:              model.NewStateManager(),
		NumIterations:      200,
		LearningRate:       0.1,
		MaxDepth:           6,
		MinSamplesLeaf:     20,
		Subsample:          1.0,
		ColsampleBytree:    1.0,
		ValidationFraction: 0.1,
		RandomState:        42,
		MaxBins:            tree.DefaultMaxBins,
		logger:             log.GetLoggerWithName("ensemble.gbm"),
	}
}

// WithNumIterations sets the maximum number of boosting rounds.
func (g *GradientBoostingRegressor) WithNumIterations(n int) *GradientBoostingRegressor {
	g.NumIterations = n
	return g
}

// WithLearningRate sets the shrinkage.
func (g *GradientBoostingRegressor) WithLearningRate(lr float64) *GradientBoostingRegressor {
	g.LearningRate = lr
	return g
}

// WithMaxDepth sets the depth of each tree.
func (g *GradientBoostingRegressor) WithMaxDepth(d int) *GradientBoostingRegressor {
	g.MaxDepth = d
	return g
}

// WithMinSamplesLeaf sets the minimum leaf size.
func (g *GradientBoostingRegressor) WithMinSamplesLeaf(n int) *GradientBoostingRegressor {
	g.MinSamplesLeaf = n
	return g
}

// WithSubsample sets the row fraction drawn for each tree.
func (g *GradientBoostingRegressor) WithSubsample(f float64) *GradientBoostingRegressor {
	g.Subsample = f
	return g
}

// WithColsampleBytree sets the feature fraction per split.
func (g *GradientBoostingRegressor) WithColsampleBytree(f float64) *GradientBoostingRegressor {
	g.ColsampleBytree = f
	return g
}

// WithEarlyStopping stops after rounds iterations without improvement on an
// internal validation split.
func (g *GradientBoostingRegressor) WithEarlyStopping(rounds int) *GradientBoostingRegressor {
	g.EarlyStopping = rounds
	return g
}

// WithRandomState sets the seed for subsampling.
func (g *GradientBoostingRegressor) WithRandomState(seed uint64) *GradientBoostingRegressor {
	g.RandomState = seed
	return g
}

// Fit trains with no time limit.
func (g *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	return g.FitContext(context.Background(), X, y)
}

// FitContext trains until NumIterations, early stopping or the context
// deadline, whichever comes first. Cancellation before the first tree is an
// error.
func (g *GradientBoostingRegressor) FitContext(ctx context.Context, X, y mat.Matrix) (err error) {
	defer scigoErrors.Recover(&err, "GradientBoostingRegressor.Fit")

	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return scigoErrors.NewModelError("GradientBoostingRegressor.Fit", "empty data", scigoErrors.ErrEmptyData)
	}
	if rows != yRows {
		return scigoErrors.NewDimensionError("GradientBoostingRegressor.Fit", rows, yRows, 0)
	}
	if yCols != 1 {
		return scigoErrors.NewDimensionError("GradientBoostingRegressor.Fit", 1, yCols, 1)
	}
	if g.LearningRate <= 0 || g.LearningRate > 1 {
		return scigoErrors.NewValidationError("learning_rate", "must be in (0, 1]", g.LearningRate)
	}
	if g.logger == nil {
		g.logger = log.GetLoggerWithName("ensemble.gbm")
	}

	start := time.Now()
	rng := rand.New(rand.NewPCG(g.RandomState, g.RandomState+1))

	target := make([]float64, rows)
	for i := range target {
		target[i] = y.At(i, 0)
	}

	train, valid := allIndices(rows), []int(nil)
	if g.EarlyStopping > 0 && g.ValidationFraction > 0 && rows >= 20 {
		rng.Shuffle(len(train), func(a, b int) { train[a], train[b] = train[b], train[a] })
		nValid := int(math.Ceil(float64(rows) * g.ValidationFraction))
		valid, train = train[:nValid], train[nValid:]
	}

	g.Binner = tree.FitBinner(X, g.MaxBins)
	data := g.Binner.Transform(X)
	g.NFeatures = cols
	g.Trees = g.Trees[:0]

	var sum float64
	for _, i := range train {
		sum += target[i]
	}
	g.InitScore = sum / float64(len(train))

	pred := make([]float64, rows)
	for i := range pred {
		pred[i] = g.InitScore
	}
	residual := make([]float64, rows)

	params := tree.Params{
		MaxDepth:       g.MaxDepth,
		MinSamplesLeaf: g.MinSamplesLeaf,
		MaxFeatures:    g.ColsampleBytree,
	}

	bestLoss := math.Inf(1)
	bestIter := 0
	sinceBest := 0
	sample := make([]int, 0, len(train))

	for iter := 0; iter < g.NumIterations; iter++ {
		if ctx.Err() != nil {
			if len(g.Trees) == 0 {
				return scigoErrors.Wrap(ctx.Err(), "gradient boosting stopped before the first tree")
			}
			g.logger.Warn("Training stopped by context",
				log.ModelNameKey, "GradientBoostingRegressor",
				"iterations", len(g.Trees),
				log.ErrorKey, ctx.Err(),
			)
			break
		}

		for _, i := range train {
			residual[i] = target[i] - pred[i]
		}

		sample = sample[:0]
		if g.Subsample > 0 && g.Subsample < 1 {
			for _, i := range train {
				if rng.Float64() < g.Subsample {
					sample = append(sample, i)
				}
			}
		}
		if len(sample) == 0 {
			sample = append(sample, train...)
		}

		t := tree.Grow(data, g.Binner, residual, sample, params, rng)
		t.Scale(g.LearningRate)
		g.Trees = append(g.Trees, t)

		for i := 0; i < rows; i++ {
			pred[i] += t.PredictBinned(data, i)
		}

		if valid == nil {
			continue
		}
		var loss float64
		for _, i := range valid {
			d := target[i] - pred[i]
			loss += d * d
		}
		loss /= float64(len(valid))
		if loss < bestLoss {
			bestLoss, bestIter, sinceBest = loss, len(g.Trees), 0
			continue
		}
		sinceBest++
		if sinceBest >= g.EarlyStopping {
			g.logger.Debug("Early stopping",
				"best_iteration", bestIter,
				"validation_mse", bestLoss,
			)
			break
		}
	}

	if valid != nil && bestIter > 0 {
		g.Trees = g.Trees[:bestIter]
	}
	g.BestIteration = len(g.Trees)

	g.FeatureImportances = make([]float64, cols)
	for _, t := range g.Trees {
		t.AddGains(g.FeatureImportances)
	}
	tree.Normalize(g.FeatureImportances)

	if g.State == nil {
		g.State = model.NewStateManager()
	}
	g.State.SetFitted()
	g.State.SetDimensions(cols, rows)

	g.logger.Info("Training completed",
		log.ModelNameKey, "GradientBoostingRegressor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"trees", len(g.Trees),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// PredictRow scores one raw feature row.
func (g *GradientBoostingRegressor) PredictRow(row []float64) float64 {
	v := g.InitScore
	for _, t := range g.Trees {
		v += t.PredictRow(row)
	}
	return v
}

// Predict returns an n×1 matrix of predictions.
func (g *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.State.IsFitted() {
		return nil, scigoErrors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	return predictRows(X, g.NFeatures, "GradientBoostingRegressor.Predict", g.PredictRow)
}

// IsFitted reports whether Fit has completed.
func (g *GradientBoostingRegressor) IsFitted() bool { return g.State.IsFitted() }

// GetParams returns the hyperparameters.
func (g *GradientBoostingRegressor) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"num_iterations":   g.NumIterations,
		"learning_rate":    g.LearningRate,
		"max_depth":        g.MaxDepth,
		"min_samples_leaf": g.MinSamplesLeaf,
		"subsample":        g.Subsample,
		"colsample_bytree": g.ColsampleBytree,
		"early_stopping":   g.EarlyStopping,
		"random_state":     g.RandomState,
	}
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func predictRows(X mat.Matrix, nFeatures int, op string, predictRow func([]float64) float64) (mat.Matrix, error) {
	r, c := X.Dims()
	if c != nFeatures {
		return nil, scigoErrors.NewDimensionError(op, nFeatures, c, 1)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(r, 1, nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		out.Set(i, 0, predictRow(row))
	}
	return out, nil
}
