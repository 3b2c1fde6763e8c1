package tabular

import (
	"github.com/ezoic/intelicar/core/model"
	"github.com/ezoic/intelicar/ensemble"
	"github.com/ezoic/intelicar/linear"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tree"
)

// Preset names accepted by Options.Presets.
const (
	PresetMediumQuality         = "medium_quality"
	PresetHighQuality           = "high_quality"
	PresetBestQuality           = "best_quality"
	PresetOptimizeForDeployment = "optimize_for_deployment"
)

// DefaultPresets is the preset list used when Options.Presets is empty.
var DefaultPresets = []string{PresetHighQuality, PresetOptimizeForDeployment}

// Candidate is a named model constructor.
type Candidate struct {
	Name string
	Type string
	New  func(seed uint64, workers int) model.Regressor
}

var (
	linearCandidate = Candidate{
		Name: "LinearModel",
		Type: "LinearRegression",
		New: func(uint64, int) model.Regressor {
			return linear.NewLinearRegression(linear.WithAlpha(1.0))
		},
	}
	treeCandidate = Candidate{
		Name: "DecisionTree",
		Type: "DecisionTreeRegressor",
		New: func(seed uint64, _ int) model.Regressor {
			return tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(12),
				tree.WithMinSamplesLeaf(20),
				tree.WithSeed(seed),
			)
		},
	}
	gbmCandidate = Candidate{
		Name: "GradientBoosting",
		Type: "GradientBoostingRegressor",
		New: func(seed uint64, _ int) model.Regressor {
			return ensemble.NewGradientBoostingRegressor().
				WithNumIterations(300).
				WithMaxDepth(6).
				WithSubsample(0.8).
				WithEarlyStopping(20).
				WithRandomState(seed)
		},
	}
	forestCandidate = Candidate{
		Name: "RandomForest",
		Type: "RandomForestRegressor",
		New: func(seed uint64, workers int) model.Regressor {
			return ensemble.NewRandomForestRegressor().
				WithNEstimators(50).
				WithMaxDepth(12).
				WithRandomState(seed).
				WithMaxWorkers(workers)
		},
	}
	gbmLargeCandidate = Candidate{
		Name: "GradientBoostingLarge",
		Type: "GradientBoostingRegressor",
		New: func(seed uint64, _ int) model.Regressor {
			return ensemble.NewGradientBoostingRegressor().
				WithNumIterations(1000).
				WithLearningRate(0.05).
				WithMaxDepth(8).
				WithMinSamplesLeaf(10).
				WithSubsample(0.8).
				WithColsampleBytree(0.8).
				WithEarlyStopping(30).
				WithRandomState(seed)
		},
	}
	forestLargeCandidate = Candidate{
		Name: "RandomForestLarge",
		Type: "RandomForestRegressor",
		New: func(seed uint64, workers int) model.Regressor {
			return ensemble.NewRandomForestRegressor().
				WithNEstimators(100).
				WithMaxDepth(16).
				WithMinSamplesLeaf(3).
				WithRandomState(seed).
				WithMaxWorkers(workers)
		},
	}
)

var presetCandidates = map[string][]Candidate{
	PresetMediumQuality: {linearCandidate, treeCandidate},
	PresetHighQuality:   {linearCandidate, treeCandidate, gbmCandidate, forestCandidate},
	PresetBestQuality: {
		linearCandidate, treeCandidate,
		gbmCandidate, forestCandidate,
		gbmLargeCandidate, forestLargeCandidate,
	},
}

var qualityRank = map[string]int{
	PresetMediumQuality: 1,
	PresetHighQuality:   2,
	PresetBestQuality:   3,
}

// resolvePresets returns the candidates of the highest quality preset in
// presets (medium_quality when none is given) and whether only the best
// model should be kept after fitting.
func resolvePresets(presets []string) (cands []Candidate, keepBestOnly bool, err error) {
	if len(presets) == 0 {
		presets = DefaultPresets
	}
	quality := PresetMediumQuality
	for _, p := range presets {
		switch p {
		case PresetOptimizeForDeployment:
			keepBestOnly = true
		case PresetMediumQuality, PresetHighQuality, PresetBestQuality:
			if qualityRank[p] > qualityRank[quality] {
				quality = p
			}
		default:
			return nil, false, scigoErrors.NewValidationError("presets", "unknown preset", p)
		}
	}
	return presetCandidates[quality], keepBestOnly, nil
}
