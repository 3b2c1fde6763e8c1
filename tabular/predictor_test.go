package tabular

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
)

func fitQuick(t *testing.T, presets ...string) (*Predictor, *Frame) {
	t.Helper()
	train := carFrame(t, 500, 11)
	test := carFrame(t, 150, 12)

	p := NewPredictor("sellingprice", t.TempDir())
	require.NoError(t, p.Fit(context.Background(), train, Options{
		TimeLimit: time.Minute,
		Presets:   presets,
	}))
	return p, test
}

func TestResolvePresets(t *testing.T) {
	cands, keep, err := resolvePresets(nil)
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Len(t, cands, 4)

	cands, keep, err = resolvePresets([]string{PresetMediumQuality})
	require.NoError(t, err)
	assert.False(t, keep)
	assert.Equal(t, "LinearModel", cands[0].Name)
	assert.Len(t, cands, 2)

	cands, keep, err = resolvePresets([]string{PresetOptimizeForDeployment})
	require.NoError(t, err)
	assert.True(t, keep)
	assert.Len(t, cands, 2)

	cands, _, err = resolvePresets([]string{PresetHighQuality, PresetBestQuality, PresetMediumQuality})
	require.NoError(t, err)
	assert.Len(t, cands, 6)

	_, _, err = resolvePresets([]string{"extreme_quality"})
	assert.Error(t, err)
}

func TestPredictorFitPredict(t *testing.T) {
	p, test := fitQuick(t, PresetMediumQuality)

	assert.NotEmpty(t, p.BestModel)
	assert.ElementsMatch(t, []string{"LinearModel", "DecisionTree", EnsembleName}, p.ModelNames())

	ens, ok := p.Model(EnsembleName)
	require.True(t, ok)
	assert.NotEmpty(t, ens.Members)
	var wsum float64
	for _, w := range ens.Weights {
		wsum += w
	}
	assert.InDelta(t, 1.0, wsum, 1e-9)

	pred, err := p.Predict(test)
	require.NoError(t, err)
	assert.Len(t, pred, test.NumRows())

	scores, err := p.Evaluate(test)
	require.NoError(t, err)
	for _, k := range []string{"root_mean_squared_error", "mean_squared_error", "mean_absolute_error", "median_absolute_error", "r2", "pearsonr"} {
		assert.Contains(t, scores, k)
	}
	assert.Less(t, scores["root_mean_squared_error"], 0.0, "error metrics are negated")
	assert.Greater(t, scores["r2"], 0.9)

	_, err = json.Marshal(scores)
	assert.NoError(t, err)

	for _, name := range p.ModelNames() {
		out, err := p.PredictWith(name, test)
		require.NoError(t, err, name)
		assert.Len(t, out, test.NumRows())
	}
	_, err = p.PredictWith("NeuralNet", test)
	assert.ErrorIs(t, err, scigoErrors.ErrNoModels)
}

func TestPredictorSaveLoad(t *testing.T) {
	p, test := fitQuick(t, PresetMediumQuality)
	require.NoError(t, p.Save())

	loaded, err := Load(p.Path)
	require.NoError(t, err)
	assert.Equal(t, p.BestModel, loaded.BestModel)
	assert.Equal(t, p.ModelNames(), loaded.ModelNames())
	assert.Equal(t, p.Path, loaded.Path)

	want, err := p.Predict(test)
	require.NoError(t, err)
	got, err := loaded.Predict(test)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want, got, 1e-9)

	_, err = Load(t.TempDir())
	assert.Error(t, err)

	assert.Error(t, (&Predictor{}).Save())
}

func TestPredictorOptimizeForDeployment(t *testing.T) {
	p, test := fitQuick(t, PresetMediumQuality, PresetOptimizeForDeployment)

	best, ok := p.Model(p.BestModel)
	require.True(t, ok)
	allowed := map[string]bool{p.BestModel: true}
	for _, m := range best.Members {
		allowed[m] = true
	}
	for _, name := range p.ModelNames() {
		assert.True(t, allowed[name], "%s should have been deleted", name)
	}

	_, err := p.Predict(test)
	assert.NoError(t, err)
}

func TestPredictorDeleteModels(t *testing.T) {
	p := &Predictor{
		BestModel: "A",
		Models: []*TrainedModel{
			{Name: "A", Members: []string{"B"}},
			{Name: "B"},
			{Name: "C"},
			{Name: "D", Failed: true},
		},
	}
	assert.Equal(t, []string{"D"}, p.DeleteModels(false))
	assert.Equal(t, []string{"A", "B", "C"}, p.ModelNames())
	assert.Equal(t, []string{"C"}, p.DeleteModels(true))
	assert.Equal(t, []string{"A", "B"}, p.ModelNames())
}

func TestPredictorFitErrors(t *testing.T) {
	ctx := context.Background()
	f := carFrame(t, 40, 5)

	err := NewPredictor("price", "").Fit(ctx, f, Options{})
	assert.ErrorIs(t, err, scigoErrors.ErrMissingColumn)

	err = NewPredictor("sellingprice", "").Fit(ctx, f.Take([]int{0}), Options{})
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)

	err = NewPredictor("sellingprice", "").Fit(ctx, f, Options{Presets: []string{"fastest"}})
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	err = NewPredictor("sellingprice", "").Fit(cancelled, f, Options{Presets: []string{PresetMediumQuality}})
	assert.ErrorIs(t, err, scigoErrors.ErrNoModels)

	_, err = NewPredictor("sellingprice", "").Predict(f)
	assert.ErrorIs(t, err, scigoErrors.ErrNotFitted)
}

func TestLeaderboard(t *testing.T) {
	p, test := fitQuick(t, PresetMediumQuality)
	p.Models = append(p.Models, &TrainedModel{Name: "Broken", Failed: true, Error: "boom"})

	rows, err := p.Leaderboard(test)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i := 1; i < 3; i++ {
		assert.GreaterOrEqual(t, rows[i-1].ScoreTest, rows[i].ScoreTest)
	}
	last := rows[len(rows)-1]
	assert.Equal(t, "Broken", last.Model)
	assert.True(t, math.IsNaN(last.ScoreTest))

	raw, err := json.Marshal(rows)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"score_test":null`)

	rows, err = p.Leaderboard(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(rows[0].ScoreTest))
	assert.GreaterOrEqual(t, rows[0].ScoreVal, rows[1].ScoreVal)
}

func TestFeatureImportanceRanksDrivers(t *testing.T) {
	p, test := fitQuick(t, PresetMediumQuality)

	imp, err := p.FeatureImportance(context.Background(), test, ImportanceOptions{NumShuffles: 2})
	require.NoError(t, err)
	assert.Len(t, imp, len(p.Encoder.FeatureColumns()))
	for i := 1; i < len(imp); i++ {
		assert.GreaterOrEqual(t, imp[i-1].Importance, imp[i].Importance)
	}

	byName := ImportanceMap(imp)
	assert.Greater(t, byName["year"], byName["color"])
	assert.Greater(t, byName["odometer"], byName["interior"])

	_, err = NewPredictor("sellingprice", "").FeatureImportance(context.Background(), test, ImportanceOptions{})
	assert.ErrorIs(t, err, scigoErrors.ErrNotFitted)
}

func TestPredictorInfo(t *testing.T) {
	p, _ := fitQuick(t, PresetMediumQuality)
	info := p.Info()

	assert.Equal(t, "sellingprice", info.Label)
	assert.Equal(t, "regression", info.ProblemType)
	assert.Equal(t, "root_mean_squared_error", info.EvalMetric)
	assert.Equal(t, "standard", info.FeatureKinds["year"])
	assert.Equal(t, "onehot", info.FeatureKinds["make"])
	assert.Equal(t, []string{"DecisionTree", "LinearModel", EnsembleName}, info.ModelNamesSorted())

	best, ok := info.BestModelInfo()
	require.True(t, ok)
	assert.Equal(t, p.BestModel, best.Name)
	assert.Contains(t, info.ModelInfo["LinearModel"].Hyperparameters, "alpha")

	raw, err := json.Marshal(info)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"best_model"`)
}
