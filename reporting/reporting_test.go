package reporting

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tabular"
)

func listings(t *testing.T, n int) *tabular.Frame {
	t.Helper()
	rows := make([][]string, n)
	for i := range rows {
		year := 2000 + i%15
		odo := (i * 7919) % 150000
		color := []string{"black", "white", "red"}[(i/7)%3]
		price := 1000*float64(year-2000) - 0.03*float64(odo) + 6000
		rows[i] = []string{strconv.Itoa(year), color, strconv.Itoa(odo), strconv.FormatFloat(price, 'f', 2, 64)}
	}
	f, err := tabular.NewFrame([]string{"year", "color", "odometer", "sellingprice"}, rows)
	require.NoError(t, err)
	return f
}

func fitted(t *testing.T) (*tabular.Predictor, *tabular.Frame) {
	t.Helper()
	f := listings(t, 300)
	p := tabular.NewPredictor("sellingprice", t.TempDir())
	require.NoError(t, p.Fit(context.Background(), f, tabular.Options{Presets: []string{tabular.PresetMediumQuality}}))
	return p, f
}

func TestEvaluateModel(t *testing.T) {
	p, f := fitted(t)
	test := f.Take([]int{0, 1, 2, 3, 4})

	report, err := EvaluateModel(p, test)
	require.NoError(t, err)
	assert.Len(t, report.Predictions, 5)
	assert.Contains(t, report.Performance, "root_mean_squared_error")

	path := filepath.Join(t.TempDir(), "performance_report.json")
	require.NoError(t, WriteJSON(path, report))
	var back Report
	require.NoError(t, ReadJSON(path, &back))
	assert.Equal(t, report.Predictions, back.Predictions)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("{\n    \"performance\"")))

	noLabel, err := tabular.NewFrame([]string{"year"}, [][]string{{"2010"}})
	require.NoError(t, err)
	_, err = EvaluateModel(p, noLabel)
	assert.ErrorIs(t, err, scigoErrors.ErrMissingColumn)
}

func TestCalculateFeatureImportance(t *testing.T) {
	p, f := fitted(t)
	imp, err := CalculateFeatureImportance(context.Background(), p, f, tabular.ImportanceOptions{NumShuffles: 2})
	require.NoError(t, err)
	assert.Len(t, imp, 3)
	assert.Greater(t, imp["year"], imp["color"])
}

func TestSortedBars(t *testing.T) {
	bars := SortedBars(map[string]float64{"color": 0.5, "year": 4000, "odometer": 1200, "make": 0.5})
	assert.Equal(t, []Bar{
		{"year", 4000}, {"odometer", 1200}, {"color", 0.5}, {"make", 0.5},
	}, bars)
}

func TestPlotFeatureImportance(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feature_importance_plot.png")
	require.NoError(t, PlotFeatureImportance(map[string]float64{
		"year": 4000, "odometer": 1200, "condition": 900, "color": -3,
	}, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(raw, []byte("\x89PNG")), "file should be a PNG")

	p, err := NewImportancePlot(map[string]float64{"year": 1})
	require.NoError(t, err)
	assert.Equal(t, PlotTitle, p.Title.Text)

	err = PlotFeatureImportance(nil, path)
	assert.ErrorIs(t, err, scigoErrors.ErrEmptyData)
}
