package modelstore

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tabular"
)

func TestNewDir(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("data", "06_models", "model_2024-01-15_10-30-00"), NewDir(filepath.Join("data", "06_models"), now))
}

func TestListAndLatest(t *testing.T) {
	root := t.TempDir()

	names, err := List(filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Empty(t, names)

	_, err = Latest(root)
	assert.ErrorIs(t, err, scigoErrors.ErrNoModels)

	for _, n := range []string{"model_2024-02-01_00-00-00", "model_2023-12-31_23-59-59", ".hidden"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, n), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	names, err = List(root)
	require.NoError(t, err)
	assert.Equal(t, []string{"model_2023-12-31_23-59-59", "model_2024-02-01_00-00-00"}, names)

	latest, err := Latest(root)
	require.NoError(t, err)
	assert.Equal(t, "model_2024-02-01_00-00-00", latest)

	dir, err := Resolve(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, latest), dir)

	dir, err = Resolve(root, "model_2023-12-31_23-59-59")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "model_2023-12-31_23-59-59"), dir)

	_, err = Resolve(root, "../etc")
	assert.ErrorIs(t, err, ErrUnknownModel)
}

func TestMetrics(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "model_x")
	in := map[string]float64{"root_mean_squared_error": -1500.25, "r2": 0.93}
	require.NoError(t, WriteMetrics(dir, in))

	raw, err := os.ReadFile(filepath.Join(dir, MetricsFile))
	require.NoError(t, err)
	assert.JSONEq(t, `{"r2":0.93,"root_mean_squared_error":-1500.25}`, string(raw))

	out, err := ReadMetrics(dir)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = ReadMetrics(t.TempDir())
	assert.Error(t, err)

	summaries, err := Summaries(filepath.Dir(dir))
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, in, summaries[0].Metrics)
	assert.Empty(t, summaries[0].Error)
}

func trainedPredictor(t *testing.T, dir string) *tabular.Predictor {
	t.Helper()
	rows := make([][]string, 120)
	for i := range rows {
		year := 2000 + i%15
		odo := (i * 7919) % 150000
		price := 1000*float64(year-2000) - 0.03*float64(odo) + 5000
		rows[i] = []string{strconv.Itoa(year), []string{"kia", "ford"}[i%2], strconv.Itoa(odo), strconv.FormatFloat(price, 'f', 2, 64)}
	}
	f, err := tabular.NewFrame([]string{"year", "make", "odometer", "sellingprice"}, rows)
	require.NoError(t, err)

	p := tabular.NewPredictor("sellingprice", dir)
	require.NoError(t, p.Fit(context.Background(), f, tabular.Options{Presets: []string{tabular.PresetMediumQuality}}))
	require.NoError(t, p.Save())
	return p
}

func TestCache(t *testing.T) {
	root := t.TempDir()
	older := trainedPredictor(t, filepath.Join(root, "model_2024-01-01_00-00-00"))
	newer := trainedPredictor(t, filepath.Join(root, "model_2024-06-01_00-00-00"))

	c := NewCache(root)
	assert.Equal(t, root, c.Root())

	var wg sync.WaitGroup
	got := make([]*tabular.Predictor, 8)
	for i := range got {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := c.Get("")
			assert.NoError(t, err)
			got[i] = p
		}()
	}
	wg.Wait()
	for _, p := range got {
		assert.Same(t, got[0], p)
	}
	assert.Equal(t, newer.BestModel, got[0].BestModel)
	assert.Equal(t, 1, c.Len())

	p, err := c.Get("model_2024-01-01_00-00-00")
	require.NoError(t, err)
	assert.Equal(t, older.BestModel, p.BestModel)
	assert.Equal(t, 2, c.Len())

	_, err = c.Get("model_1999")
	assert.ErrorIs(t, err, ErrUnknownModel)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "model_2025-01-01_00-00-00"), 0o755))
	_, err = c.Get("")
	assert.Error(t, err, "an empty directory has no predictor")
}
