package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/intelicar/dataset"
	"github.com/ezoic/intelicar/internal/config"
	"github.com/ezoic/intelicar/modelstore"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tabular"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := newCommand(&out).Run(context.Background(), append([]string{"intelicar"}, args...))
	return out.String(), err
}

func trainModel(t *testing.T, dataDir string) string {
	t.Helper()
	rows := make([][]string, 150)
	for i := range rows {
		year := 2003 + i%12
		odo := (i * 7919) % 180000
		price := 1100*float64(year-2000) - 0.04*float64(odo) + 4000
		rows[i] = []string{
			strconv.Itoa(year), []string{"kia", "ford"}[i%2], []string{"rio", "focus"}[i%2], "base",
			"automatic", strconv.Itoa(1 + i%49), strconv.Itoa(odo), "black", "white",
			"2015", strconv.Itoa(2015 - year), strconv.FormatFloat(price, 'f', 2, 64),
		}
	}
	f, err := tabular.NewFrame(dataset.Columns, rows)
	require.NoError(t, err)

	dir := filepath.Join(dataDir, "06_models", "model_2024-03-01_12-00-00")
	p := tabular.NewPredictor(dataset.Label, dir)
	require.NoError(t, p.Fit(context.Background(), f, tabular.Options{Presets: []string{tabular.PresetMediumQuality}}))
	require.NoError(t, p.Save())
	require.NoError(t, modelstore.WriteMetrics(dir, map[string]float64{"r2": 0.95}))
	return dir
}

func TestModelsCommand(t *testing.T) {
	dataDir := t.TempDir()

	out, err := runCLI(t, "--data-dir", dataDir, "models")
	require.NoError(t, err)
	assert.JSONEq(t, "[]", out)

	trainModel(t, dataDir)
	out, err = runCLI(t, "--data-dir", dataDir, "models")
	require.NoError(t, err)
	var sums []modelstore.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &sums))
	require.Len(t, sums, 1)
	assert.Equal(t, "model_2024-03-01_12-00-00", sums[0].Name)

	out, err = runCLI(t, "--data-dir", dataDir, "models", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "name: model_2024-03-01_12-00-00")

	_, err = runCLI(t, "--data-dir", dataDir, "models", "--format", "xml")
	assert.Error(t, err)
}

func TestPredictCommand(t *testing.T) {
	dataDir := t.TempDir()

	_, err := runCLI(t, "--data-dir", dataDir, "predict", "--make", "kia", "--car-model", "rio", "--trim", "base")
	assert.ErrorIs(t, err, scigoErrors.ErrNoModels)

	trainModel(t, dataDir)
	out, err := runCLI(t, "--data-dir", dataDir, "predict",
		"--make", "kia", "--car-model", "rio", "--trim", "base", "--year", "2010", "--odometer", "60000")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Predicted Price: $"), out)
	assert.Contains(t, out, "USD (model_2024-03-01_12-00-00)")

	_, err = runCLI(t, "--data-dir", dataDir, "predict",
		"--model", "model_nope", "--make", "kia", "--car-model", "rio", "--trim", "base")
	assert.ErrorIs(t, err, scigoErrors.ErrNotFound)
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "intelicar.yaml")
	out, err := runCLI(t, "--data-dir", "elsewhere", "init-config", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	cfg, err := config.LoadWithEnvFile(path, "")
	require.NoError(t, err)
	assert.Equal(t, "elsewhere", cfg.DataDir)
	assert.Equal(t, config.Default().Training, cfg.Training)

	_, err = runCLI(t, "init-config")
	assert.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	_, err := runCLI(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "models")
	assert.Error(t, err)
}
