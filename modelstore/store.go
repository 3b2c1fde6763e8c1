// Package modelstore implements the model directory layout shared by the
// trainer, the reporter and the web UI:
//
//	data/06_models/
//	    model_2024-01-15_10-30-00/
//	        predictor.gob
//	        metrics.txt
package modelstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/tabular"
)

// Layout constants.
const (
	DirPrefix       = "model_"
	TimestampLayout = "2006-01-02_15-04-05"
	MetricsFile     = "metrics.txt"
)

// ErrUnknownModel is returned for a model directory that does not exist.
var ErrUnknownModel = scigoErrors.Wrap(scigoErrors.ErrNotFound, "unknown model directory")

// NewDir returns the directory for a model trained at now.
func NewDir(root string, now time.Time) string {
	return filepath.Join(root, DirPrefix+now.Format(TimestampLayout))
}

// List returns the names of the subdirectories of root in ascending order.
// A missing root yields no names.
func List(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, scigoErrors.Wrapf(err, "list %s", root)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Latest returns the name of the newest model directory under root.
func Latest(root string) (string, error) {
	names, err := List(root)
	if err != nil {
		return "", err
	}
	if len(names) == 0 {
		return "", scigoErrors.Wrapf(scigoErrors.ErrNoModels, "no model directories in %s", root)
	}
	return names[len(names)-1], nil
}

// Resolve returns the path of the model directory name under root. An empty
// name selects the latest one.
func Resolve(root, name string) (string, error) {
	if name == "" {
		latest, err := Latest(root)
		if err != nil {
			return "", err
		}
		return filepath.Join(root, latest), nil
	}
	names, err := List(root)
	if err != nil {
		return "", err
	}
	i := sort.SearchStrings(names, name)
	if i == len(names) || names[i] != name {
		return "", scigoErrors.Wrapf(ErrUnknownModel, "%q", name)
	}
	return filepath.Join(root, name), nil
}

// WriteMetrics stores metrics as a JSON object in dir/metrics.txt.
func WriteMetrics(dir string, metrics map[string]float64) error {
	data, err := json.Marshal(metrics)
	if err != nil {
		return scigoErrors.Wrap(err, "encode metrics")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return scigoErrors.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, MetricsFile)
	return scigoErrors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// ReadMetrics reads dir/metrics.txt.
func ReadMetrics(dir string) (map[string]float64, error) {
	path := filepath.Join(dir, MetricsFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, scigoErrors.Wrapf(err, "read %s", path)
	}
	var metrics map[string]float64
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil, scigoErrors.Wrapf(err, "decode %s", path)
	}
	return metrics, nil
}

// Load reads the predictor stored in dir.
func Load(dir string) (*tabular.Predictor, error) {
	return tabular.Load(dir)
}

// Summary describes one model directory.
type Summary struct {
	Name    string             `json:"name"`
	Path    string             `json:"path"`
	Metrics map[string]float64 `json:"metrics,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Summaries lists every model directory under root with its metrics.
// Directories without readable metrics carry the error instead.
func Summaries(root string) ([]Summary, error) {
	names, err := List(root)
	if err != nil {
		return nil, err
	}
	out := make([]Summary, 0, len(names))
	for _, name := range names {
		s := Summary{Name: name, Path: filepath.Join(root, name)}
		if m, err := ReadMetrics(s.Path); err != nil {
			s.Error = err.Error()
		} else {
			s.Metrics = m
		}
		out = append(out, s)
	}
	return out, nil
}
