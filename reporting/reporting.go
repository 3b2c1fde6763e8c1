// Package reporting evaluates a trained predictor and renders its feature
// importance.
package reporting

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tabular"
)

// PlotTitle is the title of the feature importance chart.
const PlotTitle = "Feature Importance"

// Report is the evaluation of a predictor on a test frame.
type Report struct {
	Performance map[string]float64 `json:"performance"`
	Predictions []float64          `json:"predictions"`
}

// EvaluateModel scores p on test and returns its predictions.
func EvaluateModel(p *tabular.Predictor, test *tabular.Frame) (*Report, error) {
	perf, err := p.Evaluate(test)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "evaluate model")
	}
	pred, err := p.Predict(test)
	if err != nil {
		return nil, scigoErrors.Wrap(err, "predict test frame")
	}
	log.GetLoggerWithName("reporting").Info("Evaluated model",
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, test.NumRows(),
		"metrics", perf,
	)
	return &Report{Performance: perf, Predictions: pred}, nil
}

// CalculateFeatureImportance returns the permutation importance of every
// feature column of p measured on f.
func CalculateFeatureImportance(ctx context.Context, p *tabular.Predictor, f *tabular.Frame, opts tabular.ImportanceOptions) (map[string]float64, error) {
	imp, err := p.FeatureImportance(ctx, f, opts)
	if err != nil {
		return nil, err
	}
	return tabular.ImportanceMap(imp), nil
}

// Bar is one bar of the importance chart.
type Bar struct {
	Feature    string
	Importance float64
}

// SortedBars orders importance from highest to lowest, then by name.
func SortedBars(importance map[string]float64) []Bar {
	bars := make([]Bar, 0, len(importance))
	for f, v := range importance {
		bars = append(bars, Bar{Feature: f, Importance: v})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Importance != bars[j].Importance {
			return bars[i].Importance > bars[j].Importance
		}
		return bars[i].Feature < bars[j].Feature
	})
	return bars
}

// NewImportancePlot builds a bar chart of importance with rotated feature
// labels.
func NewImportancePlot(importance map[string]float64) (*plot.Plot, error) {
	if len(importance) == 0 {
		return nil, scigoErrors.NewModelError("NewImportancePlot", "no features", scigoErrors.ErrEmptyData)
	}
	bars := SortedBars(importance)
	values := make(plotter.Values, len(bars))
	names := make([]string, len(bars))
	for i, b := range bars {
		values[i] = b.Importance
		names[i] = b.Feature
	}

	p := plot.New()
	p.Title.Text = PlotTitle
	p.X.Label.Text = "Feature"
	p.Y.Label.Text = "Importance"

	chart, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, scigoErrors.Wrap(err, "create bar chart")
	}
	chart.LineStyle.Width = vg.Length(0)
	chart.Color = plotter.DefaultLineStyle.Color
	p.Add(chart)
	p.NominalX(names...)

	p.X.Tick.Label.Rotation = math.Pi / 4
	p.X.Tick.Label.XAlign = draw.XRight
	p.X.Tick.Label.YAlign = draw.YCenter
	return p, nil
}

// PlotFeatureImportance renders importance as a 10x6 inch image at path. The
// format follows the file extension.
func PlotFeatureImportance(importance map[string]float64, path string) error {
	p, err := NewImportancePlot(importance)
	if err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return scigoErrors.Wrapf(err, "save plot to %s", path)
	}
	log.GetLoggerWithName("reporting").Info("Saved feature importance plot", log.PathKey, path)
	return nil
}

// WriteJSON writes v to path indented by four spaces.
func WriteJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return scigoErrors.Wrapf(err, "encode %s", path)
	}
	return scigoErrors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}

// ReadJSON decodes the JSON file at path into v.
func ReadJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return scigoErrors.Wrapf(err, "read %s", path)
	}
	return scigoErrors.Wrapf(json.Unmarshal(data, v), "decode %s", path)
}
