// Package tabular is an in-process AutoML regressor for tabular data.
//
// A Predictor encodes a Frame of mixed numeric and categorical columns, fits
// every candidate model of a preset concurrently within a time limit, scores
// them on a holdout split, blends them with greedy ensemble selection and keeps
// the best one for prediction:
//
//	p := tabular.NewPredictor("sellingprice", "data/06_models/model_x")
//	err := p.Fit(ctx, train, tabular.Options{
//		TimeLimit: time.Minute,
//		Presets:   []string{tabular.PresetHighQuality, tabular.PresetOptimizeForDeployment},
//	})
//	prices, err := p.Predict(rows)
//	err = p.Save()
package tabular

import (
	"context"
	"encoding/gob"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/intelicar/core/model"
	"github.com/ezoic/intelicar/core/parallel"
	"github.com/ezoic/intelicar/ensemble"
	"github.com/ezoic/intelicar/linear"
	"github.com/ezoic/intelicar/metrics"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tree"
)

// PredictorFile is the name of the serialized predictor in its directory.
const PredictorFile = "predictor.gob"

// EnsembleName is the name of the weighted ensemble entry.
const EnsembleName = "WeightedEnsemble_L2"

const (
	problemTypeRegression = "regression"
	evalMetricRMSE        = "root_mean_squared_error"
)

func init() {
	gob.Register(&linear.LinearRegression{})
	gob.Register(&tree.DecisionTreeRegressor{})
	gob.Register(&ensemble.GradientBoostingRegressor{})
	gob.Register(&ensemble.RandomForestRegressor{})
}

// Options configures Predictor.Fit.
type Options struct {
	// TimeLimit bounds the whole fit. Zero means no limit.
	TimeLimit time.Duration
	// Presets selects candidate models; see DefaultPresets.
	Presets []string
	// HoldoutFrac is the validation fraction, default 0.2.
	HoldoutFrac float64
	// Seed drives the holdout split and every model, default 42.
	Seed uint64
	// MaxWorkers bounds concurrent candidate fits, default GOMAXPROCS.
	MaxWorkers int
	// OneHotMaxCategories overrides DefaultOneHotMaxCategories.
	OneHotMaxCategories int
}

func (o Options) withDefaults() Options {
	if o.HoldoutFrac <= 0 || o.HoldoutFrac >= 1 {
		o.HoldoutFrac = 0.2
	}
	if o.Seed == 0 {
		o.Seed = 42
	}
	if o.MaxWorkers <= 0 {
		o.MaxWorkers = runtime.GOMAXPROCS(0)
	}
	return o
}

// TrainedModel is one entry of the predictor's model set.
type TrainedModel struct {
	Name  string
	Type  string
	Model model.Regressor

	// Members and Weights are set for the weighted ensemble only.
	Members []string
	Weights []float64

	// ValScore is the negated holdout RMSE.
	ValScore    float64
	FitTime     time.Duration
	PredictTime time.Duration

	Failed bool
	Error  string
}

// Predictor trains and serves a regression model for one label column.
type Predictor struct {
	Label       string
	Path        string
	ProblemType string
	EvalMetric  string
	Presets     []string

	Encoder   *FeatureEncoder
	Models    []*TrainedModel
	BestModel string

	logger log.Logger
}

// NewPredictor creates an unfitted predictor that saves into path.
func NewPredictor(label, path string) *Predictor {
	return &Predictor{
		Label:       label,
		Path:        path,
		ProblemType: problemTypeRegression,
		EvalMetric:  evalMetricRMSE,
		logger:      log.GetLoggerWithName("tabular").With(log.ComponentKey, "predictor"),
	}
}

func (p *Predictor) getLogger() log.Logger {
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("tabular").With(log.ComponentKey, "predictor")
	}
	return p.logger
}

// Fit trains every candidate of opts.Presets on train.
//
// Errors:
//   - ErrMissingColumn: if the label column is absent
//   - ErrEmptyData: if train has fewer than two rows
//   - ErrNoModels: if no candidate finished successfully
func (p *Predictor) Fit(ctx context.Context, train *Frame, opts Options) error {
	opts = opts.withDefaults()
	cands, keepBestOnly, err := resolvePresets(opts.Presets)
	if err != nil {
		return err
	}
	if _, ok := train.ColumnIndex(p.Label); !ok {
		return missingColumn(p.Label)
	}
	if train.NumRows() < 2 {
		return scigoErrors.NewModelError("Predictor.Fit", "need at least two rows", scigoErrors.ErrEmptyData)
	}

	if opts.TimeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.TimeLimit)
		defer cancel()
	}

	start := time.Now()
	p.Presets = opts.Presets
	if len(p.Presets) == 0 {
		p.Presets = DefaultPresets
	}
	logger := p.getLogger()
	logger.Info("Fitting predictor",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, train.NumRows(),
		"presets", p.Presets,
		"time_limit", opts.TimeLimit,
	)

	trainIdx, holdIdx := SplitIndices(train.NumRows(), opts.HoldoutFrac, opts.Seed)
	fitFrame, holdFrame := train.Take(trainIdx), train.Take(holdIdx)

	p.Encoder = NewFeatureEncoder(p.Label, opts.OneHotMaxCategories)
	XFit, err := p.Encoder.FitTransform(fitFrame, DefaultTargetFolds, opts.Seed)
	if err != nil {
		return scigoErrors.Wrap(err, "fit feature encoder")
	}
	yFitData, err := fitFrame.Float(p.Label)
	if err != nil {
		return err
	}
	yFit := mat.NewVecDense(len(yFitData), yFitData)
	XHold, yHold, err := p.design(holdFrame)
	if err != nil {
		return err
	}

	results := make([]*TrainedModel, len(cands))
	holdPreds := make([][]float64, len(cands))
	loopErr := parallel.ForEach(ctx, len(cands), opts.MaxWorkers, func(ctx context.Context, i int) error {
		results[i], holdPreds[i] = p.fitCandidate(ctx, cands[i], opts, XFit, yFit, XHold, yHold)
		return nil
	})

	p.Models = p.Models[:0]
	var okModels []*TrainedModel
	var okPreds [][]float64
	for i, tm := range results {
		if tm == nil {
			msg := "not started before the time limit"
			if loopErr != nil {
				msg = loopErr.Error()
			}
			tm = &TrainedModel{Name: cands[i].Name, Type: cands[i].Type, Failed: true, Error: msg}
		}
		p.Models = append(p.Models, tm)
		if !tm.Failed {
			okModels = append(okModels, tm)
			okPreds = append(okPreds, holdPreds[i])
		}
	}
	if len(okModels) == 0 {
		return scigoErrors.NewModelError("Predictor.Fit", "no candidate model finished", scigoErrors.ErrNoModels)
	}

	if len(okModels) > 1 {
		if tm, err := p.fitEnsemble(okModels, okPreds, yHold); err != nil {
			logger.Warn("Ensemble selection failed", log.ErrorKey, err)
		} else {
			p.Models = append(p.Models, tm)
		}
	}

	p.BestModel = ""
	best := math.Inf(-1)
	for _, tm := range p.Models {
		if !tm.Failed && tm.ValScore > best {
			best, p.BestModel = tm.ValScore, tm.Name
		}
	}

	if keepBestOnly {
		p.DeleteModels(true)
	}

	logger.Info("Predictor fitted",
		log.OperationKey, log.OperationFit,
		"best_model", p.BestModel,
		"score_val", best,
		"models", len(p.Models),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

type contextFitter interface {
	FitContext(ctx context.Context, X, y mat.Matrix) error
}

func (p *Predictor) fitCandidate(ctx context.Context, c Candidate, opts Options, XFit *mat.Dense, yFit *mat.VecDense, XHold *mat.Dense, yHold *mat.VecDense) (*TrainedModel, []float64) {
	tm := &TrainedModel{Name: c.Name, Type: c.Type}
	logger := p.getLogger().With(log.ModelNameKey, c.Name)

	if err := ctx.Err(); err != nil {
		tm.Failed, tm.Error = true, err.Error()
		return tm, nil
	}

	m := c.New(opts.Seed, opts.MaxWorkers)
	start := time.Now()
	var err error
	if cf, ok := m.(contextFitter); ok {
		err = cf.FitContext(ctx, XFit, yFit)
	} else {
		err = m.Fit(XFit, yFit)
	}
	tm.FitTime = time.Since(start)
	if err != nil {
		logger.Warn("Candidate failed", log.ErrorKey, err)
		tm.Failed, tm.Error = true, err.Error()
		return tm, nil
	}

	start = time.Now()
	pred, err := m.Predict(XHold)
	tm.PredictTime = time.Since(start)
	if err != nil {
		tm.Failed, tm.Error = true, err.Error()
		return tm, nil
	}
	predVec := metrics.ColumnVec(pred)
	rmse, err := metrics.RMSE(yHold, predVec)
	if err != nil || math.IsNaN(rmse) || math.IsInf(rmse, 0) {
		tm.Failed, tm.Error = true, "invalid holdout score"
		return tm, nil
	}

	tm.Model = m
	tm.ValScore = -rmse
	logger.Info("Candidate fitted",
		"score_val", tm.ValScore,
		"fit_time", tm.FitTime,
	)
	return tm, predVec.RawVector().Data
}

func (p *Predictor) fitEnsemble(members []*TrainedModel, preds [][]float64, yHold *mat.VecDense) (*TrainedModel, error) {
	start := time.Now()
	sel, err := ensemble.SelectWeights(preds, yHold.RawVector().Data, ensemble.DefaultSelectionRounds)
	if err != nil {
		return nil, err
	}

	tm := &TrainedModel{Name: EnsembleName, Type: "WeightedEnsemble"}
	n := yHold.Len()
	blended := mat.NewVecDense(n, nil)
	for _, m := range sel.Members() {
		tm.Members = append(tm.Members, members[m].Name)
		tm.Weights = append(tm.Weights, sel.Weights[m])
		for i := 0; i < n; i++ {
			blended.SetVec(i, blended.AtVec(i)+sel.Weights[m]*preds[m][i])
		}
		tm.PredictTime += members[m].PredictTime
	}
	rmse, err := metrics.RMSE(yHold, blended)
	if err != nil {
		return nil, err
	}
	tm.ValScore = -rmse
	tm.FitTime = time.Since(start)
	return tm, nil
}

// design encodes f and extracts its label.
func (p *Predictor) design(f *Frame) (*mat.Dense, *mat.VecDense, error) {
	X, err := p.Encoder.Transform(f)
	if err != nil {
		return nil, nil, err
	}
	y, err := f.Float(p.Label)
	if err != nil {
		return nil, nil, err
	}
	return X, mat.NewVecDense(len(y), y), nil
}

// Model returns the entry called name.
func (p *Predictor) Model(name string) (*TrainedModel, bool) {
	for _, tm := range p.Models {
		if tm.Name == name {
			return tm, true
		}
	}
	return nil, false
}

// ModelNames lists the usable models in training order.
func (p *Predictor) ModelNames() []string {
	var out []string
	for _, tm := range p.Models {
		if !tm.Failed {
			out = append(out, tm.Name)
		}
	}
	return out
}

// Predict scores f with the best model.
func (p *Predictor) Predict(f *Frame) ([]float64, error) {
	return p.PredictWith(p.BestModel, f)
}

// PredictWith scores f with the named model.
func (p *Predictor) PredictWith(name string, f *Frame) ([]float64, error) {
	if p.Encoder == nil || p.BestModel == "" {
		return nil, scigoErrors.NewNotFittedError("Predictor", "Predict")
	}
	X, err := p.Encoder.Transform(f)
	if err != nil {
		return nil, err
	}
	return p.predictEncoded(name, X)
}

func (p *Predictor) predictEncoded(name string, X mat.Matrix) ([]float64, error) {
	tm, ok := p.Model(name)
	if !ok || tm.Failed {
		return nil, scigoErrors.Wrapf(scigoErrors.ErrNoModels, "model %q", name)
	}

	if tm.Model != nil {
		pred, err := tm.Model.Predict(X)
		if err != nil {
			return nil, scigoErrors.Wrapf(err, "predict with %s", name)
		}
		return metrics.ColumnVec(pred).RawVector().Data, nil
	}

	r, _ := X.Dims()
	out := make([]float64, r)
	for k, member := range tm.Members {
		preds, err := p.predictEncoded(member, X)
		if err != nil {
			return nil, err
		}
		for i, v := range preds {
			out[i] += tm.Weights[k] * v
		}
	}
	return out, nil
}

// Evaluate scores the best model on f, which must contain the label. Error
// metrics are negated so that higher is always better. Undefined metrics
// (r2 and pearsonr on a constant label) are omitted.
func (p *Predictor) Evaluate(f *Frame) (map[string]float64, error) {
	y, err := f.Float(p.Label)
	if err != nil {
		return nil, err
	}
	pred, err := p.Predict(f)
	if err != nil {
		return nil, err
	}

	report, err := metrics.Regression(mat.NewVecDense(len(y), y), mat.NewVecDense(len(pred), pred))
	if err != nil {
		return nil, err
	}

	out := map[string]float64{
		"root_mean_squared_error": -report.RMSE,
		"mean_squared_error":      -report.MSE,
		"mean_absolute_error":     -report.MAE,
		"median_absolute_error":   -report.MedianAE,
	}
	if !math.IsNaN(report.R2) {
		out["r2"] = report.R2
	}
	if !math.IsNaN(report.PearsonR) {
		out["pearsonr"] = report.PearsonR
	}
	return out, nil
}

// DeleteModels drops failed entries. With keepBest it also drops every model
// the best model does not depend on, and returns the deleted names.
func (p *Predictor) DeleteModels(keepBest bool) []string {
	keep := make(map[string]bool)
	if keepBest && p.BestModel != "" {
		keep[p.BestModel] = true
		if best, ok := p.Model(p.BestModel); ok {
			for _, m := range best.Members {
				keep[m] = true
			}
		}
	}

	var kept []*TrainedModel
	var deleted []string
	for _, tm := range p.Models {
		if tm.Failed || (keepBest && !keep[tm.Name]) {
			deleted = append(deleted, tm.Name)
			continue
		}
		kept = append(kept, tm)
	}
	p.Models = kept

	if len(deleted) > 0 {
		p.getLogger().Info("Deleted models", "deleted", deleted, "kept", p.ModelNames())
	}
	return deleted
}

// Save writes the predictor into Path/predictor.gob, creating Path.
func (p *Predictor) Save() error {
	if p.Path == "" {
		return scigoErrors.NewValueError("Predictor.Save", "predictor has no path")
	}
	if err := os.MkdirAll(p.Path, 0o755); err != nil {
		return scigoErrors.Wrapf(err, "create %s", p.Path)
	}
	file := filepath.Join(p.Path, PredictorFile)
	if err := model.SaveModel(p, file); err != nil {
		return scigoErrors.Wrapf(err, "save predictor to %s", file)
	}
	p.getLogger().Info("Predictor saved", log.OperationKey, log.OperationSave, log.PathKey, file)
	return nil
}

// Load reads the predictor saved in dir.
func Load(dir string) (*Predictor, error) {
	p := &Predictor{}
	file := filepath.Join(dir, PredictorFile)
	if err := model.LoadModel(p, file); err != nil {
		return nil, scigoErrors.Wrapf(err, "load predictor from %s", dir)
	}
	p.Path = dir
	p.getLogger().Debug("Predictor loaded", log.OperationKey, log.OperationLoad, log.PathKey, file)
	return p, nil
}
