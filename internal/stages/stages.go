// Package stages wires the data processing, data science and reporting
// pipelines of intelicar onto the data catalog.
package stages

import (
	"context"
	"time"

	"github.com/ezoic/intelicar/dataset"
	"github.com/ezoic/intelicar/internal/config"
	"github.com/ezoic/intelicar/modelstore"
	"github.com/ezoic/intelicar/pipeline"
	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tabular"
)

// Catalog entries.
const (
	CarPrices          = "car_prices"
	ProcessedCarPrices = "processed_car_prices"
	CarMapping         = "car_mapping"
	Colors             = "colors"
	Interior           = "interior"
	Transmission       = "transmission"
	TrainDF            = "train_df"
	TestDF             = "test_df"
	Regressor          = "regressor"
	PerformanceReport  = "performance_report"
	FeatureImportance  = "feature_importance"
	ImportancePlot     = "feature_importance_plot"
)

// Pipeline names.
const (
	DataProcessing = "data_processing"
	DataScience    = "data_science"
	Reporting      = "reporting"
	Default        = "__default__"
)

// Env holds what the steps share during one run.
type Env struct {
	Config  *config.Config
	Catalog *pipeline.Catalog
	// Model selects the model directory used by a reporting run without
	// training. Empty means the latest.
	Model string
	Now   func() time.Time

	logger log.Logger
}

// NewEnv creates an environment whose catalog follows cfg.
func NewEnv(cfg *config.Config) *Env {
	return &Env{
		Config:  cfg,
		Catalog: pipeline.NewCatalog(cfg.CatalogPaths()),
		Now:     time.Now,
		logger:  log.GetLoggerWithName("stages"),
	}
}

// Pipeline returns the named pipeline.
func (e *Env) Pipeline(name string) (*pipeline.Pipeline, error) {
	switch name {
	case DataProcessing:
		return e.dataProcessing(), nil
	case DataScience:
		return e.dataScience(), nil
	case Reporting:
		return e.reporting(), nil
	case Default, "":
		return pipeline.Concat(Default, e.dataProcessing(), e.dataScience(), e.reporting()), nil
	}
	return nil, scigoErrors.Wrapf(scigoErrors.ErrNotFound, "pipeline %q", name)
}

// Names lists the registered pipelines.
func Names() []string {
	return []string{DataProcessing, DataScience, Reporting, Default}
}

// Run executes the named pipeline.
func (e *Env) Run(ctx context.Context, name string) error {
	p, err := e.Pipeline(name)
	if err != nil {
		return err
	}
	if name == Reporting {
		if err := e.registerModelDir(); err != nil {
			return err
		}
	}
	return p.Run(ctx, e.Catalog)
}

// registerModelDir points the regressor entry at an existing model directory
// unless a run already produced one.
func (e *Env) registerModelDir() error {
	if _, ok := e.Catalog.Get(Regressor); ok {
		return nil
	}
	dir, err := modelstore.Resolve(e.Config.ModelsDir(), e.Model)
	if err != nil {
		return err
	}
	e.Catalog.Register(Regressor, dir)
	return nil
}

func (e *Env) sales(name string) ([]dataset.Sale, error) {
	if s, ok := pipeline.Value[[]dataset.Sale](e.Catalog, name); ok {
		return s, nil
	}
	path, err := e.Catalog.Path(name)
	if err != nil {
		return nil, err
	}
	s, err := dataset.ReadSalesCSVFile(path)
	if err != nil {
		return nil, err
	}
	e.Catalog.Put(name, s)
	return s, nil
}

func (e *Env) frame(name string) (*tabular.Frame, error) {
	s, err := e.sales(name)
	if err != nil {
		return nil, err
	}
	return dataset.ToFrame(s)
}

func (e *Env) predictor() (*tabular.Predictor, error) {
	if p, ok := pipeline.Value[*tabular.Predictor](e.Catalog, Regressor); ok {
		return p, nil
	}
	dir, err := e.Catalog.Path(Regressor)
	if err != nil {
		return nil, err
	}
	p, err := modelstore.Load(dir)
	if err != nil {
		return nil, err
	}
	e.Catalog.Put(Regressor, p)
	return p, nil
}
