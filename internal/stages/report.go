package stages

import (
	"context"

	"github.com/ezoic/intelicar/pipeline"
	"github.com/ezoic/intelicar/reporting"
	"github.com/ezoic/intelicar/tabular"
)

func (e *Env) reporting() *pipeline.Pipeline {
	return pipeline.New(Reporting,
		pipeline.Step{
			Name:    "evaluate_model_node",
			Inputs:  []string{Regressor, TestDF},
			Outputs: []string{PerformanceReport},
			Func:    e.evaluateModel,
		},
		pipeline.Step{
			Name:    "calculate_feature_importance_node",
			Inputs:  []string{Regressor, TrainDF},
			Outputs: []string{FeatureImportance},
			Func:    e.calculateFeatureImportance,
		},
		pipeline.Step{
			Name:    "plot_feature_importance_node",
			Inputs:  []string{FeatureImportance},
			Outputs: []string{ImportancePlot},
			Func:    e.plotFeatureImportance,
		},
	)
}

func (e *Env) evaluateModel(_ context.Context, c *pipeline.Catalog) error {
	p, err := e.predictor()
	if err != nil {
		return err
	}
	test, err := e.frame(TestDF)
	if err != nil {
		return err
	}
	report, err := reporting.EvaluateModel(p, test)
	if err != nil {
		return err
	}
	out, err := c.OutputPath(PerformanceReport)
	if err != nil {
		return err
	}
	if err := reporting.WriteJSON(out, report); err != nil {
		return err
	}
	c.Put(PerformanceReport, report)
	return nil
}

func (e *Env) calculateFeatureImportance(ctx context.Context, c *pipeline.Catalog) error {
	p, err := e.predictor()
	if err != nil {
		return err
	}
	train, err := e.frame(TrainDF)
	if err != nil {
		return err
	}
	rc := e.Config.Reporting
	imp, err := reporting.CalculateFeatureImportance(ctx, p, train, tabular.ImportanceOptions{
		SampleSize:  rc.ImportanceSampleSize,
		NumShuffles: rc.ImportanceShuffles,
		Seed:        e.Config.Training.Seed,
		MaxWorkers:  e.Config.Training.MaxWorkers,
	})
	if err != nil {
		return err
	}
	out, err := c.OutputPath(FeatureImportance)
	if err != nil {
		return err
	}
	if err := reporting.WriteJSON(out, imp); err != nil {
		return err
	}
	c.Put(FeatureImportance, imp)
	return nil
}

func (e *Env) plotFeatureImportance(_ context.Context, c *pipeline.Catalog) error {
	imp, ok := pipeline.Value[map[string]float64](c, FeatureImportance)
	if !ok {
		path, err := c.Path(FeatureImportance)
		if err != nil {
			return err
		}
		if err := reporting.ReadJSON(path, &imp); err != nil {
			return err
		}
	}
	out, err := c.OutputPath(ImportancePlot)
	if err != nil {
		return err
	}
	return reporting.PlotFeatureImportance(imp, out)
}
