package stages

import (
	"context"
	"time"

	"github.com/ezoic/intelicar/dataset"
	"github.com/ezoic/intelicar/modelstore"
	"github.com/ezoic/intelicar/pipeline"
	"github.com/ezoic/intelicar/pkg/log"
	"github.com/ezoic/intelicar/tabular"
)

func (e *Env) dataScience() *pipeline.Pipeline {
	return pipeline.New(DataScience,
		pipeline.Step{
			Name:    "split_data_node",
			Inputs:  []string{ProcessedCarPrices},
			Outputs: []string{TrainDF, TestDF},
			Func:    e.splitData,
		},
		pipeline.Step{
			Name:    "train_model_node",
			Inputs:  []string{TrainDF, TestDF},
			Outputs: []string{Regressor},
			Func:    e.trainModel,
		},
	)
}

func (e *Env) splitData(_ context.Context, c *pipeline.Catalog) error {
	sales, err := e.sales(ProcessedCarPrices)
	if err != nil {
		return err
	}
	tc := e.Config.Training
	train, test := dataset.TrainTestSplit(sales, tc.TestSize, tc.Seed)

	for _, part := range []struct {
		name  string
		sales []dataset.Sale
	}{{TrainDF, train}, {TestDF, test}} {
		out, err := c.OutputPath(part.name)
		if err != nil {
			return err
		}
		if err := dataset.WriteCSVFile(out, part.sales); err != nil {
			return err
		}
		c.Put(part.name, part.sales)
	}
	e.logger.Info("Split data", "train", len(train), "test", len(test))
	return nil
}

func (e *Env) trainModel(ctx context.Context, c *pipeline.Catalog) error {
	train, err := e.frame(TrainDF)
	if err != nil {
		return err
	}
	test, err := e.frame(TestDF)
	if err != nil {
		return err
	}

	tc := e.Config.Training
	dir := modelstore.NewDir(e.Config.ModelsDir(), e.Now())
	p := tabular.NewPredictor(tc.Label, dir)

	start := time.Now()
	if err := p.Fit(ctx, train, tabular.Options{
		TimeLimit:   tc.TimeLimit,
		Presets:     tc.Presets,
		HoldoutFrac: tc.HoldoutFrac,
		Seed:        tc.Seed,
		MaxWorkers:  tc.MaxWorkers,
	}); err != nil {
		return err
	}
	if err := p.Save(); err != nil {
		return err
	}

	metrics, err := p.Evaluate(test)
	if err != nil {
		return err
	}
	if err := modelstore.WriteMetrics(dir, metrics); err != nil {
		return err
	}

	c.Put(Regressor, p)
	c.Register(Regressor, dir)
	e.logger.Info("Trained model",
		log.PathKey, dir,
		"best_model", p.BestModel,
		"metrics", metrics,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}
