package stages

import (
	"context"

	"github.com/ezoic/intelicar/dataset"
	"github.com/ezoic/intelicar/lookup"
	"github.com/ezoic/intelicar/pipeline"
	"github.com/ezoic/intelicar/pkg/log"
)

func (e *Env) dataProcessing() *pipeline.Pipeline {
	return pipeline.New(DataProcessing,
		pipeline.Step{
			Name:    "process_car_prices_node",
			Inputs:  []string{CarPrices},
			Outputs: []string{ProcessedCarPrices},
			Func:    e.processCarPrices,
		},
		pipeline.Step{
			Name:    "get_car_mapping_node",
			Inputs:  []string{ProcessedCarPrices},
			Outputs: []string{CarMapping},
			Func:    e.getCarMapping,
		},
		pipeline.Step{
			Name:    "get_untied_parameters_node",
			Inputs:  []string{ProcessedCarPrices},
			Outputs: []string{Colors, Interior, Transmission},
			Func:    e.getUntiedParameters,
		},
	)
}

func (e *Env) processCarPrices(_ context.Context, c *pipeline.Catalog) error {
	in, err := c.Path(CarPrices)
	if err != nil {
		return err
	}
	records, err := dataset.ReadCSVFile(in)
	if err != nil {
		return err
	}
	sales, stats := dataset.Clean(records)

	counts := dataset.ModelCounts(sales)
	top := counts[:min(len(counts), 10)]
	e.logger.Info("Cleaned car prices",
		"read", stats.Read,
		"dropped", stats.Dropped,
		"kept", stats.Kept,
		"models", len(counts),
	)
	e.logger.Debug("Most sold models", "counts", top)

	out, err := c.OutputPath(ProcessedCarPrices)
	if err != nil {
		return err
	}
	if err := dataset.WriteCSVFile(out, sales); err != nil {
		return err
	}
	c.Put(ProcessedCarPrices, sales)
	return nil
}

func (e *Env) getCarMapping(_ context.Context, c *pipeline.Catalog) error {
	sales, err := e.sales(ProcessedCarPrices)
	if err != nil {
		return err
	}
	m := lookup.BuildMapping(sales)
	out, err := c.OutputPath(CarMapping)
	if err != nil {
		return err
	}
	if err := m.SaveJSON(out); err != nil {
		return err
	}
	c.Put(CarMapping, m)
	e.logger.Info("Saved car mapping", "makes", len(m), log.PathKey, out)
	return nil
}

func (e *Env) getUntiedParameters(_ context.Context, c *pipeline.Catalog) error {
	sales, err := e.sales(ProcessedCarPrices)
	if err != nil {
		return err
	}
	for _, entry := range []struct{ name, column string }{
		{Colors, lookup.ColumnColor},
		{Interior, lookup.ColumnInterior},
		{Transmission, lookup.ColumnTransmission},
	} {
		values := lookup.UniqueValues(sales, entry.column)
		out, err := c.OutputPath(entry.name)
		if err != nil {
			return err
		}
		if err := lookup.SaveValues(out, values); err != nil {
			return err
		}
		c.Put(entry.name, values)
		e.logger.Debug("Saved values", "column", entry.column, "values", len(values), log.PathKey, out)
	}
	return nil
}
