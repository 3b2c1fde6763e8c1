// Package pipeline runs named steps in order over a data catalog.
//
// A step declares the catalog entries it reads and writes; Run checks that
// every input is available before the step executes, logs each step with its
// duration and aborts on the first failure:
//
//	p := pipeline.New("data_processing",
//		pipeline.Step{Name: "process_car_prices_node", Inputs: []string{"car_prices"},
//			Outputs: []string{"processed_car_prices"}, Func: processCarPrices},
//	)
//	err := p.Run(ctx, catalog)
package pipeline

import (
	"context"
	"time"

	scigoErrors "github.com/ezoic/intelicar/pkg/errors"
	"github.com/ezoic/intelicar/pkg/log"
)

// StepFunc executes one step against the catalog.
type StepFunc func(ctx context.Context, c *Catalog) error

// Step is a named unit of work.
type Step struct {
	Name    string
	Inputs  []string
	Outputs []string
	Func    StepFunc
}

// Pipeline is an ordered list of steps.
type Pipeline struct {
	name   string
	steps  []Step
	logger log.Logger
}

// New creates a pipeline called name.
func New(name string, steps ...Step) *Pipeline {
	return &Pipeline{
		name:   name,
		steps:  steps,
		logger: log.GetLoggerWithName("pipeline").With(log.ComponentKey, name),
	}
}

// Concat joins pipelines into one that runs them back to back.
func Concat(name string, pipelines ...*Pipeline) *Pipeline {
	var steps []Step
	for _, p := range pipelines {
		steps = append(steps, p.steps...)
	}
	return New(name, steps...)
}

// Name returns the pipeline name.
func (p *Pipeline) Name() string { return p.name }

// Steps returns a copy of the steps.
func (p *Pipeline) Steps() []Step {
	steps := make([]Step, len(p.steps))
	copy(steps, p.steps)
	return steps
}

// StepNames lists the step names in order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Name
	}
	return names
}

// Validate checks that step names are unique and that every input is either
// present in c or produced by an earlier step.
func (p *Pipeline) Validate(c *Catalog) error {
	seen := make(map[string]bool)
	produced := make(map[string]bool)
	for _, s := range p.steps {
		if s.Name == "" || seen[s.Name] {
			return scigoErrors.NewValidationError("pipeline step", "step names must be unique and non-empty", s.Name)
		}
		if s.Func == nil {
			return scigoErrors.NewValidationError("pipeline step", "step has no function", s.Name)
		}
		seen[s.Name] = true
		for _, in := range s.Inputs {
			if !produced[in] && !c.Exists(in) {
				return scigoErrors.Wrapf(scigoErrors.ErrNotFound,
					"step %q: input %q is not in the catalog", s.Name, in)
			}
		}
		for _, out := range s.Outputs {
			produced[out] = true
		}
	}
	return nil
}

// Run validates the pipeline and executes every step in order. The first
// failing step stops the run and its name is part of the returned error.
func (p *Pipeline) Run(ctx context.Context, c *Catalog) error {
	if err := p.Validate(c); err != nil {
		return err
	}

	start := time.Now()
	p.logger.Info("Running pipeline", "steps", len(p.steps))
	for i, s := range p.steps {
		if err := ctx.Err(); err != nil {
			return scigoErrors.Wrapf(err, "pipeline %s stopped before step %q", p.name, s.Name)
		}
		stepStart := time.Now()
		p.logger.Info("Running step", log.StepKey, s.Name, "index", i+1, "inputs", s.Inputs)
		if err := s.Func(ctx, c); err != nil {
			p.logger.Error("Step failed", log.StepKey, s.Name, log.ErrorKey, err)
			return scigoErrors.Wrapf(err, "pipeline %s: step %q", p.name, s.Name)
		}
		p.logger.Info("Completed step",
			log.StepKey, s.Name,
			"outputs", s.Outputs,
			log.DurationMsKey, time.Since(stepStart).Milliseconds(),
		)
	}
	p.logger.Info("Pipeline completed", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}
