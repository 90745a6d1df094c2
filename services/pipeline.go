package services

import (
	"context"
	"errors"
	"fmt"

	"praxis-billing/logger"
)

// Step is one named unit of a Pipeline. Compensate may be nil.
type Step struct {
	Name       string
	Run        func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Pipeline runs steps in order and undoes completed steps in reverse when one fails.
type Pipeline struct {
	name  string
	steps []Step
}

func NewPipeline(name string, steps ...Step) *Pipeline {
	return &Pipeline{name: name, steps: steps}
}

// PipelineError reports the step that failed together with any compensation failures.
type PipelineError struct {
	Step string
	Err  error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("step %q failed: %v", e.Step, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// FailedStep is read by the HTTP error handler for logging.
func (e *PipelineError) FailedStep() string { return e.Step }

// Execute runs every step. On the first failure the compensations of the steps
// that already completed run last-to-first, and all errors are joined into a
// single *PipelineError.
func (p *Pipeline) Execute(ctx context.Context) error {
	log := logger.WithComponent("pipeline")

	for i, step := range p.steps {
		err := ctx.Err()
		if err == nil {
			err = step.Run(ctx)
		}
		if err == nil {
			log.Debug().Str("pipeline", p.name).Str("step", step.Name).Msg("step done")
			continue
		}

		errs := []error{err}
		// Compensations must run even when the request context is gone.
		undoCtx := context.WithoutCancel(ctx)
		for j := i - 1; j >= 0; j-- {
			prev := p.steps[j]
			if prev.Compensate == nil {
				continue
			}
			if cerr := prev.Compensate(undoCtx); cerr != nil {
				errs = append(errs, fmt.Errorf("compensate %s: %w", prev.Name, cerr))
			}
		}

		log.Warn().Err(err).Str("pipeline", p.name).Str("step", step.Name).Msg("pipeline aborted")
		return &PipelineError{Step: step.Name, Err: errors.Join(errs...)}
	}
	return nil
}
