package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/certcrawler/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence, with each step receiving the accumulated
// report from previous steps.
type Step interface {
	// Do executes the step. Non-critical problems should be recorded in the
	// report or logged and nil returned.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Finalizer is implemented by steps that must run even after the run was
// interrupted or a previous step failed, such as exporting and archiving
// partial results.
type Finalizer interface {
	Step
	Finalize() bool
}

func isFinalizer(s Step) bool {
	f, ok := s.(Finalizer)
	return ok && f.Finalize()
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps           []Step
	logger          *slog.Logger
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps executing steps after one fails.
// The default is to stop, apart from finalizers, because the crawl step only
// fails when the seed itself is unusable.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in order.
//
// When ctx is cancelled the report is marked interrupted and only finalizers
// still run. When a step fails the report is marked aborted; unless
// continueOnError is set, the remaining steps are skipped except finalizers.
// The returned error is the first step error, or nil for a clean or
// interrupted run.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	var firstErr error

	for _, step := range p.steps {
		stopped := firstErr != nil && !p.continueOnError
		if ctx.Err() != nil && report.Status == model.RunCompleted {
			p.logger.Warn("run interrupted", "step", step.Name(), "target", report.Target)
			report.Status = model.RunInterrupted
		}
		if (stopped || ctx.Err() != nil) && !isFinalizer(step) {
			p.logger.Debug("skipping step", "step", step.Name(), "target", report.Target)
			continue
		}

		p.logger.Debug("executing step", "step", step.Name(), "target", report.Target)

		if err := step.Do(ctx, report); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"target", report.Target,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
				report.Status = model.RunAborted
				report.Error = err.Error()
			}
		} else {
			p.logger.Debug("step completed", "step", step.Name(), "target", report.Target)
		}

		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return firstErr
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
