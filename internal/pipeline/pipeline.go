// Package pipeline runs named stages against a shared execution context.
//
// A Pipeline owns an ordered set of stages and named phases (ordered
// lists of stage names). Executing a stage validates the context first;
// stages that fail validation never run. A phase runs its stages in
// order and stops at the first stage that does not succeed. Execution is
// synchronous and single-threaded.
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrStageNotFound is returned for a stage name the pipeline lacks
	ErrStageNotFound = errors.New("stage not found")

	// ErrPhaseNotFound is returned for a phase name the pipeline lacks
	ErrPhaseNotFound = errors.New("phase not found")
)

// Phase is a named, ordered list of stage names
type Phase struct {
	Name   string
	Stages []string
}

// Pipeline is a catalogue of stages and phases
type Pipeline struct {
	name        string
	description string
	stages      map[string]Stage
	order       []string
	phases      map[string]*Phase
	phaseOrder  []string
}

// New creates an empty pipeline
func New(name, description string) *Pipeline {
	return &Pipeline{
		name:        name,
		description: description,
		stages:      make(map[string]Stage),
		phases:      make(map[string]*Phase),
	}
}

func (p *Pipeline) Name() string        { return p.name }
func (p *Pipeline) Description() string { return p.description }

// AddStage adds a stage; names must be unique
func (p *Pipeline) AddStage(stage Stage) error {
	name := stage.Name()
	if name == "" {
		return fmt.Errorf("pipeline %s: stage name must not be empty", p.name)
	}
	if _, exists := p.stages[name]; exists {
		return fmt.Errorf("pipeline %s: stage %q already defined", p.name, name)
	}
	p.stages[name] = stage
	p.order = append(p.order, name)
	return nil
}

// AddPhase defines a phase over stages already added
func (p *Pipeline) AddPhase(name string, stages ...string) error {
	if _, exists := p.phases[name]; exists {
		return fmt.Errorf("pipeline %s: phase %q already defined", p.name, name)
	}
	for _, s := range stages {
		if _, ok := p.stages[s]; !ok {
			return fmt.Errorf("pipeline %s: phase %q: %w: %s", p.name, name, ErrStageNotFound, s)
		}
	}
	p.phases[name] = &Phase{Name: name, Stages: append([]string(nil), stages...)}
	p.phaseOrder = append(p.phaseOrder, name)
	return nil
}

// Stage looks up a stage by name
func (p *Pipeline) Stage(name string) (Stage, bool) {
	s, ok := p.stages[name]
	return s, ok
}

// Stages returns the stages in the order they were added
func (p *Pipeline) Stages() []Stage {
	out := make([]Stage, len(p.order))
	for i, name := range p.order {
		out[i] = p.stages[name]
	}
	return out
}

// Phase looks up a phase by name
func (p *Pipeline) Phase(name string) (Phase, bool) {
	ph, ok := p.phases[name]
	if !ok {
		return Phase{}, false
	}
	return Phase{Name: ph.Name, Stages: append([]string(nil), ph.Stages...)}, true
}

// Phases returns the phases in definition order
func (p *Pipeline) Phases() []Phase {
	out := make([]Phase, 0, len(p.phaseOrder))
	for _, name := range p.phaseOrder {
		ph, _ := p.Phase(name)
		out = append(out, ph)
	}
	return out
}

// ExecuteStage runs one stage. An unknown name is an error; everything
// else, including validation problems, is reported in the Result.
func (p *Pipeline) ExecuteStage(name string, ctx *ExecutionContext) (Result, error) {
	stage, ok := p.stages[name]
	if !ok {
		return Result{}, fmt.Errorf("pipeline %s: %w: %s", p.name, ErrStageNotFound, name)
	}

	log := ctx.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("pipeline", p.name), zap.String("stage", name), zap.String("run", ctx.RunID))

	if errs := stage.ValidateContext(ctx); len(errs) > 0 {
		log.Warn("pipeline: stage validation failed", zap.Strings("errors", errs))
		return Failure(fmt.Sprintf("stage %s cannot run", name), errs...), nil
	}

	log.Info("pipeline: stage started")
	start := time.Now()
	result := runStage(stage, ctx)
	log = log.With(zap.Stringer("status", result.Status), zap.Duration("duration", time.Since(start)))

	switch result.Status {
	case StatusSuccess:
		if ctx.Data == nil {
			ctx.Data = make(map[string]any)
		}
		for k, v := range result.Data {
			ctx.Data[k] = v
		}
		ctx.MarkComplete(name)
		log.Info("pipeline: stage finished", zap.String("message", result.Message))
	default:
		errs := result.Errors
		if len(errs) == 0 {
			errs = []string{result.Message}
		}
		for _, e := range errs {
			ctx.Errors = append(ctx.Errors, fmt.Sprintf("%s: %s", name, e))
		}
		log.Warn("pipeline: stage did not succeed", zap.String("message", result.Message), zap.Strings("errors", result.Errors))
	}
	return result, nil
}

// runStage turns a panicking stage body into a failure
func runStage(stage Stage, ctx *ExecutionContext) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			result = Failure(fmt.Sprintf("stage %s panicked", stage.Name()), fmt.Sprint(r))
		}
	}()
	return stage.Execute(ctx)
}

// ExecutePhase runs the stages of a phase in order and stops at the first
// result that is not a success. The results of the stages that ran are
// returned.
func (p *Pipeline) ExecutePhase(name string, ctx *ExecutionContext) ([]Result, error) {
	phase, ok := p.phases[name]
	if !ok {
		return nil, fmt.Errorf("pipeline %s: %w: %s", p.name, ErrPhaseNotFound, name)
	}

	results := make([]Result, 0, len(phase.Stages))
	for _, stage := range phase.Stages {
		result, err := p.ExecuteStage(stage, ctx)
		if err != nil {
			return results, err
		}
		results = append(results, result)
		if !result.OK() {
			break
		}
	}
	return results, nil
}
