package pipeline

import "fmt"

// Stage is one named unit of work
type Stage interface {
	Name() string
	Description() string
	// Dependencies lists stages that must have completed earlier in the run
	Dependencies() []string
	// ValidateContext returns the reasons the stage cannot run; an empty
	// result means it may execute
	ValidateContext(ctx *ExecutionContext) []string
	// Execute does the work. It may write to ctx.Data directly; those
	// writes are kept even when the stage fails.
	Execute(ctx *ExecutionContext) Result
}

// BaseStage implements the descriptive part of Stage. Embed it and
// implement ValidateContext and Execute.
type BaseStage struct {
	StageName string
	Desc      string
	Deps      []string
}

func (b BaseStage) Name() string           { return b.StageName }
func (b BaseStage) Description() string    { return b.Desc }
func (b BaseStage) Dependencies() []string { return b.Deps }

// CheckDependencies returns one error per dependency not yet completed
func (b BaseStage) CheckDependencies(ctx *ExecutionContext) []string {
	var errs []string
	for _, dep := range b.Deps {
		if !ctx.IsComplete(dep) {
			errs = append(errs, fmt.Sprintf("stage %q requires %q to complete first", b.StageName, dep))
		}
	}
	return errs
}
