package pipeline

import (
	"fmt"
	"io"
	"strings"
)

// Step is one stage of a plan
type Step struct {
	Name         string
	Description  string
	Dependencies []string
}

// Plan describes what a run would execute
type Plan struct {
	Pipeline string
	Target   string
	Phase    bool
	Steps    []Step
}

// Plan resolves target, a stage or phase name (phases win on a clash),
// without validating or executing anything
func (p *Pipeline) Plan(target string) (*Plan, error) {
	plan := &Plan{Pipeline: p.name, Target: target}

	var names []string
	if phase, ok := p.phases[target]; ok {
		plan.Phase = true
		names = phase.Stages
	} else if _, ok := p.stages[target]; ok {
		names = []string{target}
	} else {
		return nil, fmt.Errorf("pipeline %s: %w: no stage or phase named %s", p.name, ErrStageNotFound, target)
	}

	for _, name := range names {
		stage := p.stages[name]
		plan.Steps = append(plan.Steps, Step{
			Name:         name,
			Description:  stage.Description(),
			Dependencies: append([]string(nil), stage.Dependencies()...),
		})
	}
	return plan, nil
}

// Write prints the plan in a human readable form
func (pl *Plan) Write(w io.Writer) error {
	kind := "stage"
	if pl.Phase {
		kind = "phase"
	}
	if _, err := fmt.Fprintf(w, "Dry run: pipeline %s, %s %s\n", pl.Pipeline, kind, pl.Target); err != nil {
		return err
	}
	for i, step := range pl.Steps {
		line := fmt.Sprintf("  %d. %s: %s", i+1, step.Name, step.Description)
		if len(step.Dependencies) > 0 {
			line += fmt.Sprintf(" (requires %s)", strings.Join(step.Dependencies, ", "))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
