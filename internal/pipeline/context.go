package pipeline

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/registry"
)

// ExecutionContext is the state shared by the stages of one run. It is
// owned by the caller and mutated in place by the engine and the stages.
type ExecutionContext struct {
	RunID        string
	PipelineName string
	ProjectRoot  string

	// Data holds stage outputs; successful results are merged into it
	Data   map[string]any
	Config map[string]any
	Args   map[string]any
	Errors []string

	Providers *registry.ProviderSet
	Logger    *zap.Logger
	DryRun    bool

	ctx       context.Context
	completed map[string]struct{}
}

// NewExecutionContext creates the context for one run with a fresh run ID
func NewExecutionContext(pipelineName, projectRoot string) *ExecutionContext {
	return &ExecutionContext{
		RunID:        uuid.NewString(),
		PipelineName: pipelineName,
		ProjectRoot:  projectRoot,
		Data:         make(map[string]any),
		Config:       make(map[string]any),
		Args:         make(map[string]any),
		Providers:    registry.NewProviderSet(),
		Logger:       zap.NewNop(),
		ctx:          context.Background(),
		completed:    make(map[string]struct{}),
	}
}

// WithContext sets the context handed to provider calls
func (c *ExecutionContext) WithContext(ctx context.Context) *ExecutionContext {
	c.ctx = ctx
	return c
}

// Context returns the context for provider calls
func (c *ExecutionContext) Context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// MarkComplete records a stage as successfully completed
func (c *ExecutionContext) MarkComplete(stage string) {
	if c.completed == nil {
		c.completed = make(map[string]struct{})
	}
	c.completed[stage] = struct{}{}
}

// IsComplete reports whether a stage completed successfully in this run
func (c *ExecutionContext) IsComplete(stage string) bool {
	_, ok := c.completed[stage]
	return ok
}

// CompletedStages lists completed stages in sorted order
func (c *ExecutionContext) CompletedStages() []string {
	stages := make([]string, 0, len(c.completed))
	for name := range c.completed {
		stages = append(stages, name)
	}
	sort.Strings(stages)
	return stages
}

// Arg returns an argument as a string, or def
func (c *ExecutionContext) Arg(key, def string) string {
	return scalar(c.Args, key, def)
}

// Setting returns a value from the pipeline's configuration as a string,
// so `force: true` and `speed: 1.25` read as "true" and "1.25". Missing,
// empty and non-scalar values give def.
func (c *ExecutionContext) Setting(key, def string) string {
	return scalar(c.Config, key, def)
}

func scalar(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil || s == "" {
		return def
	}
	return s
}
