package pipeline

import (
	"fmt"
	"sort"
)

// Catalog maps pipeline names to pipelines
type Catalog struct {
	pipelines map[string]*Pipeline
}

// NewCatalog creates a catalog holding the given pipelines
func NewCatalog(pipelines ...*Pipeline) (*Catalog, error) {
	c := &Catalog{pipelines: make(map[string]*Pipeline)}
	for _, p := range pipelines {
		if err := c.Register(p); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Register adds a pipeline; names must be unique
func (c *Catalog) Register(p *Pipeline) error {
	if _, exists := c.pipelines[p.Name()]; exists {
		return fmt.Errorf("pipeline %q already registered", p.Name())
	}
	c.pipelines[p.Name()] = p
	return nil
}

// Get looks up a pipeline
func (c *Catalog) Get(name string) (*Pipeline, bool) {
	p, ok := c.pipelines[name]
	return p, ok
}

// Names lists the pipeline names sorted
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.pipelines))
	for name := range c.pipelines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
