package config

import (
	"strings"
	"time"

	"github.com/spf13/cast"
)

// Resolved is a fully merged and substituted configuration. It is shared
// through the resolver cache, so accessors hand out copies of mappings.
type Resolved struct {
	values  map[string]any
	sources []string
}

// FromMap wraps an already resolved mapping
func FromMap(values map[string]any) *Resolved {
	if values == nil {
		values = map[string]any{}
	}
	return &Resolved{values: deepCopyMap(values)}
}

// Sources lists the source names in the order they were merged
func (c *Resolved) Sources() []string {
	return append([]string(nil), c.sources...)
}

// Lookup walks a dotted key such as "providers.audio"
func (c *Resolved) Lookup(key string) (any, bool) {
	var node any = c.values
	if key == "" {
		return deepCopy(node), true
	}
	for _, part := range strings.Split(key, ".") {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return deepCopy(node), true
}

// Get returns the value at key or def when absent
func (c *Resolved) Get(key string, def any) any {
	if v, ok := c.Lookup(key); ok {
		return v
	}
	return def
}

// Has reports whether key is set
func (c *Resolved) Has(key string) bool {
	_, ok := c.Lookup(key)
	return ok
}

// String returns key as a string or def
func (c *Resolved) String(key, def string) string {
	v, ok := c.Lookup(key)
	if !ok || v == nil {
		return def
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return def
	}
	return s
}

// Bool returns key as a bool or def when absent or not convertible
func (c *Resolved) Bool(key string, def bool) bool {
	v, ok := c.Lookup(key)
	if !ok {
		return def
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return def
	}
	return b
}

// Int returns key as an int or def when absent or not convertible
func (c *Resolved) Int(key string, def int) int {
	v, ok := c.Lookup(key)
	if !ok {
		return def
	}
	i, err := cast.ToIntE(v)
	if err != nil {
		return def
	}
	return i
}

// Duration accepts Go duration strings ("1s") and plain numbers (nanoseconds)
func (c *Resolved) Duration(key string, def time.Duration) time.Duration {
	v, ok := c.Lookup(key)
	if !ok {
		return def
	}
	d, err := cast.ToDurationE(v)
	if err != nil {
		return def
	}
	return d
}

// Section returns the mapping at key, or an empty mapping
func (c *Resolved) Section(key string) map[string]any {
	v, ok := c.Lookup(key)
	if !ok {
		return map[string]any{}
	}
	m, ok := v.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return m
}

// Map returns a deep copy of the whole configuration
func (c *Resolved) Map() map[string]any {
	return deepCopyMap(c.values)
}
