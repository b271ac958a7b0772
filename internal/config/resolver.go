package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
)

// Resolver loads and caches layered configuration
type Resolver struct {
	mu       sync.Mutex
	lookup   LookupFunc
	environ  func() []string
	prefix   string
	readFile ReadFileFunc
	cache    map[string]*Resolved
}

// Option configures a Resolver
type Option func(*Resolver)

// WithEnv sets the lookup used for ${NAME} placeholders
func WithEnv(lookup LookupFunc) Option {
	return func(r *Resolver) { r.lookup = lookup }
}

// WithEnviron sets the variable list scanned for prefixed overrides
func WithEnviron(environ func() []string) Option {
	return func(r *Resolver) { r.environ = environ }
}

// WithMapEnv makes both placeholder lookup and the override scan use env
func WithMapEnv(env map[string]string) Option {
	return func(r *Resolver) {
		r.lookup = func(name string) (string, bool) {
			v, ok := env[name]
			return v, ok
		}
		r.environ = func() []string {
			out := make([]string, 0, len(env))
			for k, v := range env {
				out = append(out, k+"="+v)
			}
			return out
		}
	}
}

// WithPrefix changes the override prefix
func WithPrefix(prefix string) Option {
	return func(r *Resolver) { r.prefix = prefix }
}

// WithFileReader replaces os.ReadFile for file sources
func WithFileReader(read ReadFileFunc) Option {
	return func(r *Resolver) { r.readFile = read }
}

// NewResolver creates a resolver reading the process environment
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookup:   os.LookupEnv,
		environ:  os.Environ,
		prefix:   DefaultPrefix,
		readFile: os.ReadFile,
		cache:    make(map[string]*Resolved),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Load resolves the given sources. The result for a source set is cached;
// later changes to files or the environment are only seen after ClearCache.
func (r *Resolver) Load(sources ...Source) (*Resolved, error) {
	ordered := make([]Source, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	key := cacheKey(ordered)

	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.cache[key]; ok {
		return cached, nil
	}

	merged := map[string]any{}
	names := make([]string, 0, len(ordered))
	for _, src := range ordered {
		values, err := src.Load(r.readFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", src.Name(), err)
		}
		merged = Merge(merged, values)
		names = append(names, src.Name())
	}

	substituted := Substitute(merged, r.lookup)
	final := ApplyOverrides(substituted, ParseOverrides(r.environ(), r.prefix))

	resolved := &Resolved{values: final, sources: names}
	r.cache[key] = resolved
	return resolved, nil
}

// ClearCache drops every cached configuration
func (r *Resolver) ClearCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache = make(map[string]*Resolved)
}

func cacheKey(sources []Source) string {
	parts := make([]string, len(sources))
	for i, src := range sources {
		parts[i] = fmt.Sprintf("%d:%s", src.Priority(), src.Name())
		if m, ok := src.(*MapSource); ok {
			parts[i] += "#" + m.fingerprint()
		}
	}
	return strings.Join(parts, "|")
}
