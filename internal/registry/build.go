package registry

import (
	"fmt"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/config"
)

// Option configures Build
type Option func(*buildOptions)

type buildOptions struct {
	logger    *zap.Logger
	factories *Factories
	strict    *bool
	baseDir   string
}

// WithLogger sets the logger for build messages and the registry
func WithLogger(logger *zap.Logger) Option {
	return func(o *buildOptions) { o.logger = logger }
}

// WithFactories replaces the default implementation table
func WithFactories(f Factories) Option {
	return func(o *buildOptions) { o.factories = &f }
}

// WithStrict makes construction failures of optional providers fatal. It
// overrides system.strictProviders.
func WithStrict(strict bool) Option {
	return func(o *buildOptions) { o.strict = &strict }
}

// WithBaseDir is passed to every factory as the base_dir setting unless
// the provider sets it itself. Relative paths in settings resolve against it.
func WithBaseDir(dir string) Option {
	return func(o *buildOptions) { o.baseDir = dir }
}

// Build creates a registry from the providers section of cfg.
//
// Configuration mistakes are fatal: an empty providers section, the legacy
// flat layout, an unknown category or implementation, a data provider
// without pipelines, and overlapping managed files. A data provider that
// cannot be constructed is fatal too. Audio, image and sync providers that
// fail to construct are logged and skipped, see Registry.Issues.
func Build(cfg *config.Resolved, opts ...Option) (*Registry, error) {
	o := &buildOptions{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.factories == nil {
		f := DefaultFactories()
		o.factories = &f
	}
	strict := cfg.Bool("system.strictProviders", false)
	if o.strict != nil {
		strict = *o.strict
	}

	raw, ok := cfg.Lookup("providers")
	if !ok || raw == nil {
		return nil, &ConfigError{Path: "providers", Msg: "no providers configured"}
	}
	section, ok := raw.(map[string]any)
	if !ok {
		return nil, &ConfigError{Path: "providers", Msg: fmt.Sprintf("expected a mapping of categories, found %T", raw)}
	}
	if len(section) == 0 {
		return nil, &ConfigError{Path: "providers", Msg: "no providers configured"}
	}

	entries, err := categoryEntries(section)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, named := range entries {
		total += len(named)
	}
	if total == 0 {
		return nil, &ConfigError{Path: "providers", Msg: "no providers configured"}
	}

	r := New(o.logger)
	b := &builder{registry: r, opts: o, strict: strict}

	if err := b.buildData(entries[CategoryData]); err != nil {
		return nil, err
	}
	if err := buildCategory(b, CategoryAudio, entries[CategoryAudio], o.factories.Audio); err != nil {
		return nil, err
	}
	if err := buildCategory(b, CategoryImage, entries[CategoryImage], o.factories.Image); err != nil {
		return nil, err
	}
	if err := buildCategory(b, CategorySync, entries[CategorySync], o.factories.Sync); err != nil {
		return nil, err
	}

	o.logger.Info("registry: providers ready",
		zap.Int("data", len(r.data)),
		zap.Int("audio", len(r.audio)),
		zap.Int("image", len(r.image)),
		zap.Int("sync", len(r.sync)),
		zap.Int("skipped", len(r.issues)))
	return r, nil
}

// categoryEntries validates the shape of the providers section
func categoryEntries(section map[string]any) (map[Category]map[string]map[string]any, error) {
	out := make(map[Category]map[string]map[string]any)

	for key, value := range section {
		category := Category(key)
		if !isCategory(category) {
			return nil, &ConfigError{
				Path: "providers." + key,
				Msg:  "unknown provider category" + Suggest(key, categoryNames()),
			}
		}

		entries, ok := value.(map[string]any)
		if !ok {
			if value == nil {
				continue
			}
			return nil, &ConfigError{Path: "providers." + key, Msg: fmt.Sprintf("expected a mapping of named providers, found %T", value)}
		}

		named := make(map[string]map[string]any, len(entries))
		for name, entry := range entries {
			settings, ok := entry.(map[string]any)
			if !ok {
				return nil, legacyError(key)
			}
			named[name] = settings
		}
		out[category] = named
	}
	return out, nil
}

func legacyError(category string) error {
	return &ConfigError{
		Path: "providers." + category,
		Msg: fmt.Sprintf("the single-provider layout is no longer supported; "+
			"move these settings under a provider name, e.g. providers.%s.default: {type: ..., pipelines: [\"*\"]}", category),
	}
}

func isCategory(c Category) bool {
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

type builder struct {
	registry *Registry
	opts     *buildOptions
	strict   bool
}

func (b *builder) prepare(settings map[string]any, schema string) (map[string]any, error) {
	if err := validateSettings(schema, settings); err != nil {
		return nil, err
	}
	if b.opts.baseDir != "" {
		if _, ok := settings["base_dir"]; !ok {
			settings["base_dir"] = b.opts.baseDir
		}
	}
	return settings, nil
}

// buildData registers every data spec first so the overlap check covers
// the whole category before anything is constructed
func (b *builder) buildData(entries map[string]map[string]any) error {
	names := sortedKeys(entries)
	specs := make([]*DataSpec, 0, len(names))

	for _, name := range names {
		spec, err := parseDataSpec(name, copySettings(entries[name]))
		if err != nil {
			return err
		}
		if err := b.registry.checkName(CategoryData, name); err != nil {
			return err
		}
		if err := b.registry.claim(spec); err != nil {
			return err
		}
		specs = append(specs, spec)
	}

	for _, spec := range specs {
		path := fmt.Sprintf("providers.data.%s", spec.Name)
		f, ok := b.opts.factories.Data[spec.Implementation]
		if !ok {
			return &ConfigError{Path: path, Msg: fmt.Sprintf("unknown data implementation %q%s",
				spec.Implementation, Suggest(spec.Implementation, b.opts.factories.Implementations(CategoryData)))}
		}

		settings, err := b.prepare(spec.Settings, f.Schema)
		if err != nil {
			return &ConfigError{Path: path, Msg: err.Error()}
		}
		p, err := f.New(settings)
		if err != nil {
			return &ConfigError{Path: path, Msg: fmt.Sprintf("failed to create data provider: %v", err)}
		}

		b.registry.install(spec, p)
		b.opts.logger.Debug("registry: data provider registered",
			zap.String("name", spec.Name),
			zap.String("type", spec.Implementation),
			zap.Bool("readOnly", spec.ReadOnly),
			zap.Strings("managedFiles", spec.ManagedFiles),
			zap.Strings("pipelines", spec.Pipelines))
	}
	return nil
}

func buildCategory[P any](b *builder, category Category, entries map[string]map[string]any, table map[string]Factory[P]) error {
	for _, name := range sortedKeys(entries) {
		path := fmt.Sprintf("providers.%s.%s", category, name)

		spec, err := parseSpec(category, name, copySettings(entries[name]))
		if err != nil {
			return err
		}

		known := keys(table)
		if spec.Implementation == "" {
			return &ConfigError{Path: path, Msg: fmt.Sprintf("type is required (one of %v)", known)}
		}
		f, ok := table[spec.Implementation]
		if !ok {
			return &ConfigError{Path: path, Msg: fmt.Sprintf("unknown %s implementation %q%s",
				category, spec.Implementation, Suggest(spec.Implementation, known))}
		}

		p, err := construct(b, spec, f)
		if err != nil {
			if b.strict {
				return &ConfigError{Path: path, Msg: err.Error()}
			}
			b.registry.issues = append(b.registry.issues, Issue{
				Category:       category,
				Name:           name,
				Implementation: spec.Implementation,
				Err:            err,
			})
			b.opts.logger.Warn("registry: provider skipped",
				zap.String("category", string(category)),
				zap.String("name", name),
				zap.String("type", spec.Implementation),
				zap.Error(err))
			continue
		}

		if err := b.registry.Register(category, name, p, spec); err != nil {
			return err
		}
		b.opts.logger.Debug("registry: provider registered",
			zap.String("category", string(category)),
			zap.String("name", name),
			zap.String("type", spec.Implementation),
			zap.Strings("pipelines", spec.Pipelines))
	}
	return nil
}

func construct[P any](b *builder, spec *Spec, f Factory[P]) (P, error) {
	settings, err := b.prepare(spec.Settings, f.Schema)
	if err != nil {
		var zero P
		return zero, err
	}
	return f.New(settings)
}

func copySettings(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
