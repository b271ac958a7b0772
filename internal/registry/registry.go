// Package registry turns the providers section of the configuration into
// live provider instances and decides which of them each pipeline sees.
//
// Data providers are wrapped so that their read-only flag and managed
// files are enforced on every call. The registry is an explicit value
// created by Build; nothing is global.
package registry

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// Issue records an optional provider that was skipped during Build
type Issue struct {
	Category       Category
	Name           string
	Implementation string
	Err            error
}

func (i Issue) String() string {
	return fmt.Sprintf("%s provider %q (%s): %v", i.Category, i.Name, i.Implementation, i.Err)
}

// Registry holds the provider instances of one configuration
type Registry struct {
	data  map[string]*guardedData
	audio map[string]provider.AudioProvider
	image map[string]provider.ImageProvider
	sync  map[string]provider.SyncProvider

	specs     map[Category]map[string]*Spec
	dataSpecs []*DataSpec
	issues    []Issue
	logger    *zap.Logger
}

// New creates an empty registry
func New(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{logger: logger}
	r.Reset()
	return r
}

// Reset removes every provider, spec and issue
func (r *Registry) Reset() {
	r.data = make(map[string]*guardedData)
	r.audio = make(map[string]provider.AudioProvider)
	r.image = make(map[string]provider.ImageProvider)
	r.sync = make(map[string]provider.SyncProvider)
	r.specs = make(map[Category]map[string]*Spec)
	r.dataSpecs = nil
	r.issues = nil
}

// Register adds a provider under category and name. spec may be nil, in
// which case the provider is visible to every pipeline. Data providers
// registered this way are unrestricted and writable; use RegisterData for
// access control.
func (r *Registry) Register(category Category, name string, p any, spec *Spec) error {
	if spec == nil {
		spec = &Spec{Pipelines: []string{Wildcard}}
	}
	s := *spec
	s.Category = category
	s.Name = name

	if category == CategoryData {
		dp, ok := p.(provider.DataProvider)
		if !ok {
			return fmt.Errorf("%T is not a data provider", p)
		}
		return r.RegisterData(DataSpec{Spec: s}, dp)
	}

	if err := r.checkName(category, name); err != nil {
		return err
	}

	switch category {
	case CategoryAudio:
		ap, ok := p.(provider.AudioProvider)
		if !ok {
			return fmt.Errorf("%T is not an audio provider", p)
		}
		r.audio[name] = ap
	case CategoryImage:
		ip, ok := p.(provider.ImageProvider)
		if !ok {
			return fmt.Errorf("%T is not an image provider", p)
		}
		r.image[name] = ip
	case CategorySync:
		sp, ok := p.(provider.SyncProvider)
		if !ok {
			return fmt.Errorf("%T is not a sync provider", p)
		}
		r.sync[name] = sp
	default:
		return &ConfigError{Msg: fmt.Sprintf("unknown provider category %q%s", category, Suggest(string(category), categoryNames()))}
	}

	r.addSpec(&s)
	return nil
}

// RegisterData adds an access-controlled data provider. A managed file
// already claimed by another restricted provider is rejected and the
// registry is left unchanged.
func (r *Registry) RegisterData(spec DataSpec, p provider.DataProvider) error {
	spec.Category = CategoryData
	if err := r.checkName(CategoryData, spec.Name); err != nil {
		return err
	}
	if err := r.claim(&spec); err != nil {
		return err
	}
	r.install(&spec, p)
	return nil
}

// install makes an already claimed data provider available
func (r *Registry) install(spec *DataSpec, p provider.DataProvider) {
	r.data[spec.Name] = &guardedData{spec: spec, inner: p}
	r.addSpec(&spec.Spec)
}

// claim adds spec to the data specs and re-runs the overlap check over all
// restricted providers
func (r *Registry) claim(spec *DataSpec) error {
	r.dataSpecs = append(r.dataSpecs, spec)
	if err := checkOverlaps(r.dataSpecs); err != nil {
		r.dataSpecs = r.dataSpecs[:len(r.dataSpecs)-1]
		return err
	}
	return nil
}

func checkOverlaps(specs []*DataSpec) error {
	for i, a := range specs {
		if !a.Restricted() {
			continue
		}
		for _, b := range specs[i+1:] {
			if !b.Restricted() {
				continue
			}
			for _, file := range a.ManagedFiles {
				if slices.Contains(b.ManagedFiles, file) {
					return &ConflictError{File: file, First: a.Name, Second: b.Name}
				}
			}
		}
	}
	return nil
}

func (r *Registry) checkName(category Category, name string) error {
	if name == "" {
		return fmt.Errorf("%s provider name must not be empty", category)
	}
	if _, exists := r.specs[category][name]; exists {
		return &ConfigError{Msg: fmt.Sprintf("%s provider %q is already registered", category, name)}
	}
	if category == CategoryData {
		for _, s := range r.dataSpecs {
			if s.Name == name {
				return &ConfigError{Msg: fmt.Sprintf("data provider %q is already registered", name)}
			}
		}
	}
	return nil
}

func (r *Registry) addSpec(spec *Spec) {
	if r.specs[spec.Category] == nil {
		r.specs[spec.Category] = make(map[string]*Spec)
	}
	r.specs[spec.Category][spec.Name] = spec
}

// Get returns a provider of any category
func (r *Registry) Get(category Category, name string) (any, bool) {
	switch category {
	case CategoryData:
		return r.Data(name)
	case CategoryAudio:
		return r.Audio(name)
	case CategoryImage:
		return r.Image(name)
	case CategorySync:
		return r.Sync(name)
	}
	return nil, false
}

// Data returns the access-controlled data provider
func (r *Registry) Data(name string) (provider.DataProvider, bool) {
	p, ok := r.data[name]
	if !ok {
		return nil, false
	}
	return p, true
}

func (r *Registry) Audio(name string) (provider.AudioProvider, bool) {
	p, ok := r.audio[name]
	return p, ok
}

func (r *Registry) Image(name string) (provider.ImageProvider, bool) {
	p, ok := r.image[name]
	return p, ok
}

func (r *Registry) Sync(name string) (provider.SyncProvider, bool) {
	p, ok := r.sync[name]
	return p, ok
}

// Spec returns the spec a provider was registered with
func (r *Registry) Spec(category Category, name string) (*Spec, bool) {
	s, ok := r.specs[category][name]
	return s, ok
}

// DataSpec returns the access rules of a data provider
func (r *Registry) DataSpec(name string) (*DataSpec, bool) {
	p, ok := r.data[name]
	if !ok {
		return nil, false
	}
	return p.spec, true
}

// Names lists the registered providers of a category in sorted order
func (r *Registry) Names(category Category) []string {
	names := make([]string, 0, len(r.specs[category]))
	for name := range r.specs[category] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Specs returns every registered spec ordered by category, then name
func (r *Registry) Specs() []*Spec {
	var specs []*Spec
	for _, category := range Categories {
		for _, name := range r.Names(category) {
			specs = append(specs, r.specs[category][name])
		}
	}
	return specs
}

// Issues lists optional providers skipped during Build
func (r *Registry) Issues() []Issue {
	return slices.Clone(r.issues)
}

// ProvidersFor returns every provider visible to the pipeline: those
// assigned to "*" and those naming the pipeline exactly
func (r *Registry) ProvidersFor(pipeline string) *ProviderSet {
	set := newProviderSet()
	for _, category := range Categories {
		for _, name := range r.Names(category) {
			if !r.specs[category][name].Visible(pipeline) {
				continue
			}
			switch category {
			case CategoryData:
				set.Data[name] = r.data[name]
				set.dataSpecs[name] = r.data[name].spec
			case CategoryAudio:
				set.Audio[name] = r.audio[name]
			case CategoryImage:
				set.Image[name] = r.image[name]
			case CategorySync:
				set.Sync[name] = r.sync[name]
			}
		}
	}
	return set
}

func categoryNames() []string {
	names := make([]string, len(Categories))
	for i, c := range Categories {
		names[i] = string(c)
	}
	return names
}
