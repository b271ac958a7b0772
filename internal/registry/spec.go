package registry

import (
	"fmt"
	"slices"
	"strings"
)

// Category groups providers by capability
type Category string

const (
	CategoryData  Category = "data"
	CategoryAudio Category = "audio"
	CategoryImage Category = "image"
	CategorySync  Category = "sync"
)

// Categories lists every category in build order
var Categories = []Category{CategoryData, CategoryAudio, CategoryImage, CategorySync}

// Wildcard makes a provider visible to every pipeline
const Wildcard = "*"

// Keys stripped from settings before they reach a factory
const (
	keyType      = "type"
	keyPipelines = "pipelines"
)

// Spec describes one configured provider
type Spec struct {
	Category       Category
	Name           string
	Implementation string
	Settings       map[string]any
	Pipelines      []string
}

// Visible reports whether the provider serves the named pipeline
func (s *Spec) Visible(pipeline string) bool {
	return slices.Contains(s.Pipelines, Wildcard) || slices.Contains(s.Pipelines, pipeline)
}

// DataSpec adds access control to a data provider spec. An empty
// ManagedFiles means the provider is unrestricted.
type DataSpec struct {
	Spec
	ReadOnly     bool
	ManagedFiles []string
}

// Restricted reports whether the provider only serves its managed files
func (d *DataSpec) Restricted() bool {
	return len(d.ManagedFiles) > 0
}

// Manages reports whether id is in scope
func (d *DataSpec) Manages(id string) bool {
	return !d.Restricted() || slices.Contains(d.ManagedFiles, id)
}

// foldKey makes readOnly, read_only and readonly the same key
func foldKey(key string) string {
	key = strings.ToLower(key)
	key = strings.ReplaceAll(key, "_", "")
	return strings.ReplaceAll(key, "-", "")
}

// takeKey removes every spelling of key from settings and returns the value
func takeKey(settings map[string]any, key string) (any, bool) {
	var (
		value any
		found bool
	)
	for k, v := range settings {
		if foldKey(k) == foldKey(key) {
			value, found = v, true
			delete(settings, k)
		}
	}
	return value, found
}

func stringList(path string, v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{t}, nil
	case []string:
		return slices.Clone(t), nil
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("expected a list of strings, found %T", item)}
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, &ConfigError{Path: path, Msg: fmt.Sprintf("expected a list of strings, found %T", v)}
	}
}

func toBool(path string, v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		switch strings.ToLower(t) {
		case "true", "yes", "1":
			return true, nil
		case "false", "no", "0", "":
			return false, nil
		}
	}
	return false, &ConfigError{Path: path, Msg: fmt.Sprintf("expected a boolean, found %v", v)}
}

// parseSpec reads one provider entry. settings is consumed: metadata keys
// are removed and the rest becomes Spec.Settings.
func parseSpec(category Category, name string, settings map[string]any) (*Spec, error) {
	path := fmt.Sprintf("providers.%s.%s", category, name)
	spec := &Spec{Category: category, Name: name}

	if impl, ok := takeKey(settings, keyType); ok {
		s, isString := impl.(string)
		if !isString || s == "" {
			return nil, &ConfigError{Path: path, Msg: "type must be a non-empty string"}
		}
		spec.Implementation = s
	}

	if raw, ok := takeKey(settings, keyPipelines); ok {
		pipelines, err := stringList(path+".pipelines", raw)
		if err != nil {
			return nil, err
		}
		spec.Pipelines = pipelines
	} else if category == CategoryData {
		return nil, &ConfigError{Path: path, Msg: "data providers must declare pipelines (use [\"*\"] for all)"}
	} else {
		spec.Pipelines = []string{Wildcard}
	}

	spec.Settings = settings
	return spec, nil
}

func parseDataSpec(name string, settings map[string]any) (*DataSpec, error) {
	path := fmt.Sprintf("providers.data.%s", name)

	readOnly := false
	if raw, ok := takeKey(settings, "read_only"); ok {
		b, err := toBool(path+".read_only", raw)
		if err != nil {
			return nil, err
		}
		readOnly = b
	}

	var managed []string
	if raw, ok := takeKey(settings, "managed_files"); ok {
		files, err := stringList(path+".managed_files", raw)
		if err != nil {
			return nil, err
		}
		managed = files
	}

	spec, err := parseSpec(CategoryData, name, settings)
	if err != nil {
		return nil, err
	}
	if spec.Implementation == "" {
		spec.Implementation = "json"
	}

	slices.Sort(managed)
	return &DataSpec{Spec: *spec, ReadOnly: readOnly, ManagedFiles: slices.Compact(managed)}, nil
}
