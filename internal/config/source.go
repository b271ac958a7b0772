package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// ReadFileFunc reads a whole file, os.ReadFile by default
type ReadFileFunc func(path string) ([]byte, error)

// Source is one layer of configuration
type Source interface {
	// Name identifies the source in errors and cache keys
	Name() string
	// Priority orders sources; a higher priority wins on conflicts
	Priority() int
	// Load returns the source's mapping. A missing optional source
	// returns an empty mapping.
	Load(read ReadFileFunc) (map[string]any, error)
}

// FileSource loads a YAML, JSON, TOML or HCL file. The format is taken
// from Format when set, otherwise from the file extension.
type FileSource struct {
	Path     string
	Rank     int
	Format   string
	Required bool
}

// NewFileSource creates an optional file source
func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{Path: path, Rank: priority}
}

func (s *FileSource) Name() string  { return "file:" + s.Path }
func (s *FileSource) Priority() int { return s.Rank }

// Load reads and decodes the file
func (s *FileSource) Load(read ReadFileFunc) (map[string]any, error) {
	if read == nil {
		read = os.ReadFile
	}

	data, err := read(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if s.Required {
				return nil, fmt.Errorf("%w: %s", ErrMissingSource, s.Path)
			}
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", s.Path, err)
	}

	format := s.Format
	if format == "" {
		format = FormatFromPath(s.Path)
	}

	values, err := decode(format, s.Path, data)
	if err != nil {
		return nil, &ParseError{Source: s.Path, Format: format, Err: err}
	}
	return values, nil
}

// MapSource provides in-memory configuration, mostly defaults and tests
type MapSource struct {
	Label  string
	Rank   int
	Values map[string]any
}

func (s *MapSource) Name() string  { return "map:" + s.Label }
func (s *MapSource) Priority() int { return s.Rank }

// fingerprint identifies the values, so two map sources sharing a label
// are cached apart
func (s *MapSource) fingerprint() string {
	data, err := json.Marshal(s.Values)
	if err != nil {
		return fmt.Sprintf("%p", s)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:8])
}

// Load returns a deep copy of the values
func (s *MapSource) Load(ReadFileFunc) (map[string]any, error) {
	if s.Values == nil {
		return map[string]any{}, nil
	}
	return deepCopyMap(s.Values), nil
}

// FormatFromPath maps a file extension to a format name
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return "json"
	case ".toml":
		return "toml"
	case ".hcl":
		return "hcl"
	default:
		return "yaml"
	}
}

// SupportedExtensions lists the extensions probed by DefaultSources
var SupportedExtensions = []string{".yaml", ".yml", ".json", ".toml", ".hcl"}

func decode(format, path string, data []byte) (map[string]any, error) {
	var raw any

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case "json":
		if len(strings.TrimSpace(string(data))) == 0 {
			return map[string]any{}, nil
		}
		dec := json.NewDecoder(strings.NewReader(string(data)))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, err
		}
	case "toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		raw = m
	case "hcl":
		m, err := decodeHCL(path, data)
		if err != nil {
			return nil, err
		}
		raw = m
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}

	if raw == nil {
		return map[string]any{}, nil
	}

	m, ok := normalize(raw).(map[string]any)
	if !ok {
		return nil, fmt.Errorf("top level must be a mapping, got %T", raw)
	}
	return m, nil
}

// DefaultSources returns the conventional layering below projectRoot:
// config/core.* first, then config/<env>.* when env is set, then every
// extra file in the order given.
func DefaultSources(projectRoot, env string, extra []string) []Source {
	sources := []Source{probe(filepath.Join(projectRoot, "config", "core"), 0)}
	if env != "" {
		sources = append(sources, probe(filepath.Join(projectRoot, "config", env), 10))
	}
	for i, path := range extra {
		sources = append(sources, &FileSource{Path: path, Rank: 100 + i, Required: true})
	}
	return sources
}

// probe picks the first existing file among the supported extensions.
// When none exists the .yaml path is used and loads as empty.
func probe(base string, priority int) Source {
	for _, ext := range SupportedExtensions {
		if _, err := os.Stat(base + ext); err == nil {
			return NewFileSource(base+ext, priority)
		}
	}
	return NewFileSource(base+".yaml", priority)
}
