// Package storage implements the file-backed data provider. Every
// identifier maps to one JSON document below the store root; there is no
// index file.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// Config holds the settings of a JSON store
type Config struct {
	Root      string `mapstructure:"root"`
	BackupDir string `mapstructure:"backup_dir"`
	Indent    bool   `mapstructure:"indent"`
	// BaseDir anchors a relative Root, normally the project root
	BaseDir string `mapstructure:"base_dir"`
}

// Schema validates the settings of a JSON store
const Schema = `{
  "type": "object",
  "properties": {
    "root": {"type": "string", "minLength": 1},
    "backup_dir": {"type": "string"},
    "indent": {"type": ["boolean", "string"]},
    "base_dir": {"type": "string"}
  }
}`

// DefaultConfig returns a store rooted at ./data
func DefaultConfig() *Config {
	return &Config{
		Root:   "data",
		Indent: true,
	}
}

// JSONStore stores documents as <root>/<id>.json
type JSONStore struct {
	config *Config
}

var (
	_ provider.DataProvider = (*JSONStore)(nil)
	_ provider.Backuper     = (*JSONStore)(nil)
)

// New creates a store. The root directory is created on first save.
func New(config *Config) (*JSONStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Root == "" {
		return nil, fmt.Errorf("storage root is required")
	}
	config.Root = provider.ResolvePath(config.BaseDir, config.Root)
	if config.BackupDir == "" {
		config.BackupDir = filepath.Join(config.Root, ".backups")
	}
	config.BackupDir = provider.ResolvePath(config.BaseDir, config.BackupDir)
	return &JSONStore{config: config}, nil
}

// NewFromSettings decodes provider settings into a Config
func NewFromSettings(settings map[string]any) (*JSONStore, error) {
	config := DefaultConfig()
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return New(config)
}

// Root returns the directory documents are stored in
func (s *JSONStore) Root() string {
	return s.config.Root
}

func (s *JSONStore) path(id string) (string, error) {
	if err := ValidateID(id); err != nil {
		return "", err
	}
	return filepath.Join(s.config.Root, id+".json"), nil
}

// ValidateID rejects identifiers that would escape the store root
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("empty document id")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return fmt.Errorf("invalid document id %q", id)
	}
	return nil
}

// Load reads and decodes a document
func (s *JSONStore) Load(id string) (provider.Document, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", provider.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var doc provider.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	if doc == nil {
		doc = provider.Document{}
	}
	return doc, nil
}

// Save writes a document through a temporary file and rename so readers
// never see a partial file
func (s *JSONStore) Save(id string, doc provider.Document) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	var data []byte
	if s.config.Indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", id, err)
	}

	if err := os.MkdirAll(s.config.Root, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	tmp, err := os.CreateTemp(s.config.Root, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", id, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to save %s: %w", id, err)
	}
	return nil
}

// Exists reports whether a document is stored
func (s *JSONStore) Exists(id string) (bool, error) {
	path, err := s.path(id)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// List returns the stored identifiers in sorted order
func (s *JSONStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.config.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list %s: %w", s.config.Root, err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".json" {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}
