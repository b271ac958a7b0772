package anki

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"codeberg.org/snonux/cardforge/internal"
	"codeberg.org/snonux/cardforge/internal/provider"
)

// CSVConfig holds the settings of the CSV sync target
type CSVConfig struct {
	OutputDir      string `mapstructure:"output_dir"`
	MediaDir       string `mapstructure:"media_dir"` // collection.media folder files are copied to
	IncludeHeaders bool   `mapstructure:"include_headers"`
	BaseDir        string `mapstructure:"base_dir"`
}

// CSVSchema validates the settings of the CSV sync target
const CSVSchema = `{
  "type": "object",
  "properties": {
    "output_dir": {"type": "string", "minLength": 1},
    "media_dir": {"type": "string"},
    "include_headers": {"type": ["boolean", "string"]},
    "base_dir": {"type": "string"}
  }
}`

var csvHeaders = []string{"ID", "Bulgarian", "Translation", "Phonetic", "Audio", "Image", "Notes", "Tags"}

// CSVProvider writes <output_dir>/<deck>.csv for Anki's text importer
type CSVProvider struct {
	config *CSVConfig
}

var _ provider.SyncProvider = (*CSVProvider)(nil)

// NewCSVProvider creates the CSV writer
func NewCSVProvider(config *CSVConfig) (*CSVProvider, error) {
	if config == nil {
		config = &CSVConfig{IncludeHeaders: true}
	}
	if config.OutputDir == "" {
		config.OutputDir = "anki"
	}
	config.OutputDir = provider.ResolvePath(config.BaseDir, config.OutputDir)
	if config.MediaDir == "" {
		config.MediaDir = filepath.Join(config.OutputDir, "collection.media")
	}
	config.MediaDir = provider.ResolvePath(config.BaseDir, config.MediaDir)
	return &CSVProvider{config: config}, nil
}

// NewCSVFromSettings creates the provider from registry settings
func NewCSVFromSettings(settings map[string]any) (*CSVProvider, error) {
	config := &CSVConfig{IncludeHeaders: true}
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewCSVProvider(config)
}

func (p *CSVProvider) Name() string {
	return "csv"
}

// FilePath returns the CSV file of a deck
func (p *CSVProvider) FilePath(deck string) string {
	return filepath.Join(p.config.OutputDir, internal.SanitizeFilename(deck)+".csv")
}

// TestConnection checks the output directory can be created
func (p *CSVProvider) TestConnection(context.Context) error {
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// SyncTemplates has nothing to do; the note type is picked at import time
func (p *CSVProvider) SyncTemplates(_ context.Context, templates []provider.NoteTemplate) (provider.SyncReport, error) {
	return provider.SyncReport{Skipped: len(templates)}, nil
}

// SyncMedia copies files into the media folder
func (p *CSVProvider) SyncMedia(_ context.Context, files []provider.MediaFile) (provider.SyncReport, error) {
	var report provider.SyncReport
	for _, file := range files {
		target := filepath.Join(p.config.MediaDir, file.Name)
		if sameSize(file.Path, target) {
			report.Skipped++
			continue
		}
		if err := copyFile(file.Path, target); err != nil {
			report.Failed = append(report.Failed, provider.ItemError{Item: file.Name, Err: err})
			continue
		}
		report.Created++
	}
	return report, nil
}

// SyncCards rewrites the deck file and copies the card media
func (p *CSVProvider) SyncCards(ctx context.Context, deck string, cards []provider.Card) (provider.SyncReport, error) {
	var report provider.SyncReport
	if strings.TrimSpace(deck) == "" {
		return report, fmt.Errorf("csv: deck name is required")
	}

	existing, err := p.ListExisting(ctx, deck)
	if err != nil {
		return report, err
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return report, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := p.FilePath(deck)
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return report, fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer os.Remove(tmp)

	writer := csv.NewWriter(file)
	if p.config.IncludeHeaders {
		writer.Write(csvHeaders)
	}

	var media []provider.MediaFile
	for _, card := range cards {
		if card.ID == "" {
			card.ID = internal.GenerateCardID(card.Bulgarian)
		}
		rendered := renderNote(card)
		media = append(media, rendered.media...)

		var audio, image string
		for _, m := range rendered.media {
			if m.Path == card.AudioFile {
				audio = soundTag(m.Name)
			} else {
				image = imageTag(m.Name)
			}
		}
		writer.Write([]string{
			card.ID,
			card.Bulgarian,
			card.Translation,
			card.Phonetic,
			audio,
			image,
			card.Notes,
			strings.Join(card.Tags, " "),
		})
		if known[card.ID] {
			report.Updated++
		} else {
			report.Created++
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		file.Close()
		return report, fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := file.Close(); err != nil {
		return report, fmt.Errorf("failed to write CSV: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return report, fmt.Errorf("failed to save CSV: %w", err)
	}

	mediaReport, _ := p.SyncMedia(ctx, media)
	report.Failed = append(report.Failed, mediaReport.Failed...)
	return report, nil
}

// ListExisting reads the IDs from the deck file
func (p *CSVProvider) ListExisting(_ context.Context, deck string) ([]string, error) {
	file, err := os.Open(p.FilePath(deck))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", p.FilePath(deck), err)
	}

	var ids []string
	for i, record := range records {
		if len(record) == 0 || record[0] == "" || (i == 0 && record[0] == csvHeaders[0]) {
			continue
		}
		ids = append(ids, record[0])
	}
	return ids, nil
}

func sameSize(src, dst string) bool {
	a, err := os.Stat(src)
	if err != nil {
		return false
	}
	b, err := os.Stat(dst)
	return err == nil && a.Size() == b.Size()
}
