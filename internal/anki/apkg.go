package anki

import (
	"archive/zip"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"codeberg.org/snonux/cardforge/internal"
	"codeberg.org/snonux/cardforge/internal/provider"
)

// APKGConfig holds the settings of the .apkg sync target
type APKGConfig struct {
	OutputDir       string `mapstructure:"output_dir"`
	DeckDescription string `mapstructure:"deck_description"`
	BaseDir         string `mapstructure:"base_dir"`
}

// APKGSchema validates the settings of the .apkg sync target
const APKGSchema = `{
  "type": "object",
  "properties": {
    "output_dir": {"type": "string", "minLength": 1},
    "deck_description": {"type": "string"},
    "base_dir": {"type": "string"}
  }
}`

// APKGProvider writes one Anki package per deck. Every SyncCards call
// rewrites <output_dir>/<deck>.apkg with the cards it is given.
type APKGProvider struct {
	config   *APKGConfig
	template provider.NoteTemplate
	media    map[string]string // media name -> local path
	now      func() time.Time
}

var _ provider.SyncProvider = (*APKGProvider)(nil)

// NewAPKGProvider creates the package writer
func NewAPKGProvider(config *APKGConfig) (*APKGProvider, error) {
	if config == nil {
		config = &APKGConfig{}
	}
	if config.OutputDir == "" {
		config.OutputDir = "anki"
	}
	if config.DeckDescription == "" {
		config.DeckDescription = "Bulgarian vocabulary cards created by cardforge"
	}
	config.OutputDir = provider.ResolvePath(config.BaseDir, config.OutputDir)

	return &APKGProvider{
		config:   config,
		template: DefaultTemplate(),
		media:    make(map[string]string),
		now:      time.Now,
	}, nil
}

// NewAPKGFromSettings creates the provider from registry settings
func NewAPKGFromSettings(settings map[string]any) (*APKGProvider, error) {
	config := &APKGConfig{}
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewAPKGProvider(config)
}

func (p *APKGProvider) Name() string {
	return "apkg"
}

// PackagePath returns the file a deck is written to
func (p *APKGProvider) PackagePath(deck string) string {
	return filepath.Join(p.config.OutputDir, internal.SanitizeFilename(deck)+".apkg")
}

// TestConnection checks that the output directory is writable
func (p *APKGProvider) TestConnection(context.Context) error {
	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.CreateTemp(p.config.OutputDir, ".probe-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", p.config.OutputDir, err)
	}
	f.Close()
	return os.Remove(f.Name())
}

// SyncTemplates replaces the note type used for the next packages. Only
// the first template is used.
func (p *APKGProvider) SyncTemplates(_ context.Context, templates []provider.NoteTemplate) (provider.SyncReport, error) {
	var report provider.SyncReport
	for i, tmpl := range templates {
		if i > 0 {
			report.Skipped++
			continue
		}
		if tmpl.Name == "" || tmpl.Front == "" || tmpl.Back == "" {
			report.Failed = append(report.Failed, provider.ItemError{Item: tmpl.Name, Err: errors.New("template needs a name, front and back")})
			continue
		}
		if len(tmpl.Fields) == 0 {
			tmpl.Fields = append([]string(nil), noteFields...)
		}
		p.template = tmpl
		report.Updated++
	}
	return report, nil
}

// SyncMedia registers extra media files for the next packages
func (p *APKGProvider) SyncMedia(_ context.Context, files []provider.MediaFile) (provider.SyncReport, error) {
	var report provider.SyncReport
	for _, file := range files {
		if !fileExists(file.Path) {
			report.Failed = append(report.Failed, provider.ItemError{Item: file.Name, Err: fmt.Errorf("missing media file %s", file.Path)})
			continue
		}
		if existing, ok := p.media[file.Name]; ok && existing == file.Path {
			report.Skipped++
			continue
		}
		p.media[file.Name] = file.Path
		report.Created++
	}
	return report, nil
}

// SyncCards writes the deck package. Cards already in the previous
// package count as updated.
func (p *APKGProvider) SyncCards(ctx context.Context, deck string, cards []provider.Card) (provider.SyncReport, error) {
	var report provider.SyncReport
	if strings.TrimSpace(deck) == "" {
		return report, fmt.Errorf("apkg: deck name is required")
	}

	existing, err := p.ListExisting(ctx, deck)
	if err != nil {
		return report, err
	}
	known := make(map[string]bool, len(existing))
	for _, id := range existing {
		known[id] = true
	}

	pkg := &apkgBuilder{
		deckName:    deck,
		description: p.config.DeckDescription,
		deckID:      stableID(deck),
		modelID:     stableID(p.template.Name),
		template:    p.template,
		media:       make(map[string]int),
		now:         p.now(),
	}
	for name, path := range p.media {
		pkg.addMedia(name, path)
	}
	for _, card := range cards {
		if strings.TrimSpace(card.Bulgarian) == "" {
			report.Failed = append(report.Failed, provider.ItemError{Item: card.ID, Err: errors.New("card without Bulgarian text")})
			continue
		}
		if card.ID == "" {
			card.ID = internal.GenerateCardID(card.Bulgarian)
		}
		pkg.cards = append(pkg.cards, card)
		if known[card.ID] {
			report.Updated++
		} else {
			report.Created++
		}
	}

	if err := os.MkdirAll(p.config.OutputDir, 0755); err != nil {
		return report, fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := pkg.write(p.PackagePath(deck)); err != nil {
		return report, err
	}
	return report, nil
}

// ListExisting reads the card IDs of the deck's current package
func (p *APKGProvider) ListExisting(_ context.Context, deck string) ([]string, error) {
	ids, err := readPackageIDs(p.PackagePath(deck))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return ids, err
}

// stableID derives a positive Anki ID from a name so re-imports update the
// same deck and note type
func stableID(name string) int64 {
	h := fnv.New64a()
	h.Write([]byte(name))
	return int64(h.Sum64()>>12) + 1
}

// apkgBuilder assembles one package
type apkgBuilder struct {
	deckName     string
	description  string
	deckID       int64
	modelID      int64
	template     provider.NoteTemplate
	cards        []provider.Card
	media        map[string]int // media name -> file number inside the zip
	mediaPaths   []string
	mediaCounter int
	now          time.Time
}

func (b *apkgBuilder) addMedia(name, path string) {
	if _, ok := b.media[name]; ok {
		return
	}
	b.media[name] = b.mediaCounter
	b.mediaPaths = append(b.mediaPaths, path)
	b.mediaCounter++
}

// write builds the package in a temp directory and moves it into place
func (b *apkgBuilder) write(outputPath string) error {
	tempDir, err := os.MkdirTemp("", "anki_export_*")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	notes := make([]renderedNote, len(b.cards))
	for i, card := range b.cards {
		notes[i] = renderNote(card)
		for _, file := range notes[i].media {
			b.addMedia(file.Name, file.Path)
		}
	}

	for i, path := range b.mediaPaths {
		if err := copyFile(path, filepath.Join(tempDir, strconv.Itoa(i))); err != nil {
			return fmt.Errorf("failed to copy media file %s: %w", path, err)
		}
	}
	if err := b.writeMediaMapping(tempDir); err != nil {
		return fmt.Errorf("failed to create media mapping: %w", err)
	}
	if err := b.createDatabase(filepath.Join(tempDir, "collection.anki2"), notes); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	tmpZip := outputPath + ".tmp"
	if err := zipDirectory(tempDir, tmpZip); err != nil {
		os.Remove(tmpZip)
		return fmt.Errorf("failed to create zip package: %w", err)
	}
	return os.Rename(tmpZip, outputPath)
}

func (b *apkgBuilder) writeMediaMapping(tempDir string) error {
	mapping := make(map[string]string, len(b.media))
	for name, num := range b.media {
		mapping[strconv.Itoa(num)] = name
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(tempDir, "media"), data, 0644)
}

func (b *apkgBuilder) createDatabase(dbPath string, notes []renderedNote) error {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, query := range schemaStatements {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to create tables: %w", err)
		}
	}
	if err := b.insertCollection(tx); err != nil {
		return fmt.Errorf("failed to insert collection: %w", err)
	}
	if err := b.insertNotes(tx, notes); err != nil {
		return fmt.Errorf("failed to insert notes and cards: %w", err)
	}
	return tx.Commit()
}

var schemaStatements = []string{
	`CREATE TABLE col (
		id integer PRIMARY KEY, crt integer NOT NULL, mod integer NOT NULL,
		scm integer NOT NULL, ver integer NOT NULL, dty integer NOT NULL,
		usn integer NOT NULL, ls integer NOT NULL, conf text NOT NULL,
		models text NOT NULL, decks text NOT NULL, dconf text NOT NULL,
		tags text NOT NULL
	)`,
	`CREATE TABLE notes (
		id integer PRIMARY KEY, guid text NOT NULL, mid integer NOT NULL,
		mod integer NOT NULL, usn integer NOT NULL, tags text NOT NULL,
		flds text NOT NULL, sfld text NOT NULL, csum integer NOT NULL,
		flags integer NOT NULL, data text NOT NULL
	)`,
	`CREATE TABLE cards (
		id integer PRIMARY KEY, nid integer NOT NULL, did integer NOT NULL,
		ord integer NOT NULL, mod integer NOT NULL, usn integer NOT NULL,
		type integer NOT NULL, queue integer NOT NULL, due integer NOT NULL,
		ivl integer NOT NULL, factor integer NOT NULL, reps integer NOT NULL,
		lapses integer NOT NULL, left integer NOT NULL, odue integer NOT NULL,
		odid integer NOT NULL, flags integer NOT NULL, data text NOT NULL
	)`,
	`CREATE TABLE revlog (
		id integer PRIMARY KEY, cid integer NOT NULL, usn integer NOT NULL,
		ease integer NOT NULL, ivl integer NOT NULL, lastIvl integer NOT NULL,
		factor integer NOT NULL, time integer NOT NULL, type integer NOT NULL
	)`,
	`CREATE TABLE graves (usn integer NOT NULL, oid integer NOT NULL, type integer NOT NULL)`,
	`CREATE INDEX ix_notes_csum ON notes (csum)`,
	`CREATE INDEX ix_notes_usn ON notes (usn)`,
	`CREATE INDEX ix_cards_usn ON cards (usn)`,
	`CREATE INDEX ix_cards_nid ON cards (nid)`,
	`CREATE INDEX ix_cards_sched ON cards (did, queue, due)`,
	`CREATE INDEX ix_revlog_usn ON revlog (usn)`,
	`CREATE INDEX ix_revlog_cid ON revlog (cid)`,
}

func deckConfig(id int64, name, desc string, mod int64) map[string]any {
	return map[string]any{
		"id": id, "name": name, "mod": mod, "desc": desc,
		"collapsed": false, "dyn": 0, "conf": 1, "usn": 0,
		"newToday": []int{0, 0}, "revToday": []int{0, 0},
		"lrnToday": []int{0, 0}, "timeToday": []int{0, 0},
		"browserCollapsed": false, "extendNew": 10, "extendRev": 50,
	}
}

func (b *apkgBuilder) insertCollection(tx *sql.Tx) error {
	now := b.now.Unix()

	deckKey := strconv.FormatInt(b.deckID, 10)
	decks, _ := json.Marshal(map[string]any{
		"1":     deckConfig(1, "Default", "", now),
		deckKey: deckConfig(b.deckID, b.deckName, b.description, now),
	})
	models, _ := json.Marshal(map[string]any{
		strconv.FormatInt(b.modelID, 10): b.noteType(now),
	})
	conf, _ := json.Marshal(map[string]any{
		"nextPos": 1, "estTimes": true, "activeDecks": []int64{1},
		"sortType": "noteFld", "sortBackwards": false, "addToCur": true,
		"curDeck": 1, "newSpread": 0, "dueCounts": true,
		"collapseTime": 1200, "timeLim": 0, "schedVer": 1,
		"curModel": strconv.FormatInt(b.modelID, 10), "dayLearnFirst": false,
	})
	dconf, _ := json.Marshal(map[string]any{
		"1": map[string]any{
			"id": 1, "name": "Default", "dyn": 0,
			"new": map[string]any{
				"delays": []int{1, 10}, "ints": []int{1, 4, 7}, "initialFactor": 2500,
				"perDay": 20, "order": 1, "bury": true, "separate": true,
			},
			"lapse": map[string]any{"delays": []int{10}, "mult": 0, "minInt": 1, "leechFails": 8, "leechAction": 0},
			"rev": map[string]any{
				"perDay": 100, "ease4": 1.3, "fuzz": 0.05, "maxIvl": 36500,
				"ivlFct": 1, "bury": true, "minSpace": 1,
			},
			"timer": 0, "maxTaken": 60, "usn": 0, "mod": now, "autoplay": true, "replayq": true,
		},
	})

	_, err := tx.Exec(`INSERT INTO col VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		1, now, now*1000, now*1000, 11, 0, 0, 0,
		string(conf), string(models), string(decks), string(dconf), "{}")
	return err
}

// noteType describes the forward and reverse card templates
func (b *apkgBuilder) noteType(mod int64) map[string]any {
	fields := make([]map[string]any, len(b.template.Fields))
	for i, name := range b.template.Fields {
		fields[i] = map[string]any{
			"name": name, "ord": i, "sticky": false, "rtl": false,
			"font": "Arial", "size": 20, "media": []string{},
		}
	}

	return map[string]any{
		"id":        b.modelID,
		"name":      b.template.Name,
		"type":      0,
		"mod":       mod,
		"usn":       -1,
		"sortf":     0,
		"did":       b.deckID,
		"req":       [][]any{{0, "all", []int{0}}, {1, "all", []int{1}}},
		"vers":      []int{},
		"tags":      []string{},
		"latexPre":  "\\documentclass[12pt]{article}\n\\special{papersize=3in,5in}\n\\usepackage[utf8]{inputenc}\n\\usepackage{amssymb,amsmath}\n\\pagestyle{empty}\n\\setlength{\\parindent}{0in}\n\\begin{document}",
		"latexPost": "\\end{document}",
		"flds":      fields,
		"tmpls": []map[string]any{
			{"name": "Forward", "ord": 0, "qfmt": b.template.Front, "afmt": b.template.Back, "did": nil, "bqfmt": "", "bafmt": ""},
			{"name": "Reverse", "ord": 1, "qfmt": reverseFrontTemplate, "afmt": reverseBackTemplate, "did": nil, "bqfmt": "", "bafmt": ""},
		},
		"css": b.template.CSS,
	}
}

func (b *apkgBuilder) insertNotes(tx *sql.Tx, notes []renderedNote) error {
	now := b.now
	for i, card := range b.cards {
		// leave room for two cards per note
		noteID := now.UnixMilli() + int64(i*3)
		fields := strings.Join(notes[i].fields, "\x1f")
		tags := ""
		if len(card.Tags) > 0 {
			tags = " " + strings.Join(card.Tags, " ") + " "
		}

		_, err := tx.Exec(`INSERT INTO notes VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			noteID, card.ID, b.modelID, now.Unix(), -1, tags, fields, card.Bulgarian, 0, 0, "")
		if err != nil {
			return fmt.Errorf("failed to insert note %s: %w", card.ID, err)
		}

		for ord := 0; ord < 2; ord++ {
			_, err = tx.Exec(`INSERT INTO cards VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				noteID+int64(ord)+1, // id
				noteID,              // nid
				b.deckID,            // did
				ord,                 // template
				now.Unix(),          // mod
				-1,                  // usn
				0, 0,                // type and queue: new
				noteID+int64(ord),   // due position
				0, 0, 0, 0, 0, 0, 0, 0, "")
			if err != nil {
				return fmt.Errorf("failed to insert card %s: %w", card.ID, err)
			}
		}
	}
	return nil
}

// readPackageIDs returns the note GUIDs stored in a package
func readPackageIDs(path string) ([]string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	tempDir, err := os.MkdirTemp("", "anki_read_*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "collection.anki2")
	found := false
	for _, file := range reader.File {
		if file.Name != "collection.anki2" {
			continue
		}
		if err := extract(file, dbPath); err != nil {
			return nil, fmt.Errorf("failed to extract collection: %w", err)
		}
		found = true
	}
	if !found {
		return nil, fmt.Errorf("%s has no collection.anki2", path)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.Query(`SELECT guid FROM notes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to read notes: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func extract(file *zip.File, dst string) error {
	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// zipDirectory packs the files of dir into a flat zip archive
func zipDirectory(dir, outputPath string) error {
	zipFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer zipFile.Close()

	archive := zip.NewWriter(zipFile)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		writer, err := archive.Create(entry.Name())
		if err != nil {
			return err
		}
		file, err := os.Open(filepath.Join(dir, entry.Name()))
		if err != nil {
			return err
		}
		_, err = io.Copy(writer, file)
		file.Close()
		if err != nil {
			return err
		}
	}
	return archive.Close()
}

func copyFile(src, dst string) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	dstFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dstFile, srcFile); err != nil {
		dstFile.Close()
		return err
	}
	return dstFile.Close()
}
