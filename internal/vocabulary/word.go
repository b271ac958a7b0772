package vocabulary

import (
	"maps"
	"path/filepath"
	"strings"

	"github.com/spf13/cast"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// Document keys of a stored word
const (
	keyID          = "id"
	keyBulgarian   = "bulgarian"
	keyTranslation = "translation"
	keyPhonetic    = "phonetic"
	keyNotes       = "notes"
	keyAudioFile   = "audio_file"
	keyImageFile   = "image_file"
	keyTags        = "tags"
	keyCreatedAt   = "created_at"
)

// Word is one vocabulary entry. Media paths are stored relative to the
// project root when they lie below it.
type Word struct {
	ID          string
	Bulgarian   string
	Translation string
	Phonetic    string
	Notes       string
	AudioFile   string
	ImageFile   string
	Tags        []string
	CreatedAt   string

	// Source is the data provider the word was loaded from
	Source string

	extra map[string]any
	dirty bool
}

// WordFromDocument decodes a stored document. ok is false for documents
// that are not vocabulary words.
func WordFromDocument(id string, doc provider.Document) (*Word, bool) {
	bulgarian := strings.TrimSpace(cast.ToString(doc[keyBulgarian]))
	if bulgarian == "" {
		return nil, false
	}

	w := &Word{
		ID:          id,
		Bulgarian:   bulgarian,
		Translation: cast.ToString(doc[keyTranslation]),
		Phonetic:    cast.ToString(doc[keyPhonetic]),
		Notes:       cast.ToString(doc[keyNotes]),
		AudioFile:   cast.ToString(doc[keyAudioFile]),
		ImageFile:   cast.ToString(doc[keyImageFile]),
		CreatedAt:   cast.ToString(doc[keyCreatedAt]),
		extra:       make(map[string]any),
	}
	if tags, ok := doc[keyTags]; ok && tags != nil {
		w.Tags = cast.ToStringSlice(tags)
	}

	for k, v := range doc {
		switch k {
		case keyID, keyBulgarian, keyTranslation, keyPhonetic, keyNotes,
			keyAudioFile, keyImageFile, keyTags, keyCreatedAt:
		default:
			w.extra[k] = v
		}
	}
	return w, true
}

// Document encodes the word. Keys the word does not know are kept as
// they were loaded.
func (w *Word) Document() provider.Document {
	doc := provider.Document{}
	maps.Copy(doc, w.extra)

	doc[keyID] = w.ID
	doc[keyBulgarian] = w.Bulgarian
	set := func(key, value string) {
		if value != "" {
			doc[key] = value
		}
	}
	set(keyTranslation, w.Translation)
	set(keyPhonetic, w.Phonetic)
	set(keyNotes, w.Notes)
	set(keyAudioFile, filepath.ToSlash(w.AudioFile))
	set(keyImageFile, filepath.ToSlash(w.ImageFile))
	set(keyCreatedAt, w.CreatedAt)
	if len(w.Tags) > 0 {
		doc[keyTags] = append([]string(nil), w.Tags...)
	}
	return doc
}

// Card converts the word for a sync provider with absolute media paths
func (w *Word) Card(projectRoot string) provider.Card {
	return provider.Card{
		ID:          w.ID,
		Bulgarian:   w.Bulgarian,
		Translation: w.Translation,
		Phonetic:    w.Phonetic,
		Notes:       w.Notes,
		AudioFile:   provider.ResolvePath(projectRoot, filepath.FromSlash(w.AudioFile)),
		ImageFile:   provider.ResolvePath(projectRoot, filepath.FromSlash(w.ImageFile)),
		Tags:        append([]string(nil), w.Tags...),
	}
}

// Dirty reports whether the word changed since it was loaded
func (w *Word) Dirty() bool {
	return w.dirty
}

// relativePath shortens path to be relative to root when it lies below it
func relativePath(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return rel
}
