package anki

import (
	"fmt"
	"html"
	"os"
	"path/filepath"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// Note fields in the order they are stored
var noteFields = []string{"English", "Bulgarian", "Phonetic", "Image", "Audio", "Notes"}

// DefaultTemplate returns the note type cards are created with
func DefaultTemplate() provider.NoteTemplate {
	return provider.NoteTemplate{
		Name:   "Vocabulary from cardforge (Basic + Reverse)",
		Fields: append([]string(nil), noteFields...),
		Front:  frontTemplate,
		Back:   backTemplate,
		CSS:    cardCSS,
	}
}

const frontTemplate = `<div class="front">
{{#Image}}
<div class="image-container">
{{Image}}
</div>
{{/Image}}
<div class="english">{{English}}</div>
</div>`

const backTemplate = `{{FrontSide}}

<hr id="answer">

<div class="back">
<div class="bulgarian">{{Bulgarian}}</div>
{{#Phonetic}}
<div class="phonetic">{{Phonetic}}</div>
{{/Phonetic}}
{{#Audio}}
<div class="audio">{{Audio}}</div>
{{/Audio}}
{{#Notes}}
<div class="notes">{{Notes}}</div>
{{/Notes}}
</div>`

const reverseFrontTemplate = `<div class="front">
<div class="bulgarian">{{Bulgarian}}</div>
{{#Audio}}
<div class="audio">{{Audio}}</div>
{{/Audio}}
</div>`

const reverseBackTemplate = `{{FrontSide}}

<hr id="answer">

<div class="back">
<div class="english">{{English}}</div>
{{#Image}}
<div class="image-container">
{{Image}}
</div>
{{/Image}}
{{#Notes}}
<div class="notes">{{Notes}}</div>
{{/Notes}}
</div>`

const cardCSS = `.card {
  font-family: Arial, sans-serif;
  font-size: 20px;
  text-align: center;
  color: #333;
  background-color: white;
}

.image-container img {
  max-width: 100%;
  height: auto;
  border-radius: 8px;
}

.english {
  font-size: 28px;
  font-weight: bold;
  color: #2c3e50;
}

.bulgarian {
  font-size: 32px;
  font-weight: bold;
  color: #c0392b;
}

.phonetic {
  font-family: "Doulos SIL", "Charis SIL", serif;
  white-space: pre-line;
  color: #555;
}

.notes {
  font-size: 16px;
  color: #7f8c8d;
  font-style: italic;
}`

// mediaName gives a card's media file a collection-wide unique name by
// prefixing the card ID
func mediaName(card provider.Card, path string) string {
	if path == "" {
		return ""
	}
	if card.ID == "" {
		return filepath.Base(path)
	}
	return card.ID + "_" + filepath.Base(path)
}

func soundTag(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf("[sound:%s]", name)
}

func imageTag(name string) string {
	if name == "" {
		return ""
	}
	return fmt.Sprintf(`<img src="%s">`, name)
}

// renderedNote is a card in note field order plus the media it references
type renderedNote struct {
	fields []string
	media  []provider.MediaFile
}

// renderNote maps a card onto the note fields. Media files that do not
// exist on disk are left out.
func renderNote(card provider.Card) renderedNote {
	var note renderedNote

	english := card.Translation
	if english == "" {
		english = "Translation needed"
	}

	var audio, image string
	if card.AudioFile != "" && fileExists(card.AudioFile) {
		audio = mediaName(card, card.AudioFile)
		note.media = append(note.media, provider.MediaFile{Name: audio, Path: card.AudioFile})
	}
	if card.ImageFile != "" && fileExists(card.ImageFile) {
		image = mediaName(card, card.ImageFile)
		note.media = append(note.media, provider.MediaFile{Name: image, Path: card.ImageFile})
	}

	note.fields = []string{
		html.EscapeString(english),
		html.EscapeString(card.Bulgarian),
		html.EscapeString(card.Phonetic),
		imageTag(image),
		soundTag(audio),
		html.EscapeString(card.Notes),
	}
	return note
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
