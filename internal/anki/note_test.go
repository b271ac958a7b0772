package anki

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"codeberg.org/snonux/cardforge/internal/provider"
)

func TestRenderNote(t *testing.T) {
	dir := t.TempDir()
	audio := filepath.Join(dir, "audio.mp3")
	os.WriteFile(audio, []byte("a"), 0644)

	note := renderNote(provider.Card{
		ID:          "id1",
		Bulgarian:   "ябълка",
		Translation: "apple & pear",
		AudioFile:   audio,
		ImageFile:   filepath.Join(dir, "missing.jpg"),
	})

	want := []string{"apple &amp; pear", "ябълка", "", "", "[sound:id1_audio.mp3]", ""}
	if diff := cmp.Diff(want, note.fields); diff != "" {
		t.Errorf("fields mismatch (-want +got):\n%s", diff)
	}
	if len(note.media) != 1 || note.media[0].Name != "id1_audio.mp3" {
		t.Errorf("media = %+v", note.media)
	}
}

func TestMediaName(t *testing.T) {
	tests := []struct {
		card provider.Card
		path string
		want string
	}{
		{provider.Card{ID: "x"}, "/a/b/image.png", "x_image.png"},
		{provider.Card{}, "/a/b/image.png", "image.png"},
		{provider.Card{ID: "x"}, "", ""},
	}
	for _, tt := range tests {
		if got := mediaName(tt.card, tt.path); got != tt.want {
			t.Errorf("mediaName(%+v, %q) = %q, want %q", tt.card, tt.path, got, tt.want)
		}
	}
}

func TestDefaultTemplate(t *testing.T) {
	tmpl := DefaultTemplate()
	if !cmp.Equal(tmpl.Fields, noteFields) {
		t.Errorf("Fields = %v", tmpl.Fields)
	}
	tmpl.Fields[0] = "changed"
	if noteFields[0] != "English" {
		t.Error("DefaultTemplate shares its field slice")
	}
}
