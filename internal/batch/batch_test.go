package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadBatchFile(t *testing.T) {
	tests := []struct {
		name        string
		fileContent string
		want        []WordEntry
	}{
		{
			name:        "empty file",
			fileContent: "",
			want:        nil,
		},
		{
			name:        "only whitespace",
			fileContent: "   \n\t\r\n   ",
			want:        nil,
		},
		{
			name: "words with translations",
			fileContent: `ябълка = apple
котка = cat
куче = dog`,
			want: []WordEntry{
				{Bulgarian: "ябълка", Translation: "apple"},
				{Bulgarian: "котка", Translation: "cat"},
				{Bulgarian: "куче", Translation: "dog"},
			},
		},
		{
			name: "empty lines and whitespace",
			fileContent: `
ябълка

котка = cat  

  куче  

`,
			want: []WordEntry{
				{Bulgarian: "ябълка"},
				{Bulgarian: "котка", Translation: "cat"},
				{Bulgarian: "куче"},
			},
		},
		{
			name:        "windows line endings",
			fileContent: "ябълка\r\nкотка = cat\r\nкуче",
			want: []WordEntry{
				{Bulgarian: "ябълка"},
				{Bulgarian: "котка", Translation: "cat"},
				{Bulgarian: "куче"},
			},
		},
		{
			name:        "multiple equals signs",
			fileContent: `test = word = with = equals`,
			want: []WordEntry{
				{Bulgarian: "test", Translation: "word = with = equals"},
			},
		},
		{
			name: "all three formats mixed",
			fileContent: `ябълка
котка = cat
= dog
хляб = bread
= table
стол`,
			want: []WordEntry{
				{Bulgarian: "ябълка"},
				{Bulgarian: "котка", Translation: "cat"},
				{Translation: "dog", NeedsTranslation: true},
				{Bulgarian: "хляб", Translation: "bread"},
				{Translation: "table", NeedsTranslation: true},
				{Bulgarian: "стол"},
			},
		},
		{
			name: "comments and empty english side",
			fileContent: `# fruit
ябълка =
круша = pear`,
			want: []WordEntry{
				{Bulgarian: "круша", Translation: "pear"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpFile := filepath.Join(t.TempDir(), "words.txt")
			if err := os.WriteFile(tmpFile, []byte(tt.fileContent), 0644); err != nil {
				t.Fatalf("Failed to create test file: %v", err)
			}

			got, err := ReadBatchFile(tmpFile)
			if err != nil {
				t.Fatalf("ReadBatchFile() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ReadBatchFile() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadBatchFile_FileNotFound(t *testing.T) {
	_, err := ReadBatchFile("/nonexistent/file.txt")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}
