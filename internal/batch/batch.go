// Package batch reads word lists for the vocabulary import stage.
package batch

import (
	"fmt"
	"os"
	"strings"
)

// WordEntry is one line of a word list
type WordEntry struct {
	Bulgarian   string
	Translation string
	// NeedsTranslation is set when only the English side was given
	NeedsTranslation bool
}

// ReadBatchFile reads a word list. Each non-empty line has one of the forms
//
//	ябълка          Bulgarian only
//	ябълка = apple  Bulgarian with translation
//	= apple         English only, Bulgarian still to be found
//
// Lines starting with '#' are comments.
func ReadBatchFile(filename string) ([]WordEntry, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read batch file: %w", err)
	}
	return ParseEntries(string(content)), nil
}

// ParseEntries parses word list text; malformed lines are dropped
func ParseEntries(text string) []WordEntry {
	var entries []WordEntry
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if entry, ok := parseLine(line); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

func parseLine(line string) (WordEntry, bool) {
	bulgarian, english, found := strings.Cut(line, "=")
	if !found {
		return WordEntry{Bulgarian: line}, true
	}

	bulgarian = strings.TrimSpace(bulgarian)
	english = strings.TrimSpace(english)
	switch {
	case english == "":
		return WordEntry{}, false
	case bulgarian == "":
		return WordEntry{Translation: english, NeedsTranslation: true}, true
	default:
		return WordEntry{Bulgarian: bulgarian, Translation: english}, true
	}
}
