package audio

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxTextLength is the longest input the speech APIs accept
const MaxTextLength = 4096

// ValidateBulgarianText rejects text no speech provider can pronounce as
// Bulgarian: empty input, input without a single Cyrillic letter and input
// above MaxTextLength characters
func ValidateBulgarianText(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("text cannot be empty")
	}
	if n := utf8.RuneCountInString(trimmed); n > MaxTextLength {
		return fmt.Errorf("text is %d characters long, at most %d are allowed", n, MaxTextLength)
	}
	if strings.IndexFunc(trimmed, isCyrillic) < 0 {
		return fmt.Errorf("text must contain Cyrillic characters")
	}
	return nil
}

func isCyrillic(r rune) bool {
	return unicode.Is(unicode.Cyrillic, r)
}

// preprocessBulgarianText drops punctuation, which espeak would otherwise
// read out, and collapses runs of whitespace
func preprocessBulgarianText(text string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsPunct(r) {
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}
