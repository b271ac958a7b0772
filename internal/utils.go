package internal

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// GenerateCardID creates a unique ID for a card based on timestamp and Bulgarian word
// Format: epochMillis_md5(word)[:8]
func GenerateCardID(bulgarianWord string) string {
	return cardID(time.Now(), bulgarianWord)
}

func cardID(now time.Time, bulgarianWord string) string {
	hash := md5.Sum([]byte(bulgarianWord))
	return fmt.Sprintf("%d_%s", now.UnixMilli(), hex.EncodeToString(hash[:])[:8])
}

// SanitizeFilename creates a safe filename from a string. Latin and
// Cyrillic letters, digits, '-' and '_' are kept; everything else becomes '_'.
func SanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isFilenameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

func isFilenameRune(r rune) bool {
	switch {
	case r == '-' || r == '_':
		return true
	case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		return true
	default:
		return unicode.Is(unicode.Cyrillic, r)
	}
}
