package image

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/snonux/cardforge/internal/provider"
)

// Translator turns a Bulgarian word into English
type Translator interface {
	TranslateToEnglish(ctx context.Context, text string) (string, error)
}

// englishFor returns the English meaning of the requested word. A
// "translation" param wins over the translator, which wins over the
// built-in dictionary. The result is empty when nothing knows the word.
func englishFor(ctx context.Context, translator Translator, req provider.Request) string {
	if translation := req.Param("translation", ""); translation != "" {
		return translation
	}
	if translator != nil {
		if translation, err := translator.TranslateToEnglish(ctx, req.Content); err == nil && translation != "" {
			return translation
		}
	}
	translation, _ := lookupTranslation(req.Content)
	return translation
}

// educationalPrompt describes a flashcard illustration for a word
func educationalPrompt(bulgarian, english string) string {
	subject := english
	if subject == "" {
		subject = fmt.Sprintf("the Bulgarian word '%s'", bulgarian)
	}
	return fmt.Sprintf("A simple, clear educational illustration of %s for a language learning flashcard. "+
		"Single object centered on a plain light background, friendly colors, no text, no letters, no words.",
		strings.TrimSpace(subject))
}

func checkRequest(name string, req provider.Request) error {
	if req.Kind != provider.KindImage && req.Kind != "" {
		return fmt.Errorf("%s: unsupported request kind %q", name, req.Kind)
	}
	if strings.TrimSpace(req.Content) == "" {
		return fmt.Errorf("%s: empty word", name)
	}
	if req.OutputPath == "" {
		return fmt.Errorf("%s: output path is required", name)
	}
	return nil
}
