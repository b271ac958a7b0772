package registry

import (
	"fmt"
	"sort"

	"codeberg.org/snonux/cardforge/internal/anki"
	"codeberg.org/snonux/cardforge/internal/audio"
	"codeberg.org/snonux/cardforge/internal/image"
	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/storage"
)

// Factory builds one provider implementation from its settings. Schema,
// when set, is a JSON schema the settings are validated against first.
type Factory[P any] struct {
	Schema string
	New    func(settings map[string]any) (P, error)
}

// Factories is the closed table of known implementations per category
type Factories struct {
	Data  map[string]Factory[provider.DataProvider]
	Audio map[string]Factory[provider.AudioProvider]
	Image map[string]Factory[provider.ImageProvider]
	Sync  map[string]Factory[provider.SyncProvider]
}

// DefaultFactories returns every implementation shipped with cardforge
func DefaultFactories() Factories {
	return Factories{
		Data: map[string]Factory[provider.DataProvider]{
			"json": factory[*storage.JSONStore, provider.DataProvider](storage.Schema, storage.NewFromSettings),
		},
		Audio: map[string]Factory[provider.AudioProvider]{
			"openai": factory[*audio.OpenAIProvider, provider.AudioProvider](audio.OpenAISchema, audio.NewOpenAIFromSettings),
			"espeak": factory[*audio.ESpeakProvider, provider.AudioProvider](audio.ESpeakSchema, audio.NewESpeakFromSettings),
		},
		Image: map[string]Factory[provider.ImageProvider]{
			"openai":   factory[*image.OpenAIProvider, provider.ImageProvider](image.OpenAISchema, image.NewOpenAIFromSettings),
			"gemini":   factory[*image.GeminiProvider, provider.ImageProvider](image.GeminiSchema, image.NewGeminiFromSettings),
			"pixabay":  factory[*image.SearchProvider, provider.ImageProvider](image.PixabaySchema, image.NewPixabayFromSettings),
			"unsplash": factory[*image.SearchProvider, provider.ImageProvider](image.UnsplashSchema, image.NewUnsplashFromSettings),
		},
		Sync: map[string]Factory[provider.SyncProvider]{
			"apkg":        factory[*anki.APKGProvider, provider.SyncProvider](anki.APKGSchema, anki.NewAPKGFromSettings),
			"ankiconnect": factory[*anki.ConnectProvider, provider.SyncProvider](anki.ConnectSchema, anki.NewConnectFromSettings),
			"csv":         factory[*anki.CSVProvider, provider.SyncProvider](anki.CSVSchema, anki.NewCSVFromSettings),
		},
	}
}

// Implementations lists the implementation names of a category
func (f Factories) Implementations(category Category) []string {
	switch category {
	case CategoryData:
		return keys(f.Data)
	case CategoryAudio:
		return keys(f.Audio)
	case CategoryImage:
		return keys(f.Image)
	case CategorySync:
		return keys(f.Sync)
	}
	return nil
}

// factory adapts a concrete constructor to the category interface
func factory[T any, P any](schema string, newFn func(map[string]any) (T, error)) Factory[P] {
	return Factory[P]{
		Schema: schema,
		New: func(settings map[string]any) (P, error) {
			var zero P
			t, err := newFn(settings)
			if err != nil {
				return zero, err
			}
			p, ok := any(t).(P)
			if !ok {
				return zero, fmt.Errorf("%T does not implement the provider interface", t)
			}
			return p, nil
		},
	}
}

func keys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
