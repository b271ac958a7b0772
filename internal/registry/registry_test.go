package registry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"codeberg.org/snonux/cardforge/internal/config"
	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/testutil"
)

type factoryCalls struct {
	settings map[string]map[string]any
	data     map[string]*testutil.MockDataProvider
}

// testFactories builds mocks; a "fail: true" setting makes construction fail
func testFactories(calls *factoryCalls) Factories {
	calls.settings = make(map[string]map[string]any)
	calls.data = make(map[string]*testutil.MockDataProvider)

	media := func(kind string) func(map[string]any) (*testutil.MockMediaProvider, error) {
		return func(settings map[string]any) (*testutil.MockMediaProvider, error) {
			name, _ := settings["label"].(string)
			calls.settings[kind+":"+name] = settings
			if settings["fail"] == true {
				return nil, errors.New("missing API key")
			}
			return testutil.NewMockMediaProvider(name), nil
		}
	}

	return Factories{
		Data: map[string]Factory[provider.DataProvider]{
			"json": factory[*testutil.MockDataProvider, provider.DataProvider]("", func(settings map[string]any) (*testutil.MockDataProvider, error) {
				p := testutil.NewMockDataProvider()
				name, _ := settings["label"].(string)
				calls.data[name] = p
				if settings["fail"] == true {
					return nil, errors.New("cannot open store")
				}
				return p, nil
			}),
		},
		Audio: map[string]Factory[provider.AudioProvider]{
			"openai": factory[*testutil.MockMediaProvider, provider.AudioProvider]("", media("audio")),
			"espeak": factory[*testutil.MockMediaProvider, provider.AudioProvider](
				`{"type": "object", "properties": {"speed": {"type": "number", "maximum": 4}}}`, media("audio")),
		},
		Image: map[string]Factory[provider.ImageProvider]{
			"pixabay": factory[*testutil.MockMediaProvider, provider.ImageProvider]("", media("image")),
		},
		Sync: map[string]Factory[provider.SyncProvider]{
			"apkg": factory[*testutil.MockSyncProvider, provider.SyncProvider]("", func(settings map[string]any) (*testutil.MockSyncProvider, error) {
				name, _ := settings["label"].(string)
				return testutil.NewMockSyncProvider(name), nil
			}),
		},
	}
}

func build(t *testing.T, providers any, opts ...Option) (*Registry, *factoryCalls, error) {
	t.Helper()

	calls := &factoryCalls{}
	cfg := config.FromMap(map[string]any{"providers": providers})
	opts = append([]Option{WithFactories(testFactories(calls)), WithLogger(zaptest.NewLogger(t))}, opts...)
	r, err := Build(cfg, opts...)
	return r, calls, err
}

func TestBuildRejectsMissingProviders(t *testing.T) {
	tests := []struct {
		name      string
		providers any
	}{
		{"nil", nil},
		{"empty", map[string]any{}},
		{"empty categories", map[string]any{"audio": map[string]any{}}},
		{"not a mapping", []any{"a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := build(t, tt.providers)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestBuildRejectsLegacyLayout(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"audio": map[string]any{"type": "openai", "voice": "nova"},
	})

	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "providers.audio.default")
}

func TestBuildRejectsUnknownCategory(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"audoi": map[string]any{"x": map[string]any{"type": "openai"}},
	})

	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), `did you mean "audio"`)
}

func TestBuildRequiresDataPipelines(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"data": map[string]any{"vocab": map[string]any{"type": "json"}},
	})

	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), "pipelines")
}

func TestBuildManagedFileConflict(t *testing.T) {
	_, calls, err := build(t, map[string]any{
		"data": map[string]any{
			"A": map[string]any{"pipelines": []any{"*"}, "managed_files": []any{"vocab", "extra"}},
			"B": map[string]any{"pipelines": []any{"*"}, "managedFiles": []any{"vocab"}},
		},
	})

	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "vocab", conflict.File)
	assert.Equal(t, "A", conflict.First)
	assert.Equal(t, "B", conflict.Second)
	assert.Contains(t, err.Error(), `"vocab"`)
	assert.Contains(t, err.Error(), `"A"`)
	assert.Contains(t, err.Error(), `"B"`)
	assert.Empty(t, calls.data, "no data provider may be constructed")
}

func TestBuildUnrestrictedProvidersDoNotConflict(t *testing.T) {
	r, _, err := build(t, map[string]any{
		"data": map[string]any{
			"A":   map[string]any{"pipelines": []any{"*"}, "managed_files": []any{"vocab"}},
			"B":   map[string]any{"pipelines": []any{"*"}, "managed_files": []any{"other"}},
			"all": map[string]any{"pipelines": []any{"*"}},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "all"}, r.Names(CategoryData))
}

func TestBuildDataConstructionFailureIsFatal(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"data": map[string]any{"vocab": map[string]any{"pipelines": "*", "fail": true}},
	})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestBuildUnknownImplementationIsFatal(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"audio": map[string]any{"x": map[string]any{"type": "espek"}},
	})

	require.ErrorIs(t, err, ErrConfig)
	assert.Contains(t, err.Error(), `did you mean "espeak"`)
}

func TestBuildMissingTypeIsFatal(t *testing.T) {
	_, _, err := build(t, map[string]any{
		"image": map[string]any{"x": map[string]any{"pipelines": []any{"*"}}},
	})
	assert.ErrorIs(t, err, ErrConfig)
}

func TestBuildSkipsFailingOptionalProviders(t *testing.T) {
	providers := map[string]any{
		"audio": map[string]any{
			"good":    map[string]any{"type": "openai", "label": "good"},
			"broken":  map[string]any{"type": "openai", "label": "broken", "fail": true},
			"invalid": map[string]any{"type": "espeak", "label": "invalid", "speed": 9},
		},
	}

	r, _, err := build(t, providers)
	require.NoError(t, err)

	_, ok := r.Audio("good")
	assert.True(t, ok)
	_, ok = r.Audio("broken")
	assert.False(t, ok)

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "broken", issues[0].Name)
	assert.Equal(t, "invalid", issues[1].Name)

	_, _, err = build(t, providers, WithStrict(true))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestBuildStrictFromConfig(t *testing.T) {
	calls := &factoryCalls{}
	cfg := config.FromMap(map[string]any{
		"system": map[string]any{"strictProviders": true},
		"providers": map[string]any{
			"audio": map[string]any{"broken": map[string]any{"type": "openai", "fail": true}},
		},
	})

	_, err := Build(cfg, WithFactories(testFactories(calls)))
	assert.ErrorIs(t, err, ErrConfig)
}

func TestBuildStripsMetadataFromSettings(t *testing.T) {
	_, calls, err := build(t, map[string]any{
		"audio": map[string]any{
			"x": map[string]any{"type": "openai", "label": "x", "pipelines": []any{"vocabulary"}, "voice": "nova"},
		},
	}, WithBaseDir("/project"))
	require.NoError(t, err)

	settings := calls.settings["audio:x"]
	assert.Equal(t, map[string]any{"label": "x", "voice": "nova", "base_dir": "/project"}, settings)
}

func TestProvidersFor(t *testing.T) {
	r, _, err := build(t, map[string]any{
		"data": map[string]any{
			"vocab": map[string]any{"pipelines": []any{"vocabulary"}, "managed_files": []any{"vocabulary"}},
		},
		"audio": map[string]any{
			"shared":  map[string]any{"type": "openai", "label": "shared"},
			"special": map[string]any{"type": "openai", "label": "special", "pipelines": []any{"conjugation"}},
		},
		"sync": map[string]any{
			"anki": map[string]any{"type": "apkg", "pipelines": []any{"vocabulary"}},
		},
	})
	require.NoError(t, err)

	vocab := r.ProvidersFor("vocabulary")
	assert.Len(t, vocab.Data, 1)
	assert.Contains(t, vocab.Audio, "shared")
	assert.NotContains(t, vocab.Audio, "special")
	assert.Contains(t, vocab.Sync, "anki")

	conj := r.ProvidersFor("conjugation")
	assert.Empty(t, conj.Data)
	assert.Len(t, conj.Audio, 2)
	assert.Empty(t, conj.Sync)

	other := r.ProvidersFor("unknown")
	assert.Len(t, other.Audio, 1)
	assert.Contains(t, other.Audio, "shared")
}

func TestAccessControl(t *testing.T) {
	r, calls, err := build(t, map[string]any{
		"data": map[string]any{
			"vocab": map[string]any{
				"pipelines":     []any{"*"},
				"managed_files": []any{"vocabulary"},
				"label":         "vocab",
			},
			"archive": map[string]any{
				"pipelines": []any{"*"},
				"readOnly":  true,
				"label":     "archive",
			},
		},
	})
	require.NoError(t, err)

	vocab, ok := r.Data("vocab")
	require.True(t, ok)

	require.NoError(t, vocab.Save("vocabulary", provider.Document{"n": 1}))
	doc, err := vocab.Load("vocabulary")
	require.NoError(t, err)
	assert.Equal(t, 1, doc["n"])

	var scopeErr *ScopeError
	err = vocab.Save("other", provider.Document{})
	require.ErrorAs(t, err, &scopeErr)
	assert.ErrorIs(t, err, ErrOutOfScope)
	_, err = vocab.Load("other")
	assert.ErrorIs(t, err, ErrOutOfScope)
	_, err = vocab.Exists("other")
	assert.ErrorIs(t, err, ErrOutOfScope)

	// stray documents stored behind the guard stay invisible
	calls.data["vocab"].Docs["stray"] = provider.Document{}
	ids, err := vocab.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"vocabulary"}, ids)

	archive, ok := r.Data("archive")
	require.True(t, ok)
	calls.data["archive"].Docs["old"] = provider.Document{"v": 1}

	var permErr *PermissionError
	err = archive.Save("old", provider.Document{})
	require.ErrorAs(t, err, &permErr)
	assert.ErrorIs(t, err, ErrReadOnly)
	assert.Equal(t, "archive", permErr.Provider)

	_, err = archive.Load("old")
	assert.NoError(t, err)

	_, err = archive.(provider.Backuper).Backup("old")
	assert.ErrorIs(t, err, ErrReadOnly)

	// rejected calls never reach the wrapped provider
	assert.NotContains(t, calls.data["archive"].Calls, "SAVE old")
	assert.NotContains(t, calls.data["vocab"].Calls, "SAVE other")
}

func TestProviderSetDataFor(t *testing.T) {
	r, _, err := build(t, map[string]any{
		"data": map[string]any{
			"a-general": map[string]any{"pipelines": []any{"*"}},
			"z-vocab":   map[string]any{"pipelines": []any{"*"}, "managed_files": []any{"vocabulary"}},
		},
	})
	require.NoError(t, err)

	set := r.ProvidersFor("vocabulary")

	_, name, ok := set.DataFor("vocabulary")
	require.True(t, ok)
	assert.Equal(t, "z-vocab", name)

	_, name, ok = set.DataFor("notes")
	require.True(t, ok)
	assert.Equal(t, "a-general", name)
}

func TestRegisterAndReset(t *testing.T) {
	r := New(nil)

	require.NoError(t, r.Register(CategoryAudio, "mock", testutil.NewMockMediaProvider("mock"), nil))
	require.Error(t, r.Register(CategoryAudio, "mock", testutil.NewMockMediaProvider("mock"), nil), "duplicate name")
	require.Error(t, r.Register(CategorySync, "wrong", testutil.NewMockMediaProvider("x"), nil), "wrong interface")

	require.NoError(t, r.RegisterData(DataSpec{
		Spec:         Spec{Name: "a", Pipelines: []string{"*"}},
		ManagedFiles: []string{"vocab"},
	}, testutil.NewMockDataProvider()))

	err := r.RegisterData(DataSpec{
		Spec:         Spec{Name: "b", Pipelines: []string{"*"}},
		ManagedFiles: []string{"vocab"},
	}, testutil.NewMockDataProvider())
	require.ErrorIs(t, err, ErrConfig)
	_, ok := r.Data("b")
	assert.False(t, ok, "conflicting provider must not be registered")

	p, ok := r.Get(CategoryAudio, "mock")
	require.True(t, ok)
	assert.Equal(t, "mock", p.(provider.AudioProvider).Name())

	specs := r.Specs()
	require.Len(t, specs, 2)
	assert.Equal(t, "a", specs[0].Name)
	assert.Equal(t, CategoryData, specs[0].Category)
	assert.Equal(t, "mock", specs[1].Name)

	r.Reset()
	assert.Empty(t, r.Specs())
	assert.Empty(t, r.Names(CategoryAudio))
	assert.Empty(t, r.Names(CategoryData))
	assert.True(t, r.ProvidersFor("any").Empty())
}
