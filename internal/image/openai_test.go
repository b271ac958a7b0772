package image

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/testutil"
)

type fakeImageClient struct {
	requests []openai.ImageRequest
	err      error
	b64      string
}

func (f *fakeImageClient) CreateImage(_ context.Context, req openai.ImageRequest) (openai.ImageResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return openai.ImageResponse{}, f.err
	}
	return openai.ImageResponse{
		Data: []openai.ImageResponseDataInner{{B64JSON: f.b64, RevisedPrompt: "a red apple"}},
	}, nil
}

func newTestOpenAIImage(t *testing.T, client *fakeImageClient, translator Translator, cacheDir string) *OpenAIProvider {
	t.Helper()

	config := DefaultOpenAIConfig()
	config.APIKey = "test-key"
	config.CacheDir = cacheDir
	config.BatchDelay = 0
	p, err := newOpenAIProvider(client, translator, config)
	if err != nil {
		t.Fatalf("newOpenAIProvider() error = %v", err)
	}
	return p
}

func TestEducationalPrompt(t *testing.T) {
	tests := []struct {
		bulgarian    string
		english      string
		wantContains []string
	}{
		{"ябълка", "apple", []string{"apple", "educational", "flashcard"}},
		{"котка", "cat", []string{"cat", "simple", "clear"}},
		{"рядкадума", "", []string{"Bulgarian word 'рядкадума'"}},
	}

	for _, tt := range tests {
		t.Run(tt.bulgarian, func(t *testing.T) {
			prompt := educationalPrompt(tt.bulgarian, tt.english)
			for _, want := range tt.wantContains {
				if !strings.Contains(prompt, want) {
					t.Errorf("Prompt missing expected word '%s': %s", want, prompt)
				}
			}
		})
	}
}

func TestEnglishFor(t *testing.T) {
	translator := &testutil.MockTranslator{
		Translations: map[string]string{"котка": "kitty"},
		Errors:       map[string]error{"ябълка": errors.New("offline")},
	}

	tests := []struct {
		name       string
		req        provider.Request
		translator Translator
		want       string
	}{
		{"param wins", provider.Request{Content: "котка", Params: map[string]any{"translation": "cat"}}, translator, "cat"},
		{"translator", provider.Request{Content: "котка"}, translator, "kitty"},
		{"dictionary after translator error", provider.Request{Content: "ябълка"}, translator, "apple"},
		{"dictionary without translator", provider.Request{Content: " Куче "}, nil, "dog"},
		{"unknown", provider.Request{Content: "рядкадума"}, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := englishFor(context.Background(), tt.translator, tt.req); got != tt.want {
				t.Errorf("englishFor() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAIImageGenerate(t *testing.T) {
	client := &fakeImageClient{b64: base64.StdEncoding.EncodeToString([]byte("png data"))}
	translator := &testutil.MockTranslator{Translations: map[string]string{"ябълка": "apple"}}
	p := newTestOpenAIImage(t, client, translator, "")
	out := filepath.Join(t.TempDir(), "ябълка", "image.png")

	result := p.Generate(context.Background(), provider.Request{Kind: provider.KindImage, Content: "ябълка", OutputPath: out})
	if !result.Success {
		t.Fatalf("Generate() failed: %v", result.Err)
	}

	data, _ := os.ReadFile(out)
	if string(data) != "png data" {
		t.Errorf("image = %q", data)
	}

	req := client.requests[0]
	if !strings.Contains(req.Prompt, "apple") {
		t.Errorf("prompt = %q, want translation in it", req.Prompt)
	}
	if req.ResponseFormat != openai.CreateImageResponseFormatB64JSON || req.Size != "512x512" {
		t.Errorf("request = %+v", req)
	}
	if req.Style != "" || req.Quality != "" {
		t.Error("dall-e-2 requests must not carry style or quality")
	}
	if result.Metadata["revised_prompt"] != "a red apple" || result.Metadata["translation"] != "apple" {
		t.Errorf("metadata = %v", result.Metadata)
	}
	if result.Metadata["width"] != 512 || result.Metadata["height"] != 512 {
		t.Errorf("size metadata = %v x %v", result.Metadata["width"], result.Metadata["height"])
	}
}

func TestOpenAIImageCache(t *testing.T) {
	client := &fakeImageClient{b64: base64.StdEncoding.EncodeToString([]byte("png"))}
	p := newTestOpenAIImage(t, client, nil, t.TempDir())
	dir := t.TempDir()

	for _, name := range []string{"a.png", "b.png"} {
		result := p.Generate(context.Background(), provider.Request{
			Content:    "котка",
			Params:     map[string]any{"prompt": "a cat"},
			OutputPath: filepath.Join(dir, name),
		})
		if !result.Success {
			t.Fatalf("Generate() failed: %v", result.Err)
		}
	}
	if len(client.requests) != 1 {
		t.Errorf("API called %d times, want 1", len(client.requests))
	}
	if client.requests[0].Prompt != "a cat" {
		t.Errorf("prompt = %q, want the prompt param", client.requests[0].Prompt)
	}
}

func TestOpenAIImageErrors(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeImageClient
	}{
		{"content policy", &fakeImageClient{err: &openai.APIError{HTTPStatusCode: 400, Message: "rejected"}}},
		{"empty data", &fakeImageClient{}},
		{"bad base64", &fakeImageClient{b64: "%%%"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestOpenAIImage(t, tt.client, nil, "")
			result := p.Generate(context.Background(), provider.Request{Content: "котка", OutputPath: filepath.Join(t.TempDir(), "x.png")})
			if result.Success {
				t.Fatal("Generate() succeeded, want failure")
			}
			if len(tt.client.requests) != 1 {
				t.Errorf("API called %d times, want 1", len(tt.client.requests))
			}
		})
	}
}

func TestNewOpenAIImageRequiresKey(t *testing.T) {
	if _, err := NewOpenAIFromSettings(map[string]any{"api_key": "${OPENAI_API_KEY}"}); err == nil {
		t.Error("expected error for unresolved key")
	}
	p, err := NewOpenAIFromSettings(map[string]any{"api_key": "sk-test", "model": "dall-e-3", "timeout": "90s"})
	if err != nil {
		t.Fatalf("NewOpenAIFromSettings() error = %v", err)
	}
	if p.Name() != "openai" || p.config.Model != "dall-e-3" || p.config.Timeout.Seconds() != 90 {
		t.Errorf("config = %+v", p.config)
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		size   string
		width  int
		height int
	}{
		{"256x256", 256, 256},
		{"1024x1792", 1024, 1792},
		{"1792x1024", 1792, 1024},
		{"unknown", 512, 512},
	}

	for _, tt := range tests {
		if w, h := parseSize(tt.size); w != tt.width || h != tt.height {
			t.Errorf("parseSize(%q) = %dx%d, want %dx%d", tt.size, w, h, tt.width, tt.height)
		}
	}
}
