package image

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

// GeminiConfig holds the settings of the Imagen provider
type GeminiConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	AspectRatio string        `mapstructure:"aspect_ratio"`
	Timeout     time.Duration `mapstructure:"timeout"`
	BatchDelay  time.Duration `mapstructure:"batch_delay"`
}

// DefaultGeminiConfig returns default configuration
func DefaultGeminiConfig() *GeminiConfig {
	return &GeminiConfig{
		Model:       "imagen-3.0-generate-002",
		AspectRatio: "1:1",
		Timeout:     60 * time.Second,
		BatchDelay:  time.Second,
	}
}

// GeminiSchema validates the settings of the Imagen provider
const GeminiSchema = `{
  "type": "object",
  "required": ["api_key"],
  "properties": {
    "api_key": {"type": "string", "minLength": 1},
    "model": {"type": "string", "pattern": "^imagen-"},
    "aspect_ratio": {"enum": ["1:1", "3:4", "4:3", "9:16", "16:9"]}
  }
}`

// imagenClient is the part of the genai models service the provider uses
type imagenClient interface {
	GenerateImages(ctx context.Context, model, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

// GeminiProvider draws flashcard illustrations with Google Imagen
type GeminiProvider struct {
	client  imagenClient
	config  *GeminiConfig
	breaker *retry.Breaker
}

var _ provider.ImageProvider = (*GeminiProvider)(nil)

// NewGeminiProvider creates an Imagen provider on the Gemini API backend
func NewGeminiProvider(config *GeminiConfig) (*GeminiProvider, error) {
	if config == nil {
		config = DefaultGeminiConfig()
	}
	if config.APIKey == "" || provider.Unresolved(config.APIKey) {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return newGeminiProvider(client.Models, config), nil
}

func newGeminiProvider(client imagenClient, config *GeminiConfig) *GeminiProvider {
	return &GeminiProvider{
		client:  client,
		config:  config,
		breaker: retry.NewBreaker("gemini-image", retry.DefaultPolicy()),
	}
}

// NewGeminiFromSettings creates the provider from registry settings
func NewGeminiFromSettings(settings map[string]any) (*GeminiProvider, error) {
	config := DefaultGeminiConfig()
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewGeminiProvider(config)
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate draws one image for req.Content
func (p *GeminiProvider) Generate(ctx context.Context, req provider.Request) provider.Result {
	if err := checkRequest("gemini", req); err != nil {
		return provider.Failed(err)
	}

	english := englishFor(ctx, nil, req)
	prompt := req.Param("prompt", educationalPrompt(req.Content, english))

	var data []byte
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		resp, err := p.client.GenerateImages(ctx, p.config.Model, prompt, &genai.GenerateImagesConfig{
			AspectRatio: p.config.AspectRatio,
		})
		if err != nil {
			return err
		}
		if resp == nil || len(resp.GeneratedImages) == 0 {
			return retry.Permanent(fmt.Errorf("no image returned"))
		}
		generated := resp.GeneratedImages[0]
		if generated.Image == nil || len(generated.Image.ImageBytes) == 0 {
			if generated.RAIFilteredReason != "" {
				return retry.Permanent(fmt.Errorf("image filtered: %s", generated.RAIFilteredReason))
			}
			return retry.Permanent(fmt.Errorf("empty image returned"))
		}
		data = generated.Image.ImageBytes
		return nil
	})
	if err != nil {
		return provider.Failed(fmt.Errorf("Gemini image API error: %w", err))
	}

	if err := writeFile(req.OutputPath, data); err != nil {
		return provider.Failed(err)
	}
	return provider.Succeeded(req.OutputPath, map[string]any{
		"source":      "gemini",
		"model":       p.config.Model,
		"prompt":      prompt,
		"translation": english,
		"attribution": "Generated by Google Imagen",
	})
}

// GenerateBatch draws every request, pausing batch_delay between calls
func (p *GeminiProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, p.config.BatchDelay, p.Generate)
}
