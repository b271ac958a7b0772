package image

import (
	"context"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
	"codeberg.org/snonux/cardforge/internal/translation"
)

// OpenAIConfig holds the settings of the DALL-E provider
type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	BaseURL    string        `mapstructure:"base_url"`
	Model      string        `mapstructure:"model"`   // "dall-e-2" or "dall-e-3"
	Size       string        `mapstructure:"size"`    // "256x256", "512x512", "1024x1024", ...
	Quality    string        `mapstructure:"quality"` // dall-e-3 only: "standard" or "hd"
	Style      string        `mapstructure:"style"`   // dall-e-3 only: "natural" or "vivid"
	CacheDir   string        `mapstructure:"cache_dir"`
	Timeout    time.Duration `mapstructure:"timeout"`
	BatchDelay time.Duration `mapstructure:"batch_delay"`
	BaseDir    string        `mapstructure:"base_dir"`
}

// DefaultOpenAIConfig returns the cheapest useful setup
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		Model:      openai.CreateImageModelDallE2,
		Size:       openai.CreateImageSize512x512,
		Quality:    openai.CreateImageQualityStandard,
		Style:      openai.CreateImageStyleNatural,
		Timeout:    60 * time.Second,
		BatchDelay: time.Second,
	}
}

// OpenAISchema validates the settings of the DALL-E provider
const OpenAISchema = `{
  "type": "object",
  "required": ["api_key"],
  "properties": {
    "api_key": {"type": "string", "minLength": 1},
    "model": {"enum": ["dall-e-2", "dall-e-3"]},
    "size": {"enum": ["256x256", "512x512", "1024x1024", "1024x1792", "1792x1024"]},
    "quality": {"enum": ["standard", "hd"]},
    "style": {"enum": ["natural", "vivid"]},
    "cache_dir": {"type": "string"}
  }
}`

// imageClient is the part of the go-openai client the provider uses
type imageClient interface {
	CreateImage(ctx context.Context, request openai.ImageRequest) (openai.ImageResponse, error)
}

// OpenAIProvider draws flashcard illustrations with DALL-E
type OpenAIProvider struct {
	client     imageClient
	translator Translator
	config     *OpenAIConfig
	breaker    *retry.Breaker
}

var _ provider.ImageProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a DALL-E provider. Words are translated with
// the same API key before prompting.
func NewOpenAIProvider(config *OpenAIConfig) (*OpenAIProvider, error) {
	if config == nil {
		config = DefaultOpenAIConfig()
	}
	if config.APIKey == "" || provider.Unresolved(config.APIKey) {
		return nil, fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}

	return newOpenAIProvider(openai.NewClientWithConfig(clientConfig), translation.NewTranslator(config.APIKey), config)
}

func newOpenAIProvider(client imageClient, translator Translator, config *OpenAIConfig) (*OpenAIProvider, error) {
	config.CacheDir = provider.ResolvePath(config.BaseDir, config.CacheDir)
	if config.CacheDir != "" {
		if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return &OpenAIProvider{
		client:     client,
		translator: translator,
		config:     config,
		breaker:    retry.NewBreaker("openai-image", retry.DefaultPolicy()),
	}, nil
}

// NewOpenAIFromSettings creates the provider from registry settings
func NewOpenAIFromSettings(settings map[string]any) (*OpenAIProvider, error) {
	config := DefaultOpenAIConfig()
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewOpenAIProvider(config)
}

// Name returns the provider name
func (p *OpenAIProvider) Name() string {
	return "openai"
}

// Generate draws one image. A "prompt" param replaces the generated prompt.
func (p *OpenAIProvider) Generate(ctx context.Context, req provider.Request) provider.Result {
	if err := checkRequest("openai image", req); err != nil {
		return provider.Failed(err)
	}

	english := englishFor(ctx, p.translator, req)
	prompt := req.Param("prompt", educationalPrompt(req.Content, english))
	metadata := map[string]any{
		"source":      "openai",
		"model":       p.config.Model,
		"prompt":      prompt,
		"translation": english,
		"width":       p.sizeWidth(),
		"height":      p.sizeHeight(),
		"attribution": "Generated by OpenAI DALL-E",
	}

	cacheFile := p.cacheFilePath(prompt)
	if cacheFile != "" {
		if _, err := os.Stat(cacheFile); err == nil {
			if err := copyFile(cacheFile, req.OutputPath); err != nil {
				return provider.Failed(err)
			}
			metadata["cached"] = true
			return provider.Succeeded(req.OutputPath, metadata)
		}
	}

	imageReq := openai.ImageRequest{
		Prompt:         prompt,
		Model:          p.config.Model,
		N:              1,
		Size:           p.config.Size,
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}
	if p.config.Model == openai.CreateImageModelDallE3 {
		imageReq.Quality = p.config.Quality
		imageReq.Style = p.config.Style
	}

	var data []byte
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		resp, err := p.client.CreateImage(ctx, imageReq)
		if err != nil {
			return err
		}
		if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
			return retry.Permanent(fmt.Errorf("no image data received from OpenAI"))
		}
		if revised := resp.Data[0].RevisedPrompt; revised != "" {
			metadata["revised_prompt"] = revised
		}
		data, err = base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to decode image: %w", err))
		}
		return nil
	})
	if err != nil {
		return provider.Failed(fmt.Errorf("OpenAI image API error: %w", err))
	}

	if err := writeFile(req.OutputPath, data); err != nil {
		return provider.Failed(err)
	}
	if cacheFile != "" {
		_ = copyFile(req.OutputPath, cacheFile) // Ignore cache errors
	}
	return provider.Succeeded(req.OutputPath, metadata)
}

// GenerateBatch draws every request, pausing batch_delay between calls
func (p *OpenAIProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, p.config.BatchDelay, p.Generate)
}

// cacheFilePath hashes the prompt and image settings
func (p *OpenAIProvider) cacheFilePath(prompt string) string {
	if p.config.CacheDir == "" {
		return ""
	}

	h := md5.New()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s", prompt, p.config.Model, p.config.Size, p.config.Quality, p.config.Style)
	hash := hex.EncodeToString(h.Sum(nil))
	return filepath.Join(p.config.CacheDir, hash[:2], hash[2:]+".png")
}

func (p *OpenAIProvider) sizeWidth() int {
	w, _ := parseSize(p.config.Size)
	return w
}

func (p *OpenAIProvider) sizeHeight() int {
	_, h := parseSize(p.config.Size)
	return h
}

// parseSize reads "WxH"; unknown sizes count as 512x512
func parseSize(size string) (int, int) {
	w, h, ok := strings.Cut(size, "x")
	if ok {
		width, err1 := strconv.Atoi(w)
		height, err2 := strconv.Atoi(h)
		if err1 == nil && err2 == nil {
			return width, height
		}
	}
	return 512, 512
}
