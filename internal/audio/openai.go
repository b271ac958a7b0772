package audio

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

// OpenAIConfig holds the settings of the OpenAI audio provider
type OpenAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	BaseURL       string        `mapstructure:"base_url"`
	Model         string        `mapstructure:"model"` // "tts-1", "tts-1-hd" or "gpt-4o-mini-tts"
	Voice         string        `mapstructure:"voice"`
	Speed         float64       `mapstructure:"speed"` // 0.25 to 4.0
	Instruction   string        `mapstructure:"instruction"`
	PhoneticModel string        `mapstructure:"phonetic_model"`
	CacheDir      string        `mapstructure:"cache_dir"`
	Timeout       time.Duration `mapstructure:"timeout"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	BaseDir       string        `mapstructure:"base_dir"`
}

// DefaultOpenAIConfig returns default configuration
func DefaultOpenAIConfig() *OpenAIConfig {
	return &OpenAIConfig{
		Model:         "gpt-4o-mini-tts",
		Voice:         "alloy",
		Speed:         1.0,
		Instruction:   "You are speaking Bulgarian language (български език). Pronounce the Bulgarian text with authentic Bulgarian phonetics, not Russian. Speak slowly and clearly for language learners.",
		PhoneticModel: openai.GPT4o,
		Timeout:       30 * time.Second,
		BatchDelay:    time.Second,
	}
}

// OpenAISchema validates the settings of the OpenAI audio provider
const OpenAISchema = `{
  "type": "object",
  "required": ["api_key"],
  "properties": {
    "api_key": {"type": "string", "minLength": 1},
    "model": {"type": "string"},
    "voice": {"enum": ["alloy", "ash", "ballad", "coral", "echo", "fable", "onyx", "nova", "sage", "shimmer", "verse"]},
    "speed": {"type": ["number", "string"], "minimum": 0.25, "maximum": 4.0},
    "timeout": {"type": ["string", "integer"]},
    "batch_delay": {"type": ["string", "integer"]}
  }
}`

// openAIClient is the part of the go-openai client the provider uses
type openAIClient interface {
	CreateSpeech(ctx context.Context, request openai.CreateSpeechRequest) (openai.RawResponse, error)
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIProvider generates speech with OpenAI TTS and pronunciation
// guides with a chat model
type OpenAIProvider struct {
	client  openAIClient
	config  *OpenAIConfig
	breaker *retry.Breaker
}

var _ provider.AudioProvider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI audio provider
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

	return newOpenAIProvider(openai.NewClientWithConfig(clientConfig), config)
}

func newOpenAIProvider(client openAIClient, config *OpenAIConfig) (*OpenAIProvider, error) {
	config.CacheDir = provider.ResolvePath(config.BaseDir, config.CacheDir)
	if config.CacheDir != "" {
		if err := os.MkdirAll(config.CacheDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
	}
	return &OpenAIProvider{
		client:  client,
		config:  config,
		breaker: retry.NewBreaker("openai-audio", retry.DefaultPolicy()),
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

// Generate handles speech and pronunciation requests
func (p *OpenAIProvider) Generate(ctx context.Context, req provider.Request) provider.Result {
	switch req.Kind {
	case provider.KindSpeech, "":
		return p.speech(ctx, req)
	case provider.KindPronunciation:
		return p.pronunciation(ctx, req)
	default:
		return provider.Failed(fmt.Errorf("openai audio: unsupported request kind %q", req.Kind))
	}
}

// GenerateBatch generates every request, pausing batch_delay between calls
func (p *OpenAIProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, p.config.BatchDelay, p.Generate)
}

func (p *OpenAIProvider) speech(ctx context.Context, req provider.Request) provider.Result {
	if err := ValidateBulgarianText(req.Content); err != nil {
		return provider.Failed(err)
	}
	if req.OutputPath == "" {
		return provider.Failed(fmt.Errorf("openai audio: output path is required"))
	}

	voice := req.Param("voice", p.config.Voice)
	outputFile := req.OutputPath
	metadata := map[string]any{"voice": voice, "model": p.config.Model}

	// Cache hit
	cacheFile := p.cacheFilePath(req.Content, voice)
	if cacheFile != "" {
		if _, err := os.Stat(cacheFile); err == nil {
			if err := copyFile(cacheFile, outputFile); err != nil {
				return provider.Failed(err)
			}
			metadata["cached"] = true
			return provider.Succeeded(outputFile, metadata)
		}
	}

	speechReq := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(p.config.Model),
		Input:          preprocessBulgarianText(req.Content),
		Voice:          openai.SpeechVoice(voice),
		Speed:          p.config.Speed,
		ResponseFormat: responseFormat(outputFile),
	}
	if p.config.Instruction != "" && supportsInstructions(p.config.Model) {
		speechReq.Instructions = p.config.Instruction
	}

	var written int64
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		response, err := p.client.CreateSpeech(ctx, speechReq)
		if err != nil {
			return err
		}
		defer response.Close()

		written, err = writeStream(outputFile, response)
		return err
	})
	if err != nil {
		if strings.Contains(err.Error(), "does not have access to model") && supportsInstructions(p.config.Model) {
			return provider.Failed(fmt.Errorf("OpenAI TTS API error: %w (the %s model requires access, try model tts-1-hd)", err, p.config.Model))
		}
		return provider.Failed(fmt.Errorf("OpenAI TTS API error: %w", err))
	}
	if written == 0 {
		return provider.Failed(fmt.Errorf("no audio data received from OpenAI"))
	}

	if cacheFile != "" {
		_ = copyFile(outputFile, cacheFile) // Ignore cache errors
	}
	metadata["bytes"] = written
	return provider.Succeeded(outputFile, metadata)
}

// pronunciation asks a chat model for an IPA transcription with a short
// guide per symbol. The text is returned as metadata "phonetic" and is
// also written to OutputPath when set.
func (p *OpenAIProvider) pronunciation(ctx context.Context, req provider.Request) provider.Result {
	if err := ValidateBulgarianText(req.Content); err != nil {
		return provider.Failed(err)
	}

	chatReq := openai.ChatCompletionRequest{
		Model: p.config.PhoneticModel,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: "You are a Bulgarian language expert helping language learners understand pronunciation. Provide phonetic information using the International Phonetic Alphabet (IPA). For each IPA symbol used, give concrete examples of how it sounds using familiar English words when possible.",
			},
			{
				Role: openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(`For the Bulgarian word '%s':
1. Provide the complete IPA transcription
2. Break down each phonetic symbol used in the transcription
3. Explain how every symbol is pronounced, including stress marks

Example format:
Word: [IPA transcription]
• /p/ - like 'p' in English 'pot'
• /ˈ/ - stress mark (following syllable is stressed)`, req.Content),
			},
		},
		Temperature: 0.3,
		MaxTokens:   500,
	}

	var info string
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
		defer cancel()

		resp, err := p.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return retry.Permanent(fmt.Errorf("no response from OpenAI"))
		}
		info = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return provider.Failed(fmt.Errorf("OpenAI API error: %w", err))
	}

	if req.OutputPath != "" {
		if err := os.MkdirAll(filepath.Dir(req.OutputPath), 0755); err != nil {
			return provider.Failed(fmt.Errorf("failed to create output directory: %w", err))
		}
		if err := os.WriteFile(req.OutputPath, []byte(info), 0644); err != nil {
			return provider.Failed(fmt.Errorf("failed to write phonetic file: %w", err))
		}
	}
	return provider.Succeeded(req.OutputPath, map[string]any{"phonetic": info})
}

func supportsInstructions(model string) bool {
	return model == "gpt-4o-mini-tts" || model == "gpt-4o-mini-audio-preview"
}

// responseFormat picks the TTS format from the output file extension
func responseFormat(outputFile string) openai.SpeechResponseFormat {
	switch strings.ToLower(filepath.Ext(outputFile)) {
	case ".wav":
		return openai.SpeechResponseFormatWav
	case ".opus":
		return openai.SpeechResponseFormatOpus
	case ".aac":
		return openai.SpeechResponseFormatAac
	case ".flac":
		return openai.SpeechResponseFormatFlac
	default:
		return openai.SpeechResponseFormatMp3
	}
}

// cacheFilePath hashes text and voice settings; empty when caching is off
func (p *OpenAIProvider) cacheFilePath(text, voice string) string {
	if p.config.CacheDir == "" {
		return ""
	}

	h := md5.New()
	h.Write([]byte(text))
	h.Write([]byte(p.config.Model))
	h.Write([]byte(voice))
	h.Write([]byte(fmt.Sprintf("%.2f", p.config.Speed)))
	if supportsInstructions(p.config.Model) {
		h.Write([]byte(p.config.Instruction))
	}
	hash := hex.EncodeToString(h.Sum(nil))

	// First 2 chars as subdirectory
	return filepath.Join(p.config.CacheDir, hash[:2], hash[2:]+".mp3")
}

func writeStream(outputFile string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return 0, fmt.Errorf("failed to create output directory: %w", err)
	}

	out, err := os.Create(outputFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create output file: %w", err)
	}
	written, err := io.Copy(out, r)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return written, fmt.Errorf("failed to write audio file: %w", err)
	}
	return written, nil
}

func copyFile(src, dst string) error {
	source, err := os.Open(src)
	if err != nil {
		return err
	}
	defer source.Close()

	_, err = writeStream(dst, source)
	return err
}
