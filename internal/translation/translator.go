package translation

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"codeberg.org/snonux/cardforge/internal/retry"
)

// chatClient is the part of the go-openai client the translator uses
type chatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Translator translates between Bulgarian and English
type Translator struct {
	apiKey  string
	model   string
	timeout time.Duration
	client  chatClient
	cache   *Cache
	breaker *retry.Breaker
}

// NewTranslator creates a new translator instance
func NewTranslator(apiKey string) *Translator {
	return newTranslator(apiKey, openai.NewClient(apiKey))
}

func newTranslator(apiKey string, client chatClient) *Translator {
	return &Translator{
		apiKey:  apiKey,
		model:   openai.GPT4oMini,
		timeout: 30 * time.Second,
		client:  client,
		cache:   NewCache(),
		breaker: retry.NewBreaker("openai-translation", retry.DefaultPolicy()),
	}
}

// TranslateToEnglish translates a Bulgarian word or phrase to English
func (t *Translator) TranslateToEnglish(ctx context.Context, text string) (string, error) {
	return t.translate(ctx, "bg:", text,
		"Translate the Bulgarian word '%s' to English. Respond with only the English translation, nothing else.")
}

// TranslateToBulgarian translates an English word to Bulgarian in Cyrillic script
func (t *Translator) TranslateToBulgarian(ctx context.Context, text string) (string, error) {
	return t.translate(ctx, "en:", text,
		"Translate the English word '%s' to Bulgarian. Respond with only the Bulgarian translation in Cyrillic script, nothing else.")
}

func (t *Translator) translate(ctx context.Context, direction, text, prompt string) (string, error) {
	text = strings.TrimSpace(text)
	if t.apiKey == "" || strings.Contains(t.apiKey, "${") {
		return "", fmt.Errorf("OpenAI API key not found")
	}
	if text == "" {
		return "", fmt.Errorf("nothing to translate")
	}
	if cached, ok := t.cache.Get(direction + text); ok {
		return cached, nil
	}

	req := openai.ChatCompletionRequest{
		Model: t.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: fmt.Sprintf(prompt, text),
			},
		},
		MaxTokens:   50,
		Temperature: 0.3,
	}

	var translation string
	err := t.breaker.Do(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, t.timeout)
		defer cancel()

		resp, err := t.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return err
		}
		if len(resp.Choices) == 0 {
			return retry.Permanent(fmt.Errorf("no translation returned"))
		}
		translation = strings.TrimSpace(resp.Choices[0].Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}

	t.cache.Add(direction+text, translation)
	return translation, nil
}

// SaveTranslation saves the translation to a file in the word directory
func SaveTranslation(wordDir, word, translation string) error {
	outputFile := filepath.Join(wordDir, "translation.txt")
	content := fmt.Sprintf("%s = %s\n", word, translation)

	if err := os.WriteFile(outputFile, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write translation file: %w", err)
	}
	return nil
}

// Cache stores translations in memory
type Cache struct {
	mu           sync.RWMutex
	translations map[string]string
}

// NewCache creates an empty translation cache
func NewCache() *Cache {
	return &Cache{translations: make(map[string]string)}
}

// Add adds a translation to the cache
func (c *Cache) Add(word, translation string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.translations[word] = translation
}

// Get retrieves a translation from the cache
func (c *Cache) Get(word string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	translation, ok := c.translations[word]
	return translation, ok
}

// All returns a copy of every cached translation
func (c *Cache) All() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make(map[string]string, len(c.translations))
	for k, v := range c.translations {
		result[k] = v
	}
	return result
}
