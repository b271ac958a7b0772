package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

const pixabayAPIURL = "https://pixabay.com/api/"

// PixabaySchema validates the settings of the pixabay provider
const PixabaySchema = `{
  "type": "object",
  "properties": {
    "api_key": {"type": "string"},
    "base_url": {"type": "string"},
    "language": {"type": "string"},
    "image_type": {"enum": ["photo", "illustration", "vector", "all"]},
    "orientation": {"enum": ["horizontal", "vertical", "all"]},
    "safe_search": {"type": ["boolean", "string"]},
    "per_page": {"type": ["integer", "string"], "minimum": 3, "maximum": 200},
    "max_bytes": {"type": ["integer", "string"]},
    "requests_per_minute": {"type": ["integer", "string"]}
  }
}`

// pixabayResponse represents the API response structure
type pixabayResponse struct {
	Total     int            `json:"total"`
	TotalHits int            `json:"totalHits"`
	Hits      []pixabayImage `json:"hits"`
}

type pixabayImage struct {
	ID              int    `json:"id"`
	PageURL         string `json:"pageURL"`
	Tags            string `json:"tags"`
	PreviewURL      string `json:"previewURL"`
	WebformatURL    string `json:"webformatURL"`
	WebformatWidth  int    `json:"webformatWidth"`
	WebformatHeight int    `json:"webformatHeight"`
	User            string `json:"user"`
}

type pixabayBackend struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewPixabay creates a provider searching Pixabay
func NewPixabay(config *SearchConfig) (*SearchProvider, error) {
	if config == nil {
		config = DefaultSearchConfig()
	}
	if provider.Unresolved(config.APIKey) {
		config.APIKey = ""
	}
	if config.BaseURL == "" {
		config.BaseURL = pixabayAPIURL
	}

	client := &http.Client{Timeout: config.Timeout}
	backend := &pixabayBackend{apiKey: config.APIKey, baseURL: config.BaseURL, client: client}
	return newSearchProvider(backend, config, client), nil
}

// NewPixabayFromSettings creates the provider from registry settings
func NewPixabayFromSettings(settings map[string]any) (*SearchProvider, error) {
	config := DefaultSearchConfig()
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewPixabay(config)
}

func (b *pixabayBackend) Name() string {
	return "pixabay"
}

// Without an API key, attribution is required
func (b *pixabayBackend) AttributionRequired() bool {
	return b.apiKey == ""
}

func (b *pixabayBackend) Track(context.Context, SearchResult) {}

func (b *pixabayBackend) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	params := url.Values{}
	if b.apiKey != "" {
		params.Set("key", b.apiKey)
	}
	params.Set("q", opts.Query)
	params.Set("lang", opts.Language)
	params.Set("image_type", opts.ImageType)
	params.Set("safesearch", strconv.FormatBool(opts.SafeSearch))
	params.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Orientation != "all" && opts.Orientation != "" {
		params.Set("orientation", opts.Orientation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Service: "pixabay", Code: resp.StatusCode, Body: string(body)}
	}

	var pixResp pixabayResponse
	if err := json.NewDecoder(resp.Body).Decode(&pixResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(pixResp.Hits))
	for _, hit := range pixResp.Hits {
		results = append(results, SearchResult{
			ID:           strconv.Itoa(hit.ID),
			URL:          hit.WebformatURL,
			ThumbnailURL: hit.PreviewURL,
			Width:        hit.WebformatWidth,
			Height:       hit.WebformatHeight,
			Description:  hit.Tags,
			Attribution:  fmt.Sprintf("Image by %s from Pixabay", hit.User),
			Source:       "pixabay",
		})
	}
	return results, nil
}
