package image

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

const unsplashAPIURL = "https://api.unsplash.com"

// UnsplashSchema validates the settings of the unsplash provider
const UnsplashSchema = `{
  "type": "object",
  "required": ["api_key"],
  "properties": {
    "api_key": {"type": "string", "minLength": 1},
    "base_url": {"type": "string"},
    "orientation": {"enum": ["horizontal", "vertical", "all"]},
    "per_page": {"type": ["integer", "string"], "minimum": 1, "maximum": 30},
    "max_bytes": {"type": ["integer", "string"]},
    "requests_per_minute": {"type": ["integer", "string"]}
  }
}`

type unsplashSearchResponse struct {
	Total   int             `json:"total"`
	Results []unsplashPhoto `json:"results"`
}

type unsplashPhoto struct {
	ID          string `json:"id"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Description string `json:"description"`
	AltDesc     string `json:"alt_description"`
	URLs        struct {
		Regular string `json:"regular"`
		Thumb   string `json:"thumb"`
	} `json:"urls"`
	Links struct {
		Download string `json:"download_location"`
	} `json:"links"`
	User struct {
		Name string `json:"name"`
	} `json:"user"`
}

type unsplashBackend struct {
	accessKey string
	baseURL   string
	client    *http.Client
}

// NewUnsplash creates a provider searching Unsplash
func NewUnsplash(config *SearchConfig) (*SearchProvider, error) {
	if config == nil {
		config = DefaultSearchConfig()
	}
	if config.APIKey == "" || provider.Unresolved(config.APIKey) {
		return nil, fmt.Errorf("Unsplash access key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = unsplashAPIURL
	}

	client := &http.Client{Timeout: config.Timeout}
	backend := &unsplashBackend{accessKey: config.APIKey, baseURL: strings.TrimSuffix(config.BaseURL, "/"), client: client}
	return newSearchProvider(backend, config, client), nil
}

// NewUnsplashFromSettings creates the provider from registry settings.
// Unsplash allows 50 requests per hour on a demo key.
func NewUnsplashFromSettings(settings map[string]any) (*SearchProvider, error) {
	config := DefaultSearchConfig()
	config.RequestsPerMinute = 1
	if err := provider.DecodeSettings(settings, config); err != nil {
		return nil, err
	}
	return NewUnsplash(config)
}

func (b *unsplashBackend) Name() string {
	return "unsplash"
}

// Unsplash always requires attribution
func (b *unsplashBackend) AttributionRequired() bool {
	return true
}

func (b *unsplashBackend) newRequest(ctx context.Context, rawURL string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Client-ID "+b.accessKey)
	req.Header.Set("Accept-Version", "v1")
	return req, nil
}

func (b *unsplashBackend) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	params := url.Values{}
	params.Set("query", opts.Query)
	params.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.SafeSearch {
		params.Set("content_filter", "high")
	}
	if orientation := mapOrientation(opts.Orientation); orientation != "" {
		params.Set("orientation", orientation)
	}

	req, err := b.newRequest(ctx, b.baseURL+"/search/photos?"+params.Encode())
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &retry.StatusError{Service: "unsplash", Code: resp.StatusCode, Body: string(body)}
	}

	var searchResp unsplashSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	results := make([]SearchResult, 0, len(searchResp.Results))
	for _, photo := range searchResp.Results {
		description := photo.Description
		if description == "" {
			description = photo.AltDesc
		}
		results = append(results, SearchResult{
			ID:           photo.ID,
			URL:          photo.URLs.Regular,
			ThumbnailURL: photo.URLs.Thumb,
			Width:        photo.Width,
			Height:       photo.Height,
			Description:  description,
			Attribution:  fmt.Sprintf("Photo by %s on Unsplash", photo.User.Name),
			Source:       "unsplash",
			TrackURL:     photo.Links.Download,
		})
	}
	return results, nil
}

// Track triggers the download event the Unsplash API guidelines ask for.
// Failures are ignored.
func (b *unsplashBackend) Track(ctx context.Context, result SearchResult) {
	if result.TrackURL == "" {
		return
	}
	req, err := b.newRequest(ctx, result.TrackURL)
	if err != nil {
		return
	}
	if resp, err := b.client.Do(req); err == nil {
		resp.Body.Close()
	}
}

// mapOrientation maps our orientation values to Unsplash API values
func mapOrientation(orientation string) string {
	switch orientation {
	case "horizontal":
		return "landscape"
	case "vertical":
		return "portrait"
	default:
		return ""
	}
}
