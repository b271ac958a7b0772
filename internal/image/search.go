package image

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"codeberg.org/snonux/cardforge/internal/provider"
	"codeberg.org/snonux/cardforge/internal/retry"
)

// SearchResult represents a single image search result
type SearchResult struct {
	ID           string
	URL          string // Direct URL to the image
	ThumbnailURL string
	Width        int
	Height       int
	Description  string
	Attribution  string
	Source       string
	// TrackURL is pinged once the image is used, when the library asks for it
	TrackURL string
}

// SearchOptions configures one search
type SearchOptions struct {
	Query       string
	Language    string
	SafeSearch  bool
	PerPage     int
	ImageType   string // "photo", "illustration", "vector" or "all"
	Orientation string // "horizontal", "vertical" or "all"
}

// searcher is one stock photo library
type searcher interface {
	Name() string
	Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error)
	// AttributionRequired reports whether an attribution file must be kept
	// next to a downloaded image
	AttributionRequired() bool
	// Track tells the library an image was used
	Track(ctx context.Context, result SearchResult)
}

// SearchConfig holds the settings shared by the search providers
type SearchConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url"`
	Language          string        `mapstructure:"language"`
	ImageType         string        `mapstructure:"image_type"`
	Orientation       string        `mapstructure:"orientation"`
	SafeSearch        bool          `mapstructure:"safe_search"`
	PerPage           int           `mapstructure:"per_page"`
	MaxBytes          int64         `mapstructure:"max_bytes"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
}

// DefaultSearchConfig returns sensible defaults for Bulgarian word searches
func DefaultSearchConfig() *SearchConfig {
	return &SearchConfig{
		Language:          "bg",
		ImageType:         "photo",
		Orientation:       "all",
		SafeSearch:        true,
		PerPage:           5,
		MaxBytes:          10 * 1024 * 1024,
		RequestsPerMinute: 100,
		Timeout:           30 * time.Second,
	}
}

// SearchProvider searches a photo library and downloads the first usable
// hit. The English translation of the word is tried before the word itself.
type SearchProvider struct {
	backend searcher
	config  *SearchConfig
	client  *http.Client
	limiter *rate.Limiter
	breaker *retry.Breaker
}

var _ provider.ImageProvider = (*SearchProvider)(nil)

func newSearchProvider(backend searcher, config *SearchConfig, client *http.Client) *SearchProvider {
	return &SearchProvider{
		backend: backend,
		config:  config,
		client:  client,
		limiter: newLimiter(config.RequestsPerMinute),
		breaker: retry.NewBreaker(backend.Name(), retry.DefaultPolicy()),
	}
}

// Name returns the name of the photo library
func (p *SearchProvider) Name() string {
	return p.backend.Name()
}

// Generate finds and downloads an image for req.Content
func (p *SearchProvider) Generate(ctx context.Context, req provider.Request) provider.Result {
	if err := checkRequest(p.Name(), req); err != nil {
		return provider.Failed(err)
	}

	ctx, cancel := provider.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	var lastErr error
	for _, query := range p.queries(ctx, req) {
		results, err := p.search(ctx, query)
		if err != nil {
			lastErr = err
			continue
		}
		for _, result := range results {
			if err := download(ctx, p.client, result.URL, req.OutputPath, p.config.MaxBytes); err != nil {
				lastErr = err
				continue
			}
			return p.finish(ctx, req, query, result)
		}
	}

	if lastErr != nil {
		return provider.Failed(fmt.Errorf("%s: %w", p.Name(), lastErr))
	}
	return provider.Failed(fmt.Errorf("%s: no images found for %q", p.Name(), req.Content))
}

// GenerateBatch handles the requests one after another
func (p *SearchProvider) GenerateBatch(ctx context.Context, reqs []provider.Request) []provider.Result {
	return provider.RunBatch(ctx, reqs, p.config.BatchDelay, p.Generate)
}

func (p *SearchProvider) queries(ctx context.Context, req provider.Request) []string {
	if query := req.Param("query", ""); query != "" {
		return []string{query}
	}
	queries := []string{}
	if english := englishFor(ctx, nil, req); english != "" {
		queries = append(queries, english)
	}
	if word := strings.TrimSpace(req.Content); len(queries) == 0 || !strings.EqualFold(word, queries[0]) {
		queries = append(queries, word)
	}
	return queries
}

func (p *SearchProvider) search(ctx context.Context, query string) ([]SearchResult, error) {
	opts := SearchOptions{
		Query:       query,
		Language:    p.config.Language,
		SafeSearch:  p.config.SafeSearch,
		PerPage:     p.config.PerPage,
		ImageType:   p.config.ImageType,
		Orientation: p.config.Orientation,
	}

	var results []SearchResult
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
		var err error
		results, err = p.backend.Search(ctx, opts)
		return err
	})
	return results, err
}

func (p *SearchProvider) finish(ctx context.Context, req provider.Request, query string, result SearchResult) provider.Result {
	p.backend.Track(ctx, result)

	metadata := map[string]any{
		"source":      result.Source,
		"id":          result.ID,
		"query":       query,
		"url":         result.URL,
		"width":       result.Width,
		"height":      result.Height,
		"description": result.Description,
	}
	if result.Attribution != "" {
		metadata["attribution"] = result.Attribution
	}
	if p.backend.AttributionRequired() && result.Attribution != "" {
		attrPath := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + "_attribution.txt"
		if err := writeFile(attrPath, []byte(result.Attribution+"\n")); err != nil {
			return provider.Failed(fmt.Errorf("failed to save attribution: %w", err))
		}
		metadata["attribution_file"] = attrPath
	}
	return provider.Succeeded(req.OutputPath, metadata)
}

// newLimiter spreads rpm requests over a minute, allowing a burst of rpm.
// A non-positive rpm disables limiting.
func newLimiter(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), rpm)
}
