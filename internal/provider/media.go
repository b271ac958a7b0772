package provider

import (
	"context"
	"time"
)

// Request kinds understood by media providers
const (
	KindSpeech        = "speech"
	KindPronunciation = "pronunciation"
	KindImage         = "image"
)

// Request asks a media provider for one artifact
type Request struct {
	Kind       string
	Content    string
	Params     map[string]any
	OutputPath string
}

// Param returns a string parameter or def
func (r Request) Param(key, def string) string {
	if v, ok := r.Params[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Result is the outcome of one media request. Failures are reported in
// the result rather than as an error so batches can continue.
type Result struct {
	Success    bool
	OutputPath string
	Metadata   map[string]any
	Err        error
}

// Succeeded creates a successful result
func Succeeded(outputPath string, metadata map[string]any) Result {
	return Result{Success: true, OutputPath: outputPath, Metadata: metadata}
}

// Failed creates a failed result
func Failed(err error) Result {
	return Result{Err: err}
}

// AudioProvider generates speech and pronunciation data
type AudioProvider interface {
	Name() string
	Generate(ctx context.Context, req Request) Result
	GenerateBatch(ctx context.Context, reqs []Request) []Result
}

// ImageProvider generates or finds images
type ImageProvider interface {
	Name() string
	Generate(ctx context.Context, req Request) Result
	GenerateBatch(ctx context.Context, reqs []Request) []Result
}

// GenerateFunc produces one result
type GenerateFunc func(ctx context.Context, req Request) Result

// RunBatch calls generate for each request in order, sleeping delay
// between calls. A failed item never stops the batch. When ctx is done,
// the remaining items fail with the context error.
func RunBatch(ctx context.Context, reqs []Request, delay time.Duration, generate GenerateFunc) []Result {
	results := make([]Result, len(reqs))
	for i, req := range reqs {
		if i > 0 && delay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(delay):
			}
		}
		if err := ctx.Err(); err != nil {
			results[i] = Failed(err)
			continue
		}
		results[i] = generate(ctx, req)
	}
	return results
}

// WithTimeout bounds one external call; a zero timeout leaves ctx as is
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
