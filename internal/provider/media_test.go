package provider

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRunBatchIsolatesFailures(t *testing.T) {
	reqs := []Request{{Content: "a"}, {Content: "fail"}, {Content: "c"}}

	results := RunBatch(context.Background(), reqs, time.Millisecond, func(_ context.Context, req Request) Result {
		if req.Content == "fail" {
			return Failed(errors.New("boom"))
		}
		return Succeeded(req.Content+".mp3", nil)
	})

	if len(results) != 3 {
		t.Fatalf("RunBatch() returned %d results, want 3", len(results))
	}
	if !results[0].Success || results[1].Success || !results[2].Success {
		t.Errorf("RunBatch() success flags = %v %v %v, want true false true",
			results[0].Success, results[1].Success, results[2].Success)
	}
	if results[2].OutputPath != "c.mp3" {
		t.Errorf("results[2].OutputPath = %q, want c.mp3", results[2].OutputPath)
	}
}

func TestRunBatchCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	results := RunBatch(ctx, []Request{{}, {}, {}}, 0, func(context.Context, Request) Result {
		calls++
		cancel()
		return Succeeded("", nil)
	})

	if calls != 1 {
		t.Errorf("generate called %d times, want 1", calls)
	}
	if !errors.Is(results[2].Err, context.Canceled) {
		t.Errorf("results[2].Err = %v, want context.Canceled", results[2].Err)
	}
}

func TestRequestParam(t *testing.T) {
	req := Request{Params: map[string]any{"voice": "nova", "empty": "", "n": 1}}

	if got := req.Param("voice", "alloy"); got != "nova" {
		t.Errorf("Param(voice) = %q, want nova", got)
	}
	if got := req.Param("empty", "alloy"); got != "alloy" {
		t.Errorf("Param(empty) = %q, want alloy", got)
	}
	if got := req.Param("n", "x"); got != "x" {
		t.Errorf("Param(n) = %q, want x", got)
	}
}
