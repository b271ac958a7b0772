package image

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"codeberg.org/snonux/cardforge/internal/retry"
)

// download fetches url into outputPath. Images larger than maxBytes are
// rejected and nothing is left behind.
func download(ctx context.Context, client *http.Client, url, outputPath string, maxBytes int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &retry.StatusError{Service: "image download", Code: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if maxBytes > 0 {
		body = io.LimitReader(resp.Body, maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return fmt.Errorf("image exceeds maximum size of %d bytes", maxBytes)
	}
	if len(data) == 0 {
		return fmt.Errorf("empty image at %s", url)
	}
	return writeFile(outputPath, data)
}

// writeFile creates parent directories and writes data
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return writeFile(dst, data)
}
