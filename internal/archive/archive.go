// Package archive moves generated output out of the way before it is
// regenerated from scratch.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Subdir is the directory, next to the archived one, holding all archives
const Subdir = "archive"

// Dir moves dir to <parent>/archive/<name>-<timestamp> and returns the new
// location
func Dir(dir string, now time.Time) (string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("directory does not exist: %s", dir)
		}
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", dir)
	}

	clean := filepath.Clean(dir)
	archiveDir := filepath.Join(filepath.Dir(clean), Subdir)
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create archive directory: %w", err)
	}

	base := filepath.Base(clean)
	target := filepath.Join(archiveDir, fmt.Sprintf("%s-%s", base, now.Format("20060102-150405")))
	if _, err := os.Stat(target); err == nil {
		target = filepath.Join(archiveDir, fmt.Sprintf("%s-%s", base, now.Format("20060102-150405.000000")))
	}
	// Same microsecond twice
	for i := 2; ; i++ {
		if _, err := os.Stat(target); errors.Is(err, fs.ErrNotExist) {
			break
		}
		target = filepath.Join(archiveDir, fmt.Sprintf("%s-%s-%d", base, now.Format("20060102-150405.000000"), i))
	}

	if err := os.Rename(clean, target); err != nil {
		return "", fmt.Errorf("failed to archive %s: %w", dir, err)
	}
	return target, nil
}
