package storage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Backup copies a document to <backup_dir>/<id>-<timestamp>.json
func (s *JSONStore) Backup(id string) (string, error) {
	src, err := s.path(id)
	if err != nil {
		return "", err
	}

	// Check if the document exists
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return "", fmt.Errorf("document does not exist: %s", id)
	}

	if err := os.MkdirAll(s.config.BackupDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	now := time.Now()
	backupPath := filepath.Join(s.config.BackupDir, fmt.Sprintf("%s-%s.json", id, now.Format(backupLayout)))

	// Two backups within the same second get microsecond precision
	if _, err := os.Stat(backupPath); err == nil {
		backupPath = filepath.Join(s.config.BackupDir, fmt.Sprintf("%s-%s.json", id, now.Format(backupLayout+".000000")))
	}

	if err := copyFile(src, backupPath); err != nil {
		return "", fmt.Errorf("failed to back up %s: %w", id, err)
	}
	return backupPath, nil
}

// backupLayout is the timestamp in backup names; a second backup within
// the same second adds microseconds
const backupLayout = "20060102-150405"

var backupStamp = regexp.MustCompile(`^(\d{8}-\d{6}(?:\.\d{6})?)\.json$`)

// Backups lists the backup files of a document, oldest first
func (s *JSONStore) Backups(id string) ([]string, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.config.BackupDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	type backup struct {
		path string
		at   time.Time
	}
	var backups []backup
	for _, entry := range entries {
		rest, ok := strings.CutPrefix(entry.Name(), id+"-")
		if !ok || entry.IsDir() {
			continue
		}
		// "a-b-20250101-120000.json" belongs to "a-b", not to "a"
		m := backupStamp.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		at, err := time.Parse(backupLayout, m[1])
		if err != nil {
			continue
		}
		backups = append(backups, backup{path: filepath.Join(s.config.BackupDir, entry.Name()), at: at})
	}

	sort.SliceStable(backups, func(i, j int) bool { return backups[i].at.Before(backups[j].at) })
	paths := make([]string, len(backups))
	for i, b := range backups {
		paths[i] = b.path
	}
	return paths, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
