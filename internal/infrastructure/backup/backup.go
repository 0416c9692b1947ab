package backup

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Layout is the timestamp format embedded in backup file names
const Layout = "20060102-150405"

// Name returns the backup file name for a source file taken at t, e.g.
// products.backup-20241018-153000.json
func Name(source string, t time.Time) string {
	base := filepath.Base(source)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if ext == "" {
		ext = ".json"
	}
	return fmt.Sprintf("%s.backup-%s%s", stem, t.Format(Layout), ext)
}

// Write persists data under dir as a timestamped copy of source and verifies
// it by reading it back. It never overwrites an earlier backup.
func Write(dir, source string, data []byte, t time.Time) (string, error) {
	if dir == "" {
		dir = filepath.Dir(source)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	name := Name(source, t)
	target := filepath.Join(dir, name)
	for i := 2; fileExists(target); i++ {
		ext := filepath.Ext(name)
		target = filepath.Join(dir, fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), i, ext))
	}

	if err := WriteFileAtomic(target, data, 0o644); err != nil {
		return "", fmt.Errorf("write backup: %w", err)
	}

	written, err := os.ReadFile(target)
	if err != nil {
		return "", fmt.Errorf("verify backup: %w", err)
	}
	if !bytes.Equal(written, data) {
		return "", fmt.Errorf("verify backup: %s differs from snapshot", target)
	}

	return target, nil
}

// WriteFileAtomic writes to a temporary sibling, syncs it and renames it over path
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
