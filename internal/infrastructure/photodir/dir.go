package photodir

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
)

// Dir lists the flat photo directory of the storefront
type Dir struct {
	path       string
	extensions map[string]bool
	logger     *zap.Logger
}

// New creates a listing source. Extensions are matched case-insensitively and
// may be given with or without the leading dot.
func New(path string, extensions []string, logger *zap.Logger) *Dir {
	if logger == nil {
		logger = zap.NewNop()
	}
	exts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts[ext] = true
	}

	return &Dir{
		path:       path,
		extensions: exts,
		logger:     logger.Named("photodir"),
	}
}

// Path returns the directory location
func (d *Dir) Path() string {
	return d.path
}

// List returns the photo file names in lexical order. Subdirectories and
// hidden files are skipped.
func (d *Dir) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPhotoDirUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	skipped := 0
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !d.Accepts(name) {
			skipped++
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	d.logger.Debug("photo directory listed",
		zap.String("path", d.path),
		zap.Int("photos", len(names)),
		zap.Int("skipped", skipped))

	return names, nil
}

// Accepts reports whether name has one of the configured photo extensions.
// With no extensions configured every file is accepted.
func (d *Dir) Accepts(name string) bool {
	if len(d.extensions) == 0 {
		return true
	}
	i := strings.LastIndexByte(name, '.')
	if i < 0 {
		return false
	}
	return d.extensions[strings.ToLower(name[i:])]
}
