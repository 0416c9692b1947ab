package catalogfile

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/backup"
)

// Supported document formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// Options configures a catalog file
type Options struct {
	// BackupDir receives timestamped snapshots; empty means next to the file
	BackupDir string
	// Format forces json or csv; empty picks by extension
	Format string
	Logger *zap.Logger
}

// File is a product export on disk. It is both the source and the sink of a
// run: Load remembers the document layout so Commit can write the same shape.
type File struct {
	path      string
	backupDir string
	format    string
	validate  *validator.Validate
	logger    *zap.Logger
	now       func() time.Time

	layout      *layout
	backupTaken bool
}

// layout is what Commit needs to reproduce the input document
type layout struct {
	wrapped  bool
	envelope map[string]json.RawMessage
	csv      *csvLayout
}

// New creates a catalog file handle
func New(path string, opts Options) *File {
	format := strings.ToLower(opts.Format)
	if format == "" {
		format = FormatJSON
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = FormatCSV
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &File{
		path:      path,
		backupDir: opts.BackupDir,
		format:    format,
		validate:  newValidator(),
		logger:    logger.Named("catalogfile"),
		now:       time.Now,
	}
}

// Path returns the file location
func (f *File) Path() string {
	return f.path
}

// Load reads and validates the document. A missing file or a document that
// does not parse is fatal; individual bad records are quarantined.
func (f *File) Load(ctx context.Context) (*domain.Catalog, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrInputNotFound, f.path)
		}
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInputNotFound, f.path, err)
	}

	var records []map[string]json.RawMessage
	l := &layout{}
	switch f.format {
	case FormatCSV:
		l.csv, records, err = decodeCSV(data)
	case FormatJSON:
		records, l.wrapped, l.envelope, err = decodeJSON(data)
	default:
		err = fmt.Errorf("unsupported format %q", f.format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, f.path, err)
	}
	f.layout = l
	f.backupTaken = false

	catalog := buildCatalog(f.validate, records, data, f.path)

	f.logger.Info("catalog loaded",
		zap.String("path", f.path),
		zap.String("format", f.format),
		zap.Int("products", len(catalog.Products)),
		zap.Int("issues", len(catalog.Issues)))

	return catalog, nil
}

// Backup writes the unmodified snapshot taken at load time
func (f *File) Backup(ctx context.Context, catalog *domain.Catalog) (string, error) {
	if catalog == nil || catalog.Snapshot == nil {
		return "", fmt.Errorf("%w: no snapshot loaded", domain.ErrBackupFailed)
	}
	path, err := backup.Write(f.backupDir, f.path, catalog.Snapshot, f.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackupFailed, err)
	}
	f.backupTaken = true
	return path, nil
}

// Commit rewrites the document with reconciled products. It refuses to run
// unless Backup succeeded for the current load.
func (f *File) Commit(ctx context.Context, catalog *domain.Catalog, changes []domain.Change) ([]domain.Issue, error) {
	if !f.backupTaken {
		return nil, fmt.Errorf("%w: refusing to overwrite %s without a backup", domain.ErrBackupFailed, f.path)
	}
	if f.layout == nil {
		return nil, fmt.Errorf("%w: commit before load", domain.ErrInvalidRequest)
	}

	records := make([]map[string]json.RawMessage, 0, len(catalog.Products))
	var issues []domain.Issue
	for _, p := range catalog.Products {
		raw, err := applyProduct(p)
		if err != nil {
			// keep the record as it was
			issues = append(issues, domain.NewIssue(p, domain.ErrInvalidInput, err.Error()))
			raw = p.Raw
		}
		records = append(records, raw)
	}

	var (
		data []byte
		err  error
	)
	if f.layout.csv != nil {
		data, err = encodeCSV(f.layout.csv, records)
	} else {
		data, err = encodeJSON(records, f.layout.wrapped, f.layout.envelope)
	}
	if err != nil {
		return issues, fmt.Errorf("encode %s: %w", f.path, err)
	}

	if err := backup.WriteFileAtomic(f.path, data, 0o644); err != nil {
		return issues, fmt.Errorf("write %s: %w", f.path, err)
	}

	f.logger.Info("catalog written",
		zap.String("path", f.path),
		zap.Int("products", len(records)),
		zap.Int("changes", len(changes)))

	return issues, nil
}

// DecodeJSON parses a JSON product document received from elsewhere, such as
// the storefront API, into a catalog whose snapshot is data itself.
func DecodeJSON(data []byte, source string) (*domain.Catalog, error) {
	records, _, _, err := decodeJSON(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, source, err)
	}
	return buildCatalog(newValidator(), records, data, source), nil
}

func buildCatalog(v *validator.Validate, records []map[string]json.RawMessage, data []byte, source string) *domain.Catalog {
	catalog := &domain.Catalog{
		Products: make([]*domain.Product, 0, len(records)),
		Snapshot: data,
		Source:   source,
	}

	seen := make(map[domain.ProductID]bool, len(records))
	for i, raw := range records {
		p, issues := parseRecord(v, i, raw)
		if seen[p.ID] {
			p.Quarantined = true
			issues = append(issues, domain.NewIssue(p, domain.ErrInvalidInput, "duplicate id"))
		}
		seen[p.ID] = true
		catalog.Products = append(catalog.Products, p)
		catalog.Issues = append(catalog.Issues, issues...)
	}
	return catalog
}

// decodeJSON accepts a bare array of products or an object with a products array
func decodeJSON(data []byte) ([]map[string]json.RawMessage, bool, map[string]json.RawMessage, error) {
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(data, utf8BOM))
	if len(trimmed) == 0 {
		return nil, false, nil, errors.New("empty document")
	}

	if trimmed[0] == '[' {
		var records []map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, false, nil, err
		}
		return records, false, nil, nil
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, false, nil, err
	}
	productsRaw, ok := envelope["products"]
	if !ok {
		return nil, false, nil, errors.New(`object has no "products" array`)
	}
	var records []map[string]json.RawMessage
	if err := json.Unmarshal(productsRaw, &records); err != nil {
		return nil, false, nil, fmt.Errorf("products: %w", err)
	}
	return records, true, envelope, nil
}

func encodeJSON(records []map[string]json.RawMessage, wrapped bool, envelope map[string]json.RawMessage) ([]byte, error) {
	var v interface{} = records
	if wrapped {
		out := make(map[string]interface{}, len(envelope))
		for k, raw := range envelope {
			out[k] = raw
		}
		out["products"] = records
		v = out
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
