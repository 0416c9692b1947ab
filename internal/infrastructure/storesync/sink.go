package storesync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/backup"
)

// Sink persists a reconciled catalog through key-based product updates. It is
// used for the live store variants where the whole document is never rewritten.
type Sink struct {
	updater   domain.ProductUpdater
	name      string
	backupDir string
	logger    *zap.Logger
	now       func() time.Time

	backupTaken bool
}

// NewSink creates a sink. name is the stem of backup files, e.g. "store".
func NewSink(updater domain.ProductUpdater, name, backupDir string, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if name == "" {
		name = "store"
	}

	return &Sink{
		updater:   updater,
		name:      name,
		backupDir: backupDir,
		logger:    logger.Named("storesync"),
		now:       time.Now,
	}
}

// Backup writes the JSON snapshot taken at load time
func (s *Sink) Backup(ctx context.Context, catalog *domain.Catalog) (string, error) {
	if catalog == nil || catalog.Snapshot == nil {
		return "", fmt.Errorf("%w: no snapshot loaded", domain.ErrBackupFailed)
	}
	dir := s.backupDir
	if dir == "" {
		dir = "."
	}
	path, err := backup.Write(dir, s.name+".json", catalog.Snapshot, s.now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrBackupFailed, err)
	}
	s.backupTaken = true
	return path, nil
}

// Commit applies every change as an individual update. Failed updates become
// issues; the remaining changes are still applied. Each commit consumes the
// backup taken before it.
func (s *Sink) Commit(ctx context.Context, catalog *domain.Catalog, changes []domain.Change) ([]domain.Issue, error) {
	if !s.backupTaken {
		return nil, fmt.Errorf("%w: refusing to update store without a backup", domain.ErrBackupFailed)
	}
	defer func() { s.backupTaken = false }()

	products := make(map[domain.ProductID]*domain.Product, len(catalog.Products))
	for _, p := range catalog.Products {
		products[p.ID] = p
	}

	var issues []domain.Issue
	applied := 0
	for _, change := range changes {
		if err := ctx.Err(); err != nil {
			return issues, err
		}

		p := products[change.ProductID]
		if p == nil {
			p = &domain.Product{ID: change.ProductID, Title: change.Title}
		}

		if err := s.apply(ctx, change, p); err != nil {
			s.logger.Warn("update failed",
				zap.String("product_id", string(change.ProductID)),
				zap.String("kind", string(change.Kind)),
				zap.Error(err))
			issues = append(issues, domain.NewIssue(p, domain.ErrStoreFailure, err.Error()))
			continue
		}
		applied++
	}

	s.logger.Info("store updated",
		zap.Int("applied", applied),
		zap.Int("failed", len(issues)))

	return issues, nil
}

func (s *Sink) apply(ctx context.Context, change domain.Change, p *domain.Product) error {
	id, err := change.ProductID.Int64()
	if err != nil {
		return err
	}

	switch change.Kind {
	case domain.ChangeImageSet:
		return s.updater.UpdateImage(ctx, id, change.New)
	case domain.ChangeImageCleared:
		return s.updater.UpdateImage(ctx, id, "")
	case domain.ChangeCategorySet:
		return s.updater.UpdateCategory(ctx, id, change.New)
	case domain.ChangeProductRemoved:
		return s.updater.DeleteProduct(ctx, id)
	case domain.ChangeImagesAppended:
		images, ok := s.updater.(domain.ImagesUpdater)
		if !ok {
			return errors.New("store does not keep secondary photos")
		}
		return images.UpdateImages(ctx, id, p.Images)
	default:
		return fmt.Errorf("unknown change kind %q", change.Kind)
	}
}

// Snapshot encodes products the way backups of a store are written
func Snapshot(products []*domain.Product) ([]byte, error) {
	if products == nil {
		products = []*domain.Product{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
