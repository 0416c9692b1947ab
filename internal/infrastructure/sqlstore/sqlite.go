package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/storesync"
)

// SQLite is the product store of the single-binary storefront
type SQLite struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
}

// OpenSQLite opens (and creates if needed) the store at path
func OpenSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// a single writer keeps :memory: databases on one connection
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return &SQLite{db: db, path: path, logger: logger.Named("sqlite")}, nil
}

// Close closes the database connection
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Name is the stem used for backups of this store
func (s *SQLite) Name() string {
	base := filepath.Base(s.path)
	if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != "" && stem != ":memory:" {
		return stem
	}
	return "store"
}

// Load reads every product. The snapshot is the JSON form of the rows.
func (s *SQLite) Load(ctx context.Context) (*domain.Catalog, error) {
	rows, err := s.db.QueryContext(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInputNotFound, err)
	}
	defer rows.Close()

	catalog := &domain.Catalog{Source: "sqlite:" + s.path}
	for rows.Next() {
		var r row
		if err := rows.Scan(r.dest()...); err != nil {
			return nil, fmt.Errorf("%w: scan product: %v", domain.ErrInvalidInput, err)
		}
		p, issues := r.toProduct(len(catalog.Products))
		catalog.Products = append(catalog.Products, p)
		catalog.Issues = append(catalog.Issues, issues...)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	catalog.Snapshot, err = storesync.Snapshot(catalog.Products)
	if err != nil {
		return nil, fmt.Errorf("%w: snapshot: %v", domain.ErrInvalidInput, err)
	}

	s.logger.Info("catalog loaded", zap.String("path", s.path), zap.Int("products", len(catalog.Products)))
	return catalog, nil
}

// Save inserts or replaces a product; used by imports and tests
func (s *SQLite) Save(ctx context.Context, p *domain.Product) error {
	id, err := p.ID.Int64()
	if err != nil {
		return err
	}
	var images interface{}
	if p.HasImages {
		encoded, err := encodeImages(p.Images)
		if err != nil {
			return err
		}
		images = encoded
	}

	_, err = s.db.ExecContext(ctx, `INSERT INTO products
		(id, title, price, category, image, images, size, barcode, comment, discount)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title, price = excluded.price, category = excluded.category,
			image = excluded.image, images = excluded.images, size = excluded.size,
			barcode = excluded.barcode, comment = excluded.comment, discount = excluded.discount,
			updated_at = CURRENT_TIMESTAMP`,
		id, p.Title, p.Price.String(), nullable(string(p.Category)), nullable(p.Image), images,
		nullable(p.Size), nullable(p.Barcode), nullable(p.Comment), nullable(discountString(p)),
	)
	if err != nil {
		return fmt.Errorf("save product %d: %w", id, err)
	}
	return nil
}

// UpdateImage sets the primary photo; an empty image clears it
func (s *SQLite) UpdateImage(ctx context.Context, id int64, image string) error {
	return s.update(ctx, id, "image", nullable(image))
}

// UpdateCategory sets the category
func (s *SQLite) UpdateCategory(ctx context.Context, id int64, category string) error {
	return s.update(ctx, id, "category", nullable(category))
}

// UpdateImages replaces the secondary photo list
func (s *SQLite) UpdateImages(ctx context.Context, id int64, images []string) error {
	encoded, err := encodeImages(images)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "images", encoded)
}

// DeleteProduct removes a product
func (s *SQLite) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return checkAffected(res, id)
}

// column is one of a fixed set of names, never user input
func (s *SQLite) update(ctx context.Context, id int64, column string, value interface{}) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE products SET "+column+" = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
		value, id)
	if err != nil {
		return fmt.Errorf("update %s of product %d: %w", column, id, err)
	}
	return checkAffected(res, id)
}

func checkAffected(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return nil
}

func discountString(p *domain.Product) string {
	if p.Discount.IsZero() {
		return ""
	}
	return p.Discount.String()
}
