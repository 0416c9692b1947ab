package sqlstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/storesync"
)

// Postgres is the product store of the hosted storefront
type Postgres struct {
	pool   *pgxpool.Pool
	name   string
	logger *zap.Logger
}

// ParseConfig validates a DSN and applies the pool size
func ParseConfig(dsn string, maxConns int32) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	return cfg, nil
}

// OpenPostgres connects and verifies the connection. The schema is created
// only when migrate is set; the live application usually owns it.
func OpenPostgres(ctx context.Context, dsn string, maxConns int32, migrate bool, logger *zap.Logger) (*Postgres, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg, err := ParseConfig(dsn, maxConns)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if migrate {
		if _, err := pool.Exec(ctx, schema); err != nil {
			pool.Close()
			return nil, fmt.Errorf("init schema: %w", err)
		}
	}

	return &Postgres{
		pool:   pool,
		name:   cfg.ConnConfig.Database,
		logger: logger.Named("postgres"),
	}, nil
}

// Close releases the pool
func (s *Postgres) Close() {
	s.pool.Close()
}

// Name is the stem used for backups of this store
func (s *Postgres) Name() string {
	if s.name == "" {
		return "postgres"
	}
	return s.name
}

// Load reads every product
func (s *Postgres) Load(ctx context.Context) (*domain.Catalog, error) {
	rows, err := s.pool.Query(ctx, selectProducts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInputNotFound, err)
	}
	defer rows.Close()

	catalog := &domain.Catalog{Source: "postgres:" + s.Name()}
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

	s.logger.Info("catalog loaded", zap.String("database", s.Name()), zap.Int("products", len(catalog.Products)))
	return catalog, nil
}

// UpdateImage sets the primary photo; an empty image clears it
func (s *Postgres) UpdateImage(ctx context.Context, id int64, image string) error {
	return s.update(ctx, id, "image", nullable(image))
}

// UpdateCategory sets the category
func (s *Postgres) UpdateCategory(ctx context.Context, id int64, category string) error {
	return s.update(ctx, id, "category", nullable(category))
}

// UpdateImages replaces the secondary photo list
func (s *Postgres) UpdateImages(ctx context.Context, id int64, images []string) error {
	encoded, err := encodeImages(images)
	if err != nil {
		return err
	}
	return s.update(ctx, id, "images", encoded)
}

// DeleteProduct removes a product
func (s *Postgres) DeleteProduct(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	return checkTag(tag, id)
}

func (s *Postgres) update(ctx context.Context, id int64, column string, value interface{}) error {
	tag, err := s.pool.Exec(ctx,
		"UPDATE products SET "+column+" = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2",
		value, id)
	if err != nil {
		return fmt.Errorf("update %s of product %d: %w", column, id, err)
	}
	return checkTag(tag, id)
}

func checkTag(tag pgconn.CommandTag, id int64) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %d", domain.ErrProductNotFound, id)
	}
	return nil
}
