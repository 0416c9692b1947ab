package domain

import (
	"context"
	"time"
)

// CacheRepository caches classifier verdicts keyed by normalized input
type CacheRepository interface {
	Get(ctx context.Context, key string) (CategoryGuess, error)
	Set(ctx context.Context, key string, guess CategoryGuess, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
}

// ProductUpdater applies key-based updates to the live product store
type ProductUpdater interface {
	UpdateImage(ctx context.Context, id int64, image string) error
	UpdateCategory(ctx context.Context, id int64, category string) error
	DeleteProduct(ctx context.Context, id int64) error
}

// CatalogSource loads the working set. Any error is fatal for the run.
type CatalogSource interface {
	Load(ctx context.Context) (*Catalog, error)
}

// PhotoSource enumerates the photo directory. Any error is fatal for the run.
type PhotoSource interface {
	List(ctx context.Context) ([]string, error)
}

// CatalogSink persists a reconciled catalog. Backup must succeed before Commit
// is called; Commit reports per-record failures as issues.
type CatalogSink interface {
	Backup(ctx context.Context, catalog *Catalog) (string, error)
	Commit(ctx context.Context, catalog *Catalog, changes []Change) ([]Issue, error)
}

// ImagesUpdater is implemented by stores that keep the secondary photo list
type ImagesUpdater interface {
	UpdateImages(ctx context.Context, id int64, images []string) error
}
