// Package app wires configuration into the engine, the catalog source and
// sink, and the verdict cache. Both binaries build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/provansdecor/catalog/config"
	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/cache"
	"github.com/provansdecor/catalog/internal/infrastructure/catalogfile"
	"github.com/provansdecor/catalog/internal/infrastructure/photodir"
	"github.com/provansdecor/catalog/internal/infrastructure/sqlstore"
	"github.com/provansdecor/catalog/internal/infrastructure/storefront"
	"github.com/provansdecor/catalog/internal/infrastructure/storesync"
	"github.com/provansdecor/catalog/internal/usecase"
)

// ErrNoCatalog is returned when neither an input file nor a store is configured
var ErrNoCatalog = errors.New("no catalog input configured")

// NewEngine builds the matching components from configuration
func NewEngine(cfg *config.Config, logger *zap.Logger) (*usecase.Engine, error) {
	stage, err := usecase.ParseNumberStripStage(cfg.Matching.NumberStrip)
	if err != nil {
		return nil, err
	}

	return usecase.NewEngine(usecase.EngineConfig{
		Normalizer: usecase.NormalizerConfig{
			NumberStripStage: stage,
			Extensions:       cfg.Matching.Extensions,
		},
		Matcher: usecase.MatcherConfig{
			Threshold:          cfg.Matching.Threshold,
			UseLegacyPath:      cfg.Matching.LegacyPath,
			EnableDebugLogging: cfg.Matching.Debug,
		},
		RulesPath: cfg.Classifier.RulesFile,
	}, logger)
}

// Catalog is the source, sink and photo directory of one configured run
type Catalog struct {
	Source domain.CatalogSource
	Sink   domain.CatalogSink
	Photos *photodir.Dir

	closers []func()
}

// Close releases database handles
func (c *Catalog) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

// OpenCatalog selects the source and sink for cfg.Store.Driver. The file
// driver reads cfg.Catalog.Input and rewrites it in place; the other drivers
// load from the live store and update it product by product.
func OpenCatalog(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Catalog, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Catalog.PhotoDir == "" {
		return nil, fmt.Errorf("%w: photo directory is not set", ErrNoCatalog)
	}

	c := &Catalog{Photos: photodir.New(cfg.Catalog.PhotoDir, cfg.Matching.Extensions, logger)}

	switch cfg.Store.Driver {
	case "", "file":
		if cfg.Catalog.Input == "" {
			return nil, fmt.Errorf("%w: catalog input file is not set", ErrNoCatalog)
		}
		file := catalogfile.New(cfg.Catalog.Input, catalogfile.Options{
			BackupDir: cfg.Catalog.BackupDir,
			Format:    cfg.Catalog.Format,
			Logger:    logger,
		})
		c.Source, c.Sink = file, file

	case "sqlite":
		store, err := sqlstore.OpenSQLite(cfg.Store.DSN, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, func() { store.Close() })
		c.Source = store
		c.Sink = storesync.NewSink(store, store.Name(), cfg.Catalog.BackupDir, logger)

	case "postgres":
		store, err := sqlstore.OpenPostgres(ctx, cfg.Store.DSN, cfg.Store.MaxConns, cfg.Store.Migrate, logger)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, store.Close)
		c.Source = store
		c.Sink = storesync.NewSink(store, store.Name(), cfg.Catalog.BackupDir, logger)

	case "api":
		client := storefront.NewClient(cfg.Storefront.Token, cfg.Storefront.BaseURL, cfg.Storefront.RPS, logger)
		client.SetDebug(cfg.Storefront.Debug)
		c.Source = client
		c.Sink = storesync.NewSink(client, client.Name(), cfg.Catalog.BackupDir, logger)

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	logger.Info("catalog opened",
		zap.String("driver", cfg.Store.Driver),
		zap.String("photos", cfg.Catalog.PhotoDir))
	return c, nil
}

// NewReconciler builds the driver for an opened catalog
func NewReconciler(cfg *config.Config, engine *usecase.Engine, c *Catalog, logger *zap.Logger) (*usecase.Reconciler, error) {
	kind, ok := domain.ParseDuplicateKind(cfg.Dedupe.DeleteKind)
	if !ok {
		return nil, fmt.Errorf("unknown duplicate kind %q", cfg.Dedupe.DeleteKind)
	}

	return usecase.NewReconciler(c.Source, c.Photos, c.Sink, engine, usecase.ReconcilerConfig{
		ImagePrefix:    cfg.Catalog.ImagePrefix,
		CategoryFormat: cfg.Catalog.CategoryFormat,
		DeleteKind:     kind,
		SampleSize:     cfg.Catalog.SampleSize,
	}, logger), nil
}

// NewCache returns the configured verdict cache and a function closing it
func NewCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (domain.CacheRepository, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Cache.Type {
	case "redis":
		client, err := cache.NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		redisCache := cache.NewRedisCache(client)
		logger.Info("using redis cache")
		return redisCache, func() { redisCache.Close() }, nil
	default:
		memoryCache := cache.NewMemoryCache(0)
		return memoryCache, func() { memoryCache.Close() }, nil
	}
}
