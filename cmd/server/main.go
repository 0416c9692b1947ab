package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/provansdecor/catalog/config"
	"github.com/provansdecor/catalog/internal/app"
	httpDelivery "github.com/provansdecor/catalog/internal/delivery/http"
	"github.com/provansdecor/catalog/internal/logging"
	"github.com/provansdecor/catalog/internal/usecase"
)

func main() {
	configFile := flag.String("config", "", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting Provans catalog service v1.0.0",
		zap.String("environment", cfg.Server.Environment),
		zap.String("port", cfg.Server.Port),
		zap.String("cache", cfg.Cache.Type),
		zap.String("store", cfg.Store.Driver))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := app.NewEngine(cfg, logger)
	if err != nil {
		return err
	}

	verdicts, closeCache, err := app.NewCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	// Preview is only offered when a catalog is configured
	var previewer usecase.Previewer
	catalog, err := app.OpenCatalog(ctx, cfg, logger)
	switch {
	case errors.Is(err, app.ErrNoCatalog):
		logger.Warn("reconcile preview disabled", zap.Error(err))
	case err != nil:
		return err
	default:
		defer catalog.Close()
		reconciler, err := app.NewReconciler(cfg, engine, catalog, logger)
		if err != nil {
			return err
		}
		previewer = reconciler
	}

	catalogService := usecase.NewCatalogService(engine, verdicts, previewer,
		usecase.CatalogServiceConfig{CacheTTL: cfg.Cache.TTL}, logger)

	// Create HTTP handler with dependencies
	handler := httpDelivery.NewHandler(catalogService, cfg.Server.PreviewTimeout, logger)

	// Setup router
	router := httpDelivery.SetupRouter(cfg, handler, logger)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
