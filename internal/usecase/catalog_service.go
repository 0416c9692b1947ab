package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/provansdecor/catalog/internal/domain"
)

// Previewer runs a reconciliation; *Reconciler implements it
type Previewer interface {
	Run(ctx context.Context, opts RunOptions) (*Summary, error)
}

// CatalogServiceConfig holds configuration for the catalog service
type CatalogServiceConfig struct {
	CacheTTL time.Duration
}

// CatalogService answers the preview API: single-title classification with
// caching, normalization, scoring and dry-run previews.
type CatalogService struct {
	engine    *Engine
	cache     domain.CacheRepository
	previewer Previewer
	cacheTTL  time.Duration
	group     singleflight.Group
	logger    *zap.Logger
}

// NewCatalogService creates a catalog service. cache and previewer may be nil.
func NewCatalogService(
	engine *Engine,
	cache domain.CacheRepository,
	previewer Previewer,
	config CatalogServiceConfig,
	logger *zap.Logger,
) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}

	cacheTTL := config.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = 720 * time.Hour // Default 30 days
	}

	return &CatalogService{
		engine:    engine,
		cache:     cache,
		previewer: previewer,
		cacheTTL:  cacheTTL,
		logger:    logger.Named("catalog"),
	}
}

// Classify returns the category verdict for a title.
// Flow: check cache -> classify -> cache -> return
func (s *CatalogService) Classify(ctx context.Context, request *domain.ClassifyRequest) (*domain.ClassifyResponse, error) {
	if request == nil || strings.TrimSpace(request.Title) == "" {
		return nil, domain.ErrInvalidRequest
	}

	cacheKey := s.generateCacheKey(request)

	if s.cache != nil {
		guess, err := s.cache.Get(ctx, cacheKey)
		switch {
		case err == nil:
			return s.toResponse(guess, "cache"), nil
		case !errors.Is(err, domain.ErrCacheMiss):
			s.logger.Warn("cache read failed", zap.Error(err))
		}
	}

	guess := s.engine.Classifier.Classify(request.Title, request.Image)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, guess, s.cacheTTL); err != nil {
			// caching is best effort
			s.logger.Warn("cache write failed", zap.Error(err))
		}
	}

	return s.toResponse(guess, "classifier"), nil
}

// generateCacheKey keys verdicts by the exact text the classifier sees.
// Format: "classify:{normalized_title}:{normalized_photo_stem}"
func (s *CatalogService) generateCacheKey(request *domain.ClassifyRequest) string {
	n := s.engine.Normalizer
	return fmt.Sprintf("classify:%s:%s", n.Normalize(request.Title), n.Normalize(n.PhotoStem(request.Image)))
}

func (s *CatalogService) toResponse(guess domain.CategoryGuess, source string) *domain.ClassifyResponse {
	resp := &domain.ClassifyResponse{
		Category:   guess.Category,
		Confidence: guess.Confidence,
		Ambiguous:  guess.Ambiguous,
		Matched:    guess.Matched,
		Source:     source,
	}
	if guess.Found() {
		resp.Label = guess.Category.Label()
	}
	return resp
}

// Normalize returns the fuzzy and literal comparison forms of text
func (s *CatalogService) Normalize(request *domain.NormalizeRequest) (*domain.NormalizeResponse, error) {
	if request == nil || request.Text == "" {
		return nil, domain.ErrInvalidRequest
	}
	n := s.engine.Normalizer
	return &domain.NormalizeResponse{
		Normalized: n.Normalize(request.Text),
		Literal:    n.Literal(request.Text),
		Damaged:    n.IsDamaged(request.Text),
	}, nil
}

// Score compares two strings after normalization
func (s *CatalogService) Score(request *domain.SimilarityRequest) (*domain.SimilarityResponse, error) {
	if request == nil {
		return nil, domain.ErrInvalidRequest
	}
	n := s.engine.Normalizer
	a, b := n.Normalize(request.A), n.Normalize(request.B)
	score := Similarity(a, b)
	threshold := s.engine.Matcher.Threshold()

	return &domain.SimilarityResponse{
		Score:          score,
		NormalizedA:    a,
		NormalizedB:    b,
		Threshold:      threshold,
		AboveThreshold: score >= threshold,
	}, nil
}

// Preview runs a dry-run reconciliation of the configured inputs. Concurrent
// callers share one run.
func (s *CatalogService) Preview(ctx context.Context) (*Summary, error) {
	if s.previewer == nil {
		return nil, fmt.Errorf("%w: no catalog configured for preview", domain.ErrInvalidRequest)
	}

	ch := s.group.DoChan("preview", func() (interface{}, error) {
		// runs detached from the cancellation of whichever caller started it
		return s.previewer.Run(context.WithoutCancel(ctx), RunOptions{})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Summary), nil
	}
}
