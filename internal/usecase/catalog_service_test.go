package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provansdecor/catalog/internal/domain"
)

// mapCache is a minimal CacheRepository for service tests
type mapCache struct {
	mu      sync.Mutex
	entries map[string]domain.CategoryGuess
	getErr  error
	sets    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]domain.CategoryGuess)}
}

func (c *mapCache) Get(ctx context.Context, key string) (domain.CategoryGuess, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return domain.CategoryGuess{}, c.getErr
	}
	g, ok := c.entries[key]
	if !ok {
		return domain.CategoryGuess{}, domain.ErrCacheMiss
	}
	return g, nil
}

func (c *mapCache) Set(ctx context.Context, key string, guess domain.CategoryGuess, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = guess
	c.sets++
	return nil
}

func (c *mapCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *mapCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok, nil
}

type blockingPreviewer struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (p *blockingPreviewer) Run(ctx context.Context, opts RunOptions) (*Summary, error) {
	if p.calls.Add(1) == 1 {
		close(p.started)
	}
	<-p.release
	return &Summary{Mode: "dry-run", Products: 7}, nil
}

func newTestService(t *testing.T, cache domain.CacheRepository, previewer Previewer) *CatalogService {
	t.Helper()
	engine, err := NewEngine(EngineConfig{}, nil)
	require.NoError(t, err)
	return NewCatalogService(engine, cache, previewer, CatalogServiceConfig{}, nil)
}

func TestNewCatalogService_DefaultTTL(t *testing.T) {
	svc := newTestService(t, nil, nil)
	if svc.cacheTTL != 720*time.Hour {
		t.Errorf("cacheTTL = %v, want 720h (default)", svc.cacheTTL)
	}
}

func TestCatalogService_Classify(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects empty title", func(t *testing.T) {
		svc := newTestService(t, nil, nil)
		_, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: " "})
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)

		_, err = svc.Classify(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("miss then hit", func(t *testing.T) {
		cache := newMapCache()
		svc := newTestService(t, cache, nil)

		first, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: "Подсвечник бронзовый"})
		require.NoError(t, err)
		assert.Equal(t, "classifier", first.Source)
		assert.Equal(t, domain.CategoryCandlesticks, first.Category)
		assert.Equal(t, "Подсвечники", first.Label)

		// spacing and case do not change the key
		second, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: "  подсвечник   БРОНЗОВЫЙ"})
		require.NoError(t, err)
		assert.Equal(t, "cache", second.Source)
		assert.Equal(t, first.Category, second.Category)
		assert.Equal(t, 1, cache.sets)
	})

	t.Run("photo is part of the key", func(t *testing.T) {
		cache := newMapCache()
		svc := newTestService(t, cache, nil)

		_, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: "Декор"})
		require.NoError(t, err)
		resp, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: "Декор", Image: "Ваза.jpg"})
		require.NoError(t, err)
		assert.Equal(t, "classifier", resp.Source)
		assert.Equal(t, domain.CategoryVases, resp.Category)
	})

	t.Run("cache errors fall through", func(t *testing.T) {
		cache := newMapCache()
		cache.getErr = errors.New("connection refused")
		svc := newTestService(t, cache, nil)

		resp, err := svc.Classify(ctx, &domain.ClassifyRequest{Title: "Фоторамка"})
		require.NoError(t, err)
		assert.Equal(t, domain.CategoryFrames, resp.Category)
		assert.Equal(t, "classifier", resp.Source)
	})
}

func TestCatalogService_Score(t *testing.T) {
	svc := newTestService(t, nil, nil)

	resp, err := svc.Score(&domain.SimilarityRequest{A: "Ваза 2", B: "ваза"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, resp.Score)
	assert.True(t, resp.AboveThreshold)
	assert.Equal(t, DefaultMatchThreshold, resp.Threshold)

	_, err = svc.Score(nil)
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCatalogService_Normalize(t *testing.T) {
	svc := newTestService(t, nil, nil)

	resp, err := svc.Normalize(&domain.NormalizeRequest{Text: "Ваза №3"})
	require.NoError(t, err)
	assert.Equal(t, "ваза", resp.Normalized)
	assert.Equal(t, "ваза №3", resp.Literal)

	_, err = svc.Normalize(&domain.NormalizeRequest{})
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}

func TestCatalogService_Preview(t *testing.T) {
	t.Run("without previewer", func(t *testing.T) {
		svc := newTestService(t, nil, nil)
		_, err := svc.Preview(context.Background())
		assert.ErrorIs(t, err, domain.ErrInvalidRequest)
	})

	t.Run("concurrent callers share one run", func(t *testing.T) {
		previewer := &blockingPreviewer{started: make(chan struct{}), release: make(chan struct{})}
		svc := newTestService(t, nil, previewer)

		var wg sync.WaitGroup
		results := make([]*Summary, 3)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				s, err := svc.Preview(context.Background())
				assert.NoError(t, err)
				results[i] = s
			}(i)
			if i == 0 {
				<-previewer.started
			}
		}

		// let the followers join the in-flight run
		time.Sleep(50 * time.Millisecond)
		close(previewer.release)
		wg.Wait()

		assert.Equal(t, int32(1), previewer.calls.Load())
		for _, s := range results {
			require.NotNil(t, s)
			assert.Equal(t, 7, s.Products)
		}
	})

	t.Run("caller cancellation", func(t *testing.T) {
		previewer := &blockingPreviewer{started: make(chan struct{}), release: make(chan struct{})}
		defer close(previewer.release)
		svc := newTestService(t, nil, previewer)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := svc.Preview(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}
