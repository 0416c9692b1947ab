package storefront

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/provansdecor/catalog/internal/domain"
	"github.com/provansdecor/catalog/internal/infrastructure/catalogfile"
)

const maxAttempts = 3

// Client talks to the storefront admin API
type Client struct {
	httpClient  *http.Client
	token       string
	baseURL     string
	rateLimiter *rate.Limiter
	debug       bool
	logger      *zap.Logger
	backoff     func(attempt int) time.Duration
}

// NewClient creates a new admin API client. rps bounds the request rate;
// zero means 5 requests per second.
func NewClient(token, baseURL string, rps float64, logger *zap.Logger) *Client {
	if rps <= 0 {
		rps = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	burst := int(rps)
	if burst < 1 {
		burst = 1
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		token:       token,
		baseURL:     strings.TrimRight(baseURL, "/"),
		rateLimiter: rate.NewLimiter(rate.Limit(rps), burst),
		logger:      logger.Named("storefront"),
		backoff:     exponentialBackoff,
	}
}

// SetDebug enables or disables per-request logging
func (c *Client) SetDebug(enabled bool) {
	c.debug = enabled
}

// exponentialBackoff returns the wait before retrying attempt (1-based)
func exponentialBackoff(attempt int) time.Duration {
	return time.Duration(500*(1<<(attempt-1))) * time.Millisecond
}

// Name is the stem used for backups of the remote catalog
func (c *Client) Name() string {
	return "storefront"
}

// Load fetches the full product list
func (c *Client) Load(ctx context.Context) (*domain.Catalog, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/admin/products", nil)
	if err != nil {
		if errors.Is(err, domain.ErrProductNotFound) {
			return nil, fmt.Errorf("%w: %s/api/admin/products", domain.ErrInputNotFound, c.baseURL)
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrInputNotFound, err)
	}
	return catalogfile.DecodeJSON(body, c.baseURL)
}

// UpdateImage sets the primary photo; an empty image clears it
func (c *Client) UpdateImage(ctx context.Context, id int64, image string) error {
	var value interface{}
	if image != "" {
		value = image
	}
	return c.patch(ctx, id, map[string]interface{}{"image": value})
}

// UpdateCategory sets the category
func (c *Client) UpdateCategory(ctx context.Context, id int64, category string) error {
	return c.patch(ctx, id, map[string]interface{}{"category": category})
}

// UpdateImages replaces the secondary photo list
func (c *Client) UpdateImages(ctx context.Context, id int64, images []string) error {
	if images == nil {
		images = []string{}
	}
	return c.patch(ctx, id, map[string]interface{}{"images": images})
}

// DeleteProduct removes a product
func (c *Client) DeleteProduct(ctx context.Context, id int64) error {
	_, err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/admin/products/%d", id), nil)
	return err
}

func (c *Client) patch(ctx context.Context, id int64, fields map[string]interface{}) error {
	payload, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	_, err = c.do(ctx, http.MethodPatch, fmt.Sprintf("/api/admin/products/%d", id), payload)
	return err
}

// do executes a request with rate limiting and retries. Transport errors,
// 429 and 5xx are retried; other statuses are final.
func (c *Client) do(ctx context.Context, method, path string, payload []byte) ([]byte, error) {
	reqURL := c.baseURL + path
	if c.debug {
		c.logger.Debug("request", zap.String("method", method), zap.String("url", reqURL))
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, c.backoff(attempt-1)); err != nil {
				return nil, err
			}
		}

		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter error: %w", err)
		}

		resp, err := c.doRequest(ctx, method, reqURL, payload)
		if err != nil {
			c.logger.Warn("request error", zap.Int("attempt", attempt), zap.Error(err))
			lastErr = err
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if c.debug {
				c.logger.Debug("response", zap.String("url", reqURL), zap.Int("status", resp.StatusCode))
			}
			return body, nil
		case resp.StatusCode == http.StatusNotFound:
			return nil, domain.ErrProductNotFound
		case resp.StatusCode == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("%w: status %d", domain.ErrRateLimited, resp.StatusCode)
		case resp.StatusCode >= 500:
			lastErr = fmt.Errorf("%w: status %d, body: %s", domain.ErrStoreFailure, resp.StatusCode, truncate(body))
		default:
			return nil, fmt.Errorf("%w: status %d, body: %s", domain.ErrStoreFailure, resp.StatusCode, truncate(body))
		}
		c.logger.Warn("api error",
			zap.Int("attempt", attempt),
			zap.Int("status", resp.StatusCode),
			zap.String("url", reqURL))
	}

	return nil, lastErr
}

func (c *Client) doRequest(ctx context.Context, method, reqURL string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "provans-catalog/1.0")
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrStoreFailure, err)
	}
	return resp, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(body []byte) string {
	const limit = 200
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
