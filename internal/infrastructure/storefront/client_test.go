package storefront

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provansdecor/catalog/internal/domain"
)

func newTestClient(url string) *Client {
	c := NewClient("secret", url, 1000, nil)
	c.backoff = func(int) time.Duration { return 0 }
	return c
}

func TestNewClient(t *testing.T) {
	client := NewClient("secret", "https://shop.example.com/", 0, nil)

	assert.NotNil(t, client)
	assert.Equal(t, "secret", client.token)
	assert.Equal(t, "https://shop.example.com", client.baseURL)
	assert.NotNil(t, client.httpClient)
	assert.NotNil(t, client.rateLimiter)
	assert.False(t, client.debug)

	client.SetDebug(true)
	assert.True(t, client.debug)
}

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 500 * time.Millisecond},
		{2, 1000 * time.Millisecond},
		{3, 2000 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.expected.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, exponentialBackoff(tt.attempt))
		})
	}
}

func TestUpdateImage(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "/api/admin/products/42", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	require.NoError(t, client.UpdateImage(context.Background(), 42, "/photos/vaza.jpg"))
	assert.Equal(t, map[string]interface{}{"image": "/photos/vaza.jpg"}, got)

	require.NoError(t, client.UpdateImage(context.Background(), 42, ""))
	assert.Equal(t, map[string]interface{}{"image": nil}, got)
}

func TestUpdateCategoryAndImages(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := newTestClient(server.URL)
	ctx := context.Background()

	require.NoError(t, client.UpdateCategory(ctx, 7, "frames"))
	require.NoError(t, client.UpdateImages(ctx, 7, []string{"a.jpg", "b.jpg"}))

	require.Len(t, bodies, 2)
	assert.JSONEq(t, `{"category":"frames"}`, bodies[0])
	assert.JSONEq(t, `{"images":["a.jpg","b.jpg"]}`, bodies[1])
}

func TestDeleteProduct(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"deleted", http.StatusNoContent, nil},
		{"not found", http.StatusNotFound, domain.ErrProductNotFound},
		{"forbidden", http.StatusForbidden, domain.ErrStoreFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&calls, 1)
				assert.Equal(t, http.MethodDelete, r.Method)
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			err := newTestClient(server.URL).DeleteProduct(context.Background(), 3)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "final statuses are not retried")
		})
	}
}

func TestRetries(t *testing.T) {
	t.Run("recovers after server errors", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) < 3 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		err := newTestClient(server.URL).UpdateCategory(context.Background(), 1, "vases")
		assert.NoError(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("gives up when rate limited", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer server.Close()

		err := newTestClient(server.URL).UpdateCategory(context.Background(), 1, "vases")
		assert.ErrorIs(t, err, domain.ErrRateLimited)
		assert.Equal(t, int32(maxAttempts), atomic.LoadInt32(&calls))
	})

	t.Run("context cancellation stops retrying", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		client := NewClient("", server.URL, 1000, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := client.UpdateCategory(ctx, 1, "vases")
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestLoad(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/admin/products", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"products":[{"id":1,"title":"Ваза","price":"1200","image":null},{"id":2,"title":"","price":5}]}`))
	}))
	defer server.Close()

	cat, err := newTestClient(server.URL).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, cat.Products, 2)
	assert.Equal(t, "Ваза", cat.Products[0].Title)
	assert.True(t, cat.Products[1].Quarantined)
	assert.Equal(t, server.URL, cat.Source)
	assert.NotEmpty(t, cat.Snapshot)
}
