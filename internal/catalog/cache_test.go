// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := OpenCache(filepath.Join(t.TempDir(), "models.db"))
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func countingServer(t *testing.T, hits *atomic.Int64, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(payload))
	}))
}

// =============================================================================
// CACHE TESTS
// =============================================================================

func TestCacheServesFreshEntries(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(t, &hits, sampleListPayload)
	defer srv.Close()

	c := openTestCache(t)

	first, err := c.Models(context.Background(), srv.URL, "")
	require.NoError(t, err)
	second, err := c.Models(context.Background(), srv.URL, "")
	require.NoError(t, err)

	assert.Equal(t, int64(1), hits.Load(), "second call should be served from cache")
	assert.Len(t, second, len(first))

	info, ok := Lookup(second, "vision-model")
	require.True(t, ok)
	assert.True(t, info.SupportsImages)
	assert.True(t, info.SupportsReasoning)
}

func TestCacheExpiredTTLRefetches(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(t, &hits, sampleListPayload)
	defer srv.Close()

	c := openTestCache(t).WithTTL(-time.Second)

	for i := 0; i < 2; i++ {
		_, err := c.Models(context.Background(), srv.URL, "")
		require.NoError(t, err)
	}
	assert.Equal(t, int64(2), hits.Load(), "expired TTL should force a refetch")
}

func TestCacheStaleFallbackOnFetchFailure(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(t, &hits, sampleListPayload)

	c := openTestCache(t).WithTTL(-time.Second)
	_, err := c.Models(context.Background(), srv.URL, "")
	require.NoError(t, err)

	// Endpoint goes away; stale entries must still serve
	srv.Close()
	models, err := c.Models(context.Background(), srv.URL, "")
	require.NoError(t, err, "stale cache should mask the fetch failure")
	assert.Len(t, models, 2)
}

func TestCacheEmptyWithFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := openTestCache(t)
	_, err := c.Models(context.Background(), srv.URL, "")
	assert.Error(t, err, "empty cache plus failed fetch should surface the error")
}

func TestCacheRefreshBypassesTTL(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(t, &hits, sampleListPayload)
	defer srv.Close()

	c := openTestCache(t)
	_, err := c.Models(context.Background(), srv.URL, "")
	require.NoError(t, err)
	_, err = c.Refresh(context.Background(), srv.URL, "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load(), "refresh always fetches")
}

func TestCacheSeparatesEndpoints(t *testing.T) {
	var hits atomic.Int64
	srv := countingServer(t, &hits, `{"data":[{"id":"only-here"}]}`)
	defer srv.Close()

	c := openTestCache(t)
	_, err := c.Models(context.Background(), srv.URL+"/a", "")
	require.NoError(t, err)
	_, err = c.Models(context.Background(), srv.URL+"/b", "")
	require.NoError(t, err)

	assert.Equal(t, int64(2), hits.Load(), "cache keys are per endpoint")
}
