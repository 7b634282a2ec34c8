package cache_test

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tinywideclouds/go-push-relay/internal/storage/cache"
	"github.com/tinywideclouds/go-push-relay/pkg/push"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRedisClient_UnreachableServer(t *testing.T) {
	ctx := context.Background()

	// Nothing listens on port 1; construction must still succeed.
	client := cache.NewRedisClient(cache.Options{Addr: "127.0.0.1:1"}, newTestLogger())
	t.Cleanup(func() { _ = client.Close() })

	var _ push.KeyCache = client

	assert.False(t, client.Connected())

	_, found, err := client.Get(ctx, push.CacheKey("app1", "dev"))
	require.Error(t, err)
	assert.False(t, found)
	assert.False(t, client.Connected())
}
