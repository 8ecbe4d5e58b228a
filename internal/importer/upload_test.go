package importer

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/contact-core/internal/config"
)

func newPreviewService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewService(nil, client, config.ImporterConfig{}), mr
}

func TestPreviewCacheRoundTrip(t *testing.T) {
	svc, _ := newPreviewService(t)
	ctx := context.Background()

	stored := preview{
		Headers:   []string{"First Name", "Email"},
		Delimiter: ",",
		Rows:      [][]string{{"Jane", "jane@acme.com"}, {"John", "john@acme.com"}},
		TotalRows: 2,
	}
	svc.cachePreview(ctx, "job-1", stored)

	got, ok := svc.cachedPreview(ctx, "job-1")
	require.True(t, ok)
	assert.Equal(t, stored, got)
}

func TestPreviewCacheMiss(t *testing.T) {
	svc, _ := newPreviewService(t)

	_, ok := svc.cachedPreview(context.Background(), "missing-job")
	assert.False(t, ok)
}

func TestPreviewCacheExpires(t *testing.T) {
	svc, mr := newPreviewService(t)
	ctx := context.Background()

	svc.cachePreview(ctx, "job-2", preview{Headers: []string{"Email"}, TotalRows: 1})
	mr.FastForward(previewTTL + 1)

	_, ok := svc.cachedPreview(ctx, "job-2")
	assert.False(t, ok)
}
