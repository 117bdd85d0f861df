package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/suteetoe/shopdash/internal/testutil"
	"github.com/suteetoe/shopdash/pkg/redisclient"
)

func TestMemoryDeduper(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	d := NewMemoryDeduper(time.Hour)
	d.now = func() time.Time { return now }
	ctx := context.Background()

	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.False(t, d.FirstDelivery(ctx, 1, "wh-1"))
	// ids are scoped per tenant
	assert.True(t, d.FirstDelivery(ctx, 2, "wh-1"))
	// deliveries without an id are never suppressed
	assert.True(t, d.FirstDelivery(ctx, 1, ""))
	assert.True(t, d.FirstDelivery(ctx, 1, ""))

	now = now.Add(2 * time.Hour)
	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
}

func TestMemoryDeduperForget(t *testing.T) {
	d := NewMemoryDeduper(time.Hour)
	ctx := context.Background()

	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.True(t, d.FirstDelivery(ctx, 2, "wh-1"))
	d.Forget(ctx, 1, "wh-1")

	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.False(t, d.FirstDelivery(ctx, 2, "wh-1"))
}

type failingSetNX struct{}

func (failingSetNX) SetNX(context.Context, string, interface{}, time.Duration) (bool, error) {
	return false, errors.New("redis down")
}

func (failingSetNX) Del(context.Context, ...string) error {
	return errors.New("redis down")
}

func TestRedisDeduperFailsOpen(t *testing.T) {
	d := NewRedisDeduper(failingSetNX{}, time.Hour)
	assert.True(t, d.FirstDelivery(context.Background(), 1, "wh-1"))
	assert.True(t, d.FirstDelivery(context.Background(), 1, "wh-1"))
	d.Forget(context.Background(), 1, "wh-1")
}

func TestRedisDeduper(t *testing.T) {
	client := redisclient.Wrap(testutil.StartRedis(t))
	d := NewRedisDeduper(client, time.Minute)
	ctx := context.Background()

	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.False(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.True(t, d.FirstDelivery(ctx, 2, "wh-1"))

	d.Forget(ctx, 1, "wh-1")
	assert.True(t, d.FirstDelivery(ctx, 1, "wh-1"))
	assert.False(t, d.FirstDelivery(ctx, 2, "wh-1"))
}
