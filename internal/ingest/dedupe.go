package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// Deduper remembers delivered webhook ids
type Deduper interface {
	// FirstDelivery records id and reports whether it had not been seen before
	FirstDelivery(ctx context.Context, tenantID uint, webhookID string) bool
	// Forget releases an id whose delivery was not accepted so a retry gets through
	Forget(ctx context.Context, tenantID uint, webhookID string)
}

// KeyStore is the redis subset backing RedisDeduper
type KeyStore interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisDeduper shares delivery ids across instances
type RedisDeduper struct {
	client KeyStore
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper whose ids expire after ttl
func NewRedisDeduper(client KeyStore, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

// FirstDelivery treats a redis failure as a first delivery; applying twice is an idempotent upsert
func (d *RedisDeduper) FirstDelivery(ctx context.Context, tenantID uint, webhookID string) bool {
	if webhookID == "" {
		return true
	}
	set, err := d.client.SetNX(ctx, dedupeKey(tenantID, webhookID), 1, d.ttl)
	if err != nil {
		logger.FromContext(ctx).Warn("Webhook dedupe check failed", zap.String("webhook_id", webhookID), zap.Error(err))
		return true
	}
	return set
}

func (d *RedisDeduper) Forget(ctx context.Context, tenantID uint, webhookID string) {
	if webhookID == "" {
		return
	}
	if err := d.client.Del(ctx, dedupeKey(tenantID, webhookID)); err != nil {
		logger.FromContext(ctx).Warn("Failed to release webhook id", zap.String("webhook_id", webhookID), zap.Error(err))
	}
}

func dedupeKey(tenantID uint, webhookID string) string {
	return fmt.Sprintf("webhook:seen:%d:%s", tenantID, webhookID)
}

// MemoryDeduper remembers ids in process
type MemoryDeduper struct {
	mu   sync.Mutex
	seen map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryDeduper creates an in-process deduper
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	return &MemoryDeduper{seen: make(map[string]time.Time), ttl: ttl, now: time.Now}
}

func (d *MemoryDeduper) FirstDelivery(_ context.Context, tenantID uint, webhookID string) bool {
	if webhookID == "" {
		return true
	}
	now := d.now()
	key := dedupeKey(tenantID, webhookID)

	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.seen) > 10000 {
		for k, exp := range d.seen {
			if now.After(exp) {
				delete(d.seen, k)
			}
		}
	}
	if exp, ok := d.seen[key]; ok && now.Before(exp) {
		return false
	}
	d.seen[key] = now.Add(d.ttl)
	return true
}

func (d *MemoryDeduper) Forget(_ context.Context, tenantID uint, webhookID string) {
	d.mu.Lock()
	delete(d.seen, dedupeKey(tenantID, webhookID))
	d.mu.Unlock()
}
