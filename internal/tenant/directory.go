// Package tenant resolves stores to tenants with a read-through cache.
package tenant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// ErrNotFound is returned when no tenant matches a lookup
var ErrNotFound = apperror.NotFound("tenant not found")

// Repository is the tenant table
type Repository interface {
	FindTenantByID(ctx context.Context, id uint) (*model.Tenant, error)
	FindTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error)
	ListTenants(ctx context.Context) ([]model.Tenant, error)
	CreateTenant(ctx context.Context, tenant *model.Tenant) error
	UpdateTenantCredentials(ctx context.Context, tenantID uint, accessToken, webhookSecret string) error
}

// Cache is the key/value store backing tenant lookups
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Directory is the tenant directory
type Directory struct {
	repo  Repository
	cache Cache
	ttl   time.Duration
}

// NewDirectory creates a directory. A nil cache reads straight from the repository.
func NewDirectory(repo Repository, cache Cache, ttl time.Duration) *Directory {
	return &Directory{repo: repo, cache: cache, ttl: ttl}
}

// NormalizeDomain lower-cases and trims a store domain
func NormalizeDomain(domain string) string {
	return strings.ToLower(strings.TrimSpace(domain))
}

func idKey(id uint) string {
	return fmt.Sprintf("tenant:id:%d", id)
}

func domainKey(domain string) string {
	return "tenant:domain:" + domain
}

// ResolveByDomain returns the tenant owning a store domain
func (d *Directory) ResolveByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	domain = NormalizeDomain(domain)
	if domain == "" {
		return nil, ErrNotFound
	}
	return d.resolve(ctx, domainKey(domain), func(ctx context.Context) (*model.Tenant, error) {
		return d.repo.FindTenantByDomain(ctx, domain)
	})
}

// ResolveByID returns the tenant with the given id
func (d *Directory) ResolveByID(ctx context.Context, id uint) (*model.Tenant, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	return d.resolve(ctx, idKey(id), func(ctx context.Context) (*model.Tenant, error) {
		return d.repo.FindTenantByID(ctx, id)
	})
}

// ListAll returns every tenant ordered by id
func (d *Directory) ListAll(ctx context.Context) ([]model.Tenant, error) {
	return d.repo.ListTenants(ctx)
}

// Create registers a tenant
func (d *Directory) Create(ctx context.Context, tenant *model.Tenant) error {
	tenant.StoreDomain = NormalizeDomain(tenant.StoreDomain)
	if tenant.StoreDomain == "" {
		return apperror.Validation("store_domain is required")
	}
	if err := d.repo.CreateTenant(ctx, tenant); err != nil {
		return err
	}
	d.invalidate(ctx, tenant)
	return nil
}

// RotateCredentials replaces a tenant's access token and webhook secret.
// The replaced secret keeps verifying webhooks until the next rotation.
func (d *Directory) RotateCredentials(ctx context.Context, tenantID uint, accessToken, webhookSecret string) error {
	current, err := d.ResolveByID(ctx, tenantID)
	if err != nil {
		return err
	}
	if err := d.repo.UpdateTenantCredentials(ctx, tenantID, accessToken, webhookSecret); err != nil {
		return err
	}
	d.invalidate(ctx, current)
	return nil
}

func (d *Directory) resolve(ctx context.Context, key string, load func(context.Context) (*model.Tenant, error)) (*model.Tenant, error) {
	if cached, ok := d.fromCache(ctx, key); ok {
		return cached, nil
	}

	tenant, err := load(ctx)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}

	d.store(ctx, tenant)
	return tenant, nil
}

// cachedTenant carries the credentials that model.Tenant hides from JSON
type cachedTenant struct {
	ID                    uint      `json:"tenant_id"`
	StoreDomain           string    `json:"store_domain"`
	DisplayName           string    `json:"display_name"`
	AccessToken           string    `json:"access_token"`
	WebhookSecret         *string   `json:"webhook_secret"`
	PreviousWebhookSecret *string   `json:"previous_webhook_secret"`
	CreatedAt             time.Time `json:"created_at"`
}

func (d *Directory) fromCache(ctx context.Context, key string) (*model.Tenant, bool) {
	if d.cache == nil {
		return nil, false
	}
	defer prometheus.TrackDBOperation("tenant_cache_get")(time.Now())

	raw, err := d.cache.Get(ctx, key)
	if err != nil {
		return nil, false
	}
	var c cachedTenant
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		logger.FromContext(ctx).Warn("Discarding unreadable tenant cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &model.Tenant{
		ID:                    c.ID,
		StoreDomain:           c.StoreDomain,
		DisplayName:           c.DisplayName,
		AccessToken:           c.AccessToken,
		WebhookSecret:         c.WebhookSecret,
		PreviousWebhookSecret: c.PreviousWebhookSecret,
		CreatedAt:             c.CreatedAt,
	}, true
}

func (d *Directory) store(ctx context.Context, t *model.Tenant) {
	if d.cache == nil {
		return
	}
	data, err := json.Marshal(cachedTenant{
		ID:                    t.ID,
		StoreDomain:           t.StoreDomain,
		DisplayName:           t.DisplayName,
		AccessToken:           t.AccessToken,
		WebhookSecret:         t.WebhookSecret,
		PreviousWebhookSecret: t.PreviousWebhookSecret,
		CreatedAt:             t.CreatedAt,
	})
	if err != nil {
		return
	}
	for _, key := range []string{idKey(t.ID), domainKey(t.StoreDomain)} {
		if err := d.cache.SetEx(ctx, key, string(data), d.ttl); err != nil {
			logger.FromContext(ctx).Warn("Failed to cache tenant", zap.String("key", key), zap.Error(err))
			return
		}
	}
}

func (d *Directory) invalidate(ctx context.Context, t *model.Tenant) {
	if d.cache == nil {
		return
	}
	if err := d.cache.Del(ctx, idKey(t.ID), domainKey(t.StoreDomain)); err != nil {
		logger.FromContext(ctx).Warn("Failed to invalidate tenant cache", zap.Uint("tenant_id", t.ID), zap.Error(err))
	}
}
