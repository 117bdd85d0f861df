package repository

import (
	"context"
	"errors"
	"time"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
)

// FindTenantByID returns the tenant with the given id
func (s *Store) FindTenantByID(ctx context.Context, id uint) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_find")(time.Now())

	var tenant model.Tenant
	if err := s.db.WithContext(ctx).Where("tenant_id = ?", id).First(&tenant).Error; err != nil {
		return nil, lookupErr("tenant", err)
	}
	return &tenant, nil
}

// FindTenantByDomain returns the tenant owning a store domain
func (s *Store) FindTenantByDomain(ctx context.Context, domain string) (*model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_find")(time.Now())

	var tenant model.Tenant
	if err := s.db.WithContext(ctx).Where("store_domain = ?", domain).First(&tenant).Error; err != nil {
		return nil, lookupErr("tenant", err)
	}
	return &tenant, nil
}

// ListTenants returns every tenant ordered by id
func (s *Store) ListTenants(ctx context.Context) ([]model.Tenant, error) {
	defer prometheus.TrackDBOperation("tenant_list")(time.Now())

	var tenants []model.Tenant
	if err := s.db.WithContext(ctx).Order("tenant_id").Find(&tenants).Error; err != nil {
		return nil, storageErr(err)
	}
	return tenants, nil
}

// CreateTenant inserts a tenant. A taken store domain is a validation error.
func (s *Store) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	defer prometheus.TrackDBOperation("tenant_create")(time.Now())

	err := s.db.WithContext(ctx).Create(tenant).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperror.Validation("store domain already registered")
	}
	return storageErr(err)
}

// UpdateTenantCredentials replaces the access token and rotates the webhook secret.
// The previous secret stays valid until the next rotation.
func (s *Store) UpdateTenantCredentials(ctx context.Context, tenantID uint, accessToken, webhookSecret string) error {
	defer prometheus.TrackDBOperation("tenant_update")(time.Now())

	updates := map[string]interface{}{}
	if accessToken != "" {
		updates["access_token"] = accessToken
	}
	if webhookSecret != "" {
		updates["previous_webhook_secret"] = gorm.Expr("webhook_secret")
		updates["webhook_secret"] = webhookSecret
	}
	if len(updates) == 0 {
		return nil
	}

	res := s.db.WithContext(ctx).Model(&model.Tenant{}).Where("tenant_id = ?", tenantID).UpdateColumns(updates)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return apperror.NotFound("tenant not found")
	}
	return nil
}
