package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/shopify"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// TenantDirectory is the admin view of the tenant directory
type TenantDirectory interface {
	ResolveByID(ctx context.Context, id uint) (*model.Tenant, error)
	ListAll(ctx context.Context) ([]model.Tenant, error)
	Create(ctx context.Context, tenant *model.Tenant) error
}

// TenantSyncer pulls a tenant's catalog from the platform
type TenantSyncer interface {
	SyncTenant(ctx context.Context, tenant *model.Tenant) (*shopify.Result, error)
}

// TenantHandler serves the admin tenant routes
type TenantHandler struct {
	tenants TenantDirectory
	syncer  TenantSyncer
}

// NewTenantHandler creates a tenant handler
func NewTenantHandler(tenants TenantDirectory, syncer TenantSyncer) *TenantHandler {
	return &TenantHandler{tenants: tenants, syncer: syncer}
}

// CreateTenantRequest is the body of POST /tenants
type CreateTenantRequest struct {
	StoreDomain   string `json:"store_domain" validate:"required,hostname"`
	DisplayName   string `json:"display_name"`
	AccessToken   string `json:"access_token"`
	WebhookSecret string `json:"webhook_secret"`
}

// List handles GET /tenants
func (h *TenantHandler) List(c echo.Context) error {
	tenants, err := h.tenants.ListAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tenants)
}

// Create handles POST /tenants
func (h *TenantHandler) Create(c echo.Context) error {
	var req CreateTenantRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tenant := &model.Tenant{
		StoreDomain: req.StoreDomain,
		DisplayName: req.DisplayName,
		AccessToken: req.AccessToken,
	}
	if req.WebhookSecret != "" {
		secret := req.WebhookSecret
		tenant.WebhookSecret = &secret
	}
	if err := h.tenants.Create(c.Request().Context(), tenant); err != nil {
		return err
	}

	logger.FromEcho(c).Info("Tenant created",
		zap.Uint("tenant_id", tenant.ID), zap.String("store_domain", tenant.StoreDomain))
	return c.JSON(http.StatusCreated, tenant)
}

// Sync handles POST /tenants/:id/sync
func (h *TenantHandler) Sync(c echo.Context) error {
	id, ok := middleware.ParseTenantID(c.Param("id"))
	if !ok {
		return apperror.Validation("tenant id must be a positive integer")
	}

	ctx := c.Request().Context()
	tenant, err := h.tenants.ResolveByID(ctx, id)
	if err != nil {
		return err
	}
	if tenant.AccessToken == "" {
		return apperror.Validation("tenant has no access token")
	}

	result, err := h.syncer.SyncTenant(ctx, tenant)
	if err != nil {
		logger.FromEcho(c).Error("Tenant sync failed", zap.Uint("tenant_id", id), zap.Error(err))
		return err
	}
	return c.JSON(http.StatusOK, result)
}
