package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// BranchStore is the branch table
type BranchStore interface {
	ListBranches(ctx context.Context, tenantID uint) ([]model.Branch, error)
	CreateBranch(ctx context.Context, branch *model.Branch) error
}

// BranchHandler manages a tenant's branches
type BranchHandler struct {
	store   BranchStore
	tenants TenantResolver
}

// NewBranchHandler creates a branch handler
func NewBranchHandler(store BranchStore, tenants TenantResolver) *BranchHandler {
	return &BranchHandler{store: store, tenants: tenants}
}

// CreateBranchRequest names the tenant only when an admin creates a branch for another store
type CreateBranchRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location" validate:"required"`
	TenantID *uint  `json:"tenant_id" validate:"omitempty,gt=0"`
}

// List handles GET /branches
func (h *BranchHandler) List(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	branches, err := h.store.ListBranches(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, branches)
}

// Create handles POST /branches
func (h *BranchHandler) Create(c echo.Context) error {
	caller, err := identity(c)
	if err != nil {
		return err
	}
	var req CreateBranchRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	tenantID := caller.TenantID
	if req.TenantID != nil && *req.TenantID != caller.TenantID {
		if !caller.IsAdmin {
			logger.FromEcho(c).Warn("Cross-tenant branch creation denied",
				zap.Uint("user_id", caller.UserID), zap.Uint("target_tenant_id", *req.TenantID))
			prometheus.RecordAuthError("admin_required")
			return apperror.Authorization("admin access required")
		}
		if _, err := h.tenants.ResolveByID(ctx, *req.TenantID); err != nil {
			return err
		}
		tenantID = *req.TenantID
	}

	branch := &model.Branch{TenantID: tenantID, Name: req.Name, Location: req.Location}
	if err := h.store.CreateBranch(ctx, branch); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, branch)
}
