package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// CustomerStore is the tenant-scoped customer table
type CustomerStore interface {
	ListCustomers(ctx context.Context, tenantID uint, page repository.Page) ([]model.Customer, error)
	GetCustomer(ctx context.Context, tenantID uint, shopifyID int64) (*model.Customer, error)
	UpsertCustomer(ctx context.Context, customer *model.Customer) error
	UpdateCustomer(ctx context.Context, customer *model.Customer) error
	DeleteCustomer(ctx context.Context, tenantID uint, shopifyID int64) (bool, error)
	BranchChecker
}

// CustomerHandler manages a tenant's customers
type CustomerHandler struct {
	store CustomerStore
}

// NewCustomerHandler creates a customer handler
func NewCustomerHandler(store CustomerStore) *CustomerHandler {
	return &CustomerHandler{store: store}
}

// CreateCustomerRequest is the body of POST /customers
type CreateCustomerRequest struct {
	ShopifyCustomerID int64   `json:"shopify_customer_id" validate:"required,gt=0"`
	BranchID          *uint   `json:"branch_id"`
	FirstName         string  `json:"first_name" validate:"required"`
	LastName          string  `json:"last_name" validate:"required"`
	Email             string  `json:"email" validate:"required,email"`
	Phone             string  `json:"phone"`
	OrdersCount       int     `json:"orders_count" validate:"gte=0"`
	TotalSpent        float64 `json:"total_spent" validate:"gte=0"`
}

// UpdateCustomerRequest is the body of PUT /customers/:id. Omitted fields keep their value.
type UpdateCustomerRequest struct {
	BranchID    *uint    `json:"branch_id"`
	FirstName   *string  `json:"first_name"`
	LastName    *string  `json:"last_name"`
	Email       *string  `json:"email" validate:"omitempty,email"`
	Phone       *string  `json:"phone"`
	OrdersCount *int     `json:"orders_count" validate:"omitempty,gte=0"`
	TotalSpent  *float64 `json:"total_spent" validate:"omitempty,gte=0"`
}

// List handles GET /customers
func (h *CustomerHandler) List(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	customers, err := h.store.ListCustomers(c.Request().Context(), tenantID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customers)
}

// Get handles GET /customers/:id
func (h *CustomerHandler) Get(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	customer, err := h.store.GetCustomer(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// Create handles POST /customers
func (h *CustomerHandler) Create(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	var req CreateCustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkBranch(c.Request().Context(), h.store, tenantID, req.BranchID); err != nil {
		return err
	}

	customer := &model.Customer{
		TenantID:          tenantID,
		BranchID:          req.BranchID,
		ShopifyCustomerID: req.ShopifyCustomerID,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Phone:             req.Phone,
		OrdersCount:       req.OrdersCount,
		TotalSpent:        req.TotalSpent,
	}
	if err := h.store.UpsertCustomer(c.Request().Context(), customer); err != nil {
		return err
	}
	logger.FromEcho(c).Info("Customer created",
		zap.Uint("tenant_id", tenantID), zap.Int64("shopify_customer_id", customer.ShopifyCustomerID))
	return c.JSON(http.StatusCreated, customer)
}

// Update handles PUT /customers/:id
func (h *CustomerHandler) Update(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	var req UpdateCustomerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := checkBranch(ctx, h.store, tenantID, req.BranchID); err != nil {
		return err
	}
	customer, err := h.store.GetCustomer(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if req.BranchID != nil {
		customer.BranchID = req.BranchID
	}
	setIf(&customer.FirstName, req.FirstName)
	setIf(&customer.LastName, req.LastName)
	setIf(&customer.Email, req.Email)
	setIf(&customer.Phone, req.Phone)
	setIf(&customer.OrdersCount, req.OrdersCount)
	setIf(&customer.TotalSpent, req.TotalSpent)

	if err := h.store.UpdateCustomer(ctx, customer); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, customer)
}

// Delete handles DELETE /customers/:id. Orders keep their rows with the customer reference cleared.
func (h *CustomerHandler) Delete(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	deleted, err := h.store.DeleteCustomer(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("customer not found")
	}
	return c.NoContent(http.StatusNoContent)
}
