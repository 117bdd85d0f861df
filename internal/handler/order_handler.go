package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
)

// OrderStore is the tenant-scoped order table
type OrderStore interface {
	ListOrders(ctx context.Context, tenantID uint, page repository.Page) ([]model.Order, error)
	GetOrder(ctx context.Context, tenantID uint, shopifyID int64) (*model.Order, error)
	UpsertOrder(ctx context.Context, order *model.Order) error
	UpdateOrder(ctx context.Context, order *model.Order) error
	DeleteOrder(ctx context.Context, tenantID uint, shopifyID int64) (bool, error)
	BranchChecker
}

// OrderHandler manages a tenant's orders
type OrderHandler struct {
	store OrderStore
}

// NewOrderHandler creates an order handler
func NewOrderHandler(store OrderStore) *OrderHandler {
	return &OrderHandler{store: store}
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	ShopifyOrderID    int64            `json:"shopify_order_id" validate:"required,gt=0"`
	BranchID          *uint            `json:"branch_id"`
	CustomerShopifyID *int64           `json:"customer_shopify_id"`
	TotalPrice        float64          `json:"total_price" validate:"gte=0"`
	Currency          string           `json:"currency" validate:"omitempty,len=3"`
	FinancialStatus   string           `json:"financial_status"`
	FulfillmentStatus string           `json:"fulfillment_status"`
	LineItems         []model.LineItem `json:"line_items" validate:"dive"`
}

// UpdateOrderRequest is the body of PUT /orders/:id. Omitted fields keep their value.
type UpdateOrderRequest struct {
	BranchID          *uint             `json:"branch_id"`
	CustomerShopifyID *int64            `json:"customer_shopify_id"`
	TotalPrice        *float64          `json:"total_price" validate:"omitempty,gte=0"`
	Currency          *string           `json:"currency" validate:"omitempty,len=3"`
	FinancialStatus   *string           `json:"financial_status"`
	FulfillmentStatus *string           `json:"fulfillment_status"`
	LineItems         *[]model.LineItem `json:"line_items"`
}

// List handles GET /orders
func (h *OrderHandler) List(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	page, err := pageParams(c)
	if err != nil {
		return err
	}
	orders, err := h.store.ListOrders(c.Request().Context(), tenantID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, orders)
}

// Get handles GET /orders/:id
func (h *OrderHandler) Get(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	order, err := h.store.GetOrder(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// Create handles POST /orders
func (h *OrderHandler) Create(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	var req CreateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkBranch(c.Request().Context(), h.store, tenantID, req.BranchID); err != nil {
		return err
	}

	items := req.LineItems
	if items == nil {
		items = []model.LineItem{}
	}
	order := &model.Order{
		TenantID:          tenantID,
		BranchID:          req.BranchID,
		ShopifyOrderID:    req.ShopifyOrderID,
		CustomerShopifyID: req.CustomerShopifyID,
		TotalPrice:        req.TotalPrice,
		Currency:          req.Currency,
		FinancialStatus:   req.FinancialStatus,
		FulfillmentStatus: req.FulfillmentStatus,
		LineItems:         model.NewJSONB(items),
	}
	if err := h.store.UpsertOrder(c.Request().Context(), order); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, order)
}

// Update handles PUT /orders/:id
func (h *OrderHandler) Update(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	var req UpdateOrderRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := checkBranch(ctx, h.store, tenantID, req.BranchID); err != nil {
		return err
	}
	order, err := h.store.GetOrder(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if req.BranchID != nil {
		order.BranchID = req.BranchID
	}
	if req.CustomerShopifyID != nil {
		order.CustomerShopifyID = req.CustomerShopifyID
	}
	setIf(&order.TotalPrice, req.TotalPrice)
	setIf(&order.Currency, req.Currency)
	setIf(&order.FinancialStatus, req.FinancialStatus)
	setIf(&order.FulfillmentStatus, req.FulfillmentStatus)
	if req.LineItems != nil {
		order.LineItems = model.NewJSONB(*req.LineItems)
	}

	if err := h.store.UpdateOrder(ctx, order); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

// Delete handles DELETE /orders/:id
func (h *OrderHandler) Delete(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	deleted, err := h.store.DeleteOrder(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("order not found")
	}
	return c.NoContent(http.StatusNoContent)
}
