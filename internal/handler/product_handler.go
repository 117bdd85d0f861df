package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
)

// ProductStore is the tenant-scoped product table
type ProductStore interface {
	ListProducts(ctx context.Context, tenantID uint, branchID *uint, page repository.Page) ([]model.Product, error)
	GetProduct(ctx context.Context, tenantID uint, shopifyID int64) (*model.Product, error)
	UpsertProduct(ctx context.Context, product *model.Product) error
	UpdateProduct(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, tenantID uint, shopifyID int64) (bool, error)
	BranchChecker
}

// ProductHandler manages a tenant's products
type ProductHandler struct {
	store ProductStore
}

// NewProductHandler creates a product handler
func NewProductHandler(store ProductStore) *ProductHandler {
	return &ProductHandler{store: store}
}

// CreateProductRequest is the body of POST /products
type CreateProductRequest struct {
	ShopifyProductID int64   `json:"shopify_product_id" validate:"required,gt=0"`
	BranchID         *uint   `json:"branch_id"`
	Title            string  `json:"title" validate:"required"`
	Vendor           string  `json:"vendor"`
	ProductType      string  `json:"product_type"`
	Price            float64 `json:"price" validate:"gte=0"`
	Inventory        int     `json:"inventory"`
}

// UpdateProductRequest is the body of PUT /products/:id
type UpdateProductRequest struct {
	BranchID    *uint    `json:"branch_id"`
	Title       *string  `json:"title" validate:"omitempty,min=1"`
	Vendor      *string  `json:"vendor"`
	ProductType *string  `json:"product_type"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Inventory   *int     `json:"inventory"`
}

// List handles GET /products?branch_id=
func (h *ProductHandler) List(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	page, err := pageParams(c)
	if err != nil {
		return err
	}

	var branchID *uint
	if raw := c.QueryParam("branch_id"); raw != "" {
		id, ok := middleware.ParseTenantID(raw)
		if !ok {
			return apperror.Validation("branch_id must be a positive integer")
		}
		branchID = &id
	}

	products, err := h.store.ListProducts(c.Request().Context(), tenantID, branchID, page)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	product, err := h.store.GetProduct(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// Create handles POST /products
func (h *ProductHandler) Create(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	var req CreateProductRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if err := checkBranch(c.Request().Context(), h.store, tenantID, req.BranchID); err != nil {
		return err
	}

	product := &model.Product{
		TenantID:         tenantID,
		BranchID:         req.BranchID,
		ShopifyProductID: req.ShopifyProductID,
		Title:            req.Title,
		Vendor:           req.Vendor,
		ProductType:      req.ProductType,
		Price:            req.Price,
		Inventory:        req.Inventory,
	}
	if err := h.store.UpsertProduct(c.Request().Context(), product); err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, product)
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	var req UpdateProductRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	if err := checkBranch(ctx, h.store, tenantID, req.BranchID); err != nil {
		return err
	}
	product, err := h.store.GetProduct(ctx, tenantID, id)
	if err != nil {
		return err
	}
	if req.BranchID != nil {
		product.BranchID = req.BranchID
	}
	setIf(&product.Title, req.Title)
	setIf(&product.Vendor, req.Vendor)
	setIf(&product.ProductType, req.ProductType)
	setIf(&product.Price, req.Price)
	setIf(&product.Inventory, req.Inventory)

	if err := h.store.UpdateProduct(ctx, product); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

// Delete handles DELETE /products/:id
func (h *ProductHandler) Delete(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	id, err := externalID(c)
	if err != nil {
		return err
	}
	deleted, err := h.store.DeleteProduct(c.Request().Context(), tenantID, id)
	if err != nil {
		return err
	}
	if !deleted {
		return apperror.NotFound("product not found")
	}
	return c.NoContent(http.StatusNoContent)
}
