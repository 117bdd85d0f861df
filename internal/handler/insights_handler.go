package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/analytics"
)

// Insights is the dashboard drill-down service
type Insights interface {
	OrderInsights(ctx context.Context, tenantID uint) (*analytics.OrderInsights, error)
	CustomerInsights(ctx context.Context, tenantID uint) (*analytics.CustomerInsights, error)
	ProductInsights(ctx context.Context, tenantID uint) (*analytics.ProductInsights, error)
	EventInsights(ctx context.Context, tenantID uint) (*analytics.EventInsights, error)
}

type InsightsHandler struct {
	svc Insights
}

func NewInsightsHandler(svc Insights) *InsightsHandler {
	return &InsightsHandler{svc: svc}
}

// serve runs a tenant-scoped insight query and renders the result
func serve[T any](c echo.Context, query func(ctx context.Context, tenantID uint) (T, error)) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := query(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

func (h *InsightsHandler) Orders(c echo.Context) error    { return serve(c, h.svc.OrderInsights) }
func (h *InsightsHandler) Customers(c echo.Context) error { return serve(c, h.svc.CustomerInsights) }
func (h *InsightsHandler) Products(c echo.Context) error  { return serve(c, h.svc.ProductInsights) }
func (h *InsightsHandler) Events(c echo.Context) error    { return serve(c, h.svc.EventInsights) }
