package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/analytics"
)

const topCustomersLimit = 5

// Analytics is the reporting service behind the dashboard routes
type Analytics interface {
	Overview(ctx context.Context, tenantID uint) (*analytics.Overview, error)
	RevenueTrends(ctx context.Context, tenantID uint, r analytics.DateRange) ([]analytics.TrendPoint, error)
	TopCustomers(ctx context.Context, tenantID uint, limit int) ([]analytics.TopCustomer, error)
	BranchPerformance(ctx context.Context, tenantID uint) ([]analytics.BranchStat, error)
	Abandonment(ctx context.Context, tenantID uint) (*analytics.Abandonment, error)
	CustomerSegments(ctx context.Context, tenantID uint) ([]analytics.CustomerSegment, error)
	GlobalOverview(ctx context.Context) (*analytics.GlobalOverview, error)
}

// AnalyticsHandler serves tenant KPIs
type AnalyticsHandler struct {
	svc Analytics
}

// NewAnalyticsHandler creates an analytics handler
func NewAnalyticsHandler(svc Analytics) *AnalyticsHandler {
	return &AnalyticsHandler{svc: svc}
}

// Overview handles GET /analytics/overview
func (h *AnalyticsHandler) Overview(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Overview(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// RevenueTrends handles GET /analytics/revenue-trends?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *AnalyticsHandler) RevenueTrends(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	r, err := analytics.ParseDateRange(c.QueryParam("start"), c.QueryParam("end"))
	if err != nil {
		return err
	}
	out, err := h.svc.RevenueTrends(c.Request().Context(), tenantID, r)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// TopCustomers handles GET /analytics/top-customers
func (h *AnalyticsHandler) TopCustomers(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := h.svc.TopCustomers(c.Request().Context(), tenantID, topCustomersLimit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// BranchPerformance handles GET /analytics/branch-performance
func (h *AnalyticsHandler) BranchPerformance(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := h.svc.BranchPerformance(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// Abandonment handles GET /analytics/abandonment
func (h *AnalyticsHandler) Abandonment(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := h.svc.Abandonment(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// CustomerSegments handles GET /analytics/customer-segments
func (h *AnalyticsHandler) CustomerSegments(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	out, err := h.svc.CustomerSegments(c.Request().Context(), tenantID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}

// GlobalOverview handles GET /analytics/global-overview. Admin only.
func (h *AnalyticsHandler) GlobalOverview(c echo.Context) error {
	out, err := h.svc.GlobalOverview(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, out)
}
