package analytics

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/prometheus"
)

const (
	insightTopLimit   = 10
	lowInventoryLevel = 5
	lowInventoryLimit = 20
	recentEventsLimit = 20
)

// StatusCount is the number of orders in one financial status
type StatusCount struct {
	FinancialStatus string `json:"financial_status"`
	Count           int64  `json:"count"`
}

// DailyPoint is one day of orders
type DailyPoint struct {
	Day     string  `json:"day"`
	Orders  int64   `json:"orders"`
	Revenue float64 `json:"revenue"`
}

// OrderInsights summarises a tenant's orders
type OrderInsights struct {
	TotalOrders     int64         `json:"total_orders"`
	TotalRevenue    float64       `json:"total_revenue"`
	AvgOrderValue   float64       `json:"avg_order_value"`
	UniqueCustomers int64         `json:"unique_customers"`
	OrdersByStatus  []StatusCount `json:"orders_by_status"`
	DailyTrend      []DailyPoint  `json:"daily_trend"`
}

// CustomerInsights summarises a tenant's customers
type CustomerInsights struct {
	TotalCustomers    int64         `json:"total_customers"`
	NewThisMonth      int64         `json:"new_this_month"`
	NewThisWeek       int64         `json:"new_this_week"`
	ActiveCustomers   int64         `json:"active_customers"`
	InactiveCustomers int64         `json:"inactive_customers"`
	TopCustomers      []TopCustomer `json:"top_customers"`
}

// ProductSales is units sold of one product
type ProductSales struct {
	ShopifyProductID int64  `json:"shopify_product_id"`
	Title            string `json:"title"`
	UnitsSold        int64  `json:"units_sold"`
}

// LowStock is a product at or below the low inventory level
type LowStock struct {
	ShopifyProductID int64  `json:"shopify_product_id"`
	Title            string `json:"title"`
	Inventory        int    `json:"inventory"`
}

// ProductInsights summarises a tenant's catalog
type ProductInsights struct {
	TotalProducts int64          `json:"total_products"`
	AvgPrice      float64        `json:"avg_price"`
	TopProducts   []ProductSales `json:"top_products"`
	LowInventory  []LowStock     `json:"low_inventory"`
}

// TypeCount is the number of events of one type
type TypeCount struct {
	EventType string `json:"event_type"`
	Count     int64  `json:"count"`
}

// RecentEvent is a trimmed event row
type RecentEvent struct {
	ID                uint      `json:"id"`
	EventType         string    `json:"event_type"`
	ShopifyResourceID *int64    `json:"shopify_resource_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// EventInsights summarises a tenant's event feed
type EventInsights struct {
	TotalEvents int64         `json:"total_events"`
	ByType      []TypeCount   `json:"by_type"`
	Last24h     int64         `json:"last_24h"`
	Last7d      int64         `json:"last_7d"`
	Recent      []RecentEvent `json:"recent"`
}

// OrderInsights returns order totals, status counts and the last 30 days
func (s *Service) OrderInsights(ctx context.Context, tenantID uint) (*OrderInsights, error) {
	defer prometheus.TrackTenantOperation("order_insights", tenantID)(time.Now())

	var totals struct {
		TotalOrders     int64
		TotalRevenue    float64
		AvgOrderValue   float64
		UniqueCustomers int64
	}
	err := s.raw(ctx, &totals, `
		SELECT
			COUNT(*) AS total_orders,
			COALESCE(SUM(total_price), 0)::float8 AS total_revenue,
			COALESCE(AVG(total_price), 0)::float8 AS avg_order_value,
			COUNT(DISTINCT customer_shopify_id) AS unique_customers
		FROM orders
		WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}

	out := &OrderInsights{
		TotalOrders:     totals.TotalOrders,
		TotalRevenue:    totals.TotalRevenue,
		AvgOrderValue:   totals.AvgOrderValue,
		UniqueCustomers: totals.UniqueCustomers,
		OrdersByStatus:  []StatusCount{},
		DailyTrend:      []DailyPoint{},
	}
	err = s.raw(ctx, &out.OrdersByStatus, `
		SELECT financial_status, COUNT(*) AS count
		FROM orders
		WHERE tenant_id = ?
		GROUP BY financial_status
		ORDER BY count DESC, financial_status ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	err = s.raw(ctx, &out.DailyTrend, `
		SELECT
			TO_CHAR(DATE_TRUNC('day', created_at AT TIME ZONE 'UTC'), 'YYYY-MM-DD') AS day,
			COUNT(*) AS orders,
			COALESCE(SUM(total_price), 0)::float8 AS revenue
		FROM orders
		WHERE tenant_id = ? AND created_at >= NOW() - INTERVAL '30 days'
		GROUP BY 1
		ORDER BY 1 ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CustomerInsights returns customer growth, activity and the top spenders
func (s *Service) CustomerInsights(ctx context.Context, tenantID uint) (*CustomerInsights, error) {
	defer prometheus.TrackTenantOperation("customer_insights", tenantID)(time.Now())

	var counts struct {
		TotalCustomers  int64
		NewThisMonth    int64
		NewThisWeek     int64
		ActiveCustomers int64
	}
	err := s.raw(ctx, &counts, `
		SELECT
			COUNT(*) AS total_customers,
			COUNT(*) FILTER (WHERE c.created_at >= DATE_TRUNC('month', NOW())) AS new_this_month,
			COUNT(*) FILTER (WHERE c.created_at >= DATE_TRUNC('week', NOW())) AS new_this_week,
			COUNT(*) FILTER (WHERE EXISTS (
				SELECT 1 FROM orders o
				WHERE o.tenant_id = c.tenant_id
					AND o.customer_shopify_id = c.shopify_customer_id
					AND o.created_at >= NOW() - INTERVAL '90 days'
			)) AS active_customers
		FROM customers c
		WHERE c.tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}

	top, err := s.TopCustomers(ctx, tenantID, insightTopLimit)
	if err != nil {
		return nil, err
	}
	return &CustomerInsights{
		TotalCustomers:    counts.TotalCustomers,
		NewThisMonth:      counts.NewThisMonth,
		NewThisWeek:       counts.NewThisWeek,
		ActiveCustomers:   counts.ActiveCustomers,
		InactiveCustomers: max(0, counts.TotalCustomers-counts.ActiveCustomers),
		TopCustomers:      top,
	}, nil
}

// ProductInsights returns catalog totals, best sellers by line item quantity and low stock
func (s *Service) ProductInsights(ctx context.Context, tenantID uint) (*ProductInsights, error) {
	defer prometheus.TrackTenantOperation("product_insights", tenantID)(time.Now())

	var totals struct {
		TotalProducts int64
		AvgPrice      float64
	}
	err := s.raw(ctx, &totals, `
		SELECT COUNT(*) AS total_products, COALESCE(AVG(price), 0)::float8 AS avg_price
		FROM products
		WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}

	out := &ProductInsights{
		TotalProducts: totals.TotalProducts,
		AvgPrice:      totals.AvgPrice,
		TopProducts:   []ProductSales{},
		LowInventory:  []LowStock{},
	}
	err = s.raw(ctx, &out.TopProducts, `
		SELECT
			p.shopify_product_id, p.title,
			COALESCE(SUM((li->>'quantity')::int), 0) AS units_sold
		FROM products p
		LEFT JOIN orders o ON o.tenant_id = p.tenant_id
		LEFT JOIN LATERAL jsonb_array_elements(o.line_items) AS li
			ON (li->>'product_id')::bigint = p.shopify_product_id
		WHERE p.tenant_id = ?
		GROUP BY p.id, p.shopify_product_id, p.title
		ORDER BY units_sold DESC, p.shopify_product_id ASC
		LIMIT ?`, tenantID, insightTopLimit)
	if err != nil {
		return nil, err
	}
	err = s.raw(ctx, &out.LowInventory, `
		SELECT shopify_product_id, title, inventory
		FROM products
		WHERE tenant_id = ? AND inventory <= ?
		ORDER BY inventory ASC, shopify_product_id ASC
		LIMIT ?`, tenantID, lowInventoryLevel, lowInventoryLimit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// EventInsights returns event volume by type and recency
func (s *Service) EventInsights(ctx context.Context, tenantID uint) (*EventInsights, error) {
	defer prometheus.TrackTenantOperation("event_insights", tenantID)(time.Now())

	var counts struct {
		TotalEvents int64
		Last24h     int64 `gorm:"column:last_24h"`
		Last7d      int64 `gorm:"column:last_7d"`
	}
	err := s.raw(ctx, &counts, `
		SELECT
			COUNT(*) AS total_events,
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '24 hours') AS last_24h,
			COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days') AS last_7d
		FROM custom_events
		WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}

	out := &EventInsights{
		TotalEvents: counts.TotalEvents,
		Last24h:     counts.Last24h,
		Last7d:      counts.Last7d,
		ByType:      []TypeCount{},
		Recent:      []RecentEvent{},
	}
	err = s.raw(ctx, &out.ByType, `
		SELECT event_type, COUNT(*) AS count
		FROM custom_events
		WHERE tenant_id = ?
		GROUP BY event_type
		ORDER BY count DESC, event_type ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	err = s.raw(ctx, &out.Recent, `
		SELECT id, event_type, shopify_resource_id, created_at
		FROM custom_events
		WHERE tenant_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, tenantID, recentEventsLimit)
	if err != nil {
		return nil, err
	}
	return out, nil
}
