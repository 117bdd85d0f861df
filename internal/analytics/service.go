// Package analytics serves read-only, tenant-scoped aggregates over the store.
// Every query binds the tenant id and every monetary aggregate defaults to zero.
package analytics

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
)

const dateLayout = "2006-01-02"

// DateRange bounds a query by order creation time. The zero value means the trailing window.
type DateRange struct {
	Start time.Time
	// End is exclusive
	End time.Time
}

// IsZero reports whether no explicit range was given
func (r DateRange) IsZero() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// ParseDateRange parses YYYY-MM-DD bounds. Both or neither must be given; end covers its whole day.
func ParseDateRange(start, end string) (DateRange, error) {
	if start == "" && end == "" {
		return DateRange{}, nil
	}
	if start == "" || end == "" {
		return DateRange{}, apperror.Validation("start and end must be given together")
	}
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return DateRange{}, apperror.Validation("start must be a YYYY-MM-DD date")
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return DateRange{}, apperror.Validation("end must be a YYYY-MM-DD date")
	}
	if e.Before(s) {
		return DateRange{}, apperror.Validation("end must not be before start")
	}
	return DateRange{Start: s, End: e.AddDate(0, 0, 1)}, nil
}

// Overview is a tenant's KPI snapshot
type Overview struct {
	Customers int64   `json:"customers"`
	Orders    int64   `json:"orders"`
	Revenue   float64 `json:"revenue"`
}

// TrendPoint is one month of revenue
type TrendPoint struct {
	Month   string  `json:"month"`
	Revenue float64 `json:"revenue"`
	Orders  int64   `json:"orders"`
}

// TopCustomer is a customer ranked by spend
type TopCustomer struct {
	ShopifyCustomerID int64   `json:"shopify_customer_id"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Email             string  `json:"email"`
	Orders            int64   `json:"orders"`
	TotalSpent        float64 `json:"total_spent"`
}

// BranchStat is revenue attributed to one branch
type BranchStat struct {
	BranchID   uint    `json:"branch_id"`
	BranchName string  `json:"branch_name"`
	Orders     int64   `json:"orders"`
	Revenue    float64 `json:"revenue"`
}

// Abandonment is the checkout funnel
type Abandonment struct {
	CheckoutsStarted   int64   `json:"checkouts_started"`
	CheckoutsAbandoned int64   `json:"checkouts_abandoned"`
	AbandonmentRate    float64 `json:"abandonment_rate"`
}

// CustomerSegment is one customer with their segments
type CustomerSegment struct {
	ShopifyCustomerID int64   `json:"shopify_customer_id"`
	FirstName         string  `json:"first_name"`
	LastName          string  `json:"last_name"`
	Email             string  `json:"email"`
	OrderCount        int64   `json:"order_count"`
	TotalSpent        float64 `json:"total_spent"`
	FrequencySegment  string  `json:"frequency_segment"`
	ValueSegment      string  `json:"value_segment"`
}

// TenantStat is one tenant's row in the global rollup
type TenantStat struct {
	TenantID    uint    `json:"tenant_id"`
	StoreDomain string  `json:"store_domain"`
	DisplayName string  `json:"display_name"`
	Customers   int64   `json:"customers"`
	Orders      int64   `json:"orders"`
	Revenue     float64 `json:"revenue"`
}

// TenantBranchStat is a branch row in the global rollup
type TenantBranchStat struct {
	TenantID uint `json:"tenant_id"`
	BranchStat
}

// GlobalOverview aggregates across every tenant
type GlobalOverview struct {
	TotalTenants      int64              `json:"total_tenants"`
	TotalCustomers    int64              `json:"total_customers"`
	TotalOrders       int64              `json:"total_orders"`
	TotalRevenue      float64            `json:"total_revenue"`
	TenantStats       []TenantStat       `json:"tenant_stats"`
	BranchPerformance []TenantBranchStat `json:"branch_performance"`
}

// Service runs the aggregate queries
type Service struct {
	db *gorm.DB
}

// NewService creates an analytics service
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) raw(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	if err := s.db.WithContext(ctx).Raw(query, args...).Scan(dest).Error; err != nil {
		return apperror.Storage(err)
	}
	return nil
}

// Overview counts customers and orders and sums revenue
func (s *Service) Overview(ctx context.Context, tenantID uint) (*Overview, error) {
	defer prometheus.TrackTenantOperation("overview", tenantID)(time.Now())

	var out Overview
	err := s.raw(ctx, &out, `
		SELECT
			(SELECT COUNT(*) FROM customers WHERE tenant_id = ?) AS customers,
			(SELECT COUNT(*) FROM orders WHERE tenant_id = ?) AS orders,
			(SELECT COALESCE(SUM(total_price), 0)::float8 FROM orders WHERE tenant_id = ?) AS revenue`,
		tenantID, tenantID, tenantID)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RevenueTrends groups revenue by calendar month (UTC), oldest first
func (s *Service) RevenueTrends(ctx context.Context, tenantID uint, r DateRange) ([]TrendPoint, error) {
	defer prometheus.TrackTenantOperation("revenue_trends", tenantID)(time.Now())

	filter := "created_at >= NOW() - INTERVAL '6 months'"
	args := []interface{}{tenantID}
	if !r.IsZero() {
		filter = "created_at >= ? AND created_at < ?"
		args = append(args, r.Start, r.End)
	}

	out := []TrendPoint{}
	err := s.raw(ctx, &out, `
		SELECT
			TO_CHAR(DATE_TRUNC('month', created_at AT TIME ZONE 'UTC'), 'YYYY-MM') AS month,
			COALESCE(SUM(total_price), 0)::float8 AS revenue,
			COUNT(*) AS orders
		FROM orders
		WHERE tenant_id = ? AND `+filter+`
		GROUP BY 1
		ORDER BY 1 ASC`, args...)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// TopCustomers ranks customers by summed order totals
func (s *Service) TopCustomers(ctx context.Context, tenantID uint, limit int) ([]TopCustomer, error) {
	defer prometheus.TrackTenantOperation("top_customers", tenantID)(time.Now())

	if limit <= 0 {
		limit = 5
	}
	out := []TopCustomer{}
	err := s.raw(ctx, &out, `
		SELECT
			c.shopify_customer_id, c.first_name, c.last_name, c.email,
			COUNT(o.id) AS orders,
			COALESCE(SUM(o.total_price), 0)::float8 AS total_spent
		FROM orders o
		JOIN customers c
			ON c.tenant_id = o.tenant_id AND c.shopify_customer_id = o.customer_shopify_id
		WHERE o.tenant_id = ?
		GROUP BY c.shopify_customer_id, c.first_name, c.last_name, c.email
		ORDER BY total_spent DESC, c.shopify_customer_id ASC
		LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BranchPerformance lists every branch with its revenue, including branches without orders
func (s *Service) BranchPerformance(ctx context.Context, tenantID uint) ([]BranchStat, error) {
	defer prometheus.TrackTenantOperation("branch_performance", tenantID)(time.Now())

	out := []BranchStat{}
	err := s.raw(ctx, &out, `
		SELECT
			b.id AS branch_id, b.name AS branch_name,
			COUNT(o.id) AS orders,
			COALESCE(SUM(o.total_price), 0)::float8 AS revenue
		FROM branches b
		LEFT JOIN orders o ON o.tenant_id = b.tenant_id AND o.branch_id = b.id
		WHERE b.tenant_id = ?
		GROUP BY b.id, b.name
		ORDER BY revenue DESC, b.id ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Abandonment counts started and abandoned checkouts
func (s *Service) Abandonment(ctx context.Context, tenantID uint) (*Abandonment, error) {
	defer prometheus.TrackTenantOperation("abandonment", tenantID)(time.Now())

	var out Abandonment
	err := s.raw(ctx, &out, `
		SELECT
			COUNT(*) FILTER (WHERE event_type = 'checkout_started') AS checkouts_started,
			COUNT(*) FILTER (WHERE event_type = 'checkout_abandoned') AS checkouts_abandoned
		FROM custom_events
		WHERE tenant_id = ?`, tenantID)
	if err != nil {
		return nil, err
	}
	out.AbandonmentRate = abandonmentRate(out.CheckoutsStarted, out.CheckoutsAbandoned)
	return &out, nil
}

// CustomerSegments buckets every customer by order count and spend, biggest spenders first
func (s *Service) CustomerSegments(ctx context.Context, tenantID uint) ([]CustomerSegment, error) {
	defer prometheus.TrackTenantOperation("customer_segments", tenantID)(time.Now())

	out := []CustomerSegment{}
	err := s.raw(ctx, &out, `
		SELECT
			c.shopify_customer_id, c.first_name, c.last_name, c.email,
			COUNT(o.id) AS order_count,
			COALESCE(SUM(o.total_price), 0)::float8 AS total_spent
		FROM customers c
		LEFT JOIN orders o
			ON o.tenant_id = c.tenant_id AND o.customer_shopify_id = c.shopify_customer_id
		WHERE c.tenant_id = ?
		GROUP BY c.id, c.shopify_customer_id, c.first_name, c.last_name, c.email
		ORDER BY total_spent DESC, c.shopify_customer_id ASC`, tenantID)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].FrequencySegment = FrequencySegment(out[i].OrderCount)
		out[i].ValueSegment = ValueSegment(out[i].TotalSpent)
	}
	return out, nil
}

// GlobalOverview rolls up every tenant. Callers must restrict it to admins.
func (s *Service) GlobalOverview(ctx context.Context) (*GlobalOverview, error) {
	defer prometheus.TrackDBOperation("global_overview")(time.Now())

	var totals struct {
		TotalTenants   int64
		TotalCustomers int64
		TotalOrders    int64
		TotalRevenue   float64
	}
	err := s.raw(ctx, &totals, `
		SELECT
			(SELECT COUNT(*) FROM tenants) AS total_tenants,
			(SELECT COUNT(*) FROM customers) AS total_customers,
			(SELECT COUNT(*) FROM orders) AS total_orders,
			(SELECT COALESCE(SUM(total_price), 0)::float8 FROM orders) AS total_revenue`)
	if err != nil {
		return nil, err
	}
	out := GlobalOverview{
		TotalTenants:   totals.TotalTenants,
		TotalCustomers: totals.TotalCustomers,
		TotalOrders:    totals.TotalOrders,
		TotalRevenue:   totals.TotalRevenue,
	}

	out.TenantStats = []TenantStat{}
	err = s.raw(ctx, &out.TenantStats, `
		SELECT
			t.tenant_id, t.store_domain, t.display_name,
			(SELECT COUNT(*) FROM customers c WHERE c.tenant_id = t.tenant_id) AS customers,
			COUNT(o.id) AS orders,
			COALESCE(SUM(o.total_price), 0)::float8 AS revenue
		FROM tenants t
		LEFT JOIN orders o ON o.tenant_id = t.tenant_id
		GROUP BY t.tenant_id
		ORDER BY revenue DESC, t.tenant_id ASC`)
	if err != nil {
		return nil, err
	}

	out.BranchPerformance = []TenantBranchStat{}
	err = s.raw(ctx, &out.BranchPerformance, `
		SELECT
			b.tenant_id, b.id AS branch_id, b.name AS branch_name,
			COUNT(o.id) AS orders,
			COALESCE(SUM(o.total_price), 0)::float8 AS revenue
		FROM branches b
		LEFT JOIN orders o ON o.tenant_id = b.tenant_id AND o.branch_id = b.id
		GROUP BY b.tenant_id, b.id, b.name
		ORDER BY revenue DESC, b.id ASC`)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
