package analytics_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/shopdash/internal/analytics"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
	"github.com/suteetoe/shopdash/internal/testutil"
	"golang.org/x/sync/errgroup"
)

type fixture struct {
	t     *testing.T
	store *repository.Store
	ctx   context.Context
}

func (f fixture) tenant(domain string) uint {
	f.t.Helper()
	tenant := &model.Tenant{StoreDomain: domain, DisplayName: domain}
	require.NoError(f.t, f.store.CreateTenant(f.ctx, tenant))
	return tenant.ID
}

func (f fixture) customer(tenantID uint, id int64, name string) {
	f.t.Helper()
	require.NoError(f.t, f.store.UpsertCustomer(f.ctx, &model.Customer{
		TenantID: tenantID, ShopifyCustomerID: id, FirstName: name, Email: name + "@example.com",
	}))
}

func (f fixture) order(tenantID uint, id int64, customerID *int64, total float64, created time.Time, branchID *uint) {
	f.t.Helper()
	require.NoError(f.t, f.store.UpsertOrder(f.ctx, &model.Order{
		TenantID: tenantID, ShopifyOrderID: id, CustomerShopifyID: customerID, TotalPrice: total,
		FinancialStatus: "paid", BranchID: branchID, CreatedAt: created, UpdatedAt: created,
	}))
}

func i64(v int64) *int64 { return &v }

func TestAnalytics(t *testing.T) {
	db := testutil.StartPostgres(t)
	store := repository.New(db)
	svc := analytics.NewService(db)
	ctx := context.Background()
	f := fixture{t: t, store: store, ctx: ctx}

	t.Run("overview and trends agree end to end", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("e2e.myshopify.com")
		f.order(tenant, 1, nil, 50, time.Date(2024, 1, 10, 12, 0, 0, 0, time.UTC), nil)
		f.order(tenant, 2, nil, 150, time.Date(2024, 1, 20, 12, 0, 0, 0, time.UTC), nil)
		f.order(tenant, 3, nil, 0, time.Date(2024, 2, 5, 12, 0, 0, 0, time.UTC), nil)

		overview, err := svc.Overview(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(3), overview.Orders)
		assert.Equal(t, 200.0, overview.Revenue)

		r, err := analytics.ParseDateRange("2024-01-01", "2024-02-29")
		require.NoError(t, err)
		trend, err := svc.RevenueTrends(ctx, tenant, r)
		require.NoError(t, err)
		require.Len(t, trend, 2)
		assert.Equal(t, "2024-01", trend[0].Month)
		assert.Equal(t, "2024-02", trend[1].Month)
		assert.Equal(t, int64(2), trend[0].Orders)
		assert.Equal(t, 200.0, trend[0].Revenue+trend[1].Revenue)

		// the default window is the trailing six months
		trend, err = svc.RevenueTrends(ctx, tenant, analytics.DateRange{})
		require.NoError(t, err)
		assert.Empty(t, trend)
	})

	t.Run("every query is tenant scoped under concurrency", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		a := f.tenant("a.myshopify.com")
		b := f.tenant("b.myshopify.com")
		now := time.Now().UTC()
		for i := int64(1); i <= 3; i++ {
			f.customer(a, i, fmt.Sprintf("a%d", i))
			f.order(a, i, i64(i), 10, now, nil)
		}
		f.customer(b, 1, "b1")
		f.order(b, 1, i64(1), 1000, now, nil)

		var g errgroup.Group
		for i := 0; i < 20; i++ {
			g.Go(func() error {
				got, err := svc.Overview(ctx, a)
				if err != nil {
					return err
				}
				if got.Customers != 3 || got.Orders != 3 || got.Revenue != 30 {
					return fmt.Errorf("tenant a saw %+v", got)
				}
				return nil
			})
			g.Go(func() error {
				got, err := svc.Overview(ctx, b)
				if err != nil {
					return err
				}
				if got.Customers != 1 || got.Orders != 1 || got.Revenue != 1000 {
					return fmt.Errorf("tenant b saw %+v", got)
				}
				return nil
			})
		}
		require.NoError(t, g.Wait())

		top, err := svc.TopCustomers(ctx, a, 5)
		require.NoError(t, err)
		require.Len(t, top, 3)
		for _, c := range top {
			assert.NotEqual(t, "b1", c.FirstName)
		}

		trend, err := svc.RevenueTrends(ctx, b, analytics.DateRange{})
		require.NoError(t, err)
		require.Len(t, trend, 1)
		assert.Equal(t, 1000.0, trend[0].Revenue)
	})

	t.Run("top customers rank by spend", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("top.myshopify.com")
		now := time.Now().UTC()
		f.customer(tenant, 1, "low")
		f.customer(tenant, 2, "high")
		f.customer(tenant, 3, "none")
		f.order(tenant, 1, i64(1), 20, now, nil)
		f.order(tenant, 2, i64(2), 300, now, nil)
		f.order(tenant, 3, i64(2), 200, now, nil)

		top, err := svc.TopCustomers(ctx, tenant, 5)
		require.NoError(t, err)
		require.Len(t, top, 2)
		assert.Equal(t, "high", top[0].FirstName)
		assert.Equal(t, int64(2), top[0].Orders)
		assert.Equal(t, 500.0, top[0].TotalSpent)

		top, err = svc.TopCustomers(ctx, tenant, 1)
		require.NoError(t, err)
		assert.Len(t, top, 1)
	})

	t.Run("branches without orders are listed", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("branch.myshopify.com")
		busy := &model.Branch{TenantID: tenant, Name: "Downtown", Location: "Main St"}
		idle := &model.Branch{TenantID: tenant, Name: "Airport", Location: "Terminal 1"}
		require.NoError(t, store.CreateBranch(ctx, busy))
		require.NoError(t, store.CreateBranch(ctx, idle))
		f.order(tenant, 1, nil, 75, time.Now().UTC(), &busy.ID)

		stats, err := svc.BranchPerformance(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, stats, 2)
		assert.Equal(t, "Downtown", stats[0].BranchName)
		assert.Equal(t, 75.0, stats[0].Revenue)
		assert.Equal(t, "Airport", stats[1].BranchName)
		assert.Equal(t, int64(0), stats[1].Orders)
		assert.Equal(t, 0.0, stats[1].Revenue)
	})

	t.Run("abandonment counts each checkout once", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("cart.myshopify.com")
		for i := int64(1); i <= 4; i++ {
			for repeat := 0; repeat < 2; repeat++ {
				_, err := store.AppendEvent(ctx, &model.CustomEvent{TenantID: tenant, EventType: model.EventCheckoutStarted, ShopifyResourceID: i64(i)})
				require.NoError(t, err)
			}
		}
		_, err := store.AppendEvent(ctx, &model.CustomEvent{TenantID: tenant, EventType: model.EventCheckoutAbandoned, ShopifyResourceID: i64(2)})
		require.NoError(t, err)

		got, err := svc.Abandonment(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(4), got.CheckoutsStarted)
		assert.Equal(t, int64(1), got.CheckoutsAbandoned)
		assert.Equal(t, 25.0, got.AbandonmentRate)
	})

	t.Run("customer segments", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("seg.myshopify.com")
		now := time.Now().UTC()
		f.customer(tenant, 1, "vip")
		f.customer(tenant, 2, "once")
		f.customer(tenant, 3, "fresh")
		for i := int64(1); i <= 6; i++ {
			f.order(tenant, i, i64(1), 200, now, nil)
		}
		f.order(tenant, 7, i64(2), 40, now, nil)

		segments, err := svc.CustomerSegments(ctx, tenant)
		require.NoError(t, err)
		require.Len(t, segments, 3)

		assert.Equal(t, "vip", segments[0].FirstName)
		assert.Equal(t, analytics.SegmentVIP, segments[0].FrequencySegment)
		assert.Equal(t, analytics.SegmentHighValue, segments[0].ValueSegment)

		assert.Equal(t, "once", segments[1].FirstName)
		assert.Equal(t, analytics.SegmentOneTime, segments[1].FrequencySegment)
		assert.Equal(t, analytics.SegmentLowValue, segments[1].ValueSegment)

		assert.Equal(t, "fresh", segments[2].FirstName)
		assert.Equal(t, analytics.SegmentNew, segments[2].FrequencySegment)
		assert.Equal(t, analytics.SegmentNoPurchase, segments[2].ValueSegment)
	})

	t.Run("global overview rolls up every tenant", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		a := f.tenant("ga.myshopify.com")
		b := f.tenant("gb.myshopify.com")
		now := time.Now().UTC()
		f.customer(a, 1, "a1")
		f.customer(a, 2, "a2")
		f.order(a, 1, i64(1), 10, now, nil)
		f.order(a, 2, i64(2), 20, now, nil)
		f.order(b, 1, nil, 100, now, nil)

		got, err := svc.GlobalOverview(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), got.TotalTenants)
		assert.Equal(t, int64(2), got.TotalCustomers)
		assert.Equal(t, int64(3), got.TotalOrders)
		assert.Equal(t, 130.0, got.TotalRevenue)

		require.Len(t, got.TenantStats, 2)
		assert.Equal(t, b, got.TenantStats[0].TenantID)
		assert.Equal(t, 100.0, got.TenantStats[0].Revenue)
		assert.Equal(t, a, got.TenantStats[1].TenantID)
		// customer count does not inflate order totals
		assert.Equal(t, int64(2), got.TenantStats[1].Customers)
		assert.Equal(t, int64(2), got.TenantStats[1].Orders)
		assert.Equal(t, 30.0, got.TenantStats[1].Revenue)
	})

	t.Run("insights", func(t *testing.T) {
		testutil.Truncate(t, db)
		f.t = t
		tenant := f.tenant("ins.myshopify.com")
		now := time.Now().UTC()
		f.customer(tenant, 1, "buyer")
		f.customer(tenant, 2, "idle")

		require.NoError(t, store.UpsertProduct(ctx, &model.Product{TenantID: tenant, ShopifyProductID: 10, Title: "Mug", Price: 10, Inventory: 3}))
		require.NoError(t, store.UpsertProduct(ctx, &model.Product{TenantID: tenant, ShopifyProductID: 20, Title: "Tee", Price: 30, Inventory: 50}))
		require.NoError(t, store.UpsertOrder(ctx, &model.Order{
			TenantID: tenant, ShopifyOrderID: 1, CustomerShopifyID: i64(1), TotalPrice: 50, FinancialStatus: "paid",
			LineItems: model.NewJSONB([]model.LineItem{
				{ProductID: i64(10), Title: "Mug", Quantity: 2, Price: 10},
				{ProductID: i64(20), Title: "Tee", Quantity: 1, Price: 30},
			}),
			CreatedAt: now, UpdatedAt: now,
		}))
		require.NoError(t, store.UpsertOrder(ctx, &model.Order{
			TenantID: tenant, ShopifyOrderID: 2, TotalPrice: 100, FinancialStatus: "refunded",
			LineItems: model.NewJSONB([]model.LineItem{{ProductID: i64(10), Title: "Mug", Quantity: 5, Price: 10}}),
			CreatedAt: now, UpdatedAt: now,
		}))
		_, err := store.AppendEvent(ctx, &model.CustomEvent{TenantID: tenant, EventType: model.EventCheckoutStarted, ShopifyResourceID: i64(1)})
		require.NoError(t, err)
		_, err = store.AppendEvent(ctx, &model.CustomEvent{TenantID: tenant, EventType: model.EventOrderCancelled, ShopifyResourceID: i64(2)})
		require.NoError(t, err)

		orders, err := svc.OrderInsights(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(2), orders.TotalOrders)
		assert.Equal(t, 150.0, orders.TotalRevenue)
		assert.Equal(t, 75.0, orders.AvgOrderValue)
		assert.Equal(t, int64(1), orders.UniqueCustomers)
		assert.Len(t, orders.OrdersByStatus, 2)
		require.Len(t, orders.DailyTrend, 1)
		assert.Equal(t, int64(2), orders.DailyTrend[0].Orders)

		customers, err := svc.CustomerInsights(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(2), customers.TotalCustomers)
		assert.Equal(t, int64(2), customers.NewThisMonth)
		assert.Equal(t, int64(1), customers.ActiveCustomers)
		assert.Equal(t, int64(1), customers.InactiveCustomers)
		require.Len(t, customers.TopCustomers, 1)

		products, err := svc.ProductInsights(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(2), products.TotalProducts)
		assert.Equal(t, 20.0, products.AvgPrice)
		require.Len(t, products.TopProducts, 2)
		assert.Equal(t, "Mug", products.TopProducts[0].Title)
		assert.Equal(t, int64(7), products.TopProducts[0].UnitsSold)
		assert.Equal(t, int64(1), products.TopProducts[1].UnitsSold)
		require.Len(t, products.LowInventory, 1)
		assert.Equal(t, int64(10), products.LowInventory[0].ShopifyProductID)

		events, err := svc.EventInsights(ctx, tenant)
		require.NoError(t, err)
		assert.Equal(t, int64(2), events.TotalEvents)
		assert.Equal(t, int64(2), events.Last24h)
		assert.Equal(t, int64(2), events.Last7d)
		assert.Len(t, events.ByType, 2)
		assert.Len(t, events.Recent, 2)
	})
}
