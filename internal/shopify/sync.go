package shopify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// API is the subset of the Admin API used by sync
type API interface {
	Shop(ctx context.Context) (*Shop, error)
	Customers(ctx context.Context) ([]Record[Customer], error)
	Products(ctx context.Context) ([]Record[Product], error)
	Orders(ctx context.Context) ([]Record[Order], error)
	Locations(ctx context.Context) ([]Record[Location], error)
}

// Store is where synced resources are written
type Store interface {
	UpsertBranchByLocation(ctx context.Context, branch *model.Branch) error
	ListBranches(ctx context.Context, tenantID uint) ([]model.Branch, error)
	UpsertCustomer(ctx context.Context, customer *model.Customer) error
	UpsertProduct(ctx context.Context, product *model.Product) error
	UpsertOrder(ctx context.Context, order *model.Order) error
	AppendEvent(ctx context.Context, event *model.CustomEvent) (bool, error)
}

// ClientFactory builds an API client for a tenant's credentials
type ClientFactory func(tenant *model.Tenant) API

// Result counts what a sync wrote
type Result struct {
	TenantID  uint      `json:"tenant_id"`
	Shop      string    `json:"shop"`
	Branches  int       `json:"branches"`
	Customers int       `json:"customers"`
	Products  int       `json:"products"`
	Orders    int       `json:"orders"`
	Completed time.Time `json:"completed_at"`
}

// Syncer pulls a tenant's full catalog from the platform
type Syncer struct {
	store     Store
	newClient ClientFactory
}

// NewSyncer creates a syncer
func NewSyncer(store Store, newClient ClientFactory) *Syncer {
	return &Syncer{store: store, newClient: newClient}
}

// SyncTenant upserts locations, customers, products and orders, then records a sync_completed event.
// Fetching stops at the first upstream failure and nothing is written.
func (s *Syncer) SyncTenant(ctx context.Context, tenant *model.Tenant) (*Result, error) {
	defer prometheus.TrackTenantOperation("sync", tenant.ID)(time.Now())
	log := logger.FromContext(ctx).With(zap.Uint("tenant_id", tenant.ID), zap.String("store_domain", tenant.StoreDomain))

	api := s.newClient(tenant)
	shop, err := api.Shop(ctx)
	if err != nil {
		log.Error("Shopify connection check failed", zap.Error(err))
		return nil, err
	}

	var (
		locations []Record[Location]
		customers []Record[Customer]
		products  []Record[Product]
		orders    []Record[Order]
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		locations, err = api.Locations(gctx)
		return err
	})
	g.Go(func() (err error) {
		customers, err = api.Customers(gctx)
		return err
	})
	g.Go(func() (err error) {
		products, err = api.Products(gctx)
		return err
	})
	g.Go(func() (err error) {
		orders, err = api.Orders(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		log.Error("Shopify fetch failed", zap.Error(err))
		return nil, err
	}

	for i := range locations {
		if err := s.store.UpsertBranchByLocation(ctx, BranchModel(tenant.ID, &locations[i].Value)); err != nil {
			return nil, err
		}
	}
	branchByLocation, err := s.branchIndex(ctx, tenant.ID)
	if err != nil {
		return nil, err
	}

	for i := range customers {
		if err := s.store.UpsertCustomer(ctx, CustomerModel(tenant.ID, &customers[i].Value, customers[i].Raw)); err != nil {
			return nil, err
		}
	}
	for i := range products {
		if err := s.store.UpsertProduct(ctx, ProductModel(tenant.ID, &products[i].Value, products[i].Raw)); err != nil {
			return nil, err
		}
	}
	for i := range orders {
		o := &orders[i].Value
		row := OrderModel(tenant.ID, o, orders[i].Raw)
		if o.LocationID != nil {
			if branchID, ok := branchByLocation[*o.LocationID]; ok {
				row.BranchID = &branchID
			}
		}
		if err := s.store.UpsertOrder(ctx, row); err != nil {
			return nil, err
		}
	}

	result := &Result{
		TenantID:  tenant.ID,
		Shop:      shop.Name,
		Branches:  len(locations),
		Customers: len(customers),
		Products:  len(products),
		Orders:    len(orders),
		Completed: time.Now().UTC(),
	}

	payload, _ := json.Marshal(map[string]interface{}{
		"source":    "manual_sync",
		"branches":  result.Branches,
		"customers": result.Customers,
		"products":  result.Products,
		"orders":    result.Orders,
	})
	if _, err := s.store.AppendEvent(ctx, &model.CustomEvent{
		TenantID:  tenant.ID,
		EventType: model.EventSyncCompleted,
		Payload:   model.JSON(payload),
	}); err != nil {
		return nil, err
	}

	log.Info("Tenant sync completed",
		zap.String("shop", shop.Name),
		zap.Int("branches", result.Branches),
		zap.Int("customers", result.Customers),
		zap.Int("products", result.Products),
		zap.Int("orders", result.Orders))
	return result, nil
}

func (s *Syncer) branchIndex(ctx context.Context, tenantID uint) (map[int64]uint, error) {
	branches, err := s.store.ListBranches(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	index := make(map[int64]uint, len(branches))
	for _, b := range branches {
		if b.ShopifyLocationID != nil {
			index[*b.ShopifyLocationID] = b.ID
		}
	}
	return index, nil
}
