package handler

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/suteetoe/shopdash/internal/analytics"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
	"github.com/suteetoe/shopdash/internal/shopify"
	"github.com/suteetoe/shopdash/internal/tenant"
)

type fakeTenants struct {
	mu      sync.Mutex
	byID    map[uint]*model.Tenant
	nextID  uint
	lookErr error
}

func newFakeTenants(tenants ...*model.Tenant) *fakeTenants {
	f := &fakeTenants{byID: map[uint]*model.Tenant{}, nextID: 100}
	for _, t := range tenants {
		f.byID[t.ID] = t
	}
	return f
}

func (f *fakeTenants) ResolveByID(_ context.Context, id uint) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	t, ok := f.byID[id]
	if !ok {
		return nil, tenant.ErrNotFound
	}
	return t, nil
}

func (f *fakeTenants) ResolveByDomain(_ context.Context, domain string) (*model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookErr != nil {
		return nil, f.lookErr
	}
	for _, t := range f.byID {
		if t.StoreDomain == tenant.NormalizeDomain(domain) {
			return t, nil
		}
	}
	return nil, tenant.ErrNotFound
}

func (f *fakeTenants) ListAll(context.Context) ([]model.Tenant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Tenant, 0, len(f.byID))
	for _, t := range f.byID {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTenants) Create(_ context.Context, t *model.Tenant) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t.ID = f.nextID
	f.nextID++
	f.byID[t.ID] = t
	return nil
}

type fakeUsers struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID uint
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: map[string]*model.User{}, nextID: 1}
}

func (f *fakeUsers) FindUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[email]
	if !ok {
		return nil, apperror.NotFound("user not found")
	}
	return u, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[u.Email]; ok {
		return repository.ErrEmailTaken
	}
	u.ID = f.nextID
	f.nextID++
	f.users[u.Email] = u
	return nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []ingest.Task
	err   error
}

func (q *fakeQueue) Enqueue(task ingest.Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func (q *fakeQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

type fakeReplayer struct {
	replayed []string
}

func (r *fakeReplayer) Replay(_ context.Context, id string) (*ingest.Task, error) {
	if id == "missing" {
		return nil, ingest.ErrDeadLetterNotFound
	}
	r.replayed = append(r.replayed, id)
	return &ingest.Task{ID: "task-" + id, Topic: "orders/create"}, nil
}

type fakeSyncer struct {
	err    error
	synced []uint
}

func (s *fakeSyncer) SyncTenant(_ context.Context, t *model.Tenant) (*shopify.Result, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.synced = append(s.synced, t.ID)
	return &shopify.Result{TenantID: t.ID, Shop: t.StoreDomain, Customers: 2}, nil
}

// fakeAnalytics answers every report with the requesting tenant's id baked in
type fakeAnalytics struct {
	mu      sync.Mutex
	ranges  []analytics.DateRange
	tenants []uint
	limits  []int
}

func (f *fakeAnalytics) seen(tenantID uint) {
	f.mu.Lock()
	f.tenants = append(f.tenants, tenantID)
	f.mu.Unlock()
}

func (f *fakeAnalytics) Overview(_ context.Context, tenantID uint) (*analytics.Overview, error) {
	f.seen(tenantID)
	return &analytics.Overview{Customers: int64(tenantID), Orders: 2, Revenue: 10.5}, nil
}

func (f *fakeAnalytics) RevenueTrends(_ context.Context, tenantID uint, r analytics.DateRange) ([]analytics.TrendPoint, error) {
	f.seen(tenantID)
	f.mu.Lock()
	f.ranges = append(f.ranges, r)
	f.mu.Unlock()
	return []analytics.TrendPoint{{Month: "2024-01", Revenue: 50, Orders: 1}}, nil
}

func (f *fakeAnalytics) TopCustomers(_ context.Context, tenantID uint, limit int) ([]analytics.TopCustomer, error) {
	f.seen(tenantID)
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()
	return []analytics.TopCustomer{}, nil
}

func (f *fakeAnalytics) BranchPerformance(_ context.Context, tenantID uint) ([]analytics.BranchStat, error) {
	f.seen(tenantID)
	return []analytics.BranchStat{}, nil
}

func (f *fakeAnalytics) Abandonment(_ context.Context, tenantID uint) (*analytics.Abandonment, error) {
	f.seen(tenantID)
	return &analytics.Abandonment{CheckoutsStarted: 4, CheckoutsAbandoned: 1, AbandonmentRate: 25}, nil
}

func (f *fakeAnalytics) CustomerSegments(_ context.Context, tenantID uint) ([]analytics.CustomerSegment, error) {
	f.seen(tenantID)
	return []analytics.CustomerSegment{}, nil
}

func (f *fakeAnalytics) GlobalOverview(context.Context) (*analytics.GlobalOverview, error) {
	return &analytics.GlobalOverview{TotalTenants: 2}, nil
}

func (f *fakeAnalytics) OrderInsights(_ context.Context, tenantID uint) (*analytics.OrderInsights, error) {
	f.seen(tenantID)
	return &analytics.OrderInsights{TotalOrders: 3}, nil
}

func (f *fakeAnalytics) CustomerInsights(_ context.Context, tenantID uint) (*analytics.CustomerInsights, error) {
	f.seen(tenantID)
	return &analytics.CustomerInsights{TotalCustomers: 1}, nil
}

func (f *fakeAnalytics) ProductInsights(_ context.Context, tenantID uint) (*analytics.ProductInsights, error) {
	f.seen(tenantID)
	return &analytics.ProductInsights{TotalProducts: 1}, nil
}

func (f *fakeAnalytics) EventInsights(_ context.Context, tenantID uint) (*analytics.EventInsights, error) {
	f.seen(tenantID)
	return &analytics.EventInsights{TotalEvents: 1}, nil
}

// memStore is an in-memory stand-in for repository.Store's tenant tables
type memStore struct {
	mu        sync.Mutex
	customers map[string]*model.Customer
	products  map[string]*model.Product
	orders    map[string]*model.Order
	branches  []model.Branch
	events    []model.CustomEvent
	filters   []repository.EventFilter
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]*model.Customer{},
		products:  map[string]*model.Product{},
		orders:    map[string]*model.Order{},
	}
}

func key(tenantID uint, id int64) string { return fmt.Sprintf("%d/%d", tenantID, id) }

func (s *memStore) ListCustomers(_ context.Context, tenantID uint, _ repository.Page) ([]model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Customer
	for _, c := range s.customers {
		if c.TenantID == tenantID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (s *memStore) GetCustomer(_ context.Context, tenantID uint, id int64) (*model.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.customers[key(tenantID, id)]
	if !ok {
		return nil, apperror.NotFound("customer not found")
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) UpsertCustomer(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.customers[key(c.TenantID, c.ShopifyCustomerID)] = &cp
	return nil
}

func (s *memStore) UpdateCustomer(ctx context.Context, c *model.Customer) error {
	if _, err := s.GetCustomer(ctx, c.TenantID, c.ShopifyCustomerID); err != nil {
		return err
	}
	return s.UpsertCustomer(ctx, c)
}

func (s *memStore) DeleteCustomer(_ context.Context, tenantID uint, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, id)
	_, ok := s.customers[k]
	delete(s.customers, k)
	for _, o := range s.orders {
		if o.TenantID == tenantID && o.CustomerShopifyID != nil && *o.CustomerShopifyID == id {
			o.CustomerShopifyID = nil
		}
	}
	return ok, nil
}

func (s *memStore) ListProducts(_ context.Context, tenantID uint, branchID *uint, _ repository.Page) ([]model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Product{}
	for _, p := range s.products {
		if p.TenantID != tenantID {
			continue
		}
		if branchID != nil && (p.BranchID == nil || *p.BranchID != *branchID) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (s *memStore) GetProduct(_ context.Context, tenantID uint, id int64) (*model.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[key(tenantID, id)]
	if !ok {
		return nil, apperror.NotFound("product not found")
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) UpsertProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.products[key(p.TenantID, p.ShopifyProductID)] = &cp
	return nil
}

func (s *memStore) UpdateProduct(ctx context.Context, p *model.Product) error {
	if _, err := s.GetProduct(ctx, p.TenantID, p.ShopifyProductID); err != nil {
		return err
	}
	return s.UpsertProduct(ctx, p)
}

func (s *memStore) DeleteProduct(_ context.Context, tenantID uint, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, id)
	_, ok := s.products[k]
	delete(s.products, k)
	return ok, nil
}

func (s *memStore) ListOrders(_ context.Context, tenantID uint, _ repository.Page) ([]model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Order{}
	for _, o := range s.orders {
		if o.TenantID == tenantID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *memStore) GetOrder(_ context.Context, tenantID uint, id int64) (*model.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[key(tenantID, id)]
	if !ok {
		return nil, apperror.NotFound("order not found")
	}
	cp := *o
	return &cp, nil
}

func (s *memStore) UpsertOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *o
	s.orders[key(o.TenantID, o.ShopifyOrderID)] = &cp
	return nil
}

func (s *memStore) UpdateOrder(ctx context.Context, o *model.Order) error {
	if _, err := s.GetOrder(ctx, o.TenantID, o.ShopifyOrderID); err != nil {
		return err
	}
	return s.UpsertOrder(ctx, o)
}

func (s *memStore) DeleteOrder(_ context.Context, tenantID uint, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(tenantID, id)
	_, ok := s.orders[k]
	delete(s.orders, k)
	return ok, nil
}

func (s *memStore) ListBranches(_ context.Context, tenantID uint) ([]model.Branch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []model.Branch{}
	for _, b := range s.branches {
		if b.TenantID == tenantID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memStore) HasBranch(_ context.Context, tenantID, branchID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.branches {
		if b.ID == branchID && b.TenantID == tenantID {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) CreateBranch(_ context.Context, b *model.Branch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b.ID = uint(len(s.branches) + 1)
	s.branches = append(s.branches, *b)
	return nil
}

func (s *memStore) ListEvents(_ context.Context, tenantID uint, filter repository.EventFilter) ([]model.CustomEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = append(s.filters, filter)
	out := []model.CustomEvent{}
	for _, e := range s.events {
		if e.TenantID == tenantID && (filter.EventType == "" || e.EventType == filter.EventType) {
			out = append(out, e)
		}
	}
	return out, nil
}
