package ingest

import (
	"context"
	"fmt"
	"sync"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
)

type memStore struct {
	mu        sync.Mutex
	customers map[string]*model.Customer
	products  map[string]*model.Product
	orders    map[string]*model.Order
	events    []*model.CustomEvent
}

func newMemStore() *memStore {
	return &memStore{
		customers: map[string]*model.Customer{},
		products:  map[string]*model.Product{},
		orders:    map[string]*model.Order{},
	}
}

func key(tenantID uint, id int64) string { return fmt.Sprintf("%d/%d", tenantID, id) }

func (s *memStore) UpsertCustomer(_ context.Context, c *model.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.customers[key(c.TenantID, c.ShopifyCustomerID)] = c
	return nil
}

func (s *memStore) DeleteCustomer(_ context.Context, tenantID uint, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.customers[key(tenantID, id)]
	delete(s.customers, key(tenantID, id))
	for _, o := range s.orders {
		if o.TenantID == tenantID && o.CustomerShopifyID != nil && *o.CustomerShopifyID == id {
			o.CustomerShopifyID = nil
		}
	}
	return ok, nil
}

func (s *memStore) UpsertProduct(_ context.Context, p *model.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[key(p.TenantID, p.ShopifyProductID)] = p
	return nil
}

func (s *memStore) DeleteProduct(_ context.Context, tenantID uint, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.products[key(tenantID, id)]
	delete(s.products, key(tenantID, id))
	return ok, nil
}

func (s *memStore) UpsertOrder(_ context.Context, o *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[key(o.TenantID, o.ShopifyOrderID)] = o
	return nil
}

func (s *memStore) AppendEvent(_ context.Context, e *model.CustomEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.EventType == model.EventCheckoutStarted || e.EventType == model.EventCheckoutAbandoned {
		for _, existing := range s.events {
			if existing.TenantID == e.TenantID && existing.EventType == e.EventType &&
				*existing.ShopifyResourceID == *e.ShopifyResourceID {
				return false, nil
			}
		}
	}
	s.events = append(s.events, e)
	return true, nil
}

func (s *memStore) HasEvent(_ context.Context, tenantID uint, eventType string, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.TenantID == tenantID && e.EventType == eventType && e.ShopifyResourceID != nil && *e.ShopifyResourceID == id {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) count(eventType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type broadcast struct {
	tenantID uint
	event    string
	data     interface{}
}

type recordingBroadcaster struct {
	mu   sync.Mutex
	sent []broadcast
}

func (b *recordingBroadcaster) Broadcast(tenantID uint, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, broadcast{tenantID, event, data})
}

type staticTenants map[string]uint

func (s staticTenants) ResolveByDomain(_ context.Context, domain string) (*model.Tenant, error) {
	id, ok := s[domain]
	if !ok {
		return nil, apperror.NotFound("tenant not found")
	}
	return &model.Tenant{ID: id, StoreDomain: domain}, nil
}
