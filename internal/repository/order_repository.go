package repository

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var orderUpsertColumns = []string{
	"customer_shopify_id", "total_price", "currency", "financial_status",
	"fulfillment_status", "line_items", "data", "created_at", "updated_at",
}

// UpsertOrder inserts or refreshes an order keyed by (tenant, shopify_order_id).
// An incoming version older than the stored updated_at is ignored.
func (s *Store) UpsertOrder(ctx context.Context, order *model.Order) error {
	defer prometheus.TrackDBOperation("order_upsert")(time.Now())

	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = time.Now().UTC()
	}
	if order.LineItems.Data == nil {
		order.LineItems = model.NewJSONB([]model.LineItem{})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "shopify_order_id"}},
		DoUpdates: upsertSet("orders", orderUpsertColumns),
		Where:     newerOrEqual("orders"),
	}).Create(order).Error
	return storageErr(err)
}

// ListOrders returns a tenant's orders, newest first
func (s *Store) ListOrders(ctx context.Context, tenantID uint, page Page) ([]model.Order, error) {
	defer prometheus.TrackDBOperation("order_list")(time.Now())

	var orders []model.Order
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC, id DESC")
	if err := page.apply(q).Find(&orders).Error; err != nil {
		return nil, storageErr(err)
	}
	return orders, nil
}

// GetOrder returns one order by its platform id
func (s *Store) GetOrder(ctx context.Context, tenantID uint, shopifyID int64) (*model.Order, error) {
	defer prometheus.TrackDBOperation("order_get")(time.Now())

	var order model.Order
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND shopify_order_id = ?", tenantID, shopifyID).
		First(&order).Error
	if err != nil {
		return nil, lookupErr("order", err)
	}
	return &order, nil
}

// UpdateOrder saves edited fields of an existing order
func (s *Store) UpdateOrder(ctx context.Context, order *model.Order) error {
	defer prometheus.TrackDBOperation("order_update")(time.Now())

	updates := map[string]interface{}{
		"branch_id":           order.BranchID,
		"customer_shopify_id": order.CustomerShopifyID,
		"total_price":         order.TotalPrice,
		"currency":            order.Currency,
		"financial_status":    order.FinancialStatus,
		"fulfillment_status":  order.FulfillmentStatus,
	}
	if order.LineItems.Data != nil {
		updates["line_items"] = order.LineItems
	}

	res := s.db.WithContext(ctx).Model(&model.Order{}).
		Where("tenant_id = ? AND shopify_order_id = ?", order.TenantID, order.ShopifyOrderID).
		Updates(updates)
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return lookupErr("order", gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteOrder removes an order and reports whether a row was deleted
func (s *Store) DeleteOrder(ctx context.Context, tenantID uint, shopifyID int64) (bool, error) {
	defer prometheus.TrackDBOperation("order_delete")(time.Now())

	res := s.db.WithContext(ctx).
		Where("tenant_id = ? AND shopify_order_id = ?", tenantID, shopifyID).
		Delete(&model.Order{})
	if res.Error != nil {
		return false, storageErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}
