package repository

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var customerUpsertColumns = []string{
	"first_name", "last_name", "email", "phone",
	"orders_count", "total_spent", "data", "updated_at",
}

// UpsertCustomer inserts or refreshes a customer keyed by (tenant, shopify_customer_id).
// A stored row with a newer updated_at is left untouched.
func (s *Store) UpsertCustomer(ctx context.Context, customer *model.Customer) error {
	defer prometheus.TrackDBOperation("customer_upsert")(time.Now())

	if customer.UpdatedAt.IsZero() {
		customer.UpdatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "shopify_customer_id"}},
		DoUpdates: upsertSet("customers", customerUpsertColumns),
		Where:     newerOrEqual("customers"),
	}).Create(customer).Error
	return storageErr(err)
}

// ListCustomers returns a tenant's customers, newest first
func (s *Store) ListCustomers(ctx context.Context, tenantID uint, page Page) ([]model.Customer, error) {
	defer prometheus.TrackDBOperation("customer_list")(time.Now())

	var customers []model.Customer
	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID).Order("created_at DESC, id DESC")
	if err := page.apply(q).Find(&customers).Error; err != nil {
		return nil, storageErr(err)
	}
	return customers, nil
}

// GetCustomer returns one customer by its platform id
func (s *Store) GetCustomer(ctx context.Context, tenantID uint, shopifyID int64) (*model.Customer, error) {
	defer prometheus.TrackDBOperation("customer_get")(time.Now())

	var customer model.Customer
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND shopify_customer_id = ?", tenantID, shopifyID).
		First(&customer).Error
	if err != nil {
		return nil, lookupErr("customer", err)
	}
	return &customer, nil
}

// UpdateCustomer saves edited fields of an existing customer
func (s *Store) UpdateCustomer(ctx context.Context, customer *model.Customer) error {
	defer prometheus.TrackDBOperation("customer_update")(time.Now())

	res := s.db.WithContext(ctx).Model(&model.Customer{}).
		Where("tenant_id = ? AND shopify_customer_id = ?", customer.TenantID, customer.ShopifyCustomerID).
		Updates(map[string]interface{}{
			"branch_id":    customer.BranchID,
			"first_name":   customer.FirstName,
			"last_name":    customer.LastName,
			"email":        customer.Email,
			"phone":        customer.Phone,
			"orders_count": customer.OrdersCount,
			"total_spent":  customer.TotalSpent,
		})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return lookupErr("customer", gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteCustomer removes a customer and clears the customer reference on its orders
// in the same transaction. It reports whether a row was deleted.
func (s *Store) DeleteCustomer(ctx context.Context, tenantID uint, shopifyID int64) (bool, error) {
	defer prometheus.TrackDBOperation("customer_delete")(time.Now())

	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("tenant_id = ? AND shopify_customer_id = ?", tenantID, shopifyID).Delete(&model.Customer{})
		if res.Error != nil {
			return res.Error
		}
		deleted = res.RowsAffected > 0

		// UpdateColumn leaves updated_at alone so later platform updates still apply
		return tx.Model(&model.Order{}).
			Where("tenant_id = ? AND customer_shopify_id = ?", tenantID, shopifyID).
			UpdateColumn("customer_shopify_id", gorm.Expr("NULL")).Error
	})
	if err != nil {
		return false, storageErr(err)
	}
	return deleted, nil
}
