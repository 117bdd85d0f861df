package repository

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var productUpsertColumns = []string{
	"title", "vendor", "product_type", "price", "inventory", "data", "updated_at",
}

// UpsertProduct inserts or refreshes a product keyed by (tenant, shopify_product_id)
func (s *Store) UpsertProduct(ctx context.Context, product *model.Product) error {
	defer prometheus.TrackDBOperation("product_upsert")(time.Now())

	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = time.Now().UTC()
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tenant_id"}, {Name: "shopify_product_id"}},
		DoUpdates: upsertSet("products", productUpsertColumns),
		Where:     newerOrEqual("products"),
	}).Create(product).Error
	return storageErr(err)
}

// ListProducts returns a tenant's products, optionally limited to one branch
func (s *Store) ListProducts(ctx context.Context, tenantID uint, branchID *uint, page Page) ([]model.Product, error) {
	defer prometheus.TrackDBOperation("product_list")(time.Now())

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}

	var products []model.Product
	if err := page.apply(q.Order("created_at DESC, id DESC")).Find(&products).Error; err != nil {
		return nil, storageErr(err)
	}
	return products, nil
}

// GetProduct returns one product by its platform id
func (s *Store) GetProduct(ctx context.Context, tenantID uint, shopifyID int64) (*model.Product, error) {
	defer prometheus.TrackDBOperation("product_get")(time.Now())

	var product model.Product
	err := s.db.WithContext(ctx).
		Where("tenant_id = ? AND shopify_product_id = ?", tenantID, shopifyID).
		First(&product).Error
	if err != nil {
		return nil, lookupErr("product", err)
	}
	return &product, nil
}

// UpdateProduct saves edited fields of an existing product
func (s *Store) UpdateProduct(ctx context.Context, product *model.Product) error {
	defer prometheus.TrackDBOperation("product_update")(time.Now())

	res := s.db.WithContext(ctx).Model(&model.Product{}).
		Where("tenant_id = ? AND shopify_product_id = ?", product.TenantID, product.ShopifyProductID).
		Updates(map[string]interface{}{
			"branch_id":    product.BranchID,
			"title":        product.Title,
			"vendor":       product.Vendor,
			"product_type": product.ProductType,
			"price":        product.Price,
			"inventory":    product.Inventory,
		})
	if res.Error != nil {
		return storageErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return lookupErr("product", gorm.ErrRecordNotFound)
	}
	return nil
}

// DeleteProduct removes a product and reports whether a row was deleted
func (s *Store) DeleteProduct(ctx context.Context, tenantID uint, shopifyID int64) (bool, error) {
	defer prometheus.TrackDBOperation("product_delete")(time.Now())

	res := s.db.WithContext(ctx).
		Where("tenant_id = ? AND shopify_product_id = ?", tenantID, shopifyID).
		Delete(&model.Product{})
	if res.Error != nil {
		return false, storageErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}
