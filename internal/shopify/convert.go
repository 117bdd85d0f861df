package shopify

import (
	"encoding/json"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
)

func utc(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return t.UTC()
}

// CustomerModel maps a customer resource onto its row
func CustomerModel(tenantID uint, c *Customer, raw json.RawMessage) *model.Customer {
	return &model.Customer{
		TenantID:          tenantID,
		ShopifyCustomerID: c.ID,
		FirstName:         c.FirstName,
		LastName:          c.LastName,
		Email:             c.Email,
		Phone:             c.Phone,
		OrdersCount:       c.OrdersCount,
		TotalSpent:        float64(c.TotalSpent),
		Data:              model.JSON(raw),
		CreatedAt:         utc(c.CreatedAt),
		UpdatedAt:         utc(c.UpdatedAt),
	}
}

// ProductModel maps a product resource onto its row. Price and inventory come from the first variant.
func ProductModel(tenantID uint, p *Product, raw json.RawMessage) *model.Product {
	v := p.FirstVariant()
	return &model.Product{
		TenantID:         tenantID,
		ShopifyProductID: p.ID,
		Title:            p.Title,
		Vendor:           p.Vendor,
		ProductType:      p.ProductType,
		Price:            float64(v.Price),
		Inventory:        v.InventoryQuantity,
		Data:             model.JSON(raw),
		CreatedAt:        utc(p.CreatedAt),
		UpdatedAt:        utc(p.UpdatedAt),
	}
}

// OrderModel maps an order resource onto its row
func OrderModel(tenantID uint, o *Order, raw json.RawMessage) *model.Order {
	items := make([]model.LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		items = append(items, model.LineItem{
			ProductID: li.ProductID,
			Title:     li.Title,
			Quantity:  li.Quantity,
			Price:     float64(li.Price),
		})
	}
	return &model.Order{
		TenantID:          tenantID,
		ShopifyOrderID:    o.ID,
		CustomerShopifyID: o.CustomerID(),
		TotalPrice:        float64(o.TotalPrice),
		Currency:          o.Currency,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		LineItems:         model.NewJSONB(items),
		Data:              model.JSON(raw),
		CreatedAt:         utc(o.CreatedAt),
		UpdatedAt:         utc(o.UpdatedAt),
	}
}

// BranchModel maps a location onto the branch mirroring it
func BranchModel(tenantID uint, l *Location) *model.Branch {
	id := l.ID
	return &model.Branch{
		TenantID:          tenantID,
		Name:              l.Name,
		Location:          l.Address(),
		ShopifyLocationID: &id,
	}
}
