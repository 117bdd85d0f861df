package model

import "time"

// LineItem is one ordered product line
type LineItem struct {
	ProductID *int64  `json:"product_id"`
	Title     string  `json:"title"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order references its customer by platform id only; there is no foreign key.
type Order struct {
	ID                uint              `json:"id" gorm:"primaryKey"`
	TenantID          uint              `json:"tenant_id" gorm:"not null"`
	BranchID          *uint             `json:"branch_id,omitempty"`
	ShopifyOrderID    int64             `json:"shopify_order_id" gorm:"not null"`
	CustomerShopifyID *int64            `json:"customer_shopify_id,omitempty"`
	TotalPrice        float64           `json:"total_price"`
	Currency          string            `json:"currency"`
	FinancialStatus   string            `json:"financial_status"`
	FulfillmentStatus string            `json:"fulfillment_status"`
	LineItems         JSONB[[]LineItem] `json:"line_items" gorm:"type:jsonb"`
	Data              JSON              `json:"data,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

func (Order) TableName() string { return "orders" }
