package model

import "time"

// Product is a catalog item, unique per tenant by its platform id
type Product struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	TenantID         uint      `json:"tenant_id" gorm:"not null"`
	BranchID         *uint     `json:"branch_id,omitempty"`
	ShopifyProductID int64     `json:"shopify_product_id" gorm:"not null"`
	Title            string    `json:"title"`
	Vendor           string    `json:"vendor"`
	ProductType      string    `json:"product_type"`
	Price            float64   `json:"price"`
	Inventory        int       `json:"inventory"`
	Data             JSON      `json:"data,omitempty" gorm:"type:jsonb"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (Product) TableName() string { return "products" }
