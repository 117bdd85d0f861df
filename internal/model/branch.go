package model

import "time"

// Branch is a physical location used to slice analytics
type Branch struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	TenantID          uint      `json:"tenant_id" gorm:"index;not null"`
	Name              string    `json:"name" gorm:"not null"`
	Location          string    `json:"location"`
	ShopifyLocationID *int64    `json:"shopify_location_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Branch) TableName() string { return "branches" }
