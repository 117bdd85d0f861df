package model

import "time"

// Customer is a store customer, unique per tenant by its platform id
type Customer struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	TenantID          uint      `json:"tenant_id" gorm:"not null"`
	BranchID          *uint     `json:"branch_id,omitempty"`
	ShopifyCustomerID int64     `json:"shopify_customer_id" gorm:"not null"`
	FirstName         string    `json:"first_name"`
	LastName          string    `json:"last_name"`
	Email             string    `json:"email"`
	Phone             string    `json:"phone"`
	OrdersCount       int       `json:"orders_count"`
	TotalSpent        float64   `json:"total_spent"`
	Data              JSON      `json:"data,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customers" }
