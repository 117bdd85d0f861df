package model

import "time"

// Event types written by ingestion and sync
const (
	EventCustomerDeleted   = "customer_deleted"
	EventProductDeleted    = "product_deleted"
	EventOrderCancelled    = "order_cancelled"
	EventOrderFulfilled    = "order_fulfilled"
	EventCheckoutStarted   = "checkout_started"
	EventCheckoutAbandoned = "checkout_abandoned"
	EventSyncCompleted     = "sync_completed"
)

// CustomEvent is an append-only audit record
type CustomEvent struct {
	ID                uint      `json:"id" gorm:"primaryKey"`
	TenantID          uint      `json:"tenant_id" gorm:"not null"`
	BranchID          *uint     `json:"branch_id,omitempty"`
	EventType         string    `json:"event_type" gorm:"not null"`
	ShopifyResourceID *int64    `json:"shopify_resource_id,omitempty"`
	Payload           JSON      `json:"payload,omitempty" gorm:"type:jsonb"`
	CreatedAt         time.Time `json:"created_at"`
}

func (CustomEvent) TableName() string { return "custom_events" }
