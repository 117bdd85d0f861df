// Package ingest verifies, decodes and applies platform webhooks through a retrying task queue.
package ingest

import (
	"encoding/json"
	"time"
)

// Task is one accepted webhook waiting to be applied
type Task struct {
	ID         string          `json:"id"`
	TenantID   uint            `json:"tenant_id"`
	Topic      string          `json:"topic"`
	ShopDomain string          `json:"shop_domain,omitempty"`
	WebhookID  string          `json:"webhook_id,omitempty"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	ReceivedAt time.Time       `json:"received_at"`
}
