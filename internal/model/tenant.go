package model

import "time"

// Tenant is one connected store. Credentials never leave the service in JSON.
type Tenant struct {
	ID                    uint      `json:"tenant_id" gorm:"column:tenant_id;primaryKey"`
	StoreDomain           string    `json:"store_domain" gorm:"uniqueIndex;not null"`
	DisplayName           string    `json:"display_name"`
	AccessToken           string    `json:"-"`
	WebhookSecret         *string   `json:"-"`
	PreviousWebhookSecret *string   `json:"-"`
	CreatedAt             time.Time `json:"created_at"`
}

func (Tenant) TableName() string { return "tenants" }

// WebhookSecrets returns the tenant's accepted secrets, current first
func (t *Tenant) WebhookSecrets() []string {
	var out []string
	if t.WebhookSecret != nil && *t.WebhookSecret != "" {
		out = append(out, *t.WebhookSecret)
	}
	if t.PreviousWebhookSecret != nil && *t.PreviousWebhookSecret != "" {
		out = append(out, *t.PreviousWebhookSecret)
	}
	return out
}
