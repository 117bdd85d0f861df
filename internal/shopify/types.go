// Package shopify holds the platform payload types, the Admin API client and tenant sync.
package shopify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Money decodes platform amounts sent either as decimal strings or numbers
type Money float64

func (m *Money) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*m = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*m = 0
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q: %w", s, err)
		}
		*m = Money(f)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*m = Money(f)
	return nil
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(m), 'f', 2, 64)), nil
}

// Customer is the customer resource
type Customer struct {
	ID          int64     `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Email       string    `json:"email"`
	Phone       string    `json:"phone"`
	OrdersCount int       `json:"orders_count"`
	TotalSpent  Money     `json:"total_spent"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Variant is a purchasable product variant
type Variant struct {
	ID                int64 `json:"id"`
	Price             Money `json:"price"`
	InventoryQuantity int   `json:"inventory_quantity"`
}

// Product is the product resource
type Product struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Vendor      string    `json:"vendor"`
	ProductType string    `json:"product_type"`
	Variants    []Variant `json:"variants"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FirstVariant returns the variant used for the denormalized price and inventory
func (p *Product) FirstVariant() Variant {
	if len(p.Variants) == 0 {
		return Variant{}
	}
	return p.Variants[0]
}

// CustomerRef is the customer embedded in an order
type CustomerRef struct {
	ID int64 `json:"id"`
}

// LineItem is one order line
type LineItem struct {
	ProductID *int64 `json:"product_id"`
	Title     string `json:"title"`
	Quantity  int    `json:"quantity"`
	Price     Money  `json:"price"`
}

// Order is the order resource
type Order struct {
	ID                int64        `json:"id"`
	Customer          *CustomerRef `json:"customer"`
	TotalPrice        Money        `json:"total_price"`
	Currency          string       `json:"currency"`
	FinancialStatus   string       `json:"financial_status"`
	FulfillmentStatus string       `json:"fulfillment_status"`
	LineItems         []LineItem   `json:"line_items"`
	LocationID        *int64       `json:"location_id"`
	CancelledAt       *time.Time   `json:"cancelled_at"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// CustomerID returns the platform id of the ordering customer, if any
func (o *Order) CustomerID() *int64 {
	if o.Customer == nil || o.Customer.ID == 0 {
		return nil
	}
	id := o.Customer.ID
	return &id
}

// Checkout is the checkout resource
type Checkout struct {
	ID                   int64      `json:"id"`
	Token                string     `json:"token"`
	Email                string     `json:"email"`
	TotalPrice           Money      `json:"total_price"`
	AbandonedCheckoutURL string     `json:"abandoned_checkout_url"`
	CompletedAt          *time.Time `json:"completed_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// IsAbandoned reports whether the checkout has a recovery link and never completed
func (c *Checkout) IsAbandoned() bool {
	return c.AbandonedCheckoutURL != "" && c.CompletedAt == nil
}

// Location is a store location, mirrored as a branch
type Location struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Address1 string `json:"address1"`
	City     string `json:"city"`
	Country  string `json:"country"`
	Active   bool   `json:"active"`
}

// Address renders the location as a single line
func (l *Location) Address() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{l.Address1, l.City, l.Country} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// Shop is the shop resource returned by the connection check
type Shop struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}
