package ingest

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/shopify"
)

// ErrInvalidPayload marks a body that cannot be decoded for its topic. Such tasks are not retried.
var ErrInvalidPayload = errors.New("invalid webhook payload")

// Event is one decoded webhook. The concrete type selects how it is applied.
type Event interface {
	Topic() string
	Raw() json.RawMessage
	ResourceID() *int64
}

type base struct {
	topic string
	raw   json.RawMessage
}

func (b base) Topic() string        { return b.topic }
func (b base) Raw() json.RawMessage { return b.raw }

// CustomerUpserted is customers/create and customers/update
type CustomerUpserted struct {
	base
	Customer shopify.Customer
}

func (e *CustomerUpserted) ResourceID() *int64 { return ptr(e.Customer.ID) }

// CustomerDeleted is customers/delete
type CustomerDeleted struct {
	base
	ID int64
}

func (e *CustomerDeleted) ResourceID() *int64 { return ptr(e.ID) }

// ProductUpserted is products/create and products/update
type ProductUpserted struct {
	base
	Product shopify.Product
}

func (e *ProductUpserted) ResourceID() *int64 { return ptr(e.Product.ID) }

// ProductDeleted is products/delete
type ProductDeleted struct {
	base
	ID int64
}

func (e *ProductDeleted) ResourceID() *int64 { return ptr(e.ID) }

// OrderUpserted is any order topic that carries the full current order
type OrderUpserted struct {
	base
	Order shopify.Order
}

func (e *OrderUpserted) ResourceID() *int64 { return ptr(e.Order.ID) }

// OrderTransitioned records an order lifecycle step without changing the order row
type OrderTransitioned struct {
	base
	ID        int64
	EventType string
}

func (e *OrderTransitioned) ResourceID() *int64 { return ptr(e.ID) }

// CheckoutStarted is checkouts/create
type CheckoutStarted struct {
	base
	Checkout shopify.Checkout
}

func (e *CheckoutStarted) ResourceID() *int64 { return ptr(e.Checkout.ID) }

// CheckoutUpdated is checkouts/update
type CheckoutUpdated struct {
	base
	Checkout shopify.Checkout
}

func (e *CheckoutUpdated) ResourceID() *int64 { return ptr(e.Checkout.ID) }

// Unrecognized is any topic without a dedicated handler. It is kept as an audit record.
type Unrecognized struct {
	base
	ID *int64
}

func (e *Unrecognized) ResourceID() *int64 { return e.ID }

func ptr(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

type idOnly struct {
	ID int64 `json:"id"`
}

// Decode parses a webhook body into the event for its topic
func Decode(topic string, body []byte) (Event, error) {
	b := base{topic: topic, raw: json.RawMessage(body)}

	var (
		ev  Event
		err error
	)
	switch topic {
	case "customers/create", "customers/update":
		e := &CustomerUpserted{base: b}
		err = decodeWithID(body, &e.Customer, func() int64 { return e.Customer.ID })
		ev = e
	case "customers/delete":
		e := &CustomerDeleted{base: b}
		e.ID, err = decodeID(body)
		ev = e
	case "products/create", "products/update":
		e := &ProductUpserted{base: b}
		err = decodeWithID(body, &e.Product, func() int64 { return e.Product.ID })
		ev = e
	case "products/delete":
		e := &ProductDeleted{base: b}
		e.ID, err = decodeID(body)
		ev = e
	case "orders/create", "orders/updated", "orders/paid", "orders/edited":
		e := &OrderUpserted{base: b}
		err = decodeWithID(body, &e.Order, func() int64 { return e.Order.ID })
		ev = e
	case "orders/cancelled", "orders/fulfilled":
		e := &OrderTransitioned{base: b, EventType: model.EventOrderCancelled}
		if topic == "orders/fulfilled" {
			e.EventType = model.EventOrderFulfilled
		}
		e.ID, err = decodeID(body)
		ev = e
	case "checkouts/create":
		e := &CheckoutStarted{base: b}
		err = decodeWithID(body, &e.Checkout, func() int64 { return e.Checkout.ID })
		ev = e
	case "checkouts/update":
		e := &CheckoutUpdated{base: b}
		err = decodeWithID(body, &e.Checkout, func() int64 { return e.Checkout.ID })
		ev = e
	default:
		if !json.Valid(body) {
			return nil, fmt.Errorf("%w: %s: malformed JSON", ErrInvalidPayload, topic)
		}
		e := &Unrecognized{base: b}
		// ids of unknown resources are optional and may not be numeric
		var v idOnly
		if json.Unmarshal(body, &v) == nil {
			e.ID = ptr(v.ID)
		}
		ev = e
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", topic, err)
	}
	return ev, nil
}

func decodeID(body []byte) (int64, error) {
	var v idOnly
	err := decodeWithID(body, &v, func() int64 { return v.ID })
	return v.ID, err
}

func decodeWithID(body []byte, dst interface{}, id func() int64) error {
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if id() == 0 {
		return fmt.Errorf("%w: missing resource id", ErrInvalidPayload)
	}
	return nil
}
