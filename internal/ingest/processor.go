package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/eventbus"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/shopify"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

// EventShopify is the real-time event name for an applied webhook
const EventShopify = "shopify_event"

// ErrTenantNotFound marks a task whose store has no tenant. Such tasks are not retried.
var ErrTenantNotFound = errors.New("tenant not found for webhook")

// ErrCheckoutNotStarted is returned for an abandonment that overtook its checkouts/create.
// It is retryable so the queue's backoff gives the started event time to commit.
var ErrCheckoutNotStarted = errors.New("checkout not started yet")

// checkoutStartWait is how long after receipt an abandonment waits for its started event
const checkoutStartWait = time.Minute

// Store is the persistence the processor writes to
type Store interface {
	UpsertCustomer(ctx context.Context, customer *model.Customer) error
	DeleteCustomer(ctx context.Context, tenantID uint, shopifyID int64) (bool, error)
	UpsertProduct(ctx context.Context, product *model.Product) error
	DeleteProduct(ctx context.Context, tenantID uint, shopifyID int64) (bool, error)
	UpsertOrder(ctx context.Context, order *model.Order) error
	AppendEvent(ctx context.Context, event *model.CustomEvent) (bool, error)
	HasEvent(ctx context.Context, tenantID uint, eventType string, resourceID int64) (bool, error)
}

// TenantResolver finds the tenant of a store domain
type TenantResolver interface {
	ResolveByDomain(ctx context.Context, domain string) (*model.Tenant, error)
}

// Broadcaster pushes an event to one tenant's connected clients
type Broadcaster interface {
	Broadcast(tenantID uint, event string, data interface{})
}

// Notification is the payload of a shopify_event
type Notification struct {
	Topic   string      `json:"topic"`
	Payload interface{} `json:"payload"`
}

// Processor applies decoded webhooks to the store
type Processor struct {
	store       Store
	tenants     TenantResolver
	broadcaster Broadcaster
	publisher   eventbus.Publisher
	now         func() time.Time
}

// NewProcessor creates a processor. A nil broadcaster or publisher is skipped.
func NewProcessor(store Store, tenants TenantResolver, broadcaster Broadcaster, publisher eventbus.Publisher) *Processor {
	if publisher == nil {
		publisher = eventbus.Nop{}
	}
	return &Processor{store: store, tenants: tenants, broadcaster: broadcaster, publisher: publisher, now: time.Now}
}

// Process decodes and applies one task, then notifies the tenant room and the event bus
func (p *Processor) Process(ctx context.Context, task *Task) error {
	if task.TenantID == 0 {
		if err := p.resolveTenant(ctx, task); err != nil {
			return err
		}
	}

	event, err := Decode(task.Topic, task.Payload)
	if err != nil {
		return err
	}

	if err := p.apply(ctx, task, event); err != nil {
		return err
	}

	if p.broadcaster != nil {
		p.broadcaster.Broadcast(task.TenantID, EventShopify, Notification{Topic: task.Topic, Payload: event.Raw()})
	}

	// export failures are counted by the publisher and never fail the task
	_ = p.publisher.Publish(ctx, eventbus.Message{
		TenantID:   task.TenantID,
		Topic:      task.Topic,
		ResourceID: event.ResourceID(),
		OccurredAt: time.Now().UTC(),
		Payload:    event.Raw(),
	})
	return nil
}

func (p *Processor) resolveTenant(ctx context.Context, task *Task) error {
	if p.tenants == nil || task.ShopDomain == "" {
		return ErrTenantNotFound
	}
	tenant, err := p.tenants.ResolveByDomain(ctx, task.ShopDomain)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindNotFound {
			return ErrTenantNotFound
		}
		return err
	}
	task.TenantID = tenant.ID
	return nil
}

func (p *Processor) apply(ctx context.Context, task *Task, event Event) error {
	log := logger.FromContext(ctx)
	tenantID := task.TenantID

	switch e := event.(type) {
	case *CustomerUpserted:
		return p.store.UpsertCustomer(ctx, shopify.CustomerModel(tenantID, &e.Customer, e.Raw()))

	case *CustomerDeleted:
		if _, err := p.store.DeleteCustomer(ctx, tenantID, e.ID); err != nil {
			return err
		}
		return p.appendEvent(ctx, tenantID, model.EventCustomerDeleted, e)

	case *ProductUpserted:
		return p.store.UpsertProduct(ctx, shopify.ProductModel(tenantID, &e.Product, e.Raw()))

	case *ProductDeleted:
		if _, err := p.store.DeleteProduct(ctx, tenantID, e.ID); err != nil {
			return err
		}
		return p.appendEvent(ctx, tenantID, model.EventProductDeleted, e)

	case *OrderUpserted:
		return p.store.UpsertOrder(ctx, shopify.OrderModel(tenantID, &e.Order, e.Raw()))

	case *OrderTransitioned:
		return p.appendEvent(ctx, tenantID, e.EventType, e)

	case *CheckoutStarted:
		return p.appendEvent(ctx, tenantID, model.EventCheckoutStarted, e)

	case *CheckoutUpdated:
		if !e.Checkout.IsAbandoned() {
			return nil
		}
		started, err := p.store.HasEvent(ctx, tenantID, model.EventCheckoutStarted, e.Checkout.ID)
		if err != nil {
			return err
		}
		if !started {
			if !task.ReceivedAt.IsZero() && p.now().Sub(task.ReceivedAt) < checkoutStartWait {
				return fmt.Errorf("%w: checkout %d", ErrCheckoutNotStarted, e.Checkout.ID)
			}
			log.Info("Ignoring abandonment of a checkout that was never started", zap.Int64("checkout_id", e.Checkout.ID))
			return nil
		}
		return p.appendEvent(ctx, tenantID, model.EventCheckoutAbandoned, e)

	case *Unrecognized:
		log.Info("Recording unhandled webhook topic", zap.String("topic", e.Topic()))
		return p.appendEvent(ctx, tenantID, e.Topic(), e)

	default:
		return fmt.Errorf("%w: unsupported event %T", ErrInvalidPayload, event)
	}
}

func (p *Processor) appendEvent(ctx context.Context, tenantID uint, eventType string, e Event) error {
	_, err := p.store.AppendEvent(ctx, &model.CustomEvent{
		TenantID:          tenantID,
		EventType:         eventType,
		ShopifyResourceID: e.ResourceID(),
		Payload:           model.JSON(e.Raw()),
	})
	return err
}
