package repository

import (
	"context"
	"time"

	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/prometheus"
	"gorm.io/gorm/clause"
)

const maxEventLimit = 200

// EventFilter narrows the custom event feed
type EventFilter struct {
	EventType string
	Limit     int
}

func isCheckoutEvent(eventType string) bool {
	return eventType == model.EventCheckoutStarted || eventType == model.EventCheckoutAbandoned
}

// AppendEvent writes an audit record and reports whether it was stored.
// Checkout events are recorded at most once per checkout; repeats are skipped.
func (s *Store) AppendEvent(ctx context.Context, event *model.CustomEvent) (bool, error) {
	defer prometheus.TrackDBOperation("event_append")(time.Now())

	q := s.db.WithContext(ctx)
	if isCheckoutEvent(event.EventType) && event.ShopifyResourceID != nil {
		q = q.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "tenant_id"}, {Name: "event_type"}, {Name: "shopify_resource_id"}},
			TargetWhere: clause.Where{Exprs: []clause.Expression{
				clause.Expr{SQL: "event_type IN ('checkout_started', 'checkout_abandoned')"},
			}},
			DoNothing: true,
		})
	}

	res := q.Create(event)
	if res.Error != nil {
		return false, storageErr(res.Error)
	}
	return res.RowsAffected > 0, nil
}

// HasEvent reports whether an event of the given type exists for a resource
func (s *Store) HasEvent(ctx context.Context, tenantID uint, eventType string, resourceID int64) (bool, error) {
	defer prometheus.TrackDBOperation("event_exists")(time.Now())

	var count int64
	err := s.db.WithContext(ctx).Model(&model.CustomEvent{}).
		Where("tenant_id = ? AND event_type = ? AND shopify_resource_id = ?", tenantID, eventType, resourceID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, storageErr(err)
	}
	return count > 0, nil
}

// ListEvents returns a tenant's events, newest first
func (s *Store) ListEvents(ctx context.Context, tenantID uint, filter EventFilter) ([]model.CustomEvent, error) {
	defer prometheus.TrackDBOperation("event_list")(time.Now())

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > maxEventLimit {
		limit = maxEventLimit
	}

	q := s.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}

	var events []model.CustomEvent
	if err := q.Order("created_at DESC, id DESC").Limit(limit).Find(&events).Error; err != nil {
		return nil, storageErr(err)
	}
	return events, nil
}
