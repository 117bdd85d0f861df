package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/repository"
)

const defaultEventLimit = 50

// EventStore reads the custom event feed
type EventStore interface {
	ListEvents(ctx context.Context, tenantID uint, filter repository.EventFilter) ([]model.CustomEvent, error)
}

type EventHandler struct {
	store EventStore
}

func NewEventHandler(store EventStore) *EventHandler {
	return &EventHandler{store: store}
}

// List handles GET /events?type=&limit=
func (h *EventHandler) List(c echo.Context) error {
	tenantID, err := callerTenant(c)
	if err != nil {
		return err
	}
	limit, err := queryInt(c, "limit", defaultEventLimit)
	if err != nil {
		return err
	}
	events, err := h.store.ListEvents(c.Request().Context(), tenantID, repository.EventFilter{
		EventType: c.QueryParam("type"),
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, events)
}
