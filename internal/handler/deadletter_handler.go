package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/pkg/logger"
	"go.uber.org/zap"
)

const defaultDeadLetterCount = 100

// DeadLetterStore lists and discards dead letters
type DeadLetterStore interface {
	List(ctx context.Context, count int64) ([]ingest.DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// Replayer re-enqueues a dead letter
type Replayer interface {
	Replay(ctx context.Context, id string) (*ingest.Task, error)
}

// DeadLetterHandler serves the admin dead-letter routes
type DeadLetterHandler struct {
	dlq    DeadLetterStore
	replay Replayer
}

// NewDeadLetterHandler creates a dead letter handler
func NewDeadLetterHandler(dlq DeadLetterStore, replay Replayer) *DeadLetterHandler {
	return &DeadLetterHandler{dlq: dlq, replay: replay}
}

// List handles GET /admin/dead-letters?count=
func (h *DeadLetterHandler) List(c echo.Context) error {
	count, err := queryInt(c, "count", defaultDeadLetterCount)
	if err != nil {
		return err
	}
	entries, err := h.dlq.List(c.Request().Context(), int64(count))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, entries)
}

// Replay handles POST /admin/dead-letters/:id/replay
func (h *DeadLetterHandler) Replay(c echo.Context) error {
	id := c.Param("id")
	task, err := h.replay.Replay(c.Request().Context(), id)
	if err != nil {
		return err
	}
	logger.FromEcho(c).Info("Dead letter replayed",
		zap.String("dead_letter_id", id), zap.String("task_id", task.ID), zap.String("topic", task.Topic))
	return c.JSON(http.StatusAccepted, task)
}

// Delete handles DELETE /admin/dead-letters/:id
func (h *DeadLetterHandler) Delete(c echo.Context) error {
	if err := h.dlq.Delete(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
