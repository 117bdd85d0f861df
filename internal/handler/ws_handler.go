package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/auth"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// Upgrader serves an authenticated real-time connection
type Upgrader interface {
	ServeWS(w http.ResponseWriter, r *http.Request, identity auth.Identity) error
}

// WSHandler authenticates and upgrades real-time connections
type WSHandler struct {
	hub    Upgrader
	tokens middleware.TokenValidator
}

// NewWSHandler creates a websocket handler
func NewWSHandler(hub Upgrader, tokens middleware.TokenValidator) *WSHandler {
	return &WSHandler{hub: hub, tokens: tokens}
}

// Connect handles GET /ws. Browsers cannot set headers on the upgrade, so ?token= is accepted too.
func (h *WSHandler) Connect(c echo.Context) error {
	log := logger.FromEcho(c)

	token := c.QueryParam("token")
	if token == "" {
		token, _ = middleware.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
	}
	if token == "" {
		prometheus.RecordAuthError("missing_token")
		return apperror.Authentication("missing token")
	}

	claims, err := h.tokens.ValidateToken(token)
	if err != nil {
		log.Warn("Websocket token rejected", zap.Error(err))
		prometheus.RecordAuthError("invalid_token")
		return apperror.Authentication("invalid or expired token")
	}

	// the hub owns the connection from here; upgrade failures are already answered
	if err := h.hub.ServeWS(c.Response(), c.Request(), middleware.IdentityFromClaims(claims)); err != nil {
		log.Debug("Websocket session ended", zap.Error(err))
	}
	return nil
}
