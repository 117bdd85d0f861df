// Package auth carries the caller's resolved identity through a request.
package auth

import (
	"context"

	"github.com/labstack/echo/v4"
)

// Identity is the request-scoped session context produced by token validation
type Identity struct {
	UserID   uint
	Email    string
	TenantID uint
	IsAdmin  bool
}

// CanAccessTenant reports whether the identity may read or write a tenant's data
func (i Identity) CanAccessTenant(tenantID uint) bool {
	return i.IsAdmin || i.TenantID == tenantID
}

type contextKey struct{}

const echoKey = "identity"

// WithIdentity returns a context carrying the identity
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

// FromContext returns the identity stored in ctx
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

// SetEcho stores the identity on both the echo context and the request context
func SetEcho(c echo.Context, id Identity) {
	c.Set(echoKey, id)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// FromEcho returns the identity set by the auth middleware
func FromEcho(c echo.Context) (Identity, bool) {
	id, ok := c.Get(echoKey).(Identity)
	return id, ok
}
