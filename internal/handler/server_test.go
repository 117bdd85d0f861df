package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/internal/realtime"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/jwtutil"
	"go.uber.org/zap"
)

const (
	alphaDomain  = "alpha.myshopify.com"
	betaDomain   = "beta.myshopify.com"
	alphaSecret  = "alpha-secret"
	betaSecret   = "beta-secret"
	betaOld      = "beta-old"
	globalSecret = "global-secret"
)

type testAPI struct {
	e       *echo.Echo
	jwt     *jwtutil.JWTUtil
	tenants *fakeTenants
	users   *fakeUsers
	queue   *fakeQueue
	dlq     *ingest.MemoryDeadLetters
	replay  *fakeReplayer
	store   *memStore
	reports *fakeAnalytics
	syncer  *fakeSyncer
	hub     *realtime.Hub
	dbErr   error
}

func strPtr(s string) *string { return &s }

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	a := &testAPI{
		jwt: jwtutil.NewJWTUtil(&jwtutil.JWTConfig{SigningKey: "handler-test", ExpirationHours: 1}),
		tenants: newFakeTenants(
			&model.Tenant{ID: 1, StoreDomain: alphaDomain, AccessToken: "shpat_alpha", WebhookSecret: strPtr(alphaSecret)},
			&model.Tenant{ID: 2, StoreDomain: betaDomain, WebhookSecret: strPtr(betaSecret), PreviousWebhookSecret: strPtr(betaOld)},
		),
		users:   newFakeUsers(),
		queue:   &fakeQueue{},
		dlq:     ingest.NewMemoryDeadLetters(0),
		replay:  &fakeReplayer{},
		store:   newMemStore(),
		reports: &fakeAnalytics{},
		syncer:  &fakeSyncer{},
		hub:     realtime.NewHub(realtime.Options{}, zap.NewNop()),
	}
	t.Cleanup(a.hub.Close)

	webhookCfg := config.WebhookConfig{Secrets: []string{globalSecret}, MaxBodyBytes: 1024, DedupeTTL: time.Hour}

	e := echo.New()
	e.HideBanner = true
	e.Validator = middleware.NewRequestValidator()
	e.HTTPErrorHandler = apperror.HTTPErrorHandler()

	RegisterRoutes(e, Handlers{
		Health:      NewHealthHandler(PingFunc(func(context.Context) error { return a.dbErr })),
		Auth:        NewAuthHandler(a.users, a.tenants, a.jwt),
		Webhook:     NewWebhookHandler(webhookCfg, a.tenants, a.queue, ingest.NewMemoryDeduper(time.Hour), a.dlq),
		WS:          NewWSHandler(a.hub, a.jwt),
		Analytics:   NewAnalyticsHandler(a.reports),
		Insights:    NewInsightsHandler(a.reports),
		Customers:   NewCustomerHandler(a.store),
		Products:    NewProductHandler(a.store),
		Orders:      NewOrderHandler(a.store),
		Branches:    NewBranchHandler(a.store, a.tenants),
		Events:      NewEventHandler(a.store),
		Tenants:     NewTenantHandler(a.tenants, a.syncer),
		DeadLetters: NewDeadLetterHandler(a.dlq, a.replay),
	}, a.jwt)
	a.e = e
	return a
}

func (a *testAPI) token(t *testing.T, tenantID uint, admin bool) string {
	t.Helper()
	tok, err := a.jwt.GenerateToken(tenantID*10, "user@example.com", tenantID, admin)
	require.NoError(t, err)
	return tok
}

func (a *testAPI) do(method, path, body, token string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok","database":"up"}`, rec.Body.String())

	api.dbErr = errors.New("connection refused")
	rec = api.do(http.MethodGet, "/health", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.JSONEq(t, `{"status":"degraded","database":"down"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, path := range []string{"/analytics/overview", "/customers", "/insights/orders", "/events", "/tenants"} {
		rec := api.do(http.MethodGet, path, "", "")
		require.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestAdminRoutesRejectTenantUsers(t *testing.T) {
	api := newTestAPI(t)
	user := api.token(t, 1, false)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/analytics/global-overview"},
		{http.MethodGet, "/tenants"},
		{http.MethodPost, "/tenants"},
		{http.MethodPost, "/tenants/1/sync"},
		{http.MethodGet, "/admin/dead-letters"},
		{http.MethodPost, "/admin/dead-letters/abc/replay"},
		{http.MethodDelete, "/admin/dead-letters/abc"},
	} {
		rec := api.do(route.method, route.path, "", user)
		require.Equal(t, http.StatusForbidden, rec.Code, route.path)
	}
}
