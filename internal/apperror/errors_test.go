package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindStatus(t *testing.T) {
	cases := map[Kind]int{
		KindValidation:     http.StatusBadRequest,
		KindAuthentication: http.StatusUnauthorized,
		KindAuthorization:  http.StatusForbidden,
		KindNotFound:       http.StatusNotFound,
		KindConflict:       http.StatusConflict,
		KindUnavailable:    http.StatusServiceUnavailable,
		KindStorage:        http.StatusInternalServerError,
		KindUpstream:       http.StatusBadGateway,
		KindInternal:       http.StatusInternalServerError,
	}
	for kind, status := range cases {
		assert.Equal(t, status, kind.Status(), kind.String())
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("lookup: %w", NotFound("tenant not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrStorage))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
}

func TestStorageKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage(cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal server error", err.Message)
}

func render(t *testing.T, err error) (int, map[string]string) {
	t.Helper()
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	HTTPErrorHandler()(err, c)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHTTPErrorHandler(t *testing.T) {
	code, body := render(t, Validation("name is required"))
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "name is required", body["error"])

	code, body = render(t, Storage(errors.New("pq: relation does not exist")))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "internal server error", body["error"], "storage details never leak")

	code, body = render(t, echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"))
	assert.Equal(t, http.StatusMethodNotAllowed, code)
	assert.Equal(t, "method not allowed", body["error"])

	code, _ = render(t, errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, code)

	code, _ = render(t, Upstream("shopify unavailable", errors.New("503")))
	assert.Equal(t, http.StatusBadGateway, code)
}
