package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/pkg/config"
)

func testClient(url string) *Client {
	return NewClient("ignored.myshopify.com", "shpat_test", config.ShopifyConfig{APIVersion: "2023-10", HTTPTimeout: 5 * time.Second},
		WithBaseURL(url),
		WithBackoff(time.Millisecond, 4*time.Millisecond),
		WithRateLimit(1000, 100))
}

func TestPaginationFollowsNextLink(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "shpat_test", r.Header.Get("X-Shopify-Access-Token"))
		assert.Equal(t, "250", r.URL.Query().Get("limit"))

		if r.URL.Query().Get("page_info") == "" {
			w.Header().Set("Link", fmt.Sprintf(`<%s/customers.json?limit=250&page_info=abc>; rel="next"`, srv.URL))
			fmt.Fprint(w, `{"customers":[{"id":1,"first_name":"Ann","total_spent":"12.50"}]}`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/customers.json?limit=250>; rel="previous"`, srv.URL))
		fmt.Fprint(w, `{"customers":[{"id":2,"first_name":"Bob","total_spent":3}]}`)
	}))
	defer srv.Close()

	customers, err := testClient(srv.URL).Customers(context.Background())
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, int64(1), customers[0].Value.ID)
	assert.Equal(t, Money(12.5), customers[0].Value.TotalSpent)
	assert.Equal(t, "Bob", customers[1].Value.FirstName)
	assert.JSONEq(t, `{"id":2,"first_name":"Bob","total_spent":3}`, string(customers[1].Raw))
}

func TestRetriesServerErrorsThenSucceeds(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		switch n {
		case 1:
			w.WriteHeader(http.StatusServiceUnavailable)
		case 2:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
		default:
			fmt.Fprint(w, `{"shop":{"id":7,"name":"Demo","domain":"demo.example"}}`)
		}
	}))
	defer srv.Close()

	shop, err := testClient(srv.URL).Shop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Demo", shop.Name)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Products(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, apperror.KindUpstream, apperror.KindOf(err))
	assert.Equal(t, int32(maxRetries+1), atomic.LoadInt32(&calls))
}

func TestClientErrorsAreNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Orders(context.Background())
	assert.ErrorIs(t, err, apperror.ErrUpstream)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOrdersRequestAnyStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "any", r.URL.Query().Get("status"))
		fmt.Fprint(w, `{"orders":[]}`)
	}))
	defer srv.Close()

	orders, err := testClient(srv.URL).Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMoneyDecoding(t *testing.T) {
	var v struct {
		A Money `json:"a"`
		B Money `json:"b"`
		C Money `json:"c"`
		D Money `json:"d"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"19.99","b":5,"c":null,"d":""}`), &v))
	assert.Equal(t, Money(19.99), v.A)
	assert.Equal(t, Money(5), v.B)
	assert.Zero(t, v.C)
	assert.Zero(t, v.D)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"abc"}`), &v))
}

func TestCheckoutAbandonment(t *testing.T) {
	done := time.Now()
	assert.True(t, (&Checkout{AbandonedCheckoutURL: "https://x"}).IsAbandoned())
	assert.False(t, (&Checkout{AbandonedCheckoutURL: "https://x", CompletedAt: &done}).IsAbandoned())
	assert.False(t, (&Checkout{}).IsAbandoned())
}

func TestRetryAfterParsing(t *testing.T) {
	secs, ok := retryAfter("2.0")
	assert.True(t, ok)
	assert.Equal(t, 2, secs)

	secs, ok = retryAfter("0.5")
	assert.True(t, ok)
	assert.Equal(t, 1, secs)

	_, ok = retryAfter("")
	assert.False(t, ok)
}
