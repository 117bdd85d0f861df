package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	pageLimit    = 250
	maxRetries   = 3
	maxBodyBytes = 32 << 20
)

var nextLinkPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// Client calls the Admin REST API of one store
type Client struct {
	httpClient  *http.Client
	baseURL     string
	accessToken string
	limiter     *rate.Limiter
	backoffBase time.Duration
	backoffMax  time.Duration
}

// Option customizes a Client
type Option func(*Client)

// WithBaseURL overrides the API root, used to point at a test server
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBackoff sets the retry interval bounds
func WithBackoff(base, maxInterval time.Duration) Option {
	return func(c *Client) {
		c.backoffBase = base
		c.backoffMax = maxInterval
	}
}

// WithRateLimit sets the sustained request rate and burst
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst) }
}

// NewClient creates a client for a store domain
func NewClient(domain, accessToken string, cfg config.ShopifyConfig, opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:     fmt.Sprintf("https://%s/admin/api/%s", domain, cfg.APIVersion),
		accessToken: accessToken,
		limiter:     rate.NewLimiter(rate.Limit(2), 40), // REST Admin leaky bucket
		backoffBase: time.Second,
		backoffMax:  8 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFactory returns a factory that targets each tenant's own store
func NewClientFactory(cfg config.ShopifyConfig, opts ...Option) ClientFactory {
	return func(t *model.Tenant) API {
		return NewClient(t.StoreDomain, t.AccessToken, cfg, opts...)
	}
}

// statusError is a non-success response from the platform
type statusError struct {
	Status int
	Body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("shopify responded %d: %s", e.Status, e.Body)
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

type page struct {
	body []byte
	next string
}

// get fetches one URL, retrying 429 and 5xx responses with exponential backoff
func (c *Client) get(ctx context.Context, rawURL string) (*page, error) {
	log := logger.FromContext(ctx)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.backoffBase
	bo.MaxInterval = c.backoffMax
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	operation := func() (*page, error) {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		req.Header.Set("X-Shopify-Access-Token", c.accessToken)
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			prometheus.RecordUpstream(0)
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, err
		}
		defer resp.Body.Close()
		prometheus.RecordUpstream(resp.StatusCode)

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
		if err != nil {
			return nil, err
		}

		if resp.StatusCode >= 300 {
			statusErr := &statusError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
			if !retryable(resp.StatusCode) {
				return nil, backoff.Permanent(statusErr)
			}
			if secs, ok := retryAfter(resp.Header.Get("Retry-After")); ok {
				log.Warn("Shopify rate limited", zap.String("url", rawURL), zap.Int("retry_after", secs))
				return nil, errors.Join(statusErr, backoff.RetryAfter(secs))
			}
			return nil, statusErr
		}

		return &page{body: body, next: nextLink(resp.Header.Get("Link"))}, nil
	}

	p, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxRetries+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			log.Warn("Retrying Shopify request", zap.String("url", rawURL), zap.Duration("wait", wait), zap.Error(err))
		}),
	)
	if err != nil {
		return nil, apperror.Upstream("shopify request failed", err)
	}
	return p, nil
}

func retryAfter(header string) (int, bool) {
	if header == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(header, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	secs := int(f)
	if float64(secs) < f {
		secs++
	}
	return secs, true
}

func nextLink(header string) string {
	m := nextLinkPattern.FindStringSubmatch(header)
	if len(m) < 2 {
		return ""
	}
	return m[1]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// Record is a decoded resource together with its original document
type Record[T any] struct {
	Value T
	Raw   json.RawMessage
}

// paginate collects every page of a list endpoint. key is the array field of the envelope.
func paginate[T any](ctx context.Context, c *Client, path string, query url.Values, key string) ([]Record[T], error) {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(pageLimit))
	next := c.baseURL + path + "?" + query.Encode()

	var out []Record[T]
	for next != "" {
		p, err := c.get(ctx, next)
		if err != nil {
			return nil, err
		}

		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(p.body, &envelope); err != nil {
			return nil, apperror.Upstream("shopify returned invalid JSON", err)
		}
		var docs []json.RawMessage
		if raw, ok := envelope[key]; ok {
			if err := json.Unmarshal(raw, &docs); err != nil {
				return nil, apperror.Upstream("shopify returned invalid "+key, err)
			}
		}
		for _, doc := range docs {
			rec := Record[T]{Raw: doc}
			if err := json.Unmarshal(doc, &rec.Value); err != nil {
				return nil, apperror.Upstream("shopify returned invalid "+key, err)
			}
			out = append(out, rec)
		}
		next = p.next
	}
	return out, nil
}

// Shop returns the store profile. It doubles as a credential check.
func (c *Client) Shop(ctx context.Context) (*Shop, error) {
	p, err := c.get(ctx, c.baseURL+"/shop.json")
	if err != nil {
		return nil, err
	}
	var envelope struct {
		Shop Shop `json:"shop"`
	}
	if err := json.Unmarshal(p.body, &envelope); err != nil {
		return nil, apperror.Upstream("shopify returned invalid JSON", err)
	}
	return &envelope.Shop, nil
}

// Customers returns every customer of the store
func (c *Client) Customers(ctx context.Context) ([]Record[Customer], error) {
	return paginate[Customer](ctx, c, "/customers.json", nil, "customers")
}

// Products returns every product of the store
func (c *Client) Products(ctx context.Context) ([]Record[Product], error) {
	return paginate[Product](ctx, c, "/products.json", nil, "products")
}

// Orders returns every order of the store regardless of status
func (c *Client) Orders(ctx context.Context) ([]Record[Order], error) {
	return paginate[Order](ctx, c, "/orders.json", url.Values{"status": {"any"}}, "orders")
}

// Locations returns the store's locations
func (c *Client) Locations(ctx context.Context) ([]Record[Location], error) {
	return paginate[Location](ctx, c, "/locations.json", nil, "locations")
}
