package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/internal/ingest"
	"github.com/suteetoe/shopdash/internal/middleware"
	"github.com/suteetoe/shopdash/internal/model"
	"github.com/suteetoe/shopdash/pkg/config"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// Platform webhook headers
const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderHmac       = "X-Shopify-Hmac-Sha256"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
	HeaderTenantID   = "X-Tenant-ID"
)

// WebhookTenants resolves the tenant a delivery belongs to
type WebhookTenants interface {
	ResolveByID(ctx context.Context, id uint) (*model.Tenant, error)
	ResolveByDomain(ctx context.Context, domain string) (*model.Tenant, error)
}

// Enqueuer accepts tasks for asynchronous processing
type Enqueuer interface {
	Enqueue(task ingest.Task) error
}

// Deduper reports whether a delivery id is new
type Deduper interface {
	FirstDelivery(ctx context.Context, tenantID uint, webhookID string) bool
	Forget(ctx context.Context, tenantID uint, webhookID string)
}

// DeadLetterWriter records tasks that will not be processed
type DeadLetterWriter interface {
	Add(ctx context.Context, entry *ingest.DeadLetter) (string, error)
}

// WebhookHandler verifies and acknowledges platform webhooks
type WebhookHandler struct {
	cfg     config.WebhookConfig
	tenants WebhookTenants
	queue   Enqueuer
	dedupe  Deduper
	dlq     DeadLetterWriter
}

// NewWebhookHandler creates a webhook handler
func NewWebhookHandler(cfg config.WebhookConfig, tenants WebhookTenants, queue Enqueuer, dedupe Deduper, dlq DeadLetterWriter) *WebhookHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	return &WebhookHandler{cfg: cfg, tenants: tenants, queue: queue, dedupe: dedupe, dlq: dlq}
}

// Receive handles POST /webhooks. Processing happens on the ingestion queue after the ack.
func (h *WebhookHandler) Receive(c echo.Context) error {
	req := c.Request()
	ctx := req.Context()
	topic := req.Header.Get(HeaderTopic)
	domain := req.Header.Get(HeaderShopDomain)
	webhookID := req.Header.Get(HeaderWebhookID)
	log := logger.FromEcho(c).With(zap.String("topic", topic), zap.String("shop_domain", domain))

	body, err := io.ReadAll(io.LimitReader(req.Body, h.cfg.MaxBodyBytes+1))
	if err != nil {
		return apperror.Validation("could not read body")
	}
	if int64(len(body)) > h.cfg.MaxBodyBytes {
		prometheus.RecordWebhook(topic, "too_large")
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "payload too large")
	}
	if topic == "" {
		prometheus.RecordWebhook(topic, "invalid")
		return apperror.Validation("missing " + HeaderTopic + " header")
	}

	tenant, err := h.resolveTenant(ctx, req.Header.Get(HeaderTenantID), domain)
	if err != nil {
		prometheus.RecordWebhook(topic, "error")
		return err
	}

	secrets := h.cfg.Secrets
	if tenant != nil {
		secrets = append(tenant.WebhookSecrets(), h.cfg.Secrets...)
	}
	if !ingest.VerifySignature(body, req.Header.Get(HeaderHmac), secrets) {
		log.Warn("Webhook signature rejected", zap.Int("candidates", len(secrets)))
		prometheus.SignatureFailures.Inc()
		prometheus.RecordWebhook(topic, "unauthorized")
		return apperror.Authentication("invalid webhook signature")
	}

	if !json.Valid(body) {
		prometheus.RecordWebhook(topic, "invalid")
		return apperror.Validation("Invalid JSON")
	}

	task := ingest.Task{
		ID:         uuid.New().String(),
		Topic:      topic,
		ShopDomain: domain,
		WebhookID:  webhookID,
		Payload:    json.RawMessage(body),
		ReceivedAt: time.Now().UTC(),
	}

	if tenant == nil {
		_, err := h.dlq.Add(ctx, &ingest.DeadLetter{
			Task:   task,
			Reason: ingest.ReasonTenantNotFound,
			Error:  "no tenant for shop domain " + domain,
		})
		if err != nil {
			log.Error("Failed to dead-letter webhook", zap.Error(err))
		}
		prometheus.RecordWebhook(topic, "dead_lettered")
		return c.String(http.StatusOK, "OK")
	}
	task.TenantID = tenant.ID
	log = log.With(zap.Uint("tenant_id", tenant.ID))

	if !h.dedupe.FirstDelivery(ctx, tenant.ID, webhookID) {
		log.Debug("Duplicate webhook delivery", zap.String("webhook_id", webhookID))
		prometheus.RecordWebhook(topic, "duplicate")
		return c.String(http.StatusOK, "OK")
	}

	if err := h.queue.Enqueue(task); err != nil {
		// the platform retries with the same id
		h.dedupe.Forget(ctx, tenant.ID, webhookID)
		log.Warn("Webhook not enqueued", zap.Error(err))
		prometheus.RecordWebhook(topic, "rejected")
		return err
	}

	prometheus.RecordWebhook(topic, "accepted")
	return c.String(http.StatusOK, "OK")
}

// resolveTenant returns nil without error when no tenant matches
func (h *WebhookHandler) resolveTenant(ctx context.Context, rawID, domain string) (*model.Tenant, error) {
	var (
		tenant *model.Tenant
		err    error
	)
	if rawID != "" {
		id, ok := middleware.ParseTenantID(rawID)
		if !ok {
			return nil, apperror.Validation(HeaderTenantID + " must be a positive integer")
		}
		tenant, err = h.tenants.ResolveByID(ctx, id)
	} else {
		if domain == "" {
			return nil, nil
		}
		tenant, err = h.tenants.ResolveByDomain(ctx, domain)
	}
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperror.Wrap(apperror.KindInternal, "tenant lookup failed", err)
	}
	return tenant, nil
}
