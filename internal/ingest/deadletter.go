package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/suteetoe/shopdash/internal/apperror"
	"github.com/suteetoe/shopdash/pkg/logger"
	"github.com/suteetoe/shopdash/prometheus"
	"go.uber.org/zap"
)

// Reason explains why a task was dead-lettered
type Reason string

const (
	ReasonTenantNotFound Reason = "tenant_not_found"
	ReasonInvalidPayload Reason = "invalid_payload"
	ReasonMaxRetries     Reason = "max_retries_exceeded"
	ReasonShutdown       Reason = "shutdown"
)

const (
	// DefaultDLQStream is the redis stream holding dead letters
	DefaultDLQStream = "shopdash:dlq"
	// DLQMaxLen bounds the stream; the oldest entries are trimmed
	DLQMaxLen = 10000
	// DefaultMemoryCapacity bounds the in-process dead letter ring
	DefaultMemoryCapacity = 1000
)

// ErrDeadLetterNotFound is returned for an unknown dead letter id
var ErrDeadLetterNotFound = apperror.NotFound("dead letter not found")

// DeadLetter is a task that could not be applied
type DeadLetter struct {
	ID        string    `json:"id"`
	Task      Task      `json:"task"`
	Reason    Reason    `json:"reason"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DeadLetterSink stores dead letters for inspection and replay
type DeadLetterSink interface {
	Add(ctx context.Context, entry *DeadLetter) (string, error)
	List(ctx context.Context, count int64) ([]DeadLetter, error)
	Get(ctx context.Context, id string) (*DeadLetter, error)
	Delete(ctx context.Context, id string) error
}

// RedisDeadLetters keeps dead letters in a capped redis stream
type RedisDeadLetters struct {
	rdb        *redis.Client
	streamName string
}

// NewRedisDeadLetters creates a stream backed sink
func NewRedisDeadLetters(rdb *redis.Client, streamName string) *RedisDeadLetters {
	if streamName == "" {
		streamName = DefaultDLQStream
	}
	return &RedisDeadLetters{rdb: rdb, streamName: streamName}
}

// Add appends an entry and returns its stream id
func (d *RedisDeadLetters) Add(ctx context.Context, entry *DeadLetter) (string, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal dead letter: %w", err)
	}

	id, err := d.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: d.streamName,
		MaxLen: DLQMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":      string(data),
			"tenant_id": entry.Task.TenantID,
			"topic":     entry.Task.Topic,
			"reason":    string(entry.Reason),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("add dead letter: %w", err)
	}
	entry.ID = id
	recordDeadLetter(ctx, entry)
	return id, nil
}

// List returns up to count entries, newest first
func (d *RedisDeadLetters) List(ctx context.Context, count int64) ([]DeadLetter, error) {
	if count <= 0 {
		count = 100
	}
	messages, err := d.rdb.XRevRangeN(ctx, d.streamName, "+", "-", count).Result()
	if err != nil {
		return nil, fmt.Errorf("read dead letters: %w", err)
	}

	entries := make([]DeadLetter, 0, len(messages))
	for _, msg := range messages {
		entry, err := decodeStreamEntry(msg)
		if err != nil {
			logger.FromContext(ctx).Warn("Skipping unreadable dead letter", zap.String("id", msg.ID), zap.Error(err))
			continue
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}

// Get returns one entry by stream id
func (d *RedisDeadLetters) Get(ctx context.Context, id string) (*DeadLetter, error) {
	messages, err := d.rdb.XRange(ctx, d.streamName, id, id).Result()
	if err != nil {
		// malformed ids are rejected by redis; treat them as unknown
		if isInvalidStreamID(err) {
			return nil, ErrDeadLetterNotFound
		}
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	if len(messages) == 0 {
		return nil, ErrDeadLetterNotFound
	}
	return decodeStreamEntry(messages[0])
}

// Delete removes one entry
func (d *RedisDeadLetters) Delete(ctx context.Context, id string) error {
	n, err := d.rdb.XDel(ctx, d.streamName, id).Result()
	if err != nil {
		if isInvalidStreamID(err) {
			return ErrDeadLetterNotFound
		}
		return fmt.Errorf("delete dead letter: %w", err)
	}
	if n == 0 {
		return ErrDeadLetterNotFound
	}
	return nil
}

func decodeStreamEntry(msg redis.XMessage) (*DeadLetter, error) {
	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, errors.New("dead letter has no data field")
	}
	var entry DeadLetter
	if err := json.Unmarshal([]byte(data), &entry); err != nil {
		return nil, fmt.Errorf("unmarshal dead letter: %w", err)
	}
	entry.ID = msg.ID
	return &entry, nil
}

func isInvalidStreamID(err error) bool {
	return strings.Contains(err.Error(), "Invalid stream ID")
}

// MemoryDeadLetters keeps the most recent dead letters in process.
// Used when redis is not configured; entries do not survive a restart.
type MemoryDeadLetters struct {
	mu       sync.Mutex
	entries  []DeadLetter
	capacity int
}

// NewMemoryDeadLetters creates a ring holding up to capacity entries
func NewMemoryDeadLetters(capacity int) *MemoryDeadLetters {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryDeadLetters{capacity: capacity}
}

func (m *MemoryDeadLetters) Add(ctx context.Context, entry *DeadLetter) (string, error) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.ID = uuid.New().String()

	m.mu.Lock()
	if len(m.entries) >= m.capacity {
		m.entries = m.entries[1:]
	}
	m.entries = append(m.entries, *entry)
	m.mu.Unlock()

	recordDeadLetter(ctx, entry)
	return entry.ID, nil
}

func (m *MemoryDeadLetters) List(_ context.Context, count int64) ([]DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if count <= 0 {
		count = 100
	}
	out := make([]DeadLetter, 0, min(int(count), len(m.entries)))
	for i := len(m.entries) - 1; i >= 0 && int64(len(out)) < count; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *MemoryDeadLetters) Get(_ context.Context, id string) (*DeadLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			entry := m.entries[i]
			return &entry, nil
		}
	}
	return nil, ErrDeadLetterNotFound
}

func (m *MemoryDeadLetters) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.entries {
		if m.entries[i].ID == id {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}
	return ErrDeadLetterNotFound
}

func recordDeadLetter(ctx context.Context, entry *DeadLetter) {
	prometheus.RecordDeadLetter(string(entry.Reason))
	logger.FromContext(ctx).Warn("Webhook dead-lettered",
		zap.String("dead_letter_id", entry.ID),
		zap.Uint("tenant_id", entry.Task.TenantID),
		zap.String("topic", entry.Task.Topic),
		zap.String("shop_domain", entry.Task.ShopDomain),
		zap.String("reason", string(entry.Reason)),
		zap.String("error", entry.Error),
		zap.Int("attempts", entry.Task.Attempts))
}
