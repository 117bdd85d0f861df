package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suteetoe/shopdash/internal/auth"
	"github.com/suteetoe/shopdash/internal/testutil"
	"go.uber.org/zap"
)

// newServer serves the hub with the identity taken from ?tenant= and ?admin=
func newServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID, _ := strconv.Atoi(r.URL.Query().Get("tenant"))
		identity := auth.Identity{UserID: 1, TenantID: uint(tenantID), IsAdmin: r.URL.Query().Get("admin") == "1"}
		_ = hub.ServeWS(w, r, identity)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

type received struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func read(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func send(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": event, "data": data}))
}

func waitRoom(t *testing.T, hub *Hub, tenantID uint, size int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.RoomSize(tenantID) == size }, 2*time.Second, 5*time.Millisecond)
}

func TestBroadcastIsTenantScoped(t *testing.T) {
	hub := NewHub(Options{}, zap.NewNop())
	t.Cleanup(hub.Close)
	srv := newServer(t, hub)

	a := dial(t, srv, "tenant=1")
	b := dial(t, srv, "tenant=2")
	waitRoom(t, hub, 1, 1)
	waitRoom(t, hub, 2, 1)

	hub.Broadcast(2, "shopify_event", map[string]string{"topic": "orders/create"})
	hub.Broadcast(1, "shopify_event", map[string]string{"topic": "customers/create"})

	msgA := read(t, a)
	assert.Equal(t, "shopify_event", msgA.Event)
	assert.JSONEq(t, `{"topic":"customers/create"}`, string(msgA.Data))

	msgB := read(t, b)
	assert.JSONEq(t, `{"topic":"orders/create"}`, string(msgB.Data))
}

func TestJoinTenantRequiresAccess(t *testing.T) {
	hub := NewHub(Options{}, zap.NewNop())
	t.Cleanup(hub.Close)
	srv := newServer(t, hub)

	member := dial(t, srv, "tenant=1")
	waitRoom(t, hub, 1, 1)
	send(t, member, EventJoinTenant, 2)

	reply := read(t, member)
	assert.Equal(t, EventError, reply.Event)
	assert.JSONEq(t, `"forbidden"`, string(reply.Data))
	assert.Equal(t, 0, hub.RoomSize(2))

	admin := dial(t, srv, "tenant=1&admin=1")
	waitRoom(t, hub, 1, 2)
	send(t, admin, EventJoinTenant, "2")
	waitRoom(t, hub, 2, 1)

	hub.Broadcast(2, "shopify_event", "hello")
	assert.JSONEq(t, `"hello"`, string(read(t, admin).Data))
}

func TestLeaveTenant(t *testing.T) {
	hub := NewHub(Options{}, zap.NewNop())
	t.Cleanup(hub.Close)
	srv := newServer(t, hub)

	conn := dial(t, srv, "tenant=3")
	waitRoom(t, hub, 3, 1)
	send(t, conn, EventLeaveTenant, 3)
	waitRoom(t, hub, 3, 0)
}

func TestDisconnectLeavesRooms(t *testing.T) {
	hub := NewHub(Options{}, zap.NewNop())
	t.Cleanup(hub.Close)
	srv := newServer(t, hub)

	conn := dial(t, srv, "tenant=4")
	waitRoom(t, hub, 4, 1)
	require.NoError(t, conn.Close())
	waitRoom(t, hub, 4, 0)
}

func TestCloseDisconnectsClients(t *testing.T) {
	hub := NewHub(Options{}, zap.NewNop())
	srv := newServer(t, hub)

	conn := dial(t, srv, "tenant=1")
	waitRoom(t, hub, 1, 1)
	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure), "got %v", err)
	assert.Equal(t, 0, hub.RoomSize(1))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"http://localhost:5173"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("")))
	assert.True(t, check(req("http://localhost:5173")))
	assert.False(t, check(req("https://evil.example")))
	assert.True(t, originChecker([]string{"*"})(req("https://any.example")))
}

func TestParseTenantID(t *testing.T) {
	for raw, want := range map[string]uint{`7`: 7, `"7"`: 7, ` 12 `: 12} {
		got, ok := parseTenantID(json.RawMessage(raw))
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}
	for _, raw := range []string{`0`, `"x"`, `-1`, `null`, `{}`} {
		_, ok := parseTenantID(json.RawMessage(raw))
		assert.False(t, ok, raw)
	}
}

func TestRedisBackplaneRelaysAcrossHubs(t *testing.T) {
	rdb := testutil.StartRedis(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewHub(Options{Backplane: NewRedisBackplane(rdb, "test:fanout")}, zap.NewNop())
	receiver := NewHub(Options{Backplane: NewRedisBackplane(rdb, "test:fanout")}, zap.NewNop())
	require.NoError(t, sender.Start(ctx))
	require.NoError(t, receiver.Start(ctx))
	t.Cleanup(sender.Close)
	t.Cleanup(receiver.Close)

	srv := newServer(t, receiver)
	conn := dial(t, srv, "tenant=9")
	waitRoom(t, receiver, 9, 1)

	sender.Broadcast(9, "shopify_event", map[string]int{"id": 1})
	msg := read(t, conn)
	assert.Equal(t, "shopify_event", msg.Event)
	assert.JSONEq(t, `{"id":1}`, string(msg.Data))
}
