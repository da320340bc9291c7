package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	router "github.com/dkeye/videochat/internal/adapters/http"
	"github.com/dkeye/videochat/internal/app"
	"github.com/dkeye/videochat/internal/app/orch"
	"github.com/dkeye/videochat/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Mode:         "test",
		Port:         4000,
		LogLevel:     "info",
		StaticPath:   "./web",
		ReadLimit:    65536,
		PingPeriod:   time.Second,
		PongWait:     2 * time.Second,
		WriteWait:    time.Second,
		SendBuffer:   16,
		Secret:       "test-secret",
		SlowConsumer: "skip",
		ICEServers: []config.ICEServer{
			{URLs: []string{"stun:stun.example.org:3478"}},
		},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	reg := app.NewRegistry()
	stats := app.NewStats()
	o := orch.New(reg, app.NewBroadcaster(reg, app.SkipPolicy{}, stats), stats)

	ctx, cancel := context.WithCancel(context.Background())
	ts := httptest.NewServer(router.SetupRouter(ctx, testConfig(), o))
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return ts, o
}

func dial(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, c.WriteJSON(v))
}

// readType reads until a message of the given type arrives.
func readType(t *testing.T, c *websocket.Conn, typ string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(t, c.SetReadDeadline(deadline))
		_, data, err := c.ReadMessage()
		require.NoError(t, err, "waiting for %s", typ)
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg["type"] == typ {
			return msg
		}
	}
}

func userIDs(msg map[string]any) []string {
	var out []string
	for _, u := range msg["users"].([]any) {
		out = append(out, u.(map[string]any)["id"].(string))
	}
	return out
}

func TestSignalingCallFlow(t *testing.T) {
	ts, _ := newTestServer(t)
	alice := dial(t, ts, "/")
	bob := dial(t, ts, "/api/ws/signal")

	send(t, alice, map[string]any{"type": "register", "userId": "alice", "name": "Alice"})
	readType(t, alice, "userlist")
	send(t, bob, map[string]any{"type": "register", "userId": "bob", "name": "Bob"})
	list := readType(t, alice, "userlist")
	assert.Equal(t, []string{"alice", "bob"}, userIDs(list))
	readType(t, bob, "userlist")

	send(t, alice, map[string]any{"type": "offer", "to": "bob", "sdp": map[string]any{"type": "offer", "sdp": "v=0"}})
	offer := readType(t, bob, "offer")
	assert.Equal(t, "alice", offer["from"])
	assert.Equal(t, map[string]any{"type": "offer", "sdp": "v=0"}, offer["sdp"])

	send(t, bob, map[string]any{"type": "answer", "to": "alice", "sdp": map[string]any{"type": "answer", "sdp": "v=0"}})
	answer := readType(t, alice, "answer")
	assert.Equal(t, "bob", answer["from"])

	send(t, bob, map[string]any{"type": "ice-candidate", "to": "alice", "candidate": map[string]any{"candidate": "c1"}})
	cand := readType(t, alice, "ice-candidate")
	assert.Equal(t, map[string]any{"candidate": "c1"}, cand["candidate"])

	send(t, alice, map[string]any{"type": "chat", "to": "bob", "message": "hi"})
	chat := readType(t, bob, "chat")
	assert.Equal(t, "Alice", chat["fromName"])
	assert.Equal(t, "hi", chat["message"])

	send(t, alice, map[string]any{"type": "end-call", "to": "bob"})
	ended := readType(t, bob, "call-ended")
	assert.Equal(t, "alice", ended["from"])
	list = readType(t, bob, "userlist")
	for _, u := range list["users"].([]any) {
		assert.Equal(t, false, u.(map[string]any)["busy"])
	}
}

func TestSignalingBusyAndDisconnect(t *testing.T) {
	ts, o := newTestServer(t)
	a, b, c := dial(t, ts, "/"), dial(t, ts, "/"), dial(t, ts, "/")
	send(t, a, map[string]any{"type": "register", "userId": "a"})
	readType(t, a, "userlist")
	send(t, b, map[string]any{"type": "register", "userId": "b"})
	readType(t, b, "userlist")
	send(t, c, map[string]any{"type": "register", "userId": "c"})
	readType(t, c, "userlist")
	require.Equal(t, 3, o.Registry.Len())

	send(t, a, map[string]any{"type": "offer", "to": "b", "sdp": "x"})
	readType(t, b, "offer")

	send(t, c, map[string]any{"type": "offer", "to": "b", "sdp": "y"})
	busy := readType(t, c, "busy")
	assert.Equal(t, "b", busy["userId"])

	require.NoError(t, a.Close())
	require.Eventually(t, func() bool { return o.Registry.Len() == 2 }, 3*time.Second, 10*time.Millisecond)

	// Skip userlists queued before the disconnect; they all still contain a.
	list := readType(t, b, "userlist")
	for slices.Contains(userIDs(list), "a") {
		list = readType(t, b, "userlist")
	}
	assert.Equal(t, []string{"b", "c"}, userIDs(list))
	for _, u := range list["users"].([]any) {
		if u.(map[string]any)["id"] == "b" {
			assert.Equal(t, true, u.(map[string]any)["busy"], "b stays busy after its partner vanished")
		}
	}
}

func TestMalformedFrameKeepsConnection(t *testing.T) {
	ts, o := newTestServer(t)
	a := dial(t, ts, "/")

	require.NoError(t, a.WriteMessage(websocket.TextMessage, []byte("not json")))
	send(t, a, map[string]any{"type": "register", "userId": 5})
	list := readType(t, a, "userlist")
	assert.Equal(t, []string{"5"}, userIDs(list))
	assert.EqualValues(t, 1, o.Stats.Dropped.Load())
}

func TestHTTPEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	a := dial(t, ts, "/")
	send(t, a, map[string]any{"type": "register", "userId": "a", "name": "Ann", "flag": "it"})
	readType(t, a, "userlist")

	get := func(path string) map[string]any {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode, path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	assert.Equal(t, "ok", get("/healthz")["status"])

	users := get("/api/users")["users"].([]any)
	require.Len(t, users, 1)
	assert.Equal(t, map[string]any{"id": "a", "name": "Ann", "avatar": "", "flag": "it", "busy": false}, users[0])

	ice := get("/api/ice")["iceServers"].([]any)
	require.Len(t, ice, 1)
	assert.Equal(t, []any{"stun:stun.example.org:3478"}, ice[0].(map[string]any)["urls"])

	stats := get("/api/stats")
	assert.EqualValues(t, 1, stats["registered_users"])
	assert.EqualValues(t, 1, stats["active_connections"])
}

func TestOriginAllowlist(t *testing.T) {
	reg := app.NewRegistry()
	stats := app.NewStats()
	o := orch.New(reg, app.NewBroadcaster(reg, nil, stats), stats)
	cfg := testConfig()
	cfg.AllowedOrigins = []string{"https://call.example.com/"}
	ts := httptest.NewServer(router.SetupRouter(context.Background(), cfg, o))
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://evil.example.com"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c, _, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"https://Call.example.com"}})
	require.NoError(t, err)
	_ = c.Close()
}
