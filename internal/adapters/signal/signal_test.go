package signal

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dkeye/Huddle/internal/adapters/store"
	"github.com/dkeye/Huddle/internal/adapters/uploads"
	"github.com/dkeye/Huddle/internal/app"
	"github.com/dkeye/Huddle/internal/app/call"
	"github.com/dkeye/Huddle/internal/app/orch"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, limiter *RateLimiter) (*httptest.Server, *orch.Orchestrator) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "chat.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	up, err := uploads.New(filepath.Join(dir, "uploads"), "/uploads", 1<<20)
	require.NoError(t, err)

	o := &orch.Orchestrator{
		Registry:       app.NewRegistry(),
		Rooms:          app.NewRoomManager(),
		Policy:         app.KickPolicy{},
		Calls:          call.NewRelay(),
		Store:          st,
		Uploads:        up,
		HistoryLimit:   50,
		MaxNameLen:     32,
		MaxUploadBytes: 1 << 20,
	}
	ctl := NewSignalWSController(o, limiter, Options{
		ReadLimit:  1 << 16,
		PingPeriod: time.Second,
		PongWait:   2 * time.Second,
		WriteWait:  time.Second,
		SendBuffer: 16,
	})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("client_token", "client-1")
		ctl.HandleSignal(ctx, c)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, o
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	return ws
}

func readType(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestSignal_JoinOverWebsocket(t *testing.T) {
	srv, o := newTestServer(t, NewRateLimiter(100, 100))
	ws := dial(t, srv)

	assert.Equal(t, "system", readType(t, ws)["type"])

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"dance"}`)))
	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "roomId": "lobby", "name": "alice", "userId": "u1"}))

	joined := readType(t, ws)
	assert.Equal(t, "joined", joined["type"])
	assert.Equal(t, "lobby", joined["roomId"])
	assert.Equal(t, "history", readType(t, ws)["type"])
	assert.Equal(t, "members", readType(t, ws)["type"])
	assert.Equal(t, "alice joined", readType(t, ws)["text"])
	assert.Equal(t, 1, o.Rooms.Count())

	require.NoError(t, ws.Close())
	assert.Eventually(t, func() bool {
		return o.Registry.Count() == 0 && o.Rooms.Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSignal_RateLimitDropsFrames(t *testing.T) {
	srv, o := newTestServer(t, NewRateLimiter(0.001, 1))
	ws := dial(t, srv)
	assert.Equal(t, "system", readType(t, ws)["type"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "roomId": "lobby", "name": "alice"}))
	assert.Equal(t, "joined", readType(t, ws)["type"])

	require.NoError(t, ws.WriteJSON(map[string]any{"type": "join", "roomId": "other", "name": "alice"}))
	require.Never(t, func() bool {
		_, ok := o.Rooms.Get("other")
		return ok
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestRateLimiter_RefCounted(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)
	assert.True(t, rl.Allow("unknown"))

	rl.Acquire("k")
	rl.Acquire("k")
	assert.True(t, rl.Allow("k"))
	assert.True(t, rl.Allow("k"))
	assert.False(t, rl.Allow("k"))

	rl.Release("k")
	assert.Equal(t, 1, rl.Len())
	assert.False(t, rl.Allow("k"))
	rl.Release("k")
	assert.Zero(t, rl.Len())
	rl.Release("k")
	assert.Zero(t, rl.Len())
}
