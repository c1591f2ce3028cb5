package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chemviz/dashboard/internal/testutil"
	"github.com/chemviz/dashboard/internal/transport"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialLive(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(env.e)
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	for _, c := range resp.Cookies() {
		if c.Name == DefaultCookieName {
			env.cookie = c
		}
	}
	env.store(t).Wait()

	header := http.Header{}
	header.Set("Cookie", env.cookie.Name+"="+env.cookie.Value)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readUntil reads messages until match accepts one or the deadline passes.
func readUntil(t *testing.T, ws *websocket.Conn, match func(WSMessage) bool) WSMessage {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg WSMessage
		require.NoError(t, ws.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestWebSocket_PushesRenders(t *testing.T) {
	env := newTestEnv(t)
	ws := dialLive(t, env)

	first := readUntil(t, ws, func(m WSMessage) bool { return m.Type == MsgTypeRender })
	assert.Contains(t, first.HTML, `data-testid="empty-state"`)
	assert.NotZero(t, first.Timestamp)

	env.backend.Set(transport.PathLatest, testutil.Raw(http.StatusOK, testutil.DatasetJSON(3, 2, 1, 2, 3, "Pump", 2)))
	env.store(t).LoadLatest(context.Background())

	loaded := readUntil(t, ws, func(m WSMessage) bool {
		return m.Type == MsgTypeRender && strings.Contains(m.HTML, "Reactor-A1")
	})
	assert.Greater(t, loaded.Version, first.Version)
	assert.NotContains(t, loaded.HTML, `data-testid="empty-state"`)
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t)
	ws := dialLive(t, env)

	readUntil(t, ws, func(m WSMessage) bool { return m.Type == MsgTypeRender })
	require.NoError(t, ws.WriteJSON(WSMessage{Type: MsgTypePing}))

	pong := readUntil(t, ws, func(m WSMessage) bool { return m.Type == MsgTypePong })
	assert.NotZero(t, pong.Timestamp)
}

func TestWebSocket_AttachesClient(t *testing.T) {
	env := newTestEnv(t)
	ws := dialLive(t, env)
	readUntil(t, ws, func(m WSMessage) bool { return m.Type == MsgTypeRender })

	// An attached session survives cleanup regardless of age.
	assert.Zero(t, env.mgr.CleanupOldSessions(0))
	assert.Equal(t, 1, env.mgr.Len())
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://dash.local/ws", nil)
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://dash.local")
	assert.True(t, sameOrigin(req))

	req.Header.Set("Origin", "http://evil.example")
	assert.False(t, sameOrigin(req))
}
