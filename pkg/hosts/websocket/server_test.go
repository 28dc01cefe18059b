package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sipeed/dispatchkit/pkg/command"
	"github.com/sipeed/dispatchkit/pkg/config"
	"github.com/sipeed/dispatchkit/pkg/engine"
	"github.com/sipeed/dispatchkit/pkg/permission"
)

func newServer(t *testing.T, anonymous bool) (*Server, string) {
	t.Helper()
	e := engine.New()
	ctx := context.Background()
	_, err := e.Register(ctx, command.Named("greet", "Say hello").
		Argument(command.NewArgument("name", "who", command.String)).
		Action("say", 0, func(_ context.Context, c permission.Commander, args command.Args) (any, error) {
			return c.Name() + " greets " + command.Get[string](args, "name"), nil
		}))
	require.NoError(t, err)
	_, err = e.Register(ctx, command.Named("stop", "Stop the server").
		Requires(permission.Operator()).
		Action("stop", 0, func(context.Context, permission.Commander, command.Args) (any, error) {
			return "stopping", nil
		}))
	require.NoError(t, err)

	cfg := config.DefaultConfig().WebSocket
	cfg.AllowAnonymous = anonymous
	cfg.Users = []config.UserConfig{{Name: "alice", Token: "secret", Operator: true}}

	srv := New(e, cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
	})
	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req Request) Response {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	return resp
}

func TestServer_TokenUserDispatches(t *testing.T) {
	_, url := newServer(t, false)
	conn := dial(t, url+"?token=secret")

	resp := roundTrip(t, conn, Request{ID: "1", Line: "greet World"})
	assert.Equal(t, TypeReply, resp.Type)
	assert.Equal(t, "1", resp.ID)
	assert.True(t, resp.OK)
	require.Len(t, resp.Lines, 1)
	assert.Equal(t, "alice greets World", resp.Lines[0].Text)

	resp = roundTrip(t, conn, Request{ID: "2", Line: "stop"})
	assert.True(t, resp.OK)
	assert.Equal(t, "stopping", resp.Lines[0].Text)
}

func TestServer_BearerHeader(t *testing.T) {
	_, url := newServer(t, false)
	conn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer secret"}})
	require.NoError(t, err)
	defer conn.Close()

	resp := roundTrip(t, conn, Request{ID: "1", Line: "greet Bob"})
	assert.Equal(t, "alice greets Bob", resp.Lines[0].Text)
}

func TestServer_RejectsUnknownToken(t *testing.T) {
	_, url := newServer(t, false)

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=wrong", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServer_AnonymousIsNotOperator(t *testing.T) {
	_, url := newServer(t, true)
	conn := dial(t, url)

	resp := roundTrip(t, conn, Request{ID: "a", Line: "stop"})
	assert.False(t, resp.OK)
	require.Len(t, resp.Lines, 1)
	assert.Contains(t, resp.Lines[0].Text, "permission")

	resp = roundTrip(t, conn, Request{ID: "b", Line: "greet You"})
	assert.True(t, resp.OK)
	assert.True(t, strings.HasPrefix(resp.Lines[0].Text, "guest-"))
}

func TestServer_InvalidJSON(t *testing.T) {
	_, url := newServer(t, false)
	conn := dial(t, url+"?token=secret")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeError, resp.Type)
	assert.False(t, resp.OK)
}

func TestServer_Announce(t *testing.T) {
	srv, url := newServer(t, false)
	conn := dial(t, url+"?token=secret")
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.Announce("Steve was banned by alice")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var resp Response
	require.NoError(t, conn.ReadJSON(&resp))
	assert.Equal(t, TypeAnnounce, resp.Type)
	assert.Equal(t, "Steve was banned by alice", resp.Lines[0].Text)
}

func TestReply(t *testing.T) {
	resp := reply("x", nil)
	assert.True(t, resp.OK)
	assert.Empty(t, resp.Lines)
}
