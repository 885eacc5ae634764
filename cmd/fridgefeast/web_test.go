package main

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fridgefeast/internal/favorites"
	"fridgefeast/internal/session"
)

type wsClient struct {
	t    *testing.T
	conn net.Conn
	rw   io.ReadWriter
}

func dial(t *testing.T, server *httptest.Server, query string) *wsClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session" + query
	conn, br, _, err := ws.Dial(t.Context(), url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	var r io.Reader = conn
	if br != nil {
		r = io.MultiReader(br, conn)
	}
	return &wsClient{t: t, conn: conn, rw: struct {
		io.Reader
		io.Writer
	}{r, conn}}
}

func (c *wsClient) send(cmd command) {
	c.t.Helper()
	data, err := json.Marshal(cmd)
	require.NoError(c.t, err)
	require.NoError(c.t, wsutil.WriteClientText(c.conn, data))
}

// until reads frames until one satisfies ok, failing on error frames.
func (c *wsClient) until(ok func(session.Snapshot) bool) session.Snapshot {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		data, err := wsutil.ReadServerText(c.rw)
		require.NoError(c.t, err)
		var frame errorFrame
		require.NoError(c.t, json.Unmarshal(data, &frame))
		require.Empty(c.t, frame.Error)

		var snap session.Snapshot
		require.NoError(c.t, json.Unmarshal(data, &snap))
		if ok(snap) {
			return snap
		}
	}
}

func newTestServer(t *testing.T) (*app, *httptest.Server) {
	t.Helper()
	a := testApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	sessions := newSessionServer(ctx, a)
	server := httptest.NewServer(routes(a, sessions))
	t.Cleanup(func() {
		cancel()
		server.Close()
		sessions.wait()
	})
	return a, server
}

func TestSessionOverWebsocket(t *testing.T) {
	a, server := newTestServer(t)
	client := dial(t, server, "?client=kitchen-1")

	first := client.until(func(s session.Snapshot) bool { return true })
	assert.Equal(t, session.ViewInitial, first.View)
	assert.NotEmpty(t, first.ID)

	client.send(command{Action: "search", Ingredients: "chicken, rice"})
	s := client.until(func(s session.Snapshot) bool { return s.View == session.ViewSuggestionsLoaded })
	require.Len(t, s.Suggestions, 4)

	client.send(command{Action: "select", Name: s.Suggestions[1]})
	s = client.until(func(s session.Snapshot) bool { return s.View == session.ViewRecipeLoaded })
	assert.Equal(t, "Chicken Soup", s.Recipe.Title)

	client.send(command{Action: "favorite"})
	client.until(func(s session.Snapshot) bool { return s.IsFavorite })

	client.send(command{Action: "shop"})
	s = client.until(func(s session.Snapshot) bool { return s.ShoppingList != nil })
	assert.Contains(t, s.ShoppingList.Missing, "2 cloves garlic")

	saved := favorites.NewStore(a.cache, "clients/kitchen-1/favorites.json").Load(context.Background())
	require.Len(t, saved, 1)
	assert.Equal(t, "Chicken Soup", saved[0].Title)
}

func TestWebsocketRejectsBadCommands(t *testing.T) {
	_, server := newTestServer(t)
	client := dial(t, server, "")
	client.until(func(session.Snapshot) bool { return true })

	require.NoError(t, wsutil.WriteClientText(client.conn, []byte("{not json")))
	data, err := wsutil.ReadServerText(client.rw)
	require.NoError(t, err)
	assert.JSONEq(t, `{"error":"malformed command"}`, string(data))

	client.send(command{Action: "shop"})
	data, err = wsutil.ReadServerText(client.rw)
	require.NoError(t, err)
	assert.Contains(t, string(data), "action not allowed")
}

func TestSessionRejectsBadClientID(t *testing.T) {
	_, server := newTestServer(t)
	resp, err := http.Get(server.URL + "/session?client=../../etc")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadyAndMetrics(t *testing.T) {
	_, server := newTestServer(t)
	for _, path := range []string{"/ready", "/metrics"} {
		resp, err := http.Get(server.URL + path)
		require.NoError(t, err)
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
		assert.NotEmpty(t, body)
	}
}

func TestFavoritesKey(t *testing.T) {
	key, err := favoritesKey("favorites.json", "")
	require.NoError(t, err)
	assert.Equal(t, "favorites.json", key)

	key, err = favoritesKey("favorites.json", "abc_1")
	require.NoError(t, err)
	assert.Equal(t, "clients/abc_1/favorites.json", key)

	_, err = favoritesKey("favorites.json", "a/b")
	require.Error(t, err)
}
