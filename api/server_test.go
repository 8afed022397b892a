package api

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/arena-relay/game/lobby"
	"github.com/wricardo/arena-relay/game/relay"
)

// MockRelay implements Relay for testing
type MockRelay struct {
	StatusFunc func(ctx context.Context) (relay.Status, error)
	RosterFunc func(ctx context.Context) (relay.Roster, error)
	stopped    int
}

func (m *MockRelay) Status(ctx context.Context) (relay.Status, error) {
	if m.StatusFunc != nil {
		return m.StatusFunc(ctx)
	}
	return relay.Status{Uptime: "0h 0m 1s", MaxPlayers: 100}, nil
}

func (m *MockRelay) Roster(ctx context.Context) (relay.Roster, error) {
	if m.RosterFunc != nil {
		return m.RosterFunc(ctx)
	}
	return relay.Roster{MaxPlayers: 100}, nil
}

func (m *MockRelay) Stop() {
	m.stopped++
}

func serve(s *Server, method, path string, body string, header http.Header) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{})

	rec := serve(s, http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestVersion(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{Name: "Arena Relay", Version: "1.2.3"})

	rec := serve(s, http.MethodGet, "/version", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"name":"Arena Relay","version":"1.2.3"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	mock := &MockRelay{StatusFunc: func(ctx context.Context) (relay.Status, error) {
		return relay.Status{Uptime: "1h 0m 0s", RoomPlayers: 2, ActivePlayers: 4, MaxPlayers: 100, Spawning: true}, nil
	}}
	s := NewServer(mock, Options{})

	rec := serve(s, http.MethodGet, "/api/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var st relay.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "1h 0m 0s", st.Uptime)
	assert.Equal(t, 2, st.RoomPlayers)
	assert.Equal(t, 4, st.ActivePlayers)
	assert.True(t, st.Spawning)
}

func TestStatus_RelayClosed(t *testing.T) {
	mock := &MockRelay{StatusFunc: func(ctx context.Context) (relay.Status, error) {
		return relay.Status{}, relay.ErrServerClosed
	}}
	s := NewServer(mock, Options{})

	rec := serve(s, http.MethodGet, "/api/status", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestPlayers(t *testing.T) {
	mock := &MockRelay{RosterFunc: func(ctx context.Context) (relay.Roster, error) {
		return relay.Roster{Room: []lobby.Member{{ID: "a", Name: "Alice", Ready: true}}, MaxPlayers: 100}, nil
	}}
	s := NewServer(mock, Options{})

	rec := serve(s, http.MethodGet, "/api/players", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var roster relay.Roster
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &roster))
	require.Len(t, roster.Room, 1)
	assert.Equal(t, "Alice", roster.Room[0].Name)
	assert.True(t, roster.Room[0].Ready)
}

func TestShutdown_DisabledWithoutToken(t *testing.T) {
	mock := &MockRelay{}
	s := NewServer(mock, Options{})

	rec := serve(s, http.MethodPost, "/api/shutdown", "", http.Header{"Authorization": {"Bearer anything"}})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, mock.stopped)
}

func TestShutdown_WrongToken(t *testing.T) {
	mock := &MockRelay{}
	s := NewServer(mock, Options{AdminToken: "secret"})

	for _, auth := range []string{"", "Bearer nope", "secret", "Basic secret"} {
		rec := serve(s, http.MethodPost, "/api/shutdown", "", http.Header{"Authorization": {auth}})
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "auth %q", auth)
	}
	assert.Equal(t, 0, mock.stopped)
}

func TestShutdown_StopsRelay(t *testing.T) {
	mock := &MockRelay{}
	s := NewServer(mock, Options{AdminToken: "secret"})

	rec := serve(s, http.MethodPost, "/api/shutdown", `{"reason":"deploy"}`,
		http.Header{"Authorization": {"Bearer secret"}})

	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, 1, mock.stopped)
}

func TestShutdown_RequiresPost(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{AdminToken: "secret"})

	rec := serve(s, http.MethodGet, "/api/shutdown", "", nil)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestQR(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{PublicURL: "wss://arena.example/ws"})

	rec := serve(s, http.MethodGet, "/qr?size=128", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	img, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 128, img.Bounds().Dx())
}

func TestQR_BadSize(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{})

	rec := serve(s, http.MethodGet, "/qr?size=5", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicURL(t *testing.T) {
	s := NewServer(&MockRelay{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "http://arena.local:8080/qr", nil)
	assert.Equal(t, "ws://arena.local:8080/ws", s.publicURL(req))

	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "wss://arena.local:8080/ws", s.publicURL(req))

	s = NewServer(&MockRelay{}, Options{PublicURL: "wss://fixed.example/ws"})
	assert.Equal(t, "wss://fixed.example/ws", s.publicURL(req))
}

func TestMountedHandlers(t *testing.T) {
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })
	mcp := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusAccepted) })
	s := NewServer(&MockRelay{}, Options{WebSocket: ws, MCP: mcp})

	assert.Equal(t, http.StatusTeapot, serve(s, http.MethodGet, "/ws", "", nil).Code)
	assert.Equal(t, http.StatusAccepted, serve(s, http.MethodPost, "/mcp", "{}", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, serve(s, http.MethodGet, "/mcp", "", nil).Code)
}
