package gateway_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-api/internal/config"
	"github.com/taskhive/taskhive-api/internal/domain"
	"github.com/taskhive/taskhive-api/internal/events"
	"github.com/taskhive/taskhive-api/internal/gateway"
	"github.com/taskhive/taskhive-api/internal/service/auth"
)

type testGateway struct {
	url         string
	bus         *events.MemoryBus
	tokens      auth.JWTService
	broadcaster *events.Broadcaster
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	bus := events.NewMemoryBus()

	tokens, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:          "0123456789abcdef0123456789abcdef",
		TokenLifetimeMins:  15,
		RefreshLifetimeHrs: 24,
	})
	require.NoError(t, err)

	srv, err := gateway.NewServer(bus, tokens, 64, log)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, srv.Start(ctx))

	ts := httptest.NewServer(srv)
	t.Cleanup(func() {
		ts.Close()
		srv.Stop()
		cancel()
	})

	return &testGateway{
		url:         "ws" + strings.TrimPrefix(ts.URL, "http"),
		bus:         bus,
		tokens:      tokens,
		broadcaster: events.NewBroadcaster(bus, log),
	}
}

func (g *testGateway) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(g.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	// Every connection greets with a connection frame.
	frame := readFrame(t, ws)
	require.Equal(t, "connection", frame["type"])
	require.NotEmpty(t, frame["connection_id"])
	return ws
}

// dialAuthenticated dials and completes authentication for the given user.
func (g *testGateway) dialAuthenticated(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	ws := g.dial(t)

	token, err := g.tokens.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	send(t, ws, map[string]any{"type": "authenticate", "user_id": userID.String(), "token": token})
	frame := readFrame(t, ws)
	require.Equal(t, "authenticated", frame["type"])
	require.Equal(t, userID.String(), frame["user_id"])
	return ws
}

func send(t *testing.T, ws *websocket.Conn, msg map[string]any) {
	t.Helper()
	require.NoError(t, ws.WriteJSON(msg))
}

func readFrame(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := ws.ReadMessage()
	require.NoError(t, err)

	var frame map[string]any
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

// expectSilence asserts no frame arrives within the window.
func expectSilence(t *testing.T, ws *websocket.Conn) {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := ws.ReadMessage()
	require.Error(t, err, "expected no frame")
}

func mustTask(t *testing.T, owner uuid.UUID) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(owner, domain.LocaleText{"en": "Watch me"}, nil)
	require.NoError(t, err)
	return task
}

func TestGateway_RejectsMessagesBeforeAuthentication(t *testing.T) {
	g := newTestGateway(t)
	ws := g.dial(t)

	tests := []struct {
		name string
		msg  map[string]any
	}{
		{"subscribe", map[string]any{"type": "subscribe", "channels": []string{events.GlobalChannel}}},
		{"unsubscribe", map[string]any{"type": "unsubscribe", "channels": []string{events.GlobalChannel}}},
		{"ping", map[string]any{"type": "ping"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			send(t, ws, tc.msg)
			frame := readFrame(t, ws)
			assert.Equal(t, "error", frame["type"])
			assert.Equal(t, "authentication required", frame["message"])
		})
	}
}

func TestGateway_AuthenticationFailureAllowsRetry(t *testing.T) {
	g := newTestGateway(t)
	ws := g.dial(t)
	userID := uuid.New()

	send(t, ws, map[string]any{"type": "authenticate", "token": "not-a-token"})
	frame := readFrame(t, ws)
	assert.Equal(t, "error", frame["type"])
	assert.Equal(t, "authentication failed", frame["message"])

	t.Run("mismatched user_id is rejected", func(t *testing.T) {
		token, err := g.tokens.GenerateToken(context.Background(), userID)
		require.NoError(t, err)

		send(t, ws, map[string]any{"type": "authenticate", "user_id": uuid.New().String(), "token": token})
		frame := readFrame(t, ws)
		assert.Equal(t, "error", frame["type"])
	})

	t.Run("connection stays open and a valid retry succeeds", func(t *testing.T) {
		token, err := g.tokens.GenerateToken(context.Background(), userID)
		require.NoError(t, err)

		send(t, ws, map[string]any{"type": "authenticate", "token": token})
		frame := readFrame(t, ws)
		assert.Equal(t, "authenticated", frame["type"])
		assert.Equal(t, userID.String(), frame["user_id"])
	})
}

func TestGateway_PingPong(t *testing.T) {
	g := newTestGateway(t)
	ws := g.dialAuthenticated(t, uuid.New())

	send(t, ws, map[string]any{"type": "ping"})
	frame := readFrame(t, ws)
	assert.Equal(t, "pong", frame["type"])
}

func TestGateway_OnlyConnectionFrameCarriesConnectionID(t *testing.T) {
	g := newTestGateway(t)
	owner := uuid.New()
	ws := g.dialAuthenticated(t, owner)

	send(t, ws, map[string]any{"type": "ping"})
	frame := readFrame(t, ws)
	require.Equal(t, "pong", frame["type"])
	assert.NotContains(t, frame, "connection_id")

	send(t, ws, map[string]any{
		"type":     "subscribe",
		"channels": []string{events.OwnerChannel(owner)},
	})
	frame = readFrame(t, ws)
	require.Equal(t, "subscribed", frame["type"])
	assert.NotContains(t, frame, "connection_id")

	send(t, ws, map[string]any{"type": "bogus"})
	frame = readFrame(t, ws)
	require.Equal(t, "error", frame["type"])
	assert.NotContains(t, frame, "connection_id")
}

func TestGateway_MalformedMessages(t *testing.T) {
	g := newTestGateway(t)
	ws := g.dialAuthenticated(t, uuid.New())

	t.Run("invalid json", func(t *testing.T) {
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("{not json")))
		frame := readFrame(t, ws)
		assert.Equal(t, "error", frame["type"])
		assert.Equal(t, "malformed message", frame["message"])
	})

	t.Run("unknown type", func(t *testing.T) {
		send(t, ws, map[string]any{"type": "shout"})
		frame := readFrame(t, ws)
		assert.Equal(t, "error", frame["type"])
	})

	t.Run("connection still usable", func(t *testing.T) {
		send(t, ws, map[string]any{"type": "ping"})
		frame := readFrame(t, ws)
		assert.Equal(t, "pong", frame["type"])
	})
}

func TestGateway_SubscribedConnectionReceivesExactlyOneFrame(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	userID := uuid.New()

	ws := g.dialAuthenticated(t, userID)
	ownerChannel := events.OwnerChannel(userID)

	send(t, ws, map[string]any{"type": "subscribe", "channels": []string{ownerChannel}})
	frame := readFrame(t, ws)
	require.Equal(t, "subscribed", frame["type"])

	task := mustTask(t, userID)
	g.broadcaster.Publish(ctx, events.KindCreated, task, nil)

	broadcast := readFrame(t, ws)
	assert.Equal(t, "created", broadcast["event"])
	payload, ok := broadcast["task"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, task.ID.String(), payload["id"])
	assert.NotEmpty(t, broadcast["timestamp"])

	// The mutation was also published globally, but this connection is only
	// subscribed to the owner channel: exactly one frame arrives.
	expectSilence(t, ws)
}

func TestGateway_GlobalChannelCarriesAllOwners(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	watcher := g.dialAuthenticated(t, uuid.New())
	send(t, watcher, map[string]any{"type": "subscribe", "channels": []string{events.GlobalChannel}})
	frame := readFrame(t, watcher)
	require.Equal(t, "subscribed", frame["type"])

	task := mustTask(t, uuid.New())
	g.broadcaster.Publish(ctx, events.KindUpdated, task, nil)

	broadcast := readFrame(t, watcher)
	assert.Equal(t, "updated", broadcast["event"])
}

func TestGateway_ForeignOwnerChannelIsRejected(t *testing.T) {
	g := newTestGateway(t)
	ws := g.dialAuthenticated(t, uuid.New())

	send(t, ws, map[string]any{
		"type":     "subscribe",
		"channels": []string{events.OwnerChannel(uuid.New())},
	})
	frame := readFrame(t, ws)
	assert.Equal(t, "error", frame["type"])
	assert.Contains(t, frame["message"], "not available")
}

func TestGateway_UnsubscribeStopsDelivery(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	userID := uuid.New()

	ws := g.dialAuthenticated(t, userID)
	ownerChannel := events.OwnerChannel(userID)

	send(t, ws, map[string]any{"type": "subscribe", "channels": []string{ownerChannel}})
	require.Equal(t, "subscribed", readFrame(t, ws)["type"])

	send(t, ws, map[string]any{"type": "unsubscribe", "channels": []string{ownerChannel}})
	require.Equal(t, "unsubscribed", readFrame(t, ws)["type"])

	g.broadcaster.Publish(ctx, events.KindUpdated, mustTask(t, userID), nil)
	expectSilence(t, ws)
}

func TestGateway_FanOutIsPerSubscriber(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()
	u1 := uuid.New()
	u2 := uuid.New()

	ws1 := g.dialAuthenticated(t, u1)
	send(t, ws1, map[string]any{"type": "subscribe", "channels": []string{events.OwnerChannel(u1)}})
	require.Equal(t, "subscribed", readFrame(t, ws1)["type"])

	ws2 := g.dialAuthenticated(t, u2)
	send(t, ws2, map[string]any{"type": "subscribe", "channels": []string{events.OwnerChannel(u2)}})
	require.Equal(t, "subscribed", readFrame(t, ws2)["type"])

	g.broadcaster.Publish(ctx, events.KindCreated, mustTask(t, u1), nil)

	frame := readFrame(t, ws1)
	assert.Equal(t, "created", frame["event"])
	expectSilence(t, ws2)
}
