package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"messaging-platform/internal/auth"
	"messaging-platform/internal/config"
	"messaging-platform/internal/presence"
)

type sessionFixture struct {
	*routerFixture
	server  *httptest.Server
	tokens  *auth.Manager
	handler *SessionHandler
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	rf := newRouterFixture(t)
	tokens, err := auth.NewManager(config.AuthConfig{
		JWTSecret:       "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	handler := NewSessionHandler(tokens, rf.registry, rf.router, rf.presence, rf.messages, nil,
		config.GatewayConfig{MaxConnsPerUser: 3, OutboundBuffer: 16}, testLogger())

	r := gin.New()
	r.GET("/ws", handler.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &sessionFixture{routerFixture: rf, server: srv, tokens: tokens, handler: handler}
}

func (f *sessionFixture) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	pair, err := f.tokens.IssuePair(time.Now(), userID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws?token=" + pair.AccessToken
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, frame, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return env
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHandle_RejectsMissingToken(t *testing.T) {
	f := newSessionFixture(t)

	resp, err := http.Get(f.server.URL + "/ws")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
}

func TestHandle_ConnectRegistersAndGoesOnline(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, "alice")

	env := readEnvelope(t, conn)
	if env.Type != KindPresenceUpdate {
		t.Fatalf("expected online broadcast, got %s", env.Type)
	}
	var p PresencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode presence: %v", err)
	}
	if p.UserID != "alice" || p.Status != string(presence.StatusOnline) {
		t.Fatalf("unexpected presence broadcast: %+v", p)
	}

	if _, ok := f.registry.Lookup("alice"); !ok {
		t.Fatalf("expected alice registered after connect")
	}
	rec, err := f.presence.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}
	if rec.Status != presence.StatusOnline {
		t.Fatalf("expected online record, got %s", rec.Status)
	}
}

func TestHandle_SendsPresenceSnapshotOfParticipants(t *testing.T) {
	f := newSessionFixture(t)

	// Alice has a conversation with bob, who is away.
	if _, err := f.messages.Create(context.Background(), "alice", "bob", "text", nil); err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	if _, err := f.presence.Update(context.Background(), "bob", presence.StatusAway); err != nil {
		t.Fatalf("seed presence: %v", err)
	}

	conn := f.dial(t, "alice")

	// First frame is alice's own online broadcast, second the snapshot.
	if env := readEnvelope(t, conn); env.Type != KindPresenceUpdate {
		t.Fatalf("expected online broadcast first, got %s", env.Type)
	}
	env := readEnvelope(t, conn)
	if env.Type != KindPresenceUpdate {
		t.Fatalf("expected snapshot frame, got %s", env.Type)
	}
	var p PresencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if p.UserID != "bob" || p.Status != string(presence.StatusAway) {
		t.Fatalf("expected bob away in snapshot, got %+v", p)
	}
}

func TestHandle_HeartbeatRoundTrip(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, "alice")

	// Skip the online broadcast.
	readEnvelope(t, conn)

	frame, err := Encode(KindHeartbeat, HeartbeatPayload{Timestamp: time.Now().UTC()})
	if err != nil {
		t.Fatalf("encode heartbeat: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		t.Fatalf("write heartbeat: %v", err)
	}

	env := readEnvelope(t, conn)
	if env.Type != KindHeartbeatAck {
		t.Fatalf("expected %s, got %s", KindHeartbeatAck, env.Type)
	}
}

func TestHandle_DisconnectUnregistersAndGoesOffline(t *testing.T) {
	f := newSessionFixture(t)
	conn := f.dial(t, "alice")
	readEnvelope(t, conn)

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	waitFor(t, "alice to unregister", func() bool {
		_, ok := f.registry.Lookup("alice")
		return !ok
	})
	waitFor(t, "alice to go offline", func() bool {
		rec, err := f.presence.Get(context.Background(), "alice")
		return err == nil && rec.Status == presence.StatusOffline
	})
}

func TestHandle_ReconnectEvictsOlderSession(t *testing.T) {
	f := newSessionFixture(t)

	first := f.dial(t, "alice")
	readEnvelope(t, first)
	old, _ := f.registry.Lookup("alice")

	second := f.dial(t, "alice")
	readEnvelope(t, second)

	waitFor(t, "registry to hold the new session", func() bool {
		cur, ok := f.registry.Lookup("alice")
		return ok && cur != old
	})

	// The evicted socket is closed by its write loop; the identity stays
	// registered and online throughout.
	waitFor(t, "old socket to close", func() bool {
		first.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
		_, _, err := first.ReadMessage()
		return err != nil
	})
	if _, ok := f.registry.Lookup("alice"); !ok {
		t.Fatalf("expected alice still registered after eviction")
	}
	rec, err := f.presence.Get(context.Background(), "alice")
	if err != nil || rec.Status != presence.StatusOnline {
		t.Fatalf("expected alice online after reconnect, got %+v err %v", rec, err)
	}
}
