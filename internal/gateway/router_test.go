package gateway

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"messaging-platform/internal/calls"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
)

type routerFixture struct {
	registry *Registry
	router   *Router
	messages *messaging.Service
	msgRepo  *messaging.MemoryRepo
	calls    *calls.Service
	presence *presence.Service
	now      time.Time
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	msgRepo := messaging.NewMemoryRepo()
	registry := NewRegistry(16, testLogger())
	messages := messaging.NewService(msgRepo).WithClock(clock)
	callSvc := calls.NewService(calls.NewMemoryRepo()).WithClock(clock)
	presenceSvc := presence.NewService(presence.NewMemoryRepo()).WithClock(clock)

	router := NewRouter(registry, messages, callSvc, presenceSvc, testLogger()).WithClock(clock)
	return &routerFixture{
		registry: registry,
		router:   router,
		messages: messages,
		msgRepo:  msgRepo,
		calls:    callSvc,
		presence: presenceSvc,
		now:      now,
	}
}

func mustFrame(t *testing.T, kind string, payload any) []byte {
	t.Helper()
	frame, err := Encode(kind, payload)
	if err != nil {
		t.Fatalf("encode %s: %v", kind, err)
	}
	return frame
}

// drainOne pops the next queued frame for a client and decodes the envelope.
func drainOne(t *testing.T, c *Client) Envelope {
	t.Helper()
	select {
	case frame := <-c.Outbound:
		var env Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			t.Fatalf("decode envelope: %v", err)
		}
		return env
	default:
		t.Fatalf("expected a queued frame for %s", c.Identity)
		return Envelope{}
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	if n := len(c.Outbound); n != 0 {
		t.Fatalf("expected no frames for %s, found %d", c.Identity, n)
	}
}

func TestDispatch_MessageEchoesAndForwards(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindMessage, MessagePayload{RecipientID: "bob", MessageType: "text"}))

	echo := drainOne(t, alice)
	if echo.Type != KindMessageResponse {
		t.Fatalf("expected %s echo, got %s", KindMessageResponse, echo.Type)
	}
	fwd := drainOne(t, bob)
	if fwd.Type != KindMessage {
		t.Fatalf("expected %s forward, got %s", KindMessage, fwd.Type)
	}

	var got messaging.Message
	if err := json.Unmarshal(fwd.Payload, &got); err != nil {
		t.Fatalf("decode forwarded message: %v", err)
	}
	if got.SenderID != "alice" || got.RecipientID != "bob" || got.IsRead {
		t.Fatalf("unexpected forwarded record: %+v", got)
	}
	if _, ok := f.msgRepo.Message(got.ID); !ok {
		t.Fatalf("expected message %s persisted", got.ID)
	}
}

func TestDispatch_MessagePersistsWhenRecipientOffline(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindMessage, MessagePayload{RecipientID: "bob", MessageType: "text"}))

	echo := drainOne(t, alice)
	if echo.Type != KindMessageResponse {
		t.Fatalf("expected echo despite offline recipient, got %s", echo.Type)
	}
	var got messaging.Message
	if err := json.Unmarshal(echo.Payload, &got); err != nil {
		t.Fatalf("decode echo: %v", err)
	}
	if _, ok := f.msgRepo.Message(got.ID); !ok {
		t.Fatalf("expected message persisted for offline recipient")
	}
}

func TestDispatch_MalformedFrameKeepsSessionOpen(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")

	f.router.Dispatch(context.Background(), "alice", []byte("{not json"))

	env := drainOne(t, alice)
	if env.Type != KindError {
		t.Fatalf("expected error frame, got %s", env.Type)
	}
	if _, ok := f.registry.Lookup("alice"); !ok {
		t.Fatalf("expected alice still registered after malformed frame")
	}
}

func TestDispatch_UnknownKindSendsError(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")

	f.router.Dispatch(context.Background(), "alice", mustFrame(t, "shrug", struct{}{}))

	env := drainOne(t, alice)
	if env.Type != KindError {
		t.Fatalf("expected error frame, got %s", env.Type)
	}
	var p ErrorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if p.Code != "unknown_kind" {
		t.Fatalf("expected unknown_kind code, got %q", p.Code)
	}
}

func TestDispatch_CallRequestRingsRecipientOnly(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindCallRequest, CallRequestPayload{RecipientID: "bob", CallType: "video"}))

	ring := drainOne(t, bob)
	if ring.Type != KindCallRequestFull {
		t.Fatalf("expected %s, got %s", KindCallRequestFull, ring.Type)
	}
	var call calls.Call
	if err := json.Unmarshal(ring.Payload, &call); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if call.Status != calls.CallStatusPending || call.Type != calls.CallTypeVideo {
		t.Fatalf("unexpected call record: %+v", call)
	}
	assertEmpty(t, alice)
}

func TestDispatch_CallRequestBusyRecipientNotifiesCaller(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	// Occupy bob with a call from carol.
	if _, _, err := f.calls.Start(context.Background(), "carol", "bob", calls.CallTypeAudio); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindCallRequest, CallRequestPayload{RecipientID: "bob", CallType: "audio"}))

	env := drainOne(t, alice)
	if env.Type != KindCallResponseFull {
		t.Fatalf("expected %s, got %s", KindCallResponseFull, env.Type)
	}
	var call calls.Call
	if err := json.Unmarshal(env.Payload, &call); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if call.Status != calls.CallStatusBusy {
		t.Fatalf("expected busy status, got %s", call.Status)
	}
	assertEmpty(t, bob)
}

func TestDispatch_CallResponseAcceptNotifiesCaller(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	_, call, err := f.calls.Start(context.Background(), "alice", "bob", calls.CallTypeAudio)
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}

	f.router.Dispatch(context.Background(), "bob",
		mustFrame(t, KindCallResponse, CallResponsePayload{CallID: call.CallID, Response: "accept"}))

	env := drainOne(t, alice)
	if env.Type != KindCallResponseFull {
		t.Fatalf("expected %s, got %s", KindCallResponseFull, env.Type)
	}
	var got calls.Call
	if err := json.Unmarshal(env.Payload, &got); err != nil {
		t.Fatalf("decode call: %v", err)
	}
	if got.Status != calls.CallStatusAccepted || got.StartedAt == nil {
		t.Fatalf("expected accepted call with started_at, got %+v", got)
	}
	assertEmpty(t, bob)
}

func TestDispatch_CallResponseEndNotifiesBothParties(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	_, call, err := f.calls.Start(context.Background(), "alice", "bob", calls.CallTypeAudio)
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}
	if _, _, err := f.calls.Respond(context.Background(), call.CallID, "bob", calls.ActionAccept); err != nil {
		t.Fatalf("accept call: %v", err)
	}

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindCallResponse, CallResponsePayload{CallID: call.CallID, Response: "end"}))

	for _, c := range []*Client{alice, bob} {
		env := drainOne(t, c)
		if env.Type != KindCallResponseFull {
			t.Fatalf("expected %s for %s, got %s", KindCallResponseFull, c.Identity, env.Type)
		}
		var got calls.Call
		if err := json.Unmarshal(env.Payload, &got); err != nil {
			t.Fatalf("decode call: %v", err)
		}
		if got.Status != calls.CallStatusEnded {
			t.Fatalf("expected ended status for %s, got %s", c.Identity, got.Status)
		}
	}
}

func TestDispatch_UnknownCallIDIsSilentNoop(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindCallResponse, CallResponsePayload{CallID: "nope", Response: "accept"}))

	assertEmpty(t, alice)
}

func TestDispatch_TypingRelaysToCounterpartOnly(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")
	carol := f.registry.Register("carol")

	msg, err := f.messages.Create(context.Background(), "alice", "bob", "text", nil)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindTypingIndicator, TypingPayload{
			ConversationID: msg.ConversationID,
			IsTyping:       true,
			Timestamp:      f.now,
		}))

	env := drainOne(t, bob)
	if env.Type != KindTypingIndicator {
		t.Fatalf("expected typing frame, got %s", env.Type)
	}
	var p TypingPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode typing: %v", err)
	}
	if p.UserID != "alice" || !p.IsTyping {
		t.Fatalf("unexpected typing payload: %+v", p)
	}
	assertEmpty(t, alice)
	assertEmpty(t, carol)
}

func TestDispatch_ReadReceiptHonorsRecipientOnly(t *testing.T) {
	f := newRouterFixture(t)
	f.registry.Register("alice")
	f.registry.Register("bob")

	msg, err := f.messages.Create(context.Background(), "alice", "bob", "text", nil)
	if err != nil {
		t.Fatalf("seed message: %v", err)
	}

	// A receipt from the sender is a no-op.
	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindReadReceipt, ReadReceiptPayload{MessageID: msg.ID}))
	if got, _ := f.msgRepo.Message(msg.ID); got.IsRead {
		t.Fatalf("expected message unread after sender's receipt")
	}

	f.router.Dispatch(context.Background(), "bob",
		mustFrame(t, KindReadReceipt, ReadReceiptPayload{MessageID: msg.ID}))
	got, _ := f.msgRepo.Message(msg.ID)
	if !got.IsRead || got.ReadAt == nil {
		t.Fatalf("expected message read with timestamp, got %+v", got)
	}
}

func TestDispatch_PresenceUpdateBroadcastsToEveryone(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindPresenceUpdate, PresencePayload{Status: "away"}))

	for _, c := range []*Client{alice, bob} {
		env := drainOne(t, c)
		if env.Type != KindPresenceUpdate {
			t.Fatalf("expected presence broadcast for %s, got %s", c.Identity, env.Type)
		}
		var p PresencePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			t.Fatalf("decode presence: %v", err)
		}
		if p.UserID != "alice" || p.Status != "away" {
			t.Fatalf("unexpected presence payload: %+v", p)
		}
	}

	rec, err := f.presence.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get presence: %v", err)
	}
	if rec.Status != presence.StatusAway {
		t.Fatalf("expected away persisted, got %s", rec.Status)
	}
}

func TestDispatch_PresenceUpdateRejectsBogusStatus(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindPresenceUpdate, PresencePayload{Status: "teleporting"}))

	assertEmpty(t, alice)
}

func TestDispatch_HeartbeatRepliesToSenderOnly(t *testing.T) {
	f := newRouterFixture(t)
	alice := f.registry.Register("alice")
	bob := f.registry.Register("bob")

	f.router.Dispatch(context.Background(), "alice",
		mustFrame(t, KindHeartbeat, HeartbeatPayload{Timestamp: f.now}))

	env := drainOne(t, alice)
	if env.Type != KindHeartbeatAck {
		t.Fatalf("expected %s, got %s", KindHeartbeatAck, env.Type)
	}
	var p HeartbeatPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		t.Fatalf("decode heartbeat ack: %v", err)
	}
	if !p.Timestamp.Equal(f.now) {
		t.Fatalf("expected server timestamp %v, got %v", f.now, p.Timestamp)
	}
	assertEmpty(t, bob)
}
