package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"messaging-platform/internal/calls"
	"messaging-platform/internal/messaging"
	"messaging-platform/internal/presence"
)

// Router decodes inbound frames and dispatches them to the domain services.
// A handler failure is logged and the frame dropped; the session stays open.
// Only the transport layer tears a session down.
type Router struct {
	registry *Registry
	messages *messaging.Service
	calls    *calls.Service
	presence *presence.Service
	logger   *slog.Logger
	clock    func() time.Time
}

func NewRouter(registry *Registry, messages *messaging.Service, callSvc *calls.Service, presenceSvc *presence.Service, logger *slog.Logger) *Router {
	return &Router{
		registry: registry,
		messages: messages,
		calls:    callSvc,
		presence: presenceSvc,
		logger:   logger,
		clock:    time.Now,
	}
}

// WithClock overrides the time source. For tests.
func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// Dispatch handles one inbound frame from identity. It never returns an
// error: every failure mode is logged here so the caller's read loop stays a
// straight line.
func (r *Router) Dispatch(ctx context.Context, identity string, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		r.logger.Warn("malformed frame dropped", "user_id", identity, "error", err)
		r.sendError(identity, "malformed frame", "bad_envelope")
		return
	}

	switch env.Type {
	case KindMessage:
		r.handleMessage(ctx, identity, env.Payload)
	case KindCallRequest:
		r.handleCallRequest(ctx, identity, env.Payload)
	case KindCallResponse:
		r.handleCallResponse(ctx, identity, env.Payload)
	case KindTypingIndicator:
		r.handleTyping(ctx, identity, env.Payload)
	case KindReadReceipt:
		r.handleReadReceipt(ctx, identity, env.Payload)
	case KindPresenceUpdate:
		r.handlePresenceUpdate(ctx, identity, env.Payload)
	case KindHeartbeat:
		r.handleHeartbeat(identity)
	default:
		r.logger.Warn("unknown event kind dropped", "user_id", identity, "kind", env.Type)
		r.sendError(identity, "unknown event kind", "unknown_kind")
	}
}

func (r *Router) handleMessage(ctx context.Context, identity string, raw json.RawMessage) {
	var p MessagePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad message payload", "user_id", identity, "error", err)
		r.sendError(identity, "bad message payload", "bad_payload")
		return
	}

	msg, err := r.messages.Create(ctx, identity, p.RecipientID, p.MessageType, p.SessionID)
	if err != nil {
		r.logger.Error("persist message failed", "user_id", identity, "error", err)
		return
	}

	// Echo the persisted record to the sender, forward the identical record
	// to the recipient if connected. No delivery queue: an offline recipient
	// catches up via the history endpoint.
	if frame, err := Encode(KindMessageResponse, msg); err == nil {
		r.registry.Send(identity, frame)
	}
	if frame, err := Encode(KindMessage, msg); err == nil {
		r.registry.Send(p.RecipientID, frame)
	}
}

func (r *Router) handleCallRequest(ctx context.Context, identity string, raw json.RawMessage) {
	var p CallRequestPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad call_request payload", "user_id", identity, "error", err)
		r.sendError(identity, "bad call_request payload", "bad_payload")
		return
	}

	outcome, call, err := r.calls.Start(ctx, identity, p.RecipientID, calls.CallType(p.CallType))
	if err != nil {
		r.logger.Error("start call failed", "user_id", identity, "error", err)
		return
	}

	switch outcome {
	case calls.OutcomeCreated:
		// Ring the recipient only; the caller learns the call_id from the
		// recipient's eventual response or its own history fetch.
		if frame, err := Encode(KindCallRequestFull, call); err == nil {
			r.registry.Send(call.RecipientID, frame)
		}
	case calls.OutcomeRecipientBusy:
		if frame, err := Encode(KindCallResponseFull, call); err == nil {
			r.registry.Send(call.CallerID, frame)
		}
	case calls.OutcomeCallerBusy:
		// No row, no notification.
		r.logger.Info("call request dropped, caller busy", "user_id", identity)
	}
}

func (r *Router) handleCallResponse(ctx context.Context, identity string, raw json.RawMessage) {
	var p CallResponsePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad call_response payload", "user_id", identity, "error", err)
		r.sendError(identity, "bad call_response payload", "bad_payload")
		return
	}
	action := calls.ResponseAction(p.Response)

	outcome, call, err := r.calls.Respond(ctx, p.CallID, identity, action)
	if err != nil {
		r.logger.Error("call response failed", "user_id", identity, "call_id", p.CallID, "error", err)
		return
	}
	if outcome == calls.RespondNoop {
		return
	}

	frame, err := Encode(KindCallResponseFull, call)
	if err != nil {
		return
	}
	if action == calls.ActionEnd {
		// Both parties see the hangup, whichever side initiated it.
		r.registry.Send(call.CallerID, frame)
		r.registry.Send(call.RecipientID, frame)
		return
	}
	r.registry.Send(call.CallerID, frame)
}

func (r *Router) handleTyping(ctx context.Context, identity string, raw json.RawMessage) {
	var p TypingPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad typing_indicator payload", "user_id", identity, "error", err)
		return
	}
	p.UserID = identity

	// Relay only to the conversation's other member, not the whole registry.
	peer, err := r.messages.Counterpart(ctx, p.ConversationID, identity)
	if err != nil {
		r.logger.Warn("typing relay skipped", "user_id", identity, "conversation_id", p.ConversationID, "error", err)
		return
	}
	if frame, err := Encode(KindTypingIndicator, p); err == nil {
		r.registry.Send(peer, frame)
	}
}

func (r *Router) handleReadReceipt(ctx context.Context, identity string, raw json.RawMessage) {
	var p ReadReceiptPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad read_receipt payload", "user_id", identity, "error", err)
		return
	}
	// The acting identity comes from the session, never the payload; a
	// receipt for someone else's message is a silent no-op in the store.
	if err := r.messages.MarkRead(ctx, p.MessageID, identity); err != nil {
		r.logger.Error("mark read failed", "user_id", identity, "message_id", p.MessageID, "error", err)
	}
}

func (r *Router) handlePresenceUpdate(ctx context.Context, identity string, raw json.RawMessage) {
	var p PresencePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		r.logger.Warn("bad presence_update payload", "user_id", identity, "error", err)
		return
	}

	rec, err := r.presence.Update(ctx, identity, presence.Status(p.Status))
	if err != nil {
		r.logger.Warn("presence update rejected", "user_id", identity, "status", p.Status, "error", err)
		return
	}
	r.BroadcastPresence(rec)
}

func (r *Router) handleHeartbeat(identity string) {
	frame, err := Encode(KindHeartbeatAck, HeartbeatPayload{Timestamp: r.clock().UTC()})
	if err != nil {
		return
	}
	r.registry.Send(identity, frame)
}

// BroadcastPresence pushes a presence record to every connected client.
// Shared with the session lifecycle, which broadcasts online/offline edges.
func (r *Router) BroadcastPresence(rec presence.Record) {
	frame, err := Encode(KindPresenceUpdate, PresencePayload{
		UserID:   rec.UserID,
		Status:   string(rec.Status),
		LastSeen: rec.LastSeen,
	})
	if err != nil {
		return
	}
	r.registry.Broadcast(frame)
}

func (r *Router) sendError(identity, message, code string) {
	if frame, err := Encode(KindError, ErrorPayload{Message: message, Code: code}); err == nil {
		r.registry.Send(identity, frame)
	}
}
