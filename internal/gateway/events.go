package gateway

import (
	"encoding/json"
	"time"
)

// Event kinds carried in the envelope's type field. Inbound and outbound
// share the namespace; the *_response and *_full kinds are server-emitted
// only.
const (
	KindMessage          = "message"
	KindMessageResponse  = "message_response"
	KindCallRequest      = "call_request"
	KindCallRequestFull  = "call_request_full"
	KindCallResponse     = "call_response"
	KindCallResponseFull = "call_response_full"
	KindTypingIndicator  = "typing_indicator"
	KindReadReceipt      = "read_receipt"
	KindPresenceUpdate   = "presence_update"
	KindHeartbeat        = "heartbeat"
	KindHeartbeatAck     = "heartbeat_response"
	KindError            = "error"
)

// Envelope is the wire frame: a kind discriminator plus a kind-specific
// payload left raw until the router knows how to decode it.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Encode wraps payload in an envelope of the given kind and marshals the
// whole frame.
func Encode(kind string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: kind, Payload: raw})
}

// MessagePayload is the client's request to deliver a message. The sender is
// taken from the session identity, never from the payload.
type MessagePayload struct {
	RecipientID string  `json:"recipient_id"`
	MessageType string  `json:"message_type"`
	SessionID   *string `json:"session_id,omitempty"`
}

// CallRequestPayload asks the coordinator to ring a recipient.
type CallRequestPayload struct {
	RecipientID string `json:"recipient_id"`
	CallType    string `json:"call_type"`
}

// CallResponsePayload carries a party's answer for an in-flight call.
type CallResponsePayload struct {
	CallID   string `json:"call_id"`
	Response string `json:"response"`
}

// TypingPayload is relayed to the conversation's other participant.
type TypingPayload struct {
	UserID         string    `json:"user_id"`
	ConversationID string    `json:"conversation_id"`
	IsTyping       bool      `json:"is_typing"`
	Timestamp      time.Time `json:"timestamp"`
}

// ReadReceiptPayload marks a message read. Only honored when the session
// identity is the message's recipient.
type ReadReceiptPayload struct {
	MessageID string    `json:"message_id"`
	ReaderID  string    `json:"reader_id"`
	ReadAt    time.Time `json:"read_at"`
}

// PresencePayload is both the inbound explicit status change and the
// outbound broadcast record.
type PresencePayload struct {
	UserID   string    `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// HeartbeatPayload keeps the session's presence fresh.
type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is sent to the offending session when a frame cannot be
// honored but the connection should stay open.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
