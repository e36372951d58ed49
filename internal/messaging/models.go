package messaging

import "time"

// Message is delivery metadata only. The gateway is blind to content: the
// encrypted payload travels and is stored on a separate path, referenced at
// most by SessionID.
type Message struct {
	ID             string     `json:"id" db:"id"`
	ConversationID string     `json:"conversation_id" db:"conversation_id"`
	SenderID       string     `json:"sender_id" db:"sender_id"`
	RecipientID    string     `json:"recipient_id" db:"recipient_id"`
	Type           string     `json:"message_type" db:"message_type"`
	Timestamp      time.Time  `json:"timestamp" db:"timestamp"`
	SessionID      *string    `json:"session_id,omitempty" db:"session_id"`
	IsRead         bool       `json:"is_read" db:"is_read"`
	ReadAt         *time.Time `json:"read_at,omitempty" db:"read_at"`
}

// Conversation pairs two identities. Created lazily on the first message
// between them; last-message pointers are bumped on every new message.
type Conversation struct {
	ID              string     `json:"id" db:"id"`
	User1ID         string     `json:"user1_id" db:"user1_id"`
	User2ID         string     `json:"user2_id" db:"user2_id"`
	LastMessageID   *string    `json:"last_message_id,omitempty" db:"last_message_id"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty" db:"last_message_time"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}
