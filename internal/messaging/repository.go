package messaging

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"messaging-platform/pkg/utils"
)

var ErrNotFound = errors.New("messaging: not found")

// Repository is the persistence contract for message metadata and the
// conversation pairings it implies.
type Repository interface {
	// CreateMessage persists metadata, creating the conversation pairing on
	// first contact and bumping its last-message pointers.
	CreateMessage(ctx context.Context, senderID, recipientID, msgType string, sessionID *string, now time.Time) (Message, error)

	// MarkRead flags the message read iff reader is its recipient. A
	// mismatched reader is a silent no-op.
	MarkRead(ctx context.Context, messageID, readerID string, now time.Time) error

	// ListParticipants returns the distinct counterparts of the user's
	// conversations. Feeds the connect-time presence snapshot.
	ListParticipants(ctx context.Context, userID string) ([]string, error)

	// ConversationMessages lists recent metadata for a conversation the
	// user belongs to, newest first.
	ConversationMessages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error)

	// ParticipantOf resolves the other member of a conversation, used to
	// route typing indicators. ErrNotFound when the user is not a member.
	ParticipantOf(ctx context.Context, conversationID, userID string) (string, error)
}

// SQLRepo implements Repository on Postgres.
type SQLRepo struct {
	db    *sql.DB
	newID func() string
}

func NewSQLRepo(db *sql.DB, newID func() string) *SQLRepo {
	return &SQLRepo{db: db, newID: newID}
}

func (r *SQLRepo) CreateMessage(ctx context.Context, senderID, recipientID, msgType string, sessionID *string, now time.Time) (Message, error) {
	var msg Message
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		conv, err := getOrCreateConversation(ctx, tx, r.newID, senderID, recipientID, now)
		if err != nil {
			return err
		}

		const insertMsg = `
INSERT INTO messages (id, conversation_id, sender_id, recipient_id, message_type, timestamp, session_id, is_read)
VALUES ($1,$2,$3,$4,$5,$6,$7,false)
RETURNING id, conversation_id, sender_id, recipient_id, message_type, timestamp, session_id, is_read, read_at
`
		if err := tx.QueryRowContext(ctx, insertMsg,
			r.newID(), conv.ID, senderID, recipientID, msgType, now, sessionID,
		).Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.RecipientID,
			&msg.Type,
			&msg.Timestamp,
			&msg.SessionID,
			&msg.IsRead,
			&msg.ReadAt,
		); err != nil {
			return err
		}

		const bump = `
UPDATE conversations
SET last_message_id = $1, last_message_time = $2, updated_at = $2
WHERE id = $3
`
		_, err = tx.ExecContext(ctx, bump, msg.ID, now, conv.ID)
		return err
	})
	if err != nil {
		return Message{}, err
	}
	return msg, nil
}

func getOrCreateConversation(ctx context.Context, tx *sql.Tx, newID func() string, user1, user2 string, now time.Time) (Conversation, error) {
	const find = `
SELECT id, user1_id, user2_id, last_message_id, last_message_time, created_at, updated_at
FROM conversations
WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)
LIMIT 1
`
	var conv Conversation
	err := tx.QueryRowContext(ctx, find, user1, user2).Scan(
		&conv.ID,
		&conv.User1ID,
		&conv.User2ID,
		&conv.LastMessageID,
		&conv.LastMessageTime,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Conversation{}, err
	}

	const create = `
INSERT INTO conversations (id, user1_id, user2_id, created_at, updated_at)
VALUES ($1,$2,$3,$4,$4)
RETURNING id, user1_id, user2_id, last_message_id, last_message_time, created_at, updated_at
`
	err = tx.QueryRowContext(ctx, create, newID(), user1, user2, now).Scan(
		&conv.ID,
		&conv.User1ID,
		&conv.User2ID,
		&conv.LastMessageID,
		&conv.LastMessageTime,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	return conv, err
}

func (r *SQLRepo) MarkRead(ctx context.Context, messageID, readerID string, now time.Time) error {
	// Recipient guard lives in the WHERE clause: a non-recipient reader
	// matches no rows, which is the intended silent no-op.
	const q = `
UPDATE messages
SET is_read = true, read_at = $1
WHERE id = $2 AND recipient_id = $3
`
	_, err := r.db.ExecContext(ctx, q, now, messageID, readerID)
	return err
}

func (r *SQLRepo) ListParticipants(ctx context.Context, userID string) ([]string, error) {
	const q = `
SELECT DISTINCT CASE WHEN user1_id = $1 THEN user2_id ELSE user1_id END
FROM conversations
WHERE user1_id = $1 OR user2_id = $1
`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (r *SQLRepo) ConversationMessages(ctx context.Context, conversationID, userID string, limit int) ([]Message, error) {
	const q = `
SELECT id, conversation_id, sender_id, recipient_id, message_type, timestamp, session_id, is_read, read_at
FROM messages
WHERE conversation_id = $1 AND (sender_id = $2 OR recipient_id = $2)
ORDER BY timestamp DESC
LIMIT $3
`
	rows, err := r.db.QueryContext(ctx, q, conversationID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(
			&m.ID,
			&m.ConversationID,
			&m.SenderID,
			&m.RecipientID,
			&m.Type,
			&m.Timestamp,
			&m.SessionID,
			&m.IsRead,
			&m.ReadAt,
		); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SQLRepo) ParticipantOf(ctx context.Context, conversationID, userID string) (string, error) {
	const q = `
SELECT CASE WHEN user1_id = $2 THEN user2_id ELSE user1_id END
FROM conversations
WHERE id = $1 AND (user1_id = $2 OR user2_id = $2)
`
	var other string
	if err := r.db.QueryRowContext(ctx, q, conversationID, userID).Scan(&other); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return other, nil
}
