package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

// MessageRepository defines persistence for direct messages and the derived
// inbox views built from them.
type MessageRepository interface {
	CreateMessage(ctx context.Context, senderID, receiverID string, conversationID *int, content string) (models.Message, error)
	GetMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error)
	ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error)
	MarkMessagesAsRead(ctx context.Context, userID, counterpartID string) (int64, error)
	UnreadCount(ctx context.Context, userID string) (int, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, conversation_id, sender_id, receiver_id, content, is_read, created_at`

// CreateMessage stores a message and refreshes the conversation's
// last-message snapshot in one transaction, so a failed snapshot update
// never leaves a message the caller was told was not stored.
// ID and created_at come from the database.
func (r *MessageRepo) CreateMessage(ctx context.Context, senderID, receiverID string, conversationID *int, content string) (models.Message, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Message{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var msg models.Message
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO messages (conversation_id, sender_id, receiver_id, content)
         VALUES ($1, $2, $3, $4)
         RETURNING `+messageColumns,
		conversationID, senderID, receiverID, content).StructScan(&msg)
	if err != nil {
		return models.Message{}, err
	}

	if msg.ConversationID != nil {
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET last_message=$1, last_message_at=$2 WHERE id=$3`,
			msg.Content, msg.CreatedAt, *msg.ConversationID); err != nil {
			return models.Message{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// GetMessagesBetween returns the full history for a pair in chronological
// order. The pair scan is the canonical retrieval path; conversation_id is
// bookkeeping only.
func (r *MessageRepo) GetMessagesBetween(ctx context.Context, userA, userB string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
         ORDER BY created_at ASC, id ASC`,
		userA, userB)
	return msgs, err
}

// ListConversationSummaries returns one row per counterpart the user has
// exchanged messages with, carrying the most recent message. Deduplication
// and recency sorting happen here rather than in every consumer.
func (r *MessageRepo) ListConversationSummaries(ctx context.Context, userID string) ([]models.ConversationSummary, error) {
	var summaries []models.ConversationSummary
	err := r.db.SelectContext(ctx, &summaries,
		`SELECT counterpart_id, last_content, last_at, last_read FROM (
            SELECT DISTINCT ON (CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END)
                CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END AS counterpart_id,
                content    AS last_content,
                created_at AS last_at,
                is_read    AS last_read
            FROM messages
            WHERE sender_id=$1 OR receiver_id=$1
            ORDER BY CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END,
                created_at DESC, id DESC
        ) latest
        ORDER BY last_at DESC`,
		userID)
	return summaries, err
}

// MarkMessagesAsRead flips is_read on every unread message from the
// counterpart to the user and reports how many rows changed.
func (r *MessageRepo) MarkMessagesAsRead(ctx context.Context, userID, counterpartID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE messages SET is_read = TRUE
         WHERE receiver_id=$1 AND sender_id=$2 AND is_read = FALSE`,
		userID, counterpartID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UnreadCount counts unread messages addressed to the user. Cheap enough to
// poll as a fallback to live push.
func (r *MessageRepo) UnreadCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM messages WHERE receiver_id=$1 AND is_read = FALSE`,
		userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return count, err
}
