package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"messaging-service/internal/models"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrSelfConversation     = errors.New("cannot start a conversation with yourself")
)

// ConversationRepository abstracts conversation persistence.
type ConversationRepository interface {
	FindConversation(ctx context.Context, userA, userB string) (models.Conversation, error)
	CreateOrGetConversation(ctx context.Context, userA, userB string) (models.Conversation, error)
}

// ConversationRepo is a sqlx implementation of ConversationRepository.
type ConversationRepo struct {
	db *sqlx.DB
}

// NewConversationRepo constructs a ConversationRepo.
func NewConversationRepo(db *sqlx.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

// normalizePair orders the two user ids so the unordered pair {a, b} always
// maps to the same (user1, user2) columns.
func normalizePair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

const conversationColumns = `id, user1_id, user2_id, last_message, last_message_at, created_at`

// FindConversation looks up the conversation for an unordered user pair.
func (r *ConversationRepo) FindConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	user1, user2 := normalizePair(userA, userB)

	var conv models.Conversation
	err := r.db.GetContext(ctx, &conv,
		`SELECT `+conversationColumns+` FROM conversations WHERE user1_id=$1 AND user2_id=$2`,
		user1, user2)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// CreateOrGetConversation resolves the conversation for an unordered pair,
// creating it if absent. The upsert leans on the UNIQUE(user1_id, user2_id)
// constraint so two concurrent first-contact sends resolve to the same row.
func (r *ConversationRepo) CreateOrGetConversation(ctx context.Context, userA, userB string) (models.Conversation, error) {
	if userA == userB {
		return models.Conversation{}, ErrSelfConversation
	}
	user1, user2 := normalizePair(userA, userB)

	var conv models.Conversation
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO conversations (user1_id, user2_id) VALUES ($1, $2)
         ON CONFLICT (user1_id, user2_id) DO UPDATE SET user1_id = EXCLUDED.user1_id
         RETURNING `+conversationColumns,
		user1, user2).StructScan(&conv)
	if err != nil {
		return models.Conversation{}, err
	}
	return conv, nil
}
