package models

import "time"

// Conversation represents the persisted thread between exactly two users.
// The pair is stored normalized: User1ID always sorts before User2ID.
type Conversation struct {
	ID            int        `db:"id" json:"id"`
	User1ID       string     `db:"user1_id" json:"user1Id"`
	User2ID       string     `db:"user2_id" json:"user2Id"`
	LastMessage   *string    `db:"last_message" json:"lastMessage,omitempty"`
	LastMessageAt *time.Time `db:"last_message_at" json:"lastMessageAt,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"createdAt"`
}

// ConversationSummary is the per-counterpart inbox row for a user: who the
// counterpart is and the most recent message exchanged with them.
type ConversationSummary struct {
	CounterpartID string    `db:"counterpart_id" json:"counterpartId"`
	LastContent   string    `db:"last_content" json:"lastContent"`
	LastAt        time.Time `db:"last_at" json:"lastAt"`
	LastRead      bool      `db:"last_read" json:"lastRead"`
}
