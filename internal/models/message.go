package models

import "time"

// Message represents a direct message between two users. ID and CreatedAt
// are assigned at persistence time; CreatedAt is authoritative for ordering
// within a pair. ConversationID is nullable: a message row can outlive its
// conversation row.
type Message struct {
	ID             int       `db:"id" json:"id"`
	ConversationID *int      `db:"conversation_id" json:"conversationId,omitempty"`
	SenderID       string    `db:"sender_id" json:"senderId"`
	ReceiverID     string    `db:"receiver_id" json:"receiverId"`
	Content        string    `db:"content" json:"content"`
	IsRead         bool      `db:"is_read" json:"isRead"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}
