package ws

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// ErrInvalidSend rejects a chat-send with a missing receiver or empty
// content after trimming.
var ErrInvalidSend = errors.New("receiver and content are required")

// Relay owns the persist-then-best-effort-push sequence. Both the socket
// read loop and the REST fallback go through Deliver, so every send behaves
// identically regardless of transport.
type Relay struct {
	registry      *Registry
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	events        *telemetry.EventEmitter
	log           *zap.Logger
}

// NewRelay constructs a Relay.
func NewRelay(registry *Registry, conversations repositories.ConversationRepository, messages repositories.MessageRepository, events *telemetry.EventEmitter, log *zap.Logger) *Relay {
	return &Relay{
		registry:      registry,
		conversations: conversations,
		messages:      messages,
		events:        events,
		log:           log,
	}
}

// Registry exposes the connection registry for handlers that only push.
func (r *Relay) Registry() *Registry {
	return r.registry
}

// Deliver persists a message and pushes it to the receiver and back to the
// sender. The persisted record is authoritative; push is best-effort and an
// offline receiver is not an error. The returned message carries the
// store-assigned id and timestamp.
func (r *Relay) Deliver(ctx context.Context, senderID, receiverID, content string) (models.Message, error) {
	receiverID = strings.TrimSpace(receiverID)
	content = strings.TrimSpace(content)
	if receiverID == "" || content == "" {
		return models.Message{}, ErrInvalidSend
	}

	conv, err := r.conversations.CreateOrGetConversation(ctx, senderID, receiverID)
	if err != nil {
		return models.Message{}, err
	}

	msg, err := r.messages.CreateMessage(ctx, senderID, receiverID, &conv.ID, content)
	if err != nil {
		return models.Message{}, err
	}

	frame := models.MessageFrame(msg)
	delivered := r.registry.Send(receiverID, frame)
	if delivered {
		observability.IncDelivery("delivered")
	} else {
		observability.IncDelivery("skipped")
	}

	// Echo to the sender so every view it has open picks up the
	// server-assigned fields without fabricating them locally.
	r.registry.Send(senderID, frame)

	r.events.EmitMessage(ctx, telemetry.MessageEvent{
		MessageID:      msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		Delivered:      delivered,
	}, nil)

	r.log.Debug("message relayed",
		zap.Int("message_id", msg.ID),
		zap.String("sender_id", senderID),
		zap.String("receiver_id", receiverID),
		zap.Bool("delivered", delivered))
	return msg, nil
}

// RelayTyping forwards an ephemeral typing signal to the target user. No
// persistence, no echo, and an offline target is silently skipped.
func (r *Relay) RelayTyping(fromUserID, targetUserID string, isTyping bool) bool {
	if fromUserID == "" || targetUserID == "" {
		return false
	}
	return r.registry.Send(targetUserID, models.TypingFrame(fromUserID, isTyping))
}
