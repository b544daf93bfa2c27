package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/ws"
)

// MessageHandler exposes the REST fallback surface. Sends go through the
// same relay sequence as socket frames, so both transports stay consistent.
type MessageHandler struct {
	relay       *ws.Relay
	messageRepo repositories.MessageRepository
	log         *zap.Logger
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(relay *ws.Relay, messageRepo repositories.MessageRepository, log *zap.Logger) *MessageHandler {
	return &MessageHandler{
		relay:       relay,
		messageRepo: messageRepo,
		log:         log,
	}
}

// ListConversations returns the caller's inbox: one summary per counterpart,
// most recent first.
func (h *MessageHandler) ListConversations(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	summaries, err := h.messageRepo.ListConversationSummaries(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("list conversations failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load conversations"})
		return
	}
	if summaries == nil {
		summaries = []models.ConversationSummary{}
	}

	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

// GetMessages returns the chronological history between the caller and the
// counterpart in the path.
func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	counterpartID := strings.TrimSpace(c.Param("user_id"))
	if counterpartID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	msgs, err := h.messageRepo.GetMessagesBetween(c.Request.Context(), userID, counterpartID)
	if err != nil {
		h.log.Error("load messages failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load messages"})
		return
	}
	if msgs == nil {
		msgs = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage persists and pushes a message to the counterpart in the path.
func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	receiverID := strings.TrimSpace(c.Param("user_id"))

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := h.relay.Deliver(c.Request.Context(), userID, receiverID, req.Content)
	if err != nil {
		if errors.Is(err, ws.ErrInvalidSend) || errors.Is(err, repositories.ErrSelfConversation) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.log.Error("send message failed",
			zap.String("sender_id", userID),
			zap.String("receiver_id", receiverID),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store message"})
		return
	}

	c.JSON(http.StatusCreated, msg)
}

// MarkRead flips every unread message from the counterpart to the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)
	counterpartID := strings.TrimSpace(c.Param("user_id"))
	if counterpartID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	updated, err := h.messageRepo.MarkMessagesAsRead(c.Request.Context(), userID, counterpartID)
	if err != nil {
		h.log.Error("mark read failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to mark messages read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// UnreadCount returns the caller's unread message count; the client's
// unread watcher polls this as a fallback to live push.
func (h *MessageHandler) UnreadCount(c *gin.Context) {
	userID := c.GetString(middleware.UserIDKey)

	count, err := h.messageRepo.UnreadCount(c.Request.Context(), userID)
	if err != nil {
		h.log.Error("unread count failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count unread messages"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}
