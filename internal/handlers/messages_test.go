package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/middleware"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
	"messaging-service/internal/ws"
)

func setupMessageRouter(convRepo *mocks.ConversationRepositoryMock, msgRepo *mocks.MessageRepositoryMock) *gin.Engine {
	gin.SetMode(gin.TestMode)

	registry := ws.NewRegistry(zap.NewNop())
	relay := ws.NewRelay(registry, convRepo, msgRepo, telemetry.NewEventEmitter(nil), zap.NewNop())
	handler := NewMessageHandler(relay, msgRepo, zap.NewNop())

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "u1")
		c.Next()
	})
	r.GET("/api/conversations", handler.ListConversations)
	r.GET("/api/messages/:user_id", handler.GetMessages)
	r.POST("/api/messages/send/:user_id", handler.SendMessage)
	r.PUT("/api/messages/read/:user_id", handler.MarkRead)
	r.GET("/api/messages/unread/count", handler.UnreadCount)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	msgRepo.On("ListConversationSummaries", mock.Anything, "u1").Return([]models.ConversationSummary{
		{CounterpartID: "u2", LastContent: "see you", LastAt: time.Now(), LastRead: false},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Conversations []models.ConversationSummary `json:"conversations"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Conversations, 1)
	require.Equal(t, "u2", resp.Conversations[0].CounterpartID)
	msgRepo.AssertExpectations(t)
}

func TestListConversationsRepoError(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	msgRepo.On("ListConversationSummaries", mock.Anything, "u1").
		Return(([]models.ConversationSummary)(nil), assert.AnError).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestGetMessagesSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	msgRepo.On("GetMessagesBetween", mock.Anything, "u1", "u2").Return([]models.Message{
		{ID: 1, SenderID: "u1", ReceiverID: "u2", Content: "hello"},
		{ID: 2, SenderID: "u2", ReceiverID: "u1", Content: "hey"},
	}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/u2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	msgRepo.AssertExpectations(t)
}

func TestSendMessageSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	convID := 5
	convRepo.On("CreateOrGetConversation", mock.Anything, "u1", "u2").
		Return(models.Conversation{ID: convID}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "u1", "u2", mock.Anything, "hi").
		Return(models.Message{ID: 7, ConversationID: &convID, SenderID: "u1", ReceiverID: "u2", Content: "hi"}, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u2", bytes.NewBufferString(`{"content":"  hi  "}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var msg models.Message
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&msg))
	require.Equal(t, 7, msg.ID)
	require.Equal(t, "hi", msg.Content)
	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSendMessageMissingContent(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u2", bytes.NewBufferString(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msgRepo.AssertNotCalled(t, "CreateMessage")
}

func TestSendMessageToSelf(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	convRepo.On("CreateOrGetConversation", mock.Anything, "u1", "u1").
		Return(models.Conversation{}, repositories.ErrSelfConversation).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u1", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	msgRepo.AssertNotCalled(t, "CreateMessage")
}

func TestSendMessagePersistenceError(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	convRepo.On("CreateOrGetConversation", mock.Anything, "u1", "u2").
		Return(models.Conversation{ID: 1}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "u1", "u2", mock.Anything, "hi").
		Return(models.Message{}, assert.AnError).Once()

	req := httptest.NewRequest(http.MethodPost, "/api/messages/send/u2", bytes.NewBufferString(`{"content":"hi"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestMarkReadSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	msgRepo.On("MarkMessagesAsRead", mock.Anything, "u1", "u2").Return(int64(3), nil).Once()

	req := httptest.NewRequest(http.MethodPut, "/api/messages/read/u2", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Updated int64 `json:"updated"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, int64(3), resp.Updated)
	msgRepo.AssertExpectations(t)
}

func TestUnreadCountSuccess(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	router := setupMessageRouter(convRepo, msgRepo)

	msgRepo.On("UnreadCount", mock.Anything, "u1").Return(4, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/api/messages/unread/count", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, 4, resp.Count)
	msgRepo.AssertExpectations(t)
}
