package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/mocks"
	"messaging-service/internal/models"
	"messaging-service/internal/telemetry"
)

const testSecret = "socket-test-secret"

func signTestToken(t *testing.T, userID string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newSocketServer(t *testing.T, convRepo *mocks.ConversationRepositoryMock, msgRepo *mocks.MessageRepositoryMock) (*httptest.Server, *Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	verifier, err := auth.NewVerifier(testSecret)
	require.NoError(t, err)

	registry := NewRegistry(zap.NewNop())
	relay := NewRelay(registry, convRepo, msgRepo, telemetry.NewEventEmitter(nil), zap.NewNop())
	handler := NewSocketHandler(registry, relay, verifier, telemetry.NewEventEmitter(nil), zap.NewNop())

	router := gin.New()
	router.GET("/ws", handler.Handle)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, registry
}

func dialSocket(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + signTestToken(t, userID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForConnected(t *testing.T, registry *Registry, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for registry.Connected() < want {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d connections, have %d", want, registry.Connected())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func readFrame(t *testing.T, conn *websocket.Conn) models.OutboundFrame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame models.OutboundFrame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func TestSocketChatSendDeliversAndEchoes(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	srv, registry := newSocketServer(t, convRepo, msgRepo)

	convID := 1
	convRepo.On("CreateOrGetConversation", mock.Anything, "u1", "u2").
		Return(models.Conversation{ID: convID}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "u1", "u2", mock.Anything, "hi").
		Return(models.Message{ID: 9, ConversationID: &convID, SenderID: "u1", ReceiverID: "u2", Content: "hi", CreatedAt: time.Now()}, nil).Once()

	sender := dialSocket(t, srv, "u1")
	receiver := dialSocket(t, srv, "u2")
	waitForConnected(t, registry, 2)

	require.NoError(t, sender.WriteJSON(models.InboundFrame{ReceiverID: "u2", Content: "  hi  "}))

	pushed := readFrame(t, receiver)
	require.Equal(t, models.FrameMessage, pushed.Type)
	require.NotNil(t, pushed.Data)
	require.Equal(t, "hi", pushed.Data.Content)
	require.Equal(t, "u1", pushed.Data.SenderID)
	require.False(t, pushed.Data.IsRead)

	echoed := readFrame(t, sender)
	require.Equal(t, models.FrameMessage, echoed.Type)
	require.NotNil(t, echoed.Data)
	require.Equal(t, 9, echoed.Data.ID)

	convRepo.AssertExpectations(t)
	msgRepo.AssertExpectations(t)
}

func TestSocketTypingForwardedVerbatim(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	srv, registry := newSocketServer(t, convRepo, msgRepo)

	sender := dialSocket(t, srv, "u1")
	target := dialSocket(t, srv, "u2")
	waitForConnected(t, registry, 2)

	require.NoError(t, sender.WriteJSON(models.InboundFrame{
		Type:         models.FrameTyping,
		UserID:       "u1",
		TargetUserID: "u2",
		IsTyping:     true,
	}))

	frame := readFrame(t, target)
	require.Equal(t, models.FrameTyping, frame.Type)
	require.Equal(t, "u1", frame.UserID)
	require.NotNil(t, frame.IsTyping)
	require.True(t, *frame.IsTyping)

	// Typing never touches the store and never echoes back to the sender.
	convRepo.AssertNotCalled(t, "CreateOrGetConversation")
	require.NoError(t, sender.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	var stray models.OutboundFrame
	require.Error(t, sender.ReadJSON(&stray))
}

func TestSocketMalformedFrameSurvives(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	srv, registry := newSocketServer(t, convRepo, msgRepo)

	convID := 1
	convRepo.On("CreateOrGetConversation", mock.Anything, "u1", "u2").
		Return(models.Conversation{ID: convID}, nil).Once()
	msgRepo.On("CreateMessage", mock.Anything, "u1", "u2", mock.Anything, "still works").
		Return(models.Message{ID: 3, SenderID: "u1", ReceiverID: "u2", Content: "still works"}, nil).Once()

	sender := dialSocket(t, srv, "u1")
	waitForConnected(t, registry, 1)

	require.NoError(t, sender.WriteMessage(websocket.TextMessage, []byte("not json")))

	frame := readFrame(t, sender)
	require.Equal(t, models.FrameError, frame.Type)
	require.Equal(t, "invalid message format", frame.Message)

	// The connection stays open for subsequent valid frames.
	require.NoError(t, sender.WriteJSON(models.InboundFrame{ReceiverID: "u2", Content: "still works"}))
	echoed := readFrame(t, sender)
	require.Equal(t, models.FrameMessage, echoed.Type)
}

func TestSocketValidationErrorFrame(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	srv, registry := newSocketServer(t, convRepo, msgRepo)

	sender := dialSocket(t, srv, "u1")
	waitForConnected(t, registry, 1)

	require.NoError(t, sender.WriteJSON(models.InboundFrame{ReceiverID: "u2", Content: "   "}))

	frame := readFrame(t, sender)
	require.Equal(t, models.FrameError, frame.Type)
	msgRepo.AssertNotCalled(t, "CreateMessage")
}

func TestSocketRejectsInvalidToken(t *testing.T) {
	convRepo := new(mocks.ConversationRepositoryMock)
	msgRepo := new(mocks.MessageRepositoryMock)
	srv, _ := newSocketServer(t, convRepo, msgRepo)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=garbage"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.Nil(t, conn)
	require.NotNil(t, resp)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()
}
