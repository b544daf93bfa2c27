package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"messaging-service/internal/auth"
	"messaging-service/internal/models"
	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// SocketHandler upgrades /ws requests, binds the authenticated user into
// the registry, and runs the frame dispatch loop.
type SocketHandler struct {
	registry *Registry
	relay    *Relay
	verifier *auth.Verifier
	events   *telemetry.EventEmitter
	log      *zap.Logger
}

// NewSocketHandler constructs a SocketHandler.
func NewSocketHandler(registry *Registry, relay *Relay, verifier *auth.Verifier, events *telemetry.EventEmitter, log *zap.Logger) *SocketHandler {
	return &SocketHandler{
		registry: registry,
		relay:    relay,
		verifier: verifier,
		events:   events,
		log:      log,
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle authenticates, upgrades, and serves one connection until it drops.
func (h *SocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("messaging-service/ws").Start(c.Request.Context(), "ws.handshake",
		trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	// Browsers cannot set headers on websocket dials, so the token is also
	// accepted as a query parameter. Either way it is verified, never
	// trusted as a bare user id.
	token := auth.FromAuthorizationHeader(c.GetHeader("Authorization"))
	if token == "" {
		token = c.Query("token")
	}

	userID, err := h.verifier.VerifySubject(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	info := ConnInfo{
		ConnID:      uuid.NewString(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   observability.RequestIDFromRequest(c.Request),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	headers := telemetry.BuildHeaders(info.RequestID, info.TraceID)

	h.registry.Bind(userID, conn)
	observability.IncWSActive()
	observability.IncWSEvent("ws_connect")
	h.events.EmitWS(ctx, telemetry.WSEvent{
		Event:    "ws_connect",
		ConnID:   info.ConnID,
		UserID:   info.UserID,
		DeviceID: info.DeviceID,
		IP:       info.IP,
	}, headers)

	// The request context dies with the handler; frame processing outlives
	// it, so detach cancellation but keep trace propagation.
	connCtx := context.WithoutCancel(ctx)

	go func() {
		var closeReason string
		defer func() {
			h.registry.Unbind(userID, conn)
			conn.Close()
			observability.DecWSActive()
			observability.IncWSEvent("ws_disconnect")
			h.events.EmitWS(connCtx, telemetry.WSEvent{
				Event:      "ws_disconnect",
				ConnID:     info.ConnID,
				UserID:     info.UserID,
				DeviceID:   info.DeviceID,
				IP:         info.IP,
				DurationMS: time.Since(info.ConnectedAt).Milliseconds(),
				Reason:     closeReason,
			}, headers)
		}()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("ws_error")
				}
				return
			}
			h.dispatch(connCtx, userID, data)
		}
	}()
}

// dispatch handles one inbound frame. Errors are frame-local: they are
// surfaced to the sender and never terminate the connection.
func (h *SocketHandler) dispatch(ctx context.Context, userID string, data []byte) {
	var frame models.InboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		h.registry.Send(userID, models.ErrorFrame("invalid message format"))
		return
	}

	switch frame.Type {
	case models.FrameTyping:
		if frame.UserID == "" || frame.TargetUserID == "" {
			h.registry.Send(userID, models.ErrorFrame("typing frame requires userId and targetUserId"))
			return
		}
		h.relay.RelayTyping(frame.UserID, frame.TargetUserID, frame.IsTyping)
	case "", models.FrameMessage:
		if _, err := h.relay.Deliver(ctx, userID, frame.ReceiverID, frame.Content); err != nil {
			h.log.Warn("socket send failed",
				zap.String("sender_id", userID),
				zap.String("receiver_id", frame.ReceiverID),
				zap.Error(err))
			h.registry.Send(userID, models.ErrorFrame(sendErrorText(err)))
		}
	default:
		h.registry.Send(userID, models.ErrorFrame("unknown frame type"))
	}
}

// sendErrorText maps a Deliver failure to client-facing text. Validation
// failures carry their own message; persistence internals do not leak.
func sendErrorText(err error) string {
	if errors.Is(err, ErrInvalidSend) || errors.Is(err, repositories.ErrSelfConversation) {
		return err.Error()
	}
	return "message could not be stored"
}
