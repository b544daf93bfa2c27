package telemetry

import (
	"context"

	"messaging-service/internal/observability"
	"messaging-service/internal/rabbitmq"
)

// Routing keys for websocket and message lifecycle events.
const (
	RoutingKeyWSEvents      = "ws_events.messaging"
	RoutingKeyMessageEvents = "message_events.messaging"
)

// EventEnvelope wraps an out-of-process event payload.
type EventEnvelope struct {
	EventType string `json:"event_type"`
	EventName string `json:"event_name"`
	Payload   any    `json:"payload"`
}

// WSEvent describes a websocket lifecycle transition for one connection.
type WSEvent struct {
	Event      string `json:"event"`
	ConnID     string `json:"conn_id"`
	UserID     string `json:"user_id"`
	DeviceID   string `json:"device_id"`
	IP         string `json:"ip"`
	DurationMS int64  `json:"duration_ms"`
	Reason     string `json:"reason"`
}

// MessageEvent describes a stored message for downstream consumers (audit,
// notification fan-out). Content is deliberately omitted.
type MessageEvent struct {
	MessageID      int    `json:"message_id"`
	ConversationID *int   `json:"conversation_id,omitempty"`
	SenderID       string `json:"sender_id"`
	ReceiverID     string `json:"receiver_id"`
	Delivered      bool   `json:"delivered"`
}

// BuildHeaders assembles propagation headers for an event publish.
func BuildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}

// EventEmitter publishes service events, tolerating a nil receiver so call
// sites stay unconditional.
type EventEmitter struct {
	publisher rabbitmq.Publisher
}

// NewEventEmitter wraps a publisher.
func NewEventEmitter(publisher rabbitmq.Publisher) *EventEmitter {
	return &EventEmitter{publisher: publisher}
}

// EmitWS publishes a websocket lifecycle event.
func (e *EventEmitter) EmitWS(ctx context.Context, event WSEvent, headers map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}
	envelope := EventEnvelope{EventType: "ws_events", EventName: event.Event, Payload: event}
	if err := e.publisher.Publish(ctx, RoutingKeyWSEvents, envelope, headers); err != nil {
		observability.IncAMQPPublishError()
	}
}

// EmitMessage publishes a stored-message event.
func (e *EventEmitter) EmitMessage(ctx context.Context, event MessageEvent, headers map[string]string) {
	if e == nil || e.publisher == nil {
		return
	}
	envelope := EventEnvelope{EventType: "message_events", EventName: "message_stored", Payload: event}
	if err := e.publisher.Publish(ctx, RoutingKeyMessageEvents, envelope, headers); err != nil {
		observability.IncAMQPPublishError()
	}
}
