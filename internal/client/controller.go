// Package client implements the connection controller a messaging client
// runs per viewed conversation, plus the global unread-count watcher.
package client

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"messaging-service/internal/models"
)

// State is the controller's connection state.
type State int

const (
	StateConnecting State = iota
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// DefaultRetryDelay is the fixed pause between reconnect attempts. There is
// deliberately no backoff growth and no attempt ceiling; callers wanting a
// gentler profile raise RetryDelay.
const DefaultRetryDelay = 2 * time.Second

// ErrNotConnected rejects sends while the socket is not open. The caller
// should treat the message as pending and retry after reconnect.
var ErrNotConnected = errors.New("socket not open")

// Controller owns one socket with explicit lifecycle: dial, pump, and a
// fixed-delay reconnect loop. Acquire it on view-enter with Run and release
// it by cancelling the context; the socket is closed on every exit path.
type Controller struct {
	// URL is the ws:// or wss:// endpoint.
	URL string
	// UserID identifies this client in outbound typing frames.
	UserID string
	// Token is the bearer token presented on dial.
	Token string
	// RetryDelay overrides DefaultRetryDelay when positive.
	RetryDelay time.Duration
	// Dialer overrides websocket.DefaultDialer when set.
	Dialer *websocket.Dialer

	// OnMessage fires for every message push, whether the client is sender
	// or receiver; the surrounding cache layer refetches on it.
	OnMessage func(models.Message)
	// OnTyping fires for presence pushes.
	OnTyping func(userID string, isTyping bool)
	// OnError fires for error frames from the server.
	OnError func(text string)
	// OnState observes connection state transitions.
	OnState func(State)

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
}

// Run dials and serves the socket until ctx is cancelled, reconnecting
// after a fixed delay whenever the connection drops.
func (c *Controller) Run(ctx context.Context) {
	delay := c.RetryDelay
	if delay <= 0 {
		delay = DefaultRetryDelay
	}
	dialer := c.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	for {
		c.setState(StateConnecting)

		header := http.Header{}
		if c.Token != "" {
			header.Set("Authorization", "Bearer "+c.Token)
		}
		conn, resp, err := dialer.DialContext(ctx, c.URL, header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err == nil {
			c.setConn(conn)
			c.setState(StateOpen)

			done := make(chan struct{})
			go func() {
				select {
				case <-ctx.Done():
					conn.Close()
				case <-done:
				}
			}()
			c.readPump(conn)
			close(done)

			c.setConn(nil)
		}

		c.setState(StateClosed)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// Send writes a chat-send frame. The send is confirmed only by the echo
// push or a later refetch; a nil return is not delivery.
func (c *Controller) Send(receiverID, content string) error {
	return c.write(models.InboundFrame{ReceiverID: receiverID, Content: content})
}

// Typing writes a presence-send frame targeting another user.
func (c *Controller) Typing(targetUserID string, isTyping bool) error {
	return c.write(models.InboundFrame{
		Type:         models.FrameTyping,
		UserID:       c.UserID,
		TargetUserID: targetUserID,
		IsTyping:     isTyping,
	})
}

// CurrentState reports the controller's connection state.
func (c *Controller) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) write(frame models.InboundFrame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen || c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteJSON(frame)
}

func (c *Controller) readPump(conn *websocket.Conn) {
	for {
		var frame models.OutboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case models.FrameMessage:
			if frame.Data != nil && c.OnMessage != nil {
				c.OnMessage(*frame.Data)
			}
		case models.FrameTyping:
			if c.OnTyping != nil {
				isTyping := frame.IsTyping != nil && *frame.IsTyping
				c.OnTyping(frame.UserID, isTyping)
			}
		case models.FrameError:
			if c.OnError != nil {
				c.OnError(frame.Message)
			}
		}
	}
}

func (c *Controller) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Controller) setState(state State) {
	c.mu.Lock()
	changed := c.state != state
	c.state = state
	c.mu.Unlock()
	if changed && c.OnState != nil {
		c.OnState(state)
	}
}
