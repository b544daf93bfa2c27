package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"messaging-service/internal/models"
	"messaging-service/internal/observability"
)

// Conn is the write side of a registered socket. *websocket.Conn satisfies
// it; tests bind fakes.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// binding wraps a conn with a write lock: gorilla conns do not support
// concurrent writers, and frames for one user can originate from many
// relay goroutines.
type binding struct {
	conn Conn
	mu   sync.Mutex
}

// Registry maps each user id to its single live socket. A new binding for
// the same user closes and replaces the previous one.
type Registry struct {
	mu       sync.RWMutex
	bindings map[string]*binding
	log      *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{
		bindings: make(map[string]*binding),
		log:      log,
	}
}

// Bind registers conn as the current channel for userID. A superseded
// socket is closed rather than orphaned.
func (r *Registry) Bind(userID string, conn Conn) {
	r.mu.Lock()
	prev := r.bindings[userID]
	r.bindings[userID] = &binding{conn: conn}
	r.mu.Unlock()

	if prev != nil {
		r.log.Info("replacing stale socket binding", zap.String("user_id", userID))
		_ = prev.conn.Close()
	}
}

// Unbind removes the binding for userID if it still points at conn. The
// conn check keeps a replaced socket's deferred cleanup from evicting its
// successor.
func (r *Registry) Unbind(userID string, conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.bindings[userID]; ok && b.conn == conn {
		delete(r.bindings, userID)
	}
}

// Lookup returns the live channel for userID if present.
func (r *Registry) Lookup(userID string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bindings[userID]
	if !ok {
		return nil, false
	}
	return b.conn, true
}

// Connected reports the number of bound users.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bindings)
}

// Send writes frame to userID's socket if one is bound and reports whether
// delivery occurred. Fire-and-forget: an absent recipient is not an error,
// and a dead socket is closed and unbound.
func (r *Registry) Send(userID string, frame models.OutboundFrame) bool {
	r.mu.RLock()
	b := r.bindings[userID]
	r.mu.RUnlock()
	if b == nil {
		return false
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		r.log.Error("marshal outbound frame", zap.Error(err))
		return false
	}

	b.mu.Lock()
	err = b.conn.WriteMessage(websocket.TextMessage, payload)
	b.mu.Unlock()
	if err != nil {
		r.log.Warn("websocket write failed, dropping binding",
			zap.String("user_id", userID), zap.Error(err))
		_ = b.conn.Close()
		r.Unbind(userID, b.conn)
		observability.IncWSEvent("ws_error")
		return false
	}
	return true
}
