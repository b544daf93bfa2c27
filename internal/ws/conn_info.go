package ws

import "time"

// ConnInfo carries per-connection identity and correlation metadata for
// lifecycle events.
type ConnInfo struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}
