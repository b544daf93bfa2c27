package observability

import (
	"net"
	"net/http"
	"strings"
)

// Request helpers used when stamping socket bindings and audit events with
// caller metadata. Headers are set by the edge proxy; absence is fine.

// DeviceIDFromRequest returns the caller's device id header, empty when the
// client did not send one.
func DeviceIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Device-Id")
}

// RequestIDFromRequest returns the edge-assigned request id, empty when the
// request arrived without one.
func RequestIDFromRequest(r *http.Request) string {
	return r.Header.Get("X-Request-Id")
}

// IPFromRequest resolves the client address, preferring the first hop of
// X-Forwarded-For over the raw peer address.
func IPFromRequest(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
