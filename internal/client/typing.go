package client

import (
	"sync"
	"time"
)

// DefaultTypingExpiry is how long a "counterpart is typing" flag stays set
// without a fresh signal. Expiry is locally timed; the server never sends a
// stop on disconnect.
const DefaultTypingExpiry = 3 * time.Second

// TypingIndicator folds a stream of typing signals into one auto-expiring
// boolean for the viewed counterpart.
type TypingIndicator struct {
	// Expiry overrides DefaultTypingExpiry when positive.
	Expiry time.Duration
	// OnChange observes flag transitions.
	OnChange func(active bool)

	mu     sync.Mutex
	active bool
	timer  *time.Timer
}

// Observe records the next typing signal, superseding the previous one.
func (t *TypingIndicator) Observe(isTyping bool) {
	expiry := t.Expiry
	if expiry <= 0 {
		expiry = DefaultTypingExpiry
	}

	t.mu.Lock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	changed := t.active != isTyping
	t.active = isTyping
	if isTyping {
		t.timer = time.AfterFunc(expiry, t.expire)
	}
	t.mu.Unlock()

	if changed && t.OnChange != nil {
		t.OnChange(isTyping)
	}
}

// Active reports whether the counterpart is currently typing.
func (t *TypingIndicator) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.active
}

// Stop cancels any pending expiry, for view-exit cleanup.
func (t *TypingIndicator) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.active = false
}

func (t *TypingIndicator) expire() {
	t.mu.Lock()
	changed := t.active
	t.active = false
	t.timer = nil
	t.mu.Unlock()

	if changed && t.OnChange != nil {
		t.OnChange(false)
	}
}
