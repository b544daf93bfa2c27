package client

import (
	"context"
	"time"

	"messaging-service/internal/models"
)

// DefaultPollInterval is the unread-count poll fallback cadence.
const DefaultPollInterval = 30 * time.Second

// UnreadWatcher runs a second, global controller instance whose only job is
// to refresh the unread count: every message push triggers a refetch, and a
// periodic poll covers pushes lost to a dropped socket.
type UnreadWatcher struct {
	controller *Controller
	fetch      func(ctx context.Context) (int, error)
	onCount    func(int)
	interval   time.Duration
}

// NewUnreadWatcher wires a controller to an unread-count fetch. The
// controller's OnMessage is claimed by the watcher.
func NewUnreadWatcher(controller *Controller, fetch func(ctx context.Context) (int, error), onCount func(int)) *UnreadWatcher {
	return &UnreadWatcher{
		controller: controller,
		fetch:      fetch,
		onCount:    onCount,
		interval:   DefaultPollInterval,
	}
}

// WithPollInterval overrides the poll cadence.
func (w *UnreadWatcher) WithPollInterval(interval time.Duration) *UnreadWatcher {
	if interval > 0 {
		w.interval = interval
	}
	return w
}

// Run serves the socket and the poll loop until ctx is cancelled.
func (w *UnreadWatcher) Run(ctx context.Context) {
	w.controller.OnMessage = func(_ models.Message) {
		w.refresh(ctx)
	}
	go w.controller.Run(ctx)

	w.refresh(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.refresh(ctx)
		}
	}
}

func (w *UnreadWatcher) refresh(ctx context.Context) {
	if w.fetch == nil {
		return
	}
	count, err := w.fetch(ctx)
	if err != nil {
		return
	}
	if w.onCount != nil {
		w.onCount(count)
	}
}
