package tui

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notification is the latest message shown in the status line.
type Notification struct {
	Kind    string
	Title   string
	Message string
	At      time.Time
}

// StatusNotifier keeps the most recent Store notification for the status
// line. Store calls run in tea.Cmd goroutines, so access is synchronised.
type StatusNotifier struct {
	logger *slog.Logger

	mu     sync.Mutex
	latest Notification
	seq    uint64
}

// NewStatusNotifier constructs a notifier. logger may be nil.
func NewStatusNotifier(logger *slog.Logger) *StatusNotifier {
	return &StatusNotifier{logger: logger}
}

// Notify records a notification.
func (n *StatusNotifier) Notify(ctx context.Context, kind, title, message string) {
	if n.logger != nil {
		n.logger.Log(ctx, slog.LevelInfo, "notify", slog.String("kind", kind), slog.String("title", title), slog.String("message", message))
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.seq++
	n.latest = Notification{Kind: kind, Title: title, Message: message, At: time.Now()}
}

// Latest returns the last notification and a counter that grows with every
// call to Notify.
func (n *StatusNotifier) Latest() (Notification, uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.latest, n.seq
}
