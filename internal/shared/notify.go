package shared

import (
	"context"
	"log/slog"
)

// Notifier delivers a user-facing message.
type Notifier interface {
	Notify(ctx context.Context, kind, title, message string)
}

// FlashNotifier turns notifications into session flash messages. Calls
// without a session in ctx go to Fallback, when set.
type FlashNotifier struct {
	Logger   *slog.Logger
	Fallback Notifier
}

// Notify queues a flash on the request session.
func (n FlashNotifier) Notify(ctx context.Context, kind, title, message string) {
	if n.Logger != nil {
		n.Logger.Debug("notify", slog.String("kind", kind), slog.String("title", title))
	}
	sess := SessionFromContext(ctx)
	if sess == nil {
		if n.Fallback != nil {
			n.Fallback.Notify(ctx, kind, title, message)
		}
		return
	}
	sess.AddFlash(FlashMessage{Kind: kind, Title: title, Message: message})
}

// LogNotifier writes notifications to a logger. Background jobs have no
// session to flash into.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify logs the notification, at error level for failures.
func (n LogNotifier) Notify(ctx context.Context, kind, title, message string) {
	if n.Logger == nil {
		return
	}
	level := slog.LevelInfo
	if kind == "error" {
		level = slog.LevelError
	}
	n.Logger.Log(ctx, level, title, slog.String("kind", kind), slog.String("message", message))
}
