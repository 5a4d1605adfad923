package syncengine

import (
	"context"
	"log/slog"
)

// Notifier surfaces conditions the user should see: sync failures and
// connection loss.
type Notifier interface {
	Notify(level slog.Level, msg string)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(level slog.Level, msg string) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(context.Background(), level, msg, "notification", true)
}
