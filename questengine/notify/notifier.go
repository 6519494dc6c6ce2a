// Package notify is the boundary to whatever surface renders user-facing
// toasts. The engine fires and forgets; rendering is someone else's job.
package notify

import (
	"context"
	"log/slog"
)

type Kind string

const (
	KindQuestCompleted Kind = "quest_completed"
	KindRewardClaimed  Kind = "reward_claimed"
	KindDailyBonus     Kind = "daily_bonus"
)

type Notifier interface {
	Notify(ctx context.Context, userID string, kind Kind, message string)
}

type logNotifier struct{}

// NewLog returns a Notifier that writes notifications to the log. Used by
// the daemon and anywhere no real presentation surface is attached.
func NewLog() Notifier { return logNotifier{} }

func (logNotifier) Notify(_ context.Context, userID string, kind Kind, message string) {
	slog.Info("Notification",
		slog.String("type", "quest"),
		slog.String("user_id", userID),
		slog.String("kind", string(kind)),
		slog.String("message", message))
}

// Func adapts a plain function to the Notifier interface.
type Func func(ctx context.Context, userID string, kind Kind, message string)

func (f Func) Notify(ctx context.Context, userID string, kind Kind, message string) {
	f(ctx, userID, kind, message)
}
