package logger

import (
	"log/slog"
	"time"
)

// LogQuery logs database operations
func LogQuery(query string, duration time.Duration, err error) {
	attrs := []any{
		slog.String("type", "db"),
		slog.Duration("took", duration),
	}

	if err != nil {
		slog.Error("Query failed", append(attrs,
			slog.String("query", query),
			slog.Any("error", err),
		)...)
	} else {
		slog.Debug("Query executed", append(attrs,
			slog.String("query", query),
		)...)
	}
}

// LogClaim logs reward claim outcomes
func LogClaim(userID, questID string, points int64, err error) {
	attrs := []any{
		slog.String("type", "quest"),
		slog.String("user_id", userID),
		slog.String("quest_id", questID),
		slog.Int64("points", points),
	}

	if err != nil {
		slog.Error("Claim failed", append(attrs, slog.Any("error", err))...)
	} else {
		slog.Info("Reward claimed", attrs...)
	}
}
