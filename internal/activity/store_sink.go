package activity

import (
	"context"
	"log/slog"

	"github.com/abhisek/stepwise/internal/store"
)

// StoreSink appends events to the activity_events table.
type StoreSink struct {
	repo   store.EventRepo
	logger *slog.Logger
}

// NewStoreSink creates a StoreSink.
func NewStoreSink(repo store.EventRepo, logger *slog.Logger) *StoreSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreSink{repo: repo, logger: logger}
}

func (s *StoreSink) Log(ctx context.Context, e Event) {
	err := s.repo.AppendActivity(context.WithoutCancel(ctx), store.ActivityEventData{
		Kind:      string(e.Kind),
		SessionID: e.SessionID,
		StudentID: e.StudentID,
		Detail:    e.Detail,
	})
	if err != nil {
		s.logger.Warn("failed to log activity event", "kind", e.Kind, "session_id", e.SessionID, "error", err)
	}
}
