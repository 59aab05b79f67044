package notifier

import (
	"context"
	"log/slog"
	"time"

	"wrestlenews/internal/domain"
)

// LogDispatcher только пишет уведомления в лог.
type LogDispatcher struct {
	log *slog.Logger
}

func NewLogDispatcher(log *slog.Logger) *LogDispatcher {
	return &LogDispatcher{log: log.With(slog.String("component", "notifier"))}
}

func (d *LogDispatcher) PublishBreaking(ctx context.Context, a domain.Article) error {
	ev := newEvent(a, time.Now())
	d.log.Info("Breaking news",
		slog.String("event_id", ev.EventID),
		slog.String("id", a.ID),
		slog.String("title", a.Title),
		slog.String("source", a.Source.Key()),
		slog.Int("corroboration", a.Corroboration()),
	)
	record("log", nil)
	return nil
}

func (d *LogDispatcher) Close() error { return nil }
