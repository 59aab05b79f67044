package notifier

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
	"wrestlenews/internal/metrics"
	"wrestlenews/internal/usecase"
)

const (
	eventBreaking  = "breaking"
	defaultTimeout = 5 * time.Second
)

// Dispatcher публикует уведомления о срочных новостях во внешнюю систему.
type Dispatcher interface {
	usecase.BreakingDispatcher
	Close() error
}

// Event - конверт уведомления, уходящий подписчикам.
type Event struct {
	EventID   string         `json:"event_id"`
	Type      string         `json:"type"`
	EmittedAt time.Time      `json:"emitted_at"`
	Article   domain.Article `json:"article"`
}

func newEvent(a domain.Article, now time.Time) Event {
	return Event{
		EventID:   uuid.NewString(),
		Type:      eventBreaking,
		EmittedAt: now.UTC(),
		Article:   a,
	}
}

func encodeEvent(a domain.Article) (Event, []byte, error) {
	ev := newEvent(a, time.Now())
	data, err := json.Marshal(ev)
	if err != nil {
		return Event{}, nil, fmt.Errorf("failed to encode event for article %s: %w", a.ID, err)
	}
	return ev, data, nil
}

// New создает диспетчер по драйверу из конфигурации: log, nats или kafka.
func New(cfg config.NotifierConfig, log *slog.Logger) (Dispatcher, error) {
	const op = "notifier.New"
	switch cfg.Driver {
	case "", "log":
		return NewLogDispatcher(log), nil
	case "nats":
		d, err := NewNATSDispatcher(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return d, nil
	case "kafka":
		d, err := NewKafkaDispatcher(cfg, log)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("%s: unsupported notifier driver %q", op, cfg.Driver)
}

func record(driver string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.Notifications.WithLabelValues(driver, status).Inc()
}
