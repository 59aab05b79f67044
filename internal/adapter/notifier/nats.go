package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
)

// natsConn - часть *nats.Conn, используемая диспетчером.
type natsConn interface {
	Publish(subj string, data []byte) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSDispatcher публикует события в subject NATS.
type NATSDispatcher struct {
	conn    natsConn
	subject string
	timeout time.Duration
	log     *slog.Logger
}

func NewNATSDispatcher(cfg config.NotifierConfig, log *slog.Logger) (*NATSDispatcher, error) {
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	opts := []nats.Option{nats.Name("wrestlenews")}
	if cfg.Timeout.Duration > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout.Duration))
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats %s: %w", url, err)
	}
	return newNATSDispatcher(nc, cfg.Subject, cfg.Timeout.Duration, log), nil
}

func newNATSDispatcher(conn natsConn, subject string, timeout time.Duration, log *slog.Logger) *NATSDispatcher {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &NATSDispatcher{
		conn:    conn,
		subject: subject,
		timeout: timeout,
		log:     log.With(slog.String("component", "nats-notifier")),
	}
}

// PublishBreaking отправляет событие и ждет подтверждения доставки на сервер.
// Повторной отправки нет.
func (d *NATSDispatcher) PublishBreaking(ctx context.Context, a domain.Article) error {
	const op = "notifier.NATSDispatcher.PublishBreaking"
	ev, data, err := encodeEvent(a)
	if err != nil {
		record("nats", err)
		return fmt.Errorf("%s: %w", op, err)
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()
	if err = d.conn.Publish(d.subject, data); err == nil {
		err = d.conn.FlushWithContext(ctx)
	}
	record("nats", err)
	if err != nil {
		return fmt.Errorf("%s: publish to %s: %w", op, d.subject, err)
	}
	d.log.Info("Breaking event published",
		slog.String("op", op),
		slog.String("subject", d.subject),
		slog.String("event_id", ev.EventID),
		slog.String("id", a.ID),
	)
	return nil
}

func (d *NATSDispatcher) Close() error {
	d.conn.Close()
	return nil
}
