package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eapache/go-resiliency/retrier"
	"golang.org/x/sync/errgroup"

	"wrestlenews/internal/config"
	"wrestlenews/internal/domain"
	"wrestlenews/internal/metrics"
)

// SourceResult - итог загрузки одного источника.
type SourceResult struct {
	Source   domain.SourceDescriptor
	Payloads []domain.RawPayload
	Err      error
	Attempts int
	Duration time.Duration
}

// Coordinator выполняет параллельную загрузку источников с изоляцией ошибок,
// таймаутом на источник и повторами временных сбоев.
type Coordinator struct {
	fetcher       SourceFetcher
	maxConcurrent int
	maxRetries    int
	backoff       time.Duration
	log           *slog.Logger
}

// NewCoordinator создает координатор загрузки.
func NewCoordinator(fetcher SourceFetcher, cfg config.EngineConfig, log *slog.Logger) *Coordinator {
	return &Coordinator{
		fetcher:       fetcher,
		maxConcurrent: cfg.MaxConcurrentFetches,
		maxRetries:    cfg.MaxRetries,
		backoff:       cfg.RetryBackoff.Duration,
		log:           log.With(slog.String("component", "coordinator")),
	}
}

// FetchAll загружает все источники параллельно, но не более maxConcurrent одновременно.
// Ошибка одного источника не прерывает остальные: она возвращается в его SourceResult.
// При отмене ctx незапущенные загрузки пропускаются, а FetchAll сразу возвращает
// domain.ErrRefreshCancelled; результаты уже идущих загрузок отбрасываются.
func (c *Coordinator) FetchAll(ctx context.Context, sources []domain.SourceDescriptor, timeout time.Duration) ([]SourceResult, error) {
	const op = "usecase.Coordinator.FetchAll"
	if len(sources) == 0 {
		return nil, nil
	}
	limit := len(sources)
	if c.maxConcurrent > 0 && c.maxConcurrent < limit {
		limit = c.maxConcurrent
	}
	results := make([]SourceResult, len(sources))
	done := make(chan struct{})
	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(limit)
		for i, src := range sources {
			if ctx.Err() != nil {
				results[i] = SourceResult{Source: src, Err: domain.ErrRefreshCancelled}
				continue
			}
			g.Go(func() error {
				if ctx.Err() != nil {
					results[i] = SourceResult{Source: src, Err: domain.ErrRefreshCancelled}
					return nil
				}
				results[i] = c.fetchOne(ctx, src, timeout)
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
		return results, nil
	case <-ctx.Done():
		c.log.Warn("Fetch batch cancelled",
			slog.String("op", op),
			slog.Any("error", context.Cause(ctx)),
		)
		return nil, fmt.Errorf("%w: %w", domain.ErrRefreshCancelled, context.Cause(ctx))
	}
}

// fetchOne загружает один источник. Таймаут ограничивает всю задачу вместе с повторами
// и не зависит от отмены обновления: начатая загрузка доходит до конца.
func (c *Coordinator) fetchOne(parent context.Context, src domain.SourceDescriptor, timeout time.Duration) SourceResult {
	key := src.Key()
	log := c.log.With(slog.String("source", key), slog.String("url", src.FeedURL))
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), timeout)
	defer cancel()

	var payloads []domain.RawPayload
	attempts := 0
	r := retrier.New(retrier.ExponentialBackoff(c.maxRetries, c.backoff), fetchClassifier{parent: parent})
	err := r.RunCtx(ctx, func(ctx context.Context) error {
		attempts++
		var err error
		payloads, err = c.fetcher.Fetch(ctx, src)
		if err != nil {
			log.Debug("Fetch attempt failed",
				slog.Int("attempt", attempts),
				slog.Any("error", err),
			)
		}
		return err
	})
	result := SourceResult{Source: src, Attempts: attempts, Duration: time.Since(start)}
	if err != nil {
		if !domain.Terminal(err) && !errors.Is(err, domain.ErrSourceUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		result.Err = &domain.SourceError{Source: key, Err: err}
		metrics.SourceFetches.WithLabelValues(key, "error").Inc()
		log.Warn("Source fetch failed",
			slog.String("stage", "fetch"),
			slog.Int("attempts", attempts),
			slog.Bool("terminal", domain.Terminal(err)),
			slog.Any("error", err),
		)
		return result
	}
	result.Payloads = payloads
	metrics.SourceFetches.WithLabelValues(key, "ok").Inc()
	log.Info("Source fetched",
		slog.String("stage", "fetch"),
		slog.Int("count", len(payloads)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", result.Duration),
	)
	return result
}

// fetchClassifier решает, повторять ли попытку. Неустранимые ошибки и отмена
// обновления прекращают повторы.
type fetchClassifier struct {
	parent context.Context
}

func (f fetchClassifier) Classify(err error) retrier.Action {
	switch {
	case err == nil:
		return retrier.Succeed
	case domain.Terminal(err), f.parent.Err() != nil:
		return retrier.Fail
	}
	return retrier.Retry
}
