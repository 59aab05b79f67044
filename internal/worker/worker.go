package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"wrestlenews/internal/domain"
)

// Refresher запускает и отменяет цикл обновления ленты.
// Используется для внедрения зависимости в воркер.
type Refresher interface {
	Refresh(ctx context.Context) (domain.FeedState, error)
	CancelRefresh() bool
}

// Worker реализует фоновое обновление ленты по расписанию cron.
// Первое обновление выполняется сразу после запуска.
type Worker struct {
	refresher Refresher
	schedule  string
	cron      *cron.Cron
	entryID   cron.EntryID
	log       *slog.Logger
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

// New создает воркер. schedule - стандартное cron-выражение или дескриптор
// вида "@every 3m".
func New(refresher Refresher, schedule string, log *slog.Logger) *Worker {
	return &Worker{
		refresher: refresher,
		schedule:  schedule,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		log:       log.With(slog.String("component", "worker")),
	}
}

// Start регистрирует задачу в планировщике и запускает первое обновление.
func (w *Worker) Start() error {
	const op = "worker.Start"
	w.ctx, w.cancel = context.WithCancel(context.Background())
	id, err := w.cron.AddFunc(w.schedule, w.refresh)
	if err != nil {
		w.cancel()
		return fmt.Errorf("%s: invalid schedule %q: %w", op, w.schedule, err)
	}
	w.entryID = id
	w.cron.Start()
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.refresh()
	}()
	w.log.Info("Refresh worker started",
		slog.String("op", op),
		slog.String("schedule", w.schedule),
		slog.Time("next_run", w.NextRun()),
	)
	return nil
}

// Stop останавливает планировщик и отменяет текущее обновление через
// CancelRefresh. Отмена ctx только прекращает ожидание общего цикла.
// Возвращает управление после завершения запущенных задач.
func (w *Worker) Stop() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	if w.refresher.CancelRefresh() {
		w.log.Info("Running refresh cancelled")
	}
	<-w.cron.Stop().Done()
	w.wg.Wait()
	w.log.Info("Worker stopped")
}

// NextRun возвращает время следующего запланированного обновления.
func (w *Worker) NextRun() time.Time {
	return w.cron.Entry(w.entryID).Next
}

func (w *Worker) refresh() {
	if w.ctx.Err() != nil {
		return
	}
	start := time.Now()
	state, err := w.refresher.Refresh(w.ctx)
	switch {
	case errors.Is(err, domain.ErrRefreshCancelled):
		w.log.Warn("Scheduled refresh cancelled", slog.Any("error", err))
	case err != nil:
		w.log.Error("Scheduled refresh failed",
			slog.Any("error", err),
			slog.Duration("duration", time.Since(start)),
		)
	default:
		w.log.Info("Scheduled refresh completed",
			slog.String("outcome", string(state.Outcome)),
			slog.Int("count", len(state.Articles)),
			slog.Uint64("version", state.Version),
			slog.Duration("duration", time.Since(start)),
		)
	}
}
