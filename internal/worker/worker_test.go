package worker

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"wrestlenews/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingRefresher с release блокирует Refresh до вызова CancelRefresh
// и не реагирует на ctx, как общий цикл менеджера.
type countingRefresher struct {
	calls     atomic.Int32
	cancels   atomic.Int32
	release   chan struct{}
	closeOnce sync.Once
}

func (r *countingRefresher) Refresh(ctx context.Context) (domain.FeedState, error) {
	r.calls.Add(1)
	if r.release != nil {
		<-r.release
		return domain.FeedState{}, domain.ErrRefreshCancelled
	}
	return domain.FeedState{Outcome: domain.OutcomeSuccess}, nil
}

func (r *countingRefresher) CancelRefresh() bool {
	r.cancels.Add(1)
	if r.release == nil {
		return false
	}
	r.closeOnce.Do(func() { close(r.release) })
	return true
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWorker_RefreshesOnStart(t *testing.T) {
	r := &countingRefresher{}
	w := New(r, "@every 1h", discardLogger())

	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.WithinDuration(t, time.Now().Add(time.Hour), w.NextRun(), time.Minute)
}

func TestWorker_RunsOnSchedule(t *testing.T) {
	r := &countingRefresher{}
	w := New(r, "@every 1s", discardLogger())

	require.NoError(t, w.Start())
	defer w.Stop()

	assert.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 3*time.Second, 10*time.Millisecond)
}

func TestWorker_InvalidSchedule(t *testing.T) {
	w := New(&countingRefresher{}, "every now and then", discardLogger())

	err := w.Start()

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid schedule")
}

func TestWorker_StopCancelsRunningRefresh(t *testing.T) {
	r := &countingRefresher{release: make(chan struct{})}
	w := New(r, "@every 1h", discardLogger())
	require.NoError(t, w.Start())
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, time.Second, 5*time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return while a refresh was running")
	}
	assert.Equal(t, int32(1), r.cancels.Load())
}

func TestWorker_StopWithoutStart(t *testing.T) {
	w := New(&countingRefresher{}, "@every 1h", discardLogger())
	assert.NotPanics(t, w.Stop)
}
