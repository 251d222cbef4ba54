package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"ausgaben/internal/amqp"
	"ausgaben/internal/services"
	"ausgaben/internal/storage"
)

// Syncer runs one mirror refresh.
type Syncer interface {
	Sync(ctx context.Context, source string) (storage.SyncRun, error)
	HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// Consumer delivers expense-changed events until ctx is done.
type Consumer interface {
	ConsumeExpenseChanged(ctx context.Context, handler func(context.Context, *amqp.ExpenseChangedMessage) error) error
}

// SyncWorker refreshes the local mirror on a cron schedule and whenever an
// expense-changed event arrives.
type SyncWorker struct {
	syncer   Syncer
	consumer Consumer
	schedule cron.Schedule
	spec     string
	logger   *slog.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
	done    chan struct{}
}

// NewSyncWorker parses spec as a standard five-field cron expression. An
// empty spec disables the schedule; a nil consumer disables events.
func NewSyncWorker(syncer Syncer, consumer Consumer, spec string, logger *slog.Logger) (*SyncWorker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w := &SyncWorker{syncer: syncer, consumer: consumer, spec: spec, logger: logger}
	if spec != "" {
		sched, err := cron.ParseStandard(spec)
		if err != nil {
			return nil, fmt.Errorf("parse sync schedule %q: %w", spec, err)
		}
		w.schedule = sched
	}
	return w, nil
}

// Start runs a startup sync, then the schedule and the event consumer.
// It returns once both are started.
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("sync worker is already running")
	}

	if _, err := w.syncer.Sync(ctx, services.SourceStartup); err != nil {
		w.logger.WarnContext(ctx, "Startup sync failed, waiting for next trigger", "error", err)
	}

	w.cron = cron.New()
	if w.schedule != nil {
		w.cron.Schedule(w.schedule, cron.FuncJob(func() { w.runScheduled(ctx) }))
		w.logger.InfoContext(ctx, "Sync schedule active", "schedule", w.spec)
	}
	w.cron.Start()

	w.done = make(chan struct{})
	if w.consumer != nil {
		go w.consume(ctx)
	} else {
		close(w.done)
	}

	w.running = true
	return nil
}

func (w *SyncWorker) runScheduled(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := w.syncer.Sync(ctx, services.SourceSchedule); err != nil {
		w.logger.ErrorContext(ctx, "Scheduled sync failed", "error", err)
	}
}

func (w *SyncWorker) consume(ctx context.Context) {
	defer close(w.done)
	err := w.consumer.ConsumeExpenseChanged(ctx, w.syncer.HandleExpenseChanged)
	if err != nil && !errors.Is(err, context.Canceled) {
		w.logger.ErrorContext(ctx, "Event consumer stopped", "error", err)
	}
}

// Stop waits for a running scheduled sync and for the consumer to return.
// The consumer stops when the context passed to Start is cancelled.
func (w *SyncWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	cronDone := w.cron.Stop()
	done := w.done
	w.mu.Unlock()

	select {
	case <-cronDone.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		w.logger.Info("Sync worker stopped gracefully")
		return nil
	case <-ctx.Done():
		w.logger.Warn("Sync worker stop timed out")
		return ctx.Err()
	}
}

func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
