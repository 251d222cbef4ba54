package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ausgaben/internal/amqp"
	"ausgaben/internal/core"
	"ausgaben/internal/storage"
)

// SnapshotSource fetches both collections from the authoritative store.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (core.Snapshot, error)
}

// Mirror is the local copy a sync replaces.
type Mirror interface {
	ReplaceSnapshot(ctx context.Context, snap core.Snapshot) error
	RecordSyncRun(ctx context.Context, run storage.SyncRun) (int64, error)
}

// Sync sources recorded in sync_runs.
const (
	SourceSchedule = "schedule"
	SourceStartup  = "startup"
	SourceEvent    = "event"
	SourceManual   = "manual"
)

// SyncService copies the record store into the local mirror. Runs never
// overlap.
type SyncService struct {
	source SnapshotSource
	mirror Mirror
	mu     sync.Mutex
	now    func() time.Time
	logger *slog.Logger
}

func NewSyncService(source SnapshotSource, mirror Mirror) *SyncService {
	return &SyncService{
		source: source,
		mirror: mirror,
		now:    time.Now,
		logger: slog.Default(),
	}
}

func (s *SyncService) WithLogger(l *slog.Logger) *SyncService {
	s.logger = l
	return s
}

// Sync fetches a snapshot and replaces the mirror with it. Every run,
// failed or not, is recorded.
func (s *SyncService) Sync(ctx context.Context, trigger string) (storage.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := storage.SyncRun{StartedAt: s.now(), Source: trigger}

	err := s.sync(ctx, &run)
	run.FinishedAt = s.now()
	if err != nil {
		run.Err = err.Error()
	}

	id, recErr := s.mirror.RecordSyncRun(context.WithoutCancel(ctx), run)
	if recErr != nil {
		s.logger.ErrorContext(ctx, "Failed to record sync run", "error", recErr)
	}
	run.ID = id

	if err != nil {
		s.logger.ErrorContext(ctx, "Sync failed", "source", trigger, "error", err)
		return run, err
	}
	s.logger.InfoContext(ctx, "Sync completed",
		"source", trigger,
		"expenses", run.Expenses,
		"categories", run.Categories,
		"duration_ms", run.FinishedAt.Sub(run.StartedAt).Milliseconds())
	return run, nil
}

func (s *SyncService) sync(ctx context.Context, run *storage.SyncRun) error {
	snap, err := s.source.FetchSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if err := s.mirror.ReplaceSnapshot(ctx, snap); err != nil {
		return fmt.Errorf("replace mirror: %w", err)
	}
	run.Expenses = len(snap.Expenses)
	run.Categories = len(snap.Categories)
	return nil
}

// HandleExpenseChanged re-syncs after an expense-changed event. Fetch
// failures are logged and the message acknowledged; the next scheduled run
// picks the change up. Mirror failures are returned so the message is
// redelivered.
func (s *SyncService) HandleExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	s.logger.InfoContext(ctx, "Processing expense changed event",
		"message_id", msg.ID,
		"expense_id", msg.ExpenseID,
		"action", msg.Action,
		"origin", msg.Source)

	_, err := s.Sync(ctx, SourceEvent)
	if err == nil || errors.Is(err, ErrFetch) {
		return nil
	}
	return err
}
