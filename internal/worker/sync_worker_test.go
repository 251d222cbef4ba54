package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ausgaben/internal/amqp"
	"ausgaben/internal/services"
	"ausgaben/internal/storage"
)

type countingSyncer struct {
	mu      sync.Mutex
	sources []string
	handled []*amqp.ExpenseChangedMessage
	err     error
}

func (s *countingSyncer) Sync(_ context.Context, source string) (storage.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources = append(s.sources, source)
	return storage.SyncRun{Source: source}, s.err
}

func (s *countingSyncer) HandleExpenseChanged(_ context.Context, msg *amqp.ExpenseChangedMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handled = append(s.handled, msg)
	return nil
}

func (s *countingSyncer) snapshot() ([]string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.sources...), len(s.handled)
}

type chanConsumer struct {
	msgs chan *amqp.ExpenseChangedMessage
}

func (c *chanConsumer) ConsumeExpenseChanged(ctx context.Context, handler func(context.Context, *amqp.ExpenseChangedMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m := <-c.msgs:
			_ = handler(ctx, m)
		}
	}
}

func TestNewSyncWorker_InvalidSchedule(t *testing.T) {
	_, err := NewSyncWorker(&countingSyncer{}, nil, "every day", nil)
	assert.Error(t, err)
}

func TestSyncWorker_StartupSyncAndEvents(t *testing.T) {
	syncer := &countingSyncer{}
	consumer := &chanConsumer{msgs: make(chan *amqp.ExpenseChangedMessage)}
	w, err := NewSyncWorker(syncer, consumer, "*/5 * * * *", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.True(t, w.IsRunning())
	assert.Error(t, w.Start(ctx))

	consumer.msgs <- amqp.NewExpenseChangedMessage("e1", amqp.ActionCreated, "test")

	require.Eventually(t, func() bool {
		_, handled := syncer.snapshot()
		return handled == 1
	}, time.Second, 10*time.Millisecond)

	sources, _ := syncer.snapshot()
	assert.Equal(t, []string{services.SourceStartup}, sources)

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	require.NoError(t, w.Stop(stopCtx))
	assert.False(t, w.IsRunning())
}

func TestSyncWorker_StartupFailureIsNotFatal(t *testing.T) {
	syncer := &countingSyncer{err: errors.New("upstream down")}
	w, err := NewSyncWorker(syncer, nil, "", nil)
	require.NoError(t, err)

	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
	require.NoError(t, w.Stop(context.Background()))
}

func TestSyncWorker_RunScheduledSkipsAfterCancel(t *testing.T) {
	syncer := &countingSyncer{}
	w, err := NewSyncWorker(syncer, nil, "@every 1h", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	w.runScheduled(ctx)
	cancel()
	w.runScheduled(ctx)

	sources, _ := syncer.snapshot()
	assert.Equal(t, []string{services.SourceSchedule}, sources)
}
