package worker

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/pkg/logger"
	"github.com/jwalitptl/herald/pkg/metrics"
)

// fakeDeliveryService hands out pending jobs in batches and records who
// processed what. Claims are disjoint by construction, mirroring the
// store's locked claim.
type fakeDeliveryService struct {
	mu        sync.Mutex
	queue     []*model.Notification
	processed map[uuid.UUID]int
	panicOn   uuid.UUID
	done      chan struct{}
	total     int
}

func newFakeDeliveryService(jobs int) *fakeDeliveryService {
	svc := &fakeDeliveryService{
		processed: make(map[uuid.UUID]int),
		done:      make(chan struct{}),
		total:     jobs,
	}
	for i := 0; i < jobs; i++ {
		svc.queue = append(svc.queue, &model.Notification{
			ID:      uuid.New(),
			Message: "job",
			Status:  model.NotificationStatusPending,
			Channel: model.ChannelInApp,
			UserID:  uuid.New(),
		})
	}
	return svc
}

func (s *fakeDeliveryService) ClaimBatch(_ context.Context, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.queue) {
		limit = len(s.queue)
	}
	batch := s.queue[:limit]
	s.queue = s.queue[limit:]
	return batch, nil
}

func (s *fakeDeliveryService) ProcessSending(_ context.Context, n *model.Notification) (model.NotificationStatus, error) {
	s.mu.Lock()
	s.processed[n.ID]++
	count := len(s.processed)
	s.mu.Unlock()

	if count == s.total {
		close(s.done)
	}
	if n.ID == s.panicOn {
		panic("sender exploded")
	}
	return model.NotificationStatusSent, nil
}

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func testConfig() Config {
	return Config{Workers: 4, BatchSize: 3, IdleBackoff: 10 * time.Millisecond}
}

func startPool(t *testing.T, svc *fakeDeliveryService, cfg Config) (cancel func(), stopped chan struct{}) {
	t.Helper()
	pool := NewPool(svc, cfg, testLogger(), metrics.New("herald_test"))

	ctx, cancelCtx := context.WithCancel(context.Background())
	stopped = make(chan struct{})
	go func() {
		pool.Start(ctx)
		close(stopped)
	}()
	return cancelCtx, stopped
}

func TestPoolProcessesEveryJobExactlyOnce(t *testing.T) {
	svc := newFakeDeliveryService(50)
	cancel, stopped := startPool(t, svc, testConfig())

	select {
	case <-svc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not drain the queue in time")
	}

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("pool did not stop after cancellation")
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()
	require.Len(t, svc.processed, 50)
	for id, count := range svc.processed {
		assert.Equal(t, 1, count, "notification %s processed more than once", id)
	}
}

func TestPoolSurvivesJobPanic(t *testing.T) {
	svc := newFakeDeliveryService(10)
	svc.panicOn = svc.queue[0].ID
	cancel, stopped := startPool(t, svc, testConfig())

	select {
	case <-svc.done:
	case <-time.After(5 * time.Second):
		t.Fatal("a panicking job took down its worker")
	}

	cancel()
	<-stopped

	svc.mu.Lock()
	defer svc.mu.Unlock()
	assert.Len(t, svc.processed, 10)
}

func TestPoolStopsOnCancelledContext(t *testing.T) {
	svc := newFakeDeliveryService(0)
	cancel, stopped := startPool(t, svc, testConfig())

	cancel()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("idle pool did not stop after cancellation")
	}
}

func TestNewPoolRejectsBadConfig(t *testing.T) {
	svc := newFakeDeliveryService(0)

	assert.Panics(t, func() {
		NewPool(svc, Config{Workers: 0, BatchSize: 1, IdleBackoff: time.Second}, testLogger(), metrics.New("herald_test"))
	})
	assert.Panics(t, func() {
		NewPool(svc, Config{Workers: 1, BatchSize: 0, IdleBackoff: time.Second}, testLogger(), metrics.New("herald_test"))
	})
	assert.Panics(t, func() {
		NewPool(svc, Config{Workers: 1, BatchSize: 1}, testLogger(), metrics.New("herald_test"))
	})
}
