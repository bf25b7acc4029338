package worker

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jwalitptl/herald/internal/model"
	"github.com/jwalitptl/herald/pkg/logger"
	"github.com/jwalitptl/herald/pkg/metrics"
)

// Config holds the delivery pool knobs.
type Config struct {
	Workers     int
	BatchSize   int
	IdleBackoff time.Duration
}

type deliveryService interface {
	ClaimBatch(ctx context.Context, limit int) ([]*model.Notification, error)
	ProcessSending(ctx context.Context, notification *model.Notification) (model.NotificationStatus, error)
}

// Pool runs a fixed set of independent polling workers. Workers share
// nothing in memory; the persisted job table coordinates them through
// the store's skip-locked claim, so a busy worker never blocks an idle
// one.
type Pool struct {
	svc     deliveryService
	config  Config
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewPool(svc deliveryService, config Config, logger *logger.Logger, metrics *metrics.Metrics) *Pool {
	if config.Workers <= 0 {
		panic("Workers must be greater than 0")
	}
	if config.BatchSize <= 0 {
		panic("BatchSize must be greater than 0")
	}
	if config.IdleBackoff <= 0 {
		panic("IdleBackoff must be greater than 0")
	}

	return &Pool{
		svc:     svc,
		config:  config,
		logger:  logger,
		metrics: metrics,
	}
}

// Start launches the workers and blocks until the context is cancelled
// and every worker has drained its current batch.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info("starting delivery pool", "workers", p.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.run(ctx, id)
		}(i)
	}

	wg.Wait()
	p.logger.Info("delivery pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	log := p.logger.WithFields(map[string]interface{}{"worker_id": id})
	log.Info("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info("worker shutting down")
			return
		default:
		}

		batch, err := p.svc.ClaimBatch(ctx, p.config.BatchSize)
		if err != nil {
			// Store faults are retryable at this loop, never fatal.
			log.Error(err, "failed to claim batch")
			p.idle(ctx)
			continue
		}

		p.metrics.ClaimedBatchSize.Observe(float64(len(batch)))

		if len(batch) == 0 {
			log.Debug("worker idle")
			p.idle(ctx)
			continue
		}

		log.Info("worker batch claimed", "batch_size", len(batch))

		for _, notification := range batch {
			p.processOne(ctx, log, notification)
		}
	}
}

// processOne contains every fault at the job boundary: an error or
// panic from one job is logged and never aborts the loop or touches
// sibling jobs.
func (p *Pool) processOne(ctx context.Context, log *logger.Logger, notification *model.Notification) {
	defer func() {
		if r := recover(); r != nil {
			log.Error(nil, "panic while processing notification",
				"notification_id", notification.ID.String(),
				"panic", r)
		}
	}()

	timer := prometheus.NewTimer(p.metrics.DeliveryLatency.WithLabelValues(string(notification.Channel)))
	defer timer.ObserveDuration()

	status, err := p.svc.ProcessSending(ctx, notification)
	if err != nil {
		log.Error(err, "failed to process notification",
			"notification_id", notification.ID.String(),
			"attempts", notification.Attempts)
		return
	}

	channel := string(notification.Channel)
	switch status {
	case model.NotificationStatusSent:
		p.metrics.NotificationsDelivered.WithLabelValues(channel).Inc()
	case model.NotificationStatusPending:
		p.metrics.NotificationsRetried.WithLabelValues(channel).Inc()
	case model.NotificationStatusFailed:
		p.metrics.NotificationsFailed.WithLabelValues(channel).Inc()
	}
}

func (p *Pool) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(p.config.IdleBackoff):
	}
}
