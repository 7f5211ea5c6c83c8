package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/grademonitor-api/internal/models"
	"github.com/noah-isme/grademonitor-api/pkg/jobs"
)

// JobTypeMonitorChanges identifies change-set deliveries on the queue.
const JobTypeMonitorChanges = "monitor.changes"

type changePersister interface {
	Persist(ctx context.Context, batch models.ChangeBatch) error
}

// DeliveryConfig sizes the delivery queue.
type DeliveryConfig struct {
	Workers int
	Buffer  int
	Timeout time.Duration
}

// DeliveryService hands flushed change-sets to a background queue. Delivery
// is fire-and-forget: a failed batch is logged and dropped.
type DeliveryService struct {
	queue     *jobs.Queue
	persister changePersister
	metrics   *MetricsService
	logger    *zap.Logger
}

// NewDeliveryService constructs the service and its queue. Call Start before
// the first delivery.
func NewDeliveryService(persister changePersister, metrics *MetricsService, logger *zap.Logger, cfg DeliveryConfig) *DeliveryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DeliveryService{persister: persister, metrics: metrics, logger: logger}
	s.queue = jobs.NewQueue("monitor-delivery", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.Buffer,
		JobTimeout: cfg.Timeout,
		Logger:     logger,
		OnFailure: func(job jobs.Job, err error) {
			logger.Warn("monitor changes dropped", zap.String("job_id", job.ID), zap.Error(err))
		},
	})
	return s
}

// Start launches the delivery workers.
func (s *DeliveryService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop waits for queued deliveries to finish.
func (s *DeliveryService) Stop() {
	s.queue.Stop()
}

// Deliver enqueues a batch without waiting for it to be stored. It never
// blocks: when the buffer is full the batch is dropped and counted.
func (s *DeliveryService) Deliver(batch models.ChangeBatch) {
	job := jobs.Job{ID: uuid.NewString(), Type: JobTypeMonitorChanges, Payload: batch}
	if err := s.queue.TryEnqueue(job); err != nil {
		s.metrics.ObserveDroppedDelivery()
		s.logger.Warn("monitor changes not queued",
			zap.Int64("user_id", batch.Scope.UserID),
			zap.Int64("course_id", batch.Scope.CourseID),
			zap.Error(err),
		)
	}
}

func (s *DeliveryService) handle(ctx context.Context, job jobs.Job) error {
	batch, ok := job.Payload.(models.ChangeBatch)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", job.Payload, job.Type)
	}
	start := time.Now()
	err := s.persister.Persist(ctx, batch)
	s.metrics.ObserveDelivery(err, time.Since(start))
	return err
}
