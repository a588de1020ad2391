package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/smart-plan-api/internal/models"
	"github.com/noah-isme/smart-plan-api/pkg/jobs"
)

// History write outcomes reported to metrics.
const (
	historyOutcomeStored    = "stored"
	historyOutcomeFailed    = "failed"
	historyOutcomeDiscarded = "discarded"
	historyOutcomeRejected  = "rejected"
)

var errHistoryDisabled = errors.New("plan history disabled")

type studyPlanWriter interface {
	Create(ctx context.Context, plan *models.StudyPlan) error
}

// PlanHistoryConfig tunes the background persistence workers.
type PlanHistoryConfig struct {
	Workers      int
	MaxRetries   int
	RetryDelay   time.Duration
	BufferSize   int
	WriteTimeout time.Duration
}

// PlanHistoryService persists generated plans off the request path.
type PlanHistoryService struct {
	repo    studyPlanWriter
	queue   *jobs.Queue[*models.StudyPlan]
	metrics *MetricsService
	logger  *zap.Logger
	timeout time.Duration
}

// NewPlanHistoryService builds the recorder and its worker queue. Call Start before Record.
func NewPlanHistoryService(repo studyPlanWriter, metrics *MetricsService, logger *zap.Logger, cfg PlanHistoryConfig) *PlanHistoryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	svc := &PlanHistoryService{repo: repo, metrics: metrics, logger: logger, timeout: cfg.WriteTimeout}
	svc.queue = jobs.NewQueue("plan-history", svc.handle, jobs.QueueConfig[*models.StudyPlan]{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		OnDiscard:  svc.discard,
		Logger:     logger,
	})
	return svc
}

// Start launches the workers.
func (s *PlanHistoryService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains buffered writes and stops the workers.
func (s *PlanHistoryService) Stop() {
	s.queue.Stop()
}

// Record schedules plan for persistence. The caller is never blocked on the database.
func (s *PlanHistoryService) Record(plan *models.StudyPlan) error {
	if s == nil {
		return errHistoryDisabled
	}
	if plan == nil {
		return errors.New("study plan is nil")
	}
	err := s.queue.Enqueue(jobs.Job[*models.StudyPlan]{ID: plan.ID, Payload: plan})
	if err != nil {
		s.metrics.RecordHistoryWrite(historyOutcomeRejected)
		s.logger.Warn("plan history enqueue rejected", zap.String("plan_id", plan.ID), zap.Error(err))
	}
	return err
}

func (s *PlanHistoryService) handle(ctx context.Context, job jobs.Job[*models.StudyPlan]) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := s.repo.Create(ctx, job.Payload)
	s.metrics.ObserveDBQuery("study_plans_insert", time.Since(start))
	if err != nil {
		s.metrics.RecordHistoryWrite(historyOutcomeFailed)
		return err
	}
	s.metrics.RecordHistoryWrite(historyOutcomeStored)
	return nil
}

func (s *PlanHistoryService) discard(job jobs.Job[*models.StudyPlan], err error) {
	s.metrics.RecordHistoryWrite(historyOutcomeDiscarded)
	s.logger.Error("plan history write dropped",
		zap.String("plan_id", job.ID),
		zap.String("student_id", job.Payload.StudentID),
		zap.Int("attempts", job.Attempt),
		zap.Error(err),
	)
}
