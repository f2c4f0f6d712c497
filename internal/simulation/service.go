package simulation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/storm-data-flood-service/internal/domain"
	"github.com/couchcryptid/storm-data-flood-service/internal/observability"
	"github.com/google/uuid"
)

// ErrHistoryDisabled is returned by history reads when no run store is configured.
var ErrHistoryDisabled = errors.New("run history disabled")

// RunStore persists completed runs.
type RunStore interface {
	SaveRun(ctx context.Context, run domain.RunRecord) error
	ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error)
	GetRun(ctx context.Context, id string) (domain.RunRecord, error)
}

// Publisher announces completed runs to downstream consumers.
type Publisher interface {
	PublishRun(ctx context.Context, run domain.RunRecord) error
}

// Service is the entry point for simulation requests. It stamps each run,
// records metrics and hands the result to the optional store and publisher.
type Service struct {
	runner    Runner
	store     RunStore
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	newID     func() string
}

// NewService creates a Service. store and publisher may be nil.
func NewService(runner Runner, store RunStore, publisher Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		runner:    runner,
		store:     store,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
		newID:     uuid.NewString,
	}
}

// CheckReadiness delegates to the runner.
func (s *Service) CheckReadiness(ctx context.Context) error {
	return s.runner.CheckReadiness(ctx)
}

// Run simulates a request. Failures to persist or publish the finished run are
// logged and never fail the request.
func (s *Service) Run(ctx context.Context, req domain.SimulationRequest) (domain.FloodSummary, error) {
	start := time.Now()
	s.metrics.RunsInFlight.Inc()
	defer s.metrics.RunsInFlight.Dec()

	summary, err := s.runner.Simulate(ctx, req)
	elapsed := time.Since(start)
	s.metrics.SimulationDuration.Observe(elapsed.Seconds())
	if err != nil {
		if errors.Is(err, domain.ErrInvalidRequest) {
			s.metrics.SimulationsTotal.WithLabelValues("invalid").Inc()
			s.logger.Info("simulation rejected", "error", err)
		} else {
			s.metrics.SimulationsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("simulation failed", "error", err, "duration", elapsed)
		}
		return domain.FloodSummary{}, err
	}

	id := s.newID()
	summary.Metadata.RunID = id
	s.metrics.SimulationsTotal.WithLabelValues("success").Inc()
	s.metrics.FloodedNodes.Observe(float64(summary.Metadata.FloodedNodes))
	s.logger.Info("simulation complete",
		"run_id", id,
		"total_nodes", summary.Metadata.TotalNodes,
		"flooded_nodes", summary.Metadata.FloodedNodes,
		"duration", elapsed,
	)

	run := domain.NewRunRecord(id, req, summary, elapsed)
	if s.store != nil {
		if err := s.store.SaveRun(ctx, run); err != nil {
			s.metrics.SinkErrors.WithLabelValues("store").Inc()
			s.logger.Warn("failed to save run", "run_id", id, "error", err)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishRun(ctx, run); err != nil {
			s.metrics.SinkErrors.WithLabelValues("kafka").Inc()
			s.logger.Warn("failed to publish run", "run_id", id, "error", err)
		}
	}
	return summary, nil
}

// Runs lists recent runs, newest first, without their summaries.
func (s *Service) Runs(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}
	return s.store.ListRuns(ctx, limit)
}

// RunByID returns one stored run with its summary.
func (s *Service) RunByID(ctx context.Context, id string) (domain.RunRecord, error) {
	if s.store == nil {
		return domain.RunRecord{}, ErrHistoryDisabled
	}
	return s.store.GetRun(ctx, id)
}
