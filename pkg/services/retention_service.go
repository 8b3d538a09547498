package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/config"
	"github.com/bitebase/intelligence-engine/pkg/metrics"
	"github.com/bitebase/intelligence-engine/pkg/repositories"
)

// DefaultRetentionDays is the fallback retention period for query history.
const DefaultRetentionDays = 90

// RetentionService prunes old query history on a schedule. Pattern aggregates
// are running totals, not per-event rows, so they are never pruned.
type RetentionService interface {
	// Prune removes history entries older than the retention period and
	// returns the number of deleted rows.
	Prune(ctx context.Context) (int64, error)

	// Start schedules pruning per the configured cron expression and kicks
	// off one prune in the background immediately.
	Start() error

	// Stop halts the scheduler and waits for a running prune to finish.
	Stop()
}

type retentionService struct {
	history repositories.HistoryRepository
	cfg     config.RetentionConfig
	cron    *cron.Cron
	logger  *zap.Logger
}

// NewRetentionService creates a retention service for the history store.
func NewRetentionService(
	history repositories.HistoryRepository,
	cfg config.RetentionConfig,
	logger *zap.Logger,
) RetentionService {
	return &retentionService{
		history: history,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.Named("retention-service"),
	}
}

var _ RetentionService = (*retentionService)(nil)

func (s *retentionService) Prune(ctx context.Context) (int64, error) {
	days := s.cfg.Days
	if days <= 0 {
		days = DefaultRetentionDays
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	deleted, err := s.history.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune query history: %w", err)
	}

	if deleted > 0 {
		metrics.RetentionDeleted.Add(float64(deleted))
		s.logger.Info("Retention cleanup completed",
			zap.Int("retention_days", days),
			zap.Int64("deleted", deleted))
	}

	return deleted, nil
}

func (s *retentionService) Start() error {
	_, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		if _, err := s.Prune(context.Background()); err != nil {
			s.logger.Error("Scheduled prune failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid retention schedule %q: %w", s.cfg.Schedule, err)
	}

	s.cron.Start()
	s.logger.Info("Retention scheduler started",
		zap.String("schedule", s.cfg.Schedule),
		zap.Int("retention_days", s.cfg.Days))

	// Catch up on startup rather than waiting for the first tick.
	go func() {
		if _, err := s.Prune(context.Background()); err != nil {
			s.logger.Error("Startup prune failed", zap.Error(err))
		}
	}()

	return nil
}

func (s *retentionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("Retention scheduler stopped")
}
