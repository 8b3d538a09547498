package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/metrics"
	"github.com/bitebase/intelligence-engine/pkg/models"
	"github.com/bitebase/intelligence-engine/pkg/repositories"
	"github.com/bitebase/intelligence-engine/pkg/services/workqueue"
)

// FeedbackService accepts user ratings for answered queries. Validation is
// synchronous so the submitter learns about bad requests immediately; the
// history attach and pattern fold happen out-of-band on a serialized applier,
// never on the query path.
type FeedbackService interface {
	// Submit validates the feedback and queues it for application. Returns
	// apperrors.ErrInvalidFeedback for out-of-range ratings and
	// apperrors.ErrNotFound when the query does not exist or does not
	// belong to userID.
	Submit(ctx context.Context, userID string, fb *models.Feedback) error

	// Close drains queued feedback. After Close, Submit rejects new events.
	Close(ctx context.Context) error
}

type feedbackService struct {
	history repositories.HistoryRepository
	queue   *workqueue.SerialQueue
	logger  *zap.Logger
}

// NewFeedbackService creates the feedback service on the given applier queue.
// The queue is shared with main so shutdown can drain it before closing the
// database pool.
func NewFeedbackService(
	history repositories.HistoryRepository,
	queue *workqueue.SerialQueue,
	logger *zap.Logger,
) FeedbackService {
	return &feedbackService{
		history: history,
		queue:   queue,
		logger:  logger.Named("feedback-service"),
	}
}

var _ FeedbackService = (*feedbackService)(nil)

func (s *feedbackService) Submit(ctx context.Context, userID string, fb *models.Feedback) error {
	if fb == nil {
		return fmt.Errorf("%w: missing body", apperrors.ErrInvalidFeedback)
	}
	if fb.Rating < 1 || fb.Rating > 5 {
		return fmt.Errorf("%w: rating must be between 1 and 5, got %d", apperrors.ErrInvalidFeedback, fb.Rating)
	}

	entry, err := s.history.GetByID(ctx, fb.QueryID)
	if err != nil {
		return err
	}
	// Users may only rate their own queries. Report "not found" rather than
	// "forbidden" so the endpoint does not confirm foreign query IDs.
	if entry.UserID != userID {
		return apperrors.ErrNotFound
	}

	event := *fb
	err = s.queue.Enqueue(workqueue.Job{
		Name: "apply-feedback",
		Run: func(ctx context.Context) error {
			defer metrics.FeedbackQueueDepth.Set(float64(s.queue.Depth()))
			return s.history.ApplyFeedback(ctx, &event)
		},
	})
	if err != nil {
		s.logger.Error("failed to queue feedback",
			zap.String("query_id", fb.QueryID.String()),
			zap.Error(err))
		return fmt.Errorf("%w: feedback applier rejected event: %v", apperrors.ErrStoreUnavailable, err)
	}

	metrics.FeedbackTotal.WithLabelValues(helpfulLabel(fb.WasHelpful)).Inc()
	metrics.FeedbackQueueDepth.Set(float64(s.queue.Depth()))

	s.logger.Debug("feedback queued",
		zap.String("query_id", fb.QueryID.String()),
		zap.Int("rating", fb.Rating),
		zap.Bool("was_helpful", fb.WasHelpful))

	return nil
}

func (s *feedbackService) Close(ctx context.Context) error {
	return s.queue.Stop(ctx)
}

func helpfulLabel(helpful bool) string {
	if helpful {
		return "true"
	}
	return "false"
}
