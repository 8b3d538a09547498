package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/database"
	"github.com/bitebase/intelligence-engine/pkg/models"
)

// HistoryRepository provides data access for the append-only query history
// log. Entries are created once per processed query; only ApplyFeedback
// mutates an entry after creation, and only its feedback fields.
type HistoryRepository interface {
	Create(ctx context.Context, entry *models.QueryHistoryEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.QueryHistoryEntry, error)
	List(ctx context.Context, filters models.HistoryFilters) ([]*models.QueryHistoryEntry, int, error)
	// ApplyFeedback attaches feedback fields to the entry and folds the
	// helpfulness signal into the owning pattern's counters in one
	// transaction. Returns apperrors.ErrNotFound for an unknown query ID.
	ApplyFeedback(ctx context.Context, fb *models.Feedback) error
	Stats(ctx context.Context) (*models.HistoryStats, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type historyRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository on the engine store.
func NewHistoryRepository(db *database.DB) HistoryRepository {
	return &historyRepository{db: db}
}

var _ HistoryRepository = (*historyRepository)(nil)

const historyColumns = `
	id, user_id, restaurant_id,
	raw_query, normalized_query,
	intent_category, specific_intent, generated_sql,
	success, cached, confidence, error_message,
	processing_ms, execution_ms, row_count,
	rating, feedback_text, was_helpful,
	created_at`

func (r *historyRepository) Create(ctx context.Context, entry *models.QueryHistoryEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO nlq_query_history (` + historyColumns + `
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`

	_, err := r.db.Exec(ctx, query,
		entry.ID,
		entry.UserID,
		entry.RestaurantID,
		entry.RawQuery,
		entry.NormalizedQuery,
		entry.IntentCategory,
		entry.SpecificIntent,
		entry.GeneratedSQL,
		entry.Success,
		entry.Cached,
		entry.Confidence,
		entry.ErrorMessage,
		entry.ProcessingMs,
		entry.ExecutionMs,
		entry.RowCount,
		entry.Rating,
		entry.FeedbackText,
		entry.WasHelpful,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create query history entry: %w", err)
	}

	return nil
}

func (r *historyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueryHistoryEntry, error) {
	query := `SELECT ` + historyColumns + ` FROM nlq_query_history WHERE id = $1`

	entry, err := scanHistoryEntry(r.db.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get query history entry: %w", err)
	}

	return entry, nil
}

func (r *historyRepository) List(ctx context.Context, filters models.HistoryFilters) ([]*models.QueryHistoryEntry, int, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	// User ID is always required for privacy scoping.
	if filters.UserID == "" {
		return nil, 0, fmt.Errorf("history listing requires a user ID")
	}

	conditions := []string{"user_id = $1"}
	args := []any{filters.UserID}
	argIdx := 2

	if filters.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, *filters.Since)
		argIdx++
	}

	if filters.Success != nil {
		conditions = append(conditions, fmt.Sprintf("success = $%d", argIdx))
		args = append(args, *filters.Success)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")

	// Count
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM nlq_query_history WHERE %s`, where)
	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count query history entries: %w", err)
	}

	// Data
	dataQuery := fmt.Sprintf(`
		SELECT %s
		FROM nlq_query_history
		WHERE %s
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, historyColumns, where, argIdx)

	args = append(args, limit)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list query history entries: %w", err)
	}
	defer rows.Close()

	var entries []*models.QueryHistoryEntry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan query history entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating query history entries: %w", err)
	}

	return entries, total, nil
}

// ApplyFeedback runs the read-modify-write for one feedback event as a
// single transaction. The helpfulness flag replaces the entry's execution
// outcome in the pattern's success counter; re-rating an entry swaps the
// previous signal out before the new one is added, so counters stay exact
// under repeated feedback.
func (r *historyRepository) ApplyFeedback(ctx context.Context, fb *models.Feedback) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin feedback transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		intentCategory string
		specificIntent string
		success        bool
		prevHelpful    *bool
	)
	err = tx.QueryRow(ctx, `
		SELECT intent_category, specific_intent, success, was_helpful
		FROM nlq_query_history
		WHERE id = $1
		FOR UPDATE`, fb.QueryID).Scan(&intentCategory, &specificIntent, &success, &prevHelpful)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load history entry for feedback: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE nlq_query_history
		SET rating = $1, feedback_text = $2, was_helpful = $3
		WHERE id = $4`,
		fb.Rating, fb.FeedbackText, fb.WasHelpful, fb.QueryID)
	if err != nil {
		return fmt.Errorf("failed to attach feedback to history entry: %w", err)
	}

	// Unknown-intent entries own no pattern row; their feedback only
	// annotates history.
	if models.IntentCategory(intentCategory).Valid() {
		priorOutcome := success
		if prevHelpful != nil {
			priorOutcome = *prevHelpful
		}

		successDelta := boolToCount(fb.WasHelpful) - boolToCount(priorOutcome)
		feedbackDelta := 0
		if prevHelpful == nil {
			feedbackDelta = 1
		}
		helpfulDelta := boolToCount(fb.WasHelpful) - boolToCount(prevHelpful != nil && *prevHelpful)

		_, err = tx.Exec(ctx, `
			UPDATE nlq_query_patterns
			SET success_count  = success_count + $1,
			    feedback_count = feedback_count + $2,
			    helpful_count  = helpful_count + $3
			WHERE specific_intent = $4`,
			successDelta, feedbackDelta, helpfulDelta, specificIntent)
		if err != nil {
			return fmt.Errorf("failed to fold feedback into pattern counters: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit feedback transaction: %w", err)
	}

	return nil
}

func (r *historyRepository) Stats(ctx context.Context) (*models.HistoryStats, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE cached),
		       COALESCE(AVG(confidence), 0),
		       COALESCE(AVG(processing_ms), 0),
		       COALESCE(AVG(execution_ms), 0)
		FROM nlq_query_history`

	var stats models.HistoryStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalQueries,
		&stats.SuccessfulCount,
		&stats.CachedCount,
		&stats.AvgConfidence,
		&stats.AvgProcessingMs,
		&stats.AvgExecutionMs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history stats: %w", err)
	}

	return &stats, nil
}

func (r *historyRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM nlq_query_history WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old query history entries: %w", err)
	}

	return tag.RowsAffected(), nil
}

// scanHistoryEntry scans one row in historyColumns order.
func scanHistoryEntry(row pgx.Row) (*models.QueryHistoryEntry, error) {
	var entry models.QueryHistoryEntry
	err := row.Scan(
		&entry.ID,
		&entry.UserID,
		&entry.RestaurantID,
		&entry.RawQuery,
		&entry.NormalizedQuery,
		&entry.IntentCategory,
		&entry.SpecificIntent,
		&entry.GeneratedSQL,
		&entry.Success,
		&entry.Cached,
		&entry.Confidence,
		&entry.ErrorMessage,
		&entry.ProcessingMs,
		&entry.ExecutionMs,
		&entry.RowCount,
		&entry.Rating,
		&entry.FeedbackText,
		&entry.WasHelpful,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func boolToCount(b bool) int {
	if b {
		return 1
	}
	return 0
}
