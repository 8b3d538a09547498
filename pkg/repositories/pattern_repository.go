package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bitebase/intelligence-engine/pkg/apperrors"
	"github.com/bitebase/intelligence-engine/pkg/database"
	"github.com/bitebase/intelligence-engine/pkg/models"
)

// PatternRepository provides data access for per-intent usage aggregates.
// Counters are stored raw and incremented in single statements so that
// concurrent updates never lose writes; derived rates live on the model.
type PatternRepository interface {
	// RecordUsage folds one query's outcome into its pattern's counters,
	// creating the pattern row on first use.
	RecordUsage(ctx context.Context, usage *models.PatternUsage) error
	// Get returns the aggregate for one specific intent, or
	// apperrors.ErrNotFound if the pattern has never been used.
	Get(ctx context.Context, specificIntent string) (*models.Pattern, error)
	// Top returns patterns ordered by usage descending, ties broken by
	// intent name, for suggestions and the metrics endpoint.
	Top(ctx context.Context, limit int) ([]*models.Pattern, error)
}

type patternRepository struct {
	db *database.DB
}

// NewPatternRepository creates a new pattern repository on the engine store.
func NewPatternRepository(db *database.DB) PatternRepository {
	return &patternRepository{db: db}
}

var _ PatternRepository = (*patternRepository)(nil)

const patternColumns = `
	specific_intent, category,
	usage_count, success_count, executed_count,
	feedback_count, helpful_count,
	confidence_total, execution_ms_total,
	last_used_at`

func (r *patternRepository) RecordUsage(ctx context.Context, usage *models.PatternUsage) error {
	if usage.SpecificIntent == "" {
		return fmt.Errorf("pattern usage requires a specific intent")
	}

	// Upsert-increment in one statement so concurrent recorders cannot
	// interleave a read-then-write.
	query := `
		INSERT INTO nlq_query_patterns (` + patternColumns + `
		) VALUES ($1, $2, 1, $3, $4, 0, 0, $5, $6, $7)
		ON CONFLICT (specific_intent) DO UPDATE SET
			usage_count        = nlq_query_patterns.usage_count + 1,
			success_count      = nlq_query_patterns.success_count + EXCLUDED.success_count,
			executed_count     = nlq_query_patterns.executed_count + EXCLUDED.executed_count,
			confidence_total   = nlq_query_patterns.confidence_total + EXCLUDED.confidence_total,
			execution_ms_total = nlq_query_patterns.execution_ms_total + EXCLUDED.execution_ms_total,
			last_used_at       = GREATEST(nlq_query_patterns.last_used_at, EXCLUDED.last_used_at)`

	executionMs := int64(0)
	if usage.Executed {
		executionMs = usage.ExecutionMs
	}

	_, err := r.db.Exec(ctx, query,
		usage.SpecificIntent,
		usage.Category,
		boolToCount(usage.Success),
		boolToCount(usage.Executed),
		usage.Confidence,
		executionMs,
		usage.UsedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record pattern usage: %w", err)
	}

	return nil
}

func (r *patternRepository) Get(ctx context.Context, specificIntent string) (*models.Pattern, error) {
	query := `SELECT ` + patternColumns + ` FROM nlq_query_patterns WHERE specific_intent = $1`

	pattern, err := scanPattern(r.db.QueryRow(ctx, query, specificIntent))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pattern: %w", err)
	}

	return pattern, nil
}

func (r *patternRepository) Top(ctx context.Context, limit int) ([]*models.Pattern, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT ` + patternColumns + `
		FROM nlq_query_patterns
		ORDER BY usage_count DESC, specific_intent ASC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list top patterns: %w", err)
	}
	defer rows.Close()

	var patterns []*models.Pattern
	for rows.Next() {
		pattern, err := scanPattern(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan pattern: %w", err)
		}
		patterns = append(patterns, pattern)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating patterns: %w", err)
	}

	return patterns, nil
}

// scanPattern scans one row in patternColumns order.
func scanPattern(row pgx.Row) (*models.Pattern, error) {
	var p models.Pattern
	err := row.Scan(
		&p.SpecificIntent,
		&p.Category,
		&p.UsageCount,
		&p.SuccessCount,
		&p.ExecutedCount,
		&p.FeedbackCount,
		&p.HelpfulCount,
		&p.ConfidenceTotal,
		&p.ExecutionMsTotal,
		&p.LastUsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
