package models

import (
	"time"

	"github.com/google/uuid"
)

// QueryHistoryEntry is the append-only record of one completed query,
// executed or not. Feedback fields are attached later by the feedback loop;
// nothing else mutates an entry after creation.
type QueryHistoryEntry struct {
	ID           uuid.UUID `json:"id"`
	UserID       string    `json:"user_id"`
	RestaurantID uuid.UUID `json:"restaurant_id"`

	RawQuery        string `json:"raw_query"`
	NormalizedQuery string `json:"normalized_query"`

	IntentCategory string `json:"intent_category"`
	SpecificIntent string `json:"specific_intent"`
	GeneratedSQL   string `json:"generated_sql"`

	Success      bool    `json:"success"`
	Cached       bool    `json:"cached"`
	Confidence   float64 `json:"confidence"`
	ErrorMessage *string `json:"error_message,omitempty"`

	ProcessingMs int64  `json:"processing_ms"`
	ExecutionMs  *int64 `json:"execution_ms,omitempty"`
	RowCount     *int   `json:"row_count,omitempty"`

	// Feedback signals, nil until the user rates the query.
	Rating       *int    `json:"rating,omitempty"`
	FeedbackText *string `json:"feedback_text,omitempty"`
	WasHelpful   *bool   `json:"was_helpful,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// HasFeedback reports whether the feedback loop already touched this entry.
func (e *QueryHistoryEntry) HasFeedback() bool {
	return e.WasHelpful != nil
}

// HistoryFilters narrows history listings. UserID is always set by the
// handler so callers only ever see their own queries.
type HistoryFilters struct {
	UserID  string
	Since   *time.Time
	Success *bool
	Limit   int
}

// Feedback is one user rating of a previously answered query.
type Feedback struct {
	QueryID      uuid.UUID `json:"query_id"`
	Rating       int       `json:"rating"`
	FeedbackText *string   `json:"feedback_text,omitempty"`
	WasHelpful   bool      `json:"was_helpful"`
}

// HistoryStats aggregates the history table for the metrics endpoint.
type HistoryStats struct {
	TotalQueries    int64   `json:"total_queries"`
	SuccessfulCount int64   `json:"successful_count"`
	CachedCount     int64   `json:"cached_count"`
	AvgConfidence   float64 `json:"avg_confidence"`
	AvgProcessingMs float64 `json:"avg_processing_ms"`
	AvgExecutionMs  float64 `json:"avg_execution_ms"`
}

// SuccessRate returns the fraction of recorded queries that succeeded.
func (s HistoryStats) SuccessRate() float64 {
	if s.TotalQueries == 0 {
		return 0
	}
	return float64(s.SuccessfulCount) / float64(s.TotalQueries)
}
