package models

import "time"

// Pattern holds running aggregate statistics for one intent template, keyed
// by specific_intent. Counters are stored raw; rates and means are derived
// so that incremental single-statement updates stay exact.
type Pattern struct {
	SpecificIntent string `json:"specific_intent"`
	Category       string `json:"category"`

	UsageCount    int64 `json:"usage_count"`
	SuccessCount  int64 `json:"success_count"`
	ExecutedCount int64 `json:"executed_count"`
	FeedbackCount int64 `json:"feedback_count"`
	HelpfulCount  int64 `json:"helpful_count"`

	ConfidenceTotal  float64 `json:"confidence_total"`
	ExecutionMsTotal int64   `json:"execution_ms_total"`

	LastUsedAt time.Time `json:"last_used_at"`
}

// SuccessRate is the fraction of recorded uses counted as successful.
// Feedback overrides the execution outcome for entries it touches, so after
// N single-feedback queries this equals helpful/N exactly.
func (p Pattern) SuccessRate() float64 {
	if p.UsageCount == 0 {
		return 0
	}
	return float64(p.SuccessCount) / float64(p.UsageCount)
}

// AvgConfidence is the arithmetic mean of recorded overall confidences.
func (p Pattern) AvgConfidence() float64 {
	if p.UsageCount == 0 {
		return 0
	}
	return p.ConfidenceTotal / float64(p.UsageCount)
}

// AvgExecutionMs is the mean warehouse execution time across executed uses.
func (p Pattern) AvgExecutionMs() float64 {
	if p.ExecutedCount == 0 {
		return 0
	}
	return float64(p.ExecutionMsTotal) / float64(p.ExecutedCount)
}

// PatternUsage is the per-query increment applied to a pattern when a
// history entry is recorded. All fields describe the single query only.
type PatternUsage struct {
	SpecificIntent string
	Category       string
	Success        bool
	Executed       bool
	Confidence     float64
	ExecutionMs    int64
	UsedAt         time.Time
}

// QuerySuggestion is one ranked example query offered to the frontend,
// sourced from pattern usage joined with template example phrasings.
type QuerySuggestion struct {
	Text           string  `json:"text"`
	Category       string  `json:"category"`
	SpecificIntent string  `json:"specific_intent"`
	UsageCount     int64   `json:"usage_count"`
	SuccessRate    float64 `json:"success_rate"`
}

// PatternSummary is the per-pattern slice of the metrics endpoint.
type PatternSummary struct {
	SpecificIntent string  `json:"specific_intent"`
	Category       string  `json:"category"`
	UsageCount     int64   `json:"usage_count"`
	SuccessRate    float64 `json:"success_rate"`
	AvgConfidence  float64 `json:"avg_confidence"`
	AvgExecutionMs float64 `json:"avg_execution_ms"`
}

// EngineMetrics is the domain metrics document served by the API (distinct
// from the Prometheus exposition, which tracks the process itself).
type EngineMetrics struct {
	TotalQueries    int64            `json:"total_queries"`
	SuccessRate     float64          `json:"success_rate"`
	AvgConfidence   float64          `json:"avg_confidence"`
	AvgProcessingMs float64          `json:"avg_processing_ms"`
	AvgExecutionMs  float64          `json:"avg_execution_ms"`
	CacheHitRate    float64          `json:"cache_hit_rate"`
	TopPatterns     []PatternSummary `json:"top_patterns"`
}
