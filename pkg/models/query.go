package models

import (
	"time"

	"github.com/google/uuid"
)

// EntityType classifies a span extracted from query text.
type EntityType string

const (
	EntityTime       EntityType = "time"
	EntityLocation   EntityType = "location"
	EntityMetric     EntityType = "metric"
	EntityMenuItem   EntityType = "menu_item"
	EntityComparison EntityType = "comparison"
)

// EntityTypePriority orders entity types for tie-breaking when two candidate
// spans have the same length. Lower index wins.
var EntityTypePriority = []EntityType{
	EntityTime,
	EntityLocation,
	EntityMetric,
	EntityMenuItem,
	EntityComparison,
}

// Valid reports whether t is one of the recognized entity types.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypePriority {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is a typed, positioned span of meaning extracted from a normalized
// query. Positions index into the normalized text, not the raw text.
type Entity struct {
	Type            EntityType `json:"type"`
	Value           string     `json:"value"`
	NormalizedValue string     `json:"normalized_value"`
	Confidence      float64    `json:"confidence"`
	StartPos        int        `json:"start_pos"`
	EndPos          int        `json:"end_pos"`
}

// IntentCategory is the closed set of query purposes the classifier can emit.
type IntentCategory string

const (
	IntentRevenueAnalysis    IntentCategory = "revenue_analysis"
	IntentTrendAnalysis      IntentCategory = "trend_analysis"
	IntentMenuPerformance    IntentCategory = "menu_performance"
	IntentLocationComparison IntentCategory = "location_comparison"
	IntentCustomerInsights   IntentCategory = "customer_insights"
	IntentOperationalMetrics IntentCategory = "operational_metrics"
	IntentUnknown            IntentCategory = "unknown"
)

// Valid reports whether c is a classifiable category. IntentUnknown is the
// fallback the classifier emits, never a category a template may declare.
func (c IntentCategory) Valid() bool {
	switch c {
	case IntentRevenueAnalysis, IntentTrendAnalysis, IntentMenuPerformance,
		IntentLocationComparison, IntentCustomerInsights, IntentOperationalMetrics:
		return true
	}
	return false
}

// Intent is the classification result for a query.
type Intent struct {
	Category       IntentCategory `json:"category"`
	SpecificIntent string         `json:"specific_intent"`
	Confidence     float64        `json:"confidence"`

	RequiredEntities []EntityType `json:"required_entities,omitempty"`
	OptionalEntities []EntityType `json:"optional_entities,omitempty"`
}

// IsUnknown reports whether the classifier failed to find a usable intent.
func (i Intent) IsUnknown() bool {
	return i.Category == IntentUnknown
}

// ConfidenceScore breaks the pipeline's self-assessment into its five
// components. Overall is always the weighted mean of the components; it is
// derived, never set independently.
type ConfidenceScore struct {
	Overall           float64 `json:"overall"`
	Intent            float64 `json:"intent"`
	Entity            float64 `json:"entity"`
	SQL               float64 `json:"sql"`
	DataAvailability  float64 `json:"data_availability"`
	HistoricalSuccess float64 `json:"historical_success"`
}

// ProcessedQuery is the pipeline's view of a single query after extraction
// and classification. Immutable once built.
type ProcessedQuery struct {
	Raw        string          `json:"raw"`
	Normalized string          `json:"normalized"`
	Entities   []Entity        `json:"entities"`
	Intent     Intent          `json:"intent"`
	Confidence ConfidenceScore `json:"confidence"`
}

// ChartType is the closed set of chart archetypes the suggester can rank.
type ChartType string

const (
	ChartLine       ChartType = "line"
	ChartMultiLine  ChartType = "multi_line"
	ChartBar        ChartType = "bar"
	ChartGroupedBar ChartType = "grouped_bar"
	ChartPie        ChartType = "pie"
	ChartKPICard    ChartType = "kpi_card"
	ChartTable      ChartType = "table"
)

// ChartSuggestion is one ranked chart recommendation with a fixed reasoning
// string (template text, never free-form generation).
type ChartSuggestion struct {
	ChartType  ChartType `json:"chart_type"`
	Confidence float64   `json:"confidence"`
	Reasoning  string    `json:"reasoning"`
}

// ColumnClass buckets warehouse column types for chart shape matching.
type ColumnClass string

const (
	ColumnNumeric     ColumnClass = "numeric"
	ColumnTemporal    ColumnClass = "temporal"
	ColumnCategorical ColumnClass = "categorical"
)

// ColumnInfo describes one output column of a query result or template.
type ColumnInfo struct {
	Name  string      `json:"name"`
	Class ColumnClass `json:"class"`
}

// ResultShape summarizes a result set for chart suggestion. RowCount is -1
// when the query was validated but not executed.
type ResultShape struct {
	RowCount int          `json:"row_count"`
	Columns  []ColumnInfo `json:"columns"`
}

// Known reports whether the row count was observed (vs. a validate-only run).
func (s ResultShape) Known() bool {
	return s.RowCount >= 0
}

// QueryResult holds executed warehouse rows plus timing.
type QueryResult struct {
	Columns         []ColumnInfo     `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	Truncated       bool             `json:"truncated,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// NLQueryResponse is the complete outcome of one process or validate call,
// returned to the frontend as-is. Pipeline failures live in Errors with
// Success=false; the envelope itself never distinguishes them from successes.
type NLQueryResponse struct {
	QueryID          uuid.UUID         `json:"query_id"`
	ProcessedQuery   ProcessedQuery    `json:"processed_query"`
	GeneratedSQL     string            `json:"generated_sql"`
	Confidence       ConfidenceScore   `json:"confidence"`
	Result           *QueryResult      `json:"result,omitempty"`
	Suggestions      []ChartSuggestion `json:"suggestions"`
	Errors           []string          `json:"errors,omitempty"`
	Cached           bool              `json:"cached"`
	ProcessingTimeMs int64             `json:"processing_time_ms"`
	Success          bool              `json:"success"`
}

// QueryContext carries the per-request facts the pipeline needs beyond the
// query text: who is asking, which restaurant locations they may see, and
// the reference instant for resolving relative time phrases.
type QueryContext struct {
	UserID       string
	RestaurantID uuid.UUID
	Locations    []string
	Now          time.Time
}

// Fingerprint folds the context into a stable string for cache keying.
// The reference time contributes only its calendar day so that time-relative
// queries ("last week") keep hitting the same cache entry within a day.
func (c QueryContext) Fingerprint() string {
	day := c.Now.UTC().Format("2006-01-02")
	fp := c.RestaurantID.String() + "|" + day
	for _, loc := range c.Locations {
		fp += "|" + loc
	}
	return fp
}
