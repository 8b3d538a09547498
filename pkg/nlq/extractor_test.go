package nlq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// fixedNow is a Saturday; week-relative expectations below depend on it.
var fixedNow = time.Date(2025, time.March, 15, 14, 30, 0, 0, time.UTC)

func testContext() models.QueryContext {
	return models.QueryContext{Now: fixedNow}
}

func extractAll(t *testing.T, raw string) []models.Entity {
	t.Helper()
	ex := NewExtractor(DefaultGazetteer())
	return ex.Extract(NormalizeQuery(raw), testContext())
}

func findEntity(entities []models.Entity, et models.EntityType) *models.Entity {
	for i := range entities {
		if entities[i].Type == et {
			return &entities[i]
		}
	}
	return nil
}

func TestExtract_MetricAndTime(t *testing.T) {
	entities := extractAll(t, "Show me revenue by location for last month")

	metric := findEntity(entities, models.EntityMetric)
	require.NotNil(t, metric, "expected a metric entity")
	assert.Equal(t, "revenue", metric.Value)
	assert.Equal(t, "gross_revenue", metric.NormalizedValue)
	assert.Equal(t, 1.0, metric.Confidence)

	tm := findEntity(entities, models.EntityTime)
	require.NotNil(t, tm, "expected a time entity")
	assert.Equal(t, "last month", tm.Value)
	assert.Equal(t, "2025-02-01..2025-02-28", tm.NormalizedValue)
	assert.Equal(t, 1.0, tm.Confidence)
}

func TestExtract_LongestMatchWins(t *testing.T) {
	entities := extractAll(t, "net revenue for last week")

	metric := findEntity(entities, models.EntityMetric)
	require.NotNil(t, metric)
	assert.Equal(t, "net revenue", metric.Value)
	assert.Equal(t, "net_revenue", metric.NormalizedValue)

	// The shorter "revenue" candidate must not survive alongside it.
	count := 0
	for _, e := range entities {
		if e.Type == models.EntityMetric {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestExtract_TableTurnoverBeatsTurnover(t *testing.T) {
	entities := extractAll(t, "table turnover this week")

	metric := findEntity(entities, models.EntityMetric)
	require.NotNil(t, metric)
	assert.Equal(t, "table_turnover", metric.NormalizedValue)
}

func TestExtract_SingularPluralFold(t *testing.T) {
	entities := extractAll(t, "how many order yesterday")

	metric := findEntity(entities, models.EntityMetric)
	require.NotNil(t, metric)
	assert.Equal(t, "order_count", metric.NormalizedValue)
	assert.InDelta(t, 0.9, metric.Confidence, 1e-9)
}

func TestExtract_PartialMatchProportional(t *testing.T) {
	// "sticky rice" covers two of the three tokens of "mango sticky rice".
	entities := extractAll(t, "sticky rice sales")

	item := findEntity(entities, models.EntityMenuItem)
	require.NotNil(t, item)
	assert.Equal(t, "mango sticky rice", item.NormalizedValue)
	assert.InDelta(t, 2.0/3.0, item.Confidence, 1e-9)
}

func TestExtract_NonOverlappingSpans(t *testing.T) {
	queries := []string{
		"Show me revenue by location for last month",
		"top selling items last week at Sukhumvit",
		"compare pad thai and green curry sales across Silom and Sathorn",
		"net revenue versus gross revenue this quarter",
		"how many customers did we get in january",
	}

	for _, q := range queries {
		t.Run(q, func(t *testing.T) {
			entities := extractAll(t, q)
			for i := range entities {
				for j := i + 1; j < len(entities); j++ {
					a, b := entities[i], entities[j]
					overlap := a.StartPos < b.EndPos && b.StartPos < a.EndPos
					assert.False(t, overlap,
						"entities %q and %q overlap", a.Value, b.Value)
				}
			}
			// Sorted by start position.
			for i := 1; i < len(entities); i++ {
				assert.LessOrEqual(t, entities[i-1].StartPos, entities[i].StartPos)
			}
		})
	}
}

func TestExtract_Deterministic(t *testing.T) {
	const q = "compare revenue across Sukhumvit and Silom for last 30 days"
	first := extractAll(t, q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, extractAll(t, q))
	}
}

func TestExtract_RelativeSpan(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"revenue for last 7 days", "2025-03-09..2025-03-15"},
		{"orders past 2 weeks", "2025-03-02..2025-03-15"},
		{"customers last 3 months", "2024-12-16..2025-03-15"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tm := findEntity(extractAll(t, tt.query), models.EntityTime)
			require.NotNil(t, tm)
			assert.Equal(t, tt.expected, tm.NormalizedValue)
			assert.Equal(t, 1.0, tm.Confidence)
		})
	}
}

func TestExtract_MonthNames(t *testing.T) {
	tests := []struct {
		query    string
		expected string
	}{
		{"revenue in january", "2025-01-01..2025-01-31"},
		// March is in progress at the fixed clock; capped at today.
		{"revenue in march", "2025-03-01..2025-03-15"},
		// December has not happened yet this year.
		{"revenue in december", "2024-12-01..2024-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tm := findEntity(extractAll(t, tt.query), models.EntityTime)
			require.NotNil(t, tm)
			assert.Equal(t, tt.expected, tm.NormalizedValue)
		})
	}
}

func TestExtract_ComparisonDirections(t *testing.T) {
	entities := extractAll(t, "top locations by revenue")
	cmp := findEntity(entities, models.EntityComparison)
	require.NotNil(t, cmp)
	assert.Equal(t, "DESC", cmp.NormalizedValue)

	entities = extractAll(t, "worst locations by revenue")
	cmp = findEntity(entities, models.EntityComparison)
	require.NotNil(t, cmp)
	assert.Equal(t, "ASC", cmp.NormalizedValue)

	entities = extractAll(t, "sukhumvit versus silom")
	cmp = findEntity(entities, models.EntityComparison)
	require.NotNil(t, cmp)
	assert.Equal(t, "versus", cmp.NormalizedValue)
}

func TestExtract_ContextLocations(t *testing.T) {
	ex := NewExtractor(DefaultGazetteer())
	qctx := models.QueryContext{
		Now:       fixedNow,
		Locations: []string{"Riverside Annex"},
	}

	entities := ex.Extract(NormalizeQuery("revenue at riverside annex"), qctx)
	loc := findEntity(entities, models.EntityLocation)
	require.NotNil(t, loc)
	assert.Equal(t, "Riverside Annex", loc.NormalizedValue)

	// Without the context location only the built-in district matches.
	entities = ex.Extract(NormalizeQuery("revenue at riverside annex"), testContext())
	loc = findEntity(entities, models.EntityLocation)
	require.NotNil(t, loc)
	assert.Equal(t, "Riverside", loc.NormalizedValue)
}

func TestExtract_MenuItemAliases(t *testing.T) {
	entities := extractAll(t, "papaya salad sales last week")
	item := findEntity(entities, models.EntityMenuItem)
	require.NotNil(t, item)
	assert.Equal(t, "som tam", item.NormalizedValue)
}

func TestExtract_NoEntities(t *testing.T) {
	assert.Empty(t, extractAll(t, "asdkj qweoiu"))
	assert.Empty(t, extractAll(t, ""))
}

func TestNormalizeQuery(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"lowercases", "Show Me REVENUE", "show me revenue"},
		{"strips punctuation", "revenue, please!", "revenue please"},
		{"keeps in-word hyphens", "dine-in revenue?", "dine-in revenue"},
		{"drops dangling hyphens", "revenue - by location", "revenue by location"},
		{"collapses whitespace", "  revenue \t by \n location ", "revenue by location"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeQuery(tt.input))
		})
	}
}

func TestTokenize_Offsets(t *testing.T) {
	tokens := tokenize("pad thai sales")
	require.Len(t, tokens, 3)
	assert.Equal(t, token{Text: "pad", Start: 0, End: 3}, tokens[0])
	assert.Equal(t, token{Text: "thai", Start: 4, End: 8}, tokens[1])
	assert.Equal(t, token{Text: "sales", Start: 9, End: 14}, tokens[2])
}
