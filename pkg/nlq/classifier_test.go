package nlq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

func testClassifier(t *testing.T) *Classifier {
	t.Helper()
	set, err := LoadTemplates()
	require.NoError(t, err)
	return NewClassifier(set, 0.3, 0.5)
}

func classify(t *testing.T, raw string) models.Intent {
	t.Helper()
	normalized := NormalizeQuery(raw)
	entities := NewExtractor(DefaultGazetteer()).Extract(normalized, testContext())
	return testClassifier(t).Classify(normalized, entities)
}

func TestClassify_RevenueByLocation(t *testing.T) {
	intent := classify(t, "Show me revenue by location for last month")

	assert.Equal(t, models.IntentRevenueAnalysis, intent.Category)
	assert.Equal(t, "revenue_by_location", intent.SpecificIntent)
	// 2 of 5 keywords matched, no required entities.
	assert.InDelta(t, 0.6*2.0/5.0+0.4, intent.Confidence, 1e-9)
	assert.False(t, intent.IsUnknown())
}

func TestClassify_Gibberish(t *testing.T) {
	intent := classify(t, "asdkj qweoiu zzz")

	assert.True(t, intent.IsUnknown())
	assert.Equal(t, models.IntentUnknown, intent.Category)
	assert.Equal(t, UnknownIntentName, intent.SpecificIntent)
	assert.Equal(t, 0.0, intent.Confidence)
}

func TestClassify_UnknownCarriesBestScore(t *testing.T) {
	// "growth" matches one keyword of metric_trend_daily (1 of 5) but the
	// required metric entity is missing, so the best score stays below the
	// threshold.
	intent := classify(t, "growth")

	assert.True(t, intent.IsUnknown())
	assert.InDelta(t, 0.6*1.0/5.0, intent.Confidence, 1e-9)
}

func TestClassify_ThresholdBoundaryIsUsable(t *testing.T) {
	// One of two keywords with no metric entity scores exactly 0.3, which
	// meets the threshold.
	intent := classify(t, "weekly numbers")

	assert.Equal(t, "metric_trend_weekly", intent.SpecificIntent)
	assert.InDelta(t, 0.3, intent.Confidence, 1e-9)
}

func TestClassify_TieBreakLexicographic(t *testing.T) {
	// menu_item_sales and revenue_by_day both score 0.6*(1/4)+0.4 here with
	// one satisfied required entity each; the lexicographically smaller
	// intent name wins.
	intent := classify(t, "pad thai sales last week")

	assert.Equal(t, "menu_item_sales", intent.SpecificIntent)
	assert.Equal(t, models.IntentMenuPerformance, intent.Category)
	assert.InDelta(t, 0.6*0.25+0.4, intent.Confidence, 1e-9)
}

func TestClassify_TieBreakPrefersSatisfiedRequirements(t *testing.T) {
	// revenue_by_location and location_comparison both score
	// 0.6*(2/5)+0.4, but location_comparison has its required metric entity
	// satisfied and wins the tie.
	intent := classify(t, "compare revenue across locations")

	assert.Equal(t, "location_comparison", intent.SpecificIntent)
	assert.Equal(t, models.IntentLocationComparison, intent.Category)
}

func TestClassify_CoverageIgnoresLowConfidenceEntities(t *testing.T) {
	c := testClassifier(t)
	normalized := "weekly trend"

	weak := []models.Entity{{
		Type:            models.EntityMetric,
		Value:           "items",
		NormalizedValue: "item_revenue",
		Confidence:      0.4,
	}}
	intent := c.Classify(normalized, weak)
	assert.Equal(t, "metric_trend_weekly", intent.SpecificIntent)
	assert.InDelta(t, 0.6, intent.Confidence, 1e-9)

	strong := []models.Entity{{
		Type:            models.EntityMetric,
		Value:           "revenue",
		NormalizedValue: "gross_revenue",
		Confidence:      1.0,
	}}
	intent = c.Classify(normalized, strong)
	assert.Equal(t, "metric_trend_weekly", intent.SpecificIntent)
	assert.InDelta(t, 1.0, intent.Confidence, 1e-9)
}

func TestClassify_EntitiesAloneNeverSelect(t *testing.T) {
	// A bare location mention matches no keywords; coverage alone must not
	// produce an intent.
	intent := classify(t, "sukhumvit")

	assert.True(t, intent.IsUnknown())
	assert.Equal(t, 0.0, intent.Confidence)
}

func TestClassify_TopSellingItems(t *testing.T) {
	intent := classify(t, "what are our top selling items")

	assert.Equal(t, "top_menu_items", intent.SpecificIntent)
	assert.Equal(t, models.IntentMenuPerformance, intent.Category)
}

func TestClassify_CategoryRouting(t *testing.T) {
	tests := []struct {
		query    string
		intent   string
		category models.IntentCategory
	}{
		{"customer traffic last week", "customer_counts_by_day", models.IntentCustomerInsights},
		{"new vs repeat customers last month", "new_vs_repeat_customers", models.IntentCustomerInsights},
		{"average prep time by kitchen", "prep_time_by_location", models.IntentOperationalMetrics},
		{"labor cost last month", "labor_cost_by_day", models.IntentOperationalMetrics},
		{"rank our branches from best to worst", "location_ranking", models.IntentLocationComparison},
		{"revenue trend over time", "metric_trend_daily", models.IntentTrendAnalysis},
		{"how much did we make last week", "revenue_total", models.IntentRevenueAnalysis},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			intent := classify(t, tt.query)
			assert.Equal(t, tt.intent, intent.SpecificIntent)
			assert.Equal(t, tt.category, intent.Category)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	const q = "compare revenue across locations for last month"
	first := classify(t, q)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, classify(t, q))
	}
}
