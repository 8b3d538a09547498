package nlq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

func shapeOf(rows int, cols ...models.ColumnInfo) models.ResultShape {
	return models.ResultShape{RowCount: rows, Columns: cols}
}

func col(name string, class models.ColumnClass) models.ColumnInfo {
	return models.ColumnInfo{Name: name, Class: class}
}

func chartTypes(suggestions []models.ChartSuggestion) []models.ChartType {
	out := make([]models.ChartType, len(suggestions))
	for i, s := range suggestions {
		out[i] = s.ChartType
	}
	return out
}

func TestSuggestCharts_TimeSeries(t *testing.T) {
	shape := shapeOf(30,
		col("business_date", models.ColumnTemporal),
		col("value", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentRevenueAnalysis, shape)

	require.NotEmpty(t, got)
	assert.Equal(t, models.ChartLine, got[0].ChartType)
	assert.Equal(t, 0.95, got[0].Confidence)
	assert.Equal(t, models.ChartTable, got[len(got)-1].ChartType)
}

func TestSuggestCharts_MultiMeasureTimeSeries(t *testing.T) {
	shape := shapeOf(30,
		col("business_date", models.ColumnTemporal),
		col("new_customers", models.ColumnNumeric),
		col("repeat_customers", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentCustomerInsights, shape)

	assert.Equal(t, models.ChartMultiLine, got[0].ChartType)
	assert.Contains(t, got[0].Reasoning, "2 measures")
}

func TestSuggestCharts_CategoricalBar(t *testing.T) {
	shape := shapeOf(12,
		col("location", models.ColumnCategorical),
		col("value", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentLocationComparison, shape)

	assert.Equal(t, models.ChartBar, got[0].ChartType)
	assert.NotContains(t, chartTypes(got), models.ChartPie,
		"pie needs a small known row count")
}

func TestSuggestCharts_PieForSmallBreakdowns(t *testing.T) {
	shape := shapeOf(5,
		col("category", models.ColumnCategorical),
		col("value", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentMenuPerformance, shape)

	types := chartTypes(got)
	assert.Equal(t, []models.ChartType{models.ChartBar, models.ChartPie, models.ChartTable}, types)
}

func TestSuggestCharts_NoPieForOperationalMetrics(t *testing.T) {
	shape := shapeOf(5,
		col("location", models.ColumnCategorical),
		col("value", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentOperationalMetrics, shape)

	assert.NotContains(t, chartTypes(got), models.ChartPie,
		"share-of-total reads wrong for averages like prep time")
}

func TestSuggestCharts_GroupedBar(t *testing.T) {
	shape := shapeOf(14,
		col("business_date", models.ColumnCategorical),
		col("labor_cost", models.ColumnNumeric),
		col("staff_hours", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentOperationalMetrics, shape)

	assert.Equal(t, models.ChartGroupedBar, got[0].ChartType)
}

func TestSuggestCharts_KPICard(t *testing.T) {
	shape := shapeOf(1, col("value", models.ColumnNumeric))

	got := SuggestCharts(models.IntentRevenueAnalysis, shape)

	assert.Equal(t, models.ChartKPICard, got[0].ChartType)
	assert.Equal(t, 0.95, got[0].Confidence)
}

func TestSuggestCharts_KPICardUnknownRows(t *testing.T) {
	// Validate-only runs carry template shapes with an unknown row count; a
	// single aggregate column still reads as a KPI.
	shape := shapeOf(-1, col("value", models.ColumnNumeric))

	got := SuggestCharts(models.IntentRevenueAnalysis, shape)

	assert.Equal(t, models.ChartKPICard, got[0].ChartType)
	assert.Equal(t, 0.9, got[0].Confidence)
}

func TestSuggestCharts_TableFallbackAlways(t *testing.T) {
	shapes := []models.ResultShape{
		shapeOf(0),
		shapeOf(5, col("value", models.ColumnNumeric)),
		shapeOf(100, col("a", models.ColumnCategorical), col("b", models.ColumnCategorical)),
	}

	for _, shape := range shapes {
		got := SuggestCharts(models.IntentUnknown, shape)
		require.NotEmpty(t, got)
		assert.Contains(t, chartTypes(got), models.ChartTable)
	}
}

func TestSuggestCharts_SortedByConfidence(t *testing.T) {
	shape := shapeOf(4,
		col("category", models.ColumnCategorical),
		col("value", models.ColumnNumeric),
	)

	got := SuggestCharts(models.IntentMenuPerformance, shape)

	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].Confidence, got[i].Confidence)
	}
}

func TestSuggestCharts_Deterministic(t *testing.T) {
	shape := shapeOf(30,
		col("business_date", models.ColumnTemporal),
		col("value", models.ColumnNumeric),
	)

	first := SuggestCharts(models.IntentTrendAnalysis, shape)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, SuggestCharts(models.IntentTrendAnalysis, shape))
	}
}

func TestTemplateShape_ColumnClasses(t *testing.T) {
	tmpl := templateByIntent(t, "revenue_by_day")
	shape := tmpl.Shape()

	assert.False(t, shape.Known())
	require.Len(t, shape.Columns, 2)
	assert.Equal(t, models.ColumnTemporal, shape.Columns[0].Class)
	assert.Equal(t, models.ColumnNumeric, shape.Columns[1].Class)

	tmpl = templateByIntent(t, "location_ranking")
	shape = tmpl.Shape()
	assert.Equal(t, models.ColumnCategorical, shape.Columns[0].Class)
}
