package nlq

import (
	"fmt"
	"sort"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// SuggestCharts maps a result shape to a ranked list of chart suggestions.
// Rules are fixed and the reasoning strings are templates, so the same
// category and shape always produce the same list. A table suggestion is
// always present as the final fallback.
func SuggestCharts(category models.IntentCategory, shape models.ResultShape) []models.ChartSuggestion {
	var numeric, temporal, categorical int
	for _, col := range shape.Columns {
		switch col.Class {
		case models.ColumnNumeric:
			numeric++
		case models.ColumnTemporal:
			temporal++
		case models.ColumnCategorical:
			categorical++
		}
	}

	var out []models.ChartSuggestion

	switch {
	case temporal >= 1 && numeric == 1:
		out = append(out, models.ChartSuggestion{
			ChartType:  models.ChartLine,
			Confidence: 0.95,
			Reasoning:  "single measure over time fits a line chart",
		})
	case temporal >= 1 && numeric >= 2:
		out = append(out, models.ChartSuggestion{
			ChartType:  models.ChartMultiLine,
			Confidence: 0.9,
			Reasoning:  fmt.Sprintf("%d measures over time fit a multi-line chart", numeric),
		})
	}

	if temporal == 0 && categorical >= 1 {
		switch {
		case numeric == 1:
			out = append(out, models.ChartSuggestion{
				ChartType:  models.ChartBar,
				Confidence: 0.9,
				Reasoning:  "one measure per category fits a bar chart",
			})
			if shape.Known() && shape.RowCount >= 2 && shape.RowCount <= 8 &&
				category != models.IntentOperationalMetrics {
				out = append(out, models.ChartSuggestion{
					ChartType:  models.ChartPie,
					Confidence: 0.6,
					Reasoning:  fmt.Sprintf("%d categories can also read as share of total", shape.RowCount),
				})
			}
		case numeric >= 2:
			out = append(out, models.ChartSuggestion{
				ChartType:  models.ChartGroupedBar,
				Confidence: 0.85,
				Reasoning:  fmt.Sprintf("%d measures per category fit a grouped bar chart", numeric),
			})
		}
	}

	if temporal == 0 && categorical == 0 && numeric == 1 {
		switch {
		case shape.Known() && shape.RowCount == 1:
			out = append(out, models.ChartSuggestion{
				ChartType:  models.ChartKPICard,
				Confidence: 0.95,
				Reasoning:  "single aggregate value fits a KPI card",
			})
		case !shape.Known():
			out = append(out, models.ChartSuggestion{
				ChartType:  models.ChartKPICard,
				Confidence: 0.9,
				Reasoning:  "single aggregate column fits a KPI card",
			})
		}
	}

	out = append(out, models.ChartSuggestion{
		ChartType:  models.ChartTable,
		Confidence: 0.3,
		Reasoning:  "tabular view always applies",
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}
