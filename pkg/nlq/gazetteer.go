package nlq

import (
	"strings"

	"github.com/bitebase/intelligence-engine/pkg/models"
)

// gazPhrase is one recognizable phrase and the normalized value it maps to.
// For time phrases the value is a symbolic key resolved against the request
// clock (see timeframe.go); for all other types it is the final normalized
// value.
type gazPhrase struct {
	tokens []string
	value  string
}

// Gazetteer holds the phrase tables the extractor scans. Tables are built
// once at startup; per-request location names are merged via ForContext.
type Gazetteer struct {
	tables map[models.EntityType][]gazPhrase
}

func newPhrase(text, value string) gazPhrase {
	return gazPhrase{tokens: strings.Fields(text), value: value}
}

// DefaultGazetteer builds the built-in phrase tables: metric vocabulary
// mapped to warehouse columns, relative time expressions, Bangkok districts
// where BiteBase restaurants operate, the standing menu vocabulary, and
// ranking/comparison markers.
func DefaultGazetteer() *Gazetteer {
	g := &Gazetteer{tables: make(map[models.EntityType][]gazPhrase)}

	// Metric phrases map to warehouse column names.
	for text, column := range map[string]string{
		"revenue":             "gross_revenue",
		"sales":               "gross_revenue",
		"total sales":         "gross_revenue",
		"total revenue":       "gross_revenue",
		"gross revenue":       "gross_revenue",
		"turnover":            "gross_revenue",
		"net revenue":         "net_revenue",
		"net sales":           "net_revenue",
		"orders":              "order_count",
		"order count":         "order_count",
		"number of orders":    "order_count",
		"order volume":        "order_count",
		"transactions":        "order_count",
		"customers":           "customer_count",
		"guests":              "customer_count",
		"diners":              "customer_count",
		"covers":              "customer_count",
		"foot traffic":        "customer_count",
		"customer count":      "customer_count",
		"average ticket":      "avg_ticket",
		"avg ticket":          "avg_ticket",
		"average check":       "avg_ticket",
		"check average":       "avg_ticket",
		"ticket size":         "avg_ticket",
		"average order value": "avg_ticket",
		"delivery revenue":    "delivery_revenue",
		"delivery sales":      "delivery_revenue",
		"dine-in revenue":     "dine_in_revenue",
		"dine in revenue":     "dine_in_revenue",
		"dine-in sales":       "dine_in_revenue",
		"quantity sold":       "quantity_sold",
		"units sold":          "quantity_sold",
		"item revenue":        "item_revenue",
		"new customers":       "new_customers",
		"first-time customers": "new_customers",
		"repeat customers":    "repeat_customers",
		"returning customers": "repeat_customers",
		"regulars":            "repeat_customers",
		"prep time":           "avg_prep_time_minutes",
		"preparation time":    "avg_prep_time_minutes",
		"kitchen time":        "avg_prep_time_minutes",
		"labor cost":          "labor_cost",
		"labour cost":         "labor_cost",
		"staffing cost":       "labor_cost",
		"table turnover":      "table_turnover",
		"staff hours":         "staff_hours",
		"labor hours":         "staff_hours",
		"party size":          "avg_party_size",
		"average party size":  "avg_party_size",
	} {
		g.add(models.EntityMetric, text, column)
	}

	// Time phrases map to symbolic keys resolved against the request clock.
	for text, key := range map[string]string{
		"today":            timeKeyToday,
		"yesterday":        timeKeyYesterday,
		"this week":        timeKeyThisWeek,
		"last week":        timeKeyLastWeek,
		"past week":        timeKeyLastWeek,
		"previous week":    timeKeyLastWeek,
		"this month":       timeKeyThisMonth,
		"current month":    timeKeyThisMonth,
		"last month":       timeKeyLastMonth,
		"past month":       timeKeyLastMonth,
		"previous month":   timeKeyLastMonth,
		"this quarter":     timeKeyThisQuarter,
		"last quarter":     timeKeyLastQuarter,
		"previous quarter": timeKeyLastQuarter,
		"this year":        timeKeyThisYear,
		"year to date":     timeKeyThisYear,
		"ytd":              timeKeyThisYear,
		"last year":        timeKeyLastYear,
		"previous year":    timeKeyLastYear,
	} {
		g.add(models.EntityTime, text, key)
	}
	for name, key := range monthKeys {
		g.add(models.EntityTime, name, key)
	}

	// Default location vocabulary: Bangkok districts. Per-restaurant
	// location names are merged at request time via ForContext.
	for _, district := range []string{
		"Sukhumvit", "Silom", "Sathorn", "Thonglor", "Ari",
		"Chatuchak", "Siam", "Riverside", "Ekkamai", "Phrom Phong",
	} {
		g.add(models.EntityLocation, strings.ToLower(district), district)
	}
	g.add(models.EntityLocation, "thong lo", "Thonglor")
	g.add(models.EntityLocation, "asok", "Asok")
	g.add(models.EntityLocation, "asoke", "Asok")

	// Standing menu vocabulary with aliases folded to canonical names.
	for _, item := range []string{
		"pad thai", "green curry", "red curry", "massaman curry",
		"tom yum", "tom kha", "som tam", "mango sticky rice",
		"spring rolls", "fried rice", "pineapple fried rice",
		"khao soi", "pad see ew", "larb", "satay", "thai iced tea",
		"basil chicken",
	} {
		g.add(models.EntityMenuItem, item, item)
	}
	g.add(models.EntityMenuItem, "papaya salad", "som tam")
	g.add(models.EntityMenuItem, "pad krapow", "basil chicken")

	// Ranking and comparison markers. Direction words normalize to a sort
	// order; bare comparison words normalize to "versus" and cannot fill a
	// sort-order slot.
	for text, value := range map[string]string{
		"top":         "DESC",
		"best":        "DESC",
		"highest":     "DESC",
		"most":        "DESC",
		"leading":     "DESC",
		"bottom":      "ASC",
		"worst":       "ASC",
		"lowest":      "ASC",
		"least":       "ASC",
		"fewest":      "ASC",
		"vs":          "versus",
		"versus":      "versus",
		"compare":     "versus",
		"compared to": "versus",
		"comparison":  "versus",
		"against":     "versus",
	} {
		g.add(models.EntityComparison, text, value)
	}

	return g
}

func (g *Gazetteer) add(t models.EntityType, text, value string) {
	g.tables[t] = append(g.tables[t], newPhrase(text, value))
}

// Phrases returns the phrase table for one entity type.
func (g *Gazetteer) Phrases(t models.EntityType) []gazPhrase {
	return g.tables[t]
}

// ForContext returns a gazetteer whose location table is extended with the
// restaurant's own location names. The receiver is not modified; shared
// tables are reused.
func (g *Gazetteer) ForContext(locations []string) *Gazetteer {
	if len(locations) == 0 {
		return g
	}

	ext := &Gazetteer{tables: make(map[models.EntityType][]gazPhrase, len(g.tables))}
	for t, phrases := range g.tables {
		ext.tables[t] = phrases
	}

	merged := make([]gazPhrase, len(g.tables[models.EntityLocation]))
	copy(merged, g.tables[models.EntityLocation])
	seen := make(map[string]bool, len(merged))
	for _, p := range merged {
		seen[strings.Join(p.tokens, " ")] = true
	}
	for _, loc := range locations {
		normalized := NormalizeQuery(loc)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		merged = append(merged, newPhrase(normalized, loc))
	}
	ext.tables[models.EntityLocation] = merged
	return ext
}
