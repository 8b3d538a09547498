package sql

import (
	"regexp"
	"sort"
	"strings"
)

// QuoteLiteral renders a string as a single-quoted SQL literal with embedded
// quotes doubled per the SQL standard. Backslashes are left alone; the
// warehouse runs with standard_conforming_strings on.
func QuoteLiteral(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

// QuoteList renders values as a comma-separated list of quoted literals,
// preserving order.
func QuoteList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = QuoteLiteral(v)
	}
	return strings.Join(quoted, ", ")
}

var tableRefPattern = regexp.MustCompile(`(?i)\b(?:FROM|JOIN)\s+([a-zA-Z_][a-zA-Z0-9_.]*)`)

// ReferencedTables extracts the table names a statement reads from, by
// scanning FROM and JOIN clauses. Subquery aliases and CTE names slip
// through; callers treat unknown names as unavailable rather than failing.
// Returns deduplicated names in sorted order.
func ReferencedTables(sqlQuery string) []string {
	matches := tableRefPattern.FindAllStringSubmatch(sqlQuery, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	var tables []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		// Strip schema qualification; the catalog check is schema-scoped.
		if idx := strings.LastIndex(name, "."); idx >= 0 {
			name = name[idx+1:]
		}
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	sort.Strings(tables)
	return tables
}
