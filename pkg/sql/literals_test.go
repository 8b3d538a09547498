package sql

import (
	"reflect"
	"testing"
)

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain value",
			input:    "Sukhumvit",
			expected: "'Sukhumvit'",
		},
		{
			name:     "embedded quote doubled",
			input:    "Riley's Corner",
			expected: "'Riley''s Corner'",
		},
		{
			name:     "multiple quotes",
			input:    "a'b'c",
			expected: "'a''b''c'",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "''",
		},
		{
			name:     "backslash untouched",
			input:    `a\b`,
			expected: `'a\b'`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteLiteral(tt.input); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestQuoteList(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected string
	}{
		{
			name:     "single value",
			input:    []string{"pad thai"},
			expected: "'pad thai'",
		},
		{
			name:     "preserves order",
			input:    []string{"Sukhumvit", "Silom", "Ari"},
			expected: "'Sukhumvit', 'Silom', 'Ari'",
		},
		{
			name:     "quotes each element",
			input:    []string{"Riley's", "plain"},
			expected: "'Riley''s', 'plain'",
		},
		{
			name:     "empty list",
			input:    nil,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := QuoteList(tt.input); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestReferencedTables(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "single table",
			input:    "SELECT * FROM daily_sales",
			expected: []string{"daily_sales"},
		},
		{
			name: "join pulls both tables sorted",
			input: "SELECT l.name, SUM(ds.gross_revenue) FROM daily_sales ds " +
				"JOIN locations l ON l.id = ds.location_id",
			expected: []string{"daily_sales", "locations"},
		},
		{
			name: "three tables deduplicated",
			input: "SELECT * FROM menu_item_sales mis " +
				"JOIN menu_items mi ON mi.id = mis.menu_item_id " +
				"JOIN locations l ON l.id = mis.location_id " +
				"JOIN locations l2 ON l2.id = mis.location_id",
			expected: []string{"locations", "menu_item_sales", "menu_items"},
		},
		{
			name:     "schema qualifier stripped",
			input:    "SELECT * FROM analytics.daily_sales",
			expected: []string{"daily_sales"},
		},
		{
			name:     "case folded",
			input:    "SELECT * FROM Daily_Sales JOIN LOCATIONS ON 1=1",
			expected: []string{"daily_sales", "locations"},
		},
		{
			name:     "no from clause",
			input:    "SELECT 1",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReferencedTables(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("got %v, want %v", got, tt.expected)
			}
		})
	}
}
