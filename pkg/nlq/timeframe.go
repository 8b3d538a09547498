package nlq

import (
	"fmt"
	"strings"
	"time"
)

// Symbolic time keys stored in the gazetteer. Resolution happens per request
// against the context clock so "last month" means the same thing for the
// whole pipeline run and cache keys stay stable within a day.
const (
	timeKeyToday       = "today"
	timeKeyYesterday   = "yesterday"
	timeKeyThisWeek    = "this_week"
	timeKeyLastWeek    = "last_week"
	timeKeyThisMonth   = "this_month"
	timeKeyLastMonth   = "last_month"
	timeKeyThisQuarter = "this_quarter"
	timeKeyLastQuarter = "last_quarter"
	timeKeyThisYear    = "this_year"
	timeKeyLastYear    = "last_year"
)

// monthKeys maps month names to symbolic keys resolved by resolveTimeKey.
var monthKeys = map[string]string{
	"january": "month:1", "february": "month:2", "march": "month:3",
	"april": "month:4", "may": "month:5", "june": "month:6",
	"july": "month:7", "august": "month:8", "september": "month:9",
	"october": "month:10", "november": "month:11", "december": "month:12",
}

// DateRange is an inclusive calendar date range at UTC midnight.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Normalized renders the range in the canonical "start..end" form carried in
// time entity values and parsed back by the SQL generator.
func (r DateRange) Normalized() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// mondayOf returns the Monday of the week containing d.
func mondayOf(d time.Time) time.Time {
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// quarterStart returns the first day of the calendar quarter containing d.
func quarterStart(d time.Time) time.Time {
	qm := time.Month((int(d.Month())-1)/3*3 + 1)
	return time.Date(d.Year(), qm, 1, 0, 0, 0, 0, time.UTC)
}

// resolveTimeKey resolves a symbolic time key to a concrete date range
// relative to now. Weeks start on Monday. "This X" ranges end today; "last X"
// ranges cover the full previous period. Named months resolve to their most
// recent occurrence, capped at today when still in progress.
func resolveTimeKey(key string, now time.Time) (DateRange, error) {
	today := dateOf(now)

	switch key {
	case timeKeyToday:
		return DateRange{today, today}, nil
	case timeKeyYesterday:
		y := today.AddDate(0, 0, -1)
		return DateRange{y, y}, nil
	case timeKeyThisWeek:
		return DateRange{mondayOf(today), today}, nil
	case timeKeyLastWeek:
		monday := mondayOf(today).AddDate(0, 0, -7)
		return DateRange{monday, monday.AddDate(0, 0, 6)}, nil
	case timeKeyThisMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC)
		return DateRange{first, today}, nil
	case timeKeyLastMonth:
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
		return DateRange{first, first.AddDate(0, 1, -1)}, nil
	case timeKeyThisQuarter:
		return DateRange{quarterStart(today), today}, nil
	case timeKeyLastQuarter:
		start := quarterStart(today).AddDate(0, -3, 0)
		return DateRange{start, start.AddDate(0, 3, -1)}, nil
	case timeKeyThisYear:
		return DateRange{time.Date(today.Year(), 1, 1, 0, 0, 0, 0, time.UTC), today}, nil
	case timeKeyLastYear:
		return DateRange{
			time.Date(today.Year()-1, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(today.Year()-1, 12, 31, 0, 0, 0, 0, time.UTC),
		}, nil
	}

	var monthNum int
	if _, err := fmt.Sscanf(key, "month:%d", &monthNum); err == nil && monthNum >= 1 && monthNum <= 12 {
		year := today.Year()
		if time.Month(monthNum) > today.Month() {
			year--
		}
		start := time.Date(year, time.Month(monthNum), 1, 0, 0, 0, 0, time.UTC)
		end := start.AddDate(0, 1, -1)
		if end.After(today) {
			end = today
		}
		return DateRange{start, end}, nil
	}

	return DateRange{}, fmt.Errorf("unknown time key %q", key)
}

// resolveRelativeSpan resolves "last N days/weeks/months" to a trailing
// window ending today.
func resolveRelativeSpan(n int, unit string, now time.Time) (DateRange, error) {
	if n <= 0 {
		return DateRange{}, fmt.Errorf("span count must be positive, got %d", n)
	}
	today := dateOf(now)

	switch unit {
	case "day":
		return DateRange{today.AddDate(0, 0, -(n - 1)), today}, nil
	case "week":
		return DateRange{today.AddDate(0, 0, -(7*n - 1)), today}, nil
	case "month":
		return DateRange{today.AddDate(0, -n, 0).AddDate(0, 0, 1), today}, nil
	}

	return DateRange{}, fmt.Errorf("unknown span unit %q", unit)
}

// defaultTimeRange is the trailing 30-day window used when a query needs a
// time frame and none was asked for.
func defaultTimeRange(now time.Time) DateRange {
	today := dateOf(now)
	return DateRange{today.AddDate(0, 0, -29), today}
}

// parseDateRange parses the canonical "start..end" form back into a range.
func parseDateRange(value string) (DateRange, error) {
	const layout = "2006-01-02"
	startStr, endStr, found := strings.Cut(value, "..")
	if !found {
		return DateRange{}, fmt.Errorf("time value %q is not a start..end range", value)
	}
	start, err := time.ParseInLocation(layout, startStr, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid range start: %w", err)
	}
	end, err := time.ParseInLocation(layout, endStr, time.UTC)
	if err != nil {
		return DateRange{}, fmt.Errorf("invalid range end: %w", err)
	}
	if end.Before(start) {
		return DateRange{}, fmt.Errorf("time range %q ends before it starts", value)
	}
	return DateRange{start, end}, nil
}
