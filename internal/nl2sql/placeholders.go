package nl2sql

import (
	"strings"
	"time"

	"github.com/duckmesh/askhr/internal/query"
)

const (
	PlaceholderToday             = "@Today"
	PlaceholderCurrentWeekStart  = "@CurrentWeekStart"
	PlaceholderCurrentMonthStart = "@CurrentMonthStart"
	PlaceholderCurrentYear       = "@CurrentYear"
	PlaceholderNow               = "@Now"
)

// ResolvePlaceholders replaces relative-date markers in filter values, including inside lists.
// All dates are computed in UTC; weeks start on Monday.
func ResolvePlaceholders(q *query.StructuredQuery, now time.Time) {
	for index := range q.Filters {
		q.Filters[index].Value = resolveValue(q.Filters[index].Value, now)
	}
	for key, value := range q.UpdateValues {
		q.UpdateValues[key] = resolveValue(value, now)
	}
}

func resolveValue(value any, now time.Time) any {
	switch typed := value.(type) {
	case string:
		if resolved, ok := ResolvePlaceholder(typed, now); ok {
			return resolved
		}
		return typed
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = resolveValue(item, now)
		}
		return out
	default:
		return value
	}
}

func ResolvePlaceholder(text string, now time.Time) (any, bool) {
	utc := now.UTC()
	today := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	switch {
	case strings.EqualFold(text, PlaceholderToday):
		return today, true
	case strings.EqualFold(text, PlaceholderCurrentWeekStart):
		offset := (int(today.Weekday()) + 6) % 7
		return today.AddDate(0, 0, -offset), true
	case strings.EqualFold(text, PlaceholderCurrentMonthStart):
		return time.Date(utc.Year(), utc.Month(), 1, 0, 0, 0, 0, time.UTC), true
	case strings.EqualFold(text, PlaceholderCurrentYear):
		return utc.Year(), true
	case strings.EqualFold(text, PlaceholderNow):
		return utc, true
	default:
		return nil, false
	}
}
