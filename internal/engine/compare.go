package engine

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"
)

// compareValues orders two canonical values. The second result is false when the values cannot be
// compared, including when either is nil.
func compareValues(a, b any) (int, bool) {
	if a == nil || b == nil {
		return 0, false
	}
	if x, ok := numeric(a); ok {
		y, ok := numeric(b)
		if !ok {
			return 0, false
		}
		return compareOrdered(x, y), true
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case uuid.UUID:
		y, ok := b.(uuid.UUID)
		if !ok {
			return 0, false
		}
		return bytes.Compare(x[:], y[:]), true
	default:
		return 0, false
	}
}

func compareOrdered(x, y float64) int {
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func numeric(value any) (float64, bool) {
	switch typed := value.(type) {
	case int:
		return float64(typed), true
	case int32:
		return float64(typed), true
	case int64:
		return float64(typed), true
	case float32:
		return float64(typed), true
	case float64:
		return typed, true
	default:
		return 0, false
	}
}

func integer(value any) (int64, bool) {
	switch typed := value.(type) {
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case int64:
		return typed, true
	default:
		return 0, false
	}
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	cmp, ok := compareValues(a, b)
	return ok && cmp == 0
}

// compareForSort orders nil before every value and falls back to text for mixed types.
func compareForSort(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if cmp, ok := compareValues(a, b); ok {
		return cmp
	}
	return strings.Compare(formatKey(a), formatKey(b))
}
