package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02",
	"2006年1月2日",
}

// Coerce converts a wire or driver value to the canonical Go type of the field: string, int,
// int64, float64, bool, time.Time (UTC), uuid.UUID, or the member name for enums. nil stays nil.
func (f FieldSchema) Coerce(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	if number, ok := value.(json.Number); ok {
		value = string(number)
	}
	var (
		out any
		err error
	)
	switch f.Type {
	case TypeString:
		out, err = toString(value)
	case TypeInt:
		var n int64
		n, err = toInt64(value)
		if err == nil && (n < math.MinInt32 || n > math.MaxInt32) {
			err = fmt.Errorf("value %d overflows int32", n)
		}
		out = int(n)
	case TypeLong:
		out, err = toInt64(value)
	case TypeDecimal, TypeDouble:
		out, err = toFloat64(value)
	case TypeBool:
		out, err = toBool(value)
	case TypeDate:
		var t time.Time
		t, err = toTime(value)
		out = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case TypeDateTime:
		var t time.Time
		t, err = toTime(value)
		out = t.UTC()
	case TypeUUID:
		out, err = toUUID(value)
	case TypeEnum:
		out, err = f.toEnum(value)
	default:
		return nil, fmt.Errorf("field %s: unsupported type %q", f.Name, f.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", f.Name, err)
	}
	return out, nil
}

func toString(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case fmt.Stringer:
		return typed.String(), nil
	case bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(typed), nil
	case float32:
		return strconv.FormatFloat(float64(typed), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("cannot convert %T to string", value)
	}
}

func toInt64(value any) (int64, error) {
	switch typed := value.(type) {
	case int:
		return int64(typed), nil
	case int8:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int32:
		return int64(typed), nil
	case int64:
		return typed, nil
	case uint8:
		return int64(typed), nil
	case uint16:
		return int64(typed), nil
	case uint32:
		return int64(typed), nil
	case uint:
		if uint64(typed) > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", typed)
		}
		return int64(typed), nil
	case uint64:
		if typed > math.MaxInt64 {
			return 0, fmt.Errorf("value %d overflows int64", typed)
		}
		return int64(typed), nil
	case float32:
		return floatToInt(float64(typed))
	case float64:
		return floatToInt(typed)
	case bool:
		if typed {
			return 1, nil
		}
		return 0, nil
	case []byte:
		return toInt64(string(typed))
	case string:
		trimmed := strings.TrimSpace(typed)
		if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			return n, nil
		}
		f, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to integer", typed)
		}
		return floatToInt(f)
	default:
		return 0, fmt.Errorf("cannot convert %T to integer", value)
	}
}

func floatToInt(value float64) (int64, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) || value != math.Trunc(value) {
		return 0, fmt.Errorf("value %v is not an integer", value)
	}
	if value > math.MaxInt64 || value < math.MinInt64 {
		return 0, fmt.Errorf("value %v overflows int64", value)
	}
	return int64(value), nil
}

func toFloat64(value any) (float64, error) {
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := toInt64(typed)
		return float64(n), err
	case []byte:
		return toFloat64(string(typed))
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot convert %q to number", typed)
		}
		return f, nil
	case fmt.Stringer:
		return toFloat64(typed.String())
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}

func toBool(value any) (bool, error) {
	switch typed := value.(type) {
	case bool:
		return typed, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := toInt64(typed)
		return n != 0, err
	case []byte:
		return toBool(string(typed))
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "true", "1", "yes", "y", "是", "真":
			return true, nil
		case "false", "0", "no", "n", "否", "假":
			return false, nil
		}
		return false, fmt.Errorf("cannot convert %q to bool", typed)
	default:
		return false, fmt.Errorf("cannot convert %T to bool", value)
	}
}

func toTime(value any) (time.Time, error) {
	switch typed := value.(type) {
	case time.Time:
		return typed, nil
	case []byte:
		return toTime(string(typed))
	case string:
		trimmed := strings.TrimSpace(typed)
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fmt.Errorf("cannot convert %q to time", typed)
	default:
		return time.Time{}, fmt.Errorf("cannot convert %T to time", value)
	}
}

func toUUID(value any) (uuid.UUID, error) {
	switch typed := value.(type) {
	case uuid.UUID:
		return typed, nil
	case [16]byte:
		return uuid.UUID(typed), nil
	case []byte:
		if len(typed) == 16 {
			return uuid.FromBytes(typed)
		}
		return toUUID(string(typed))
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(typed))
		if err != nil {
			return uuid.Nil, fmt.Errorf("cannot convert %q to uuid", typed)
		}
		return parsed, nil
	case fmt.Stringer:
		return toUUID(typed.String())
	default:
		// Drivers such as duckdb return their own [16]byte types.
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Array && rv.Len() == 16 && rv.Type().Elem().Kind() == reflect.Uint8 {
			var out uuid.UUID
			reflect.Copy(reflect.ValueOf(out[:]), rv)
			return out, nil
		}
		return uuid.Nil, fmt.Errorf("cannot convert %T to uuid", value)
	}
}

func (f FieldSchema) toEnum(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		if member, ok := f.Enum(typed); ok {
			return member.Name, nil
		}
		if ordinal, err := strconv.Atoi(strings.TrimSpace(typed)); err == nil {
			if member, ok := f.EnumByOrdinal(ordinal); ok {
				return member.Name, nil
			}
		}
		return "", fmt.Errorf("unknown value %q", typed)
	case []byte:
		return f.toEnum(string(typed))
	default:
		ordinal, err := toInt64(value)
		if err != nil {
			return "", fmt.Errorf("cannot convert %T to enum", value)
		}
		if member, ok := f.EnumByOrdinal(int(ordinal)); ok {
			return member.Name, nil
		}
		return "", fmt.Errorf("unknown ordinal %d", ordinal)
	}
}
