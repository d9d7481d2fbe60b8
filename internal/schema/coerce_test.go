package schema

import (
	"math"
	"testing"
	"time"
)

func TestCoerceIntRange(t *testing.T) {
	field := FieldSchema{Name: "AnnualDays", Type: TypeInt}
	for _, in := range []any{int64(math.MaxInt32), "-2147483648", 15.0, "20"} {
		if _, err := field.Coerce(in); err != nil {
			t.Fatalf("Coerce(%v): %v", in, err)
		}
	}
	for _, in := range []any{int64(math.MaxInt32) + 1, "-2147483649", 1e12} {
		if got, err := field.Coerce(in); err == nil {
			t.Fatalf("Coerce(%v) = %v, want overflow error", in, got)
		}
	}

	long := FieldSchema{Name: "Total", Type: TypeLong}
	if got, err := long.Coerce(int64(math.MaxInt32) + 1); err != nil || got != int64(math.MaxInt32)+1 {
		t.Fatalf("long Coerce = %v, %v", got, err)
	}
}

func TestCoerceDateDropsTime(t *testing.T) {
	field := FieldSchema{Name: "StartDate", Type: TypeDate}
	got, err := field.Coerce("2024-03-05T17:30:00+08:00")
	if err != nil {
		t.Fatalf("Coerce: %v", err)
	}
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !got.(time.Time).Equal(want) {
		t.Fatalf("Coerce = %v, want %v", got, want)
	}
}
