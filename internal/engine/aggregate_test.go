package engine

import (
	"testing"

	"github.com/duckmesh/askhr/internal/entity"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

type ledgerEntry struct {
	Amount int64
}

func TestIntegralSumKeepsPrecision(t *testing.T) {
	binding := entity.NewBinding[ledgerEntry]("Ledger", "",
		entity.Value("Amount", func(e *ledgerEntry) *int64 { return &e.Amount }),
	)
	field := accessor{binding: binding, field: schema.FieldSchema{Name: "Amount", Type: schema.TypeLong}}
	agg := aggregation{kind: query.AggregationSum, values: valueKindOf(schema.TypeLong), field: &field}

	const large = int64(1) << 53
	rows := []row{{&ledgerEntry{Amount: large}}, {&ledgerEntry{Amount: 1}}, {&ledgerEntry{Amount: 1}}}
	if got := agg.compute(rows); got != large+2 {
		t.Fatalf("sum = %v (%T), want %d", got, got, large+2)
	}
	if column := agg.column(); column.DataType != string(schema.TypeLong) {
		t.Fatalf("column = %+v", column)
	}
}
