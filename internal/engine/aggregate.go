package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

// MessageAggregationUnsupported is reported when an aggregation cannot apply to its field.
const MessageAggregationUnsupported = "聚合查询失败，请检查字段类型是否支持该操作"

type valueKind int

const (
	kindOther valueKind = iota
	kindInteger
	kindFloat
	kindTemporal
)

func valueKindOf(t schema.FieldType) valueKind {
	switch t {
	case schema.TypeInt, schema.TypeLong:
		return kindInteger
	case schema.TypeDecimal, schema.TypeDouble:
		return kindFloat
	case schema.TypeDate, schema.TypeDateTime:
		return kindTemporal
	default:
		return kindOther
	}
}

// aggregation is the resolved form of a query's aggregation: its kind, the kind of values it
// reads and the field accessor. Count carries no field.
type aggregation struct {
	kind   query.AggregationKind
	values valueKind
	field  *accessor
}

// newAggregation resolves the aggregation once. ok is false when the field is missing or its type
// does not support the kind; such aggregations produce a null value.
func (p *plan) newAggregation(q query.StructuredQuery) (aggregation, bool) {
	kind, known := query.ParseAggregation(string(q.Aggregation))
	if !known {
		return aggregation{}, false
	}
	agg := aggregation{kind: kind}
	if kind == query.AggregationCount {
		return agg, true
	}
	if strings.TrimSpace(q.AggregationField) == "" {
		return aggregation{}, false
	}
	field, ok := p.field(q.AggregationField)
	if !ok {
		return aggregation{}, false
	}
	agg.field = &field
	agg.values = valueKindOf(field.field.Type)

	switch kind {
	case query.AggregationSum, query.AggregationAvg:
		if agg.values != kindInteger && agg.values != kindFloat {
			return aggregation{}, false
		}
	case query.AggregationMin, query.AggregationMax:
		if agg.values == kindOther {
			return aggregation{}, false
		}
	}
	return agg, true
}

func (a aggregation) compute(rows []row) any {
	switch a.kind {
	case query.AggregationCount:
		return len(rows)
	case query.AggregationCountDistinct:
		seen := map[string]struct{}{}
		for _, current := range rows {
			if value := a.field.value(current); value != nil {
				seen[formatKey(value)] = struct{}{}
			}
		}
		return len(seen)
	case query.AggregationSum:
		if a.values == kindInteger {
			var total int64
			for _, current := range rows {
				if n, ok := integer(a.field.value(current)); ok {
					total += n
				}
			}
			return total
		}
		var total float64
		for _, current := range rows {
			if n, ok := numeric(a.field.value(current)); ok {
				total += n
			}
		}
		return total
	case query.AggregationAvg:
		var (
			total float64
			count int
		)
		for _, current := range rows {
			if n, ok := numeric(a.field.value(current)); ok {
				total += n
				count++
			}
		}
		if count == 0 {
			return nil
		}
		return total / float64(count)
	case query.AggregationMin, query.AggregationMax:
		var best any
		for _, current := range rows {
			value := a.field.value(current)
			if value == nil {
				continue
			}
			if best == nil {
				best = value
				continue
			}
			cmp, ok := compareValues(value, best)
			if !ok {
				continue
			}
			if (a.kind == query.AggregationMin && cmp < 0) || (a.kind == query.AggregationMax && cmp > 0) {
				best = value
			}
		}
		return best
	default:
		return nil
	}
}

// column describes the aggregate value in grouped results.
func (a aggregation) column() query.Column {
	column := query.Column{Name: strings.ToLower(string(a.kind)), DisplayName: aggregationDisplayNames[a.kind]}
	switch a.kind {
	case query.AggregationCount, query.AggregationCountDistinct:
		column.DataType = string(schema.TypeInt)
	case query.AggregationAvg:
		column.DataType = string(schema.TypeDouble)
		column.Nullable = true
	case query.AggregationSum:
		column.DataType = string(schema.TypeDouble)
		if a.values == kindInteger {
			column.DataType = string(schema.TypeLong)
		}
	default:
		column.DataType = string(a.field.field.Type)
		column.Nullable = true
	}
	return column
}

var aggregationDisplayNames = map[query.AggregationKind]string{
	query.AggregationCount:         "计数",
	query.AggregationCountDistinct: "去重计数",
	query.AggregationSum:           "合计",
	query.AggregationAvg:           "平均值",
	query.AggregationMin:           "最小值",
	query.AggregationMax:           "最大值",
}

type group struct {
	key    []any
	sample row
	rows   []row
}

// groupRows partitions rows by the group-by accessors, keeping first-seen order.
func groupRows(rows []row, by []accessor) []*group {
	var groups []*group
	index := map[string]*group{}
	for _, current := range rows {
		values := make([]any, len(by))
		parts := make([]string, len(by))
		for i, field := range by {
			values[i] = field.value(current)
			parts[i] = formatKey(values[i])
		}
		key := strings.Join(parts, "\x1f")
		item, ok := index[key]
		if !ok {
			item = &group{key: values, sample: current}
			index[key] = item
			groups = append(groups, item)
		}
		item.rows = append(item.rows, current)
	}
	return groups
}

// formatKey renders a canonical value as a stable map key.
func formatKey(value any) string {
	switch typed := value.(type) {
	case nil:
		return "\x00"
	case time.Time:
		return typed.UTC().Format(time.RFC3339Nano)
	case uuid.UUID:
		return typed.String()
	default:
		if n, ok := numeric(value); ok {
			return fmt.Sprintf("%g", n)
		}
		return fmt.Sprint(value)
	}
}
