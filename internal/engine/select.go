package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
)

func (e *Engine) selectRows(ctx context.Context, p *plan, q query.StructuredQuery, scope rowScope, identity auth.Identity, tenant uuid.UUID, pol policy.Policy) (query.Result, error) {
	rows, err := e.loadRows(ctx, p, scope, tenant)
	if err != nil {
		return query.Result{}, err
	}

	test, skipped := p.compileFilters(q.Filters)
	test = scope.restrict(test)
	result := query.Result{Success: true}
	if len(skipped) > 0 {
		result.Warnings = append(result.Warnings, "已忽略无法解析的过滤条件: "+strings.Join(skipped, ", "))
	}
	matched := rows[:0]
	for _, current := range rows {
		if test(current) {
			matched = append(matched, current)
		}
	}

	if q.HasAggregation() {
		return e.aggregate(p, q, matched, result, pol)
	}

	sortRows(matched, p.orderKeys(q.OrderBy))
	matched = paginate(matched, q.Offset, limitOf(q, pol))

	fields := e.selectedFields(p, q, identity, pol)
	result.Columns = make([]query.Column, len(fields))
	for i, field := range fields {
		result.Columns[i] = query.Column{
			Name:        field.column(p),
			DisplayName: field.field.DisplayName,
			DataType:    string(field.field.Type),
			Nullable:    field.field.Nullable || field.index > 0,
		}
	}
	result.Rows = make([]query.Row, 0, len(matched))
	for _, current := range matched {
		out := make(query.Row, len(fields))
		for i, field := range fields {
			out[result.Columns[i].Name] = field.value(current)
		}
		result.Rows = append(result.Rows, out)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// loadRows reads the target collection and expands it through every join. Joined records outside
// their row scope never take part in the join.
func (e *Engine) loadRows(ctx context.Context, p *plan, scope rowScope, tenant uuid.UUID) ([]row, error) {
	target := p.sources[0]
	records, err := e.Store.Load(ctx, tenant, target.binding)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", target.schema.Name, err)
	}
	rows := make([]row, len(records))
	for i, record := range records {
		rows[i] = row{record}
	}
	for _, join := range p.joins {
		joined := p.sources[join.index]
		records, err := e.Store.Load(ctx, tenant, joined.binding)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", joined.schema.Name, err)
		}
		rows = join.apply(rows, scope.narrow(join.index, records))
	}
	return rows, nil
}

func (e *Engine) aggregate(p *plan, q query.StructuredQuery, rows []row, result query.Result, pol policy.Policy) (query.Result, error) {
	agg, ok := p.newAggregation(q)
	result.Aggregation = q.Aggregation
	if !ok {
		result.Warnings = append(result.Warnings, MessageAggregationUnsupported)
		return result, nil
	}
	if len(q.GroupByFields) == 0 {
		result.AggregationValue = agg.compute(rows)
		return result, nil
	}

	by := make([]accessor, 0, len(q.GroupByFields))
	for _, path := range q.GroupByFields {
		field, ok := p.field(path)
		if !ok {
			return query.Result{}, fail(query.CodeFieldNotAllowed, "分组字段不存在: "+path)
		}
		by = append(by, field)
	}
	groups := groupRows(rows, by)

	keys := p.orderKeys(q.OrderBy)
	if len(keys) == 0 {
		for _, field := range by {
			keys = append(keys, orderKey{field: field})
		}
	}
	sort.SliceStable(groups, func(i, j int) bool {
		return compareRows(groups[i].sample, groups[j].sample, keys) < 0
	})
	groups = paginate(groups, q.Offset, limitOf(q, pol))

	for _, field := range by {
		result.Columns = append(result.Columns, query.Column{
			Name:        field.column(p),
			DisplayName: field.field.DisplayName,
			DataType:    string(field.field.Type),
			Nullable:    field.field.Nullable || field.index > 0,
		})
	}
	aggColumn := agg.column()
	result.Columns = append(result.Columns, aggColumn)

	result.Rows = make([]query.Row, 0, len(groups))
	for _, item := range groups {
		out := make(query.Row, len(by)+1)
		for i, value := range item.key {
			out[result.Columns[i].Name] = value
		}
		out[aggColumn.Name] = agg.compute(item.rows)
		result.Rows = append(result.Rows, out)
	}
	result.RowCount = len(result.Rows)
	return result, nil
}

// selectedFields returns the explicit selection, or every public field of the target the
// identity may read.
func (e *Engine) selectedFields(p *plan, q query.StructuredQuery, identity auth.Identity, pol policy.Policy) []accessor {
	var fields []accessor
	for _, path := range q.SelectFields {
		if field, ok := p.field(path); ok {
			fields = append(fields, field)
		}
	}
	if len(fields) > 0 {
		return fields
	}
	target := p.sources[0]
	for _, field := range target.schema.PublicFields() {
		if e.Permissions != nil && !e.Permissions.CanReadFieldWith(identity, pol, target.schema, field) {
			continue
		}
		fields = append(fields, accessor{index: 0, path: field.Name, binding: target.binding, entity: target.schema, field: field})
	}
	return fields
}

type orderKey struct {
	field      accessor
	descending bool
}

func (p *plan) orderKeys(clauses []query.OrderClause) []orderKey {
	keys := make([]orderKey, 0, len(clauses))
	for _, clause := range clauses {
		if field, ok := p.field(clause.Field); ok {
			keys = append(keys, orderKey{field: field, descending: clause.Descending})
		}
	}
	return keys
}

func compareRows(a, b row, keys []orderKey) int {
	for _, key := range keys {
		cmp := compareForSort(key.field.value(a), key.field.value(b))
		if key.descending {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

// sortRows is stable; later keys only break ties of earlier ones.
func sortRows(rows []row, keys []orderKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRows(rows[i], rows[j], keys) < 0
	})
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return items[:0]
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func limitOf(q query.StructuredQuery, pol policy.Policy) int {
	return pol.ClampLimit(q.Limit)
}
