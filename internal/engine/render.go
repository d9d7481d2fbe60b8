package engine

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/store"
)

// render produces a SQL-like description of the executed query for audit and debugging. It never
// fails the query: any problem yields an empty string.
func (e *Engine) render(q query.StructuredQuery, required []query.FilterCondition, pol policy.Policy) (text string) {
	defer func() {
		if recovered := recover(); recovered != nil {
			e.Logger.Warn("query_render_failed", slog.String("entity", q.TargetEntity), slog.Any("panic", recovered))
			text = ""
		}
	}()
	p, err := e.newPlan(q, q.Operation == query.OperationSelect || q.Operation == "")
	if err != nil {
		return ""
	}
	r := renderer{plan: p, joinScope: map[int][]query.FilterCondition{}}
	for _, filter := range required {
		if field, ok := p.field(filter.Field); ok && field.index > 0 {
			r.joinScope[field.index] = append(r.joinScope[field.index], filter)
		}
	}
	switch q.Operation {
	case query.OperationInsert:
		return r.insert(q)
	case query.OperationUpdate:
		return r.update(q)
	case query.OperationDelete:
		return r.delete(q)
	default:
		return r.selectSQL(q, pol.ClampLimit(q.Limit))
	}
}

type renderer struct {
	plan *plan
	// joinScope holds the row-scope conditions rendered into each join's ON clause.
	joinScope map[int][]query.FilterCondition
}

func (r renderer) alias(index int) string {
	return "t" + strconv.Itoa(index)
}

func (r renderer) column(path string) string {
	field, ok := r.plan.field(path)
	if !ok {
		return store.SnakeCase(path)
	}
	return r.alias(field.index) + "." + store.SnakeCase(field.field.Name)
}

func (r renderer) accessorColumn(field accessor) string {
	return r.alias(field.index) + "." + store.SnakeCase(field.field.Name)
}

func (r renderer) selectSQL(q query.StructuredQuery, limit int) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	switch {
	case q.HasAggregation():
		var items []string
		for _, path := range q.GroupByFields {
			items = append(items, r.column(path))
		}
		argument := "*"
		if q.Aggregation != query.AggregationCount && q.AggregationField != "" {
			argument = r.column(q.AggregationField)
		}
		function := strings.ToUpper(string(q.Aggregation))
		if q.Aggregation == query.AggregationCountDistinct {
			function, argument = "COUNT", "DISTINCT "+argument
		}
		items = append(items, fmt.Sprintf("%s(%s)", function, argument))
		b.WriteString(strings.Join(items, ", "))
	case len(q.SelectFields) > 0:
		items := make([]string, len(q.SelectFields))
		for i, path := range q.SelectFields {
			items[i] = r.column(path)
		}
		b.WriteString(strings.Join(items, ", "))
	default:
		b.WriteString(r.alias(0) + ".*")
	}

	b.WriteString(" FROM " + store.TableName(r.plan.sources[0].schema.Name) + " " + r.alias(0))
	for _, join := range r.plan.joins {
		kind := "INNER JOIN"
		if join.left {
			kind = "LEFT JOIN"
		}
		b.WriteString(fmt.Sprintf(" %s %s %s ON %s = %s", kind,
			store.TableName(r.plan.sources[join.index].schema.Name), r.alias(join.index),
			r.accessorColumn(join.outer), r.accessorColumn(join.inner)))
		for _, filter := range r.joinScope[join.index] {
			b.WriteString(" AND " + r.condition(filter))
		}
	}
	if where := r.where(q.Filters); where != "" {
		b.WriteString(" WHERE " + where)
	}
	if q.HasAggregation() && len(q.GroupByFields) > 0 {
		items := make([]string, len(q.GroupByFields))
		for i, path := range q.GroupByFields {
			items[i] = r.column(path)
		}
		b.WriteString(" GROUP BY " + strings.Join(items, ", "))
	}
	if len(q.OrderBy) > 0 {
		items := make([]string, len(q.OrderBy))
		for i, order := range q.OrderBy {
			items[i] = r.column(order.Field)
			if order.Descending {
				items[i] += " DESC"
			}
		}
		b.WriteString(" ORDER BY " + strings.Join(items, ", "))
	}
	if !q.HasAggregation() || len(q.GroupByFields) > 0 {
		b.WriteString(" LIMIT " + strconv.Itoa(limit))
		if q.Offset > 0 {
			b.WriteString(" OFFSET " + strconv.Itoa(q.Offset))
		}
	}
	return b.String()
}

func (r renderer) insert(q query.StructuredQuery) string {
	names := sortedKeys(q.UpdateValues)
	columns := make([]string, len(names))
	values := make([]string, len(names))
	for i, name := range names {
		columns[i] = store.SnakeCase(name)
		values[i] = literal(q.UpdateValues[name])
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		store.TableName(r.plan.sources[0].schema.Name), strings.Join(columns, ", "), strings.Join(values, ", "))
}

func (r renderer) update(q query.StructuredQuery) string {
	names := sortedKeys(q.UpdateValues)
	sets := make([]string, len(names))
	for i, name := range names {
		sets[i] = store.SnakeCase(name) + " = " + literal(q.UpdateValues[name])
	}
	text := fmt.Sprintf("UPDATE %s %s SET %s", store.TableName(r.plan.sources[0].schema.Name), r.alias(0), strings.Join(sets, ", "))
	if where := r.where(q.Filters); where != "" {
		text += " WHERE " + where
	}
	return text
}

func (r renderer) delete(q query.StructuredQuery) string {
	text := fmt.Sprintf("DELETE FROM %s %s", store.TableName(r.plan.sources[0].schema.Name), r.alias(0))
	if where := r.where(q.Filters); where != "" {
		text += " WHERE " + where
	}
	return text
}

// where renders filters in evaluation order, adding parentheses where the connective changes.
func (r renderer) where(filters []query.FilterCondition) string {
	var (
		text     string
		previous string
	)
	for i, filter := range filters {
		condition := r.condition(filter)
		if i == 0 {
			text = condition
			continue
		}
		connective := "AND"
		if filters[i-1].LogicalOperator.IsOr() {
			connective = "OR"
		}
		if previous != "" && previous != connective {
			text = "(" + text + ")"
		}
		text += " " + connective + " " + condition
		previous = connective
	}
	return text
}

func (r renderer) condition(filter query.FilterCondition) string {
	column := r.column(filter.Field)
	op, _ := query.ParseOperator(string(filter.Operator))
	switch op {
	case query.OpIsNull:
		return column + " IS NULL"
	case query.OpIsNotNull:
		return column + " IS NOT NULL"
	case query.OpEqual:
		if filter.Value == nil {
			return column + " IS NULL"
		}
		return column + " = " + literal(filter.Value)
	case query.OpNotEqual:
		if filter.Value == nil {
			return column + " IS NOT NULL"
		}
		return column + " <> " + literal(filter.Value)
	case query.OpGreaterThan:
		return column + " > " + literal(filter.Value)
	case query.OpGreaterThanOrEqual:
		return column + " >= " + literal(filter.Value)
	case query.OpLessThan:
		return column + " < " + literal(filter.Value)
	case query.OpLessThanOrEqual:
		return column + " <= " + literal(filter.Value)
	case query.OpContains:
		return column + " LIKE " + literal("%"+fmt.Sprint(filter.Value)+"%")
	case query.OpStartsWith:
		return column + " LIKE " + literal(fmt.Sprint(filter.Value)+"%")
	case query.OpEndsWith:
		return column + " LIKE " + literal("%"+fmt.Sprint(filter.Value))
	case query.OpIn, query.OpNotIn:
		items := listValues(filter.Value)
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = literal(item)
		}
		keyword := " IN "
		if op == query.OpNotIn {
			keyword = " NOT IN "
		}
		return column + keyword + "(" + strings.Join(parts, ", ") + ")"
	case query.OpBetween:
		bounds := betweenBounds(filter.Value)
		if len(bounds) != 2 {
			return column + " BETWEEN ? AND ?"
		}
		return column + " BETWEEN " + literal(bounds[0]) + " AND " + literal(bounds[1])
	default:
		return column + " " + string(filter.Operator) + " " + literal(filter.Value)
	}
}

func literal(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(typed, "'", "''") + "'"
	case bool:
		if typed {
			return "TRUE"
		}
		return "FALSE"
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return "'" + typed.Format(time.DateOnly) + "'"
		}
		return "'" + typed.UTC().Format(time.RFC3339) + "'"
	case uuid.UUID:
		return "'" + typed.String() + "'"
	case []any:
		parts := make([]string, len(typed))
		for i, item := range typed {
			parts[i] = literal(item)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	default:
		if n, ok := numeric(value); ok {
			return strconv.FormatFloat(n, 'f', -1, 64)
		}
		return literal(fmt.Sprint(value))
	}
}

func sortedKeys(values map[string]any) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
