package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

type predicate func(row) bool

func matchAll(row) bool { return true }

type clause struct {
	test predicate
	or   bool
}

// compileFilters builds one predicate from filters. A condition that cannot be compiled is left
// out and reported in skipped; the surrounding conditions still fold left to right.
func (p *plan) compileFilters(filters []query.FilterCondition) (predicate, []string) {
	var (
		clauses []clause
		skipped []string
	)
	for _, filter := range filters {
		test, err := p.compileFilter(filter)
		if err != nil {
			skipped = append(skipped, filter.Field)
			continue
		}
		clauses = append(clauses, clause{test: test, or: filter.LogicalOperator.IsOr()})
	}
	return fold(clauses), skipped
}

func fold(clauses []clause) predicate {
	if len(clauses) == 0 {
		return matchAll
	}
	combined := clauses[0].test
	for i := 1; i < len(clauses); i++ {
		prev, next := combined, clauses[i].test
		if clauses[i-1].or {
			combined = func(r row) bool { return prev(r) || next(r) }
		} else {
			combined = func(r row) bool { return prev(r) && next(r) }
		}
	}
	return combined
}

// rowScope holds the row-scope predicate of each source, keyed by source index. The target's
// predicate is ANDed with the compiled filters; a joined source is narrowed before it joins.
type rowScope map[int]predicate

// compileScope compiles the permission filters strictly: a condition that cannot be compiled
// fails the query instead of being skipped.
func (p *plan) compileScope(required []query.FilterCondition) (rowScope, error) {
	scope := rowScope{}
	for _, filter := range required {
		field, ok := p.field(filter.Field)
		if !ok {
			return nil, fmt.Errorf("row scope field %q is not part of the plan", filter.Field)
		}
		test, err := p.compileFilter(filter)
		if err != nil {
			return nil, fmt.Errorf("row scope %s: %w", filter.Field, err)
		}
		if previous, ok := scope[field.index]; ok {
			scope[field.index] = func(r row) bool { return previous(r) && test(r) }
			continue
		}
		scope[field.index] = test
	}
	return scope, nil
}

// restrict ANDs the target's scope onto test.
func (s rowScope) restrict(test predicate) predicate {
	scoped, ok := s[0]
	if !ok {
		return test
	}
	return func(r row) bool { return scoped(r) && test(r) }
}

// narrow keeps the records of source index that pass its scope.
func (s rowScope) narrow(index int, records []any) []any {
	scoped, ok := s[index]
	if !ok {
		return records
	}
	candidate := make(row, index+1)
	kept := make([]any, 0, len(records))
	for _, record := range records {
		candidate[index] = record
		if scoped(candidate) {
			kept = append(kept, record)
		}
	}
	return kept
}

func (p *plan) compileFilter(filter query.FilterCondition) (predicate, error) {
	field, ok := p.field(filter.Field)
	if !ok {
		return nil, fmt.Errorf("unknown filter field %q", filter.Field)
	}
	op, ok := query.ParseOperator(string(filter.Operator))
	if !ok {
		return nil, fmt.Errorf("unknown operator %q", filter.Operator)
	}

	switch op {
	case query.OpIsNull:
		return func(r row) bool { return field.value(r) == nil }, nil
	case query.OpIsNotNull:
		return func(r row) bool { return field.value(r) != nil }, nil
	case query.OpEqual, query.OpNotEqual:
		if filter.Value == nil {
			if op == query.OpEqual {
				return func(r row) bool { return field.value(r) == nil }, nil
			}
			return func(r row) bool { return field.value(r) != nil }, nil
		}
		target, err := field.field.Coerce(filter.Value)
		if err != nil {
			return nil, err
		}
		if op == query.OpEqual {
			return func(r row) bool { return valuesEqual(field.value(r), target) }, nil
		}
		return func(r row) bool { return !valuesEqual(field.value(r), target) }, nil
	case query.OpGreaterThan, query.OpGreaterThanOrEqual, query.OpLessThan, query.OpLessThanOrEqual:
		target, err := field.field.Coerce(filter.Value)
		if err != nil || target == nil {
			return nil, fmt.Errorf("invalid comparison value for %s", filter.Field)
		}
		accept := orderingTest(op)
		return func(r row) bool {
			cmp, ok := compareValues(field.value(r), target)
			return ok && accept(cmp)
		}, nil
	case query.OpContains, query.OpStartsWith, query.OpEndsWith:
		if field.field.Type != schema.TypeString {
			return nil, fmt.Errorf("%s requires a text field", op)
		}
		needle := strings.ToLower(fmt.Sprint(filter.Value))
		if filter.Value == nil || needle == "" {
			return nil, fmt.Errorf("%s requires a value", op)
		}
		match := textTest(op)
		return func(r row) bool {
			text, ok := field.value(r).(string)
			return ok && match(strings.ToLower(text), needle)
		}, nil
	case query.OpIn, query.OpNotIn:
		var members []any
		for _, item := range listValues(filter.Value) {
			if coerced, err := field.field.Coerce(item); err == nil && coerced != nil {
				members = append(members, coerced)
			}
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("%s requires at least one valid value", op)
		}
		contains := func(r row) bool {
			current := field.value(r)
			for _, member := range members {
				if valuesEqual(current, member) {
					return true
				}
			}
			return false
		}
		if op == query.OpIn {
			return contains, nil
		}
		return func(r row) bool { return !contains(r) }, nil
	case query.OpBetween:
		bounds := betweenBounds(filter.Value)
		if len(bounds) != 2 {
			return nil, fmt.Errorf("between requires two bounds")
		}
		low, err := field.field.Coerce(bounds[0])
		if err != nil || low == nil {
			return nil, fmt.Errorf("invalid lower bound for %s", filter.Field)
		}
		high, err := field.field.Coerce(bounds[1])
		if err != nil || high == nil {
			return nil, fmt.Errorf("invalid upper bound for %s", filter.Field)
		}
		return func(r row) bool {
			current := field.value(r)
			lo, okLow := compareValues(current, low)
			hi, okHigh := compareValues(current, high)
			return okLow && okHigh && lo >= 0 && hi <= 0
		}, nil
	default:
		return nil, fmt.Errorf("unsupported operator %q", op)
	}
}

func orderingTest(op query.Operator) func(int) bool {
	switch op {
	case query.OpGreaterThan:
		return func(cmp int) bool { return cmp > 0 }
	case query.OpGreaterThanOrEqual:
		return func(cmp int) bool { return cmp >= 0 }
	case query.OpLessThan:
		return func(cmp int) bool { return cmp < 0 }
	default:
		return func(cmp int) bool { return cmp <= 0 }
	}
}

func textTest(op query.Operator) func(text, needle string) bool {
	switch op {
	case query.OpStartsWith:
		return strings.HasPrefix
	case query.OpEndsWith:
		return strings.HasSuffix
	default:
		return strings.Contains
	}
}

// listValues accepts a JSON array, any slice, or a comma separated string.
func listValues(value any) []any {
	switch typed := value.(type) {
	case nil:
		return nil
	case []any:
		return typed
	case string:
		var out []any
		for _, part := range strings.Split(typed, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return []any{value}
		}
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out
	}
	return []any{value}
}

// betweenBounds reads a two element list or a "low,high" string. Anything else yields no bounds.
func betweenBounds(value any) []any {
	if _, ok := value.(string); !ok {
		rv := reflect.ValueOf(value)
		if value == nil || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil
		}
	}
	bounds := listValues(value)
	if len(bounds) != 2 {
		return nil
	}
	return bounds
}
