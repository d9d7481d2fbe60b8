package engine

import (
	"strings"
	"time"

	"github.com/duckmesh/askhr/internal/entity"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

// row is one candidate result: the target record followed by one record per join. A nil entry is
// an unmatched left join.
type row []any

type source struct {
	qualifier string
	schema    schema.EntitySchema
	binding   *entity.Binding
}

type joinPlan struct {
	index int
	left  bool
	// outer reads the key from an earlier source, inner from the joined record.
	outer accessor
	inner accessor
}

type plan struct {
	sources     []source
	byQualifier map[string]int
	joins       []joinPlan
}

type accessor struct {
	index   int
	path    string
	binding *entity.Binding
	entity  schema.EntitySchema
	field   schema.FieldSchema
}

func (a accessor) value(r row) any {
	if a.index >= len(r) || r[a.index] == nil {
		return nil
	}
	value, _ := a.binding.Get(r[a.index], a.field.Name)
	return value
}

// column is the result column name: the field name on the target, "Qualifier.Field" otherwise.
func (a accessor) column(p *plan) string {
	if a.index == 0 {
		return a.field.Name
	}
	return p.sources[a.index].qualifier + "." + a.field.Name
}

// newPlan resolves the target and, for reads, every join. Mutations only ever see the target.
func (e *Engine) newPlan(q query.StructuredQuery, withJoins bool) (*plan, error) {
	target, ok := e.Catalog.Entity(q.TargetEntity)
	if !ok {
		return nil, fail(query.CodeEntityNotAllowed, "实体不存在: "+q.TargetEntity)
	}
	binding, err := e.binding(target.Name)
	if err != nil {
		return nil, err
	}
	p := &plan{
		sources:     []source{{schema: target, binding: binding}},
		byQualifier: map[string]int{strings.ToLower(target.Name): 0},
	}
	if !withJoins {
		return p, nil
	}

	for _, clause := range q.Joins {
		joined, ok := e.Catalog.Entity(clause.Entity)
		if !ok {
			return nil, fail(query.CodeEntityNotAllowed, "关联实体不存在: "+clause.Entity)
		}
		joinedBinding, err := e.binding(joined.Name)
		if err != nil {
			return nil, err
		}
		qualifier := strings.TrimSpace(clause.Alias)
		if qualifier == "" {
			qualifier = joined.Name
		}
		if _, taken := p.byQualifier[strings.ToLower(qualifier)]; taken {
			return nil, fail(query.CodeInvalidFilter, "关联实体重复，请为其指定别名: "+qualifier)
		}
		index := len(p.sources)
		p.sources = append(p.sources, source{qualifier: qualifier, schema: joined, binding: joinedBinding})
		p.byQualifier[strings.ToLower(qualifier)] = index
		if _, exists := p.byQualifier[strings.ToLower(joined.Name)]; !exists {
			p.byQualifier[strings.ToLower(joined.Name)] = index
		}

		join, ok := p.parseOn(clause.On, index)
		if !ok {
			join, ok = p.inferJoin(index)
		}
		if !ok {
			return nil, fail(query.CodeInvalidFilter, "无法确定关联条件: "+clause.Entity)
		}
		join.left = strings.Contains(strings.ToLower(clause.JoinType), "left")
		p.joins = append(p.joins, join)
	}
	return p, nil
}

// resolve finds a field path among the first limit sources.
func (p *plan) resolve(path string, limit int) (accessor, bool) {
	qualifier, fieldName := schema.SplitFieldPath(path)
	index := 0
	if qualifier != "" {
		found, ok := p.byQualifier[strings.ToLower(qualifier)]
		if !ok {
			return accessor{}, false
		}
		index = found
	}
	if index >= limit {
		return accessor{}, false
	}
	src := p.sources[index]
	field, ok := src.schema.Field(fieldName)
	if !ok {
		return accessor{}, false
	}
	return accessor{index: index, path: path, binding: src.binding, entity: src.schema, field: field}, true
}

func (p *plan) field(path string) (accessor, bool) {
	return p.resolve(path, len(p.sources))
}

// parseOn reads "A.X = B.Y" where one side is the joined source and the other an earlier one.
func (p *plan) parseOn(on string, index int) (joinPlan, bool) {
	parts := strings.SplitN(strings.ReplaceAll(on, "==", "="), "=", 2)
	if len(parts) != 2 {
		return joinPlan{}, false
	}
	left, okLeft := p.resolve(strings.TrimSpace(parts[0]), index+1)
	right, okRight := p.resolve(strings.TrimSpace(parts[1]), index+1)
	if !okLeft || !okRight {
		return joinPlan{}, false
	}
	switch {
	case left.index == index && right.index < index:
		return joinPlan{index: index, outer: right, inner: left}, true
	case right.index == index && left.index < index:
		return joinPlan{index: index, outer: left, inner: right}, true
	default:
		return joinPlan{}, false
	}
}

// inferJoin follows a foreign key between the joined entity and any earlier source.
func (p *plan) inferJoin(index int) (joinPlan, bool) {
	joined := p.sources[index]
	for earlier := 0; earlier < index; earlier++ {
		src := p.sources[earlier]
		for _, field := range src.schema.Fields {
			if field.ForeignKey && strings.EqualFold(field.References, joined.schema.Name) {
				if pk, ok := joined.schema.PrimaryKey(); ok {
					return joinPlan{
						index: index,
						outer: accessor{index: earlier, binding: src.binding, entity: src.schema, field: field},
						inner: accessor{index: index, binding: joined.binding, entity: joined.schema, field: pk},
					}, true
				}
			}
		}
		for _, field := range joined.schema.Fields {
			if field.ForeignKey && strings.EqualFold(field.References, src.schema.Name) {
				if pk, ok := src.schema.PrimaryKey(); ok {
					return joinPlan{
						index: index,
						outer: accessor{index: earlier, binding: src.binding, entity: src.schema, field: pk},
						inner: accessor{index: index, binding: joined.binding, entity: joined.schema, field: field},
					}, true
				}
			}
		}
	}
	return joinPlan{}, false
}

// apply extends every row with the matching records of the joined collection.
func (j joinPlan) apply(rows []row, records []any) []row {
	index := make(map[any][]any, len(records))
	lookup := make(row, j.index+1)
	for _, record := range records {
		lookup[j.index] = record
		key := joinKey(j.inner.value(lookup))
		if key == nil {
			continue
		}
		index[key] = append(index[key], record)
	}

	out := make([]row, 0, len(rows))
	for _, current := range rows {
		key := joinKey(j.outer.value(current))
		matches := index[key]
		if key == nil || len(matches) == 0 {
			if j.left {
				out = append(out, extend(current, nil))
			}
			continue
		}
		for _, match := range matches {
			out = append(out, extend(current, match))
		}
	}
	return out
}

func extend(current row, record any) row {
	next := make(row, len(current), len(current)+1)
	copy(next, current)
	return append(next, record)
}

func joinKey(value any) any {
	if t, ok := value.(time.Time); ok {
		return t.UTC()
	}
	return value
}
