package engine

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
	"github.com/duckmesh/askhr/internal/security"
)

const (
	createdAtField = "CreatedAt"
	updatedAtField = "UpdatedAt"
)

type assignment struct {
	field string
	value any
}

// assignments coerces mutation values to their field types in a stable order.
func assignments(target schema.EntitySchema, values map[string]any) ([]assignment, error) {
	names := sortedKeys(values)
	out := make([]assignment, 0, len(names))
	for _, name := range names {
		field, ok := target.Field(name)
		if !ok || field.Internal || field.ReadOnly {
			return nil, fail(query.CodeFieldNotAllowed, "字段不可写入: "+name)
		}
		value, err := field.Coerce(values[name])
		if err != nil {
			return nil, fail(query.CodeInvalidFieldType, "字段值类型不正确: "+field.Name)
		}
		if value == nil && !field.Nullable {
			return nil, fail(query.CodeInvalidFieldType, "字段不能为空: "+field.Name)
		}
		out = append(out, assignment{field: field.Name, value: value})
	}
	return out, nil
}

func hasAssignment(items []assignment, field string) bool {
	for _, item := range items {
		if strings.EqualFold(item.field, field) {
			return true
		}
	}
	return false
}

func (e *Engine) insert(ctx context.Context, p *plan, q query.StructuredQuery, tenant uuid.UUID) (query.Result, error) {
	target := p.sources[0]
	if !target.schema.SupportsCrud {
		return query.Result{}, fail(query.CodeOperationNotAllowed, "实体 "+target.schema.Name+" 不支持增删改操作")
	}
	values, err := assignments(target.schema, q.UpdateValues)
	if err != nil {
		return query.Result{}, err
	}

	record := target.binding.New()
	for _, item := range values {
		if err := target.binding.Set(record, item.field, item.value); err != nil {
			return query.Result{}, fail(query.CodeInvalidFieldType, "字段值类型不正确: "+item.field)
		}
	}
	var insertedID any
	if pk, ok := target.schema.PrimaryKey(); ok && pk.Type == schema.TypeUUID {
		id := uuid.New()
		if err := target.binding.Set(record, pk.Name, id); err != nil {
			return query.Result{}, err
		}
		insertedID = id
	}
	if target.binding.Has(createdAtField) && !hasAssignment(values, createdAtField) {
		if err := target.binding.Set(record, createdAtField, e.Clock().UTC()); err != nil {
			return query.Result{}, err
		}
	}

	if err := e.Store.Insert(ctx, tenant, target.binding, record); err != nil {
		return query.Result{}, err
	}
	if insertedID == nil {
		insertedID = target.binding.PrimaryKey(record)
	}
	return query.Result{Success: true, AffectedRows: 1, InsertedID: insertedID}, nil
}

// mutationFilter compiles the filters of an Update or Delete. Unlike reads, a condition that
// cannot be compiled fails the operation.
func mutationFilter(p *plan, q query.StructuredQuery, scope rowScope) (predicate, error) {
	if len(q.Filters) == 0 {
		return nil, fail(query.CodeFilterRequired, security.FilterRequiredMessage(q.Operation))
	}
	test, skipped := p.compileFilters(q.Filters)
	if len(skipped) > 0 {
		return nil, fail(query.CodeInvalidFilter, "过滤条件无效: "+strings.Join(skipped, ", "))
	}
	return scope.restrict(test), nil
}

func (e *Engine) update(ctx context.Context, p *plan, q query.StructuredQuery, scope rowScope, tenant uuid.UUID) (query.Result, error) {
	target := p.sources[0]
	if !target.schema.SupportsCrud {
		return query.Result{}, fail(query.CodeOperationNotAllowed, "实体 "+target.schema.Name+" 不支持增删改操作")
	}
	test, err := mutationFilter(p, q, scope)
	if err != nil {
		return query.Result{}, err
	}
	values, err := assignments(target.schema, q.UpdateValues)
	if err != nil {
		return query.Result{}, err
	}
	if pk, ok := target.schema.PrimaryKey(); ok && hasAssignment(values, pk.Name) {
		return query.Result{}, fail(query.CodeFieldNotAllowed, "不能更新主键字段: "+pk.Name)
	}
	stampUpdated := target.binding.Has(updatedAtField) && !hasAssignment(values, updatedAtField)
	now := e.Clock().UTC()

	affected, err := e.Store.Update(ctx, tenant, target.binding,
		func(record any) bool { return test(row{record}) },
		func(record any) error {
			for _, item := range values {
				if err := target.binding.Set(record, item.field, item.value); err != nil {
					return err
				}
			}
			if stampUpdated {
				return target.binding.Set(record, updatedAtField, now)
			}
			return nil
		},
	)
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{Success: true, AffectedRows: affected}, nil
}

func (e *Engine) delete(ctx context.Context, p *plan, q query.StructuredQuery, scope rowScope, tenant uuid.UUID) (query.Result, error) {
	target := p.sources[0]
	if !target.schema.SupportsCrud {
		return query.Result{}, fail(query.CodeOperationNotAllowed, "实体 "+target.schema.Name+" 不支持增删改操作")
	}
	test, err := mutationFilter(p, q, scope)
	if err != nil {
		return query.Result{}, err
	}
	affected, err := e.Store.Delete(ctx, tenant, target.binding, func(record any) bool { return test(row{record}) })
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{Success: true, AffectedRows: affected}, nil
}
