// Package security enforces the structural safety rules on structured queries: entity and field
// whitelists, join, filter and row caps, a complexity ceiling and a blocked-keyword scan of raw
// text.
package security

import (
	"fmt"
	"strings"

	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

type Result struct {
	Valid     bool                    `json:"valid"`
	Errors    []query.ValidationError `json:"errors,omitempty"`
	Warnings  []string                `json:"warnings,omitempty"`
	Corrected query.StructuredQuery   `json:"-"`
}

func (r *Result) fail(code, message, field string) {
	r.Errors = append(r.Errors, query.ValidationError{Code: code, Message: message, Field: field})
}

type Validator struct {
	catalog  *schema.Catalog
	policies policy.Source
}

func NewValidator(catalog *schema.Catalog, policies policy.Source) *Validator {
	return &Validator{catalog: catalog, policies: policies}
}

// Validate checks q against the current policy and returns a corrected copy. The caller's query
// is never modified.
func (v *Validator) Validate(q query.StructuredQuery) Result {
	return v.ValidateWith(q, v.policies.Current())
}

// ValidateWith is Validate against a policy snapshot the caller already holds.
func (v *Validator) ValidateWith(q query.StructuredQuery, p policy.Policy) Result {
	corrected := q.Clone()
	result := Result{}

	target, ok := v.checkEntity(&result, p, corrected.TargetEntity)
	if !ok {
		return result
	}
	corrected.TargetEntity = target.Name

	operation, known := query.ParseOperation(string(corrected.Operation))
	if !known {
		result.fail(query.CodeOperationNotAllowed, fmt.Sprintf("不支持的操作类型: %s", corrected.Operation), "")
		return result
	}
	corrected.Operation = operation
	if corrected.Operation.IsMutation() && !p.EnableCrud {
		result.fail(query.CodeOperationNotAllowed, fmt.Sprintf("当前不允许执行 %s 操作", corrected.Operation), "")
		return result
	}

	scope, _ := v.catalog.Scope(target.Name, corrected.Joins)

	for _, path := range corrected.SelectFields {
		if _, _, found := scope.Visible(path); !found {
			result.fail(query.CodeFieldNotAllowed, "字段不存在: "+path, path)
		}
	}

	if len(corrected.Joins) > p.MaxJoinTables {
		result.fail(query.CodeTooManyJoins, fmt.Sprintf("关联表数量超过限制 (最多 %d 个)", p.MaxJoinTables), "")
	}
	for _, join := range corrected.Joins {
		if !p.IsEntityAllowed(join.Entity) {
			result.fail(query.CodeEntityNotAllowed, "不允许关联实体: "+join.Entity, join.Entity)
			continue
		}
		if _, ok := v.catalog.Entity(join.Entity); !ok {
			result.fail(query.CodeEntityNotAllowed, "关联实体不存在: "+join.Entity, join.Entity)
		}
	}

	if len(corrected.Filters) > p.MaxFilters {
		result.fail(query.CodeTooManyFilters, fmt.Sprintf("过滤条件数量超过限制 (最多 %d 个)", p.MaxFilters), "")
	}
	for _, filter := range corrected.Filters {
		resolved, qualifierKnown, found := scope.Visible(filter.Field)
		switch {
		case !qualifierKnown:
			result.fail(query.CodeInvalidFilter, "过滤字段引用了未关联的实体: "+filter.Field, filter.Field)
		case !found:
			result.fail(query.CodeFieldNotAllowed, "过滤字段不存在: "+filter.Field, filter.Field)
		case !resolved.Field.Filterable:
			result.fail(query.CodeInvalidFilter, "字段不支持过滤: "+filter.Field, filter.Field)
		}
		if _, known := query.ParseOperator(string(filter.Operator)); !known {
			result.fail(query.CodeInvalidFilter, "不支持的过滤操作符: "+string(filter.Operator), filter.Field)
		}
	}

	if corrected.HasAggregation() && corrected.AggregationField != "" {
		if _, _, found := scope.Visible(corrected.AggregationField); !found {
			result.fail(query.CodeFieldNotAllowed, "聚合字段不存在: "+corrected.AggregationField, corrected.AggregationField)
		}
	}
	for _, path := range corrected.GroupByFields {
		if _, _, found := scope.Visible(path); !found {
			result.fail(query.CodeFieldNotAllowed, "分组字段不存在: "+path, path)
		}
	}
	for _, order := range corrected.OrderBy {
		resolved, _, found := scope.Visible(order.Field)
		if !found {
			result.fail(query.CodeFieldNotAllowed, "排序字段不存在: "+order.Field, order.Field)
			continue
		}
		if !resolved.Field.Sortable {
			result.fail(query.CodeFieldNotAllowed, "字段不支持排序: "+order.Field, order.Field)
		}
	}

	if corrected.Limit > p.MaxResultRows {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%s: 返回行数已从 %d 调整为 %d", query.WarningLimitAdjusted, corrected.Limit, p.MaxResultRows))
		corrected.Limit = p.MaxResultRows
	}
	if corrected.Offset < 0 {
		corrected.Offset = 0
	}

	if score := ComplexityScore(corrected); score > p.MaxComplexityScore {
		result.fail(query.CodeQueryTooComplex, fmt.Sprintf("查询过于复杂 (复杂度 %d，上限 %d)", score, p.MaxComplexityScore), "")
	}

	switch corrected.Operation {
	case query.OperationInsert, query.OperationUpdate:
		v.checkMutationValues(&result, target, corrected)
	case query.OperationDelete:
		if !target.SupportsCrud {
			result.fail(query.CodeOperationNotAllowed, "实体 "+target.Name+" 不支持增删改操作", "")
		}
	}
	if corrected.Operation == query.OperationUpdate || corrected.Operation == query.OperationDelete {
		if len(corrected.Filters) == 0 {
			result.fail(query.CodeFilterRequired, FilterRequiredMessage(corrected.Operation), "")
		}
	}

	result.Valid = len(result.Errors) == 0
	result.Corrected = corrected
	return result
}

func (v *Validator) checkEntity(result *Result, p policy.Policy, name string) (schema.EntitySchema, bool) {
	if strings.TrimSpace(name) == "" {
		result.fail(query.CodeEntityNotAllowed, "未指定目标实体", "")
		return schema.EntitySchema{}, false
	}
	entity, ok := v.catalog.Entity(name)
	if !ok {
		result.fail(query.CodeEntityNotAllowed, "实体不存在: "+name, name)
		return schema.EntitySchema{}, false
	}
	if !p.IsEntityAllowed(entity.Name) {
		result.fail(query.CodeEntityNotAllowed, "不允许查询实体: "+entity.Name, entity.Name)
		return schema.EntitySchema{}, false
	}
	return entity, true
}

func (v *Validator) checkMutationValues(result *Result, target schema.EntitySchema, q query.StructuredQuery) {
	if !target.SupportsCrud {
		result.fail(query.CodeOperationNotAllowed, "实体 "+target.Name+" 不支持增删改操作", "")
		return
	}
	if len(q.UpdateValues) == 0 {
		result.fail(query.CodeInvalidFieldType, "未提供要写入的字段值", "")
		return
	}
	for name := range q.UpdateValues {
		field, ok := target.Field(name)
		switch {
		case !ok || field.Internal:
			result.fail(query.CodeFieldNotAllowed, "字段不存在: "+name, name)
		case q.Operation == query.OperationUpdate && field.PrimaryKey:
			result.fail(query.CodeFieldNotAllowed, "不能更新主键字段: "+name, name)
		case field.ReadOnly:
			result.fail(query.CodeFieldNotAllowed, "字段为只读字段: "+name, name)
		}
	}
}

// FilterRequiredMessage is the refusal for unscoped Update and Delete operations.
func FilterRequiredMessage(operation query.Operation) string {
	if operation == query.OperationDelete {
		return "删除操作必须指定过滤条件"
	}
	return "更新操作必须指定过滤条件"
}

// ComplexityScore estimates the cost of a query:
// 5 per join, 2 per filter, 10 for an aggregation, 5 per group-by field, 1 per order clause,
// 15 for a mutation and 10 when more than 500 rows are requested.
func ComplexityScore(q query.StructuredQuery) int {
	score := 5*len(q.Joins) + 2*len(q.Filters) + 5*len(q.GroupByFields) + len(q.OrderBy)
	if q.HasAggregation() {
		score += 10
	}
	if q.Operation.IsMutation() {
		score += 15
	}
	if q.Limit > 500 {
		score += 10
	}
	return score
}

// ValidateRawText scans text for blocked keywords, case-insensitively.
func (v *Validator) ValidateRawText(text string) Result {
	lower := strings.ToLower(text)
	var found []string
	for _, keyword := range v.policies.Current().BlockedKeywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(lower, keyword) {
			found = append(found, keyword)
		}
	}
	if len(found) == 0 {
		return Result{Valid: true}
	}
	result := Result{}
	result.fail(query.CodeDangerousKeyword, "查询包含不允许的关键词: "+strings.Join(found, ", "), "")
	return result
}
