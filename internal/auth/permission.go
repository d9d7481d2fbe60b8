package auth

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

const (
	MessageUnauthenticated = "用户未认证，请先登录"

	ownerField      = "EmployeeId"
	unitField       = "OrganizationUnitId"
	primaryKeyField = "Id"
)

// PermissionResult carries the query after field stripping and row-scope injection.
// RequiredFilters lists every row-scope condition: unqualified for the target, which also appears
// in Filtered.Filters, and "Qualifier.Field" for each joined source of a read.
type PermissionResult struct {
	Valid           bool                    `json:"valid"`
	Errors          []query.ValidationError `json:"errors,omitempty"`
	Warnings        []string                `json:"warnings,omitempty"`
	RemovedFields   []string                `json:"removedFields,omitempty"`
	RequiredFilters []query.FilterCondition `json:"requiredFilters,omitempty"`
	Filtered        query.StructuredQuery   `json:"-"`
}

func (r *PermissionResult) removed(path string) {
	for _, existing := range r.RemovedFields {
		if strings.EqualFold(existing, path) {
			return
		}
	}
	r.RemovedFields = append(r.RemovedFields, path)
}

func denied(message string) PermissionResult {
	return PermissionResult{Errors: []query.ValidationError{{Code: query.CodeInsufficientPermission, Message: message}}}
}

// PermissionRules names the entities that need a capability beyond hr:read. The same capability
// unlocks a wildcard sensitive-field entry on that entity.
type PermissionRules struct {
	RestrictedEntities map[string]string
	// OwnEntity is the entity whose primary key is the caller's employee id.
	OwnEntity string
}

type PermissionValidator struct {
	catalog  *schema.Catalog
	policies policy.Source
	rules    PermissionRules
}

func NewPermissionValidator(catalog *schema.Catalog, policies policy.Source, rules PermissionRules) *PermissionValidator {
	return &PermissionValidator{catalog: catalog, policies: policies, rules: rules}
}

// Validate runs after structural validation. The input query is not modified.
func (v *PermissionValidator) Validate(q query.StructuredQuery, identity Identity) PermissionResult {
	return v.ValidateWith(q, identity, v.policies.Current())
}

// ValidateWith is Validate against a policy snapshot the caller already holds.
func (v *PermissionValidator) ValidateWith(q query.StructuredQuery, identity Identity, p policy.Policy) PermissionResult {
	if !identity.Authenticated {
		return denied(MessageUnauthenticated)
	}

	if !v.CanAccessEntity(identity, q.TargetEntity) {
		return denied(fmt.Sprintf("您没有权限访问 '%s' 数据", v.displayName(q.TargetEntity)))
	}
	for _, join := range q.Joins {
		if !v.CanAccessEntity(identity, join.Entity) {
			return denied(fmt.Sprintf("您没有权限访问 '%s' 数据", v.displayName(join.Entity)))
		}
	}
	if !v.CanPerformOperation(identity, p, q.Operation) {
		return denied(fmt.Sprintf("您没有权限%s数据", operationVerb(q.Operation)))
	}

	filtered := q.Clone()
	result := PermissionResult{}
	scope, _ := v.catalog.Scope(q.TargetEntity, q.Joins)

	if q.HasAggregation() && q.AggregationField != "" && !v.canReadPath(identity, p, scope, q.AggregationField) {
		result.Errors = append(result.Errors, query.ValidationError{
			Code:    query.CodeSensitiveFieldDenied,
			Message: "您没有权限统计字段: " + q.AggregationField,
			Field:   q.AggregationField,
		})
	}
	for _, path := range q.GroupByFields {
		if !v.canReadPath(identity, p, scope, path) {
			result.Errors = append(result.Errors, query.ValidationError{
				Code:    query.CodeSensitiveFieldDenied,
				Message: "您没有权限按字段分组: " + path,
				Field:   path,
			})
		}
	}
	for _, filter := range q.Filters {
		if !v.canReadPath(identity, p, scope, filter.Field) {
			result.Errors = append(result.Errors, query.ValidationError{
				Code:    query.CodeSensitiveFieldDenied,
				Message: "您没有权限按字段过滤: " + filter.Field,
				Field:   filter.Field,
			})
		}
	}
	if len(result.Errors) > 0 {
		return result
	}

	if len(filtered.SelectFields) > 0 {
		kept := make([]string, 0, len(filtered.SelectFields))
		for _, path := range filtered.SelectFields {
			if v.canReadPath(identity, p, scope, path) {
				kept = append(kept, path)
				continue
			}
			result.removed(path)
		}
		filtered.SelectFields = kept
	}
	orders := filtered.OrderBy[:0]
	for _, order := range filtered.OrderBy {
		if v.canReadPath(identity, p, scope, order.Field) {
			orders = append(orders, order)
			continue
		}
		result.removed(order.Field)
	}
	filtered.OrderBy = orders
	if len(result.RemovedFields) > 0 {
		result.Warnings = append(result.Warnings, "以下敏感字段已被移除: "+strings.Join(result.RemovedFields, ", "))
	}

	targetScope := v.RowScope(identity, scope.Target)
	for _, required := range targetScope {
		if hasFilter(filtered.Filters, required) {
			continue
		}
		// Filters fold left to right, so the scope condition must be joined with AND.
		if last := len(filtered.Filters) - 1; last >= 0 {
			filtered.Filters[last].LogicalOperator = query.LogicalAnd
		}
		filtered.Filters = append(filtered.Filters, required)
	}
	result.RequiredFilters = append(result.RequiredFilters, targetScope...)
	if !q.Operation.IsMutation() {
		for _, qualifier := range scope.Qualifiers() {
			joined, ok := scope.Joined(qualifier)
			if !ok {
				continue
			}
			for _, required := range v.RowScope(identity, joined) {
				required.Field = qualifier + "." + required.Field
				result.RequiredFilters = append(result.RequiredFilters, required)
			}
		}
	}

	result.Valid = true
	result.Filtered = filtered
	return result
}

// hasFilter matches on field, operator and value. A caller-supplied filter on the same field with a
// different value does not replace the scope filter.
func hasFilter(filters []query.FilterCondition, candidate query.FilterCondition) bool {
	for index, existing := range filters {
		if !strings.EqualFold(existing.Field, candidate.Field) || existing.Operator != candidate.Operator {
			continue
		}
		if fmt.Sprint(existing.Value) != fmt.Sprint(candidate.Value) {
			continue
		}
		if index > 0 && filters[index-1].LogicalOperator.IsOr() {
			continue
		}
		if index < len(filters)-1 && existing.LogicalOperator.IsOr() {
			continue
		}
		return true
	}
	return false
}

func operationVerb(operation query.Operation) string {
	switch operation {
	case query.OperationInsert:
		return "新增"
	case query.OperationUpdate:
		return "修改"
	case query.OperationDelete:
		return "删除"
	default:
		return "执行此"
	}
}

func (v *PermissionValidator) displayName(entity string) string {
	if item, ok := v.catalog.Entity(entity); ok && item.DisplayName != "" {
		return item.DisplayName
	}
	return entity
}

func (v *PermissionValidator) restriction(entity string) (string, bool) {
	for name, capability := range v.rules.RestrictedEntities {
		if strings.EqualFold(name, entity) {
			return capability, true
		}
	}
	return "", false
}

func (v *PermissionValidator) CanAccessEntity(identity Identity, entity string) bool {
	if identity.Elevated() {
		return true
	}
	if capability, ok := v.restriction(entity); ok {
		return identity.HasPermission(capability)
	}
	return identity.HasPermission(CapabilityHRRead)
}

func (v *PermissionValidator) CanPerformOperation(identity Identity, p policy.Policy, operation query.Operation) bool {
	if !operation.IsMutation() {
		return identity.HasPermission(CapabilityHRRead) || identity.Elevated()
	}
	if !p.EnableCrud {
		return false
	}
	if identity.HasPermission(CapabilitySystemAdmin) {
		return true
	}
	return identity.HasPermission(p.RequiredCapability(operation))
}

// CanReadField reports whether identity may see a field. Sensitivity comes from the schema flag
// or the policy's sensitive-field map.
func (v *PermissionValidator) CanReadField(identity Identity, entity schema.EntitySchema, field schema.FieldSchema) bool {
	return v.canReadField(identity, v.policies.Current(), entity, field)
}

func (v *PermissionValidator) CanReadFieldWith(identity Identity, p policy.Policy, entity schema.EntitySchema, field schema.FieldSchema) bool {
	return v.canReadField(identity, p, entity, field)
}

func (v *PermissionValidator) canReadField(identity Identity, p policy.Policy, entity schema.EntitySchema, field schema.FieldSchema) bool {
	if identity.Elevated() {
		return true
	}
	configured := p.SensitiveFieldsFor(entity.Name)
	for _, name := range configured {
		if name == policy.WildcardField {
			if capability, ok := v.restriction(entity.Name); ok {
				return identity.HasPermission(capability)
			}
			return false
		}
	}
	sensitive := field.Sensitive
	for _, name := range configured {
		if strings.EqualFold(name, field.Name) {
			sensitive = true
			break
		}
	}
	if !sensitive {
		return true
	}
	if field.RequiredPermission != "" {
		return identity.HasPermission(field.RequiredPermission)
	}
	return false
}

func (v *PermissionValidator) canReadPath(identity Identity, p policy.Policy, scope schema.Scope, path string) bool {
	resolved, _, found := scope.Visible(path)
	if !found {
		return false
	}
	return v.canReadField(identity, p, resolved.Entity, resolved.Field)
}

// RowScope returns the mandatory filters for identity on entity. Elevated identities get none.
// Department managers are limited to their unit on entities that carry a unit reference; everyone
// else is bound to their own employee id. A missing id binds to uuid.Nil, which matches no row.
func (v *PermissionValidator) RowScope(identity Identity, entity schema.EntitySchema) []query.FilterCondition {
	if identity.Elevated() {
		return nil
	}
	if identity.HasPermission(CapabilityDepartmentManager) {
		if _, ok := entity.Field(unitField); ok {
			return []query.FilterCondition{scopeFilter(unitField, identity.UnitID)}
		}
		return nil
	}
	if strings.EqualFold(entity.Name, v.rules.OwnEntity) {
		return []query.FilterCondition{scopeFilter(primaryKeyField, identity.EmployeeID)}
	}
	if _, ok := entity.Field(ownerField); ok {
		return []query.FilterCondition{scopeFilter(ownerField, identity.EmployeeID)}
	}
	return nil
}

func scopeFilter(field string, value uuid.UUID) query.FilterCondition {
	return query.FilterCondition{Field: field, Operator: query.OpEqual, Value: value, LogicalOperator: query.LogicalAnd}
}
