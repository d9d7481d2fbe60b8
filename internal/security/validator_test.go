package security

import (
	"strings"
	"testing"

	"github.com/duckmesh/askhr/internal/hr"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
)

func newTestValidator(t *testing.T, mutate func(*policy.Policy)) *Validator {
	t.Helper()
	p := policy.Default()
	if mutate != nil {
		mutate(&p)
	}
	return NewValidator(hr.Catalog(), policy.Static(p))
}

func hasCode(errs []query.ValidationError, code string) bool {
	for _, item := range errs {
		if item.Code == code {
			return true
		}
	}
	return false
}

func TestValidateAcceptsSimpleSelect(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		Operation:    query.OperationSelect,
		TargetEntity: "员工",
		SelectFields: []string{"EmployeeNumber", "工号", "OrganizationUnit.Name"},
		Joins:        []query.JoinClause{{Entity: "OrganizationUnit", On: "Employee.OrganizationUnitId = OrganizationUnit.Id"}},
		Filters:      []query.FilterCondition{{Field: "Status", Operator: query.OpEqual, Value: "Active"}},
		Limit:        50,
	})
	if !result.Valid {
		t.Fatalf("expected valid query, got %+v", result.Errors)
	}
	if result.Corrected.TargetEntity != hr.EntityEmployee {
		t.Fatalf("expected canonical entity name, got %q", result.Corrected.TargetEntity)
	}
}

func TestValidateRejectsUnknownOrDisallowedEntity(t *testing.T) {
	v := newTestValidator(t, func(p *policy.Policy) {
		p.AllowedEntities = []string{"Employee"}
	})
	result := v.Validate(query.StructuredQuery{TargetEntity: "Customer"})
	if result.Valid || !hasCode(result.Errors, query.CodeEntityNotAllowed) {
		t.Fatalf("expected ENTITY_NOT_ALLOWED for unknown entity, got %+v", result)
	}
	result = v.Validate(query.StructuredQuery{TargetEntity: "PayrollRecord"})
	if result.Valid || result.Errors[0].Message != "不允许查询实体: PayrollRecord" {
		t.Fatalf("expected disallowed entity message, got %+v", result.Errors)
	}
	result = v.Validate(query.StructuredQuery{TargetEntity: "  "})
	if result.Valid || result.Errors[0].Message != "未指定目标实体" {
		t.Fatalf("expected missing entity message, got %+v", result.Errors)
	}
}

func TestValidateRejectsMutationWhenCrudDisabled(t *testing.T) {
	v := newTestValidator(t, func(p *policy.Policy) { p.EnableCrud = false })
	result := v.Validate(query.StructuredQuery{
		Operation:    query.OperationDelete,
		TargetEntity: "Employee",
		Filters:      []query.FilterCondition{{Field: "EmployeeNumber", Operator: query.OpEqual, Value: "E001"}},
	})
	if result.Valid || !hasCode(result.Errors, query.CodeOperationNotAllowed) {
		t.Fatalf("expected OPERATION_NOT_ALLOWED, got %+v", result)
	}
	result = v.Validate(query.StructuredQuery{
		Operation:    "delete",
		TargetEntity: "Employee",
		Filters:      []query.FilterCondition{{Field: "EmployeeNumber", Operator: query.OpEqual, Value: "E001"}},
	})
	if result.Valid || !hasCode(result.Errors, query.CodeOperationNotAllowed) {
		t.Fatalf("lowercase operation must be treated as a mutation, got %+v", result)
	}
}

func TestValidateCanonicalizesOperation(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{TargetEntity: "LeaveType", Operation: " select "})
	if !result.Valid || result.Corrected.Operation != query.OperationSelect {
		t.Fatalf("Corrected.Operation = %q, errors %+v", result.Corrected.Operation, result.Errors)
	}
}

func TestValidateReportsUnknownFields(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		TargetEntity:  "Employee",
		SelectFields:  []string{"Salary"},
		GroupByFields: []string{"Nope"},
		OrderBy:       []query.OrderClause{{Field: "Missing"}},
	})
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if len(result.Errors) != 3 {
		t.Fatalf("expected three field errors, got %+v", result.Errors)
	}
	if result.Errors[0].Message != "字段不存在: Salary" {
		t.Fatalf("unexpected first message %q", result.Errors[0].Message)
	}
}

func TestValidateHidesInternalFields(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		TargetEntity: "LeaveRequest",
		SelectFields: []string{"TenantId", "LeaveRequest.TenantId"},
		Filters:      []query.FilterCondition{{Field: "TenantId", Operator: query.OpEqual, Value: "00000000-0000-0000-0000-000000000000"}},
		OrderBy:      []query.OrderClause{{Field: "TenantId"}},
	})
	if result.Valid {
		t.Fatalf("internal fields must not resolve")
	}
	want := []string{"字段不存在: TenantId", "字段不存在: LeaveRequest.TenantId", "过滤字段不存在: TenantId", "排序字段不存在: TenantId"}
	if len(result.Errors) != len(want) {
		t.Fatalf("errors = %+v", result.Errors)
	}
	for i, message := range want {
		if result.Errors[i].Message != message || result.Errors[i].Code != query.CodeFieldNotAllowed {
			t.Fatalf("error %d = %+v, want %q", i, result.Errors[i], message)
		}
	}
}

func TestValidateWithUsesGivenPolicy(t *testing.T) {
	v := newTestValidator(t, nil)
	restricted := policy.Default()
	restricted.AllowedEntities = []string{"Employee"}
	q := query.StructuredQuery{TargetEntity: "LeaveRequest"}
	if result := v.Validate(q); !result.Valid {
		t.Fatalf("current policy allows LeaveRequest: %+v", result.Errors)
	}
	if result := v.ValidateWith(q, restricted); result.Valid || !hasCode(result.Errors, query.CodeEntityNotAllowed) {
		t.Fatalf("snapshot policy should reject LeaveRequest: %+v", result)
	}
}

func TestValidateJoinAndFilterCaps(t *testing.T) {
	v := newTestValidator(t, func(p *policy.Policy) {
		p.MaxJoinTables = 1
		p.MaxFilters = 1
		p.MaxComplexityScore = 1000
	})
	result := v.Validate(query.StructuredQuery{
		TargetEntity: "LeaveBalance",
		Joins: []query.JoinClause{
			{Entity: "Employee"},
			{Entity: "LeaveType"},
		},
		Filters: []query.FilterCondition{
			{Field: "Year", Operator: query.OpEqual, Value: 2024},
			{Field: "Employee.Status", Operator: query.OpEqual, Value: "Active"},
		},
	})
	if !hasCode(result.Errors, query.CodeTooManyJoins) || !hasCode(result.Errors, query.CodeTooManyFilters) {
		t.Fatalf("expected join and filter caps, got %+v", result.Errors)
	}
	for _, item := range result.Errors {
		if item.Code == query.CodeTooManyJoins && item.Message != "关联表数量超过限制 (最多 1 个)" {
			t.Fatalf("unexpected join message %q", item.Message)
		}
	}
}

func TestValidateFilterReferences(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		TargetEntity: "AttendanceRecord",
		Filters: []query.FilterCondition{
			{Field: "Employee.LastName", Operator: query.OpEqual, Value: "张"},
			{Field: "LateMinutes", Operator: "Like", Value: 3},
		},
	})
	if result.Valid {
		t.Fatalf("expected invalid result")
	}
	if !hasCode(result.Errors, query.CodeInvalidFilter) {
		t.Fatalf("expected INVALID_FILTER, got %+v", result.Errors)
	}
	if len(result.Errors) != 2 {
		t.Fatalf("expected unjoined qualifier and bad operator errors, got %+v", result.Errors)
	}
}

func TestValidateClampsLimitWithWarning(t *testing.T) {
	v := newTestValidator(t, nil)
	original := query.StructuredQuery{TargetEntity: "Employee", Limit: 5000}
	result := v.Validate(original)
	if !result.Valid {
		t.Fatalf("expected valid query, got %+v", result.Errors)
	}
	if result.Corrected.Limit != 1000 {
		t.Fatalf("expected limit clamped to 1000, got %d", result.Corrected.Limit)
	}
	if original.Limit != 5000 {
		t.Fatalf("caller query must not be modified")
	}
	if len(result.Warnings) != 1 || !strings.HasPrefix(result.Warnings[0], query.WarningLimitAdjusted) {
		t.Fatalf("expected LIMIT_ADJUSTED warning, got %v", result.Warnings)
	}

	again := v.Validate(result.Corrected)
	if !again.Valid || len(again.Warnings) != 0 || again.Corrected.Limit != 1000 {
		t.Fatalf("revalidating the corrected query = %+v", again)
	}
}

func TestValidateComplexityCeiling(t *testing.T) {
	v := newTestValidator(t, func(p *policy.Policy) { p.MaxComplexityScore = 20 })
	q := query.StructuredQuery{
		TargetEntity:     "LeaveBalance",
		Joins:            []query.JoinClause{{Entity: "Employee"}, {Entity: "LeaveType"}},
		Aggregation:      query.AggregationSum,
		AggregationField: "Used",
		GroupByFields:    []string{"LeaveType.Name"},
	}
	if score := ComplexityScore(q); score != 25 {
		t.Fatalf("expected score 25, got %d", score)
	}
	result := v.Validate(q)
	if result.Valid || !hasCode(result.Errors, query.CodeQueryTooComplex) {
		t.Fatalf("expected QUERY_TOO_COMPLEX, got %+v", result)
	}
	if result.Errors[0].Message != "查询过于复杂 (复杂度 25，上限 20)" {
		t.Fatalf("unexpected message %q", result.Errors[0].Message)
	}
}

func TestComplexityScoreCountsMutationAndLargeLimit(t *testing.T) {
	score := ComplexityScore(query.StructuredQuery{
		Operation: query.OperationUpdate,
		Filters:   []query.FilterCondition{{Field: "Id"}},
		OrderBy:   []query.OrderClause{{Field: "A"}, {Field: "B"}},
		Limit:     600,
	})
	if score != 2+2+15+10 {
		t.Fatalf("unexpected score %d", score)
	}
}

func TestValidateMutationValues(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		Operation:    query.OperationUpdate,
		TargetEntity: "Employee",
		Filters:      []query.FilterCondition{{Field: "EmployeeNumber", Operator: query.OpEqual, Value: "E001"}},
		UpdateValues: map[string]any{"Id": "x"},
	})
	if result.Valid || result.Errors[0].Message != "不能更新主键字段: Id" {
		t.Fatalf("expected primary key rejection, got %+v", result.Errors)
	}

	result = v.Validate(query.StructuredQuery{
		Operation:    query.OperationInsert,
		TargetEntity: "PayrollRecord",
		UpdateValues: map[string]any{"Status": "Draft"},
	})
	if result.Valid || result.Errors[0].Message != "实体 PayrollRecord 不支持增删改操作" {
		t.Fatalf("expected crud rejection, got %+v", result.Errors)
	}

	result = v.Validate(query.StructuredQuery{
		Operation:    query.OperationInsert,
		TargetEntity: "LeaveType",
		UpdateValues: map[string]any{"Name": "婚假", "Code": "MARRIAGE"},
	})
	if !result.Valid {
		t.Fatalf("expected insert to pass, got %+v", result.Errors)
	}
}

func TestValidateRequiresFiltersForUpdateAndDelete(t *testing.T) {
	v := newTestValidator(t, nil)
	result := v.Validate(query.StructuredQuery{
		Operation:    query.OperationDelete,
		TargetEntity: "LeaveType",
	})
	if result.Valid || !hasCode(result.Errors, query.CodeFilterRequired) {
		t.Fatalf("expected FILTER_REQUIRED, got %+v", result)
	}
	if result.Errors[0].Message != "删除操作必须指定过滤条件" {
		t.Fatalf("unexpected message %q", result.Errors[0].Message)
	}
}

func TestValidateRawText(t *testing.T) {
	v := newTestValidator(t, nil)
	if result := v.ValidateRawText("查询所有员工"); !result.Valid {
		t.Fatalf("expected plain text to pass, got %+v", result)
	}
	result := v.ValidateRawText("查询员工; DROP TABLE employees --")
	if result.Valid {
		t.Fatalf("expected blocked keywords to fail")
	}
	if result.Errors[0].Code != query.CodeDangerousKeyword {
		t.Fatalf("unexpected code %q", result.Errors[0].Code)
	}
	if result.Errors[0].Message != "查询包含不允许的关键词: --, drop" {
		t.Fatalf("unexpected message %q", result.Errors[0].Message)
	}
}
