package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/hr"
	"github.com/duckmesh/askhr/internal/query"
)

func TestWhereParenthesizesOnConnectiveChange(t *testing.T) {
	e, _ := newTestEngine(t, nil)
	p, err := e.newPlan(query.StructuredQuery{TargetEntity: hr.EntityEmployee}, false)
	if err != nil {
		t.Fatalf("newPlan() error = %v", err)
	}
	r := renderer{plan: p}

	cases := []struct {
		filters []query.FilterCondition
		want    string
	}{
		{
			filters: []query.FilterCondition{{Field: "FirstName", Operator: query.OpEqual, Value: "O'Neil"}},
			want:    "t0.first_name = 'O''Neil'",
		},
		{
			filters: []query.FilterCondition{
				{Field: "Status", Operator: query.OpEqual, Value: "Active", LogicalOperator: query.LogicalAnd},
				{Field: "Phone", Operator: query.OpIsNull, LogicalOperator: query.LogicalAnd},
				{Field: "HireDate", Operator: query.OpBetween, Value: "2024-01-01,2024-12-31"},
			},
			want: "t0.status = 'Active' AND t0.phone IS NULL AND t0.hire_date BETWEEN '2024-01-01' AND '2024-12-31'",
		},
		{
			filters: []query.FilterCondition{
				{Field: "Status", Operator: query.OpIn, Value: []any{"Active", "OnLeave"}, LogicalOperator: query.LogicalAnd},
				{Field: "FirstName", Operator: query.OpStartsWith, Value: "A", LogicalOperator: query.LogicalOr},
				{Field: "Email", Operator: query.OpContains, Value: "ops"},
			},
			want: "(t0.status IN ('Active', 'OnLeave') AND t0.first_name LIKE 'A%') OR t0.email LIKE '%ops%'",
		},
	}
	for _, tc := range cases {
		if got := r.where(tc.filters); got != tc.want {
			t.Fatalf("where() = %q, want %q", got, tc.want)
		}
	}
}

func TestLiteral(t *testing.T) {
	id := uuid.MustParse("11111111-2222-3333-4444-555555555555")
	cases := []struct {
		value any
		want  string
	}{
		{nil, "NULL"},
		{true, "TRUE"},
		{42, "42"},
		{1.5, "1.5"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "'2024-03-01'"},
		{time.Date(2024, 3, 1, 8, 30, 0, 0, time.UTC), "'2024-03-01T08:30:00Z'"},
		{id, "'11111111-2222-3333-4444-555555555555'"},
		{[]any{"a", 1}, "('a', 1)"},
	}
	for _, tc := range cases {
		if got := literal(tc.value); got != tc.want {
			t.Fatalf("literal(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}

func TestFoldKeepsEvaluationOrder(t *testing.T) {
	yes := func(row) bool { return true }
	no := func(row) bool { return false }

	// true OR false AND false => (true OR false) AND false => false
	test := fold([]clause{{test: yes, or: true}, {test: no}, {test: no}})
	if test(nil) {
		t.Fatal("expected left-to-right evaluation to yield false")
	}
	// false AND true OR true => (false AND true) OR true => true
	test = fold([]clause{{test: no}, {test: yes, or: true}, {test: yes}})
	if !test(nil) {
		t.Fatal("expected left-to-right evaluation to yield true")
	}
	if !fold(nil)(nil) {
		t.Fatal("empty filter set should match every row")
	}
}
