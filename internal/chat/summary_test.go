package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/duckmesh/askhr/internal/query"
)

func TestSummarizeMutation(t *testing.T) {
	got := Summarize(query.Result{Success: true, Operation: query.OperationInsert, AffectedRows: 1, InsertedID: "abc"}, query.StructuredQuery{Operation: query.OperationInsert})
	if got != "新增成功，影响 1 条记录\n新记录ID: abc" {
		t.Fatalf("Summarize() = %q", got)
	}
	got = Summarize(query.Result{Success: true, Operation: query.OperationDelete, AffectedRows: 2}, query.StructuredQuery{Operation: query.OperationDelete})
	if got != "删除成功，影响 2 条记录" {
		t.Fatalf("Summarize() = %q", got)
	}
}

func TestSummarizeEmptyAndAverage(t *testing.T) {
	if got := Summarize(query.Result{Success: true, Operation: query.OperationSelect}, query.StructuredQuery{}); got != messageNoRows {
		t.Fatalf("Summarize() = %q", got)
	}
	q := query.StructuredQuery{Aggregation: query.AggregationAvg, AggregationField: "Days"}
	if got := Summarize(query.Result{Success: true, Operation: query.OperationSelect}, q); got != "查询结果 - 平均值: -" {
		t.Fatalf("Summarize() = %q", got)
	}
	if got := Summarize(query.Result{Success: true, AggregationValue: 1.3333}, q); got != "查询结果 - 平均值: 1.33" {
		t.Fatalf("Summarize() = %q", got)
	}
}

func TestSummarizeTable(t *testing.T) {
	result := query.Result{
		Success:   true,
		Operation: query.OperationSelect,
		Columns: []query.Column{
			{Name: "FirstName", DisplayName: "名"},
			{Name: "HireDate", DisplayName: "入职日期"},
		},
		Duration: 7 * time.Millisecond,
	}
	for i := 0; i < 22; i++ {
		result.Rows = append(result.Rows, query.Row{
			"FirstName": fmt.Sprintf("E%02d", i),
			"HireDate":  time.Date(2024, 1, i+1, 0, 0, 0, 0, time.UTC),
		})
	}
	result.RowCount = len(result.Rows)

	got := Summarize(result, query.StructuredQuery{})
	lines := strings.Split(got, "\n")
	if lines[0] != "查询结果（共 22 条记录）：" || lines[2] != "名 | 入职日期" || lines[3] != strings.Repeat("-", 11) {
		t.Fatalf("header = %q", lines[:4])
	}
	if lines[4] != "E00 | 2024-01-01" {
		t.Fatalf("first row = %q", lines[4])
	}
	if !strings.Contains(got, "... 还有 2 条记录未显示") || !strings.Contains(got, "查询耗时: 7ms") {
		t.Fatalf("Summarize() = %q", got)
	}
	if strings.Contains(got, "E20") {
		t.Fatal("rows beyond the display limit should not be rendered")
	}
}

func TestFormatValue(t *testing.T) {
	cases := []struct {
		value any
		want  string
	}{
		{nil, "-"},
		{true, "是"},
		{false, "否"},
		{1234567.891, "1,234,567.89"},
		{-0.5, "-0.50"},
		{42, "42"},
		{time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), "2024-03-01"},
		{time.Date(2024, 3, 1, 8, 5, 0, 0, time.UTC), "2024-03-01 08:05"},
	}
	for _, tc := range cases {
		if got := FormatValue(tc.value); got != tc.want {
			t.Fatalf("FormatValue(%v) = %q, want %q", tc.value, got, tc.want)
		}
	}
}
