package chat

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/query"
)

const (
	summaryMaxRows     = 20
	summaryMaxRuleSize = 80
	messageNoRows      = "未找到符合条件的数据"
)

var aggregationNames = map[query.AggregationKind]string{
	query.AggregationCount:         "数量",
	query.AggregationCountDistinct: "去重数量",
	query.AggregationSum:           "总和",
	query.AggregationAvg:           "平均值",
	query.AggregationMin:           "最小值",
	query.AggregationMax:           "最大值",
}

var operationNames = map[query.Operation]string{
	query.OperationInsert: "新增",
	query.OperationUpdate: "更新",
	query.OperationDelete: "删除",
}

// Summarize renders a successful result as the assistant's reply text.
func Summarize(result query.Result, q query.StructuredQuery) string {
	if result.AggregationValue != nil || (q.HasAggregation() && len(q.GroupByFields) == 0) {
		name, ok := aggregationNames[q.Aggregation]
		if !ok {
			name = "结果"
		}
		return fmt.Sprintf("查询结果 - %s: %s", name, FormatValue(result.AggregationValue))
	}

	if result.Operation != "" && result.Operation != query.OperationSelect {
		name, ok := operationNames[result.Operation]
		if !ok {
			name = "操作"
		}
		text := fmt.Sprintf("%s成功，影响 %d 条记录", name, result.AffectedRows)
		if result.InsertedID != nil {
			text += "\n新记录ID: " + FormatValue(result.InsertedID)
		}
		return text
	}

	if len(result.Rows) == 0 {
		return messageNoRows
	}

	var b strings.Builder
	fmt.Fprintf(&b, "查询结果（共 %d 条记录）：\n\n", result.RowCount)
	if len(result.Columns) > 0 {
		headers := make([]string, len(result.Columns))
		width := 0
		for i, column := range result.Columns {
			headers[i] = column.DisplayName
			if headers[i] == "" {
				headers[i] = column.Name
			}
			width += utf8.RuneCountInString(headers[i]) + 3
		}
		b.WriteString(strings.Join(headers, " | ") + "\n")
		b.WriteString(strings.Repeat("-", min(summaryMaxRuleSize, width)) + "\n")
	}

	shown := min(len(result.Rows), summaryMaxRows)
	for _, row := range result.Rows[:shown] {
		b.WriteString(strings.Join(rowValues(result.Columns, row), " | ") + "\n")
	}
	if len(result.Rows) > shown {
		fmt.Fprintf(&b, "... 还有 %d 条记录未显示\n", len(result.Rows)-shown)
	}
	fmt.Fprintf(&b, "\n查询耗时: %dms\n", result.Duration.Milliseconds())
	return b.String()
}

func rowValues(columns []query.Column, row query.Row) []string {
	if len(columns) > 0 {
		values := make([]string, len(columns))
		for i, column := range columns {
			values[i] = FormatValue(row[column.Name])
		}
		return values
	}
	keys := make([]string, 0, len(row))
	for key := range row {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i] = FormatValue(row[key])
	}
	return values
}

// FormatValue renders one cell: "-" for nil, dates without a clock when they fall on midnight,
// two-decimal grouping for fractional numbers and 是/否 for booleans.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "-"
	case *time.Time:
		if typed == nil {
			return "-"
		}
		return FormatValue(*typed)
	case time.Time:
		if typed.Hour() == 0 && typed.Minute() == 0 && typed.Second() == 0 && typed.Nanosecond() == 0 {
			return typed.Format(time.DateOnly)
		}
		return typed.Format("2006-01-02 15:04")
	case float64:
		return groupDecimal(typed)
	case float32:
		return groupDecimal(float64(typed))
	case bool:
		if typed {
			return "是"
		}
		return "否"
	case uuid.UUID:
		return typed.String()
	case string:
		return typed
	default:
		return fmt.Sprint(value)
	}
}

func groupDecimal(value float64) string {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return strconv.FormatFloat(value, 'f', -1, 64)
	}
	text := strconv.FormatFloat(math.Abs(value), 'f', 2, 64)
	whole, fraction, _ := strings.Cut(text, ".")
	var b strings.Builder
	if value < 0 && text != "0.00" {
		b.WriteByte('-')
	}
	for i, digit := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(digit)
	}
	return b.String() + "." + fraction
}
