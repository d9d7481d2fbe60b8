package nl2sql

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
)

const maxPromptExamples = 5

func BuildSystemPrompt(catalog *schema.Catalog, maxRows, defaultRows int) string {
	operators := make([]string, 0, len(query.Operators))
	for _, op := range query.Operators {
		operators = append(operators, string(op))
	}

	var b strings.Builder
	b.WriteString("你是 HR 系统的数据查询助手。你的任务是将用户的自然语言查询转换为结构化的 JSON 查询对象。\n\n")
	b.WriteString("## 规则\n")
	b.WriteString("1. 只能生成针对 HR 数据的查询，包括员工、考勤、请假、薪资、部门等\n")
	b.WriteString("2. 必须返回有效的 JSON 格式\n")
	b.WriteString("3. 不要生成任何解释文字，只返回 JSON\n")
	b.WriteString("4. 对于模糊的查询，选择最合理的解释\n")
	b.WriteString("5. 日期参数使用特殊标记：@Today, @CurrentWeekStart, @CurrentMonthStart, @CurrentYear, @Now\n")
	fmt.Fprintf(&b, "6. 默认返回 %d 条记录，最多 %d 条\n\n", defaultRows, maxRows)

	b.WriteString(catalog.Describe())
	b.WriteString("\n## 输出格式\n")
	b.WriteString("返回一个 JSON 对象，包含以下字段：\n")
	b.WriteString("- operation: \"Select\" | \"Insert\" | \"Update\" | \"Delete\"\n")
	b.WriteString("- targetEntity: 目标实体名称（如 \"Employee\", \"AttendanceRecord\"）\n")
	b.WriteString("- selectFields: 要查询的字段列表（数组）\n")
	b.WriteString("- filters: 过滤条件列表，每个条件包含 field, operator, value, logicalOperator(AND/OR，连接下一个条件)\n")
	b.WriteString("- joins: JOIN 子句列表，每个包含 entity, on, joinType, alias\n")
	b.WriteString("- aggregation: 聚合类型（可选）: \"Count\", \"Sum\", \"Avg\", \"Min\", \"Max\", \"CountDistinct\"\n")
	b.WriteString("- aggregationField: 聚合字段（当有聚合时必填）\n")
	b.WriteString("- groupByFields: 分组字段列表（可选）\n")
	b.WriteString("- orderBy: 排序列表，每个包含 field, descending\n")
	b.WriteString("- limit: 返回行数限制\n")
	b.WriteString("- offset: 跳过的行数（可选）\n")
	b.WriteString("- updateValues: 更新/插入的值（用于 Insert/Update 操作）\n\n")
	b.WriteString("## 过滤条件操作符\n")
	b.WriteString("- " + strings.Join(operators, ", ") + "\n")

	examples := catalog.Examples()
	if len(examples) > maxPromptExamples {
		examples = examples[:maxPromptExamples]
	}
	if len(examples) > 0 {
		b.WriteString("\n## 示例\n\n")
		for _, example := range examples {
			encoded, err := json.Marshal(example.Query)
			if err != nil {
				continue
			}
			b.WriteString("输入: \"" + example.Question + "\"\n")
			b.WriteString("输出: " + string(encoded) + "\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func BuildUserPrompt(utterance string, recent []modelclient.Message) string {
	var b strings.Builder
	if len(recent) > 0 {
		b.WriteString("对话上下文:\n")
		for _, turn := range recent {
			b.WriteString(string(turn.Role) + ": " + turn.Content + "\n")
		}
		b.WriteString("\n")
	}
	b.WriteString("请将以下查询转换为 JSON 格式的结构化查询：\n\n")
	b.WriteString(strings.TrimSpace(utterance))
	b.WriteString("\n\n只返回 JSON，不要任何其他文字。")
	return b.String()
}
