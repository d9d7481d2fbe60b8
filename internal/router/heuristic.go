package router

import (
	"fmt"
	"strings"
	"unicode"
)

var dataKeywords = []string{
	"查询", "统计", "筛选", "列出", "展示", "多少", "总数", "人数", "数量", "平均", "最大", "最小",
	"top", "排名", "本月", "上月", "本周", "上周", "今年", "去年", "最近", "截止", "从", "到",
	"员工", "考勤", "打卡", "请假", "假期", "薪资", "工资", "部门", "组织", "入职", "离职", "加班",
	"迟到", "早退", "employee", "attendance", "leave", "salary", "department", "organization",
	"count", "sum", "avg",
}

var chatKeywords = []string{
	"你好", "您好", "在吗", "你是谁", "你能做什么", "帮我", "谢谢", "再见", "怎么", "为什么", "解释",
	"介绍", "建议", "推荐", "流程", "规定", "政策", "制度", "规则", "假期政策", "报销政策", "聊天",
	"闲聊", "讲个", "笑话",
}

const (
	dataHitsForFullScore = 6
	chatHitsForFullScore = 5
)

type Scores struct {
	Data   float64
	Chat   float64
	Reason string
}

// Score counts keyword hits for both intents and adds small bonuses for date or number hints
// and question marks. Both scores are clamped to [0,1].
func Score(utterance string) Scores {
	text := strings.ToLower(strings.TrimSpace(utterance))
	if text == "" {
		return Scores{Data: 0, Chat: 1, Reason: "empty"}
	}

	dataHits := countHits(text, dataKeywords)
	chatHits := countHits(text, chatKeywords)
	question := strings.ContainsAny(text, "?？")

	data := float64(dataHits) / dataHitsForFullScore
	if hasDateOrNumberHint(text) {
		data += 0.15
	}
	if question {
		data += 0.05
	}

	chat := float64(chatHits) / chatHitsForFullScore
	if question {
		chat += 0.1
	}

	data = clamp01(data)
	chat = clamp01(chat)
	return Scores{
		Data:   data,
		Chat:   chat,
		Reason: fmt.Sprintf("data=%.2f chat=%.2f", data, chat),
	}
}

func countHits(text string, keywords []string) int {
	hits := 0
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			hits++
		}
	}
	return hits
}

func hasDateOrNumberHint(text string) bool {
	if strings.Contains(text, "yyyy") || strings.Contains(text, "202") {
		return true
	}
	for _, r := range text {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
