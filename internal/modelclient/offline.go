package modelclient

import (
	"context"
	"strings"
)

const ProviderOffline = "offline"

type cannedReply struct {
	keywords []string
	reply    string
}

var offlineReplies = []cannedReply{
	{keywords: []string{"假期", "年假"}, reply: "您当前的年假余额请以系统假期余额页面为准。如需查询具体剩余天数，可以直接问我“我的年假还剩多少天”。"},
	{keywords: []string{"薪资", "工资"}, reply: "薪资信息属于敏感数据，只有具备薪资查看权限的用户才能查询。如有疑问请联系HR或薪酬专员。"},
	{keywords: []string{"考勤", "打卡"}, reply: "您可以问我例如“我本月的考勤记录”或“本周迟到的员工”，我会为您查询考勤数据。"},
	{keywords: []string{"请假"}, reply: "如需请假，请告诉我请假类型、开始日期、结束日期和请假原因，我会帮您整理请假申请。"},
	{keywords: []string{"组织", "部门"}, reply: "您想了解哪个部门或组织的信息？可以告诉我部门名称，我来为您查询。"},
}

const offlineGreeting = "您好！我是AskHR人事助手，可以帮您查询员工、考勤、请假、假期余额和组织架构等信息。请问有什么可以帮您？"

// OfflineResponder answers from a fixed keyword table. It never fails and is the last candidate
// for every purpose.
type OfflineResponder struct{}

func (OfflineResponder) Complete(ctx context.Context, messages []Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return OfflineReply(lastUserContent(messages)), nil
}

func OfflineReply(text string) string {
	for _, item := range offlineReplies {
		for _, keyword := range item.keywords {
			if strings.Contains(text, keyword) {
				return item.reply
			}
		}
	}
	return offlineGreeting
}

func lastUserContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}
