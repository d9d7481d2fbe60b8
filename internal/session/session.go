// Package session keeps per-user conversation history for the chat orchestrator.
package session

import (
	"context"
	"strings"
	"time"

	"github.com/duckmesh/askhr/internal/modelclient"
)

const (
	DefaultMaxTurns     = 20
	DefaultHistoryLimit = 20
)

type Message struct {
	Role      modelclient.Role `json:"role"`
	Content   string           `json:"content"`
	Timestamp time.Time        `json:"timestamp"`
}

// Store holds one history per key. Every history starts with the system prompt, which survives
// trimming and is never returned by History.
type Store interface {
	// Load returns a copy of the history for key, creating it with the system prompt if needed.
	Load(ctx context.Context, key string) ([]Message, error)
	// Append adds messages and trims the history to the configured number of turns.
	Append(ctx context.Context, key string, messages ...Message) error
	// History returns at most limit of the most recent non-system messages.
	History(ctx context.Context, key string, limit int) ([]Message, error)
	Clear(ctx context.Context, key string) error
}

// Key identifies a conversation by tenant and user.
func Key(tenantID, userID string) string {
	return strings.TrimSpace(tenantID) + "/" + strings.TrimSpace(userID)
}

// ModelMessages converts history entries to model-client messages.
func ModelMessages(messages []Message) []modelclient.Message {
	out := make([]modelclient.Message, len(messages))
	for i, message := range messages {
		out[i] = modelclient.Message{Role: message.Role, Content: message.Content}
	}
	return out
}

// Recent drops the system prompt and returns the last n entries as model-client messages.
func Recent(messages []Message, n int) []modelclient.Message {
	start := 0
	if len(messages) > 0 && messages[0].Role == modelclient.RoleSystem {
		start = 1
	}
	rest := messages[start:]
	if n > 0 && len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	return ModelMessages(rest)
}

const SystemPrompt = `你是AskHR人事助手，一个专业、友好的人力资源AI助手。

你的职责包括：
1. 回答员工关于公司政策、规章制度的问题
2. 帮助员工查询假期余额、薪资信息、考勤记录
3. 协助员工提交请假申请、报销申请等
4. 提供组织架构、同事联系方式等信息查询

注意事项：
- 始终保持专业、友好的态度
- 涉及敏感信息（如薪资）时，只能查询员工本人的信息
- 如果不确定答案，请诚实告知并建议联系HR部门
- 使用简洁清晰的中文回复
- 如果需要执行操作（如请假），请先确认所有必要信息`
