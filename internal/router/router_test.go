package router

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/duckmesh/askhr/internal/modelclient"
)

type scriptedModel struct {
	reply    string
	err      error
	calls    int
	messages []modelclient.Message
}

func (m *scriptedModel) Complete(_ context.Context, messages []modelclient.Message) (string, error) {
	m.calls++
	m.messages = messages
	return m.reply, m.err
}

func TestHeuristicRoutesDataQuery(t *testing.T) {
	model := &scriptedModel{}
	r := New(model, Options{RouteThreshold: 0.6, IgnoreThreshold: 0.0}, nil)

	got := r.Route(context.Background(), "统计本月请假人数", nil)
	if got.Route != RouteText2SQL || got.Strategy != StrategyHeuristic {
		t.Fatalf("Route() = %+v", got)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be called, calls = %d", model.calls)
	}
}

func TestHighThresholdEscalatesToModel(t *testing.T) {
	model := &scriptedModel{reply: `好的，结果如下：{"route":"text2sql","confidence":0.9,"reason":"统计类问题"} 以上`}
	r := New(model, Options{RouteThreshold: 0.95, IgnoreThreshold: DefaultIgnoreThreshold}, nil)

	got := r.Route(context.Background(), "统计本月请假人数", nil)
	if got.Route != RouteText2SQL || got.Strategy != StrategyModel || got.Confidence != 0.9 {
		t.Fatalf("Route() = %+v", got)
	}
	if model.calls != 1 {
		t.Fatalf("model calls = %d", model.calls)
	}
	if !strings.Contains(model.messages[1].Content, "(空)") {
		t.Fatalf("router prompt should mark empty history: %q", model.messages[1].Content)
	}
}

func TestLowSignalDefaultsToChat(t *testing.T) {
	model := &scriptedModel{}
	r := New(model, DefaultOptions(), nil)

	got := r.Route(context.Background(), "嗯嗯", nil)
	if got.Route != RouteChat || got.Strategy != StrategyHeuristic || got.Reason != "low-signal" || got.Confidence != 0.5 {
		t.Fatalf("Route() = %+v", got)
	}
	if model.calls != 0 {
		t.Fatalf("model should not be called")
	}
}

func TestModelFailuresFallBackToHigherScore(t *testing.T) {
	cases := map[string]*scriptedModel{
		"error":          {err: errors.New("down")},
		"malformed":      {reply: "I think it is data"},
		"unknown route":  {reply: `{"route":"sql","confidence":0.9}`},
		"low confidence": {reply: `{"route":"chat","confidence":0.4}`},
	}
	for name, model := range cases {
		r := New(model, Options{RouteThreshold: 0.95, IgnoreThreshold: 0.1}, nil)
		got := r.Route(context.Background(), "统计本月请假人数", nil)
		if got.Route != RouteText2SQL || got.Strategy != StrategyFallback || got.Reason != "llm-route-failed" {
			t.Fatalf("%s: Route() = %+v", name, got)
		}
	}
}

func TestModelSeesOnlyRecentTurns(t *testing.T) {
	model := &scriptedModel{reply: `{"route":"chat","confidence":0.8,"reason":"闲聊"}`}
	r := New(model, Options{RouteThreshold: 0.95, IgnoreThreshold: 0.1, ContextTurns: 2}, nil)

	history := []modelclient.Message{
		modelclient.User("第一句"),
		modelclient.Assistant("第二句"),
		modelclient.User("第三句"),
	}
	got := r.Route(context.Background(), "帮我看看部门情况", history)
	if got.Route != RouteChat || got.Strategy != StrategyModel {
		t.Fatalf("Route() = %+v", got)
	}
	prompt := model.messages[1].Content
	if strings.Contains(prompt, "第一句") || !strings.Contains(prompt, "assistant: 第二句") || !strings.Contains(prompt, "user: 第三句") {
		t.Fatalf("unexpected router prompt: %q", prompt)
	}
}

func TestScore(t *testing.T) {
	empty := Score("   ")
	if empty.Data != 0 || empty.Chat != 1 || empty.Reason != "empty" {
		t.Fatalf("Score(empty) = %+v", empty)
	}

	greeting := Score("你好，你是谁？")
	if greeting.Chat <= greeting.Data {
		t.Fatalf("greeting should lean chat: %+v", greeting)
	}

	withDate := Score("2024年入职的员工")
	if withDate.Data < 0.45 {
		t.Fatalf("date hint bonus missing: %+v", withDate)
	}

	saturated := Score("查询统计列出展示本月员工考勤请假人数")
	if saturated.Data != 1 {
		t.Fatalf("data score should clamp to 1: %+v", saturated)
	}
}

func TestExtractJSONObjectIsBalanced(t *testing.T) {
	span, ok := modelclient.ExtractJSONObject("```json\n{\"a\":{\"b\":\"}\"}} trailing {\"c\":1}\n```")
	if !ok || span != `{"a":{"b":"}"}}` {
		t.Fatalf("ExtractJSONObject() = %q, %v", span, ok)
	}
	if _, ok := modelclient.ExtractJSONObject("no braces"); ok {
		t.Fatalf("expected no span")
	}
}
