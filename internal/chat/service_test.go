package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/nl2sql"
	"github.com/duckmesh/askhr/internal/observability"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/router"
	"github.com/duckmesh/askhr/internal/session"
)

type fixedRouter struct {
	decision router.Decision
	calls    int
	recent   []modelclient.Message
}

func (r *fixedRouter) Route(_ context.Context, _ string, recent []modelclient.Message) router.Decision {
	r.calls++
	r.recent = recent
	return r.decision
}

type fakeTranslator struct {
	result nl2sql.Result
	recent []modelclient.Message
}

func (f *fakeTranslator) Translate(_ context.Context, _ string, recent []modelclient.Message) nl2sql.Result {
	f.recent = recent
	return f.result
}

type fakeExecutor struct {
	result query.Result
	calls  int
	panics bool
}

func (f *fakeExecutor) Execute(context.Context, query.StructuredQuery, auth.Identity) query.Result {
	f.calls++
	if f.panics {
		panic("store exploded")
	}
	return f.result
}

type scriptedModel struct {
	reply    string
	err      error
	calls    int
	messages [][]modelclient.Message
}

func (m *scriptedModel) Complete(_ context.Context, messages []modelclient.Message) (string, error) {
	m.calls++
	m.messages = append(m.messages, messages)
	return m.reply, m.err
}

var (
	alice = auth.Identity{Authenticated: true, UserID: "alice", TenantID: "acme", Roles: []string{auth.RoleHRAdmin}}
	fixed = time.Date(2024, 3, 14, 9, 30, 0, 0, time.UTC)
)

func countQuery() *query.StructuredQuery {
	return &query.StructuredQuery{
		Operation:        query.OperationSelect,
		TargetEntity:     "LeaveRequest",
		Aggregation:      query.AggregationCountDistinct,
		AggregationField: "EmployeeId",
	}
}

func newService(r *fixedRouter, tr *fakeTranslator, ex *fakeExecutor, model *scriptedModel, mutate func(*policy.Policy)) *Service {
	p := policy.Default()
	if mutate != nil {
		mutate(&p)
	}
	return &Service{
		Router:     r,
		Translator: tr,
		Executor:   ex,
		Model:      model,
		Sessions:   session.NewMemoryStore(20),
		Policies:   policy.Static(p),
		Clock:      func() time.Time { return fixed },
	}
}

func TestChatCancelledBeforeStartSkipsModel(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	model := &scriptedModel{reply: "hi"}
	s := newService(r, &fakeTranslator{}, &fakeExecutor{}, model, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	envelope := s.Chat(ctx, alice, "统计本月请假人数")
	if envelope.Reply != MessageCancelled || envelope.Route != router.RouteChat {
		t.Fatalf("envelope = %+v", envelope)
	}
	if r.calls != 0 || model.calls != 0 {
		t.Fatalf("router calls = %d, model calls = %d", r.calls, model.calls)
	}
	if envelope.CorrelationID == "" {
		t.Fatal("expected correlation id")
	}
}

func TestChatRouteAnswersAndRecordsHistory(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteChat, Strategy: router.StrategyHeuristic}}
	model := &scriptedModel{reply: "您好！"}
	s := newService(r, &fakeTranslator{}, &fakeExecutor{}, model, nil)

	ctx := observability.ContextWithTraceID(context.Background(), "trace-42")
	envelope := s.Chat(ctx, alice, "你好")
	if envelope.Reply != "您好！" || envelope.Route != router.RouteChat || envelope.CorrelationID != "trace-42" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if !envelope.Timestamp.Equal(fixed) || envelope.Diagnostics != nil {
		t.Fatalf("envelope = %+v", envelope)
	}
	sent := model.messages[0]
	if sent[0].Role != modelclient.RoleSystem || sent[len(sent)-1].Content != "你好" {
		t.Fatalf("model messages = %+v", sent)
	}

	history, err := s.History(context.Background(), alice, 20)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(history) != 2 || history[0].Content != "你好" || history[1].Content != "您好！" {
		t.Fatalf("history = %+v", history)
	}
}

func TestChatDataQueryRendersSummary(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL, Strategy: router.StrategyHeuristic}}
	tr := &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}}
	ex := &fakeExecutor{result: query.Result{
		Success:          true,
		Operation:        query.OperationSelect,
		AggregationValue: 3,
		GeneratedQuery:   "SELECT COUNT(DISTINCT t0.employee_id) FROM leave_requests t0",
		Duration:         12 * time.Millisecond,
		Warnings:         []string{query.WarningLimitAdjusted},
	}}
	model := &scriptedModel{}
	s := newService(r, tr, ex, model, nil)

	envelope := s.Chat(context.Background(), alice, "统计本月请假人数")
	if envelope.Route != router.RouteText2SQL || envelope.Reply != "查询结果 - 去重数量: 3" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if model.calls != 0 {
		t.Fatalf("model calls = %d", model.calls)
	}
	d := envelope.Diagnostics
	if d == nil || d.ExecutionMillis == nil || *d.ExecutionMillis != 12 || len(d.Warnings) != 1 {
		t.Fatalf("diagnostics = %+v", d)
	}
	if d.GeneratedQueryText != "" {
		t.Fatalf("generated query should be hidden by default, got %q", d.GeneratedQueryText)
	}
}

func TestChatIncludesGeneratedQueryWhenEnabled(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	tr := &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}}
	ex := &fakeExecutor{result: query.Result{Success: true, Operation: query.OperationSelect, AggregationValue: 1, GeneratedQuery: "SELECT 1"}}
	s := newService(r, tr, ex, &scriptedModel{}, func(p *policy.Policy) { p.IncludeGeneratedQuery = true })

	envelope := s.Chat(context.Background(), alice, "统计本月请假人数")
	if envelope.Diagnostics == nil || envelope.Diagnostics.GeneratedQueryText != "SELECT 1" {
		t.Fatalf("diagnostics = %+v", envelope.Diagnostics)
	}
}

func TestChatTranslationFailureAsksForClarification(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	tr := &fakeTranslator{result: nl2sql.Result{Success: false, ErrorMessage: nl2sql.MessageNotUnderstood}}
	ex := &fakeExecutor{}
	model := &scriptedModel{reply: "请问您想查询哪个时间范围？"}
	s := newService(r, tr, ex, model, nil)

	envelope := s.Chat(context.Background(), alice, "查一下那个")
	if envelope.Route != router.RouteChat || envelope.Reply != "请问您想查询哪个时间范围？" {
		t.Fatalf("envelope = %+v", envelope)
	}
	if envelope.Diagnostics == nil || len(envelope.Diagnostics.Warnings) != 1 || envelope.Diagnostics.Warnings[0] != WarningConvertFailed {
		t.Fatalf("diagnostics = %+v", envelope.Diagnostics)
	}
	if ex.calls != 0 {
		t.Fatal("executor should not run after a failed translation")
	}
	prompt := model.messages[0][1].Content
	if !strings.Contains(prompt, "查一下那个") || !strings.Contains(prompt, nl2sql.MessageNotUnderstood) {
		t.Fatalf("clarification prompt = %q", prompt)
	}
}

func TestChatExecutionFailureAsksForClarification(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	tr := &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}}
	ex := &fakeExecutor{result: query.Failure(query.CodeInvalidFilter, "过滤条件无效: StartDate")}
	s := newService(r, tr, ex, &scriptedModel{}, nil)

	envelope := s.Chat(context.Background(), alice, "统计本月请假人数")
	if envelope.Route != router.RouteChat || envelope.Reply != messageClarifyDefault {
		t.Fatalf("envelope = %+v", envelope)
	}
	if envelope.Diagnostics.Warnings[0] != WarningExecuteFailed {
		t.Fatalf("warnings = %v", envelope.Diagnostics.Warnings)
	}
}

func TestChatQuotesDenialsVerbatim(t *testing.T) {
	cases := []struct {
		name    string
		tr      *fakeTranslator
		ex      *fakeExecutor
		reply   string
		warning string
	}{
		{
			name:    "permission",
			tr:      &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}},
			ex:      &fakeExecutor{result: query.Failure(query.CodeInsufficientPermission, "您没有权限访问 '薪资记录' 数据")},
			reply:   "您没有权限访问 '薪资记录' 数据",
			warning: WarningExecuteFailed,
		},
		{
			name:    "security",
			tr:      &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}},
			ex:      &fakeExecutor{result: query.Failure(query.CodeTooManyJoins, "关联表数量超过限制 (最多 5 个)")},
			reply:   "关联表数量超过限制 (最多 5 个)",
			warning: WarningExecuteFailed,
		},
		{
			name:    "blocked keyword",
			tr:      &fakeTranslator{result: nl2sql.Result{ErrorCode: query.CodeDangerousKeyword, ErrorMessage: "查询包含不允许的关键词: drop"}},
			ex:      &fakeExecutor{},
			reply:   "查询包含不允许的关键词: drop",
			warning: WarningConvertFailed,
		},
	}
	for _, tc := range cases {
		r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
		model := &scriptedModel{reply: "请问您想查询哪个部门？"}
		s := newService(r, tc.tr, tc.ex, model, nil)

		envelope := s.Chat(context.Background(), alice, "查一下薪资")
		if envelope.Reply != tc.reply || envelope.Route != router.RouteText2SQL {
			t.Fatalf("%s: envelope = %+v", tc.name, envelope)
		}
		if envelope.Diagnostics == nil || envelope.Diagnostics.Warnings[0] != tc.warning {
			t.Fatalf("%s: diagnostics = %+v", tc.name, envelope.Diagnostics)
		}
		if model.calls != 0 {
			t.Fatalf("%s: denial must not be rewritten by the model", tc.name)
		}
	}
}

func TestChatDisabledDataPathFallsBackToChat(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	ex := &fakeExecutor{}
	model := &scriptedModel{reply: "好的"}
	s := newService(r, &fakeTranslator{}, ex, model, func(p *policy.Policy) { p.Enabled = false })

	envelope := s.Chat(context.Background(), alice, "统计本月请假人数")
	if envelope.Route != router.RouteChat || envelope.Reply != "好的" || ex.calls != 0 {
		t.Fatalf("envelope = %+v, executor calls = %d", envelope, ex.calls)
	}
}

func TestChatModelErrorReturnsApology(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteChat}}
	model := &scriptedModel{err: errors.New("connection refused")}
	s := newService(r, &fakeTranslator{}, &fakeExecutor{}, model, nil)

	envelope := s.Chat(context.Background(), alice, "你好")
	if envelope.Reply != MessageApology || envelope.Route != router.RouteChat {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestChatCancellationDuringModelCall(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteChat}}
	ctx, cancel := context.WithCancel(context.Background())
	model := modelclient.ClientFunc(func(ctx context.Context, _ []modelclient.Message) (string, error) {
		cancel()
		return "", ctx.Err()
	})
	s := newService(r, &fakeTranslator{}, &fakeExecutor{}, &scriptedModel{}, nil)
	s.Model = model

	envelope := s.Chat(ctx, alice, "你好")
	if envelope.Reply != MessageCancelled {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestChatRecoversFromPanics(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteText2SQL}}
	tr := &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}}
	s := newService(r, tr, &fakeExecutor{panics: true}, &scriptedModel{}, nil)

	envelope := s.Chat(context.Background(), alice, "统计本月请假人数")
	if envelope.Reply != MessageApology {
		t.Fatalf("envelope = %+v", envelope)
	}
}

func TestChatPassesRecentTurnsWithoutCurrentUtterance(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteChat}}
	model := &scriptedModel{reply: "ok"}
	tr := &fakeTranslator{result: nl2sql.Result{Success: true, Query: countQuery()}}
	ex := &fakeExecutor{result: query.Result{Success: true, Operation: query.OperationSelect, AggregationValue: 2}}
	s := newService(r, tr, ex, model, nil)

	s.Chat(context.Background(), alice, "你好")
	r.decision = router.Decision{Route: router.RouteText2SQL}
	s.Chat(context.Background(), alice, "统计本月请假人数")

	if len(r.recent) != 3 || r.recent[2].Content != "统计本月请假人数" {
		t.Fatalf("router recent = %+v", r.recent)
	}
	if len(tr.recent) != 2 || tr.recent[0].Content != "你好" || tr.recent[1].Content != "ok" {
		t.Fatalf("translator recent = %+v", tr.recent)
	}
}

func TestClearHistory(t *testing.T) {
	r := &fixedRouter{decision: router.Decision{Route: router.RouteChat}}
	s := newService(r, &fakeTranslator{}, &fakeExecutor{}, &scriptedModel{reply: "ok"}, nil)
	s.Chat(context.Background(), alice, "你好")
	if err := s.ClearHistory(context.Background(), alice); err != nil {
		t.Fatalf("ClearHistory() error = %v", err)
	}
	history, _ := s.History(context.Background(), alice, 20)
	if len(history) != 0 {
		t.Fatalf("history = %+v", history)
	}
}
