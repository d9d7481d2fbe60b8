// Package router decides whether an utterance is a data query or a conversational turn. A cheap
// keyword heuristic settles clear cases; ambiguous ones are escalated to the routing model.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/duckmesh/askhr/internal/modelclient"
)

type Route string

const (
	RouteText2SQL Route = "text2sql"
	RouteChat     Route = "chat"
)

type Strategy string

const (
	StrategyHeuristic Strategy = "heuristic"
	StrategyModel     Strategy = "model"
	StrategyFallback  Strategy = "fallback"
)

const (
	DefaultRouteThreshold  = 0.75
	DefaultIgnoreThreshold = 0.25
	DefaultContextTurns    = 6

	decisiveMargin       = 0.15
	minModelConfidence   = 0.6
	reasonLowSignal      = "low-signal"
	reasonModelFailed    = "llm-route-failed"
	emptyTurnPlaceholder = "(空)"
)

type Decision struct {
	Route      Route    `json:"route"`
	Confidence float64  `json:"confidence"`
	Strategy   Strategy `json:"strategy"`
	Reason     string   `json:"reason"`
}

type Options struct {
	RouteThreshold  float64
	IgnoreThreshold float64
	ContextTurns    int
}

func DefaultOptions() Options {
	return Options{
		RouteThreshold:  DefaultRouteThreshold,
		IgnoreThreshold: DefaultIgnoreThreshold,
		ContextTurns:    DefaultContextTurns,
	}
}

type Router struct {
	model   modelclient.Client
	options Options
	logger  *slog.Logger
}

func New(model modelclient.Client, options Options, logger *slog.Logger) *Router {
	if options.ContextTurns <= 0 {
		options.ContextTurns = DefaultContextTurns
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{model: model, options: options, logger: logger}
}

func (r *Router) Route(ctx context.Context, utterance string, recent []modelclient.Message) Decision {
	scores := Score(utterance)

	if scores.Data >= r.options.RouteThreshold && scores.Data >= scores.Chat+decisiveMargin {
		return Decision{Route: RouteText2SQL, Confidence: scores.Data, Strategy: StrategyHeuristic, Reason: scores.Reason}
	}
	if scores.Chat >= r.options.RouteThreshold && scores.Chat >= scores.Data+decisiveMargin {
		return Decision{Route: RouteChat, Confidence: scores.Chat, Strategy: StrategyHeuristic, Reason: scores.Reason}
	}
	if math.Max(scores.Data, scores.Chat) <= r.options.IgnoreThreshold {
		return Decision{Route: RouteChat, Confidence: 0.5, Strategy: StrategyHeuristic, Reason: reasonLowSignal}
	}

	if r.model != nil {
		decision, err := r.askModel(ctx, utterance, recent)
		if err == nil {
			return decision
		}
		r.logger.Debug("route_model_rejected", "error", err)
	}

	if scores.Data >= scores.Chat {
		return Decision{Route: RouteText2SQL, Confidence: scores.Data, Strategy: StrategyFallback, Reason: reasonModelFailed}
	}
	return Decision{Route: RouteChat, Confidence: scores.Chat, Strategy: StrategyFallback, Reason: reasonModelFailed}
}

func (r *Router) askModel(ctx context.Context, utterance string, recent []modelclient.Message) (Decision, error) {
	messages := []modelclient.Message{
		modelclient.System(routerSystemPrompt),
		modelclient.User(buildRouterPrompt(utterance, lastTurns(recent, r.options.ContextTurns))),
	}
	reply, err := r.model.Complete(ctx, messages)
	if err != nil {
		return Decision{}, err
	}

	span, ok := modelclient.ExtractJSONObject(reply)
	if !ok {
		return Decision{}, fmt.Errorf("no JSON object in router reply")
	}
	var parsed struct {
		Route      string  `json:"route"`
		Confidence float64 `json:"confidence"`
		Reason     string  `json:"reason"`
	}
	if err := json.Unmarshal([]byte(span), &parsed); err != nil {
		return Decision{}, fmt.Errorf("decode router reply: %w", err)
	}

	var route Route
	switch strings.ToLower(strings.TrimSpace(parsed.Route)) {
	case string(RouteText2SQL):
		route = RouteText2SQL
	case string(RouteChat):
		route = RouteChat
	default:
		return Decision{}, fmt.Errorf("unknown route %q", parsed.Route)
	}
	confidence := clamp01(parsed.Confidence)
	if confidence < minModelConfidence {
		return Decision{}, fmt.Errorf("router confidence %.2f below %.2f", confidence, minModelConfidence)
	}
	return Decision{Route: route, Confidence: confidence, Strategy: StrategyModel, Reason: strings.TrimSpace(parsed.Reason)}, nil
}

const routerSystemPrompt = `你是一个HR系统的意图路由器。判断用户的最新输入应该走数据查询(text2sql)还是普通对话(chat)。
- 需要从员工、考勤、请假、假期余额、薪资、组织等业务数据中统计、筛选、列出信息的，选择 text2sql。
- 问候、闲聊、政策制度咨询、流程解释、建议类问题，选择 chat。
只返回 JSON，格式: {"route":"text2sql|chat","confidence":0到1之间的小数,"reason":"简短理由"}`

func buildRouterPrompt(utterance string, turns []modelclient.Message) string {
	var b strings.Builder
	b.WriteString("最近对话:\n")
	if len(turns) == 0 {
		b.WriteString(emptyTurnPlaceholder + "\n")
	}
	for _, turn := range turns {
		b.WriteString(string(turn.Role) + ": " + turn.Content + "\n")
	}
	b.WriteString("\n用户最新输入: " + strings.TrimSpace(utterance))
	return b.String()
}

func lastTurns(turns []modelclient.Message, n int) []modelclient.Message {
	if n <= 0 || len(turns) <= n {
		return turns
	}
	return turns[len(turns)-n:]
}
