// Package chat is the conversation orchestrator: it routes each message, runs the data-query
// pipeline or a plain chat completion, and always answers with a user-safe envelope.
package chat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/nl2sql"
	"github.com/duckmesh/askhr/internal/observability"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/router"
	"github.com/duckmesh/askhr/internal/session"
)

const (
	MessageCancelled      = "请求已取消。"
	MessageApology        = "抱歉，系统暂时无法处理您的请求，请稍后重试。"
	messageEmptyReply     = "抱歉，我无法处理您的请求。"
	messageClarifyDefault = "为了更准确地查询，请补充一下您想查询的时间范围和对象范围。"

	WarningConvertFailed = "text2sql-convert-failed"
	WarningExecuteFailed = "text2sql-execute-failed"

	routerContextTurns     = 8
	translatorContextTurns = 6
)

const (
	outcomeAnswered  = "answered"
	outcomeClarified = "clarified"
	outcomeDenied    = "denied"
	outcomeCancelled = "cancelled"
	outcomeFailed    = "failed"
)

type Diagnostics struct {
	GeneratedQueryText string   `json:"generatedQueryText,omitempty"`
	ExecutionMillis    *int64   `json:"executionMillis,omitempty"`
	Warnings           []string `json:"warnings,omitempty"`
}

type Envelope struct {
	Reply         string       `json:"reply"`
	Route         router.Route `json:"route"`
	CorrelationID string       `json:"correlationId"`
	Timestamp     time.Time    `json:"timestamp"`
	Diagnostics   *Diagnostics `json:"diagnostics,omitempty"`
}

type Router interface {
	Route(ctx context.Context, utterance string, recent []modelclient.Message) router.Decision
}

type Translator interface {
	Translate(ctx context.Context, utterance string, recent []modelclient.Message) nl2sql.Result
}

type Executor interface {
	Execute(ctx context.Context, q query.StructuredQuery, identity auth.Identity) query.Result
}

type Service struct {
	Router     Router
	Translator Translator
	Executor   Executor
	Model      modelclient.Client
	Sessions   session.Store
	Policies   policy.Source
	Logger     *slog.Logger
	Clock      func() time.Time
}

func (s *Service) ensureDefaults() {
	if s.Logger == nil {
		s.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Policies == nil {
		s.Policies = policy.Static(policy.Default())
	}
	if s.Sessions == nil {
		s.Sessions = session.NewMemoryStore(session.DefaultMaxTurns)
	}
}

// Chat answers one user message. It never returns an error: cancellation yields MessageCancelled
// and any unexpected fault yields MessageApology.
func (s *Service) Chat(ctx context.Context, identity auth.Identity, message string) (envelope Envelope) {
	s.ensureDefaults()
	correlationID := observability.TraceIDFromContext(ctx)
	if correlationID == "" {
		correlationID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	reply := func(route router.Route, text string, diagnostics *Diagnostics) Envelope {
		return Envelope{
			Reply:         text,
			Route:         route,
			CorrelationID: correlationID,
			Timestamp:     s.Clock().UTC(),
			Diagnostics:   diagnostics,
		}
	}

	if ctx.Err() != nil {
		observability.ObserveChatReply(string(router.RouteChat), outcomeCancelled)
		return reply(router.RouteChat, MessageCancelled, nil)
	}

	logger := s.Logger.With(slog.String("correlation_id", correlationID), slog.String("user_id", identity.UserID))
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.ErrorContext(ctx, "chat_failed", slog.Any("panic", recovered))
			observability.ObserveChatReply(string(router.RouteChat), outcomeFailed)
			envelope = reply(router.RouteChat, MessageApology, nil)
		}
	}()

	answer, err := s.chat(ctx, logger, identity, message)
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			logger.InfoContext(ctx, "chat_cancelled")
			observability.ObserveChatReply(string(router.RouteChat), outcomeCancelled)
			return reply(router.RouteChat, MessageCancelled, nil)
		}
		logger.ErrorContext(ctx, "chat_failed", slog.Any("error", err))
		observability.ObserveChatReply(string(router.RouteChat), outcomeFailed)
		return reply(router.RouteChat, MessageApology, nil)
	}
	observability.ObserveChatReply(string(answer.route), answer.outcome)
	return reply(answer.route, answer.text, answer.diagnostics)
}

type turn struct {
	route       router.Route
	text        string
	outcome     string
	diagnostics *Diagnostics
}

func (s *Service) chat(ctx context.Context, logger *slog.Logger, identity auth.Identity, message string) (turn, error) {
	key := session.Key(identity.TenantID, identity.UserID)
	history, err := s.Sessions.Load(ctx, key)
	if err != nil {
		return turn{}, fmt.Errorf("load history: %w", err)
	}
	userMessage := session.Message{Role: modelclient.RoleUser, Content: message, Timestamp: s.Clock().UTC()}
	if err := s.Sessions.Append(ctx, key, userMessage); err != nil {
		return turn{}, fmt.Errorf("append history: %w", err)
	}
	history = append(history, userMessage)
	recent := session.Recent(history, routerContextTurns)

	decision := s.Router.Route(ctx, message, recent)
	observability.ObserveRoute(string(decision.Route), string(decision.Strategy))
	logger.InfoContext(ctx, "route_decided",
		slog.String("route", string(decision.Route)),
		slog.String("strategy", string(decision.Strategy)),
		slog.Float64("confidence", decision.Confidence),
		slog.String("reason", decision.Reason),
	)
	if err := ctx.Err(); err != nil {
		return turn{}, err
	}

	var result turn
	if decision.Route == router.RouteText2SQL && s.Policies.Current().Enabled && s.Translator != nil && s.Executor != nil {
		result, err = s.dataQuery(ctx, logger, identity, message, recent)
	} else {
		result, err = s.converse(ctx, history)
	}
	if err != nil {
		return turn{}, err
	}
	if err := s.Sessions.Append(ctx, key, session.Message{Role: modelclient.RoleAssistant, Content: result.text, Timestamp: s.Clock().UTC()}); err != nil {
		return turn{}, fmt.Errorf("append history: %w", err)
	}
	return result, nil
}

func (s *Service) converse(ctx context.Context, history []session.Message) (turn, error) {
	if s.Model == nil {
		return turn{}, errors.New("chat model is not configured")
	}
	text, err := s.Model.Complete(ctx, session.ModelMessages(history))
	if err != nil {
		return turn{}, fmt.Errorf("chat completion: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		text = messageEmptyReply
	}
	return turn{route: router.RouteChat, text: text, outcome: outcomeAnswered}, nil
}

func (s *Service) dataQuery(ctx context.Context, logger *slog.Logger, identity auth.Identity, message string, recent []modelclient.Message) (turn, error) {
	if len(recent) > translatorContextTurns {
		recent = recent[len(recent)-translatorContextTurns:]
	}
	// The current utterance is passed separately.
	if n := len(recent); n > 0 && recent[n-1].Role == modelclient.RoleUser && recent[n-1].Content == message {
		recent = recent[:n-1]
	}

	converted := s.Translator.Translate(ctx, message, recent)
	if err := ctx.Err(); err != nil {
		return turn{}, err
	}
	if !converted.Success || converted.Query == nil {
		logger.InfoContext(ctx, "text2sql_convert_failed", slog.String("reason", converted.ErrorMessage))
		if isDenial(converted.ErrorCode) {
			return deny(converted.ErrorMessage, WarningConvertFailed), nil
		}
		return s.clarify(ctx, message, converted.ErrorMessage, WarningConvertFailed)
	}

	result := s.Executor.Execute(ctx, *converted.Query, identity)
	if err := ctx.Err(); err != nil {
		return turn{}, err
	}
	if !result.Success {
		logger.InfoContext(ctx, "text2sql_execute_failed",
			slog.String("error_code", result.ErrorCode),
			slog.String("entity", converted.Query.TargetEntity),
		)
		if isDenial(result.ErrorCode) {
			return deny(result.ErrorMessage, WarningExecuteFailed), nil
		}
		return s.clarify(ctx, message, result.ErrorMessage, WarningExecuteFailed)
	}

	millis := result.Duration.Milliseconds()
	diagnostics := &Diagnostics{ExecutionMillis: &millis}
	if s.Policies.Current().IncludeGeneratedQuery {
		diagnostics.GeneratedQueryText = result.GeneratedQuery
	}
	if len(result.Warnings) > 0 {
		diagnostics.Warnings = append([]string(nil), result.Warnings...)
	}
	return turn{
		route:       router.RouteText2SQL,
		text:        Summarize(result, *converted.Query),
		outcome:     outcomeAnswered,
		diagnostics: diagnostics,
	}, nil
}

// isDenial reports whether code is a security or permission refusal. Those are quoted to the user
// as is; other failures lead to a clarifying question.
func isDenial(code string) bool {
	switch code {
	case query.CodeEntityNotAllowed, query.CodeFieldNotAllowed, query.CodeOperationNotAllowed,
		query.CodeQueryTooComplex, query.CodeTooManyJoins, query.CodeTooManyFilters,
		query.CodeResultSetTooLarge, query.CodeDangerousKeyword, query.CodeInsufficientPermission,
		query.CodeSensitiveFieldDenied, query.CodeDataScopeExceeded, query.CodeFilterRequired:
		return true
	default:
		return false
	}
}

func deny(message, warning string) turn {
	return turn{
		route:       router.RouteText2SQL,
		text:        message,
		outcome:     outcomeDenied,
		diagnostics: &Diagnostics{Warnings: []string{warning}},
	}
}

const clarifySystemPrompt = `你是 AskHR 人事助手。用户的输入更像是在做数据查询，但当前系统无法安全地直接执行。
你的目标是提出1-2个澄清问题，帮助用户把查询说清楚（例如时间范围、部门、人员范围、指标口径）。
回复要简短、具体，不要提及内部实现细节。`

// clarify asks the chat model for a follow-up question after the data path could not answer.
func (s *Service) clarify(ctx context.Context, message, reason, warning string) (turn, error) {
	if strings.TrimSpace(reason) == "" {
		reason = "(空)"
	}
	text := messageClarifyDefault
	if s.Model != nil {
		prompt := fmt.Sprintf("用户输入：\n%s\n\n失败原因（可为空）：\n%s", message, reason)
		reply, err := s.Model.Complete(ctx, []modelclient.Message{
			modelclient.System(clarifySystemPrompt),
			modelclient.User(prompt),
		})
		if err != nil {
			return turn{}, fmt.Errorf("clarification: %w", err)
		}
		if strings.TrimSpace(reply) != "" {
			text = reply
		}
	}
	return turn{
		route:       router.RouteChat,
		text:        text,
		outcome:     outcomeClarified,
		diagnostics: &Diagnostics{Warnings: []string{warning}},
	}, nil
}

// History returns the caller's most recent messages, oldest first.
func (s *Service) History(ctx context.Context, identity auth.Identity, limit int) ([]session.Message, error) {
	s.ensureDefaults()
	return s.Sessions.History(ctx, session.Key(identity.TenantID, identity.UserID), limit)
}

func (s *Service) ClearHistory(ctx context.Context, identity auth.Identity) error {
	s.ensureDefaults()
	return s.Sessions.Clear(ctx, session.Key(identity.TenantID, identity.UserID))
}
