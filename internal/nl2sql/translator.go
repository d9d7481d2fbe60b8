// Package nl2sql turns a natural-language question into a StructuredQuery by prompting the
// translation model with the schema catalog and a few worked examples.
package nl2sql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/duckmesh/askhr/internal/modelclient"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
	"github.com/duckmesh/askhr/internal/security"
)

const (
	MessageNotUnderstood = "无法理解您的查询，请尝试更具体的描述"
	MessageInternalError = "查询转换过程中发生错误，请稍后重试"
)

type Result struct {
	Success      bool                   `json:"success"`
	Query        *query.StructuredQuery `json:"query,omitempty"`
	ErrorCode    string                 `json:"errorCode,omitempty"`
	ErrorMessage string                 `json:"errorMessage,omitempty"`
	RawReply     string                 `json:"-"`
	Duration     time.Duration          `json:"-"`
}

func failure(message string) Result {
	return Result{Success: false, ErrorMessage: message}
}

// TextValidator screens raw text before it reaches the model.
type TextValidator interface {
	ValidateRawText(text string) security.Result
}

type Translator struct {
	model    modelclient.Client
	catalog  *schema.Catalog
	screen   TextValidator
	policies policy.Source
	logger   *slog.Logger
	now      func() time.Time
}

func NewTranslator(model modelclient.Client, catalog *schema.Catalog, screen TextValidator, policies policy.Source, logger *slog.Logger) *Translator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Translator{
		model:    model,
		catalog:  catalog,
		screen:   screen,
		policies: policies,
		logger:   logger,
		now:      time.Now,
	}
}

// Translate never returns an error; every failure is reported through Result.
func (t *Translator) Translate(ctx context.Context, utterance string, recent []modelclient.Message) Result {
	start := time.Now()
	result := t.translate(ctx, utterance, recent)
	result.Duration = time.Since(start)
	return result
}

func (t *Translator) translate(ctx context.Context, utterance string, recent []modelclient.Message) Result {
	if strings.TrimSpace(utterance) == "" {
		return failure(MessageNotUnderstood)
	}
	if screened := t.screen.ValidateRawText(utterance); !screened.Valid {
		rejected := failure(query.JoinMessages(screened.Errors))
		if len(screened.Errors) > 0 {
			rejected.ErrorCode = screened.Errors[0].Code
		}
		return rejected
	}

	current := t.policies.Current()
	messages := []modelclient.Message{
		modelclient.System(BuildSystemPrompt(t.catalog, current.MaxResultRows, current.DefaultResultRows)),
		modelclient.User(BuildUserPrompt(utterance, recent)),
	}
	reply, err := t.model.Complete(ctx, messages)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			t.logger.Error("text2sql_model_failed", "error", err)
		}
		return failure(MessageInternalError)
	}

	parsed, err := ParseReply(reply)
	if err != nil {
		t.logger.Warn("text2sql_parse_failed", "error", err, "reply", reply)
		return Result{Success: false, ErrorMessage: MessageNotUnderstood, RawReply: reply}
	}

	parsed.OriginalText = utterance
	if name, ok := t.catalog.ResolveEntityName(parsed.TargetEntity); ok {
		parsed.TargetEntity = name
	}
	if parsed.Limit <= 0 {
		parsed.Limit = current.DefaultResultRows
	}
	ResolvePlaceholders(&parsed, t.now())

	return Result{Success: true, Query: &parsed, RawReply: reply}
}

type wireFilter struct {
	Field           string `json:"field"`
	Operator        string `json:"operator"`
	Value           any    `json:"value"`
	LogicalOperator string `json:"logicalOperator"`
}

type wireQuery struct {
	Operation        string              `json:"operation"`
	TargetEntity     string              `json:"targetEntity"`
	SelectFields     []string            `json:"selectFields"`
	Filters          []wireFilter        `json:"filters"`
	Joins            []query.JoinClause  `json:"joins"`
	Aggregation      string              `json:"aggregation"`
	AggregationField string              `json:"aggregationField"`
	GroupByFields    []string            `json:"groupByFields"`
	OrderBy          []query.OrderClause `json:"orderBy"`
	Limit            float64             `json:"limit"`
	Offset           float64             `json:"offset"`
	UpdateValues     map[string]any      `json:"updateValues"`
}

// ParseReply extracts the first balanced JSON object from a model reply and maps it onto a
// StructuredQuery. Enum-like values are matched case-insensitively.
func ParseReply(reply string) (query.StructuredQuery, error) {
	span, ok := modelclient.ExtractJSONObject(reply)
	if !ok {
		return query.StructuredQuery{}, fmt.Errorf("no JSON object in reply")
	}
	var wire wireQuery
	if err := json.Unmarshal([]byte(span), &wire); err != nil {
		return query.StructuredQuery{}, fmt.Errorf("decode structured query: %w", err)
	}
	if strings.TrimSpace(wire.TargetEntity) == "" {
		return query.StructuredQuery{}, fmt.Errorf("targetEntity is required")
	}

	operation, ok := query.ParseOperation(wire.Operation)
	if !ok {
		return query.StructuredQuery{}, fmt.Errorf("unknown operation %q", wire.Operation)
	}
	out := query.StructuredQuery{
		Operation:        operation,
		TargetEntity:     strings.TrimSpace(wire.TargetEntity),
		SelectFields:     wire.SelectFields,
		Joins:            wire.Joins,
		AggregationField: strings.TrimSpace(wire.AggregationField),
		GroupByFields:    wire.GroupByFields,
		OrderBy:          wire.OrderBy,
		Limit:            int(wire.Limit),
		Offset:           int(wire.Offset),
		UpdateValues:     wire.UpdateValues,
	}
	if strings.TrimSpace(wire.Aggregation) != "" {
		kind, ok := query.ParseAggregation(wire.Aggregation)
		if !ok {
			return query.StructuredQuery{}, fmt.Errorf("unknown aggregation %q", wire.Aggregation)
		}
		out.Aggregation = kind
	}
	for _, filter := range wire.Filters {
		operator, ok := query.ParseOperator(filter.Operator)
		if !ok {
			return query.StructuredQuery{}, fmt.Errorf("unknown operator %q", filter.Operator)
		}
		logical := query.LogicalAnd
		if query.LogicalOperator(filter.LogicalOperator).IsOr() {
			logical = query.LogicalOr
		}
		out.Filters = append(out.Filters, query.FilterCondition{
			Field:           strings.TrimSpace(filter.Field),
			Operator:        operator,
			Value:           filter.Value,
			LogicalOperator: logical,
		})
	}
	return out, nil
}
