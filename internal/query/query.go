package query

import (
	"strings"
	"time"
)

type Operation string

const (
	OperationSelect Operation = "Select"
	OperationInsert Operation = "Insert"
	OperationUpdate Operation = "Update"
	OperationDelete Operation = "Delete"
)

// ParseOperation accepts any casing and defaults to Select for an empty value.
func ParseOperation(value string) (Operation, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "select":
		return OperationSelect, true
	case "insert":
		return OperationInsert, true
	case "update":
		return OperationUpdate, true
	case "delete":
		return OperationDelete, true
	default:
		return Operation(value), false
	}
}

func (o Operation) IsMutation() bool {
	return o == OperationInsert || o == OperationUpdate || o == OperationDelete
}

type Operator string

const (
	OpEqual              Operator = "Equal"
	OpNotEqual           Operator = "NotEqual"
	OpGreaterThan        Operator = "GreaterThan"
	OpGreaterThanOrEqual Operator = "GreaterThanOrEqual"
	OpLessThan           Operator = "LessThan"
	OpLessThanOrEqual    Operator = "LessThanOrEqual"
	OpContains           Operator = "Contains"
	OpStartsWith         Operator = "StartsWith"
	OpEndsWith           Operator = "EndsWith"
	OpIn                 Operator = "In"
	OpNotIn              Operator = "NotIn"
	OpIsNull             Operator = "IsNull"
	OpIsNotNull          Operator = "IsNotNull"
	OpBetween            Operator = "Between"
)

var Operators = []Operator{
	OpEqual, OpNotEqual, OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual,
	OpContains, OpStartsWith, OpEndsWith, OpIn, OpNotIn, OpIsNull, OpIsNotNull, OpBetween,
}

// ParseOperator matches operator names case-insensitively.
func ParseOperator(value string) (Operator, bool) {
	trimmed := strings.TrimSpace(value)
	for _, op := range Operators {
		if strings.EqualFold(string(op), trimmed) {
			return op, true
		}
	}
	return Operator(trimmed), false
}

type AggregationKind string

const (
	AggregationCount         AggregationKind = "Count"
	AggregationCountDistinct AggregationKind = "CountDistinct"
	AggregationSum           AggregationKind = "Sum"
	AggregationAvg           AggregationKind = "Avg"
	AggregationMin           AggregationKind = "Min"
	AggregationMax           AggregationKind = "Max"
)

var AggregationKinds = []AggregationKind{
	AggregationCount, AggregationCountDistinct, AggregationSum, AggregationAvg, AggregationMin, AggregationMax,
}

func ParseAggregation(value string) (AggregationKind, bool) {
	trimmed := strings.TrimSpace(value)
	for _, kind := range AggregationKinds {
		if strings.EqualFold(string(kind), trimmed) {
			return kind, true
		}
	}
	return "", false
}

type LogicalOperator string

const (
	LogicalAnd LogicalOperator = "AND"
	LogicalOr  LogicalOperator = "OR"
)

// IsOr reports whether the condition links to the next one with OR. Anything else is AND.
func (l LogicalOperator) IsOr() bool {
	return strings.EqualFold(strings.TrimSpace(string(l)), string(LogicalOr))
}

type FilterCondition struct {
	Field           string          `json:"field"`
	Operator        Operator        `json:"operator"`
	Value           any             `json:"value,omitempty"`
	LogicalOperator LogicalOperator `json:"logicalOperator,omitempty"`
}

type JoinClause struct {
	Entity   string `json:"entity"`
	On       string `json:"on"`
	JoinType string `json:"joinType,omitempty"`
	Alias    string `json:"alias,omitempty"`
}

type OrderClause struct {
	Field      string `json:"field"`
	Descending bool   `json:"descending"`
}

// StructuredQuery is the whitelisted intermediate representation produced by the translator.
type StructuredQuery struct {
	Operation        Operation         `json:"operation"`
	TargetEntity     string            `json:"targetEntity"`
	SelectFields     []string          `json:"selectFields,omitempty"`
	Filters          []FilterCondition `json:"filters,omitempty"`
	Joins            []JoinClause      `json:"joins,omitempty"`
	Aggregation      AggregationKind   `json:"aggregation,omitempty"`
	AggregationField string            `json:"aggregationField,omitempty"`
	GroupByFields    []string          `json:"groupByFields,omitempty"`
	OrderBy          []OrderClause     `json:"orderBy,omitempty"`
	Limit            int               `json:"limit,omitempty"`
	Offset           int               `json:"offset,omitempty"`
	UpdateValues     map[string]any    `json:"updateValues,omitempty"`
	OriginalText     string            `json:"originalText,omitempty"`
}

func (q StructuredQuery) HasAggregation() bool {
	return q.Aggregation != ""
}

// Clone returns a deep copy of the slices and map so validators can correct a query without
// touching the caller's value.
func (q StructuredQuery) Clone() StructuredQuery {
	out := q
	out.SelectFields = append([]string(nil), q.SelectFields...)
	out.Filters = append([]FilterCondition(nil), q.Filters...)
	out.Joins = append([]JoinClause(nil), q.Joins...)
	out.GroupByFields = append([]string(nil), q.GroupByFields...)
	out.OrderBy = append([]OrderClause(nil), q.OrderBy...)
	if q.UpdateValues != nil {
		out.UpdateValues = make(map[string]any, len(q.UpdateValues))
		for key, value := range q.UpdateValues {
			out.UpdateValues[key] = value
		}
	}
	return out
}

type Column struct {
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	DataType    string `json:"dataType"`
	Nullable    bool   `json:"nullable"`
}

type Row map[string]any

// Result is the outcome of executing one structured query. Exactly one of Rows, AggregationValue
// or AffectedRows carries the payload, depending on the operation and aggregation.
type Result struct {
	Success          bool            `json:"success"`
	ErrorCode        string          `json:"errorCode,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	Operation        Operation       `json:"operation"`
	Aggregation      AggregationKind `json:"aggregation,omitempty"`
	Columns          []Column        `json:"columns,omitempty"`
	Rows             []Row           `json:"rows,omitempty"`
	RowCount         int             `json:"rowCount"`
	AggregationValue any             `json:"aggregationValue,omitempty"`
	AffectedRows     int             `json:"affectedRows"`
	InsertedID       any             `json:"insertedId,omitempty"`
	GeneratedQuery   string          `json:"generatedQuery,omitempty"`
	Duration         time.Duration   `json:"-"`
	Warnings         []string        `json:"warnings,omitempty"`
}

func Failure(code, message string) Result {
	return Result{Success: false, ErrorCode: code, ErrorMessage: message}
}
