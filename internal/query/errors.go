package query

import "strings"

const (
	CodeEntityNotAllowed       = "ENTITY_NOT_ALLOWED"
	CodeFieldNotAllowed        = "FIELD_NOT_ALLOWED"
	CodeOperationNotAllowed    = "OPERATION_NOT_ALLOWED"
	CodeQueryTooComplex        = "QUERY_TOO_COMPLEX"
	CodeTooManyJoins           = "TOO_MANY_JOINS"
	CodeTooManyFilters         = "TOO_MANY_FILTERS"
	CodeResultSetTooLarge      = "RESULT_SET_TOO_LARGE"
	CodeDangerousKeyword       = "DANGEROUS_KEYWORD"
	CodeInsufficientPermission = "INSUFFICIENT_PERMISSION"
	CodeSensitiveFieldDenied   = "SENSITIVE_FIELD_DENIED"
	CodeDataScopeExceeded      = "DATA_SCOPE_EXCEEDED"
	CodeQueryParseFailed       = "QUERY_PARSE_FAILED"
	CodeInvalidFilter          = "INVALID_FILTER"
	CodeInvalidFieldType       = "INVALID_FIELD_TYPE"
	CodeFilterRequired         = "FILTER_REQUIRED"
	CodeExecutionFailed        = "EXECUTION_FAILED"

	WarningLimitAdjusted = "LIMIT_ADJUSTED"
)

type ValidationError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e ValidationError) Error() string {
	if e.Field != "" {
		return e.Code + ": " + e.Message + " (" + e.Field + ")"
	}
	return e.Code + ": " + e.Message
}

// JoinMessages renders validation errors the way they are shown to end users.
func JoinMessages(errs []ValidationError) string {
	parts := make([]string, 0, len(errs))
	for _, item := range errs {
		parts = append(parts, item.Message)
	}
	return strings.Join(parts, "; ")
}
