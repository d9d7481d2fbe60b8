// Package engine executes validated structured queries against the entity store.
//
// Filters compile to predicates that fold strictly left to right: each condition's logical
// operator links it to the next one, so "A OR B AND C" evaluates as "(A OR B) AND C".
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/duckmesh/askhr/internal/auth"
	"github.com/duckmesh/askhr/internal/entity"
	"github.com/duckmesh/askhr/internal/policy"
	"github.com/duckmesh/askhr/internal/query"
	"github.com/duckmesh/askhr/internal/schema"
	"github.com/duckmesh/askhr/internal/security"
	"github.com/duckmesh/askhr/internal/store"
)

const MessageExecutionFailed = "查询执行过程中发生错误，请稍后重试"

// Execution describes one finished Execute call.
type Execution struct {
	Query     query.StructuredQuery
	Identity  auth.Identity
	Result    query.Result
	StartedAt time.Time
}

// Observer is notified after every Execute call, successful or not.
type Observer interface {
	QueryExecuted(ctx context.Context, execution Execution)
}

type ObserverFunc func(ctx context.Context, execution Execution)

func (f ObserverFunc) QueryExecuted(ctx context.Context, execution Execution) {
	f(ctx, execution)
}

type Engine struct {
	Registry    *entity.Registry
	Catalog     *schema.Catalog
	Security    *security.Validator
	Permissions *auth.PermissionValidator
	Store       store.Store
	Policies    policy.Source
	Logger      *slog.Logger
	Observers   []Observer
	Clock       func() time.Time
}

// failure is an expected, user-safe execution error.
type failure struct {
	code    string
	message string
}

func (f failure) Error() string {
	return f.code + ": " + f.message
}

func fail(code, message string) error {
	return failure{code: code, message: message}
}

func (e *Engine) ensureDefaults() {
	if e.Logger == nil {
		e.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if e.Clock == nil {
		e.Clock = time.Now
	}
	if e.Policies == nil {
		e.Policies = policy.Static(policy.Default())
	}
}

// Execute validates q for identity and runs it. It never panics and never returns internal error
// detail in the result.
func (e *Engine) Execute(ctx context.Context, q query.StructuredQuery, identity auth.Identity) (result query.Result) {
	e.ensureDefaults()
	started := e.Clock()
	executed := q

	defer func() {
		if recovered := recover(); recovered != nil {
			e.Logger.ErrorContext(ctx, "query_execute_failed",
				slog.String("entity", q.TargetEntity),
				slog.String("operation", string(q.Operation)),
				slog.Any("panic", recovered),
			)
			result = query.Failure(query.CodeExecutionFailed, MessageExecutionFailed)
			result.Operation = q.Operation
		}
		result.Duration = e.Clock().Sub(started)
		for _, observer := range e.Observers {
			observer.QueryExecuted(ctx, Execution{Query: executed, Identity: identity, Result: result, StartedAt: started})
		}
	}()

	// One snapshot for both validators and execution, so a reload cannot mix policies.
	p := e.Policies.Current()
	checked := e.Security.ValidateWith(q, p)
	if !checked.Valid {
		result = validationFailure(checked.Errors, checked.Warnings)
		result.Operation = q.Operation
		return result
	}
	permitted := e.Permissions.ValidateWith(checked.Corrected, identity, p)
	if !permitted.Valid {
		result = validationFailure(permitted.Errors, checked.Warnings)
		result.Operation = checked.Corrected.Operation
		return result
	}
	executed = permitted.Filtered
	warnings := append(append([]string(nil), checked.Warnings...), permitted.Warnings...)

	if p.QueryTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(p.QueryTimeoutSeconds)*time.Second)
		defer cancel()
	}

	result, err := e.dispatch(ctx, executed, permitted.RequiredFilters, identity, p)
	if err != nil {
		var expected failure
		if errors.As(err, &expected) {
			result = query.Failure(expected.code, expected.message)
		} else {
			e.Logger.ErrorContext(ctx, "query_execute_failed",
				slog.String("entity", executed.TargetEntity),
				slog.String("operation", string(executed.Operation)),
				slog.Any("error", err),
			)
			result = query.Failure(query.CodeExecutionFailed, MessageExecutionFailed)
		}
	}
	result.Operation = executed.Operation
	result.Warnings = append(warnings, result.Warnings...)
	result.GeneratedQuery = e.render(executed, permitted.RequiredFilters, p)
	return result
}

func validationFailure(errs []query.ValidationError, warnings []string) query.Result {
	code := query.CodeQueryParseFailed
	if len(errs) > 0 {
		code = errs[0].Code
	}
	result := query.Failure(code, query.JoinMessages(errs))
	result.Warnings = append([]string(nil), warnings...)
	return result
}

// dispatch runs q. required holds the row-scope filters, which apply on top of q.Filters
// whatever the caller's connectives.
func (e *Engine) dispatch(ctx context.Context, q query.StructuredQuery, required []query.FilterCondition, identity auth.Identity, p policy.Policy) (query.Result, error) {
	tenant := store.TenantKey(identity.TenantID)
	operation, known := query.ParseOperation(string(q.Operation))
	if !known {
		return query.Result{}, fail(query.CodeOperationNotAllowed, fmt.Sprintf("不支持的操作类型: %s", q.Operation))
	}

	plan, err := e.newPlan(q, operation == query.OperationSelect)
	if err != nil {
		return query.Result{}, err
	}
	scope, err := plan.compileScope(required)
	if err != nil {
		return query.Result{}, err
	}
	switch operation {
	case query.OperationInsert:
		return e.insert(ctx, plan, q, tenant)
	case query.OperationUpdate:
		return e.update(ctx, plan, q, scope, tenant)
	case query.OperationDelete:
		return e.delete(ctx, plan, q, scope, tenant)
	default:
		return e.selectRows(ctx, plan, q, scope, identity, tenant, p)
	}
}

func (e *Engine) binding(entityName string) (*entity.Binding, error) {
	binding, ok := e.Registry.Binding(entityName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", store.ErrUnknownEntity, entityName)
	}
	return binding, nil
}
