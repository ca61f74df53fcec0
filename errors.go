package optsync

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrDisposed reports an operation on an engine after Dispose.
	ErrDisposed = errors.New("optsync: engine disposed")
	// ErrBindingResolution reports a binding declaration that cannot be
	// turned into binding entries. Returned wrapped in *BindingError.
	ErrBindingResolution = errors.New("optsync: binding resolution failed")
	// ErrIndirectPending reports an Indirect declaration whose model value
	// does not exist yet. Returned wrapped in *BindingError.
	ErrIndirectPending = errors.New("optsync: indirect declaration not in model")
	// ErrNotAssignable reports a write through an expression that only reads.
	ErrNotAssignable = errors.New("optsync: expression is not assignable")
	// ErrEmptyExpression reports a blank expression.
	ErrEmptyExpression = errors.New("optsync: expression must not be empty")
	// ErrNoEvaluator reports an expression outside the path grammar with no
	// evaluator configured to run it.
	ErrNoEvaluator = errors.New("optsync: evaluator not configured")
	// ErrNoModel reports an engine with neither WithModel nor a runtime that
	// provides one.
	ErrNoModel = errors.New("optsync: data model not configured")
	// ErrNoRuntime reports an engine created without a reactive runtime.
	ErrNoRuntime = errors.New("optsync: runtime is required")
)

// BindingError describes the declaration that failed to resolve.
type BindingError struct {
	Target     string
	Expression string
	Err        error
}

func (e *BindingError) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(ErrBindingResolution.Error())
	if e.Target != "" {
		fmt.Fprintf(&b, " target=%q", e.Target)
	}
	if e.Expression != "" {
		fmt.Fprintf(&b, " expr=%q", e.Expression)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the sentinel and the cause to errors.Is.
func (e *BindingError) Unwrap() []error {
	if e == nil {
		return nil
	}
	if e.Err == nil {
		return []error{ErrBindingResolution}
	}
	return []error{ErrBindingResolution, e.Err}
}

func bindingError(target, expression string, format string, args ...any) error {
	return &BindingError{Target: target, Expression: expression, Err: fmt.Errorf(format, args...)}
}

// EvaluationError captures evaluator metadata alongside the originating error.
// Scope is the name of the engine the expression belongs to.
type EvaluationError struct {
	Engine string
	Expr   string
	Scope  string
	Err    error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("optsync: %s evaluator %s scope=%s: %v", e.Engine, describeExpression(e.Expr), e.Scope, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if errors.As(err, &evalErr) || strings.HasPrefix(err.Error(), "optsync:") {
		return err
	}
	return fmt.Errorf("optsync: %s evaluator: %w", engine, err)
}

// wrapEvaluationError attaches metadata, filling only the fields an existing
// EvaluationError left empty.
func wrapEvaluationError(engine, expr, scope string, err error) error {
	if err == nil {
		return nil
	}
	var evalErr *EvaluationError
	if !errors.As(err, &evalErr) {
		return &EvaluationError{Engine: engine, Expr: expr, Scope: scope, Err: err}
	}
	if evalErr.Engine == "" {
		evalErr.Engine = engine
	}
	if evalErr.Expr == "" {
		evalErr.Expr = expr
	}
	if evalErr.Scope == "" {
		evalErr.Scope = scope
	}
	return evalErr
}
