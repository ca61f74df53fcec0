package optsync

import (
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-optsync/pathstore"
)

// Expression reads, and when assignable writes, a value of the data model.
type Expression interface {
	Source() string
	Get(model any) (any, error)
	Set(model any, value any) error
	Assignable() bool
}

// Parser turns binding expressions into Expressions.
type Parser interface {
	Parse(source string) (Expression, error)
}

// ParserFunc adapts a function to Parser.
type ParserFunc func(source string) (Expression, error)

// Parse implements Parser.
func (f ParserFunc) Parse(source string) (Expression, error) { return f(source) }

// NewParser returns the default parser: sources in the path grammar, with
// optional computed subscripts such as vm[field], become assignable path
// expressions; anything else is compiled by the configured evaluator and
// binds read-only.
func NewParser(opts ...Option) Parser {
	cfg := applyOptions(opts)
	return newExpressionParser(cfg)
}

type expressionParser struct {
	evaluator Evaluator
	engine    string
	scope     string
	logger    EvaluatorLogger
	parsed    map[string]Expression
}

func newExpressionParser(cfg engineConfig) *expressionParser {
	return &expressionParser{
		evaluator: cfg.resolveEvaluator(),
		engine:    evaluatorEngineName(cfg.resolveEvaluator()),
		scope:     cfg.name,
		logger:    cfg.evaluationLogger(),
		parsed:    make(map[string]Expression),
	}
}

func (cfg engineConfig) resolveEvaluator() Evaluator {
	if cfg.evaluator != nil {
		return cfg.evaluator
	}
	var exprOpts []ExprEvaluatorOption
	if cfg.programCache != nil {
		exprOpts = append(exprOpts, ExprWithProgramCache(cfg.programCache))
	}
	if cfg.functions != nil {
		exprOpts = append(exprOpts, ExprWithFunctionRegistry(cfg.functions))
	}
	return NewExprEvaluator(exprOpts...)
}

// literals parse as identifiers but must reach the evaluator.
var literals = map[string]struct{}{
	"true": {}, "false": {}, "nil": {}, "null": {}, "undefined": {},
}

func (p *expressionParser) Parse(source string) (Expression, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, ErrEmptyExpression
	}
	if expr, ok := p.parsed[source]; ok {
		return expr, nil
	}

	var expr Expression
	if _, literal := literals[source]; !literal {
		if tmpl, err := pathstore.ParseTemplate(source); err == nil {
			path := &pathExpression{source: source, template: tmpl, parser: p}
			if tmpl.Static() {
				path.static, _ = tmpl.Resolve(nil)
			}
			expr = path
		}
	}
	if expr == nil {
		if p.evaluator == nil {
			return nil, fmt.Errorf("%w: %q", ErrNoEvaluator, source)
		}
		rule, err := p.evaluator.Compile(source)
		if err != nil {
			return nil, wrapEvaluationError(p.engine, source, p.scope, err)
		}
		expr = &evaluatedExpression{source: source, rule: rule, parser: p}
	}
	p.parsed[source] = expr
	return expr, nil
}

// pathExpression addresses the model with the path grammar.
type pathExpression struct {
	source   string
	template pathstore.Template
	static   pathstore.Path
	parser   *expressionParser
}

func (e *pathExpression) Source() string   { return e.source }
func (e *pathExpression) Assignable() bool { return true }

// Path resolves computed subscripts against model.
func (e *pathExpression) Path(model any) (pathstore.Path, error) {
	if e.static != nil {
		return e.static, nil
	}
	return e.template.Resolve(func(sub string) (any, error) {
		inner, err := e.parser.Parse(sub)
		if err != nil {
			return nil, err
		}
		return inner.Get(model)
	})
}

func (e *pathExpression) Get(model any) (any, error) {
	path, err := e.Path(model)
	if err != nil {
		return nil, err
	}
	value, _ := pathstore.Lookup(model, path)
	return value, nil
}

func (e *pathExpression) Set(model any, value any) error {
	if model == nil {
		return ErrNoModel
	}
	path, err := e.Path(model)
	if err != nil {
		return err
	}
	if _, err := pathstore.Assign(model, path, value); err != nil {
		return fmt.Errorf("optsync: assign %s: %w", path, err)
	}
	return nil
}

// evaluatedExpression runs through an Evaluator and cannot be written.
type evaluatedExpression struct {
	source string
	rule   CompiledRule
	parser *expressionParser
}

func (e *evaluatedExpression) Source() string   { return e.source }
func (e *evaluatedExpression) Assignable() bool { return false }

func (e *evaluatedExpression) Get(model any) (any, error) {
	return e.evaluate(RuleContext{Model: model})
}

func (e *evaluatedExpression) evaluate(ctx RuleContext) (any, error) {
	p := e.parser
	ctx.Scope = p.scope
	ctx = ctx.withDefaults()
	start := time.Now()
	value, err := e.rule.Evaluate(ctx)
	err = wrapEvaluationError(p.engine, e.source, ctx.scopeLabel(), err)
	p.logger.LogEvaluation(EvaluatorLogEvent{
		Engine:   p.engine,
		Expr:     e.source,
		Scope:    ctx.scopeLabel(),
		Op:       "get",
		Duration: time.Since(start),
		Err:      err,
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (e *evaluatedExpression) Set(any, any) error {
	return fmt.Errorf("%w: %q", ErrNotAssignable, e.source)
}

// evaluate runs expr with call arguments available as variables. Path
// expressions ignore args.
func evaluate(expr Expression, model any, args map[string]any) (any, error) {
	if evaluated, ok := expr.(*evaluatedExpression); ok {
		return evaluated.evaluate(RuleContext{Model: model, Args: args})
	}
	return expr.Get(model)
}

func evaluatorEngineName(e Evaluator) string {
	switch e.(type) {
	case nil:
		return "unknown"
	case *exprEvaluator:
		return "expr"
	case *celEvaluator:
		return "cel"
	default:
		if name := jsEngineName(e); name != "" {
			return name
		}
		return "custom"
	}
}
