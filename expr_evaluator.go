package optsync

import (
	"errors"
	"sort"
	"strings"

	exprlang "github.com/expr-lang/expr"
	exprparser "github.com/expr-lang/expr/parser"
	exprvm "github.com/expr-lang/expr/vm"
)

const exprCachePrefix = "expr:"

// ExprEvaluatorOption configures NewExprEvaluator.
type ExprEvaluatorOption func(*exprEvaluator)

// ExprWithProgramCache shares compiled programs through cache.
func ExprWithProgramCache(cache ProgramCache) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.cache = cache
	}
}

// ExprWithFunctionRegistry exposes a copy of registry both as named
// functions, shout(vm.name), and through call("shout", vm.name).
func ExprWithFunctionRegistry(registry *FunctionRegistry) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// ExprWithOptions appends compile options such as custom operators.
func ExprWithOptions(opts ...exprlang.Option) ExprEvaluatorOption {
	return func(e *exprEvaluator) {
		e.extra = append(e.extra, opts...)
	}
}

// exprEvaluator runs binding expressions with expr-lang/expr. Model keys are
// top-level variables, so "vm.a + vm.b" reads what a path binding would.
type exprEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry
	extra    []exprlang.Option
}

// NewExprEvaluator returns the default Evaluator.
func NewExprEvaluator(opts ...ExprEvaluatorOption) Evaluator {
	e := &exprEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *exprEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile checks syntax only. Programs are built per variable set at
// evaluation time, so model keys shadow expr builtins such as count or len.
func (e *exprEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("expr", ErrEmptyExpression)
	}
	if _, err := exprparser.Parse(expression); err != nil {
		return nil, wrapEvaluationError("expr", expression, "", err)
	}
	cfg := applyCompileOptions(opts)
	rule := &exprRule{evaluator: e, expression: expression}
	if cfg.bypassCache || e.cache == nil {
		rule.local = mapProgramCache{}
	}
	return rule, nil
}

func exprCacheKey(expression string, names []string) string {
	return exprCachePrefix + expression + "|" + strings.Join(names, ",")
}

func (e *exprEvaluator) program(cache ProgramCache, expression string, names []string) (*exprvm.Program, error) {
	key := exprCacheKey(expression, names)
	if cached, ok := cache.Get(key); ok {
		if program, ok := cached.(*exprvm.Program); ok {
			return program, nil
		}
	}
	program, err := exprlang.Compile(expression, e.compileOptions(names)...)
	if err != nil {
		return nil, err
	}
	cache.Set(key, program)
	return program, nil
}

func (e *exprEvaluator) compileOptions(names []string) []exprlang.Option {
	env := make(map[string]any, len(names))
	opts := []exprlang.Option{exprlang.AllowUndefinedVariables()}
	for _, name := range names {
		env[name] = nil
		opts = append(opts, exprlang.DisableBuiltin(name))
	}
	opts = append([]exprlang.Option{exprlang.Env(env)}, opts...)
	for _, name := range e.registry.Names() {
		if _, shadowed := env[name]; shadowed {
			continue
		}
		opts = append(opts, exprlang.Function(name, e.caller(name)))
	}
	return append(opts, e.extra...)
}

func (e *exprEvaluator) caller(name string) func(...any) (any, error) {
	return func(args ...any) (any, error) {
		return e.registry.Call(name, args...)
	}
}

// env builds the run environment. Call arguments shadow model keys.
func (e *exprEvaluator) env(ctx RuleContext) map[string]any {
	env := ctx.variables()
	env["now"] = ctx.timestamp()
	env["args"] = ctx.Args
	env["metadata"] = ctx.Metadata
	if ctx.Scope != "" {
		env["scope"] = ctx.Scope
	}
	if e.registry != nil {
		env["call"] = func(name string, args ...any) (any, error) {
			return e.registry.Call(name, args...)
		}
	}
	return env
}

// envNames lists the declared variables of env. call stays undeclared so
// it compiles as a plain function value.
func envNames(env map[string]any) []string {
	names := make([]string, 0, len(env))
	for name := range env {
		if name != "call" {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

type exprRule struct {
	evaluator  *exprEvaluator
	expression string
	// local replaces the shared cache when the rule opted out of it.
	local mapProgramCache
}

func (r *exprRule) Evaluate(ctx RuleContext) (any, error) {
	if r == nil || r.evaluator == nil {
		return nil, wrapEvaluatorError("expr", errors.New("rule was not compiled"))
	}
	ctx = ctx.withDefaults()
	env := r.evaluator.env(ctx)
	var cache ProgramCache = r.local
	if r.local == nil {
		cache = r.evaluator.cache
	}
	program, err := r.evaluator.program(cache, r.expression, envNames(env))
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.scopeLabel(), err)
	}
	out, err := exprlang.Run(program, env)
	if err != nil {
		return nil, wrapEvaluationError("expr", r.expression, ctx.scopeLabel(), err)
	}
	return out, nil
}
