package optsync

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
)

// CELEvaluatorOption configures NewCELEvaluator.
type CELEvaluatorOption func(*celEvaluator)

// CELWithProgramCache shares checked programs through cache.
func CELWithProgramCache(cache ProgramCache) CELEvaluatorOption {
	return func(e *celEvaluator) {
		e.cache = cache
	}
}

// CELWithFunctionRegistry exposes a copy of registry as call(name, ...).
func CELWithFunctionRegistry(registry *FunctionRegistry) CELEvaluatorOption {
	return func(e *celEvaluator) {
		if registry != nil {
			e.registry = registry.Clone()
		}
	}
}

// celReserved are variables declared on every environment.
var celReserved = map[string]*celgo.Type{
	"now":      celgo.TimestampType,
	"args":     celgo.DynType,
	"metadata": celgo.DynType,
}

// celEvaluator declares every model key and call argument as a dyn variable.
// Programs are checked against the variable names seen at evaluation time,
// so a cached program is keyed by expression and name set.
type celEvaluator struct {
	cache    ProgramCache
	registry *FunctionRegistry

	once     sync.Once
	parseEnv *celgo.Env
	envErr   error
}

// NewCELEvaluator returns an Evaluator backed by cel-go.
func NewCELEvaluator(opts ...CELEvaluatorOption) Evaluator {
	e := &celEvaluator{}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

func (e *celEvaluator) Evaluate(ctx RuleContext, expression string) (any, error) {
	rule, err := e.Compile(expression)
	if err != nil {
		return nil, err
	}
	return rule.Evaluate(ctx)
}

// Compile checks syntax only. Type checking waits for the variables.
func (e *celEvaluator) Compile(expression string, opts ...CompileOption) (CompiledRule, error) {
	if expression == "" {
		return nil, wrapEvaluatorError("cel", ErrEmptyExpression)
	}
	e.once.Do(func() {
		e.parseEnv, e.envErr = celgo.NewEnv()
	})
	if e.envErr != nil {
		return nil, wrapEvaluatorError("cel", e.envErr)
	}
	if _, issues := e.parseEnv.Parse(expression); issues != nil && issues.Err() != nil {
		return nil, wrapEvaluationError("cel", expression, "", issues.Err())
	}
	rule := celRule{evaluator: e, expression: expression, cache: e.cache}
	if applyCompileOptions(opts).bypassCache {
		rule.cache = mapProgramCache{}
	}
	return rule, nil
}

func (e *celEvaluator) program(cache ProgramCache, expression string, names []string) (celgo.Program, error) {
	key := "cel:" + expression + "|" + strings.Join(names, ",")
	if cache != nil {
		if cached, ok := cache.Get(key); ok {
			if prg, ok := cached.(celgo.Program); ok {
				return prg, nil
			}
		}
	}

	env, err := celgo.NewEnv(e.envOptions(names)...)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		cache.Set(key, prg)
	}
	return prg, nil
}

func (e *celEvaluator) envOptions(names []string) []celgo.EnvOption {
	opts := make([]celgo.EnvOption, 0, len(names)+len(celReserved)+1)
	for name, typ := range celReserved {
		opts = append(opts, celgo.Variable(name, typ))
	}
	for _, name := range names {
		opts = append(opts, celgo.Variable(name, celgo.DynType))
	}
	if e.registry != nil {
		opts = append(opts, celgo.Function("call", e.callOverloads()...))
	}
	return opts
}

// celMaxCallArgs bounds call(name, ...); CEL overloads have fixed arity.
const celMaxCallArgs = 4

func (e *celEvaluator) callOverloads() []celgo.FunctionOpt {
	overloads := make([]celgo.FunctionOpt, 0, celMaxCallArgs+1)
	for n := 0; n <= celMaxCallArgs; n++ {
		params := []*celgo.Type{celgo.StringType}
		for i := 0; i < n; i++ {
			params = append(params, celgo.DynType)
		}
		overloads = append(overloads, celgo.Overload(
			fmt.Sprintf("call_string_dyn%d", n),
			params,
			celgo.DynType,
			celgo.FunctionBinding(e.call),
		))
	}
	return overloads
}

// call adapts the function registry to a CEL overload.
func (e *celEvaluator) call(values ...ref.Val) ref.Val {
	if len(values) == 0 {
		return types.NewErr("optsync: call requires a function name")
	}
	name, ok := values[0].Value().(string)
	if !ok {
		return types.NewErr("optsync: call name must be a string")
	}
	args := make([]any, len(values)-1)
	for i, val := range values[1:] {
		args[i] = val.Value()
	}
	result, err := e.registry.Call(name, args...)
	if err != nil {
		return types.NewErr("%s", err.Error())
	}
	if result == nil {
		return types.NullValue
	}
	return types.DefaultTypeAdapter.NativeToValue(result)
}

type celRule struct {
	evaluator  *celEvaluator
	expression string
	cache      ProgramCache
}

func (r celRule) Evaluate(ctx RuleContext) (any, error) {
	if r.evaluator == nil {
		return nil, wrapEvaluatorError("cel", errors.New("rule was not compiled"))
	}
	ctx = ctx.withDefaults()

	activation := ctx.variables()
	names := make([]string, 0, len(activation))
	for name := range activation {
		if _, reserved := celReserved[name]; !reserved {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	activation["now"] = ctx.timestamp()
	activation["args"] = ctx.Args
	activation["metadata"] = ctx.Metadata

	prg, err := r.evaluator.program(r.cache, r.expression, names)
	if err != nil {
		return nil, wrapEvaluationError("cel", r.expression, ctx.scopeLabel(), err)
	}
	out, _, err := prg.Eval(activation)
	if err != nil {
		return nil, wrapEvaluationError("cel", r.expression, ctx.scopeLabel(), err)
	}
	return out.Value(), nil
}
