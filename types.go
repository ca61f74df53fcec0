package optsync

import (
	"time"

	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/pkg/activity"
)

// Change describes one flushed option change. Origin tells whether the value
// came from the component or from the bound model.
type Change = pathstore.Change

// WriteOption tunes a single option write.
type WriteOption = pathstore.WriteOption

// Host is the render collaborator of an Engine. OptionChanged is called once
// per flushed change, Render once per flush that needs it.
type Host interface {
	OptionChanged(change Change)
	Render()
}

// HostFuncs adapts optional callbacks into a Host.
type HostFuncs struct {
	OnOptionChanged func(change Change)
	OnRender        func()
}

// OptionChanged implements Host.
func (h HostFuncs) OptionChanged(change Change) {
	if h.OnOptionChanged != nil {
		h.OnOptionChanged(change)
	}
}

// Render implements Host.
func (h HostFuncs) Render() {
	if h.OnRender != nil {
		h.OnRender()
	}
}

// WithoutRender marks a write as not requiring a render pass.
func WithoutRender() WriteOption { return pathstore.WithoutRender() }

// Force notifies even when the written value is unchanged.
func Force() WriteOption { return pathstore.Force() }

// RuleContext carries inputs needed when evaluating an expression.
type RuleContext struct {
	Model    any
	Args     map[string]any
	Metadata map[string]any
	Now      *time.Time
	Scope    string
}

func (ctx RuleContext) withDefaults() RuleContext {
	if ctx.Now == nil {
		now := time.Now()
		ctx.Now = &now
	}
	if ctx.Args == nil {
		ctx.Args = map[string]any{}
	}
	if ctx.Metadata == nil {
		ctx.Metadata = map[string]any{}
	}
	return ctx
}

func (ctx RuleContext) timestamp() time.Time {
	return *ctx.withDefaults().Now
}

func (ctx RuleContext) scopeLabel() string {
	if ctx.Scope != "" {
		return ctx.Scope
	}
	return "unknown"
}

// variables flattens the model and call arguments into evaluator variables.
// Arguments shadow model keys of the same name.
func (ctx RuleContext) variables() map[string]any {
	vars := map[string]any{}
	if model, ok := ctx.Model.(map[string]any); ok {
		for key, value := range model {
			vars[key] = value
		}
	}
	for key, value := range ctx.Args {
		vars[key] = value
	}
	return vars
}

// Evaluator executes expressions against a rule context.
type Evaluator interface {
	Evaluate(ctx RuleContext, expr string) (any, error)
	Compile(expr string, opts ...CompileOption) (CompiledRule, error)
}

// CompiledRule represents a reusable expression program.
type CompiledRule interface {
	Evaluate(ctx RuleContext) (any, error)
}

// CompileOption configures one Compile call.
type CompileOption interface {
	applyCompileOption(*compileConfig)
}

type compileConfig struct {
	bypassCache bool
}

type compileOptionFunc func(*compileConfig)

func (f compileOptionFunc) applyCompileOption(cfg *compileConfig) {
	if f != nil {
		f(cfg)
	}
}

// WithoutProgramCache keeps the compiled rule out of the shared program
// cache. Rules built from one-off sources, such as action expressions, use
// it so they do not evict binding programs.
func WithoutProgramCache() CompileOption {
	return compileOptionFunc(func(cfg *compileConfig) {
		cfg.bypassCache = true
	})
}

func applyCompileOptions(opts []CompileOption) compileConfig {
	var cfg compileConfig
	for _, opt := range opts {
		if opt != nil {
			opt.applyCompileOption(&cfg)
		}
	}
	return cfg
}

// Option configures an Engine.
type Option func(*engineConfig)

type engineConfig struct {
	name            string
	model           any
	host            Host
	options         map[string]any
	aliases         [][2]string
	parser          Parser
	evaluator       Evaluator
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          Logger
	evaluatorLogger EvaluatorLogger
	metrics         *Metrics
	activityHooks   activity.Hooks
	activityConfig  activity.Config
	wrapActions     bool
	deferIndirect   bool
	exempt          map[string]struct{}
}

func applyOptions(opts []Option) engineConfig {
	cfg := engineConfig{
		wrapActions: true,
		exempt: map[string]struct{}{
			CategoryInternal:  {},
			CategoryRendering: {},
		},
		activityConfig: activity.Config{Enabled: true},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.logger == nil {
		cfg.logger = noopLogger{}
	}
	if cfg.host == nil {
		cfg.host = HostFuncs{}
	}
	return cfg
}

// WithName labels the engine in logs, errors and activity events.
func WithName(name string) Option {
	return func(cfg *engineConfig) {
		cfg.name = name
	}
}

// WithModel sets the data model bindings read and write. Without it the
// engine asks the runtime through watch.ModelProvider.
func WithModel(model any) Option {
	return func(cfg *engineConfig) {
		cfg.model = model
	}
}

// WithHost attaches the render collaborator.
func WithHost(host Host) Option {
	return func(cfg *engineConfig) {
		cfg.host = host
	}
}

// WithOptions seeds the option store. The map is used as is.
func WithOptions(options map[string]any) Option {
	return func(cfg *engineConfig) {
		cfg.options = options
	}
}

// WithAlias redirects a deprecated option path to its canonical path.
func WithAlias(from, to string) Option {
	return func(cfg *engineConfig) {
		cfg.aliases = append(cfg.aliases, [2]string{from, to})
	}
}

// WithParser replaces the expression parser.
func WithParser(parser Parser) Option {
	return func(cfg *engineConfig) {
		cfg.parser = parser
	}
}

// WithEvaluator sets the evaluator used for expressions outside the path
// grammar. Defaults to expr.
func WithEvaluator(evaluator Evaluator) Option {
	return func(cfg *engineConfig) {
		cfg.evaluator = evaluator
	}
}

// WithActionWrapping toggles running wrapped actions inside a runtime
// transaction. Enabled by default.
func WithActionWrapping(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.wrapActions = enabled
	}
}

// WithDeferredIndirect lets Configure accept a declaration whose Indirect
// source is not in the model yet. The engine then watches the model and
// configures itself once the declaration resolves. Without it, Configure
// fails with ErrIndirectPending and the caller must call it again.
func WithDeferredIndirect(enabled bool) Option {
	return func(cfg *engineConfig) {
		cfg.deferIndirect = enabled
	}
}

// WithExemptCategories adds action categories that never open a
// transaction.
func WithExemptCategories(categories ...string) Option {
	return func(cfg *engineConfig) {
		if cfg.exempt == nil {
			cfg.exempt = map[string]struct{}{}
		}
		for _, category := range categories {
			cfg.exempt[category] = struct{}{}
		}
	}
}

// WithMetrics reports engine activity to m.
func WithMetrics(m *Metrics) Option {
	return func(cfg *engineConfig) {
		cfg.metrics = m
	}
}
