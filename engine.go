package optsync

import (
	"context"
	"errors"
	"sort"

	"github.com/goliatone/go-optsync/layering"
	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/pkg/activity"
	"github.com/goliatone/go-optsync/watch"
	"github.com/google/uuid"
)

// Engine keeps the options of one component in sync with a reactive data
// model. Each Engine owns its option store, lock manager, watch registry and
// batcher; nothing is shared between engines.
//
// Engine is not safe for concurrent use. All calls, including those made by
// the runtime's listeners, must come from one goroutine.
type Engine struct {
	id       string
	cfg      engineConfig
	runtime  watch.Runtime
	model    any
	store    *pathstore.Store
	locks    *LockManager
	watches  *watch.Registry
	batch    *batcher
	parser   Parser
	emitter  *activity.Emitter
	// pending watches a declaration whose Indirect source is missing.
	pending watch.Handle
	bindings []*binding
	disposed bool
}

type binding struct {
	entry  BindingEntry
	handle watch.Handle
}

// New creates an engine on runtime. The model comes from WithModel or, when
// absent, from a runtime implementing watch.ModelProvider.
func New(runtime watch.Runtime, opts ...Option) (*Engine, error) {
	if runtime == nil {
		return nil, ErrNoRuntime
	}
	cfg := applyOptions(opts)

	model := cfg.model
	if model == nil {
		if provider, ok := runtime.(watch.ModelProvider); ok {
			model = provider.Model()
		}
	}
	if model == nil {
		return nil, ErrNoModel
	}

	e := &Engine{
		id:      uuid.NewString(),
		cfg:     cfg,
		runtime: runtime,
		model:   model,
		locks:   NewLockManager(),
		emitter: activity.NewEmitter(cfg.activityHooks, cfg.activityConfig),
	}
	e.store = pathstore.New(cfg.options,
		pathstore.WithChangeHandler(e.optionChanged),
		pathstore.WithRenderHandler(e.render),
	)
	for _, alias := range cfg.aliases {
		if err := e.store.Alias(alias[0], alias[1]); err != nil {
			return nil, &BindingError{Target: alias[0], Err: err}
		}
	}
	e.parser = cfg.parser
	if e.parser == nil {
		e.parser = newExpressionParser(cfg)
	}
	e.watches = watch.NewRegistry(runtime, watch.WithCountHook(cfg.metrics.watches))
	e.batch = newBatcher(e.store, runtime)
	return e, nil
}

// ID returns the unique id of the engine.
func (e *Engine) ID() string { return e.id }

// Name returns the name given with WithName.
func (e *Engine) Name() string { return e.cfg.name }

// Store exposes the option store.
func (e *Engine) Store() *pathstore.Store { return e.store }

// Locks exposes the lock manager.
func (e *Engine) Locks() *LockManager { return e.locks }

// Model returns the bound data model.
func (e *Engine) Model() any { return e.model }

// WatchCount reports the number of model watches the engine holds.
func (e *Engine) WatchCount() int { return e.watches.Len() }

// Entries returns the active binding entries sorted by target path.
func (e *Engine) Entries() []BindingEntry {
	out := make([]BindingEntry, len(e.bindings))
	for i, b := range e.bindings {
		out[i] = b.entry
	}
	return out
}

// Configure resolves decl and attaches its bindings, replacing any bindings
// attached earlier. Resolution errors are returned before anything changes.
// Options carried by a ComponentConfig are written before bindings attach,
// and the whole step flushes as one batch.
func (e *Engine) Configure(decl any) error {
	if e.disposed {
		return ErrDisposed
	}
	rc := ResolveContext{
		Parser:    e.parser,
		Model:     e.model,
		Canonical: e.store.Canonical,
	}
	res, err := ResolveBindings(decl, rc)
	if err != nil && e.cfg.deferIndirect && errors.Is(err, ErrIndirectPending) {
		return e.deferConfigure(decl, rc, err)
	}
	e.clearPending()
	if err != nil {
		e.cfg.metrics.bindingError()
		e.cfg.logger.Error("binding configuration rejected", "engine", e.cfg.name, "error", err)
		return err
	}

	e.detachAll()
	e.batch.run(func() {
		keys := make([]string, 0, len(res.Options))
		for key := range res.Options {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if err = e.store.SetPath(pathstore.Path{pathstore.Key(key)}, res.Options[key], pathstore.WithOrigin(pathstore.OriginSeed)); err != nil {
				return
			}
		}
		for _, entry := range res.Entries {
			if err = e.attach(entry); err != nil {
				return
			}
		}
	})
	if err != nil {
		e.detachAll()
		return err
	}
	e.cfg.logger.Debug("bindings configured", "engine", e.cfg.name, "count", len(e.bindings))
	return nil
}

// Dispose detaches every binding and stops listening to the runtime.
// Calling it again is a no-op.
func (e *Engine) Dispose() {
	if e.disposed {
		return
	}
	e.disposed = true
	e.clearPending()
	e.detachAll()
	e.watches.Close()
	e.batch.close()
}

// Disposed reports whether Dispose has run.
func (e *Engine) Disposed() bool { return e.disposed }

// Write sets an option. Bound options propagate to the model unless the
// write is tagged FromModel.
func (e *Engine) Write(path string, value any, opts ...WriteOption) error {
	if e.disposed {
		return ErrDisposed
	}
	p, err := pathstore.Parse(path)
	if err != nil {
		return err
	}
	e.batch.run(func() {
		err = e.store.SetPath(p, value, opts...)
	})
	return err
}

// Read returns the option at path.
func (e *Engine) Read(path string) (any, bool) {
	return e.store.Get(path)
}

func (e *Engine) attach(entry BindingEntry) error {
	b := &binding{entry: entry}
	if !entry.Expression.Assignable() {
		e.cfg.logger.Info("binding is one-way", "engine", e.cfg.name, "target", entry.Name(), "expr", entry.Source)
	}

	initial, err := entry.Expression.Get(e.model)
	if err != nil {
		e.cfg.metrics.bindingError()
		e.cfg.logger.Warn("binding read failed", "engine", e.cfg.name, "target", entry.Name(), "expr", entry.Source, "error", err)
	}
	current, found := e.store.GetPath(entry.Target)
	if initial == nil && found && current != nil && entry.Expression.Assignable() {
		e.toModel(b)
	} else {
		e.toComponent(b, initial, false)
	}

	handle, err := e.watches.Register(e.getter(b), entry.Mode, func(value, _ any) {
		e.toComponent(b, value, true)
	})
	if err != nil {
		return &BindingError{Target: entry.Name(), Expression: entry.Source, Err: err}
	}
	b.handle = handle
	e.bindings = append(e.bindings, b)
	e.emit(activity.BuildBindingAttachedEvent(e.eventInput(b, "")))
	return nil
}

// deferConfigure detaches the current bindings and waits for decl to
// resolve. The first digest in which it does runs Configure again.
func (e *Engine) deferConfigure(decl any, rc ResolveContext, cause error) error {
	e.clearPending()
	e.detachAll()
	handle, err := e.watches.Register(func() any {
		_, err := ResolveBindings(decl, rc)
		return !errors.Is(err, ErrIndirectPending)
	}, watch.ModeShallow, func(ready, _ any) {
		if ready != true {
			return
		}
		if err := e.Configure(decl); err != nil {
			e.cfg.logger.Error("deferred binding configuration failed", "engine", e.cfg.name, "error", err)
		}
	})
	if err != nil {
		return err
	}
	e.pending = handle
	e.cfg.logger.Info("binding configuration deferred", "engine", e.cfg.name, "reason", cause)
	return nil
}

func (e *Engine) clearPending() {
	if e.pending == "" {
		return
	}
	e.watches.Unregister(e.pending)
	e.pending = ""
}

// Pending reports whether Configure is waiting on an Indirect declaration.
func (e *Engine) Pending() bool { return e.pending != "" }

func (e *Engine) detachAll() {
	bindings := e.bindings
	e.bindings = nil
	for _, b := range bindings {
		e.watches.Unregister(b.handle)
		e.emit(activity.BuildBindingDetachedEvent(e.eventInput(b, "")))
	}
}

func (e *Engine) getter(b *binding) func() any {
	return func() any {
		value, err := b.entry.Expression.Get(e.model)
		if err != nil {
			return nil
		}
		return value
	}
}

// toComponent writes a model value into the store under the target lock. If
// the store ends up holding something else, because a handler rewrote it, the
// final option value is pushed back to the model. changed is set when a watch
// reported the value; a collection mutated in place is then written even
// though it is identical to what the store holds.
func (e *Engine) toComponent(b *binding, value any, changed bool) {
	target := b.entry.Target
	opts := []WriteOption{pathstore.FromModel()}
	if changed && layering.IsCollection(value) {
		opts = append(opts, pathstore.Force())
	}
	ran, err := e.locks.Guard(target, func() error {
		var setErr error
		e.batch.run(func() {
			setErr = e.store.SetPath(target, value, opts...)
		})
		return setErr
	})
	if !ran {
		e.guardMiss(b, DirectionToComponent, value)
		return
	}
	if err != nil {
		e.cfg.metrics.bindingError()
		e.cfg.logger.Warn("option write failed", "engine", e.cfg.name, "target", b.entry.Name(), "error", err)
		return
	}
	e.cfg.metrics.propagated(DirectionToComponent)
	e.emit(activity.BuildBindingPropagatedEvent(e.eventInput(b, DirectionToComponent, value)))

	if !b.entry.Expression.Assignable() {
		return
	}
	if current, _ := e.store.GetPath(target); !layering.Identical(current, value) {
		e.toModel(b)
	}
}

// toModel writes the option value of b into the model inside one runtime
// transaction. A model whose accessor stores something other than what was
// written wins: the read-back value is copied to the store.
func (e *Engine) toModel(b *binding) {
	target := b.entry.Target
	var pushed any
	ran, err := e.locks.Guard(target, func() error {
		e.cfg.metrics.transaction("propagate")
		return e.runtime.RunInTransaction(func() error {
			value, _ := e.store.GetPath(target)
			pushed = value
			if err := b.entry.Expression.Set(e.model, value); err != nil {
				return err
			}
			back, err := b.entry.Expression.Get(e.model)
			if err != nil {
				return err
			}
			if layering.Identical(back, value) {
				return nil
			}
			pushed = back
			var setErr error
			e.batch.run(func() {
				setErr = e.store.SetPath(target, back, pathstore.FromModel())
			})
			return setErr
		})
	})
	if !ran {
		value, _ := e.store.GetPath(target)
		e.guardMiss(b, DirectionToModel, value)
		return
	}
	if err != nil {
		e.cfg.metrics.bindingError()
		e.cfg.logger.Warn("model write failed", "engine", e.cfg.name, "target", b.entry.Name(), "expr", b.entry.Source, "error", err)
		return
	}
	e.cfg.metrics.propagated(DirectionToModel)
	e.emit(activity.BuildBindingPropagatedEvent(e.eventInput(b, DirectionToModel, pushed)))
}

// optionChanged receives every flushed change. Changes the component made
// flow to the model through each binding they touch.
func (e *Engine) optionChanged(change Change) {
	e.cfg.host.OptionChanged(change)
	if change.Origin != pathstore.OriginComponent {
		return
	}
	for _, b := range e.linked(change.Path) {
		if b.entry.Expression.Assignable() {
			e.toModel(b)
		}
	}
}

func (e *Engine) linked(path pathstore.Path) []*binding {
	var out []*binding
	for _, b := range e.bindings {
		if b.entry.Target.Linked(path) {
			out = append(out, b)
		}
	}
	return out
}

func (e *Engine) render() {
	e.cfg.metrics.rendered()
	e.cfg.host.Render()
}

func (e *Engine) guardMiss(b *binding, direction string, value any) {
	e.cfg.metrics.guardMiss()
	e.cfg.logger.Debug("reentrancy guard miss", "engine", e.cfg.name, "target", b.entry.Name(), "direction", direction)
	e.emit(activity.BuildGuardMissEvent(e.eventInput(b, direction, value)))
}

func (e *Engine) eventInput(b *binding, direction string, value ...any) activity.BindingEventInput {
	input := activity.BindingEventInput{
		EngineID:   e.id,
		Engine:     e.cfg.name,
		Target:     b.entry.Name(),
		Expression: b.entry.Source,
		Mode:       b.entry.Mode.String(),
		Direction:  direction,
	}
	if len(value) > 0 {
		input.NewValue = value[0]
	}
	return input
}

func (e *Engine) emit(event activity.Event) {
	if !e.emitter.Enabled() {
		return
	}
	if err := e.emitter.Emit(context.Background(), event); err != nil {
		e.cfg.logger.Warn("activity hook failed", "engine", e.cfg.name, "verb", event.Verb, "error", err)
	}
}
