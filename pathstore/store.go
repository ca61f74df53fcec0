package pathstore

import (
	"fmt"

	"github.com/goliatone/go-optsync/layering"
)

// Origin identifies who produced a write. The binding engine uses it as the
// token that keeps a model-originated write from echoing back to the model.
type Origin int

const (
	// OriginComponent marks writes made by the component or its callers.
	OriginComponent Origin = iota
	// OriginModel marks writes applied from the bound data model.
	OriginModel
	// OriginSeed marks initial option values loaded from configuration.
	OriginSeed
)

func (o Origin) String() string {
	switch o {
	case OriginModel:
		return "model"
	case OriginSeed:
		return "seed"
	default:
		return "component"
	}
}

// Change is reported once per dirtied path when a batch flushes.
type Change struct {
	Path       Path
	Previous   any
	Value      any
	Origin     Origin
	SkipRender bool
}

// Name returns the canonical string form of the changed path.
func (c Change) Name() string { return c.Path.String() }

// ChangeHandler receives flushed changes in first-dirtied order.
type ChangeHandler func(Change)

// WriteOption tunes a single Set call.
type WriteOption func(*writeConfig)

type writeConfig struct {
	origin     Origin
	skipRender bool
	force      bool
}

// FromModel tags the write as originating from the bound model.
func FromModel() WriteOption {
	return func(cfg *writeConfig) {
		cfg.origin = OriginModel
	}
}

// WithOrigin tags the write with an explicit origin.
func WithOrigin(origin Origin) WriteOption {
	return func(cfg *writeConfig) {
		cfg.origin = origin
	}
}

// WithoutRender marks the change as not requiring a render pass.
func WithoutRender() WriteOption {
	return func(cfg *writeConfig) {
		cfg.skipRender = true
	}
}

// Force notifies even when the value is unchanged.
func Force() WriteOption {
	return func(cfg *writeConfig) {
		cfg.force = true
	}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithChangeHandler installs the handler that receives flushed changes.
func WithChangeHandler(handler ChangeHandler) StoreOption {
	return func(s *Store) {
		s.onChange = handler
	}
}

// WithRenderHandler installs the hook called once after a flush that
// contained at least one change requiring a render.
func WithRenderHandler(render func()) StoreOption {
	return func(s *Store) {
		s.onRender = render
	}
}

type pending struct {
	change    Change
	fromModel bool
}

// Store owns a tree of option values addressed by Path. Writes are observed
// exactly once; writes inside BeginUpdate/EndUpdate are coalesced per path
// and flushed when the outermost bracket closes.
//
// Store is not safe for concurrent use.
type Store struct {
	root     map[string]any
	aliases  []alias
	depth    int
	dirty    []*pending
	index    map[string]*pending
	flushing bool
	onChange ChangeHandler
	onRender func()
}

type alias struct {
	from Path
	to   Path
}

// New creates a store seeded with initial. The map is used as is, so values
// shared with the caller stay shared.
func New(initial map[string]any, opts ...StoreOption) *Store {
	if initial == nil {
		initial = map[string]any{}
	}
	s := &Store{
		root:  initial,
		index: make(map[string]*pending),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// SetChangeHandler replaces the change handler.
func (s *Store) SetChangeHandler(handler ChangeHandler) { s.onChange = handler }

// SetRenderHandler replaces the render hook.
func (s *Store) SetRenderHandler(render func()) { s.onRender = render }

// Alias redirects reads and writes addressed to alias (or below it) to the
// canonical path.
func (s *Store) Alias(from, to string) error {
	fromPath, err := Parse(from)
	if err != nil {
		return err
	}
	toPath, err := Parse(to)
	if err != nil {
		return err
	}
	for i, existing := range s.aliases {
		if existing.from.Equal(fromPath) {
			s.aliases[i].to = toPath
			return nil
		}
	}
	s.aliases = append(s.aliases, alias{from: fromPath, to: toPath})
	return nil
}

// Canonical resolves aliases for path.
func (s *Store) Canonical(path Path) Path {
	for _, a := range s.aliases {
		if path.HasPrefix(a.from) {
			return a.to.Join(path[len(a.from):]...)
		}
	}
	return path
}

// Get reads the value at raw. Invalid or missing paths report false.
func (s *Store) Get(raw string) (any, bool) {
	path, err := Parse(raw)
	if err != nil {
		return nil, false
	}
	return s.GetPath(path)
}

// GetPath reads the value at path.
func (s *Store) GetPath(path Path) (any, bool) {
	return Lookup(s.root, s.Canonical(path))
}

// Set writes value at raw.
func (s *Store) Set(raw string, value any, opts ...WriteOption) error {
	path, err := Parse(raw)
	if err != nil {
		return err
	}
	return s.SetPath(path, value, opts...)
}

// SetPath writes value at path. Unchanged scalars, identical slices and
// identical pointers are skipped; maps always notify because they are
// commonly mutated in place.
func (s *Store) SetPath(path Path, value any, opts ...WriteOption) error {
	if len(path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	if path[0].Kind != KeySegment {
		return fmt.Errorf("%w: store paths must start with a key, got %s", ErrInvalidPath, path)
	}
	cfg := writeConfig{origin: OriginComponent}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	path = s.Canonical(path)
	previous, _ := Lookup(s.root, path)
	if !cfg.force && !layering.IsPlainObject(value) && layering.Identical(previous, value) {
		return nil
	}

	if _, err := Assign(s.root, path, value); err != nil {
		return fmt.Errorf("pathstore: set %s: %w", path, err)
	}
	current, _ := Lookup(s.root, path)
	s.markDirty(path, previous, current, cfg)

	if s.depth == 0 {
		s.flush()
	}
	return nil
}

// BeginUpdate opens a transaction. Transactions nest.
func (s *Store) BeginUpdate() {
	s.depth++
}

// EndUpdate closes a transaction and flushes when the outermost one closes.
// Calls without a matching BeginUpdate are ignored.
func (s *Store) EndUpdate() {
	if s.depth == 0 {
		return
	}
	s.depth--
	if s.depth == 0 {
		s.flush()
	}
}

// Updating reports the current transaction depth.
func (s *Store) Updating() int { return s.depth }

// Pending reports the number of dirty paths awaiting a flush.
func (s *Store) Pending() int { return len(s.dirty) }

// Snapshot returns a deep copy of the option tree.
func (s *Store) Snapshot() map[string]any {
	return layering.Clone(s.root)
}

// Paths lists the leaf paths of the option tree in canonical sorted order.
func (s *Store) Paths() []string {
	leaves := s.Leaves()
	out := make([]string, len(leaves))
	for i, leaf := range leaves {
		out[i] = leaf.Path
	}
	return out
}

func (s *Store) markDirty(path Path, previous, value any, cfg writeConfig) {
	key := path.String()
	if entry, ok := s.index[key]; ok {
		entry.change.Value = value
		entry.change.SkipRender = entry.change.SkipRender && cfg.skipRender
		entry.fromModel = entry.fromModel && cfg.origin == OriginModel
		if cfg.origin != OriginModel {
			entry.change.Origin = cfg.origin
		}
		return
	}
	entry := &pending{
		change: Change{
			Path:       path,
			Previous:   previous,
			Value:      value,
			Origin:     cfg.origin,
			SkipRender: cfg.skipRender,
		},
		fromModel: cfg.origin == OriginModel,
	}
	s.dirty = append(s.dirty, entry)
	s.index[key] = entry
}

// flush drains dirty paths. A re-entrant flush returns at once; the outer
// loop picks up anything written by handlers.
func (s *Store) flush() {
	if s.flushing {
		return
	}
	s.flushing = true
	defer func() { s.flushing = false }()

	render := false
	for len(s.dirty) > 0 {
		batch := s.dirty
		s.dirty = nil
		s.index = make(map[string]*pending)
		for _, entry := range batch {
			change := entry.change
			if entry.fromModel {
				change.Origin = OriginModel
			}
			if !change.SkipRender {
				render = true
			}
			if s.onChange != nil {
				s.onChange(change)
			}
		}
	}
	if render && s.onRender != nil {
		s.onRender()
	}
}
