package watch

import (
	"errors"

	"github.com/google/uuid"
)

var (
	// ErrNilGetter reports a registration without a value getter.
	ErrNilGetter = errors.New("watch: getter is required")
	// ErrClosed reports a registration on a closed registry.
	ErrClosed = errors.New("watch: registry closed")
)

// Registry owns the watches a single binding engine places on a Runtime.
// Closing it removes exactly those watches and leaves any other watch of the
// runtime in place.
type Registry struct {
	runtime Runtime
	entries map[Handle]*registration
	closed  bool
	onCount func(delta int)
}

type registration struct {
	id        Handle
	get       func() any
	requested Mode
	effective Mode
	runtimeID Handle
	listen    Listener
	active    bool
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCountHook reports every change in the number of active watches.
func WithCountHook(hook func(delta int)) RegistryOption {
	return func(r *Registry) {
		r.onCount = hook
	}
}

// NewRegistry returns a registry placing watches on runtime.
func NewRegistry(runtime Runtime, opts ...RegistryOption) *Registry {
	r := &Registry{
		runtime: runtime,
		entries: make(map[Handle]*registration),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Register watches the value returned by get. With ModeAuto the effective
// mode is re-evaluated after each callback and the runtime watch is replaced
// only when it changes.
func (r *Registry) Register(get func() any, mode Mode, listen Listener) (Handle, error) {
	if r.closed {
		return "", ErrClosed
	}
	if get == nil {
		return "", ErrNilGetter
	}
	reg := &registration{
		id:        Handle(uuid.NewString()),
		get:       get,
		requested: mode,
		listen:    listen,
		active:    true,
	}
	reg.effective = Effective(mode, get())
	reg.runtimeID = r.runtime.Watch(r.watcherFor(reg))
	r.entries[reg.id] = reg
	r.count(1)
	return reg.id, nil
}

// Mode reports the effective mode of a registration.
func (r *Registry) Mode(h Handle) (Mode, bool) {
	reg, ok := r.entries[h]
	if !ok {
		return ModeAuto, false
	}
	return reg.effective, true
}

// Unregister removes a watch. Unknown or already removed handles are a no-op.
func (r *Registry) Unregister(h Handle) {
	reg, ok := r.entries[h]
	if !ok {
		return
	}
	delete(r.entries, h)
	reg.active = false
	r.runtime.Unwatch(reg.runtimeID)
	r.count(-1)
}

// Len reports the number of active registrations.
func (r *Registry) Len() int { return len(r.entries) }

// Close unregisters every watch owned by the registry. Further Register calls
// fail with ErrClosed.
func (r *Registry) Close() {
	for h := range r.entries {
		r.Unregister(h)
	}
	r.closed = true
}

func (r *Registry) watcherFor(reg *registration) Watcher {
	return Watcher{
		Get:  reg.get,
		Mode: reg.effective,
		Listen: func(value, previous any) {
			if !reg.active {
				return
			}
			if reg.listen != nil {
				reg.listen(value, previous)
			}
			if !reg.active || reg.requested != ModeAuto {
				return
			}
			next := Effective(ModeAuto, reg.get())
			if next == reg.effective {
				return
			}
			r.runtime.Unwatch(reg.runtimeID)
			reg.effective = next
			reg.runtimeID = r.runtime.Watch(r.watcherFor(reg))
		},
	}
}

func (r *Registry) count(delta int) {
	if r.onCount != nil {
		r.onCount(delta)
	}
}
