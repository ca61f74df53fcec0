// Package scope is an in-process reactive runtime: a data model that is
// dirty-checked by a digest loop whenever a transaction closes.
package scope

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/watch"
)

// DefaultTTL bounds the number of digest passes before giving up.
const DefaultTTL = 10

// ErrDigestOverflow reports watchers that kept changing for TTL passes.
var ErrDigestOverflow = errors.New("scope: digest iterations exceeded")

// Option configures a Scope.
type Option func(*Scope)

// WithTTL overrides the digest pass limit.
func WithTTL(ttl int) Option {
	return func(s *Scope) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// Scope owns a data model and the watches placed on it. It implements
// watch.Runtime, watch.TransactionObserver and watch.ModelProvider.
//
// Scope is not safe for concurrent use.
type Scope struct {
	data      map[string]any
	watchers  []*watcher
	observers []*observer
	nextID    int
	phase     bool
	ttl       int
	digests   int
}

type watcher struct {
	id      watch.Handle
	get     func() any
	listen  watch.Listener
	tracker *watch.Tracker
	removed bool
}

type observer struct {
	begin, end func()
	removed    bool
}

// New creates a scope over data. A nil map starts empty.
func New(data map[string]any, opts ...Option) *Scope {
	if data == nil {
		data = map[string]any{}
	}
	s := &Scope{data: data, ttl: DefaultTTL}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Data returns the live model.
func (s *Scope) Data() map[string]any { return s.data }

// Model implements watch.ModelProvider.
func (s *Scope) Model() any { return s.data }

// Get reads a path from the model.
func (s *Scope) Get(raw string) any {
	path, err := pathstore.Parse(raw)
	if err != nil {
		return nil
	}
	v, _ := pathstore.Lookup(s.data, path)
	return v
}

// Set writes a path in the model without running a digest.
func (s *Scope) Set(raw string, value any) error {
	path, err := pathstore.Parse(raw)
	if err != nil {
		return err
	}
	_, err = pathstore.Assign(s.data, path, value)
	return err
}

// Watch implements watch.Runtime. The watcher is primed with the current
// value, so its listener only fires on later changes.
func (s *Scope) Watch(w watch.Watcher) watch.Handle {
	s.nextID++
	entry := &watcher{
		id:     watch.Handle("w" + strconv.Itoa(s.nextID)),
		get:    w.Get,
		listen: w.Listen,
	}
	entry.tracker = watch.NewTracker(w.Mode, s.read(entry))
	s.watchers = append(s.watchers, entry)
	return entry.id
}

// WatchPath places an ambient watch on a model path.
func (s *Scope) WatchPath(raw string, mode watch.Mode, listen watch.Listener) (watch.Handle, error) {
	path, err := pathstore.Parse(raw)
	if err != nil {
		return "", err
	}
	get := func() any {
		v, _ := pathstore.Lookup(s.data, path)
		return v
	}
	return s.Watch(watch.Watcher{Get: get, Mode: watch.Effective(mode, get()), Listen: listen}), nil
}

// Unwatch implements watch.Runtime.
func (s *Scope) Unwatch(h watch.Handle) {
	for i, w := range s.watchers {
		if w.id == h {
			w.removed = true
			s.watchers = append(s.watchers[:i:i], s.watchers[i+1:]...)
			return
		}
	}
}

// WatcherCount reports the number of live watches, bound and ambient.
func (s *Scope) WatcherCount() int { return len(s.watchers) }

// Digests reports how many outermost digests have run.
func (s *Scope) Digests() int { return s.digests }

// InTransaction reports whether a digest cycle is running.
func (s *Scope) InTransaction() bool { return s.phase }

// RunInTransaction implements watch.Runtime.
func (s *Scope) RunInTransaction(fn func() error) error { return s.Apply(fn) }

// Apply runs fn and then digests. Nested calls run fn inline and leave the
// digest to the outermost call. Begin observers fire before fn, end observers
// after the digest once the cycle is over. fn errors and digest errors are both
// returned; a panic in fn still closes the cycle before propagating.
func (s *Scope) Apply(fn func() error) (err error) {
	if s.phase {
		if fn == nil {
			return nil
		}
		return fn()
	}

	s.phase = true
	s.digests++
	s.notify(func(o *observer) func() { return o.begin })
	defer func() {
		s.phase = false
		s.notify(func(o *observer) func() { return o.end })
	}()

	var fnErr error
	if fn != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					_ = s.digest()
					panic(r)
				}
			}()
			fnErr = fn()
		}()
	}
	return errors.Join(fnErr, s.digest())
}

// Digest runs a full cycle with no work of its own.
func (s *Scope) Digest() error { return s.Apply(nil) }

// ObserveTransactions implements watch.TransactionObserver.
func (s *Scope) ObserveTransactions(begin, end func()) func() {
	o := &observer{begin: begin, end: end}
	s.observers = append(s.observers, o)
	return func() {
		if o.removed {
			return
		}
		o.removed = true
		for i, existing := range s.observers {
			if existing == o {
				s.observers = append(s.observers[:i:i], s.observers[i+1:]...)
				return
			}
		}
	}
}

func (s *Scope) notify(pick func(*observer) func()) {
	observers := append([]*observer(nil), s.observers...)
	for _, o := range observers {
		if o.removed {
			continue
		}
		if hook := pick(o); hook != nil {
			hook()
		}
	}
}

func (s *Scope) digest() error {
	for pass := 0; ; pass++ {
		if pass >= s.ttl {
			return fmt.Errorf("%w: %d passes", ErrDigestOverflow, s.ttl)
		}
		dirty := false
		watchers := append([]*watcher(nil), s.watchers...)
		for _, w := range watchers {
			if w.removed {
				continue
			}
			value := s.read(w)
			changed, previous := w.tracker.Check(value)
			if !changed {
				continue
			}
			dirty = true
			if w.listen != nil {
				w.listen(value, previous)
			}
		}
		if !dirty {
			return nil
		}
	}
}

func (s *Scope) read(w *watcher) any {
	if w.get == nil {
		return nil
	}
	return w.get()
}
