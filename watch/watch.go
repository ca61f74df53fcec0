package watch

import (
	"fmt"
	"strings"
)

// Mode selects how a watched value is compared between checks.
type Mode int

const (
	// ModeAuto compares deeply, except for slices which compare slot by slot.
	// The choice is re-made every time the watched value changes.
	ModeAuto Mode = iota
	// ModeShallow compares containers by identity and scalars by value.
	ModeShallow
	// ModeDeep compares structurally against a deep snapshot.
	ModeDeep
	// ModeCollection compares the slots of a slice or the top-level keys of a
	// map by identity.
	ModeCollection
)

func (m Mode) String() string {
	switch m {
	case ModeShallow:
		return "shallow"
	case ModeDeep:
		return "deep"
	case ModeCollection:
		return "collection"
	default:
		return "auto"
	}
}

// ParseMode converts a textual mode into a Mode.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "auto":
		return ModeAuto, nil
	case "shallow":
		return ModeShallow, nil
	case "deep":
		return ModeDeep, nil
	case "collection":
		return ModeCollection, nil
	default:
		return ModeAuto, fmt.Errorf("watch: unknown mode %q", raw)
	}
}

// Listener is called with the new value and the value observed before it.
type Listener func(value, previous any)

// Watcher is what a Runtime dirty-checks. Mode is never ModeAuto by the time
// it reaches the runtime.
type Watcher struct {
	Get    func() any
	Mode   Mode
	Listen Listener
}

// Handle identifies a watch registered with a Runtime or a Registry.
type Handle string

// Runtime is the external reactive runtime that owns the data model and runs
// notification cycles.
type Runtime interface {
	// Watch starts dirty-checking w and returns a handle for Unwatch.
	Watch(w Watcher) Handle
	// Unwatch stops a watch. Unknown handles are ignored.
	Unwatch(h Handle)
	// RunInTransaction runs fn inside one notification cycle. Calls made
	// while a cycle is already running execute fn inline.
	RunInTransaction(fn func() error) error
}

// TransactionObserver is implemented by runtimes that announce the begin and
// end of each outermost notification cycle.
type TransactionObserver interface {
	ObserveTransactions(begin, end func()) (cancel func())
}

// ModelProvider is implemented by runtimes that own the data model the
// bindings read and write.
type ModelProvider interface {
	Model() any
}
