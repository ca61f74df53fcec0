package watch

import (
	"reflect"

	"github.com/goliatone/go-optsync/layering"
)

// Tracker remembers the last observed value of a watch and decides whether a
// new observation counts as a change under its Mode.
type Tracker struct {
	mode        Mode
	last        any
	slots       []any
	keys        map[string]any
	initialized bool
}

// NewTracker builds a tracker primed with initial so the first Check does not
// report a change for a value that was already there.
func NewTracker(mode Mode, initial any) *Tracker {
	t := &Tracker{mode: Effective(mode, initial)}
	t.remember(initial)
	return t
}

// Mode returns the effective comparison mode.
func (t *Tracker) Mode() Mode { return t.mode }

// Check compares value with the last observation. On change it records value
// and returns the previous observation.
func (t *Tracker) Check(value any) (changed bool, previous any) {
	previous = t.last
	switch t.mode {
	case ModeDeep:
		changed = !layering.Equal(t.last, value)
	case ModeCollection:
		changed = t.collectionChanged(value)
	default:
		changed = !layering.Identical(t.last, value)
	}
	if changed || !t.initialized {
		t.remember(value)
	}
	return changed, previous
}

func (t *Tracker) remember(value any) {
	t.initialized = true
	switch t.mode {
	case ModeDeep:
		t.last = layering.Clone(value)
	case ModeCollection:
		t.last = value
		t.slots, t.keys = collectionSlots(value)
	default:
		t.last = value
	}
}

func (t *Tracker) collectionChanged(value any) bool {
	slots, keys := collectionSlots(value)
	if slots == nil && keys == nil {
		return !layering.Identical(t.last, value)
	}
	if keys != nil {
		if t.keys == nil || len(keys) != len(t.keys) {
			return true
		}
		for k, v := range keys {
			prev, ok := t.keys[k]
			if !ok || !layering.Identical(prev, v) {
				return true
			}
		}
		return false
	}
	if t.slots == nil || len(slots) != len(t.slots) {
		return true
	}
	for i := range slots {
		if !layering.Identical(slots[i], t.slots[i]) {
			return true
		}
	}
	return false
}

// collectionSlots copies the top level of a slice or string-keyed map.
// Other values report nil for both.
func collectionSlots(value any) ([]any, map[string]any) {
	switch typed := value.(type) {
	case []any:
		return append(make([]any, 0, len(typed)), typed...), nil
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = v
		}
		return nil, out
	case nil:
		return nil, nil
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, nil
		}
		out := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[iter.Key().String()] = iter.Value().Interface()
		}
		return nil, out
	}
	return nil, nil
}

// Effective resolves ModeAuto against the current value: slices are
// watched as collections, everything else deeply. Explicit modes are
// returned unchanged.
func Effective(mode Mode, value any) Mode {
	if mode != ModeAuto {
		return mode
	}
	if layering.IsCollection(value) {
		return ModeCollection
	}
	return ModeDeep
}
