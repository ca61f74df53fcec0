package pathstore

import (
	"fmt"
	"reflect"
	"sort"
)

// Leaf describes a single addressable value in the option tree.
type Leaf struct {
	Path string `json:"path"`
	Type string `json:"type"`
}

// Leaves walks the option tree and describes every leaf, sorted by path.
// Maps and []any are descended, empty containers and everything else are
// reported as leaves. Shared containers are visited once.
func (s *Store) Leaves() []Leaf {
	var out []Leaf
	collectLeaves(nil, s.root, map[uintptr]bool{}, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func collectLeaves(prefix Path, value any, seen map[uintptr]bool, out *[]Leaf) {
	value = unwrap(value)
	switch typed := value.(type) {
	case map[string]any:
		if len(typed) == 0 || visited(typed, seen) {
			appendLeaf(prefix, typed, out)
			return
		}
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			collectLeaves(prefix.Join(Key(key)), typed[key], seen, out)
		}
	case []any:
		if len(typed) == 0 || visited(typed, seen) {
			appendLeaf(prefix, typed, out)
			return
		}
		for i, item := range typed {
			collectLeaves(prefix.Join(Index(i)), item, seen, out)
		}
	default:
		appendLeaf(prefix, typed, out)
	}
}

func visited(container any, seen map[uintptr]bool) bool {
	ptr := reflect.ValueOf(container).Pointer()
	if seen[ptr] {
		return true
	}
	seen[ptr] = true
	return false
}

func appendLeaf(prefix Path, value any, out *[]Leaf) {
	if len(prefix) == 0 {
		return
	}
	*out = append(*out, Leaf{Path: prefix.String(), Type: typeName(value)})
}

func typeName(value any) string {
	if value == nil {
		return "nil"
	}
	return fmt.Sprintf("%T", value)
}
