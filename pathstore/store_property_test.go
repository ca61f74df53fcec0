//go:build property
// +build property

package pathstore

import (
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestPathProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("canonical form round-trips", prop.ForAll(
		func(keys []string, index int) bool {
			if len(keys) == 0 {
				return true
			}
			raw := strings.Join(keys, ".") + fmt.Sprintf("[%d]", index)
			first, err := Parse(raw)
			if err != nil {
				return false
			}
			second, err := Parse(first.String())
			if err != nil {
				return false
			}
			return first.Equal(second) && first.String() == second.String()
		},
		gen.SliceOfN(4, gen.RegexMatch(`^[a-z_][a-z0-9_]{0,6}$`)),
		gen.IntRange(0, 50),
	))

	properties.Property("quoted keys round-trip", prop.ForAll(
		func(key string) bool {
			p := Path{Key("root"), Key(key)}
			parsed, err := Parse(p.String())
			return err == nil && parsed.Equal(p)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestStoreBatchingProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("one notification per dirtied path with final value", prop.ForAll(
		func(writes []int) bool {
			seen := map[string]int{}
			final := map[string]any{}
			store := New(nil, WithChangeHandler(func(c Change) {
				seen[c.Name()]++
				final[c.Name()] = c.Value
			}))

			store.BeginUpdate()
			expected := map[string]int{}
			for i, w := range writes {
				key := fmt.Sprintf("k%d", w%5)
				_ = store.Set(key, i)
				expected[key] = i
			}
			store.EndUpdate()

			if len(seen) != len(expected) {
				return false
			}
			for key, count := range seen {
				if count != 1 || final[key] != expected[key] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 100)),
	))

	properties.Property("excess EndUpdate never goes negative", prop.ForAll(
		func(begins, ends int) bool {
			store := New(nil)
			for i := 0; i < begins; i++ {
				store.BeginUpdate()
			}
			for i := 0; i < ends; i++ {
				store.EndUpdate()
			}
			want := begins - ends
			if want < 0 {
				want = 0
			}
			return store.Updating() == want
		},
		gen.IntRange(0, 10),
		gen.IntRange(0, 20),
	))

	properties.TestingRun(t)
}
