//go:build property
// +build property

package optsync_test

import (
	"testing"

	optsync "github.com/goliatone/go-optsync"
	"github.com/goliatone/go-optsync/scope"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEngineProperties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("last model write in a transaction wins", prop.ForAll(
		func(values []int) bool {
			sc := scope.New(map[string]any{"count": -1})
			host := &recordingHost{}
			e, err := optsync.New(sc, optsync.WithHost(host))
			if err != nil {
				return false
			}
			defer e.Dispose()
			if err := e.Configure(map[string]string{"count": "count"}); err != nil {
				return false
			}
			host.reset()

			err = sc.Apply(func() error {
				for _, v := range values {
					if err := sc.Set("count", v); err != nil {
						return err
					}
				}
				return nil
			})
			if err != nil {
				return false
			}
			got, _ := e.Read("count")
			want := values[len(values)-1]
			return got == want && host.renders == 1 && len(host.changesFor("count")) == 1
		},
		gen.SliceOfN(8, gen.IntRange(0, 5)),
	))

	properties.Property("component writes reach the model", prop.ForAll(
		func(values []string) bool {
			sc := scope.New(map[string]any{"vm": map[string]any{"text": ""}})
			e, err := optsync.New(sc)
			if err != nil {
				return false
			}
			defer e.Dispose()
			if err := e.Configure(map[string]string{"text": "vm.text"}); err != nil {
				return false
			}
			for _, v := range values {
				if err := e.Write("text", v); err != nil {
					return false
				}
				if sc.Get("vm.text") != v {
					return false
				}
			}
			return sc.Digests() == len(nonRepeating(values, ""))
		},
		gen.SliceOf(gen.AlphaString()),
	))

	properties.TestingRun(t)
}

// nonRepeating drops values equal to their predecessor, starting from first.
func nonRepeating(values []string, first string) []string {
	var out []string
	prev := first
	for _, v := range values {
		if v != prev {
			out = append(out, v)
		}
		prev = v
	}
	return out
}
