package scope

import (
	"errors"
	"testing"

	"github.com/goliatone/go-optsync/watch"
)

func TestApplyRunsDigestOnce(t *testing.T) {
	s := New(map[string]any{"value": 1})

	var seen []any
	if _, err := s.WatchPath("value", watch.ModeShallow, func(v, _ any) { seen = append(seen, v) }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	err := s.Apply(func() error {
		_ = s.Set("value", 2)
		_ = s.Set("value", 3)
		return nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(seen) != 1 || seen[0] != 3 {
		t.Fatalf("expected a single callback with 3, got %v", seen)
	}
	if s.Digests() != 1 {
		t.Fatalf("expected one digest, got %d", s.Digests())
	}
}

func TestApplyIsSafeWhenNested(t *testing.T) {
	s := New(nil)
	begins, ends := 0, 0
	s.ObserveTransactions(func() { begins++ }, func() { ends++ })

	err := s.Apply(func() error {
		if !s.InTransaction() {
			t.Fatalf("expected transaction to be active")
		}
		return s.Apply(func() error { return s.Set("x", 1) })
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if begins != 1 || ends != 1 {
		t.Fatalf("expected one begin/end pair, got %d/%d", begins, ends)
	}
	if s.InTransaction() {
		t.Fatalf("expected transaction to be closed")
	}
}

func TestApplyReturnsErrorAfterClosing(t *testing.T) {
	s := New(nil)
	ends := 0
	s.ObserveTransactions(nil, func() { ends++ })

	boom := errors.New("boom")
	if err := s.Apply(func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if ends != 1 || s.InTransaction() {
		t.Fatalf("expected closed transaction, ends=%d", ends)
	}
}

func TestApplyClosesOnPanic(t *testing.T) {
	s := New(nil)
	ends := 0
	s.ObserveTransactions(nil, func() { ends++ })

	func() {
		defer func() {
			if r := recover(); r == nil {
				t.Fatalf("expected panic to propagate")
			}
		}()
		_ = s.Apply(func() error { panic("boom") })
	}()

	if ends != 1 || s.InTransaction() {
		t.Fatalf("expected transaction closed after panic, ends=%d", ends)
	}
}

func TestDigestOverflow(t *testing.T) {
	s := New(map[string]any{"n": 0}, WithTTL(5))
	if _, err := s.WatchPath("n", watch.ModeShallow, func(v, _ any) {
		_ = s.Set("n", v.(int)+1)
	}); err != nil {
		t.Fatalf("watch: %v", err)
	}
	_ = s.Set("n", 1)
	if err := s.Digest(); !errors.Is(err, ErrDigestOverflow) {
		t.Fatalf("expected ErrDigestOverflow, got %v", err)
	}
}

func TestUnwatchDuringDigest(t *testing.T) {
	s := New(map[string]any{"a": 0, "b": 0})
	var second watch.Handle
	calls := 0
	if _, err := s.WatchPath("a", watch.ModeShallow, func(any, any) { s.Unwatch(second) }); err != nil {
		t.Fatalf("watch: %v", err)
	}
	second, _ = s.WatchPath("b", watch.ModeShallow, func(any, any) { calls++ })

	_ = s.Apply(func() error {
		_ = s.Set("a", 1)
		return s.Set("b", 1)
	})
	if calls != 0 {
		t.Fatalf("expected removed watcher not to fire, got %d calls", calls)
	}
	if s.WatcherCount() != 1 {
		t.Fatalf("expected one watcher left, got %d", s.WatcherCount())
	}
}

func TestObserverCancel(t *testing.T) {
	s := New(nil)
	begins := 0
	cancel := s.ObserveTransactions(func() { begins++ }, nil)
	_ = s.Digest()
	cancel()
	cancel()
	_ = s.Digest()
	if begins != 1 {
		t.Fatalf("expected observer to stop after cancel, got %d", begins)
	}
}
