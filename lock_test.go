package optsync

import (
	"errors"
	"testing"

	"github.com/goliatone/go-optsync/pathstore"
)

func TestLockManagerAcquireRelease(t *testing.T) {
	locks := NewLockManager()
	path := pathstore.MustParse("items[1].text")

	if !locks.TryAcquire(path) {
		t.Fatalf("expected first acquire to succeed")
	}
	if locks.TryAcquire(pathstore.MustParse(`items[1]["text"]`)) {
		t.Fatalf("expected equivalent path to be held")
	}
	if !locks.Locked(path) || locks.Held() != 1 || locks.Misses() != 1 {
		t.Fatalf("unexpected state held=%d misses=%d", locks.Held(), locks.Misses())
	}
	locks.Release(path)
	locks.Release(path)
	if locks.Locked(path) || locks.Held() != 0 {
		t.Fatalf("expected release to be idempotent")
	}
}

func TestLockManagerGuardDropsReentrantCalls(t *testing.T) {
	locks := NewLockManager()
	path := pathstore.MustParse("text")

	var inner bool
	ran, err := locks.Guard(path, func() error {
		var innerErr error
		inner, innerErr = locks.Guard(path, func() error {
			t.Fatalf("nested guard must not run")
			return nil
		})
		return innerErr
	})
	if !ran || err != nil {
		t.Fatalf("expected outer guard to run, got ran=%v err=%v", ran, err)
	}
	if inner {
		t.Fatalf("expected nested guard to be dropped")
	}
	if locks.Held() != 0 {
		t.Fatalf("expected lock released")
	}
}

func TestLockManagerGuardReleasesOnErrorAndPanic(t *testing.T) {
	locks := NewLockManager()
	path := pathstore.MustParse("text")
	boom := errors.New("boom")

	if _, err := locks.Guard(path, func() error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected error to propagate, got %v", err)
	}
	if locks.Locked(path) {
		t.Fatalf("expected release after error")
	}

	func() {
		defer func() { _ = recover() }()
		_, _ = locks.Guard(path, func() error { panic("kaboom") })
	}()
	if locks.Locked(path) {
		t.Fatalf("expected release after panic")
	}
}

func TestLockManagerIndependentPaths(t *testing.T) {
	locks := NewLockManager()
	ran, _ := locks.Guard(pathstore.MustParse("a"), func() error {
		ok, _ := locks.Guard(pathstore.MustParse("b"), nil)
		if !ok {
			t.Fatalf("expected other path to be free")
		}
		return nil
	})
	if !ran {
		t.Fatalf("expected guard to run")
	}
}
