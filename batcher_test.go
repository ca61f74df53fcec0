package optsync

import (
	"testing"

	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/scope"
)

func TestBatcherBracketsRuntimeTransactions(t *testing.T) {
	renders := 0
	store := pathstore.New(nil, pathstore.WithRenderHandler(func() { renders++ }))
	sc := scope.New(nil)
	b := newBatcher(store, sc)
	defer b.close()

	err := sc.Apply(func() error {
		if store.Updating() != 1 {
			t.Fatalf("expected bracket opened by the transaction, got %d", store.Updating())
		}
		_ = store.Set("a", 1)
		_ = store.Set("b", 2)
		return nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if renders != 1 || store.Updating() != 0 {
		t.Fatalf("expected one render and closed bracket, got %d renders depth %d", renders, store.Updating())
	}
}

func TestBatcherIgnoresEndsItDidNotOpen(t *testing.T) {
	store := pathstore.New(nil)
	sc := scope.New(nil)
	var b *batcher

	err := sc.Apply(func() error {
		b = newBatcher(store, sc)
		store.BeginUpdate()
		return nil
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if store.Updating() != 1 {
		t.Fatalf("expected foreign bracket untouched, got depth %d", store.Updating())
	}
	store.EndUpdate()
	b.close()
}

func TestBatcherRunFlushesOutsideTransactions(t *testing.T) {
	var changes []Change
	store := pathstore.New(nil, pathstore.WithChangeHandler(func(c Change) { changes = append(changes, c) }))
	b := newBatcher(store, scope.New(nil))

	b.run(func() {
		_ = store.Set("a", 1)
		_ = store.Set("a", 2)
	})
	if len(changes) != 1 || changes[0].Value != 2 {
		t.Fatalf("expected one coalesced change, got %+v", changes)
	}
}

func TestBatcherCloseUnsubscribes(t *testing.T) {
	store := pathstore.New(nil)
	sc := scope.New(nil)
	b := newBatcher(store, sc)
	b.close()
	b.close()

	_ = sc.Apply(func() error {
		if store.Updating() != 0 {
			t.Fatalf("expected closed batcher to ignore transactions")
		}
		return nil
	})
}
