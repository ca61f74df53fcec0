package optsync

import (
	"github.com/goliatone/go-optsync/pathstore"
	"github.com/goliatone/go-optsync/watch"
)

// batcher brackets the store writes of one runtime transaction into a single
// BeginUpdate/EndUpdate pair. It closes only the brackets it opened, so an
// engine subscribed in the middle of a transaction ignores that
// transaction's end.
type batcher struct {
	store  *pathstore.Store
	cancel func()
	open   int
}

func newBatcher(store *pathstore.Store, runtime watch.Runtime) *batcher {
	b := &batcher{store: store}
	if observer, ok := runtime.(watch.TransactionObserver); ok {
		b.cancel = observer.ObserveTransactions(b.begin, b.end)
	}
	return b
}

func (b *batcher) begin() {
	b.open++
	b.store.BeginUpdate()
}

func (b *batcher) end() {
	if b.open == 0 {
		return
	}
	b.open--
	b.store.EndUpdate()
}

// run brackets fn on its own. Inside an observed transaction the bracket
// nests and the flush waits for the transaction to end.
func (b *batcher) run(fn func()) {
	b.store.BeginUpdate()
	defer b.store.EndUpdate()
	fn()
}

// close unsubscribes and flushes anything left open.
func (b *batcher) close() {
	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	for b.open > 0 {
		b.end()
	}
}
