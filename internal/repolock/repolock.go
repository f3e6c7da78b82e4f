// Package repolock serializes mutating operations per repository.
//
// Engine methods run on arbitrary goroutines, so nothing else guarantees a
// repository's working tree and index are touched by at most one logical
// operation at a time. The Table hands out one exclusive lock per
// repository identifier: operations on different repositories proceed
// concurrently, operations on the same repository queue. Entries are
// created lazily and never removed; the table grows with the number of
// distinct repositories touched in-process, which is acceptably small.
package repolock

import (
	"context"
	"sync"
)

// Table maps repository identifiers to exclusive locks.
type Table struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewTable creates an empty lock table.
func NewTable() *Table {
	return &Table{locks: make(map[string]chan struct{})}
}

// Lock acquires the exclusive lock for id, waiting until the current
// holder releases it or the context is cancelled. On a nil return the
// caller holds the lock and must release it with Unlock on every exit
// path.
func (t *Table) Lock(ctx context.Context, id string) error {
	slot := t.slot(id)
	select {
	case slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Unlock releases the lock for id. Releasing an id that is not held is a
// programming error and panics, matching sync.Mutex semantics.
func (t *Table) Unlock(id string) {
	slot := t.slot(id)
	select {
	case <-slot:
	default:
		panic("repolock: unlock of unlocked repository " + id)
	}
}

// slot returns the lock channel for id, creating it on first use. A
// buffered channel of capacity one gives exclusive hold semantics with
// context-aware acquisition; blocked acquirers wake in a fair order, so no
// waiter starves.
func (t *Table) slot(id string) chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()

	slot, ok := t.locks[id]
	if !ok {
		slot = make(chan struct{}, 1)
		t.locks[id] = slot
	}
	return slot
}
