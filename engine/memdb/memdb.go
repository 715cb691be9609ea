// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package memdb implements the engine contract with memory as the backing
store.

This is primarily used for testing purposes as normal operations require a
persistent storage mechanism which this is not.  Snapshots are implemented
with copy-on-write clones of the underlying btree, so they are cheap to take
and remain stable while the database continues to change.
*/
package memdb

import (
	"errors"
	"sync"

	"github.com/tabledb/tabledb/engine"
	"github.com/tabledb/tabledb/internal/btreekv"
)

var (
	ErrDbClosed = errors.New("memdb: closed")
	ErrTxClosed = errors.New("memdb: transaction already closed")
)

// NewDB returns a new empty memory-backed engine.
func NewDB() engine.Engine {
	return &DB{tree: btreekv.New()}
}

// DB is a memory-backed engine implementation.  All access to the backing
// tree is serialized by the mutex; snapshots operate on clones and need no
// further synchronization.
type DB struct {
	mtx    sync.Mutex
	closed bool
	tree   *btreekv.Tree
}

// Enforce DB implements the engine.Engine interface.
var _ engine.Engine = (*DB)(nil)

// Transaction begins a staged write transaction.
func (d *DB) Transaction() (engine.Transaction, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.closed {
		return nil, ErrDbClosed
	}
	return &Transaction{db: d}, nil
}

// Snapshot returns a consistent read-only view of the current state.
func (d *DB) Snapshot() (engine.Snapshot, error) {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.closed {
		return nil, ErrDbClosed
	}
	return &Snapshot{tree: d.tree.Clone()}, nil
}

// Close shuts the engine down and releases the backing tree.
func (d *DB) Close() error {
	d.mtx.Lock()
	defer d.mtx.Unlock()
	if d.closed {
		return ErrDbClosed
	}
	d.closed = true
	d.tree = nil
	return nil
}

// stagedOp is a single staged write.  The del flag marks a deletion.
type stagedOp struct {
	key   []byte
	value []byte
	del   bool
}

// Transaction is a staged set of writes which are applied to the backing
// tree atomically at Commit.
type Transaction struct {
	db     *DB
	ops    []stagedOp
	closed bool
}

// Enforce Transaction implements the engine.Transaction interface.
var _ engine.Transaction = (*Transaction)(nil)

// Put stages the key/value pair to be written at commit.
func (t *Transaction) Put(key, value []byte) error {
	if t.closed {
		return ErrTxClosed
	}
	t.ops = append(t.ops, stagedOp{key: copySlice(key), value: copySlice(value)})
	return nil
}

// Delete stages the key to be removed at commit.
func (t *Transaction) Delete(key []byte) error {
	if t.closed {
		return ErrTxClosed
	}
	t.ops = append(t.ops, stagedOp{key: copySlice(key), del: true})
	return nil
}

// Commit atomically applies all staged writes in order.
func (t *Transaction) Commit() error {
	if t.closed {
		return ErrTxClosed
	}
	t.closed = true

	t.db.mtx.Lock()
	defer t.db.mtx.Unlock()
	if t.db.closed {
		return ErrDbClosed
	}
	for _, op := range t.ops {
		if op.del {
			t.db.tree.Delete(op.key)
			continue
		}
		t.db.tree.Put(op.key, op.value)
	}
	t.ops = nil
	return nil
}

// Discard drops all staged writes.
func (t *Transaction) Discard() {
	t.closed = true
	t.ops = nil
}

// Snapshot is a copy-on-write clone of the backing tree taken at a point in
// time.
type Snapshot struct {
	tree     *btreekv.Tree
	released bool
}

// Enforce Snapshot implements the engine.Snapshot interface.
var _ engine.Snapshot = (*Snapshot)(nil)

// Get returns the value for the given key.  A missing key returns nil with
// no error.  The returned slice must not be modified by the caller.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrSnapshotReleased
	}
	return s.tree.Get(key), nil
}

// Has returns whether or not the key exists in the snapshot.
func (s *Snapshot) Has(key []byte) (bool, error) {
	if s.released {
		return false, engine.ErrSnapshotReleased
	}
	return s.tree.Has(key), nil
}

// Release releases the snapshot.
func (s *Snapshot) Release() {
	s.released = true
	s.tree = nil
}

// NewIterator returns an iterator over the given key range of the snapshot.
func (s *Snapshot) NewIterator(slice *engine.Range) engine.Iterator {
	if s.released {
		return nil
	}
	return s.tree.Iterator(slice.Start, slice.Limit)
}

// copySlice returns a copy of the passed slice.
func copySlice(slice []byte) []byte {
	ret := make([]byte, len(slice))
	copy(ret, slice)
	return ret
}
