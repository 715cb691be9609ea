// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package engine defines the narrow contract between the database layer and
// the underlying embedded key-value storage engines.  It is the only surface
// the database layer uses to talk to an engine: begin a staged write
// transaction, take a point-in-time snapshot, iterate, and close.
package engine

import "errors"

var (
	// ErrIterReleased is returned when an iterator is used after it has
	// been released.
	ErrIterReleased = errors.New("engine: iterator released")

	// ErrSnapshotReleased is returned when a snapshot is read after it has
	// been released.  The database layer relies on this sentinel to
	// distinguish an expired savepoint from a corrupt one, so backends
	// must wrap it in the errors they return for this condition.
	ErrSnapshotReleased = errors.New("engine: snapshot released")
)

// Engine represents an embedded key-value storage engine.  Write operations
// are staged in a Transaction and only become durable at Commit.  Reads are
// always served from a Snapshot so they observe a consistent point-in-time
// view of committed state.
type Engine interface {
	// Transaction begins a staged write transaction.  The engine may
	// serialize write transactions internally; callers must not rely on
	// more than one being active at a time.
	Transaction() (Transaction, error)

	// Snapshot returns a consistent read-only view of the current
	// committed state.  Snapshots remain readable until released, though
	// an engine may expire them early; reads against an expired snapshot
	// fail with an error wrapping ErrSnapshotReleased.
	Snapshot() (Snapshot, error)

	// Close cleanly shuts down the engine and syncs all data.
	Close() error
}

// Transaction represents a staged set of writes which are applied atomically
// at Commit.  A transaction that is not committed must be discarded.
type Transaction interface {
	Put(key, value []byte) error
	Delete(key []byte) error
	Commit() error
	Discard()
}

// Snapshot represents a consistent read-only view of engine state.  Get
// returns nil with no error when the key does not exist.
type Snapshot interface {
	Get(key []byte) ([]byte, error)
	Has(key []byte) (bool, error)
	NewIterator(slice *Range) Iterator
	Releaser
}

// Releaser is the interface that wraps the basic Release method, which
// releases the underlying resources of a snapshot or iterator.
type Releaser interface {
	Release()
}

// Iterator iterates over a snapshot's key/value pairs in key order.
type Iterator interface {
	// First moves the iterator to the first key/value pair.  It returns
	// whether such a pair exists.
	First() bool

	// Last moves the iterator to the last key/value pair.  It returns
	// whether such a pair exists.
	Last() bool

	// Seek moves the iterator to the first key/value pair whose key is
	// greater than or equal to the given key.  It returns whether such a
	// pair exists.
	//
	// It is safe to modify the contents of the argument after Seek
	// returns.
	Seek(key []byte) bool

	// Next moves the iterator to the next key/value pair.  It returns
	// false if the iterator is exhausted.
	Next() bool

	// Prev moves the iterator to the previous key/value pair.  It returns
	// false if the iterator is exhausted.
	Prev() bool

	// Valid returns whether the iterator is positioned at a key/value
	// pair.
	Valid() bool

	// Error returns any accumulated error.  Exhausting all the key/value
	// pairs is not considered to be an error.
	Error() error

	// Key returns the key of the current key/value pair, or nil if done.
	// The caller should not modify the contents of the returned slice,
	// and its contents may change on the next call to any 'seeks method'.
	Key() []byte

	// Value returns the value of the current key/value pair, or nil if
	// done.  The caller should not modify the contents of the returned
	// slice, and its contents may change on the next call to any 'seeks
	// method'.
	Value() []byte

	Releaser
}

// Range is a key range.
type Range struct {
	// Start of the key range, include in the range.
	Start []byte

	// Limit of the key range, not include in the range.
	Limit []byte
}

// BytesPrefix returns a key range that satisfies the given prefix.
func BytesPrefix(prefix []byte) *Range {
	var limit []byte
	for i := len(prefix) - 1; i >= 0; i-- {
		c := prefix[i]
		if c < 0xff {
			limit = make([]byte, i+1)
			copy(limit, prefix)
			limit[i] = c + 1
			break
		}
	}
	return &Range{Start: prefix, Limit: limit}
}
