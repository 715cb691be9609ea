// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"

	"github.com/tabledb/tabledb/engine"
)

// NewTransaction wraps the passed pebble batch to satisfy the
// engine.Transaction interface.
func NewTransaction(batch *pebble.Batch) engine.Transaction {
	return &Transaction{Batch: batch}
}

// Transaction wraps a pebble batch and implements the engine.Transaction
// interface.
type Transaction struct {
	*pebble.Batch
	released bool
}

// Put stages the key/value pair to be written at commit.
func (t *Transaction) Put(key, value []byte) error {
	if t.released {
		return ErrTxClosed
	}
	return t.Batch.Set(key, value, pebble.NoSync)
}

// Delete stages the key to be removed at commit.
func (t *Transaction) Delete(key []byte) error {
	if t.released {
		return ErrTxClosed
	}
	return t.Batch.Delete(key, pebble.NoSync)
}

// Discard drops all staged writes and releases the batch.
func (t *Transaction) Discard() {
	if !t.released {
		t.released = true
		t.Batch.Close()
	}
}

// Commit atomically applies all staged writes.
func (t *Transaction) Commit() error {
	if t.released {
		return ErrTxClosed
	}
	return t.Batch.Commit(pebble.Sync)
}
