// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"github.com/syndtr/goleveldb/leveldb"

	"github.com/tabledb/tabledb/engine"
)

// NewTransaction wraps the passed goleveldb transaction to satisfy the
// engine.Transaction interface.
func NewTransaction(tx *leveldb.Transaction) engine.Transaction {
	return &Transaction{Transaction: tx}
}

// Transaction wraps a goleveldb transaction and implements the
// engine.Transaction interface.
type Transaction struct {
	*leveldb.Transaction
}

// Put stages the key/value pair to be written at commit.
func (t *Transaction) Put(key, value []byte) error {
	return t.Transaction.Put(key, value, nil)
}

// Delete stages the key to be removed at commit.
func (t *Transaction) Delete(key []byte) error {
	return t.Transaction.Delete(key, nil)
}

// Discard drops all staged writes and releases the transaction.
func (t *Transaction) Discard() {
	t.Transaction.Discard()
}

// Commit atomically applies all staged writes.
func (t *Transaction) Commit() error {
	return t.Transaction.Commit()
}
