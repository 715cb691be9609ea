// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/engine"
	"github.com/tabledb/tabledb/internal/btreekv"
)

// transaction represents a database transaction.  It can either be read-only
// or read-write and implements the tabledb.Tx interface.  The transaction
// provides a snapshot view of the database at the time it was started and all
// writes are staged in memory until commit, at which point they are applied
// to the engine atomically.
type transaction struct {
	managed  bool // Is the transaction managed by View/Update?
	closed   bool // Is the transaction closed?
	writable bool // Is the transaction writable?
	db       *db
	snapshot engine.Snapshot

	// Keys that need to be stored or deleted on commit.  The trees are
	// created for every transaction so the cursor code can merge the
	// staged state with the snapshot without special casing read-only
	// transactions.
	pendingKeys   *btreekv.Tree
	pendingRemove *btreekv.Tree
}

// Enforce transaction implements the tabledb.Tx interface.
var _ tabledb.Tx = (*transaction)(nil)

// newTransaction returns a transaction reading from the passed snapshot.
func newTransaction(db *db, writable bool, snapshot engine.Snapshot) *transaction {
	return &transaction{
		writable:      writable,
		db:            db,
		snapshot:      snapshot,
		pendingKeys:   btreekv.New(),
		pendingRemove: btreekv.New(),
	}
}

// checkClosed returns an error if the database or transaction is closed and
// nil otherwise.
//
// This function MUST be called with the embedded db lock semantics in mind:
// the transaction holds a read lock on the database close lock for its entire
// lifetime, so only the transaction's own closed flag needs checking.
func (tx *transaction) checkClosed() error {
	if tx.closed {
		return makeDbErr(tabledb.ErrTxClosed, errTxClosedStr, nil)
	}
	return nil
}

// hasKey returns whether or not the provided key exists in the database while
// taking into account the current transaction state.
func (tx *transaction) hasKey(key []byte) (bool, error) {
	// When the transaction is writable, check the pending transaction
	// state first.
	if tx.writable {
		if tx.pendingRemove.Has(key) {
			return false, nil
		}
		if tx.pendingKeys.Has(key) {
			return true, nil
		}
	}

	// Consult the database snapshot.
	has, err := tx.snapshot.Has(key)
	if err != nil {
		return false, convertErr("failed to read key", err)
	}
	return has, nil
}

// fetchKey returns the current value for the provided key while taking into
// account the current transaction state.  Returns nil with no error if the
// key does not exist.
func (tx *transaction) fetchKey(key []byte) ([]byte, error) {
	// When the transaction is writable, check the pending transaction
	// state first.
	if tx.writable {
		if tx.pendingRemove.Has(key) {
			return nil, nil
		}
		if value := tx.pendingKeys.Get(key); value != nil {
			return value, nil
		}
	}

	// Consult the database snapshot.
	value, err := tx.snapshot.Get(key)
	if err != nil {
		return nil, convertErr("failed to read key", err)
	}
	return value, nil
}

// putKey adds the provided key to the list of keys to be updated in the
// database when the transaction is committed.
//
// NOTE: This function must only be called on a writable transaction.  Since
// it is an internal helper function, it does not check.
func (tx *transaction) putKey(key, value []byte) error {
	// Prevent the key from being deleted if it was previously scheduled
	// to be deleted on transaction commit.
	tx.pendingRemove.Delete(key)

	// Add the key/value pair to the list to be written on commit.
	tx.pendingKeys.Put(key, value)
	return nil
}

// deleteKey adds the provided key to the list of keys to be deleted from the
// database when the transaction is committed.
//
// NOTE: This function must only be called on a writable transaction.  Since
// it is an internal helper function, it does not check.
func (tx *transaction) deleteKey(key []byte) {
	// Remove the key from the list of pending keys to be written on
	// transaction commit if needed.
	tx.pendingKeys.Delete(key)

	// Add the key to the list to be deleted on commit.
	tx.pendingRemove.Put(key, nil)
}

// Writable returns whether or not the transaction can be used for writing.
//
// This function is part of the tabledb.Tx interface implementation.
func (tx *transaction) Writable() bool {
	return tx.writable
}

// close marks the transaction closed then releases all resources associated
// with it, including the database snapshot, the staged write trees, and the
// relevant database locks.
func (tx *transaction) close() {
	tx.closed = true

	// Clear staged state.
	tx.pendingKeys = nil
	tx.pendingRemove = nil

	// Release the snapshot.
	if tx.snapshot != nil {
		tx.snapshot.Release()
		tx.snapshot = nil
	}

	tx.db.closeLock.RUnlock()

	// Release the writer lock for writable transactions to unblock any
	// other write transaction which is possibly waiting.
	if tx.writable {
		tx.db.clearWriter()
		tx.db.writeLock.Unlock()
	}
}

// writePendingAndCommit applies all staged writes to the engine within a
// single engine transaction so the commit is atomic.
//
// This function MUST only be called when there is pending data to be written.
func (tx *transaction) writePendingAndCommit() error {
	etx, err := tx.db.engine.Transaction()
	if err != nil {
		return convertErr("failed to begin engine transaction", err)
	}

	var stageErr error
	tx.pendingRemove.ForEach(func(k, v []byte) bool {
		stageErr = etx.Delete(k)
		return stageErr == nil
	})
	if stageErr == nil {
		tx.pendingKeys.ForEach(func(k, v []byte) bool {
			stageErr = etx.Put(k, v)
			return stageErr == nil
		})
	}
	if stageErr != nil {
		etx.Discard()
		return convertErr("failed to stage pending writes", stageErr)
	}

	if err := etx.Commit(); err != nil {
		etx.Discard()
		return convertErr("failed to commit engine transaction", err)
	}
	return nil
}

// Commit commits all changes that have been made through the transaction to
// persistent storage, then closes the transaction.
//
// This function is part of the tabledb.Tx interface implementation.
func (tx *transaction) Commit() error {
	// Prevent commits on managed transactions.
	if tx.managed {
		tx.close()
		panic("managed transaction commit not allowed")
	}

	// Ensure transaction state is valid.
	if err := tx.checkClosed(); err != nil {
		return err
	}

	// Regardless of whether the commit succeeds, the transaction is closed
	// on return.
	defer tx.close()

	// Ensure the transaction is writable.
	if !tx.writable {
		str := "Commit requires a writable database transaction"
		return makeDbErr(tabledb.ErrTxNotWritable, str, nil)
	}

	// Nothing to do when there are no staged writes.
	if tx.pendingKeys.Len() == 0 && tx.pendingRemove.Len() == 0 {
		return nil
	}

	// Write pending data.  The function will rollback if any errors occur.
	return tx.writePendingAndCommit()
}

// Rollback undoes all changes that have been made through the transaction,
// then closes it.
//
// This function is part of the tabledb.Tx interface implementation.
func (tx *transaction) Rollback() error {
	// Prevent rollbacks on managed transactions.
	if tx.managed {
		tx.close()
		panic("managed transaction rollback not allowed")
	}

	// Ensure transaction state is valid.
	if err := tx.checkClosed(); err != nil {
		return err
	}

	tx.close()
	return nil
}
