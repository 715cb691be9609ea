// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"bytes"
	"runtime"
	"strconv"
	"sync"

	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/engine"
)

// Common error strings.
const (
	// errDbNotOpenStr is the text to use for the tabledb.ErrDbNotOpen
	// error code.
	errDbNotOpenStr = "database is not open"

	// errTxClosedStr is the text to use for the tabledb.ErrTxClosed error
	// code.
	errTxClosedStr = "database tx is closed"
)

// makeDbErr creates a tabledb.Error given a set of arguments.
func makeDbErr(c tabledb.ErrorCode, desc string, err error) tabledb.Error {
	return tabledb.Error{ErrorCode: c, Description: desc, Err: err}
}

// convertErr converts the passed engine error into a database error with an
// equivalent error code and the passed description.  It also sets the passed
// error as the underlying error so callers that need to can inspect whether
// the condition is retryable.
func convertErr(desc string, engErr error) tabledb.Error {
	// Use the driver-specific error code by default.  The code below will
	// update this with the converted error if it is recognized.
	code := tabledb.ErrDriverSpecific

	if engErr == engine.ErrSnapshotReleased {
		code = tabledb.ErrSavepointStale
	}

	return tabledb.Error{ErrorCode: code, Description: desc, Err: engErr}
}

// goroutineID returns the numeric id of the calling goroutine.  It is used
// solely to detect an attempt to begin a write transaction from a goroutine
// which already owns the in-flight one, which would otherwise self-deadlock
// on the write lock.
func goroutineID() uint64 {
	var buf [64]byte
	// The stack header has the form "goroutine 123 [running]:".
	header := buf[:runtime.Stack(buf[:], false)]
	header = bytes.TrimPrefix(header, []byte("goroutine "))
	if i := bytes.IndexByte(header, ' '); i > 0 {
		header = header[:i]
	}
	id, _ := strconv.ParseUint(string(header), 10, 64)
	return id
}

// db represents a collection of typed tables which are persisted to an
// underlying storage engine and implements the tabledb.DB interface.  All
// database access is performed through transactions which are obtained
// through the Begin, View, and Update methods.
type db struct {
	writeLock sync.Mutex   // Limit to one write transaction at a time.
	closeLock sync.RWMutex // Make database close block while txns active.
	closed    bool         // Is the database closed?
	engine    engine.Engine

	// writerMtx guards the identity of the goroutine that owns the
	// current write transaction so reentrant write attempts can fail
	// fast instead of deadlocking.
	writerMtx    sync.Mutex
	writerActive bool
	writerGID    uint64

	// spLock guards the savepoint stack and its key counter.
	spLock     sync.Mutex
	savepoints []*savepoint
	nextSpKey  uint64
}

// Enforce db implements the tabledb.DB interface.
var _ tabledb.DB = (*db)(nil)

// newDB returns a database instance backed by the passed engine.
func newDB(eng engine.Engine) *db {
	return &db{engine: eng}
}

// Type returns the database driver type the current database instance was
// created with.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Type() string {
	return dbType
}

// checkNestedWrite returns an error when the calling goroutine already owns
// the in-flight write transaction.  Blocking on the write lock in that case
// could never make progress.
func (db *db) checkNestedWrite(gid uint64) error {
	db.writerMtx.Lock()
	defer db.writerMtx.Unlock()
	if db.writerActive && db.writerGID == gid {
		str := "a write transaction is already in flight on this " +
			"goroutine"
		return makeDbErr(tabledb.ErrNestedTx, str, nil)
	}
	return nil
}

// setWriter marks the calling goroutine as the owner of the write lock.
func (db *db) setWriter(gid uint64) {
	db.writerMtx.Lock()
	db.writerActive = true
	db.writerGID = gid
	db.writerMtx.Unlock()
}

// clearWriter clears the write lock owner.
func (db *db) clearWriter() {
	db.writerMtx.Lock()
	db.writerActive = false
	db.writerGID = 0
	db.writerMtx.Unlock()
}

// begin is the implementation function for the Begin database method.  See
// its documentation for more details.
//
// This function is only separate because it returns the internal transaction
// which is used by the managed transaction code while the database method
// returns the interface.
func (db *db) begin(writable bool) (*transaction, error) {
	// Whenever a new writable transaction is started, grab the write lock
	// to ensure only a single write transaction can be active at the same
	// time.  This lock will not be released until the transaction is
	// closed (via Rollback or Commit).  Fail fast when the calling
	// goroutine already owns the lock.
	var gid uint64
	if writable {
		gid = goroutineID()
		if err := db.checkNestedWrite(gid); err != nil {
			return nil, err
		}
		db.writeLock.Lock()
	}

	// Whenever a new transaction is started, grab a read lock against the
	// database to ensure Close will wait for the transaction to finish.
	// This lock will not be released until the transaction is closed (via
	// Rollback or Commit).
	db.closeLock.RLock()
	if db.closed {
		db.closeLock.RUnlock()
		if writable {
			db.writeLock.Unlock()
		}
		return nil, makeDbErr(tabledb.ErrDbNotOpen, errDbNotOpenStr,
			nil)
	}

	// Grab a snapshot of the current committed engine state for the
	// transaction to read from.
	snapshot, err := db.engine.Snapshot()
	if err != nil {
		db.closeLock.RUnlock()
		if writable {
			db.writeLock.Unlock()
		}
		return nil, convertErr("failed to open transaction snapshot",
			err)
	}

	if writable {
		db.setWriter(gid)
	}
	return newTransaction(db, writable, snapshot), nil
}

// Begin starts a transaction which is either read-only or read-write
// depending on the specified flag.  Multiple read-only transactions can be
// started simultaneously while only a single read-write transaction can be
// started at a time.  The call will block when starting a read-write
// transaction when one is already open, unless the calling goroutine owns
// it, in which case it fails with ErrNestedTx.
//
// NOTE: The transaction must be closed by calling Rollback or Commit on it
// when it is no longer needed.  Failure to do so will result in unclaimed
// memory and a blocked write lock.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Begin(writable bool) (tabledb.Tx, error) {
	return db.begin(writable)
}

// rollbackOnPanic rolls the passed transaction back if the code in the
// calling function panics.  This is needed since the mutex on a transaction
// must be released and a panic in called code would prevent that from
// happening.
//
// NOTE: This can only be handled manually for managed transactions since they
// control the life-cycle of the transaction.  As the documentation on Begin
// calls out, callers opting to use manual transactions will have to ensure
// the transaction is rolled back on panic if it desires that functionality as
// well or the database will fail to close since the read-lock will never be
// released.
func rollbackOnPanic(tx *transaction) {
	if err := recover(); err != nil {
		tx.managed = false
		_ = tx.Rollback()
		panic(err)
	}
}

// View invokes the passed function in the context of a managed read-only
// transaction.  Any errors returned from the user-supplied function are
// returned from this function.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) View(fn func(tabledb.Tx) error) error {
	// Start a read-only transaction.
	tx, err := db.begin(false)
	if err != nil {
		return err
	}

	// Since the user-provided function might panic, ensure the transaction
	// releases all mutexes and resources.  There is no guarantee the
	// caller won't use recover and keep going.  Thus, the database must
	// still be in a usable state on panics due to caller issues.
	defer rollbackOnPanic(tx)

	tx.managed = true
	err = fn(tx)
	tx.managed = false
	if err != nil {
		// The error is ignored here because nothing was written yet
		// and regardless of a rollback failure, the tx is closed now
		// anyways.
		_ = tx.Rollback()
		return err
	}

	return tx.Rollback()
}

// Update invokes the passed function in the context of a managed read-write
// transaction.  Any errors returned from the user-supplied function will
// cause the transaction to be rolled back and are returned from this
// function.  Otherwise, the transaction is committed when the user-supplied
// function returns a nil error.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Update(fn func(tabledb.Tx) error) error {
	// Start a read-write transaction.
	tx, err := db.begin(true)
	if err != nil {
		return err
	}

	// Since the user-provided function might panic, ensure the transaction
	// releases all mutexes and resources.  There is no guarantee the
	// caller won't use recover and keep going.  Thus, the database must
	// still be in a usable state on panics due to caller issues.
	defer rollbackOnPanic(tx)

	tx.managed = true
	err = fn(tx)
	tx.managed = false
	if err != nil {
		// The error is ignored here because nothing was written yet
		// and regardless of a rollback failure, the tx is closed now
		// anyways.
		_ = tx.Rollback()
		return err
	}

	return tx.Commit()
}

// Close cleanly shuts down the database and syncs all data.  It will block
// until all database transactions have been finalized (rolled back or
// committed).  All savepoints are released on close.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Close() error {
	// Since all transactions have a read lock on this mutex, this will
	// cause Close to wait for all transactions to finish.
	db.closeLock.Lock()
	defer db.closeLock.Unlock()

	if db.closed {
		return makeDbErr(tabledb.ErrDbNotOpen, errDbNotOpenStr, nil)
	}
	db.closed = true

	// Release every savepoint since the snapshots backing them do not
	// survive the engine shutting down.
	db.spLock.Lock()
	for _, sp := range db.savepoints {
		sp.snap.Release()
	}
	db.savepoints = nil
	db.spLock.Unlock()

	// Close the underlying engine which will flush any existing entries
	// to disk.
	return db.engine.Close()
}
