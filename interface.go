// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tabledb

import "time"

// Cursor represents a cursor over the key/value pairs of a table.  Keys and
// values are the raw encoded bytes as stored by the engine.
//
// Note that open cursors are not tracked and are only valid until the
// transaction they were created from is closed.  Attempting to use a cursor
// after its transaction is closed results in the same return values as an
// exhausted cursor.
type Cursor interface {
	// First positions the cursor at the first key/value pair and returns
	// whether or not the pair exists.
	First() bool

	// Last positions the cursor at the last key/value pair and returns
	// whether or not the pair exists.
	Last() bool

	// Next moves the cursor one key/value pair forward and returns whether
	// or not the pair exists.
	Next() bool

	// Prev moves the cursor one key/value pair backward and returns
	// whether or not the pair exists.
	Prev() bool

	// Seek positions the cursor at the first key/value pair that is
	// greater than or equal to the passed seek key.  Returns false if no
	// suitable key was found.
	Seek(seek []byte) bool

	// Key returns the current key the cursor is pointing to, or nil when
	// the cursor is exhausted.  The returned slice is a copy and remains
	// valid after the cursor is moved.
	Key() []byte

	// Value returns the current value the cursor is pointing to, or nil
	// when the cursor is exhausted.  The returned slice is a copy and
	// remains valid after the cursor is moved.
	Value() []byte
}

// Schema describes the codec pair a table was declared with.  It is persisted
// when a table is first created and compared on every subsequent open so a
// table can never silently be reused with an incompatible codec pair.
type Schema struct {
	// KeyCodec is the name of the codec used for keys.
	KeyCodec string

	// ValueCodec is the name of the codec used for values.
	ValueCodec string
}

// Table represents raw access to the key/value pairs of a single named table
// within a transaction.  Keys and values are byte slices produced by the
// codecs of the typed layer.
type Table interface {
	// Get returns the value for the given key.  Returns nil with no error
	// if the key does not exist in the table; an error is only returned
	// when the engine fails to serve the read.
	//
	// NOTE: The value returned by this function is only valid during a
	// transaction.  It must not be modified by the caller.
	Get(key []byte) ([]byte, error)

	// Has returns whether or not the given key exists in the table.
	Has(key []byte) (bool, error)

	// Put saves the specified key/value pair to the table.  Keys that do
	// not already exist are added and keys that already exist are
	// overwritten.
	//
	// Returns ErrKeyRequired if the key is empty, ErrTxNotWritable if
	// attempted against a read-only transaction, and ErrTxClosed if the
	// transaction has already been closed.
	Put(key, value []byte) error

	// Delete removes the specified key from the table.  Deleting a key
	// that does not exist does not return an error.
	//
	// Returns ErrTxNotWritable if attempted against a read-only
	// transaction and ErrTxClosed if the transaction has already been
	// closed.
	Delete(key []byte) error

	// Cursor returns a new cursor, allowing for iteration over the
	// table's key/value pairs in forward or backward order.
	//
	// You must seek to a position using the First, Last, or Seek functions
	// before calling the Next, Prev, Key, or Value functions.  Failure to
	// do so will result in the same return values as an exhausted cursor.
	Cursor() Cursor

	// ForEach invokes the passed function with every key/value pair in
	// the table.  Returning a non-nil error from the function stops the
	// iteration and propagates the error.
	//
	// NOTE: The slices passed to the function are only valid until the
	// next iteration.  It is not safe to mutate the table while iterating.
	ForEach(fn func(k, v []byte) error) error
}

// Tx represents a database transaction.  It can either be read-only or
// read-write.  The transaction provides access to the tables of the database
// and all reads and writes performed through it occur atomically.
//
// As would be expected with a transaction, no changes will be saved to the
// database until it has been committed.  The transaction will only provide a
// view of the database at the time it was created.  Transactions should not
// be long running operations.
type Tx interface {
	// Table opens the table with the given name and schema.  When the
	// transaction is writable and the table does not exist, it is created.
	// When the transaction is read-only and the table does not exist, an
	// empty read-only table is returned.
	//
	// Returns ErrTableNameRequired if the name is blank, ErrSchemaMismatch
	// if the table exists with a different schema, and ErrTxClosed if the
	// transaction has already been closed.
	Table(name string, schema Schema) (Table, error)

	// DropTable removes the table with the given name along with all of
	// its data.  It returns whether or not the table existed.
	//
	// Returns ErrTxNotWritable if attempted against a read-only
	// transaction and ErrTxClosed if the transaction has already been
	// closed.
	DropTable(name string) (bool, error)

	// Writable returns whether or not the transaction can be used for
	// writing.
	Writable() bool

	// Commit commits all changes that have been made through the
	// transaction to persistent storage, then closes the transaction.
	//
	// Calling this function on a managed transaction will result in a
	// panic.
	Commit() error

	// Rollback undoes all changes that have been made through the
	// transaction, then closes it.
	//
	// Calling this function on a managed transaction will result in a
	// panic.
	Rollback() error
}

// SavepointInfo describes one entry of the savepoint stack.
type SavepointInfo struct {
	// Key is the opaque key the savepoint was issued under.  Keys are
	// strictly increasing in creation order.
	Key uint64

	// CreatedAt is the time the savepoint was taken.
	CreatedAt time.Time
}

// DB provides a generic interface that is used to store typed key/value pairs
// in named tables with per-operation transactions and a savepoint stack.
// This interface is intended to be agnostic to the actual mechanism used for
// backend storage.  The RegisterDriver function can be used to add a new
// backend storage method.
type DB interface {
	// Type returns the database driver type the current database instance
	// was created with.
	Type() string

	// Begin starts a transaction which is either read-only or read-write
	// depending on the specified flag.  Multiple read-only transactions
	// can be started simultaneously while only a single read-write
	// transaction can be started at a time.  The call will block when
	// starting a read-write transaction when one is already open, except
	// when the calling goroutine already owns the in-flight write
	// transaction, in which case it fails with ErrNestedTx.
	//
	// NOTE: The transaction must be closed by calling Rollback or Commit
	// on it when it is no longer needed.  Failure to do so can result in
	// unclaimed memory and a blocked write lock.
	Begin(writable bool) (Tx, error)

	// View invokes the passed function in the context of a managed
	// read-only transaction.  Any errors returned from the user-supplied
	// function are returned from this function.
	//
	// Calling Rollback or Commit on the transaction passed to the
	// user-supplied function will result in a panic.
	View(fn func(tx Tx) error) error

	// Update invokes the passed function in the context of a managed
	// read-write transaction.  Any errors returned from the user-supplied
	// function will cause the transaction to be rolled back and are
	// returned from this function.  Otherwise, the transaction is
	// committed when the user-supplied function returns a nil error.
	//
	// Calling Rollback or Commit on the transaction passed to the
	// user-supplied function will result in a panic.
	Update(fn func(tx Tx) error) error

	// Savepoint captures a snapshot of the current committed database
	// state and pushes it onto the savepoint stack.  The returned key is
	// strictly greater than the key of every savepoint taken before it.
	//
	// Savepoint is a write-class operation: it blocks until no write
	// transaction is in flight so the snapshot always reflects a fully
	// committed state.  Returns ErrSavepointFailed if the engine cannot
	// produce a consistent snapshot.
	Savepoint() (uint64, error)

	// LoadSavepoint restores the database to the state captured by the
	// savepoint with the given key and invalidates every savepoint taken
	// after it.  The restore is atomic: it either completes fully or
	// leaves the database untouched.
	//
	// Returns ErrSavepointNotFound if no savepoint with the given key
	// exists and ErrSavepointStale if the engine can no longer serve the
	// snapshot backing it.
	LoadSavepoint(key uint64) error

	// Savepoints returns information about the currently held savepoints
	// in creation order.
	Savepoints() []SavepointInfo

	// ClearSavepoints releases every savepoint currently held by the
	// database.
	ClearSavepoints()

	// Close cleanly shuts down the database and syncs all data.  It will
	// block until all database transactions have been finalized (rolled
	// back or committed).  All savepoints are released on close.
	Close() error
}
