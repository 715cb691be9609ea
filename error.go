// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tabledb

import "fmt"

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific database Error.
const (
	// **************************************
	// Errors related to driver registration.
	// **************************************

	// ErrDbTypeRegistered indicates two different database drivers
	// attempt to register with the name database type.
	ErrDbTypeRegistered ErrorCode = iota

	// *************************************
	// Errors related to database functions.
	// *************************************

	// ErrDbUnknownType indicates there is no driver registered for
	// the specified database type.
	ErrDbUnknownType

	// ErrDbDoesNotExist indicates open is called for a database that
	// does not exist.
	ErrDbDoesNotExist

	// ErrDbExists indicates create is called for a database that
	// already exists.
	ErrDbExists

	// ErrDbNotOpen indicates a database instance is accessed before
	// it is opened or after it is closed.
	ErrDbNotOpen

	// ErrInvalid indicates the specified database is not valid.
	ErrInvalid

	// ErrCorruption indicates a checksum failure occurred which invariably
	// means the database is corrupt.
	ErrCorruption

	// ****************************************
	// Errors related to database transactions.
	// ****************************************

	// ErrTxClosed indicates an attempt to commit or rollback a transaction
	// that has already had one of those operations performed.
	ErrTxClosed

	// ErrTxNotWritable indicates an operation that requires write access to
	// the database was attempted against a read-only transaction.
	ErrTxNotWritable

	// ErrNestedTx indicates an attempt to start a write transaction from a
	// goroutine that already has one in flight.  Allowing the attempt to
	// proceed would self-deadlock on the write lock, so it is rejected
	// instead.
	ErrNestedTx

	// *************************************
	// Errors related to tables and codecs.
	// *************************************

	// ErrTableNameRequired indicates an attempt to access a table with a
	// blank name.
	ErrTableNameRequired

	// ErrKeyRequired indicates an attempt to insert a zero-length key.
	ErrKeyRequired

	// ErrKeyNotFound indicates an operation which requires an existing key
	// was invoked with a key that is not present in the table.
	ErrKeyNotFound

	// ErrCodec indicates a typed key or value could not be converted
	// to or from its byte representation.
	ErrCodec

	// ErrSchemaMismatch indicates a table was opened with a key/value
	// codec pair that differs from the pair it was originally created
	// with.
	ErrSchemaMismatch

	// ***************************
	// Errors related savepoints.
	// ***************************

	// ErrSavepointNotFound indicates the requested savepoint key does not
	// exist, either because it never did or because a restore to an
	// earlier savepoint invalidated it.
	ErrSavepointNotFound

	// ErrSavepointStale indicates the engine is no longer able to serve
	// the snapshot backing the requested savepoint.
	ErrSavepointStale

	// ErrSavepointFailed indicates the engine could not produce a
	// consistent snapshot for a new savepoint.
	ErrSavepointFailed

	// ErrDriverSpecific indicates the Err field is a driver-specific error.
	// This provides a generic mechanism for drivers to expose errors which
	// do not map to the codes above.
	ErrDriverSpecific

	// numErrorCodes is the maximum error code number used in tests.
	numErrorCodes
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDbTypeRegistered:  "ErrDbTypeRegistered",
	ErrDbUnknownType:     "ErrDbUnknownType",
	ErrDbDoesNotExist:    "ErrDbDoesNotExist",
	ErrDbExists:          "ErrDbExists",
	ErrDbNotOpen:         "ErrDbNotOpen",
	ErrInvalid:           "ErrInvalid",
	ErrCorruption:        "ErrCorruption",
	ErrTxClosed:          "ErrTxClosed",
	ErrTxNotWritable:     "ErrTxNotWritable",
	ErrNestedTx:          "ErrNestedTx",
	ErrTableNameRequired: "ErrTableNameRequired",
	ErrKeyRequired:       "ErrKeyRequired",
	ErrKeyNotFound:       "ErrKeyNotFound",
	ErrCodec:             "ErrCodec",
	ErrSchemaMismatch:    "ErrSchemaMismatch",
	ErrSavepointNotFound: "ErrSavepointNotFound",
	ErrSavepointStale:    "ErrSavepointStale",
	ErrSavepointFailed:   "ErrSavepointFailed",
	ErrDriverSpecific:    "ErrDriverSpecific",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// Error provides a single type for errors that can happen during database
// operation.  It is used to indicate several types of failures including
// errors with caller requests such as unknown tables, codec failures, and
// stale savepoints, driver errors, and errors relayed from the underlying
// storage engine.
//
// The caller can use type assertions to determine if an error is an Error and
// access the ErrorCode field to ascertain the specific reason for the failure.
//
// The ErrDriverSpecific error code will also have the Err field set with the
// underlying error.  Depending on the backend, the Err field might be set to
// the underlying error for other error codes as well.
type Error struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e Error) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error if any.  This allows errors.Is and
// errors.As to inspect wrapped engine errors.
func (e Error) Unwrap() error {
	return e.Err
}

// makeError creates an Error given a set of arguments.  The error code must
// be one of the error codes provided by this package.
func makeError(c ErrorCode, desc string, err error) Error {
	return Error{ErrorCode: c, Description: desc, Err: err}
}

// IsErrorCode returns whether or not the provided error is a database Error
// with the provided error code.
func IsErrorCode(err error, c ErrorCode) bool {
	dbErr, ok := err.(Error)
	return ok && dbErr.ErrorCode == c
}
