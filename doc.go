// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package tabledb provides a transactional convenience layer with typed tables
and savepoints over embedded key-value storage engines.

# Overview

Every operation exposed by this package runs inside its own transaction which
is automatically committed when the operation succeeds and rolled back when it
fails, so callers get per-call atomicity without managing transaction
lifecycles themselves.  Typed access is parametrized by table definitions
which bind a table name to a key codec and a value codec:

	type Account struct {
		Balance int64  `json:"balance"`
		Owner   string `json:"owner"`
	}

	var accounts = tabledb.NewTable[uint64, Account]("accounts",
		tabledb.Uint64Codec{}, tabledb.JSONCodec[Account]{})

	db, err := tabledb.Create("snapdb", dbPath, "leveldb")
	if err != nil {
		// Handle error
	}
	defer db.Close()

	err = tabledb.Insert(db, accounts, 1, Account{Balance: 100, Owner: "ava"})

Savepoints capture the full committed database state and can later be
restored, discarding every savepoint taken after the restored one:

	key, err := db.Savepoint()
	// ... perform operations ...
	err = db.LoadSavepoint(key)

Managed transactions are also available directly through the View and Update
methods for callers that need to compose several raw table operations into a
single atomic unit.

# Drivers

The package is agnostic to the backend storage mechanism.  Drivers register
themselves through RegisterDriver and are selected by name:

	import _ "github.com/tabledb/tabledb/snapdb"

The snapdb driver stores tables in one of the pluggable storage engines from
the engine package (leveldb, pebble, or an in-memory engine for testing).

# Errors

Errors returned by this package are of type tabledb.Error and include a field
which identifies the kind of failure, such as codec failures, schema
mismatches, and stale savepoints.  The IsErrorCode function provides a
convenient check for a specific kind:

	if tabledb.IsErrorCode(err, tabledb.ErrKeyNotFound) {
		// Handle missing key
	}
*/
package tabledb
