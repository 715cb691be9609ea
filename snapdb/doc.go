// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package snapdb implements a driver for the tabledb package that stores tables
in a pluggable key/value engine and backs savepoints with engine snapshots.

This driver is the recommended driver for use with tabledb.  It makes use of
the leveldb engine by default, with pebble and a memory-only engine also
available for selection through the optional second argument to the Open and
Create functions.

# Usage

This package is a driver to the tabledb package and provides the database
type of "snapdb".  The only parameters the Open and Create functions take are
the database path as a string, and an optional engine type of "leveldb",
"pebble", or "memory":

	db, err := tabledb.Open("snapdb", "path/to/database")
	if err != nil {
		// Handle error
	}

	db, err := tabledb.Create("snapdb", "path/to/database", "pebble")
	if err != nil {
		// Handle error
	}
*/
package snapdb
