// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"fmt"
	"os"

	"github.com/btcsuite/btclog"
	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/engine"
	"github.com/tabledb/tabledb/engine/leveldb"
	"github.com/tabledb/tabledb/engine/memdb"
	"github.com/tabledb/tabledb/engine/pebbledb"
)

const (
	dbType = "snapdb"

	// Supported engine types.
	engineLevelDB = "leveldb"
	enginePebble  = "pebble"
	engineMemory  = "memory"
)

// parseArgs parses the arguments from the database Open/Create methods.
func parseArgs(funcName string, args ...interface{}) (string, string, error) {
	if len(args) < 1 || len(args) > 2 {
		return "", "", fmt.Errorf("invalid arguments to %s.%s -- "+
			"expected database path and optional engine type",
			dbType, funcName)
	}

	dbPath, ok := args[0].(string)
	if !ok {
		return "", "", fmt.Errorf("first argument to %s.%s is "+
			"invalid -- expected database path string", dbType,
			funcName)
	}

	engineType := engineLevelDB
	if len(args) == 2 {
		engineType, ok = args[1].(string)
		if !ok {
			return "", "", fmt.Errorf("second argument to %s.%s "+
				"is invalid -- expected engine type string",
				dbType, funcName)
		}
	}
	switch engineType {
	case engineLevelDB, enginePebble, engineMemory:
	default:
		return "", "", fmt.Errorf("second argument to %s.%s is "+
			"invalid -- unsupported engine type %q", dbType,
			funcName, engineType)
	}

	return dbPath, engineType, nil
}

// openDBDriver is the callback provided during driver registration that opens
// an existing database for use.
func openDBDriver(args ...interface{}) (tabledb.DB, error) {
	dbPath, engineType, err := parseArgs("Open", args...)
	if err != nil {
		return nil, err
	}

	return openDB(dbPath, engineType, false)
}

// createDBDriver is the callback provided during driver registration that
// creates, initializes, and opens a database for use.
func createDBDriver(args ...interface{}) (tabledb.DB, error) {
	dbPath, engineType, err := parseArgs("Create", args...)
	if err != nil {
		return nil, err
	}

	return openDB(dbPath, engineType, true)
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// openDB opens the database at the provided path.  tabledb.ErrDbDoesNotExist
// is returned if the database doesn't exist and the create flag is not set.
func openDB(dbPath, engineType string, create bool) (tabledb.DB, error) {
	// The memory engine has no presence on disk, so creating and opening
	// both produce a fresh empty database.
	if engineType == engineMemory {
		log.Infof("Database type: %q, engine: %q", dbType, engineType)
		return newDB(memdb.NewDB()), nil
	}

	// Error if the database doesn't exist and the open flag is set.  Also,
	// error when creating a database that already exists.
	dbExists := fileExists(dbPath)
	if !create && !dbExists {
		str := fmt.Sprintf("database %q does not exist", dbPath)
		return nil, makeDbErr(tabledb.ErrDbDoesNotExist, str, nil)
	}
	if create && dbExists {
		str := fmt.Sprintf("database %q already exists", dbPath)
		return nil, makeDbErr(tabledb.ErrDbExists, str, nil)
	}

	// Ensure the full path to the database exists.
	if create {
		// The error can be ignored here since the call to the engine
		// below will fail if the directory couldn't be created.
		_ = os.MkdirAll(dbPath, 0700)
	}

	var eng engine.Engine
	var err error
	switch engineType {
	case enginePebble:
		eng, err = pebbledb.NewDB(dbPath, create, 0, 0)
	default:
		eng, err = leveldb.NewDB(dbPath, create)
	}
	if err != nil {
		return nil, convertErr("failed to open database engine", err)
	}

	log.Infof("Database type: %q, engine: %q, path: %q", dbType,
		engineType, dbPath)
	return newDB(eng), nil
}

// useLogger is the callback provided during driver registration that sets the
// current logger to the provided one.
func useLogger(logger btclog.Logger) {
	log = logger
}

func init() {
	// Register the driver.
	driver := tabledb.Driver{
		DbType:    dbType,
		Create:    createDBDriver,
		Open:      openDBDriver,
		UseLogger: useLogger,
	}
	if err := tabledb.RegisterDriver(driver); err != nil {
		panic(fmt.Sprintf("Failed to register database driver %q: %v",
			dbType, err))
	}
}
