// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"

	"github.com/tabledb/tabledb"
	_ "github.com/tabledb/tabledb/snapdb"
)

var (
	// knownEngineTypes enumerates the storage engines supported by the
	// snapdb driver.
	knownEngineTypes = []string{"leveldb", "pebble", "memory"}

	// Default global config.
	cfg = &config{
		DbPath:     "tabledb_data",
		Engine:     "leveldb",
		KeyCodec:   "string",
		ValueCodec: "string",
	}
)

// config defines the global configuration options.
type config struct {
	DbPath     string `short:"b" long:"dbpath" description:"Location of the database"`
	Engine     string `long:"engine" description:"Storage engine to use (leveldb, pebble, memory)"`
	KeyCodec   string `long:"keycodec" description:"Codec name recorded in the schema of accessed tables"`
	ValueCodec string `long:"valuecodec" description:"Value codec name recorded in the schema of accessed tables"`
}

// tableSchema returns the schema derived from the global codec options.  The
// tool accesses tables through the raw layer, so the codec names only need to
// match the names the tables were created with.
func tableSchema() tabledb.Schema {
	return tabledb.Schema{
		KeyCodec:   cfg.KeyCodec,
		ValueCodec: cfg.ValueCodec,
	}
}

// validEngineType returns whether or not engine is a supported engine type.
func validEngineType(engine string) bool {
	for _, known := range knownEngineTypes {
		if engine == known {
			return true
		}
	}

	return false
}

// setupGlobalConfig examines the global configuration options for any
// conditions which are invalid.
func setupGlobalConfig() error {
	if !validEngineType(cfg.Engine) {
		return fmt.Errorf("engine type %q is not supported -- "+
			"supported types: %v", cfg.Engine, knownEngineTypes)
	}

	return nil
}
