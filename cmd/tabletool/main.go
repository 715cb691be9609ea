// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btclog"
	flags "github.com/jessevdk/go-flags"
	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/internal/version"
)

var log btclog.Logger

// loadDB opens the database and returns a handle to it, creating it first
// when it does not exist yet.
func loadDB() (tabledb.DB, error) {
	log.Infof("Loading database from '%s' (engine %s)", cfg.DbPath,
		cfg.Engine)
	db, err := tabledb.Open("snapdb", cfg.DbPath, cfg.Engine)
	if err != nil {
		// Return the error if it's not because the database doesn't
		// exist.
		if !tabledb.IsErrorCode(err, tabledb.ErrDbDoesNotExist) {
			return nil, err
		}

		// Create the db if it does not exist.
		db, err = tabledb.Create("snapdb", cfg.DbPath, cfg.Engine)
		if err != nil {
			return nil, err
		}
	}

	log.Info("Database loaded")
	return db, nil
}

// realMain is the real main function for the utility.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func realMain() error {
	// Setup logging.
	backendLogger := btclog.NewBackend(os.Stdout)
	defer os.Stdout.Sync()
	log = backendLogger.Logger("MAIN")
	dbLog := backendLogger.Logger("TBDB")
	dbLog.SetLevel(btclog.LevelDebug)
	tabledb.UseLogger(dbLog)
	log.Infof("Version %s", version.String())

	// Setup the parser options and commands.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	parserFlags := flags.Options(flags.HelpFlag | flags.PassDoubleDash)
	parser := flags.NewNamedParser(appName, parserFlags)
	parser.AddGroup("Global Options", "", cfg)
	parser.AddCommand("get",
		"Fetch the value stored under a key in a table", "",
		&getCfg)
	parser.AddCommand("put",
		"Store a key/value pair in a table", "", &putCfg)
	parser.AddCommand("delete",
		"Remove a key from a table", "", &deleteCfg)
	parser.AddCommand("scan",
		"Dump every key/value pair of a table in key order", "",
		&scanCfg)
	parser.AddCommand("droptable",
		"Remove a table along with all of its data", "", &dropCfg)
	parser.AddCommand("savepoints",
		"Manage the savepoint stack",
		"List, create, restore, or clear database savepoints",
		&savepointsCfg)

	// Parse command line and invoke the Execute function for the specified
	// command.
	if _, err := parser.Parse(); err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		} else {
			log.Error(err)
		}

		return err
	}

	return nil
}

func main() {
	// Work around defer not working after os.Exit()
	if err := realMain(); err != nil {
		os.Exit(1)
	}
}
