// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"strconv"
)

// savepointsCmd defines the configuration options for the savepoints command.
//
// Savepoints are backed by engine snapshots which do not outlive the process,
// so this command is primarily useful for exercising the savepoint flow
// within a single invocation.
type savepointsCmd struct {
	Create  bool   `long:"create" description:"Take a savepoint of the current state before running the action"`
	Restore string `long:"restore" description:"Restore the savepoint with the given key"`
	Clear   bool   `long:"clear" description:"Release every savepoint"`
}

var savepointsCfg = savepointsCmd{}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *savepointsCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if cmd.Create {
		key, err := db.Savepoint()
		if err != nil {
			return err
		}
		log.Infof("Created savepoint %d", key)
	}
	if cmd.Restore != "" {
		key, err := strconv.ParseUint(cmd.Restore, 10, 64)
		if err != nil {
			return errors.New("restore requires a numeric " +
				"savepoint key")
		}
		if err := db.LoadSavepoint(key); err != nil {
			return err
		}
		log.Infof("Restored savepoint %d", key)
	}
	if cmd.Clear {
		db.ClearSavepoints()
		log.Info("Cleared all savepoints")
	}

	savepoints := db.Savepoints()
	log.Infof("Holding %d savepoint(s)", len(savepoints))
	for _, sp := range savepoints {
		log.Infof("  key %d taken at %v", sp.Key, sp.CreatedAt)
	}
	return nil
}
