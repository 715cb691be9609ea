// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"time"

	"github.com/tabledb/tabledb"
)

// getCmd defines the configuration options for the get command.
type getCmd struct{}

// putCmd defines the configuration options for the put command.
type putCmd struct{}

// deleteCmd defines the configuration options for the delete command.
type deleteCmd struct{}

// scanCmd defines the configuration options for the scan command.
type scanCmd struct{}

// dropCmd defines the configuration options for the droptable command.
type dropCmd struct{}

var (
	getCfg    = getCmd{}
	putCfg    = putCmd{}
	deleteCfg = deleteCmd{}
	scanCfg   = scanCmd{}
	dropCfg   = dropCmd{}
)

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *getCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("required table and key parameters not " +
			"specified")
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table(args[0], tableSchema())
		if err != nil {
			return err
		}
		value, err := table.Get([]byte(args[1]))
		if err != nil {
			return err
		}
		if value == nil {
			log.Infof("Key %q not found in table %q", args[1],
				args[0])
			return nil
		}
		log.Infof("Key %q has value %q", args[1], value)
		return nil
	})
}

// Usage overrides the usage display for the command.
func (cmd *getCmd) Usage() string {
	return "<table> <key>"
}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *putCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) < 3 {
		return errors.New("required table, key, and value parameters " +
			"not specified")
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table(args[0], tableSchema())
		if err != nil {
			return err
		}
		if err := table.Put([]byte(args[1]), []byte(args[2])); err != nil {
			return err
		}
		log.Infof("Stored key %q in table %q", args[1], args[0])
		return nil
	})
}

// Usage overrides the usage display for the command.
func (cmd *putCmd) Usage() string {
	return "<table> <key> <value>"
}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *deleteCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) < 2 {
		return errors.New("required table and key parameters not " +
			"specified")
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table(args[0], tableSchema())
		if err != nil {
			return err
		}
		if err := table.Delete([]byte(args[1])); err != nil {
			return err
		}
		log.Infof("Removed key %q from table %q", args[1], args[0])
		return nil
	})
}

// Usage overrides the usage display for the command.
func (cmd *deleteCmd) Usage() string {
	return "<table> <key>"
}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *scanCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) < 1 {
		return errors.New("required table parameter not specified")
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table(args[0], tableSchema())
		if err != nil {
			return err
		}

		startTime := time.Now()
		numEntries := 0
		err = table.ForEach(func(k, v []byte) error {
			log.Infof("%q = %q", k, v)
			numEntries++
			return nil
		})
		if err != nil {
			return err
		}
		log.Infof("Scanned %d entries in %v", numEntries,
			time.Since(startTime))
		return nil
	})
}

// Usage overrides the usage display for the command.
func (cmd *scanCmd) Usage() string {
	return "<table>"
}

// Execute is the main entry point for the command.  It's invoked by the
// parser.
func (cmd *dropCmd) Execute(args []string) error {
	if err := setupGlobalConfig(); err != nil {
		return err
	}
	if len(args) < 1 {
		return errors.New("required table parameter not specified")
	}

	db, err := loadDB()
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx tabledb.Tx) error {
		existed, err := tx.DropTable(args[0])
		if err != nil {
			return err
		}
		if !existed {
			log.Infof("Table %q does not exist", args[0])
			return nil
		}
		log.Infof("Dropped table %q", args[0])
		return nil
	})
}

// Usage overrides the usage display for the command.
func (cmd *dropCmd) Usage() string {
	return "<table>"
}
