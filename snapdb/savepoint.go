// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"errors"
	"fmt"
	"time"

	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/engine"
)

// savepoint pins an engine snapshot of a fully committed database state so
// the database can later be rolled back to it.
type savepoint struct {
	key       uint64
	snap      engine.Snapshot
	createdAt time.Time
}

// Savepoint captures a snapshot of the current committed database state and
// pushes it onto the savepoint stack.  The returned key is strictly greater
// than the key of every savepoint taken before it.
//
// Savepoint is a write-class operation: it blocks until no write transaction
// is in flight so the snapshot always reflects a fully committed state.  For
// the same reason it fails with ErrNestedTx when called from within an Update
// callback.  Returns ErrSavepointFailed if the engine cannot produce a
// consistent snapshot.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Savepoint() (uint64, error) {
	// Taking a savepoint from the goroutine that owns the in-flight write
	// transaction would deadlock on the write lock.
	if err := db.checkNestedWrite(goroutineID()); err != nil {
		return 0, err
	}
	db.writeLock.Lock()
	defer db.writeLock.Unlock()

	db.closeLock.RLock()
	defer db.closeLock.RUnlock()
	if db.closed {
		return 0, makeDbErr(tabledb.ErrDbNotOpen, errDbNotOpenStr, nil)
	}

	snap, err := db.engine.Snapshot()
	if err != nil {
		str := "failed to snapshot the database state"
		return 0, makeDbErr(tabledb.ErrSavepointFailed, str, err)
	}

	db.spLock.Lock()
	defer db.spLock.Unlock()
	key := db.nextSpKey
	db.nextSpKey++
	db.savepoints = append(db.savepoints, &savepoint{
		key:       key,
		snap:      snap,
		createdAt: time.Now(),
	})

	log.Debugf("Created savepoint %d", key)
	return key, nil
}

// LoadSavepoint restores the database to the state captured by the savepoint
// with the given key and invalidates every savepoint taken after it.  The
// restore replays the savepoint state through a single engine transaction, so
// it either completes fully or leaves the database untouched.
//
// Returns ErrSavepointNotFound if no savepoint with the given key exists and
// ErrSavepointStale if the engine can no longer serve the snapshot backing
// it.  Like Savepoint, it fails with ErrNestedTx when called from within an
// Update callback.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) LoadSavepoint(key uint64) error {
	if err := db.checkNestedWrite(goroutineID()); err != nil {
		return err
	}
	db.writeLock.Lock()
	defer db.writeLock.Unlock()

	db.closeLock.RLock()
	defer db.closeLock.RUnlock()
	if db.closed {
		return makeDbErr(tabledb.ErrDbNotOpen, errDbNotOpenStr, nil)
	}

	db.spLock.Lock()
	defer db.spLock.Unlock()
	spIdx := -1
	for i, sp := range db.savepoints {
		if sp.key == key {
			spIdx = i
			break
		}
	}
	if spIdx < 0 {
		str := fmt.Sprintf("no savepoint with key %d", key)
		return makeDbErr(tabledb.ErrSavepointNotFound, str, nil)
	}
	sp := db.savepoints[spIdx]

	// Probe the snapshot before touching anything so a stale savepoint is
	// detected while the database is still untouched.
	if _, err := sp.snap.Has(curTableIDKey); err != nil {
		if errors.Is(err, engine.ErrSnapshotReleased) {
			str := fmt.Sprintf("savepoint %d is no longer served "+
				"by the engine", key)
			return makeDbErr(tabledb.ErrSavepointStale, str, err)
		}
		return convertErr("failed to probe savepoint snapshot", err)
	}

	if err := db.replaceState(sp.snap); err != nil {
		return err
	}

	// Every savepoint taken after the restored one now describes a future
	// that no longer exists, so release them.
	for _, later := range db.savepoints[spIdx+1:] {
		later.snap.Release()
	}
	db.savepoints = db.savepoints[:spIdx+1]

	log.Debugf("Restored savepoint %d", key)
	return nil
}

// replaceState atomically replaces the committed engine state with the
// contents of the passed snapshot.  It stages the removal of every current
// key followed by a write of every key of the snapshot within one engine
// transaction.
func (db *db) replaceState(target engine.Snapshot) error {
	current, err := db.engine.Snapshot()
	if err != nil {
		return convertErr("failed to snapshot current state", err)
	}
	defer current.Release()

	etx, err := db.engine.Transaction()
	if err != nil {
		return convertErr("failed to begin engine transaction", err)
	}

	err = stageSnapshotOps(current, func(k, v []byte) error {
		return etx.Delete(k)
	})
	if err == nil {
		err = stageSnapshotOps(target, etx.Put)
	}
	if err != nil {
		etx.Discard()
		return err
	}

	if err := etx.Commit(); err != nil {
		etx.Discard()
		return convertErr("failed to commit state replacement", err)
	}
	return nil
}

// stageSnapshotOps invokes the passed staging function with every key/value
// pair of the snapshot.  The engine transaction implementations copy the
// slices they are handed, so the iterator's buffers can be passed through
// directly.
func stageSnapshotOps(snap engine.Snapshot, stage func(k, v []byte) error) error {
	iter := snap.NewIterator(&engine.Range{})
	defer iter.Release()
	for ok := iter.First(); ok; ok = iter.Next() {
		if err := stage(iter.Key(), iter.Value()); err != nil {
			return convertErr("failed to stage state replacement",
				err)
		}
	}
	if err := iter.Error(); err != nil {
		return convertErr("failed to scan snapshot", err)
	}
	return nil
}

// Savepoints returns information about the currently held savepoints in
// creation order.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) Savepoints() []tabledb.SavepointInfo {
	db.spLock.Lock()
	defer db.spLock.Unlock()

	infos := make([]tabledb.SavepointInfo, 0, len(db.savepoints))
	for _, sp := range db.savepoints {
		infos = append(infos, tabledb.SavepointInfo{
			Key:       sp.key,
			CreatedAt: sp.createdAt,
		})
	}
	return infos
}

// ClearSavepoints releases every savepoint currently held by the database.
//
// This function is part of the tabledb.DB interface implementation.
func (db *db) ClearSavepoints() {
	db.spLock.Lock()
	defer db.spLock.Unlock()

	for _, sp := range db.savepoints {
		sp.snap.Release()
	}
	db.savepoints = nil
}
