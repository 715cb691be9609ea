// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package memdb

import (
	"bytes"
	"testing"

	"github.com/tabledb/tabledb/engine"
)

// commitPairs applies the passed pairs to the engine through a transaction.
func commitPairs(t *testing.T, eng engine.Engine, pairs map[string]string) {
	t.Helper()

	tx, err := eng.Transaction()
	if err != nil {
		t.Fatalf("Transaction: unexpected error: %v", err)
	}
	for k, v := range pairs {
		if err := tx.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("Put: unexpected error: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: unexpected error: %v", err)
	}
}

// TestSnapshotIsolation ensures snapshots keep serving the state they were
// taken at while the engine continues to change.
func TestSnapshotIsolation(t *testing.T) {
	eng := NewDB()
	defer eng.Close()

	commitPairs(t, eng, map[string]string{"a": "1"})

	snap, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	defer snap.Release()

	commitPairs(t, eng, map[string]string{"b": "2"})

	value, err := snap.Get([]byte("a"))
	if err != nil || !bytes.Equal(value, []byte("1")) {
		t.Fatalf("Get(a) = %q, %v", value, err)
	}
	has, err := snap.Has([]byte("b"))
	if err != nil {
		t.Fatalf("Has: unexpected error: %v", err)
	}
	if has {
		t.Fatalf("snapshot sees a write made after it was taken")
	}

	// A fresh snapshot sees both pairs.
	fresh, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	defer fresh.Release()
	has, err = fresh.Has([]byte("b"))
	if err != nil || !has {
		t.Fatalf("fresh snapshot missing pair: %v", err)
	}
}

// TestTransactionDiscard ensures discarded transactions leave no trace.
func TestTransactionDiscard(t *testing.T) {
	eng := NewDB()
	defer eng.Close()

	tx, err := eng.Transaction()
	if err != nil {
		t.Fatalf("Transaction: unexpected error: %v", err)
	}
	if err := tx.Put([]byte("a"), []byte("1")); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}
	tx.Discard()

	if err := tx.Commit(); err != ErrTxClosed {
		t.Fatalf("Commit after discard: unexpected error: %v", err)
	}

	snap, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	defer snap.Release()
	has, err := snap.Has([]byte("a"))
	if err != nil {
		t.Fatalf("Has: unexpected error: %v", err)
	}
	if has {
		t.Fatalf("discarded write is visible")
	}
}

// TestReleasedSnapshot ensures a released snapshot reports the sentinel error
// used for stale savepoint detection.
func TestReleasedSnapshot(t *testing.T) {
	eng := NewDB()
	defer eng.Close()

	snap, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	snap.Release()

	if _, err := snap.Get([]byte("a")); err != engine.ErrSnapshotReleased {
		t.Fatalf("Get: unexpected error: %v", err)
	}
	if _, err := snap.Has([]byte("a")); err != engine.ErrSnapshotReleased {
		t.Fatalf("Has: unexpected error: %v", err)
	}
}

// TestSnapshotIterator ensures range iteration over a snapshot honors the
// bounds and ordering of the engine iterator contract.
func TestSnapshotIterator(t *testing.T) {
	eng := NewDB()
	defer eng.Close()

	commitPairs(t, eng, map[string]string{
		"aa": "1", "ab": "2", "b": "3", "ca": "4",
	})

	snap, err := eng.Snapshot()
	if err != nil {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	defer snap.Release()

	iter := snap.NewIterator(engine.BytesPrefix([]byte("a")))
	defer iter.Release()

	var keys []string
	for ok := iter.First(); ok; ok = iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if len(keys) != 2 || keys[0] != "aa" || keys[1] != "ab" {
		t.Fatalf("prefix scan = %v, want [aa ab]", keys)
	}
	if err := iter.Error(); err != nil {
		t.Fatalf("iterator error: %v", err)
	}
}

// TestClosedEngine ensures operations against a closed engine fail.
func TestClosedEngine(t *testing.T) {
	eng := NewDB()
	if err := eng.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}

	if _, err := eng.Snapshot(); err != ErrDbClosed {
		t.Fatalf("Snapshot: unexpected error: %v", err)
	}
	if _, err := eng.Transaction(); err != ErrDbClosed {
		t.Fatalf("Transaction: unexpected error: %v", err)
	}
	if err := eng.Close(); err != ErrDbClosed {
		t.Fatalf("Close: unexpected error: %v", err)
	}
}
