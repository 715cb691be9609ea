// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// This file intentionally goes through the public database interface for all
// of its testing so the tests run against every registered engine type.

package tabledb_test

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/tabledb/tabledb"
	_ "github.com/tabledb/tabledb/snapdb"
)

// dbType is the database driver type all interface tests run against.
const dbType = "snapdb"

// engineTypes enumerates the storage engines the snapdb driver supports.  The
// interface tests run against every one of them.
var engineTypes = []string{"memory", "leveldb", "pebble"}

// testSchema is the schema used for the raw interface tests.  The raw layer
// does not interpret codec names, so any consistent pair works.
var testSchema = tabledb.Schema{KeyCodec: "string", ValueCodec: "bytes"}

// setupDB creates a fresh database of the given engine type and registers a
// cleanup that closes it.
func setupDB(t *testing.T, engineType string) tabledb.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "db")
	db, err := tabledb.Create(dbType, dbPath, engineType)
	if err != nil {
		t.Fatalf("failed to create test database (%s/%s): %v", dbType,
			engineType, err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// TestCreateOpenFail ensures errors are returned for unsupported driver and
// engine types as well as opens of databases that do not exist.
func TestCreateOpenFail(t *testing.T) {
	// Ensure unknown driver types are rejected.
	_, err := tabledb.Open("nosuchdriver", "somepath")
	if !tabledb.IsErrorCode(err, tabledb.ErrDbUnknownType) {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	_, err = tabledb.Create("nosuchdriver", "somepath")
	if !tabledb.IsErrorCode(err, tabledb.ErrDbUnknownType) {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	// Ensure unsupported engine types are rejected.
	_, err = tabledb.Create(dbType, t.TempDir(), "nosuchengine")
	if err == nil {
		t.Fatalf("Create: expected error for unknown engine type")
	}

	// Ensure opening a database that does not exist fails.
	dbPath := filepath.Join(t.TempDir(), "missing")
	_, err = tabledb.Open(dbType, dbPath)
	if !tabledb.IsErrorCode(err, tabledb.ErrDbDoesNotExist) {
		t.Fatalf("Open: unexpected error: %v", err)
	}

	// Ensure creating a database twice fails.
	dbPath = filepath.Join(t.TempDir(), "dupe")
	db, err := tabledb.Create(dbType, dbPath)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	_ = db.Close()
	_, err = tabledb.Create(dbType, dbPath)
	if !tabledb.IsErrorCode(err, tabledb.ErrDbExists) {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	// Ensure a closed database rejects new transactions and a double
	// close.
	db, err = tabledb.Open(dbType, dbPath)
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}
	_, err = db.Begin(false)
	if !tabledb.IsErrorCode(err, tabledb.ErrDbNotOpen) {
		t.Fatalf("Begin: unexpected error: %v", err)
	}
	err = db.View(func(tx tabledb.Tx) error { return nil })
	if !tabledb.IsErrorCode(err, tabledb.ErrDbNotOpen) {
		t.Fatalf("View: unexpected error: %v", err)
	}
	if err := db.Close(); !tabledb.IsErrorCode(err, tabledb.ErrDbNotOpen) {
		t.Fatalf("Close: unexpected error: %v", err)
	}
}

// TestInterface performs all interface tests against every supported engine
// type.
func TestInterface(t *testing.T) {
	for _, engineType := range engineTypes {
		engineType := engineType
		t.Run(engineType, func(t *testing.T) {
			testInterface(t, setupDB(t, engineType))
		})
	}
}

// testInterface tests performs tests for the various interfaces of the
// database package which require state in the database for the given
// database.
func testInterface(t *testing.T, db tabledb.DB) {
	if db.Type() != dbType {
		t.Fatalf("wrong database type: %s", db.Type())
	}

	testTableAccess(t, db)
	testCursorInterface(t, db)
	testManualTx(t, db)
	testManagedTxPanics(t, db)
	testTxClosed(t, db)
	testNestedTx(t, db)
	testSchemaEnforcement(t, db)
	testDropTable(t, db)
}

// testTableAccess tests the basic put, get, has, and delete behavior of a
// table within managed transactions.
func testTableAccess(t *testing.T, db tabledb.DB) {
	keyValues := map[string]string{
		"umtx": "treasure",
		"moon": "motto",
		"oath": "thanks",
		"glib": "happy",
	}

	err := db.Update(func(tx tabledb.Tx) error {
		if !tx.Writable() {
			t.Errorf("update transaction is not writable")
		}

		// A blank table name must be rejected.
		_, err := tx.Table("", testSchema)
		if !tabledb.IsErrorCode(err, tabledb.ErrTableNameRequired) {
			t.Errorf("Table(\"\"): unexpected error: %v", err)
		}

		table, err := tx.Table("access", testSchema)
		if err != nil {
			return err
		}

		// An empty key must be rejected.
		err = table.Put(nil, []byte("value"))
		if !tabledb.IsErrorCode(err, tabledb.ErrKeyRequired) {
			t.Errorf("Put(nil): unexpected error: %v", err)
		}

		for k, v := range keyValues {
			if err := table.Put([]byte(k), []byte(v)); err != nil {
				return err
			}
		}

		// Writes staged in this transaction must be visible to reads
		// through the same transaction.
		for k, v := range keyValues {
			gotValue, err := table.Get([]byte(k))
			if err != nil {
				return err
			}
			if !bytes.Equal(gotValue, []byte(v)) {
				t.Errorf("staged Get(%q) = %q, want %q", k,
					gotValue, v)
			}
		}

		// Deleting a staged key must hide it again.
		if err := table.Delete([]byte("umtx")); err != nil {
			return err
		}
		has, err := table.Has([]byte("umtx"))
		if err != nil {
			return err
		}
		if has {
			t.Errorf("staged delete is still visible")
		}
		// Put it back for the committed-state checks below.
		return table.Put([]byte("umtx"), []byte("treasure"))
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	// All values must now be visible through a read-only transaction, and
	// all mutations must be rejected.
	err = db.View(func(tx tabledb.Tx) error {
		if tx.Writable() {
			t.Errorf("view transaction is writable")
		}

		table, err := tx.Table("access", testSchema)
		if err != nil {
			return err
		}
		for k, v := range keyValues {
			gotValue, err := table.Get([]byte(k))
			if err != nil {
				return err
			}
			if !bytes.Equal(gotValue, []byte(v)) {
				t.Errorf("committed Get(%q) = %q, want %q", k,
					gotValue, v)
			}
		}

		// Missing keys return nil with no error.
		gotValue, err := table.Get([]byte("missing"))
		if err != nil {
			return err
		}
		if gotValue != nil {
			t.Errorf("Get(missing) = %q, want nil", gotValue)
		}

		err = table.Put([]byte("k"), []byte("v"))
		if !tabledb.IsErrorCode(err, tabledb.ErrTxNotWritable) {
			t.Errorf("read-only Put: unexpected error: %v", err)
		}
		err = table.Delete([]byte("umtx"))
		if !tabledb.IsErrorCode(err, tabledb.ErrTxNotWritable) {
			t.Errorf("read-only Delete: unexpected error: %v", err)
		}
		_, err = tx.DropTable("access")
		if !tabledb.IsErrorCode(err, tabledb.ErrTxNotWritable) {
			t.Errorf("read-only DropTable: unexpected error: %v",
				err)
		}

		// Opening a table that does not exist in a read-only
		// transaction returns an empty handle rather than creating it.
		absent, err := tx.Table("neverexisted", testSchema)
		if err != nil {
			return err
		}
		gotValue, err = absent.Get([]byte("anything"))
		if err != nil {
			return err
		}
		if gotValue != nil {
			t.Errorf("absent table Get = %q, want nil", gotValue)
		}
		return absent.ForEach(func(k, v []byte) error {
			t.Errorf("absent table ForEach visited %q", k)
			return nil
		})
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}

	// An error returned from the Update callback must roll the entire
	// transaction back.
	expectedErr := fmt.Errorf("force rollback")
	err = db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("access", testSchema)
		if err != nil {
			return err
		}
		if err := table.Put([]byte("ghost"), []byte("boo")); err != nil {
			return err
		}
		return expectedErr
	})
	if err != expectedErr {
		t.Fatalf("Update: unexpected error: %v", err)
	}
	err = db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table("access", testSchema)
		if err != nil {
			return err
		}
		has, err := table.Has([]byte("ghost"))
		if err != nil {
			return err
		}
		if has {
			t.Errorf("rolled back write is visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}
}

// testCursorInterface ensures the cursor merges committed state with staged
// writes and iterates in both directions in key order.
func testCursorInterface(t *testing.T, db tabledb.DB) {
	// Commit half the keys, stage the other half within the transaction
	// that performs the scans, and make sure the merged view is correct.
	committed := []string{"b", "d", "f"}
	staged := []string{"a", "c", "e"}
	err := db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("cursor", testSchema)
		if err != nil {
			return err
		}
		for _, k := range committed {
			if err := table.Put([]byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	err = db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("cursor", testSchema)
		if err != nil {
			return err
		}
		for _, k := range staged {
			if err := table.Put([]byte(k), []byte("v"+k)); err != nil {
				return err
			}
		}
		// Delete a committed key and overwrite another so the cursor
		// must prefer the staged state.
		if err := table.Delete([]byte("f")); err != nil {
			return err
		}
		if err := table.Put([]byte("d"), []byte("new")); err != nil {
			return err
		}

		wantKeys := []string{"a", "b", "c", "d", "e"}
		wantValues := []string{"va", "vb", "vc", "new", "ve"}

		// Forward scan.
		var gotKeys, gotValues []string
		c := table.Cursor()
		for ok := c.First(); ok; ok = c.Next() {
			gotKeys = append(gotKeys, string(c.Key()))
			gotValues = append(gotValues, string(c.Value()))
		}
		if !stringSlicesEqual(gotKeys, wantKeys) ||
			!stringSlicesEqual(gotValues, wantValues) {

			t.Errorf("forward scan mismatch: %s",
				spew.Sdump(gotKeys, gotValues))
		}

		// Backward scan.
		gotKeys, gotValues = nil, nil
		for ok := c.Last(); ok; ok = c.Prev() {
			gotKeys = append(gotKeys, string(c.Key()))
			gotValues = append(gotValues, string(c.Value()))
		}
		if !stringSlicesEqual(gotKeys, reverse(wantKeys)) ||
			!stringSlicesEqual(gotValues, reverse(wantValues)) {

			t.Errorf("backward scan mismatch: %s",
				spew.Sdump(gotKeys, gotValues))
		}

		// Seek to an existing key and to a key between entries.
		if !c.Seek([]byte("c")) || string(c.Key()) != "c" {
			t.Errorf("Seek(c) = %q, want c", c.Key())
		}
		if !c.Seek([]byte("cc")) || string(c.Key()) != "d" {
			t.Errorf("Seek(cc) = %q, want d", c.Key())
		}
		if c.Seek([]byte("z")) {
			t.Errorf("Seek(z) found %q, want exhausted", c.Key())
		}

		// A cursor on a never-seeked position acts exhausted.
		fresh := table.Cursor()
		if fresh.Next() || fresh.Key() != nil || fresh.Value() != nil {
			t.Errorf("unpositioned cursor is not exhausted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}
}

// testManualTx exercises the unmanaged Begin/Commit/Rollback flow.
func testManualTx(t *testing.T, db tabledb.DB) {
	// Rollback must discard staged writes.
	tx, err := db.Begin(true)
	if err != nil {
		t.Fatalf("Begin: unexpected error: %v", err)
	}
	table, err := tx.Table("manual", testSchema)
	if err != nil {
		t.Fatalf("Table: unexpected error: %v", err)
	}
	if err := table.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: unexpected error: %v", err)
	}

	// The rollback also discarded the table creation itself.
	err = db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table("manual", testSchema)
		if err != nil {
			return err
		}
		has, err := table.Has([]byte("k"))
		if err != nil {
			return err
		}
		if has {
			t.Errorf("rolled back manual write is visible")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}

	// Commit must persist staged writes.
	tx, err = db.Begin(true)
	if err != nil {
		t.Fatalf("Begin: unexpected error: %v", err)
	}
	table, err = tx.Table("manual", testSchema)
	if err != nil {
		t.Fatalf("Table: unexpected error: %v", err)
	}
	if err := table.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("Put: unexpected error: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: unexpected error: %v", err)
	}
	err = db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table("manual", testSchema)
		if err != nil {
			return err
		}
		gotValue, err := table.Get([]byte("k"))
		if err != nil {
			return err
		}
		if !bytes.Equal(gotValue, []byte("v")) {
			t.Errorf("Get(k) = %q, want v", gotValue)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}

	// Commit on a read-only transaction must fail.
	tx, err = db.Begin(false)
	if err != nil {
		t.Fatalf("Begin: unexpected error: %v", err)
	}
	err = tx.Commit()
	if !tabledb.IsErrorCode(err, tabledb.ErrTxNotWritable) {
		t.Fatalf("read-only Commit: unexpected error: %v", err)
	}
	// The failed commit closed the transaction already.
	err = tx.Rollback()
	if !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Fatalf("Rollback: unexpected error: %v", err)
	}
}

// testManagedTxPanics ensures calling Commit or Rollback on a managed
// transaction panics.
func testManagedTxPanics(t *testing.T, db tabledb.DB) {
	testPanic := func(fn func()) (paniced bool) {
		defer func() {
			if err := recover(); err != nil {
				paniced = true
			}
		}()
		fn()
		return false
	}

	paniced := testPanic(func() {
		_ = db.View(func(tx tabledb.Tx) error {
			return tx.Rollback()
		})
	})
	if !paniced {
		t.Errorf("managed View rollback did not panic")
	}

	paniced = testPanic(func() {
		_ = db.Update(func(tx tabledb.Tx) error {
			return tx.Commit()
		})
	})
	if !paniced {
		t.Errorf("managed Update commit did not panic")
	}
}

// testTxClosed ensures all operations against a closed transaction fail with
// ErrTxClosed.
func testTxClosed(t *testing.T, db tabledb.DB) {
	tx, err := db.Begin(true)
	if err != nil {
		t.Fatalf("Begin: unexpected error: %v", err)
	}
	table, err := tx.Table("closed", testSchema)
	if err != nil {
		t.Fatalf("Table: unexpected error: %v", err)
	}
	cursor := table.Cursor()
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: unexpected error: %v", err)
	}

	if _, err := tx.Table("closed", testSchema); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Table: unexpected error: %v", err)
	}
	if _, err := tx.DropTable("closed"); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("DropTable: unexpected error: %v", err)
	}
	if _, err := table.Get([]byte("k")); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Get: unexpected error: %v", err)
	}
	if _, err := table.Has([]byte("k")); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Has: unexpected error: %v", err)
	}
	if err := table.Put([]byte("k"), []byte("v")); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Put: unexpected error: %v", err)
	}
	if err := table.Delete([]byte("k")); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Delete: unexpected error: %v", err)
	}
	if err := tx.Commit(); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Commit: unexpected error: %v", err)
	}
	if err := tx.Rollback(); !tabledb.IsErrorCode(err, tabledb.ErrTxClosed) {
		t.Errorf("Rollback: unexpected error: %v", err)
	}

	// Cursors created before the transaction closed act exhausted.
	if cursor.First() || cursor.Next() || cursor.Key() != nil {
		t.Errorf("cursor on closed transaction is not exhausted")
	}
}

// testNestedTx ensures starting a write transaction from the goroutine that
// already owns one fails fast instead of deadlocking.
func testNestedTx(t *testing.T, db tabledb.DB) {
	err := db.Update(func(tx tabledb.Tx) error {
		_, err := db.Begin(true)
		if !tabledb.IsErrorCode(err, tabledb.ErrNestedTx) {
			t.Errorf("nested Begin: unexpected error: %v", err)
		}

		// Savepoint operations are write-class, so they must be
		// rejected from inside the write transaction as well.
		if _, err := db.Savepoint(); !tabledb.IsErrorCode(err, tabledb.ErrNestedTx) {
			t.Errorf("nested Savepoint: unexpected error: %v", err)
		}
		if err := db.LoadSavepoint(0); !tabledb.IsErrorCode(err, tabledb.ErrNestedTx) {
			t.Errorf("nested LoadSavepoint: unexpected error: %v",
				err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	// Read-only transactions are fine to nest inside a write transaction.
	err = db.Update(func(tx tabledb.Tx) error {
		return db.View(func(tx tabledb.Tx) error {
			return nil
		})
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}
}

// testSchemaEnforcement ensures a table can not be reopened with a schema
// that differs from the one it was created with.
func testSchemaEnforcement(t *testing.T, db tabledb.DB) {
	err := db.Update(func(tx tabledb.Tx) error {
		_, err := tx.Table("schematest", testSchema)
		return err
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	otherSchema := tabledb.Schema{KeyCodec: "uint64be", ValueCodec: "bytes"}
	err = db.View(func(tx tabledb.Tx) error {
		_, err := tx.Table("schematest", otherSchema)
		return err
	})
	if !tabledb.IsErrorCode(err, tabledb.ErrSchemaMismatch) {
		t.Fatalf("View: unexpected error: %v", err)
	}

	// The matching schema still opens fine.
	err = db.View(func(tx tabledb.Tx) error {
		_, err := tx.Table("schematest", testSchema)
		return err
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}
}

// testDropTable ensures dropping a table removes its data and that recreating
// it starts from an empty table.
func testDropTable(t *testing.T, db tabledb.DB) {
	err := db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("dropme", testSchema)
		if err != nil {
			return err
		}
		return table.Put([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	err = db.Update(func(tx tabledb.Tx) error {
		existed, err := tx.DropTable("dropme")
		if err != nil {
			return err
		}
		if !existed {
			t.Errorf("DropTable reported table as missing")
		}

		// Dropping again reports the table as missing.
		existed, err = tx.DropTable("dropme")
		if err != nil {
			return err
		}
		if existed {
			t.Errorf("DropTable reported dropped table as existing")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	// Recreating the table must not resurrect the old data.
	err = db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("dropme", testSchema)
		if err != nil {
			return err
		}
		has, err := table.Has([]byte("k"))
		if err != nil {
			return err
		}
		if has {
			t.Errorf("dropped data visible in recreated table")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}
}

// stringSlicesEqual returns whether the two string slices hold the same
// entries in the same order.
func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// reverse returns a reversed copy of the passed slice.
func reverse(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
