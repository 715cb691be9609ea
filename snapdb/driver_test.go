// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"path/filepath"
	"testing"

	"github.com/tabledb/tabledb"
)

// TestParseArgs ensures the driver argument parsing accepts the supported
// shapes and rejects everything else.
func TestParseArgs(t *testing.T) {
	tests := []struct {
		name       string
		args       []interface{}
		wantPath   string
		wantEngine string
		wantErr    bool
	}{
		{
			name:       "path only defaults to leveldb",
			args:       []interface{}{"/some/path"},
			wantPath:   "/some/path",
			wantEngine: engineLevelDB,
		},
		{
			name:       "explicit pebble engine",
			args:       []interface{}{"/some/path", "pebble"},
			wantPath:   "/some/path",
			wantEngine: enginePebble,
		},
		{
			name:       "explicit memory engine",
			args:       []interface{}{"", "memory"},
			wantEngine: engineMemory,
		},
		{
			name:    "no args",
			args:    nil,
			wantErr: true,
		},
		{
			name:    "too many args",
			args:    []interface{}{"p", "leveldb", "extra"},
			wantErr: true,
		},
		{
			name:    "non-string path",
			args:    []interface{}{42},
			wantErr: true,
		},
		{
			name:    "non-string engine",
			args:    []interface{}{"p", 42},
			wantErr: true,
		},
		{
			name:    "unknown engine",
			args:    []interface{}{"p", "bolt"},
			wantErr: true,
		},
	}

	for _, test := range tests {
		path, engineType, err := parseArgs("Open", test.args...)
		if test.wantErr {
			if err == nil {
				t.Errorf("%s: expected error", test.name)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", test.name, err)
			continue
		}
		if path != test.wantPath || engineType != test.wantEngine {
			t.Errorf("%s: got (%q, %q), want (%q, %q)", test.name,
				path, engineType, test.wantPath, test.wantEngine)
		}
	}
}

// TestRegisterTwice ensures a second registration of the driver type is
// rejected.
func TestRegisterTwice(t *testing.T) {
	err := tabledb.RegisterDriver(tabledb.Driver{DbType: dbType})
	if !tabledb.IsErrorCode(err, tabledb.ErrDbTypeRegistered) {
		t.Fatalf("RegisterDriver: unexpected error: %v", err)
	}
}

// TestPersistence ensures committed data survives a close and reopen on the
// disk-backed engines.
func TestPersistence(t *testing.T) {
	for _, engineType := range []string{engineLevelDB, enginePebble} {
		engineType := engineType
		t.Run(engineType, func(t *testing.T) {
			testPersistence(t, engineType)
		})
	}
}

func testPersistence(t *testing.T, engineType string) {
	dbPath := filepath.Join(t.TempDir(), "db")
	db, err := tabledb.Create(dbType, dbPath, engineType)
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}

	schema := tabledb.Schema{KeyCodec: "string", ValueCodec: "string"}
	err = db.Update(func(tx tabledb.Tx) error {
		table, err := tx.Table("persist", schema)
		if err != nil {
			return err
		}
		return table.Put([]byte("k"), []byte("v"))
	})
	if err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close: unexpected error: %v", err)
	}

	db, err = tabledb.Open(dbType, dbPath, engineType)
	if err != nil {
		t.Fatalf("Open: unexpected error: %v", err)
	}
	defer db.Close()

	err = db.View(func(tx tabledb.Tx) error {
		table, err := tx.Table("persist", schema)
		if err != nil {
			return err
		}
		value, err := table.Get([]byte("k"))
		if err != nil {
			return err
		}
		if string(value) != "v" {
			t.Errorf("Get(k) = %q, want v", value)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: unexpected error: %v", err)
	}
}
