// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tabledb

// TableDef is an immutable, typed binding of a table name to a key codec and
// a value codec.  Definitions are cheap values which may be declared once at
// package level and shared across calls:
//
//	var accounts = tabledb.NewTable[uint64, Account]("accounts",
//		tabledb.Uint64Codec{}, tabledb.JSONCodec[Account]{})
//
// Two definitions with the same name must use the same codec pair.  Opening a
// table whose persisted schema disagrees with the definition fails with
// ErrSchemaMismatch.
type TableDef[K, V any] struct {
	name  string
	key   Codec[K]
	value Codec[V]
}

// NewTable returns a table definition binding the given name to the provided
// codec pair.
func NewTable[K, V any](name string, key Codec[K], value Codec[V]) TableDef[K, V] {
	return TableDef[K, V]{name: name, key: key, value: value}
}

// Name returns the name of the table.
func (t TableDef[K, V]) Name() string {
	return t.name
}

// Schema returns the persisted schema identity of the definition.
func (t TableDef[K, V]) Schema() Schema {
	return Schema{KeyCodec: t.key.Name(), ValueCodec: t.value.Name()}
}

// Entry is a decoded key/value pair returned by scan operations.
type Entry[K, V any] struct {
	Key   K
	Value V
}
