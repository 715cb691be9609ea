// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package tabledb

import (
	"errors"
	"fmt"
)

// The functions in this file make up the typed operation API.  They are
// top-level generic functions rather than methods since Go methods can not
// introduce type parameters.  Every function runs inside its own managed
// transaction, so each call is atomic: it either fully succeeds or leaves the
// database exactly as it was.

// openTable opens the table for the given definition within the transaction.
func openTable[K, V any](tx Tx, def TableDef[K, V]) (Table, error) {
	return tx.Table(def.Name(), def.Schema())
}

// putEntry encodes the given pair with the definition's codecs and stores it
// in the table.
func putEntry[K, V any](table Table, def TableDef[K, V], key K, value V) error {
	keyBytes, err := def.key.Encode(key)
	if err != nil {
		return err
	}
	valueBytes, err := def.value.Encode(value)
	if err != nil {
		return err
	}
	return table.Put(keyBytes, valueBytes)
}

// Get returns the value stored under the given key along with whether or not
// the key exists.  A missing key is not an error.
func Get[K, V any](db DB, def TableDef[K, V], key K) (V, bool, error) {
	var value V
	var found bool
	err := db.View(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		keyBytes, err := def.key.Encode(key)
		if err != nil {
			return err
		}

		valueBytes, err := table.Get(keyBytes)
		if err != nil {
			return err
		}
		if valueBytes == nil {
			return nil
		}

		value, err = def.value.Decode(valueBytes)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return value, found, err
}

// Has returns whether or not the table contains the given key.
func Has[K, V any](db DB, def TableDef[K, V], key K) (bool, error) {
	var exists bool
	err := db.View(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		keyBytes, err := def.key.Encode(key)
		if err != nil {
			return err
		}

		exists, err = table.Has(keyBytes)
		return err
	})
	return exists, err
}

// Insert stores the given key/value pair, overwriting any existing value for
// the key.
func Insert[K, V any](db DB, def TableDef[K, V], key K, value V) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}
		return putEntry(table, def, key, value)
	})
}

// TryAdd stores the given key/value pair only when the key is not already
// present.  It returns whether or not the pair was newly added.
func TryAdd[K, V any](db DB, def TableDef[K, V], key K, value V) (bool, error) {
	var added bool
	err := db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		keyBytes, err := def.key.Encode(key)
		if err != nil {
			return err
		}
		exists, err := table.Has(keyBytes)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		valueBytes, err := def.value.Encode(value)
		if err != nil {
			return err
		}
		if err := table.Put(keyBytes, valueBytes); err != nil {
			return err
		}
		added = true
		return nil
	})
	return added, err
}

// BatchInsert stores all of the given entries within a single transaction.
// The batch is all-or-nothing: a failure to encode or store any entry rolls
// the entire batch back and no partial writes become visible.
func BatchInsert[K, V any](db DB, def TableDef[K, V], entries []Entry[K, V]) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		for _, entry := range entries {
			err := putEntry(table, def, entry.Key, entry.Value)
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes the given key from the table.  Deleting a key that does not
// exist is not an error.
func Delete[K, V any](db DB, def TableDef[K, V], key K) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		keyBytes, err := def.key.Encode(key)
		if err != nil {
			return err
		}
		return table.Delete(keyBytes)
	})
}

// BatchDelete removes all of the given keys within a single transaction with
// the same all-or-nothing semantics as BatchInsert.  Keys that do not exist
// are skipped.
func BatchDelete[K, V any](db DB, def TableDef[K, V], keys []K) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		for _, key := range keys {
			keyBytes, err := def.key.Encode(key)
			if err != nil {
				return err
			}
			if err := table.Delete(keyBytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// Edit applies the passed function to the value stored under the given key
// and writes the result back.  The read-modify-write sequence runs within a
// single transaction so no intermediate state is ever observable.
//
// Returns ErrKeyNotFound when the key is not present in the table.
func Edit[K, V any](db DB, def TableDef[K, V], key K, edit func(*V)) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		keyBytes, err := def.key.Encode(key)
		if err != nil {
			return err
		}

		valueBytes, err := table.Get(keyBytes)
		if err != nil {
			return err
		}
		if valueBytes == nil {
			str := fmt.Sprintf("table %q has no key to edit",
				def.Name())
			return makeError(ErrKeyNotFound, str, nil)
		}

		value, err := def.value.Decode(valueBytes)
		if err != nil {
			return err
		}
		edit(&value)

		newValueBytes, err := def.value.Encode(value)
		if err != nil {
			return err
		}
		return table.Put(keyBytes, newValueBytes)
	})
}

// BatchEdit applies the passed function to the values of all given keys
// within a single transaction.  Keys that are not present are skipped, per
// batch semantics, rather than failing the batch.
func BatchEdit[K, V any](db DB, def TableDef[K, V], keys []K, edit func(K, *V)) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		for _, key := range keys {
			keyBytes, err := def.key.Encode(key)
			if err != nil {
				return err
			}

			valueBytes, err := table.Get(keyBytes)
			if err != nil {
				return err
			}
			if valueBytes == nil {
				continue
			}

			value, err := def.value.Decode(valueBytes)
			if err != nil {
				return err
			}
			edit(key, &value)

			newValueBytes, err := def.value.Encode(value)
			if err != nil {
				return err
			}
			if err := table.Put(keyBytes, newValueBytes); err != nil {
				return err
			}
		}
		return nil
	})
}

// Filter returns all entries matching the given predicate.  The table is
// scanned within a single read-only transaction and the results are decoded
// and materialized before the transaction closes, so the returned entries do
// not reference engine-internal memory.
func Filter[K, V any](db DB, def TableDef[K, V], pred func(K, V) bool) ([]Entry[K, V], error) {
	var matches []Entry[K, V]
	err := forEachEntry(db, def, func(key K, value V) error {
		if pred(key, value) {
			matches = append(matches, Entry[K, V]{Key: key, Value: value})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}

// FilterKeys returns the keys of all entries matching the given predicate.
func FilterKeys[K, V any](db DB, def TableDef[K, V], pred func(K, V) bool) ([]K, error) {
	var keys []K
	err := forEachEntry(db, def, func(key K, value V) error {
		if pred(key, value) {
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// errStopScan is used internally to stop a scan early once a match has been
// located.  It never escapes to callers.
var errStopScan = errors.New("stop scan")

// Find returns the first entry, in encoded key order, matching the given
// predicate along with whether or not a match exists.
func Find[K, V any](db DB, def TableDef[K, V], pred func(K, V) bool) (Entry[K, V], bool, error) {
	var match Entry[K, V]
	var found bool
	err := forEachEntry(db, def, func(key K, value V) error {
		if pred(key, value) {
			match = Entry[K, V]{Key: key, Value: value}
			found = true
			return errStopScan
		}
		return nil
	})
	if err != nil && err != errStopScan {
		return match, false, err
	}
	return match, found, nil
}

// Count returns the number of entries matching the given predicate.
func Count[K, V any](db DB, def TableDef[K, V], pred func(K, V) bool) (int, error) {
	var count int
	err := forEachEntry(db, def, func(key K, value V) error {
		if pred(key, value) {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// All returns every entry of the table in encoded key order.
func All[K, V any](db DB, def TableDef[K, V]) ([]Entry[K, V], error) {
	var entries []Entry[K, V]
	err := forEachEntry(db, def, func(key K, value V) error {
		entries = append(entries, Entry[K, V]{Key: key, Value: value})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Clear removes every entry from the table while keeping the table itself.
func Clear[K, V any](db DB, def TableDef[K, V]) error {
	return db.Update(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		// Collect the keys first since the table must not be mutated
		// while iterating.
		var keys [][]byte
		err = table.ForEach(func(k, v []byte) error {
			keys = append(keys, copyBytes(k))
			return nil
		})
		if err != nil {
			return err
		}

		for _, key := range keys {
			if err := table.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
}

// DropTable removes the table along with all of its data and returns whether
// or not it existed.
func DropTable[K, V any](db DB, def TableDef[K, V]) (bool, error) {
	var existed bool
	err := db.Update(func(tx Tx) error {
		var err error
		existed, err = tx.DropTable(def.Name())
		return err
	})
	return existed, err
}

// forEachEntry scans the table within a read-only transaction, decoding each
// entry and invoking fn with it.
func forEachEntry[K, V any](db DB, def TableDef[K, V], fn func(K, V) error) error {
	return db.View(func(tx Tx) error {
		table, err := openTable(tx, def)
		if err != nil {
			return err
		}

		return table.ForEach(func(k, v []byte) error {
			key, err := def.key.Decode(k)
			if err != nil {
				return err
			}
			value, err := def.value.Decode(v)
			if err != nil {
				return err
			}
			return fn(key, value)
		})
	})
}

// copyBytes returns a copy of the passed slice.  Keys handed to ForEach
// callbacks are only valid until the next iteration, so they are copied
// before being staged for deletion.
func copyBytes(slice []byte) []byte {
	ret := make([]byte, len(slice))
	copy(ret, slice)
	return ret
}
