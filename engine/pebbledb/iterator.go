// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"

	"github.com/tabledb/tabledb/engine"
)

// NewIterator wraps the passed pebble iterator to satisfy the engine.Iterator
// interface.
func NewIterator(iter *pebble.Iterator) engine.Iterator {
	return &Iterator{Iterator: iter}
}

// Iterator wraps a pebble iterator and implements the engine.Iterator
// interface.
type Iterator struct {
	*pebble.Iterator
	released bool
}

// Seek moves the iterator to the first key greater than or equal to the given
// key.
func (i *Iterator) Seek(key []byte) bool {
	return i.Iterator.SeekGE(key)
}

// Key returns the key of the current pair, or nil if the iterator is
// exhausted.
func (i *Iterator) Key() []byte {
	if !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Key()
}

// Value returns the value of the current pair, or nil if the iterator is
// exhausted.
func (i *Iterator) Value() []byte {
	if !i.Iterator.Valid() {
		return nil
	}
	return i.Iterator.Value()
}

// Release releases the iterator.
func (i *Iterator) Release() {
	if !i.released {
		i.released = true
		i.Iterator.Close()
	}
}

// Error returns any accumulated error.
func (i *Iterator) Error() error {
	if i.released {
		return engine.ErrIterReleased
	}
	return i.Iterator.Error()
}
