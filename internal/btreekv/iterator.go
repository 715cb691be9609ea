// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package btreekv

import (
	"bytes"

	"github.com/google/btree"
)

// Iterator iterates over the pairs of a tree in key order within the
// half-open range [start, limit).  A nil start or limit leaves that end of
// the range unbounded.
//
// The btree provides no cursor primitive, so every movement performs a fresh
// bounded descent from the current key.  As a consequence the iterator
// tolerates mutations of the tree between movements, which is required for
// staged-write trees that change while a cursor is open.
type Iterator struct {
	tree     *Tree
	start    []byte
	limit    []byte
	current  *item
	released bool
}

// Iterator returns an iterator over the given key range of the tree.
func (t *Tree) Iterator(start, limit []byte) *Iterator {
	return &Iterator{tree: t, start: start, limit: limit}
}

// ascendFrom positions the iterator at the first in-range pair with a key
// greater than or equal to the pivot, optionally skipping an exact match.
func (iter *Iterator) ascendFrom(pivot []byte, skipExact bool) bool {
	iter.current = nil
	fn := func(entry btree.Item) bool {
		kv := entry.(*item)
		if skipExact && bytes.Equal(kv.key, pivot) {
			return true
		}
		if iter.limit != nil && bytes.Compare(kv.key, iter.limit) >= 0 {
			return false
		}
		iter.current = kv
		return false
	}
	if pivot == nil {
		iter.tree.t.Ascend(fn)
	} else {
		iter.tree.t.AscendGreaterOrEqual(&item{key: pivot}, fn)
	}
	return iter.current != nil
}

// descendFrom positions the iterator at the last in-range pair with a key
// less than or equal to the pivot, optionally skipping an exact match.
func (iter *Iterator) descendFrom(pivot []byte, skipExact bool) bool {
	iter.current = nil
	fn := func(entry btree.Item) bool {
		kv := entry.(*item)
		if skipExact && bytes.Equal(kv.key, pivot) {
			return true
		}
		if iter.start != nil && bytes.Compare(kv.key, iter.start) < 0 {
			return false
		}
		iter.current = kv
		return false
	}
	if pivot == nil {
		iter.tree.t.Descend(fn)
	} else {
		iter.tree.t.DescendLessOrEqual(&item{key: pivot}, fn)
	}
	return iter.current != nil
}

// First moves the iterator to the first in-range pair and returns whether it
// exists.
func (iter *Iterator) First() bool {
	if iter.released {
		return false
	}
	return iter.ascendFrom(iter.start, false)
}

// Last moves the iterator to the last in-range pair and returns whether it
// exists.
func (iter *Iterator) Last() bool {
	if iter.released {
		return false
	}
	if iter.limit == nil {
		return iter.descendFrom(nil, false)
	}
	// The limit is exclusive, so an exact match on it is skipped.
	return iter.descendFrom(iter.limit, true)
}

// Seek moves the iterator to the first in-range pair with a key greater than
// or equal to the given key and returns whether it exists.
func (iter *Iterator) Seek(key []byte) bool {
	if iter.released {
		return false
	}
	if iter.start != nil && bytes.Compare(key, iter.start) < 0 {
		key = iter.start
	}
	return iter.ascendFrom(key, false)
}

// Next moves the iterator to the next pair and returns whether it exists.
func (iter *Iterator) Next() bool {
	if iter.released || iter.current == nil {
		return false
	}
	return iter.ascendFrom(iter.current.key, true)
}

// Prev moves the iterator to the previous pair and returns whether it exists.
func (iter *Iterator) Prev() bool {
	if iter.released || iter.current == nil {
		return false
	}
	return iter.descendFrom(iter.current.key, true)
}

// Valid returns whether the iterator is positioned at a pair.
func (iter *Iterator) Valid() bool {
	return !iter.released && iter.current != nil
}

// Error returns nil.  It is only provided to satisfy the engine iterator
// contract as there are no errors for this memory-only structure.
func (iter *Iterator) Error() error {
	return nil
}

// Key returns the key of the current pair, or nil if done.
func (iter *Iterator) Key() []byte {
	if iter.released || iter.current == nil {
		return nil
	}
	return iter.current.key
}

// Value returns the value of the current pair, or nil if done.
func (iter *Iterator) Value() []byte {
	if iter.released || iter.current == nil {
		return nil
	}
	return iter.current.value
}

// Release releases the iterator.
func (iter *Iterator) Release() {
	iter.released = true
	iter.current = nil
	iter.tree = nil
}
