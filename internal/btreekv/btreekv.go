// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package btreekv provides an ordered in-memory key/value store built on a
// btree.  It backs the staged writes of in-flight transactions as well as the
// memory engine.  Clones are copy-on-write, so point-in-time views are cheap
// to take.
package btreekv

import (
	"bytes"

	"github.com/google/btree"
)

// degree is the branching factor of the backing btree.
const degree = 32

// item is a single key/value pair, ordered bytewise by key.
type item struct {
	key   []byte
	value []byte
}

// Less returns whether the item sorts before the passed item.
//
// This function is part of the btree.Item interface implementation.
func (i *item) Less(than btree.Item) bool {
	return bytes.Compare(i.key, than.(*item).key) < 0
}

// Tree is an ordered in-memory collection of key/value pairs.  It is not
// safe for concurrent use without external synchronization.
type Tree struct {
	t *btree.BTree
}

// New returns an empty tree.
func New() *Tree {
	return &Tree{t: btree.New(degree)}
}

// Len returns the number of stored pairs.
func (t *Tree) Len() int {
	return t.t.Len()
}

// Get returns the value for the given key.  Returns nil if the key does not
// exist.
func (t *Tree) Get(key []byte) []byte {
	entry := t.t.Get(&item{key: key})
	if entry == nil {
		return nil
	}
	return entry.(*item).value
}

// Has returns whether or not the key exists.
func (t *Tree) Has(key []byte) bool {
	return t.t.Has(&item{key: key})
}

// Put stores the key/value pair, overwriting any existing value.  The slices
// are copied so the caller may reuse them.
func (t *Tree) Put(key, value []byte) {
	t.t.ReplaceOrInsert(&item{key: copySlice(key), value: copySlice(value)})
}

// Delete removes the key.  Deleting a key that does not exist is a no-op.
func (t *Tree) Delete(key []byte) {
	t.t.Delete(&item{key: key})
}

// Clone returns a copy-on-write clone of the tree.  The clone and the
// original may both continue to be used and mutated independently.
func (t *Tree) Clone() *Tree {
	return &Tree{t: t.t.Clone()}
}

// ForEach invokes the passed function with every key/value pair in key
// order until the function returns false.  The tree must not be mutated from
// within the callback.
func (t *Tree) ForEach(fn func(k, v []byte) bool) {
	t.t.Ascend(func(entry btree.Item) bool {
		kv := entry.(*item)
		return fn(kv.key, kv.value)
	})
}

// copySlice returns a copy of the passed slice.
func copySlice(slice []byte) []byte {
	ret := make([]byte, len(slice))
	copy(ret, slice)
	return ret
}
