// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pebbledb

import (
	"github.com/cockroachdb/pebble"

	"github.com/tabledb/tabledb/engine"
)

// NewSnapshot wraps the passed pebble snapshot to satisfy the engine.Snapshot
// interface.
func NewSnapshot(snapshot *pebble.Snapshot) engine.Snapshot {
	return &Snapshot{Snapshot: snapshot}
}

// Snapshot wraps a pebble snapshot and implements the engine.Snapshot
// interface.
type Snapshot struct {
	*pebble.Snapshot
	released bool
}

// Has returns whether or not the key exists in the snapshot.
func (s *Snapshot) Has(key []byte) (bool, error) {
	if s.released {
		return false, engine.ErrSnapshotReleased
	}

	val, err := s.Get(key)
	if err != nil {
		return false, err
	}
	return val != nil, nil
}

// Get returns the value for the given key.  A missing key returns nil with no
// error.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	if s.released {
		return nil, engine.ErrSnapshotReleased
	}

	ori, closer, err := s.Snapshot.Get(key)
	if err == pebble.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	defer closer.Close()

	val := make([]byte, len(ori))
	copy(val, ori)
	return val, nil
}

// Release releases the snapshot.
func (s *Snapshot) Release() {
	if !s.released {
		s.released = true
		s.Close()
	}
}

// NewIterator returns an iterator over the given key range of the snapshot.
func (s *Snapshot) NewIterator(slice *engine.Range) engine.Iterator {
	if s.released {
		return nil
	}

	iter, _ := s.Snapshot.NewIter(&pebble.IterOptions{
		LowerBound: slice.Start,
		UpperBound: slice.Limit,
	})
	return NewIterator(iter)
}
