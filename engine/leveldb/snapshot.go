// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package leveldb

import (
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/tabledb/tabledb/engine"
)

// NewSnapshot wraps the passed goleveldb snapshot to satisfy the
// engine.Snapshot interface.
func NewSnapshot(snapshot *leveldb.Snapshot) engine.Snapshot {
	return &Snapshot{Snapshot: snapshot}
}

// Snapshot wraps a goleveldb snapshot and implements the engine.Snapshot
// interface.
type Snapshot struct {
	*leveldb.Snapshot
}

// convertSnapErr normalizes goleveldb snapshot errors to the engine contract.
func convertSnapErr(err error) error {
	if err == leveldb.ErrSnapshotReleased {
		return fmt.Errorf("%w: %v", engine.ErrSnapshotReleased, err)
	}
	return err
}

// Has returns whether or not the key exists in the snapshot.
func (s *Snapshot) Has(key []byte) (bool, error) {
	has, err := s.Snapshot.Has(key, nil)
	if err != nil {
		return false, convertSnapErr(err)
	}
	return has, nil
}

// Get returns the value for the given key.  A missing key returns nil with no
// error.
func (s *Snapshot) Get(key []byte) ([]byte, error) {
	val, err := s.Snapshot.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	} else if err != nil {
		return nil, convertSnapErr(err)
	}
	return val, nil
}

// Release releases the snapshot.
func (s *Snapshot) Release() {
	s.Snapshot.Release()
}

// NewIterator returns an iterator over the given key range of the snapshot.
func (s *Snapshot) NewIterator(slice *engine.Range) engine.Iterator {
	return s.Snapshot.NewIterator(&util.Range{
		Start: slice.Start,
		Limit: slice.Limit,
	}, nil)
}
