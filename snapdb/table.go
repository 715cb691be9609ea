// Copyright (c) 2024 The tabledb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package snapdb

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/tabledb/tabledb"
	"github.com/tabledb/tabledb/engine"
)

var (
	// tableIndexPrefix is the prefix used for rows which map a table name
	// to its id.
	tableIndexPrefix = []byte("tidx")

	// tableSchemaPrefix is the prefix used for rows which store the codec
	// schema a table was declared with.
	tableSchemaPrefix = []byte("tsch")

	// curTableIDKey is the row used to track the current table id counter.
	curTableIDKey = []byte("tcid")

	// byteOrder is the preferred byte order used through the driver.
	byteOrder = binary.BigEndian
)

// tableIndexKey returns the key of the row that maps the given table name to
// its id.
func tableIndexKey(name string) []byte {
	key := make([]byte, 0, len(tableIndexPrefix)+len(name))
	key = append(key, tableIndexPrefix...)
	return append(key, name...)
}

// tableSchemaKey returns the key of the row that stores the schema for the
// given table name.
func tableSchemaKey(name string) []byte {
	key := make([]byte, 0, len(tableSchemaPrefix)+len(name))
	key = append(key, tableSchemaPrefix...)
	return append(key, name...)
}

// serializeSchema returns the serialized form of the passed schema.  The two
// codec names are joined with a NUL byte, which codec names can not contain.
func serializeSchema(schema tabledb.Schema) []byte {
	serialized := make([]byte, 0, len(schema.KeyCodec)+len(schema.ValueCodec)+1)
	serialized = append(serialized, schema.KeyCodec...)
	serialized = append(serialized, 0x00)
	return append(serialized, schema.ValueCodec...)
}

// deserializeSchema decodes a schema row produced by serializeSchema.
func deserializeSchema(serialized []byte) (tabledb.Schema, error) {
	sep := bytes.IndexByte(serialized, 0x00)
	if sep < 0 {
		str := "malformed table schema row"
		return tabledb.Schema{}, makeDbErr(tabledb.ErrCorruption, str,
			nil)
	}
	return tabledb.Schema{
		KeyCodec:   string(serialized[:sep]),
		ValueCodec: string(serialized[sep+1:]),
	}, nil
}

// nextTableID returns the next table id to use and stages the incremented
// counter to be written on commit.
func (tx *transaction) nextTableID() ([4]byte, error) {
	var id [4]byte
	curIDBytes, err := tx.fetchKey(curTableIDKey)
	if err != nil {
		return id, err
	}

	// Table ids start at one so a zero id always means the table does not
	// exist.
	var curID uint32
	if curIDBytes != nil {
		if len(curIDBytes) != 4 {
			str := "malformed table id counter row"
			return id, makeDbErr(tabledb.ErrCorruption, str, nil)
		}
		curID = byteOrder.Uint32(curIDBytes)
	}
	byteOrder.PutUint32(id[:], curID+1)
	if err := tx.putKey(curTableIDKey, id[:]); err != nil {
		return id, err
	}
	return id, nil
}

// Table opens the table with the given name and schema.  When the transaction
// is writable and the table does not exist, it is created.  When the
// transaction is read-only and the table does not exist, an empty read-only
// table handle is returned.
//
// Returns the following errors as required by the interface contract:
//   - ErrTableNameRequired if the name is blank
//   - ErrSchemaMismatch if the table exists with a different schema
//   - ErrTxClosed if the transaction has already been closed
//
// This function is part of the tabledb.Tx interface implementation.
func (tx *transaction) Table(name string, schema tabledb.Schema) (tabledb.Table, error) {
	if err := tx.checkClosed(); err != nil {
		return nil, err
	}
	if name == "" {
		str := "a table name is required"
		return nil, makeDbErr(tabledb.ErrTableNameRequired, str, nil)
	}

	idBytes, err := tx.fetchKey(tableIndexKey(name))
	if err != nil {
		return nil, err
	}

	// Create the table when it does not exist and the transaction is
	// writable.  For read-only transactions a handle over the empty id is
	// returned which reports every key as absent.
	if idBytes == nil {
		if !tx.writable {
			return &table{tx: tx, name: name}, nil
		}

		id, err := tx.nextTableID()
		if err != nil {
			return nil, err
		}
		if err := tx.putKey(tableIndexKey(name), id[:]); err != nil {
			return nil, err
		}
		serialized := serializeSchema(schema)
		if err := tx.putKey(tableSchemaKey(name), serialized); err != nil {
			return nil, err
		}

		log.Tracef("Created table %q with id %d", name,
			byteOrder.Uint32(id[:]))
		return &table{tx: tx, name: name, id: id, exists: true}, nil
	}
	if len(idBytes) != 4 {
		str := fmt.Sprintf("malformed table index row for table %q",
			name)
		return nil, makeDbErr(tabledb.ErrCorruption, str, nil)
	}

	// The table exists, so reject the open when the declared schema does
	// not match the one it was created with.
	schemaBytes, err := tx.fetchKey(tableSchemaKey(name))
	if err != nil {
		return nil, err
	}
	if schemaBytes == nil {
		str := fmt.Sprintf("missing schema row for table %q", name)
		return nil, makeDbErr(tabledb.ErrCorruption, str, nil)
	}
	storedSchema, err := deserializeSchema(schemaBytes)
	if err != nil {
		return nil, err
	}
	if storedSchema != schema {
		str := fmt.Sprintf("table %q was created with schema %v, not "+
			"%v", name, storedSchema, schema)
		return nil, makeDbErr(tabledb.ErrSchemaMismatch, str, nil)
	}

	var id [4]byte
	copy(id[:], idBytes)
	return &table{tx: tx, name: name, id: id, exists: true}, nil
}

// DropTable removes the table with the given name along with all of its data
// and returns whether or not the table existed.
//
// Returns ErrTxNotWritable if attempted against a read-only transaction and
// ErrTxClosed if the transaction has already been closed.
//
// This function is part of the tabledb.Tx interface implementation.
func (tx *transaction) DropTable(name string) (bool, error) {
	if err := tx.checkClosed(); err != nil {
		return false, err
	}
	if !tx.writable {
		str := "drop table requires a writable database transaction"
		return false, makeDbErr(tabledb.ErrTxNotWritable, str, nil)
	}
	if name == "" {
		str := "a table name is required"
		return false, makeDbErr(tabledb.ErrTableNameRequired, str, nil)
	}

	idBytes, err := tx.fetchKey(tableIndexKey(name))
	if err != nil {
		return false, err
	}
	if idBytes == nil {
		return false, nil
	}
	if len(idBytes) != 4 {
		str := fmt.Sprintf("malformed table index row for table %q",
			name)
		return false, makeDbErr(tabledb.ErrCorruption, str, nil)
	}

	// Stage the removal of all data rows of the table followed by its
	// index and schema rows.
	var id [4]byte
	copy(id[:], idBytes)
	handle := &table{tx: tx, name: name, id: id, exists: true}
	var dataKeys [][]byte
	err = handle.ForEach(func(k, v []byte) error {
		dataKeys = append(dataKeys, handle.dataKey(k))
		return nil
	})
	if err != nil {
		return false, err
	}
	for _, dataKey := range dataKeys {
		tx.deleteKey(dataKey)
	}
	tx.deleteKey(tableIndexKey(name))
	tx.deleteKey(tableSchemaKey(name))

	log.Tracef("Dropped table %q", name)
	return true, nil
}

// table represents a single named table of raw key/value pairs within a
// transaction and implements the tabledb.Table interface.  Every data row of
// the table shares a four byte prefix derived from the table id, which keeps
// tables distinct and their rows clustered for range scans.
type table struct {
	tx     *transaction
	name   string
	id     [4]byte
	exists bool
}

// Enforce table implements the tabledb.Table interface.
var _ tabledb.Table = (*table)(nil)

// dataKey returns the engine-level key for the given user key by prepending
// the table id prefix.
func (t *table) dataKey(key []byte) []byte {
	dataKey := make([]byte, 0, 4+len(key))
	dataKey = append(dataKey, t.id[:]...)
	return append(dataKey, key...)
}

// Get returns the value for the given key.  Returns nil with no error if the
// key does not exist in the table.
//
// NOTE: The value returned by this function is only valid during a
// transaction.  It must not be modified by the caller.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) Get(key []byte) ([]byte, error) {
	if err := t.tx.checkClosed(); err != nil {
		return nil, err
	}
	if len(key) == 0 || !t.exists {
		return nil, nil
	}
	return t.tx.fetchKey(t.dataKey(key))
}

// Has returns whether or not the given key exists in the table.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) Has(key []byte) (bool, error) {
	if err := t.tx.checkClosed(); err != nil {
		return false, err
	}
	if len(key) == 0 || !t.exists {
		return false, nil
	}
	return t.tx.hasKey(t.dataKey(key))
}

// Put saves the specified key/value pair to the table.  Keys that do not
// already exist are added and keys that already exist are overwritten.
//
// Returns ErrKeyRequired if the key is empty, ErrTxNotWritable if attempted
// against a read-only transaction, and ErrTxClosed if the transaction has
// already been closed.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) Put(key, value []byte) error {
	if err := t.tx.checkClosed(); err != nil {
		return err
	}
	if !t.tx.writable {
		str := "setting a key requires a writable database transaction"
		return makeDbErr(tabledb.ErrTxNotWritable, str, nil)
	}
	if len(key) == 0 {
		str := "put requires a key"
		return makeDbErr(tabledb.ErrKeyRequired, str, nil)
	}
	return t.tx.putKey(t.dataKey(key), value)
}

// Delete removes the specified key from the table.  Deleting a key that does
// not exist does not return an error.
//
// Returns ErrTxNotWritable if attempted against a read-only transaction and
// ErrTxClosed if the transaction has already been closed.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) Delete(key []byte) error {
	if err := t.tx.checkClosed(); err != nil {
		return err
	}
	if !t.tx.writable {
		str := "deleting a value requires a writable database " +
			"transaction"
		return makeDbErr(tabledb.ErrTxNotWritable, str, nil)
	}
	if len(key) == 0 {
		return nil
	}
	t.tx.deleteKey(t.dataKey(key))
	return nil
}

// Cursor returns a new cursor, allowing for iteration over the table's
// key/value pairs in forward or backward order.
//
// You must seek to a position using the First, Last, or Seek functions before
// calling the Next, Prev, Key, or Value functions.  Failure to do so will
// result in the same return values as an exhausted cursor.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) Cursor() tabledb.Cursor {
	if err := t.tx.checkClosed(); err != nil || !t.exists {
		return &cursor{table: t}
	}

	// Create the cursor for the data key range of the table over both the
	// snapshot and the staged write state so uncommitted writes within
	// the same transaction are visible to the scan.
	keyRange := engine.BytesPrefix(t.id[:])
	dbIter := t.tx.snapshot.NewIterator(keyRange)
	pendingIter := t.tx.pendingKeys.Iterator(keyRange.Start, keyRange.Limit)
	return &cursor{table: t, dbIter: dbIter, pendingIter: pendingIter}
}

// ForEach invokes the passed function with every key/value pair in the table.
// Returning a non-nil error from the function stops the iteration and
// propagates the error.
//
// NOTE: The slices passed to the function are only valid until the next
// iteration.  It is not safe to mutate the table while iterating.
//
// This function is part of the tabledb.Table interface implementation.
func (t *table) ForEach(fn func(k, v []byte) error) error {
	if err := t.tx.checkClosed(); err != nil {
		return err
	}
	if !t.exists {
		return nil
	}

	c := t.Cursor().(*cursor)
	defer c.release()
	for ok := c.first(); ok; ok = c.next() {
		if err := fn(c.rawKey(), c.rawValue()); err != nil {
			return err
		}
	}
	return c.error()
}

// cursor iterates over the key/value pairs of a table.  It merges an
// iterator over the transaction snapshot with an iterator over the staged
// writes of the transaction so the view matches what a commit would produce.
// It implements the tabledb.Cursor interface.
type cursor struct {
	table       *table
	dbIter      engine.Iterator
	pendingIter engine.Iterator
	currentIter engine.Iterator
}

// Enforce cursor implements the tabledb.Cursor interface.
var _ tabledb.Cursor = (*cursor)(nil)

// exhausted returns whether or not the cursor can no longer produce pairs,
// which happens when it was created without backing iterators for an absent
// table or when its transaction has since been closed.
func (c *cursor) exhausted() bool {
	return c.table.tx.closed || c.dbIter == nil
}

// release releases the backing iterators.
func (c *cursor) release() {
	if c.dbIter != nil {
		c.dbIter.Release()
	}
	if c.pendingIter != nil {
		c.pendingIter.Release()
	}
	c.currentIter = nil
}

// error returns the accumulated error of the snapshot iterator, if any.
func (c *cursor) error() error {
	if c.dbIter == nil {
		return nil
	}
	if err := c.dbIter.Error(); err != nil {
		return convertErr("failed during table scan", err)
	}
	return nil
}

// skipPendingUpdates skips any keys at the current snapshot iterator position
// that are being updated or deleted by the transaction.  The forwards flag
// indicates the direction the cursor is moving.
func (c *cursor) skipPendingUpdates(forwards bool) {
	tx := c.table.tx
	for c.dbIter.Valid() {
		key := c.dbIter.Key()
		if !tx.pendingRemove.Has(key) && !tx.pendingKeys.Has(key) {
			break
		}

		var ok bool
		if forwards {
			ok = c.dbIter.Next()
		} else {
			ok = c.dbIter.Prev()
		}
		if !ok {
			break
		}
	}
}

// chooseIterator first skips any entries in the snapshot iterator that are
// being updated by the transaction and sets the current iterator to the
// appropriate iterator depending on their validity and the order they compare
// in while taking into account the direction flag.  When the cursor is being
// moved forwards and both iterators are valid, the iterator with the smaller
// key is chosen and vice versa when the cursor is being moved backwards.
func (c *cursor) chooseIterator(forwards bool) bool {
	// Skip any keys at the current database iterator position that are
	// being updated by the transaction.
	c.skipPendingUpdates(forwards)

	// When both iterators are exhausted, the cursor is exhausted too.
	if !c.dbIter.Valid() && !c.pendingIter.Valid() {
		c.currentIter = nil
		return false
	}

	// Choose the database iterator when the pending keys iterator is
	// exhausted.
	if !c.pendingIter.Valid() {
		c.currentIter = c.dbIter
		return true
	}

	// Choose the pending keys iterator when the database iterator is
	// exhausted.
	if !c.dbIter.Valid() {
		c.currentIter = c.pendingIter
		return true
	}

	// Both iterators are valid, so choose the iterator with either the
	// smaller or larger key depending on the direction.
	compare := bytes.Compare(c.dbIter.Key(), c.pendingIter.Key())
	if (forwards && compare > 0) || (!forwards && compare < 0) {
		c.currentIter = c.pendingIter
	} else {
		c.currentIter = c.dbIter
	}
	return true
}

// first positions the cursor at the first key/value pair and returns whether
// or not the pair exists.
func (c *cursor) first() bool {
	if c.exhausted() {
		return false
	}
	c.dbIter.First()
	c.pendingIter.First()
	return c.chooseIterator(true)
}

// last positions the cursor at the last key/value pair and returns whether or
// not the pair exists.
func (c *cursor) last() bool {
	if c.exhausted() {
		return false
	}
	c.dbIter.Last()
	c.pendingIter.Last()
	return c.chooseIterator(false)
}

// next moves the cursor one key/value pair forward and returns whether or not
// the pair exists.
func (c *cursor) next() bool {
	if c.exhausted() || c.currentIter == nil {
		return false
	}
	c.currentIter.Next()
	return c.chooseIterator(true)
}

// prev moves the cursor one key/value pair backward and returns whether or
// not the pair exists.
func (c *cursor) prev() bool {
	if c.exhausted() || c.currentIter == nil {
		return false
	}
	c.currentIter.Prev()
	return c.chooseIterator(false)
}

// seek positions the cursor at the first key/value pair that is greater than
// or equal to the passed seek key.  Returns false if no suitable key was
// found.
func (c *cursor) seek(seek []byte) bool {
	if c.exhausted() {
		return false
	}
	seekKey := c.table.dataKey(seek)
	c.dbIter.Seek(seekKey)
	c.pendingIter.Seek(seekKey)
	return c.chooseIterator(true)
}

// rawKey returns the current key the cursor is pointing to without stripping
// the table id prefix or copying.  The slice is only valid until the cursor
// is moved.
func (c *cursor) rawKey() []byte {
	if c.currentIter == nil {
		return nil
	}
	return c.currentIter.Key()[4:]
}

// rawValue returns the current value the cursor is pointing to without
// copying.  The slice is only valid until the cursor is moved.
func (c *cursor) rawValue() []byte {
	if c.currentIter == nil {
		return nil
	}
	return c.currentIter.Value()
}

// First positions the cursor at the first key/value pair and returns whether
// or not the pair exists.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) First() bool {
	return c.first()
}

// Last positions the cursor at the last key/value pair and returns whether or
// not the pair exists.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Last() bool {
	return c.last()
}

// Next moves the cursor one key/value pair forward and returns whether or not
// the pair exists.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Next() bool {
	return c.next()
}

// Prev moves the cursor one key/value pair backward and returns whether or
// not the pair exists.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Prev() bool {
	return c.prev()
}

// Seek positions the cursor at the first key/value pair that is greater than
// or equal to the passed seek key.  Returns false if no suitable key was
// found.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Seek(seek []byte) bool {
	return c.seek(seek)
}

// Key returns the current key the cursor is pointing to with the table id
// prefix stripped, or nil when the cursor is exhausted.  The returned slice
// is a copy and remains valid after the cursor is moved.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Key() []byte {
	if c.exhausted() || c.currentIter == nil {
		return nil
	}
	return copySlice(c.rawKey())
}

// Value returns the current value the cursor is pointing to, or nil when the
// cursor is exhausted.  The returned slice is a copy and remains valid after
// the cursor is moved.
//
// This function is part of the tabledb.Cursor interface implementation.
func (c *cursor) Value() []byte {
	if c.exhausted() || c.currentIter == nil {
		return nil
	}
	return copySlice(c.rawValue())
}

// copySlice returns a copy of the passed slice.
func copySlice(slice []byte) []byte {
	ret := make([]byte, len(slice))
	copy(ret, slice)
	return ret
}
