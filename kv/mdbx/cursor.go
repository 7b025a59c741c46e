package mdbx

import (
	"sync/atomic"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/nostrkv/eventdb/kv"
)

// cursor wraps an *mdbx.Cursor as kv.Cursor / kv.RwCursor. dupCursor and
// rwDupCursor layer the duplicate-value navigation on top.
type cursor struct {
	tx *tx
	c  *mdbx.Cursor
}

func (c *cursor) get(key, val []byte, op uint) (k, v []byte, err error) {
	k, v, err = c.c.Get(key, val, op)
	if mdbx.IsNotFound(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "mdbx: cursor get")
	}
	return k, v, nil
}

func (c *cursor) First() (k, v []byte, err error) { return c.get(nil, nil, mdbx.First) }
func (c *cursor) Last() (k, v []byte, err error)  { return c.get(nil, nil, mdbx.Last) }
func (c *cursor) Next() (k, v []byte, err error)  { return c.get(nil, nil, mdbx.Next) }
func (c *cursor) Prev() (k, v []byte, err error)  { return c.get(nil, nil, mdbx.Prev) }

// Seek positions at the first key >= seek (inclusive ascending bound).
func (c *cursor) Seek(seek []byte) (k, v []byte, err error) {
	if len(seek) == 0 {
		return c.First()
	}
	return c.get(seek, nil, mdbx.SetRange)
}

func (c *cursor) SeekExact(key []byte) (k, v []byte, err error) {
	k, v, err = c.c.Get(key, nil, mdbx.Set)
	if mdbx.IsNotFound(err) {
		return nil, nil, kv.ErrKeyNotFound
	}
	if err != nil {
		return nil, nil, errors.Wrap(err, "mdbx: cursor seek exact")
	}
	return k, v, nil
}

func (c *cursor) Put(k, v []byte) error {
	if err := c.c.Put(k, v, 0); err != nil {
		return errors.Wrap(err, "mdbx: cursor put")
	}
	return nil
}

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.get(k, nil, mdbx.Set); err != nil {
		return err
	}
	return c.DeleteCurrent()
}

func (c *cursor) DeleteCurrent() error {
	if err := c.c.Del(0); err != nil && !mdbx.IsNotFound(err) {
		return errors.Wrap(err, "mdbx: cursor delete current")
	}
	return nil
}

func (c *cursor) Close() {
	c.c.Close()
	atomic.AddInt64(&c.tx.openCursors, -1)
}

// dupCursor adds duplicate-value navigation to cursor.
type dupCursor struct {
	*cursor
}

func (c *dupCursor) SeekBothRange(key, val []byte) (v []byte, err error) {
	_, v, err = c.get(key, val, mdbx.GetBothRange)
	return v, err
}

func (c *dupCursor) NextDup() (k, v []byte, err error)   { return c.get(nil, nil, mdbx.NextDup) }
func (c *dupCursor) PrevDup() (k, v []byte, err error)   { return c.get(nil, nil, mdbx.PrevDup) }
func (c *dupCursor) NextNoDup() (k, v []byte, err error) { return c.get(nil, nil, mdbx.NextNoDup) }
func (c *dupCursor) PrevNoDup() (k, v []byte, err error) { return c.get(nil, nil, mdbx.PrevNoDup) }

func (c *dupCursor) LastDup() (v []byte, err error) {
	_, v, err = c.get(nil, nil, mdbx.LastDup)
	return v, err
}

func (c *dupCursor) CountDuplicates() (uint64, error) {
	n, err := c.c.Count()
	if err != nil {
		return 0, errors.Wrap(err, "mdbx: count duplicates")
	}
	return n, nil
}

// rwDupCursor is the writable counterpart, adding DeleteExact.
type rwDupCursor struct {
	*dupCursor
}

func (c *rwDupCursor) DeleteExact(k, v []byte) error {
	_, _, err := c.c.Get(k, v, mdbx.GetBoth)
	if mdbx.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "mdbx: cursor get both")
	}
	return c.DeleteCurrent()
}
