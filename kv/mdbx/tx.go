package mdbx

import (
	"runtime"
	"sync/atomic"

	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/pkg/errors"

	"github.com/nostrkv/eventdb/kv"
)

// tx is the read-only kv.Tx implementation. rwTx embeds it and adds
// mutation. openCursors tracks outstanding Cursor/RwCursor handles derived
// from this transaction so Commit can refuse to finalise under a still-live
// cursor.
type tx struct {
	db          *DB
	txn         *mdbx.Txn
	openCursors int64
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbiFor(t.txn, table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if mdbx.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "mdbx: get from %s", table)
	}
	return v, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	dbi, err := t.db.dbiFor(t.txn, table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, errors.Wrapf(err, "mdbx: open cursor on %s", table)
	}
	atomic.AddInt64(&t.openCursors, 1)
	return &cursor{tx: t, c: c}, nil
}

func (t *tx) CursorDupSort(table string) (kv.CursorDupSort, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return &dupCursor{cursor: c.(*cursor)}, nil
}

func (t *tx) Rollback() {
	t.txn.Abort()
}

// rwTx is the writable kv.RwTx implementation.
type rwTx struct {
	tx
}

func (t *rwTx) Put(table string, key, value []byte) error {
	dbi, err := t.db.dbiFor(t.txn, table)
	if err != nil {
		return err
	}
	if err := t.txn.Put(dbi, key, value, 0); err != nil {
		return errors.Wrapf(err, "mdbx: put into %s", table)
	}
	return nil
}

func (t *rwTx) Delete(table string, key, value []byte) error {
	dbi, err := t.db.dbiFor(t.txn, table)
	if err != nil {
		return err
	}
	if err := t.txn.Del(dbi, key, value); err != nil && !mdbx.IsNotFound(err) {
		return errors.Wrapf(err, "mdbx: delete from %s", table)
	}
	return nil
}

func (t *rwTx) RwCursor(table string) (kv.RwCursor, error) {
	c, err := t.Cursor(table)
	if err != nil {
		return nil, err
	}
	return c.(*cursor), nil
}

func (t *rwTx) RwCursorDupSort(table string) (kv.RwCursorDupSort, error) {
	c, err := t.CursorDupSort(table)
	if err != nil {
		return nil, err
	}
	return &rwDupCursor{dupCursor: c.(*dupCursor)}, nil
}

func (t *rwTx) Commit() error {
	if atomic.LoadInt64(&t.openCursors) > 0 {
		return kv.ErrTxLiveIterators
	}
	defer runtime.UnlockOSThread()
	if _, err := t.txn.Commit(); err != nil {
		return errors.Wrap(err, "mdbx: commit")
	}
	return nil
}

func (t *rwTx) Rollback() {
	t.txn.Abort()
	runtime.UnlockOSThread()
}
