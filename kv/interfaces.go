// Package kv defines the ordered key-value substrate the eventdb package
// is built on: named tables, snapshot-isolated transactions, and
// directional cursors over plain and duplicate-sorted tables.
//
// The interfaces mirror erigon-lib's kv package layout deliberately: any
// store that can open named tables with the flag combinations in
// TableFlags and hand out Cursor/CursorDupSort values satisfies eventdb's
// requirements. kv/mdbx is the only implementation shipped here, backed by
// libmdbx.
package kv

import "context"

// TableFlags configure a table's key/value layout inside the substrate.
type TableFlags uint

const (
	// Default is a plain table: unique keys, arbitrary-length values.
	Default TableFlags = 0x00
	// ReverseKey tells substrates that support it to compare keys from the
	// tail instead of the head. Unused by eventdb's current table set.
	ReverseKey TableFlags = 0x02
	// DupSort allows multiple values per key, iterated in value-sorted
	// order.
	DupSort TableFlags = 0x04
	// IntegerKey declares that every key in the table is a fixed 8-byte
	// big-endian integer, letting the substrate use an integer comparator.
	IntegerKey TableFlags = 0x08
	// DupFixed declares that every value in a DupSort table has the same
	// fixed length, enabling multi-value fetch optimisations.
	DupFixed TableFlags = 0x10
	// IntegerDup declares that, in a DupSort table, every value is a
	// fixed 8-byte big-endian integer.
	IntegerDup TableFlags = 0x20
	// ReverseDup mirrors ReverseKey for the duplicate-value tail.
	ReverseDup TableFlags = 0x40
)

// TableCfgItem is one entry of a TableCfg registry.
type TableCfgItem struct {
	Flags TableFlags
}

// TableCfg maps table name to its configuration. Implementations open every
// table named here (creating it if absent) when the environment is opened.
type TableCfg map[string]TableCfgItem

// RoDB is a read-only handle to an opened substrate environment.
type RoDB interface {
	// BeginRo opens a new read transaction with a consistent snapshot view.
	BeginRo(ctx context.Context) (Tx, error)
	// Close releases the environment. Safe to call once all transactions
	// derived from it have ended.
	Close() error
}

// RwDB extends RoDB with write-transaction support. At most one RwTx is
// allowed to be open for writing at a time; the substrate itself enforces
// this by blocking BeginRw until the prior writer commits or aborts.
type RwDB interface {
	RoDB
	BeginRw(ctx context.Context) (RwTx, error)
	// Update runs fn inside a single write transaction, committing on a
	// nil return and aborting otherwise.
	Update(ctx context.Context, fn func(tx RwTx) error) error
	// View runs fn inside a single read transaction.
	View(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is a read-only view of the substrate at a fixed snapshot.
type Tx interface {
	// GetOne returns the value for key in table, or nil if absent.
	GetOne(table string, key []byte) ([]byte, error)
	// Has reports whether key exists in table.
	Has(table string, key []byte) (bool, error)
	// Cursor opens a forward/backward range cursor over table.
	Cursor(table string) (Cursor, error)
	// CursorDupSort opens a cursor over a DupSort table, exposing the
	// additional duplicate-value navigation operations.
	CursorDupSort(table string) (CursorDupSort, error)
	// Rollback ends the transaction, discarding nothing (reads are never
	// buffered) but releasing the substrate snapshot.
	Rollback()
}

// RwTx is a writable transaction. Exactly one exists at a time per RwDB.
type RwTx interface {
	Tx
	// Put writes key/value into table, replacing any existing value for
	// key in a non-DupSort table, or adding a new sorted duplicate in a
	// DupSort table.
	Put(table string, key, value []byte) error
	// Delete removes key from table. In a DupSort table, if value is
	// non-nil only that specific duplicate is removed; if value is nil,
	// every duplicate under key is removed.
	Delete(table string, key, value []byte) error
	// RwCursor opens a writable cursor over table.
	RwCursor(table string) (RwCursor, error)
	RwCursorDupSort(table string) (RwCursorDupSort, error)
	// Commit finalises the transaction. It fails with ErrTxLiveIterators
	// if any Tx/Cursor derived from it (other than ones already closed)
	// is still outstanding.
	Commit() error
	// Rollback aborts the transaction, discarding all writes.
	Rollback()
}

// Cursor iterates a plain or DupSort table in key order.
type Cursor interface {
	// First positions at the smallest key, SeekExact at an exact key match,
	// Seek at the first key >= seek (nil matches everything).
	First() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(key []byte) (k, v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Close()
}

// CursorDupSort adds duplicate-value-aware navigation to Cursor.
type CursorDupSort interface {
	Cursor
	// SeekBothRange seeks to key, then the first value >= val among its
	// duplicates.
	SeekBothRange(key, val []byte) (v []byte, err error)
	// NextDup/PrevDup move within the current key's duplicates only,
	// returning (nil, nil, nil) when duplicates are exhausted.
	NextDup() (k, v []byte, err error)
	PrevDup() (k, v []byte, err error)
	// NextNoDup/PrevNoDup skip to the first duplicate of the next/previous
	// distinct key.
	NextNoDup() (k, v []byte, err error)
	PrevNoDup() (k, v []byte, err error)
	// LastDup returns the last duplicate of the current key.
	LastDup() (v []byte, err error)
	// CountDuplicates reports how many values the current key carries.
	CountDuplicates() (uint64, error)
}

// RwCursor adds mutation to Cursor.
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
	// DeleteCurrent removes the record the cursor currently sits on.
	DeleteCurrent() error
}

// RwCursorDupSort combines RwCursor and CursorDupSort, plus a delete of one
// specific duplicate.
type RwCursorDupSort interface {
	RwCursor
	CursorDupSort
	// DeleteExact removes exactly the (k, v) duplicate, leaving any other
	// duplicate of k untouched.
	DeleteExact(k, v []byte) error
}
