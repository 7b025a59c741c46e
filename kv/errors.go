package kv

import "errors"

var (
	// ErrTxLiveIterators is returned by RwTx.Commit when a Cursor derived
	// from the same writer is still open. Readers may outlive a commit;
	// cursors belonging to that very writer may not.
	ErrTxLiveIterators = errors.New("kv: commit attempted with live iterators")
	// ErrKeyNotFound is returned by Cursor.SeekExact on a precise miss. It
	// is not used for absent GetOne results, which return a nil slice.
	ErrKeyNotFound = errors.New("kv: key not found")
	// ErrTableNotFound is returned when a table name was never registered
	// in the TableCfg the environment was opened with.
	ErrTableNotFound = errors.New("kv: table not registered")
)
