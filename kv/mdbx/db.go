// Package mdbx is the ordered key-value substrate backing eventdb.Store:
// an environment of named libmdbx tables accessed through the kv
// interfaces, with a read-mostly table-handle cache and a
// commit-with-live-cursors guard.
package mdbx

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/erigontech/mdbx-go/mdbx"
	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/nostrkv/eventdb/kv"
)

// DB is a kv.RwDB backed by a libmdbx environment.
type DB struct {
	env    *mdbx.Env
	lock   *flock.Flock
	log    *zap.SugaredLogger
	tables kv.TableCfg

	mu   sync.RWMutex // guards dbis; double-checked on the miss path
	dbis map[string]mdbx.DBI
}

// Open acquires an exclusive advisory lock on dir, then opens (creating if
// absent) a libmdbx environment there with every table of the registry
// passed through WithTables pre-registered. A transient map-resized
// condition during open is retried with exponential backoff rather than
// surfaced immediately, since it is recoverable once another writer's
// transaction releases space; every other open error is returned at once.
func Open(dir string, log *zap.SugaredLogger, opts ...Option) (*DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(cfg)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "mdbx: create data directory")
	}

	fl := flock.New(filepath.Join(dir, "LOCK"))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: acquire directory lock")
	}
	if !locked {
		return nil, errors.Errorf("mdbx: data directory %s is already locked by another process", dir)
	}

	env, err := mdbx.NewEnv(mdbx.Label("eventdb"))
	if err != nil {
		_ = fl.Unlock()
		return nil, errors.Wrap(err, "mdbx: create environment")
	}
	if err := env.SetOption(mdbx.OptMaxDB, uint64(cfg.maxTables)); err != nil {
		_ = fl.Unlock()
		return nil, errors.Wrap(err, "mdbx: set max tables")
	}
	if err := env.SetOption(mdbx.OptMaxReaders, uint64(cfg.maxReaders)); err != nil {
		_ = fl.Unlock()
		return nil, errors.Wrap(err, "mdbx: set max readers")
	}
	if err := env.SetGeometry(-1, -1, int(cfg.mapSize), -1, -1, -1); err != nil {
		_ = fl.Unlock()
		return nil, errors.Wrap(err, "mdbx: set geometry")
	}

	flags := uint(mdbx.NoReadahead)
	if cfg.readOnly {
		flags |= uint(mdbx.Readonly)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = 10 * time.Second
	openErr := backoff.Retry(func() error {
		err := env.Open(dir, flags, 0o644)
		if err != nil && mdbx.IsMapResized(err) {
			log.Warnw("mdbx: map resized during open, retrying", "dir", dir)
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}, b)
	if openErr != nil {
		env.Close()
		_ = fl.Unlock()
		return nil, errors.Wrap(openErr, "mdbx: open environment")
	}

	db := &DB{
		env:    env,
		lock:   fl,
		log:    log,
		tables: cfg.tables,
		dbis:   make(map[string]mdbx.DBI, len(cfg.tables)),
	}

	if !cfg.readOnly {
		if err := db.createTables(); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}

func (db *DB) createTables() error {
	return db.env.Update(func(txn *mdbx.Txn) error {
		for _, name := range kv.SortedNames(db.tables) {
			dbi, err := txn.OpenDBI(name, tableDBIFlags(db.tables[name].Flags)|mdbx.Create, nil, nil)
			if err != nil {
				return errors.Wrapf(err, "mdbx: create table %s", name)
			}
			db.mu.Lock()
			db.dbis[name] = dbi
			db.mu.Unlock()
		}
		return nil
	})
}

func tableDBIFlags(f kv.TableFlags) uint {
	var out uint
	if f&kv.DupSort != 0 {
		out |= mdbx.DupSort
	}
	if f&kv.IntegerKey != 0 {
		out |= mdbx.IntegerKey
	}
	if f&kv.DupFixed != 0 {
		out |= mdbx.DupFixed
	}
	if f&kv.IntegerDup != 0 {
		out |= mdbx.IntegerDup
	}
	if f&kv.ReverseKey != 0 {
		out |= mdbx.ReverseKey
	}
	if f&kv.ReverseDup != 0 {
		out |= mdbx.ReverseDup
	}
	return out
}

// dbiFor resolves a table name to its DBI handle, opening it on first use
// if it was registered in the table config but missed at startup (e.g. a
// read-only handle opened before a writer created the table). The lookup is
// a classic double-checked read-then-upgrade: a cheap RLock first, and only
// on a miss does it take the exclusive Lock, re-check, and open+cache.
func (db *DB) dbiFor(txn *mdbx.Txn, name string) (mdbx.DBI, error) {
	db.mu.RLock()
	dbi, ok := db.dbis[name]
	db.mu.RUnlock()
	if ok {
		return dbi, nil
	}

	db.mu.Lock()
	defer db.mu.Unlock()
	if dbi, ok := db.dbis[name]; ok {
		return dbi, nil
	}

	cfgItem, ok := db.tables[name]
	if !ok {
		return 0, kv.ErrTableNotFound
	}
	dbi, err := txn.OpenDBI(name, tableDBIFlags(cfgItem.Flags), nil, nil)
	if err != nil {
		return 0, errors.Wrapf(err, "mdbx: open table %s", name)
	}
	db.dbis[name] = dbi
	return dbi, nil
}

// BeginRo opens a read transaction with a consistent MVCC snapshot.
func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, mdbx.Readonly)
	if err != nil {
		return nil, errors.Wrap(err, "mdbx: begin read transaction")
	}
	return &tx{db: db, txn: txn}, nil
}

// BeginRw opens the single allowed write transaction; the substrate blocks
// the caller until any prior writer commits or aborts. libmdbx binds a
// write transaction to the OS thread that created it, so the goroutine is
// pinned until Commit or Rollback.
func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	runtime.LockOSThread()
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		runtime.UnlockOSThread()
		return nil, errors.Wrap(err, "mdbx: begin write transaction")
	}
	return &rwTx{tx: tx{db: db, txn: txn}}, nil
}

func (db *DB) View(ctx context.Context, fn func(kv.Tx) error) error {
	t, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer t.Rollback()
	return fn(t)
}

func (db *DB) Update(ctx context.Context, fn func(kv.RwTx) error) error {
	t, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	if err := fn(t); err != nil {
		t.Rollback()
		return err
	}
	return t.Commit()
}

// Close closes the environment and releases the directory lock. Callers
// must ensure every transaction derived from this DB has already ended.
func (db *DB) Close() error {
	db.env.Close()
	if db.lock != nil {
		return db.lock.Unlock()
	}
	return nil
}
