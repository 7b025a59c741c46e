package eventdb

import (
	"context"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/nostrkv/eventdb/kv"
	"github.com/nostrkv/eventdb/kv/mdbx"
)

// Options configures a Store, following the same functional-options idiom
// the substrate's environment builder uses.
type Options struct {
	Dir              string
	MapSize          int64
	MaxReaders       int
	MaxTables        int
	ReadOnly         bool
	CompressPayloads bool
	IndexCacheSize   int
	Logger           *zap.SugaredLogger
}

// Option mutates an Options value.
type Option func(*Options)

func WithDir(dir string) Option { return func(o *Options) { o.Dir = dir } }

func WithMapSize(bytes int64) Option { return func(o *Options) { o.MapSize = bytes } }

func WithMaxReaders(n int) Option { return func(o *Options) { o.MaxReaders = n } }

func WithMaxTables(n int) Option { return func(o *Options) { o.MaxTables = n } }

func WithReadOnly() Option { return func(o *Options) { o.ReadOnly = true } }

func WithCompressPayloads(enabled bool) Option {
	return func(o *Options) { o.CompressPayloads = enabled }
}

func WithIndexCacheSize(n int) Option { return func(o *Options) { o.IndexCacheSize = n } }

func WithLogger(l *zap.SugaredLogger) Option { return func(o *Options) { o.Logger = l } }

func defaultOptions() Options {
	return Options{
		MapSize:        1 << 30,
		MaxReaders:     4096,
		MaxTables:      32,
		IndexCacheSize: 4096,
	}
}

// Store is the top-level handle applications open: the substrate
// environment and the in-memory UID counter. The archived-index cache is
// not held here; Query creates one per call, sized by IndexCacheSize.
type Store struct {
	db   kv.RwDB
	opts Options
	log  *zap.SugaredLogger

	uidCounter atomic.Uint64
}

// Open opens (creating if absent) the data directory and bootstraps the
// UID counter from the largest key currently in data: one reverse cursor
// step, no dedicated "next UID" key to contend on.
func Open(opts ...Option) (*Store, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt(&cfg)
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var mopts []mdbx.Option
	mopts = append(mopts, mdbx.WithTables(Tables))
	if cfg.MapSize > 0 {
		mopts = append(mopts, mdbx.WithMapSize(cfg.MapSize))
	}
	if cfg.MaxReaders > 0 {
		mopts = append(mopts, mdbx.WithMaxReaders(cfg.MaxReaders))
	}
	if cfg.MaxTables > 0 {
		mopts = append(mopts, mdbx.WithMaxTables(cfg.MaxTables))
	}
	if cfg.ReadOnly {
		mopts = append(mopts, mdbx.WithReadOnly())
	}

	db, err := mdbx.Open(cfg.Dir, log, mopts...)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, opts: cfg, log: log}
	if err := s.bootstrapUID(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) bootstrapUID() error {
	return s.db.View(context.Background(), func(tx kv.Tx) error {
		c, err := tx.Cursor(TableData)
		if err != nil {
			return err
		}
		defer c.Close()
		k, _, err := c.Last()
		if err != nil {
			return err
		}
		if k == nil {
			s.uidCounter.Store(0)
			return nil
		}
		s.uidCounter.Store(getUID(k))
		return nil
	})
}

// nextUID atomically allocates the next monotonic UID. Writer
// serialisation in the substrate means the counter increment is always
// observed together with the write that consumed it.
func (s *Store) nextUID() uint64 {
	return s.uidCounter.Add(1)
}

// Close closes the underlying environment. The caller must ensure every
// iterator/transaction derived from the store has already ended.
func (s *Store) Close() error {
	return s.db.Close()
}

// View runs fn inside a single read transaction against the store's
// substrate. Exposed alongside Query for callers that need direct table
// access (e.g. the driver's stats command) rather than a filter-driven
// scan.
func (s *Store) View(ctx context.Context, fn func(tx kv.Tx) error) error {
	return s.db.View(ctx, fn)
}

// Put ingests one event inside its own write transaction.
func (s *Store) Put(ctx context.Context, e *Event) (PutResult, error) {
	var result PutResult
	err := s.db.Update(ctx, func(tx kv.RwTx) error {
		r, err := s.putWithin(tx, e)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return PutResult{}, err
	}
	return result, nil
}

// BatchPut sorts the batch by id (skipping duplicate ids) and applies the
// ingestion algorithm to each under one write transaction; a failure
// aborts the whole batch.
func (s *Store) BatchPut(ctx context.Context, events []*Event) ([]PutResult, error) {
	staged := stageByID(events)
	results := make([]PutResult, len(staged))
	err := s.db.Update(ctx, func(tx kv.RwTx) error {
		for i, e := range staged {
			r, err := s.putWithin(tx, e)
			if err != nil {
				return err
			}
			results[i] = r
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// BatchGet reads a batch of events' payloads by id in one read
// transaction, skipping ids that are not present.
func (s *Store) BatchGet(ctx context.Context, ids [][32]byte, decode Decoder[[]byte]) ([][]byte, error) {
	var out [][]byte
	err := s.db.View(ctx, func(tx kv.Tx) error {
		for _, id := range ids {
			uidRaw, err := tx.GetOne(TableIDUID, id[:])
			if err != nil {
				return err
			}
			if uidRaw == nil {
				continue
			}
			raw, err := tx.GetOne(TableData, uidRaw)
			if err != nil {
				return err
			}
			if raw == nil {
				continue
			}
			payload, err := decodePayload(raw)
			if err != nil {
				return err
			}
			v, err := decode(payload)
			if err != nil {
				return err
			}
			out = append(out, v)
		}
		return nil
	})
	return out, err
}

// BatchDel deletes a batch of ids under one write transaction, returning
// how many were actually present and removed.
func (s *Store) BatchDel(ctx context.Context, ids [][32]byte) (int, error) {
	n := 0
	err := s.db.Update(ctx, func(tx kv.RwTx) error {
		for _, id := range ids {
			uidRaw, err := tx.GetOne(TableIDUID, id[:])
			if err != nil {
				return err
			}
			if uidRaw == nil {
				continue
			}
			uid := getUID(uidRaw)
			idx, err := s.loadIndexWithin(tx, uid)
			if err != nil {
				return err
			}
			if idx == nil {
				continue
			}
			if err := s.delEventWithin(tx, uid, idx); err != nil {
				return err
			}
			n++
		}
		return nil
	})
	return n, err
}

func stageByID(events []*Event) []*Event {
	if len(events) == 0 {
		return nil
	}
	tree := btreeStage(events)
	return tree
}

// Query opens a read transaction, plans the filter, and returns an
// Iterator ready to pull decoded payloads from it. The caller must call
// both it.Close() and tx.Rollback() when done; ending the transaction is
// what releases the read snapshot.
func Query[T any](ctx context.Context, s *Store, f *Filter, decode Decoder[T]) (*Iterator[T], kv.Tx, error) {
	tx, err := s.db.BeginRo(ctx)
	if err != nil {
		return nil, nil, err
	}
	pl, err := buildPlan(tx, f)
	if err != nil {
		tx.Rollback()
		return nil, nil, err
	}
	cache, _ := lru.New[uint64, *ArchivedIndex](maxInt(s.opts.IndexCacheSize, 1))
	it := newIterator(tx, pl, f, decode, cache)
	return it, tx, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
