package mdbx

import "github.com/nostrkv/eventdb/kv"

// Option configures an Env at Open time, the same builder-function idiom
// erigon-lib's mdbx backend uses (WithMapSize, WithMaxReaders, ...).
type Option func(*options)

type options struct {
	mapSize    int64
	maxReaders int
	maxTables  int
	readOnly   bool
	tables     kv.TableCfg
}

// WithMapSize bounds the address space libmdbx reserves for the memory
// mapping backing the data file. Growing past it requires closing and
// reopening the environment.
func WithMapSize(bytes int64) Option {
	return func(o *options) { o.mapSize = bytes }
}

// WithMaxReaders bounds the number of concurrent read transactions the
// environment's reader lock table tracks.
func WithMaxReaders(n int) Option {
	return func(o *options) { o.maxReaders = n }
}

// WithMaxTables bounds how many named tables the environment may open.
func WithMaxTables(n int) Option {
	return func(o *options) { o.maxTables = n }
}

// WithReadOnly opens the environment without acquiring the writer slot,
// for auxiliary tools that only ever query.
func WithReadOnly() Option {
	return func(o *options) { o.readOnly = true }
}

// WithTables supplies the table registry to create/open at startup.
func WithTables(cfg kv.TableCfg) Option {
	return func(o *options) { o.tables = cfg }
}

func defaultOptions() *options {
	return &options{
		mapSize:    1 << 30, // 1GiB, grown explicitly by callers as needed
		maxReaders: 4096,
		maxTables:  64,
	}
}
