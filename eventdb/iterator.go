package eventdb

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nostrkv/eventdb/kv"
)

// Stats counts the work a query did: raw records examined by the scan
// group, index-record fetches, and payload fetches.
type Stats struct {
	ScanIndex uint64
	GetIndex  uint64
	GetData   uint64
}

// Decoder turns a raw stored payload into whatever representation the
// caller wants (a parsed event, or the bytes as-is). Decode is given
// already-decompressed bytes.
type Decoder[T any] func(payload []byte) (T, error)

// Iterator pulls matches from a query plan, decoding payloads on demand.
// It owns the read transaction's cursors until Close is called; reaching
// the end of the plan does not release them.
type Iterator[T any] struct {
	tx     kv.Tx
	pl     *plan
	filter *Filter
	decode Decoder[T]
	cache  *lru.Cache[uint64, *ArchivedIndex]

	emitted   int
	getIndex  uint64
	getData   uint64
	exhausted bool
}

func newIterator[T any](tx kv.Tx, pl *plan, f *Filter, decode Decoder[T], cache *lru.Cache[uint64, *ArchivedIndex]) *Iterator[T] {
	return &Iterator[T]{tx: tx, pl: pl, filter: f, decode: decode, cache: cache}
}

func (it *Iterator[T]) loadIndex(uid uint64) (*ArchivedIndex, error) {
	if it.cache != nil {
		if idx, ok := it.cache.Get(uid); ok {
			return idx, nil
		}
	}
	key := make([]byte, uidLen)
	putUID(key, uid)
	raw, err := it.tx.GetOne(TableIndex, key)
	if err != nil {
		return nil, err
	}
	it.getIndex++
	if raw == nil {
		return nil, nil
	}
	idx, err := decodeArchivedIndex(raw)
	if err != nil {
		return nil, err
	}
	if it.cache != nil {
		it.cache.Add(uid, idx)
	}
	return idx, nil
}

func (it *Iterator[T]) accepts(ik IndexKey) (bool, error) {
	if it.pl.secondary == matchNone {
		return true, nil
	}
	idx, err := it.loadIndex(ik.UID)
	if err != nil {
		return false, err
	}
	if idx == nil {
		return false, nil
	}
	if it.pl.secondary == matchAuthorOnly {
		return idx.matchesAuthor(it.pl.authors), nil
	}
	return idx.matchFull(it.filter, it.pl.authors), nil
}

// Next returns the next matching decoded payload. ok is false once the
// limit is met or the underlying group is exhausted.
func (it *Iterator[T]) Next() (value T, ok bool, err error) {
	var zero T
	if it.exhausted {
		return zero, false, nil
	}
	if it.filter.Limit > 0 && it.emitted >= it.filter.Limit {
		it.exhausted = true
		return zero, false, nil
	}
	for {
		ik, has, err := it.pl.group.next()
		if err != nil {
			return zero, false, err
		}
		if !has {
			it.exhausted = true
			return zero, false, nil
		}
		accept, err := it.accepts(ik)
		if err != nil {
			return zero, false, err
		}
		if !accept {
			continue
		}
		dkey := make([]byte, uidLen)
		putUID(dkey, ik.UID)
		raw, err := it.tx.GetOne(TableData, dkey)
		if err != nil {
			return zero, false, err
		}
		it.getData++
		if raw == nil {
			// A uid in a secondary index without a data record means a
			// broken index invariant; skip rather than fail the query.
			continue
		}
		payload, err := decodePayload(raw)
		if err != nil {
			return zero, false, err
		}
		v, err := it.decode(payload)
		if err != nil {
			return zero, false, err
		}
		it.emitted++
		return v, true, nil
	}
}

// Size counts matches without fetching data, still respecting limit and
// still decoding index when a secondary match is required.
func (it *Iterator[T]) Size() (int, error) {
	count := 0
	for {
		if it.filter.Limit > 0 && count >= it.filter.Limit {
			break
		}
		ik, has, err := it.pl.group.next()
		if err != nil {
			return count, err
		}
		if !has {
			break
		}
		accept, err := it.accepts(ik)
		if err != nil {
			return count, err
		}
		if accept {
			count++
		}
	}
	return count, nil
}

// Stats reports the iterator's work counters so far.
func (it *Iterator[T]) Stats() Stats {
	return Stats{
		ScanIndex: it.pl.group.examined(),
		GetIndex:  it.getIndex,
		GetData:   it.getData,
	}
}

// Close releases every cursor the plan's scans opened, ending the group's
// hold on the transaction's resources.
func (it *Iterator[T]) Close() {
	it.pl.group.close()
}
