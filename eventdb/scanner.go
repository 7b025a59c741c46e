package eventdb

import "github.com/nostrkv/eventdb/kv"

// IndexKey is one record yielded by a scan or scan group: the key
// information needed to order candidates and, once matched, fetch index/
// data. Kind is populated only for scans whose value carries it (ix_tag),
// letting the planner re-check kind without a separate index fetch.
type IndexKey struct {
	Time int64
	UID  uint64
	Kind uint64
}

// matchVerdict classifies one (k, v) pair a scan's cursor visits.
type matchVerdict int

const (
	matchContinue matchVerdict = iota
	matchFound
	matchStop
)

// matchFunc lets planner-constructed scans layer extra acceptance rules
// (odd hex-prefix re-verification, tag key-length bounds, kind re-check)
// on top of the generic prefix/time filtering every scan performs.
type matchFunc func(k, v []byte) matchVerdict

// scan wraps one cursor over one table: a prefix-anchored, directional
// walk honouring since/until. prefix bounds the walk; seek, when non-nil,
// narrows the starting position further without narrowing the bound.
// Odd-length hex prefixes need exactly that split, since their padded
// final nibble is a start point, not a shared prefix of every match.
type scan struct {
	id     int
	dim    int
	table  string
	cur    kv.Cursor
	prefix []byte
	seek   []byte
	desc   bool
	since  int64
	until  int64
	match  matchFunc

	// decodeUID extracts the uid from a record's value; for most indexes
	// the value IS the uid, but ix_tag's value is uid ‖ kind.
	decodeUID func(v []byte) (uid uint64, kind uint64)

	started   bool
	exhausted bool
	examined  uint64

	headTime     int64
	headUID      uint64
	headIndexKey IndexKey
}

// newScan constructs a scan over table anchored at prefix. since/until
// default to the full range when nil. seek may be nil; when set it must
// sort within prefix's range.
func newScan(id int, table string, cur kv.Cursor, prefix, seek []byte, desc bool, since, until *int64, decodeUID func([]byte) (uint64, uint64), match matchFunc) *scan {
	s := &scan{
		id:        id,
		table:     table,
		cur:       cur,
		prefix:    prefix,
		seek:      seek,
		desc:      desc,
		since:     minTime,
		until:     maxTime,
		match:     match,
		decodeUID: decodeUID,
	}
	if since != nil {
		s.since = *since
	}
	if until != nil {
		s.until = *until
	}
	return s
}

const (
	minTime int64 = 0
	maxTime int64 = 1<<63 - 1
)

func (s *scan) position() (k, v []byte, err error) {
	start := s.prefix
	if s.seek != nil {
		start = s.seek
	}
	if !s.desc {
		return s.cur.Seek(start)
	}
	up, ok := upper(start)
	if !ok {
		return s.cur.Last()
	}
	k, v, err = s.cur.Seek(up)
	if err != nil {
		return nil, nil, err
	}
	if k == nil {
		// no key >= up: everything in the table is < up, so the largest
		// key overall is our descending start.
		return s.cur.Last()
	}
	// Seek landed on the first key >= up, which is one past our range
	// (up is exclusive); step back once.
	return s.cur.Prev()
}

func (s *scan) step() (k, v []byte, err error) {
	if s.desc {
		return s.cur.Prev()
	}
	return s.cur.Next()
}

// advance pulls the next matching record, or reports exhaustion:
// position/step, time-filter, invoke match, repeat until Found, Stop, or
// end of tree.
func (s *scan) advance() (bool, error) {
	if s.exhausted {
		return false, nil
	}
	k, v, err := func() ([]byte, []byte, error) {
		if !s.started {
			s.started = true
			return s.position()
		}
		return s.step()
	}()
	for {
		if err != nil {
			return false, err
		}
		if k == nil {
			s.exhausted = true
			return false, nil
		}
		if !withinPrefix(k, s.prefix) {
			s.exhausted = true
			return false, nil
		}
		s.examined++
		t := getTime(k[len(k)-timeLen:])
		if s.desc {
			if t > s.until {
				k, v, err = s.step()
				continue
			}
			if t < s.since {
				s.exhausted = true
				return false, nil
			}
		} else {
			if t < s.since {
				k, v, err = s.step()
				continue
			}
			if t > s.until {
				s.exhausted = true
				return false, nil
			}
		}

		verdict := matchFound
		if s.match != nil {
			verdict = s.match(k, v)
		}
		switch verdict {
		case matchStop:
			s.exhausted = true
			return false, nil
		case matchContinue:
			k, v, err = s.step()
			continue
		case matchFound:
			uid, kind := s.decodeUID(v)
			s.headTime, s.headUID = t, uid
			s.headIndexKey = IndexKey{Time: t, UID: uid, Kind: kind}
			return true, nil
		}
	}
}

// withinPrefix reports whether k still falls under prefix P: every byte of
// P must match the corresponding leading byte of k.
func withinPrefix(k, prefix []byte) bool {
	if len(k) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if k[i] != b {
			return false
		}
	}
	return true
}

func (s *scan) close() {
	s.cur.Close()
}
