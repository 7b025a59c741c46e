package eventdb

import (
	"container/heap"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// scanGroup merges N scans sharing a direction into one globally ordered
// sequence of IndexKey records. Ordering is by time, then uid, both in the
// group's direction. dedupByUID swallows repeat uids; intersectUID
// additionally requires a uid to surface, at one timestamp, from every
// dimension of the group, which is how a filter carrying multiple tag or
// word dimensions matches only events satisfying all. Scans within one
// dimension (a tag name's alternative values) are OR'd; dimensions are
// AND'd.
type scanGroup struct {
	desc         bool
	dedupByUID   bool
	intersectUID bool
	dims         int
	scans        []*scan

	heap    scanHeap
	seen    *roaring64.Bitmap // dedup-by-uid history
	pending []IndexKey        // intersect results not yet handed out
}

// scanHeap is the container/heap implementation over live scan heads,
// keyed by (time, uid, scan-id) in merge order.
type scanHeap struct {
	desc  bool
	items []*scan
}

func (h scanHeap) Len() int { return len(h.items) }

func (h scanHeap) Less(i, j int) bool {
	a, b := h.items[i], h.items[j]
	if a.headTime != b.headTime {
		if h.desc {
			return a.headTime > b.headTime
		}
		return a.headTime < b.headTime
	}
	if a.headUID != b.headUID {
		if h.desc {
			return a.headUID > b.headUID
		}
		return a.headUID < b.headUID
	}
	return a.id < b.id
}

func (h scanHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *scanHeap) Push(x any) { h.items = append(h.items, x.(*scan)) }

func (h *scanHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}

// newScanGroup builds a group from scans, priming the heap with each
// scan's first matching record. Each scan's dim field must already be set
// when intersectUID is on; dims is the total dimension count a uid must
// cover to be emitted.
func newScanGroup(scans []*scan, desc, dedupByUID, intersectUID bool, dims int) (*scanGroup, error) {
	g := &scanGroup{
		desc:         desc,
		dedupByUID:   dedupByUID,
		intersectUID: intersectUID,
		dims:         dims,
		scans:        scans,
		heap:         scanHeap{desc: desc},
		seen:         roaring64.New(),
	}
	for _, s := range scans {
		ok, err := s.advance()
		if err != nil {
			g.close()
			return nil, err
		}
		if ok {
			g.heap.items = append(g.heap.items, s)
		}
	}
	heap.Init(&g.heap)
	return g, nil
}

// examined totals the records every scan has visited so far, the raw
// scan-effort counter rolled into Stats.
func (g *scanGroup) examined() uint64 {
	var n uint64
	for _, s := range g.scans {
		n += s.examined
	}
	return n
}

// next pops the next globally ordered IndexKey, applying dedup/intersect,
// or reports the group is exhausted.
func (g *scanGroup) next() (IndexKey, bool, error) {
	if g.intersectUID {
		return g.nextIntersect()
	}
	for g.heap.Len() > 0 {
		top := g.heap.items[0]
		ik := top.headIndexKey
		if err := g.advanceTop(); err != nil {
			return IndexKey{}, false, err
		}
		if g.dedupByUID {
			if g.seen.Contains(ik.UID) {
				continue
			}
			g.seen.Add(ik.UID)
		}
		return ik, true, nil
	}
	return IndexKey{}, false, nil
}

// advanceTop replaces the heap's top scan head with its next record, or
// removes it from the heap if that scan is exhausted.
func (g *scanGroup) advanceTop() error {
	top := heap.Pop(&g.heap).(*scan)
	ok, err := top.advance()
	if err != nil {
		return err
	}
	if ok {
		heap.Push(&g.heap, top)
	}
	return nil
}

// nextIntersect emits only uids that every dimension produced at one
// timestamp. Each call drains the full time bucket (every record each
// parked scan holds at the bucket's time) so a scan carrying several
// uids at one timestamp contributes all of them before the intersection
// is taken. A dimension with no entry at the bucket time empties the
// intersection for that bucket.
func (g *scanGroup) nextIntersect() (IndexKey, bool, error) {
	for {
		if len(g.pending) > 0 {
			ik := g.pending[0]
			g.pending = g.pending[1:]
			if g.dedupByUID {
				if g.seen.Contains(ik.UID) {
					continue
				}
				g.seen.Add(ik.UID)
			}
			return ik, true, nil
		}
		if g.heap.Len() == 0 {
			return IndexKey{}, false, nil
		}

		bucketTime := g.heap.items[0].headTime
		covered := make(map[uint64]map[int]struct{})
		byUID := make(map[uint64]IndexKey)
		for g.heap.Len() > 0 && g.heap.items[0].headTime == bucketTime {
			s := heap.Pop(&g.heap).(*scan)
			for {
				ik := s.headIndexKey
				dims := covered[ik.UID]
				if dims == nil {
					dims = make(map[int]struct{})
					covered[ik.UID] = dims
					byUID[ik.UID] = ik
				}
				dims[s.dim] = struct{}{}
				ok, err := s.advance()
				if err != nil {
					return IndexKey{}, false, err
				}
				if !ok {
					break
				}
				if s.headTime != bucketTime {
					heap.Push(&g.heap, s)
					break
				}
			}
		}

		uids := make([]uint64, 0, len(covered))
		for uid, dims := range covered {
			if len(dims) == g.dims {
				uids = append(uids, uid)
			}
		}
		sortUIDs(uids, g.desc)
		for _, uid := range uids {
			g.pending = append(g.pending, byUID[uid])
		}
	}
}

// sortUIDs orders uids in the group's merge direction (insertion sort; a
// bucket rarely holds more than a handful of uids).
func sortUIDs(uids []uint64, desc bool) {
	for i := 1; i < len(uids); i++ {
		for j := i; j > 0; j-- {
			if desc && uids[j] > uids[j-1] || !desc && uids[j] < uids[j-1] {
				uids[j], uids[j-1] = uids[j-1], uids[j]
			} else {
				break
			}
		}
	}
}

func (g *scanGroup) close() {
	for _, s := range g.scans {
		s.close()
	}
}
