package eventdb

import (
	"bytes"

	"github.com/google/btree"
)

// btreeStage sorts events by id and drops repeated ids before BatchPut's
// write loop runs. A google/btree.BTreeG realizes the sort without the
// caller needing to pre-sort its input.
func btreeStage(events []*Event) []*Event {
	tree := btree.NewG(32, func(a, b *Event) bool {
		return bytes.Compare(a.ID[:], b.ID[:]) < 0
	})
	for _, e := range events {
		// ReplaceOrInsert on an equal id keeps only the last write for a
		// repeated id.
		tree.ReplaceOrInsert(e)
	}
	out := make([]*Event, 0, tree.Len())
	tree.Ascend(func(e *Event) bool {
		out = append(out, e)
		return true
	})
	return out
}
