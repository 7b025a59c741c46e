package eventdb

import (
	"context"

	"github.com/nostrkv/eventdb/kv"
)

// ExpiredBefore scans the expiration table up to and including until in
// ascending expiration order, returning the matching events' ids without
// deleting anything. It is the read-only preview half of the expiration
// sweep.
func (s *Store) ExpiredBefore(ctx context.Context, until int64) ([][32]byte, error) {
	var out [][32]byte
	err := s.db.View(ctx, func(tx kv.Tx) error {
		c, err := tx.Cursor(TableExpiration)
		if err != nil {
			return err
		}
		defer c.Close()
		for k, v, err := c.First(); ; k, v, err = c.Next() {
			if err != nil {
				return err
			}
			if k == nil {
				return nil
			}
			t := getTime(k[:timeLen])
			if t > until {
				return nil
			}
			uid := getUID(v)
			idx, err := s.loadIndexWithin(tx, uid)
			if err != nil {
				return err
			}
			if idx == nil {
				continue
			}
			out = append(out, idx.ID)
		}
	})
	return out, err
}

// SweepExpired deletes every event whose expiration is <= until inside one
// write transaction, returning how many were removed. Removal goes
// through the same delEventWithin routine the rest of ingestion uses, so
// every secondary index entry goes with the event.
func (s *Store) SweepExpired(ctx context.Context, until int64) (int, error) {
	n := 0
	err := s.db.Update(ctx, func(tx kv.RwTx) error {
		c, err := tx.Cursor(TableExpiration)
		if err != nil {
			return err
		}

		var uids []uint64
		for k, v, err := c.First(); ; k, v, err = c.Next() {
			if err != nil {
				return err
			}
			if k == nil {
				break
			}
			t := getTime(k[:timeLen])
			if t > until {
				break
			}
			uids = append(uids, getUID(v))
		}
		// Collect uids before mutating: deleting while the plain cursor
		// above is still open would race it against delEventWithin's own
		// writes to the same table.
		c.Close()

		for _, uid := range uids {
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
