package eventdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

var errCountTooLow = errors.New("reader observed fewer than the seeded event")

// TestConcurrentReadersWithSingleWriter exercises the concurrency model:
// many readers run concurrently with each other and with a single writer,
// and every reader's query completes without error and sees at least the
// seeded event.
func TestConcurrentReadersWithSingleWriter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seed := &Event{ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 1, Payload: []byte("seed")}
	_, err := s.Put(ctx, seed)
	require.NoError(t, err)

	var g errgroup.Group

	g.Go(func() error {
		for i := byte(2); i < 40; i++ {
			if _, err := s.Put(ctx, &Event{
				ID: idAt(i), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: int64(i), Payload: []byte{i},
			}); err != nil {
				return err
			}
		}
		return nil
	})

	for r := 0; r < 8; r++ {
		g.Go(func() error {
			for i := 0; i < 20; i++ {
				f := &Filter{Kinds: []uint64{1}, Limit: 1000}
				it, tx, err := Query(ctx, s, f, decodeBytes)
				if err != nil {
					return err
				}
				count := 0
				for {
					_, ok, err := it.Next()
					if err != nil {
						it.Close()
						tx.Rollback()
						return err
					}
					if !ok {
						break
					}
					count++
				}
				it.Close()
				tx.Rollback()
				if count < 1 {
					return errCountTooLow
				}
			}
			return nil
		})
	}

	require.NoError(t, g.Wait())
}
