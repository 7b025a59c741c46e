package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nostrkv/eventdb/eventdb"
	"github.com/nostrkv/eventdb/kv"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-table record counts",
	RunE:  runStats,
}

// statsTables lists the tables worth reporting a count for; the three
// write-only bookkeeping tables (deletion, replacement, expiration) are
// included since their size tracks tombstone/expiry volume directly.
var statsTables = []string{
	eventdb.TableData,
	eventdb.TableIxID,
	eventdb.TableIxPubkey,
	eventdb.TableIxKind,
	eventdb.TableIxPubkeyKnd,
	eventdb.TableIxTime,
	eventdb.TableIxTag,
	eventdb.TableIxWord,
	eventdb.TableDeletion,
	eventdb.TableReplacement,
	eventdb.TableExpiration,
}

func runStats(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := openStore(log, true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	counts, err := tableCounts(ctx, s, statsTables)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, name := range statsTables {
		fmt.Fprintf(out, "%-16s %d\n", name, counts[name])
	}
	return nil
}

func tableCounts(ctx context.Context, s *eventdb.Store, tables []string) (map[string]uint64, error) {
	counts := make(map[string]uint64, len(tables))
	err := s.View(ctx, func(tx kv.Tx) error {
		for _, name := range tables {
			c, err := tx.Cursor(name)
			if err != nil {
				return err
			}
			var n uint64
			for k, _, err := c.First(); ; k, _, err = c.Next() {
				if err != nil {
					c.Close()
					return err
				}
				if k == nil {
					break
				}
				n++
			}
			c.Close()
			counts[name] = n
		}
		return nil
	})
	return counts, err
}
