package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nostrkv/eventdb/eventdb"
)

var (
	flagIDs     []string
	flagAuthors []string
	flagKinds   []int64
	flagTags    []string
	flagSince   int64
	flagUntil   int64
	flagLimit   int
	flagDesc    bool
	flagWords   []string
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Run one filter against the store and print matching payloads",
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().StringSliceVar(&flagIDs, "ids", nil, "event id hex prefixes")
	queryCmd.Flags().StringSliceVar(&flagAuthors, "authors", nil, "pubkey hex prefixes")
	queryCmd.Flags().Int64SliceVar(&flagKinds, "kinds", nil, "event kinds")
	queryCmd.Flags().StringArrayVar(&flagTags, "tag", nil, "tag filter as name=value (repeatable)")
	queryCmd.Flags().Int64Var(&flagSince, "since", 0, "lower created_at bound (inclusive, 0 = unbounded)")
	queryCmd.Flags().Int64Var(&flagUntil, "until", 0, "upper created_at bound (inclusive, 0 = unbounded)")
	queryCmd.Flags().IntVar(&flagLimit, "limit", 100, "maximum results")
	queryCmd.Flags().BoolVar(&flagDesc, "desc", true, "descending created_at order")
	queryCmd.Flags().StringSliceVar(&flagWords, "search", nil, "word filters")
}

func buildFilter() (*eventdb.Filter, error) {
	f := &eventdb.Filter{
		IDs:     flagIDs,
		Authors: flagAuthors,
		Limit:   flagLimit,
		Desc:    flagDesc,
		Words:   flagWords,
	}
	for _, k := range flagKinds {
		f.Kinds = append(f.Kinds, uint64(k))
	}
	if flagSince != 0 {
		since := flagSince
		f.Since = &since
	}
	if flagUntil != 0 {
		until := flagUntil
		f.Until = &until
	}

	byName := map[string][]string{}
	var order []string
	for _, raw := range flagTags {
		name, value, ok := strings.Cut(raw, "=")
		if !ok {
			return nil, fmt.Errorf("--tag must be name=value, got %q", raw)
		}
		if _, seen := byName[name]; !seen {
			order = append(order, name)
		}
		byName[name] = append(byName[name], value)
	}
	for _, name := range order {
		f.Tags = append(f.Tags, eventdb.TagFilter{Name: name, Values: byName[name]})
	}
	return f, nil
}

func runQuery(cmd *cobra.Command, args []string) error {
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

	f, err := buildFilter()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	it, tx, err := eventdb.Query(ctx, s, f, decodeBytes)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	defer it.Close()

	out := cmd.OutOrStdout()
	for {
		payload, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		fmt.Fprintln(out, string(payload))
	}
	stats := it.Stats()
	fmt.Fprintf(cmd.ErrOrStderr(), "scan_index=%d get_index=%d get_data=%d\n",
		stats.ScanIndex, stats.GetIndex, stats.GetData)
	return nil
}

func decodeBytes(payload []byte) ([]byte, error) {
	return payload, nil
}
