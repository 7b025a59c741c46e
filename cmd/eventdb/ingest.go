package main

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.jsonl>",
	Short: "Ingest a JSONL dump of events, one JSON object per line",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	s, err := openStore(log, false)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := fs.Open(args[0])
	if err != nil {
		return fmt.Errorf("open %s: %w", args[0], err)
	}
	defer f.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var counts [5]int
	lineNo := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		e, err := decodeLine(line)
		if err != nil {
			log.Warnw("skipping malformed line", "line", lineNo, "error", err)
			continue
		}
		res, err := s.Put(ctx, e)
		if err != nil {
			return fmt.Errorf("put at line %d: %w", lineNo, err)
		}
		counts[res.Outcome]++
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("scan %s: %w", args[0], err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok=%d duplicate=%d deleted=%d replace-ignored=%d invalid=%d\n",
		counts[4], counts[1], counts[2], counts[3], counts[0])
	return nil
}
