package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var flagSweepUntil int64
var flagSweepDryRun bool

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove (or, with --dry-run, list) events whose expiration has passed",
	RunE:  runSweep,
}

func init() {
	sweepCmd.Flags().Int64Var(&flagSweepUntil, "until", 0, "expiration cutoff, unix seconds (0 = now is not assumed; caller must supply)")
	sweepCmd.Flags().BoolVar(&flagSweepDryRun, "dry-run", false, "list expired ids without deleting them")
	sweepCmd.MarkFlagRequired("until")
}

func runSweep(cmd *cobra.Command, args []string) error {
	log, closeLog, err := newLogger()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if flagSweepDryRun {
		s, err := openStore(log, true)
		if err != nil {
			return err
		}
		defer s.Close()

		ids, err := s.ExpiredBefore(ctx, flagSweepUntil)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Fprintf(cmd.OutOrStdout(), "%x\n", id)
		}
		return nil
	}

	s, err := openStore(log, false)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.SweepExpired(ctx, flagSweepUntil)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "swept %d event(s)\n", n)
	return nil
}
