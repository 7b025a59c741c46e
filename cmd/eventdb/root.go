package main

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/nostrkv/eventdb/eventdb"
)

// fs is the filesystem ingest reads its dump from. Swapped for an
// afero.MemMapFs in tests so nothing touches the real disk.
var fs afero.Fs = afero.NewOsFs()

var (
	flagDataDir  string
	flagMapSize  int64
	flagLogFile  string
	flagCompress bool
)

var rootCmd = &cobra.Command{
	Use:   "eventdb",
	Short: "Indexing and query core driver for a Nostr-family event store",
	Long: `eventdb is a command-line driver over the eventdb library: it ingests a
JSONL dump of events, runs a single filter query, sweeps expired events, or
prints store statistics. It is not a relay: no network transport, no
subscriptions, no signature verification.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "dir", "eventdb-data", "data directory")
	rootCmd.PersistentFlags().Int64Var(&flagMapSize, "map-size", 1<<30, "substrate map size in bytes")
	rootCmd.PersistentFlags().StringVar(&flagLogFile, "log-file", "", "optional log file (rotated via lumberjack); stderr when empty")
	rootCmd.PersistentFlags().BoolVar(&flagCompress, "compress", false, "zstd-compress stored payloads")

	rootCmd.AddCommand(ingestCmd, queryCmd, sweepCmd, statsCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger builds a zap logger writing to stderr, or, when --log-file is
// set, to a lumberjack-rotated file instead.
func newLogger() (*zap.SugaredLogger, func(), error) {
	if flagLogFile == "" {
		l, err := zap.NewProduction()
		if err != nil {
			return nil, func() {}, err
		}
		return l.Sugar(), func() { _ = l.Sync() }, nil
	}
	rotator := &lumberjack.Logger{Filename: flagLogFile, MaxSize: 64, MaxBackups: 3}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.InfoLevel)
	l := zap.New(core)
	return l.Sugar(), func() { _ = l.Sync(); _ = rotator.Close() }, nil
}

func openStore(log *zap.SugaredLogger, readOnly bool) (*eventdb.Store, error) {
	opts := []eventdb.Option{
		eventdb.WithDir(flagDataDir),
		eventdb.WithMapSize(flagMapSize),
		eventdb.WithCompressPayloads(flagCompress),
		eventdb.WithLogger(log),
	}
	if readOnly {
		opts = append(opts, eventdb.WithReadOnly())
	}
	return eventdb.Open(opts...)
}
