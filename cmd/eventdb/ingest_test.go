package main

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/nostrkv/eventdb/eventdb"
)

// withMemFs swaps the package-level fs variable for an in-memory filesystem
// for the duration of the test, so ingest never touches the real disk.
func withMemFs(t *testing.T) afero.Fs {
	t.Helper()
	prev := fs
	mem := afero.NewMemMapFs()
	fs = mem
	t.Cleanup(func() { fs = prev })
	return mem
}

func TestDecodeLineRoundTrip(t *testing.T) {
	line := []byte(`{"id":"` + idHex(1) + `","pubkey":"` + idHex(2) + `","kind":1,"created_at":100,"tags":[["t","nostr"]],"content":"Hello, Nostr!"}`)
	e, err := decodeLine(line)
	require.NoError(t, err)
	require.EqualValues(t, 1, e.Kind)
	require.EqualValues(t, 100, e.CreatedAt)
	require.Equal(t, []string{"hello", "nostr"}, e.Words)
	require.Len(t, e.Tags, 1)
	require.Equal(t, "t", e.Tags[0].Name)
	require.Equal(t, "nostr", e.Tags[0].FirstValue())
}

func TestRunIngestAgainstMemFs(t *testing.T) {
	memFs := withMemFs(t)

	dir := t.TempDir()
	flagDataDir = dir
	flagMapSize = 64 << 20
	flagLogFile = ""
	flagCompress = false

	line1 := []byte(`{"id":"` + idHex(1) + `","pubkey":"` + idHex(9) + `","kind":1,"created_at":10,"tags":[],"content":"first"}`)
	line2 := []byte(`{"id":"` + idHex(2) + `","pubkey":"` + idHex(9) + `","kind":1,"created_at":11,"tags":[],"content":"second"}`)
	require.NoError(t, afero.WriteFile(memFs, "dump.jsonl", append(append(line1, '\n'), line2...), 0o644))

	cmd := ingestCmd
	cmd.SetContext(context.Background())
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	require.NoError(t, runIngest(cmd, []string{"dump.jsonl"}))
	require.Contains(t, stdout.String(), "ok=2")

	s, err := openStore(nil, true)
	require.NoError(t, err)
	defer s.Close()

	f := &eventdb.Filter{Kinds: []uint64{1}, Limit: 10}
	it, tx, err := eventdb.Query(context.Background(), s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	var got int
	for {
		_, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		got++
	}
	require.Equal(t, 2, got)
}

func idHex(b byte) string {
	var id [32]byte
	id[0] = b
	out := make([]byte, 64)
	const digits = "0123456789abcdef"
	for i, c := range id {
		out[i*2] = digits[c>>4]
		out[i*2+1] = digits[c&0x0f]
	}
	return string(out)
}
