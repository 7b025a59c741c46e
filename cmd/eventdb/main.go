// Command eventdb is a thin driver over the eventdb library: ingest a
// JSONL dump, run one filter, sweep expired events, or print store stats.
// It contains no protocol server and no network delivery; the library is
// an indexing core, not a relay.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "eventdb:", err)
		os.Exit(1)
	}
}
