package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nostrkv/eventdb/eventdb"
)

// wireEvent is the minimal NIP-01-shaped JSON record this driver accepts.
// The eventdb library itself never parses a wire format (that is a
// collaborator concern); this type exists only at the CLI boundary.
type wireEvent struct {
	ID         string     `json:"id"`
	PubKey     string     `json:"pubkey"`
	Kind       uint64     `json:"kind"`
	CreatedAt  int64      `json:"created_at"`
	Tags       [][]string `json:"tags"`
	Content    string     `json:"content"`
	Delegator  string     `json:"delegator,omitempty"`
	Expiration *int64     `json:"expiration,omitempty"`
}

// decodeLine turns one JSONL line into an eventdb.Event, tokenising its
// content into a naive word list. A production collaborator would supply a
// real tokenizer; this one is good enough to exercise the ix_word index
// from the command line.
func decodeLine(line []byte) (*eventdb.Event, error) {
	var w wireEvent
	if err := json.Unmarshal(line, &w); err != nil {
		return nil, fmt.Errorf("decode event json: %w", err)
	}

	id, err := decodeHex32(w.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	pk, err := decodeHex32(w.PubKey)
	if err != nil {
		return nil, fmt.Errorf("pubkey: %w", err)
	}

	e := &eventdb.Event{
		ID:         id,
		PubKey:     pk,
		Kind:       w.Kind,
		CreatedAt:  w.CreatedAt,
		Expiration: w.Expiration,
		Payload:    append([]byte(nil), line...),
		Words:      tokenize(w.Content),
	}
	if w.Delegator != "" {
		d, err := decodeHex32(w.Delegator)
		if err != nil {
			return nil, fmt.Errorf("delegator: %w", err)
		}
		e.Delegator = &d
	}
	for _, raw := range w.Tags {
		if len(raw) == 0 {
			continue
		}
		e.Tags = append(e.Tags, eventdb.Tag{Name: raw[0], Values: raw[1:]})
	}
	return e, nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 64 {
		return out, fmt.Errorf("expected 64 hex chars, got %d", len(s))
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return out, err
	}
	copy(out[:], b)
	return out, nil
}

// tokenize splits content on whitespace and lower-cases each token. It is
// intentionally naive: the library expects its caller to bring a real
// tokenizer, and this driver does not attempt to be one.
func tokenize(content string) []string {
	fields := strings.Fields(strings.ToLower(content))
	if len(fields) == 0 {
		return nil
	}
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}
