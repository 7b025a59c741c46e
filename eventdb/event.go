// Package eventdb implements the indexing and query core of an
// append-only event store for a signed-message protocol in the Nostr
// family: ingestion with duplicate/deletion/replacement enforcement, a
// set of secondary indexes over an ordered key-value substrate, and a
// filter-driven query engine that merges per-index scans into one
// globally ordered, limit-bounded stream.
//
// The package never parses or verifies the wire format of an event; it
// receives already-validated events and opaque payload bytes from its
// caller and hands back decoded payloads through an injected Decoder.
package eventdb

// Tag is one element of an event's tag list: a name followed by an
// ordered list of values (NIP-01 tags carry the value and then further,
// protocol-specific positional values; eventdb only interprets the first
// value of each tag for indexing).
type Tag struct {
	Name   string
	Values []string
}

// FirstValue returns the tag's first value, or "" if it has none.
func (t Tag) FirstValue() string {
	if len(t.Values) == 0 {
		return ""
	}
	return t.Values[0]
}

// Event is the input record: the fields ingestion indexes, plus the
// accessors eventdb needs to derive index entries. The caller has already
// validated and serialised it; eventdb treats Payload as opaque.
type Event struct {
	ID         [32]byte
	PubKey     [32]byte
	Kind       uint64
	CreatedAt  int64
	Delegator  *[32]byte
	Expiration *int64
	Tags       []Tag
	Words      []string

	// Payload is the opaque serialised event body, already encoded by the
	// collaborator (e.g. JSON). eventdb stores it verbatim in data,
	// optionally compressing it per Options.CompressPayloads.
	Payload []byte
}

// HasDelegator reports whether the event carries a delegation tag distinct
// from its own signer.
func (e *Event) HasDelegator() bool {
	return e.Delegator != nil && *e.Delegator != e.PubKey
}

// signerPubkeys returns the set of pubkeys that should receive pubkey-index
// entries for this event: just the signer, or the signer and the delegator
// when delegation is present.
func (e *Event) signerPubkeys() [][32]byte {
	if e.HasDelegator() {
		return [][32]byte{e.PubKey, *e.Delegator}
	}
	return [][32]byte{e.PubKey}
}

// ETagTargets returns the target ids named by this event's "e" tags,
// relevant only for kind-5 deletion events.
func (e *Event) ETagTargets() [][32]byte {
	var out [][32]byte
	for _, t := range e.Tags {
		if t.Name != "e" {
			continue
		}
		v := t.FirstValue()
		if len(v) != 64 {
			continue
		}
		var id [32]byte
		if n, err := decodeHexInto(id[:], v); err != nil || n != 32 {
			continue
		}
		out = append(out, id)
	}
	return out
}

// DTagValue returns the first "d" tag's value, or "" if absent, used when
// deriving the replace-key for parameterized-replaceable kinds.
func (e *Event) DTagValue() string {
	for _, t := range e.Tags {
		if t.Name == "d" {
			return t.FirstValue()
		}
	}
	return ""
}

func decodeHexInto(dst []byte, s string) (int, error) {
	return hexDecode(dst, s)
}
