package eventdb

import (
	"strings"

	"github.com/nostrkv/eventdb/kv"
)

// secondaryMatch tells the iterator façade how much of the filter the
// driving index already subsumed, and therefore how much re-checking
// against the archived index record remains.
type secondaryMatch int

const (
	matchNone secondaryMatch = iota
	matchAuthorOnly
	matchFullFilter
)

// plan is what the query planner hands the iterator façade: a scan group
// ready to pull from, plus how to re-check candidates.
type plan struct {
	group     *scanGroup
	secondary secondaryMatch
	authors   [][32]byte
}

func decodeUIDPlain(v []byte) (uint64, uint64) {
	return getUID(v), 0
}

func decodeUIDTagged(v []byte) (uint64, uint64) {
	if len(v) < uidLen+kindLen {
		return 0, 0
	}
	return getUID(v[:uidLen]), getUID(v[uidLen:])
}

// buildPlan selects the driving index by fixed priority (words, then
// ids, then tags, then authors+kinds, authors, kinds, and finally a bare
// time scan) and constructs the scans/group that realize it. There is no
// cost estimation; the priority order is the whole planner.
func buildPlan(tx kv.Tx, f *Filter) (*plan, error) {
	switch {
	case len(f.Words) > 0:
		return planWords(tx, f)
	case len(f.IDs) > 0:
		return planIDs(tx, f)
	case len(f.Tags) > 0:
		return planTags(tx, f)
	case len(f.Authors) > 0 && len(f.Kinds) > 0:
		return planAuthorsKinds(tx, f)
	case len(f.Authors) > 0:
		return planAuthors(tx, f)
	case len(f.Kinds) > 0:
		return planKinds(tx, f)
	default:
		return planTime(tx, f)
	}
}

func openCursors(tx kv.Tx, table string, n int) ([]kv.Cursor, error) {
	cursors := make([]kv.Cursor, 0, n)
	for i := 0; i < n; i++ {
		c, err := tx.Cursor(table)
		if err != nil {
			for _, prior := range cursors {
				prior.Close()
			}
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, nil
}

// decodedAuthors resolves full-length (64-hex-char) author strings to
// [32]byte values for the secondary matchesAuthor check; short prefixes
// are left to the per-scan prefix match and excluded here.
func decodedAuthors(authors []string) [][32]byte {
	var out [][32]byte
	for _, a := range authors {
		if len(a) != 64 {
			continue
		}
		var pk [32]byte
		if n, err := hexDecode(pk[:], a); err == nil && n == 32 {
			out = append(out, pk)
		}
	}
	return out
}

// hexPrefixScanArgs turns a filter's hex prefix string into the scan's
// bounding prefix, optional seek start, and match callback. An odd-length
// string decodes with a padded final nibble that is a correct inclusive
// start point but not a shared prefix of every match, so the bound drops
// the padded byte and the callback re-verifies (and stops the scan once
// the cursor walks past the odd range).
func hexPrefixScanArgs(raw string, desc bool) (prefix, seek []byte, match matchFunc, err error) {
	orig := strings.ToLower(raw)
	decoded, odd, err := decodeHexPrefix(orig, desc)
	if err != nil {
		return nil, nil, nil, err
	}
	if !odd {
		return decoded, nil, nil, nil
	}
	prefix = decoded[:len(decoded)-1]
	seek = decoded
	match = func(k, v []byte) matchVerdict {
		got := hexEncode(k[:idLen])
		if len(orig) > len(got) {
			return matchStop
		}
		got = got[:len(orig)]
		switch {
		case got == orig:
			return matchFound
		case !desc && got > orig, desc && got < orig:
			return matchStop
		default:
			return matchContinue
		}
	}
	return prefix, seek, match, nil
}

// planWords: priority 1. One scan per word over ix_word, each its own
// dimension: an event matches only if it carries every word. Secondary
// match is the full filter whenever any other field is also set.
func planWords(tx kv.Tx, f *Filter) (*plan, error) {
	cursors, err := openCursors(tx, TableIxWord, len(f.Words))
	if err != nil {
		return nil, err
	}
	scans := make([]*scan, len(f.Words))
	for i, w := range f.Words {
		prefix := encodeWordPrefix(w)
		scans[i] = newScan(i, TableIxWord, cursors[i], prefix, nil, f.Desc, f.Since, f.Until, decodeUIDPlain, nil)
		scans[i].dim = i
	}
	g, err := newScanGroup(scans, f.Desc, true, len(f.Words) > 1, len(f.Words))
	if err != nil {
		return nil, err
	}
	sec := matchNone
	if hasOtherFilterFields(f, false, false, true) {
		sec = matchFullFilter
	}
	return &plan{group: g, secondary: sec, authors: decodedAuthors(f.Authors)}, nil
}

// planIDs: priority 2. One scan per id prefix over ix_id.
func planIDs(tx kv.Tx, f *Filter) (*plan, error) {
	cursors, err := openCursors(tx, TableIxID, len(f.IDs))
	if err != nil {
		return nil, err
	}
	scans := make([]*scan, len(f.IDs))
	for i, raw := range f.IDs {
		prefix, seek, match, err := hexPrefixScanArgs(raw, f.Desc)
		if err != nil {
			for _, c := range cursors {
				c.Close()
			}
			return nil, err
		}
		scans[i] = newScan(i, TableIxID, cursors[i], prefix, seek, f.Desc, f.Since, f.Until, decodeUIDPlain, match)
	}
	g, err := newScanGroup(scans, f.Desc, true, false, 0)
	if err != nil {
		return nil, err
	}
	sec := matchNone
	if hasOtherFilterFields(f, true, false, false) {
		sec = matchFullFilter
	}
	return &plan{group: g, secondary: sec, authors: decodedAuthors(f.Authors)}, nil
}

// planTags: priority 3. One scan per (name, value) over ix_tag; scans of
// one tag name share a dimension, so alternative values OR together while
// distinct names AND.
func planTags(tx kv.Tx, f *Filter) (*plan, error) {
	total := 0
	for _, tf := range f.Tags {
		total += len(tf.Values)
	}
	cursors, err := openCursors(tx, TableIxTag, total)
	if err != nil {
		return nil, err
	}
	scans := make([]*scan, 0, total)
	i := 0
	dims := 0
	for _, tf := range f.Tags {
		if len(tf.Values) == 0 {
			continue
		}
		dim := dims
		dims++
		for _, v := range tf.Values {
			prefix := encodeTagPrefix(tf.Name, v)
			wantLen := len(prefix) + timeLen
			kinds := f.Kinds
			match := func(k, v []byte) matchVerdict {
				// An exact length check keeps the scan from slipping into
				// a record whose tag value merely extends this one.
				if len(k) != wantLen {
					return matchContinue
				}
				if len(kinds) > 0 {
					if len(v) < uidLen+kindLen {
						return matchContinue
					}
					kind := getUID(v[uidLen:])
					found := false
					for _, want := range kinds {
						if want == kind {
							found = true
							break
						}
					}
					if !found {
						return matchContinue
					}
				}
				return matchFound
			}
			sc := newScan(i, TableIxTag, cursors[i], prefix, nil, f.Desc, f.Since, f.Until, decodeUIDTagged, match)
			sc.dim = dim
			scans = append(scans, sc)
			i++
		}
	}
	g, err := newScanGroup(scans, f.Desc, true, dims > 1, dims)
	if err != nil {
		return nil, err
	}
	sec := matchNone
	switch {
	case !hasOtherFilterFields(f, false, true, false):
		// no field beyond tags: the driving index already subsumes the
		// whole filter.
	case len(f.Authors) > 0 && len(f.IDs) == 0 && len(f.Kinds) == 0 && len(f.Words) == 0:
		sec = matchAuthorOnly
	default:
		sec = matchFullFilter
	}
	return &plan{group: g, secondary: sec, authors: decodedAuthors(f.Authors)}, nil
}

// planAuthorsKinds: priority 4. ix_pubkey_kind, one scan per (author,
// kind) for full authors, or per-author with kind re-check for prefixes.
func planAuthorsKinds(tx kv.Tx, f *Filter) (*plan, error) {
	var scans []*scan
	id := 0
	var errOut error
	for _, a := range f.Authors {
		prefix, seek, hexMatch, err := hexPrefixScanArgs(a, f.Desc)
		if err != nil {
			errOut = err
			break
		}
		if len(prefix) == idLen {
			for _, kind := range f.Kinds {
				c, err := tx.Cursor(TableIxPubkeyKnd)
				if err != nil {
					errOut = err
					break
				}
				full := append(append([]byte{}, prefix...), encodeKindPrefix(kind)...)
				scans = append(scans, newScan(id, TableIxPubkeyKnd, c, full, nil, f.Desc, f.Since, f.Until, decodeUIDPlain, nil))
				id++
			}
			continue
		}
		c, err := tx.Cursor(TableIxPubkeyKnd)
		if err != nil {
			errOut = err
			break
		}
		kinds := f.Kinds
		match := func(k, v []byte) matchVerdict {
			if hexMatch != nil {
				if verdict := hexMatch(k, v); verdict != matchFound {
					return verdict
				}
			}
			kind := getUID(k[idLen : idLen+kindLen])
			for _, want := range kinds {
				if want == kind {
					return matchFound
				}
			}
			return matchContinue
		}
		scans = append(scans, newScan(id, TableIxPubkeyKnd, c, prefix, seek, f.Desc, f.Since, f.Until, decodeUIDPlain, match))
		id++
	}
	if errOut != nil {
		for _, s := range scans {
			s.close()
		}
		return nil, errOut
	}
	g, err := newScanGroup(scans, f.Desc, true, false, 0)
	if err != nil {
		return nil, err
	}
	return &plan{group: g, secondary: matchNone}, nil
}

func encodeKindPrefix(kind uint64) []byte {
	b := make([]byte, kindLen)
	putKind(b, kind)
	return b
}

// planAuthors: priority 5. ix_pubkey, one scan per author prefix.
func planAuthors(tx kv.Tx, f *Filter) (*plan, error) {
	cursors, err := openCursors(tx, TableIxPubkey, len(f.Authors))
	if err != nil {
		return nil, err
	}
	scans := make([]*scan, len(f.Authors))
	for i, raw := range f.Authors {
		prefix, seek, match, err := hexPrefixScanArgs(raw, f.Desc)
		if err != nil {
			for _, c := range cursors {
				c.Close()
			}
			return nil, err
		}
		scans[i] = newScan(i, TableIxPubkey, cursors[i], prefix, seek, f.Desc, f.Since, f.Until, decodeUIDPlain, match)
	}
	g, err := newScanGroup(scans, f.Desc, true, false, 0)
	if err != nil {
		return nil, err
	}
	return &plan{group: g, secondary: matchNone}, nil
}

// planKinds: priority 6. ix_kind, one scan per kind.
func planKinds(tx kv.Tx, f *Filter) (*plan, error) {
	cursors, err := openCursors(tx, TableIxKind, len(f.Kinds))
	if err != nil {
		return nil, err
	}
	scans := make([]*scan, len(f.Kinds))
	for i, k := range f.Kinds {
		prefix := encodeKindPrefix(k)
		scans[i] = newScan(i, TableIxKind, cursors[i], prefix, nil, f.Desc, f.Since, f.Until, decodeUIDPlain, nil)
	}
	g, err := newScanGroup(scans, f.Desc, true, false, 0)
	if err != nil {
		return nil, err
	}
	return &plan{group: g, secondary: matchNone}, nil
}

// planTime: priority 7, the fall-through. One scan over ix_time.
func planTime(tx kv.Tx, f *Filter) (*plan, error) {
	c, err := tx.Cursor(TableIxTime)
	if err != nil {
		return nil, err
	}
	s := newScan(0, TableIxTime, c, nil, nil, f.Desc, f.Since, f.Until, decodeUIDPlain, nil)
	g, err := newScanGroup([]*scan{s}, f.Desc, false, false, 0)
	if err != nil {
		return nil, err
	}
	return &plan{group: g, secondary: matchNone}, nil
}

// hasOtherFilterFields reports whether f carries any filter dimension
// besides the one currently driving the scan (excludeIDs/excludeTags/
// excludeWords skip the driving dimension itself so a driven-by-ids query
// isn't flagged as having "other" fields just because it has ids).
func hasOtherFilterFields(f *Filter, excludeIDs, excludeTags, excludeWords bool) bool {
	if !excludeIDs && len(f.IDs) > 0 {
		return true
	}
	if !excludeTags && len(f.Tags) > 0 {
		return true
	}
	if len(f.Authors) > 0 || len(f.Kinds) > 0 {
		return true
	}
	if !excludeWords && len(f.Words) > 0 {
		return true
	}
	return false
}
