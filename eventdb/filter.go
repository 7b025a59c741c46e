package eventdb

import "encoding/hex"

// TagFilter is one (name, values) dimension of a Filter's tags field: match
// any event carrying tag name with one of values.
type TagFilter struct {
	Name   string
	Values []string
}

// Filter is the query structure: every field is optional, fields compose
// as AND across dimensions and OR within one, and Limit <= 0 means
// unbounded.
type Filter struct {
	IDs     []string // hex, possibly odd-length prefixes
	Authors []string // hex, possibly odd-length prefixes
	Kinds   []uint64
	Tags    []TagFilter
	Since   *int64
	Until   *int64
	Limit   int
	Desc    bool
	Words   []string
}

// matchesAuthor reports whether idx was signed or delegated by one of
// authors. It compares full 32-byte values only; an empty authors list
// matches every record.
func (idx *ArchivedIndex) matchesAuthor(authors [][32]byte) bool {
	if len(authors) == 0 {
		return true
	}
	for _, a := range authors {
		if idx.PubKey == a {
			return true
		}
		if idx.Delegator != nil && *idx.Delegator == a {
			return true
		}
	}
	return false
}

// matchesKind reports whether idx.Kind is one of kinds (or kinds is empty).
func (idx *ArchivedIndex) matchesKind(kinds []uint64) bool {
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if idx.Kind == k {
			return true
		}
	}
	return false
}

// matchesTags reports whether idx carries, for every dimension of tags, at
// least one of the named tag's listed values.
func (idx *ArchivedIndex) matchesTags(tags []TagFilter) bool {
	for _, tf := range tags {
		if !idx.hasAnyTagValue(tf.Name, tf.Values) {
			return false
		}
	}
	return true
}

func (idx *ArchivedIndex) hasAnyTagValue(name string, values []string) bool {
	for _, t := range idx.Tags {
		if t.Name != name {
			continue
		}
		for _, v := range t.Values {
			for _, want := range values {
				if v == want {
					return true
				}
			}
		}
	}
	return false
}

// matchesIDPrefix reports whether idx.ID's hex encoding starts with any of
// prefixes (used only when the driving index is not ix_id, e.g. a words
// query that also carries an ids filter).
func (idx *ArchivedIndex) matchesIDPrefix(prefixes []string) bool {
	if len(prefixes) == 0 {
		return true
	}
	hexID := hexEncode(idx.ID[:])
	for _, p := range prefixes {
		if len(hexID) >= len(p) && hexID[:len(p)] == p {
			return true
		}
	}
	return false
}

func hexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

// matchFull evaluates every field of f against idx except the ones the
// driving index already subsumed; the planner tells the iterator which
// level to apply.
func (idx *ArchivedIndex) matchFull(f *Filter, authors [][32]byte) bool {
	if !idx.matchesAuthor(authors) {
		return false
	}
	if !idx.matchesIDPrefix(f.IDs) {
		return false
	}
	if !idx.matchesKind(f.Kinds) {
		return false
	}
	if !idx.matchesTags(f.Tags) {
		return false
	}
	return true
}
