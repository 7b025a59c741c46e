package eventdb

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestMultiDimensionTagIntersect covers intersect-uid semantics: a filter
// naming two tag dimensions only matches events carrying both.
func TestMultiDimensionTagIntersect(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	both := &Event{
		ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100,
		Tags:    []Tag{{Name: "t", Values: []string{"nostr"}}, {Name: "p", Values: []string{"alice"}}},
		Payload: []byte("both"),
	}
	onlyT := &Event{
		ID: idAt(2), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 101,
		Tags:    []Tag{{Name: "t", Values: []string{"nostr"}}},
		Payload: []byte("only-t"),
	}
	_, err := s.Put(ctx, both)
	require.NoError(t, err)
	_, err = s.Put(ctx, onlyT)
	require.NoError(t, err)

	f := &Filter{
		Tags: []TagFilter{
			{Name: "t", Values: []string{"nostr"}},
			{Name: "p", Values: []string{"alice"}},
		},
		Limit: 10,
	}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	var results [][]byte
	for {
		v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		results = append(results, v)
	}
	require.Len(t, results, 1)
	require.Equal(t, []byte("both"), results[0])
}

// TestPureTagFilterSkipsSecondaryMatch asserts a tags-only filter is fully
// resolved by the driving ix_tag scan: no archived-index fetches happen,
// for one dimension or several.
func TestPureTagFilterSkipsSecondaryMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := &Event{
		ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100,
		Tags:    []Tag{{Name: "t", Values: []string{"nostr"}}, {Name: "p", Values: []string{"alice"}}},
		Payload: []byte("e"),
	}
	_, err := s.Put(ctx, e)
	require.NoError(t, err)

	filters := []*Filter{
		{Tags: []TagFilter{{Name: "t", Values: []string{"nostr"}}}, Limit: 10},
		{Tags: []TagFilter{{Name: "t", Values: []string{"nostr"}}, {Name: "p", Values: []string{"alice"}}}, Limit: 10},
	}
	for _, f := range filters {
		it, tx, err := Query(ctx, s, f, decodeBytes)
		require.NoError(t, err)

		count := 0
		for {
			_, ok, err := it.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			count++
		}
		require.Equal(t, 1, count)
		require.Zero(t, it.Stats().GetIndex, "tags-only filter must not re-check the archived index")
		it.Close()
		tx.Rollback()
	}
}

// TestAuthorsAndKindsCombo covers priority-4 planning (ix_pubkey_kind) with
// full 32-byte authors.
func TestAuthorsAndKindsCombo(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	match := &Event{ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100, Payload: []byte("match")}
	wrongKind := &Event{ID: idAt(2), PubKey: pubkeyAt(1), Kind: 2, CreatedAt: 101, Payload: []byte("wrong-kind")}
	wrongAuthor := &Event{ID: idAt(3), PubKey: pubkeyAt(2), Kind: 1, CreatedAt: 102, Payload: []byte("wrong-author")}
	for _, e := range []*Event{match, wrongKind, wrongAuthor} {
		_, err := s.Put(ctx, e)
		require.NoError(t, err)
	}

	f := &Filter{Authors: []string{hexEncode(pubkeyAt(1)[:])}, Kinds: []uint64{1}, Limit: 10}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	var results [][]byte
	for {
		v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		results = append(results, v)
	}
	require.Len(t, results, 1)
	require.Equal(t, []byte("match"), results[0])
}

// TestIDsPrefixScan covers priority-2 planning with an even-length short
// hex prefix: only ids under the prefix come back.
func TestIDsPrefixScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var id1, id2 [32]byte
	id1[0] = 0xAB
	id2[0] = 0xAC
	e1 := &Event{ID: id1, PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100, Payload: []byte("e1")}
	e2 := &Event{ID: id2, PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 101, Payload: []byte("e2")}
	_, err := s.Put(ctx, e1)
	require.NoError(t, err)
	_, err = s.Put(ctx, e2)
	require.NoError(t, err)

	f := &Filter{IDs: []string{"ab"}, Limit: 10}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	v, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("e1"), v)

	_, ok, err = it.Next()
	require.NoError(t, err)
	require.False(t, ok)
}

// TestIDsOddPrefixScan pins down the odd-length padding rule: an odd hex
// prefix bounds the scan by its even-length head and must still match
// every id whose final nibble differs from the padded one, in both
// directions.
func TestIDsOddPrefixScan(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	var idLow, idHigh, idOut [32]byte
	idLow[0] = 0xA2  // hex "a2...", matches prefix "a"
	idHigh[0] = 0xAD // hex "ad...", matches prefix "a"
	idOut[0] = 0xB1  // hex "b1...", does not
	eLow := &Event{ID: idLow, PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100, Payload: []byte("low")}
	eHigh := &Event{ID: idHigh, PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 101, Payload: []byte("high")}
	eOut := &Event{ID: idOut, PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 102, Payload: []byte("out")}
	for _, e := range []*Event{eLow, eHigh, eOut} {
		_, err := s.Put(ctx, e)
		require.NoError(t, err)
	}

	for _, desc := range []bool{false, true} {
		f := &Filter{IDs: []string{"a"}, Desc: desc, Limit: 10}
		it, tx, err := Query(ctx, s, f, decodeBytes)
		require.NoError(t, err)

		var results [][]byte
		for {
			v, ok, err := it.Next()
			require.NoError(t, err)
			if !ok {
				break
			}
			results = append(results, v)
		}
		it.Close()
		tx.Rollback()

		require.Len(t, results, 2, "desc=%v", desc)
		if desc {
			require.Equal(t, [][]byte{[]byte("high"), []byte("low")}, results)
		} else {
			require.Equal(t, [][]byte{[]byte("low"), []byte("high")}, results)
		}
	}
}

// TestSameTimestampUIDOrdering checks the merge tie-break: records sharing
// created_at come out in uid order matching the scan direction.
func TestSameTimestampUIDOrdering(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := byte(1); i <= 4; i++ {
		_, err := s.Put(ctx, &Event{ID: idAt(i), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100, Payload: []byte{i}})
		require.NoError(t, err)
	}

	f := &Filter{Kinds: []uint64{1}, Desc: true, Limit: 10}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	var order []byte
	for {
		v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		order = append(order, v[0])
	}
	require.Equal(t, []byte{4, 3, 2, 1}, order, "descending scan emits later uids first at equal time")
}

// TestIteratorSize counts matches without fetching payloads.
func TestIteratorSize(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := byte(1); i <= 5; i++ {
		_, err := s.Put(ctx, &Event{ID: idAt(i), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: int64(i), Payload: []byte{i}})
		require.NoError(t, err)
	}

	f := &Filter{Kinds: []uint64{1}, Limit: 3}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	n, err := it.Size()
	require.NoError(t, err)
	require.Equal(t, 3, n, "size respects limit")
	require.Zero(t, it.Stats().GetData, "size never touches payloads")
}

// TestWordsQuery covers priority-1 planning over ix_word.
func TestWordsQuery(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e1 := &Event{ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100, Words: []string{"hello", "world"}, Payload: []byte("e1")}
	e2 := &Event{ID: idAt(2), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 101, Words: []string{"goodbye"}, Payload: []byte("e2")}
	_, err := s.Put(ctx, e1)
	require.NoError(t, err)
	_, err = s.Put(ctx, e2)
	require.NoError(t, err)

	f := &Filter{Words: []string{"hello"}, Limit: 10}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	v, ok, err := it.Next()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("e1"), v)
}

// TestTagsWithAuthorsAndKindsRequiresFullMatch guards the planner bugfix:
// a tag-driven query that also names authors and kinds must re-check the
// author, not just rely on the tag/kind index alone.
func TestTagsWithAuthorsAndKindsRequiresFullMatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	right := &Event{
		ID: idAt(1), PubKey: pubkeyAt(1), Kind: 1, CreatedAt: 100,
		Tags: []Tag{{Name: "t", Values: []string{"nostr"}}}, Payload: []byte("right"),
	}
	wrongAuthor := &Event{
		ID: idAt(2), PubKey: pubkeyAt(2), Kind: 1, CreatedAt: 101,
		Tags: []Tag{{Name: "t", Values: []string{"nostr"}}}, Payload: []byte("wrong-author"),
	}
	for _, e := range []*Event{right, wrongAuthor} {
		_, err := s.Put(ctx, e)
		require.NoError(t, err)
	}

	f := &Filter{
		Tags:    []TagFilter{{Name: "t", Values: []string{"nostr"}}},
		Authors: []string{hexEncode(pubkeyAt(1)[:])},
		Kinds:   []uint64{1},
		Limit:   10,
	}
	it, tx, err := Query(ctx, s, f, decodeBytes)
	require.NoError(t, err)
	defer tx.Rollback()
	defer it.Close()

	var results [][]byte
	for {
		v, ok, err := it.Next()
		require.NoError(t, err)
		if !ok {
			break
		}
		results = append(results, v)
	}
	require.Len(t, results, 1)
	require.Equal(t, []byte("right"), results[0])
}
