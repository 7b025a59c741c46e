package eventdb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeTagZeroSeparator(t *testing.T) {
	// "nostr" and "nostr1" must not collide on a shared prefix scan: the
	// zero separator after the value is what keeps them apart.
	prefix := encodeTagPrefix("t", "nostr")
	full := encodeTag("t", "nostr1", 1000)
	assert.False(t, withinPrefix(full, prefix), "nostr1 key must not fall under the nostr prefix")

	exact := encodeTag("t", "nostr", 1000)
	assert.True(t, withinPrefix(exact, prefix))
}

func TestUpperBound(t *testing.T) {
	out, ok := upper([]byte{0x01, 0x02})
	require.True(t, ok)
	assert.Equal(t, []byte{0x01, 0x03}, out)

	out, ok = upper([]byte{0x01, 0xFF})
	require.True(t, ok)
	assert.Equal(t, []byte{0x02}, out)

	_, ok = upper([]byte{0xFF, 0xFF})
	assert.False(t, ok, "all-0xFF prefix has no finite upper bound")
}

func TestDecodeHexPrefixEvenLength(t *testing.T) {
	b, odd, err := decodeHexPrefix("deadbeef", false)
	require.NoError(t, err)
	assert.False(t, odd)
	assert.Equal(t, []byte{0xde, 0xad, 0xbe, 0xef}, b)
}

func TestDecodeHexPrefixOddLength(t *testing.T) {
	ascending, odd, err := decodeHexPrefix("abc", false)
	require.NoError(t, err)
	assert.True(t, odd)
	assert.Equal(t, []byte{0xab, 0xc0}, ascending)

	descending, odd, err := decodeHexPrefix("abc", true)
	require.NoError(t, err)
	assert.True(t, odd)
	assert.Equal(t, []byte{0xab, 0xcf}, descending)
}

func TestDecodeHexPrefixInvalid(t *testing.T) {
	_, _, err := decodeHexPrefix("zz", false)
	require.Error(t, err)
	var encErr *EncodingError
	assert.ErrorAs(t, err, &encErr)
}

func TestReplaceKeyRules(t *testing.T) {
	assert.Equal(t, noReplaceKey, replaceKeyRuleFor(1))
	assert.Equal(t, plainReplaceKey, replaceKeyRuleFor(0))
	assert.Equal(t, plainReplaceKey, replaceKeyRuleFor(3))
	assert.Equal(t, plainReplaceKey, replaceKeyRuleFor(41))
	assert.Equal(t, plainReplaceKey, replaceKeyRuleFor(10000))
	assert.Equal(t, plainReplaceKey, replaceKeyRuleFor(19999))
	assert.Equal(t, noReplaceKey, replaceKeyRuleFor(20000))
	assert.Equal(t, parameterizedReplaceKey, replaceKeyRuleFor(30000))
	assert.Equal(t, parameterizedReplaceKey, replaceKeyRuleFor(39999))
	assert.Equal(t, noReplaceKey, replaceKeyRuleFor(40000))
}

func TestReplaceKeyOversizeRejected(t *testing.T) {
	e := &Event{Kind: 30000, Tags: []Tag{{Name: "d", Values: []string{string(make([]byte, 300))}}}}
	_, err := replaceKey(e)
	require.Error(t, err)
}

func TestArchivedIndexRoundTrip(t *testing.T) {
	delegator := [32]byte{9}
	exp := int64(555)
	idx := &ArchivedIndex{
		ID:         [32]byte{1},
		PubKey:     [32]byte{2},
		Kind:       1,
		CreatedAt:  1000,
		Delegator:  &delegator,
		Expiration: &exp,
		Tags: []Tag{
			{Name: "e", Values: []string{"abc"}},
			{Name: "p", Values: []string{"def", "ghi"}},
		},
	}
	encoded := encodeArchivedIndex(idx)
	decoded, err := decodeArchivedIndex(encoded)
	require.NoError(t, err)
	assert.Equal(t, idx.ID, decoded.ID)
	assert.Equal(t, idx.PubKey, decoded.PubKey)
	assert.Equal(t, idx.Kind, decoded.Kind)
	assert.Equal(t, idx.CreatedAt, decoded.CreatedAt)
	require.NotNil(t, decoded.Delegator)
	assert.Equal(t, *idx.Delegator, *decoded.Delegator)
	require.NotNil(t, decoded.Expiration)
	assert.Equal(t, *idx.Expiration, *decoded.Expiration)
	assert.Equal(t, idx.Tags, decoded.Tags)
}

func TestWordListRoundTrip(t *testing.T) {
	words := []string{"hello", "world", "nostr"}
	encoded := encodeWordList(words)
	decoded, err := decodeWordList(encoded)
	require.NoError(t, err)
	assert.Equal(t, words, decoded)
}

func TestPayloadCompressionRoundTrip(t *testing.T) {
	payload := []byte(`{"id":"abc","content":"hello world, this compresses reasonably well reasonably well"}`)

	plain := encodePayload(payload, false)
	assert.Equal(t, payload, plain)
	decodedPlain, err := decodePayload(plain)
	require.NoError(t, err)
	assert.Equal(t, payload, decodedPlain)

	compressed := encodePayload(payload, true)
	assert.NotEqual(t, payload, compressed)
	decodedCompressed, err := decodePayload(compressed)
	require.NoError(t, err)
	assert.Equal(t, payload, decodedCompressed)
}
