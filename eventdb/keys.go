package eventdb

import (
	"encoding/binary"
	"encoding/hex"
)

// Key layouts. Every multi-byte integer is big-endian so lexicographic
// byte order matches numeric order. Downstream code slices fixed offsets
// out of these keys, so every encoder produces exactly its schema's
// bytes.
const (
	idLen   = 32
	timeLen = 8
	kindLen = 8
	uidLen  = 8
)

func putTime(dst []byte, t int64) {
	binary.BigEndian.PutUint64(dst, uint64(t))
}

func getTime(src []byte) int64 {
	return int64(binary.BigEndian.Uint64(src))
}

func putUID(dst []byte, uid uint64) {
	binary.BigEndian.PutUint64(dst, uid)
}

func getUID(src []byte) uint64 {
	return binary.BigEndian.Uint64(src)
}

func putKind(dst []byte, kind uint64) {
	binary.BigEndian.PutUint64(dst, kind)
}

// encodeID builds the ix_id key: id(32) ‖ t(8).
func encodeID(id [32]byte, t int64) []byte {
	k := make([]byte, idLen+timeLen)
	copy(k, id[:])
	putTime(k[idLen:], t)
	return k
}

// encodePubkey builds the ix_pubkey key: pk(32) ‖ t(8).
func encodePubkey(pk [32]byte, t int64) []byte {
	k := make([]byte, idLen+timeLen)
	copy(k, pk[:])
	putTime(k[idLen:], t)
	return k
}

// encodeKind builds the ix_kind key: k(8) ‖ t(8).
func encodeKind(kind uint64, t int64) []byte {
	k := make([]byte, kindLen+timeLen)
	putKind(k, kind)
	putTime(k[kindLen:], t)
	return k
}

// encodePubkeyKind builds the ix_pubkey_kind key: pk(32) ‖ k(8) ‖ t(8).
func encodePubkeyKind(pk [32]byte, kind uint64, t int64) []byte {
	k := make([]byte, idLen+kindLen+timeLen)
	copy(k, pk[:])
	putKind(k[idLen:], kind)
	putTime(k[idLen+kindLen:], t)
	return k
}

// encodeTimeKey builds the ix_time key: t(8).
func encodeTimeKey(t int64) []byte {
	k := make([]byte, timeLen)
	putTime(k, t)
	return k
}

// maxTagValueLen caps indexed tag values: longer ones are skipped at
// ingestion so encodeTag plus 8 bytes of time plus a 32-byte identity
// fits within a typical 511-byte substrate key-size ceiling.
const maxTagValueLen = 255

// encodeTag builds the ix_tag key: name ‖ 0x00 ‖ val ‖ 0x00 ‖ t(8). The
// zero separators are required: without them a scan on prefix
// name‖0x00‖val would also match keys whose value merely starts with val.
func encodeTag(name, val string, t int64) []byte {
	k := make([]byte, 0, len(name)+1+len(val)+1+timeLen)
	k = append(k, name...)
	k = append(k, 0x00)
	k = append(k, val...)
	k = append(k, 0x00)
	tb := make([]byte, timeLen)
	putTime(tb, t)
	return append(k, tb...)
}

// encodeTagPrefix builds the scan prefix name ‖ 0x00 ‖ val ‖ 0x00 shared by
// every ix_tag entry for (name, val) regardless of time.
func encodeTagPrefix(name, val string) []byte {
	k := make([]byte, 0, len(name)+1+len(val)+1)
	k = append(k, name...)
	k = append(k, 0x00)
	k = append(k, val...)
	k = append(k, 0x00)
	return k
}

// encodeWord builds the ix_word key: w ‖ 0x00 ‖ t(8).
func encodeWord(w string, t int64) []byte {
	k := make([]byte, 0, len(w)+1+timeLen)
	k = append(k, w...)
	k = append(k, 0x00)
	tb := make([]byte, timeLen)
	putTime(tb, t)
	return append(k, tb...)
}

func encodeWordPrefix(w string) []byte {
	k := make([]byte, 0, len(w)+1)
	k = append(k, w...)
	k = append(k, 0x00)
	return k
}

// encodeDeletionKey builds the deletion table key: tombstoned-id ‖
// deleter-pubkey.
func encodeDeletionKey(id, pubkey [32]byte) []byte {
	k := make([]byte, idLen*2)
	copy(k, id[:])
	copy(k[idLen:], pubkey[:])
	return k
}

// replaceKeyRule selects which replace-key derivation rule applies to
// kind: replaceable kinds collapse to one live event per (pubkey, kind),
// parameterized-replaceable kinds to one per (pubkey, kind, d-tag).
type replaceKeyRule int

const (
	noReplaceKey replaceKeyRule = iota
	plainReplaceKey
	parameterizedReplaceKey
)

func replaceKeyRuleFor(kind uint64) replaceKeyRule {
	switch {
	case kind == 0, kind == 3, kind == 41:
		return plainReplaceKey
	case kind >= 10000 && kind < 20000:
		return plainReplaceKey
	case kind >= 30000 && kind < 40000:
		return parameterizedReplaceKey
	default:
		return noReplaceKey
	}
}

// replaceKey derives the replace-key for e, or nil if e's kind carries
// none. err is non-nil only when the derived key would exceed the maximum
// size ingestion accepts (255 + 8 + 32 bytes).
func replaceKey(e *Event) (rk []byte, err error) {
	switch replaceKeyRuleFor(e.Kind) {
	case noReplaceKey:
		return nil, nil
	case plainReplaceKey:
		k := make([]byte, 0, kindLen+idLen)
		kb := make([]byte, kindLen)
		putKind(kb, e.Kind)
		k = append(k, kb...)
		k = append(k, e.PubKey[:]...)
		return k, nil
	case parameterizedReplaceKey:
		d := e.DTagValue()
		k := make([]byte, 0, kindLen+idLen+len(d))
		kb := make([]byte, kindLen)
		putKind(kb, e.Kind)
		k = append(k, kb...)
		k = append(k, e.PubKey[:]...)
		k = append(k, d...)
		if len(k) > maxTagValueLen+timeLen+idLen {
			return nil, ErrInvalid("replace-key exceeds maximum size")
		}
		return k, nil
	}
	return nil, nil
}

// hexDecode decodes s into dst, requiring len(s) == 2*len(dst). It returns
// the number of bytes written.
func hexDecode(dst []byte, s string) (int, error) {
	if len(s) != 2*len(dst) {
		return 0, hex.ErrLength
	}
	return hex.Decode(dst, []byte(s))
}

// decodeHexPrefix decodes a filter's hex id/author prefix string, which may
// have odd length. Even-length strings decode directly. Odd-length
// strings are padded with '0' (ascending scans) or 'f' (descending scans)
// to make the final nibble concrete, yielding the correct inclusive
// lexicographic endpoint; the caller re-verifies the padded nibble was not
// itself meaningful by comparing against the original string.
func decodeHexPrefix(s string, desc bool) (prefix []byte, odd bool, err error) {
	if len(s) == 0 {
		return nil, false, nil
	}
	padded := s
	odd = len(s)%2 == 1
	if odd {
		if desc {
			padded = s + "f"
		} else {
			padded = s + "0"
		}
	}
	b, err := hex.DecodeString(padded)
	if err != nil {
		return nil, false, &EncodingError{Reason: "invalid hex prefix: " + s}
	}
	return b, odd, nil
}

// upper computes the exclusive-descending-scan upper bound of prefix P:
// increment the last non-0xFF byte and strip every trailing 0xFF byte. It
// returns ok=false when P is all 0xFF (no finite upper bound; the caller
// must instead seek to end-of-tree).
func upper(prefix []byte) (out []byte, ok bool) {
	i := len(prefix) - 1
	for i >= 0 && prefix[i] == 0xFF {
		i--
	}
	if i < 0 {
		return nil, false
	}
	out = make([]byte, i+1)
	copy(out, prefix[:i+1])
	out[i]++
	return out, true
}
