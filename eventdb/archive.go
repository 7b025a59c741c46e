package eventdb

import (
	"encoding/binary"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// ArchivedIndex is the compact record stored in the index table: enough of
// an event to evaluate a filter's secondary predicates without touching
// data, so a scan never pays payload decompression to reject a candidate.
type ArchivedIndex struct {
	ID         [32]byte
	PubKey     [32]byte
	Kind       uint64
	CreatedAt  int64
	Delegator  *[32]byte
	Expiration *int64
	Tags       []Tag
}

const (
	archiveFlagDelegator  = 1 << 0
	archiveFlagExpiration = 1 << 1
)

// encodeArchivedIndex serialises idx to the on-disk format for the index
// table. The format is internal but must stay stable for a database's
// lifetime since records are re-read on every query.
func encodeArchivedIndex(idx *ArchivedIndex) []byte {
	var flags byte
	if idx.Delegator != nil {
		flags |= archiveFlagDelegator
	}
	if idx.Expiration != nil {
		flags |= archiveFlagExpiration
	}

	size := 1 + idLen + idLen + 8 + 8
	if idx.Delegator != nil {
		size += idLen
	}
	if idx.Expiration != nil {
		size += 8
	}
	size += 4 // tag count
	for _, t := range idx.Tags {
		size += 2 + len(t.Name)
		size += 2 // value count
		for _, v := range t.Values {
			size += 2 + len(v)
		}
	}

	buf := make([]byte, size)
	off := 0
	buf[off] = flags
	off++
	copy(buf[off:], idx.ID[:])
	off += idLen
	copy(buf[off:], idx.PubKey[:])
	off += idLen
	binary.BigEndian.PutUint64(buf[off:], idx.Kind)
	off += 8
	binary.BigEndian.PutUint64(buf[off:], uint64(idx.CreatedAt))
	off += 8
	if idx.Delegator != nil {
		copy(buf[off:], idx.Delegator[:])
		off += idLen
	}
	if idx.Expiration != nil {
		binary.BigEndian.PutUint64(buf[off:], uint64(*idx.Expiration))
		off += 8
	}
	binary.BigEndian.PutUint32(buf[off:], uint32(len(idx.Tags)))
	off += 4
	for _, t := range idx.Tags {
		binary.BigEndian.PutUint16(buf[off:], uint16(len(t.Name)))
		off += 2
		copy(buf[off:], t.Name)
		off += len(t.Name)
		binary.BigEndian.PutUint16(buf[off:], uint16(len(t.Values)))
		off += 2
		for _, v := range t.Values {
			binary.BigEndian.PutUint16(buf[off:], uint16(len(v)))
			off += 2
			copy(buf[off:], v)
			off += len(v)
		}
	}
	return buf
}

// decodeArchivedIndex is the inverse of encodeArchivedIndex. A decode
// failure here indicates substrate corruption, not an ingestion bug, since
// the format is never mutated after write.
func decodeArchivedIndex(b []byte) (*ArchivedIndex, error) {
	const minLen = 1 + idLen + idLen + 8 + 8 + 4
	if len(b) < minLen {
		return nil, &SerializationError{Reason: "archived index record truncated"}
	}
	idx := &ArchivedIndex{}
	off := 0
	flags := b[off]
	off++
	copy(idx.ID[:], b[off:off+idLen])
	off += idLen
	copy(idx.PubKey[:], b[off:off+idLen])
	off += idLen
	idx.Kind = binary.BigEndian.Uint64(b[off:])
	off += 8
	idx.CreatedAt = int64(binary.BigEndian.Uint64(b[off:]))
	off += 8
	if flags&archiveFlagDelegator != 0 {
		if len(b) < off+idLen {
			return nil, &SerializationError{Reason: "archived index record truncated at delegator"}
		}
		var d [32]byte
		copy(d[:], b[off:off+idLen])
		idx.Delegator = &d
		off += idLen
	}
	if flags&archiveFlagExpiration != 0 {
		if len(b) < off+8 {
			return nil, &SerializationError{Reason: "archived index record truncated at expiration"}
		}
		exp := int64(binary.BigEndian.Uint64(b[off:]))
		idx.Expiration = &exp
		off += 8
	}
	if len(b) < off+4 {
		return nil, &SerializationError{Reason: "archived index record truncated at tag count"}
	}
	tagCount := binary.BigEndian.Uint32(b[off:])
	off += 4
	idx.Tags = make([]Tag, 0, tagCount)
	for i := uint32(0); i < tagCount; i++ {
		if len(b) < off+2 {
			return nil, &SerializationError{Reason: "archived index record truncated at tag name length"}
		}
		nameLen := int(binary.BigEndian.Uint16(b[off:]))
		off += 2
		if len(b) < off+nameLen {
			return nil, &SerializationError{Reason: "archived index record truncated at tag name"}
		}
		name := string(b[off : off+nameLen])
		off += nameLen
		if len(b) < off+2 {
			return nil, &SerializationError{Reason: "archived index record truncated at value count"}
		}
		valCount := int(binary.BigEndian.Uint16(b[off:]))
		off += 2
		values := make([]string, 0, valCount)
		for j := 0; j < valCount; j++ {
			if len(b) < off+2 {
				return nil, &SerializationError{Reason: "archived index record truncated at value length"}
			}
			vLen := int(binary.BigEndian.Uint16(b[off:]))
			off += 2
			if len(b) < off+vLen {
				return nil, &SerializationError{Reason: "archived index record truncated at value"}
			}
			values = append(values, string(b[off:off+vLen]))
			off += vLen
		}
		idx.Tags = append(idx.Tags, Tag{Name: name, Values: values})
	}
	return idx, nil
}

// encodeWordList serialises a word list for uid_word, snappy-compressing
// it. Word lists are re-read on every delete of a word-indexed event, so
// the near-zero decode cost of snappy wins over zstd's ratio here.
func encodeWordList(words []string) []byte {
	var size int
	size += 4
	for _, w := range words {
		size += 2 + len(w)
	}
	raw := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint32(raw[off:], uint32(len(words)))
	off += 4
	for _, w := range words {
		binary.BigEndian.PutUint16(raw[off:], uint16(len(w)))
		off += 2
		copy(raw[off:], w)
		off += len(w)
	}
	return snappy.Encode(nil, raw)
}

func decodeWordList(b []byte) ([]string, error) {
	raw, err := snappy.Decode(nil, b)
	if err != nil {
		return nil, &SerializationError{Reason: "word list snappy decode", Err: err}
	}
	if len(raw) < 4 {
		return nil, &SerializationError{Reason: "word list truncated"}
	}
	count := binary.BigEndian.Uint32(raw)
	off := 4
	words := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(raw) < off+2 {
			return nil, &SerializationError{Reason: "word list truncated at length"}
		}
		l := int(binary.BigEndian.Uint16(raw[off:]))
		off += 2
		if len(raw) < off+l {
			return nil, &SerializationError{Reason: "word list truncated at word"}
		}
		words = append(words, string(raw[off:off+l]))
		off += l
	}
	return words, nil
}

// payloadCompressedMarker trails every compressed payload: 0x01 appended
// after the zstd frame distinguishes it from a raw payload.
const payloadCompressedMarker = 0x01

var zstdEncoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
var zstdDecoder, _ = zstd.NewReader(nil)

// encodePayload optionally zstd-compresses payload, appending the marker
// byte when it does. Compression is a per-store Options.CompressPayloads
// toggle; decodePayload accepts either form regardless.
func encodePayload(payload []byte, compress bool) []byte {
	if !compress {
		return payload
	}
	compressed := zstdEncoder.EncodeAll(payload, nil)
	return append(compressed, payloadCompressedMarker)
}

func decodePayload(stored []byte) ([]byte, error) {
	if len(stored) == 0 {
		return stored, nil
	}
	if stored[len(stored)-1] != payloadCompressedMarker {
		return stored, nil
	}
	raw, err := zstdDecoder.DecodeAll(stored[:len(stored)-1], nil)
	if err != nil {
		return nil, &SerializationError{Reason: "payload zstd decode", Err: err}
	}
	return raw, nil
}
