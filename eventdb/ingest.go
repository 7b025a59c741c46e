package eventdb

import (
	"github.com/nostrkv/eventdb/kv"
)

// putWithin runs the full ingestion algorithm for one event inside an
// already open write transaction: validation, duplicate and tombstone
// checks, kind-5 deletion enforcement, replacement selection, UID
// assignment, and the multi-index write. Returns the classification and
// the number of events written plus the number deleted.
func (s *Store) putWithin(tx kv.RwTx, e *Event) (PutResult, error) {
	if e.ID == ([32]byte{}) || e.PubKey == ([32]byte{}) {
		return PutResult{Outcome: OutcomeInvalid, Reason: "id or pubkey is zero"}, nil
	}

	existingUID, err := tx.GetOne(TableIDUID, e.ID[:])
	if err != nil {
		return PutResult{}, err
	}
	if existingUID != nil {
		return PutResult{Outcome: OutcomeDuplicate}, nil
	}

	tombstoned, err := tx.Has(TableDeletion, encodeDeletionKey(e.ID, e.PubKey))
	if err != nil {
		return PutResult{}, err
	}
	if tombstoned {
		return PutResult{Outcome: OutcomeDeleted}, nil
	}

	n := 0

	if e.Kind == 5 {
		for _, target := range e.ETagTargets() {
			targetUIDRaw, err := tx.GetOne(TableIDUID, target[:])
			if err != nil {
				return PutResult{}, err
			}
			if targetUIDRaw == nil {
				continue
			}
			targetUID := getUID(targetUIDRaw)
			idx, err := s.loadIndexWithin(tx, targetUID)
			if err != nil {
				return PutResult{}, err
			}
			if idx == nil || idx.Kind == 5 {
				continue
			}
			sameAuthor := idx.PubKey == e.PubKey || (idx.Delegator != nil && *idx.Delegator == e.PubKey)
			if !sameAuthor {
				continue
			}
			if err := s.delEventWithin(tx, targetUID, idx); err != nil {
				return PutResult{}, err
			}
			n++
		}
	}

	rk, err := replaceKey(e)
	if err != nil {
		return PutResult{Outcome: OutcomeInvalid, Reason: err.Error()}, nil
	}
	if rk != nil {
		existingRaw, err := tx.GetOne(TableReplacement, rk)
		if err != nil {
			return PutResult{}, err
		}
		if existingRaw != nil {
			existingUID := getUID(existingRaw)
			existingIdx, err := s.loadIndexWithin(tx, existingUID)
			if err != nil {
				return PutResult{}, err
			}
			if existingIdx != nil {
				if e.CreatedAt < existingIdx.CreatedAt {
					return PutResult{Outcome: OutcomeReplaceIgnored}, nil
				}
				if err := s.delEventWithin(tx, existingUID, existingIdx); err != nil {
					return PutResult{}, err
				}
				n++
			}
		}
	}

	uid := s.nextUID()
	if err := s.putEventWithin(tx, uid, e, rk); err != nil {
		return PutResult{}, err
	}
	n++

	return PutResult{Outcome: OutcomeOK, N: n}, nil
}

// putEventWithin writes data[uid], index[uid], id_uid[id], and every
// applicable secondary index.
func (s *Store) putEventWithin(tx kv.RwTx, uid uint64, e *Event, rk []byte) error {
	uidKey := make([]byte, uidLen)
	putUID(uidKey, uid)

	if err := tx.Put(TableData, uidKey, encodePayload(e.Payload, s.opts.CompressPayloads)); err != nil {
		return err
	}

	idx := &ArchivedIndex{
		ID:         e.ID,
		PubKey:     e.PubKey,
		Kind:       e.Kind,
		CreatedAt:  e.CreatedAt,
		Delegator:  e.Delegator,
		Expiration: e.Expiration,
		Tags:       e.Tags,
	}
	if err := tx.Put(TableIndex, uidKey, encodeArchivedIndex(idx)); err != nil {
		return err
	}

	if err := tx.Put(TableIDUID, e.ID[:], uidKey); err != nil {
		return err
	}

	if err := tx.Put(TableIxID, encodeID(e.ID, e.CreatedAt), uidKey); err != nil {
		return err
	}

	for _, pk := range e.signerPubkeys() {
		if err := tx.Put(TableIxPubkey, encodePubkey(pk, e.CreatedAt), uidKey); err != nil {
			return err
		}
		if err := tx.Put(TableIxPubkeyKnd, encodePubkeyKind(pk, e.Kind, e.CreatedAt), uidKey); err != nil {
			return err
		}
	}

	if err := tx.Put(TableIxKind, encodeKind(e.Kind, e.CreatedAt), uidKey); err != nil {
		return err
	}
	if err := tx.Put(TableIxTime, encodeTimeKey(e.CreatedAt), uidKey); err != nil {
		return err
	}

	for _, t := range e.Tags {
		v := t.FirstValue()
		if len(v) > maxTagValueLen {
			continue
		}
		val := make([]byte, uidLen+kindLen)
		copy(val, uidKey)
		putKind(val[uidLen:], e.Kind)
		if err := tx.Put(TableIxTag, encodeTag(t.Name, v, e.CreatedAt), val); err != nil {
			return err
		}
	}

	if len(e.Words) > 0 {
		if err := tx.Put(TableUIDWord, uidKey, encodeWordList(e.Words)); err != nil {
			return err
		}
		for _, w := range e.Words {
			if err := tx.Put(TableIxWord, encodeWord(w, e.CreatedAt), uidKey); err != nil {
				return err
			}
		}
	}

	if e.Kind == 5 {
		for _, target := range e.ETagTargets() {
			if err := tx.Put(TableDeletion, encodeDeletionKey(target, e.PubKey), uidKey); err != nil {
				return err
			}
		}
	}

	if e.Expiration != nil {
		if err := tx.Put(TableExpiration, encodeTimeKey(*e.Expiration), uidKey); err != nil {
			return err
		}
	}

	if rk != nil {
		if err := tx.Put(TableReplacement, rk, uidKey); err != nil {
			return err
		}
	}

	return nil
}

// delEventWithin is the structural inverse of putEventWithin, given the
// archived index record already loaded for uid. It is idempotent against
// entries already missing.
func (s *Store) delEventWithin(tx kv.RwTx, uid uint64, idx *ArchivedIndex) error {
	uidKey := make([]byte, uidLen)
	putUID(uidKey, uid)

	if err := tx.Delete(TableData, uidKey, nil); err != nil {
		return err
	}
	if err := tx.Delete(TableIndex, uidKey, nil); err != nil {
		return err
	}
	if err := tx.Delete(TableIDUID, idx.ID[:], nil); err != nil {
		return err
	}
	if err := tx.Delete(TableIxID, encodeID(idx.ID, idx.CreatedAt), uidKey); err != nil {
		return err
	}

	signers := [][32]byte{idx.PubKey}
	if idx.Delegator != nil && *idx.Delegator != idx.PubKey {
		signers = append(signers, *idx.Delegator)
	}
	for _, pk := range signers {
		if err := tx.Delete(TableIxPubkey, encodePubkey(pk, idx.CreatedAt), uidKey); err != nil {
			return err
		}
		if err := tx.Delete(TableIxPubkeyKnd, encodePubkeyKind(pk, idx.Kind, idx.CreatedAt), uidKey); err != nil {
			return err
		}
	}

	if err := tx.Delete(TableIxKind, encodeKind(idx.Kind, idx.CreatedAt), uidKey); err != nil {
		return err
	}
	if err := tx.Delete(TableIxTime, encodeTimeKey(idx.CreatedAt), uidKey); err != nil {
		return err
	}

	for _, t := range idx.Tags {
		v := t.FirstValue()
		if len(v) > maxTagValueLen {
			continue
		}
		tagVal := make([]byte, uidLen+kindLen)
		copy(tagVal, uidKey)
		putKind(tagVal[uidLen:], idx.Kind)
		if err := tx.Delete(TableIxTag, encodeTag(t.Name, v, idx.CreatedAt), tagVal); err != nil {
			return err
		}
	}

	wordsRaw, err := tx.GetOne(TableUIDWord, uidKey)
	if err != nil {
		return err
	}
	if wordsRaw != nil {
		words, err := decodeWordList(wordsRaw)
		if err != nil {
			return err
		}
		for _, w := range words {
			if err := tx.Delete(TableIxWord, encodeWord(w, idx.CreatedAt), uidKey); err != nil {
				return err
			}
		}
		if err := tx.Delete(TableUIDWord, uidKey, nil); err != nil {
			return err
		}
	}

	// Deletion entries live and die with the kind-5 event that wrote
	// them, not with the target. Only when the event being removed is a
	// kind 5 do its own tombstones go, and only those still owned by this
	// uid: a later kind 5 by the same author may have overwritten an
	// entry.
	if idx.Kind == 5 {
		for _, target := range (&Event{Tags: idx.Tags}).ETagTargets() {
			dk := encodeDeletionKey(target, idx.PubKey)
			owner, err := tx.GetOne(TableDeletion, dk)
			if err != nil {
				return err
			}
			if owner != nil && getUID(owner) == uid {
				if err := tx.Delete(TableDeletion, dk, nil); err != nil {
					return err
				}
			}
		}
	}

	if idx.Expiration != nil {
		if err := tx.Delete(TableExpiration, encodeTimeKey(*idx.Expiration), uidKey); err != nil {
			return err
		}
	}

	if rk, err := replaceKey(&Event{Kind: idx.Kind, PubKey: idx.PubKey, Tags: idx.Tags}); err == nil && rk != nil {
		if err := tx.Delete(TableReplacement, rk, nil); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) loadIndexWithin(tx kv.Tx, uid uint64) (*ArchivedIndex, error) {
	key := make([]byte, uidLen)
	putUID(key, uid)
	raw, err := tx.GetOne(TableIndex, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	return decodeArchivedIndex(raw)
}
