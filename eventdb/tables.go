package eventdb

import "github.com/nostrkv/eventdb/kv"

// Table names. Every table is persisted in the substrate and written
// exclusively by ingestion: never mutated independently of
// putEventWithin/delEventWithin.
const (
	TableData        = "data"
	TableIndex       = "index"
	TableIDUID       = "id_uid"
	TableUIDWord     = "uid_word"
	TableIxID        = "ix_id"
	TableIxPubkey    = "ix_pubkey"
	TableIxKind      = "ix_kind"
	TableIxPubkeyKnd = "ix_pubkey_kind"
	TableIxTime      = "ix_time"
	TableIxTag       = "ix_tag"
	TableIxWord      = "ix_word"
	TableDeletion    = "deletion"
	TableReplacement = "replacement"
	TableExpiration  = "expiration"
)

// primaryTables hold the event record itself, its archived index, and the
// id/uid mappings: one value per key.
var primaryTables = kv.TableCfg{
	TableData:    {Flags: kv.IntegerKey},
	TableIndex:   {Flags: kv.IntegerKey},
	TableIDUID:   {Flags: kv.Default},
	TableUIDWord: {Flags: kv.IntegerKey},
}

// secondaryIndexTables are the seven ix_* scan tables, DupSort (except
// ix_id, whose id‖time key is already unique) so a (prefix, time) tuple
// can carry many uids natively.
var secondaryIndexTables = kv.TableCfg{
	TableIxID:        {Flags: kv.Default},
	TableIxPubkey:    {Flags: kv.IntegerDup | kv.DupSort},
	TableIxKind:      {Flags: kv.IntegerDup | kv.DupSort},
	TableIxPubkeyKnd: {Flags: kv.IntegerDup | kv.DupSort},
	TableIxTime:      {Flags: kv.IntegerKey | kv.IntegerDup | kv.DupSort},
	TableIxTag:       {Flags: kv.DupSort},
	TableIxWord:      {Flags: kv.DupSort},
}

// bookkeepingTables track ingestion-time enforcement state rather than
// scannable indexes: tombstones, replace-key ownership, and pending
// expirations.
var bookkeepingTables = kv.TableCfg{
	TableDeletion:    {Flags: kv.Default},
	TableReplacement: {Flags: kv.Default},
	TableExpiration:  {Flags: kv.IntegerKey | kv.IntegerDup | kv.DupSort},
}

// Tables is the kv.TableCfg this package requires its substrate to open,
// assembled from the three feature-specific registries above the way
// erigon-lib's own tables.go assembles its chaindata config out of several
// partial maps.
var Tables = kv.Merge(primaryTables, secondaryIndexTables, bookkeepingTables)
