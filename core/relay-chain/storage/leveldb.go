package storage

import (
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/syndtr/goleveldb/leveldb"
	lvlstorage "github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

// Key prefixes, one per bolt bucket.
var (
	prefixMeta      = []byte("m")
	prefixOwner     = []byte("o")
	prefixApproval  = []byte("a")
	prefixRetired   = []byte("r")
	prefixEvent     = []byte("e")
	prefixProcessed = []byte("p")
)

// LevelStore maps the ledger onto one goleveldb keyspace. Every write goes
// through a single batch.
type LevelStore struct {
	db *leveldb.DB
}

func OpenLevelDB(path string) (*LevelStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb %s: %w", path, err)
	}
	return &LevelStore{db: db}, nil
}

// OpenMemory returns a LevelStore backed by memory only.
func OpenMemory() (*LevelStore, error) {
	db, err := leveldb.Open(lvlstorage.NewMemStorage(), nil)
	if err != nil {
		return nil, fmt.Errorf("open memory store: %w", err)
	}
	return &LevelStore{db: db}, nil
}

func prefixed(prefix, key []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(key))
	out = append(out, prefix...)
	return append(out, key...)
}

func (s *LevelStore) SaveSnapshot(snap *nft.Snapshot) error {
	batch := new(leveldb.Batch)
	if err := s.batchSnapshot(batch, snap); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *LevelStore) AppendEvents(events []nft.Event) error {
	batch := new(leveldb.Batch)
	if err := batchEvents(batch, events); err != nil {
		return err
	}
	return s.db.Write(batch, nil)
}

func (s *LevelStore) MarkProcessed(hash common.Hash) error {
	return s.db.Put(prefixed(prefixProcessed, hash.Bytes()), processedValue(), nil)
}

func (s *LevelStore) Commit(snap *nft.Snapshot, events []nft.Event, processed ...common.Hash) error {
	batch := new(leveldb.Batch)
	if snap != nil {
		if err := batchMeta(batch, snap); err != nil {
			return err
		}
		batchTokens(batch, snap, touchedTokens(events))
	}
	if err := batchEvents(batch, events); err != nil {
		return err
	}
	for _, hash := range processed {
		if hash != (common.Hash{}) {
			batch.Put(prefixed(prefixProcessed, hash.Bytes()), processedValue())
		}
	}
	return s.db.Write(batch, nil)
}

func (s *LevelStore) LoadSnapshot() (*nft.Snapshot, error) {
	data, err := s.db.Get(prefixed(prefixMeta, metaKey), nil)
	if err == leveldb.ErrNotFound {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, err
	}
	snap, err := decodeMeta(data)
	if err != nil {
		return nil, err
	}

	if err := s.loadAddresses(prefixOwner, snap.Owners); err != nil {
		return nil, fmt.Errorf("load owners: %w", err)
	}
	if err := s.loadAddresses(prefixApproval, snap.Approvals); err != nil {
		return nil, fmt.Errorf("load approvals: %w", err)
	}

	iter := s.db.NewIterator(util.BytesPrefix(prefixRetired), nil)
	defer iter.Release()
	for iter.Next() {
		id, err := decodeUint64Key(iter.Key()[len(prefixRetired):])
		if err != nil {
			return nil, fmt.Errorf("load retired ids: %w", err)
		}
		snap.Retired = append(snap.Retired, id)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *LevelStore) Events(since uint64) ([]nft.Event, error) {
	if since == math.MaxUint64 {
		return nil, nil
	}
	r := util.BytesPrefix(prefixEvent)
	r.Start = prefixed(prefixEvent, uint64Key(since+1))

	iter := s.db.NewIterator(r, nil)
	defer iter.Release()

	var events []nft.Event
	for iter.Next() {
		e, err := decodeEvent(iter.Value())
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, iter.Error()
}

func (s *LevelStore) IsProcessed(hash common.Hash) (bool, error) {
	return s.db.Has(prefixed(prefixProcessed, hash.Bytes()), nil)
}

func (s *LevelStore) Close() error {
	return s.db.Close()
}

// batchSnapshot queues deletes for the stored per-token keys followed by
// puts for snap, so the batch replaces the previous state.
func (s *LevelStore) batchSnapshot(batch *leveldb.Batch, snap *nft.Snapshot) error {
	if err := batchMeta(batch, snap); err != nil {
		return err
	}

	for _, prefix := range [][]byte{prefixOwner, prefixApproval, prefixRetired} {
		iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
		for iter.Next() {
			batch.Delete(append([]byte(nil), iter.Key()...))
		}
		iter.Release()
		if err := iter.Error(); err != nil {
			return err
		}
	}

	for id, owner := range snap.Owners {
		batch.Put(prefixed(prefixOwner, uint64Key(id)), owner.Bytes())
	}
	for id, approved := range snap.Approvals {
		batch.Put(prefixed(prefixApproval, uint64Key(id)), approved.Bytes())
	}
	for _, id := range snap.Retired {
		batch.Put(prefixed(prefixRetired, uint64Key(id)), []byte{1})
	}
	return nil
}

func batchMeta(batch *leveldb.Batch, snap *nft.Snapshot) error {
	meta, err := encodeMeta(snap)
	if err != nil {
		return err
	}
	batch.Put(prefixed(prefixMeta, metaKey), meta)
	return nil
}

// batchTokens queues the owner, approval and retired keys of ids from snap.
func batchTokens(batch *leveldb.Batch, snap *nft.Snapshot, ids []uint64) {
	for _, id := range ids {
		key := uint64Key(id)
		if owner, ok := snap.Owners[id]; ok {
			batch.Put(prefixed(prefixOwner, key), owner.Bytes())
		} else {
			batch.Delete(prefixed(prefixOwner, key))
		}
		if approved, ok := snap.Approvals[id]; ok {
			batch.Put(prefixed(prefixApproval, key), approved.Bytes())
		} else {
			batch.Delete(prefixed(prefixApproval, key))
		}
		if isRetired(snap, id) {
			batch.Put(prefixed(prefixRetired, key), []byte{1})
		} else {
			batch.Delete(prefixed(prefixRetired, key))
		}
	}
}

func batchEvents(batch *leveldb.Batch, events []nft.Event) error {
	for _, e := range events {
		data, err := encodeEvent(e)
		if err != nil {
			return err
		}
		batch.Put(prefixed(prefixEvent, uint64Key(e.Sequence)), data)
	}
	return nil
}

func (s *LevelStore) loadAddresses(prefix []byte, into map[uint64]common.Address) error {
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()
	for iter.Next() {
		id, err := decodeUint64Key(iter.Key()[len(prefix):])
		if err != nil {
			return err
		}
		addr, err := decodeAddress(iter.Value())
		if err != nil {
			return err
		}
		into[id] = addr
	}
	return iter.Error()
}
