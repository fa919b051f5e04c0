package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.etcd.io/bbolt"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

var (
	bucketCollection = []byte("collection")
	bucketOwners     = []byte("owners")
	bucketApprovals  = []byte("approvals")
	bucketRetired    = []byte("retired")
	bucketEvents     = []byte("events")
	bucketProcessed  = []byte("processed")
)

// BoltStore keeps each part of the ledger in its own bucket.
type BoltStore struct {
	db *bbolt.DB
}

func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt database %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCollection, bucketOwners, bucketApprovals, bucketRetired, bucketEvents, bucketProcessed} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("create bucket %s: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) SaveSnapshot(snap *nft.Snapshot) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putSnapshot(tx, snap)
	})
}

func (s *BoltStore) AppendEvents(events []nft.Event) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putEvents(tx, events)
	})
}

func (s *BoltStore) MarkProcessed(hash common.Hash) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketProcessed).Put(hash.Bytes(), processedValue())
	})
}

func (s *BoltStore) Commit(snap *nft.Snapshot, events []nft.Event, processed ...common.Hash) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if snap != nil {
			if err := putMeta(tx, snap); err != nil {
				return err
			}
			if err := putTokens(tx, snap, touchedTokens(events)); err != nil {
				return err
			}
		}
		if err := putEvents(tx, events); err != nil {
			return err
		}
		b := tx.Bucket(bucketProcessed)
		for _, hash := range processed {
			if hash == (common.Hash{}) {
				continue
			}
			if err := b.Put(hash.Bytes(), processedValue()); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LoadSnapshot() (*nft.Snapshot, error) {
	var snap *nft.Snapshot
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketCollection).Get(metaKey)
		if data == nil {
			return ErrNoSnapshot
		}
		var err error
		if snap, err = decodeMeta(data); err != nil {
			return err
		}

		if err := loadAddresses(tx.Bucket(bucketOwners), snap.Owners); err != nil {
			return fmt.Errorf("load owners: %w", err)
		}
		if err := loadAddresses(tx.Bucket(bucketApprovals), snap.Approvals); err != nil {
			return fmt.Errorf("load approvals: %w", err)
		}
		return tx.Bucket(bucketRetired).ForEach(func(k, _ []byte) error {
			id, err := decodeUint64Key(k)
			if err != nil {
				return fmt.Errorf("load retired ids: %w", err)
			}
			snap.Retired = append(snap.Retired, id)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *BoltStore) Events(since uint64) ([]nft.Event, error) {
	if since == math.MaxUint64 {
		return nil, nil
	}
	var events []nft.Event
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Seek(uint64Key(since + 1)); k != nil; k, v = c.Next() {
			e, err := decodeEvent(v)
			if err != nil {
				return err
			}
			events = append(events, e)
		}
		return nil
	})
	return events, err
}

func (s *BoltStore) IsProcessed(hash common.Hash) (bool, error) {
	var exists bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		exists = tx.Bucket(bucketProcessed).Get(hash.Bytes()) != nil
		return nil
	})
	return exists, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func putMeta(tx *bbolt.Tx, snap *nft.Snapshot) error {
	meta, err := encodeMeta(snap)
	if err != nil {
		return err
	}
	return tx.Bucket(bucketCollection).Put(metaKey, meta)
}

// putSnapshot replaces the stored state with snap.
func putSnapshot(tx *bbolt.Tx, snap *nft.Snapshot) error {
	if err := putMeta(tx, snap); err != nil {
		return err
	}

	for _, name := range [][]byte{bucketOwners, bucketApprovals, bucketRetired} {
		if err := tx.DeleteBucket(name); err != nil {
			return fmt.Errorf("reset bucket %s: %w", name, err)
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return fmt.Errorf("reset bucket %s: %w", name, err)
		}
	}

	owners := tx.Bucket(bucketOwners)
	for id, owner := range snap.Owners {
		if err := owners.Put(uint64Key(id), owner.Bytes()); err != nil {
			return err
		}
	}
	approvals := tx.Bucket(bucketApprovals)
	for id, approved := range snap.Approvals {
		if err := approvals.Put(uint64Key(id), approved.Bytes()); err != nil {
			return err
		}
	}
	retired := tx.Bucket(bucketRetired)
	for _, id := range snap.Retired {
		if err := retired.Put(uint64Key(id), []byte{1}); err != nil {
			return err
		}
	}
	return nil
}

// putTokens rewrites the owner, approval and retired keys of ids from snap.
func putTokens(tx *bbolt.Tx, snap *nft.Snapshot, ids []uint64) error {
	owners := tx.Bucket(bucketOwners)
	approvals := tx.Bucket(bucketApprovals)
	retired := tx.Bucket(bucketRetired)
	for _, id := range ids {
		key := uint64Key(id)
		owner, owned := snap.Owners[id]
		if err := putAddress(owners, key, owner, owned); err != nil {
			return err
		}
		approved, ok := snap.Approvals[id]
		if err := putAddress(approvals, key, approved, ok); err != nil {
			return err
		}
		var err error
		if isRetired(snap, id) {
			err = retired.Put(key, []byte{1})
		} else {
			err = retired.Delete(key)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func putAddress(b *bbolt.Bucket, key []byte, addr common.Address, ok bool) error {
	if !ok {
		return b.Delete(key)
	}
	return b.Put(key, addr.Bytes())
}

func putEvents(tx *bbolt.Tx, events []nft.Event) error {
	b := tx.Bucket(bucketEvents)
	for _, e := range events {
		data, err := encodeEvent(e)
		if err != nil {
			return err
		}
		if err := b.Put(uint64Key(e.Sequence), data); err != nil {
			return err
		}
	}
	return nil
}

func loadAddresses(b *bbolt.Bucket, into map[uint64]common.Address) error {
	return b.ForEach(func(k, v []byte) error {
		id, err := decodeUint64Key(k)
		if err != nil {
			return err
		}
		addr, err := decodeAddress(v)
		if err != nil {
			return err
		}
		into[id] = addr
		return nil
	})
}
