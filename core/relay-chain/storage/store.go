package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

// ErrNoSnapshot is returned by LoadSnapshot when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

const (
	BackendBolt    = "bolt"
	BackendLevelDB = "leveldb"
	BackendMemory  = "memory"
)

// Store persists collection state, the event journal and the set of
// processed transaction hashes.
type Store interface {
	SaveSnapshot(s *nft.Snapshot) error
	LoadSnapshot() (*nft.Snapshot, error)
	AppendEvents(events []nft.Event) error
	Events(since uint64) ([]nft.Event, error)
	MarkProcessed(hash common.Hash) error
	IsProcessed(hash common.Hash) (bool, error)

	// Commit writes the collection meta of s, the per-token keys of every
	// token named by events, the events themselves and the processed
	// transaction hashes in one atomic write. Tokens no event names are left
	// as stored.
	Commit(s *nft.Snapshot, events []nft.Event, processed ...common.Hash) error

	Close() error
}

// Open opens the named backend under dataDir. The memory backend ignores
// dataDir.
func Open(backend, dataDir string) (Store, error) {
	switch backend {
	case BackendMemory:
		return OpenMemory()
	case BackendBolt, BackendLevelDB:
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if backend == BackendBolt {
		return OpenBolt(filepath.Join(dataDir, "nft.db"))
	}
	return OpenLevelDB(filepath.Join(dataDir, "leveldb"))
}
