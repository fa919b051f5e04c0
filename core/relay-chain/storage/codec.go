package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

// collectionMeta is the scalar part of a snapshot. Owners, approvals and
// retired ids are stored as one key per token.
type collectionMeta struct {
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	BaseURI         string         `json:"base_uri"`
	MaxSupply       uint64         `json:"max_supply"`
	Admin           common.Address `json:"admin"`
	RetireBurnedIDs bool           `json:"retire_burned_ids"`
	Paused          bool           `json:"paused"`
	NextSequence    uint64         `json:"next_sequence"`
}

var metaKey = []byte("meta")

func encodeMeta(s *nft.Snapshot) ([]byte, error) {
	return json.Marshal(collectionMeta{
		Name:            s.Name,
		Symbol:          s.Symbol,
		BaseURI:         s.BaseURI,
		MaxSupply:       s.MaxSupply,
		Admin:           s.Admin,
		RetireBurnedIDs: s.RetireBurnedIDs,
		Paused:          s.Paused,
		NextSequence:    s.NextSequence,
	})
}

func decodeMeta(data []byte) (*nft.Snapshot, error) {
	var m collectionMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode collection meta: %w", err)
	}
	return &nft.Snapshot{
		Name:            m.Name,
		Symbol:          m.Symbol,
		BaseURI:         m.BaseURI,
		MaxSupply:       m.MaxSupply,
		Admin:           m.Admin,
		RetireBurnedIDs: m.RetireBurnedIDs,
		Paused:          m.Paused,
		NextSequence:    m.NextSequence,
		Owners:          make(map[uint64]common.Address),
		Approvals:       make(map[uint64]common.Address),
	}, nil
}

// Big-endian keys keep token ids and event sequences in numeric order
// under byte-wise iteration.
func uint64Key(n uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, n)
	return key
}

func decodeUint64Key(key []byte) (uint64, error) {
	if len(key) != 8 {
		return 0, fmt.Errorf("malformed key of length %d", len(key))
	}
	return binary.BigEndian.Uint64(key), nil
}

func decodeAddress(value []byte) (common.Address, error) {
	if len(value) != common.AddressLength {
		return common.Address{}, fmt.Errorf("malformed address of length %d", len(value))
	}
	return common.BytesToAddress(value), nil
}

func encodeEvent(e nft.Event) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEvent(data []byte) (nft.Event, error) {
	var e nft.Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nft.Event{}, fmt.Errorf("decode event: %w", err)
	}
	return e, nil
}

// touchedTokens lists, once each, the token ids named by ownership and
// approval events.
func touchedTokens(events []nft.Event) []uint64 {
	seen := make(map[uint64]struct{}, len(events))
	var ids []uint64
	for _, e := range events {
		if e.Type == nft.EventPauseChanged {
			continue
		}
		if _, ok := seen[e.TokenID]; ok {
			continue
		}
		seen[e.TokenID] = struct{}{}
		ids = append(ids, e.TokenID)
	}
	return ids
}

// isRetired looks id up in the sorted Retired list of snap.
func isRetired(snap *nft.Snapshot, id uint64) bool {
	i := sort.Search(len(snap.Retired), func(i int) bool { return snap.Retired[i] >= id })
	return i < len(snap.Retired) && snap.Retired[i] == id
}

func processedValue() []byte {
	return []byte(fmt.Sprintf("%d", time.Now().Unix()))
}
