package nft

import (
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// Snapshot is the complete persistent state of a collection. Balances and
// total supply are not stored: they are derived from Owners on restore.
// Retired is sorted ascending.
type Snapshot struct {
	Name            string                    `json:"name"`
	Symbol          string                    `json:"symbol"`
	BaseURI         string                    `json:"base_uri"`
	MaxSupply       uint64                    `json:"max_supply"`
	Admin           common.Address            `json:"admin"`
	RetireBurnedIDs bool                      `json:"retire_burned_ids"`
	Paused          bool                      `json:"paused"`
	Owners          map[uint64]common.Address `json:"owners"`
	Approvals       map[uint64]common.Address `json:"approvals"`
	Retired         []uint64                  `json:"retired,omitempty"`
	NextSequence    uint64                    `json:"next_sequence"`
}

// Snapshot copies the current state.
func (c *Collection) Snapshot() *Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := &Snapshot{
		Name:            c.name,
		Symbol:          c.symbol,
		BaseURI:         c.baseURI,
		MaxSupply:       c.maxSupply,
		Admin:           c.admin,
		RetireBurnedIDs: c.retireBurned,
		Paused:          c.paused,
		Owners:          make(map[uint64]common.Address, len(c.owners)),
		Approvals:       make(map[uint64]common.Address, len(c.approvals)),
		NextSequence:    c.nextSeq,
	}
	for id, owner := range c.owners {
		s.Owners[id] = owner
	}
	for id, approved := range c.approvals {
		s.Approvals[id] = approved
	}
	for id := range c.retired {
		s.Retired = append(s.Retired, id)
	}
	sort.Slice(s.Retired, func(i, j int) bool { return s.Retired[i] < s.Retired[j] })
	return s
}

// Restore rebuilds a collection from a snapshot. It fails if the snapshot
// violates any ledger invariant.
func Restore(s *Snapshot, logger *zap.Logger) (*Collection, error) {
	if s == nil {
		return nil, fmt.Errorf("nft: nil snapshot")
	}

	c, err := NewCollection(Options{
		Name:            s.Name,
		Symbol:          s.Symbol,
		MaxSupply:       s.MaxSupply,
		BaseURI:         s.BaseURI,
		Admin:           s.Admin,
		RetireBurnedIDs: s.RetireBurnedIDs,
		Logger:          logger,
	})
	if err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}

	c.paused = s.Paused
	if s.NextSequence > 0 {
		c.nextSeq = s.NextSequence
	}
	for id, owner := range s.Owners {
		if owner == NoIdentity {
			return nil, fmt.Errorf("restore: token %d owned by the zero address", id)
		}
		c.owners[id] = owner
		c.balances[owner]++
		c.totalSupply++
	}
	for id, approved := range s.Approvals {
		if approved == NoIdentity {
			continue
		}
		c.approvals[id] = approved
	}
	for _, id := range s.Retired {
		c.retired[id] = struct{}{}
	}

	if err := c.checkInvariants(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return c, nil
}

// CheckInvariants verifies ownership, balance, supply and approval
// consistency.
func (c *Collection) CheckInvariants() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.checkInvariants()
}

func (c *Collection) checkInvariants() error {
	if c.totalSupply != uint64(len(c.owners)) {
		return fmt.Errorf("total supply %d does not match %d owned tokens", c.totalSupply, len(c.owners))
	}
	if c.totalSupply > c.maxSupply {
		return fmt.Errorf("total supply %d exceeds max supply %d", c.totalSupply, c.maxSupply)
	}

	counted := make(map[common.Address]uint64, len(c.balances))
	for id, owner := range c.owners {
		if owner == NoIdentity {
			return fmt.Errorf("token %d owned by the zero address", id)
		}
		counted[owner]++
	}

	var sum uint64
	for addr, balance := range c.balances {
		if balance == 0 {
			return fmt.Errorf("zero balance entry for %s", addr.Hex())
		}
		if counted[addr] != balance {
			return fmt.Errorf("balance of %s is %d but owns %d tokens", addr.Hex(), balance, counted[addr])
		}
		sum += balance
	}
	if len(counted) != len(c.balances) {
		return fmt.Errorf("%d owners but %d balance entries", len(counted), len(c.balances))
	}
	if sum != c.totalSupply {
		return fmt.Errorf("sum of balances %d does not match total supply %d", sum, c.totalSupply)
	}

	for id := range c.approvals {
		if _, ok := c.owners[id]; !ok {
			return fmt.Errorf("approval recorded for missing token %d", id)
		}
	}
	for id := range c.retired {
		if _, ok := c.owners[id]; ok {
			return fmt.Errorf("retired token %d is owned", id)
		}
	}
	return nil
}
