package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// Pause stops minting. Transfers, approvals and burns stay available.
func (c *Collection) Pause(caller common.Address) error {
	return c.setPaused("pause", caller, true)
}

// Unpause re-enables minting.
func (c *Collection) Unpause(caller common.Address) error {
	return c.setPaused("unpause", caller, false)
}

// setPaused is idempotent: toggling to the current state succeeds and still
// emits PauseChanged.
func (c *Collection) setPaused(op string, caller common.Address, paused bool) error {
	c.mu.Lock()
	supply := c.totalSupply
	var (
		event Event
		err   error
	)
	if caller != c.admin {
		err = adminErr(op, ErrUnauthorized)
	} else {
		c.paused = paused
		event = c.emitEvent(Event{
			Type:   EventPauseChanged,
			From:   caller,
			Paused: paused,
		})
	}
	c.mu.Unlock()

	c.journal.Record(OperationRecord{
		Operation:    op,
		Caller:       caller,
		Err:          err,
		SupplyBefore: supply,
		SupplyAfter:  supply,
	})
	if err != nil {
		return err
	}

	c.publish(event)
	return nil
}

// IsPaused returns whether minting is paused
func (c *Collection) IsPaused() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.paused
}

// Admin returns the identity allowed to mint and toggle the pause flag.
func (c *Collection) Admin() common.Address {
	return c.admin
}

// Status is a point-in-time summary of the collection.
type Status struct {
	Name            string         `json:"name"`
	Symbol          string         `json:"symbol"`
	BaseURI         string         `json:"base_uri"`
	Admin           common.Address `json:"admin"`
	TotalSupply     uint64         `json:"total_supply"`
	MaxSupply       uint64         `json:"max_supply"`
	Paused          bool           `json:"paused"`
	Holders         int            `json:"holders"`
	RetireBurnedIDs bool           `json:"retire_burned_ids"`
	RetiredIDs      int            `json:"retired_ids"`
	LastSequence    uint64         `json:"last_sequence"`
}

// GetStatus returns a consistent summary taken under a single read lock.
func (c *Collection) GetStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Status{
		Name:            c.name,
		Symbol:          c.symbol,
		BaseURI:         c.baseURI,
		Admin:           c.admin,
		TotalSupply:     c.totalSupply,
		MaxSupply:       c.maxSupply,
		Paused:          c.paused,
		Holders:         len(c.balances),
		RetireBurnedIDs: c.retireBurned,
		RetiredIDs:      len(c.retired),
		LastSequence:    c.nextSeq - 1,
	}
}
