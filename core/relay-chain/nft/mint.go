package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// Mint creates tokenID owned by to. Only the admin may mint, and only while
// the collection is not paused.
func (c *Collection) Mint(caller, to common.Address, tokenID uint64) error {
	c.mu.Lock()
	supplyBefore := c.totalSupply
	event, err := c.mint(caller, to, tokenID)
	supplyAfter := c.totalSupply
	c.mu.Unlock()

	c.journal.Record(OperationRecord{
		Operation:    "mint",
		Caller:       caller,
		To:           to,
		TokenID:      tokenID,
		Err:          err,
		SupplyBefore: supplyBefore,
		SupplyAfter:  supplyAfter,
	})
	if err != nil {
		return err
	}

	c.publish(event)
	return nil
}

func (c *Collection) mint(caller, to common.Address, tokenID uint64) (Event, error) {
	if caller != c.admin {
		return Event{}, opErr("mint", tokenID, ErrUnauthorized)
	}
	if c.paused {
		return Event{}, opErr("mint", tokenID, ErrPaused)
	}
	if to == NoIdentity {
		return Event{}, opErr("mint", tokenID, ErrInvalidRecipient)
	}
	if _, exists := c.owners[tokenID]; exists {
		return Event{}, opErr("mint", tokenID, ErrAlreadyExists)
	}
	if _, retired := c.retired[tokenID]; retired {
		return Event{}, opErr("mint", tokenID, ErrAlreadyExists)
	}
	if c.totalSupply >= c.maxSupply {
		return Event{}, opErr("mint", tokenID, ErrSupplyExceeded)
	}

	c.owners[tokenID] = to
	delete(c.approvals, tokenID)
	c.balances[to]++
	c.totalSupply++

	return c.emitEvent(Event{
		Type:    EventOwnershipTransferred,
		From:    NoIdentity,
		To:      to,
		TokenID: tokenID,
	}), nil
}
