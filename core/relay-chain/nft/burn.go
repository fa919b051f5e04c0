package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// Burn destroys tokenID. The caller must be the owner or the approved
// spender. Burning is not gated by the pause flag.
func (c *Collection) Burn(caller common.Address, tokenID uint64) error {
	c.mu.Lock()
	supplyBefore := c.totalSupply
	event, err := c.burn(caller, tokenID)
	supplyAfter := c.totalSupply
	c.mu.Unlock()

	c.journal.Record(OperationRecord{
		Operation:    "burn",
		Caller:       caller,
		From:         event.From,
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

func (c *Collection) burn(caller common.Address, tokenID uint64) (Event, error) {
	owner, err := c.requireExists("burn", tokenID)
	if err != nil {
		return Event{}, err
	}
	if !c.isOwnerOrApproved(caller, owner, tokenID) {
		return Event{}, opErr("burn", tokenID, ErrUnauthorized)
	}

	delete(c.owners, tokenID)
	delete(c.approvals, tokenID)
	c.decrementBalance(owner)
	c.totalSupply--
	if c.retireBurned {
		c.retired[tokenID] = struct{}{}
	}

	return c.emitEvent(Event{
		Type:    EventOwnershipTransferred,
		From:    owner,
		To:      NoIdentity,
		TokenID: tokenID,
	}), nil
}
