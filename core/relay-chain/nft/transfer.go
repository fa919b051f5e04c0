package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// TransferFrom moves tokenID from its current owner from to to. The caller
// must be from or the token's approved spender. Transfers are not gated by
// the pause flag.
func (c *Collection) TransferFrom(caller, from, to common.Address, tokenID uint64) error {
	c.mu.Lock()
	supply := c.totalSupply
	event, err := c.transferFrom(caller, from, to, tokenID)
	c.mu.Unlock()

	c.journal.Record(OperationRecord{
		Operation:    "transferFrom",
		Caller:       caller,
		From:         from,
		To:           to,
		TokenID:      tokenID,
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

func (c *Collection) transferFrom(caller, from, to common.Address, tokenID uint64) (Event, error) {
	owner, err := c.requireExists("transferFrom", tokenID)
	if err != nil {
		return Event{}, err
	}
	if owner != from {
		return Event{}, opErr("transferFrom", tokenID, ErrOwnerMismatch)
	}
	if to == NoIdentity {
		return Event{}, opErr("transferFrom", tokenID, ErrInvalidRecipient)
	}
	if !c.isOwnerOrApproved(caller, owner, tokenID) {
		return Event{}, opErr("transferFrom", tokenID, ErrUnauthorized)
	}

	c.decrementBalance(from)
	c.balances[to]++
	c.owners[tokenID] = to
	delete(c.approvals, tokenID)

	return c.emitEvent(Event{
		Type:    EventOwnershipTransferred,
		From:    from,
		To:      to,
		TokenID: tokenID,
	}), nil
}

// decrementBalance drops the map entry when it reaches zero so that the
// balance map only ever holds current owners. Callers hold c.mu.
func (c *Collection) decrementBalance(owner common.Address) {
	if c.balances[owner] <= 1 {
		delete(c.balances, owner)
		return
	}
	c.balances[owner]--
}
