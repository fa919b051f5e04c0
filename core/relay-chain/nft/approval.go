package nft

import (
	"github.com/ethereum/go-ethereum/common"
)

// Approve lets approved transfer or burn tokenID on the owner's behalf.
// Passing NoIdentity revokes the current approval. Only the owner may call
// it, and the approval is cleared by the next transfer or burn.
func (c *Collection) Approve(caller, approved common.Address, tokenID uint64) error {
	c.mu.Lock()
	supply := c.totalSupply
	event, err := c.approve(caller, approved, tokenID)
	c.mu.Unlock()

	c.journal.Record(OperationRecord{
		Operation:    "approve",
		Caller:       caller,
		From:         caller,
		To:           approved,
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

func (c *Collection) approve(caller, approved common.Address, tokenID uint64) (Event, error) {
	owner, err := c.requireExists("approve", tokenID)
	if err != nil {
		return Event{}, err
	}
	if caller != owner {
		return Event{}, opErr("approve", tokenID, ErrUnauthorized)
	}

	if approved == NoIdentity {
		delete(c.approvals, tokenID)
	} else {
		c.approvals[tokenID] = approved
	}

	return c.emitEvent(Event{
		Type:     EventApprovalGranted,
		Owner:    owner,
		Approved: approved,
		TokenID:  tokenID,
	}), nil
}

// GetApproved returns the approved spender of tokenID, or NoIdentity when
// none is set.
func (c *Collection) GetApproved(tokenID uint64) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.requireExists("getApproved", tokenID); err != nil {
		return NoIdentity, err
	}
	return c.approvals[tokenID], nil
}
