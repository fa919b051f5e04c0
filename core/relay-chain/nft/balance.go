package nft

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

func (c *Collection) Name() string {
	return c.name
}

func (c *Collection) Symbol() string {
	return c.symbol
}

func (c *Collection) BaseURI() string {
	return c.baseURI
}

// MaxSupply returns the maximum number of tokens that may exist at once
func (c *Collection) MaxSupply() uint64 {
	return c.maxSupply
}

func (c *Collection) TotalSupply() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.totalSupply
}

// BalanceOf returns the number of tokens owned by owner. Unknown identities
// simply own nothing.
func (c *Collection) BalanceOf(owner common.Address) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.balances[owner]
}

func (c *Collection) OwnerOf(tokenID uint64) (common.Address, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.requireExists("ownerOf", tokenID)
}

// Exists reports whether tokenID is currently minted.
func (c *Collection) Exists(tokenID uint64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.owners[tokenID]
	return ok
}

// TokenURI is the base URI followed by the decimal token id.
func (c *Collection) TokenURI(tokenID uint64) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, err := c.requireExists("tokenURI", tokenID); err != nil {
		return "", err
	}
	return c.baseURI + strconv.FormatUint(tokenID, 10), nil
}

// TokenInfo is the owner, approval and URI of one token, read together.
type TokenInfo struct {
	TokenID  uint64         `json:"token_id"`
	Owner    common.Address `json:"owner"`
	Approved common.Address `json:"approved"`
	TokenURI string         `json:"token_uri"`
}

// TokenInfo returns a consistent view of tokenID taken under one read lock.
func (c *Collection) TokenInfo(tokenID uint64) (TokenInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	owner, err := c.requireExists("tokenInfo", tokenID)
	if err != nil {
		return TokenInfo{}, err
	}
	return TokenInfo{
		TokenID:  tokenID,
		Owner:    owner,
		Approved: c.approvals[tokenID],
		TokenURI: c.baseURI + strconv.FormatUint(tokenID, 10),
	}, nil
}

// GetAllBalances returns a copy of all non-zero balances
func (c *Collection) GetAllBalances() map[common.Address]uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	balances := make(map[common.Address]uint64, len(c.balances))
	for addr, balance := range c.balances {
		balances[addr] = balance
	}
	return balances
}
