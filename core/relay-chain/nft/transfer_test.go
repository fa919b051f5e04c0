package nft

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransfers(t *testing.T) {
	setup := func(t *testing.T) *Collection {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))
		return c
	}

	t.Run("Transfer token from owner", func(t *testing.T) {
		c := setup(t)

		err := c.TransferFrom(addr1, addr1, addr2, 1)
		require.NoError(t, err)

		owner, _ := c.OwnerOf(1)
		assert.Equal(t, addr2, owner)
		assert.Equal(t, uint64(0), c.BalanceOf(addr1))
		assert.Equal(t, uint64(1), c.BalanceOf(addr2))
		assert.Equal(t, uint64(1), c.TotalSupply())

		events := c.GetEventsByType(EventOwnershipTransferred)
		require.Len(t, events, 2)
		assert.Equal(t, addr1, events[1].From)
		assert.Equal(t, addr2, events[1].To)
		assert.Equal(t, uint64(1), events[1].TokenID)
	})

	t.Run("Unauthorized transfer leaves state unchanged", func(t *testing.T) {
		c := setup(t)
		before := c.Snapshot()

		err := c.TransferFrom(addr2, addr1, addr2, 1)
		assert.ErrorIs(t, err, ErrUnauthorized)

		owner, _ := c.OwnerOf(1)
		assert.Equal(t, addr1, owner)
		assert.Equal(t, uint64(1), c.BalanceOf(addr1))
		assert.Equal(t, uint64(0), c.BalanceOf(addr2))
		assert.Equal(t, before, c.Snapshot())
	})

	t.Run("Missing token", func(t *testing.T) {
		c := setup(t)
		err := c.TransferFrom(addr1, addr1, addr2, 99)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("From must be the owner", func(t *testing.T) {
		c := setup(t)
		err := c.TransferFrom(addr3, addr3, addr2, 1)
		assert.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("Owner mismatch is reported before authorization", func(t *testing.T) {
		c := setup(t)
		err := c.TransferFrom(addr1, addr2, addr3, 1)
		assert.ErrorIs(t, err, ErrOwnerMismatch)
	})

	t.Run("Transfer to zero address is rejected", func(t *testing.T) {
		c := setup(t)
		err := c.TransferFrom(addr1, addr1, NoIdentity, 1)
		assert.ErrorIs(t, err, ErrInvalidRecipient)

		owner, _ := c.OwnerOf(1)
		assert.Equal(t, addr1, owner)
	})

	t.Run("Zero caller is never authorized", func(t *testing.T) {
		c := setup(t)
		err := c.TransferFrom(NoIdentity, addr1, addr2, 1)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Transfers are not gated by pause", func(t *testing.T) {
		c := setup(t)
		require.NoError(t, c.Pause(admin))

		assert.NoError(t, c.TransferFrom(addr1, addr1, addr2, 1))
	})

	t.Run("Self transfer clears approval and keeps balance", func(t *testing.T) {
		c := setup(t)
		require.NoError(t, c.Approve(addr1, addr2, 1))

		require.NoError(t, c.TransferFrom(addr1, addr1, addr1, 1))
		assert.Equal(t, uint64(1), c.BalanceOf(addr1))

		approved, _ := c.GetApproved(1)
		assert.Equal(t, NoIdentity, approved)
		assert.NoError(t, c.CheckInvariants())
	})
}

func TestBurning(t *testing.T) {
	t.Run("Burn token and update balances", func(t *testing.T) {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))
		assert.Equal(t, uint64(1), c.BalanceOf(addr1))

		require.NoError(t, c.Burn(addr1, 1))

		assert.Equal(t, uint64(0), c.BalanceOf(addr1))
		assert.Equal(t, uint64(0), c.TotalSupply())
		_, err := c.OwnerOf(1)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = c.GetApproved(1)
		assert.ErrorIs(t, err, ErrNotFound)

		events := c.GetEvents()
		require.Len(t, events, 2)
		assert.Equal(t, EventOwnershipTransferred, events[1].Type)
		assert.Equal(t, addr1, events[1].From)
		assert.Equal(t, NoIdentity, events[1].To)
	})

	t.Run("Approved spender can burn", func(t *testing.T) {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))
		require.NoError(t, c.Approve(addr1, addr2, 1))

		require.NoError(t, c.Burn(addr2, 1))
		assert.False(t, c.Exists(1))
		assert.Equal(t, uint64(0), c.BalanceOf(addr1))
	})

	t.Run("Stranger cannot burn", func(t *testing.T) {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))

		err := c.Burn(addr3, 1)
		assert.ErrorIs(t, err, ErrUnauthorized)
		assert.True(t, c.Exists(1))
	})

	t.Run("Admin has no implicit burn right", func(t *testing.T) {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))

		err := c.Burn(admin, 1)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("Burn missing token", func(t *testing.T) {
		c := newTestCollection(t)
		assert.ErrorIs(t, c.Burn(addr1, 1), ErrNotFound)
	})

	t.Run("Burned ids can be minted again by default", func(t *testing.T) {
		c := newTestCollection(t)
		require.NoError(t, c.Mint(admin, addr1, 1))
		require.NoError(t, c.Burn(addr1, 1))

		require.NoError(t, c.Mint(admin, addr2, 1))
		owner, _ := c.OwnerOf(1)
		assert.Equal(t, addr2, owner)
	})

	t.Run("Burned ids stay retired when configured", func(t *testing.T) {
		opts := testOptions()
		opts.RetireBurnedIDs = true
		c, err := NewCollection(opts)
		require.NoError(t, err)

		require.NoError(t, c.Mint(admin, addr1, 1))
		require.NoError(t, c.Burn(addr1, 1))

		err = c.Mint(admin, addr2, 1)
		assert.ErrorIs(t, err, ErrAlreadyExists)
		assert.Equal(t, 1, c.GetStatus().RetiredIDs)
		assert.NoError(t, c.CheckInvariants())
	})
}
