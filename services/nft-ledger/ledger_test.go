package main

import (
	"context"
	"testing"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/config"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/sequencer"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

func TestLedgerRecovery(t *testing.T) {
	for _, backend := range []string{storage.BackendBolt, storage.BackendLevelDB} {
		t.Run(backend, func(t *testing.T) {
			admin := newAccount(t)
			alice := newAccount(t)

			cfg := testConfig(admin.address)
			cfg.Storage.Backend = backend
			cfg.Storage.DataDir = t.TempDir()
			cfg.Log.JournalDir = t.TempDir()
			logger, hook := logtest.NewNullLogger()

			node, err := openLedger(cfg, logger)
			require.NoError(t, err)
			node.sequencer.Start(context.Background())

			mint := chain.NewMint(alice.address, 7)
			require.NoError(t, mint.Sign(admin.key))
			_, err = node.sequencer.Submit(context.Background(), mint)
			require.NoError(t, err)

			pause := chain.NewPause()
			require.NoError(t, pause.Sign(admin.key))
			_, err = node.sequencer.Submit(context.Background(), pause)
			require.NoError(t, err)
			lastSequence := node.collection.LastSequence()
			require.NoError(t, node.Close())

			cfg.Collection.MaxSupply = 99
			node, err = openLedger(cfg, logger)
			require.NoError(t, err)
			defer node.Close()

			assert.Equal(t, uint64(1), node.collection.TotalSupply())
			assert.Equal(t, uint64(5), node.collection.MaxSupply())
			assert.True(t, node.collection.IsPaused())
			assert.Equal(t, lastSequence, node.collection.LastSequence())

			owner, err := node.collection.OwnerOf(7)
			require.NoError(t, err)
			assert.Equal(t, alice.address, owner)

			var warned bool
			for _, entry := range hook.AllEntries() {
				if entry.Data["stored_max_supply"] == uint64(5) {
					warned = true
				}
			}
			assert.True(t, warned, "config mismatch should be logged")

			node.sequencer.Start(context.Background())
			_, err = node.sequencer.Submit(context.Background(), mint)
			assert.ErrorIs(t, err, sequencer.ErrReplay)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "debug", Colored: true})
	require.NoError(t, err)
	assert.Equal(t, "debug", logger.GetLevel().String())

	_, err = newLogger(config.LogConfig{Level: "chatty"})
	assert.Error(t, err)
}
