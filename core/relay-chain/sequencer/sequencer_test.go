package sequencer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

type harness struct {
	adminKey *ecdsa.PrivateKey
	aliceKey *ecdsa.PrivateKey
	bobKey   *ecdsa.PrivateKey
	alice    common.Address
	bob      common.Address

	collection *nft.Collection
	store      storage.Store
	seq        *Sequencer
	hook       *logtest.Hook
}

func newHarness(t *testing.T, opts Options, withStore bool) *harness {
	t.Helper()
	var store storage.Store
	if withStore {
		mem, err := storage.OpenMemory()
		require.NoError(t, err)
		t.Cleanup(func() { mem.Close() })
		store = mem
	}
	return startHarness(t, opts, store)
}

func startHarness(t *testing.T, opts Options, store storage.Store) *harness {
	t.Helper()
	h := &harness{store: store}
	var err error
	h.adminKey, err = crypto.GenerateKey()
	require.NoError(t, err)
	h.aliceKey, err = crypto.GenerateKey()
	require.NoError(t, err)
	h.bobKey, err = crypto.GenerateKey()
	require.NoError(t, err)
	h.alice = crypto.PubkeyToAddress(h.aliceKey.PublicKey)
	h.bob = crypto.PubkeyToAddress(h.bobKey.PublicKey)

	h.collection, err = nft.NewCollection(nft.Options{
		Name:      "NFT Collection",
		Symbol:    "NFT",
		MaxSupply: 100,
		BaseURI:   "https://api.example.com/metadata/",
		Admin:     crypto.PubkeyToAddress(h.adminKey.PublicKey),
	})
	require.NoError(t, err)

	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts.Logger = logger
	h.hook = hook

	h.seq = New(h.collection, h.store, opts)
	h.seq.Start(context.Background())
	t.Cleanup(h.seq.Stop)
	return h
}

// failingStore fails the next failures commits.
type failingStore struct {
	storage.Store

	mu       sync.Mutex
	failures int
}

func (f *failingStore) Commit(snap *nft.Snapshot, events []nft.Event, processed ...common.Hash) error {
	f.mu.Lock()
	if f.failures > 0 {
		f.failures--
		f.mu.Unlock()
		return errors.New("disk full")
	}
	f.mu.Unlock()
	return f.Store.Commit(snap, events, processed...)
}

func newFailingStore(t *testing.T, failures int) (*failingStore, storage.Store) {
	t.Helper()
	mem, err := storage.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { mem.Close() })
	return &failingStore{Store: mem, failures: failures}, mem
}

func eventSequences(t *testing.T, store storage.Store) []uint64 {
	t.Helper()
	events, err := store.Events(0)
	require.NoError(t, err)
	var seqs []uint64
	for _, e := range events {
		seqs = append(seqs, e.Sequence)
	}
	return seqs
}

func signed(t *testing.T, tx *chain.Transaction, key *ecdsa.PrivateKey) *chain.Transaction {
	t.Helper()
	require.NoError(t, tx.Sign(key))
	return tx
}

func TestSubmit(t *testing.T) {
	h := newHarness(t, Options{ReplayProtection: true}, false)
	ctx := context.Background()

	t.Run("Successful mint", func(t *testing.T) {
		receipt, err := h.seq.Submit(ctx, signed(t, chain.NewMint(h.alice, 1), h.adminKey))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, receipt.Status)
		assert.Equal(t, "mint", receipt.Type)
		assert.Equal(t, uint64(1), receipt.Sequence)
		require.Len(t, receipt.Events, 1)
		assert.Equal(t, nft.EventOwnershipTransferred, receipt.Events[0].Type)
		assert.Equal(t, h.alice, receipt.Events[0].To)

		owner, err := h.collection.OwnerOf(1)
		require.NoError(t, err)
		assert.Equal(t, h.alice, owner)
	})

	t.Run("Caller is the signer", func(t *testing.T) {
		receipt, err := h.seq.Submit(ctx, signed(t, chain.NewMint(h.alice, 2), h.aliceKey))
		assert.ErrorIs(t, err, nft.ErrUnauthorized)
		require.NotNil(t, receipt)
		assert.Equal(t, StatusFailed, receipt.Status)
		assert.Equal(t, "unauthorized", receipt.ErrorCode)
		assert.Equal(t, h.alice, receipt.Sender)
		assert.Empty(t, receipt.Events)
		assert.False(t, h.collection.Exists(2))
	})

	t.Run("Approved spender transfers", func(t *testing.T) {
		_, err := h.seq.Submit(ctx, signed(t, chain.NewApprove(h.bob, 1), h.aliceKey))
		require.NoError(t, err)

		receipt, err := h.seq.Submit(ctx, signed(t, chain.NewTransferFrom(h.alice, h.bob, 1), h.bobKey))
		require.NoError(t, err)
		assert.Equal(t, StatusSuccess, receipt.Status)

		approved, err := h.collection.GetApproved(1)
		require.NoError(t, err)
		assert.Equal(t, nft.NoIdentity, approved)
	})

	t.Run("Unsigned transaction", func(t *testing.T) {
		_, err := h.seq.Submit(ctx, chain.NewBurn(1))
		assert.ErrorIs(t, err, ErrInvalidTransaction)
		assert.ErrorIs(t, err, chain.ErrMissingSignature)
	})

	stats := h.seq.Stats()
	assert.Equal(t, uint64(3), stats.Applied)
	assert.Equal(t, uint64(1), stats.Failed)
	assert.Equal(t, uint64(1), stats.Rejected)
}

func TestReplayProtection(t *testing.T) {
	ctx := context.Background()

	t.Run("Enabled", func(t *testing.T) {
		h := newHarness(t, Options{ReplayProtection: true}, true)

		tx := signed(t, chain.NewMint(h.alice, 5), h.adminKey)
		_, err := h.seq.Submit(ctx, tx)
		require.NoError(t, err)

		_, err = h.seq.Submit(ctx, tx)
		assert.ErrorIs(t, err, ErrReplay)

		failed := signed(t, chain.NewPause(), h.aliceKey)
		_, err = h.seq.Submit(ctx, failed)
		assert.ErrorIs(t, err, nft.ErrUnauthorized)

		_, err = h.seq.Submit(ctx, failed)
		assert.ErrorIs(t, err, ErrReplay)

		seen, err := h.store.IsProcessed(failed.Hash())
		require.NoError(t, err)
		assert.True(t, seen)

		next := chain.NewPause()
		next.Nonce = 1
		_, err = h.seq.Submit(ctx, signed(t, next, h.adminKey))
		assert.NoError(t, err)
		assert.True(t, h.collection.IsPaused())
	})

	t.Run("Disabled", func(t *testing.T) {
		h := newHarness(t, Options{}, false)

		tx := signed(t, chain.NewMint(h.alice, 5), h.adminKey)
		_, err := h.seq.Submit(ctx, tx)
		require.NoError(t, err)

		receipt, err := h.seq.Submit(ctx, tx)
		assert.ErrorIs(t, err, nft.ErrAlreadyExists)
		assert.Equal(t, "already_exists", receipt.ErrorCode)
	})
}

func TestPersistence(t *testing.T) {
	h := newHarness(t, Options{ReplayProtection: true}, true)
	ctx := context.Background()

	for id := uint64(1); id <= 3; id++ {
		_, err := h.seq.Submit(ctx, signed(t, chain.NewMint(h.alice, id), h.adminKey))
		require.NoError(t, err)
	}
	_, err := h.seq.Submit(ctx, signed(t, chain.NewBurn(2), h.aliceKey))
	require.NoError(t, err)
	_, err = h.seq.Submit(ctx, signed(t, chain.NewBurn(3), h.bobKey))
	require.ErrorIs(t, err, nft.ErrUnauthorized)

	snap, err := h.store.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, h.collection.Snapshot(), snap)

	events, err := h.store.Events(0)
	require.NoError(t, err)
	assert.Len(t, events, 4)

	restored, err := nft.Restore(snap, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), restored.TotalSupply())
	assert.Equal(t, h.collection.LastSequence(), restored.LastSequence())
}

func TestFailedCommitIsRetried(t *testing.T) {
	store, durable := newFailingStore(t, 1)
	h := startHarness(t, Options{ReplayProtection: true}, store)
	ctx := context.Background()

	first := signed(t, chain.NewMint(h.alice, 1), h.adminKey)
	receipt, err := h.seq.Submit(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, receipt.Status)
	assert.Contains(t, receipt.PersistError, "disk full")
	assert.True(t, h.collection.Exists(1))
	assert.Equal(t, 1, h.seq.Stats().Unpersisted)

	_, err = h.seq.Submit(ctx, first)
	assert.ErrorIs(t, err, ErrReplay)

	receipt, err = h.seq.Submit(ctx, signed(t, chain.NewMint(h.alice, 2), h.adminKey))
	require.NoError(t, err)
	assert.Empty(t, receipt.PersistError)
	assert.Equal(t, 0, h.seq.Stats().Unpersisted)

	assert.Equal(t, []uint64{1, 2}, eventSequences(t, durable))
	seen, err := durable.IsProcessed(first.Hash())
	require.NoError(t, err)
	assert.True(t, seen)

	snap, err := durable.LoadSnapshot()
	require.NoError(t, err)
	assert.Equal(t, h.collection.Snapshot(), snap)
}

func TestFailedCommitOfRejectedTransaction(t *testing.T) {
	store, durable := newFailingStore(t, 2)
	h := startHarness(t, Options{ReplayProtection: true}, store)
	ctx := context.Background()

	_, err := h.seq.Submit(ctx, signed(t, chain.NewMint(h.alice, 1), h.adminKey))
	require.NoError(t, err)

	rejected := signed(t, chain.NewPause(), h.aliceKey)
	receipt, err := h.seq.Submit(ctx, rejected)
	assert.ErrorIs(t, err, nft.ErrUnauthorized)
	assert.NotEmpty(t, receipt.PersistError)
	assert.Equal(t, 2, h.seq.Stats().Unpersisted)

	_, err = h.seq.Submit(ctx, signed(t, chain.NewBurn(1), h.aliceKey))
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2}, eventSequences(t, durable))
	seen, err := durable.IsProcessed(rejected.Hash())
	require.NoError(t, err)
	assert.True(t, seen)

	snap, err := durable.LoadSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Owners)
}

func TestStopFlushesBacklog(t *testing.T) {
	store, durable := newFailingStore(t, 1)
	h := startHarness(t, Options{ReplayProtection: true}, store)

	receipt, err := h.seq.Submit(context.Background(), signed(t, chain.NewMint(h.alice, 1), h.adminKey))
	require.NoError(t, err)
	require.NotEmpty(t, receipt.PersistError)

	h.seq.Stop()
	assert.Equal(t, []uint64{1}, eventSequences(t, durable))
	assert.Equal(t, 0, h.seq.Stats().Unpersisted)
}

func TestConcurrentSubmissions(t *testing.T) {
	h := newHarness(t, Options{ReplayProtection: true, QueueSize: 4}, true)
	ctx := context.Background()

	const n = 40
	receipts := make([]*Receipt, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx := chain.NewMint(h.alice, uint64(i%30)+1)
			tx.Nonce = uint64(i)
			assert.NoError(t, tx.Sign(h.adminKey))
			receipts[i], _ = h.seq.Submit(ctx, tx)
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	successes := 0
	for _, r := range receipts {
		require.NotNil(t, r)
		assert.False(t, seen[r.Sequence], "sequence %d assigned twice", r.Sequence)
		seen[r.Sequence] = true
		if r.Status == StatusSuccess {
			successes++
		}
	}
	assert.Equal(t, 30, successes)
	assert.Equal(t, uint64(30), h.collection.TotalSupply())
	assert.NoError(t, h.collection.CheckInvariants())

	stats := h.seq.Stats()
	assert.Equal(t, uint64(30), stats.Applied)
	assert.Equal(t, uint64(10), stats.Failed)
}

func TestStop(t *testing.T) {
	h := newHarness(t, Options{}, false)
	h.seq.Stop()
	h.seq.Stop()

	_, err := h.seq.Submit(context.Background(), signed(t, chain.NewMint(h.alice, 1), h.adminKey))
	assert.ErrorIs(t, err, ErrNotRunning)
	assert.False(t, h.collection.Exists(1))

	var stopped bool
	for _, entry := range h.hook.AllEntries() {
		if entry.Message == "🛑 Sequencer stopped" {
			stopped = true
		}
	}
	assert.True(t, stopped)
}

func TestContextCancellationStops(t *testing.T) {
	collection, err := nft.NewCollection(nft.Options{
		Name:      "NFT Collection",
		Symbol:    "NFT",
		MaxSupply: 1,
		Admin:     common.HexToAddress("0xad"),
	})
	require.NoError(t, err)

	logger, _ := logtest.NewNullLogger()
	seq := New(collection, nil, Options{Logger: logger})
	ctx, cancel := context.WithCancel(context.Background())
	seq.Start(ctx)
	cancel()
	<-seq.stopped

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	_, err = seq.Submit(context.Background(), signed(t, chain.NewPause(), key))
	assert.ErrorIs(t, err, ErrNotRunning)
}
