package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/chain"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/storage"
)

var (
	ErrReplay             = errors.New("transaction already processed")
	ErrInvalidTransaction = errors.New("invalid transaction")
	ErrNotRunning         = errors.New("sequencer is not running")
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type Options struct {
	// ReplayProtection rejects any transaction whose hash was seen before,
	// including transactions the ledger rejected.
	ReplayProtection bool
	QueueSize        int
	Logger           *logrus.Logger
}

// Receipt describes the outcome of one applied transaction. Sequence is its
// position in the total order of applied transactions. PersistError is set
// when the outcome is in effect but its commit is still pending.
type Receipt struct {
	TxHash       common.Hash    `json:"tx_hash"`
	Sender       common.Address `json:"sender"`
	Type         string         `json:"type"`
	Sequence     uint64         `json:"sequence"`
	Status       string         `json:"status"`
	Error        string         `json:"error,omitempty"`
	ErrorCode    string         `json:"error_code,omitempty"`
	PersistError string         `json:"persist_error,omitempty"`
	Events       []nft.Event    `json:"events"`
}

type Stats struct {
	Applied  uint64 `json:"applied"`
	Failed   uint64 `json:"failed"`
	Rejected uint64 `json:"rejected"`
	Queued   int    `json:"queued"`

	// Unpersisted counts transactions whose outcome is applied in memory
	// but not yet committed to the store.
	Unpersisted int `json:"unpersisted"`
}

type request struct {
	tx     *chain.Transaction
	hash   common.Hash
	sender common.Address
	done   chan result
}

type result struct {
	receipt *Receipt
	err     error
}

// Sequencer is the single writer of a collection. Transactions submitted
// from any goroutine are applied one at a time, in arrival order, by the
// goroutine started in Start.
type Sequencer struct {
	collection *nft.Collection
	store      storage.Store
	opts       Options
	logger     *logrus.Logger

	requests chan *request
	quit     chan struct{}
	stopped  chan struct{}

	mu      sync.Mutex
	started bool
	running bool
	pending map[common.Hash]struct{}
	seen    map[common.Hash]struct{}
	order   uint64
	stats   Stats

	// Outcomes whose commit failed. Only the writer goroutine touches them;
	// they are written again with the next commit.
	backlog       []nft.Event
	backlogHashes []common.Hash
	backlogTxs    int
}

// New creates a sequencer over collection. store may be nil, in which case
// nothing is persisted and replay protection only covers this process.
func New(collection *nft.Collection, store storage.Store, opts Options) *Sequencer {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Sequencer{
		collection: collection,
		store:      store,
		opts:       opts,
		logger:     logger,
		requests:   make(chan *request, opts.QueueSize),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
		pending:    make(map[common.Hash]struct{}),
		seen:       make(map[common.Hash]struct{}),
	}
}

// Start launches the writer goroutine. It stops when ctx is done or Stop is
// called; a stopped sequencer cannot be restarted.
func (s *Sequencer) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.running = true

	go s.run(ctx)
	s.logger.WithField("replay_protection", s.opts.ReplayProtection).Info("🚀 Sequencer started")
}

// Stop halts the writer goroutine. Transactions still queued are answered
// with ErrNotRunning.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.quit)
	s.mu.Unlock()

	<-s.stopped
	s.logger.Info("🛑 Sequencer stopped")
}

// Submit verifies tx, queues it and waits for its receipt. A transaction
// the ledger rejects still produces a receipt, returned together with the
// ledger error.
func (s *Sequencer) Submit(ctx context.Context, tx *chain.Transaction) (*Receipt, error) {
	if tx == nil {
		return nil, fmt.Errorf("%w: empty transaction", ErrInvalidTransaction)
	}
	sender, err := tx.VerifiedSender()
	if err != nil {
		s.reject()
		return nil, fmt.Errorf("%w: %w", ErrInvalidTransaction, err)
	}

	req := &request{tx: tx, hash: tx.Hash(), sender: sender, done: make(chan result, 1)}
	if err := s.reserve(req.hash); err != nil {
		s.reject()
		return nil, err
	}

	select {
	case s.requests <- req:
	case <-s.quit:
		s.release(req.hash)
		return nil, ErrNotRunning
	case <-ctx.Done():
		s.release(req.hash)
		return nil, ctx.Err()
	}

	select {
	case res := <-req.done:
		return res.receipt, res.err
	case <-s.stopped:
		select {
		case res := <-req.done:
			return res.receipt, res.err
		default:
			s.release(req.hash)
			return nil, ErrNotRunning
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := s.stats
	stats.Queued = len(s.requests)
	return stats
}

// reserve claims hash for a queued transaction.
func (s *Sequencer) reserve(hash common.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return ErrNotRunning
	}
	if !s.opts.ReplayProtection {
		return nil
	}
	if _, queued := s.pending[hash]; queued {
		return fmt.Errorf("%w: %s", ErrReplay, hash.Hex())
	}
	if _, seen := s.seen[hash]; seen {
		return fmt.Errorf("%w: %s", ErrReplay, hash.Hex())
	}
	if s.store != nil {
		seen, err := s.store.IsProcessed(hash)
		if err != nil {
			return fmt.Errorf("check replay: %w", err)
		}
		if seen {
			return fmt.Errorf("%w: %s", ErrReplay, hash.Hex())
		}
	}
	s.pending[hash] = struct{}{}
	return nil
}

// release frees a hash whose transaction never reached the writer.
func (s *Sequencer) release(hash common.Hash) {
	s.mu.Lock()
	delete(s.pending, hash)
	s.mu.Unlock()
}

func (s *Sequencer) reject() {
	s.mu.Lock()
	s.stats.Rejected++
	s.mu.Unlock()
}

func (s *Sequencer) run(ctx context.Context) {
	defer close(s.stopped)
	for {
		select {
		case req := <-s.requests:
			receipt, err := s.apply(req)
			req.done <- result{receipt: receipt, err: err}
		case <-s.quit:
			s.drain()
			s.flushOnExit()
			return
		case <-ctx.Done():
			s.mu.Lock()
			if s.running {
				s.running = false
				close(s.quit)
			}
			s.mu.Unlock()
			s.drain()
			s.flushOnExit()
			return
		}
	}
}

func (s *Sequencer) drain() {
	for {
		select {
		case req := <-s.requests:
			s.release(req.hash)
			req.done <- result{err: ErrNotRunning}
		default:
			return
		}
	}
}

// apply runs one transaction to completion and persists its outcome.
func (s *Sequencer) apply(req *request) (*Receipt, error) {
	before := s.collection.LastSequence()
	applyErr := req.tx.Apply(s.collection, req.sender)
	events := s.collection.EventsSince(before)

	s.mu.Lock()
	s.order++
	receipt := &Receipt{
		TxHash:   req.hash,
		Sender:   req.sender,
		Type:     req.tx.Type.String(),
		Sequence: s.order,
		Status:   StatusSuccess,
		Events:   events,
	}
	if applyErr != nil {
		receipt.Status = StatusFailed
		receipt.Error = applyErr.Error()
		receipt.ErrorCode = nft.Code(applyErr)
		s.stats.Failed++
	} else {
		s.stats.Applied++
	}
	s.mu.Unlock()

	fields := logrus.Fields{
		"tx_hash":  req.hash.Hex(),
		"type":     receipt.Type,
		"sender":   req.sender.Hex(),
		"token_id": req.tx.TokenID,
		"sequence": receipt.Sequence,
	}
	if applyErr != nil {
		s.logger.WithFields(fields).WithError(applyErr).Warn("Transaction rejected by ledger")
	} else {
		s.logger.WithFields(fields).Debug("Transaction applied")
	}

	persistErr := s.persist(req.hash, events)
	s.mu.Lock()
	if s.opts.ReplayProtection {
		s.seen[req.hash] = struct{}{}
	}
	delete(s.pending, req.hash)
	s.mu.Unlock()
	if persistErr != nil {
		receipt.PersistError = persistErr.Error()
		s.logger.WithFields(fields).WithError(persistErr).Error("❌ Failed to persist transaction outcome, retrying with the next commit")
	}
	return receipt, applyErr
}

// persist adds the outcome of one transaction to the backlog and commits
// the whole backlog. A failed commit keeps the backlog for the next attempt.
func (s *Sequencer) persist(hash common.Hash, events []nft.Event) error {
	if s.store == nil {
		return nil
	}
	if len(events) > 0 || s.opts.ReplayProtection {
		s.backlog = append(s.backlog, events...)
		if s.opts.ReplayProtection {
			s.backlogHashes = append(s.backlogHashes, hash)
		}
		s.backlogTxs++
	}
	return s.flush()
}

// flush commits the backlog with a fresh snapshot. The snapshot covers every
// token named by the backlog events, so no earlier failure leaves a gap.
func (s *Sequencer) flush() error {
	if s.backlogTxs == 0 {
		return nil
	}

	var snap *nft.Snapshot
	if len(s.backlog) > 0 {
		snap = s.collection.Snapshot()
	}
	err := s.store.Commit(snap, s.backlog, s.backlogHashes...)
	pending := s.backlogTxs
	if err == nil {
		s.backlog = nil
		s.backlogHashes = nil
		s.backlogTxs = 0
	}

	s.mu.Lock()
	s.stats.Unpersisted = s.backlogTxs
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("persist %d pending transaction(s): %w", pending, err)
	}
	return nil
}

func (s *Sequencer) flushOnExit() {
	if s.store == nil {
		return
	}
	if err := s.flush(); err != nil {
		s.logger.WithError(err).Error("❌ Unpersisted transactions lost on shutdown")
	}
}
