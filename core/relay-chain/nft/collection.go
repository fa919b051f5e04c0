package nft

import (
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// DefaultEventWindow is the number of recent events a collection keeps in
// memory when Options.EventWindow is zero.
const DefaultEventWindow = 1024

// NoIdentity is the distinguished "none" identity: the mint sender, the burn
// receiver and the value of an unset approval.
var NoIdentity = common.Address{}

// Options fixes a collection at creation time. Nothing here can be changed
// once the collection exists.
type Options struct {
	Name      string
	Symbol    string
	MaxSupply uint64
	BaseURI   string
	Admin     common.Address

	// RetireBurnedIDs rejects re-minting of burned ids.
	RetireBurnedIDs bool

	// EventWindow bounds the in-memory event log. Older events are only
	// available from the durable journal.
	EventWindow int

	// Logger receives the transaction journal. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Collection is the token ledger of a single NFT collection. All mutating
// operations hold the write lock for their whole check-then-mutate step, so
// a failed operation never leaves a partial effect behind.
type Collection struct {
	name         string
	symbol       string
	baseURI      string
	maxSupply    uint64
	admin        common.Address
	retireBurned bool

	totalSupply uint64
	paused      bool
	owners      map[uint64]common.Address
	approvals   map[uint64]common.Address
	balances    map[common.Address]uint64
	retired     map[uint64]struct{}

	mu          sync.RWMutex
	events      []Event
	eventWindow int
	nextSeq     uint64

	subMu       sync.RWMutex
	subscribers map[int]func(Event)
	nextSubID   int

	journal *TransactionJournal
}

// NewCollection creates an empty, unpaused collection.
func NewCollection(opts Options) (*Collection, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	window := opts.EventWindow
	if window == 0 {
		window = DefaultEventWindow
	}

	return &Collection{
		name:         opts.Name,
		symbol:       opts.Symbol,
		baseURI:      opts.BaseURI,
		maxSupply:    opts.MaxSupply,
		admin:        opts.Admin,
		retireBurned: opts.RetireBurnedIDs,
		owners:       make(map[uint64]common.Address),
		approvals:    make(map[uint64]common.Address),
		balances:     make(map[common.Address]uint64),
		retired:      make(map[uint64]struct{}),
		events:       []Event{},
		eventWindow:  window,
		nextSeq:      1,
		subscribers:  make(map[int]func(Event)),
		journal:      NewTransactionJournal(logger),
	}, nil
}

func (o Options) validate() error {
	if o.Name == "" {
		return errors.New("nft: name cannot be empty")
	}
	if o.Symbol == "" {
		return errors.New("nft: symbol cannot be empty")
	}
	if o.MaxSupply == 0 {
		return errors.New("nft: max supply must be > 0")
	}
	if o.Admin == NoIdentity {
		return errors.New("nft: admin cannot be the zero address")
	}
	if o.EventWindow < 0 {
		return errors.New("nft: event window cannot be negative")
	}
	return nil
}

// requireExists returns the owner of tokenID. Callers hold c.mu.
func (c *Collection) requireExists(op string, tokenID uint64) (common.Address, error) {
	owner, ok := c.owners[tokenID]
	if !ok {
		return NoIdentity, opErr(op, tokenID, ErrNotFound)
	}
	return owner, nil
}

// isOwnerOrApproved reports whether caller may move or burn tokenID.
// Callers hold c.mu.
func (c *Collection) isOwnerOrApproved(caller, owner common.Address, tokenID uint64) bool {
	if caller == owner {
		return true
	}
	approved, ok := c.approvals[tokenID]
	return ok && approved != NoIdentity && approved == caller
}
