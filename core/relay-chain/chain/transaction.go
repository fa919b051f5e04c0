package chain

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Shivam-Patel-G/blackhole-nft/core/relay-chain/nft"
)

// TransactionType represents the ledger operation a transaction requests
type TransactionType int

const (
	MintToken TransactionType = iota
	TransferToken
	ApproveToken
	BurnToken
	PauseCollection
	UnpauseCollection
)

var transactionTypeNames = map[TransactionType]string{
	MintToken:         "mint",
	TransferToken:     "transferFrom",
	ApproveToken:      "approve",
	BurnToken:         "burn",
	PauseCollection:   "pause",
	UnpauseCollection: "unpause",
}

func (t TransactionType) String() string {
	if name, ok := transactionTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TransactionType(%d)", int(t))
}

// ParseTransactionType maps an operation name back to its type.
func ParseTransactionType(name string) (TransactionType, error) {
	for t, n := range transactionTypeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown transaction type %q", name)
}

func (t TransactionType) MarshalText() ([]byte, error) {
	if _, ok := transactionTypeNames[t]; !ok {
		return nil, fmt.Errorf("unknown transaction type %d", int(t))
	}
	return []byte(t.String()), nil
}

func (t *TransactionType) UnmarshalText(text []byte) error {
	parsed, err := ParseTransactionType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

var (
	ErrMissingSignature = errors.New("transaction is not signed")
	ErrInvalidSignature = errors.New("invalid transaction signature")
)

// Transaction is a signed request to apply one ledger operation. The caller
// of the operation is the address that signed it.
//
// Field use per type: mint uses To and TokenID; transferFrom uses From, To
// and TokenID; approve uses Approved and TokenID; burn uses TokenID; pause
// and unpause use none.
type Transaction struct {
	Type      TransactionType `json:"type"`
	From      common.Address  `json:"from"`
	To        common.Address  `json:"to"`
	Approved  common.Address  `json:"approved"`
	TokenID   uint64          `json:"token_id"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Signature hexutil.Bytes   `json:"signature,omitempty"`
}

func NewTransaction(txType TransactionType) *Transaction {
	return &Transaction{
		Type:      txType,
		Timestamp: time.Now().UnixNano(),
	}
}

func NewMint(to common.Address, tokenID uint64) *Transaction {
	tx := NewTransaction(MintToken)
	tx.To = to
	tx.TokenID = tokenID
	return tx
}

func NewTransferFrom(from, to common.Address, tokenID uint64) *Transaction {
	tx := NewTransaction(TransferToken)
	tx.From = from
	tx.To = to
	tx.TokenID = tokenID
	return tx
}

func NewApprove(approved common.Address, tokenID uint64) *Transaction {
	tx := NewTransaction(ApproveToken)
	tx.Approved = approved
	tx.TokenID = tokenID
	return tx
}

func NewBurn(tokenID uint64) *Transaction {
	tx := NewTransaction(BurnToken)
	tx.TokenID = tokenID
	return tx
}

func NewPause() *Transaction {
	return NewTransaction(PauseCollection)
}

func NewUnpause() *Transaction {
	return NewTransaction(UnpauseCollection)
}

// Hash is the Keccak-256 of the canonical JSON encoding of every field
// except the signature.
func (tx *Transaction) Hash() common.Hash {
	data, _ := json.Marshal(struct {
		Type      string         `json:"type"`
		From      common.Address `json:"from"`
		To        common.Address `json:"to"`
		Approved  common.Address `json:"approved"`
		TokenID   uint64         `json:"token_id"`
		Nonce     uint64         `json:"nonce"`
		Timestamp int64          `json:"timestamp"`
	}{
		tx.Type.String(),
		tx.From,
		tx.To,
		tx.Approved,
		tx.TokenID,
		tx.Nonce,
		tx.Timestamp,
	})
	return crypto.Keccak256Hash(data)
}

func (tx *Transaction) Sign(privateKey *ecdsa.PrivateKey) error {
	sig, err := crypto.Sign(tx.Hash().Bytes(), privateKey)
	if err != nil {
		return fmt.Errorf("sign transaction: %w", err)
	}
	tx.Signature = sig
	return nil
}

// Sender recovers the address that signed the transaction.
func (tx *Transaction) Sender() (common.Address, error) {
	if len(tx.Signature) == 0 {
		return common.Address{}, ErrMissingSignature
	}
	if len(tx.Signature) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("%w: length %d", ErrInvalidSignature, len(tx.Signature))
	}

	pub, err := crypto.SigToPub(tx.Hash().Bytes(), tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that the transaction has a known type and a signature that
// recovers to a non-zero address.
func (tx *Transaction) Verify() error {
	_, err := tx.VerifiedSender()
	return err
}

// VerifiedSender runs the checks of Verify and returns the recovered signer,
// recovering the signature once.
func (tx *Transaction) VerifiedSender() (common.Address, error) {
	if _, ok := transactionTypeNames[tx.Type]; !ok {
		return common.Address{}, fmt.Errorf("unknown transaction type %d", int(tx.Type))
	}
	sender, err := tx.Sender()
	if err != nil {
		return common.Address{}, err
	}
	if sender == (common.Address{}) {
		return common.Address{}, ErrInvalidSignature
	}
	return sender, nil
}

// Apply runs the requested operation against the ledger as caller.
func (tx *Transaction) Apply(c *nft.Collection, caller common.Address) error {
	switch tx.Type {
	case MintToken:
		return c.Mint(caller, tx.To, tx.TokenID)
	case TransferToken:
		return c.TransferFrom(caller, tx.From, tx.To, tx.TokenID)
	case ApproveToken:
		return c.Approve(caller, tx.Approved, tx.TokenID)
	case BurnToken:
		return c.Burn(caller, tx.TokenID)
	case PauseCollection:
		return c.Pause(caller)
	case UnpauseCollection:
		return c.Unpause(caller)
	default:
		return fmt.Errorf("unknown transaction type %d", int(tx.Type))
	}
}
