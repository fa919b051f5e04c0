package nft

import (
	"errors"
	"fmt"
)

// Every rejected operation reports exactly one of these, wrapped in an
// *OpError. The ledger state is unchanged whenever one is returned.
var (
	ErrUnauthorized     = errors.New("not authorized")
	ErrAlreadyExists    = errors.New("token already exists")
	ErrNotFound         = errors.New("token does not exist")
	ErrOwnerMismatch    = errors.New("from is not the token owner")
	ErrSupplyExceeded   = errors.New("max supply reached")
	ErrPaused           = errors.New("contract is paused")
	ErrInvalidRecipient = errors.New("invalid recipient")
)

// OpError records the operation and token a rejection applies to.
type OpError struct {
	Op      string
	TokenID uint64
	Err     error

	scoped bool
}

func opErr(op string, tokenID uint64, err error) *OpError {
	return &OpError{Op: op, TokenID: tokenID, Err: err, scoped: true}
}

func adminErr(op string, err error) *OpError {
	return &OpError{Op: op, Err: err}
}

func (e *OpError) Error() string {
	if e.scoped {
		return fmt.Sprintf("nft %s token %d: %v", e.Op, e.TokenID, e.Err)
	}
	return fmt.Sprintf("nft %s: %v", e.Op, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

// Code returns a stable, machine-readable name for a ledger error, or
// "internal" for anything that is not one.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrOwnerMismatch):
		return "owner_mismatch"
	case errors.Is(err, ErrSupplyExceeded):
		return "supply_exceeded"
	case errors.Is(err, ErrPaused):
		return "paused"
	case errors.Is(err, ErrInvalidRecipient):
		return "invalid_recipient"
	default:
		return "internal"
	}
}
