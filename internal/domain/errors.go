package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for domain-level error handling.
// The handler layer maps these to HTTP status codes.
var (
	ErrInvalidOffer       = errors.New("invalid_offer")
	ErrInvalidOperation   = errors.New("invalid_operation")
	ErrInsufficientShares = errors.New("insufficient_shares")
	ErrNegativeBalance    = errors.New("negative_balance")
	ErrDuplicateKey       = errors.New("duplicate_key")
	ErrStoreUnavailable   = errors.New("store_unavailable")
	ErrUnknownField       = errors.New("unknown_field")
	ErrWalletNotFound     = errors.New("wallet_not_found")
)

// ValidationError represents a request validation failure.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// InsufficientSharesError reports a sell that exceeds the wallet balance.
// Held is the balance at the time of the check (0 when no wallet exists).
type InsufficientSharesError struct {
	Held int64
}

func (e *InsufficientSharesError) Error() string {
	return fmt.Sprintf("%s: held %d", ErrInsufficientShares, e.Held)
}

// Is lets errors.Is match the ErrInsufficientShares sentinel.
func (e *InsufficientSharesError) Is(target error) bool {
	return target == ErrInsufficientShares
}

// StoreError wraps an I/O failure from a storage backend so it matches
// ErrStoreUnavailable while keeping the cause.
func StoreError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}
