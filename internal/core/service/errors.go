package service

import "errors"

var (
	// ErrNotFound covers absent users, products, carts, and line items.
	ErrNotFound = errors.New("not found")

	// ErrInsufficientStock means the requested quantity exceeds availability.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrEmptyCart rejects checkout of a cart with no items.
	ErrEmptyCart = errors.New("cannot checkout an empty cart")

	// ErrLockUnavailable means another holder owns the lock. Retryable.
	ErrLockUnavailable = errors.New("failed to acquire lock")

	// ErrTransactionAborted means checkout's stock commit failed after
	// validation and the applied decrements were rolled back.
	ErrTransactionAborted = errors.New("stock transaction aborted")
)
