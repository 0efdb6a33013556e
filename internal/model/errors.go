package model

import "errors"

// Business-rule and lookup failures. Callers match them with errors.Is; the
// API layer maps each one to a status code and a stable error code.
var (
	ErrNotFound            = errors.New("not found")
	ErrNoCopiesAvailable   = errors.New("no copies available")
	ErrInvalidDueDate      = errors.New("due date must be after today")
	ErrDuplicateActiveLoan = errors.New("member already has an active loan of this book")
	ErrAlreadyReturned     = errors.New("borrow record already returned")
	ErrConflict            = errors.New("already exists")
	ErrInUse               = errors.New("still referenced by active loans")
	ErrInvalidInput        = errors.New("invalid input")
)

// ErrInvariantViolation means the stored state contradicts a ledger
// invariant (for example available_copies would exceed total_copies). It is
// never a user error: it aborts the operation and is logged for an operator.
var ErrInvariantViolation = errors.New("ledger invariant violated")
