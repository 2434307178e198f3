package ledger

import "errors"

// Error kinds surfaced by ledger operations. Handlers match these with
// errors.Is and map them to transport status codes; the ledger itself
// is agnostic to HTTP.
var (
	// ErrNotFound indicates a referenced account, user, group, member
	// or group transaction does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates PIN verification failed.
	ErrUnauthorized = errors.New("invalid pin")
	// ErrInvalidInput indicates the request failed structural validation.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInsufficientFunds indicates the sender balance is below the
	// requested amount.
	ErrInsufficientFunds = errors.New("insufficient balance")
	// ErrShareMismatch indicates the shares of a group expense do not
	// sum to its amount.
	ErrShareMismatch = errors.New("shares must sum to the total amount")
	// ErrUnknownMember indicates a share references a user the directory
	// does not recognize.
	ErrUnknownMember = errors.New("unknown member")
	// ErrConflict indicates a concurrent mutation invalidated an
	// optimistic precondition. The operation is retried a bounded number
	// of times before this surfaces to the caller.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrStore wraps unexpected database failures. The atomic unit
	// guarantees no partial mutation is visible when it surfaces.
	ErrStore = errors.New("store failure")
)
