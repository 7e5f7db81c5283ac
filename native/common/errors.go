package common

import "errors"

// Shared revert conditions surfaced by every incentive module. Module specific
// failures live next to the engine that raises them.
var (
	// Authorization
	ErrNotOwner               = errors.New("ownable: caller is not the owner")
	ErrInsufficientPermission = errors.New("insufficient permission")
	ErrNotWhitelisted         = errors.New("not whitelisted")
	ErrNotMFD                 = errors.New("caller is not the multi fee distribution")

	// Validation
	ErrAddressZero    = errors.New("address zero")
	ErrInvalidRatio   = errors.New("invalid ratio")
	ErrInvalidNumber  = errors.New("invalid number")
	ErrLengthMismatch = errors.New("length mismatch")
	ErrAmountTooSmall = errors.New("amount too small")

	// Arithmetic
	ErrOverflow  = errors.New("arithmetic overflow")
	ErrUnderflow = errors.New("arithmetic underflow")

	// Lifecycle
	ErrModulePaused       = errors.New("pausable: paused")
	ErrAlreadyInitialized = errors.New("initializable: contract is already initialized")
	ErrNotInitialized     = errors.New("initializable: contract is not initialized")
)
