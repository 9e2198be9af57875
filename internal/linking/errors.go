package linking

import "errors"

var (
	// ErrIntentNotFound is returned when the intent does not exist or belongs to another user
	ErrIntentNotFound = errors.New("domain linking workflow not found")
	// ErrInvalidDomain is returned when the domain cannot be linked
	ErrInvalidDomain = errors.New("invalid domain name")
	// ErrInvalidStrategy is returned for an unknown strategy hint
	ErrInvalidStrategy = errors.New("invalid linking strategy")
	// ErrActiveIntentExists is returned when the user already links the same domain
	ErrActiveIntentExists = errors.New("an active linking workflow already exists for this domain")
	// ErrInvalidState is returned when the operation is not allowed in the current state
	ErrInvalidState = errors.New("operation not allowed in the current workflow state")
	// ErrNoPendingInstructions is returned by UserConfirmInstructions outside the instruction/verification states
	ErrNoPendingInstructions = errors.New("no instructions are currently pending for this domain")
	// ErrConcurrentUpdate is returned when another writer changed the intent first
	ErrConcurrentUpdate = errors.New("domain linking workflow was modified concurrently")
)
