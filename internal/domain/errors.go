package domain

import "errors"

// Sentinel errors for the domain layer.
var (
	ErrNotFound           = errors.New("domain: not found")
	ErrPermissionDenied   = errors.New("domain: permission denied")
	ErrPreconditionFailed = errors.New("domain: precondition failed")
	ErrConflict           = errors.New("domain: conflict")
)

// ErrInvalidTransition is returned when a status change is not permitted
// from the entity's current state.
var ErrInvalidTransition = errors.New("domain: invalid state transition")
