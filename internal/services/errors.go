package services

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by every coordinator operation. Callers match with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("session is full")
	ErrConflictDetected = errors.New("conflicting concurrent edit")
	ErrAlreadyMember    = errors.New("user is already a workspace member")
	ErrTransport        = errors.New("transport failure")
	ErrInternal         = errors.New("internal error")

	ErrUnsupportedOperation = fmt.Errorf("%w: unsupported edit operation", ErrValidation)
)
