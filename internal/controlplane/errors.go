package controlplane

import "errors"

// Sentinel errors for control plane operations.
var (
	ErrInvalidRequest = errors.New("invalid request")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("resource not found")
	ErrUserNotFound   = errors.New("user not found")
	ErrAlreadyShared  = errors.New("relation already shared with user")
)
