package tools

import "errors"

// Sentinel errors for registry operations.
var (
	// ErrToolNotFound is returned when a capability name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolAlreadyRegistered is returned on duplicate registration.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrToolNameEmpty is returned when a descriptor has no name.
	ErrToolNameEmpty = errors.New("tool name is empty")

	// ErrToolInvokeNil is returned when a descriptor has no Invoke binding.
	ErrToolInvokeNil = errors.New("tool invoke function is nil")

	// ErrMissingRequiredArg is returned when a required argument is absent.
	ErrMissingRequiredArg = errors.New("missing required argument")
)
