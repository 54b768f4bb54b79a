package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Validation errors
	ErrBadRequest = errors.New("bad request")

	// Authentication errors
	ErrUnauthorized = errors.New("invalid credentials")
	ErrEmailTaken   = errors.New("email already registered")

	// Not found errors
	ErrConversationNotFound = errors.New("conversation not found")
)
