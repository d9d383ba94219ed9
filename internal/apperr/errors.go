package apperr

import "errors"

// Domain errors - these map to specific HTTP responses
var (
	// Authentication
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	ErrSessionExpired      = errors.New("session expired")

	// Users
	ErrEmailTaken   = errors.New("email already registered")
	ErrUserNotFound = errors.New("user not found")
)
