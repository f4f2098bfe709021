package auth

import "errors"

// Common errors returned by token validation.
var (
	// ErrInvalidToken indicates a malformed token or an invalid signature.
	ErrInvalidToken = errors.New("invalid token")

	// ErrExpiredToken indicates the token's expiry has passed.
	ErrExpiredToken = errors.New("token expired")

	// ErrTokenNotYetValid indicates the token's not-before time is in the
	// future.
	ErrTokenNotYetValid = errors.New("token not yet valid")
)
