// Package common holds sentinel errors shared between repositories,
// services and the HTTP layer.
package common

import "errors"

var (

	// repository specific errors
	ErrorNotFound = errors.New("not found")

	// service specific errors
	ErrorInternal   = errors.New("internal error")
	ErrorValidation = errors.New("validation error")

	// auth-specific errors
	ErrorUnauthorized = errors.New("unauthorized")
	ErrInvalidToken   = errors.New("invalid token")
)
