package yookassa

import "errors"

var (
	// ErrPaymentFailed is returned when the API rejects a payment request
	ErrPaymentFailed = errors.New("payment request failed")

	// ErrInvalidRequest is returned when request parameters are invalid
	ErrInvalidRequest = errors.New("invalid payment request")

	// ErrUnauthorized is returned when the shop credentials are rejected
	ErrUnauthorized = errors.New("unauthorized payment request")

	// ErrNetworkError is returned when the API cannot be reached
	ErrNetworkError = errors.New("payment network error")
)
