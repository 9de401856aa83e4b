package client

import "errors"

var (
	ErrUnavailable      = errors.New("cart api unavailable")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrNotFound         = errors.New("not found")
	ErrUnexpectedStatus = errors.New("unexpected status")
	ErrUnexpectedShape  = errors.New("unexpected response shape")
)
