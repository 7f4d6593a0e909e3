package auth

import "errors"

var (
	// ErrBadCredentials covers both an unknown username and a wrong password,
	// so callers cannot enumerate accounts.
	ErrBadCredentials = errors.New("auth: bad credentials")

	ErrAccountInactive = errors.New("auth: account inactive")
	ErrInvalidToken    = errors.New("auth: invalid token")
	ErrExpiredToken    = errors.New("auth: expired token")
	ErrForbidden       = errors.New("auth: forbidden")
	ErrNotFound        = errors.New("auth: not found")
	ErrConflict        = errors.New("auth: resource conflict")
	ErrInvalidInput    = errors.New("auth: invalid input")
)
