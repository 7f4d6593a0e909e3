package estate

import "errors"

var (
	ErrNotFound   = errors.New("estate: not found")
	ErrConflict   = errors.New("estate: resource conflict")
	ErrValidation = errors.New("estate: invalid input")
	ErrForbidden  = errors.New("estate: forbidden")

	// ErrUnitUnavailable rejects bookings against units that are not in the
	// available state or are locked for an investor.
	ErrUnitUnavailable = errors.New("estate: unit unavailable")

	// ErrProjectLimit rejects project creation past the builder's
	// max_projects ceiling.
	ErrProjectLimit = errors.New("estate: builder project limit reached")
)
