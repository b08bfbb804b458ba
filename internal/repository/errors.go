// Package repository defines error types that are reused across multiple
// repositories.  These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios.
package repository

import "errors"

// ErrNotFound is returned when a row does not exist.  Handlers should
// translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation on a
// reservation that belongs to someone else.  Handlers should translate
// this into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be performed because of
// the row's current state, such as cancelling a reservation that already
// started.  Handlers should translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrSlotTaken is returned when a new reservation would exceed the
// resource's capacity for the requested interval.
var ErrSlotTaken = errors.New("time slot is no longer available")

// ErrDuplicateRequest is returned together with the existing reservation
// when a request reuses an idempotency key that already produced one.
var ErrDuplicateRequest = errors.New("duplicate request")

// ErrInvalidRequest is returned for requests that cannot be stored as
// given, such as an empty interval.
var ErrInvalidRequest = errors.New("invalid reservation request")
