// Package repository implements the MySQL data access layer.  Sentinel
// errors defined here are shared across repositories so handlers can
// map failure classes to HTTP responses without inspecting SQL errors.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource owned by someone else.  Handlers translate this into an
// HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update or delete cannot proceed
// because of dependent records, such as deactivating a slot that still
// has claiming bookings.  Handlers translate this into HTTP 409.
var ErrConflict = errors.New("conflict")
