package domain

import "errors"

// Sentinel errors for the application.
var (
	// ErrMalformedFrame marks an inbound frame that is not a JSON object.
	// Recoverable: log and keep the connection open.
	ErrMalformedFrame = errors.New("malformed frame")
	// ErrUnknownFrame marks a frame whose discriminant is not recognized.
	// Recoverable: log and keep the connection open.
	ErrUnknownFrame = errors.New("unknown frame type")
	// ErrConnectionClosed is returned when an operation needs an open
	// stream but the handle is already closed or failed.
	ErrConnectionClosed = errors.New("connection closed")
	ErrNotFound         = errors.New("resource not found")
	ErrUnauthorized     = errors.New("unauthorized access")
	ErrForbidden        = errors.New("forbidden")
	ErrConflict         = errors.New("resource already exists")
	ErrInvalidInput     = errors.New("invalid input")
)
