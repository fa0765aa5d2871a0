package entity

import "errors"

// ErrNotFound is returned by repositories when the load no longer exists.
var ErrNotFound = errors.New("not found")

// ErrUnauthenticated is returned by the telemetry provider when the session
// could not be established or renewed.
var ErrUnauthenticated = errors.New("telemetry: unauthenticated")

// ErrInvalidDepot is returned when reference data describes an unusable geofence.
var ErrInvalidDepot = errors.New("invalid depot")
