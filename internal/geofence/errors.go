package geofence

import "errors"

var (
	ErrNoActiveFences   = errors.New("no active geofences configured")
	ErrNameEmpty        = errors.New("geofence name cannot be empty")
	ErrFenceNotFound    = errors.New("geofence not found")
	ErrInvalidRadius    = errors.New("geofence radius must be positive")
	ErrInvalidLatitude  = errors.New("latitude must be within [-90, 90]")
	ErrInvalidLongitude = errors.New("longitude must be within [-180, 180]")
)
