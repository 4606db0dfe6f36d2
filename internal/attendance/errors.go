package attendance

import "errors"

var (
	ErrAlreadyActive    = errors.New("employee already has an active session")
	ErrNoActiveSession  = errors.New("employee has no active session")
	ErrOutsideGeofence  = errors.New("check-in location is outside every authorized geofence")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeInactive = errors.New("employee is not active")
)
