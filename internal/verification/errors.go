package verification

import "errors"

var (
	ErrNotFound              = errors.New("verification session not found")
	ErrNotYours              = errors.New("verification session belongs to a different employee")
	ErrAlreadyResolved       = errors.New("verification session already resolved")
	ErrSessionAlreadyPending = errors.New("employee already has a pending verification session")
	ErrNotWorking            = errors.New("employee has no active attendance session")
	ErrEmployeeNotFound      = errors.New("employee not found")
	ErrEmployeeInactive      = errors.New("employee is not active")
)
