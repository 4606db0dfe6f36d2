package model

import "time"

// AuditEvent is the append-only trail of everything the engine decided:
// admitted and rejected check-ins, check-outs, verification lifecycle
// transitions and raised alerts.
type AuditEvent struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	EmployeeID uint      `gorm:"index"`
	EventType  string    `gorm:"size:64;not null;index"` // check_in_admitted, check_in_rejected...
	SessionID  uint      `gorm:"index"`                  // attendance or verification session id
	GeofenceID uint      `gorm:"index"`                  // matched fence - only for check-in events
	Reason     string    `gorm:"size:512"`               // rejection reason or context
	Lat        float64   // reported position - only for check-in events
	Lng        float64
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (AuditEvent) TableName() string {
	return "audit"
}
