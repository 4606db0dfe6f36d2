package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	AttendanceStatusActive     = "active"
	AttendanceStatusCompleted  = "completed"
	AttendanceStatusIncomplete = "incomplete"
)

// AttendanceSession is one check-in/check-out cycle for an employee.
// At most one row per employee may be in status "active" at any instant;
// the partial unique index on ActiveKey enforces that at the database level.
type AttendanceSession struct {
	ID               uint      `gorm:"primarykey"`
	EmployeeID       uint      `gorm:"not null;index"`
	CheckInTime      time.Time `gorm:"not null;index"`
	CheckOutTime     *time.Time
	CheckInLat       float64 `gorm:"not null"`
	CheckInLng       float64 `gorm:"not null"`
	CheckInAccuracyM float64 `gorm:"not null"`
	GeofenceID       *uint   `gorm:"index"`
	Status           string  `gorm:"size:16;not null;default:active;index"`
	TotalHours       float64 `gorm:"default:0"`
	Flagged          bool    `gorm:"default:false;not null"`
	FlagReason       string  `gorm:"size:256"`
	// ActiveKey equals EmployeeID while the session is active and is NULL
	// once closed, so the unique index only constrains active rows.
	ActiveKey *uint `gorm:"uniqueIndex"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *AttendanceSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == 0 {
		s.ID = GenerateID()
	}
	return nil
}

func (s *AttendanceSession) IsActive() bool {
	return s.Status == AttendanceStatusActive
}
