package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	VerificationStatusPending  = "pending"
	VerificationStatusVerified = "verified"
	VerificationStatusFailed   = "failed"
	VerificationStatusExpired  = "expired"
)

// VerificationSession is a time-boxed request for an employee to re-prove
// identity with a biometric sample. All states but pending are terminal and
// immutable; resolution races are settled by compare-and-swap on Status.
type VerificationSession struct {
	ID                  uint      `gorm:"primarykey"`
	EmployeeID          uint      `gorm:"not null;index"`
	TriggeredAt         time.Time `gorm:"not null"`
	ExpiresAt           time.Time `gorm:"not null;index"`
	TriggeredBy         string    `gorm:"size:64;not null"`
	Status              string    `gorm:"size:16;not null;default:pending;index"`
	FaceMatchScore      *float64
	ResponseTimeSeconds *float64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (s *VerificationSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == 0 {
		s.ID = GenerateID()
	}
	return nil
}

func (s *VerificationSession) IsPending() bool {
	return s.Status == VerificationStatusPending
}

func (s *VerificationSession) IsExpiredAt(now time.Time) bool {
	return s.ExpiresAt.Before(now)
}
