package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	EmployeeStatusActive    = "active"
	EmployeeStatusInactive  = "inactive"
	EmployeeStatusSuspended = "suspended"
)

// Employee mirrors the HR system's employee record. The engine only reads
// id and status; everything else is owned by the HR module.
type Employee struct {
	ID        uint   `gorm:"primarykey"`
	Username  string `gorm:"uniqueIndex;size:32;not null"`
	FullName  string `gorm:"size:64;not null"`
	Email     string `gorm:"uniqueIndex;size:256;not null"`
	Status    string `gorm:"size:16;not null;default:active;index"`
	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

func (e *Employee) BeforeCreate(tx *gorm.DB) error {
	if e.ID == 0 {
		e.ID = GenerateID()
	}
	return nil
}

func (e *Employee) IsActive() bool {
	return e.Status == EmployeeStatusActive
}
