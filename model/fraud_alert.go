package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	FraudTypeLocationSpoofing = "location_spoofing"
	FraudTypeTimeManipulation = "time_manipulation"
	FraudTypeDeviceSharing    = "device_sharing"
	FraudTypePatternAnomaly   = "pattern_anomaly"
)

const (
	FraudSeverityLow      = "low"
	FraudSeverityMedium   = "medium"
	FraudSeverityHigh     = "high"
	FraudSeverityCritical = "critical"
)

// FraudAlert is an append-only record produced by the heuristics engine.
// Evidence is a structured snapshot of the inputs that fired the rule.
// Operators may only flip Resolved; rows are never deleted.
type FraudAlert struct {
	ID          uint           `gorm:"primarykey"`
	Type        string         `gorm:"size:32;not null;index"`
	Severity    string         `gorm:"size:16;not null;index"`
	EmployeeID  uint           `gorm:"not null;index"`
	Description string         `gorm:"size:512;not null"`
	Evidence    datatypes.JSON `gorm:"not null"`
	Resolved    bool           `gorm:"default:false;not null;index"`
	ResolvedBy  string         `gorm:"size:64"`
	CreatedAt   time.Time      `gorm:"index"`
	UpdatedAt   time.Time
}

func (a *FraudAlert) BeforeCreate(tx *gorm.DB) error {
	if a.ID == 0 {
		a.ID = GenerateID()
	}
	return nil
}
