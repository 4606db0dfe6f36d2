package model

import (
	"time"

	"gorm.io/gorm"
)

// Geofence is a named circular region an employee must be inside to be
// admitted for check-in. Admin managed; the engine reads the active set.
type Geofence struct {
	ID           uint    `gorm:"primarykey"`
	Name         string  `gorm:"size:128;not null"`
	CenterLat    float64 `gorm:"not null"`
	CenterLng    float64 `gorm:"not null"`
	RadiusMeters float64 `gorm:"not null"`
	Active       bool    `gorm:"default:true;not null;index"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	DeletedAt    gorm.DeletedAt `gorm:"index"`
}

func (g *Geofence) BeforeCreate(tx *gorm.DB) error {
	if g.ID == 0 {
		g.ID = GenerateID()
	}
	return nil
}
