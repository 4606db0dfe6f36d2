// Package employees exposes the HR-owned employee table to the engine.
// Read-only here; employee CRUD lives in the HR system.
package employees

import (
	"context"
	"errors"

	"github.com/onsite-hq/onsite/model"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id uint) (*model.Employee, error)
	// FindActiveIDs returns the ids of every active employee, used by the
	// "trigger all" bulk verification action.
	FindActiveIDs(ctx context.Context) ([]uint, error)
}

type repository struct {
	db *gorm.DB
}

func (r *repository) FindByID(ctx context.Context, id uint) (*model.Employee, error) {
	var employee model.Employee
	err := r.db.WithContext(ctx).First(&employee, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &employee, err
}

func (r *repository) FindActiveIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&model.Employee{}).
		Where("status = ?", model.EmployeeStatusActive).
		Pluck("id", &ids).Error
	return ids, err
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}
