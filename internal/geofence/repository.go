package geofence

import (
	"context"
	"errors"

	"github.com/onsite-hq/onsite/model"
	"gorm.io/gorm"
)

type Repository interface {
	FindByID(ctx context.Context, id uint) (*model.Geofence, error)
	FindAll(ctx context.Context) ([]*model.Geofence, error)
	FindActive(ctx context.Context) ([]*model.Geofence, error)
	Create(ctx context.Context, fence *model.Geofence) error
	Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func (r *repository) FindByID(ctx context.Context, id uint) (*model.Geofence, error) {
	var fence model.Geofence
	err := r.db.WithContext(ctx).First(&fence, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFenceNotFound
	}
	return &fence, err
}

func (r *repository) FindAll(ctx context.Context) ([]*model.Geofence, error) {
	var fences []*model.Geofence
	err := r.db.WithContext(ctx).Order("id").Find(&fences).Error
	return fences, err
}

func (r *repository) FindActive(ctx context.Context) ([]*model.Geofence, error) {
	var fences []*model.Geofence
	err := r.db.WithContext(ctx).Where("active = ?", true).Order("id").Find(&fences).Error
	return fences, err
}

func (r *repository) Create(ctx context.Context, fence *model.Geofence) error {
	return r.db.WithContext(ctx).Create(fence).Error
}

func (r *repository) Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error) {
	ret := r.db.WithContext(ctx).Model(&model.Geofence{}).Where("id = ?", id).Updates(columns)
	return ret.RowsAffected, ret.Error
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db}
}
