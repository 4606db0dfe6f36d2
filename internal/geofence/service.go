package geofence

import (
	"context"

	"github.com/onsite-hq/onsite/model"
)

// Service wraps admin mutations of the fence set. Every successful mutation
// reloads the index so check-in admission sees the change immediately instead
// of waiting for the next periodic refresh.
type Service struct {
	repo  Repository
	index *Index
}

func NewService(repo Repository, index *Index) *Service {
	return &Service{repo: repo, index: index}
}

func validateFence(name string, lat, lng, radiusM float64) error {
	if name == "" {
		return ErrNameEmpty
	}
	if radiusM <= 0 {
		return ErrInvalidRadius
	}
	if lat < -90 || lat > 90 {
		return ErrInvalidLatitude
	}
	if lng < -180 || lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

func (s *Service) List(ctx context.Context) ([]*model.Geofence, error) {
	return s.repo.FindAll(ctx)
}

func (s *Service) Create(ctx context.Context, name string, lat, lng, radiusM float64) (*model.Geofence, error) {
	if err := validateFence(name, lat, lng, radiusM); err != nil {
		return nil, err
	}
	fence := model.Geofence{
		Name:         name,
		CenterLat:    lat,
		CenterLng:    lng,
		RadiusMeters: radiusM,
		Active:       true,
	}
	if err := s.repo.Create(ctx, &fence); err != nil {
		return nil, err
	}
	return &fence, s.index.Reload(ctx)
}

func (s *Service) Update(ctx context.Context, id uint, name string, lat, lng, radiusM float64, active bool) (*model.Geofence, error) {
	if err := validateFence(name, lat, lng, radiusM); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{
		"name":          name,
		"center_lat":    lat,
		"center_lng":    lng,
		"radius_meters": radiusM,
		"active":        active,
	}
	rows, err := s.repo.Updates(ctx, id, updates)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, ErrFenceNotFound
	}
	if err := s.index.Reload(ctx); err != nil {
		return nil, err
	}
	return s.repo.FindByID(ctx, id)
}

// Deactivate removes a fence from the active set. Fences are never hard
// deleted; attendance history keeps referencing them.
func (s *Service) Deactivate(ctx context.Context, id uint) error {
	rows, err := s.repo.Updates(ctx, id, map[string]interface{}{"active": false})
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrFenceNotFound
	}
	return s.index.Reload(ctx)
}
