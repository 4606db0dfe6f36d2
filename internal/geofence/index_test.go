package geofence

import (
	"context"
	"errors"
	"testing"

	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/model"
)

type fakeRepository struct {
	fences []*model.Geofence
}

func (f *fakeRepository) FindByID(ctx context.Context, id uint) (*model.Geofence, error) {
	for _, fence := range f.fences {
		if fence.ID == id {
			return fence, nil
		}
	}
	return nil, ErrFenceNotFound
}

func (f *fakeRepository) FindAll(ctx context.Context) ([]*model.Geofence, error) {
	return f.fences, nil
}

func (f *fakeRepository) FindActive(ctx context.Context) ([]*model.Geofence, error) {
	var active []*model.Geofence
	for _, fence := range f.fences {
		if fence.Active {
			active = append(active, fence)
		}
	}
	return active, nil
}

func (f *fakeRepository) Create(ctx context.Context, fence *model.Geofence) error {
	if fence.ID == 0 {
		fence.ID = uint(len(f.fences) + 1)
	}
	f.fences = append(f.fences, fence)
	return nil
}

func (f *fakeRepository) Updates(ctx context.Context, id uint, columns map[string]interface{}) (int64, error) {
	for _, fence := range f.fences {
		if fence.ID == id {
			if active, ok := columns["active"].(bool); ok {
				fence.Active = active
			}
			return 1, nil
		}
	}
	return 0, nil
}

func newTestIndex(t *testing.T, fences ...*model.Geofence) *Index {
	t.Helper()
	idx := NewIndex(&fakeRepository{fences: fences})
	if err := idx.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return idx
}

// offsetNorth returns a point the given number of meters due north of p.
func offsetNorth(p geo.Point, meters float64) geo.Point {
	return geo.Point{Lat: p.Lat + meters/111194.93, Lng: p.Lng}
}

func TestIsWithinAnyInside(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	idx := newTestIndex(t, &model.Geofence{
		ID: 1, Name: "HQ", CenterLat: center.Lat, CenterLng: center.Lng,
		RadiusMeters: 200, Active: true,
	})

	within, fence := idx.IsWithinAny(offsetNorth(center, 150), 10)
	if !within {
		t.Fatal("point 150m from center should be inside a 200m fence")
	}
	if fence.ID != 1 {
		t.Fatalf("matched fence = %d, want 1", fence.ID)
	}
}

func TestIsWithinAnyOutside(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	idx := newTestIndex(t, &model.Geofence{
		ID: 1, Name: "HQ", CenterLat: center.Lat, CenterLng: center.Lng,
		RadiusMeters: 200, Active: true,
	})

	if within, _ := idx.IsWithinAny(offsetNorth(center, 250), 10); within {
		t.Fatal("point 250m from center should be outside a 200m fence")
	}
}

func TestIsWithinAnyBoundaryInclusive(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	point := offsetNorth(center, 200)
	// Use the exact computed distance as the radius so the point sits on the
	// boundary; containment must be inclusive.
	radius := geo.DistanceMeters(point, center)
	idx := newTestIndex(t, &model.Geofence{
		ID: 1, Name: "HQ", CenterLat: center.Lat, CenterLng: center.Lng,
		RadiusMeters: radius, Active: true,
	})

	if within, _ := idx.IsWithinAny(point, 10); !within {
		t.Fatal("point exactly at radius distance should be inside")
	}
}

func TestIsWithinAnyIgnoresInactive(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	idx := newTestIndex(t, &model.Geofence{
		ID: 1, Name: "old site", CenterLat: center.Lat, CenterLng: center.Lng,
		RadiusMeters: 200, Active: false,
	})

	if within, _ := idx.IsWithinAny(center, 10); within {
		t.Fatal("inactive fences must not admit check-ins")
	}
}

func TestIsWithinAnyTieBreakSmallestMargin(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	idx := newTestIndex(t,
		&model.Geofence{ID: 1, Name: "campus", CenterLat: center.Lat, CenterLng: center.Lng, RadiusMeters: 1000, Active: true},
		&model.Geofence{ID: 2, Name: "building", CenterLat: center.Lat, CenterLng: center.Lng, RadiusMeters: 250, Active: true},
	)

	// Both fences contain the point; the one with less slack wins.
	within, fence := idx.IsWithinAny(offsetNorth(center, 100), 10)
	if !within {
		t.Fatal("point should be inside both fences")
	}
	if fence.ID != 2 {
		t.Fatalf("matched fence = %d, want tighter fence 2", fence.ID)
	}
}

func TestNearest(t *testing.T) {
	center := geo.Point{Lat: 40.0, Lng: -74.0}
	far := geo.Point{Lat: 41.0, Lng: -74.0}
	idx := newTestIndex(t,
		&model.Geofence{ID: 1, Name: "HQ", CenterLat: center.Lat, CenterLng: center.Lng, RadiusMeters: 200, Active: true},
		&model.Geofence{ID: 2, Name: "branch", CenterLat: far.Lat, CenterLng: far.Lng, RadiusMeters: 200, Active: true},
	)

	fence, distance, err := idx.Nearest(offsetNorth(center, 300))
	if err != nil {
		t.Fatalf("Nearest failed: %v", err)
	}
	if fence.ID != 1 {
		t.Fatalf("nearest fence = %d, want 1", fence.ID)
	}
	if distance < 299 || distance > 301 {
		t.Fatalf("nearest distance = %v, want ~300", distance)
	}
}

func TestNearestNoActiveFences(t *testing.T) {
	idx := newTestIndex(t)
	if _, _, err := idx.Nearest(geo.Point{Lat: 40.0, Lng: -74.0}); !errors.Is(err, ErrNoActiveFences) {
		t.Fatalf("err = %v, want ErrNoActiveFences", err)
	}
}
