// Package geofence answers whether a reported position lies inside any
// authorized work location. The fence set is admin-curated and small, so the
// index is a periodically refreshed in-memory snapshot scanned linearly.
package geofence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onsite-hq/onsite/internal/geo"
	"github.com/onsite-hq/onsite/model"
)

type Index struct {
	repo Repository

	mu     sync.RWMutex
	fences []*model.Geofence
}

func NewIndex(repo Repository) *Index {
	return &Index{repo: repo}
}

// Reload replaces the fence snapshot with the current active set.
func (idx *Index) Reload(ctx context.Context) error {
	fences, err := idx.repo.FindActive(ctx)
	if err != nil {
		return err
	}
	idx.mu.Lock()
	idx.fences = fences
	idx.mu.Unlock()
	return nil
}

// Run reloads the snapshot on a fixed interval until ctx is cancelled.
func (idx *Index) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := idx.Reload(ctx); err != nil {
				slog.Error("Failed to reload geofence snapshot", "error", err)
			}
		}
	}
}

func (idx *Index) snapshot() []*model.Geofence {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.fences
}

// IsWithinAny reports whether point lies inside any active fence, boundary
// inclusive. When several fences contain the point the one with the smallest
// margin (radius minus distance to center) wins. The reported GPS accuracy
// never relaxes containment; it is recorded for the fraud heuristics only.
func (idx *Index) IsWithinAny(point geo.Point, accuracyM float64) (bool, *model.Geofence) {
	var (
		best       *model.Geofence
		bestMargin float64
	)
	for _, fence := range idx.snapshot() {
		distance := geo.DistanceMeters(point, geo.Point{Lat: fence.CenterLat, Lng: fence.CenterLng})
		if distance > fence.RadiusMeters {
			continue
		}
		margin := fence.RadiusMeters - distance
		if best == nil || margin < bestMargin {
			best = fence
			bestMargin = margin
		}
	}
	return best != nil, best
}

// Nearest returns the active fence closest to point and the distance to its
// center. Returns ErrNoActiveFences when the snapshot is empty.
func (idx *Index) Nearest(point geo.Point) (*model.Geofence, float64, error) {
	var (
		best     *model.Geofence
		bestDist float64
	)
	for _, fence := range idx.snapshot() {
		distance := geo.DistanceMeters(point, geo.Point{Lat: fence.CenterLat, Lng: fence.CenterLng})
		if best == nil || distance < bestDist {
			best = fence
			bestDist = distance
		}
	}
	if best == nil {
		return nil, 0, ErrNoActiveFences
	}
	return best, bestDist, nil
}
