package availability

import (
	"context"
	"sort"
	"sync"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/metrics"
)

// MemoryStore keeps the pool in a plain map. Snapshots are never evicted
// eagerly; staleness is applied at read time so a driver whose heartbeats
// resume is visible again without any resurrection logic.
type MemoryStore struct {
	mu        sync.RWMutex
	snaps     map[string]driver.Availability
	staleness time.Duration
}

func NewMemoryStore(staleness time.Duration) *MemoryStore {
	return &MemoryStore{
		snaps:     make(map[string]driver.Availability),
		staleness: staleness,
	}
}

func (s *MemoryStore) Upsert(_ context.Context, snap driver.Availability) error {
	s.mu.Lock()
	s.snaps[snap.DriverID] = snap
	metrics.DriversTracked.Set(float64(len(s.snaps)))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, driverID string) error {
	s.mu.Lock()
	delete(s.snaps, driverID)
	metrics.DriversTracked.Set(float64(len(s.snaps)))
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, driverID string) (driver.Availability, bool, error) {
	s.mu.RLock()
	snap, ok := s.snaps[driverID]
	s.mu.RUnlock()
	return snap, ok, nil
}

func (s *MemoryStore) Nearby(_ context.Context, center geo.Location, radiusKM float64, limit int, now time.Time) ([]driver.Availability, error) {
	s.mu.RLock()
	candidates := make([]driver.Availability, 0, len(s.snaps))
	for _, snap := range s.snaps {
		if snap.Status != driver.StatusAvailable || !snap.Fresh(now, s.staleness) {
			continue
		}
		if center.DistanceKM(snap.Location) > radiusKM {
			continue
		}
		candidates = append(candidates, snap)
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		di := center.DistanceKM(candidates[i].Location)
		dj := center.DistanceKM(candidates[j].Location)
		if di != dj {
			return di < dj
		}
		return candidates[i].DriverID < candidates[j].DriverID
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}
