package availability

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
)

func snapAt(t *testing.T, id string, lat, lng float64, hb time.Time) driver.Availability {
	t.Helper()
	snap, err := driver.NewAvailability(id, driver.StatusAvailable, 4, geo.Location{Lat: lat, Lng: lng}, hb)
	if err != nil {
		t.Fatalf("NewAvailability: %v", err)
	}
	return snap
}

func TestMemoryStoreNearbyOrdersByDistance(t *testing.T) {
	store := NewMemoryStore(60 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()

	// center roughly downtown Almaty; far is ~2km north of near
	center := geo.Location{Lat: 43.2380, Lng: 76.9452}
	_ = store.Upsert(ctx, snapAt(t, "drv_far", 43.2580, 76.9452, now))
	_ = store.Upsert(ctx, snapAt(t, "drv_near", 43.2400, 76.9452, now))

	got, err := store.Nearby(ctx, center, 5.0, 10, now)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(got))
	}
	if got[0].DriverID != "drv_near" || got[1].DriverID != "drv_far" {
		t.Fatalf("wrong order: %s, %s", got[0].DriverID, got[1].DriverID)
	}
}

func TestMemoryStoreNearbyFiltersStaleAndUnavailable(t *testing.T) {
	store := NewMemoryStore(60 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	center := geo.Location{Lat: 43.2380, Lng: 76.9452}

	_ = store.Upsert(ctx, snapAt(t, "drv_fresh", 43.2390, 76.9452, now.Add(-30*time.Second)))
	_ = store.Upsert(ctx, snapAt(t, "drv_stale", 43.2390, 76.9452, now.Add(-2*time.Minute)))

	busy := snapAt(t, "drv_busy", 43.2390, 76.9452, now)
	busy.Status = driver.StatusUnavailable
	_ = store.Upsert(ctx, busy)

	got, err := store.Nearby(ctx, center, 5.0, 10, now)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 1 || got[0].DriverID != "drv_fresh" {
		t.Fatalf("expected only drv_fresh, got %+v", got)
	}
}

func TestMemoryStoreStaleDriverReturnsAfterHeartbeat(t *testing.T) {
	store := NewMemoryStore(60 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	center := geo.Location{Lat: 43.2380, Lng: 76.9452}

	_ = store.Upsert(ctx, snapAt(t, "drv_1", 43.2390, 76.9452, now.Add(-5*time.Minute)))
	got, _ := store.Nearby(ctx, center, 5.0, 10, now)
	if len(got) != 0 {
		t.Fatalf("stale driver should be invisible, got %+v", got)
	}

	_ = store.Upsert(ctx, snapAt(t, "drv_1", 43.2390, 76.9452, now))
	got, _ = store.Nearby(ctx, center, 5.0, 10, now)
	if len(got) != 1 {
		t.Fatalf("driver should reappear after fresh heartbeat, got %+v", got)
	}
}

func TestMemoryStoreNearbyRespectsRadiusAndLimit(t *testing.T) {
	store := NewMemoryStore(60 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	center := geo.Location{Lat: 43.2380, Lng: 76.9452}

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("drv_%d", i)
		_ = store.Upsert(ctx, snapAt(t, id, 43.2380+float64(i)*0.001, 76.9452, now))
	}
	// ~50km away, outside any sane radius
	_ = store.Upsert(ctx, snapAt(t, "drv_remote", 43.70, 76.9452, now))

	got, err := store.Nearby(ctx, center, 5.0, 3, now)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("limit not applied, got %d drivers", len(got))
	}
	for _, snap := range got {
		if snap.DriverID == "drv_remote" {
			t.Fatal("driver outside radius included")
		}
	}
}

func TestMemoryStoreConcurrentUpserts(t *testing.T) {
	store := NewMemoryStore(60 * time.Second)
	ctx := context.Background()
	now := time.Now().UTC()
	center := geo.Location{Lat: 43.2380, Lng: 76.9452}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			snap := driver.Availability{
				DriverID:      fmt.Sprintf("drv_%d", n),
				Status:        driver.StatusAvailable,
				Capacity:      4,
				Location:      geo.Location{Lat: 43.2380, Lng: 76.9452},
				LastHeartbeat: now,
			}
			for j := 0; j < 100; j++ {
				_ = store.Upsert(ctx, snap)
				_, _ = store.Nearby(ctx, center, 5.0, 10, now)
			}
		}(i)
	}
	wg.Wait()

	got, err := store.Nearby(ctx, center, 5.0, 0, now)
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if len(got) != 8 {
		t.Fatalf("expected 8 drivers after concurrent upserts, got %d", len(got))
	}
}
