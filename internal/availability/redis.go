package availability

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the pool in Redis: a GEO set with one member per driver
// and a hash of snapshot metadata alongside. Meant for multi-instance
// deployments where the in-memory store cannot be shared.
type RedisStore struct {
	client    *redis.Client
	geoKey    string
	staleness time.Duration
}

func NewRedisStore(client *redis.Client, geoKey string, staleness time.Duration) *RedisStore {
	return &RedisStore{client: client, geoKey: geoKey, staleness: staleness}
}

func (s *RedisStore) metaKey(driverID string) string {
	return s.geoKey + ":meta:" + driverID
}

func (s *RedisStore) Upsert(ctx context.Context, snap driver.Availability) error {
	if err := s.client.GeoAdd(ctx, s.geoKey, &redis.GeoLocation{
		Name:      snap.DriverID,
		Longitude: snap.Location.Lng,
		Latitude:  snap.Location.Lat,
	}).Err(); err != nil {
		return fmt.Errorf("redis geoadd: %w", err)
	}

	err := s.client.HSet(ctx, s.metaKey(snap.DriverID), map[string]interface{}{
		"status":    snap.Status.String(),
		"capacity":  strconv.Itoa(snap.Capacity),
		"heartbeat": strconv.FormatInt(snap.LastHeartbeat.UnixMilli(), 10),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis hset: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, driverID string) error {
	if err := s.client.ZRem(ctx, s.geoKey, driverID).Err(); err != nil {
		return fmt.Errorf("redis zrem: %w", err)
	}
	if err := s.client.Del(ctx, s.metaKey(driverID)).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, driverID string) (driver.Availability, bool, error) {
	pos, err := s.client.GeoPos(ctx, s.geoKey, driverID).Result()
	if err != nil {
		return driver.Availability{}, false, fmt.Errorf("redis geopos: %w", err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return driver.Availability{}, false, nil
	}

	snap, err := s.readMeta(ctx, driverID, geo.Location{Lat: pos[0].Latitude, Lng: pos[0].Longitude})
	if err != nil {
		return driver.Availability{}, false, err
	}
	return snap, true, nil
}

func (s *RedisStore) Nearby(ctx context.Context, center geo.Location, radiusKM float64, limit int, now time.Time) ([]driver.Availability, error) {
	res, err := s.client.GeoSearchLocation(ctx, s.geoKey, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Longitude:  center.Lng,
			Latitude:   center.Lat,
			Radius:     radiusKM,
			RadiusUnit: "km",
			Sort:       "ASC",
		},
		WithCoord: true,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis geosearch: %w", err)
	}

	out := make([]driver.Availability, 0, len(res))
	for _, g := range res {
		snap, err := s.readMeta(ctx, g.Name, geo.Location{Lat: g.Latitude, Lng: g.Longitude})
		if err != nil {
			return nil, err
		}
		if snap.Status != driver.StatusAvailable || !snap.Fresh(now, s.staleness) {
			continue
		}
		out = append(out, snap)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *RedisStore) readMeta(ctx context.Context, driverID string, loc geo.Location) (driver.Availability, error) {
	m, err := s.client.HGetAll(ctx, s.metaKey(driverID)).Result()
	if err != nil {
		return driver.Availability{}, fmt.Errorf("redis hgetall: %w", err)
	}

	snap := driver.Availability{DriverID: driverID, Location: loc}
	snap.Status = driver.AvailabilityStatus(m["status"])
	if v, err := strconv.Atoi(m["capacity"]); err == nil {
		snap.Capacity = v
	}
	if ms, err := strconv.ParseInt(m["heartbeat"], 10, 64); err == nil {
		snap.LastHeartbeat = time.UnixMilli(ms).UTC()
	}
	return snap, nil
}
