package eta

import (
	"context"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/logger"
)

// Client estimates travel time between two points.
type Client interface {
	EstimateSeconds(ctx context.Context, from, to geo.Location) (float64, error)
}

// Estimator wraps a routing client with a TTL cache and a straight-line
// fallback, so a routing outage degrades match quality instead of blocking
// dispatch.
type Estimator struct {
	routing     Client
	cache       *Cache
	fallbackKMH float64
	logger      *logger.Logger
}

func NewEstimator(routing Client, cache *Cache, fallbackKMH float64, log *logger.Logger) *Estimator {
	if fallbackKMH <= 0 {
		fallbackKMH = 24.0 // rough city average
	}
	return &Estimator{routing: routing, cache: cache, fallbackKMH: fallbackKMH, logger: log}
}

func (e *Estimator) EstimateSeconds(ctx context.Context, from, to geo.Location) (float64, error) {
	if e.cache != nil {
		if v, ok := e.cache.Get(from, to); ok {
			return v, nil
		}
	}

	if e.routing != nil {
		v, err := e.routing.EstimateSeconds(ctx, from, to)
		if err == nil {
			if e.cache != nil {
				e.cache.Set(from, to, v)
			}
			return v, nil
		}
		e.logger.Info(ctx, "eta_routing_fallback", "Routing lookup failed, using straight-line estimate",
			map[string]any{"error": err.Error()})
	}

	v := StraightLineSeconds(from, to, e.fallbackKMH)
	if e.cache != nil {
		e.cache.Set(from, to, v)
	}
	return v, nil
}

// StraightLineSeconds estimates travel time as haversine distance over a
// fixed average speed.
func StraightLineSeconds(from, to geo.Location, speedKMH float64) float64 {
	if speedKMH <= 0 {
		speedKMH = 24.0
	}
	return from.DistanceKM(to) / speedKMH * float64(time.Hour/time.Second)
}
