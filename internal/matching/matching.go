// Package matching ranks eligible drivers for a ride request. Ranking is a
// pure computation over the snapshots it is handed; it performs no writes and
// holds no state, so the coordinator can re-run it freely on every attempt.
package matching

import (
	"context"
	"sort"
	"time"

	"ride-dispatch/internal/domain/driver"
	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/eta"
)

// ReliabilitySource feeds historical offer outcomes into ranking.
type ReliabilitySource interface {
	Score(driverID string) float64
	IdleSince(driverID string, now time.Time, maxIdle time.Duration) time.Duration
}

// Weights balance the three ranking components. They should sum to 1 but
// ranking only depends on their relative sizes.
type Weights struct {
	Proximity   float64
	Idle        float64
	Reliability float64
}

// DefaultWeights favor pickup proximity, as passengers mostly feel wait time.
var DefaultWeights = Weights{Proximity: 0.5, Idle: 0.2, Reliability: 0.3}

const (
	// etaCeiling is the pickup ETA at which the proximity component
	// bottoms out.
	etaCeiling = 15 * time.Minute
	// maxIdle caps the idle-time component.
	maxIdle = time.Hour
)

// Request is what ranking needs to know about the ride.
type Request struct {
	Pickup geo.Location
	Seats  int
}

// Candidate is one ranked driver.
type Candidate struct {
	Driver     driver.Availability
	Score      float64
	EtaSeconds float64
}

// Ranker scores and orders the candidate pool.
type Ranker struct {
	estimator eta.Client
	rel       ReliabilitySource
	weights   Weights
	staleness time.Duration
}

func NewRanker(estimator eta.Client, rel ReliabilitySource, weights Weights, staleness time.Duration) *Ranker {
	return &Ranker{estimator: estimator, rel: rel, weights: weights, staleness: staleness}
}

// Rank filters the pool down to eligible drivers and orders them best first.
// Ties break on driver ID so identical pools always rank identically.
func (r *Ranker) Rank(ctx context.Context, req Request, pool []driver.Availability, now time.Time) []Candidate {
	candidates := make([]Candidate, 0, len(pool))
	for _, snap := range pool {
		if !snap.Eligible(now, r.staleness, req.Seats) {
			continue
		}

		etaSec, err := r.estimator.EstimateSeconds(ctx, snap.Location, req.Pickup)
		if err != nil {
			// estimator already falls back internally; a hard error
			// means this snapshot is unusable
			continue
		}

		candidates = append(candidates, Candidate{
			Driver:     snap,
			Score:      r.score(snap.DriverID, etaSec, now),
			EtaSeconds: etaSec,
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Driver.DriverID < candidates[j].Driver.DriverID
	})

	return candidates
}

func (r *Ranker) score(driverID string, etaSec float64, now time.Time) float64 {
	proximity := 1.0 - etaSec/etaCeiling.Seconds()
	if proximity < 0 {
		proximity = 0
	}

	idle := float64(r.rel.IdleSince(driverID, now, maxIdle)) / float64(maxIdle)
	rel := r.rel.Score(driverID)

	return r.weights.Proximity*proximity + r.weights.Idle*idle + r.weights.Reliability*rel
}
