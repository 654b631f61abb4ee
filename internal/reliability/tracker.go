// Package reliability aggregates per-driver offer outcomes so matching can
// prefer drivers who actually take the rides they are offered.
package reliability

import (
	"sync"
	"time"
)

// driverStats is one driver's running outcome counters.
type driverStats struct {
	offered       int64
	accepted      int64
	declined      int64
	expired       int64
	late          int64
	lastCompleted time.Time
}

// Tracker is an in-memory aggregate over offer outcomes. Scores start at a
// neutral default so new drivers are neither favored nor buried.
type Tracker struct {
	mu    sync.RWMutex
	stats map[string]*driverStats
}

const (
	neutralScore = 0.8
	latePenalty  = 0.5
)

func NewTracker() *Tracker {
	return &Tracker{stats: make(map[string]*driverStats)}
}

func (t *Tracker) get(driverID string) *driverStats {
	if s, ok := t.stats[driverID]; ok {
		return s
	}
	s := &driverStats{}
	t.stats[driverID] = s
	return s
}

func (t *Tracker) RecordOffered(driverID string) {
	t.mu.Lock()
	t.get(driverID).offered++
	t.mu.Unlock()
}

func (t *Tracker) RecordAccepted(driverID string) {
	t.mu.Lock()
	t.get(driverID).accepted++
	t.mu.Unlock()
}

func (t *Tracker) RecordDeclined(driverID string) {
	t.mu.Lock()
	t.get(driverID).declined++
	t.mu.Unlock()
}

func (t *Tracker) RecordExpired(driverID string) {
	t.mu.Lock()
	t.get(driverID).expired++
	t.mu.Unlock()
}

// RecordLate counts a response that arrived after its offer already
// resolved. The expiry was already recorded; lateness is an extra penalty on
// top of it, distinguishing a slow driver from a silent one.
func (t *Tracker) RecordLate(driverID string) {
	t.mu.Lock()
	t.get(driverID).late++
	t.mu.Unlock()
}

func (t *Tracker) RecordCompleted(driverID string, at time.Time) {
	t.mu.Lock()
	t.get(driverID).lastCompleted = at.UTC()
	t.mu.Unlock()
}

// Score returns the driver's acceptance ratio in [0,1], reduced by a
// half-offer penalty for every late response. Expiries count against the
// driver the same as declines. Drivers with no history get the neutral
// default.
func (t *Tracker) Score(driverID string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[driverID]
	if !ok || s.offered == 0 {
		return neutralScore
	}
	score := (float64(s.accepted) - latePenalty*float64(s.late)) / float64(s.offered)
	if score < 0 {
		return 0
	}
	return score
}

// IdleSince returns how long the driver has been without a completed ride.
// Drivers who never completed one are treated as idle since their first
// appearance, capped by maxIdle so unknowns do not dominate ranking.
func (t *Tracker) IdleSince(driverID string, now time.Time, maxIdle time.Duration) time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, ok := t.stats[driverID]
	if !ok || s.lastCompleted.IsZero() {
		return maxIdle
	}
	idle := now.Sub(s.lastCompleted)
	if idle > maxIdle {
		return maxIdle
	}
	if idle < 0 {
		return 0
	}
	return idle
}
