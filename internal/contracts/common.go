package contracts

import (
	"crypto/rand"
	"encoding/hex"
	"time"
)

// Envelope adds cross-cutting headers all messages carry. EventID is the
// de-duplication key for at-least-once delivery.
type Envelope struct {
	EventID       string    `json:"event_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Producer      string    `json:"producer,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
}

// NewEnvelope stamps a fresh envelope for an outbound event.
func NewEnvelope(producer, correlationID string) Envelope {
	return Envelope{
		EventID:       NewID("evt"),
		CorrelationID: correlationID,
		Producer:      producer,
		SentAt:        time.Now().UTC(),
	}
}

// NewID returns a URL-safe, unique id like "evt_20260829T120000Z_ab12cd34ef56".
func NewID(prefix string) string {
	var b [6]byte
	_, _ = rand.Read(b[:])
	return prefix + "_" + time.Now().UTC().Format("20060102T150405Z") + "_" + hex.EncodeToString(b[:])
}

// GeoPoint mirrors a location on the wire.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
