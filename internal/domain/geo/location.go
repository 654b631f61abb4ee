package geo

import (
	"errors"
	"math"
)

// Location is a validated latitude/longitude pair. The engine never passes
// coordinates around as raw floats or opaque JSON blobs.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

var (
	ErrNonFiniteCoordinate = errors.New("coordinate must be a finite number")
	ErrInvalidLatitude     = errors.New("latitude must be between -90 and 90")
	ErrInvalidLongitude    = errors.New("longitude must be between -180 and 180")
)

// NewLocation validates and constructs a Location.
func NewLocation(lat, lng float64) (Location, error) {
	loc := Location{Lat: lat, Lng: lng}
	if err := loc.Validate(); err != nil {
		return Location{}, err
	}
	return loc, nil
}

// Validate checks that both coordinates are finite and in range.
func (loc Location) Validate() error {
	if math.IsNaN(loc.Lat) || math.IsInf(loc.Lat, 0) || math.IsNaN(loc.Lng) || math.IsInf(loc.Lng, 0) {
		return ErrNonFiniteCoordinate
	}
	if loc.Lat < -90 || loc.Lat > 90 {
		return ErrInvalidLatitude
	}
	if loc.Lng < -180 || loc.Lng > 180 {
		return ErrInvalidLongitude
	}
	return nil
}

// DistanceKM returns the great-circle distance to another location in kilometers.
func (loc Location) DistanceKM(other Location) float64 {
	return HaversineKM(loc.Lat, loc.Lng, other.Lat, other.Lng)
}

// HaversineKM computes the great-circle distance between two points in kilometers.
func HaversineKM(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadiusKM = 6371.0

	a1 := lat1 * math.Pi / 180
	a2 := lat2 * math.Pi / 180
	da := (lat2 - lat1) * math.Pi / 180
	db := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(da/2)*math.Sin(da/2) +
		math.Cos(a1)*math.Cos(a2)*math.Sin(db/2)*math.Sin(db/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKM * c
}
