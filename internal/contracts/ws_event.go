package contracts

// WSDriverRideOffer is pushed to a driver's WebSocket when an offer opens.
type WSDriverRideOffer struct {
	Type               string   `json:"type"` // "ride_offer"
	AssignmentID       string   `json:"assignment_id"`
	RideID             string   `json:"ride_id"`
	RideNumber         string   `json:"ride_number,omitempty"`
	Pickup             GeoPoint `json:"pickup_location"`
	Dropoff            GeoPoint `json:"dropoff_location"`
	Seats              int      `json:"seats"`
	FareQuote          float64  `json:"fare_quote,omitempty"`
	DistanceToPickupKM float64  `json:"distance_to_pickup_km,omitempty"`
	ExpiresAt          string   `json:"expires_at"` // ISO-8601
	Envelope
}

// WSOfferWithdrawn tells a driver a previously pushed offer is gone
// (timed out on our side, or the ride was cancelled/claimed).
type WSOfferWithdrawn struct {
	Type         string `json:"type"` // "offer_withdrawn"
	AssignmentID string `json:"assignment_id"`
	RideID       string `json:"ride_id"`
	Reason       string `json:"reason,omitempty"`
	Envelope
}

// WSPassengerRideStatus is pushed to a passenger's WebSocket on every
// lifecycle change of their ride.
type WSPassengerRideStatus struct {
	Type               string `json:"type"` // "ride_status_update"
	RideID             string `json:"ride_id"`
	RideNumber         string `json:"ride_number,omitempty"`
	Status             string `json:"status"`
	DriverID           string `json:"driver_id,omitempty"`
	CancellationReason string `json:"cancellation_reason,omitempty"`
	Envelope
}
