package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type requestRideRequest struct {
	PassengerID      string  `json:"passenger_id"`
	PickupLatitude   float64 `json:"pickup_latitude"`
	PickupLongitude  float64 `json:"pickup_longitude"`
	DropoffLatitude  float64 `json:"dropoff_latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude"`
	Seats            int     `json:"seats"`
	SurgeMultiplier  float64 `json:"surge_multiplier"`
}

// ----- Handler: POST /rides -----

func (handler *DispatchHTTPHandler) handleRequestRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req requestRideRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	claims, ok := jwt.FromContext(r.Context())
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	// fill or verify passenger_id against the token subject
	sub := strings.TrimSpace(claims.ActorID())
	if strings.TrimSpace(req.PassengerID) == "" {
		req.PassengerID = sub
	} else if req.PassengerID != sub {
		handler.httpError(ctx, w, http.StatusForbidden, "passenger_id does not match token subject",
			errors.New("passenger/token mismatch"))
		return
	}

	in := ports.RequestRideInput{
		PassengerID:     strings.TrimSpace(req.PassengerID),
		Pickup:          geo.Location{Lat: req.PickupLatitude, Lng: req.PickupLongitude},
		Dropoff:         geo.Location{Lat: req.DropoffLatitude, Lng: req.DropoffLongitude},
		Seats:           req.Seats,
		SurgeMultiplier: req.SurgeMultiplier,
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.RequestRide(ctxWithTimeout, in)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}
	ctxWithTimeout = handler.logger.WithRideID(ctxWithTimeout, res.RideID)

	handler.jsonResponse(ctxWithTimeout, w, http.StatusCreated, res)
}
