package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type progressRequest struct {
	Event     string  `json:"event"` // enroute_pickup | passenger_onboard | completed
	FinalFare float64 `json:"final_fare"`
}

// ----- Handler: POST /rides/{ride_id}/progress -----

func (handler *DispatchHTTPHandler) handleProgress(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(chi.URLParam(r, "ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", errors.New("missing ride_id"))
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req progressRequest
	if !handler.decodeJSON(ctx, w, r, &req) {
		return
	}

	claims, ok := jwt.FromContext(r.Context())
	if !ok {
		handler.httpError(ctx, w, http.StatusUnauthorized, "missing auth claims", errors.New("no claims"))
		return
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.ReportProgress(ctxWithTimeout, ports.ProgressInput{
		RideID:    rideID,
		DriverID:  claims.ActorID(),
		Event:     strings.ToLower(strings.TrimSpace(req.Event)),
		FinalFare: req.FinalFare,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
