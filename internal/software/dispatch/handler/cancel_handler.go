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

type cancelRideRequest struct {
	Reason string `json:"reason"`
}

// ----- Handler: POST /rides/{ride_id}/cancel -----

func (handler *DispatchHTTPHandler) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(chi.URLParam(r, "ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", errors.New("missing ride_id"))
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	var req cancelRideRequest
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

	res, err := handler.svc.CancelRide(ctxWithTimeout, ports.CancelRideInput{
		RideID:  rideID,
		ActorID: claims.ActorID(),
		Role:    claims.Role.String(),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
