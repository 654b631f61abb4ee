package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// ----- Handler: GET /rides/{ride_id} -----

func (handler *DispatchHTTPHandler) handleGetRide(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(chi.URLParam(r, "ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", errors.New("missing ride_id"))
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := handler.svc.GetRide(ctxWithTimeout, rideID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}

// ----- Handler: GET /rides/{ride_id}/offers -----

func (handler *DispatchHTTPHandler) handleListOffers(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	rideID := strings.TrimSpace(chi.URLParam(r, "ride_id"))
	if rideID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "ride_id is required", errors.New("missing ride_id"))
		return
	}
	ctx = handler.logger.WithRideID(ctx, rideID)

	ctxWithTimeout, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	offers, err := handler.svc.ListOffers(ctxWithTimeout, rideID)
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, map[string]any{
		"ride_id": rideID,
		"offers":  offers,
	})
}
