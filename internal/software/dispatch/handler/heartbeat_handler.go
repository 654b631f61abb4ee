package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/ports"
)

// --- Request DTO (HTTP boundary) ---

type heartbeatRequest struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Available bool    `json:"available"`
	Capacity  int     `json:"capacity"`
}

// ----- Handler: POST /drivers/heartbeat -----

// Drivers normally report over the WebSocket; this endpoint covers clients
// without a socket connection.
func (handler *DispatchHTTPHandler) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req heartbeatRequest
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

	err := handler.svc.SendHeartbeat(ctxWithTimeout, ports.HeartbeatInput{
		DriverID:  claims.ActorID(),
		Location:  geo.Location{Lat: req.Latitude, Lng: req.Longitude},
		Available: req.Available,
		Capacity:  req.Capacity,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
