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

type offerResponseRequest struct {
	Accept bool `json:"accept"`
}

// ----- Handler: POST /offers/{assignment_id}/respond -----

func (handler *DispatchHTTPHandler) handleOfferResponse(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	assignmentID := strings.TrimSpace(chi.URLParam(r, "assignment_id"))
	if assignmentID == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "assignment_id is required", errors.New("missing assignment_id"))
		return
	}

	var req offerResponseRequest
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

	res, err := handler.svc.RespondToOffer(ctxWithTimeout, ports.OfferResponseInput{
		AssignmentID: assignmentID,
		DriverID:     claims.ActorID(),
		Accept:       req.Accept,
	})
	if err != nil {
		handler.serviceError(ctxWithTimeout, w, err)
		return
	}

	handler.jsonResponse(ctxWithTimeout, w, http.StatusOK, res)
}
