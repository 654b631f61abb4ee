package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ride-dispatch/internal/domain/ride"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/general/metrics"
	"ride-dispatch/internal/general/websocket"
	"ride-dispatch/internal/ports"
)

// DispatchHTTPHandler adapts HTTP requests to the DispatchService.
type DispatchHTTPHandler struct {
	svc    ports.DispatchService
	logger *logger.Logger
	auth   *jwt.Manager
	hub    *websocket.Hub
}

// NewDispatchHTTPHandler wires an HTTP handler around the DispatchService.
func NewDispatchHTTPHandler(
	svc ports.DispatchService,
	logger *logger.Logger,
	auth *jwt.Manager,
	hub *websocket.Hub,
) *DispatchHTTPHandler {
	return &DispatchHTTPHandler{svc: svc, logger: logger, auth: auth, hub: hub}
}

// Router builds the chi router with all dispatch endpoints mounted.
func (handler *DispatchHTTPHandler) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(handler.metricsMiddleware)

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(handler.auth, user.RolePassenger))
		r.Post("/rides", handler.handleRequestRide)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(handler.auth, user.RolePassenger, user.RoleDriver, user.RoleAdmin))
		r.Get("/rides/{ride_id}", handler.handleGetRide)
		r.Post("/rides/{ride_id}/cancel", handler.handleCancelRide)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(handler.auth, user.RoleDriver))
		r.Post("/offers/{assignment_id}/respond", handler.handleOfferResponse)
		r.Post("/rides/{ride_id}/progress", handler.handleProgress)
		r.Post("/drivers/heartbeat", handler.handleHeartbeat)
	})

	r.Group(func(r chi.Router) {
		r.Use(jwt.Middleware(handler.auth, user.RoleAdmin))
		r.Get("/rides/{ride_id}/offers", handler.handleListOffers)
	})

	// WebSocket endpoints authenticate inside the hub before upgrading
	r.Get("/ws/driver", handler.hub.ConnectDriver)
	r.Get("/ws/passenger", handler.hub.ConnectPassenger)

	r.Get("/health", handler.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/tokens", handler.handleCreateToken)

	return r
}

func (handler *DispatchHTTPHandler) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := strconv.Itoa(ww.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route, status).
			Observe(time.Since(start).Seconds())
	})
}

// ----- token endpoint (development convenience) -----

type tokenRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
}

func (handler *DispatchHTTPHandler) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	ctx := handler.withReqID(r.Context(), r)

	var req tokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		handler.httpError(ctx, w, http.StatusBadRequest, "user_id is required", nil)
		return
	}
	role, err := user.ParseRole(req.Role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusBadRequest, "role must be passenger, driver or admin", err)
		return
	}

	token, claims, err := handler.auth.Issue(req.UserID, role)
	if err != nil {
		handler.httpError(ctx, w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	handler.logger.Info(ctx, "token_generated", "JWT token generated",
		map[string]any{"user_id": req.UserID, "role": role.String()})

	handler.jsonResponse(ctx, w, http.StatusCreated, tokenResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		UserID:    req.UserID,
		Role:      role.String(),
	})
}

// ----- shared helpers -----

// decodeJSON enforces the content type, bounds the body and decodes strictly.
func (handler *DispatchHTTPHandler) decodeJSON(ctx context.Context, w http.ResponseWriter, r *http.Request, dst any) bool {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		handler.httpError(ctx, w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", nil)
		return false
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			handler.httpError(ctx, w, http.StatusRequestEntityTooLarge, "request body too large", err)
			return false
		}
		handler.httpError(ctx, w, http.StatusBadRequest, "invalid JSON: "+err.Error(), err)
		return false
	}
	return true
}

// serviceError maps service failures onto HTTP statuses.
func (handler *DispatchHTTPHandler) serviceError(ctx context.Context, w http.ResponseWriter, err error) {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, ports.ErrValidation):
		handler.httpError(ctx, w, http.StatusBadRequest, err.Error(), err)
	case errors.Is(err, ports.ErrNotFound):
		handler.httpError(ctx, w, http.StatusNotFound, err.Error(), err)
	case errors.Is(err, ride.ErrConflictingState):
		handler.httpError(ctx, w, http.StatusConflict, err.Error(), err)
	case errors.As(err, &pgErr):
		handler.httpError(ctx, w, http.StatusInternalServerError, "database error", err)
	default:
		handler.httpError(ctx, w, http.StatusInternalServerError, "internal error", err)
	}
}

func (handler *DispatchHTTPHandler) jsonResponse(ctx context.Context, w http.ResponseWriter, status int, data any) {
	// encode to buffer first so we can control status on failure
	buf := []byte("{}")
	if data != nil {
		var err error
		buf, err = json.Marshal(data)
		if err != nil {
			handler.logger.Error(ctx, "response_encode_failed", "Failed to encode response", err, nil)
			http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf)
}

// httpError sends a JSON error response with a message.
func (handler *DispatchHTTPHandler) httpError(ctx context.Context, w http.ResponseWriter, status int, msg string, err error) {
	action := "request_failed"
	switch {
	case status >= 500:
		action = "http_internal_error"
	case status == http.StatusBadRequest:
		action = "validation_failed"
	case status == http.StatusConflict:
		action = "state_conflict"
	}
	handler.logger.Error(ctx, action, msg, err, nil)

	type errBody struct {
		Error string `json:"error"`
	}
	handler.jsonResponse(ctx, w, status, errBody{Error: msg})
}

// withReqID extracts or generates a request ID and adds it to the context.
func (handler *DispatchHTTPHandler) withReqID(ctx context.Context, r *http.Request) context.Context {
	reqID := r.Header.Get("X-Request-ID")
	if strings.TrimSpace(reqID) == "" {
		reqID = randID()
	}
	return handler.logger.WithRequestID(ctx, reqID)
}

// randID generates a random 24-char hex string suitable for request IDs.
func randID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
