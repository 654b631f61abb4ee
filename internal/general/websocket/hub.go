package websocket

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ride-dispatch/internal/domain/geo"
	"ride-dispatch/internal/domain/user"
	"ride-dispatch/internal/general/jwt"
	"ride-dispatch/internal/general/logger"
	"ride-dispatch/internal/ports"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsReadDeadline = 60 * time.Second
	wsPingInterval = 30 * time.Second
	ctrlTimeout    = 5 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Hub holds live driver and passenger sockets. Offers are pushed to drivers
// over their socket and lifecycle updates to passengers over theirs. Inbound
// driver frames (offer responses, heartbeats) are routed into the dispatch
// service.
type Hub struct {
	logger *logger.Logger
	jwtMgr *jwt.Manager
	svc    ports.DispatchService

	writeLocks sync.Map // *websocket.Conn -> *sync.Mutex
	drivers    sync.Map // driverID(string) -> *websocket.Conn
	passengers sync.Map // passengerID(string) -> *websocket.Conn
}

func NewHub(log *logger.Logger, jwtMgr *jwt.Manager, svc ports.DispatchService) *Hub {
	return &Hub{logger: log, jwtMgr: jwtMgr, svc: svc}
}

// ConnectDriver upgrades a driver socket. The JWT travels in the token query
// parameter since browsers cannot set headers on websocket dials.
func (hub *Hub) ConnectDriver(w http.ResponseWriter, r *http.Request) {
	claims, err := hub.authenticate(w, r, user.RoleDriver)
	if err != nil {
		return
	}
	driverID := claims.ActorID()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer hub.writeLocks.Delete(conn)

	hub.drivers.Store(driverID, conn)
	// a reconnect replaces the entry; only the owning handler may remove it
	defer hub.drivers.CompareAndDelete(driverID, conn)

	hub.logger.Info(r.Context(), "ws_connected", "Driver WebSocket connected",
		map[string]any{"driver_id": driverID})

	hub.startPingLoop(r, conn, driverID)

	conn.SetReadLimit(1 << 20) // 1 MiB
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				hub.logger.Error(r.Context(), "ws_unexpected_close", "Driver connection closed unexpectedly", err,
					map[string]any{"driver_id": driverID})
			} else {
				hub.logger.Info(r.Context(), "ws_connection_closed", "Driver connection closed",
					map[string]any{"driver_id": driverID})
			}
			return
		}

		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(payload, &msg); err != nil {
			_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": "bad json"})
			continue
		}

		switch msg.Type {
		case "offer_response":
			hub.handleOfferResponse(r, conn, driverID, msg.Data)
		case "heartbeat":
			hub.handleHeartbeat(r, conn, driverID, msg.Data)
		default:
			_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": "unknown message type"})
		}
	}
}

// ConnectPassenger upgrades a passenger socket. Passengers only receive;
// inbound frames other than pings are ignored.
func (hub *Hub) ConnectPassenger(w http.ResponseWriter, r *http.Request) {
	claims, err := hub.authenticate(w, r, user.RolePassenger)
	if err != nil {
		return
	}
	passengerID := claims.ActorID()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error(r.Context(), "websocket_upgrade_failed", "Failed to upgrade to WebSocket", err, nil)
		return
	}
	defer conn.Close()
	defer hub.writeLocks.Delete(conn)

	hub.passengers.Store(passengerID, conn)
	defer hub.passengers.CompareAndDelete(passengerID, conn)

	hub.logger.Info(r.Context(), "ws_connected", "Passenger WebSocket connected",
		map[string]any{"passenger_id": passengerID})

	hub.startPingLoop(r, conn, passengerID)

	conn.SetReadLimit(1 << 20)
	conn.SetPongHandler(func(_ string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
	})

	for {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadDeadline))
		if _, _, err := conn.ReadMessage(); err != nil {
			hub.logger.Info(r.Context(), "ws_connection_closed", "Passenger connection closed",
				map[string]any{"passenger_id": passengerID})
			return
		}
	}
}

func (hub *Hub) authenticate(w http.ResponseWriter, r *http.Request, role user.Role) (*jwt.Claims, error) {
	token, err := jwt.FromAuthorization(r)
	if err != nil {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil, err
	}
	claims, err := hub.jwtMgr.ParseAndValidate(token)
	if err != nil {
		hub.logger.Error(r.Context(), "ws_auth_failed", "Invalid WebSocket token", err, nil)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, err
	}
	if err := jwt.RoleAllowed(claims, role); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return nil, err
	}
	return claims, nil
}

func (hub *Hub) startPingLoop(r *http.Request, conn *websocket.Conn, actorID string) {
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for range ticker.C {
			mu := hub.lockOf(conn)
			mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctrlTimeout))
			mu.Unlock()
			if err != nil {
				// close the socket to unblock the reader, then exit
				_ = conn.Close()
				hub.logger.Info(r.Context(), "ws_ping_failed", "Ping failed, closing socket",
					map[string]any{"actor_id": actorID})
				return
			}
		}
	}()
}

func (hub *Hub) handleOfferResponse(r *http.Request, conn *websocket.Conn, driverID string, raw json.RawMessage) {
	var p struct {
		AssignmentID string `json:"assignment_id"`
		Accept       bool   `json:"accept"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": "bad offer_response payload"})
		return
	}

	res, err := hub.svc.RespondToOffer(r.Context(), ports.OfferResponseInput{
		AssignmentID: p.AssignmentID,
		DriverID:     driverID,
		Accept:       p.Accept,
	})
	if err != nil {
		hub.logger.Error(r.Context(), "ws_offer_response_failed", "Offer response rejected", err,
			map[string]any{"driver_id": driverID, "assignment_id": p.AssignmentID})
		_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": err.Error()})
		return
	}

	_ = hub.writeJSON(conn, map[string]any{
		"type":    "offer_response_ack",
		"data":    res,
		"sent_at": time.Now().UTC(),
	})
}

func (hub *Hub) handleHeartbeat(r *http.Request, conn *websocket.Conn, driverID string, raw json.RawMessage) {
	var p struct {
		Lat       float64 `json:"lat"`
		Lng       float64 `json:"lng"`
		Available bool    `json:"available"`
		Capacity  int     `json:"capacity"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": "bad heartbeat payload"})
		return
	}

	err := hub.svc.SendHeartbeat(r.Context(), ports.HeartbeatInput{
		DriverID:  driverID,
		Location:  geo.Location{Lat: p.Lat, Lng: p.Lng},
		Available: p.Available,
		Capacity:  p.Capacity,
	})
	if err != nil {
		_ = hub.writeJSON(conn, map[string]any{"type": "error", "error": err.Error()})
	}
}

// SendToDriver pushes one JSON message to a connected driver.
func (hub *Hub) SendToDriver(driverID string, msg any) error {
	v, ok := hub.drivers.Load(driverID)
	if !ok {
		return fmt.Errorf("driver %s not connected", driverID)
	}
	return hub.writeJSON(v.(*websocket.Conn), msg)
}

// NotifyPassenger pushes one JSON message to a connected passenger.
// Missing connections are not an error; ride events also flow through the
// broker for offline consumers.
func (hub *Hub) NotifyPassenger(passengerID string, msg any) error {
	v, ok := hub.passengers.Load(passengerID)
	if !ok {
		return nil
	}
	return hub.writeJSON(v.(*websocket.Conn), msg)
}

// IsDriverConnected reports whether the driver has a live socket.
func (hub *Hub) IsDriverConnected(driverID string) bool {
	_, ok := hub.drivers.Load(driverID)
	return ok
}

func (hub *Hub) writeJSON(conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	mu := hub.lockOf(conn)
	mu.Lock()
	defer mu.Unlock()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (hub *Hub) lockOf(conn *websocket.Conn) *sync.Mutex {
	if v, ok := hub.writeLocks.Load(conn); ok {
		return v.(*sync.Mutex)
	}
	actual, _ := hub.writeLocks.LoadOrStore(conn, &sync.Mutex{})
	return actual.(*sync.Mutex)
}
