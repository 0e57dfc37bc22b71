package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

const requestTimeout = 10 * time.Second

// GatewayConfig carries the transport settings for the WebSocket endpoint.
type GatewayConfig struct {
	// AllowedOrigin restricts browser origins; empty allows any origin.
	AllowedOrigin string
	IdleTimeout   time.Duration
	SendBuffer    int
}

// Publisher enqueues an event for fan-out to the subscribers of a tracking
// number. The dispatcher implements it.
type Publisher interface {
	Publish(trackingNumber string, typ MessageType, data any)
}

// Gateway upgrades HTTP requests to tracking sessions and routes protocol
// messages between sessions, the registry, and the tracking service.
type Gateway struct {
	upgrader websocket.Upgrader
	registry *Registry
	hub      *Hub
	tracking ports.TrackingService
	publish  Publisher
	validate *validator.Validate
	cfg      GatewayConfig
	log      zerolog.Logger
}

func NewGateway(registry *Registry, hub *Hub, tracking ports.TrackingService, publish Publisher, cfg GatewayConfig, log zerolog.Logger) *Gateway {
	g := &Gateway{
		registry: registry,
		hub:      hub,
		tracking: tracking,
		publish:  publish,
		validate: validator.New(),
		cfg:      cfg,
		log:      log,
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if cfg.AllowedOrigin == "" {
				return true
			}
			return r.Header.Get("Origin") == cfg.AllowedOrigin
		},
	}
	return g
}

// Handle serves GET /ws/tracking. The Auth middleware has already verified
// the JWT and stashed the caller's identity in the echo context.
func (g *Gateway) Handle(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	role, _ := c.Get("role").(string)

	ws, err := g.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "websocket upgrade failed")
	}

	sess := newSession(ws, uuid.NewString(), userID, role, g.cfg.SendBuffer, g.cfg.IdleTimeout, g.finalize, g.log)
	g.hub.Add(sess)

	g.log.Info().Str("conn", sess.ID()).Str("user", userID).Str("role", role).Msg("tracking client connected")

	// Blocks until the connection terminates; teardown runs via finalize.
	sess.run(g.route)
	return nil
}

// finalize is the single mandatory side effect of session teardown: every
// subscription held by the connection is dropped before the session is gone.
func (g *Gateway) finalize(s *Session) {
	g.registry.DropConnection(s.ID())
	g.hub.Remove(s.ID())
	g.log.Info().Str("conn", s.ID()).Msg("tracking client disconnected")
}

// route dispatches one inbound message. Handler errors are reported to the
// same connection as typed error events and never terminate the session.
func (g *Gateway) route(s *Session, msg Inbound) {
	switch msg.Type {
	case TypeSubscribe:
		g.handleSubscribe(s, msg.Data)
	case TypeUnsubscribe:
		g.handleUnsubscribe(s, msg.Data)
	case TypeGetInfo:
		g.handleGetInfo(s, msg.Data)
	case TypeGetHistory:
		g.handleGetHistory(s, msg.Data)
	case TypeUpdate:
		g.handleUpdateLocation(s, msg.Data)
	case TypeStartTracking:
		g.handleStartTracking(s, msg.Data)
	case TypeStopTracking:
		g.handleStopTracking(s, msg.Data)
	case TypePing:
		_ = s.Send(Outbound{Type: TypePong, Data: pongPayload{Timestamp: time.Now().UTC()}})
	default:
		g.sendError(s, TypeError, "", "unknown message type: "+string(msg.Type))
	}
}

func (g *Gateway) handleSubscribe(s *Session, data json.RawMessage) {
	var req subscribeRequest
	if !g.decode(s, TypeSubscriptionError, data, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	// Subscribing to a tracking number that does not exist would be silently
	// lost work, so unlike unsubscribe this is a hard error.
	info, err := g.tracking.GetTrackingInfo(ctx, req.TrackingNumber)
	if err != nil {
		g.sendError(s, TypeSubscriptionError, req.TrackingNumber, errorMessage(err))
		return
	}

	subscriberID := req.UserID
	if subscriberID == "" {
		subscriberID = s.UserID()
	}
	g.registry.Subscribe(req.TrackingNumber, s.ID(), subscriberID)

	// Current snapshot first, so the watcher renders something immediately.
	_ = s.Send(Outbound{Type: TypeTrackingInfo, Data: info})
	_ = s.Send(Outbound{Type: TypeSubscriptionConfirmed, Data: confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "subscribed to tracking",
		Timestamp:      time.Now().UTC(),
	}})

	g.log.Debug().Str("conn", s.ID()).Str("tracking", req.TrackingNumber).Str("subscriber", subscriberID).Msg("subscribed")
}

func (g *Gateway) handleUnsubscribe(s *Session, data json.RawMessage) {
	var req subscribeRequest
	if !g.decode(s, TypeUnsubscribeError, data, &req) {
		return
	}

	// Unsubscribing when not subscribed is a no-op, not an error.
	g.registry.Unsubscribe(req.TrackingNumber, s.ID())

	_ = s.Send(Outbound{Type: TypeUnsubscribeConfirmed, Data: confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "unsubscribed from tracking",
		Timestamp:      time.Now().UTC(),
	}})
}

func (g *Gateway) handleGetInfo(s *Session, data json.RawMessage) {
	var req trackingInfoRequest
	if !g.decode(s, TypeTrackingInfoError, data, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	info, err := g.tracking.GetTrackingInfo(ctx, req.TrackingNumber)
	if err != nil {
		g.sendError(s, TypeTrackingInfoError, req.TrackingNumber, errorMessage(err))
		return
	}
	_ = s.Send(Outbound{Type: TypeTrackingInfo, Data: info})
}

func (g *Gateway) handleGetHistory(s *Session, data json.RawMessage) {
	var req trackingHistoryRequest
	if !g.decode(s, TypeTrackingHistoryError, data, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	page, err := g.tracking.GetHistory(ctx, req.TrackingNumber, req.Limit, req.Offset)
	if err != nil {
		g.sendError(s, TypeTrackingHistoryError, req.TrackingNumber, errorMessage(err))
		return
	}
	_ = s.Send(Outbound{Type: TypeTrackingHistory, Data: page})
}

func (g *Gateway) handleUpdateLocation(s *Session, data json.RawMessage) {
	if s.Role() != domain.RoleDriver && s.Role() != domain.RoleAdmin {
		g.sendError(s, TypeLocationUpdateError, "", "courier role required")
		return
	}

	var req locationUpdateRequest
	if !g.decode(s, TypeLocationUpdateError, data, &req) {
		return
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	driverID := req.DriverID
	if driverID == "" {
		driverID = s.UserID()
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	result, err := g.tracking.IngestLocation(ctx, ports.LocationUpdateInput{
		TrackingNumber: req.TrackingNumber,
		Latitude:       req.Latitude,
		Longitude:      req.Longitude,
		Accuracy:       req.Accuracy,
		Speed:          req.Speed,
		Heading:        req.Heading,
		Timestamp:      ts,
		DriverID:       driverID,
	})
	if err != nil {
		g.sendError(s, TypeLocationUpdateError, req.TrackingNumber, errorMessage(err))
		return
	}

	_ = s.Send(Outbound{Type: TypeLocationUpdateAccepted, Data: confirmationPayload{
		TrackingNumber: result.TrackingNumber,
		Message:        "location recorded",
		Timestamp:      time.Now().UTC(),
	}})
}

// handleStartTracking marks the beginning of a courier's active tracking of
// a parcel. Watchers already subscribed are told tracking is live.
func (g *Gateway) handleStartTracking(s *Session, data json.RawMessage) {
	if s.Role() != domain.RoleDriver && s.Role() != domain.RoleAdmin {
		g.sendError(s, TypeStartError, "", "courier role required")
		return
	}

	var req startTrackingRequest
	if !g.decode(s, TypeStartError, data, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := g.tracking.GetTrackingInfo(ctx, req.TrackingNumber); err != nil {
		g.sendError(s, TypeStartError, req.TrackingNumber, errorMessage(err))
		return
	}

	driverID := req.DriverID
	if driverID == "" && s.Role() == domain.RoleDriver {
		driverID = s.UserID()
	}
	if driverID != "" {
		if err := g.tracking.AssignDriver(ctx, req.TrackingNumber, driverID); err != nil {
			g.sendError(s, TypeStartError, req.TrackingNumber, errorMessage(err))
			return
		}
	}

	g.publish.Publish(req.TrackingNumber, TypeTrackingStarted, confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "tracking started",
		Timestamp:      time.Now().UTC(),
	})
	_ = s.Send(Outbound{Type: TypeStartConfirmed, Data: confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "tracking started",
		Timestamp:      time.Now().UTC(),
	}})

	g.log.Info().Str("tracking", req.TrackingNumber).Str("driver", driverID).Msg("tracking started")
}

// handleStopTracking ends active tracking of a parcel. Subscribers keep
// their subscriptions but are told no further positions are coming.
func (g *Gateway) handleStopTracking(s *Session, data json.RawMessage) {
	if s.Role() != domain.RoleDriver && s.Role() != domain.RoleAdmin {
		g.sendError(s, TypeStopError, "", "courier role required")
		return
	}

	var req stopTrackingRequest
	if !g.decode(s, TypeStopError, data, &req) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	if _, err := g.tracking.GetTrackingInfo(ctx, req.TrackingNumber); err != nil {
		g.sendError(s, TypeStopError, req.TrackingNumber, errorMessage(err))
		return
	}

	g.publish.Publish(req.TrackingNumber, TypeTrackingStopped, confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "tracking stopped",
		Timestamp:      time.Now().UTC(),
	})
	_ = s.Send(Outbound{Type: TypeStopConfirmed, Data: confirmationPayload{
		TrackingNumber: req.TrackingNumber,
		Message:        "tracking stopped",
		Timestamp:      time.Now().UTC(),
	}})

	g.log.Info().Str("tracking", req.TrackingNumber).Msg("tracking stopped")
}

// decode unmarshals and validates an inbound payload, reporting failures to
// the session under errType. It returns false when handling should stop.
func (g *Gateway) decode(s *Session, errType MessageType, data json.RawMessage, into any) bool {
	if err := json.Unmarshal(data, into); err != nil {
		g.sendError(s, errType, "", "malformed payload")
		return false
	}
	if err := g.validate.Struct(into); err != nil {
		g.sendError(s, errType, "", "invalid payload: "+err.Error())
		return false
	}
	return true
}

func (g *Gateway) sendError(s *Session, typ MessageType, trackingNumber, message string) {
	_ = s.Send(Outbound{Type: typ, Data: errorPayload{
		TrackingNumber: trackingNumber,
		Error:          message,
		Timestamp:      time.Now().UTC(),
	}})
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
