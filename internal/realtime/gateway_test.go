package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

type stubTracking struct {
	infoFn    func(ctx context.Context, trackingNumber string) (*ports.TrackingInfo, error)
	historyFn func(ctx context.Context, trackingNumber string, limit, offset int) (*ports.HistoryPage, error)
	ingestFn  func(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error)
	assignFn  func(ctx context.Context, trackingNumber, driverID string) error
}

func (s *stubTracking) IngestLocation(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error) {
	return s.ingestFn(ctx, in)
}

func (s *stubTracking) GetTrackingInfo(ctx context.Context, trackingNumber string) (*ports.TrackingInfo, error) {
	if s.infoFn == nil {
		return &ports.TrackingInfo{TrackingNumber: trackingNumber, Status: "in_transit"}, nil
	}
	return s.infoFn(ctx, trackingNumber)
}

func (s *stubTracking) GetHistory(ctx context.Context, trackingNumber string, limit, offset int) (*ports.HistoryPage, error) {
	return s.historyFn(ctx, trackingNumber, limit, offset)
}

func (s *stubTracking) GetStats(ctx context.Context, trackingNumber string) (*ports.TrackingStats, error) {
	return nil, nil
}

func (s *stubTracking) AssignDriver(ctx context.Context, trackingNumber, driverID string) error {
	if s.assignFn == nil {
		return nil
	}
	return s.assignFn(ctx, trackingNumber, driverID)
}

func (s *stubTracking) GetAvailableDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]ports.NearbyDriver, error) {
	return nil, nil
}

// fakePublisher records everything the gateway hands to the dispatcher.
type fakePublisher struct {
	mu     sync.Mutex
	keys   []string
	events []Outbound
}

func (p *fakePublisher) Publish(trackingNumber string, typ MessageType, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, trackingNumber)
	p.events = append(p.events, Outbound{Type: typ, Data: data})
}

func (p *fakePublisher) published() []Outbound {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Outbound(nil), p.events...)
}

// openTestSession returns a gateway wired to in-memory collaborators and a
// live session whose writes land on the returned fakeConn.
func openTestSession(t *testing.T, tracking ports.TrackingService, role string) (*Gateway, *Session, *fakeConn) {
	t.Helper()

	registry := NewRegistry()
	hub := NewHub()
	g := NewGateway(registry, hub, tracking, &fakePublisher{}, GatewayConfig{}, zerolog.Nop())

	c := newFakeConn()
	s := newSession(c, "conn_1", "user_1", role, 32, time.Second, g.finalize, zerolog.Nop())
	hub.Add(s)
	s.open()
	go s.writeLoop()
	t.Cleanup(s.Close)

	c.waitForWrites(t, 1) // welcome
	return g, s, c
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return data
}

func TestGateway_SubscribeSendsSnapshotThenConfirmation(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeSubscribe, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 3)
	if writes[1].Type != TypeTrackingInfo {
		t.Fatalf("expected snapshot first, got %s", writes[1].Type)
	}
	if writes[2].Type != TypeSubscriptionConfirmed {
		t.Fatalf("expected confirmation second, got %s", writes[2].Type)
	}

	subs := g.registry.SubscribersOf("BD-123456")
	if len(subs) != 1 || subs[0] != "conn_1" {
		t.Fatalf("subscription not recorded: %v", subs)
	}
}

func TestGateway_SubscribeUnknownParcelFails(t *testing.T) {
	tracking := &stubTracking{
		infoFn: func(ctx context.Context, tn string) (*ports.TrackingInfo, error) {
			return nil, domain.ErrParcelNotFound
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeSubscribe, Data: payload(t, map[string]string{
		"trackingNumber": "BD-999999",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeSubscriptionError {
		t.Fatalf("expected subscriptionError, got %s", writes[1].Type)
	}
	if subs := g.registry.SubscribersOf("BD-999999"); len(subs) != 0 {
		t.Fatalf("failed subscribe must not be recorded: %v", subs)
	}
}

func TestGateway_SubscriberIDFallsBackToSessionUser(t *testing.T) {
	g, s, _ := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeSubscribe, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	g.registry.mu.RLock()
	defer g.registry.mu.RUnlock()
	if got := g.registry.byTracking["BD-123456"]["conn_1"]; got != "user_1" {
		t.Fatalf("expected session user as subscriber, got %q", got)
	}
}

func TestGateway_UnsubscribeWithoutSubscriptionConfirms(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeUnsubscribe, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeUnsubscribeConfirmed {
		t.Fatalf("expected unsubscriptionConfirmed, got %s", writes[1].Type)
	}
}

func TestGateway_PingPong(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypePing})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypePong {
		t.Fatalf("expected pong, got %s", writes[1].Type)
	}
}

func TestGateway_UnknownMessageType(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	g.route(s, Inbound{Type: "teleport"})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeError {
		t.Fatalf("expected error, got %s", writes[1].Type)
	}
}

func TestGateway_GetHistoryPassesPagination(t *testing.T) {
	var gotLimit, gotOffset int
	tracking := &stubTracking{
		historyFn: func(ctx context.Context, tn string, limit, offset int) (*ports.HistoryPage, error) {
			gotLimit, gotOffset = limit, offset
			return &ports.HistoryPage{TrackingNumber: tn, Limit: limit, Offset: offset}, nil
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeGetHistory, Data: payload(t, map[string]any{
		"trackingNumber": "BD-123456",
		"limit":          25,
		"offset":         50,
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeTrackingHistory {
		t.Fatalf("expected trackingHistory, got %s", writes[1].Type)
	}
	if gotLimit != 25 || gotOffset != 50 {
		t.Fatalf("pagination not passed through: %d/%d", gotLimit, gotOffset)
	}
}

func TestGateway_UpdateLocationRequiresCourierRole(t *testing.T) {
	tracking := &stubTracking{
		ingestFn: func(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error) {
			t.Fatalf("customer must not reach the service")
			return nil, nil
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeUpdate, Data: payload(t, map[string]any{
		"trackingNumber": "BD-123456",
		"latitude":       -4.3,
		"longitude":      15.2,
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeLocationUpdateError {
		t.Fatalf("expected locationUpdateError, got %s", writes[1].Type)
	}
}

func TestGateway_UpdateLocationFromDriver(t *testing.T) {
	var got ports.LocationUpdateInput
	tracking := &stubTracking{
		ingestFn: func(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error) {
			got = in
			return &ports.IngestResult{TrackingNumber: in.TrackingNumber, Status: "in_transit"}, nil
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleDriver)

	g.route(s, Inbound{Type: TypeUpdate, Data: payload(t, map[string]any{
		"trackingNumber": "BD-123456",
		"latitude":       -4.3,
		"longitude":      15.2,
		"speed":          38.5,
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeLocationUpdateAccepted {
		t.Fatalf("expected locationUpdateConfirmed, got %s", writes[1].Type)
	}
	if got.DriverID != "user_1" {
		t.Fatalf("driver id should fall back to the session user, got %q", got.DriverID)
	}
	if got.Timestamp.IsZero() {
		t.Fatalf("missing timestamp should default to now")
	}
	if got.Speed != 38.5 {
		t.Fatalf("unexpected speed %v", got.Speed)
	}
}

func TestGateway_UpdateLocationRejectionIsReported(t *testing.T) {
	tracking := &stubTracking{
		ingestFn: func(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error) {
			return nil, domain.ErrStaleUpdate
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleDriver)

	g.route(s, Inbound{Type: TypeUpdate, Data: payload(t, map[string]any{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeLocationUpdateError {
		t.Fatalf("expected locationUpdateError, got %s", writes[1].Type)
	}
}

func TestGateway_InvalidPayloadIsTypedError(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)

	// Missing required trackingNumber.
	g.route(s, Inbound{Type: TypeSubscribe, Data: payload(t, map[string]string{})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeSubscriptionError {
		t.Fatalf("expected subscriptionError, got %s", writes[1].Type)
	}
}

func TestGateway_StartTrackingNotifiesSubscribersAndAssignsDriver(t *testing.T) {
	var assigned string
	tracking := &stubTracking{
		assignFn: func(ctx context.Context, tn, driverID string) error {
			assigned = driverID
			return nil
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleDriver)

	g.route(s, Inbound{Type: TypeStartTracking, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeStartConfirmed {
		t.Fatalf("expected trackingStartConfirmed, got %s", writes[1].Type)
	}
	if assigned != "user_1" {
		t.Fatalf("driver id should fall back to the session user, got %q", assigned)
	}

	events := g.publish.(*fakePublisher).published()
	if len(events) != 1 || events[0].Type != TypeTrackingStarted {
		t.Fatalf("expected a trackingStarted broadcast, got %v", events)
	}
}

func TestGateway_StartTrackingRequiresCourierRole(t *testing.T) {
	tracking := &stubTracking{
		assignFn: func(ctx context.Context, tn, driverID string) error {
			t.Fatalf("customer must not reach the service")
			return nil
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleCustomer)

	g.route(s, Inbound{Type: TypeStartTracking, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeStartError {
		t.Fatalf("expected trackingStartError, got %s", writes[1].Type)
	}
}

func TestGateway_StartTrackingUnknownParcel(t *testing.T) {
	tracking := &stubTracking{
		infoFn: func(ctx context.Context, tn string) (*ports.TrackingInfo, error) {
			return nil, domain.ErrParcelNotFound
		},
	}
	g, s, c := openTestSession(t, tracking, domain.RoleDriver)

	g.route(s, Inbound{Type: TypeStartTracking, Data: payload(t, map[string]string{
		"trackingNumber": "BD-999999",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeStartError {
		t.Fatalf("expected trackingStartError, got %s", writes[1].Type)
	}
	if events := g.publish.(*fakePublisher).published(); len(events) != 0 {
		t.Fatalf("unknown parcel must not be broadcast: %v", events)
	}
}

func TestGateway_StopTrackingNotifiesSubscribers(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleDriver)

	g.route(s, Inbound{Type: TypeStopTracking, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})

	writes := c.waitForWrites(t, 2)
	if writes[1].Type != TypeStopConfirmed {
		t.Fatalf("expected trackingStopConfirmed, got %s", writes[1].Type)
	}

	events := g.publish.(*fakePublisher).published()
	if len(events) != 1 || events[0].Type != TypeTrackingStopped {
		t.Fatalf("expected a trackingStopped broadcast, got %v", events)
	}
}

func TestGateway_FinalizeDropsSubscriptions(t *testing.T) {
	g, s, c := openTestSession(t, &stubTracking{}, domain.RoleCustomer)
	_ = c

	g.route(s, Inbound{Type: TypeSubscribe, Data: payload(t, map[string]string{
		"trackingNumber": "BD-123456",
	})})
	if subs := g.registry.SubscribersOf("BD-123456"); len(subs) != 1 {
		t.Fatalf("precondition: subscription missing")
	}

	s.Close()

	if subs := g.registry.SubscribersOf("BD-123456"); len(subs) != 0 {
		t.Fatalf("teardown left subscriptions behind: %v", subs)
	}
	if g.hub.Len() != 0 {
		t.Fatalf("teardown left the session in the hub")
	}
}
