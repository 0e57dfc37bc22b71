package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/api/metrics"
	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

// DedupChecker abstracts the idempotency store (Redis).
type DedupChecker interface {
	IsDuplicate(ctx context.Context, trackingNumber string, ts time.Time) (bool, error)
	Mark(ctx context.Context, trackingNumber string, ts time.Time) error
}

// Broadcaster fans an event out to current subscribers of a tracking number.
// Implementations must isolate per-recipient push failures; neither method
// reports delivery errors back to the caller.
type Broadcaster interface {
	BroadcastLocation(update ports.LocationUpdateInput)
	BroadcastStatus(trackingNumber string, status domain.ParcelStatus, at time.Time)
}

type trackingService struct {
	parcelRepo   ports.ParcelRepository
	eventRepo    ports.EventRepository
	driverRepo   ports.DriverRepository
	dedup        DedupChecker
	broadcast    Broadcaster
	maxClockSkew time.Duration
	keys         *keyedMutex
	log          zerolog.Logger
}

// NewTrackingService returns a TrackingService implementation.
// maxClockSkew bounds how far in the future an update timestamp may be.
func NewTrackingService(
	parcelRepo ports.ParcelRepository,
	eventRepo ports.EventRepository,
	driverRepo ports.DriverRepository,
	dedup DedupChecker,
	broadcast Broadcaster,
	maxClockSkew time.Duration,
	log zerolog.Logger,
) ports.TrackingService {
	if maxClockSkew <= 0 {
		maxClockSkew = 30 * time.Second
	}
	return &trackingService{
		parcelRepo:   parcelRepo,
		eventRepo:    eventRepo,
		driverRepo:   driverRepo,
		dedup:        dedup,
		broadcast:    broadcast,
		maxClockSkew: maxClockSkew,
		keys:         newKeyedMutex(),
		log:          log,
	}
}

// IngestLocation validates, persists, and broadcasts a single position report.
// Updates for the same tracking number are processed one at a time; the
// per-key lock keeps the stale-update check from racing a concurrent write.
func (s *trackingService) IngestLocation(ctx context.Context, in ports.LocationUpdateInput) (*ports.IngestResult, error) {
	start := time.Now()

	// 1. Range and timestamp validation — nothing is mutated on failure.
	if err := s.validate(in); err != nil {
		metrics.LocationsRejectedTotal.WithLabelValues("out_of_range").Inc()
		return nil, err
	}

	s.keys.Lock(in.TrackingNumber)
	defer s.keys.Unlock(in.TrackingNumber)

	// 2. Idempotency check — silently skip exact duplicates.
	isDup, err := s.dedup.IsDuplicate(ctx, in.TrackingNumber, in.Timestamp)
	if err != nil {
		s.log.Warn().Err(err).Str("tracking", in.TrackingNumber).Msg("dedup check failed, processing anyway")
	} else if isDup {
		s.log.Debug().Str("tracking", in.TrackingNumber).Time("ts", in.Timestamp).Msg("duplicate location skipped")
		return nil, domain.ErrStaleUpdate
	}

	// 3. Find parcel.
	parcel, err := s.parcelRepo.FindByTrackingNumber(ctx, in.TrackingNumber, "")
	if err != nil {
		metrics.LocationsRejectedTotal.WithLabelValues("not_found").Inc()
		return nil, fmt.Errorf("ingest location: %w", err)
	}

	// 4. Stale check — timestamps must strictly advance per tracking number.
	if last := parcel.LastPositionAt(); !last.IsZero() && !in.Timestamp.After(last) {
		metrics.LocationsRejectedTotal.WithLabelValues("stale").Inc()
		return nil, fmt.Errorf("ingest location: %w (got %s, have %s)",
			domain.ErrStaleUpdate, in.Timestamp.UTC().Format(time.RFC3339), last.UTC().Format(time.RFC3339))
	}

	pos := domain.Position{
		Latitude:   in.Latitude,
		Longitude:  in.Longitude,
		Accuracy:   in.Accuracy,
		Speed:      in.Speed,
		Heading:    in.Heading,
		CapturedAt: in.Timestamp.UTC(),
	}
	event := domain.TrackingEvent{
		Timestamp: in.Timestamp.UTC(),
		Position:  &pos,
		ActorID:   in.DriverID,
	}

	// 5. Atomically update current position + append history. The repository
	// re-asserts the stale guard in its filter; a miss means a newer position
	// won the race between our read and this write. On error nothing has been
	// committed yet, so the courier can retry the identical report.
	matched, err := s.parcelRepo.UpdatePosition(ctx, in.TrackingNumber, pos, event)
	if err != nil {
		metrics.LocationsRejectedTotal.WithLabelValues("persist_failed").Inc()
		return nil, fmt.Errorf("ingest location: update position: %w", err)
	}
	if !matched {
		metrics.LocationsRejectedTotal.WithLabelValues("stale").Inc()
		return nil, fmt.Errorf("ingest location: %w", domain.ErrStaleUpdate)
	}

	// 6. Mark as processed only after the write landed. Marking earlier would
	// make a retry of a failed persist look like a duplicate; re-application
	// of a marked update is already blocked by the stale filter above.
	if markErr := s.dedup.Mark(ctx, in.TrackingNumber, in.Timestamp); markErr != nil {
		s.log.Warn().Err(markErr).Str("tracking", in.TrackingNumber).Msg("failed to set dedup key")
	}

	// 7. Insert into audit trail (non-fatal on failure).
	if err := s.eventRepo.InsertEvent(ctx, in.TrackingNumber, &event); err != nil {
		s.log.Warn().Err(err).Str("tracking", in.TrackingNumber).Msg("failed to insert audit event")
	}

	// 8. Record the courier's own position for the nearby-driver lookup
	// (non-fatal on failure).
	if in.DriverID != "" {
		if err := s.driverRepo.UpsertPosition(ctx, in.DriverID, pos); err != nil {
			s.log.Warn().Err(err).Str("driver", in.DriverID).Msg("failed to record driver position")
		}
	}

	result := &ports.IngestResult{
		TrackingNumber: in.TrackingNumber,
		Status:         string(parcel.Status),
	}

	// 9. Movement-driven status promotion.
	if next, ok := s.promotedStatus(parcel, pos); ok {
		if err := s.applyPromotion(ctx, parcel, next, in); err != nil {
			s.log.Warn().Err(err).Str("tracking", in.TrackingNumber).Str("status", string(next)).Msg("status promotion failed")
		} else {
			result.Status = string(next)
			result.StatusChanged = true
		}
	}

	// 10. Fan out to live subscribers.
	s.broadcast.BroadcastLocation(in)

	metrics.LocationsIngestedTotal.Inc()
	metrics.IngestDuration.Observe(time.Since(start).Seconds())

	s.log.Info().
		Str("tracking", in.TrackingNumber).
		Float64("lat", in.Latitude).
		Float64("lng", in.Longitude).
		Str("driver", in.DriverID).
		Msg("location ingested")

	return result, nil
}

func (s *trackingService) validate(in ports.LocationUpdateInput) error {
	switch {
	case in.Latitude < -90 || in.Latitude > 90:
		return fmt.Errorf("%w: latitude %v", domain.ErrOutOfRange, in.Latitude)
	case in.Longitude < -180 || in.Longitude > 180:
		return fmt.Errorf("%w: longitude %v", domain.ErrOutOfRange, in.Longitude)
	case in.Accuracy < 0:
		return fmt.Errorf("%w: accuracy %v", domain.ErrOutOfRange, in.Accuracy)
	case in.Speed < 0:
		return fmt.Errorf("%w: speed %v", domain.ErrOutOfRange, in.Speed)
	case in.Heading < 0 || in.Heading > 360:
		return fmt.Errorf("%w: heading %v", domain.ErrOutOfRange, in.Heading)
	}
	if in.Timestamp.After(time.Now().Add(s.maxClockSkew)) {
		return fmt.Errorf("%w: timestamp in the future", domain.ErrOutOfRange)
	}
	return nil
}

// promotedStatus decides whether a position report moves the parcel forward:
// a picked-up parcel that starts reporting positions is in transit, and a
// parcel in transit within delivery range of the destination is out for
// delivery.
func (s *trackingService) promotedStatus(p *domain.TrackedParcel, pos domain.Position) (domain.ParcelStatus, bool) {
	switch p.Status {
	case domain.StatusPickedUp:
		return domain.StatusInTransit, true
	case domain.StatusInTransit:
		dist := domain.Distance(pos.Latitude, pos.Longitude, p.Destination.Coordinates.Lat, p.Destination.Coordinates.Lng)
		if dist < domain.DeliveryProximityKm {
			return domain.StatusOutForDelivery, true
		}
	}
	return "", false
}

func (s *trackingService) applyPromotion(ctx context.Context, p *domain.TrackedParcel, next domain.ParcelStatus, in ports.LocationUpdateInput) error {
	if !p.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w (from %s to %s)", domain.ErrInvalidTransition, p.Status, next)
	}

	now := time.Now().UTC()
	event := domain.TrackingEvent{
		Timestamp:   now,
		Status:      next,
		ActorID:     in.DriverID,
		Description: "status updated from courier position",
	}
	if err := s.parcelRepo.UpdateStatus(ctx, p.TrackingNumber, next, event); err != nil {
		return err
	}

	s.broadcast.BroadcastStatus(p.TrackingNumber, next, now)
	s.log.Info().Str("tracking", p.TrackingNumber).Str("from", string(p.Status)).Str("to", string(next)).Msg("status promoted")
	return nil
}

// GetTrackingInfo returns the live snapshot watchers use to (re)synchronise
// after connecting or after a dropped push.
func (s *trackingService) GetTrackingInfo(ctx context.Context, trackingNumber string) (*ports.TrackingInfo, error) {
	parcel, err := s.parcelRepo.FindByTrackingNumber(ctx, trackingNumber, "")
	if err != nil {
		return nil, fmt.Errorf("tracking info: %w", err)
	}

	info := &ports.TrackingInfo{
		TrackingNumber: parcel.TrackingNumber,
		Status:         string(parcel.Status),
		DriverID:       parcel.DriverID,
		Position:       toPositionView(parcel.CurrentPosition),
		LastUpdate:     parcel.CreatedAt,
		History:        toEventViews(parcel.History),
	}

	if pos := parcel.CurrentPosition; pos != nil {
		info.LastUpdate = pos.CapturedAt
		info.DistanceRemainingKm = domain.Distance(
			pos.Latitude, pos.Longitude,
			parcel.Destination.Coordinates.Lat, parcel.Destination.Coordinates.Lng,
		)
		info.EstimatedArrival = domain.EstimatedArrival(*pos, parcel.Destination.Coordinates, time.Now().UTC())
	} else {
		info.EstimatedArrival = parcel.EstimatedDelivery
	}

	return info, nil
}

// GetHistory returns a page of the audit trail, most recent first.
func (s *trackingService) GetHistory(ctx context.Context, trackingNumber string, limit, offset int) (*ports.HistoryPage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	// Existence check so an unknown tracking number is a 404, not an empty page.
	if _, err := s.parcelRepo.FindByTrackingNumber(ctx, trackingNumber, ""); err != nil {
		return nil, fmt.Errorf("tracking history: %w", err)
	}

	events, err := s.eventRepo.History(ctx, trackingNumber, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("tracking history: %w", err)
	}

	return &ports.HistoryPage{
		TrackingNumber: trackingNumber,
		Events:         toEventViews(events),
		Limit:          limit,
		Offset:         offset,
	}, nil
}

// GetStats summarises recorded movement for a parcel.
func (s *trackingService) GetStats(ctx context.Context, trackingNumber string) (*ports.TrackingStats, error) {
	if _, err := s.parcelRepo.FindByTrackingNumber(ctx, trackingNumber, ""); err != nil {
		return nil, fmt.Errorf("tracking stats: %w", err)
	}

	total, first, last, err := s.eventRepo.Stats(ctx, trackingNumber)
	if err != nil {
		return nil, fmt.Errorf("tracking stats: %w", err)
	}

	stats := &ports.TrackingStats{
		TrackingNumber: trackingNumber,
		TotalUpdates:   total,
	}
	if first != nil {
		t := first.Timestamp
		stats.FirstUpdate = &t
	}
	if last != nil {
		t := last.Timestamp
		stats.LastUpdate = &t
		if last.Position != nil {
			stats.AverageSpeed = last.Position.Speed
		}
	}
	if first != nil && last != nil && first.Position != nil && last.Position != nil {
		km := domain.Distance(
			first.Position.Latitude, first.Position.Longitude,
			last.Position.Latitude, last.Position.Longitude,
		)
		stats.TotalDistanceKm = float64(int(km*100)) / 100
	}

	return stats, nil
}

// AssignDriver records the courier responsible for a parcel.
func (s *trackingService) AssignDriver(ctx context.Context, trackingNumber, driverID string) error {
	if _, err := s.parcelRepo.FindByTrackingNumber(ctx, trackingNumber, ""); err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	if err := s.parcelRepo.AssignDriver(ctx, trackingNumber, driverID); err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	s.log.Info().Str("tracking", trackingNumber).Str("driver", driverID).Msg("driver assigned")
	return nil
}

// GetAvailableDrivers returns the available couriers within radiusKm of the
// given point, closest first. Drivers that have never reported a position are
// excluded.
func (s *trackingService) GetAvailableDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]ports.NearbyDriver, error) {
	switch {
	case lat < -90 || lat > 90:
		return nil, fmt.Errorf("%w: latitude %v", domain.ErrOutOfRange, lat)
	case lng < -180 || lng > 180:
		return nil, fmt.Errorf("%w: longitude %v", domain.ErrOutOfRange, lng)
	}
	if radiusKm <= 0 {
		radiusKm = domain.DefaultDriverSearchRadiusKm
	}

	drivers, err := s.driverRepo.FindAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("available drivers: %w", err)
	}

	nearby := make([]ports.NearbyDriver, 0, len(drivers))
	for _, d := range drivers {
		if d.CurrentPosition == nil {
			continue
		}
		dist := domain.Distance(lat, lng, d.CurrentPosition.Latitude, d.CurrentPosition.Longitude)
		if dist > radiusKm {
			continue
		}
		nearby = append(nearby, ports.NearbyDriver{
			ID:         d.ID,
			Name:       d.Name,
			Phone:      d.Phone,
			Rating:     d.Rating,
			DistanceKm: dist,
		})
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })

	return nearby, nil
}
