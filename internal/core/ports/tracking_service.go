package ports

import (
	"context"
	"time"
)

// LocationUpdateInput is a position report from a courier, already
// authenticated by the transport layer.
type LocationUpdateInput struct {
	TrackingNumber string
	Latitude       float64
	Longitude      float64
	Accuracy       float64
	Speed          float64
	Heading        float64
	Timestamp      time.Time
	DriverID       string
}

// IngestResult describes what a successful location update did to the parcel.
type IngestResult struct {
	TrackingNumber string
	Status         string
	// StatusChanged is true when the update promoted the parcel's status
	// (e.g. the courier came within delivery range of the destination).
	StatusChanged bool
}

// PositionView is the read-side representation of a recorded position.
type PositionView struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Accuracy   float64   `json:"accuracy"`
	Speed      float64   `json:"speed"`
	Heading    float64   `json:"heading"`
	CapturedAt time.Time `json:"captured_at"`
}

// TrackingEventView is a single history entry in read responses.
type TrackingEventView struct {
	Timestamp   time.Time     `json:"timestamp"`
	Status      string        `json:"status,omitempty"`
	Position    *PositionView `json:"position,omitempty"`
	ActorID     string        `json:"actor_id,omitempty"`
	Description string        `json:"description,omitempty"`
}

// TrackingInfo is the live snapshot a watcher pulls to (re)synchronise.
type TrackingInfo struct {
	TrackingNumber      string              `json:"tracking_number"`
	Status              string              `json:"status"`
	Position            *PositionView       `json:"position,omitempty"`
	DriverID            string              `json:"driver_id,omitempty"`
	DistanceRemainingKm float64             `json:"distance_remaining_km"`
	EstimatedArrival    time.Time           `json:"estimated_arrival"`
	LastUpdate          time.Time           `json:"last_update"`
	History             []TrackingEventView `json:"history"`
}

// HistoryPage is a slice of the audit trail, most recent first.
type HistoryPage struct {
	TrackingNumber string              `json:"tracking_number"`
	Events         []TrackingEventView `json:"events"`
	Limit          int                 `json:"limit"`
	Offset         int                 `json:"offset"`
}

// TrackingStats summarises a parcel's recorded movement.
type TrackingStats struct {
	TrackingNumber  string     `json:"tracking_number"`
	TotalUpdates    int64      `json:"total_updates"`
	TotalDistanceKm float64    `json:"total_distance_km"`
	FirstUpdate     *time.Time `json:"first_update,omitempty"`
	LastUpdate      *time.Time `json:"last_update,omitempty"`
	AverageSpeed    float64    `json:"average_speed"`
}

// NearbyDriver is an available courier within range of a queried point.
type NearbyDriver struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Phone      string  `json:"phone,omitempty"`
	Rating     float64 `json:"rating,omitempty"`
	DistanceKm float64 `json:"distance_km"`
}

// TrackingService is the core use-case surface for live tracking.
type TrackingService interface {
	// IngestLocation validates and applies a courier position report, then
	// broadcasts it to subscribers. Calls for the same tracking number are
	// serialized; different tracking numbers proceed concurrently.
	IngestLocation(ctx context.Context, in LocationUpdateInput) (*IngestResult, error)

	GetTrackingInfo(ctx context.Context, trackingNumber string) (*TrackingInfo, error)
	GetHistory(ctx context.Context, trackingNumber string, limit, offset int) (*HistoryPage, error)
	GetStats(ctx context.Context, trackingNumber string) (*TrackingStats, error)
	AssignDriver(ctx context.Context, trackingNumber, driverID string) error

	// GetAvailableDrivers returns available couriers within radiusKm of the
	// given point, closest first. A non-positive radius falls back to the
	// default search radius.
	GetAvailableDrivers(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyDriver, error)
}
