package ports

import (
	"context"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

// EventRepository persists the location event audit trail.
type EventRepository interface {
	// InsertEvent appends an event to the location_events audit collection.
	InsertEvent(ctx context.Context, trackingNumber string, event *domain.TrackingEvent) error

	// History returns up to limit events for a tracking number, most recent
	// first, skipping offset entries.
	History(ctx context.Context, trackingNumber string, limit, offset int) ([]domain.TrackingEvent, error)

	// Stats returns the total number of recorded events plus the oldest and
	// newest event for a tracking number. first and last are nil when the
	// parcel has no events yet.
	Stats(ctx context.Context, trackingNumber string) (total int64, first, last *domain.TrackingEvent, err error)
}
