package ports

import (
	"context"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

// ParcelRepository defines persistence operations for tracked parcels.
type ParcelRepository interface {
	Create(ctx context.Context, p *domain.TrackedParcel) error
	// FindByTrackingNumber retrieves a parcel by tracking number.
	// When clientID is non-empty, the query is additionally filtered by client_id (for RBAC).
	FindByTrackingNumber(ctx context.Context, trackingNumber string, clientID string) (*domain.TrackedParcel, error)
	FindByIdempotencyKey(ctx context.Context, key string) (*domain.TrackedParcel, error)

	// UpdatePosition atomically sets current_position and appends event to the
	// history in a single write. The update filter re-asserts that the stored
	// position is still older than the new one; matched reports whether any
	// document was updated, so a false return means the update lost a race
	// with a newer position and must be treated as stale.
	UpdatePosition(ctx context.Context, trackingNumber string, pos domain.Position, event domain.TrackingEvent) (matched bool, err error)

	// UpdateStatus atomically sets the status and appends event to the history.
	UpdateStatus(ctx context.Context, trackingNumber string, status domain.ParcelStatus, event domain.TrackingEvent) error

	// AssignDriver records the driver responsible for the parcel.
	AssignDriver(ctx context.Context, trackingNumber string, driverID string) error
}
