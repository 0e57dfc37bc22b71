package ports

import (
	"context"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

// DriverRepository defines persistence operations for the courier fleet.
type DriverRepository interface {
	// UpsertPosition records the driver's latest reported position, creating
	// the driver document if it does not exist yet.
	UpsertPosition(ctx context.Context, driverID string, pos domain.Position) error

	// FindAvailable returns every driver currently marked available.
	// Distance filtering is the caller's concern.
	FindAvailable(ctx context.Context) ([]domain.Driver, error)
}
