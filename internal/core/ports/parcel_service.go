package ports

import (
	"context"
	"time"
)

// PersonInput holds sender contact details.
type PersonInput struct {
	Name  string
	Phone string
}

// CoordinatesInput holds geographic coordinates.
type CoordinatesInput struct {
	Lat float64
	Lng float64
}

// AddressInput holds a physical location.
type AddressInput struct {
	Address     string
	City        string
	Coordinates CoordinatesInput
}

// CreateParcelInput carries all data needed to register a new parcel.
type CreateParcelInput struct {
	Sender         PersonInput
	Origin         AddressInput
	Destination    AddressInput
	Description    string
	WeightKg       float64
	ServiceType    string
	ClientID       string
	IdempotencyKey string
}

// ParcelResult is returned by the service after registering a parcel.
type ParcelResult struct {
	TrackingNumber    string
	Status            string
	CreatedAt         time.Time
	EstimatedDelivery time.Time
	// AlreadyExisted is true when the Idempotency-Key matched an existing parcel.
	AlreadyExisted bool
}

// GetParcelInput carries the parameters needed to retrieve a single parcel.
type GetParcelInput struct {
	TrackingNumber string
	// Role and ClientID enforce RBAC: the customer role only sees own parcels.
	Role     string
	ClientID string
}

// ParcelDetail is the full parcel view returned by GetParcel.
type ParcelDetail struct {
	TrackingNumber    string
	Status            string
	ServiceType       string
	Description       string
	WeightKg          float64
	DriverID          string
	Sender            PersonInput
	Origin            AddressInput
	Destination       AddressInput
	CurrentPosition   *PositionView
	CreatedAt         time.Time
	EstimatedDelivery time.Time
	History           []TrackingEventView
}

// ParcelService defines use-case operations for parcel registration.
type ParcelService interface {
	CreateParcel(ctx context.Context, input CreateParcelInput) (*ParcelResult, error)
	GetParcel(ctx context.Context, input GetParcelInput) (*ParcelDetail, error)
}
