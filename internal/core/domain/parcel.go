package domain

import (
	"errors"
	"time"
)

// ParcelStatus represents the lifecycle state of a tracked parcel.
type ParcelStatus string

const (
	StatusCreated        ParcelStatus = "created"
	StatusPickedUp       ParcelStatus = "picked_up"
	StatusInTransit      ParcelStatus = "in_transit"
	StatusOutForDelivery ParcelStatus = "out_for_delivery"
	StatusDelivered      ParcelStatus = "delivered"
	StatusCancelled      ParcelStatus = "cancelled"
	StatusFailed         ParcelStatus = "failed"
)

// validTransitions defines the allowed state machine transitions.
// delivered, cancelled and failed are terminal.
var validTransitions = map[ParcelStatus][]ParcelStatus{
	StatusCreated:        {StatusPickedUp, StatusCancelled},
	StatusPickedUp:       {StatusInTransit, StatusCancelled},
	StatusInTransit:      {StatusOutForDelivery, StatusFailed},
	StatusOutForDelivery: {StatusDelivered, StatusFailed},
}

var ErrInvalidTransition = errors.New("invalid status transition")
var ErrParcelNotFound = errors.New("parcel not found")
var ErrDuplicateParcel = errors.New("parcel already exists")
var ErrForbidden = errors.New("access forbidden")
var ErrStaleUpdate = errors.New("stale location update")
var ErrOutOfRange = errors.New("coordinate out of range")

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s ParcelStatus) CanTransitionTo(next ParcelStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the status admits no further transitions.
func (s ParcelStatus) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

// Coordinates represents a geographic point.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Address represents a physical location.
type Address struct {
	Address     string      `json:"address" bson:"address"`
	City        string      `json:"city" bson:"city"`
	Coordinates Coordinates `json:"coordinates" bson:"coordinates"`
}

// Person represents a sender or recipient.
type Person struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

// Position is a courier's reported GPS fix for a parcel.
type Position struct {
	Latitude   float64   `json:"latitude" bson:"latitude"`
	Longitude  float64   `json:"longitude" bson:"longitude"`
	Accuracy   float64   `json:"accuracy" bson:"accuracy"`
	Speed      float64   `json:"speed" bson:"speed"`
	Heading    float64   `json:"heading" bson:"heading"`
	CapturedAt time.Time `json:"captured_at" bson:"captured_at"`
}

// TrackedParcel is the core aggregate root.
type TrackedParcel struct {
	ID                string          `json:"id" bson:"_id,omitempty"`
	TrackingNumber    string          `json:"tracking_number" bson:"tracking_number"`
	ClientID          string          `json:"client_id" bson:"client_id"`
	DriverID          string          `json:"driver_id,omitempty" bson:"driver_id,omitempty"`
	Sender            Person          `json:"sender" bson:"sender"`
	Origin            Address         `json:"origin" bson:"origin"`
	Destination       Address         `json:"destination" bson:"destination"`
	Description       string          `json:"description" bson:"description"`
	WeightKg          float64         `json:"weight_kg" bson:"weight_kg"`
	ServiceType       string          `json:"service_type" bson:"service_type"`
	Status            ParcelStatus    `json:"status" bson:"status"`
	CurrentPosition   *Position       `json:"current_position,omitempty" bson:"current_position,omitempty"`
	CreatedAt         time.Time       `json:"created_at" bson:"created_at"`
	EstimatedDelivery time.Time       `json:"estimated_delivery" bson:"estimated_delivery"`
	IdempotencyKey    string          `json:"idempotency_key,omitempty" bson:"idempotency_key,omitempty"`
	History           []TrackingEvent `json:"history" bson:"history"`
}

// LastPositionAt returns the capture time of the current position, or the
// zero time when no position has been recorded yet.
func (p *TrackedParcel) LastPositionAt() time.Time {
	if p.CurrentPosition == nil {
		return time.Time{}
	}
	return p.CurrentPosition.CapturedAt
}
