package handler

import (
	"time"

	"github.com/bantudelice/tracking-service/internal/core/ports"
)

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type coordinatesRequest struct {
	Lat float64 `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type addressRequest struct {
	Address     string             `json:"address"      validate:"required"`
	City        string             `json:"city"         validate:"required"`
	Coordinates coordinatesRequest `json:"coordinates"  validate:"required"`
}

type senderRequest struct {
	Name  string `json:"name"  validate:"required"`
	Phone string `json:"phone" validate:"required"`
}

type createParcelRequest struct {
	Sender      senderRequest  `json:"sender"       validate:"required"`
	Origin      addressRequest `json:"origin"       validate:"required"`
	Destination addressRequest `json:"destination"  validate:"required"`
	Description string         `json:"description"  validate:"required"`
	WeightKg    float64        `json:"weight_kg"    validate:"required,gt=0"`
	ServiceType string         `json:"service_type" validate:"required,oneof=express next_day standard"`
}

type parcelLinks struct {
	Self     string `json:"self"`
	Tracking string `json:"tracking"`
}

type createParcelResponse struct {
	TrackingNumber    string      `json:"tracking_number"`
	Status            string      `json:"status"`
	CreatedAt         time.Time   `json:"created_at"`
	EstimatedDelivery time.Time   `json:"estimated_delivery"`
	Links             parcelLinks `json:"_links"`
}

// Response-only types owned by the transport layer.
// These are intentionally separate from ports/domain types so the JSON
// contract is not coupled to internal service changes.

type senderResponse struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type coordinatesResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type addressResponse struct {
	Address     string              `json:"address"`
	City        string              `json:"city"`
	Coordinates coordinatesResponse `json:"coordinates"`
}

type getParcelResponse struct {
	TrackingNumber    string                    `json:"tracking_number"`
	Status            string                    `json:"status"`
	ServiceType       string                    `json:"service_type"`
	Description       string                    `json:"description"`
	WeightKg          float64                   `json:"weight_kg"`
	DriverID          string                    `json:"driver_id,omitempty"`
	Sender            senderResponse            `json:"sender"`
	Origin            addressResponse           `json:"origin"`
	Destination       addressResponse           `json:"destination"`
	CurrentPosition   *ports.PositionView       `json:"current_position,omitempty"`
	CreatedAt         time.Time                 `json:"created_at"`
	EstimatedDelivery time.Time                 `json:"estimated_delivery"`
	History           []ports.TrackingEventView `json:"history"`
	Links             parcelLinks               `json:"_links"`
}

func toAddressResponse(a ports.AddressInput) addressResponse {
	return addressResponse{
		Address: a.Address,
		City:    a.City,
		Coordinates: coordinatesResponse{
			Lat: a.Coordinates.Lat,
			Lng: a.Coordinates.Lng,
		},
	}
}
