package service

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

type ParcelService struct {
	repo   ports.ParcelRepository
	logger zerolog.Logger
}

func NewParcelService(repo ports.ParcelRepository, logger zerolog.Logger) *ParcelService {
	return &ParcelService{repo: repo, logger: logger}
}

// CreateParcel registers a new parcel. If an idempotency key is provided and
// already seen, the previously created parcel is returned without side effects.
func (s *ParcelService) CreateParcel(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
	if input.IdempotencyKey != "" {
		existing, err := s.repo.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil && existing != nil {
			s.logger.Info().Str("idempotency_key", input.IdempotencyKey).Str("tracking_number", existing.TrackingNumber).Msg("idempotent replay")
			return &ports.ParcelResult{
				TrackingNumber:    existing.TrackingNumber,
				Status:            string(existing.Status),
				CreatedAt:         existing.CreatedAt,
				EstimatedDelivery: existing.EstimatedDelivery,
				AlreadyExisted:    true,
			}, nil
		}
	}

	now := time.Now().UTC()
	parcel := &domain.TrackedParcel{
		TrackingNumber:    generateTrackingNumber(),
		ClientID:          input.ClientID,
		Status:            domain.StatusCreated,
		ServiceType:       input.ServiceType,
		Description:       input.Description,
		WeightKg:          input.WeightKg,
		CreatedAt:         now,
		EstimatedDelivery: estimatedDelivery(input.ServiceType, now),
		IdempotencyKey:    input.IdempotencyKey,
		Sender: domain.Person{
			Name:  input.Sender.Name,
			Phone: input.Sender.Phone,
		},
		Origin: domain.Address{
			Address: input.Origin.Address,
			City:    input.Origin.City,
			Coordinates: domain.Coordinates{
				Lat: input.Origin.Coordinates.Lat,
				Lng: input.Origin.Coordinates.Lng,
			},
		},
		Destination: domain.Address{
			Address: input.Destination.Address,
			City:    input.Destination.City,
			Coordinates: domain.Coordinates{
				Lat: input.Destination.Coordinates.Lat,
				Lng: input.Destination.Coordinates.Lng,
			},
		},
		History: []domain.TrackingEvent{
			{Status: domain.StatusCreated, Timestamp: now, Description: "parcel registered"},
		},
	}

	if err := s.repo.Create(ctx, parcel); err != nil {
		s.logger.Error().Err(err).Msg("failed to create parcel")
		return nil, err
	}

	s.logger.Info().Str("tracking_number", parcel.TrackingNumber).Str("client_id", input.ClientID).Msg("parcel registered")

	return &ports.ParcelResult{
		TrackingNumber:    parcel.TrackingNumber,
		Status:            string(parcel.Status),
		CreatedAt:         parcel.CreatedAt,
		EstimatedDelivery: parcel.EstimatedDelivery,
	}, nil
}

// GetParcel returns the full parcel view. Customers only see parcels
// belonging to their own client id.
func (s *ParcelService) GetParcel(ctx context.Context, input ports.GetParcelInput) (*ports.ParcelDetail, error) {
	clientFilter := ""
	if input.Role == domain.RoleCustomer {
		clientFilter = input.ClientID
	}

	p, err := s.repo.FindByTrackingNumber(ctx, input.TrackingNumber, clientFilter)
	if err != nil {
		return nil, err
	}

	detail := &ports.ParcelDetail{
		TrackingNumber:    p.TrackingNumber,
		Status:            string(p.Status),
		ServiceType:       p.ServiceType,
		Description:       p.Description,
		WeightKg:          p.WeightKg,
		DriverID:          p.DriverID,
		Sender:            ports.PersonInput{Name: p.Sender.Name, Phone: p.Sender.Phone},
		Origin:            toAddressInput(p.Origin),
		Destination:       toAddressInput(p.Destination),
		CurrentPosition:   toPositionView(p.CurrentPosition),
		CreatedAt:         p.CreatedAt,
		EstimatedDelivery: p.EstimatedDelivery,
		History:           toEventViews(p.History),
	}
	return detail, nil
}

func toAddressInput(a domain.Address) ports.AddressInput {
	return ports.AddressInput{
		Address:     a.Address,
		City:        a.City,
		Coordinates: ports.CoordinatesInput{Lat: a.Coordinates.Lat, Lng: a.Coordinates.Lng},
	}
}

func toPositionView(p *domain.Position) *ports.PositionView {
	if p == nil {
		return nil
	}
	return &ports.PositionView{
		Latitude:   p.Latitude,
		Longitude:  p.Longitude,
		Accuracy:   p.Accuracy,
		Speed:      p.Speed,
		Heading:    p.Heading,
		CapturedAt: p.CapturedAt,
	}
}

func toEventViews(events []domain.TrackingEvent) []ports.TrackingEventView {
	views := make([]ports.TrackingEventView, 0, len(events))
	for _, e := range events {
		views = append(views, ports.TrackingEventView{
			Timestamp:   e.Timestamp,
			Status:      string(e.Status),
			Position:    toPositionView(e.Position),
			ActorID:     e.ActorID,
			Description: e.Description,
		})
	}
	return views
}

// generateTrackingNumber returns a unique tracking number in the format BD-XXXXXXXX.
func generateTrackingNumber() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		// fallback: use current nanoseconds
		return fmt.Sprintf("BD-%08X", time.Now().UnixNano()&0xFFFFFFFF)
	}
	return fmt.Sprintf("BD-%08X", b)
}

// estimatedDelivery calculates the estimated delivery time based on service type.
func estimatedDelivery(serviceType string, from time.Time) time.Time {
	base := time.Date(from.Year(), from.Month(), from.Day(), 18, 0, 0, 0, time.UTC)
	switch serviceType {
	case "express":
		return base
	case "next_day":
		return base.AddDate(0, 0, 1)
	default: // "standard" or unknown → 3 days
		return base.AddDate(0, 0, 3)
	}
}
