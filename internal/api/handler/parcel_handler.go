package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bantudelice/tracking-service/internal/api/metrics"
	"github.com/bantudelice/tracking-service/internal/core/ports"
)

// ParcelHandler handles HTTP requests for parcel registration and retrieval.
type ParcelHandler struct {
	service ports.ParcelService
}

func NewParcelHandler(service ports.ParcelService) *ParcelHandler {
	return &ParcelHandler{service: service}
}

// Create handles POST /v1/parcels.
//
// @Summary      Register a new parcel
// @Tags         parcels
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        Idempotency-Key  header    string               false  "Idempotency key to prevent duplicate submissions"
// @Param        body             body      createParcelRequest  true   "Parcel details"
// @Success      201              {object}  createParcelResponse
// @Failure      400              {object}  errorResponse
// @Failure      401              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Router       /v1/parcels [post]
func (h *ParcelHandler) Create(c echo.Context) error {
	var req createParcelRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	clientID, _ := c.Get("client_id").(string)
	idempotencyKey := c.Request().Header.Get("Idempotency-Key")

	result, err := h.service.CreateParcel(c.Request().Context(), ports.CreateParcelInput{
		Sender: ports.PersonInput{
			Name:  req.Sender.Name,
			Phone: req.Sender.Phone,
		},
		Origin:         toAddressInputReq(req.Origin),
		Destination:    toAddressInputReq(req.Destination),
		Description:    req.Description,
		WeightKg:       req.WeightKg,
		ServiceType:    req.ServiceType,
		ClientID:       clientID,
		IdempotencyKey: idempotencyKey,
	})
	if err != nil {
		return err
	}

	status := http.StatusCreated
	if result.AlreadyExisted {
		// Idempotent replay: same key, same parcel, no new resource.
		status = http.StatusOK
	} else {
		metrics.ParcelsCreatedTotal.WithLabelValues(req.ServiceType).Inc()
	}

	return c.JSON(status, createParcelResponse{
		TrackingNumber:    result.TrackingNumber,
		Status:            result.Status,
		CreatedAt:         result.CreatedAt,
		EstimatedDelivery: result.EstimatedDelivery,
		Links:             linksFor(result.TrackingNumber),
	})
}

// Get handles GET /v1/parcels/:tracking_number.
//
// @Summary      Get a parcel by tracking number
// @Tags         parcels
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true  "Tracking number (e.g. BD-7A8B9C2D)"
// @Success      200              {object}  getParcelResponse
// @Failure      403              {object}  errorResponse
// @Failure      404              {object}  errorResponse
// @Router       /v1/parcels/{tracking_number} [get]
func (h *ParcelHandler) Get(c echo.Context) error {
	role, clientID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	detail, err := h.service.GetParcel(c.Request().Context(), ports.GetParcelInput{
		TrackingNumber: c.Param("tracking_number"),
		Role:           role,
		ClientID:       clientID,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, getParcelResponse{
		TrackingNumber: detail.TrackingNumber,
		Status:         detail.Status,
		ServiceType:    detail.ServiceType,
		Description:    detail.Description,
		WeightKg:       detail.WeightKg,
		DriverID:       detail.DriverID,
		Sender: senderResponse{
			Name:  detail.Sender.Name,
			Phone: detail.Sender.Phone,
		},
		Origin:            toAddressResponse(detail.Origin),
		Destination:       toAddressResponse(detail.Destination),
		CurrentPosition:   detail.CurrentPosition,
		CreatedAt:         detail.CreatedAt,
		EstimatedDelivery: detail.EstimatedDelivery,
		History:           detail.History,
		Links:             linksFor(detail.TrackingNumber),
	})
}

func toAddressInputReq(a addressRequest) ports.AddressInput {
	return ports.AddressInput{
		Address: a.Address,
		City:    a.City,
		Coordinates: ports.CoordinatesInput{
			Lat: a.Coordinates.Lat,
			Lng: a.Coordinates.Lng,
		},
	}
}

func linksFor(trackingNumber string) parcelLinks {
	return parcelLinks{
		Self:     "/v1/parcels/" + trackingNumber,
		Tracking: "/v1/tracking/" + trackingNumber,
	}
}
