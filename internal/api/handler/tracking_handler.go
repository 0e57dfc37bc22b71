package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/bantudelice/tracking-service/internal/core/ports"
)

// TrackingHandler exposes the read side of live tracking over HTTP, for
// clients that poll instead of holding a WebSocket open.
type TrackingHandler struct {
	service ports.TrackingService
}

func NewTrackingHandler(service ports.TrackingService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id" validate:"required"`
}

// Info handles GET /v1/tracking/:tracking_number.
//
// @Summary      Get the live tracking snapshot for a parcel
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true  "Tracking number"
// @Success      200              {object}  ports.TrackingInfo
// @Failure      404              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number} [get]
func (h *TrackingHandler) Info(c echo.Context) error {
	info, err := h.service.GetTrackingInfo(c.Request().Context(), c.Param("tracking_number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, info)
}

// History handles GET /v1/tracking/:tracking_number/history.
//
// @Summary      Get the paginated position history for a parcel
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true   "Tracking number"
// @Param        limit            query     int     false  "Max events to return (default 50, cap 200)"
// @Param        offset           query     int     false  "Events to skip"
// @Success      200              {object}  ports.HistoryPage
// @Failure      404              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number}/history [get]
func (h *TrackingHandler) History(c echo.Context) error {
	limit := queryInt(c, "limit", 0)
	offset := queryInt(c, "offset", 0)

	page, err := h.service.GetHistory(c.Request().Context(), c.Param("tracking_number"), limit, offset)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

// Stats handles GET /v1/tracking/:tracking_number/stats.
//
// @Summary      Get movement statistics for a parcel
// @Tags         tracking
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string  true  "Tracking number"
// @Success      200              {object}  ports.TrackingStats
// @Failure      404              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number}/stats [get]
func (h *TrackingHandler) Stats(c echo.Context) error {
	stats, err := h.service.GetStats(c.Request().Context(), c.Param("tracking_number"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

// AssignDriver handles POST /v1/tracking/:tracking_number/assign.
//
// @Summary      Assign a driver to a parcel
// @Tags         tracking
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        tracking_number  path      string               true  "Tracking number"
// @Param        body             body      assignDriverRequest  true  "Driver assignment"
// @Success      200              {object}  map[string]string
// @Failure      404              {object}  errorResponse
// @Failure      422              {object}  errorResponse
// @Router       /v1/tracking/{tracking_number}/assign [post]
func (h *TrackingHandler) AssignDriver(c echo.Context) error {
	var req assignDriverRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	trackingNumber := c.Param("tracking_number")
	if err := h.service.AssignDriver(c.Request().Context(), trackingNumber, req.DriverID); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]string{
		"tracking_number": trackingNumber,
		"driver_id":       req.DriverID,
	})
}

// NearbyDrivers handles GET /v1/drivers/nearby.
//
// @Summary      List available drivers near a point
// @Tags         drivers
// @Produce      json
// @Security     BearerAuth
// @Param        lat     query     number  true   "Latitude of the search centre"
// @Param        lng     query     number  true   "Longitude of the search centre"
// @Param        radius  query     number  false  "Search radius in km (default 10)"
// @Success      200     {array}   ports.NearbyDriver
// @Failure      422     {object}  errorResponse
// @Router       /v1/drivers/nearby [get]
func (h *TrackingHandler) NearbyDrivers(c echo.Context) error {
	lat, err := strconv.ParseFloat(c.QueryParam("lat"), 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "lat query parameter is required")
	}
	lng, err := strconv.ParseFloat(c.QueryParam("lng"), 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, "lng query parameter is required")
	}
	radius, _ := strconv.ParseFloat(c.QueryParam("radius"), 64)

	drivers, err := h.service.GetAvailableDrivers(c.Request().Context(), lat, lng, radius)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, drivers)
}

func queryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
