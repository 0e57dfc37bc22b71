package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/bantudelice/tracking-service/internal/core/ports"
)

type stubParcelService struct {
	createFn func(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error)
	getFn    func(ctx context.Context, input ports.GetParcelInput) (*ports.ParcelDetail, error)
}

func (s *stubParcelService) CreateParcel(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
	return s.createFn(ctx, input)
}

func (s *stubParcelService) GetParcel(ctx context.Context, input ports.GetParcelInput) (*ports.ParcelDetail, error) {
	return s.getFn(ctx, input)
}

const validParcelBody = `{
	"sender": {"name": "Jean", "phone": "+242061234567"},
	"origin": {"address": "12 Avenue de la Paix", "city": "Brazzaville", "coordinates": {"lat": -4.2634, "lng": 15.2429}},
	"destination": {"address": "3 Rue Loango", "city": "Pointe-Noire", "coordinates": {"lat": -4.7989, "lng": 11.8363}},
	"description": "documents",
	"weight_kg": 1.2,
	"service_type": "standard"
}`

func newParcelContext(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestParcelHandler_Create(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	stub := &stubParcelService{
		createFn: func(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
			if input.ClientID != "client_1" {
				t.Fatalf("client id not forwarded: %q", input.ClientID)
			}
			if input.IdempotencyKey != "key-1" {
				t.Fatalf("idempotency key not forwarded: %q", input.IdempotencyKey)
			}
			if input.Destination.City != "Pointe-Noire" {
				t.Fatalf("destination not mapped: %+v", input.Destination)
			}
			return &ports.ParcelResult{
				TrackingNumber:    "BD-AABBCCDD",
				Status:            "created",
				CreatedAt:         now,
				EstimatedDelivery: now.AddDate(0, 0, 3),
			}, nil
		},
	}
	h := NewParcelHandler(stub)

	c, rec := newParcelContext(http.MethodPost, "/v1/parcels", validParcelBody)
	c.Request().Header.Set("Idempotency-Key", "key-1")
	c.Set("client_id", "client_1")

	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["tracking_number"] != "BD-AABBCCDD" {
		t.Fatalf("unexpected body: %v", resp)
	}
	links, ok := resp["_links"].(map[string]any)
	if !ok || links["tracking"] != "/v1/tracking/BD-AABBCCDD" {
		t.Fatalf("unexpected links: %v", resp["_links"])
	}
}

func TestParcelHandler_Create_IdempotentReplayIs200(t *testing.T) {
	stub := &stubParcelService{
		createFn: func(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
			return &ports.ParcelResult{TrackingNumber: "BD-AABBCCDD", Status: "in_transit", AlreadyExisted: true}, nil
		},
	}
	h := NewParcelHandler(stub)

	c, rec := newParcelContext(http.MethodPost, "/v1/parcels", validParcelBody)
	if err := h.Create(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("replay should be 200, got %d", rec.Code)
	}
}

func TestParcelHandler_Create_MissingFields(t *testing.T) {
	stub := &stubParcelService{
		createFn: func(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
			t.Fatalf("service must not be called on invalid input")
			return nil, nil
		},
	}
	h := NewParcelHandler(stub)

	c, _ := newParcelContext(http.MethodPost, "/v1/parcels", `{"description": "no sender"}`)
	err := h.Create(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestParcelHandler_Create_BadServiceType(t *testing.T) {
	stub := &stubParcelService{
		createFn: func(ctx context.Context, input ports.CreateParcelInput) (*ports.ParcelResult, error) {
			t.Fatalf("service must not be called on invalid input")
			return nil, nil
		},
	}
	h := NewParcelHandler(stub)

	body := strings.Replace(validParcelBody, `"standard"`, `"teleport"`, 1)
	c, _ := newParcelContext(http.MethodPost, "/v1/parcels", body)
	err := h.Create(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %v", err)
	}
}

func TestParcelHandler_Get(t *testing.T) {
	stub := &stubParcelService{
		getFn: func(ctx context.Context, input ports.GetParcelInput) (*ports.ParcelDetail, error) {
			if input.TrackingNumber != "BD-AABBCCDD" || input.Role != "customer" || input.ClientID != "client_1" {
				t.Fatalf("unexpected input: %+v", input)
			}
			return &ports.ParcelDetail{
				TrackingNumber: input.TrackingNumber,
				Status:         "in_transit",
				DriverID:       "driver_1",
			}, nil
		},
	}
	h := NewParcelHandler(stub)

	c, rec := newParcelContext(http.MethodGet, "/v1/parcels/BD-AABBCCDD", "")
	c.SetParamNames("tracking_number")
	c.SetParamValues("BD-AABBCCDD")
	c.Set("role", "customer")
	c.Set("client_id", "client_1")

	if err := h.Get(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["status"] != "in_transit" || resp["driver_id"] != "driver_1" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestParcelHandler_Get_MissingClaims(t *testing.T) {
	stub := &stubParcelService{
		getFn: func(ctx context.Context, input ports.GetParcelInput) (*ports.ParcelDetail, error) {
			t.Fatalf("service must not be called without claims")
			return nil, nil
		},
	}
	h := NewParcelHandler(stub)

	c, _ := newParcelContext(http.MethodGet, "/v1/parcels/BD-AABBCCDD", "")
	c.SetParamNames("tracking_number")
	c.SetParamValues("BD-AABBCCDD")

	err := h.Get(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}
