package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/bantudelice/tracking-service/internal/core/domain"
)

func TestHTTPErrorHandler_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrParcelNotFound, http.StatusNotFound},
		{domain.ErrDuplicateParcel, http.StatusConflict},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrInvalidTransition, http.StatusUnprocessableEntity},
		{domain.ErrStaleUpdate, http.StatusConflict},
		{domain.ErrOutOfRange, http.StatusUnprocessableEntity},
		{domain.ErrInvalidCredentials, http.StatusUnauthorized},
		{domain.ErrUserNotFound, http.StatusNotFound},
		{domain.ErrUserExists, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}

	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handler(tc.err, c)

		if rec.Code != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestHTTPErrorHandler_WrappedErrorsStillMap(t *testing.T) {
	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(fmt.Errorf("ingest location: %w", domain.ErrStaleUpdate), c)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for wrapped stale error, got %d", rec.Code)
	}
}

func TestHTTPErrorHandler_EchoErrorsPassThrough(t *testing.T) {
	e := echo.New()
	handler := NewHTTPErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler(echo.NewHTTPError(http.StatusTeapot, "short and stout"), c)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
