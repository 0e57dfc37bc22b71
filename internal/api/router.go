package api

import (
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/bantudelice/tracking-service/internal/api/handler"
	"github.com/bantudelice/tracking-service/internal/api/middleware"
	"github.com/bantudelice/tracking-service/internal/core/domain"
	"github.com/bantudelice/tracking-service/internal/core/ports"
	"github.com/bantudelice/tracking-service/internal/realtime"
)

// Dependencies carries everything the router needs. Services and the
// WebSocket gateway are constructed in main so their lifecycles (dispatcher
// workers, session teardown) stay under the process shutdown sequence.
type Dependencies struct {
	AuthService     ports.AuthService
	ParcelService   ports.ParcelService
	TrackingService ports.TrackingService
	Gateway         *realtime.Gateway

	Mongo *mongo.Database
	Redis *redis.Client

	JWTSecret string
	Logger    zerolog.Logger
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps Dependencies) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Logger)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echoprometheus.NewMiddleware("tracking"))

	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Auth routes ---
	authHandler := handler.NewAuthHandler(deps.AuthService)
	e.POST("/auth/register", authHandler.Register)
	e.POST("/auth/login", authHandler.Login)

	// --- Health probes (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	healthDepsHandler := handler.NewHealthDependenciesHandler(deps.Mongo, deps.Redis)

	e.GET("/health", healthHandler.Liveness)            // liveness  – is the process alive?
	e.GET("/health/ready", healthDepsHandler.Readiness) // readiness – are dependencies up?

	// --- Authenticated API ---
	authMiddleware := middleware.Auth(deps.JWTSecret)
	v1 := e.Group("/v1", authMiddleware)

	parcelHandler := handler.NewParcelHandler(deps.ParcelService)
	v1.POST("/parcels", parcelHandler.Create,
		middleware.RBAC(domain.RoleCustomer, domain.RoleAdmin))
	v1.GET("/parcels/:tracking_number", parcelHandler.Get)

	trackingHandler := handler.NewTrackingHandler(deps.TrackingService)
	v1.GET("/tracking/:tracking_number", trackingHandler.Info)
	v1.GET("/tracking/:tracking_number/history", trackingHandler.History)
	v1.GET("/tracking/:tracking_number/stats", trackingHandler.Stats)
	v1.POST("/tracking/:tracking_number/assign", trackingHandler.AssignDriver,
		middleware.RBAC(domain.RoleAdmin))
	v1.GET("/drivers/nearby", trackingHandler.NearbyDrivers,
		middleware.RBAC(domain.RoleAdmin))

	// --- WebSocket gateway ---
	// Auth runs on the upgrade request; per-message authorization (e.g. only
	// drivers may push locations) happens inside the gateway.
	e.GET("/ws/tracking", deps.Gateway.Handle, authMiddleware)

	return e
}
