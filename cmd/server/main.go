package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bantudelice/tracking-service/internal/api"
	"github.com/bantudelice/tracking-service/internal/core/service"
	"github.com/bantudelice/tracking-service/internal/infrastructure/config"
	mongodb "github.com/bantudelice/tracking-service/internal/infrastructure/db/mongo"
	redisdb "github.com/bantudelice/tracking-service/internal/infrastructure/db/redis"
	"github.com/bantudelice/tracking-service/internal/realtime"
	"github.com/bantudelice/tracking-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: cfg.Env == "development",
	})

	if cfg.JWTSecret == "" {
		log.Fatal().Msg("JWT_SECRET is required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// --- Infrastructure ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("mongodb connection failed")
	}
	defer func() {
		disconnectCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
		defer c()
		_ = mongoClient.Disconnect(disconnectCtx)
	}()

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("redis connection failed")
	}
	defer rdb.Close()

	// --- Repositories ---
	parcelRepo := mongodb.NewParcelRepository(db)
	eventRepo := mongodb.NewEventRepository(db)
	driverRepo := mongodb.NewDriverRepository(db)
	authRepo := mongodb.NewAuthRepository(db)
	dedup := redisdb.NewLocationDedup(rdb)

	for name, ensure := range map[string]func(context.Context) error{
		"parcels":         parcelRepo.EnsureIndexes,
		"location_events": eventRepo.EnsureIndexes,
		"drivers":         driverRepo.EnsureIndexes,
		"auth_users":      authRepo.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			log.Warn().Err(err).Str("collection", name).Msg("index creation failed")
		}
	}

	// --- Real-time fan-out ---
	registry := realtime.NewRegistry()
	hub := realtime.NewHub()
	dispatcher := realtime.NewDispatcher(cfg.Ingest.Workers, registry, hub, log)
	dispatcher.Start(ctx)

	// --- Services ---
	authService := service.NewAuthService(authRepo, cfg.JWTSecret, 24*time.Hour)
	parcelService := service.NewParcelService(parcelRepo, log)
	trackingService := service.NewTrackingService(
		parcelRepo, eventRepo, driverRepo, dedup, dispatcher, cfg.Ingest.MaxClockSkew, log)

	gateway := realtime.NewGateway(registry, hub, trackingService, dispatcher, realtime.GatewayConfig{
		AllowedOrigin: cfg.WS.AllowedOrigin,
		IdleTimeout:   cfg.WS.IdleTimeout,
		SendBuffer:    cfg.WS.SendBuffer,
	}, log)

	e := api.NewRouter(api.Dependencies{
		AuthService:     authService,
		ParcelService:   parcelService,
		TrackingService: trackingService,
		Gateway:         gateway,
		Mongo:           db,
		Redis:           rdb,
		JWTSecret:       cfg.JWTSecret,
		Logger:          log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("tracking service starting")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server stopped unexpectedly")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	// Stop accepting HTTP traffic first, then tear down live sessions and
	// finally the dispatcher workers via ctx cancellation.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	hub.CloseAll()
	cancel()

	log.Info().Msg("shutdown complete")
}
