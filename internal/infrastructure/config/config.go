package config

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port      string `env:"PORT,      default=8080"`
	Env       string `env:"ENV,       default=development"`
	JWTSecret string `env:"JWT_SECRET"`
	LogLevel  string `env:"LOG_LEVEL, default=info"`

	Mongo  MongoConfig
	Redis  RedisConfig
	Ingest IngestConfig
	WS     WSConfig
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=bantudelice_tracking"`
}

type RedisConfig struct {
	Addr string `env:"REDIS_ADDR, default=localhost:6379"`
	DB   int    `env:"REDIS_DB,   default=0"`
}

type IngestConfig struct {
	// MaxClockSkew bounds how far in the future a reported timestamp may be.
	MaxClockSkew time.Duration `env:"INGEST_MAX_CLOCK_SKEW, default=30s"`
	// Workers is the number of sharded broadcast workers.
	Workers int `env:"DISPATCHER_WORKERS, default=8"`
}

type WSConfig struct {
	// AllowedOrigin restricts browser origins; empty allows any.
	AllowedOrigin string        `env:"WS_ALLOWED_ORIGIN"`
	IdleTimeout   time.Duration `env:"WS_IDLE_TIMEOUT, default=90s"`
	SendBuffer    int           `env:"WS_SEND_BUFFER,  default=32"`
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	var cfg Config
	if err := envconfig.Process(context.Background(), &cfg); err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return &cfg
}
