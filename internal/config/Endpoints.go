package config

import (
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/state"
)

// Listener and database configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// WebPort is the port of the HTTP API.
	WebPort string
	// GRPCPort is the port of the gRPC health service.
	GRPCPort string

	// DBEnabled turns on event persistence, snapshots and the history routes.
	DBEnabled bool
	// DB is the PostgreSQL connection configuration, used when DBEnabled is set.
	DB state.DBConfig
)

// loadEndpointConfig loads listener and database configuration from environment variables.
// This function is called by LoadConfig() in General.go.
func loadEndpointConfig() error {
	log.Info().Msg("Loading endpoint configuration from environment variables...")

	var err error

	WebPort = getEnvOrDefault("WEB_PORT", "8080")
	GRPCPort = getEnvOrDefault("GRPC_PORT", "9090")

	DBEnabled, err = getEnvAsBoolOrDefault("DB_ENABLED", false)
	if err != nil {
		return err
	}

	dbPort, err := getEnvAsIntOrDefault("DB_PORT", 5432)
	if err != nil {
		return err
	}
	DB = state.DBConfig{
		Host:     getEnvOrDefault("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnvOrDefault("DB_USER", "postgres"),
		Password: getEnvOrDefault("DB_PASSWORD", ""),
		DBName:   getEnvOrDefault("DB_NAME", "yieldvault"),
		SSLMode:  getEnvOrDefault("DB_SSLMODE", "disable"),
	}

	log.Debug().
		Str("WebPort", WebPort).
		Str("GRPCPort", GRPCPort).
		Bool("DBEnabled", DBEnabled).
		Str("DBHost", DB.Host).
		Str("DBName", DB.DBName).
		Msg("Endpoint configuration loaded successfully.")

	return nil
}
