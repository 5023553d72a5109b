// ./internal/state/db.go
package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/rs/zerolog/log"
)

// DB is a global database connection pool.
var DB *sql.DB

// DBConfig holds database connection parameters.
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string // "disable", "require", "verify-full", etc.
}

// DSN renders the config as a lib/pq connection string.
func (cfg DBConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	var err error
	DB, err = sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		DB = nil
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
		DB = nil
	}
}

// schemaDDL creates the tables if they don't exist. Amounts are stored as
// NUMERIC(78, 0) so any 256-bit value fits. The price per share is an
// unconstrained NUMERIC since a LegacyDec carries up to 78 integer digits
// next to its 18 decimals.
const schemaDDL = `
	CREATE TABLE IF NOT EXISTS vault_events (
		event_id UUID PRIMARY KEY,
		op_id UUID NOT NULL,
		kind VARCHAR(32) NOT NULL,
		event_timestamp TIMESTAMPTZ NOT NULL,
		account VARCHAR(255),
		to_account VARCHAR(255),
		request_id BIGINT,
		assets NUMERIC(78, 0) NOT NULL DEFAULT 0,
		shares NUMERIC(78, 0) NOT NULL DEFAULT 0,
		payload JSONB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_vault_events_timestamp ON vault_events(event_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_events_kind ON vault_events(kind);
	CREATE INDEX IF NOT EXISTS idx_vault_events_account ON vault_events(account);
	CREATE INDEX IF NOT EXISTS idx_vault_events_op ON vault_events(op_id);

	CREATE TABLE IF NOT EXISTS vault_snapshots (
		snapshot_id SERIAL PRIMARY KEY,
		cycle_number INTEGER NOT NULL,
		snapshot_timestamp TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		total_assets NUMERIC(78, 0) NOT NULL,
		idle_reserve NUMERIC(78, 0) NOT NULL,
		total_assets_in_strategies NUMERIC(78, 0) NOT NULL,
		total_supply NUMERIC(78, 0) NOT NULL,
		escrowed_shares NUMERIC(78, 0) NOT NULL,
		price_per_share NUMERIC NOT NULL,
		cycle_gain NUMERIC(78, 0) NOT NULL DEFAULT 0,
		cycle_loss NUMERIC(78, 0) NOT NULL DEFAULT 0,
		paused BOOLEAN NOT NULL DEFAULT FALSE,
		strategy_debts JSONB
	);
	-- tables created with the earlier NUMERIC(78, 18) price column
	ALTER TABLE vault_snapshots ALTER COLUMN price_per_share TYPE NUMERIC;
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_timestamp ON vault_snapshots(snapshot_timestamp DESC);
	CREATE INDEX IF NOT EXISTS idx_vault_snapshots_cycle ON vault_snapshots(cycle_number DESC);
`

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if _, err := DB.Exec(schemaDDL); err != nil {
		return fmt.Errorf("failed to execute schema DDL: %w", err)
	}
	if err := ensureCycleCounterTable(); err != nil {
		return err
	}
	log.Info().Msg("Database schema ensured (vault_events, vault_snapshots, keeper_cycle_counter).")
	return nil
}

// TestDBConnection tests if the database connection is healthy
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database connection is nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := DB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
