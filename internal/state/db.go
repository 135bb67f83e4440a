// ./internal/state/db.go
package state

import (
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

// InitDB initializes the database connection pool.
func InitDB(cfg DBConfig) error {
	psqlInfo := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)

	var err error
	DB, err = sql.Open("postgres", psqlInfo)
	if err != nil {
		return fmt.Errorf("failed to open database connection: %w", err)
	}

	DB.SetMaxOpenConns(25)
	DB.SetMaxIdleConns(25)
	DB.SetConnMaxLifetime(5 * time.Minute)

	err = DB.Ping()
	if err != nil {
		DB.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info().Msg("Successfully connected to the PostgreSQL database!")
	return nil
}

// CloseDB closes the database connection pool.
func CloseDB() {
	if DB != nil {
		log.Info().Msg("Closing database connection...")
		if err := DB.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing database connection")
		}
	}
}

// EnsureSchema applies the necessary DDL to create tables if they don't exist.
func EnsureSchema() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	schemaSQL := `
		CREATE TABLE IF NOT EXISTS operation_receipts (
			receipt_id BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			operation VARCHAR(64) NOT NULL,
			account VARCHAR(255) NOT NULL,
			denom VARCHAR(128) NOT NULL DEFAULT '',
			amount NUMERIC(78, 0) NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_account_time ON operation_receipts(account, recorded_at DESC);
		CREATE INDEX IF NOT EXISTS idx_operation_receipts_operation_time ON operation_receipts(operation, recorded_at DESC);

		CREATE TABLE IF NOT EXISTS liquidation_events (
			event_id BIGSERIAL PRIMARY KEY,
			recorded_at TIMESTAMPTZ NOT NULL,
			liquidator VARCHAR(255) NOT NULL,
			borrower VARCHAR(255) NOT NULL,
			repay_denom VARCHAR(128) NOT NULL,
			collateral_denom VARCHAR(128) NOT NULL,
			debt_repaid NUMERIC(78, 0) NOT NULL,
			seized_amount NUMERIC(78, 0) NOT NULL,
			to_liquidator NUMERIC(78, 0) NOT NULL,
			to_safety_fund NUMERIC(78, 0) NOT NULL,
			pool_remainder NUMERIC(78, 0) NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_liquidation_events_borrower_time ON liquidation_events(borrower, recorded_at DESC);
	`

	if _, err := DB.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Database schema ensured successfully.")
	return nil
}

// TestDBConnection pings the database to verify the pool is alive.
func TestDBConnection() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if err := DB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}
