package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// SafetyFundAddress receives the safety-fund cut of every liquidation.
	SafetyFundAddress string

	// LiquidatorIncentiveBps is the initial liquidator incentive in basis points.
	LiquidatorIncentiveBps uint32
	// SafetyFundBps is the initial safety-fund cut in basis points.
	SafetyFundBps uint32

	// AdminAddress is granted the administrative role at startup.
	AdminAddress string

	// OracleStaleAfter is the maximum accepted age of a price feed reading.
	OracleStaleAfter time.Duration

	// CouncilAddress is the account approved council proposals execute as.
	// Empty disables governance.
	CouncilAddress string
	// CouncilMembers are the voting members of the governance council.
	CouncilMembers []string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// All environment variables are required and must be set.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	SafetyFundAddress, err = getEnv("CLM_SAFETY_FUND_ADDRESS")
	if err != nil {
		return err
	}

	AdminAddress, err = getEnv("CLM_ADMIN_ADDRESS")
	if err != nil {
		return err
	}

	LiquidatorIncentiveBps, err = getEnvAsBps("CLM_LIQUIDATOR_INCENTIVE_BPS")
	if err != nil {
		return err
	}

	SafetyFundBps, err = getEnvAsBps("CLM_SAFETY_FUND_BPS")
	if err != nil {
		return err
	}

	staleSeconds, err := getEnvAsUint64("ORACLE_STALE_AFTER_SECONDS")
	if err != nil {
		return err
	}
	OracleStaleAfter = time.Duration(staleSeconds) * time.Second

	// Governance council is optional, but address and members come together.
	CouncilAddress = os.Getenv("CLM_COUNCIL_ADDRESS")
	CouncilMembers = splitCSV(os.Getenv("CLM_COUNCIL_MEMBERS"))
	if CouncilAddress != "" && len(CouncilMembers) == 0 {
		return errors.New("environment variable CLM_COUNCIL_MEMBERS is required when CLM_COUNCIL_ADDRESS is set")
	}
	if CouncilAddress == "" && len(CouncilMembers) > 0 {
		return errors.New("environment variable CLM_COUNCIL_ADDRESS is required when CLM_COUNCIL_MEMBERS is set")
	}

	// Load endpoint configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("SafetyFundAddress", SafetyFundAddress).
		Uint32("LiquidatorIncentiveBps", LiquidatorIncentiveBps).
		Uint32("SafetyFundBps", SafetyFundBps).
		Dur("OracleStaleAfter", OracleStaleAfter).
		Msg("Configuration loaded successfully.")

	return nil
}

// splitCSV splits a comma-separated list, dropping empty entries.
func splitCSV(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvAsUint64 retrieves an environment variable as a uint64. Returns error if not set or invalid.
func getEnvAsUint64(key string) (uint64, error) {
	valueStr, err := getEnv(key)
	if err != nil {
		return 0, err
	}
	value, err := strconv.ParseUint(valueStr, 10, 64)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid uint64, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBps retrieves an environment variable as basis points (0..10000).
func getEnvAsBps(key string) (uint32, error) {
	value, err := getEnvAsUint64(key)
	if err != nil {
		return 0, err
	}
	if value > 10_000 {
		return 0, errors.New("environment variable " + key + " must be at most 10000 basis points, got: " + strconv.FormatUint(value, 10))
	}
	return uint32(value), nil
}
