package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

// StrategyConfig describes a reference strategy registered at startup.
type StrategyConfig struct {
	Address types.Address
	// DepositCap is nil when the strategy accepts unlimited deposits.
	DepositCap *sdkmath.Int
}

// AppConfig holds all application configuration loaded from environment variables.
// These are populated at startup by the LoadConfig function.
var (
	// VaultAddress is the account that holds the vault's idle reserve and escrowed shares.
	VaultAddress types.Address
	// ReserveDenom is the denomination of the reserve asset.
	ReserveDenom string
	// ReserveDecimals is the display precision of the reserve asset.
	ReserveDecimals int

	// Role holders, one comma-separated list per role.
	DebtManagers     []types.Address
	Reporters        []types.Address
	Pausers          []types.Address
	StrategyManagers []types.Address

	// Strategies are registered on the vault at startup.
	Strategies []StrategyConfig

	// VaultParameters are the vault's policy knobs.
	VaultParameters types.VaultParameters

	// KeeperInterval is the time between keeper cycles.
	KeeperInterval time.Duration
	// KeeperAddress is the reporter identity the keeper reconciles with.
	KeeperAddress types.Address

	// FaucetEnabled exposes the reserve-token mint and approve routes.
	FaucetEnabled bool

	// LogLevel and LogFormat configure the global logger.
	LogLevel  string
	LogFormat string
)

// LoadConfig loads configuration from environment variables and sets the global config vars.
// VAULT_ADDRESS and RESERVE_DENOM are required; everything else has a default.
func LoadConfig() error {
	log.Info().Msg("Loading application configuration from environment variables...")

	var err error

	address, err := getEnv("VAULT_ADDRESS")
	if err != nil {
		return err
	}
	VaultAddress = types.Address(strings.TrimSpace(address))
	if VaultAddress.IsZero() {
		return errors.New("environment variable VAULT_ADDRESS cannot be empty")
	}

	ReserveDenom, err = getEnv("RESERVE_DENOM")
	if err != nil {
		return err
	}
	if err := sdk.ValidateDenom(ReserveDenom); err != nil {
		return fmt.Errorf("environment variable RESERVE_DENOM is invalid: %w", err)
	}

	ReserveDecimals, err = getEnvAsIntOrDefault("RESERVE_DECIMALS", 6)
	if err != nil {
		return err
	}
	if ReserveDecimals < 0 || ReserveDecimals > 18 {
		return fmt.Errorf("environment variable RESERVE_DECIMALS must be between 0 and 18, got: %d", ReserveDecimals)
	}

	DebtManagers = getEnvAsAddresses("VAULT_DEBT_MANAGERS")
	Reporters = getEnvAsAddresses("VAULT_REPORTERS")
	Pausers = getEnvAsAddresses("VAULT_PAUSERS")
	StrategyManagers = getEnvAsAddresses("VAULT_STRATEGY_MANAGERS")

	Strategies, err = parseStrategies(getEnvOrDefault("STRATEGIES", ""))
	if err != nil {
		return err
	}

	VaultParameters = DefaultVaultParameters
	VaultParameters.AllowZeroDeposits, err = getEnvAsBoolOrDefault("VAULT_ALLOW_ZERO_DEPOSITS", DefaultVaultParameters.AllowZeroDeposits)
	if err != nil {
		return err
	}
	VaultParameters.ClaimPricing = types.ClaimPricing(getEnvOrDefault("VAULT_CLAIM_PRICING", string(DefaultVaultParameters.ClaimPricing)))
	if !VaultParameters.ClaimPricing.Valid() {
		return fmt.Errorf("environment variable VAULT_CLAIM_PRICING must be %q or %q, got: %s",
			types.ClaimAtClaimTime, types.ClaimAtRequestTime, VaultParameters.ClaimPricing)
	}

	KeeperInterval, err = getEnvAsDurationOrDefault("KEEPER_INTERVAL", 5*time.Minute)
	if err != nil {
		return err
	}
	if KeeperInterval <= 0 {
		return errors.New("environment variable KEEPER_INTERVAL must be positive")
	}
	KeeperAddress = types.Address(getEnvOrDefault("KEEPER_ADDRESS", ""))
	if KeeperAddress.IsZero() && len(Reporters) > 0 {
		KeeperAddress = Reporters[0]
	}

	FaucetEnabled, err = getEnvAsBoolOrDefault("FAUCET_ENABLED", false)
	if err != nil {
		return err
	}

	LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	LogFormat = getEnvOrDefault("LOG_FORMAT", "console")

	// Load listener and database configuration
	if err := loadEndpointConfig(); err != nil {
		return err
	}

	log.Debug().
		Str("VaultAddress", string(VaultAddress)).
		Str("ReserveDenom", ReserveDenom).
		Int("Strategies", len(Strategies)).
		Str("ClaimPricing", string(VaultParameters.ClaimPricing)).
		Bool("DBEnabled", DBEnabled).
		Msg("Configuration loaded successfully.")

	return nil
}

// parseStrategies reads "addr[:cap],addr[:cap]" entries.
func parseStrategies(raw string) ([]StrategyConfig, error) {
	var out []StrategyConfig
	seen := make(map[types.Address]bool)
	for _, entry := range splitList(raw) {
		addr, capStr, hasCap := strings.Cut(entry, ":")
		sc := StrategyConfig{Address: types.Address(strings.TrimSpace(addr))}
		if sc.Address.IsZero() {
			return nil, fmt.Errorf("environment variable STRATEGIES has an entry without an address: %q", entry)
		}
		if seen[sc.Address] {
			return nil, fmt.Errorf("environment variable STRATEGIES lists %s twice", sc.Address)
		}
		seen[sc.Address] = true
		if hasCap {
			depositCap, ok := sdkmath.NewIntFromString(strings.TrimSpace(capStr))
			if !ok || depositCap.IsNegative() {
				return nil, fmt.Errorf("environment variable STRATEGIES has an invalid deposit cap for %s: %q", sc.Address, capStr)
			}
			sc.DepositCap = &depositCap
		}
		out = append(out, sc)
	}
	return out, nil
}

// getEnv retrieves a string environment variable. Returns error if not set.
func getEnv(key string) (string, error) {
	if value, exists := os.LookupEnv(key); exists {
		return value, nil
	}
	return "", errors.New("environment variable " + key + " is required but not set")
}

// getEnvOrDefault retrieves a string environment variable, falling back to def when unset or empty.
func getEnvOrDefault(key, def string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return def
}

// getEnvAsIntOrDefault retrieves an environment variable as an int. Returns error if set but invalid.
func getEnvAsIntOrDefault(key string, def int) (int, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid int, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsBoolOrDefault retrieves an environment variable as a bool. Returns error if set but invalid.
func getEnvAsBoolOrDefault(key string, def bool) (bool, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return false, errors.New("environment variable " + key + " must be a valid bool, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsDurationOrDefault retrieves an environment variable as a duration such as "30s".
func getEnvAsDurationOrDefault(key string, def time.Duration) (time.Duration, error) {
	valueStr := getEnvOrDefault(key, "")
	if valueStr == "" {
		return def, nil
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return 0, errors.New("environment variable " + key + " must be a valid duration, got: " + valueStr)
	}
	return value, nil
}

// getEnvAsAddresses retrieves a comma-separated address list. Unset means empty.
func getEnvAsAddresses(key string) []types.Address {
	var out []types.Address
	for _, item := range splitList(getEnvOrDefault(key, "")) {
		out = append(out, types.Address(item))
	}
	return out
}

func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
