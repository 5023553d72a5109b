package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/config"
	"github.com/elys-network/yieldvault/internal/grpcserver"
	"github.com/elys-network/yieldvault/internal/keeper"
	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/state"
	"github.com/elys-network/yieldvault/internal/strategy"
	"github.com/elys-network/yieldvault/internal/token"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
	"github.com/elys-network/yieldvault/internal/web"
)

const shutdownTimeout = 15 * time.Second

// main is the entry point for the vault daemon.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	// Load configuration from environment variables
	if err := config.LoadConfig(); err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger.Initialize(config.LogLevel, config.LogFormat)
	log.Info().Msg("Vault daemon starting...")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Optional persistence ---
	var (
		sinks     = vault.MultiSink{vault.NewLogSink()}
		store     keeper.Store
		analytics web.Analytics
	)
	if config.DBEnabled {
		if err := state.InitDB(config.DB); err != nil {
			log.Fatal().Err(err).Msg("Failed to initialize database")
		}
		defer state.CloseDB()
		if err := state.EnsureSchema(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ensure database schema")
		}
		pg, err := state.NewPostgresStore()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create postgres store")
		}
		sinks = append(sinks, pg)
		store, analytics = pg, state.Analytics{}
		log.Info().Str("host", config.DB.Host).Str("dbname", config.DB.DBName).Msg("Event persistence enabled")
	} else {
		log.Warn().Msg("DB_ENABLED is not set. Events are only logged and snapshots are kept in memory.")
	}

	// --- 3. Vault Initialization ---
	ledger, err := token.NewLedger(config.ReserveDenom)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create reserve ledger")
	}

	grpcServer := grpcserver.NewServer(grpcserver.Config{Port: config.GRPCPort})

	v, err := vault.New(vault.Config{
		Address: config.VaultAddress,
		Asset:   ledger,
		Roles: map[vault.Role][]types.Address{
			vault.RoleDebtManager:     config.DebtManagers,
			vault.RoleReporter:        config.Reporters,
			vault.RolePauser:          config.Pausers,
			vault.RoleStrategyManager: config.StrategyManagers,
		},
		Parameters:     config.VaultParameters,
		Sink:           sinks,
		OnPauseChanged: grpcServer.SetPaused,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create vault")
	}

	if err := registerStrategies(v, ledger); err != nil {
		log.Fatal().Err(err).Msg("Failed to register strategies")
	}
	log.Info().
		Str("vault", string(v.Address())).
		Str("asset", v.Asset()).
		Int("strategies", len(v.Strategies())).
		Msg("Vault created successfully")

	// --- 4. Start servers ---
	webServer, err := web.NewWebServer(web.Config{
		Port:          config.WebPort,
		Vault:         v,
		Ledger:        ledger,
		Analytics:     analytics,
		FaucetEnabled: config.FaucetEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create web server")
	}
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting vault HTTP API")
		if err := webServer.Start(); err != nil {
			log.Error().Err(err).Msg("Web server failed")
			stop()
		}
	}()
	go func() {
		if err := grpcServer.Start(); err != nil {
			log.Error().Err(err).Msg("gRPC server failed")
			stop()
		}
	}()

	// --- 5. Keeper loop ---
	if config.KeeperAddress.IsZero() {
		log.Warn().Msg("No KEEPER_ADDRESS or VAULT_REPORTERS configured. Keeper loop disabled.")
	} else {
		k, err := keeper.NewKeeper(keeper.Config{
			Vault:    v,
			Store:    store,
			Reporter: config.KeeperAddress,
			Decimals: config.ReserveDecimals,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create keeper")
		}
		go k.RunLoop(ctx, config.KeeperInterval)
	}

	<-ctx.Done()
	log.Info().Msg("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		log.Error().Err(err).Msg("Web server shutdown failed")
	}
	grpcServer.Stop()
	log.Info().Msg("Vault daemon stopped")
}

// registerStrategies creates a Passive strategy per configured entry and
// registers it with the first configured strategy manager.
func registerStrategies(v *vault.Vault, ledger *token.Ledger) error {
	if len(config.Strategies) == 0 {
		return nil
	}
	if len(config.StrategyManagers) == 0 {
		return errors.New("STRATEGIES is set but VAULT_STRATEGY_MANAGERS is empty")
	}
	manager := config.StrategyManagers[0]
	for _, sc := range config.Strategies {
		s, err := strategy.NewPassive(sc.Address, ledger, strategy.Options{DepositCap: sc.DepositCap})
		if err != nil {
			return err
		}
		if err := v.AddStrategy(manager, sc.Address, s); err != nil {
			return err
		}
		log.Info().Str("strategy", string(sc.Address)).Msg("Strategy registered")
	}
	return nil
}
