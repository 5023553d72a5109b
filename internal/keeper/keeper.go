package keeper

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
)

// Vault is the part of the vault the keeper drives.
type Vault interface {
	Strategies() []types.StrategyInfo
	Reconcile(caller, strategy types.Address) (sdkmath.Int, sdkmath.Int, error)
	Snapshot() types.VaultSnapshot
}

// Store persists the cycle counter and the per-cycle snapshots.
type Store interface {
	// CurrentCycle returns the number of the last cycle started, zero if none.
	CurrentCycle(ctx context.Context) (int, error)
	IncrementCycle(ctx context.Context) (int, error)
	SaveSnapshot(ctx context.Context, snapshot types.VaultSnapshot) (int64, error)
}

// Config holds the configuration for creating a new Keeper
type Config struct {
	Vault Vault
	// Store defaults to an in-memory store.
	Store Store
	// Reporter must hold the vault's reporter role.
	Reporter types.Address
	// Decimals of the reserve asset, used for log output only.
	Decimals int
}

// Keeper periodically reconciles every funded strategy and records a snapshot.
type Keeper struct {
	logger   zerolog.Logger
	vault    Vault
	store    Store
	reporter types.Address
	decimals int
}

// CycleReport summarizes one keeper cycle.
type CycleReport struct {
	CycleID     string
	CycleNumber int
	Reconciled  int
	Failed      int
	Gain        sdkmath.Int
	Loss        sdkmath.Int
	Snapshot    types.VaultSnapshot
	SnapshotID  int64
	Duration    time.Duration
}

// NewKeeper creates a keeper from cfg.
func NewKeeper(cfg Config) (*Keeper, error) {
	if err := validateKeeperConfig(cfg); err != nil {
		return nil, fmt.Errorf("keeper configuration validation failed: %w", err)
	}
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}

	k := &Keeper{
		logger:   logger.GetForComponent("keeper"),
		vault:    cfg.Vault,
		store:    store,
		reporter: cfg.Reporter,
		decimals: cfg.Decimals,
	}
	k.logger.Info().Str("reporter", string(k.reporter)).Msg("Keeper created")
	return k, nil
}

func validateKeeperConfig(cfg Config) error {
	if cfg.Vault == nil {
		return errors.New("vault cannot be nil")
	}
	if cfg.Reporter.IsZero() {
		return errors.New("reporter address cannot be empty")
	}
	if cfg.Decimals < 0 || cfg.Decimals > 18 {
		return fmt.Errorf("decimals must be between 0 and 18, got %d", cfg.Decimals)
	}
	return nil
}

// RunLoop runs a cycle immediately and then on every tick until ctx is done.
// Cycle numbering continues from the store's counter.
func (k *Keeper) RunLoop(ctx context.Context, interval time.Duration) {
	last, err := k.store.CurrentCycle(ctx)
	switch {
	case err != nil:
		k.logger.Warn().Err(err).Dur("interval", interval).Msg("Failed to read keeper cycle counter, starting keeper loop anyway")
	case last > 0:
		k.logger.Info().Int("lastCycle", last).Dur("interval", interval).Msg("Resuming keeper loop")
	default:
		k.logger.Info().Dur("interval", interval).Msg("Starting keeper loop")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	k.runAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			k.logger.Info().Msg("Keeper loop stopped due to context cancellation")
			return
		case <-ticker.C:
			k.runAndLog(ctx)
		}
	}
}

func (k *Keeper) runAndLog(ctx context.Context) {
	if _, err := k.RunCycle(ctx); err != nil {
		k.logger.Error().Err(err).Msg("Keeper cycle failed")
	}
}

// RunCycle reconciles every strategy carrying debt and records a snapshot.
// A strategy that fails to reconcile is logged and skipped.
func (k *Keeper) RunCycle(ctx context.Context) (CycleReport, error) {
	start := time.Now()
	report := CycleReport{
		CycleID: uuid.New().String(),
		Gain:    sdkmath.ZeroInt(),
		Loss:    sdkmath.ZeroInt(),
	}
	cycleLogger := k.logger.With().Str("cycle_id", report.CycleID).Logger()

	cycleNumber, err := k.store.IncrementCycle(ctx)
	if err != nil {
		return report, fmt.Errorf("increment cycle counter: %w", err)
	}
	report.CycleNumber = cycleNumber
	cycleLogger.Info().Int("cycleNumber", cycleNumber).Msg("--- Starting keeper cycle ---")

	for _, s := range k.vault.Strategies() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !s.CurrentDebt.IsPositive() {
			continue
		}
		gain, loss, err := k.vault.Reconcile(k.reporter, s.Address)
		if err != nil {
			report.Failed++
			cycleLogger.Error().Err(err).Str("strategy", string(s.Address)).Msg("Strategy reconcile failed")
			continue
		}
		report.Reconciled++
		report.Gain = report.Gain.Add(gain)
		report.Loss = report.Loss.Add(loss)
		cycleLogger.Debug().
			Str("strategy", string(s.Address)).
			Str("gain", gain.String()).
			Str("loss", loss.String()).
			Msg("Strategy reconciled")
	}

	snap := k.vault.Snapshot()
	snap.CycleNumber = cycleNumber
	snap.CycleGain = report.Gain
	snap.CycleLoss = report.Loss
	report.Snapshot = snap

	id, err := k.store.SaveSnapshot(ctx, snap)
	if err != nil {
		return report, fmt.Errorf("save snapshot for cycle %d: %w", cycleNumber, err)
	}
	report.SnapshotID = id
	report.Duration = time.Since(start)

	cycleLogger.Info().
		Int("reconciled", report.Reconciled).
		Int("failed", report.Failed).
		Float64("totalAssets", utils.DisplayAmount(snap.TotalAssets, k.decimals)).
		Float64("idleReserve", utils.DisplayAmount(snap.IdleReserve, k.decimals)).
		Float64("cycleGain", utils.DisplayAmount(report.Gain, k.decimals)).
		Float64("cycleLoss", utils.DisplayAmount(report.Loss, k.decimals)).
		Str("pricePerShare", snap.PricePerShare.String()).
		Dur("duration", report.Duration).
		Msg("--- Keeper cycle completed ---")
	return report, nil
}

// MemoryStore keeps the counter and snapshots in process memory.
type MemoryStore struct {
	mu        sync.Mutex
	cycle     int
	snapshots []types.VaultSnapshot
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) CurrentCycle(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycle, nil
}

func (m *MemoryStore) IncrementCycle(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cycle++
	return m.cycle, nil
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, snapshot types.VaultSnapshot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snapshot.SnapshotID = int64(len(m.snapshots) + 1)
	m.snapshots = append(m.snapshots, snapshot)
	return snapshot.SnapshotID, nil
}

// Latest returns the newest snapshot, if any.
func (m *MemoryStore) Latest() (types.VaultSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snapshots) == 0 {
		return types.VaultSnapshot{}, false
	}
	return m.snapshots[len(m.snapshots)-1], true
}
