package vault

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

// Role names a privileged capability on the vault.
type Role string

const (
	RoleDebtManager     Role = "debt_manager"     // allocate / recall debt
	RoleReporter        Role = "reporter"         // reconcile strategies
	RolePauser          Role = "pauser"           // pause / unpause deposits
	RoleStrategyManager Role = "strategy_manager" // register strategies
)

// AllRoles lists every role, in a stable order.
var AllRoles = []Role{RoleDebtManager, RoleReporter, RolePauser, RoleStrategyManager}

// Config holds everything needed to construct a Vault.
type Config struct {
	// Address is the vault's own account on the reserve token. Escrowed
	// shares are also held under this address.
	Address types.Address
	// Asset is the reserve token.
	Asset Token
	// Roles maps each privileged role to the accounts holding it.
	Roles map[Role][]types.Address
	// Parameters are the policy knobs; see config.DefaultVaultParameters.
	Parameters types.VaultParameters
	// Sink receives committed events. Optional.
	Sink EventSink
	// OnPauseChanged is invoked after a pause or unpause commits. Optional.
	OnPauseChanged func(paused bool)
	// Now overrides the clock. Optional.
	Now func() time.Time
}

type strategyRecord struct {
	address     types.Address
	strategy    Strategy
	currentDebt sdkmath.Int
	addedAt     time.Time
}

// Vault is the pooled-asset vault. Every mutating method runs under a single
// lock and either commits fully or leaves all state as it was.
type Vault struct {
	mu     sync.RWMutex
	logger zerolog.Logger

	address types.Address
	asset   Token
	roles   map[Role]map[types.Address]struct{}
	params  types.VaultParameters
	sink    EventSink
	onPause func(bool)
	now     func() time.Time

	paused bool

	// Share ledger
	totalSupply sdkmath.Int
	balances    map[types.Address]sdkmath.Int
	allowances  map[types.Address]map[types.Address]sdkmath.Int

	// Debt ledger
	totalAssetsInStrategies sdkmath.Int
	strategies              map[types.Address]*strategyRecord

	// Withdrawal queue
	requests      map[types.Address]map[uint64]*types.WithdrawalRequest
	lastRequestID map[types.Address]uint64
}

// New creates a vault in genesis state.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("vault configuration validation failed: %w", err)
	}

	v := &Vault{
		logger:                  logger.GetForComponent("vault"),
		address:                 cfg.Address,
		asset:                   cfg.Asset,
		roles:                   make(map[Role]map[types.Address]struct{}),
		params:                  cfg.Parameters,
		sink:                    cfg.Sink,
		onPause:                 cfg.OnPauseChanged,
		now:                     cfg.Now,
		totalSupply:             sdkmath.ZeroInt(),
		balances:                make(map[types.Address]sdkmath.Int),
		allowances:              make(map[types.Address]map[types.Address]sdkmath.Int),
		totalAssetsInStrategies: sdkmath.ZeroInt(),
		strategies:              make(map[types.Address]*strategyRecord),
		requests:                make(map[types.Address]map[uint64]*types.WithdrawalRequest),
		lastRequestID:           make(map[types.Address]uint64),
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.params.ClaimPricing == "" {
		v.params.ClaimPricing = types.ClaimAtClaimTime
	}
	for role, holders := range cfg.Roles {
		set := make(map[types.Address]struct{}, len(holders))
		for _, h := range holders {
			set[h] = struct{}{}
		}
		v.roles[role] = set
	}

	v.logger.Info().
		Str("address", string(v.address)).
		Str("asset", v.asset.Denom()).
		Str("claimPricing", string(v.params.ClaimPricing)).
		Bool("allowZeroDeposits", v.params.AllowZeroDeposits).
		Msg("Vault created")

	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Address.IsZero() {
		return errors.New("vault address cannot be empty")
	}
	if cfg.Asset == nil {
		return errors.New("reserve asset cannot be nil")
	}
	if cfg.Asset.Denom() == "" {
		return errors.New("reserve asset denom cannot be empty")
	}
	if cfg.Parameters.ClaimPricing != "" && !cfg.Parameters.ClaimPricing.Valid() {
		return fmt.Errorf("unknown claim pricing policy %q", cfg.Parameters.ClaimPricing)
	}
	for role, holders := range cfg.Roles {
		for _, h := range holders {
			if h.IsZero() {
				return fmt.Errorf("role %s has an empty holder", role)
			}
		}
	}
	return nil
}

// Address returns the vault's own account.
func (v *Vault) Address() types.Address {
	return v.address
}

// Asset returns the reserve asset denom.
func (v *Vault) Asset() string {
	return v.asset.Denom()
}

// Parameters returns the vault's policy parameters.
func (v *Vault) Parameters() types.VaultParameters {
	return v.params
}

// HasRole reports whether account holds role.
func (v *Vault) HasRole(role Role, account types.Address) bool {
	_, ok := v.roles[role][account]
	return ok
}

func (v *Vault) requireRole(role Role, caller types.Address) error {
	if !v.HasRole(role, caller) {
		return errors.Join(ErrUnauthorized, fmt.Errorf("%s does not hold role %s", caller, role))
	}
	return nil
}

// --- Operation machinery ---

// operation collects the rollback hooks and pending events of one mutating call.
type operation struct {
	id       uuid.UUID
	name     string
	at       time.Time
	restores []func()
	events   []types.Event
}

func (op *operation) emit(kind types.EventKind, fill func(e *types.Event)) {
	e := types.NewEvent(op.id, kind, op.at)
	if fill != nil {
		fill(&e)
	}
	op.events = append(op.events, e)
}

// execute runs fn as one atomic vault operation. The caller must hold v.mu.
// The vault's own reserve-ledger writes are journaled, with the given
// strategies as counterparties, and strategies implementing Journaled are
// snapshotted. All of it is undone if fn fails; fn itself must only mutate
// vault state after its last fallible step.
func (v *Vault) execute(name string, strategies []*strategyRecord, fn func(op *operation) error) error {
	op := &operation{id: uuid.New(), name: name, at: v.now()}

	switch asset := v.asset.(type) {
	case AccountJournaled:
		counterparties := make([]types.Address, 0, len(strategies))
		for _, rec := range strategies {
			counterparties = append(counterparties, rec.address)
		}
		revert, release := asset.Journal(v.address, counterparties...)
		defer release()
		op.restores = append(op.restores, func() {
			if err := revert(); err != nil {
				v.logger.Error().Err(err).Str("op", name).Str("opID", op.id.String()).Msg("Failed to revert reserve ledger writes")
			}
		})
	case Journaled:
		op.restores = append(op.restores, asset.Snapshot())
	}
	for _, rec := range strategies {
		if j, ok := rec.strategy.(Journaled); ok {
			op.restores = append(op.restores, j.Snapshot())
		}
	}

	if err := fn(op); err != nil {
		for i := len(op.restores) - 1; i >= 0; i-- {
			op.restores[i]()
		}
		return v.reject(name, op.id.String(), err)
	}

	v.logger.Debug().
		Str("op", name).
		Str("opID", op.id.String()).
		Int("events", len(op.events)).
		Msg("Vault operation committed")

	if v.sink != nil && len(op.events) > 0 {
		if err := v.sink.Record(op.events...); err != nil {
			v.logger.Error().Err(err).Str("opID", op.id.String()).Msg("Failed to record vault events")
		}
	}
	return nil
}

func (v *Vault) reject(name, opID string, err error) error {
	v.logger.Warn().
		Err(err).
		Str("op", name).
		Str("opID", opID).
		Str("class", Classify(err).String()).
		Msg("Vault operation rejected")
	return err
}

// --- Pause switch ---

// Pause stops deposits and mints.
func (v *Vault) Pause(caller types.Address) error {
	return v.setPaused(caller, true)
}

// Unpause resumes deposits and mints.
func (v *Vault) Unpause(caller types.Address) error {
	return v.setPaused(caller, false)
}

func (v *Vault) setPaused(caller types.Address, paused bool) error {
	v.mu.Lock()
	name, kind := "unpause", types.EventUnpaused
	if paused {
		name, kind = "pause", types.EventPaused
	}
	err := v.execute(name, nil, func(op *operation) error {
		if err := v.requireRole(RolePauser, caller); err != nil {
			return err
		}
		if v.paused == paused {
			return errors.Join(ErrInvalidState, fmt.Errorf("vault paused state is already %t", paused))
		}
		v.paused = paused
		op.emit(kind, func(e *types.Event) { e.Account = caller })
		return nil
	})
	v.mu.Unlock()

	if err == nil {
		v.logger.Info().Bool("paused", paused).Str("caller", string(caller)).Msg("Vault pause state changed")
		if v.onPause != nil {
			v.onPause(paused)
		}
	}
	return err
}

// Paused reports whether deposits and mints are stopped.
func (v *Vault) Paused() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.paused
}

// --- Strategy registry ---

// AddStrategy registers a strategy under address. Its debt starts at zero.
func (v *Vault) AddStrategy(caller, address types.Address, s Strategy) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.execute("add_strategy", nil, func(op *operation) error {
		if err := v.requireRole(RoleStrategyManager, caller); err != nil {
			return err
		}
		if address.IsZero() || address == v.address || s == nil {
			return errors.Join(ErrInvalidReceiver, errors.New("strategy address and implementation are required"))
		}
		if _, exists := v.strategies[address]; exists {
			return errors.Join(ErrStrategyExists, fmt.Errorf("strategy %s", address))
		}
		if s.Asset() != v.asset.Denom() {
			return errors.Join(ErrAssetMismatch, fmt.Errorf("strategy asset %s, vault asset %s", s.Asset(), v.asset.Denom()))
		}
		v.strategies[address] = &strategyRecord{address: address, strategy: s, currentDebt: sdkmath.ZeroInt(), addedAt: op.at}
		op.emit(types.EventStrategyAdded, func(e *types.Event) { e.Account = address })
		return nil
	})
}

func (v *Vault) lookupStrategy(address types.Address) (*strategyRecord, error) {
	rec, ok := v.strategies[address]
	if !ok {
		return nil, errors.Join(ErrStrategyNotFound, fmt.Errorf("strategy %s", address))
	}
	return rec, nil
}

// Strategies returns every registered strategy with its current debt, ordered by address.
func (v *Vault) Strategies() []types.StrategyInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.strategyInfos()
}

func (v *Vault) strategyInfos() []types.StrategyInfo {
	out := make([]types.StrategyInfo, 0, len(v.strategies))
	for addr, rec := range v.strategies {
		out = append(out, types.StrategyInfo{
			Address:     addr,
			Asset:       rec.strategy.Asset(),
			CurrentDebt: rec.currentDebt,
			AddedAt:     rec.addedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// CurrentDebt returns the debt recorded for a strategy; zero for unknown strategies.
func (v *Vault) CurrentDebt(address types.Address) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if rec, ok := v.strategies[address]; ok {
		return rec.currentDebt
	}
	return sdkmath.ZeroInt()
}

// TotalAssetsInStrategies returns the running sum of deployed value.
func (v *Vault) TotalAssetsInStrategies() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalAssetsInStrategies
}

// Snapshot returns a consistent view of the vault totals.
func (v *Vault) Snapshot() types.VaultSnapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()

	idle := v.idleReserve()
	total := idle.Add(v.totalAssetsInStrategies)
	price := sdkmath.LegacyOneDec()
	if v.totalSupply.IsPositive() {
		price = sdkmath.LegacyNewDecFromInt(total).QuoInt(v.totalSupply)
	}
	return types.VaultSnapshot{
		Timestamp:               v.now(),
		TotalAssets:             total,
		IdleReserve:             idle,
		TotalAssetsInStrategies: v.totalAssetsInStrategies,
		TotalSupply:             v.totalSupply,
		EscrowedShares:          v.balanceOf(v.address),
		PricePerShare:           price,
		CycleGain:               sdkmath.ZeroInt(),
		CycleLoss:               sdkmath.ZeroInt(),
		Paused:                  v.paused,
		Strategies:              v.strategyInfos(),
	}
}
