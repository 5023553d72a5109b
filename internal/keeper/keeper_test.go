package keeper

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/strategy"
	"github.com/elys-network/yieldvault/internal/token"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

const reporter types.Address = "keeper"

// MockVault is a mock type for the keeper's Vault interface
type MockVault struct {
	mock.Mock
}

func (m *MockVault) Strategies() []types.StrategyInfo {
	return m.Called().Get(0).([]types.StrategyInfo)
}

func (m *MockVault) Reconcile(caller, strategy types.Address) (sdkmath.Int, sdkmath.Int, error) {
	args := m.Called(caller, strategy)
	return args.Get(0).(sdkmath.Int), args.Get(1).(sdkmath.Int), args.Error(2)
}

func (m *MockVault) Snapshot() types.VaultSnapshot {
	return m.Called().Get(0).(types.VaultSnapshot)
}

type failingStore struct{ MemoryStore }

func (f *failingStore) SaveSnapshot(context.Context, types.VaultSnapshot) (int64, error) {
	return 0, errors.New("disk full")
}

func TestNewKeeper_Validation(t *testing.T) {
	_, err := NewKeeper(Config{Reporter: reporter})
	assert.Error(t, err)
	_, err = NewKeeper(Config{Vault: new(MockVault)})
	assert.Error(t, err)
	_, err = NewKeeper(Config{Vault: new(MockVault), Reporter: reporter, Decimals: 19})
	assert.Error(t, err)
}

func TestRunCycle_ReconcilesFundedStrategies(t *testing.T) {
	ledger, err := token.NewLedger("uusdc")
	require.NoError(t, err)
	v, err := vault.New(vault.Config{
		Address: "vault",
		Asset:   ledger,
		Roles: map[vault.Role][]types.Address{
			vault.RoleDebtManager:     {"admin"},
			vault.RoleStrategyManager: {"admin"},
			vault.RoleReporter:        {reporter},
		},
		Parameters: types.VaultParameters{AllowZeroDeposits: true},
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Mint("alice", sdkmath.NewInt(1000)))
	require.NoError(t, ledger.Mint("rewards", sdkmath.NewInt(1000)))
	require.NoError(t, ledger.Approve("alice", "vault", types.UnlimitedAllowance()))
	_, err = v.Deposit("alice", sdkmath.NewInt(1000), "alice")
	require.NoError(t, err)

	funded, err := strategy.NewPassive("funded", ledger, strategy.Options{})
	require.NoError(t, err)
	idle, err := strategy.NewPassive("idle", ledger, strategy.Options{})
	require.NoError(t, err)
	require.NoError(t, v.AddStrategy("admin", "funded", funded))
	require.NoError(t, v.AddStrategy("admin", "idle", idle))
	_, err = v.Allocate("admin", "funded", sdkmath.NewInt(600))
	require.NoError(t, err)
	require.NoError(t, funded.Accrue("rewards", sdkmath.NewInt(60)))

	store := NewMemoryStore()
	k, err := NewKeeper(Config{Vault: v, Store: store, Reporter: reporter, Decimals: 6})
	require.NoError(t, err)

	report, err := k.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.CycleNumber)
	assert.Equal(t, 1, report.Reconciled)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, "60", report.Gain.String())
	assert.NotEmpty(t, report.CycleID)

	latest, ok := store.Latest()
	require.True(t, ok)
	assert.Equal(t, int64(1), latest.SnapshotID)
	assert.Equal(t, "1060", latest.TotalAssets.String())
	assert.Equal(t, "60", latest.CycleGain.String())
	assert.Len(t, latest.Strategies, 2)

	report, err = k.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.CycleNumber)
	assert.True(t, report.Gain.IsZero())
}

func TestRunCycle_ContinuesPastReconcileFailure(t *testing.T) {
	v := new(MockVault)
	v.On("Strategies").Return([]types.StrategyInfo{
		{Address: "a", CurrentDebt: sdkmath.NewInt(100)},
		{Address: "b", CurrentDebt: sdkmath.ZeroInt()},
		{Address: "c", CurrentDebt: sdkmath.NewInt(50)},
	})
	v.On("Reconcile", reporter, types.Address("a")).Return(sdkmath.ZeroInt(), sdkmath.ZeroInt(), vault.ErrUnauthorized)
	v.On("Reconcile", reporter, types.Address("c")).Return(sdkmath.ZeroInt(), sdkmath.NewInt(5), nil)
	v.On("Snapshot").Return(types.VaultSnapshot{TotalAssets: sdkmath.NewInt(145), PricePerShare: sdkmath.LegacyOneDec()})

	k, err := NewKeeper(Config{Vault: v, Reporter: reporter})
	require.NoError(t, err)

	report, err := k.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Reconciled)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, "5", report.Loss.String())
	assert.Equal(t, "5", report.Snapshot.CycleLoss.String())
	v.AssertNotCalled(t, "Reconcile", reporter, types.Address("b"))
	v.AssertExpectations(t)
}

func TestRunCycle_SnapshotFailureIsReturned(t *testing.T) {
	v := new(MockVault)
	v.On("Strategies").Return([]types.StrategyInfo{})
	v.On("Snapshot").Return(types.VaultSnapshot{PricePerShare: sdkmath.LegacyOneDec()})

	k, err := NewKeeper(Config{Vault: v, Store: &failingStore{}, Reporter: reporter})
	require.NoError(t, err)

	_, err = k.RunCycle(context.Background())
	assert.ErrorContains(t, err, "disk full")
}

func TestRunLoop_StopsOnCancel(t *testing.T) {
	v := new(MockVault)
	v.On("Strategies").Return([]types.StrategyInfo{})
	v.On("Snapshot").Return(types.VaultSnapshot{PricePerShare: sdkmath.LegacyOneDec()})
	store := NewMemoryStore()

	k, err := NewKeeper(Config{Vault: v, Store: store, Reporter: reporter})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.RunLoop(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		_, ok := store.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keeper loop did not stop")
	}
}

func TestRunLoop_ResumesFromStoredCycle(t *testing.T) {
	prev := logger.Logger
	t.Cleanup(func() { logger.Logger = prev })
	var buf bytes.Buffer
	logger.Logger = zerolog.New(&buf)

	v := new(MockVault)
	v.On("Strategies").Return([]types.StrategyInfo{})
	v.On("Snapshot").Return(types.VaultSnapshot{PricePerShare: sdkmath.LegacyOneDec()})
	store := NewMemoryStore()
	store.cycle = 41

	k, err := NewKeeper(Config{Vault: v, Store: store, Reporter: reporter})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		k.RunLoop(ctx, time.Hour)
		close(done)
	}()
	require.Eventually(t, func() bool {
		_, ok := store.Latest()
		return ok
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	latest, _ := store.Latest()
	assert.Equal(t, 42, latest.CycleNumber)
	current, err := store.CurrentCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 42, current)
	assert.Contains(t, buf.String(), `"lastCycle":41`)
	assert.Contains(t, buf.String(), "Resuming keeper loop")
}
