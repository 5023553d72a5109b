package vault_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/strategy"
	"github.com/elys-network/yieldvault/internal/token"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

const (
	denom = "uusdc"

	vaultAddr types.Address = "vault"
	admin     types.Address = "admin"
	alice     types.Address = "alice"
	bob       types.Address = "bob"
	rewards   types.Address = "rewards"
	lossSink  types.Address = "loss-sink"
	stratX    types.Address = "strategy-x"
	stratY    types.Address = "strategy-y"
)

type fixture struct {
	t      *testing.T
	ledger *token.Ledger
	vault  *vault.Vault
	sink   *vault.MemorySink
}

func newFixture(t *testing.T, params types.VaultParameters) *fixture {
	t.Helper()
	ledger, err := token.NewLedger(denom)
	require.NoError(t, err)

	sink := vault.NewMemorySink()
	roles := make(map[vault.Role][]types.Address)
	for _, r := range vault.AllRoles {
		roles[r] = []types.Address{admin}
	}
	v, err := vault.New(vault.Config{
		Address:    vaultAddr,
		Asset:      ledger,
		Roles:      roles,
		Parameters: params,
		Sink:       sink,
	})
	require.NoError(t, err)

	require.NoError(t, ledger.Mint(rewards, sdkmath.NewInt(1_000_000)))
	return &fixture{t: t, ledger: ledger, vault: v, sink: sink}
}

func defaultParams() types.VaultParameters {
	return types.VaultParameters{AllowZeroDeposits: true, ClaimPricing: types.ClaimAtClaimTime}
}

func (f *fixture) fund(account types.Address, amount int64) {
	f.t.Helper()
	require.NoError(f.t, f.ledger.Mint(account, sdkmath.NewInt(amount)))
	require.NoError(f.t, f.ledger.Approve(account, vaultAddr, types.UnlimitedAllowance()))
}

func (f *fixture) deposit(account types.Address, amount int64) sdkmath.Int {
	f.t.Helper()
	shares, err := f.vault.Deposit(account, sdkmath.NewInt(amount), account)
	require.NoError(f.t, err)
	return shares
}

func (f *fixture) addPassive(address types.Address, opts strategy.Options) *strategy.Passive {
	f.t.Helper()
	s, err := strategy.NewPassive(address, f.ledger, opts)
	require.NoError(f.t, err)
	require.NoError(f.t, f.vault.AddStrategy(admin, address, s))
	return s
}

func (f *fixture) allocate(address types.Address, target int64) {
	f.t.Helper()
	_, err := f.vault.Allocate(admin, address, sdkmath.NewInt(target))
	require.NoError(f.t, err)
}

func requireInt(t *testing.T, expected int64, actual sdkmath.Int, msgAndArgs ...interface{}) {
	t.Helper()
	require.False(t, actual.IsNil(), "value is nil")
	require.Equal(t, sdkmath.NewInt(expected).String(), actual.String(), msgAndArgs...)
}

// --- Share accounting ---

func TestDeposit_GenesisIsOneToOne(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)

	shares := f.deposit(alice, 1000)

	requireInt(t, 1000, shares)
	requireInt(t, 1000, f.vault.BalanceOf(alice))
	requireInt(t, 1000, f.vault.TotalSupply())
	requireInt(t, 1000, f.vault.TotalAssets())
	requireInt(t, 1000, f.vault.IdleReserve())
	requireInt(t, 0, f.ledger.BalanceOf(alice))

	deposits := f.sink.OfKind(types.EventDeposit)
	require.Len(t, deposits, 1)
	assert.Equal(t, alice, deposits[0].Account)
	requireInt(t, 1000, deposits[0].Assets)
	requireInt(t, 1000, deposits[0].Shares)
}

func TestDeposit_UsesPreDepositRate(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	f.deposit(alice, 1000)
	s := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 500)
	require.NoError(t, s.Accrue(rewards, sdkmath.NewInt(500)))
	_, _, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)

	// 1500 assets back 1000 shares
	shares := f.deposit(bob, 300)

	requireInt(t, 200, shares)
	requireInt(t, 1800, f.vault.TotalAssets())
	requireInt(t, 1200, f.vault.TotalSupply())
}

func TestDeposit_ZeroAmountIsNoOpWhenAllowed(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 10)

	shares, err := f.vault.Deposit(alice, sdkmath.ZeroInt(), alice)

	require.NoError(t, err)
	requireInt(t, 0, shares)
	requireInt(t, 0, f.vault.TotalSupply())
	requireInt(t, 10, f.ledger.BalanceOf(alice))
}

func TestDeposit_ZeroAmountRejectedWhenDisallowed(t *testing.T) {
	f := newFixture(t, types.VaultParameters{AllowZeroDeposits: false})
	f.fund(alice, 10)

	_, err := f.vault.Deposit(alice, sdkmath.ZeroInt(), alice)

	require.ErrorIs(t, err, vault.ErrZeroAssets)
	assert.True(t, vault.IsCallerError(err))
}

func TestDeposit_FailsWhilePaused(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 100)
	require.NoError(t, f.vault.Pause(admin))

	_, err := f.vault.Deposit(alice, sdkmath.NewInt(100), alice)
	require.ErrorIs(t, err, vault.ErrInvalidState)
	_, err = f.vault.Mint(alice, sdkmath.NewInt(100), alice)
	require.ErrorIs(t, err, vault.ErrInvalidState)
	requireInt(t, 0, f.vault.MaxDeposit(alice))

	require.NoError(t, f.vault.Unpause(admin))
	requireInt(t, 100, f.deposit(alice, 100))
}

func TestDeposit_WithoutApprovalLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t, defaultParams())
	require.NoError(t, f.ledger.Mint(alice, sdkmath.NewInt(100)))

	_, err := f.vault.Deposit(alice, sdkmath.NewInt(100), alice)

	require.ErrorIs(t, err, vault.ErrTransferFailed)
	requireInt(t, 0, f.vault.TotalSupply())
	requireInt(t, 100, f.ledger.BalanceOf(alice))
	assert.Empty(t, f.sink.Events())
}

func TestMint_RoundsAssetsUp(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	f.deposit(alice, 300)
	s := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 300)
	require.NoError(t, s.Accrue(rewards, sdkmath.NewInt(100)))
	_, _, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)

	// 400 assets back 300 shares: 10 shares cost 13.33 -> 14
	requireInt(t, 14, f.vault.PreviewMint(sdkmath.NewInt(10)))
	assets, err := f.vault.Mint(bob, sdkmath.NewInt(10), bob)

	require.NoError(t, err)
	requireInt(t, 14, assets)
	requireInt(t, 10, f.vault.BalanceOf(bob))
	requireInt(t, 986, f.ledger.BalanceOf(bob))
}

func TestConversion_RoundTripWithinRounding(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	s := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 700)
	require.NoError(t, s.Accrue(rewards, sdkmath.NewInt(37)))
	_, _, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)

	for a := int64(1); a <= 2500; a += 7 {
		assets := sdkmath.NewInt(a)
		shares := f.vault.ConvertToShares(assets)
		roundTrip := f.vault.ConvertToShares(f.vault.ConvertToAssets(shares))
		diff := shares.Sub(roundTrip).Abs()
		assert.True(t, diff.LTE(sdkmath.OneInt()), "assets=%d shares=%s roundTrip=%s", a, shares, roundTrip)
	}
}

func TestDeposit_RejectedWhenSharesHaveNoBacking(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.fund(bob, 100)
	f.deposit(alice, 1000)
	s := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 1000)
	require.NoError(t, s.Impair(lossSink, sdkmath.NewInt(1000)))
	_, loss, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)
	requireInt(t, 1000, loss)

	_, err = f.vault.Deposit(bob, sdkmath.NewInt(100), bob)
	require.ErrorIs(t, err, vault.ErrInvalidState)
}

// --- Share token surface ---

func TestTransfer_MovesSharesAndConsumesAllowance(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 100)
	f.deposit(alice, 100)

	require.NoError(t, f.vault.Transfer(alice, alice, bob, sdkmath.NewInt(30)))
	requireInt(t, 70, f.vault.BalanceOf(alice))
	requireInt(t, 30, f.vault.BalanceOf(bob))

	err := f.vault.Transfer(bob, alice, bob, sdkmath.NewInt(10))
	require.ErrorIs(t, err, vault.ErrInsufficientAllowance)

	require.NoError(t, f.vault.Approve(alice, bob, sdkmath.NewInt(15)))
	require.NoError(t, f.vault.Transfer(bob, alice, bob, sdkmath.NewInt(10)))
	requireInt(t, 5, f.vault.Allowance(alice, bob))
	requireInt(t, 40, f.vault.BalanceOf(bob))
}

func TestTransfer_CannotTargetVaultEscrow(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 100)
	f.deposit(alice, 100)

	err := f.vault.Transfer(alice, alice, vaultAddr, sdkmath.NewInt(1))
	require.ErrorIs(t, err, vault.ErrInvalidReceiver)
	requireInt(t, 0, f.vault.EscrowedShares())
}

// --- Scenario A ---

func TestScenarioA_GenesisDeposit(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)

	requireInt(t, 1000, f.deposit(alice, 1000))
	requireInt(t, 1000, f.vault.TotalAssets())
}

func TestNew_ValidatesConfig(t *testing.T) {
	ledger, err := token.NewLedger(denom)
	require.NoError(t, err)

	_, err = vault.New(vault.Config{Asset: ledger})
	assert.Error(t, err)
	_, err = vault.New(vault.Config{Address: vaultAddr})
	assert.Error(t, err)
	_, err = vault.New(vault.Config{Address: vaultAddr, Asset: ledger, Parameters: types.VaultParameters{ClaimPricing: "later"}})
	assert.Error(t, err)

	v, err := vault.New(vault.Config{Address: vaultAddr, Asset: ledger})
	require.NoError(t, err)
	assert.Equal(t, types.ClaimAtClaimTime, v.Parameters().ClaimPricing)
}

func TestPause_RequiresPauserRole(t *testing.T) {
	f := newFixture(t, defaultParams())

	err := f.vault.Pause(alice)
	require.ErrorIs(t, err, vault.ErrUnauthorized)
	assert.True(t, vault.IsAccessError(err))
	assert.False(t, f.vault.Paused())

	require.NoError(t, f.vault.Pause(admin))
	assert.ErrorIs(t, f.vault.Pause(admin), vault.ErrInvalidState)
	assert.True(t, f.vault.Paused())
	assert.Len(t, f.sink.OfKind(types.EventPaused), 1)
}

func TestSnapshot_ReportsPricePerShare(t *testing.T) {
	f := newFixture(t, defaultParams())
	snap := f.vault.Snapshot()
	assert.True(t, snap.PricePerShare.Equal(sdkmath.LegacyOneDec()))

	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	s := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 400)
	require.NoError(t, s.Accrue(rewards, sdkmath.NewInt(250)))
	_, _, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)

	snap = f.vault.Snapshot()
	requireInt(t, 1250, snap.TotalAssets)
	requireInt(t, 600, snap.IdleReserve)
	requireInt(t, 650, snap.TotalAssetsInStrategies)
	assert.True(t, snap.PricePerShare.Equal(sdkmath.LegacyMustNewDecFromStr("1.25")), "price %s", snap.PricePerShare)
}
