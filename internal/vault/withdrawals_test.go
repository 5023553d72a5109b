package vault_test

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/strategy"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

// --- Scenario C ---

func TestScenarioC_QueuedRedemptionClaimedAfterRecall(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 900)
	requireInt(t, 100, f.vault.IdleReserve())

	result, err := f.vault.RequestRedeem(alice, sdkmath.NewInt(250), alice)
	require.NoError(t, err)
	assert.Equal(t, types.RedeemQueued, result.Kind)
	assert.False(t, result.Immediate())
	assert.Equal(t, uint64(1), result.RequestID)
	requireInt(t, 750, f.vault.BalanceOf(alice))
	requireInt(t, 250, f.vault.EscrowedShares())
	requireInt(t, 1000, f.vault.TotalSupply())
	requireInt(t, 250, f.vault.PendingShares(alice, 1))
	requireInt(t, 0, f.vault.ClaimableAssets(alice, 1))

	_, err = f.vault.ClaimWithdrawal(alice, 1)
	require.ErrorIs(t, err, vault.ErrInsufficientLiquidity)
	requireInt(t, 250, f.vault.PendingShares(alice, 1))

	f.allocate(stratX, 700)
	requireInt(t, 300, f.vault.IdleReserve())
	requireInt(t, 250, f.vault.ClaimableAssets(alice, 1))

	assets, err := f.vault.ClaimWithdrawal(alice, 1)
	require.NoError(t, err)
	requireInt(t, 250, assets)
	requireInt(t, 250, f.ledger.BalanceOf(alice))
	requireInt(t, 750, f.vault.TotalSupply())
	requireInt(t, 0, f.vault.EscrowedShares())
	requireInt(t, 0, f.vault.PendingShares(alice, 1))

	req, ok := f.vault.WithdrawalRequest(alice, 1)
	require.True(t, ok)
	assert.Equal(t, types.RequestClaimed, req.Status)
	requireInt(t, 250, req.ClaimedAssets)
	require.NotNil(t, req.ClaimedAt)

	assert.Len(t, f.sink.OfKind(types.EventWithdrawalRequested), 1)
	assert.Len(t, f.sink.OfKind(types.EventWithdrawalClaimed), 1)
	assert.Len(t, f.sink.OfKind(types.EventWithdrawn), 1)
}

// --- Scenario D ---

func TestScenarioD_ImmediateRedemption(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 500)
	f.deposit(alice, 500)

	result, err := f.vault.RequestRedeem(alice, sdkmath.NewInt(50), alice)

	require.NoError(t, err)
	assert.True(t, result.Immediate())
	requireInt(t, 50, result.Assets)
	requireInt(t, 50, f.ledger.BalanceOf(alice))
	requireInt(t, 450, f.vault.TotalSupply())
	requireInt(t, 450, f.vault.IdleReserve())
	assert.Empty(t, f.vault.WithdrawalRequests(alice))
}

func TestRequestRedeem_PayoutNeverExceedsProRata(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	f.deposit(alice, 1000)
	x := f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 300)
	require.NoError(t, x.Accrue(rewards, sdkmath.NewInt(11)))
	_, _, err := f.vault.Reconcile(admin, stratX)
	require.NoError(t, err)
	f.deposit(bob, 333)

	for _, s := range []int64{1, 3, 7, 50, 97} {
		shares := sdkmath.NewInt(s)
		total, supply := f.vault.TotalAssets(), f.vault.TotalSupply()
		result, err := f.vault.RequestRedeem(bob, shares, bob)
		require.NoError(t, err)
		require.True(t, result.Immediate())
		assert.True(t, result.Assets.Mul(supply).LTE(shares.Mul(total)), "shares=%d paid=%s", s, result.Assets)
	}
}

func TestRequestRedeem_Validation(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 100)
	f.deposit(alice, 100)

	_, err := f.vault.RequestRedeem(alice, sdkmath.ZeroInt(), alice)
	require.ErrorIs(t, err, vault.ErrZeroShares)

	_, err = f.vault.RequestRedeem(alice, sdkmath.NewInt(10), "")
	require.ErrorIs(t, err, vault.ErrInvalidOwner)

	_, err = f.vault.RequestRedeem(alice, sdkmath.NewInt(10), vaultAddr)
	require.ErrorIs(t, err, vault.ErrInvalidOwner)

	_, err = f.vault.RequestRedeem(alice, sdkmath.NewInt(101), alice)
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)

	requireInt(t, 100, f.vault.BalanceOf(alice))
	assert.Empty(t, f.sink.OfKind(types.EventWithdrawn))
}

func TestRequestRedeem_DelegatedAllowance(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 500)
	f.deposit(alice, 500)
	require.NoError(t, f.vault.Approve(alice, bob, sdkmath.NewInt(100)))

	result, err := f.vault.RequestRedeem(bob, sdkmath.NewInt(60), alice)
	require.NoError(t, err)
	require.True(t, result.Immediate())
	requireInt(t, 60, f.ledger.BalanceOf(alice), "assets go to the owner")
	requireInt(t, 0, f.ledger.BalanceOf(bob))
	requireInt(t, 40, f.vault.Allowance(alice, bob))

	_, err = f.vault.RequestRedeem(bob, sdkmath.NewInt(50), alice)
	require.ErrorIs(t, err, vault.ErrInsufficientAllowance)
	requireInt(t, 40, f.vault.Allowance(alice, bob))
	requireInt(t, 440, f.vault.BalanceOf(alice))
}

func TestRequestRedeem_AllowanceCheckedBeforeOwnerBalance(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 100)
	f.deposit(alice, 100)
	require.NoError(t, f.vault.Approve(alice, bob, sdkmath.NewInt(5)))

	// both checks fail, only the allowance failure is reported to the delegate
	_, err := f.vault.RequestRedeem(bob, sdkmath.NewInt(1000), alice)
	require.ErrorIs(t, err, vault.ErrInsufficientAllowance)
	assert.NotErrorIs(t, err, vault.ErrInsufficientBalance)

	_, err = f.vault.RequestRedeem("carol", sdkmath.NewInt(1), alice)
	require.ErrorIs(t, err, vault.ErrInsufficientAllowance)

	// with enough allowance the balance check still applies
	require.NoError(t, f.vault.Approve(alice, bob, sdkmath.NewInt(1000)))
	_, err = f.vault.RequestRedeem(bob, sdkmath.NewInt(1000), alice)
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)
	requireInt(t, 1000, f.vault.Allowance(alice, bob))
}

func TestRequestRedeem_UnlimitedAllowanceNotConsumed(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 500)
	f.deposit(alice, 500)
	require.NoError(t, f.vault.Approve(alice, bob, types.UnlimitedAllowance()))

	_, err := f.vault.RequestRedeem(bob, sdkmath.NewInt(10), alice)
	require.NoError(t, err)
	assert.True(t, types.IsUnlimited(f.vault.Allowance(alice, bob)))

	require.NoError(t, f.vault.Transfer(bob, alice, bob, sdkmath.NewInt(10)))
	assert.True(t, types.IsUnlimited(f.vault.Allowance(alice, bob)))
}

func TestRequestRedeem_QueuedDelegatedConsumesAllowance(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 1000)
	require.NoError(t, f.vault.Approve(alice, bob, sdkmath.NewInt(300)))

	result, err := f.vault.RequestRedeem(bob, sdkmath.NewInt(200), alice)
	require.NoError(t, err)
	assert.Equal(t, types.RedeemQueued, result.Kind)
	requireInt(t, 100, f.vault.Allowance(alice, bob))

	// requests belong to the owner, not the delegate
	_, err = f.vault.ClaimWithdrawal(bob, result.RequestID)
	require.ErrorIs(t, err, vault.ErrRequestNotFound)
	requireInt(t, 200, f.vault.PendingShares(alice, result.RequestID))
}

func TestClaimWithdrawal_NoDoubleClaim(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 1000)

	result, err := f.vault.RequestRedeem(alice, sdkmath.NewInt(100), alice)
	require.NoError(t, err)
	f.allocate(stratX, 500)

	_, err = f.vault.ClaimWithdrawal(alice, result.RequestID)
	require.NoError(t, err)
	_, err = f.vault.ClaimWithdrawal(alice, result.RequestID)
	require.ErrorIs(t, err, vault.ErrRequestNotFound)
	_, err = f.vault.ClaimWithdrawal(alice, 0)
	require.ErrorIs(t, err, vault.ErrRequestNotFound)
	_, err = f.vault.ClaimWithdrawal(alice, 99)
	require.ErrorIs(t, err, vault.ErrRequestNotFound)

	requireInt(t, 100, f.ledger.BalanceOf(alice))
	requireInt(t, 900, f.vault.TotalSupply())
}

func TestRequestRedeem_IDsAreSequentialPerOwner(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.fund(bob, 1000)
	f.deposit(alice, 1000)
	f.deposit(bob, 1000)
	f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 2000)

	ids := make(map[types.Address][]uint64)
	for _, owner := range []types.Address{alice, bob, alice, alice, bob} {
		result, err := f.vault.RequestRedeem(owner, sdkmath.NewInt(10), owner)
		require.NoError(t, err)
		ids[owner] = append(ids[owner], result.RequestID)
	}

	assert.Equal(t, []uint64{1, 2, 3}, ids[alice])
	assert.Equal(t, []uint64{1, 2}, ids[bob])
	requireInt(t, 50, f.vault.EscrowedShares())
	assert.Len(t, f.vault.WithdrawalRequests(alice), 3)
}

func TestEscrowedShares_AreNotTransferable(t *testing.T) {
	f := newFixture(t, defaultParams())
	f.fund(alice, 1000)
	f.deposit(alice, 1000)
	f.addPassive(stratX, strategy.Options{})
	f.allocate(stratX, 1000)

	_, err := f.vault.RequestRedeem(alice, sdkmath.NewInt(250), alice)
	require.NoError(t, err)

	err = f.vault.Transfer(alice, alice, bob, sdkmath.NewInt(800))
	require.ErrorIs(t, err, vault.ErrInsufficientBalance)
	err = f.vault.Transfer(vaultAddr, vaultAddr, bob, sdkmath.NewInt(1))
	require.ErrorIs(t, err, vault.ErrInvalidOwner)
	requireInt(t, 750, f.vault.MaxRedeem(alice))
}

func TestClaimWithdrawal_Pricing(t *testing.T) {
	tests := []struct {
		name    string
		pricing types.ClaimPricing
		want    int64
	}{
		{"claim time shares in later yield", types.ClaimAtClaimTime, 275},
		{"request time locks the quote", types.ClaimAtRequestTime, 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, types.VaultParameters{AllowZeroDeposits: true, ClaimPricing: tt.pricing})
			f.fund(alice, 1000)
			f.deposit(alice, 1000)
			x := f.addPassive(stratX, strategy.Options{})
			f.allocate(stratX, 900)

			result, err := f.vault.RequestRedeem(alice, sdkmath.NewInt(250), alice)
			require.NoError(t, err)
			require.Equal(t, types.RedeemQueued, result.Kind)

			require.NoError(t, x.Accrue(rewards, sdkmath.NewInt(100)))
			_, _, err = f.vault.Reconcile(admin, stratX)
			require.NoError(t, err)
			f.allocate(stratX, 500)

			assets, err := f.vault.ClaimWithdrawal(alice, result.RequestID)
			require.NoError(t, err)
			requireInt(t, tt.want, assets)

			req, ok := f.vault.WithdrawalRequest(alice, result.RequestID)
			require.True(t, ok)
			requireInt(t, 250, req.AssetsAtRequest)
		})
	}
}
