package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// Allocate moves value between the idle reserve and a strategy so that the
// strategy's recorded debt becomes targetDebt. Increasing debt deposits the
// difference into the strategy; decreasing it redeems the difference back.
// It returns the new debt.
func (v *Vault) Allocate(caller, strategy types.Address, targetDebt sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.requireRole(RoleDebtManager, caller); err != nil {
		return sdkmath.ZeroInt(), v.reject("allocate", "", err)
	}
	rec, err := v.lookupStrategy(strategy)
	if err != nil {
		return sdkmath.ZeroInt(), v.reject("allocate", "", err)
	}

	var newDebt sdkmath.Int
	err = v.execute("allocate", []*strategyRecord{rec}, func(op *operation) error {
		if targetDebt.IsNil() || targetDebt.IsNegative() {
			return errors.Join(ErrInvalidAmount, errors.New("target debt cannot be negative"))
		}
		if rec.strategy.Asset() != v.asset.Denom() {
			return errors.Join(ErrAssetMismatch, fmt.Errorf("strategy asset %s, vault asset %s", rec.strategy.Asset(), v.asset.Denom()))
		}

		previous := rec.currentDebt
		switch {
		case targetDebt.GT(previous):
			if err := v.increaseDebt(rec, targetDebt.Sub(previous)); err != nil {
				return err
			}
		case targetDebt.LT(previous):
			if err := v.decreaseDebt(rec, previous.Sub(targetDebt)); err != nil {
				return err
			}
		default:
			return errors.Join(ErrNoChangeRequested, fmt.Errorf("strategy %s already at debt %s", strategy, previous))
		}

		newDebt = targetDebt
		op.emit(types.EventDebtUpdated, func(e *types.Event) {
			e.Account = strategy
			e.OldDebt = previous
			e.NewDebt = targetDebt
		})
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.logger.Info().
		Str("strategy", string(strategy)).
		Str("newDebt", newDebt.String()).
		Str("totalAssetsInStrategies", v.totalAssetsInStrategies.String()).
		Msg("Strategy debt updated")
	return newDebt, nil
}

// increaseDebt deposits delta of idle reserve into the strategy.
func (v *Vault) increaseDebt(rec *strategyRecord, delta sdkmath.Int) error {
	idle := v.idleReserve()
	if idle.LT(delta) {
		return errors.Join(ErrInsufficientLiquidity, fmt.Errorf("idle %s, required %s", idle, delta))
	}
	capacity := rec.strategy.MaxDeposit(v.address)
	if capacity.LT(delta) {
		return errors.Join(ErrCapacityExceeded, fmt.Errorf("capacity %s, required %s", capacity, delta))
	}

	if err := v.asset.Approve(v.address, rec.address, delta); err != nil {
		return errors.Join(ErrTransferFailed, fmt.Errorf("approve strategy: %w", err))
	}
	minted, depositErr := rec.strategy.Deposit(delta, v.address)
	// The approval never outlives the call.
	if err := v.asset.Approve(v.address, rec.address, sdkmath.ZeroInt()); err != nil {
		return errors.Join(ErrTransferFailed, fmt.Errorf("reset strategy approval: %w", err))
	}
	if depositErr != nil {
		return errors.Join(ErrStrategyRejected, depositErr)
	}
	if minted.IsNil() || !minted.IsPositive() {
		return errors.Join(ErrStrategyRejected, fmt.Errorf("strategy minted no shares for %s", delta))
	}

	inStrategies, err := v.totalAssetsInStrategies.SafeAdd(delta)
	if err != nil {
		return errors.Join(ErrAmountTooLarge, err)
	}
	rec.currentDebt = rec.currentDebt.Add(delta)
	v.totalAssetsInStrategies = inStrategies
	return nil
}

// decreaseDebt redeems delta of value from the strategy back into idle reserve.
func (v *Vault) decreaseDebt(rec *strategyRecord, delta sdkmath.Int) error {
	sharesNeeded := rec.strategy.PreviewWithdraw(delta)
	redeemable := rec.strategy.MaxRedeem(v.address)
	if sharesNeeded.IsNil() || redeemable.IsNil() || redeemable.LT(sharesNeeded) {
		return errors.Join(ErrInsufficientStrategyLiquidity, fmt.Errorf("redeemable shares %s, required %s", redeemable, sharesNeeded))
	}

	before := v.idleReserve()
	if _, err := rec.strategy.Redeem(sharesNeeded, v.address, v.address); err != nil {
		return errors.Join(ErrWithdrawalShortfall, err)
	}
	received := v.idleReserve().Sub(before)
	if received.LT(delta) {
		return errors.Join(ErrWithdrawalShortfall, fmt.Errorf("received %s, required %s", received, delta))
	}

	rec.currentDebt = rec.currentDebt.Sub(delta)
	v.totalAssetsInStrategies = v.totalAssetsInStrategies.Sub(delta)
	return nil
}
