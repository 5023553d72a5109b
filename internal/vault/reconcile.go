package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// Reconcile folds a strategy's change in value into vault-wide accounting.
// The strategy's value is its share balance priced at its own exchange rate;
// the difference against recorded debt is realized as gain or loss, which
// moves the share price for every holder. It returns (gain, loss).
func (v *Vault) Reconcile(caller, strategy types.Address) (sdkmath.Int, sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	gain, loss := sdkmath.ZeroInt(), sdkmath.ZeroInt()
	err := v.execute("reconcile", nil, func(op *operation) error {
		if err := v.requireRole(RoleReporter, caller); err != nil {
			return err
		}
		rec, err := v.lookupStrategy(strategy)
		if err != nil {
			return err
		}
		if !rec.currentDebt.IsPositive() {
			return errors.Join(ErrNoActiveDebt, fmt.Errorf("strategy %s", strategy))
		}

		value := rec.strategy.ConvertToAssets(rec.strategy.BalanceOf(v.address))
		if value.IsNil() || value.IsNegative() {
			return errors.Join(ErrInvalidState, fmt.Errorf("strategy %s reported invalid value", strategy))
		}

		previous := rec.currentDebt
		switch {
		case value.GT(previous):
			gain = value.Sub(previous)
			inStrategies, err := v.totalAssetsInStrategies.SafeAdd(gain)
			if err == nil {
				_, err = v.idleReserve().SafeAdd(inStrategies)
			}
			if err != nil {
				return errors.Join(ErrInvalidState, fmt.Errorf("strategy %s reported gain %s beyond the representable total: %w", strategy, gain, err))
			}
			v.totalAssetsInStrategies = inStrategies
		case value.LT(previous):
			loss = previous.Sub(value)
			v.totalAssetsInStrategies = v.totalAssetsInStrategies.Sub(loss)
		}
		rec.currentDebt = value

		op.emit(types.EventStrategyReported, func(e *types.Event) {
			e.Account = strategy
			e.Gain = gain
			e.Loss = loss
			e.OldDebt = previous
			e.NewDebt = value
		})
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), sdkmath.ZeroInt(), err
	}

	v.logger.Info().
		Str("strategy", string(strategy)).
		Str("gain", gain.String()).
		Str("loss", loss.String()).
		Msg("Strategy reported")
	return gain, loss, nil
}
