package vault

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
)

// idleReserve is the reserve-asset balance of the vault's own account.
func (v *Vault) idleReserve() sdkmath.Int {
	return v.asset.BalanceOf(v.address)
}

func (v *Vault) totalAssets() sdkmath.Int {
	return v.idleReserve().Add(v.totalAssetsInStrategies)
}

// toShares converts assets at the current rate. Genesis (zero supply) is 1:1.
func (v *Vault) toShares(assets sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if v.totalSupply.IsZero() {
		return assets, nil
	}
	return mulDiv(assets, v.totalSupply, v.totalAssets(), roundUp)
}

// toAssets converts shares at the current rate. Genesis (zero supply) is 1:1.
func (v *Vault) toAssets(shares sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if v.totalSupply.IsZero() {
		return shares, nil
	}
	return mulDiv(shares, v.totalAssets(), v.totalSupply, roundUp)
}

// mulDiv returns x*y/d rounded down or up. A zero divisor yields zero.
func mulDiv(x, y, d sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	q, err := utils.MulDiv(x, y, d, roundUp)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrAmountTooLarge, err)
	}
	return q, nil
}

// priced reports whether a share price exists: either genesis, or positive
// total assets backing the outstanding supply.
func (v *Vault) priced() bool {
	return v.totalSupply.IsZero() || v.totalAssets().IsPositive()
}

// TotalAssets returns idle reserve plus the value deployed in strategies.
func (v *Vault) TotalAssets() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalAssets()
}

// IdleReserve returns the reserve held directly by the vault.
func (v *Vault) IdleReserve() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.idleReserve()
}

// TotalSupply returns all outstanding shares, escrowed ones included.
func (v *Vault) TotalSupply() sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.totalSupply
}

// ConvertToShares converts assets to shares at the current rate, rounding
// down. Results too large to represent saturate at the maximum amount.
func (v *Vault) ConvertToShares(assets sdkmath.Int) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return utils.Saturate(v.toShares(assets, false))
}

// ConvertToAssets converts shares to assets at the current rate, rounding
// down. Results too large to represent saturate at the maximum amount.
func (v *Vault) ConvertToAssets(shares sdkmath.Int) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return utils.Saturate(v.toAssets(shares, false))
}

// PreviewDeposit returns the shares a deposit of assets would mint.
func (v *Vault) PreviewDeposit(assets sdkmath.Int) sdkmath.Int {
	return v.ConvertToShares(assets)
}

// PreviewMint returns the assets required to mint shares, rounding up.
func (v *Vault) PreviewMint(shares sdkmath.Int) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return utils.Saturate(v.toAssets(shares, true))
}

// PreviewRedeem returns the assets redeeming shares would pay at the current rate.
func (v *Vault) PreviewRedeem(shares sdkmath.Int) sdkmath.Int {
	return v.ConvertToAssets(shares)
}

// MaxDeposit returns zero while paused and unlimited otherwise.
func (v *Vault) MaxDeposit(types.Address) sdkmath.Int {
	if v.Paused() {
		return sdkmath.ZeroInt()
	}
	return types.UnlimitedAllowance()
}

// MaxRedeem returns the shares owner can put into a redemption request.
func (v *Vault) MaxRedeem(owner types.Address) sdkmath.Int {
	return v.BalanceOf(owner)
}

// Deposit transfers assets from caller into the idle reserve and mints shares
// to receiver at the pre-deposit rate. The caller must have approved the vault.
func (v *Vault) Deposit(caller types.Address, assets sdkmath.Int, receiver types.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var shares sdkmath.Int
	err := v.execute("deposit", nil, func(op *operation) error {
		if err := v.checkDepositable(assets, receiver); err != nil {
			return err
		}
		var err error
		if shares, err = v.toShares(assets, false); err != nil {
			return err
		}
		return v.pullAndMint(op, caller, receiver, assets, shares)
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return shares, nil
}

// Mint mints exactly shares to receiver, pulling the required assets (rounded up) from caller.
func (v *Vault) Mint(caller types.Address, shares sdkmath.Int, receiver types.Address) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var assets sdkmath.Int
	err := v.execute("mint", nil, func(op *operation) error {
		if err := v.checkDepositable(shares, receiver); err != nil {
			return err
		}
		var err error
		if assets, err = v.toAssets(shares, true); err != nil {
			return err
		}
		return v.pullAndMint(op, caller, receiver, assets, shares)
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return assets, nil
}

func (v *Vault) checkDepositable(amount sdkmath.Int, receiver types.Address) error {
	if v.paused {
		return errors.Join(ErrInvalidState, errors.New("vault is paused"))
	}
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(ErrInvalidAmount, errors.New("amount cannot be negative"))
	}
	if amount.IsZero() && !v.params.AllowZeroDeposits {
		return ErrZeroAssets
	}
	if receiver.IsZero() || receiver == v.address {
		return errors.Join(ErrInvalidReceiver, fmt.Errorf("receiver %q", receiver))
	}
	if !v.priced() {
		return errors.Join(ErrInvalidState, errors.New("outstanding shares are backed by zero assets"))
	}
	return nil
}

func (v *Vault) pullAndMint(op *operation, caller, receiver types.Address, assets, shares sdkmath.Int) error {
	if _, err := v.totalSupply.SafeAdd(shares); err != nil {
		return errors.Join(ErrAmountTooLarge, fmt.Errorf("minting %s shares over supply %s: %w", shares, v.totalSupply, err))
	}
	if err := v.asset.TransferFrom(v.address, caller, v.address, assets); err != nil {
		return errors.Join(ErrTransferFailed, fmt.Errorf("pull %s from %s: %w", assets, caller, err))
	}
	v.mint(receiver, shares)
	op.emit(types.EventDeposit, func(e *types.Event) {
		e.Account = receiver
		e.Assets = assets
		e.Shares = shares
	})
	return nil
}

// --- Share ledger ---

func (v *Vault) balanceOf(account types.Address) sdkmath.Int {
	if b, ok := v.balances[account]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (v *Vault) mint(to types.Address, shares sdkmath.Int) {
	v.balances[to] = v.balanceOf(to).Add(shares)
	v.totalSupply = v.totalSupply.Add(shares)
}

func (v *Vault) burn(from types.Address, shares sdkmath.Int) {
	v.balances[from] = v.balanceOf(from).Sub(shares)
	v.totalSupply = v.totalSupply.Sub(shares)
}

func (v *Vault) move(from, to types.Address, shares sdkmath.Int) {
	v.balances[from] = v.balanceOf(from).Sub(shares)
	v.balances[to] = v.balanceOf(to).Add(shares)
}

func (v *Vault) allowance(owner, spender types.Address) sdkmath.Int {
	if a, ok := v.allowances[owner][spender]; ok {
		return a
	}
	return sdkmath.ZeroInt()
}

// spendAllowance checks spender's allowance over owner's shares and returns
// the allowance to store afterwards. It does not mutate state.
func (v *Vault) spendAllowance(owner, spender types.Address, shares sdkmath.Int) (sdkmath.Int, error) {
	current := v.allowance(owner, spender)
	if types.IsUnlimited(current) {
		return current, nil
	}
	if current.LT(shares) {
		return current, errors.Join(ErrInsufficientAllowance, fmt.Errorf("allowance %s, required %s", current, shares))
	}
	return current.Sub(shares), nil
}

func (v *Vault) setAllowance(owner, spender types.Address, amount sdkmath.Int) {
	if v.allowances[owner] == nil {
		v.allowances[owner] = make(map[types.Address]sdkmath.Int)
	}
	v.allowances[owner][spender] = amount
}

// BalanceOf returns the freely transferable shares of account.
func (v *Vault) BalanceOf(account types.Address) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.balanceOf(account)
}

// EscrowedShares returns the shares held by the vault for pending requests.
func (v *Vault) EscrowedShares() sdkmath.Int {
	return v.BalanceOf(v.address)
}

// Allowance returns how many of owner's shares spender may redeem or transfer.
func (v *Vault) Allowance(owner, spender types.Address) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.allowance(owner, spender)
}

// Approve sets spender's allowance over owner's shares.
func (v *Vault) Approve(owner, spender types.Address, shares sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.execute("approve", nil, func(op *operation) error {
		if owner.IsZero() {
			return ErrInvalidOwner
		}
		if spender.IsZero() {
			return errors.Join(ErrInvalidReceiver, errors.New("spender cannot be empty"))
		}
		if shares.IsNil() || shares.IsNegative() {
			return errors.Join(ErrInvalidAmount, errors.New("allowance cannot be negative"))
		}
		v.setAllowance(owner, spender, shares)
		return nil
	})
}

// Transfer moves shares from one account to another. When caller is not the
// owner of the shares, caller's allowance is consumed.
func (v *Vault) Transfer(caller, from, to types.Address, shares sdkmath.Int) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.execute("transfer", nil, func(op *operation) error {
		if from.IsZero() || from == v.address {
			return errors.Join(ErrInvalidOwner, fmt.Errorf("owner %q", from))
		}
		if to.IsZero() || to == v.address {
			return errors.Join(ErrInvalidReceiver, fmt.Errorf("receiver %q", to))
		}
		if shares.IsNil() || shares.IsNegative() {
			return errors.Join(ErrInvalidAmount, errors.New("shares cannot be negative"))
		}
		if v.balanceOf(from).LT(shares) {
			return errors.Join(ErrInsufficientBalance, fmt.Errorf("balance %s, required %s", v.balanceOf(from), shares))
		}
		if caller != from {
			remaining, err := v.spendAllowance(from, caller, shares)
			if err != nil {
				return err
			}
			v.setAllowance(from, caller, remaining)
		}
		v.move(from, to, shares)
		op.emit(types.EventShareTransfer, func(e *types.Event) {
			e.Account = from
			e.To = to
			e.Shares = shares
		})
		return nil
	})
}
