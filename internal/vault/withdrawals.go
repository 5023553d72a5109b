package vault

import (
	"errors"
	"fmt"
	"sort"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// RequestRedeem redeems shares on behalf of owner. The payout is priced at
// the current rate. When the idle reserve covers it, the shares are burned and
// the assets paid to owner in the same call; otherwise the shares are escrowed
// by the vault and a pending request is created for owner to claim later.
func (v *Vault) RequestRedeem(caller types.Address, shares sdkmath.Int, owner types.Address) (types.RedeemResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var result types.RedeemResult
	err := v.execute("request_redeem", nil, func(op *operation) error {
		if shares.IsNil() || !shares.IsPositive() {
			return ErrZeroShares
		}
		if owner.IsZero() || owner == v.address {
			return errors.Join(ErrInvalidOwner, fmt.Errorf("owner %q", owner))
		}
		// A delegate without allowance learns nothing about owner's balance.
		var remainingAllowance sdkmath.Int
		delegated := caller != owner
		if delegated {
			remaining, err := v.spendAllowance(owner, caller, shares)
			if err != nil {
				return err
			}
			remainingAllowance = remaining
		}
		balance := v.balanceOf(owner)
		if balance.LT(shares) {
			return errors.Join(ErrInsufficientBalance, fmt.Errorf("balance %s, required %s", balance, shares))
		}

		assets, err := v.toAssets(shares, false)
		if err != nil {
			return err
		}

		if v.idleReserve().GTE(assets) {
			if err := v.asset.Transfer(v.address, owner, assets); err != nil {
				return errors.Join(ErrTransferFailed, fmt.Errorf("pay %s to %s: %w", assets, owner, err))
			}
			if delegated {
				v.setAllowance(owner, caller, remainingAllowance)
			}
			v.burn(owner, shares)
			result = types.RedeemResult{Kind: types.RedeemImmediate, Assets: assets, Shares: shares}
			op.emit(types.EventWithdrawn, func(e *types.Event) {
				e.Account = owner
				e.Assets = assets
				e.Shares = shares
			})
			return nil
		}

		if delegated {
			v.setAllowance(owner, caller, remainingAllowance)
		}
		v.move(owner, v.address, shares)
		id := v.lastRequestID[owner] + 1
		v.lastRequestID[owner] = id
		if v.requests[owner] == nil {
			v.requests[owner] = make(map[uint64]*types.WithdrawalRequest)
		}
		v.requests[owner][id] = &types.WithdrawalRequest{
			ID:              id,
			Owner:           owner,
			Shares:          shares,
			AssetsAtRequest: assets,
			CreatedAt:       op.at,
			Status:          types.RequestPending,
			ClaimedAssets:   sdkmath.ZeroInt(),
		}
		result = types.RedeemResult{Kind: types.RedeemQueued, Assets: sdkmath.ZeroInt(), Shares: shares, RequestID: id}
		op.emit(types.EventWithdrawalRequested, func(e *types.Event) {
			e.Account = owner
			e.RequestID = id
			e.Shares = shares
			e.Assets = assets
		})
		return nil
	})
	if err != nil {
		return types.RedeemResult{}, err
	}

	v.logger.Debug().
		Str("owner", string(owner)).
		Str("kind", string(result.Kind)).
		Uint64("requestID", result.RequestID).
		Str("shares", shares.String()).
		Msg("Redemption requested")
	return result, nil
}

// ClaimWithdrawal pays out one of caller's pending requests and returns the
// assets transferred.
func (v *Vault) ClaimWithdrawal(caller types.Address, requestID uint64) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	var assets sdkmath.Int
	err := v.execute("claim_withdrawal", nil, func(op *operation) error {
		req := v.pendingRequest(caller, requestID)
		if req == nil {
			return errors.Join(ErrRequestNotFound, fmt.Errorf("request %d for %s", requestID, caller))
		}

		var err error
		if assets, err = v.claimPrice(req); err != nil {
			return err
		}
		idle := v.idleReserve()
		if idle.LT(assets) {
			return errors.Join(ErrInsufficientLiquidity, fmt.Errorf("idle %s, required %s", idle, assets))
		}
		if err := v.asset.Transfer(v.address, caller, assets); err != nil {
			return errors.Join(ErrTransferFailed, fmt.Errorf("pay %s to %s: %w", assets, caller, err))
		}

		claimedAt := op.at
		req.Status = types.RequestClaimed
		req.ClaimedAssets = assets
		req.ClaimedAt = &claimedAt
		v.burn(v.address, req.Shares)

		op.emit(types.EventWithdrawalClaimed, func(e *types.Event) {
			e.Account = caller
			e.RequestID = requestID
			e.Assets = assets
			e.Shares = req.Shares
		})
		op.emit(types.EventWithdrawn, func(e *types.Event) {
			e.Account = caller
			e.Assets = assets
			e.Shares = req.Shares
		})
		return nil
	})
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	v.logger.Debug().
		Str("owner", string(caller)).
		Uint64("requestID", requestID).
		Str("assets", assets.String()).
		Msg("Withdrawal claimed")
	return assets, nil
}

func (v *Vault) pendingRequest(owner types.Address, id uint64) *types.WithdrawalRequest {
	req, ok := v.requests[owner][id]
	if !ok || req.Status != types.RequestPending {
		return nil
	}
	return req
}

// claimPrice applies the configured claim pricing policy.
func (v *Vault) claimPrice(req *types.WithdrawalRequest) (sdkmath.Int, error) {
	if v.params.ClaimPricing == types.ClaimAtRequestTime {
		return req.AssetsAtRequest, nil
	}
	return v.toAssets(req.Shares, false)
}

// PendingShares returns the shares escrowed for a request, or zero if it is not pending.
func (v *Vault) PendingShares(owner types.Address, id uint64) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if req := v.pendingRequest(owner, id); req != nil {
		return req.Shares
	}
	return sdkmath.ZeroInt()
}

// ClaimableAssets returns what claiming a request would pay right now, or
// zero if it is not pending or the idle reserve cannot cover it.
func (v *Vault) ClaimableAssets(owner types.Address, id uint64) sdkmath.Int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	req := v.pendingRequest(owner, id)
	if req == nil {
		return sdkmath.ZeroInt()
	}
	assets, err := v.claimPrice(req)
	if err != nil || v.idleReserve().LT(assets) {
		return sdkmath.ZeroInt()
	}
	return assets
}

// WithdrawalRequest returns a copy of a request in any status.
func (v *Vault) WithdrawalRequest(owner types.Address, id uint64) (types.WithdrawalRequest, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	req, ok := v.requests[owner][id]
	if !ok {
		return types.WithdrawalRequest{}, false
	}
	return *req, true
}

// WithdrawalRequests returns all of owner's requests ordered by id.
func (v *Vault) WithdrawalRequests(owner types.Address) []types.WithdrawalRequest {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]types.WithdrawalRequest, 0, len(v.requests[owner]))
	for _, req := range v.requests[owner] {
		out = append(out, *req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
