/*

This file contains a reference yield strategy. It holds the reserve asset
directly and issues its own shares against it, so its exchange rate moves only
when value is accrued to it or impaired away from it.

*/

package strategy

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/utils"
)

var (
	ErrInvalidAmount      = errors.New("amount is invalid")
	ErrDepositCapExceeded = errors.New("deposit cap exceeded")
	ErrInsufficientShares = errors.New("insufficient strategy shares")
	ErrIlliquid           = errors.New("strategy liquidity is locked")
)

// Asset is the reserve-token surface the strategy needs.
type Asset interface {
	Denom() string
	BalanceOf(account types.Address) sdkmath.Int
	Transfer(from, to types.Address, amount sdkmath.Int) error
	TransferFrom(spender, from, to types.Address, amount sdkmath.Int) error
}

// Options tune a Passive strategy.
type Options struct {
	// DepositCap bounds the assets the strategy will hold. Nil means unlimited.
	DepositCap *sdkmath.Int
	// Locked is the part of the held assets that cannot be withdrawn.
	Locked sdkmath.Int
}

// Passive is an ERC-4626 style strategy holding the reserve asset under its own address.
type Passive struct {
	mu      sync.Mutex
	logger  zerolog.Logger
	address types.Address
	asset   Asset

	totalShares sdkmath.Int
	shares      map[types.Address]sdkmath.Int
	depositCap  *sdkmath.Int
	locked      sdkmath.Int
}

// NewPassive creates a strategy holding asset under address.
func NewPassive(address types.Address, asset Asset, opts Options) (*Passive, error) {
	if address.IsZero() {
		return nil, errors.New("strategy address cannot be empty")
	}
	if asset == nil {
		return nil, errors.New("strategy asset cannot be nil")
	}
	locked := opts.Locked
	if locked.IsNil() {
		locked = sdkmath.ZeroInt()
	}
	return &Passive{
		logger:      logger.GetForComponent("strategy").With().Str("strategy", string(address)).Logger(),
		address:     address,
		asset:       asset,
		totalShares: sdkmath.ZeroInt(),
		shares:      make(map[types.Address]sdkmath.Int),
		depositCap:  opts.DepositCap,
		locked:      locked,
	}, nil
}

// Address returns the account holding the strategy's assets.
func (p *Passive) Address() types.Address {
	return p.address
}

func (p *Passive) Asset() string {
	return p.asset.Denom()
}

// TotalAssets returns the reserve asset the strategy holds.
func (p *Passive) TotalAssets() sdkmath.Int {
	return p.asset.BalanceOf(p.address)
}

func (p *Passive) BalanceOf(holder types.Address) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balanceOf(holder)
}

func (p *Passive) balanceOf(holder types.Address) sdkmath.Int {
	if s, ok := p.shares[holder]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

// ConvertToAssets and the other read-only conversions saturate at the maximum
// amount when the result does not fit.
func (p *Passive) ConvertToAssets(shares sdkmath.Int) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.Saturate(p.toAssets(shares))
}

func (p *Passive) ConvertToShares(assets sdkmath.Int) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.Saturate(p.toShares(assets, false))
}

// PreviewWithdraw rounds up so that redeeming the result yields at least assets.
func (p *Passive) PreviewWithdraw(assets sdkmath.Int) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return utils.Saturate(p.toShares(assets, true))
}

func (p *Passive) MaxDeposit(types.Address) sdkmath.Int {
	if p.depositCap == nil {
		return types.UnlimitedAllowance()
	}
	held := p.TotalAssets()
	if held.GTE(*p.depositCap) {
		return sdkmath.ZeroInt()
	}
	return p.depositCap.Sub(held)
}

// MaxRedeem is bounded by owner's shares and by the unlocked assets.
func (p *Passive) MaxRedeem(owner types.Address) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	liquidShares := utils.Saturate(p.toShares(p.liquid(), false))
	return sdkmath.MinInt(p.balanceOf(owner), liquidShares)
}

func (p *Passive) Deposit(assets sdkmath.Int, receiver types.Address) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, fmt.Errorf("deposit %v", assets))
	}
	if max := p.MaxDeposit(receiver); max.LT(assets) {
		return sdkmath.ZeroInt(), errors.Join(ErrDepositCapExceeded, fmt.Errorf("room %s, deposit %s", max, assets))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	shares, err := p.toShares(assets, false)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, err)
	}
	totalShares, err := p.totalShares.SafeAdd(shares)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, err)
	}
	if err := p.asset.TransferFrom(p.address, receiver, p.address, assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.shares[receiver] = p.balanceOf(receiver).Add(shares)
	p.totalShares = totalShares

	p.logger.Debug().Str("receiver", string(receiver)).Str("assets", assets.String()).Str("shares", shares.String()).Msg("Strategy deposit")
	return shares, nil
}

func (p *Passive) Redeem(shares sdkmath.Int, receiver, owner types.Address) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, fmt.Errorf("redeem %v", shares))
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.balanceOf(owner).LT(shares) {
		return sdkmath.ZeroInt(), errors.Join(ErrInsufficientShares, fmt.Errorf("%s holds %s, redeeming %s", owner, p.balanceOf(owner), shares))
	}
	assets, err := p.toAssets(shares)
	if err != nil {
		return sdkmath.ZeroInt(), errors.Join(ErrInvalidAmount, err)
	}
	if p.liquid().LT(assets) {
		return sdkmath.ZeroInt(), errors.Join(ErrIlliquid, fmt.Errorf("liquid %s, required %s", p.liquid(), assets))
	}
	if err := p.asset.Transfer(p.address, receiver, assets); err != nil {
		return sdkmath.ZeroInt(), err
	}
	p.shares[owner] = p.balanceOf(owner).Sub(shares)
	p.totalShares = p.totalShares.Sub(shares)

	p.logger.Debug().Str("owner", string(owner)).Str("assets", assets.String()).Str("shares", shares.String()).Msg("Strategy redeem")
	return assets, nil
}

// Accrue moves amount of reserve asset from source into the strategy as yield.
func (p *Passive) Accrue(source types.Address, amount sdkmath.Int) error {
	if err := p.asset.Transfer(source, p.address, amount); err != nil {
		return fmt.Errorf("accrue %s from %s: %w", amount, source, err)
	}
	p.logger.Info().Str("amount", amount.String()).Msg("Yield accrued")
	return nil
}

// Impair moves amount of reserve asset out of the strategy to sink as a loss.
func (p *Passive) Impair(sink types.Address, amount sdkmath.Int) error {
	if err := p.asset.Transfer(p.address, sink, amount); err != nil {
		return fmt.Errorf("impair %s to %s: %w", amount, sink, err)
	}
	p.logger.Info().Str("amount", amount.String()).Msg("Loss realized")
	return nil
}

// SetLocked marks amount of the held assets as not withdrawable.
func (p *Passive) SetLocked(amount sdkmath.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locked = amount
}

// Snapshot captures the share ledger and returns a function that restores it.
func (p *Passive) Snapshot() func() {
	p.mu.Lock()
	total := p.totalShares
	shares := make(map[types.Address]sdkmath.Int, len(p.shares))
	for k, v := range p.shares {
		shares[k] = v
	}
	p.mu.Unlock()

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		p.totalShares = total
		p.shares = shares
	}
}

func (p *Passive) liquid() sdkmath.Int {
	held := p.TotalAssets()
	if held.LTE(p.locked) {
		return sdkmath.ZeroInt()
	}
	return held.Sub(p.locked)
}

func (p *Passive) toShares(assets sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	held := p.TotalAssets()
	if p.totalShares.IsZero() || held.IsZero() {
		return assets, nil
	}
	return utils.MulDiv(assets, p.totalShares, held, roundUp)
}

func (p *Passive) toAssets(shares sdkmath.Int) (sdkmath.Int, error) {
	if p.totalShares.IsZero() {
		return shares, nil
	}
	return utils.MulDiv(shares, p.TotalAssets(), p.totalShares, false)
}
