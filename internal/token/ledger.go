/*

This file contains an in-memory fungible token ledger used as the vault's
reserve asset when no external ledger is wired in.

*/

package token

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/rs/zerolog"

	"github.com/elys-network/yieldvault/internal/logger"
	"github.com/elys-network/yieldvault/internal/types"
)

var (
	ErrInvalidDenom          = errors.New("denom is invalid")
	ErrInvalidAmount         = errors.New("amount is invalid")
	ErrInvalidAccount        = errors.New("account is invalid")
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
)

// Ledger is an in-memory fungible token with ERC-20 style allowances.
type Ledger struct {
	mu         sync.RWMutex
	logger     zerolog.Logger
	denom      string
	supply     sdkmath.Int
	balances   map[types.Address]sdkmath.Int
	allowances map[types.Address]map[types.Address]sdkmath.Int
	journals   []*journal
}

// NewLedger creates an empty ledger for denom.
func NewLedger(denom string) (*Ledger, error) {
	if err := sdk.ValidateDenom(denom); err != nil {
		return nil, errors.Join(ErrInvalidDenom, err)
	}
	return &Ledger{
		logger:     logger.GetForComponent("token_ledger").With().Str("denom", denom).Logger(),
		denom:      denom,
		supply:     sdkmath.ZeroInt(),
		balances:   make(map[types.Address]sdkmath.Int),
		allowances: make(map[types.Address]map[types.Address]sdkmath.Int),
	}, nil
}

func (l *Ledger) Denom() string {
	return l.denom
}

// TotalSupply returns the total amount minted minus burned.
func (l *Ledger) TotalSupply() sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.supply
}

func (l *Ledger) BalanceOf(account types.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balanceOf(account)
}

// Balance returns account's balance as a coin.
func (l *Ledger) Balance(account types.Address) sdk.Coin {
	return sdk.NewCoin(l.denom, l.BalanceOf(account))
}

func (l *Ledger) balanceOf(account types.Address) sdkmath.Int {
	if b, ok := l.balances[account]; ok {
		return b
	}
	return sdkmath.ZeroInt()
}

func (l *Ledger) Allowance(owner, spender types.Address) sdkmath.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if a, ok := l.allowances[owner][spender]; ok {
		return a
	}
	return sdkmath.ZeroInt()
}

// Mint creates amount new tokens for to.
func (l *Ledger) Mint(to types.Address, amount sdkmath.Int) error {
	if err := validate(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	supply, err := l.supply.SafeAdd(amount)
	if err != nil {
		return errors.Join(ErrInvalidAmount, fmt.Errorf("minting %s overflows supply %s: %w", amount, l.supply, err))
	}
	l.supply = supply
	l.balances[to] = l.balanceOf(to).Add(amount)
	l.logger.Debug().Str("to", string(to)).Str("amount", amount.String()).Msg("Minted")
	return nil
}

// Burn destroys amount tokens held by from.
func (l *Ledger) Burn(from types.Address, amount sdkmath.Int) error {
	if err := validate(from, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balanceOf(from).LT(amount) {
		return errors.Join(ErrInsufficientFunds, fmt.Errorf("%s holds %s, burning %s", from, l.balanceOf(from), amount))
	}
	l.balances[from] = l.balanceOf(from).Sub(amount)
	l.supply = l.supply.Sub(amount)
	return nil
}

func (l *Ledger) Transfer(from, to types.Address, amount sdkmath.Int) error {
	if err := validate(from, amount); err != nil {
		return err
	}
	if to.IsZero() {
		return errors.Join(ErrInvalidAccount, errors.New("recipient cannot be empty"))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	l.recordMove(from, from, to, amount, false)
	return nil
}

// TransferFrom moves amount from from to to, consuming spender's allowance.
// An unlimited allowance is never decremented.
func (l *Ledger) TransferFrom(spender, from, to types.Address, amount sdkmath.Int) error {
	if err := validate(from, amount); err != nil {
		return err
	}
	if to.IsZero() || spender.IsZero() {
		return errors.Join(ErrInvalidAccount, errors.New("spender and recipient are required"))
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	allowance := sdkmath.ZeroInt()
	if a, ok := l.allowances[from][spender]; ok {
		allowance = a
	}
	unlimited := types.IsUnlimited(allowance)
	if !unlimited && allowance.LT(amount) {
		return errors.Join(ErrInsufficientAllowance, fmt.Errorf("%s may spend %s of %s, requested %s", spender, allowance, from, amount))
	}
	if err := l.transfer(from, to, amount); err != nil {
		return err
	}
	if !unlimited {
		l.allowances[from][spender] = allowance.Sub(amount)
	}
	l.recordMove(spender, from, to, amount, !unlimited)
	return nil
}

func (l *Ledger) Approve(owner, spender types.Address, amount sdkmath.Int) error {
	if err := validate(owner, amount); err != nil {
		return err
	}
	if spender.IsZero() {
		return errors.Join(ErrInvalidAccount, errors.New("spender cannot be empty"))
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.recordApprove(owner, spender)
	l.setAllowance(owner, spender, amount)
	return nil
}

func (l *Ledger) setAllowance(owner, spender types.Address, amount sdkmath.Int) {
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[types.Address]sdkmath.Int)
	}
	l.allowances[owner][spender] = amount
}

func (l *Ledger) transfer(from, to types.Address, amount sdkmath.Int) error {
	if l.balanceOf(from).LT(amount) {
		return errors.Join(ErrInsufficientFunds, fmt.Errorf("%s holds %s, sending %s", from, l.balanceOf(from), amount))
	}
	l.balances[from] = l.balanceOf(from).Sub(amount)
	l.balances[to] = l.balanceOf(to).Add(amount)
	return nil
}

func validate(account types.Address, amount sdkmath.Int) error {
	if account.IsZero() {
		return errors.Join(ErrInvalidAccount, errors.New("account cannot be empty"))
	}
	if amount.IsNil() || amount.IsNegative() {
		return errors.Join(ErrInvalidAmount, fmt.Errorf("amount %v", amount))
	}
	return nil
}
