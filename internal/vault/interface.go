package vault

import (
	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/yieldvault/internal/types"
)

// Strategy defines the capability contract every yield strategy must expose.
// The vault treats a strategy as an opaque value-bearing position: it never
// looks behind this interface, and any implementation may be plugged in.
type Strategy interface {
	// Asset returns the denom of the reserve asset the strategy accepts.
	Asset() string

	// BalanceOf returns the strategy shares held by holder.
	BalanceOf(holder types.Address) sdkmath.Int

	// ConvertToAssets prices shares at the strategy's own exchange rate.
	ConvertToAssets(shares sdkmath.Int) sdkmath.Int

	// ConvertToShares prices assets at the strategy's own exchange rate.
	ConvertToShares(assets sdkmath.Int) sdkmath.Int

	// PreviewWithdraw returns the shares that must be redeemed to receive assets.
	PreviewWithdraw(assets sdkmath.Int) sdkmath.Int

	// MaxDeposit returns how many assets receiver may currently deposit.
	MaxDeposit(receiver types.Address) sdkmath.Int

	// Deposit pulls assets from receiver's approved balance and mints shares to receiver.
	Deposit(assets sdkmath.Int, receiver types.Address) (sdkmath.Int, error)

	// MaxRedeem returns how many shares owner may currently redeem.
	MaxRedeem(owner types.Address) sdkmath.Int

	// Redeem burns owner's shares and sends the resulting assets to receiver.
	Redeem(shares sdkmath.Int, receiver, owner types.Address) (sdkmath.Int, error)
}

// Token is the reserve-asset ledger the vault holds custody on.
type Token interface {
	Denom() string
	BalanceOf(account types.Address) sdkmath.Int
	Transfer(from, to types.Address, amount sdkmath.Int) error
	TransferFrom(spender, from, to types.Address, amount sdkmath.Int) error
	Approve(owner, spender types.Address, amount sdkmath.Int) error
}

// Journaled is implemented by collaborators that can roll their own state
// back. Snapshot captures the current state and returns a function that
// restores it.
type Journaled interface {
	Snapshot() (restore func())
}

// AccountJournaled is implemented by reserve ledgers that can undo the writes
// made on behalf of one account while leaving every other account's writes in
// place. Transfers into account are covered only when they come from one of
// counterparties.
type AccountJournaled interface {
	Journal(account types.Address, counterparties ...types.Address) (revert func() error, release func())
}

// EventSink receives the audit records of every committed operation.
type EventSink interface {
	Record(events ...types.Event) error
}
