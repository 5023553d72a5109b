/*

This file contains the core types shared by the vault accounting engine, its
persistence layer and its transports.

*/

package types

import (
	"math/big"
	"time"

	sdkmath "cosmossdk.io/math"
)

// Address identifies an account: a depositor, a strategy, or the vault itself.
type Address string

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	return a == ""
}

// ClaimPricing selects how a queued withdrawal is priced when it is claimed.
type ClaimPricing string

const (
	// ClaimAtClaimTime re-evaluates the share price when the request is claimed.
	ClaimAtClaimTime ClaimPricing = "claim_time"
	// ClaimAtRequestTime pays out the assets computed when the request was created.
	ClaimAtRequestTime ClaimPricing = "request_time"
)

// Valid reports whether p is a known pricing policy.
func (p ClaimPricing) Valid() bool {
	return p == ClaimAtClaimTime || p == ClaimAtRequestTime
}

// VaultParameters holds the policy knobs of a vault instance.
type VaultParameters struct {
	AllowZeroDeposits bool         `json:"allow_zero_deposits"` // Zero-asset deposits and zero-share mints succeed as no-ops.
	ClaimPricing      ClaimPricing `json:"claim_pricing"`       // Pricing policy for queued withdrawals.
}

// RequestStatus is the lifecycle state of a queued withdrawal.
type RequestStatus string

const (
	RequestPending RequestStatus = "PENDING"
	RequestClaimed RequestStatus = "CLAIMED"
)

// WithdrawalRequest is a queued redemption, keyed by (Owner, ID).
type WithdrawalRequest struct {
	ID              uint64        `json:"id"`
	Owner           Address       `json:"owner"`
	Shares          sdkmath.Int   `json:"shares"`            // Shares escrowed by the vault
	AssetsAtRequest sdkmath.Int   `json:"assets_at_request"` // Conversion at creation time
	CreatedAt       time.Time     `json:"created_at"`
	Status          RequestStatus `json:"status"`
	ClaimedAssets   sdkmath.Int   `json:"claimed_assets"`
	ClaimedAt       *time.Time    `json:"claimed_at,omitempty"`
}

// RedeemKind tags the outcome of a redemption request.
type RedeemKind string

const (
	RedeemImmediate RedeemKind = "IMMEDIATE"
	RedeemQueued    RedeemKind = "QUEUED"
)

// RedeemResult is the tagged result of a redemption request. Assets is set for
// immediate fulfillment; RequestID is set when the request was queued.
type RedeemResult struct {
	Kind      RedeemKind  `json:"kind"`
	Assets    sdkmath.Int `json:"assets"`
	Shares    sdkmath.Int `json:"shares"`
	RequestID uint64      `json:"request_id,omitempty"`
}

// Immediate reports whether the redemption was paid out in the same call.
func (r RedeemResult) Immediate() bool {
	return r.Kind == RedeemImmediate
}

// StrategyInfo is a read view of a registered strategy.
type StrategyInfo struct {
	Address     Address     `json:"address"`
	Asset       string      `json:"asset"`
	CurrentDebt sdkmath.Int `json:"current_debt"`
	AddedAt     time.Time   `json:"added_at"`
}

// VaultSnapshot is a point-in-time view of the vault totals.
type VaultSnapshot struct {
	SnapshotID              int64             `json:"snapshot_id,omitempty"`
	CycleNumber             int               `json:"cycle_number"`
	Timestamp               time.Time         `json:"timestamp"`
	TotalAssets             sdkmath.Int       `json:"total_assets"`
	IdleReserve             sdkmath.Int       `json:"idle_reserve"`
	TotalAssetsInStrategies sdkmath.Int       `json:"total_assets_in_strategies"`
	TotalSupply             sdkmath.Int       `json:"total_supply"`
	EscrowedShares          sdkmath.Int       `json:"escrowed_shares"`
	PricePerShare           sdkmath.LegacyDec `json:"price_per_share"`
	CycleGain               sdkmath.Int       `json:"cycle_gain"`
	CycleLoss               sdkmath.Int       `json:"cycle_loss"`
	Paused                  bool              `json:"paused"`
	Strategies              []StrategyInfo    `json:"strategies,omitempty"`
}

// UnlimitedAllowance returns the allowance value that is never decremented (2^256 - 1).
func UnlimitedAllowance() sdkmath.Int {
	max := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	return sdkmath.NewIntFromBigInt(max)
}

// IsUnlimited reports whether an allowance is the unlimited sentinel.
func IsUnlimited(allowance sdkmath.Int) bool {
	return !allowance.IsNil() && allowance.Equal(UnlimitedAllowance())
}
