/*

This file contains the append-only audit records emitted by the vault.

*/

package types

import (
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
)

// EventKind names an audit record type.
type EventKind string

const (
	EventDeposit             EventKind = "DEPOSIT"
	EventWithdrawn           EventKind = "WITHDRAWN"
	EventDebtUpdated         EventKind = "DEBT_UPDATED"
	EventStrategyReported    EventKind = "STRATEGY_REPORTED"
	EventWithdrawalRequested EventKind = "WITHDRAWAL_REQUESTED"
	EventWithdrawalClaimed   EventKind = "WITHDRAWAL_CLAIMED"
	EventStrategyAdded       EventKind = "STRATEGY_ADDED"
	EventPaused              EventKind = "PAUSED"
	EventUnpaused            EventKind = "UNPAUSED"
	EventShareTransfer       EventKind = "SHARE_TRANSFER"
)

// Event is a single audit record. Account holds the receiver, owner or
// strategy address depending on Kind; unused amount fields are zero.
type Event struct {
	ID        uuid.UUID   `json:"id"`
	OpID      uuid.UUID   `json:"op_id"` // Shared by all events of one vault operation
	Kind      EventKind   `json:"kind"`
	Timestamp time.Time   `json:"timestamp"`
	Account   Address     `json:"account,omitempty"`
	To        Address     `json:"to,omitempty"` // SHARE_TRANSFER only
	Assets    sdkmath.Int `json:"assets"`
	Shares    sdkmath.Int `json:"shares"`
	RequestID uint64      `json:"request_id,omitempty"`
	OldDebt   sdkmath.Int `json:"old_debt"`
	NewDebt   sdkmath.Int `json:"new_debt"`
	Gain      sdkmath.Int `json:"gain"`
	Loss      sdkmath.Int `json:"loss"`
}

// NewEvent returns an event of the given kind with every amount set to zero.
func NewEvent(opID uuid.UUID, kind EventKind, at time.Time) Event {
	return Event{
		ID:        uuid.New(),
		OpID:      opID,
		Kind:      kind,
		Timestamp: at,
		Assets:    sdkmath.ZeroInt(),
		Shares:    sdkmath.ZeroInt(),
		OldDebt:   sdkmath.ZeroInt(),
		NewDebt:   sdkmath.ZeroInt(),
		Gain:      sdkmath.ZeroInt(),
		Loss:      sdkmath.ZeroInt(),
	}
}
