/*

This file contains the default policy parameters for the vault.

*/

package config

import (
	"github.com/elys-network/yieldvault/internal/types"
)

// DefaultVaultParameters provides the baseline policy for a vault instance.
// LoadConfig starts from these values and applies the VAULT_* overrides.
var DefaultVaultParameters = types.VaultParameters{
	AllowZeroDeposits: true, // Zero-asset deposits and zero-share mints succeed and change nothing.
	// Rationale: integrators batching deposits should not have to filter empty entries.

	ClaimPricing: types.ClaimAtClaimTime, // Queued withdrawals are priced when claimed.
	// Rationale: gains and losses reported while a request waits are shared with the
	// remaining holders. Use request_time to lock the payout at request creation.
}
