// ./internal/state/snapshot_store.go
package state

import (
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

// SaveVaultSnapshot saves a keeper cycle snapshot to the database.
func SaveVaultSnapshot(snapshot types.VaultSnapshot) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	strategiesJSON, err := json.Marshal(snapshot.Strategies)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal strategy_debts: %w", err)
	}

	query := `
		INSERT INTO vault_snapshots (
			cycle_number, snapshot_timestamp,
			total_assets, idle_reserve, total_assets_in_strategies,
			total_supply, escrowed_shares, price_per_share,
			cycle_gain, cycle_loss, paused, strategy_debts
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING snapshot_id;
	`

	var snapshotID int64
	err = DB.QueryRow(
		query,
		snapshot.CycleNumber, snapshot.Timestamp,
		intString(snapshot.TotalAssets), intString(snapshot.IdleReserve), intString(snapshot.TotalAssetsInStrategies),
		intString(snapshot.TotalSupply), intString(snapshot.EscrowedShares), decString(snapshot.PricePerShare),
		intString(snapshot.CycleGain), intString(snapshot.CycleLoss), snapshot.Paused, strategiesJSON,
	).Scan(&snapshotID)
	if err != nil {
		return 0, fmt.Errorf("failed to save vault snapshot: %w", err)
	}

	log.Info().
		Int64("snapshot_id", snapshotID).
		Int("cycle_number", snapshot.CycleNumber).
		Str("total_assets", intString(snapshot.TotalAssets)).
		Str("price_per_share", decString(snapshot.PricePerShare)).
		Msg("Vault snapshot saved to database")

	return snapshotID, nil
}
