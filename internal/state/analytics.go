package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	"github.com/lib/pq" // PostgreSQL driver for array support
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

const (
	defaultQueryLimit = 50
	maxQueryLimit     = 500
)

// PerformanceMetrics represents aggregated keeper-cycle performance
type PerformanceMetrics struct {
	TotalGain           sdkmath.Int       `json:"total_gain"`
	TotalLoss           sdkmath.Int       `json:"total_loss"`
	NetReturn           sdkmath.Int       `json:"net_return"`
	TotalCycles         int               `json:"total_cycles"`
	ProfitableCycles    int               `json:"profitable_cycles"`
	FirstPricePerShare  sdkmath.LegacyDec `json:"first_price_per_share"`
	LatestPricePerShare sdkmath.LegacyDec `json:"latest_price_per_share"`
}

// NormalizeLimit clamps a caller-supplied page size.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return defaultQueryLimit
	}
	if limit > maxQueryLimit {
		return maxQueryLimit
	}
	return limit
}

// GetRecentEvents retrieves the newest events, optionally restricted to kinds.
func GetRecentEvents(limit int, kinds ...types.EventKind) ([]types.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	filter := []string{}
	for _, k := range kinds {
		filter = append(filter, string(k))
	}

	query := `
		SELECT payload
		FROM vault_events
		WHERE cardinality($2::text[]) = 0 OR kind = ANY($2::text[])
		ORDER BY event_timestamp DESC, event_id
		LIMIT $1
	`
	rows, err := DB.Query(query, NormalizeLimit(limit), pq.Array(filter))
	if err != nil {
		log.Error().Err(err).Msg("Failed to query recent events")
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetEventsByAccount retrieves the newest events whose account or recipient is account.
func GetEventsByAccount(account types.Address, limit int) ([]types.Event, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT payload
		FROM vault_events
		WHERE account = $1 OR to_account = $1
		ORDER BY event_timestamp DESC, event_id
		LIMIT $2
	`
	rows, err := DB.Query(query, string(account), NormalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query events for %s: %w", account, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	var events []types.Event
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		var e types.Event
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}
	return events, nil
}

// GetLatestVaultSnapshot returns the newest keeper snapshot, or nil if none exists.
func GetLatestVaultSnapshot() (*types.VaultSnapshot, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			snapshot_id, cycle_number, snapshot_timestamp,
			total_assets::text, idle_reserve::text, total_assets_in_strategies::text,
			total_supply::text, escrowed_shares::text, price_per_share::text,
			cycle_gain::text, cycle_loss::text, paused, strategy_debts
		FROM vault_snapshots
		ORDER BY snapshot_timestamp DESC, snapshot_id DESC
		LIMIT 1
	`

	var (
		snap                                        types.VaultSnapshot
		total, idle, inStrategies, supply, escrowed string
		price, gain, loss                           string
		strategiesJSON                              []byte
	)
	err := DB.QueryRow(query).Scan(
		&snap.SnapshotID, &snap.CycleNumber, &snap.Timestamp,
		&total, &idle, &inStrategies, &supply, &escrowed, &price,
		&gain, &loss, &snap.Paused, &strategiesJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest vault snapshot: %w", err)
	}

	for _, f := range []struct {
		dst *sdkmath.Int
		src string
	}{
		{&snap.TotalAssets, total}, {&snap.IdleReserve, idle}, {&snap.TotalAssetsInStrategies, inStrategies},
		{&snap.TotalSupply, supply}, {&snap.EscrowedShares, escrowed},
		{&snap.CycleGain, gain}, {&snap.CycleLoss, loss},
	} {
		v, err := parseInt(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = v
	}
	snap.PricePerShare, err = sdkmath.LegacyNewDecFromStr(price)
	if err != nil {
		return nil, fmt.Errorf("invalid price_per_share %q: %w", price, err)
	}
	if len(strategiesJSON) > 0 {
		if err := json.Unmarshal(strategiesJSON, &snap.Strategies); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strategy_debts: %w", err)
		}
	}

	log.Debug().Int64("snapshot_id", snap.SnapshotID).Int("cycle_number", snap.CycleNumber).Msg("Retrieved latest vault snapshot")
	return &snap, nil
}

// GetPerformanceMetrics retrieves aggregated performance metrics
func GetPerformanceMetrics() (*PerformanceMetrics, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	query := `
		SELECT
			COALESCE(SUM(cycle_gain), 0)::text,
			COALESCE(SUM(cycle_loss), 0)::text,
			COUNT(*),
			COUNT(CASE WHEN cycle_gain > cycle_loss THEN 1 END),
			COALESCE((SELECT price_per_share FROM vault_snapshots ORDER BY snapshot_timestamp ASC, snapshot_id ASC LIMIT 1), 1)::text,
			COALESCE((SELECT price_per_share FROM vault_snapshots ORDER BY snapshot_timestamp DESC, snapshot_id DESC LIMIT 1), 1)::text
		FROM vault_snapshots
	`

	var gain, loss, firstPrice, latestPrice string
	metrics := &PerformanceMetrics{}
	err := DB.QueryRow(query).Scan(&gain, &loss, &metrics.TotalCycles, &metrics.ProfitableCycles, &firstPrice, &latestPrice)
	if err != nil {
		return nil, fmt.Errorf("failed to get performance metrics: %w", err)
	}

	if metrics.TotalGain, err = parseInt(gain); err != nil {
		return nil, err
	}
	if metrics.TotalLoss, err = parseInt(loss); err != nil {
		return nil, err
	}
	metrics.NetReturn = metrics.TotalGain.Sub(metrics.TotalLoss)
	if metrics.FirstPricePerShare, err = sdkmath.LegacyNewDecFromStr(firstPrice); err != nil {
		return nil, fmt.Errorf("invalid first price %q: %w", firstPrice, err)
	}
	if metrics.LatestPricePerShare, err = sdkmath.LegacyNewDecFromStr(latestPrice); err != nil {
		return nil, fmt.Errorf("invalid latest price %q: %w", latestPrice, err)
	}

	log.Info().
		Str("netReturn", metrics.NetReturn.String()).
		Int("totalCycles", metrics.TotalCycles).
		Msg("Retrieved performance metrics")

	return metrics, nil
}

// Analytics exposes the read queries over the global connection pool.
type Analytics struct{}

func (Analytics) RecentEvents(limit int, kinds ...types.EventKind) ([]types.Event, error) {
	return GetRecentEvents(limit, kinds...)
}

func (Analytics) EventsByAccount(account types.Address, limit int) ([]types.Event, error) {
	return GetEventsByAccount(account, limit)
}

func (Analytics) LatestSnapshot() (*types.VaultSnapshot, error) {
	return GetLatestVaultSnapshot()
}

func (Analytics) Performance() (*PerformanceMetrics, error) {
	return GetPerformanceMetrics()
}

func (Analytics) Healthy() error {
	return TestDBConnection()
}
