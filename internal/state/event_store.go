/*

This file persists the vault's audit events. PostgresStore adapts the
package-level functions to the interfaces the vault and the keeper consume.

*/

package state

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/yieldvault/internal/types"
)

// RecordEvents inserts events in a single transaction. Events already stored
// (same event id) are skipped.
func RecordEvents(events ...types.Event) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}
	if len(events) == 0 {
		return nil
	}

	tx, err := DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin event transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.Prepare(`
		INSERT INTO vault_events (
			event_id, op_id, kind, event_timestamp, account, to_account,
			request_id, assets, shares, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (event_id) DO NOTHING;
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare event insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", e.ID, err)
		}
		if _, err := stmt.Exec(
			e.ID, e.OpID, string(e.Kind), e.Timestamp,
			nullableString(string(e.Account)), nullableString(string(e.To)),
			nullableRequestID(e.RequestID), intString(e.Assets), intString(e.Shares), payload,
		); err != nil {
			return fmt.Errorf("failed to insert event %s (%s): %w", e.ID, e.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit events: %w", err)
	}
	log.Debug().Int("count", len(events)).Str("op_id", events[0].OpID.String()).Msg("Vault events persisted")
	return nil
}

// PostgresStore is the database-backed event sink and keeper store.
type PostgresStore struct{}

// NewPostgresStore returns a store over the global connection pool.
func NewPostgresStore() (*PostgresStore, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return &PostgresStore{}, nil
}

// Record implements the vault's event sink.
func (PostgresStore) Record(events ...types.Event) error {
	return RecordEvents(events...)
}

func (PostgresStore) CurrentCycle(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return GetCurrentCycleNumber()
}

func (PostgresStore) IncrementCycle(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return IncrementCycleNumber()
}

func (PostgresStore) SaveSnapshot(ctx context.Context, snapshot types.VaultSnapshot) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return SaveVaultSnapshot(snapshot)
}

func intString(i sdkmath.Int) string {
	if i.IsNil() {
		return "0"
	}
	return i.String()
}

func decString(d sdkmath.LegacyDec) string {
	if d.IsNil() {
		return "0"
	}
	return d.String()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableRequestID(id uint64) interface{} {
	if id == 0 {
		return nil
	}
	return int64(id)
}

// parseInt reads a NUMERIC column scanned as text. Postgres may render whole
// numbers with a fractional part ("10.000"), which is truncated.
func parseInt(s string) (sdkmath.Int, error) {
	if s == "" {
		return sdkmath.ZeroInt(), nil
	}
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		s = s[:dot]
	}
	i, ok := sdkmath.NewIntFromString(s)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid integer amount %q", s)
	}
	return i, nil
}
