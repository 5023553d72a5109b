package state

import (
	"context"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/types"
)

func TestParseInt(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "0", false},
		{"42", "42", false},
		{"1000.000", "1000", false},
		{"115792089237316195423570985008687907853269984665640564039457584007913129639935", "115792089237316195423570985008687907853269984665640564039457584007913129639935", false},
		{"abc", "", true},
	}
	for _, tt := range tests {
		got, err := parseInt(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, defaultQueryLimit, NormalizeLimit(0))
	assert.Equal(t, defaultQueryLimit, NormalizeLimit(-3))
	assert.Equal(t, 20, NormalizeLimit(20))
	assert.Equal(t, maxQueryLimit, NormalizeLimit(10_000))
}

func TestColumnHelpers(t *testing.T) {
	assert.Nil(t, nullableString(""))
	assert.Equal(t, "alice", nullableString("alice"))
	assert.Nil(t, nullableRequestID(0))
	assert.Equal(t, int64(7), nullableRequestID(7))
	assert.Equal(t, "0", intString(sdkmath.Int{}))
	assert.Equal(t, "0", decString(sdkmath.LegacyDec{}))
}

func TestStoreRequiresDatabase(t *testing.T) {
	saved := DB
	DB = nil
	defer func() { DB = saved }()

	_, err := NewPostgresStore()
	assert.Error(t, err)

	var store PostgresStore
	assert.Error(t, store.Record(types.Event{}))
	_, err = store.IncrementCycle(context.Background())
	assert.Error(t, err)
	_, err = GetRecentEvents(10)
	assert.Error(t, err)
	_, err = GetLatestVaultSnapshot()
	assert.Error(t, err)
	assert.Error(t, EnsureSchema())
}

func TestStoreHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var store PostgresStore
	_, err := store.SaveSnapshot(ctx, types.VaultSnapshot{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSchema_PricePerShareHoldsAnyDec(t *testing.T) {
	assert.Contains(t, schemaDDL, "price_per_share NUMERIC NOT NULL")
	assert.NotContains(t, schemaDDL, "NUMERIC(78, 18)")
}
