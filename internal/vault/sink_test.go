package vault_test

import (
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/yieldvault/internal/types"
	"github.com/elys-network/yieldvault/internal/vault"
)

type failingSink struct{ calls int }

func (f *failingSink) Record(...types.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestMultiSink_FansOutAndReturnsFirstError(t *testing.T) {
	first, second := vault.NewMemorySink(), vault.NewMemorySink()
	broken := &failingSink{}
	sink := vault.MultiSink{first, broken, vault.NewLogSink(), second}

	e := types.NewEvent(uuid.New(), types.EventDeposit, time.Now())
	err := sink.Record(e)

	assert.EqualError(t, err, "sink down")
	assert.Equal(t, 1, broken.calls)
	assert.Len(t, first.Events(), 1)
	assert.Len(t, second.Events(), 1)
}

func TestSinkFailureDoesNotFailOperation(t *testing.T) {
	f := newFixture(t, defaultParams())
	memory := vault.NewMemorySink()
	v, err := vault.New(vault.Config{
		Address: "other-vault",
		Asset:   f.ledger,
		Sink:    vault.MultiSink{&failingSink{}, memory},
	})
	require.NoError(t, err)

	require.NoError(t, f.ledger.Mint(alice, sdkmath.NewInt(100)))
	require.NoError(t, f.ledger.Approve(alice, "other-vault", types.UnlimitedAllowance()))

	shares, err := v.Deposit(alice, sdkmath.NewInt(100), alice)
	require.NoError(t, err)
	requireInt(t, 100, shares)
	assert.Len(t, memory.OfKind(types.EventDeposit), 1)
}
