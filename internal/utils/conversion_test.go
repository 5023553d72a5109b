package utils

import (
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSDKIntToFloat64(t *testing.T) {
	f, err := SDKIntToFloat64(sdkmath.NewInt(1_500_000), 6)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-9)

	_, err = SDKIntToFloat64(sdkmath.NewInt(1), 19)
	assert.ErrorIs(t, err, ErrInvalidPrecision)
	_, err = SDKIntToFloat64(sdkmath.Int{}, 6)
	assert.ErrorIs(t, err, ErrAmountNil)
	_, err = SDKIntToFloat64(sdkmath.NewInt(-1), 6)
	assert.ErrorIs(t, err, ErrAmountNegative)
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{"1000", "1000", nil},
		{" 42 ", "42", nil},
		{"0", "0", nil},
		{"", "", ErrAmountMalformed},
		{"1.5", "", ErrAmountMalformed},
		{"abc", "", ErrAmountMalformed},
		{"-5", "", ErrAmountNegative},
	}
	for _, tt := range tests {
		got, err := ParseAmount(tt.in)
		if tt.wantErr != nil {
			assert.ErrorIs(t, err, tt.wantErr, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got.String())
	}
}

func TestDisplayAmount(t *testing.T) {
	assert.InDelta(t, 2.0, DisplayAmount(sdkmath.NewInt(2_000_000), 6), 1e-9)
	assert.Equal(t, float64(-1), DisplayAmount(sdkmath.Int{}, 6))
}
