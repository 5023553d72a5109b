package utils

import (
	"errors"
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
)

var ErrOverflow = errors.New("result exceeds 256 bits")

// MulDiv returns x*y/d rounded down, or up when roundUp is set. The product is
// taken at full width, so only a quotient wider than an sdkmath.Int fails.
// A zero divisor yields zero.
func MulDiv(x, y, d sdkmath.Int, roundUp bool) (sdkmath.Int, error) {
	if x.IsNil() || y.IsNil() || d.IsNil() {
		return sdkmath.Int{}, ErrAmountNil
	}
	if d.IsZero() {
		return sdkmath.ZeroInt(), nil
	}
	product := new(big.Int).Mul(x.BigInt(), y.BigInt())
	q, r := new(big.Int).QuoRem(product, d.BigInt(), new(big.Int))
	if roundUp && r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	if q.BitLen() > sdkmath.MaxBitLen {
		return sdkmath.Int{}, fmt.Errorf("%w: %s * %s / %s", ErrOverflow, x, y, d)
	}
	return sdkmath.NewIntFromBigInt(q), nil
}

// MaxAmount is the largest amount an sdkmath.Int holds.
func MaxAmount() sdkmath.Int {
	return sdkmath.NewIntFromBigInt(new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), sdkmath.MaxBitLen), big.NewInt(1)))
}

// Saturate returns amount, or MaxAmount when err is an overflow. Other errors
// yield zero.
func Saturate(amount sdkmath.Int, err error) sdkmath.Int {
	switch {
	case err == nil:
		return amount
	case errors.Is(err, ErrOverflow):
		return MaxAmount()
	default:
		return sdkmath.ZeroInt()
	}
}
