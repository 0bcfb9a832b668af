// Package rate converts native asset amounts to and from the fixed-precision
// per-second representation used by settlement ledger flows.
//
// Assets carry heterogeneous native precisions. A payment rate is normalized
// once, at reference precision, when a stream opens or is edited; it is never
// re-derived, so repeated payouts stay arithmetically stable.
package rate

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Precision is the reference precision P. Native amounts are scaled by
// 10^(P−D) where D is the asset's native decimal count.
const Precision = 20

var (
	// ErrNonPositiveAmount indicates a zero or negative native amount.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	// ErrInvalidDuration indicates a duration shorter than one second.
	ErrInvalidDuration = errors.New("duration must be at least one second")
	// ErrInvalidPrecision indicates native decimals outside [0, Precision).
	ErrInvalidPrecision = errors.New("native decimals must be below the reference precision")
	// ErrZeroRate indicates an amount too small to form a positive per-second rate.
	ErrZeroRate = errors.New("amount is too small for the duration")
	// ErrOverflow indicates a rate wider than the ledger can represent.
	ErrOverflow = errors.New("rate exceeds the ledger's representable width")
)

// Normalize converts a native amount paid out over duration into a
// per-second rate at reference precision:
//
//	rate = trunc(amount × 10^(Precision−nativeDecimals) / seconds)
//
// The result is an integer-valued decimal. maxBits bounds the bit width the
// target ledger can represent; wider rates fail with ErrOverflow.
func Normalize(amount decimal.Decimal, duration time.Duration, nativeDecimals int32, maxBits int) (decimal.Decimal, error) {
	if nativeDecimals < 0 || nativeDecimals >= Precision {
		return decimal.Zero, ErrInvalidPrecision
	}
	seconds := int64(duration / time.Second)
	if seconds <= 0 {
		return decimal.Zero, ErrInvalidDuration
	}
	if amount.Sign() <= 0 {
		return decimal.Zero, ErrNonPositiveAmount
	}

	scaled := amount.Shift(Precision - nativeDecimals)
	perSecond, _ := scaled.QuoRem(decimal.NewFromInt(seconds), 0)
	if perSecond.Sign() <= 0 {
		return decimal.Zero, ErrZeroRate
	}
	if maxBits > 0 && perSecond.BigInt().BitLen() > maxBits {
		return decimal.Zero, ErrOverflow
	}
	return perSecond, nil
}

// Denormalize converts a normalized amount back into native units,
// truncating toward zero.
func Denormalize(normalized decimal.Decimal, nativeDecimals int32) decimal.Decimal {
	if nativeDecimals < 0 || nativeDecimals >= Precision {
		return decimal.Zero
	}
	return normalized.Shift(nativeDecimals - Precision).Truncate(0)
}

// Accrue returns the native units accrued by a normalized per-second rate
// over the given number of whole seconds.
func Accrue(perSecond decimal.Decimal, seconds int64, nativeDecimals int32) decimal.Decimal {
	if seconds <= 0 {
		return decimal.Zero
	}
	return Denormalize(perSecond.Mul(decimal.NewFromInt(seconds)), nativeDecimals)
}
