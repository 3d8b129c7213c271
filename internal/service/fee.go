// internal/service/fee.go
package service

import "github.com/shopspring/decimal"

// DefaultFeeRate is the platform cut applied to every top-up (0.1%).
var DefaultFeeRate = decimal.New(1, -3)

// FeeCalculator splits a gross top-up amount into the net credit for the user
// wallet and the fee credited to the admin wallet. It is pure and safe for
// concurrent use.
type FeeCalculator struct {
	rate decimal.Decimal
}

// NewFeeCalculator creates a FeeCalculator with the given rate.
func NewFeeCalculator(rate decimal.Decimal) FeeCalculator {
	return FeeCalculator{rate: rate}
}

// ComputeSplit maps a gross amount (smallest currency unit) to (net, fee).
//
// The fee is rounded half-up: decimal.Round rounds half away from zero, which
// for the non-negative amounts handled here is half-up. The net credit is
// derived from the gross minus the rounded fee, so net + fee == gross holds
// exactly unless the clamp below fires. The clamp guards against a rounded fee
// exceeding the gross amount, which under sane rates only matters for amounts
// of a few units.
//
// Callers must validate gross > 0 before invoking; this function does not
// re-validate.
func (c FeeCalculator) ComputeSplit(gross int64) (net, fee int64) {
	fee = decimal.NewFromInt(gross).Mul(c.rate).Round(0).IntPart()
	net = gross - fee
	if net < 0 {
		net = 0
	}
	return net, fee
}
