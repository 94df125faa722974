package core

import (
	"math/big"

	"github.com/shopspring/decimal"
)

const basisPointsPerUnit = 10000

// amountDecimal lifts an Amount into decimal without going through int64,
// so values above math.MaxInt64 keep their magnitude.
func amountDecimal(a Amount) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(uint64(a)), 0)
}

// decimalAmount converts a non-negative integral decimal back to an Amount.
func decimalAmount(d decimal.Decimal) Amount {
	return Amount(d.BigInt().Uint64())
}

// basisPointsOf returns floor(a * bps / 10000).
// Uses decimal arithmetic so the intermediate product cannot overflow.
func basisPointsOf(a Amount, bps int64) decimal.Decimal {
	return amountDecimal(a).
		Mul(decimal.NewFromInt(bps)).
		Div(decimal.NewFromInt(basisPointsPerUnit)).
		Floor()
}

// MinimumNextBid returns the smallest amount that may outbid highest:
// highest + floor(highest * incrementBps / 10000). The result is a decimal
// because it can exceed the Amount range for very large highest bids.
func MinimumNextBid(highest Amount, incrementBps int64) decimal.Decimal {
	return amountDecimal(highest).Add(basisPointsOf(highest, incrementBps))
}

// BidMeetsIncrement reports whether amount is an acceptable raise over highest.
// Any positive amount qualifies against an empty auction.
func BidMeetsIncrement(amount, highest Amount, incrementBps int64) bool {
	if highest == 0 {
		return amount > 0
	}
	return amountDecimal(amount).GreaterThanOrEqual(MinimumNextBid(highest, incrementBps))
}

// SplitOutbidFee divides a superseded bid into the retained fee,
// floor(outbid * feeBps / 10000), and the returnable remainder.
// fee + returnable == outbid for every input.
func SplitOutbidFee(outbid Amount, feeBps int64) (fee, returnable Amount) {
	fee = decimalAmount(basisPointsOf(outbid, feeBps))
	return fee, outbid - fee
}
