package domain

import "github.com/shopspring/decimal"

// Currency precision. USD amounts carry four decimals in the ledger, LBP
// two. Residuals inside the tolerance are absorbed by the ROUNDING
// account; anything larger is a hard imbalance.
var (
	maxRoundingUSD = decimal.RequireFromString("0.05")
	maxRoundingLBP = decimal.RequireFromString("5000")

	// FallbackUSDToLBP is used when a company has no rate on file. It
	// matches the seeded market rate every installation starts with.
	FallbackUSDToLBP = decimal.NewFromInt(90000)
)

const (
	usdPlaces int32 = 4
	lbpPlaces int32 = 2
)

// QuantizeUSD rounds half-up to USD ledger precision.
func QuantizeUSD(v decimal.Decimal) decimal.Decimal {
	return v.Round(usdPlaces)
}

// QuantizeLBP rounds half-up to LBP ledger precision.
func QuantizeLBP(v decimal.Decimal) decimal.Decimal {
	return v.Round(lbpPlaces)
}

// DerivedSide records which currency side of an amount was derived from
// the other via the document's frozen rate, for audit.
type DerivedSide string

const (
	DerivedNone DerivedSide = ""
	DerivedUSD  DerivedSide = "usd"
	DerivedLBP  DerivedSide = "lbp"
)

// NormalizeDual fills in a missing currency side from the other using the
// frozen exchange rate, quantized to ledger precision. Clients that send
// both sides are left untouched apart from quantization.
func NormalizeDual(usd, lbp, rate decimal.Decimal) (decimal.Decimal, decimal.Decimal, DerivedSide) {
	derived := DerivedNone
	if !rate.IsZero() {
		switch {
		case usd.IsZero() && !lbp.IsZero():
			usd = lbp.Div(rate)
			derived = DerivedUSD
		case lbp.IsZero() && !usd.IsZero():
			lbp = usd.Mul(rate)
			derived = DerivedLBP
		}
	}
	return QuantizeUSD(usd), QuantizeLBP(lbp), derived
}

// WithinRoundingTolerance reports whether a per-currency imbalance is
// small enough to post to the rounding account.
func WithinRoundingTolerance(diffUSD, diffLBP decimal.Decimal) bool {
	return diffUSD.Abs().LessThanOrEqual(maxRoundingUSD) &&
		diffLBP.Abs().LessThanOrEqual(maxRoundingLBP)
}
