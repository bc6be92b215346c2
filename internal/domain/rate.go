package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type RateType string

const (
	RateOfficial RateType = "official"
	RateMarket   RateType = "market"
	RateInternal RateType = "internal"
)

// ExchangeRate is a stored USD to LBP quote for a business date.
type ExchangeRate struct {
	ID        string
	RateDate  time.Time
	Type      RateType
	Rate      decimal.Decimal
	Note      string
	CreatedAt time.Time
}

// RateSource records how a resolved rate was obtained.
type RateSource string

const (
	RateSourceExact    RateSource = "exact"
	RateSourceLatest   RateSource = "latest"
	RateSourceFallback RateSource = "fallback"
	RateSourceDevice   RateSource = "device"
)

// ResolvedRate is the outcome of rate resolution for a date and type.
type ResolvedRate struct {
	Rate     decimal.Decimal
	Type     RateType
	RateDate time.Time
	Source   RateSource
}

// FallbackRate is the resolution of last resort when no rate row exists.
func FallbackRate(t RateType, date time.Time) ResolvedRate {
	return ResolvedRate{
		Rate:     FallbackUSDToLBP,
		Type:     t,
		RateDate: date,
		Source:   RateSourceFallback,
	}
}
