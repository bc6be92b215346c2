package domain

import "github.com/shopspring/decimal"

// SplitSale divides a mixed-entity sale payload into one payload per
// legal entity. Lines go to their tagged entity; payments and tax are
// allocated pro rata by each entity's line-total share, with allocation
// remainders landing on the official entity so nothing is lost. The
// result is deterministic for a given input.
func SplitSale(p *SalePayload) map[Entity]*SalePayload {
	entities := p.Entities()
	if len(entities) < 2 {
		return nil
	}

	parts := make(map[Entity]*SalePayload, len(entities))
	for _, e := range entities {
		cp := *p
		cp.Lines = nil
		cp.Payments = nil
		cp.Tax = nil
		parts[e] = &cp
	}

	lineUSD := map[Entity]decimal.Decimal{}
	lineLBP := map[Entity]decimal.Decimal{}
	totalUSD, totalLBP := decimal.Zero, decimal.Zero
	for _, l := range p.Lines {
		e := l.Entity
		if e == "" {
			e = EntityOfficial
		}
		l.Entity = ""
		parts[e].Lines = append(parts[e].Lines, l)
		lineUSD[e] = lineUSD[e].Add(l.LineTotalUSD)
		lineLBP[e] = lineLBP[e].Add(l.LineTotalLBP)
		totalUSD = totalUSD.Add(l.LineTotalUSD)
		totalLBP = totalLBP.Add(l.LineTotalLBP)
	}

	share := func(e Entity) decimal.Decimal {
		if !totalUSD.IsZero() {
			return lineUSD[e].Div(totalUSD)
		}
		if !totalLBP.IsZero() {
			return lineLBP[e].Div(totalLBP)
		}
		return decimal.Zero
	}

	// Non-official entities take their quantized slice; official absorbs
	// the remainder.
	others := make([]Entity, 0, len(entities))
	for _, e := range entities {
		if e != EntityOfficial {
			others = append(others, e)
		}
	}

	for _, pay := range p.Payments {
		restUSD, restLBP := pay.AmountUSD, pay.AmountLBP
		for _, e := range others {
			s := share(e)
			usd := QuantizeUSD(pay.AmountUSD.Mul(s))
			lbp := QuantizeLBP(pay.AmountLBP.Mul(s))
			parts[e].Payments = append(parts[e].Payments, PaymentIn{
				Method: pay.Method, AmountUSD: usd, AmountLBP: lbp,
			})
			restUSD = restUSD.Sub(usd)
			restLBP = restLBP.Sub(lbp)
		}
		if official, ok := parts[EntityOfficial]; ok {
			official.Payments = append(official.Payments, PaymentIn{
				Method: pay.Method, AmountUSD: restUSD, AmountLBP: restLBP,
			})
		}
	}

	if p.Tax != nil {
		restBaseUSD, restBaseLBP := p.Tax.BaseUSD, p.Tax.BaseLBP
		restTaxUSD, restTaxLBP := p.Tax.TaxUSD, p.Tax.TaxLBP
		for _, e := range others {
			s := share(e)
			t := &TaxBlock{
				TaxCodeID: p.Tax.TaxCodeID,
				TaxDate:   p.Tax.TaxDate,
				BaseUSD:   QuantizeUSD(p.Tax.BaseUSD.Mul(s)),
				BaseLBP:   QuantizeLBP(p.Tax.BaseLBP.Mul(s)),
				TaxUSD:    QuantizeUSD(p.Tax.TaxUSD.Mul(s)),
				TaxLBP:    QuantizeLBP(p.Tax.TaxLBP.Mul(s)),
			}
			parts[e].Tax = t
			restBaseUSD = restBaseUSD.Sub(t.BaseUSD)
			restBaseLBP = restBaseLBP.Sub(t.BaseLBP)
			restTaxUSD = restTaxUSD.Sub(t.TaxUSD)
			restTaxLBP = restTaxLBP.Sub(t.TaxLBP)
		}
		if official, ok := parts[EntityOfficial]; ok {
			official.Tax = &TaxBlock{
				TaxCodeID: p.Tax.TaxCodeID,
				TaxDate:   p.Tax.TaxDate,
				BaseUSD:   restBaseUSD,
				BaseLBP:   restBaseLBP,
				TaxUSD:    restTaxUSD,
				TaxLBP:    restTaxLBP,
			}
		}
	}

	return parts
}
