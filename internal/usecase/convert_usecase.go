package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/retailsync/ledger/internal/domain"
)

// Over-tender slack per currency. Cash overpayment is change and clamps
// to the total; non-cash tender beyond this is rejected.
var (
	creditEpsUSD = decimal.RequireFromString("0.01")
	creditEpsLBP = decimal.RequireFromString("100")
)

// RateResolver resolves a rate for a business date.
type RateResolver interface {
	Resolve(ctx context.Context, date time.Time, t domain.RateType) (domain.ResolvedRate, error)
}

// ConvertedDocument is the full accounting document assembled from one
// event, ready to persist and post in a single transaction.
type ConvertedDocument struct {
	Doc      *domain.Document
	Lines    []domain.DocumentLine
	Payments []domain.DocumentPayment
	Taxes    []domain.DocumentTax
}

// ConvertUseCase turns a validated event payload into a canonical
// document with both currency sides normalized against the frozen rate.
type ConvertUseCase struct {
	rates    RateResolver
	idGen    IDGenerator
	validate *validator.Validate
}

// NewConvertUseCase creates a new ConvertUseCase.
func NewConvertUseCase(rates RateResolver, idGen IDGenerator) *ConvertUseCase {
	return &ConvertUseCase{
		rates:    rates,
		idGen:    idGen,
		validate: validator.New(),
	}
}

// Convert decodes, validates and converts the event. All validation
// failures are permanent: the event must be corrected and resubmitted
// under a new id.
func (uc *ConvertUseCase) Convert(ctx context.Context, event *domain.Event) (*ConvertedDocument, error) {
	payload, err := domain.DecodePayload(event.Type, event.Payload)
	if err != nil {
		return nil, err
	}

	date := payload.EffectiveDate(event.CreatedAt)
	if payload.Rate().IsZero() {
		resolved, err := uc.rates.Resolve(ctx, date, domain.RateMarket)
		if err != nil {
			return nil, err
		}
		payload.SetRate(resolved.Rate)
	}

	if err := payload.Validate(uc.validate); err != nil {
		return nil, err
	}

	switch p := payload.(type) {
	case *domain.SalePayload:
		return uc.convertSale(event, p, date)
	case *domain.ReturnPayload:
		return uc.convertReturn(event, p, date)
	case *domain.PurchasePayload:
		return uc.convertPurchase(event, p, date)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownEventType, event.Type)
	}
}

func (uc *ConvertUseCase) convertSale(event *domain.Event, p *domain.SalePayload, date time.Time) (*ConvertedDocument, error) {
	rate := p.ExchangeRate
	doc := uc.newDocument(event, domain.DocInvoice, date, rate)
	if p.CustomerID != "" {
		doc.CustomerID = &p.CustomerID
	}
	doc.WarehouseID = &p.WarehouseID

	var lines []domain.DocumentLine
	for i, l := range p.Lines {
		usd, lbp, _ := domain.NormalizeDual(l.LineTotalUSD, l.LineTotalLBP, rate)
		costUSD, costLBP, _ := domain.NormalizeDual(
			l.UnitCostUSD.Mul(l.Qty), l.UnitCostLBP.Mul(l.Qty), rate)
		lines = append(lines, domain.DocumentLine{
			ID:           uc.idGen.Generate(),
			DocumentID:   doc.ID,
			LineNo:       i + 1,
			ItemID:       l.ItemID,
			Qty:          l.Qty,
			UnitPriceUSD: l.UnitPriceUSD,
			UnitPriceLBP: l.UnitPriceLBP,
			TotalUSD:     usd,
			TotalLBP:     lbp,
			CostUSD:      costUSD,
			CostLBP:      costLBP,
		})
		doc.TotalUSD = doc.TotalUSD.Add(usd)
		doc.TotalLBP = doc.TotalLBP.Add(lbp)
	}

	taxes := uc.convertTax(doc, p.Tax, rate, date)
	for _, t := range taxes {
		doc.TotalUSD = doc.TotalUSD.Add(t.TaxUSD)
		doc.TotalLBP = doc.TotalLBP.Add(t.TaxLBP)
	}

	payments, err := uc.applyTender(doc, p.Payments, rate)
	if err != nil {
		return nil, err
	}

	return &ConvertedDocument{Doc: doc, Lines: lines, Payments: payments, Taxes: taxes}, nil
}

func (uc *ConvertUseCase) convertReturn(event *domain.Event, p *domain.ReturnPayload, date time.Time) (*ConvertedDocument, error) {
	rate := p.ExchangeRate
	doc := uc.newDocument(event, domain.DocReturn, date, rate)
	doc.WarehouseID = &p.WarehouseID
	if p.InvoiceID != "" {
		doc.RefDocID = &p.InvoiceID
	}

	var lines []domain.DocumentLine
	for i, l := range p.Lines {
		usd, lbp, _ := domain.NormalizeDual(l.LineTotalUSD, l.LineTotalLBP, rate)
		costUSD, costLBP, _ := domain.NormalizeDual(
			l.UnitCostUSD.Mul(l.Qty), l.UnitCostLBP.Mul(l.Qty), rate)
		lines = append(lines, domain.DocumentLine{
			ID:         uc.idGen.Generate(),
			DocumentID: doc.ID,
			LineNo:     i + 1,
			ItemID:     l.ItemID,
			Qty:        l.Qty,
			TotalUSD:   usd,
			TotalLBP:   lbp,
			CostUSD:    costUSD,
			CostLBP:    costLBP,
		})
		doc.TotalUSD = doc.TotalUSD.Add(usd)
		doc.TotalLBP = doc.TotalLBP.Add(lbp)
	}

	taxes := uc.convertTax(doc, p.Tax, rate, date)
	for _, t := range taxes {
		doc.TotalUSD = doc.TotalUSD.Add(t.TaxUSD)
		doc.TotalLBP = doc.TotalLBP.Add(t.TaxLBP)
	}

	// A refund leaves the document fully settled.
	method := p.RefundMethod
	if method == "" {
		method = "cash"
	}
	payments := []domain.DocumentPayment{{
		ID:         uc.idGen.Generate(),
		DocumentID: doc.ID,
		Method:     method,
		AmountUSD:  doc.TotalUSD,
		AmountLBP:  doc.TotalLBP,
	}}
	doc.PaidUSD = doc.TotalUSD
	doc.PaidLBP = doc.TotalLBP

	return &ConvertedDocument{Doc: doc, Lines: lines, Payments: payments, Taxes: taxes}, nil
}

func (uc *ConvertUseCase) convertPurchase(event *domain.Event, p *domain.PurchasePayload, date time.Time) (*ConvertedDocument, error) {
	rate := p.ExchangeRate
	docType := domain.DocReceipt
	if event.Type == domain.EventPurchaseInvoice {
		docType = domain.DocPurchaseInvoice
	}
	doc := uc.newDocument(event, docType, date, rate)
	doc.SupplierID = &p.SupplierID
	if p.WarehouseID != "" {
		doc.WarehouseID = &p.WarehouseID
	}
	if p.ReceiptID != "" {
		doc.RefDocID = &p.ReceiptID
	}

	var lines []domain.DocumentLine
	for i, l := range p.Lines {
		usd, lbp, _ := domain.NormalizeDual(l.LineTotalUSD, l.LineTotalLBP, rate)
		lines = append(lines, domain.DocumentLine{
			ID:         uc.idGen.Generate(),
			DocumentID: doc.ID,
			LineNo:     i + 1,
			ItemID:     l.ItemID,
			Qty:        l.Qty,
			TotalUSD:   usd,
			TotalLBP:   lbp,
			CostUSD:    usd,
			CostLBP:    lbp,
		})
		doc.TotalUSD = doc.TotalUSD.Add(usd)
		doc.TotalLBP = doc.TotalLBP.Add(lbp)
	}

	var taxes []domain.DocumentTax
	if docType == domain.DocPurchaseInvoice {
		taxes = uc.convertTax(doc, p.Tax, rate, date)
		for _, t := range taxes {
			doc.TotalUSD = doc.TotalUSD.Add(t.TaxUSD)
			doc.TotalLBP = doc.TotalLBP.Add(t.TaxLBP)
		}
	}

	// Purchases settle through AP, never at conversion time.
	doc.CreditUSD = doc.TotalUSD
	doc.CreditLBP = doc.TotalLBP

	return &ConvertedDocument{Doc: doc, Lines: lines, Taxes: taxes}, nil
}

func (uc *ConvertUseCase) newDocument(event *domain.Event, t domain.DocumentType, date time.Time, rate decimal.Decimal) *domain.Document {
	return &domain.Document{
		ID:           uc.idGen.Generate(),
		EventID:      event.ID,
		CompanyID:    event.CompanyID,
		Type:         t,
		Status:       domain.DocStatusDraft,
		DocumentDate: date,
		ExchangeRate: rate,
		CreatedAt:    time.Now().UTC(),
	}
}

func (uc *ConvertUseCase) convertTax(doc *domain.Document, tax *domain.TaxBlock, rate decimal.Decimal, date time.Time) []domain.DocumentTax {
	if tax == nil {
		return nil
	}
	baseUSD, baseLBP, _ := domain.NormalizeDual(tax.BaseUSD, tax.BaseLBP, rate)
	taxUSD, taxLBP, _ := domain.NormalizeDual(tax.TaxUSD, tax.TaxLBP, rate)
	if taxUSD.IsZero() && taxLBP.IsZero() {
		return nil
	}
	taxDate := date
	if len(tax.TaxDate) >= 10 {
		if d, err := time.Parse("2006-01-02", tax.TaxDate[:10]); err == nil {
			taxDate = d
		}
	}
	return []domain.DocumentTax{{
		ID:         uc.idGen.Generate(),
		DocumentID: doc.ID,
		TaxCodeID:  tax.TaxCodeID,
		BaseUSD:    baseUSD,
		BaseLBP:    baseLBP,
		TaxUSD:     taxUSD,
		TaxLBP:     taxLBP,
		TaxDate:    taxDate,
	}}
}

// applyTender normalizes payments, caps cash overpayment at the document
// total (the rest is change) and computes the open credit amounts. An
// explicit "credit" tender never settles anything.
func (uc *ConvertUseCase) applyTender(doc *domain.Document, tender []domain.PaymentIn, rate decimal.Decimal) ([]domain.DocumentPayment, error) {
	var payments []domain.DocumentPayment
	paidUSD, paidLBP := decimal.Zero, decimal.Zero
	hasCash := false

	for _, p := range tender {
		if p.Method == "credit" {
			continue
		}
		usd, lbp, _ := domain.NormalizeDual(p.AmountUSD, p.AmountLBP, rate)
		if usd.IsZero() && lbp.IsZero() {
			continue
		}
		if p.Method == "cash" {
			hasCash = true
		}
		payments = append(payments, domain.DocumentPayment{
			ID:         uc.idGen.Generate(),
			DocumentID: doc.ID,
			Method:     p.Method,
			AmountUSD:  usd,
			AmountLBP:  lbp,
		})
		paidUSD = paidUSD.Add(usd)
		paidLBP = paidLBP.Add(lbp)
	}

	overUSD := paidUSD.Sub(doc.TotalUSD)
	overLBP := paidLBP.Sub(doc.TotalLBP)
	if overUSD.GreaterThan(creditEpsUSD) || overLBP.GreaterThan(creditEpsLBP) {
		if !hasCash {
			return nil, fmt.Errorf("%w: tendered %s USD / %s LBP against total %s USD / %s LBP",
				domain.ErrPaymentsExceedTotal, paidUSD, paidLBP, doc.TotalUSD, doc.TotalLBP)
		}
		// Cash change: the excess comes back out of the cash drawer, so
		// both the applied totals and the cash payment records clamp to
		// the document total. The journal debits payment records as-is.
		for i := len(payments) - 1; i >= 0; i-- {
			if payments[i].Method != "cash" {
				continue
			}
			if overUSD.IsPositive() {
				take := decimal.Min(overUSD, payments[i].AmountUSD)
				payments[i].AmountUSD = payments[i].AmountUSD.Sub(take)
				overUSD = overUSD.Sub(take)
			}
			if overLBP.IsPositive() {
				take := decimal.Min(overLBP, payments[i].AmountLBP)
				payments[i].AmountLBP = payments[i].AmountLBP.Sub(take)
				overLBP = overLBP.Sub(take)
			}
			if !overUSD.IsPositive() && !overLBP.IsPositive() {
				break
			}
		}
		kept := payments[:0]
		for _, p := range payments {
			if p.AmountUSD.IsZero() && p.AmountLBP.IsZero() {
				continue
			}
			kept = append(kept, p)
		}
		payments = kept
		if paidUSD.GreaterThan(doc.TotalUSD) {
			paidUSD = doc.TotalUSD
		}
		if paidLBP.GreaterThan(doc.TotalLBP) {
			paidLBP = doc.TotalLBP
		}
	}

	doc.PaidUSD = paidUSD
	doc.PaidLBP = paidLBP

	creditUSD := doc.TotalUSD.Sub(paidUSD)
	creditLBP := doc.TotalLBP.Sub(paidLBP)
	if creditUSD.Abs().LessThan(creditEpsUSD) && creditLBP.Abs().LessThan(creditEpsLBP) {
		creditUSD, creditLBP = decimal.Zero, decimal.Zero
	}
	if creditUSD.IsNegative() {
		creditUSD = decimal.Zero
	}
	if creditLBP.IsNegative() {
		creditLBP = decimal.Zero
	}
	doc.CreditUSD = creditUSD
	doc.CreditLBP = creditLBP

	return payments, nil
}
