package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// Payload is the strict per-type structure an event payload must decode
// into before conversion. Validation failures are permanent: the event_id
// stays consumed and a corrected event must be issued.
type Payload interface {
	// Validate checks payload shape and amounts. Implementations wrap
	// every failure in ErrInvalidPayload.
	Validate(v *validator.Validate) error
	// EffectiveDate resolves the business date of the document, falling
	// back to the event's device-clock creation time.
	EffectiveDate(createdAt time.Time) time.Time
	// Rate returns the exchange rate locked by the device for the event.
	// Zero means the device had no rate and the server must resolve one.
	Rate() decimal.Decimal
	// SetRate fixes the rate the server resolved for a rate-less payload.
	SetRate(r decimal.Decimal)
}

// DecodePayload parses the tagged union: the payload shape is selected by
// the event type. Unknown event types are rejected explicitly.
func DecodePayload(t EventType, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case EventSaleCompleted:
		p = &SalePayload{}
	case EventSaleReturned:
		p = &ReturnPayload{}
	case EventPurchaseReceived, EventPurchaseInvoice:
		p = &PurchasePayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return p, nil
}

// SaleLine is one cart line of a completed sale.
type SaleLine struct {
	ItemID       string          `json:"item_id" validate:"required"`
	Entity       Entity          `json:"entity,omitempty" validate:"omitempty,oneof=official unofficial"`
	Qty          decimal.Decimal `json:"qty"`
	UnitPriceUSD decimal.Decimal `json:"unit_price_usd"`
	UnitPriceLBP decimal.Decimal `json:"unit_price_lbp"`
	LineTotalUSD decimal.Decimal `json:"line_total_usd"`
	LineTotalLBP decimal.Decimal `json:"line_total_lbp"`
	UnitCostUSD  decimal.Decimal `json:"unit_cost_usd"`
	UnitCostLBP  decimal.Decimal `json:"unit_cost_lbp"`
}

// TaxBlock carries the VAT captured at the time of sale.
type TaxBlock struct {
	TaxCodeID string          `json:"tax_code_id" validate:"required"`
	BaseUSD   decimal.Decimal `json:"base_usd"`
	BaseLBP   decimal.Decimal `json:"base_lbp"`
	TaxUSD    decimal.Decimal `json:"tax_usd"`
	TaxLBP    decimal.Decimal `json:"tax_lbp"`
	TaxDate   string          `json:"tax_date,omitempty"`
}

// PaymentIn is a tender received by the cashier. Method "credit" books the
// open amount to accounts receivable instead of a payment account.
type PaymentIn struct {
	Method    string          `json:"method" validate:"required,oneof=cash card transfer credit"`
	AmountUSD decimal.Decimal `json:"amount_usd"`
	AmountLBP decimal.Decimal `json:"amount_lbp"`
}

// SalePayload is the payload of a sale.completed event.
type SalePayload struct {
	ExchangeRate       decimal.Decimal `json:"exchange_rate"`
	PricingCurrency    string          `json:"pricing_currency" validate:"required,oneof=USD LBP"`
	SettlementCurrency string          `json:"settlement_currency" validate:"required,oneof=USD LBP"`
	WarehouseID        string          `json:"warehouse_id" validate:"required"`
	CustomerID         string          `json:"customer_id,omitempty"`
	InvoiceDate        string          `json:"invoice_date,omitempty"`
	Lines              []SaleLine      `json:"lines" validate:"required,min=1,dive"`
	Tax                *TaxBlock       `json:"tax,omitempty"`
	Payments           []PaymentIn     `json:"payments,omitempty" validate:"omitempty,dive"`
}

func (p *SalePayload) Validate(v *validator.Validate) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: exchange_rate must be > 0", ErrInvalidPayload)
	}
	for i, l := range p.Lines {
		if l.Qty.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: line %d: qty must be > 0", ErrInvalidPayload, i)
		}
		if l.LineTotalUSD.IsNegative() || l.LineTotalLBP.IsNegative() {
			return fmt.Errorf("%w: line %d: negative line total", ErrInvalidPayload, i)
		}
		if l.LineTotalUSD.IsZero() && l.LineTotalLBP.IsZero() {
			return fmt.Errorf("%w: line %d: line total is required", ErrInvalidPayload, i)
		}
	}
	for i, pay := range p.Payments {
		if pay.AmountUSD.IsNegative() || pay.AmountLBP.IsNegative() {
			return fmt.Errorf("%w: payment %d: negative amount", ErrInvalidPayload, i)
		}
	}
	if p.Tax != nil && (p.Tax.TaxUSD.IsNegative() || p.Tax.TaxLBP.IsNegative()) {
		return fmt.Errorf("%w: negative tax amount", ErrInvalidPayload)
	}
	return nil
}

func (p *SalePayload) EffectiveDate(createdAt time.Time) time.Time {
	return resolveBusinessDate(p.InvoiceDate, createdAt)
}

func (p *SalePayload) Rate() decimal.Decimal     { return p.ExchangeRate }
func (p *SalePayload) SetRate(r decimal.Decimal) { p.ExchangeRate = r }

// Entities returns the distinct legal entities the cart lines belong to.
// Lines without an entity tag default to official.
func (p *SalePayload) Entities() []Entity {
	seen := map[Entity]bool{}
	var out []Entity
	for _, l := range p.Lines {
		e := l.Entity
		if e == "" {
			e = EntityOfficial
		}
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

// ReturnLine is one line of a sale return.
type ReturnLine struct {
	ItemID       string          `json:"item_id" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	LineTotalUSD decimal.Decimal `json:"line_total_usd"`
	LineTotalLBP decimal.Decimal `json:"line_total_lbp"`
	UnitCostUSD  decimal.Decimal `json:"unit_cost_usd"`
	UnitCostLBP  decimal.Decimal `json:"unit_cost_lbp"`
}

// ReturnPayload is the payload of a sale.returned event.
type ReturnPayload struct {
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	WarehouseID  string          `json:"warehouse_id" validate:"required"`
	InvoiceID    string          `json:"invoice_id,omitempty"`
	RefundMethod string          `json:"refund_method,omitempty" validate:"omitempty,oneof=cash card transfer"`
	ReturnDate   string          `json:"return_date,omitempty"`
	Lines        []ReturnLine    `json:"lines" validate:"required,min=1,dive"`
	Tax          *TaxBlock       `json:"tax,omitempty"`
}

func (p *ReturnPayload) Validate(v *validator.Validate) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: exchange_rate must be > 0", ErrInvalidPayload)
	}
	for i, l := range p.Lines {
		if l.Qty.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: line %d: qty must be > 0", ErrInvalidPayload, i)
		}
		if l.LineTotalUSD.IsZero() && l.LineTotalLBP.IsZero() {
			return fmt.Errorf("%w: line %d: line total is required", ErrInvalidPayload, i)
		}
	}
	return nil
}

func (p *ReturnPayload) EffectiveDate(createdAt time.Time) time.Time {
	return resolveBusinessDate(p.ReturnDate, createdAt)
}

func (p *ReturnPayload) Rate() decimal.Decimal     { return p.ExchangeRate }
func (p *ReturnPayload) SetRate(r decimal.Decimal) { p.ExchangeRate = r }

// PurchaseLine is one line of a goods receipt or purchase invoice.
type PurchaseLine struct {
	ItemID       string          `json:"item_id" validate:"required"`
	Qty          decimal.Decimal `json:"qty"`
	UnitCostUSD  decimal.Decimal `json:"unit_cost_usd"`
	UnitCostLBP  decimal.Decimal `json:"unit_cost_lbp"`
	LineTotalUSD decimal.Decimal `json:"line_total_usd"`
	LineTotalLBP decimal.Decimal `json:"line_total_lbp"`
}

// PurchasePayload covers purchase.received and purchase.invoice events.
type PurchasePayload struct {
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	SupplierID   string          `json:"supplier_id" validate:"required"`
	WarehouseID  string          `json:"warehouse_id,omitempty"`
	ReceiptID    string          `json:"receipt_id,omitempty"`
	DocumentDate string          `json:"document_date,omitempty"`
	Lines        []PurchaseLine  `json:"lines" validate:"required,min=1,dive"`
	Tax          *TaxBlock       `json:"tax,omitempty"`
}

func (p *PurchasePayload) Validate(v *validator.Validate) error {
	if err := v.Struct(p); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.ExchangeRate.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: exchange_rate must be > 0", ErrInvalidPayload)
	}
	for i, l := range p.Lines {
		if l.Qty.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: line %d: qty must be > 0", ErrInvalidPayload, i)
		}
		if l.LineTotalUSD.IsZero() && l.LineTotalLBP.IsZero() {
			return fmt.Errorf("%w: line %d: line total is required", ErrInvalidPayload, i)
		}
	}
	return nil
}

func (p *PurchasePayload) EffectiveDate(createdAt time.Time) time.Time {
	return resolveBusinessDate(p.DocumentDate, createdAt)
}

func (p *PurchasePayload) Rate() decimal.Decimal     { return p.ExchangeRate }
func (p *PurchasePayload) SetRate(r decimal.Decimal) { p.ExchangeRate = r }

func resolveBusinessDate(raw string, fallback time.Time) time.Time {
	if len(raw) >= 10 {
		if d, err := time.Parse("2006-01-02", raw[:10]); err == nil {
			return d
		}
	}
	return time.Date(fallback.Year(), fallback.Month(), fallback.Day(), 0, 0, 0, 0, time.UTC)
}
