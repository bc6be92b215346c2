package domain

import (
	"encoding/json"
	"time"
)

type UpdateKind string

const (
	UpdateItem     UpdateKind = "item"
	UpdatePrice    UpdateKind = "price"
	UpdateRate     UpdateKind = "rate"
	UpdateCustomer UpdateKind = "customer"
	UpdateTaxCode  UpdateKind = "tax_code"
)

// Update is one entry of the server-to-device catalog feed. Devices pull
// updates strictly by ascending sequence and persist the cursor locally.
type Update struct {
	Seq       int64           `json:"seq"`
	Kind      UpdateKind      `json:"kind"`
	RefID     string          `json:"ref_id"`
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

// UpdateBatch is one page of the pull feed.
type UpdateBatch struct {
	Updates []Update `json:"updates"`
	NextSeq int64    `json:"next_seq"`
	HasMore bool     `json:"has_more"`
}
