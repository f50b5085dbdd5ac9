package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AttemptStatus string

const (
	AttemptPending  AttemptStatus = "pending"
	AttemptApproved AttemptStatus = "approved"
	AttemptPaid     AttemptStatus = "paid"
	AttemptFailed   AttemptStatus = "failed"
)

// PaymentAttempt is one external checkout session tied to exactly one order.
// Status moves forward only (pending -> approved -> paid); re-applying a
// transition or moving backward is a no-op.
type PaymentAttempt struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	OrderID     string          `json:"order_id"`
	Amount      decimal.Decimal `json:"amount"`
	ExternalID  string          `json:"external_id,omitempty"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
	Status      AttemptStatus   `json:"status"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Terminal reports whether no further transitions are possible.
func (a PaymentAttempt) Terminal() bool {
	return a.Status == AttemptPaid || a.Status == AttemptFailed
}
