package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
	OrderExpired   OrderStatus = "expired"
)

// Order is a purchase intent. Bonus and total are computed once at creation
// and stay fixed even if the tier table changes afterwards; settlement reuses
// the stored values.
type Order struct {
	ID          string          `json:"id"`
	AccountID   string          `json:"account_id"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	BonusAmount decimal.Decimal `json:"bonus_amount"`
	BonusTier   string          `json:"bonus_tier,omitempty"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Status      OrderStatus     `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
}

// BonusResolved reports whether the bonus was computed at creation time.
// Orders created by this system always carry a total; a zero total marks a
// legacy row whose bonus must be resolved at settlement instead.
func (o Order) BonusResolved() bool {
	return o.TotalAmount.IsPositive()
}
