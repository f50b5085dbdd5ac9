package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// BonusTier maps a purchase amount range to a bonus percentage. Tiers may
// overlap; resolution picks the active tier with the lowest ordinal whose
// range contains the amount.
type BonusTier struct {
	ID          string           `json:"id"`
	MinAmount   decimal.Decimal  `json:"min_amount"`
	MaxAmount   *decimal.Decimal `json:"max_amount,omitempty"` // nil = unbounded
	Percent     decimal.Decimal  `json:"percent"`
	Description string           `json:"description"`
	Ordinal     int              `json:"ordinal"`
	Active      bool             `json:"active"`
	CreatedAt   time.Time        `json:"created_at"`
}

// Contains reports whether amount falls inside the tier's range.
func (t BonusTier) Contains(amount decimal.Decimal) bool {
	if amount.LessThan(t.MinAmount) {
		return false
	}
	if t.MaxAmount != nil && amount.GreaterThan(*t.MaxAmount) {
		return false
	}
	return true
}
