// Package bonus resolves purchase amounts against the configured bonus
// tier table. Resolution is pure; the Calculator only adds the tier fetch.
package bonus

import (
	"context"

	"github.com/shopspring/decimal"

	"topup-service/internal/models"
	repo "topup-service/internal/repository"
)

var hundred = decimal.NewFromInt(100)

// Result is what a purchase amount earns: the bonus value, the description
// of the tier that granted it and the tier's percentage.
type Result struct {
	Bonus       decimal.Decimal
	Description string
	Percent     decimal.Decimal
}

// Resolve picks the active tier with the lowest ordinal whose range contains
// amount and computes the bonus, rounded half-up to the currency's minor
// unit. Tiers must be ordered by (ordinal, min_amount); no match means zero
// bonus. Amounts below every tier's minimum earn nothing.
func Resolve(tiers []models.BonusTier, amount decimal.Decimal) Result {
	for _, t := range tiers {
		if !t.Active || !t.Contains(amount) {
			continue
		}
		return Result{
			Bonus:       amount.Mul(t.Percent).Div(hundred).Round(2),
			Description: t.Description,
			Percent:     t.Percent,
		}
	}
	return Result{Bonus: decimal.Zero, Percent: decimal.Zero}
}

type Calculator struct {
	tiers repo.BonusTiers
}

func NewCalculator(tiers repo.BonusTiers) *Calculator { return &Calculator{tiers: tiers} }

// Resolve loads the active tiers and applies the pure resolution. It never
// mutates anything.
func (c *Calculator) Resolve(ctx context.Context, amount decimal.Decimal) (Result, error) {
	tiers, err := c.tiers.ListActive(ctx)
	if err != nil {
		return Result{}, err
	}
	return Resolve(tiers, amount), nil
}
